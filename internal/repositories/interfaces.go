package repositories

import (
	"context"
	"time"

	"github.com/tsuyoshi-3110/dslab571/internal/domain"
)

// Registry exposes the storefront's repositories and their shared lifecycle.
type Registry interface {
	Close(ctx context.Context) error

	Items() CatalogItemRepository
	Categories() CategoryRepository
	Health() HealthRepository
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// ItemMutation is the complete write set of one item save. It is applied as a single
// document write so readers never observe a half-saved item.
type ItemMutation struct {
	ID     string
	Create bool

	Canonical    domain.LocalizedText
	Translations []domain.Translation
	CategoryID   string

	// Price nil removes both the amount and the tax flag.
	Price *domain.Price

	// Media nil leaves the stored media fields untouched.
	Media            *domain.Slide
	OriginalFileName string

	CreatedAt time.Time
}

// CatalogItemRepository persists catalog items for one storefront.
type CatalogItemRepository interface {
	Get(ctx context.Context, id string) (domain.CatalogItem, error)
	// List returns every item ordered by createdAt ascending; callers apply display order.
	List(ctx context.Context) ([]domain.CatalogItem, error)
	Apply(ctx context.Context, mutation ItemMutation) (domain.CatalogItem, error)
	Delete(ctx context.Context, id string) error
	Reorder(ctx context.Context, ids []string) error
}

// CategoryRepository persists storefront categories.
type CategoryRepository interface {
	List(ctx context.Context) ([]domain.Category, error)
	Insert(ctx context.Context, category domain.Category) (domain.Category, error)
	Delete(ctx context.Context, id string) error
	Reorder(ctx context.Context, ids []string) error
}

// HealthRepository reports the reachability of backing services.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.HealthReport, error)
}
