package services

import (
	"context"
	"io"
	"time"

	"github.com/tsuyoshi-3110/dslab571/internal/domain"
	"github.com/tsuyoshi-3110/dslab571/internal/platform/storage"
)

// Type aliases expose domain models to handlers without importing domain everywhere.
type (
	CatalogItem   = domain.CatalogItem
	Category      = domain.Category
	LocalizedText = domain.LocalizedText
	Language      = domain.Language
	Slide         = domain.Slide
	HealthReport  = domain.HealthReport
)

// CatalogService owns catalog item reads and editor mutations.
type CatalogService interface {
	GetItem(ctx context.Context, itemID string) (CatalogItem, error)
	ListItems(ctx context.Context) ([]CatalogItem, error)
	GetLocalizedItem(ctx context.Context, itemID string, lang Language) (LocalizedItem, error)
	ListLocalizedItems(ctx context.Context, lang Language) ([]LocalizedItem, error)
	SaveItem(ctx context.Context, capability EditorCapability, cmd SaveItemCommand) (CatalogItem, error)
	DeleteItem(ctx context.Context, capability EditorCapability, itemID string) error
	ReorderItems(ctx context.Context, capability EditorCapability, itemIDs []string) error
}

// CategoryService owns storefront categories.
type CategoryService interface {
	ListOrdered(ctx context.Context) ([]Category, error)
	CreateCategory(ctx context.Context, capability EditorCapability, title string) (Category, error)
	ReorderCategories(ctx context.Context, capability EditorCapability, categoryIDs []string) error
	DeleteCategory(ctx context.Context, capability EditorCapability, categoryID string) error
}

// SystemService reports service health.
type SystemService interface {
	HealthReport(ctx context.Context) (HealthReport, error)
}

// Translator renders canonical text into one target language.
type Translator interface {
	Translate(ctx context.Context, text LocalizedText, target Language) (LocalizedText, error)
}

// MediaStore persists uploaded media and removes it again by locator.
type MediaStore interface {
	Upload(ctx context.Context, req storage.UploadRequest, progress func(int)) (storage.StoredObject, error)
	Delete(ctx context.Context, locator string) error
}

// ItemEventPublisher notifies downstream consumers about catalog changes.
type ItemEventPublisher interface {
	PublishItemChanged(ctx context.Context, event ItemChangedEvent) (string, error)
}

// ItemChangeKind enumerates catalog change notifications.
type ItemChangeKind string

const (
	ItemSaved      ItemChangeKind = "saved"
	ItemDeleted    ItemChangeKind = "deleted"
	ItemsReordered ItemChangeKind = "reordered"
)

// ItemChangedEvent is the payload published after a successful mutation.
type ItemChangedEvent struct {
	Kind       ItemChangeKind `json:"kind"`
	SiteKey    string         `json:"siteKey"`
	ItemIDs    []string       `json:"itemIds"`
	Actor      string         `json:"actor,omitempty"`
	OccurredAt time.Time      `json:"occurredAt"`
}

// MediaUpload is a file attached to a save.
type MediaUpload struct {
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// SaveItemCommand carries editor input for creating or updating an item. An empty
// ItemID creates a new item.
type SaveItemCommand struct {
	ItemID      string
	Title       string
	Body        string
	PriceInput  string
	TaxIncluded bool
	CategoryID  string
	Media       *MediaUpload

	// Progress receives upload percentages when Media is set.
	Progress func(int)
}

// LocalizedItem is an item rendered for one storefront language.
type LocalizedItem struct {
	Item         CatalogItem
	Lang         Language
	Text         LocalizedText
	PriceLabel   string
	CategoryName string
	Slides       []Slide
}
