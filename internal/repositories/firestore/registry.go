package firestore

import (
	"context"
	"errors"

	"github.com/tsuyoshi-3110/dslab571/internal/platform/config"
	pfirestore "github.com/tsuyoshi-3110/dslab571/internal/platform/firestore"
	"github.com/tsuyoshi-3110/dslab571/internal/repositories"
)

// Registry implements repositories.Registry on a shared Firestore provider.
type Registry struct {
	provider   *pfirestore.Provider
	items      *CatalogItemRepository
	categories *CategoryRepository
	health     repositories.HealthRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry builds the storefront repositories for siteKey. health may be nil.
func NewRegistry(provider *pfirestore.Provider, cfg config.FirestoreConfig, siteKey string, health repositories.HealthRepository) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("registry requires firestore provider")
	}
	items, err := NewCatalogItemRepository(provider, cfg.ItemCollection, siteKey)
	if err != nil {
		return nil, err
	}
	categories, err := NewCategoryRepository(provider, cfg.CategoryCollection, siteKey)
	if err != nil {
		return nil, err
	}
	return &Registry{
		provider:   provider,
		items:      items,
		categories: categories,
		health:     health,
	}, nil
}

func (r *Registry) Items() repositories.CatalogItemRepository   { return r.items }
func (r *Registry) Categories() repositories.CategoryRepository { return r.categories }
func (r *Registry) Health() repositories.HealthRepository       { return r.health }

// Close releases the Firestore client.
func (r *Registry) Close(context.Context) error {
	return r.provider.Close()
}
