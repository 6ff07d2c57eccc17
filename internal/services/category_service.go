package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/tsuyoshi-3110/dslab571/internal/domain"
	"github.com/tsuyoshi-3110/dslab571/internal/repositories"
)

// CategoryServiceDeps bundles constructor inputs for the category service.
type CategoryServiceDeps struct {
	Categories repositories.CategoryRepository
	Fanout     *TranslationFanout
	Logger     *zap.Logger
	Clock      func() time.Time
	NewID      func() string
}

type categoryService struct {
	repo   repositories.CategoryRepository
	fanout *TranslationFanout
	logger *zap.Logger
	clock  func() time.Time
	newID  func() string
}

var _ CategoryService = (*categoryService)(nil)

// NewCategoryService constructs the category service.
func NewCategoryService(deps CategoryServiceDeps) (CategoryService, error) {
	if deps.Categories == nil {
		return nil, errors.New("category service: category repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := deps.NewID
	if newID == nil {
		newID = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &categoryService{
		repo:   deps.Categories,
		fanout: deps.Fanout,
		logger: logger.Named("categories"),
		clock:  func() time.Time { return clock().UTC() },
		newID:  newID,
	}, nil
}

func (s *categoryService) ListOrdered(ctx context.Context) ([]Category, error) {
	categories, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	return OrderCategories(categories), nil
}

func (s *categoryService) CreateCategory(ctx context.Context, capability EditorCapability, title string) (Category, error) {
	if err := requireEditor(capability); err != nil {
		return Category{}, err
	}
	name := strings.TrimSpace(title)
	if name == "" {
		return Category{}, &ValidationError{Field: "title", Reason: "is required"}
	}

	category := Category{
		ID:        s.newID(),
		Name:      name,
		CreatedAt: s.clock(),
	}
	if s.fanout != nil {
		for _, t := range s.fanout.TranslateAll(ctx, name, "") {
			if t.Title == "" {
				continue
			}
			if category.Translations == nil {
				category.Translations = make(map[domain.Language]string)
			}
			category.Translations[t.Lang] = t.Title
		}
	}

	saved, err := s.repo.Insert(ctx, category)
	if err != nil {
		return Category{}, &StorageError{Op: "create category", Err: err}
	}
	s.logger.Info("category created", zap.String("categoryId", saved.ID), zap.String("editor", capability.Subject()))
	return saved, nil
}

func (s *categoryService) ReorderCategories(ctx context.Context, capability EditorCapability, categoryIDs []string) error {
	if err := requireEditor(capability); err != nil {
		return err
	}
	ids, err := normalizeOrderIDs("categoryIds", categoryIDs)
	if err != nil {
		return err
	}
	if err := s.repo.Reorder(ctx, ids); err != nil {
		if isRepositoryNotFound(err) {
			return ErrCategoryNotFound
		}
		return &StorageError{Op: "reorder categories", Err: err}
	}
	return nil
}

// DeleteCategory removes the category only. Items pointing at it keep the reference,
// which then resolves to uncategorised.
func (s *categoryService) DeleteCategory(ctx context.Context, capability EditorCapability, categoryID string) error {
	if err := requireEditor(capability); err != nil {
		return err
	}
	categoryID = strings.TrimSpace(categoryID)
	if categoryID == "" {
		return &ValidationError{Field: "categoryId", Reason: "is required"}
	}
	if err := s.repo.Delete(ctx, categoryID); err != nil {
		return &StorageError{Op: "delete category", Err: err}
	}
	s.logger.Info("category deleted", zap.String("categoryId", categoryID), zap.String("editor", capability.Subject()))
	return nil
}
