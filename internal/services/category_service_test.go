package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tsuyoshi-3110/dslab571/internal/domain"
)

func newCategoryFixture(t *testing.T) (CategoryService, *stubCategoryRepository, *stubTranslator) {
	t.Helper()
	repo := &stubCategoryRepository{}
	translator := &stubTranslator{fail: map[domain.Language]error{domain.LangHindi: errors.New("down")}}
	fanout, err := NewTranslationFanout(translator)
	if err != nil {
		t.Fatalf("NewTranslationFanout: %v", err)
	}
	svc, err := NewCategoryService(CategoryServiceDeps{
		Categories: repo,
		Fanout:     fanout,
		Clock:      func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) },
		NewID:      func() string { return "01CATEGORY" },
	})
	if err != nil {
		t.Fatalf("NewCategoryService: %v", err)
	}
	return svc, repo, translator
}

func TestCreateCategoryTranslatesName(t *testing.T) {
	svc, repo, translator := newCategoryFixture(t)

	created, err := svc.CreateCategory(context.Background(), GrantEditor("uid"), "  ドリンク ")
	if err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}
	if created.ID != "01CATEGORY" || created.Name != "ドリンク" || created.Order != nil {
		t.Fatalf("unexpected category %+v", created)
	}
	if len(translator.calls) != len(domain.TargetLanguages()) {
		t.Fatalf("expected a request per language, got %d", len(translator.calls))
	}
	if _, ok := created.Translations[domain.LangHindi]; ok {
		t.Fatalf("failed language must be absent")
	}
	if created.Translations[domain.LangEnglish] != "en:ドリンク" {
		t.Fatalf("unexpected english name %q", created.Translations[domain.LangEnglish])
	}
	if len(repo.inserted) != 1 {
		t.Fatalf("expected one insert, got %d", len(repo.inserted))
	}
}

func TestCreateCategoryKeepsAngleBrackets(t *testing.T) {
	svc, repo, _ := newCategoryFixture(t)

	created, err := svc.CreateCategory(context.Background(), GrantEditor("uid"), " S<M<L sizes ")
	if err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}
	if created.Name != "S<M<L sizes" || repo.inserted[0].Name != "S<M<L sizes" {
		t.Fatalf("category name changed: %q", created.Name)
	}
	if created.Translations[domain.LangEnglish] != "en:S<M<L sizes" {
		t.Fatalf("unexpected english name %q", created.Translations[domain.LangEnglish])
	}
}

func TestCreateCategoryValidation(t *testing.T) {
	svc, repo, translator := newCategoryFixture(t)
	if _, err := svc.CreateCategory(context.Background(), GrantEditor("uid"), " "); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := svc.CreateCategory(context.Background(), EditorCapability{}, "x"); !errors.Is(err, ErrEditorCapabilityRequired) {
		t.Fatalf("expected capability error, got %v", err)
	}
	if len(repo.inserted) != 0 || len(translator.calls) != 0 {
		t.Fatalf("no collaborator may be called")
	}
}

func TestCategoryServiceListOrdered(t *testing.T) {
	svc, repo, _ := newCategoryFixture(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.categories = []domain.Category{
		{ID: "A", Order: intPtr(2), CreatedAt: base.Add(3 * time.Hour)},
		{ID: "B", CreatedAt: base.Add(time.Hour)},
		{ID: "C", Order: intPtr(1), CreatedAt: base.Add(5 * time.Hour)},
		{ID: "D", CreatedAt: base},
	}
	got, err := svc.ListOrdered(context.Background())
	if err != nil {
		t.Fatalf("ListOrdered: %v", err)
	}
	if ids(got) != "C,A,D,B" {
		t.Fatalf("unexpected order %s", ids(got))
	}
}

func TestCategoryServiceMutations(t *testing.T) {
	svc, repo, _ := newCategoryFixture(t)
	ctx := context.Background()

	if err := svc.ReorderCategories(ctx, GrantEditor("uid"), []string{"b", "a"}); err != nil {
		t.Fatalf("ReorderCategories: %v", err)
	}
	if len(repo.reordered) != 1 || repo.reordered[0][0] != "b" {
		t.Fatalf("unexpected reorder %v", repo.reordered)
	}
	if err := svc.ReorderCategories(ctx, GrantEditor("uid"), []string{"a", "a"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected duplicate ids to be rejected, got %v", err)
	}

	if err := svc.DeleteCategory(ctx, GrantEditor("uid"), " drinks "); err != nil {
		t.Fatalf("DeleteCategory: %v", err)
	}
	if repo.deleted[0] != "drinks" {
		t.Fatalf("unexpected delete %v", repo.deleted)
	}

	repo.deleteErr = errors.New("unavailable")
	var serr *StorageError
	if err := svc.DeleteCategory(ctx, GrantEditor("uid"), "x"); !errors.As(err, &serr) {
		t.Fatalf("expected StorageError, got %v", err)
	}
	if err := svc.DeleteCategory(ctx, EditorCapability{}, "x"); !errors.Is(err, ErrEditorCapabilityRequired) {
		t.Fatalf("expected capability error, got %v", err)
	}
}
