package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/tsuyoshi-3110/dslab571/internal/domain"
	pfirestore "github.com/tsuyoshi-3110/dslab571/internal/platform/firestore"
)

const sectionsSubcollection = "sections"

type categoryTitleDocument struct {
	Title string `firestore:"title"`
}

type categoryTranslationDocument struct {
	Lang  string `firestore:"lang"`
	Title string `firestore:"title"`
}

type categoryDocument struct {
	Title     string                        `firestore:"title"`
	Base      *categoryTitleDocument        `firestore:"base"`
	T         []categoryTranslationDocument `firestore:"t"`
	Order     *int                          `firestore:"order"`
	CreatedAt time.Time                     `firestore:"createdAt"`
}

// CategoryRepository stores storefront categories ("sections") in Firestore.
type CategoryRepository struct {
	provider *pfirestore.Provider
	sections *pfirestore.Collection[categoryDocument]
}

// NewCategoryRepository binds the repository to {collection}/{siteKey}/sections.
func NewCategoryRepository(provider *pfirestore.Provider, collection, siteKey string) (*CategoryRepository, error) {
	if provider == nil {
		return nil, errors.New("category repository requires firestore provider")
	}
	collection = strings.TrimSpace(collection)
	siteKey = strings.TrimSpace(siteKey)
	if collection == "" || siteKey == "" {
		return nil, errors.New("category repository requires collection and site key")
	}
	path := collection + "/" + siteKey + "/" + sectionsSubcollection
	return &CategoryRepository{
		provider: provider,
		sections: pfirestore.NewCollection[categoryDocument](provider, path),
	}, nil
}

// List returns categories ordered by createdAt ascending.
func (r *CategoryRepository) List(ctx context.Context) ([]domain.Category, error) {
	docs, err := r.sections.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.OrderBy("createdAt", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}
	categories := make([]domain.Category, 0, len(docs))
	for _, doc := range docs {
		categories = append(categories, decodeCategory(doc))
	}
	return categories, nil
}

// Insert creates category under its id.
func (r *CategoryRepository) Insert(ctx context.Context, category domain.Category) (domain.Category, error) {
	translations := make([]map[string]any, 0, len(category.Translations))
	for _, lang := range domain.TargetLanguages() {
		title, ok := category.Translations[lang]
		if !ok {
			continue
		}
		translations = append(translations, map[string]any{"lang": string(lang), "title": title})
	}
	payload := map[string]any{
		"title":     category.Name,
		"base":      map[string]any{"title": category.Name},
		"t":         translations,
		"createdAt": category.CreatedAt.UTC(),
	}
	if category.Order != nil {
		payload["order"] = *category.Order
	}
	if err := r.sections.Create(ctx, category.ID, payload); err != nil {
		return domain.Category{}, err
	}
	doc, err := r.sections.Get(ctx, category.ID)
	if err != nil {
		return domain.Category{}, err
	}
	return decodeCategory(doc), nil
}

// Delete removes the category document.
func (r *CategoryRepository) Delete(ctx context.Context, id string) error {
	return r.sections.Delete(ctx, id)
}

// Reorder assigns order = position to every id in one transaction.
func (r *CategoryRepository) Reorder(ctx context.Context, ids []string) error {
	return reorder(ctx, r.provider, r.sections.Doc, ids)
}

func decodeCategory(doc pfirestore.Document[categoryDocument]) domain.Category {
	data := doc.Data
	category := domain.Category{
		ID:        doc.ID,
		Name:      strings.TrimSpace(data.Title),
		CreatedAt: firstTime(data.CreatedAt, doc.CreateTime),
	}
	if data.Base != nil && strings.TrimSpace(data.Base.Title) != "" {
		category.Name = strings.TrimSpace(data.Base.Title)
	}
	if data.Order != nil {
		order := *data.Order
		category.Order = &order
	}
	for _, tr := range data.T {
		lang, ok := domain.ParseLanguage(tr.Lang)
		if !ok || !domain.IsTargetLanguage(lang) {
			continue
		}
		if category.Translations == nil {
			category.Translations = make(map[domain.Language]string)
		}
		category.Translations[lang] = tr.Title
	}
	return category
}
