package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/tsuyoshi-3110/dslab571/internal/domain"
	pfirestore "github.com/tsuyoshi-3110/dslab571/internal/platform/firestore"
	"github.com/tsuyoshi-3110/dslab571/internal/repositories"
)

const itemsSubcollection = "items"

type localizedDocument struct {
	Title string `firestore:"title"`
	Body  string `firestore:"body"`
}

type translationDocument struct {
	Lang  string `firestore:"lang"`
	Title string `firestore:"title"`
	Body  string `firestore:"body"`
}

type mediaItemDocument struct {
	Src  string `firestore:"src"`
	Type string `firestore:"type"`
}

// itemDocument mirrors siteProducts/{siteKey}/items/{id}. Documents written before
// multi-language support have no base or t fields.
type itemDocument struct {
	Title            string                `firestore:"title"`
	Body             string                `firestore:"body"`
	Base             *localizedDocument    `firestore:"base"`
	T                []translationDocument `firestore:"t"`
	Price            *float64              `firestore:"price"`
	TaxIncluded      *bool                 `firestore:"taxIncluded"`
	MediaURL         string                `firestore:"mediaURL"`
	MediaType        string                `firestore:"mediaType"`
	MediaItems       []mediaItemDocument   `firestore:"mediaItems"`
	SectionID        *string               `firestore:"sectionId"`
	Order            *int                  `firestore:"order"`
	OriginalFileName string                `firestore:"originalFileName"`
	CreatedAt        time.Time             `firestore:"createdAt"`
	UpdatedAt        time.Time             `firestore:"updatedAt"`
}

// CatalogItemRepository stores catalog items of one storefront in Firestore.
type CatalogItemRepository struct {
	provider *pfirestore.Provider
	items    *pfirestore.Collection[itemDocument]
}

// NewCatalogItemRepository binds the repository to {collection}/{siteKey}/items.
func NewCatalogItemRepository(provider *pfirestore.Provider, collection, siteKey string) (*CatalogItemRepository, error) {
	if provider == nil {
		return nil, errors.New("catalog item repository requires firestore provider")
	}
	collection = strings.TrimSpace(collection)
	siteKey = strings.TrimSpace(siteKey)
	if collection == "" || siteKey == "" {
		return nil, errors.New("catalog item repository requires collection and site key")
	}
	path := collection + "/" + siteKey + "/" + itemsSubcollection
	return &CatalogItemRepository{
		provider: provider,
		items:    pfirestore.NewCollection[itemDocument](provider, path),
	}, nil
}

// Get loads one item.
func (r *CatalogItemRepository) Get(ctx context.Context, id string) (domain.CatalogItem, error) {
	doc, err := r.items.Get(ctx, id)
	if err != nil {
		return domain.CatalogItem{}, err
	}
	return decodeItem(doc), nil
}

// List returns every item ordered by createdAt ascending.
func (r *CatalogItemRepository) List(ctx context.Context) ([]domain.CatalogItem, error) {
	docs, err := r.items.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.OrderBy("createdAt", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}
	items := make([]domain.CatalogItem, 0, len(docs))
	for _, doc := range docs {
		items = append(items, decodeItem(doc))
	}
	return items, nil
}

// Apply writes the mutation as one document write and returns the stored item.
func (r *CatalogItemRepository) Apply(ctx context.Context, mutation repositories.ItemMutation) (domain.CatalogItem, error) {
	id := strings.TrimSpace(mutation.ID)
	if mutation.Create {
		if err := r.items.Create(ctx, id, createPayload(mutation)); err != nil {
			return domain.CatalogItem{}, err
		}
	} else {
		if err := r.items.Update(ctx, id, updatePayload(mutation)); err != nil {
			return domain.CatalogItem{}, err
		}
	}
	return r.Get(ctx, id)
}

// Delete removes the item document.
func (r *CatalogItemRepository) Delete(ctx context.Context, id string) error {
	return r.items.Delete(ctx, id)
}

// Reorder assigns order = position to every id in one transaction. Unknown ids abort
// the whole write with a not-found error.
func (r *CatalogItemRepository) Reorder(ctx context.Context, ids []string) error {
	return reorder(ctx, r.provider, r.items.Doc, ids)
}

func createPayload(m repositories.ItemMutation) map[string]any {
	payload := baseFields(m)
	payload["createdAt"] = m.CreatedAt.UTC()
	if m.Price == nil {
		delete(payload, "price")
		delete(payload, "taxIncluded")
	}
	if m.Media != nil {
		payload["mediaURL"] = m.Media.Locator
		payload["mediaType"] = string(m.Media.Kind)
		payload["originalFileName"] = m.OriginalFileName
	}
	return payload
}

func updatePayload(m repositories.ItemMutation) []firestore.Update {
	fields := baseFields(m)
	if m.Media != nil {
		fields["mediaURL"] = m.Media.Locator
		fields["mediaType"] = string(m.Media.Kind)
		fields["originalFileName"] = m.OriginalFileName
	}
	updates := make([]firestore.Update, 0, len(fields))
	for _, path := range updateOrder {
		if value, ok := fields[path]; ok {
			updates = append(updates, firestore.Update{Path: path, Value: value})
		}
	}
	return updates
}

var updateOrder = []string{
	"title", "body", "base", "t", "sectionId", "price", "taxIncluded",
	"mediaURL", "mediaType", "originalFileName", "updatedAt",
}

// baseFields holds everything a save always writes. Bare title/body are kept in sync
// with base so older readers still see current content.
func baseFields(m repositories.ItemMutation) map[string]any {
	translations := make([]map[string]any, 0, len(m.Translations))
	for _, tr := range m.Translations {
		translations = append(translations, map[string]any{
			"lang":  string(tr.Lang),
			"title": tr.Title,
			"body":  tr.Body,
		})
	}
	fields := map[string]any{
		"title": m.Canonical.Title,
		"body":  m.Canonical.Body,
		"base": map[string]any{
			"title": m.Canonical.Title,
			"body":  m.Canonical.Body,
		},
		"t":         translations,
		"updatedAt": firestore.ServerTimestamp,
	}
	if categoryID := strings.TrimSpace(m.CategoryID); categoryID != "" {
		fields["sectionId"] = categoryID
	} else {
		fields["sectionId"] = nil
	}
	if m.Price != nil {
		fields["price"] = m.Price.Amount
		fields["taxIncluded"] = m.Price.TaxMode.Included()
	} else {
		fields["price"] = firestore.Delete
		fields["taxIncluded"] = firestore.Delete
	}
	return fields
}

func decodeItem(doc pfirestore.Document[itemDocument]) domain.CatalogItem {
	return domain.NormalizeItem(itemRecord(doc))
}

func itemRecord(doc pfirestore.Document[itemDocument]) domain.ItemRecord {
	data := doc.Data
	common := domain.ItemCommon{
		ID:               doc.ID,
		Title:            data.Title,
		Body:             data.Body,
		Price:            data.Price,
		TaxIncluded:      data.TaxIncluded,
		MediaURL:         data.MediaURL,
		MediaType:        data.MediaType,
		Order:            data.Order,
		OriginalFileName: data.OriginalFileName,
		CreatedAt:        firstTime(data.CreatedAt, doc.CreateTime),
		UpdatedAt:        firstTime(data.UpdatedAt, doc.UpdateTime),
	}
	if data.SectionID != nil {
		common.CategoryID = *data.SectionID
	}
	for _, media := range data.MediaItems {
		common.MediaItems = append(common.MediaItems, domain.Slide{
			Kind:    domain.ParseMediaKind(media.Type),
			Locator: media.Src,
		})
	}

	if data.Base == nil && len(data.T) == 0 {
		return domain.LegacyItem{ItemCommon: common}
	}
	record := domain.CanonicalItem{ItemCommon: common}
	if data.Base != nil {
		record.Canonical = domain.LocalizedText{Title: data.Base.Title, Body: data.Base.Body}
	}
	for _, tr := range data.T {
		record.Translations = append(record.Translations, domain.Translation{
			Lang:  domain.Language(tr.Lang),
			Title: tr.Title,
			Body:  tr.Body,
		})
	}
	return record
}

func firstTime(values ...time.Time) time.Time {
	for _, value := range values {
		if !value.IsZero() {
			return value.UTC()
		}
	}
	return time.Time{}
}

type docRefFunc func(ctx context.Context, id string) (*firestore.DocumentRef, error)

func reorder(ctx context.Context, provider *pfirestore.Provider, docRef docRefFunc, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	refs := make([]*firestore.DocumentRef, 0, len(ids))
	for _, id := range ids {
		ref, err := docRef(ctx, id)
		if err != nil {
			return err
		}
		refs = append(refs, ref)
	}

	return provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snaps, err := tx.GetAll(refs)
		if err != nil {
			return err
		}
		for _, snap := range snaps {
			if !snap.Exists() {
				return status.Error(codes.NotFound, fmt.Sprintf("document %s not found", snap.Ref.ID))
			}
		}
		for idx, ref := range refs {
			if err := tx.Update(ref, []firestore.Update{{Path: "order", Value: idx}}); err != nil {
				return err
			}
		}
		return nil
	})
}
