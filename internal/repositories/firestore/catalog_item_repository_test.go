package firestore

import (
	"testing"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/tsuyoshi-3110/dslab571/internal/domain"
	pfirestore "github.com/tsuyoshi-3110/dslab571/internal/platform/firestore"
	"github.com/tsuyoshi-3110/dslab571/internal/repositories"
)

func TestItemRecordLegacyDocument(t *testing.T) {
	price := 1200.0
	created := time.Date(2023, 4, 1, 9, 0, 0, 0, time.UTC)
	doc := pfirestore.Document[itemDocument]{
		ID: "legacy-1",
		Data: itemDocument{
			Title:     "抹茶",
			Body:      "京都産",
			Price:     &price,
			MediaURL:  "https://cdn.example.com/a.mp4",
			MediaType: "video",
			CreatedAt: created,
		},
	}

	record := itemRecord(doc)
	if _, ok := record.(domain.LegacyItem); !ok {
		t.Fatalf("expected legacy record, got %T", record)
	}
	item := decodeItem(doc)
	if item.Canonical.Title != "抹茶" || item.Canonical.Body != "京都産" {
		t.Fatalf("unexpected canonical %+v", item.Canonical)
	}
	if item.Price == nil || item.Price.TaxMode != domain.TaxIncluded {
		t.Fatalf("expected price defaulting to tax included, got %+v", item.Price)
	}
	if item.PrimarySlide == nil || !item.PrimarySlide.IsVideo() {
		t.Fatalf("expected video primary slide, got %+v", item.PrimarySlide)
	}
	if !item.CreatedAt.Equal(created) {
		t.Fatalf("unexpected createdAt %v", item.CreatedAt)
	}
}

func TestItemRecordCanonicalDocument(t *testing.T) {
	section := "sec-1"
	order := 2
	doc := pfirestore.Document[itemDocument]{
		ID:         "item-1",
		CreateTime: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Data: itemDocument{
			Title: "old title",
			Base:  &localizedDocument{Title: "", Body: "本文"},
			T: []translationDocument{
				{Lang: "en", Title: "Tea", Body: "Body"},
				{Lang: "xx", Title: "ignored"},
			},
			MediaItems: []mediaItemDocument{
				{Src: "https://cdn.example.com/1.jpg", Type: "image"},
				{Src: "", Type: "image"},
				{Src: "https://cdn.example.com/2.mp4", Type: "video"},
			},
			SectionID: &section,
			Order:     &order,
		},
	}

	if _, ok := itemRecord(doc).(domain.CanonicalItem); !ok {
		t.Fatalf("expected canonical record")
	}
	item := decodeItem(doc)
	if item.Canonical.Title != "old title" {
		t.Fatalf("empty base title should fall back to bare title, got %q", item.Canonical.Title)
	}
	if item.Canonical.Body != "本文" {
		t.Fatalf("unexpected body %q", item.Canonical.Body)
	}
	if len(item.Translations) != 1 || item.Translations[domain.LangEnglish].Title != "Tea" {
		t.Fatalf("unexpected translations %+v", item.Translations)
	}
	if len(item.Media) != 2 || !item.Media[1].IsVideo() {
		t.Fatalf("unexpected media %+v", item.Media)
	}
	if item.CategoryID != "sec-1" || item.Order == nil || *item.Order != 2 {
		t.Fatalf("unexpected category/order %+v", item)
	}
	if item.CreatedAt.IsZero() {
		t.Fatalf("expected createdAt to fall back to the document create time")
	}
}

func TestUpdatePayloadWithoutPrice(t *testing.T) {
	updates := updatePayload(repositories.ItemMutation{
		ID:           "item-1",
		Canonical:    domain.LocalizedText{Title: "T", Body: "B"},
		Translations: []domain.Translation{{Lang: domain.LangEnglish, Title: "T-en"}},
	})

	byPath := make(map[string]any, len(updates))
	for _, u := range updates {
		byPath[u.Path] = u.Value
	}
	if byPath["price"] != firestore.Delete || byPath["taxIncluded"] != firestore.Delete {
		t.Fatalf("expected price and tax flag removed, got %v / %v", byPath["price"], byPath["taxIncluded"])
	}
	if _, ok := byPath["mediaURL"]; ok {
		t.Fatalf("media fields must be untouched when no media was uploaded")
	}
	if byPath["updatedAt"] != firestore.ServerTimestamp {
		t.Fatalf("expected server timestamp for updatedAt")
	}
	if byPath["sectionId"] != nil {
		t.Fatalf("expected sectionId cleared, got %v", byPath["sectionId"])
	}
	tr, ok := byPath["t"].([]map[string]any)
	if !ok || len(tr) != 1 || tr[0]["lang"] != "en" {
		t.Fatalf("unexpected translations payload %#v", byPath["t"])
	}
}

func TestCreatePayloadWithPriceAndMedia(t *testing.T) {
	created := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	payload := createPayload(repositories.ItemMutation{
		ID:               "item-2",
		Create:           true,
		Canonical:        domain.LocalizedText{Title: "T"},
		CategoryID:       "sec-9",
		Price:            &domain.Price{Amount: 980, TaxMode: domain.TaxExcluded},
		Media:            &domain.Slide{Kind: domain.MediaImage, Locator: "https://cdn.example.com/x.png?v=1"},
		OriginalFileName: "x.png",
		CreatedAt:        created,
	})

	if payload["price"] != 980.0 || payload["taxIncluded"] != false {
		t.Fatalf("unexpected price fields %v / %v", payload["price"], payload["taxIncluded"])
	}
	if payload["mediaURL"] != "https://cdn.example.com/x.png?v=1" || payload["mediaType"] != "image" {
		t.Fatalf("unexpected media fields %+v", payload)
	}
	if ts, ok := payload["createdAt"].(time.Time); !ok || !ts.Equal(created) || payload["sectionId"] != "sec-9" {
		t.Fatalf("unexpected createdAt/sectionId %+v", payload)
	}

	noPrice := createPayload(repositories.ItemMutation{ID: "item-3", Create: true, Canonical: domain.LocalizedText{Title: "T"}})
	if _, ok := noPrice["price"]; ok {
		t.Fatalf("create must not carry delete sentinels")
	}
}

func TestDecodeCategory(t *testing.T) {
	order := 0
	doc := pfirestore.Document[categoryDocument]{
		ID: "sec-1",
		Data: categoryDocument{
			Title: "旧名",
			Base:  &categoryTitleDocument{Title: "新名"},
			T:     []categoryTranslationDocument{{Lang: "fr", Title: "Nom"}, {Lang: "ja", Title: "skip"}},
			Order: &order,
		},
	}
	category := decodeCategory(doc)
	if category.Name != "新名" {
		t.Fatalf("expected base title to win, got %q", category.Name)
	}
	if len(category.Translations) != 1 || category.Translations[domain.LangFrench] != "Nom" {
		t.Fatalf("unexpected translations %+v", category.Translations)
	}
	if category.Order == nil || *category.Order != 0 {
		t.Fatalf("expected explicit order 0 kept")
	}

	legacy := decodeCategory(pfirestore.Document[categoryDocument]{ID: "sec-2", Data: categoryDocument{Title: " 旧名 "}})
	if legacy.Name != "旧名" || legacy.Order != nil {
		t.Fatalf("unexpected legacy category %+v", legacy)
	}
}
