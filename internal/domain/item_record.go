package domain

import (
	"strings"
	"time"
)

// ItemRecord is the persisted shape of a catalog item before normalisation. Documents
// written before multi-language support only carry bare title/body fields
// (LegacyItem); newer documents carry canonical content plus translations
// (CanonicalItem). NormalizeItem folds both into CatalogItem so nothing downstream
// branches on the stored shape.
type ItemRecord interface {
	itemRecord()
}

// ItemCommon holds fields stored identically by both record shapes.
type ItemCommon struct {
	ID               string
	Title            string
	Body             string
	Price            *float64
	TaxIncluded      *bool
	MediaURL         string
	MediaType        string
	MediaItems       []Slide
	CategoryID       string
	Order            *int
	OriginalFileName string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// LegacyItem is a record without canonical content.
type LegacyItem struct {
	ItemCommon
}

// CanonicalItem is a record with explicit canonical content and translations.
type CanonicalItem struct {
	ItemCommon
	Canonical    LocalizedText
	Translations []Translation
}

func (LegacyItem) itemRecord()    {}
func (CanonicalItem) itemRecord() {}

// NormalizeItem converts any record shape into a CatalogItem. Canonical fields win per
// field; empty canonical fields fall back to the bare legacy values.
func NormalizeItem(record ItemRecord) CatalogItem {
	switch rec := record.(type) {
	case CanonicalItem:
		item := normalizeCommon(rec.ItemCommon)
		item.Canonical = LocalizedText{
			Title: firstNonEmpty(rec.Canonical.Title, rec.Title),
			Body:  firstNonEmpty(rec.Canonical.Body, rec.Body),
		}
		item.Translations = translationsToMap(rec.Translations)
		return item
	case *CanonicalItem:
		if rec == nil {
			return CatalogItem{}
		}
		return NormalizeItem(*rec)
	case LegacyItem:
		item := normalizeCommon(rec.ItemCommon)
		item.Canonical = LocalizedText{Title: rec.Title, Body: rec.Body}
		return item
	case *LegacyItem:
		if rec == nil {
			return CatalogItem{}
		}
		return NormalizeItem(*rec)
	default:
		return CatalogItem{}
	}
}

func normalizeCommon(common ItemCommon) CatalogItem {
	item := CatalogItem{
		ID:               strings.TrimSpace(common.ID),
		CategoryID:       strings.TrimSpace(common.CategoryID),
		OriginalFileName: common.OriginalFileName,
		CreatedAt:        common.CreatedAt,
		LastModified:     common.UpdatedAt,
	}
	if common.Order != nil {
		order := *common.Order
		item.Order = &order
	}
	if common.Price != nil && validAmount(*common.Price) {
		included := true
		if common.TaxIncluded != nil {
			included = *common.TaxIncluded
		}
		item.Price = &Price{Amount: *common.Price, TaxMode: TaxModeFromIncluded(included)}
	}
	if locator := strings.TrimSpace(common.MediaURL); locator != "" {
		item.PrimarySlide = &Slide{Kind: ParseMediaKind(common.MediaType), Locator: locator}
	}
	for _, slide := range common.MediaItems {
		if strings.TrimSpace(slide.Locator) == "" {
			continue
		}
		item.Media = append(item.Media, slide)
	}
	return item
}

func translationsToMap(entries []Translation) map[Language]LocalizedText {
	if len(entries) == 0 {
		return nil
	}
	out := make(map[Language]LocalizedText, len(entries))
	for _, entry := range entries {
		lang, ok := ParseLanguage(string(entry.Lang))
		if !ok || !IsTargetLanguage(lang) {
			continue
		}
		out[lang] = LocalizedText{Title: entry.Title, Body: entry.Body}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// TranslationsFromMap flattens a translation map into roster order.
func TranslationsFromMap(values map[Language]LocalizedText) []Translation {
	if len(values) == 0 {
		return nil
	}
	out := make([]Translation, 0, len(values))
	for _, lang := range targetLanguages {
		text, ok := values[lang]
		if !ok {
			continue
		}
		out = append(out, Translation{Lang: lang, Title: text.Title, Body: text.Body})
	}
	return out
}

// DisplaySlides returns the carousel sequence for an item: its media list, else its
// primary slide, else the supplied fallback.
func DisplaySlides(item CatalogItem, fallback Slide) []Slide {
	if len(item.Media) > 0 {
		out := make([]Slide, len(item.Media))
		copy(out, item.Media)
		return out
	}
	if item.PrimarySlide != nil {
		return []Slide{*item.PrimarySlide}
	}
	return []Slide{fallback}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
