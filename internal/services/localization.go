package services

import (
	"strings"

	"github.com/tsuyoshi-3110/dslab571/internal/domain"
)

// ResolveLocalized picks the text shown for lang. The canonical language always gets the
// canonical content; other languages take the translated field when it is non-empty
// and fall back to the canonical field otherwise, one field at a time.
func ResolveLocalized(item domain.CatalogItem, lang domain.Language) domain.LocalizedText {
	if lang == domain.CanonicalLanguage {
		return item.Canonical
	}
	translated, ok := item.Translations[lang]
	if !ok {
		return item.Canonical
	}
	return domain.LocalizedText{
		Title: preferTranslated(translated.Title, item.Canonical.Title),
		Body:  preferTranslated(translated.Body, item.Canonical.Body),
	}
}

// ResolveCategoryName applies the same fallback chain to a category title.
func ResolveCategoryName(category domain.Category, lang domain.Language) string {
	if lang == domain.CanonicalLanguage {
		return category.Name
	}
	return preferTranslated(category.Translations[lang], category.Name)
}

// ResolveCategory looks up a weak category reference. Empty or dangling ids report
// false and render as uncategorised.
func ResolveCategory(categories []domain.Category, categoryID string) (domain.Category, bool) {
	categoryID = strings.TrimSpace(categoryID)
	if categoryID == "" {
		return domain.Category{}, false
	}
	for _, category := range categories {
		if category.ID == categoryID {
			return category, true
		}
	}
	return domain.Category{}, false
}

func preferTranslated(translated, canonical string) string {
	if strings.TrimSpace(translated) != "" {
		return translated
	}
	return canonical
}
