package domain

import (
	"time"
)

// SortOrder indicates ascending or descending ordering for list queries.
type SortOrder string

const (
	// SortAsc sorts results in ascending order.
	SortAsc SortOrder = "asc"
	// SortDesc sorts results in descending order.
	SortDesc SortOrder = "desc"
)

// LocalizedText is a title/body pair rendered in one language.
type LocalizedText struct {
	Title string
	Body  string
}

// IsZero reports whether both fields are empty.
func (t LocalizedText) IsZero() bool {
	return t.Title == "" && t.Body == ""
}

// Translation is one target-language rendering returned by the translation fan-out.
type Translation struct {
	Lang  Language
	Title string
	Body  string
}

// TaxMode describes how a price relates to consumption tax.
type TaxMode string

const (
	// TaxIncluded marks a price that already includes tax.
	TaxIncluded TaxMode = "included"
	// TaxExcluded marks a price that excludes tax.
	TaxExcluded TaxMode = "excluded"
)

// TaxModeFromIncluded maps the persisted boolean flag onto a TaxMode.
func TaxModeFromIncluded(included bool) TaxMode {
	if included {
		return TaxIncluded
	}
	return TaxExcluded
}

// Included reports whether the tax mode is TaxIncluded. Unknown modes count as included.
func (m TaxMode) Included() bool {
	return m != TaxExcluded
}

// Price is a monetary amount with its tax mode. Catalog items hold *Price so that an
// absent price can never carry a stale tax mode.
type Price struct {
	Amount  float64
	TaxMode TaxMode
}

// MediaKind distinguishes carousel slide types.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

// ParseMediaKind normalises persisted kind values, defaulting to image.
func ParseMediaKind(value string) MediaKind {
	if value == string(MediaVideo) {
		return MediaVideo
	}
	return MediaImage
}

// Slide is one renderable unit inside a media carousel.
type Slide struct {
	Kind    MediaKind
	Locator string
}

// IsVideo reports whether the slide is a video.
func (s Slide) IsVideo() bool {
	return s.Kind == MediaVideo
}

// CatalogItem is the normalised catalog aggregate shared by services and handlers.
type CatalogItem struct {
	ID               string
	Canonical        LocalizedText
	Translations     map[Language]LocalizedText
	Price            *Price
	Media            []Slide
	PrimarySlide     *Slide
	CategoryID       string
	Order            *int
	OriginalFileName string
	CreatedAt        time.Time
	LastModified     time.Time
}

// MediaLocator returns the locator of the primary media asset, if any.
func (i CatalogItem) MediaLocator() string {
	if i.PrimarySlide != nil {
		return i.PrimarySlide.Locator
	}
	if len(i.Media) > 0 {
		return i.Media[0].Locator
	}
	return ""
}

// Category is an editor-managed grouping for catalog items.
type Category struct {
	ID           string
	Name         string
	Translations map[Language]string
	Order        *int
	CreatedAt    time.Time
}
