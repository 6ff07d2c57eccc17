package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tsuyoshi-3110/dslab571/internal/carousel"
	"github.com/tsuyoshi-3110/dslab571/internal/domain"
	"github.com/tsuyoshi-3110/dslab571/internal/platform/httpx"
	"github.com/tsuyoshi-3110/dslab571/internal/platform/textutil"
	"github.com/tsuyoshi-3110/dslab571/internal/services"
)

// PublicCatalogHandlers serves the localized storefront catalog.
type PublicCatalogHandlers struct {
	catalog    services.CatalogService
	categories services.CategoryService
	fallback   domain.Slide
	autoplay   bool
}

// PublicCatalogOption customises PublicCatalogHandlers.
type PublicCatalogOption func(*PublicCatalogHandlers)

// WithFallbackSlide sets the slide shown for items without media.
func WithFallbackSlide(slide domain.Slide) PublicCatalogOption {
	return func(h *PublicCatalogHandlers) {
		h.fallback = slide
	}
}

// WithCarouselAutoplay toggles autoplay in the carousel payload.
func WithCarouselAutoplay(enabled bool) PublicCatalogOption {
	return func(h *PublicCatalogHandlers) {
		h.autoplay = enabled
	}
}

// NewPublicCatalogHandlers builds the public handlers.
func NewPublicCatalogHandlers(catalog services.CatalogService, categories services.CategoryService, opts ...PublicCatalogOption) *PublicCatalogHandlers {
	h := &PublicCatalogHandlers{catalog: catalog, categories: categories, autoplay: true}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers the public endpoints.
func (h *PublicCatalogHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/items", h.listItems)
	r.Get("/items/{itemID}", h.getItem)
	r.Get("/categories", h.listCategories)
}

type priceResponse struct {
	Amount  float64 `json:"amount"`
	TaxMode string  `json:"taxMode"`
	Label   string  `json:"label"`
}

type itemResponse struct {
	ID           string          `json:"id"`
	Lang         string          `json:"lang"`
	Title        string          `json:"title"`
	Body         string          `json:"body"`
	BodyHTML     string          `json:"bodyHtml,omitempty"`
	Price        *priceResponse  `json:"price"`
	CategoryID   string          `json:"categoryId,omitempty"`
	CategoryName string          `json:"categoryName,omitempty"`
	Order        *int            `json:"order,omitempty"`
	CreatedAt    string          `json:"createdAt,omitempty"`
	UpdatedAt    string          `json:"updatedAt,omitempty"`
	Carousel     carousel.Config `json:"carousel"`
}

type categoryResponse struct {
	ID    string `json:"id"`
	Lang  string `json:"lang"`
	Title string `json:"title"`
	Order *int   `json:"order,omitempty"`
}

func (h *PublicCatalogHandlers) listItems(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}
	lang := requestLanguage(r)
	items, err := h.catalog.ListLocalizedItems(ctx, lang)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	out := make([]itemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, h.newItemResponse(item))
	}
	setLanguageHeaders(w, lang)
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"items": out})
}

func (h *PublicCatalogHandlers) getItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}
	itemID := strings.TrimSpace(chi.URLParam(r, "itemID"))
	if itemID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "item id is required", http.StatusBadRequest))
		return
	}
	lang := requestLanguage(r)
	item, err := h.catalog.GetLocalizedItem(ctx, itemID, lang)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	setLanguageHeaders(w, lang)
	httpx.WriteJSON(w, http.StatusOK, h.newItemResponse(item))
}

func (h *PublicCatalogHandlers) listCategories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.categories == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "category service unavailable", http.StatusServiceUnavailable))
		return
	}
	lang := requestLanguage(r)
	categories, err := h.categories.ListOrdered(ctx)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	out := make([]categoryResponse, 0, len(categories))
	for _, category := range categories {
		out = append(out, newCategoryResponse(category, lang))
	}
	setLanguageHeaders(w, lang)
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"categories": out})
}

func (h *PublicCatalogHandlers) newItemResponse(view services.LocalizedItem) itemResponse {
	resp := itemResponse{
		ID:           view.Item.ID,
		Lang:         string(view.Lang),
		Title:        view.Text.Title,
		Body:         view.Text.Body,
		BodyHTML:     textutil.BodyHTML(view.Text.Body),
		CategoryID:   view.Item.CategoryID,
		CategoryName: view.CategoryName,
		Order:        view.Item.Order,
		CreatedAt:    formatTime(view.Item.CreatedAt),
		UpdatedAt:    formatTime(view.Item.LastModified),
		Carousel:     carousel.DisplayConfig(view.Slides, h.fallback, h.autoplay),
	}
	if price := view.Item.Price; price != nil {
		resp.Price = &priceResponse{
			Amount:  price.Amount,
			TaxMode: string(price.TaxMode),
			Label:   view.PriceLabel,
		}
	}
	return resp
}

func newCategoryResponse(category services.Category, lang domain.Language) categoryResponse {
	return categoryResponse{
		ID:    category.ID,
		Lang:  string(lang),
		Title: services.ResolveCategoryName(category, lang),
		Order: category.Order,
	}
}

// requestLanguage prefers ?lang= and falls back to Accept-Language.
func requestLanguage(r *http.Request) domain.Language {
	if raw := strings.TrimSpace(r.URL.Query().Get("lang")); raw != "" {
		return domain.MatchLanguage(raw)
	}
	return domain.MatchLanguage(r.Header.Get("Accept-Language"))
}

func setLanguageHeaders(w http.ResponseWriter, lang domain.Language) {
	w.Header().Set("Content-Language", string(lang))
	w.Header().Add("Vary", "Accept-Language")
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
