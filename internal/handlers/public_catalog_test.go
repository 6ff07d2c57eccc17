package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/tsuyoshi-3110/dslab571/internal/domain"
	"github.com/tsuyoshi-3110/dslab571/internal/services"
)

var testFallback = domain.Slide{Kind: domain.MediaImage, Locator: "/images/placeholder.png"}

func newPublicRouter(catalog services.CatalogService, categories services.CategoryService) chi.Router {
	router := chi.NewRouter()
	NewPublicCatalogHandlers(catalog, categories, WithFallbackSlide(testFallback)).Routes(router)
	return router
}

func TestPublicCatalogHandlers_ListItems(t *testing.T) {
	svc := &stubCatalogService{
		localized: []services.LocalizedItem{
			{
				Item: services.CatalogItem{
					ID:    "item-1",
					Price: &domain.Price{Amount: 1500, TaxMode: domain.TaxIncluded},
				},
				Lang:         domain.LangEnglish,
				Text:         services.LocalizedText{Title: "Matcha", Body: "Sizes: S<M<L\nRich"},
				PriceLabel:   "¥1,500 (tax incl.)",
				CategoryName: "Tea",
				Slides:       []services.Slide{{Kind: domain.MediaVideo, Locator: "https://cdn.example/v.mp4"}},
			},
			{
				Item: services.CatalogItem{ID: "item-2"},
				Lang: domain.LangEnglish,
				Text: services.LocalizedText{Title: "Plain"},
			},
		},
	}
	router := newPublicRouter(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/items?lang=en", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if svc.lastLang != domain.LangEnglish {
		t.Fatalf("expected lang en, got %s", svc.lastLang)
	}
	if got := rr.Header().Get("Content-Language"); got != "en" {
		t.Fatalf("expected Content-Language en, got %q", got)
	}

	var body struct {
		Items []itemResponse `json:"items"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(body.Items))
	}

	first := body.Items[0]
	if first.Title != "Matcha" || first.CategoryName != "Tea" {
		t.Fatalf("unexpected first item: %+v", first)
	}
	if first.Body != "Sizes: S<M<L\nRich" || first.BodyHTML != "<p>Sizes: S&lt;M&lt;L<br>Rich</p>" {
		t.Fatalf("unexpected body rendering: %q / %q", first.Body, first.BodyHTML)
	}
	if first.Price == nil || first.Price.Label != "¥1,500 (tax incl.)" || first.Price.TaxMode != "included" {
		t.Fatalf("unexpected price: %+v", first.Price)
	}
	if !first.Carousel.LoopSingleVideo || len(first.Carousel.Slides) != 1 || first.Carousel.Slides[0].Kind != "video" {
		t.Fatalf("expected single looping video, got %+v", first.Carousel)
	}
	if !first.Carousel.Autoplay || first.Carousel.AutoplayIntervalMs != 3500 {
		t.Fatalf("unexpected carousel timing: %+v", first.Carousel)
	}

	second := body.Items[1]
	if second.BodyHTML != "" {
		t.Fatalf("empty body must not render html, got %q", second.BodyHTML)
	}
	if second.Price != nil {
		t.Fatalf("expected no price, got %+v", second.Price)
	}
	if len(second.Carousel.Slides) != 1 || second.Carousel.Slides[0].Locator != testFallback.Locator {
		t.Fatalf("expected fallback slide, got %+v", second.Carousel.Slides)
	}
}

func TestPublicCatalogHandlers_LanguageResolution(t *testing.T) {
	cases := []struct {
		name   string
		query  string
		header string
		want   domain.Language
	}{
		{name: "default", want: domain.CanonicalLanguage},
		{name: "query wins", query: "ko", header: "fr", want: domain.LangKorean},
		{name: "accept language", header: "fr-CA,fr;q=0.9", want: domain.LangFrench},
		{name: "unsupported", header: "sw", want: domain.CanonicalLanguage},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubCatalogService{}
			router := newPublicRouter(svc, nil)

			target := "/items"
			if tc.query != "" {
				target += "?lang=" + tc.query
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			if tc.header != "" {
				req.Header.Set("Accept-Language", tc.header)
			}
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			if rr.Code != http.StatusOK {
				t.Fatalf("expected status 200, got %d", rr.Code)
			}
			if svc.lastLang != tc.want {
				t.Fatalf("expected lang %s, got %s", tc.want, svc.lastLang)
			}
		})
	}
}

func TestPublicCatalogHandlers_GetItem(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		svc := &stubCatalogService{
			item: services.LocalizedItem{
				Item: services.CatalogItem{ID: "item-7"},
				Lang: domain.CanonicalLanguage,
				Text: services.LocalizedText{Title: "抹茶"},
			},
		}
		router := newPublicRouter(svc, nil)

		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/items/item-7", nil))

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
		if svc.lastItemID != "item-7" {
			t.Fatalf("expected item-7, got %q", svc.lastItemID)
		}
	})

	t.Run("missing", func(t *testing.T) {
		svc := &stubCatalogService{err: services.ErrItemNotFound}
		router := newPublicRouter(svc, nil)

		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/items/ghost", nil))

		if rr.Code != http.StatusNotFound {
			t.Fatalf("expected status 404, got %d", rr.Code)
		}
	})
}

func TestPublicCatalogHandlers_ListCategories(t *testing.T) {
	first, second := 0, 1
	categories := &stubCategoryService{
		categories: []services.Category{
			{ID: "cat-1", Name: "お茶", Translations: map[services.Language]string{domain.LangEnglish: "Tea"}, Order: &first},
			{ID: "cat-2", Name: "和菓子", Order: &second},
		},
	}
	router := newPublicRouter(nil, categories)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/categories?lang=en", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var body struct {
		Categories []categoryResponse `json:"categories"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body.Categories) != 2 {
		t.Fatalf("expected 2 categories, got %d", len(body.Categories))
	}
	if body.Categories[0].Title != "Tea" {
		t.Fatalf("expected translated title, got %q", body.Categories[0].Title)
	}
	if body.Categories[1].Title != "和菓子" {
		t.Fatalf("expected canonical fallback, got %q", body.Categories[1].Title)
	}
}
