package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/tsuyoshi-3110/dslab571/internal/platform/auth"
	"github.com/tsuyoshi-3110/dslab571/internal/platform/httpx"
	"github.com/tsuyoshi-3110/dslab571/internal/platform/requestctx"
	"github.com/tsuyoshi-3110/dslab571/internal/services"
)

const (
	maxAdminJSONBody     = 64 * 1024
	defaultMaxUploadBody = 64 << 20
	multipartMemory      = 8 << 20
)

// AdminCatalogHandlers exposes editor endpoints for items and categories.
type AdminCatalogHandlers struct {
	authn          *auth.Authenticator
	catalog        services.CatalogService
	categories     services.CategoryService
	maxUploadBytes int64
}

// AdminCatalogOption customises AdminCatalogHandlers.
type AdminCatalogOption func(*AdminCatalogHandlers)

// WithMaxUploadBytes caps the multipart body of item saves.
func WithMaxUploadBytes(limit int64) AdminCatalogOption {
	return func(h *AdminCatalogHandlers) {
		if limit > 0 {
			h.maxUploadBytes = limit
		}
	}
}

// NewAdminCatalogHandlers constructs admin catalog handlers.
func NewAdminCatalogHandlers(authn *auth.Authenticator, catalog services.CatalogService, categories services.CategoryService, opts ...AdminCatalogOption) *AdminCatalogHandlers {
	h := &AdminCatalogHandlers{
		authn:          authn,
		catalog:        catalog,
		categories:     categories,
		maxUploadBytes: defaultMaxUploadBody,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers admin endpoints.
func (h *AdminCatalogHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth(auth.RoleAdmin, auth.RoleEditor))
	}
	r.Post("/items", h.createItem)
	r.Post("/items:reorder", h.reorderItems)
	r.Put("/items/{itemID}", h.updateItem)
	r.Delete("/items/{itemID}", h.deleteItem)
	r.Post("/categories", h.createCategory)
	r.Post("/categories:reorder", h.reorderCategories)
	r.Delete("/categories/{categoryID}", h.deleteCategory)
}

type adminPriceResponse struct {
	Amount      float64 `json:"amount"`
	TaxIncluded bool    `json:"taxIncluded"`
}

type adminTextResponse struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type adminItemResponse struct {
	ID               string                       `json:"id"`
	Title            string                       `json:"title"`
	Body             string                       `json:"body"`
	Translations     map[string]adminTextResponse `json:"translations"`
	Price            *adminPriceResponse          `json:"price"`
	CategoryID       string                       `json:"categoryId,omitempty"`
	MediaURL         string                       `json:"mediaUrl,omitempty"`
	MediaType        string                       `json:"mediaType,omitempty"`
	OriginalFileName string                       `json:"originalFileName,omitempty"`
	Order            *int                         `json:"order,omitempty"`
	CreatedAt        string                       `json:"createdAt,omitempty"`
	UpdatedAt        string                       `json:"updatedAt,omitempty"`
}

type adminCategoryResponse struct {
	ID           string            `json:"id"`
	Title        string            `json:"title"`
	Translations map[string]string `json:"translations"`
	Order        *int              `json:"order,omitempty"`
	CreatedAt    string            `json:"createdAt,omitempty"`
}

type reorderRequest struct {
	IDs []string `json:"ids"`
}

type createCategoryRequest struct {
	Title string `json:"title"`
}

func (h *AdminCatalogHandlers) createItem(w http.ResponseWriter, r *http.Request) {
	h.saveItem(w, r, "")
}

func (h *AdminCatalogHandlers) updateItem(w http.ResponseWriter, r *http.Request) {
	itemID := strings.TrimSpace(chi.URLParam(r, "itemID"))
	if itemID == "" {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "item id is required", http.StatusBadRequest))
		return
	}
	h.saveItem(w, r, itemID)
}

func (h *AdminCatalogHandlers) saveItem(w http.ResponseWriter, r *http.Request, itemID string) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}
	capability, ok := editorCapability(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "upload exceeds the size limit", http.StatusRequestEntityTooLarge))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "multipart form expected", http.StatusBadRequest))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	cmd := services.SaveItemCommand{
		ItemID:      itemID,
		Title:       r.FormValue("title"),
		Body:        r.FormValue("body"),
		PriceInput:  r.FormValue("price"),
		TaxIncluded: parseFormBool(r.FormValue("taxIncluded"), true),
		CategoryID:  r.FormValue("categoryId"),
	}

	file, header, err := r.FormFile("media")
	switch {
	case err == nil:
		defer file.Close()
		cmd.Media = mediaUpload(file, header)
		cmd.Progress = uploadProgressLogger(requestctx.Logger(ctx), itemID)
	case errors.Is(err, http.ErrMissingFile):
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "unable to read media file", http.StatusBadRequest))
		return
	}

	item, err := h.catalog.SaveItem(ctx, capability, cmd)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	status := http.StatusOK
	if itemID == "" {
		status = http.StatusCreated
	}
	httpx.WriteJSON(w, status, newAdminItemResponse(item))
}

func (h *AdminCatalogHandlers) deleteItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}
	capability, ok := editorCapability(w, r)
	if !ok {
		return
	}
	itemID := strings.TrimSpace(chi.URLParam(r, "itemID"))
	if itemID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "item id is required", http.StatusBadRequest))
		return
	}
	if err := h.catalog.DeleteItem(ctx, capability, itemID); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminCatalogHandlers) reorderItems(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}
	capability, ok := editorCapability(w, r)
	if !ok {
		return
	}
	var req reorderRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	if err := h.catalog.ReorderItems(ctx, capability, req.IDs); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminCatalogHandlers) createCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.categories == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "category service unavailable", http.StatusServiceUnavailable))
		return
	}
	capability, ok := editorCapability(w, r)
	if !ok {
		return
	}
	var req createCategoryRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	category, err := h.categories.CreateCategory(ctx, capability, req.Title)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, newAdminCategoryResponse(category))
}

func (h *AdminCatalogHandlers) reorderCategories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.categories == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "category service unavailable", http.StatusServiceUnavailable))
		return
	}
	capability, ok := editorCapability(w, r)
	if !ok {
		return
	}
	var req reorderRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	if err := h.categories.ReorderCategories(ctx, capability, req.IDs); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminCatalogHandlers) deleteCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.categories == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "category service unavailable", http.StatusServiceUnavailable))
		return
	}
	capability, ok := editorCapability(w, r)
	if !ok {
		return
	}
	categoryID := strings.TrimSpace(chi.URLParam(r, "categoryID"))
	if err := h.categories.DeleteCategory(ctx, capability, categoryID); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// editorCapability converts the authenticated identity into an EditorCapability. An
// identity without an editor role yields the zero capability, which services reject.
func editorCapability(w http.ResponseWriter, r *http.Request) (services.EditorCapability, bool) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(r.Context(), w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return services.EditorCapability{}, false
	}
	if !identity.CanEditCatalog() {
		return services.EditorCapability{}, true
	}
	return services.GrantEditor(identity.UID), true
}

func mediaUpload(file multipart.File, header *multipart.FileHeader) *services.MediaUpload {
	return &services.MediaUpload{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	}
}

func uploadProgressLogger(logger *zap.Logger, itemID string) func(int) {
	lastQuarter := -1
	return func(percent int) {
		quarter := percent / 25
		if quarter <= lastQuarter {
			return
		}
		lastQuarter = quarter
		logger.Debug("media upload progress", zap.String("itemId", itemID), zap.Int("percent", percent))
	}
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxAdminJSONBody)
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func parseFormBool(raw string, fallback bool) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	if raw == "on" {
		return true
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return value
}

func newAdminItemResponse(item services.CatalogItem) adminItemResponse {
	resp := adminItemResponse{
		ID:               item.ID,
		Title:            item.Canonical.Title,
		Body:             item.Canonical.Body,
		Translations:     make(map[string]adminTextResponse, len(item.Translations)),
		CategoryID:       item.CategoryID,
		MediaURL:         item.MediaLocator(),
		OriginalFileName: item.OriginalFileName,
		Order:            item.Order,
		CreatedAt:        formatTime(item.CreatedAt),
		UpdatedAt:        formatTime(item.LastModified),
	}
	for lang, text := range item.Translations {
		resp.Translations[string(lang)] = adminTextResponse{Title: text.Title, Body: text.Body}
	}
	if item.PrimarySlide != nil {
		resp.MediaType = string(item.PrimarySlide.Kind)
	} else if len(item.Media) > 0 {
		resp.MediaType = string(item.Media[0].Kind)
	}
	if item.Price != nil {
		resp.Price = &adminPriceResponse{Amount: item.Price.Amount, TaxIncluded: item.Price.TaxMode.Included()}
	}
	return resp
}

func newAdminCategoryResponse(category services.Category) adminCategoryResponse {
	resp := adminCategoryResponse{
		ID:           category.ID,
		Title:        category.Name,
		Translations: make(map[string]string, len(category.Translations)),
		Order:        category.Order,
		CreatedAt:    formatTime(category.CreatedAt),
	}
	for lang, title := range category.Translations {
		resp.Translations[string(lang)] = title
	}
	return resp
}
