package handlers

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/tsuyoshi-3110/dslab571/internal/platform/httpx"
	"github.com/tsuyoshi-3110/dslab571/internal/platform/requestctx"
	"github.com/tsuyoshi-3110/dslab571/internal/services"
)

// writeServiceError maps service errors onto the JSON error envelope.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	var storageErr *services.StorageError
	switch {
	case errors.Is(err, services.ErrValidation):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrEditorCapabilityRequired):
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "editor role required", http.StatusForbidden))
	case errors.Is(err, services.ErrItemNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("item_not_found", "catalog item not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCategoryNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("category_not_found", "category not found", http.StatusNotFound))
	case errors.As(err, &storageErr):
		requestctx.Logger(ctx).Error("storage failure", zap.String("op", storageErr.Op), zap.Error(storageErr.Err))
		httpx.WriteError(ctx, w, httpx.NewError("storage_failure", "saving failed, please try again", http.StatusBadGateway))
	case errors.Is(err, context.DeadlineExceeded):
		httpx.WriteError(ctx, w, httpx.NewError("timeout", "request timed out", http.StatusGatewayTimeout))
	case errors.Is(err, context.Canceled):
		httpx.WriteError(ctx, w, httpx.NewError("request_cancelled", "request cancelled", 499))
	default:
		requestctx.Logger(ctx).Error("unexpected service error", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "internal server error", http.StatusInternalServerError))
	}
}
