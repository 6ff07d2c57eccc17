package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/tsuyoshi-3110/dslab571/internal/platform/requestctx"
)

func TestRequestLoggerGradesByStatus(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	handler := InjectLoggerMiddleware(zap.New(core))(
		TraceMiddleware("dslab")(
			RequestLoggerMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if requestctx.TraceID(r.Context()) == "" {
					t.Errorf("expected trace id on context")
				}
				w.WriteHeader(http.StatusNotFound)
			})),
		),
	)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/public/items/x", nil)
	req.Header.Set(cloudTraceHeader, "105445aa7843bc8bf206b12000100000/1;o=1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	entries := logs.FilterMessage("request completed").All()
	if len(entries) != 1 {
		t.Fatalf("expected one completion entry, got %d", len(entries))
	}
	if entries[0].Level != zapcore.WarnLevel {
		t.Fatalf("expected warn level for 404, got %s", entries[0].Level)
	}
	if got := entries[0].ContextMap()["status"]; got != int64(http.StatusNotFound) {
		t.Fatalf("expected status field 404, got %v", got)
	}
}

func TestRecoveryMiddlewareWritesEnvelope(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	handler := InjectLoggerMiddleware(zap.New(core))(
		RecoveryMiddleware()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("boom")
		})),
	)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "internal_server_error") {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
	if logs.FilterMessage("panic recovered").Len() != 1 {
		t.Fatalf("expected panic to be logged")
	}
}

func TestCloudTraceRoundTrip(t *testing.T) {
	sc, ok := parseCloudTrace("105445aa7843bc8bf206b12000100000/1;o=1")
	if !ok {
		t.Fatalf("expected header to parse")
	}
	if !sc.IsSampled() || sc.SpanID().String() != "0000000000000001" {
		t.Fatalf("unexpected span context %v", sc)
	}
	if _, ok := parseCloudTrace("garbage"); ok {
		t.Fatalf("expected malformed header to be rejected")
	}

	got := formatCloudTrace(requestctx.TraceInfo{TraceID: "105445aa7843bc8bf206b12000100000", SpanID: "00000000000000ff", Sampled: true})
	if got != "105445aa7843bc8bf206b12000100000/255;o=1" {
		t.Fatalf("unexpected header %q", got)
	}
}
