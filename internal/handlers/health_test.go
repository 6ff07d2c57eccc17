package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tsuyoshi-3110/dslab571/internal/domain"
	"github.com/tsuyoshi-3110/dslab571/internal/services"
)

type stubSystemService struct {
	report services.HealthReport
	err    error
}

func (s *stubSystemService) HealthReport(context.Context) (services.HealthReport, error) {
	return s.report, s.err
}

func TestHealthHandlersHealthz(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := start.Add(30 * time.Second)
	handlers := NewHealthHandlers(
		WithHealthBuildInfo(BuildInfo{
			Version:     "1.0.0",
			CommitSHA:   "abc123",
			Environment: "prod",
			StartedAt:   start,
		}),
		WithHealthClock(func() time.Time { return now }),
	)

	rr := httptest.NewRecorder()
	handlers.Healthz(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body["status"] != domain.HealthStatusOK {
		t.Fatalf("expected status ok, got %v", body["status"])
	}
	if body["version"] != "1.0.0" || body["commitSha"] != "abc123" || body["environment"] != "prod" {
		t.Fatalf("unexpected build info %v", body)
	}
	if body["uptime"] != "30s" {
		t.Fatalf("expected uptime 30s, got %v", body["uptime"])
	}
}

type readyzBody struct {
	Status string `json:"status"`
	Checks map[string]struct {
		Status string `json:"status"`
		Detail string `json:"detail"`
	} `json:"checks"`
	Details []string `json:"details"`
}

func TestHealthHandlersReadyz(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 1, 0, 0, time.UTC)
	cases := []struct {
		name       string
		report     services.HealthReport
		wantStatus int
		wantDetail int
	}{
		{
			name: "healthy",
			report: services.HealthReport{
				Status:      domain.HealthStatusOK,
				GeneratedAt: now,
				Dependencies: map[string]domain.DependencyHealth{
					"firestore": {Status: domain.HealthStatusOK, Latency: 10 * time.Millisecond, CheckedAt: now},
				},
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "degraded keeps serving",
			report: services.HealthReport{
				Status: domain.HealthStatusDegraded,
				Dependencies: map[string]domain.DependencyHealth{
					"firestore": {Status: domain.HealthStatusOK},
					"storage":   {Status: domain.HealthStatusError, Detail: "timeout"},
				},
			},
			wantStatus: http.StatusOK,
			wantDetail: 1,
		},
		{
			name: "critical failure",
			report: services.HealthReport{
				Status: domain.HealthStatusError,
				Dependencies: map[string]domain.DependencyHealth{
					"firestore": {Status: domain.HealthStatusError, Detail: "unavailable"},
				},
			},
			wantStatus: http.StatusServiceUnavailable,
			wantDetail: 1,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handlers := NewHealthHandlers(
				WithHealthSystemService(&stubSystemService{report: tc.report}),
				WithHealthClock(func() time.Time { return now }),
			)
			rr := httptest.NewRecorder()
			handlers.Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			if rr.Code != tc.wantStatus {
				t.Fatalf("expected status %d, got %d", tc.wantStatus, rr.Code)
			}
			var body readyzBody
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatalf("failed to parse response: %v", err)
			}
			if body.Status != tc.report.Status {
				t.Fatalf("expected status %s, got %s", tc.report.Status, body.Status)
			}
			if len(body.Details) != tc.wantDetail {
				t.Fatalf("expected %d details, got %v", tc.wantDetail, body.Details)
			}
			if len(body.Checks) != len(tc.report.Dependencies) {
				t.Fatalf("expected %d checks, got %d", len(tc.report.Dependencies), len(body.Checks))
			}
		})
	}
}

func TestHealthHandlersReadyzServiceError(t *testing.T) {
	handlers := NewHealthHandlers(WithHealthSystemService(&stubSystemService{err: errors.New("boom")}))
	rr := httptest.NewRecorder()
	handlers.Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
}
