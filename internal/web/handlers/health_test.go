package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

type fakeChecker bool

func (c fakeChecker) IsAvailable(ctx context.Context) bool {
	return bool(c)
}

func TestHealthReportsServiceAvailability(t *testing.T) {
	h := NewHealthHandler(map[string]AvailabilityChecker{
		"detect":  fakeChecker(true),
		"diarize": fakeChecker(true),
		"asr":     fakeChecker(false),
	})

	rec := httptest.NewRecorder()
	h.Get(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	assertStatusCode(t, rec, http.StatusOK)

	var result struct {
		Status   string          `json:"status"`
		Services map[string]bool `json:"services"`
	}
	parseJSONResponse(t, rec, &result)

	if result.Status != "ok" {
		t.Errorf("status = %q", result.Status)
	}
	if !result.Services["detect"] || !result.Services["diarize"] {
		t.Errorf("services = %+v, want detect and diarize up", result.Services)
	}
	if result.Services["asr"] {
		t.Error("asr reported available")
	}
}

func TestHealthWithoutCheckers(t *testing.T) {
	h := NewHealthHandler(nil)

	rec := httptest.NewRecorder()
	h.Get(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	assertStatusCode(t, rec, http.StatusOK)
}
