package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func TestInsightsHandler_RejectsUnauthenticated(t *testing.T) {
	h := NewInsightsHandler(nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/insights", nil)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 for a request with no user in context", rec.Code)
	}
}

func TestInsightsHandler_RejectsUnknownPeriod(t *testing.T) {
	h := NewInsightsHandler(nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/insights?period=decade", nil)
	req = WithUserID(req, uuid.New())
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422 for an invalid period", rec.Code)
	}
}
