package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"agripal/internal/types"
)

// --- Mock Lister ---

type mockMediaLister struct {
	objects []types.MediaObject
	err     error

	lastPrefix string
	lastLimit  int
}

func (m *mockMediaLister) List(_ context.Context, prefix string, limit int) ([]types.MediaObject, error) {
	m.lastPrefix = prefix
	m.lastLimit = limit
	return m.objects, m.err
}

func makeMediaRouter(lister MediaLister) http.Handler {
	h := NewMediaHandler(lister, quietLogger())
	r := chi.NewRouter()
	r.Route("/v1", h.RegisterRoutes)
	return r
}

// --- Tests ---

func TestListMedia_Success(t *testing.T) {
	lister := &mockMediaLister{
		objects: []types.MediaObject{
			{Name: "cam/0002.jpg", Size: 2048, LastModified: time.Now().UTC(), PublicURL: "https://cdn.example.com/cam/0002.jpg"},
			{Name: "cam/0001.jpg", Size: 1024, LastModified: time.Now().UTC().Add(-time.Hour)},
		},
	}
	router := makeMediaRouter(lister)

	req := httptest.NewRequest(http.MethodGet, "/v1/media?prefix=cam/&limit=25", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if lister.lastPrefix != "cam/" {
		t.Errorf("expected prefix cam/, got %s", lister.lastPrefix)
	}
	if lister.lastLimit != 25 {
		t.Errorf("expected limit 25, got %d", lister.lastLimit)
	}

	var resp struct {
		Data mediaPayload `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Data.Count != 2 || len(resp.Data.Objects) != 2 {
		t.Errorf("expected 2 objects, got count=%d len=%d", resp.Data.Count, len(resp.Data.Objects))
	}
}

func TestListMedia_LimitCapped(t *testing.T) {
	lister := &mockMediaLister{}
	router := makeMediaRouter(lister)

	req := httptest.NewRequest(http.MethodGet, "/v1/media?limit=99999", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if lister.lastLimit != maxMediaLimit {
		t.Errorf("expected limit capped at %d, got %d", maxMediaLimit, lister.lastLimit)
	}
}

func TestListMedia_StorageFailure(t *testing.T) {
	lister := &mockMediaLister{
		err: types.NewAppError(types.ErrCodeUpstreamStorage, "object storage listing failed", nil),
	}
	router := makeMediaRouter(lister)

	req := httptest.NewRequest(http.MethodGet, "/v1/media", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected status 502, got %d", rec.Code)
	}
}
