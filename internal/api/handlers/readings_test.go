package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"agripal/internal/api"
	"agripal/internal/feed"
	"agripal/internal/types"
)

// --- Mock Feed ---

type mockFeed struct {
	snapshot feed.Snapshot
	summary  types.SummarySnapshot

	setRangeCalls []string
}

func (m *mockFeed) Snapshot(_ context.Context) feed.Snapshot { return m.snapshot }

func (m *mockFeed) Summary(_ context.Context, _ int) types.SummarySnapshot { return m.summary }

func (m *mockFeed) SetRange(_ context.Context, selector string) {
	m.setRangeCalls = append(m.setRangeCalls, selector)
}

// --- Helpers ---

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func makeReadingsRouter(h *ReadingsHandler) http.Handler {
	r := chi.NewRouter()
	r.Route("/v1", h.RegisterRoutes)
	return r
}

func testReading(id int64, ts time.Time, moisture float64) types.SensorReading {
	return types.SensorReading{
		ID:        id,
		DeviceID:  "sensor_1",
		FarmID:    "farm1",
		Timestamp: ts,
		Moisture:  &moisture,
		Status:    types.ReadingStatusNormal,
	}
}

// --- GetReadings Tests ---

func TestGetReadings_Success(t *testing.T) {
	now := time.Now().UTC()
	mf := &mockFeed{
		snapshot: feed.Snapshot{
			DeviceID: "sensor_1",
			Selector: feed.RangeDay,
			Readings: []types.SensorReading{
				testReading(2, now, 40),
				testReading(1, now.Add(-time.Minute), 42),
			},
			LastSeen: now,
		},
	}
	h := NewReadingsHandler(map[string]DeviceFeed{"sensor_1": mf}, quietLogger())
	router := makeReadingsRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/v1/devices/sensor_1/readings", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var resp struct {
		Data readingsPayload     `json:"data"`
		Meta *types.ResponseMeta `json:"meta"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if resp.Data.DeviceID != "sensor_1" {
		t.Errorf("expected device sensor_1, got %s", resp.Data.DeviceID)
	}
	if resp.Data.Range != feed.RangeDay {
		t.Errorf("expected range %s, got %s", feed.RangeDay, resp.Data.Range)
	}
	if resp.Data.Count != 2 || len(resp.Data.Readings) != 2 {
		t.Errorf("expected 2 readings, got count=%d len=%d", resp.Data.Count, len(resp.Data.Readings))
	}
	if resp.Meta != nil {
		t.Errorf("expected no meta on a healthy snapshot, got %+v", resp.Meta)
	}
}

func TestGetReadings_StalePollSurfacesWarning(t *testing.T) {
	mf := &mockFeed{
		snapshot: feed.Snapshot{
			DeviceID: "sensor_1",
			Selector: feed.RangeDay,
			Readings: []types.SensorReading{testReading(1, time.Now().UTC(), 40)},
			Err:      errors.New("connection refused"),
		},
	}
	h := NewReadingsHandler(map[string]DeviceFeed{"sensor_1": mf}, quietLogger())
	router := makeReadingsRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/v1/devices/sensor_1/readings", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	// A failed poll is a warning, never an error status.
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var resp struct {
		Data readingsPayload     `json:"data"`
		Meta *types.ResponseMeta `json:"meta"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if resp.Meta == nil || len(resp.Meta.Warnings) != 1 {
		t.Fatalf("expected one warning, got %+v", resp.Meta)
	}
	if resp.Meta.Warnings[0] != staleDataWarning {
		t.Errorf("unexpected warning: %s", resp.Meta.Warnings[0])
	}
	if len(resp.Data.Readings) != 1 {
		t.Errorf("expected held readings to still be served, got %d", len(resp.Data.Readings))
	}
}

func TestGetReadings_UnknownDevice(t *testing.T) {
	h := NewReadingsHandler(map[string]DeviceFeed{}, quietLogger())
	router := makeReadingsRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/v1/devices/ghost/readings", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}

	var resp api.APIErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Error.Code != string(types.ErrCodeNotFoundDevice) {
		t.Errorf("expected code %s, got %s", types.ErrCodeNotFoundDevice, resp.Error.Code)
	}
}

// --- GetSummary Tests ---

func TestGetSummary_Success(t *testing.T) {
	mf := &mockFeed{
		summary: types.SummarySnapshot{
			Available: true,
			Latest: &types.LatestReading{
				Moisture:    40,
				Temperature: 22,
				Humidity:    60,
				Status:      types.ReadingStatusNormal,
			},
			WindowAverages: &types.WindowAverages{Moisture: 41},
			MoistureTrend:  types.TrendDecreasing,
			DataPointCount: 15,
			WindowCount:    10,
		},
	}
	h := NewReadingsHandler(map[string]DeviceFeed{"sensor_1": mf}, quietLogger())
	router := makeReadingsRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/v1/devices/sensor_1/summary", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var resp struct {
		Data types.SummarySnapshot `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Data.Available {
		t.Error("expected summary to be available")
	}
	if resp.Data.MoistureTrend != types.TrendDecreasing {
		t.Errorf("expected decreasing trend, got %s", resp.Data.MoistureTrend)
	}
}

func TestGetSummary_EmptyData(t *testing.T) {
	mf := &mockFeed{
		summary: types.SummarySnapshot{
			Available: false,
			Message:   feed.NoDataMessage,
		},
	}
	h := NewReadingsHandler(map[string]DeviceFeed{"sensor_1": mf}, quietLogger())
	router := makeReadingsRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/v1/devices/sensor_1/summary", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	// Absence of data is a first-class state, not an error.
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var resp struct {
		Data types.SummarySnapshot `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Data.Available {
		t.Error("expected summary to be unavailable")
	}
	if resp.Data.Message != feed.NoDataMessage {
		t.Errorf("unexpected message: %s", resp.Data.Message)
	}
}

// --- SetRange Tests ---

func TestSetRange_Recognized(t *testing.T) {
	mf := &mockFeed{}
	h := NewReadingsHandler(map[string]DeviceFeed{"sensor_1": mf}, quietLogger())
	router := makeReadingsRouter(h)

	body, _ := json.Marshal(setRangeRequest{Range: feed.RangeMonth})
	req := httptest.NewRequest(http.MethodPut, "/v1/devices/sensor_1/range", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if len(mf.setRangeCalls) != 1 || mf.setRangeCalls[0] != feed.RangeMonth {
		t.Fatalf("expected one SetRange(%s) call, got %v", feed.RangeMonth, mf.setRangeCalls)
	}

	var resp struct {
		Data setRangePayload `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Data.Applied != feed.RangeMonth {
		t.Errorf("expected applied %s, got %s", feed.RangeMonth, resp.Data.Applied)
	}
}

func TestSetRange_UnrecognizedFallsBackToDefault(t *testing.T) {
	mf := &mockFeed{}
	h := NewReadingsHandler(map[string]DeviceFeed{"sensor_1": mf}, quietLogger())
	router := makeReadingsRouter(h)

	body, _ := json.Marshal(setRangeRequest{Range: "90d"})
	req := httptest.NewRequest(http.MethodPut, "/v1/devices/sensor_1/range", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	// Unrecognized selectors are accepted and resolve to the default.
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if len(mf.setRangeCalls) != 1 || mf.setRangeCalls[0] != "90d" {
		t.Fatalf("expected the raw selector to be forwarded, got %v", mf.setRangeCalls)
	}

	var resp struct {
		Data setRangePayload `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Data.Applied != feed.DefaultSelector {
		t.Errorf("expected applied %s, got %s", feed.DefaultSelector, resp.Data.Applied)
	}
}

func TestSetRange_MissingBody(t *testing.T) {
	mf := &mockFeed{}
	h := NewReadingsHandler(map[string]DeviceFeed{"sensor_1": mf}, quietLogger())
	router := makeReadingsRouter(h)

	req := httptest.NewRequest(http.MethodPut, "/v1/devices/sensor_1/range", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
	if len(mf.setRangeCalls) != 0 {
		t.Errorf("expected no SetRange calls, got %v", mf.setRangeCalls)
	}
}
