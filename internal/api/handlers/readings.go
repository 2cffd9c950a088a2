// Package handlers contains the HTTP handler implementations for the
// AgriPal API. Each handler depends on locally defined interfaces rather
// than concrete implementations, keeping handlers testable with small
// in-package fakes.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"agripal/internal/api"
	"agripal/internal/feed"
	"agripal/internal/types"
)

// staleDataWarning is attached to response meta when the most recent poll
// failed and the feed is serving readings held from before the failure.
const staleDataWarning = "most recent poll failed; serving last known readings"

// DeviceFeed is the per-device reading feed consumed by the readings
// handler. Mirrors the concrete feed.Feed methods used here.
type DeviceFeed interface {
	Snapshot(ctx context.Context) feed.Snapshot
	Summary(ctx context.Context, windowSize int) types.SummarySnapshot
	SetRange(ctx context.Context, selector string)
}

// ReadingsHandler serves the held reading sets and derived summaries for
// the registered devices.
type ReadingsHandler struct {
	feeds  map[string]DeviceFeed
	logger *slog.Logger
}

// NewReadingsHandler creates a ReadingsHandler over the given device feeds,
// keyed by device ID.
func NewReadingsHandler(feeds map[string]DeviceFeed, logger *slog.Logger) *ReadingsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReadingsHandler{
		feeds:  feeds,
		logger: logger,
	}
}

// RegisterRoutes mounts device reading routes on the provided chi.Router.
func (h *ReadingsHandler) RegisterRoutes(r chi.Router) {
	r.Route("/devices/{deviceID}", func(r chi.Router) {
		r.Get("/readings", h.GetReadings)
		r.Get("/summary", h.GetSummary)
		r.Put("/range", h.SetRange)
	})
}

// readingsPayload is the response body for GET /v1/devices/{id}/readings.
type readingsPayload struct {
	DeviceID string                `json:"device_id"`
	Range    string                `json:"range"`
	LastSeen *time.Time            `json:"last_seen,omitempty"`
	Count    int                   `json:"count"`
	Readings []types.SensorReading `json:"readings"`
}

// setRangeRequest is the request body for PUT /v1/devices/{id}/range.
type setRangeRequest struct {
	Range string `json:"range" validate:"required"`
}

// setRangePayload echoes the requested selector and the range it resolves
// to. An unrecognized selector is accepted and resolves to the default.
type setRangePayload struct {
	DeviceID string `json:"device_id"`
	Range    string `json:"range"`
	Applied  string `json:"applied"`
}

// GetReadings handles GET /v1/devices/{deviceID}/readings.
//
// Returns the feed's held working set as-is: newest first, bounded, possibly
// held over from before a failed poll. A failed last poll is surfaced as a
// response meta warning, never as an error status.
func (h *ReadingsHandler) GetReadings(w http.ResponseWriter, r *http.Request) {
	f, err := h.lookup(r)
	if err != nil {
		api.Error(w, r, err)
		return
	}

	snap := f.Snapshot(r.Context())

	payload := readingsPayload{
		DeviceID: snap.DeviceID,
		Range:    snap.Selector,
		Count:    len(snap.Readings),
		Readings: snap.Readings,
	}
	if payload.Readings == nil {
		payload.Readings = []types.SensorReading{}
	}
	if !snap.LastSeen.IsZero() {
		ls := snap.LastSeen
		payload.LastSeen = &ls
	}

	var meta *types.ResponseMeta
	if snap.Err != nil {
		meta = &types.ResponseMeta{Warnings: []string{staleDataWarning}}
	}

	api.JSON(w, r, http.StatusOK, api.APIResponse{Data: payload, Meta: meta})
}

// GetSummary handles GET /v1/devices/{deviceID}/summary.
//
// The optional "window" query parameter overrides the aggregation window
// size; invalid or missing values use the default of the ten most recent
// readings.
func (h *ReadingsHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	f, err := h.lookup(r)
	if err != nil {
		api.Error(w, r, err)
		return
	}

	windowSize := feed.DefaultWindowSize
	if raw := r.URL.Query().Get("window"); raw != "" {
		if parsed, perr := strconv.Atoi(raw); perr == nil && parsed > 0 {
			windowSize = parsed
		}
	}

	summary := f.Summary(r.Context(), windowSize)

	api.JSON(w, r, http.StatusOK, api.APIResponse{Data: summary})
}

// SetRange handles PUT /v1/devices/{deviceID}/range.
//
// A selector outside the recognized set is not rejected; it resolves to the
// default 24-hour range, matching the feed's own fallback. The feed discards
// its held set and re-polls under the new range before the next tick.
func (h *ReadingsHandler) SetRange(w http.ResponseWriter, r *http.Request) {
	f, err := h.lookup(r)
	if err != nil {
		api.Error(w, r, err)
		return
	}

	var req setRangeRequest
	if err := api.DecodeJSON(w, r, &req); err != nil {
		api.Error(w, r, err)
		return
	}
	if req.Range == "" {
		api.Error(w, r, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"range is required",
			nil,
		))
		return
	}

	f.SetRange(r.Context(), req.Range)

	applied := req.Range
	switch req.Range {
	case feed.RangeDay, feed.RangeWeek, feed.RangeMonth:
	default:
		applied = feed.DefaultSelector
	}

	h.logger.InfoContext(r.Context(), "range selector updated",
		"device_id", chi.URLParam(r, "deviceID"),
		"range", req.Range,
		"applied", applied,
	)

	api.JSON(w, r, http.StatusOK, api.APIResponse{Data: setRangePayload{
		DeviceID: chi.URLParam(r, "deviceID"),
		Range:    req.Range,
		Applied:  applied,
	}})
}

// lookup resolves the {deviceID} URL parameter to a registered feed.
func (h *ReadingsHandler) lookup(r *http.Request) (DeviceFeed, error) {
	deviceID := chi.URLParam(r, "deviceID")
	f, ok := h.feeds[deviceID]
	if !ok {
		return nil, types.NewAppError(
			types.ErrCodeNotFoundDevice,
			"no feed registered for device "+deviceID,
			nil,
		)
	}
	return f, nil
}
