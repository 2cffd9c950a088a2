package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"agripal/internal/api"
	"agripal/internal/types"
)

// maxMediaLimit caps the number of media objects returned per request.
const maxMediaLimit = 200

// MediaLister lists stored camera/media objects. Mirrors the concrete
// storage.MediaStore method used here.
type MediaLister interface {
	List(ctx context.Context, prefix string, limit int) ([]types.MediaObject, error)
}

// MediaHandler serves media object listings.
type MediaHandler struct {
	media  MediaLister
	logger *slog.Logger
}

// NewMediaHandler creates a MediaHandler.
func NewMediaHandler(media MediaLister, logger *slog.Logger) *MediaHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &MediaHandler{
		media:  media,
		logger: logger,
	}
}

// RegisterRoutes mounts media routes on the provided chi.Router.
func (h *MediaHandler) RegisterRoutes(r chi.Router) {
	r.Get("/media", h.List)
}

// mediaPayload is the response body for GET /v1/media.
type mediaPayload struct {
	Objects []types.MediaObject `json:"objects"`
	Count   int                 `json:"count"`
}

// List handles GET /v1/media.
//
// Query parameters:
//   - prefix=<p>  limits the listing to keys under the prefix.
//   - limit=<n>   caps the number of objects returned (bounded).
func (h *MediaHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := 0
	if raw := q.Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxMediaLimit {
		limit = maxMediaLimit
	}

	objects, err := h.media.List(r.Context(), q.Get("prefix"), limit)
	if err != nil {
		api.Error(w, r, err)
		return
	}
	if objects == nil {
		objects = []types.MediaObject{}
	}

	api.JSON(w, r, http.StatusOK, api.APIResponse{Data: mediaPayload{
		Objects: objects,
		Count:   len(objects),
	}})
}
