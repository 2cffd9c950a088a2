package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"agripal/internal/api"
	"agripal/internal/types"
)

// NotificationCenter is the in-memory notification list consumed by the
// notifications handler. Mirrors the concrete alerts.Center methods used
// here.
type NotificationCenter interface {
	List(filter types.NotificationFilter) []types.Notification
	UnreadCount() int
	MarkRead(id string) error
	MarkAllRead()
	Remove(id string) error
}

// NotificationsHandler exposes the notification center over HTTP.
type NotificationsHandler struct {
	center NotificationCenter
	logger *slog.Logger
}

// NewNotificationsHandler creates a NotificationsHandler.
func NewNotificationsHandler(center NotificationCenter, logger *slog.Logger) *NotificationsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotificationsHandler{
		center: center,
		logger: logger,
	}
}

// RegisterRoutes mounts notification routes on the provided chi.Router.
func (h *NotificationsHandler) RegisterRoutes(r chi.Router) {
	r.Route("/notifications", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/read-all", h.MarkAllRead)

		r.Route("/{id}", func(r chi.Router) {
			r.Post("/read", h.MarkRead)
			r.Delete("/", h.Remove)
		})
	})
}

// notificationsPayload is the response body for GET /v1/notifications.
type notificationsPayload struct {
	Notifications []types.Notification `json:"notifications"`
	UnreadCount   int                  `json:"unread_count"`
}

// List handles GET /v1/notifications.
//
// Query parameters:
//   - unread=true  limits the list to unread notifications.
//   - type=<tag>   limits the list to one notification type; an unknown
//     tag is a validation error, not an empty result.
func (h *NotificationsHandler) List(w http.ResponseWriter, r *http.Request) {
	var filter types.NotificationFilter

	q := r.URL.Query()
	if q.Get("unread") == "true" {
		filter.UnreadOnly = true
	}
	if raw := q.Get("type"); raw != "" {
		parsed, err := types.ParseNotificationType(raw)
		if err != nil {
			api.Error(w, r, types.NewAppError(
				types.ErrCodeValidationInvalidBody,
				err.Error(),
				err,
			))
			return
		}
		filter.Type = parsed
	}

	notifications := h.center.List(filter)
	if notifications == nil {
		notifications = []types.Notification{}
	}

	api.JSON(w, r, http.StatusOK, api.APIResponse{Data: notificationsPayload{
		Notifications: notifications,
		UnreadCount:   h.center.UnreadCount(),
	}})
}

// MarkRead handles POST /v1/notifications/{id}/read.
func (h *NotificationsHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.center.MarkRead(id); err != nil {
		api.Error(w, r, err)
		return
	}

	api.JSON(w, r, http.StatusOK, api.APIResponse{Data: map[string]any{
		"id":   id,
		"read": true,
	}})
}

// MarkAllRead handles POST /v1/notifications/read-all.
func (h *NotificationsHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	h.center.MarkAllRead()

	api.JSON(w, r, http.StatusOK, api.APIResponse{Data: map[string]any{
		"unread_count": h.center.UnreadCount(),
	}})
}

// Remove handles DELETE /v1/notifications/{id}.
func (h *NotificationsHandler) Remove(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.center.Remove(id); err != nil {
		api.Error(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
