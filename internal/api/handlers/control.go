package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"agripal/internal/api"
	"agripal/internal/types"
)

// PumpSender forwards pump commands to the local device-control endpoint.
// Mirrors the concrete external.PumpClient method used here.
type PumpSender interface {
	Send(ctx context.Context, cmd types.PumpCommand) (*types.PumpResult, error)
}

// StructValidator validates tagged request structs. Satisfied by
// api.Validator.
type StructValidator interface {
	ValidateStruct(s any) error
}

// ControlHandler proxies device control commands.
type ControlHandler struct {
	pump      PumpSender
	validator StructValidator
	logger    *slog.Logger
}

// NewControlHandler creates a ControlHandler.
func NewControlHandler(pump PumpSender, v StructValidator, logger *slog.Logger) *ControlHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ControlHandler{
		pump:      pump,
		validator: v,
		logger:    logger,
	}
}

// RegisterRoutes mounts control routes on the provided chi.Router.
func (h *ControlHandler) RegisterRoutes(r chi.Router) {
	r.Route("/control", func(r chi.Router) {
		r.Post("/pump", h.Pump)
	})
}

// Pump handles POST /v1/control/pump.
//
// The action must be exactly ON or OFF. A reachable controller that reports
// failure ({"success": false}) is passed through as data; only transport
// and protocol failures become error responses.
func (h *ControlHandler) Pump(w http.ResponseWriter, r *http.Request) {
	var cmd types.PumpCommand
	if err := api.DecodeJSON(w, r, &cmd); err != nil {
		api.Error(w, r, err)
		return
	}

	if err := h.validator.ValidateStruct(cmd); err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) && appErr.Details != nil {
			if _, bad := appErr.Details["action"]; bad {
				api.Error(w, r, types.NewAppErrorWithDetails(
					types.ErrCodeValidationPumpAction,
					"action must be ON or OFF",
					err,
					appErr.Details,
				))
				return
			}
		}
		api.Error(w, r, err)
		return
	}

	result, err := h.pump.Send(r.Context(), cmd)
	if err != nil {
		api.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "pump command forwarded",
		"farm_id", cmd.FarmID,
		"device_id", cmd.DeviceID,
		"action", string(cmd.Action),
		"success", result.Success,
	)

	api.JSON(w, r, http.StatusOK, api.APIResponse{Data: result})
}
