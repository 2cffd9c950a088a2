package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"agripal/internal/api"
	"agripal/internal/feed"
	"agripal/internal/types"
)

// maxConversationTurns caps how many prior turns are rendered into the
// prompt for context.
const maxConversationTurns = 6

// SummaryFeed provides the current sensor summary rendered into assistant
// prompts.
type SummaryFeed interface {
	Summary(ctx context.Context, windowSize int) types.SummarySnapshot
}

// AssistantHandler answers farmer questions grounded in current sensor
// data. Answers and questions are persisted to the chat table best-effort;
// persistence is skipped silently when the request carries no user identity.
type AssistantHandler struct {
	summaries SummaryFeed
	generator types.TextGenerator
	chats     types.ChatStore
	clock     types.Clock
	logger    *slog.Logger

	deviceID string
	farmID   string
}

// NewAssistantHandler creates an AssistantHandler. The deviceID and farmID
// scope persisted chat rows to the dashboard device.
func NewAssistantHandler(
	summaries SummaryFeed,
	generator types.TextGenerator,
	chats types.ChatStore,
	clock types.Clock,
	logger *slog.Logger,
	deviceID, farmID string,
) *AssistantHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	return &AssistantHandler{
		summaries: summaries,
		generator: generator,
		chats:     chats,
		clock:     clock,
		logger:    logger,
		deviceID:  deviceID,
		farmID:    farmID,
	}
}

// RegisterRoutes mounts assistant routes on the provided chi.Router.
func (h *AssistantHandler) RegisterRoutes(r chi.Router) {
	r.Route("/assistant", func(r chi.Router) {
		r.Post("/chat", h.Chat)
	})
}

// chatRequest is the request body for POST /v1/assistant/chat.
type chatRequest struct {
	Message string `json:"message" validate:"required"`
	// History carries the client's recent conversation turns for context.
	History []chatTurn `json:"history,omitempty"`
}

// chatTurn is one prior conversation turn supplied by the client.
type chatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatPayload is the response body for POST /v1/assistant/chat.
type chatPayload struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Chat handles POST /v1/assistant/chat.
func (h *AssistantHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := api.DecodeJSON(w, r, &req); err != nil {
		api.Error(w, r, err)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		api.Error(w, r, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"message is required",
			nil,
		))
		return
	}

	summary := h.summaries.Summary(r.Context(), feed.DefaultWindowSize)
	prompt := buildAssistantPrompt(summary, req.History, req.Message)

	answer, err := h.generator.Generate(r.Context(), prompt)
	if err != nil {
		api.Error(w, r, err)
		return
	}

	now := h.clock.Now()

	// Persist both turns best-effort; generation already succeeded, so a
	// storage failure must not turn the response into an error.
	h.persistTurn(r.Context(), types.RoleUser, req.Message, now)
	h.persistTurn(r.Context(), types.RoleAssistant, answer, now)

	api.JSON(w, r, http.StatusOK, api.APIResponse{Data: chatPayload{
		ID:        uuid.NewString(),
		Role:      string(types.RoleAssistant),
		Message:   answer,
		Timestamp: now,
	}})
}

// persistTurn writes one conversation turn to the chat store. It skips
// silently when no user identity is present on the context, and logs
// without failing on storage errors.
func (h *AssistantHandler) persistTurn(ctx context.Context, role types.ChatRole, content string, ts time.Time) {
	if h.chats == nil {
		return
	}

	userID := types.GetUserID(ctx)
	if userID == "" {
		return
	}

	msg := &types.ChatMessage{
		ID:        uuid.NewString(),
		UserID:    userID,
		DeviceID:  h.deviceID,
		FarmID:    h.farmID,
		Role:      role,
		Content:   content,
		Timestamp: ts,
	}

	if err := h.chats.Insert(ctx, msg); err != nil {
		h.logger.WarnContext(ctx, "chat persistence failed",
			"role", string(role),
			"error", err,
		)
	}
}

// buildAssistantPrompt renders the sensor summary, recent conversation, and
// the current question into a single generation prompt.
func buildAssistantPrompt(summary types.SummarySnapshot, history []chatTurn, question string) string {
	var b strings.Builder

	b.WriteString("You are AgriPal AI, an expert agricultural assistant helping farmers optimize their irrigation and crop management.\n\n")
	b.WriteString("CURRENT SENSOR DATA:\n")

	if summary.Available && summary.Latest != nil {
		fmt.Fprintf(&b, "Latest Reading (%s):\n", summary.Latest.Timestamp.Format("2006-01-02 15:04 MST"))
		fmt.Fprintf(&b, "- Soil Moisture: %.1f%%\n", summary.Latest.Moisture)
		fmt.Fprintf(&b, "- Temperature: %.1fC\n", summary.Latest.Temperature)
		fmt.Fprintf(&b, "- Humidity: %.1f%%\n", summary.Latest.Humidity)
		fmt.Fprintf(&b, "- Status: %s\n", summary.Latest.Status)

		if summary.WindowAverages != nil {
			fmt.Fprintf(&b, "\nRecent Averages (last %d readings):\n", summary.WindowCount)
			fmt.Fprintf(&b, "- Avg Moisture: %.1f%%\n", summary.WindowAverages.Moisture)
			fmt.Fprintf(&b, "- Avg Temperature: %.1fC\n", summary.WindowAverages.Temperature)
			fmt.Fprintf(&b, "- Avg Humidity: %.1f%%\n", summary.WindowAverages.Humidity)
		}

		fmt.Fprintf(&b, "\nMoisture trend: %s\n", summary.MoistureTrend)
		fmt.Fprintf(&b, "Data collected over: %d hours (%d readings)\n",
			summary.ObservedSpanHours, summary.DataPointCount)
	} else {
		b.WriteString(summary.Message)
		b.WriteString("\n")
	}

	if len(history) > 0 {
		turns := history
		if len(turns) > maxConversationTurns {
			turns = turns[len(turns)-maxConversationTurns:]
		}
		b.WriteString("\nRECENT CONVERSATION:\n")
		for _, turn := range turns {
			speaker := "AgriPal"
			if turn.Role == string(types.RoleUser) {
				speaker = "User"
			}
			fmt.Fprintf(&b, "%s: %s\n", speaker, turn.Content)
		}
	}

	b.WriteString("\nCURRENT QUESTION:\n")
	b.WriteString(question)
	b.WriteString("\n\nPlease provide a helpful, specific answer based on the sensor data. Include actionable recommendations when appropriate. Keep responses concise but informative.")

	return b.String()
}
