package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"agripal/internal/types"
)

// Notification titles. The cooldown scan keys on these, so changing one
// changes the dedup behavior.
const (
	TitleAIIrrigation    = "AI Irrigation Alert"
	TitleLowMoisture     = "Low Soil Moisture Alert"
	TitleHighTemperature = "High Temperature Alert"
	TitleDisconnected    = "Sensor Connection Lost"
)

// Recorder receives notifier activity counters. Satisfied by
// monitoring.Metrics; nil disables recording.
type Recorder interface {
	NotificationCreated(notifType string)
	GenerationFallback()
}

// NotifierConfig holds the configuration for creating a Notifier.
type NotifierConfig struct {
	Center    *Center
	Sink      types.NotificationSink // best-effort persistence, may be nil
	Generator types.TextGenerator    // AI message text, may be nil

	LowMoistureCooldown  time.Duration
	HighTempCooldown     time.Duration
	DisconnectedCooldown time.Duration

	FarmID   string
	Clock    types.Clock
	Logger   *slog.Logger
	Recorder Recorder
}

// Notifier inspects the latest reading and connection state after each feed
// refresh and raises at most one notification per condition per cooldown
// window. Each condition moves Idle to Cooling-down when it fires; it falls
// back to Idle purely by elapsed time, determined by scanning the existing
// notification list rather than keeping separate timer state.
type Notifier struct {
	cfg    NotifierConfig
	center *Center
	clock  types.Clock
	logger *slog.Logger
}

// NewNotifier creates a Notifier. Zero cooldowns get the documented
// defaults.
func NewNotifier(cfg NotifierConfig) *Notifier {
	if cfg.LowMoistureCooldown <= 0 {
		cfg.LowMoistureCooldown = time.Hour
	}
	if cfg.HighTempCooldown <= 0 {
		cfg.HighTempCooldown = 3 * time.Hour
	}
	if cfg.DisconnectedCooldown <= 0 {
		cfg.DisconnectedCooldown = 30 * time.Minute
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = types.RealClock{}
	}
	return &Notifier{
		cfg:    cfg,
		center: cfg.Center,
		clock:  clock,
		logger: logger,
	}
}

// Evaluate runs the three condition checks against a summary snapshot.
// Nothing fires when the snapshot is unavailable: an empty held set says
// nothing about the field, and firing on absence of data would alarm on
// every fresh range switch.
func (n *Notifier) Evaluate(ctx context.Context, summary types.SummarySnapshot, deviceID string, connected bool) {
	if !summary.Available || summary.Latest == nil {
		return
	}
	latest := summary.Latest

	if latest.Moisture < types.LowMoistureThresholdPct {
		n.checkLowMoisture(ctx, latest.Moisture, deviceID)
	}

	if latest.Temperature > types.HighTemperatureThresholdC {
		n.checkHighTemperature(ctx, latest.Temperature, deviceID)
	}

	if !connected {
		n.checkDisconnected(ctx, deviceID)
	}
}

// checkLowMoisture fires the irrigation reminder. The message text comes
// from the generation collaborator; when that fails, a fixed template is
// substituted and the notification is tagged "sensor" instead of "ai".
// Generation failure never blocks creation.
//
// The cooldown scan matches both variants so a failed generation does not
// re-fire on the next evaluation.
func (n *Notifier) checkLowMoisture(ctx context.Context, moisture float64, deviceID string) {
	cooling := n.coolingDown(n.cfg.LowMoistureCooldown, func(existing types.Notification) bool {
		return existing.Type == types.NotificationAI ||
			strings.Contains(existing.Title, "Soil Moisture")
	})
	if cooling {
		return
	}

	notif := types.Notification{
		ID:         uuid.NewString(),
		Type:       types.NotificationAI,
		Priority:   types.PriorityHigh,
		Title:      TitleAIIrrigation,
		CreatedAt:  n.clock.Now(),
		ActionLink: "/ai-assistant",
		DeviceID:   deviceID,
		FarmID:     n.cfg.FarmID,
	}

	message, err := n.generateIrrigationMessage(ctx, moisture)
	if err != nil {
		n.logger.WarnContext(ctx, "irrigation message generation failed, using fallback",
			"moisture", moisture,
			"error", err,
		)
		if n.cfg.Recorder != nil {
			n.cfg.Recorder.GenerationFallback()
		}
		notif.Type = types.NotificationSensor
		notif.Title = TitleLowMoisture
		notif.ActionLink = ""
		notif.Message = fmt.Sprintf("Critical: Soil moisture at %.0f%%. Immediate irrigation recommended!", moisture)
	} else {
		notif.Message = message
	}

	n.emit(ctx, notif)
}

func (n *Notifier) checkHighTemperature(ctx context.Context, temp float64, deviceID string) {
	cooling := n.coolingDown(n.cfg.HighTempCooldown, func(existing types.Notification) bool {
		return strings.Contains(existing.Title, "Temperature")
	})
	if cooling {
		return
	}

	n.emit(ctx, types.Notification{
		ID:        uuid.NewString(),
		Type:      types.NotificationWeather,
		Priority:  types.PriorityMedium,
		Title:     TitleHighTemperature,
		Message:   fmt.Sprintf("Temperature is %.0f°C (above %.0f°C). Increased evaporation expected. Monitor soil moisture closely.", temp, types.HighTemperatureThresholdC),
		CreatedAt: n.clock.Now(),
		DeviceID:  deviceID,
		FarmID:    n.cfg.FarmID,
	})
}

func (n *Notifier) checkDisconnected(ctx context.Context, deviceID string) {
	cooling := n.coolingDown(n.cfg.DisconnectedCooldown, func(existing types.Notification) bool {
		return existing.Title == TitleDisconnected
	})
	if cooling {
		return
	}

	n.emit(ctx, types.Notification{
		ID:        uuid.NewString(),
		Type:      types.NotificationSystem,
		Priority:  types.PriorityHigh,
		Title:     TitleDisconnected,
		Message:   "Cannot reach sensors. Please check your connection.",
		CreatedAt: n.clock.Now(),
		DeviceID:  deviceID,
		FarmID:    n.cfg.FarmID,
	})
}

// coolingDown reports whether an unexpired notification of the condition
// already exists.
func (n *Notifier) coolingDown(cooldown time.Duration, match func(types.Notification) bool) bool {
	newest, found := n.center.newestMatching(match)
	if !found {
		return false
	}
	return n.clock.Now().Sub(newest) < cooldown
}

// emit adds the notification to the center and persists it best-effort.
// A failed write is logged and otherwise ignored; the audit trail is not
// the source of truth for the live session.
func (n *Notifier) emit(ctx context.Context, notif types.Notification) {
	n.center.Add(notif)
	if n.cfg.Recorder != nil {
		n.cfg.Recorder.NotificationCreated(string(notif.Type))
	}
	n.logger.InfoContext(ctx, "notification created",
		"notification_id", notif.ID,
		"type", string(notif.Type),
		"priority", string(notif.Priority),
		"title", notif.Title,
	)

	if n.cfg.Sink == nil {
		return
	}
	if err := n.cfg.Sink.Insert(ctx, &notif); err != nil {
		n.logger.WarnContext(ctx, "notification persistence failed",
			"notification_id", notif.ID,
			"error", err,
		)
	}
}

// generateIrrigationMessage asks the text-generation collaborator for a
// short, personable irrigation reminder.
func (n *Notifier) generateIrrigationMessage(ctx context.Context, moisture float64) (string, error) {
	if n.cfg.Generator == nil {
		return "", fmt.Errorf("no text generator configured")
	}

	prompt := fmt.Sprintf(`You are AgriPal AI, a friendly agricultural assistant.

CURRENT SITUATION:
- Soil moisture: %.0f%%
- Status: Critical (below %.0f%% threshold)
- Farmer needs to irrigate soon

Create a SHORT, funny, and personalized notification (max 2 sentences) to remind the farmer to water their crops. Make it engaging and not boring. Be creative but clear about the urgency.`,
		moisture, types.LowMoistureThresholdPct)

	message, err := n.cfg.Generator.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(message) == "" {
		return "", fmt.Errorf("generator returned empty message")
	}
	return message, nil
}
