package alerts

import (
	"context"
	"log/slog"
	"time"

	"agripal/internal/feed"
	"agripal/internal/types"
)

// MonitoredFeed is the feed surface the monitor evaluates. Mirrors the
// concrete feed.Feed methods used here.
type MonitoredFeed interface {
	Snapshot(ctx context.Context) feed.Snapshot
	Summary(ctx context.Context, windowSize int) types.SummarySnapshot
}

// MonitorConfig holds the configuration for creating a Monitor.
type MonitorConfig struct {
	Feed     MonitoredFeed
	Notifier *Notifier
	DeviceID string
	Interval time.Duration
	Logger   *slog.Logger
}

// Monitor re-evaluates the threshold conditions against the dashboard feed
// at a fixed cadence. Connectivity is derived from the feed itself: a feed
// whose most recent poll failed counts as disconnected.
type Monitor struct {
	cfg    MonitorConfig
	logger *slog.Logger
}

// NewMonitor creates a Monitor. Start it with Run.
func NewMonitor(cfg MonitorConfig) *Monitor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	return &Monitor{
		cfg:    cfg,
		logger: logger.With("device_id", cfg.DeviceID),
	}
}

// Run evaluates once immediately, then on every tick until ctx is
// cancelled. Run blocks and always returns nil, so it slots directly into
// an errgroup.
func (m *Monitor) Run(ctx context.Context) error {
	m.evaluate(ctx)

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.InfoContext(ctx, "alert monitor stopping")
			return nil
		case <-ticker.C:
			m.evaluate(ctx)
		}
	}
}

func (m *Monitor) evaluate(ctx context.Context) {
	snap := m.cfg.Feed.Snapshot(ctx)
	summary := m.cfg.Feed.Summary(ctx, feed.DefaultWindowSize)
	connected := snap.Err == nil

	m.cfg.Notifier.Evaluate(ctx, summary, m.cfg.DeviceID, connected)
}
