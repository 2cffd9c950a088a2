package feed

import (
	"context"
	"log/slog"
	"time"

	"agripal/internal/types"
)

// Snapshot is a consistent view of one feed's state, copied out of the run
// goroutine. Err carries the last poll failure; it is nil whenever the most
// recent poll succeeded.
type Snapshot struct {
	DeviceID string
	Selector string
	Readings []types.SensorReading
	LastSeen time.Time
	Err      error
}

// Recorder receives feed activity counters. Satisfied by
// monitoring.Metrics; a nil Recorder disables recording.
type Recorder interface {
	PollCompleted(deviceID string, err error)
	IncrementalFetch(deviceID string, merged int)
}

// FeedConfig holds the configuration for creating a Feed.
type FeedConfig struct {
	DeviceID     string
	FarmID       string
	Selector     string // initial range selector, DefaultSelector if empty
	Interval     time.Duration
	MaxHeld      int
	QueryTimeout time.Duration

	Store    types.ReadingStore
	Clock    types.Clock
	Logger   *slog.Logger
	Recorder Recorder
}

// Feed owns the held working set for one (device, selector) pair and keeps
// it fresh: an immediate poll on startup, a fixed-period poll loop, and
// coalesced incremental fetches driven by realtime push signals.
//
// All state lives on the run goroutine. The exported methods communicate
// with it over channels and are safe for concurrent use; they return zero
// values after the feed has stopped.
type Feed struct {
	cfg    FeedConfig
	store  types.ReadingStore
	clock  types.Clock
	logger *slog.Logger

	refresh  chan struct{}        // coalesced FetchNew signal, capacity 1
	commands chan func(*feedState) // serialized state operations
	done     chan struct{}        // closed when the run loop exits
}

// NewFeed creates a Feed. Start it with Run.
func NewFeed(cfg FeedConfig) *Feed {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = types.RealClock{}
	}
	if cfg.Selector == "" {
		cfg.Selector = DefaultSelector
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	return &Feed{
		cfg:      cfg,
		store:    cfg.Store,
		clock:    clock,
		logger:   logger.With("device_id", cfg.DeviceID),
		refresh:  make(chan struct{}, 1),
		commands: make(chan func(*feedState)),
		done:     make(chan struct{}),
	}
}

// Run drives the feed until ctx is cancelled. It polls once immediately,
// then on every tick; push signals trigger incremental fetches between
// ticks. Run blocks and always returns nil, so it slots directly into an
// errgroup.
func (f *Feed) Run(ctx context.Context) error {
	defer close(f.done)

	state := &feedState{
		selector: f.cfg.Selector,
		rs:       newResultSet(f.cfg.MaxHeld),
	}

	f.poll(ctx, state)

	ticker := time.NewTicker(f.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			f.logger.InfoContext(ctx, "feed stopped")
			return nil
		case <-ticker.C:
			f.poll(ctx, state)
		case <-f.refresh:
			f.fetchNew(ctx, state)
		case op := <-f.commands:
			op(state)
			if state.resetPending {
				state.resetPending = false
				state.rs = newResultSet(f.cfg.MaxHeld)
				state.lastErr = nil
				f.poll(ctx, state)
				ticker.Reset(f.cfg.Interval)
			}
		}
	}
}

// feedState is the run goroutine's private state.
type feedState struct {
	selector     string
	rs           *resultSet
	lastErr      error
	resetPending bool
}

// poll replaces the held sequence with a fresh range query. Failures keep
// the previous sequence and record the error; the next tick retries.
func (f *Feed) poll(ctx context.Context, state *feedState) {
	qctx := ctx
	if f.cfg.QueryTimeout > 0 {
		var cancel context.CancelFunc
		qctx, cancel = context.WithTimeout(ctx, f.cfg.QueryTimeout)
		defer cancel()
	}

	cutoff := ResolveRange(state.selector, f.clock.Now())
	readings, err := f.store.ListSince(qctx, f.cfg.DeviceID, cutoff, state.rs.maxSize)
	if f.cfg.Recorder != nil {
		f.cfg.Recorder.PollCompleted(f.cfg.DeviceID, err)
	}
	if err != nil {
		state.lastErr = err
		f.logger.WarnContext(ctx, "poll failed, keeping previous readings",
			"selector", state.selector,
			"error", err,
		)
		return
	}

	state.rs.replace(readings)
	state.lastErr = nil
	f.logger.DebugContext(ctx, "poll complete",
		"selector", state.selector,
		"count", len(readings),
	)
}

// fetchNew merges rows newer than the last seen timestamp. A feed that has
// never completed a non-empty poll has no reference point, so the signal is
// ignored rather than triggering an unbounded fetch. Errors are logged and
// swallowed; the held sequence stays as-is.
func (f *Feed) fetchNew(ctx context.Context, state *feedState) {
	if state.rs.lastSeen.IsZero() {
		return
	}

	qctx := ctx
	if f.cfg.QueryTimeout > 0 {
		var cancel context.CancelFunc
		qctx, cancel = context.WithTimeout(ctx, f.cfg.QueryTimeout)
		defer cancel()
	}

	newer, err := f.store.ListAfter(qctx, f.cfg.DeviceID, state.rs.lastSeen)
	if err != nil {
		f.logger.WarnContext(ctx, "incremental fetch failed",
			"error", err,
		)
		return
	}
	if len(newer) == 0 {
		return
	}

	state.rs.mergeNew(newer)
	if f.cfg.Recorder != nil {
		f.cfg.Recorder.IncrementalFetch(f.cfg.DeviceID, len(newer))
	}
	f.logger.DebugContext(ctx, "merged new readings",
		"count", len(newer),
	)
}

// SignalNewData requests an incremental fetch. Signals arriving while one is
// already pending coalesce into a single fetch. Safe to call from any
// goroutine, including MQTT callbacks.
func (f *Feed) SignalNewData() {
	select {
	case f.refresh <- struct{}{}:
	default:
	}
}

// SetRange switches the feed to a new range selector. A change drops the
// held sequence and error state and polls immediately; setting the current
// selector again is a no-op.
func (f *Feed) SetRange(ctx context.Context, selector string) {
	f.do(ctx, func(state *feedState) {
		if selector == state.selector {
			return
		}
		state.selector = selector
		state.resetPending = true
	})
}

// Snapshot returns a copy of the feed's current state. It returns the zero
// Snapshot when the feed has stopped or ctx expires first.
func (f *Feed) Snapshot(ctx context.Context) Snapshot {
	var snap Snapshot
	f.do(ctx, func(state *feedState) {
		snap = Snapshot{
			DeviceID: f.cfg.DeviceID,
			Selector: state.selector,
			Readings: state.rs.snapshot(),
			LastSeen: state.rs.lastSeen,
			Err:      state.lastErr,
		}
	})
	return snap
}

// Summary derives the summary statistics for the current held sequence.
func (f *Feed) Summary(ctx context.Context, windowSize int) types.SummarySnapshot {
	snap := f.Snapshot(ctx)
	return Summarize(snap.Readings, windowSize, f.clock.Now())
}

// do runs op on the feed goroutine and waits for it to complete.
func (f *Feed) do(ctx context.Context, op func(*feedState)) {
	applied := make(chan struct{})
	wrapped := func(state *feedState) {
		op(state)
		close(applied)
	}

	select {
	case f.commands <- wrapped:
	case <-f.done:
		return
	case <-ctx.Done():
		return
	}

	select {
	case <-applied:
	case <-f.done:
	}
}
