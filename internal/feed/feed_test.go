package feed

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"agripal/internal/types"
)

// mockReadingStore is an in-memory ReadingStore with scriptable results.
type mockReadingStore struct {
	mu sync.Mutex

	sinceResult []types.SensorReading
	sinceErr    error
	sinceCalls  int
	lastCutoff  time.Time
	lastLimit   int

	afterResult []types.SensorReading
	afterErr    error
	afterCalls  int
	lastAfterTS time.Time
}

func (m *mockReadingStore) ListSince(_ context.Context, _ string, cutoff time.Time, limit int) ([]types.SensorReading, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sinceCalls++
	m.lastCutoff = cutoff
	m.lastLimit = limit
	if m.sinceErr != nil {
		return nil, m.sinceErr
	}
	return m.sinceResult, nil
}

func (m *mockReadingStore) ListAfter(_ context.Context, _ string, ts time.Time) ([]types.SensorReading, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.afterCalls++
	m.lastAfterTS = ts
	if m.afterErr != nil {
		return nil, m.afterErr
	}
	return m.afterResult, nil
}

func (m *mockReadingStore) set(fn func(*mockReadingStore)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m)
}

// fixedClock returns a constant instant.
type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

func newTestFeed(store types.ReadingStore, now time.Time) *Feed {
	return NewFeed(FeedConfig{
		DeviceID: "sensor_1",
		FarmID:   "farm1",
		Interval: time.Hour, // ticks never fire during a test
		MaxHeld:  100,
		Store:    store,
		Clock:    fixedClock{now: now},
		Logger:   quietLogger(),
	})
}

// waitFor polls the feed snapshot until cond holds or the deadline passes.
func waitFor(t *testing.T, feed *Feed, cond func(Snapshot) bool) Snapshot {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		snap := feed.Snapshot(context.Background())
		if cond(snap) {
			return snap
		}
		time.Sleep(5 * time.Millisecond)
	}
	snap := feed.Snapshot(context.Background())
	t.Fatalf("condition not reached; last snapshot: %+v", snap)
	return snap
}

func TestFeed_InitialPollReplacesHeldSet(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &mockReadingStore{
		sinceResult: []types.SensorReading{
			rsReading(2, now),
			rsReading(1, now.Add(-time.Hour)),
		},
	}
	feed := newTestFeed(store, now)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = feed.Run(ctx) }()

	snap := waitFor(t, feed, func(s Snapshot) bool { return len(s.Readings) == 2 })

	if snap.Err != nil {
		t.Errorf("unexpected error state: %v", snap.Err)
	}
	if !snap.LastSeen.Equal(now) {
		t.Errorf("LastSeen = %v, want %v", snap.LastSeen, now)
	}
	if !store.lastCutoff.Equal(now.Add(-24 * time.Hour)) {
		t.Errorf("cutoff = %v, want 24h default", store.lastCutoff)
	}
	if store.lastLimit != 100 {
		t.Errorf("limit = %d, want 100", store.lastLimit)
	}
}

func TestFeed_PollFailurePreservesState(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &mockReadingStore{
		sinceResult: []types.SensorReading{
			rsReading(5, now),
			rsReading(4, now.Add(-time.Minute)),
			rsReading(3, now.Add(-2*time.Minute)),
		},
	}
	feed := newTestFeed(store, now)
	state := &feedState{selector: RangeDay, rs: newResultSet(100)}

	feed.poll(context.Background(), state)
	if len(state.rs.readings) != 3 || state.lastErr != nil {
		t.Fatalf("setup poll failed: %d readings, err %v", len(state.rs.readings), state.lastErr)
	}
	lastSeen := state.rs.lastSeen

	store.set(func(m *mockReadingStore) { m.sinceErr = errors.New("connection reset") })
	feed.poll(context.Background(), state)

	want := []int64{5, 4, 3}
	if got := ids(state.rs.readings); !equalIDs(got, want) {
		t.Errorf("held IDs after failed poll = %v, want %v", got, want)
	}
	if state.lastErr == nil {
		t.Error("expected the error to be recorded")
	}
	if !state.rs.lastSeen.Equal(lastSeen) {
		t.Errorf("lastSeen moved on failure: %v", state.rs.lastSeen)
	}

	// The next successful poll clears the error.
	store.set(func(m *mockReadingStore) { m.sinceErr = nil })
	feed.poll(context.Background(), state)
	if state.lastErr != nil {
		t.Errorf("error state not cleared on success: %v", state.lastErr)
	}
}

func TestFeed_SetRangeResetsAndRepolls(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &mockReadingStore{sinceErr: errors.New("sensors unreachable")}
	feed := newTestFeed(store, now)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = feed.Run(ctx) }()

	waitFor(t, feed, func(s Snapshot) bool { return s.Err != nil })

	// Recover the store and switch ranges; the reset drops the error state
	// and polls the new range immediately.
	store.set(func(m *mockReadingStore) {
		m.sinceErr = nil
		m.sinceResult = []types.SensorReading{rsReading(1, now)}
	})
	feed.SetRange(context.Background(), RangeMonth)

	snap := waitFor(t, feed, func(s Snapshot) bool { return s.Err == nil && len(s.Readings) == 1 })
	if snap.Selector != RangeMonth {
		t.Errorf("selector = %q, want %q", snap.Selector, RangeMonth)
	}
	if !store.lastCutoff.Equal(now.Add(-28 * 24 * time.Hour)) {
		t.Errorf("cutoff = %v, want 4w range", store.lastCutoff)
	}
}

func TestFeed_SignalMergesNewReadings(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &mockReadingStore{
		sinceResult: []types.SensorReading{
			rsReading(5, now.Add(-1*time.Minute)),
			rsReading(4, now.Add(-2*time.Minute)),
			rsReading(3, now.Add(-3*time.Minute)),
		},
	}
	feed := newTestFeed(store, now)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = feed.Run(ctx) }()

	waitFor(t, feed, func(s Snapshot) bool { return len(s.Readings) == 3 })

	store.set(func(m *mockReadingStore) {
		m.afterResult = []types.SensorReading{
			rsReading(7, now.Add(time.Minute)),
			rsReading(6, now),
		}
	})
	feed.SignalNewData()

	snap := waitFor(t, feed, func(s Snapshot) bool { return len(s.Readings) == 5 })
	want := []int64{7, 6, 5, 4, 3}
	if got := ids(snap.Readings); !equalIDs(got, want) {
		t.Errorf("merged IDs = %v, want %v", got, want)
	}
	if !store.lastAfterTS.Equal(now.Add(-1 * time.Minute)) {
		t.Errorf("incremental query ts = %v, want previous lastSeen", store.lastAfterTS)
	}
	if !snap.LastSeen.Equal(now.Add(time.Minute)) {
		t.Errorf("LastSeen = %v, want advanced", snap.LastSeen)
	}
}

func TestFeed_SignalBeforeFirstDataIsIgnored(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &mockReadingStore{} // initial poll returns no rows
	feed := newTestFeed(store, now)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = feed.Run(ctx) }()

	waitFor(t, feed, func(s Snapshot) bool { return s.Err == nil })

	feed.SignalNewData()

	// Give the loop a moment to absorb the signal, then confirm no
	// unbounded fetch happened.
	time.Sleep(50 * time.Millisecond)
	store.mu.Lock()
	calls := store.afterCalls
	store.mu.Unlock()
	if calls != 0 {
		t.Errorf("ListAfter called %d times without a lastSeen reference", calls)
	}
}

func TestFeed_IncrementalErrorLeavesHeldSet(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &mockReadingStore{
		sinceResult: []types.SensorReading{rsReading(1, now)},
		afterErr:    errors.New("timeout"),
	}
	feed := newTestFeed(store, now)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = feed.Run(ctx) }()

	waitFor(t, feed, func(s Snapshot) bool { return len(s.Readings) == 1 })

	feed.SignalNewData()
	waitFor(t, feed, func(s Snapshot) bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return store.afterCalls > 0
	})

	snap := feed.Snapshot(context.Background())
	if len(snap.Readings) != 1 || snap.Readings[0].ID != 1 {
		t.Errorf("held set changed after failed incremental fetch: %v", ids(snap.Readings))
	}
	if snap.Err != nil {
		t.Errorf("incremental errors are swallowed, got surfaced error %v", snap.Err)
	}
}

func TestFeed_SummaryFromHeldSet(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &mockReadingStore{
		sinceResult: []types.SensorReading{
			reading(2, now, f(20), f(30), f(60)),
			reading(1, now.Add(-time.Hour), f(40), f(28), f(62)),
		},
	}
	feed := newTestFeed(store, now)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = feed.Run(ctx) }()

	waitFor(t, feed, func(s Snapshot) bool { return len(s.Readings) == 2 })

	summary := feed.Summary(context.Background(), DefaultWindowSize)
	if !summary.Available {
		t.Fatal("expected available summary")
	}
	if summary.Latest.Moisture != 20 {
		t.Errorf("latest moisture = %v, want 20", summary.Latest.Moisture)
	}
	if summary.MoistureTrend != types.TrendDecreasing {
		t.Errorf("trend = %q, want decreasing", summary.MoistureTrend)
	}
}
