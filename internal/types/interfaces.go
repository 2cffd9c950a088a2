package types

import (
	"context"
	"time"
)

// ReadingStore is the queryable, time-ordered table of readings per device.
// Implemented by internal/db; consumed by the feed layer.
type ReadingStore interface {
	// ListSince returns readings for deviceID with timestamp >= cutoff,
	// ordered newest-first, at most limit rows.
	ListSince(ctx context.Context, deviceID string, cutoff time.Time, limit int) ([]SensorReading, error)

	// ListAfter returns readings for deviceID with timestamp strictly after
	// ts, ordered newest-first, unbounded.
	ListAfter(ctx context.Context, deviceID string, ts time.Time) ([]SensorReading, error)
}

// NotificationSink persists created notifications as a best-effort audit
// trail. Failures are logged by the caller and never block in-memory
// notification creation.
type NotificationSink interface {
	Insert(ctx context.Context, n *Notification) error
}

// ChatStore persists assistant conversation turns.
type ChatStore interface {
	Insert(ctx context.Context, m *ChatMessage) error
}

// TextGenerator is the hosted generative-text collaborator. Implementations
// must be safe for concurrent use.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the real system time (always UTC).
type RealClock struct{}

// Now returns the current time in UTC.
func (RealClock) Now() time.Time { return time.Now().UTC() }
