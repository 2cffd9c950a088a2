package types

import (
	"time"
)

// SensorReading is one observation reported by one field device at one
// instant. Readings are created by the ingest pipeline and are read-only to
// the aggregation layer; they are never mutated or deleted here.
//
// Moisture, Temperature and Humidity are pointers because older firmware
// revisions omit fields they do not measure. See feed.Summarize for how
// absent values participate in window averages.
type SensorReading struct {
	ID          int64         `json:"id" db:"id"`
	DeviceID    string        `json:"device_id" db:"device_id"`
	FarmID      string        `json:"farm_id" db:"farm_id"`
	Timestamp   time.Time     `json:"timestamp" db:"timestamp"`
	Moisture    *float64      `json:"moisture,omitempty" db:"moisture"`
	Temperature *float64      `json:"temperature,omitempty" db:"temperature"`
	Humidity    *float64      `json:"humidity,omitempty" db:"humidity"`
	RawValue    float64       `json:"raw_value" db:"raw_value"`
	Status      ReadingStatus `json:"status" db:"status"`
	CreatedAt   time.Time     `json:"created_at" db:"created_at"`
}

// LatestReading is the newest reading's metric fields as exposed in a
// SummarySnapshot.
type LatestReading struct {
	Moisture    float64       `json:"moisture"`
	Temperature float64       `json:"temperature"`
	Humidity    float64       `json:"humidity"`
	Status      ReadingStatus `json:"status"`
	Timestamp   time.Time     `json:"timestamp"`
}

// WindowAverages holds the arithmetic means over the most recent window of
// readings.
type WindowAverages struct {
	Moisture    float64 `json:"moisture"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
}

// SummarySnapshot is the derived statistics view over a held result set.
// It is recomputed on every request and never cached across fetches; it is a
// pure function of the readings it was computed from.
//
// When Available is false, Message explains why and no other field is
// populated. Callers must treat absence of data as a first-class state, not
// an error.
type SummarySnapshot struct {
	Available bool   `json:"available"`
	Message   string `json:"message,omitempty"`

	Latest            *LatestReading  `json:"latest,omitempty"`
	WindowAverages    *WindowAverages `json:"window_averages,omitempty"`
	MoistureTrend     TrendDirection  `json:"moisture_trend,omitempty"`
	DataPointCount    int             `json:"data_point_count"`
	WindowCount       int             `json:"window_count"`
	ObservedSpanHours int             `json:"observed_span_hours"`
}

// Notification is a user-facing alert record. Notifications live in memory
// for the running session; creation is additionally persisted to the
// notifications table as a best-effort audit trail.
type Notification struct {
	ID         string           `json:"id" db:"id"`
	Type       NotificationType `json:"type" db:"type"`
	Priority   Priority         `json:"priority" db:"priority"`
	Title      string           `json:"title" db:"title"`
	Message    string           `json:"message" db:"message"`
	CreatedAt  time.Time        `json:"created_at" db:"created_at"`
	Read       bool             `json:"read" db:"read"`
	ActionLink string           `json:"action_link,omitempty" db:"action_link"`

	DeviceID string `json:"device_id,omitempty" db:"device_id"`
	FarmID   string `json:"farm_id,omitempty" db:"farm_id"`
}

// NotificationFilter selects a subset of the in-memory notification list.
// The zero value matches everything.
type NotificationFilter struct {
	UnreadOnly bool             `json:"unread_only,omitempty"`
	Type       NotificationType `json:"type,omitempty"`
}

// ChatMessage is one turn of the assistant conversation. Persisted to the
// chat table when a user identity is present, skipped silently otherwise.
type ChatMessage struct {
	ID        string    `json:"id" db:"message_id"`
	UserID    string    `json:"user_id,omitempty" db:"user_id"`
	DeviceID  string    `json:"device_id" db:"device_id"`
	FarmID    string    `json:"farm_id" db:"farm_id"`
	Role      ChatRole  `json:"role" db:"role"`
	Content   string    `json:"message" db:"message"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
}

// PumpCommand is the payload forwarded to the local device-control endpoint.
type PumpCommand struct {
	FarmID   string     `json:"farm_id" validate:"required"`
	DeviceID string     `json:"device_id" validate:"required"`
	Action   PumpAction `json:"action" validate:"required,oneof=ON OFF"`
}

// PumpResult is the device-control endpoint's response.
type PumpResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// ResponseMeta contains non-blocking metadata returned with API responses.
// Warnings carry degraded-mode indicators, such as a feed serving readings
// held from before a failed poll cycle.
type ResponseMeta struct {
	Warnings []string `json:"warnings,omitempty"`
}

// MediaObject describes one stored camera/media file.
type MediaObject struct {
	Name         string    `json:"name"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
	PublicURL    string    `json:"public_url"`
}
