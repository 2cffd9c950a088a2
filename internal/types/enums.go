package types

import "fmt"

// ReadingStatus is the device-reported health tag on a sensor reading.
// The ingest path treats this as a closed set: readings carrying an
// unrecognized tag are rejected at scan time rather than propagated.
type ReadingStatus string

const (
	ReadingStatusNormal   ReadingStatus = "normal"
	ReadingStatusLow      ReadingStatus = "low"
	ReadingStatusCritical ReadingStatus = "critical"
	ReadingStatusOffline  ReadingStatus = "offline"
)

// ParseReadingStatus validates a raw status tag against the known set.
func ParseReadingStatus(s string) (ReadingStatus, error) {
	switch ReadingStatus(s) {
	case ReadingStatusNormal, ReadingStatusLow, ReadingStatusCritical, ReadingStatusOffline:
		return ReadingStatus(s), nil
	}
	return "", fmt.Errorf("unrecognized reading status %q", s)
}

// TrendDirection is the two-point moisture trend over the summary window.
type TrendDirection string

const (
	TrendIncreasing TrendDirection = "increasing"
	TrendDecreasing TrendDirection = "decreasing"
)

// NotificationType identifies the kind of notification.
type NotificationType string

const (
	NotificationSensor     NotificationType = "sensor"
	NotificationWeather    NotificationType = "weather"
	NotificationIrrigation NotificationType = "irrigation"
	NotificationSystem     NotificationType = "system"
	NotificationAI         NotificationType = "ai"
)

// ParseNotificationType validates a raw type tag against the known set.
func ParseNotificationType(s string) (NotificationType, error) {
	switch NotificationType(s) {
	case NotificationSensor, NotificationWeather, NotificationIrrigation,
		NotificationSystem, NotificationAI:
		return NotificationType(s), nil
	}
	return "", fmt.Errorf("unrecognized notification type %q", s)
}

// Priority determines notification display prominence.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ChatRole identifies the author of an assistant conversation turn.
type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

// PumpAction is the requested pump state for the device-control endpoint.
type PumpAction string

const (
	PumpOn  PumpAction = "ON"
	PumpOff PumpAction = "OFF"
)

// Alert condition thresholds. These mirror the values the field team
// calibrated for capacitive moisture probes and the local climate.
const (
	// LowMoistureThresholdPct fires the irrigation reminder below this value.
	LowMoistureThresholdPct = 25.0

	// HighTemperatureThresholdC fires the evaporation warning above this value.
	HighTemperatureThresholdC = 35.0
)
