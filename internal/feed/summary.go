package feed

import (
	"time"

	"agripal/internal/types"
)

// DefaultWindowSize is the number of newest readings the averages and trend
// are computed over.
const DefaultWindowSize = 10

// NoDataMessage is returned on the snapshot when the held set is empty.
const NoDataMessage = "No sensor data available for this range yet."

// Summarize derives a SummarySnapshot from a held sequence of readings.
// The input must be newest-first. It is a pure function: identical input
// yields identical output, and nothing is cached between calls.
//
// An empty input is a first-class state, not an error: the snapshot comes
// back with Available false and an explanatory message.
//
// Averages sum absent field values as zero while dividing by the full window
// length, so devices that omit a field pull that field's average toward
// zero. This matches the behavior the field team has been calibrating
// against and is kept intentionally.
func Summarize(readings []types.SensorReading, windowSize int, now time.Time) types.SummarySnapshot {
	if len(readings) == 0 {
		return types.SummarySnapshot{
			Available: false,
			Message:   NoDataMessage,
		}
	}

	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	n := windowSize
	if len(readings) < n {
		n = len(readings)
	}
	window := readings[:n]

	var sumMoisture, sumTemp, sumHumidity float64
	for _, r := range window {
		sumMoisture += deref(r.Moisture)
		sumTemp += deref(r.Temperature)
		sumHumidity += deref(r.Humidity)
	}
	div := float64(n)

	latest := readings[0]

	trend := types.TrendIncreasing
	if deref(window[0].Moisture) > deref(window[n-1].Moisture) {
		trend = types.TrendDecreasing
	}

	oldest := readings[len(readings)-1]
	span := int(now.Sub(oldest.Timestamp).Hours())

	return types.SummarySnapshot{
		Available: true,
		Latest: &types.LatestReading{
			Moisture:    deref(latest.Moisture),
			Temperature: deref(latest.Temperature),
			Humidity:    deref(latest.Humidity),
			Status:      latest.Status,
			Timestamp:   latest.Timestamp,
		},
		WindowAverages: &types.WindowAverages{
			Moisture:    sumMoisture / div,
			Temperature: sumTemp / div,
			Humidity:    sumHumidity / div,
		},
		MoistureTrend:     trend,
		DataPointCount:    len(readings),
		WindowCount:       n,
		ObservedSpanHours: span,
	}
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
