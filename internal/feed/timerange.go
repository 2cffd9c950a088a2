// Package feed maintains the bounded, newest-first working set of recent
// sensor readings for one device and time range, and derives summary
// statistics from it.
//
// Each Feed owns its state on a single goroutine. Timer ticks, push-triggered
// incremental fetches, and range changes are all serialized through that
// goroutine, so a full poll and an incremental fetch can never interleave
// their read-merge-write sequences.
package feed

import "time"

// Recognized range selectors. Anything else resolves like RangeDay.
const (
	RangeDay   = "24h"
	RangeWeek  = "1w"
	RangeMonth = "4w"
)

// DefaultSelector is the range applied when none has been chosen yet.
const DefaultSelector = RangeDay

// ResolveRange maps a symbolic range selector to the absolute cutoff instant
// relative to now. Unrecognized selectors fall back to the 24-hour range;
// that is the documented default, not an error.
func ResolveRange(selector string, now time.Time) time.Time {
	switch selector {
	case RangeWeek:
		return now.Add(-7 * 24 * time.Hour)
	case RangeMonth:
		return now.Add(-28 * 24 * time.Hour)
	default:
		return now.Add(-24 * time.Hour)
	}
}
