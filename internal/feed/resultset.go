package feed

import (
	"time"

	"agripal/internal/types"
)

// DefaultMaxHeld is the retention cap when the configuration provides none.
const DefaultMaxHeld = 100

// resultSet is the held working set for one (device, selector) pair.
// Readings are kept newest-first and unique by ID; lastSeen is the newest
// timestamp observed at the last successful fetch and never moves backwards.
//
// resultSet is not safe for concurrent use. The owning Feed confines it to
// its run goroutine.
type resultSet struct {
	readings []types.SensorReading
	lastSeen time.Time
	maxSize  int
}

func newResultSet(maxSize int) *resultSet {
	if maxSize <= 0 {
		maxSize = DefaultMaxHeld
	}
	return &resultSet{maxSize: maxSize}
}

// replace swaps the entire held sequence for a fresh poll result. An empty
// result clears the sequence but leaves lastSeen untouched, so a later
// incremental fetch still has a reference point.
func (rs *resultSet) replace(readings []types.SensorReading) {
	if len(readings) > rs.maxSize {
		readings = readings[:rs.maxSize]
	}
	rs.readings = readings
	if len(readings) > 0 {
		rs.advanceLastSeen(readings[0].Timestamp)
	}
}

// mergeNew prepends newer rows onto the held sequence, drops duplicates by
// ID, truncates to the retention cap, and advances lastSeen. Input must be
// newest-first, like the held sequence itself.
func (rs *resultSet) mergeNew(newer []types.SensorReading) {
	if len(newer) == 0 {
		return
	}

	seen := make(map[int64]struct{}, len(newer)+len(rs.readings))
	merged := make([]types.SensorReading, 0, len(newer)+len(rs.readings))
	for _, r := range newer {
		if _, dup := seen[r.ID]; dup {
			continue
		}
		seen[r.ID] = struct{}{}
		merged = append(merged, r)
	}
	for _, r := range rs.readings {
		if _, dup := seen[r.ID]; dup {
			continue
		}
		seen[r.ID] = struct{}{}
		merged = append(merged, r)
	}

	if len(merged) > rs.maxSize {
		merged = merged[:rs.maxSize]
	}
	rs.readings = merged
	rs.advanceLastSeen(newer[0].Timestamp)
}

// advanceLastSeen moves lastSeen forward only. A poll that races an
// incremental fetch can legitimately deliver an older newest-row; the high
// water mark must not regress.
func (rs *resultSet) advanceLastSeen(ts time.Time) {
	if ts.After(rs.lastSeen) {
		rs.lastSeen = ts
	}
}

// snapshot returns a copy of the held sequence safe to hand across the
// goroutine boundary.
func (rs *resultSet) snapshot() []types.SensorReading {
	out := make([]types.SensorReading, len(rs.readings))
	copy(out, rs.readings)
	return out
}
