package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"agripal/internal/types"
)

// readingColumns is the column list shared by all sensor_readings queries.
const readingColumns = `id, device_id, farm_id, timestamp, moisture,
	temperature, humidity, raw_value, status, created_at`

// ReadingRepository provides read access to the sensor_readings table.
// The table is written by the ingest pipeline; this service only queries it.
//
// Both query paths return rows ordered newest-first, matching the ordering
// invariant of the in-memory held result sets.
type ReadingRepository struct {
	db DBTX
}

// NewReadingRepository creates a new ReadingRepository backed by the given
// database connection (pool or transaction).
func NewReadingRepository(db DBTX) *ReadingRepository {
	return &ReadingRepository{db: db}
}

// ListSince returns readings for deviceID with timestamp >= cutoff, ordered
// newest-first, at most limit rows. This is the full-replace query used by
// the periodic poller.
func (r *ReadingRepository) ListSince(ctx context.Context, deviceID string, cutoff time.Time, limit int) ([]types.SensorReading, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+readingColumns+`
		 FROM sensor_readings
		 WHERE device_id = $1 AND timestamp >= $2
		 ORDER BY timestamp DESC
		 LIMIT $3`,
		deviceID, cutoff, limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list sensor readings", err)
	}
	defer rows.Close()

	return scanReadings(rows)
}

// ListAfter returns readings for deviceID with timestamp strictly after ts,
// ordered newest-first, unbounded. This is the incremental-fetch query
// driven by realtime push signals.
func (r *ReadingRepository) ListAfter(ctx context.Context, deviceID string, ts time.Time) ([]types.SensorReading, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+readingColumns+`
		 FROM sensor_readings
		 WHERE device_id = $1 AND timestamp > $2
		 ORDER BY timestamp DESC`,
		deviceID, ts,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list new sensor readings", err)
	}
	defer rows.Close()

	return scanReadings(rows)
}

// scanReadings drains a row set into SensorReading values. Status tags are
// validated against the closed ReadingStatus set; a row carrying an
// unrecognized tag fails the whole scan rather than propagating silently.
func scanReadings(rows pgx.Rows) ([]types.SensorReading, error) {
	var out []types.SensorReading
	for rows.Next() {
		var (
			reading   types.SensorReading
			rawStatus string
		)
		if err := rows.Scan(
			&reading.ID,
			&reading.DeviceID,
			&reading.FarmID,
			&reading.Timestamp,
			&reading.Moisture,
			&reading.Temperature,
			&reading.Humidity,
			&reading.RawValue,
			&rawStatus,
			&reading.CreatedAt,
		); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan sensor reading row", err)
		}

		status, err := types.ParseReadingStatus(rawStatus)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeValidationStatusTag, "rejected sensor reading during ingestion", err)
		}
		reading.Status = status

		out = append(out, reading)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating sensor reading rows", err)
	}
	return out, nil
}

// Compile-time interface compliance check.
var _ types.ReadingStore = (*ReadingRepository)(nil)
