package db

import (
	"context"

	"agripal/internal/types"
)

// NotificationRepository provides data access for the notifications table.
// The table is an audit trail of every alert the threshold engine created;
// the authoritative working set for the session lives in memory in the
// alerts package.
type NotificationRepository struct {
	db DBTX
}

// NewNotificationRepository creates a new NotificationRepository backed by the
// given database connection (pool or transaction).
func NewNotificationRepository(db DBTX) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Insert persists a notification record. The caller must set the ID and
// required fields before calling. If the CreatedAt field is zero, the
// database fills it via NOW().
func (r *NotificationRepository) Insert(ctx context.Context, n *types.Notification) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO notifications
		 (id, type, priority, title, message, read, action_link,
		  device_id, farm_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, COALESCE($10, NOW()))`,
		n.ID,
		string(n.Type),
		string(n.Priority),
		n.Title,
		n.Message,
		n.Read,
		nilIfEmpty(n.ActionLink),
		nilIfEmpty(n.DeviceID),
		nilIfEmpty(n.FarmID),
		nilIfZeroTime(n.CreatedAt),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to insert notification", err)
	}
	return nil
}

// Compile-time interface compliance check.
var _ types.NotificationSink = (*NotificationRepository)(nil)
