// Package alerts implements the threshold notification engine and the
// in-memory notification center backing the user-facing alert list.
package alerts

import (
	"sync"
	"time"

	"agripal/internal/types"
)

// Center holds the live notification list for the running session,
// newest-first. It is the source of truth for the session; persistence of
// created notifications is an audit trail handled by the Notifier.
//
// Center is safe for concurrent use.
type Center struct {
	mu            sync.RWMutex
	notifications []types.Notification
}

// NewCenter creates an empty notification center.
func NewCenter() *Center {
	return &Center{}
}

// Add prepends a notification to the list.
func (c *Center) Add(n types.Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notifications = append([]types.Notification{n}, c.notifications...)
}

// List returns notifications matching the filter, newest-first. The zero
// filter returns everything. The returned slice is a copy.
func (c *Center) List(filter types.NotificationFilter) []types.Notification {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]types.Notification, 0, len(c.notifications))
	for _, n := range c.notifications {
		if filter.UnreadOnly && n.Read {
			continue
		}
		if filter.Type != "" && n.Type != filter.Type {
			continue
		}
		out = append(out, n)
	}
	return out
}

// UnreadCount returns the number of unread notifications.
func (c *Center) UnreadCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	count := 0
	for _, n := range c.notifications {
		if !n.Read {
			count++
		}
	}
	return count
}

// MarkRead marks one notification as read.
func (c *Center) MarkRead(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.notifications {
		if c.notifications[i].ID == id {
			c.notifications[i].Read = true
			return nil
		}
	}
	return types.NewAppError(types.ErrCodeNotFoundNotification, "notification not found", nil)
}

// MarkAllRead marks every notification as read.
func (c *Center) MarkAllRead() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.notifications {
		c.notifications[i].Read = true
	}
}

// Remove deletes one notification from the list.
func (c *Center) Remove(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.notifications {
		if c.notifications[i].ID == id {
			c.notifications = append(c.notifications[:i], c.notifications[i+1:]...)
			return nil
		}
	}
	return types.NewAppError(types.ErrCodeNotFoundNotification, "notification not found", nil)
}

// newestMatching returns the CreatedAt of the most recent notification that
// match reports true for, and whether any matched. The Notifier uses this to
// decide whether a condition is still cooling down.
func (c *Center) newestMatching(match func(types.Notification) bool) (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var newest time.Time
	found := false
	for _, n := range c.notifications {
		if !match(n) {
			continue
		}
		if !found || n.CreatedAt.After(newest) {
			newest = n.CreatedAt
			found = true
		}
	}
	return newest, found
}
