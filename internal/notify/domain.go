// Package notify owns in-app notifications and the queued outbound event
// dispatch. In-app rows are written by the domain transactions themselves;
// this package reads them back and marks them read.
package notify

import (
	"errors"
	"time"
)

// Notification is one in-app notification row.
type Notification struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Link      string    `json:"link"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// ErrNotFound indicates the notification does not exist or belongs to
// someone else.
var ErrNotFound = errors.New("notify: notification not found")
