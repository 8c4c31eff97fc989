package items

import (
	"context"
	"time"
)

// AlertEvent is the outbound event emitted after commit when an alert was
// newly raised. Delivery is best effort and never affects the domain
// transaction.
type AlertEvent struct {
	ItemID     int64
	ItemCode   string
	ItemName   string
	Type       AlertType
	Stock      int
	ExpiryDate *time.Time
	OccurredAt time.Time
}

// EventPublisher delivers outbound alert events.
type EventPublisher interface {
	PublishAlert(ctx context.Context, event AlertEvent) error
}
