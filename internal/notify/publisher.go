package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/procura-ims/procura/internal/items"
	"github.com/procura-ims/procura/internal/observability"
	"github.com/procura-ims/procura/internal/procurement"
	"github.com/procura-ims/procura/jobs"
)

// Enqueuer submits outbound events to the background queue.
type Enqueuer interface {
	EnqueueOutboundEvent(ctx context.Context, payload jobs.OutboundEventPayload) error
}

// QueuePublisher turns domain events into queued outbound deliveries. It
// satisfies both the items and procurement publisher interfaces and counts
// each published event.
type QueuePublisher struct {
	enqueuer Enqueuer
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// NewQueuePublisher constructs QueuePublisher. Metrics may be nil.
func NewQueuePublisher(enqueuer Enqueuer, metrics *observability.Metrics, logger *slog.Logger) *QueuePublisher {
	return &QueuePublisher{enqueuer: enqueuer, metrics: metrics, logger: logger}
}

// PublishAlert queues an item alert event.
func (p *QueuePublisher) PublishAlert(ctx context.Context, event items.AlertEvent) error {
	p.metrics.CountAlert(string(event.Type))
	subject := fmt.Sprintf("%s: %s (%s)", event.Type, event.ItemCode, event.ItemName)
	body := fmt.Sprintf("Item %s (%s) triggered a %s alert. Current qty: %d.",
		event.ItemCode, event.ItemName, event.Type, event.Stock)
	if event.Type == items.AlertExpired && event.ExpiryDate != nil {
		body = fmt.Sprintf("Item %s (%s) expired on %s. Qty wasted: %d.",
			event.ItemCode, event.ItemName, event.ExpiryDate.Format("2006-01-02"), event.Stock)
	}
	return p.enqueuer.EnqueueOutboundEvent(ctx, jobs.OutboundEventPayload{
		EventID:    uuid.NewString(),
		Kind:       jobs.OutboundKindItemAlert,
		Subject:    subject,
		Body:       body,
		OccurredAt: event.OccurredAt,
	})
}

// PublishStatusChange queues a purchase order status event. The supplier
// email, when present, rides along as the delivery recipient.
func (p *QueuePublisher) PublishStatusChange(ctx context.Context, event procurement.StatusEvent) error {
	p.metrics.CountTransition(string(event.NewStatus))
	return p.enqueuer.EnqueueOutboundEvent(ctx, jobs.OutboundEventPayload{
		EventID: uuid.NewString(),
		Kind:    jobs.OutboundKindPOStatus,
		Subject: fmt.Sprintf("PO #%d is now %s", event.POID, event.Label),
		Body: fmt.Sprintf("Purchase order #%d moved from %s to %s (%s).",
			event.POID, event.OldStatus, event.NewStatus, event.Label),
		Recipient:  event.SupplierEmail,
		OccurredAt: event.OccurredAt,
	})
}

// PublishPOEvent queues a creation or deletion event.
func (p *QueuePublisher) PublishPOEvent(ctx context.Context, event procurement.POEvent) error {
	return p.enqueuer.EnqueueOutboundEvent(ctx, jobs.OutboundEventPayload{
		EventID:    uuid.NewString(),
		Kind:       jobs.OutboundKindPOEvent,
		Subject:    fmt.Sprintf("%s: PO #%d", event.Kind, event.POID),
		Body:       fmt.Sprintf("Purchase order #%d: %s.", event.POID, event.Kind),
		OccurredAt: event.OccurredAt,
	})
}

var (
	_ items.EventPublisher       = (*QueuePublisher)(nil)
	_ procurement.EventPublisher = (*QueuePublisher)(nil)
)
