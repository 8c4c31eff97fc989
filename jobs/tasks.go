// Package jobs defines the asynq task types and the background worker.
package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeOutboundEvent delivers one outbound notification event.
	TaskTypeOutboundEvent = "notify:outbound"
	// TaskTypeExpirySweep flags expired items still carrying stock.
	TaskTypeExpirySweep = "inventory:expiry_sweep"
	// TaskTypeDelayedSweep persists Delayed on late in-progress orders.
	TaskTypeDelayedSweep = "procurement:delayed_sweep"
)

// Outbound event kinds.
const (
	OutboundKindItemAlert = "ITEM_ALERT"
	OutboundKindPOStatus  = "PO_STATUS"
	OutboundKindPOEvent   = "PO_EVENT"
)

// OutboundEventPayload describes one queued outbound notification. The
// recipient is a hint; delivery with an empty recipient goes to the
// operations mailbox.
type OutboundEventPayload struct {
	EventID    string    `json:"event_id"`
	Kind       string    `json:"kind"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	Recipient  string    `json:"recipient,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewOutboundEventTask constructs an outbound delivery task.
func NewOutboundEventTask(payload OutboundEventPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeOutboundEvent, data, asynq.MaxRetry(5)), nil
}

// NewOutboundEventHandler returns the handler delivering outbound events.
// Delivery is a structured log record for now; the SMTP integration hangs
// off this same handler.
func NewOutboundEventHandler(logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload OutboundEventPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		logger.Info("outbound event delivered",
			slog.String("event_id", payload.EventID),
			slog.String("kind", payload.Kind),
			slog.String("subject", payload.Subject),
			slog.String("recipient", payload.Recipient))
		return nil
	}
}

// NewExpirySweepTask constructs the expiry sweep task.
func NewExpirySweepTask() *asynq.Task {
	return asynq.NewTask(TaskTypeExpirySweep, nil)
}

// NewExpirySweepHandler runs the injected sweep. The sweep is idempotent,
// so retries are harmless.
func NewExpirySweepHandler(sweep func(context.Context) (int, error), logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		flagged, err := sweep(ctx)
		if err != nil {
			return err
		}
		logger.Info("expiry sweep finished", slog.Int("flagged", flagged))
		return nil
	}
}

// NewDelayedSweepTask constructs the delayed order sweep task.
func NewDelayedSweepTask() *asynq.Task {
	return asynq.NewTask(TaskTypeDelayedSweep, nil)
}

// NewDelayedSweepHandler runs the injected sweep.
func NewDelayedSweepHandler(sweep func(context.Context) (int64, error), logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		swept, err := sweep(ctx)
		if err != nil {
			return err
		}
		logger.Info("delayed sweep finished", slog.Int64("swept", swept))
		return nil
	}
}
