package procurement

import (
	"context"
	"time"

	"github.com/procura-ims/procura/internal/shared"
)

// Outbound event labels use the normalized all-caps form.
var statusLabels = map[Status]string{
	StatusCreated:   "CREATED",
	StatusPending:   "PENDING_APPROVAL",
	StatusApproved:  "APPROVED",
	StatusRejected:  "REJECTED",
	StatusConfirmed: "CONFIRMED",
	StatusShipped:   "SHIPPED",
	StatusDelayed:   "DELAYED",
	StatusReceived:  "RECEIVED",
	StatusIssue:     "ISSUE",
	StatusCompleted: "COMPLETED",
}

// supplierFacingLabels are the event labels that carry the supplier's
// email as a recipient hint.
var supplierFacingLabels = map[string]bool{
	"PENDING_APPROVAL":     true,
	"APPROVED_BY_SUPPLIER": true,
	"REJECTED_BY_SUPPLIER": true,
	"CONFIRMED":            true,
	"SHIPPED":              true,
}

// StatusLabel normalizes a status for outbound events. A supplier actor
// approving or rejecting renames the label to make the origin explicit.
func StatusLabel(status Status, actor shared.Actor) string {
	label := statusLabels[status]
	if actor.IsSupplier() {
		switch status {
		case StatusApproved:
			label = "APPROVED_BY_SUPPLIER"
		case StatusRejected:
			label = "REJECTED_BY_SUPPLIER"
		}
	}
	return label
}

// SupplierFacing reports whether the label warrants a supplier email hint.
func SupplierFacing(label string) bool {
	return supplierFacingLabels[label]
}

// StatusEvent is emitted after commit for every persisted status change.
type StatusEvent struct {
	POID          int64
	OldStatus     Status
	NewStatus     Status
	Label         string
	ActorRole     string
	ActorEmail    string
	SupplierEmail string
	OccurredAt    time.Time
}

// POEvent is emitted after commit for creation and deletion.
type POEvent struct {
	POID       int64
	Kind       string
	ActorRole  string
	ActorEmail string
	OccurredAt time.Time
}

// PO event kinds.
const (
	POEventCreated = "PO_CREATED"
	POEventDeleted = "PO_DELETED"
)

// EventPublisher delivers outbound purchase order events. Delivery is best
// effort and never affects the committed domain change.
type EventPublisher interface {
	PublishStatusChange(ctx context.Context, event StatusEvent) error
	PublishPOEvent(ctx context.Context, event POEvent) error
}
