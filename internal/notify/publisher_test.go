package notify

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/procura-ims/procura/internal/items"
	"github.com/procura-ims/procura/internal/procurement"
	"github.com/procura-ims/procura/jobs"
)

type memEnqueuer struct {
	payloads []jobs.OutboundEventPayload
}

func (m *memEnqueuer) EnqueueOutboundEvent(ctx context.Context, payload jobs.OutboundEventPayload) error {
	m.payloads = append(m.payloads, payload)
	return nil
}

func newTestPublisher() (*QueuePublisher, *memEnqueuer) {
	enq := &memEnqueuer{}
	return NewQueuePublisher(enq, nil, slog.New(slog.NewTextHandler(io.Discard, nil))), enq
}

func TestPublishAlert(t *testing.T) {
	pub, enq := newTestPublisher()
	occurred := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	err := pub.PublishAlert(context.Background(), items.AlertEvent{
		ItemID:     4,
		ItemCode:   "ITM-004",
		ItemName:   "Copper Wire",
		Type:       items.AlertLowStock,
		Stock:      3,
		OccurredAt: occurred,
	})
	require.NoError(t, err)
	require.Len(t, enq.payloads, 1)

	p := enq.payloads[0]
	require.NotEmpty(t, p.EventID)
	require.Equal(t, jobs.OutboundKindItemAlert, p.Kind)
	require.Contains(t, p.Subject, "ITM-004")
	require.Contains(t, p.Body, "Low Stock")
	require.Empty(t, p.Recipient)
	require.Equal(t, occurred, p.OccurredAt)
}

func TestPublishExpiredAlertBody(t *testing.T) {
	pub, enq := newTestPublisher()
	expiry := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	err := pub.PublishAlert(context.Background(), items.AlertEvent{
		ItemCode:   "ITM-009",
		ItemName:   "Saline Pack",
		Type:       items.AlertExpired,
		Stock:      12,
		ExpiryDate: &expiry,
	})
	require.NoError(t, err)
	require.Contains(t, enq.payloads[0].Body, "expired on 2026-02-01")
	require.Contains(t, enq.payloads[0].Body, "Qty wasted: 12")
}

func TestPublishStatusChangeCarriesRecipient(t *testing.T) {
	pub, enq := newTestPublisher()

	err := pub.PublishStatusChange(context.Background(), procurement.StatusEvent{
		POID:          17,
		OldStatus:     procurement.StatusCreated,
		NewStatus:     procurement.StatusPending,
		Label:         "PENDING_APPROVAL",
		SupplierEmail: "orders@acme.test",
	})
	require.NoError(t, err)
	require.Len(t, enq.payloads, 1)
	require.Equal(t, jobs.OutboundKindPOStatus, enq.payloads[0].Kind)
	require.Equal(t, "PO #17 is now PENDING_APPROVAL", enq.payloads[0].Subject)
	require.Equal(t, "orders@acme.test", enq.payloads[0].Recipient)
}

func TestPublishPOEvent(t *testing.T) {
	pub, enq := newTestPublisher()

	err := pub.PublishPOEvent(context.Background(), procurement.POEvent{
		POID: 9,
		Kind: procurement.POEventDeleted,
	})
	require.NoError(t, err)
	require.Equal(t, jobs.OutboundKindPOEvent, enq.payloads[0].Kind)
	require.Contains(t, enq.payloads[0].Subject, "PO_DELETED")
}
