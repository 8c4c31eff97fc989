// Package procurement owns the purchase order lifecycle: the status state
// machine, goods receipt materialization, and the stock posting that runs
// when an order completes.
package procurement

import (
	"errors"
	"fmt"
	"time"
)

// Status enumerates purchase order lifecycle states. Delayed is both a
// display overlay computed from the expected date and a literal persisted
// state reachable from Confirmed/Shipped.
type Status string

const (
	StatusCreated   Status = "Created"
	StatusPending   Status = "Pending"
	StatusApproved  Status = "Approved"
	StatusRejected  Status = "Rejected"
	StatusConfirmed Status = "Confirmed"
	StatusShipped   Status = "Shipped"
	StatusDelayed   Status = "Delayed"
	StatusReceived  Status = "Received"
	StatusIssue     Status = "Issue"
	StatusCompleted Status = "Completed"
)

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusCreated, StatusPending, StatusApproved, StatusRejected,
		StatusConfirmed, StatusShipped, StatusDelayed, StatusReceived,
		StatusIssue, StatusCompleted:
		return true
	}
	return false
}

// PurchaseOrder is the procurement document header.
type PurchaseOrder struct {
	ID             int64      `json:"po_id"`
	SupplierID     int64      `json:"supplier_id"`
	CreatedBy      int64      `json:"created_by_user_id"`
	Status         Status     `json:"status"`
	IssueDate      time.Time  `json:"issue_date"`
	ExpectedDate   time.Time  `json:"expected_date"`
	ReceiveDate    *time.Time `json:"receive_date,omitempty"`
	CompletionDate *time.Time `json:"completion_date,omitempty"`
	ApprovedBy     *int64     `json:"approved_by_user_id,omitempty"`
}

// POLine is one purchase order line. Lines are replaced wholesale while
// the order is Created and immutable afterwards.
type POLine struct {
	ID        int64   `json:"line_id"`
	POID      int64   `json:"po_id"`
	ItemID    int64   `json:"item_id"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	LineCost  float64 `json:"purchase_cost"`
}

// GoodsReceipt records physically received quantities against a PO. At
// most one per PO; created only by the materializer.
type GoodsReceipt struct {
	ID           int64     `json:"receipt_id"`
	POID         int64     `json:"po_id"`
	ReceiptNo    string    `json:"receipt_no"`
	ReceiveDate  time.Time `json:"receive_date"`
	Status       string    `json:"status"`
	SentBy       string    `json:"sent_by"`
	ReceiverName string    `json:"receiver_name"`
}

// GoodsReceiptLine mirrors a PO line at materialization time.
type GoodsReceiptLine struct {
	ID        int64  `json:"line_id"`
	ReceiptID int64  `json:"receipt_id"`
	ItemID    int64  `json:"item_id"`
	Quantity  int    `json:"quantity"`
	UOM       string `json:"uom"`
	Warehouse string `json:"warehouse"`
}

// Fixed goods receipt defaults.
const (
	ReceiptLineUOM       = "PC"
	ReceiptLineWarehouse = "Main-01"
	ReceiptStatus        = "Confirmed"
)

// POLineInput is one requested line.
type POLineInput struct {
	ItemID    int64   `json:"item_id" validate:"required,gt=0"`
	Quantity  int     `json:"quantity" validate:"required,gt=0"`
	UnitPrice float64 `json:"unit_price" validate:"gte=0"`
}

// CreatePOInput carries fields for a new purchase order.
type CreatePOInput struct {
	SupplierID   int64         `validate:"required,gt=0"`
	ExpectedDate time.Time     `validate:"required"`
	Lines        []POLineInput `validate:"required,min=1,dive"`
}

// UpdatePOInput is the full-edit payload, only honored while Created.
type UpdatePOInput struct {
	Status       Status
	ExpectedDate time.Time
	Lines        []POLineInput
}

// ListFilter narrows purchase order listings.
type ListFilter struct {
	SupplierID int64
	Status     Status
	Limit      int
	Offset     int
}

// KPIs summarises list counts by status bucket.
type KPIs struct {
	TotalOrders   int64 `json:"total_orders"`
	TotalReceived int64 `json:"total_received"`
	TotalReturned int64 `json:"total_returned"`
	OnTheWay      int64 `json:"on_the_way"`
}

var (
	// ErrNotFound indicates the purchase order does not exist.
	ErrNotFound = errors.New("procurement: purchase order not found")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("procurement: invalid input")
	// ErrStateConflict is the base of every transition rejection.
	ErrStateConflict = errors.New("procurement: state conflict")
	// ErrNoReceipt indicates the PO has no goods receipt yet.
	ErrNoReceipt = errors.New("procurement: goods receipt not found")
)

// State conflict reasons. All wrap ErrStateConflict so callers can test
// the category with a single errors.Is.
var (
	ErrInvalidTransition = fmt.Errorf("%w: invalid state transition", ErrStateConflict)
	ErrCantRevert        = fmt.Errorf("%w: cannot revert to an earlier state", ErrStateConflict)
	ErrLockedDateChange  = fmt.Errorf("%w: expected date is locked after creation", ErrStateConflict)
	ErrStatusChanged     = fmt.Errorf("%w: status changed concurrently", ErrStateConflict)
)
