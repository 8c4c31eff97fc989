package procurement

import (
	"time"

	"github.com/procura-ims/procura/internal/rbac"
	"github.com/procura-ims/procura/internal/shared"
)

// staffFlow is the staff-side transition graph over persisted statuses.
// Rejected and Completed are terminal. Pending and Confirmed wait on the
// supplier except that a late Confirmed/Shipped order may be marked
// Delayed explicitly.
var staffFlow = map[Status][]Status{
	StatusCreated:   {StatusPending},
	StatusPending:   {},
	StatusApproved:  {StatusConfirmed},
	StatusRejected:  {},
	StatusConfirmed: {StatusDelayed},
	StatusShipped:   {StatusReceived, StatusDelayed},
	StatusDelayed:   {StatusReceived, StatusIssue},
	StatusReceived:  {StatusIssue, StatusCompleted},
	StatusIssue:     {StatusReceived, StatusCompleted},
	StatusCompleted: {},
}

// supplierFlow is the supplier-side transition graph.
var supplierFlow = map[Status][]Status{
	StatusPending:   {StatusApproved, StatusRejected},
	StatusConfirmed: {StatusShipped},
}

// basicStatusTargets are the only targets reachable with
// manage_po_status_basic, regardless of the graph's nominal allowance.
var basicStatusTargets = map[Status]bool{
	StatusReceived:  true,
	StatusIssue:     true,
	StatusCompleted: true,
}

// lateOverlayStatuses are displayed as Delayed once the expected date has
// passed, without writing anything.
var lateOverlayStatuses = map[Status]bool{
	StatusConfirmed: true,
	StatusShipped:   true,
}

// delaySweepStatuses are persisted as Delayed by the bulk sweep once the
// expected date has passed.
var delaySweepStatuses = []Status{StatusApproved, StatusConfirmed, StatusShipped}

func flowAllows(flow map[Status][]Status, from, to Status) bool {
	for _, next := range flow[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateStaffTransition checks a staff-requested status change against
// the graph and the actor's capabilities. It runs before any transaction.
func ValidateStaffTransition(gate *rbac.Gate, actor shared.Actor, from, to Status) error {
	if err := gate.RequireAnyStaff(actor, rbac.CapManagePOStatusAll, rbac.CapManagePOStatusBasic); err != nil {
		return err
	}
	if !gate.Can(actor, rbac.CapManagePOStatusAll) {
		if !basicStatusTargets[to] {
			return rbac.ErrForbidden
		}
	}
	if to == StatusCreated || (to == StatusPending && from != StatusCreated) {
		return ErrCantRevert
	}
	if !flowAllows(staffFlow, from, to) {
		return ErrInvalidTransition
	}
	return nil
}

// ValidateSupplierTransition checks a supplier-requested status change.
// Ownership must already have been verified by the caller.
func ValidateSupplierTransition(from, to Status) error {
	if to == StatusCreated || to == StatusPending {
		return ErrCantRevert
	}
	if !flowAllows(supplierFlow, from, to) {
		return ErrInvalidTransition
	}
	return nil
}

// EffectiveStatus computes the display status: a Confirmed or Shipped
// order past its expected date reads as Delayed. The stored value is
// untouched.
func EffectiveStatus(po PurchaseOrder, today time.Time) Status {
	if lateOverlayStatuses[po.Status] && !po.ExpectedDate.IsZero() {
		if dateOnly(po.ExpectedDate).Before(dateOnly(today)) {
			return StatusDelayed
		}
	}
	return po.Status
}

// StaffNextStatuses lists the selectable targets for a staff actor from
// the order's current persisted state. The late Delayed option appears
// only when the order is actually late.
func StaffNextStatuses(gate *rbac.Gate, actor shared.Actor, po PurchaseOrder, today time.Time) []Status {
	nexts := make([]Status, 0, 3)
	for _, next := range staffFlow[po.Status] {
		if next == StatusDelayed && EffectiveStatus(po, today) != StatusDelayed {
			continue
		}
		if !gate.Can(actor, rbac.CapManagePOStatusAll) && !basicStatusTargets[next] {
			continue
		}
		nexts = append(nexts, next)
	}
	return nexts
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
