package procurement

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/procura-ims/procura/internal/items"
	"github.com/procura-ims/procura/internal/rbac"
	"github.com/procura-ims/procura/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetPO(ctx context.Context, id int64) (PurchaseOrder, []POLine, error)
	ListPOs(ctx context.Context, filter ListFilter) ([]PurchaseOrder, error)
	GetKPIs(ctx context.Context) (KPIs, error)
	GetReceipt(ctx context.Context, poID int64) (GoodsReceipt, []GoodsReceiptLine, error)
	SupplierEmail(ctx context.Context, poID int64) (string, error)
}

// ActivityPort abstracts the append-only activity log.
type ActivityPort interface {
	Record(ctx context.Context, entry shared.ActivityEntry) error
}

// notifyRoles receive every in-app purchase order notification.
var notifyRolesAlways = []string{rbac.RoleAdmin, rbac.RoleManager}

// staffNotifyStatuses are the new statuses that additionally fan out to
// Staff users.
var staffNotifyStatuses = map[Status]bool{
	StatusReceived:  true,
	StatusIssue:     true,
	StatusCompleted: true,
	StatusDelayed:   true,
	StatusShipped:   true,
}

// TransitionInput carries a compare-and-set status change request. From is
// the status the caller last saw; a mismatch on write rejects the change.
type TransitionInput struct {
	From Status `json:"old_status" validate:"required"`
	To   Status `json:"new_status" validate:"required"`
}

// SupplierUpdateInput is the supplier portal's status answer. ExpectedDate
// is required when answering a Pending order.
type SupplierUpdateInput struct {
	From         Status    `json:"old_status" validate:"required"`
	To           Status    `json:"new_status" validate:"required"`
	ExpectedDate time.Time `json:"expected_date"`
}

// PODetails is the detail view: the stored order plus the computed display
// status and, for staff, the selectable next statuses.
type PODetails struct {
	PurchaseOrder
	Lines           []POLine `json:"lines"`
	EffectiveStatus Status   `json:"effective_status"`
	NextStatuses    []Status `json:"next_statuses,omitempty"`
}

// Service coordinates the purchase order lifecycle. Every status change is
// a compare-and-set on the stored status, and the Completed posting runs
// stock and alert reconciliation inside the same transaction.
type Service struct {
	repo     RepositoryPort
	gate     *rbac.Gate
	activity ActivityPort
	events   EventPublisher
	alerts   items.EventPublisher
	validate *validator.Validate
	logger   *slog.Logger
	now      func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, gate *rbac.Gate, activity ActivityPort, events EventPublisher, alerts items.EventPublisher, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		gate:     gate,
		activity: activity,
		events:   events,
		alerts:   alerts,
		validate: validator.New(),
		logger:   logger,
		now:      time.Now,
	}
}

// GetPO fetches one purchase order. Staff need view_po_details; a supplier
// only sees their own orders.
func (s *Service) GetPO(ctx context.Context, actor shared.Actor, id int64) (PODetails, error) {
	po, lines, err := s.repo.GetPO(ctx, id)
	if err != nil {
		return PODetails{}, err
	}
	details := PODetails{
		PurchaseOrder:   po,
		Lines:           lines,
		EffectiveStatus: EffectiveStatus(po, s.now()),
	}
	if actor.IsSupplier() {
		if err := s.gate.RequireSupplierOwner(actor, po.SupplierID); err != nil {
			return PODetails{}, err
		}
		return details, nil
	}
	if err := s.gate.RequireStaff(actor, rbac.CapViewPODetails); err != nil {
		return PODetails{}, err
	}
	details.NextStatuses = StaffNextStatuses(s.gate, actor, po, s.now())
	return details, nil
}

// ListPOs lists purchase orders with the display status applied. Suppliers
// are forced onto their own orders.
func (s *Service) ListPOs(ctx context.Context, actor shared.Actor, filter ListFilter) ([]PODetails, error) {
	if actor.IsSupplier() {
		filter.SupplierID = actor.SupplierID
	} else if err := s.gate.RequireStaff(actor, rbac.CapViewPOList); err != nil {
		return nil, err
	}
	pos, err := s.repo.ListPOs(ctx, filter)
	if err != nil {
		return nil, err
	}
	now := s.now()
	details := make([]PODetails, 0, len(pos))
	for _, po := range pos {
		details = append(details, PODetails{
			PurchaseOrder:   po,
			EffectiveStatus: EffectiveStatus(po, now),
		})
	}
	return details, nil
}

// GetKPIs returns the list page counters.
func (s *Service) GetKPIs(ctx context.Context, actor shared.Actor) (KPIs, error) {
	if err := s.gate.RequireStaff(actor, rbac.CapViewPOList); err != nil {
		return KPIs{}, err
	}
	return s.repo.GetKPIs(ctx)
}

// Dashboard combines the KPI buckets with the most recent orders in a
// single response.
type Dashboard struct {
	KPIs   KPIs        `json:"kpis"`
	Recent []PODetails `json:"recent_orders"`
}

// GetDashboard fetches KPI buckets and the ten newest orders concurrently.
func (s *Service) GetDashboard(ctx context.Context, actor shared.Actor) (Dashboard, error) {
	if err := s.gate.RequireStaff(actor, rbac.CapViewPOList); err != nil {
		return Dashboard{}, err
	}
	var out Dashboard
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		kpis, err := s.repo.GetKPIs(gctx)
		if err != nil {
			return err
		}
		out.KPIs = kpis
		return nil
	})
	g.Go(func() error {
		pos, err := s.repo.ListPOs(gctx, ListFilter{Limit: 10})
		if err != nil {
			return err
		}
		now := s.now()
		out.Recent = make([]PODetails, 0, len(pos))
		for _, po := range pos {
			out.Recent = append(out.Recent, PODetails{
				PurchaseOrder:   po,
				EffectiveStatus: EffectiveStatus(po, now),
			})
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}
	return out, nil
}

// GetReceipt returns the goods receipt for a purchase order.
func (s *Service) GetReceipt(ctx context.Context, actor shared.Actor, poID int64) (GoodsReceipt, []GoodsReceiptLine, error) {
	if err := s.gate.RequireStaff(actor, rbac.CapViewPODetails); err != nil {
		return GoodsReceipt{}, nil, err
	}
	return s.repo.GetReceipt(ctx, poID)
}

// CreatePO inserts a new order in Created with today's issue date.
func (s *Service) CreatePO(ctx context.Context, actor shared.Actor, input CreatePOInput) (PurchaseOrder, error) {
	if err := s.gate.RequireStaff(actor, rbac.CapCreatePO); err != nil {
		return PurchaseOrder{}, err
	}
	if err := s.validate.Struct(input); err != nil {
		return PurchaseOrder{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	po := PurchaseOrder{
		SupplierID:   input.SupplierID,
		CreatedBy:    actor.UserID,
		Status:       StatusCreated,
		IssueDate:    s.today(),
		ExpectedDate: input.ExpectedDate,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertPO(ctx, po)
		if err != nil {
			return err
		}
		po.ID = id
		if err := tx.ReplacePOLines(ctx, id, buildLines(id, input.Lines)); err != nil {
			return err
		}
		msg := fmt.Sprintf("PO #%d was created by %s.", id, actor.DisplayName)
		return s.notifyStatus(ctx, tx, "New PO Created", msg, poLink(id), false)
	})
	if err != nil {
		return PurchaseOrder{}, err
	}

	s.recordActivity(ctx, actor, "Add", fmt.Sprintf(
		"Created PO #%d for Supplier ID %d", po.ID, po.SupplierID))
	s.publishPOEvent(ctx, actor, po.ID, POEventCreated)
	return po, nil
}

// UpdatePO applies the full-edit payload. Lines and the expected date are
// editable only while the order is Created; afterwards a date change is
// rejected and a status change is handled as a plain transition.
func (s *Service) UpdatePO(ctx context.Context, actor shared.Actor, id int64, input UpdatePOInput) (PurchaseOrder, error) {
	po, _, err := s.repo.GetPO(ctx, id)
	if err != nil {
		return PurchaseOrder{}, err
	}

	if po.Status != StatusCreated {
		if !input.ExpectedDate.IsZero() && !sameDay(input.ExpectedDate, po.ExpectedDate) {
			return PurchaseOrder{}, ErrLockedDateChange
		}
		if len(input.Lines) > 0 {
			return PurchaseOrder{}, ErrLockedDateChange
		}
		if input.Status != "" && input.Status != po.Status {
			return s.Transition(ctx, actor, id, TransitionInput{From: po.Status, To: input.Status})
		}
		return po, nil
	}

	if err := s.gate.RequireStaff(actor, rbac.CapManagePOStatusAll); err != nil {
		return PurchaseOrder{}, err
	}
	if input.ExpectedDate.IsZero() || len(input.Lines) == 0 {
		return PurchaseOrder{}, fmt.Errorf("%w: expected date and lines are required", ErrValidation)
	}
	for _, line := range input.Lines {
		if line.ItemID <= 0 || line.Quantity <= 0 {
			return PurchaseOrder{}, fmt.Errorf("%w: each line needs an item and a positive quantity", ErrValidation)
		}
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetPOForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.Status != StatusCreated {
			return ErrStatusChanged
		}
		if err := tx.SetExpectedDate(ctx, id, input.ExpectedDate); err != nil {
			return err
		}
		return tx.ReplacePOLines(ctx, id, buildLines(id, input.Lines))
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	po.ExpectedDate = input.ExpectedDate

	s.recordActivity(ctx, actor, "Update", fmt.Sprintf("Updated PO #%d", id))

	if input.Status != "" && input.Status != po.Status {
		return s.Transition(ctx, actor, id, TransitionInput{From: po.Status, To: input.Status})
	}
	return po, nil
}

// Transition performs a staff status change. The stored status must still
// equal input.From when the update lands, otherwise the change is rejected
// with ErrStatusChanged and nothing is written.
func (s *Service) Transition(ctx context.Context, actor shared.Actor, id int64, input TransitionInput) (PurchaseOrder, error) {
	if err := s.validate.Struct(input); err != nil {
		return PurchaseOrder{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if !input.From.Valid() || !input.To.Valid() {
		return PurchaseOrder{}, fmt.Errorf("%w: unknown status", ErrValidation)
	}
	if err := ValidateStaffTransition(s.gate, actor, input.From, input.To); err != nil {
		return PurchaseOrder{}, err
	}

	var (
		po        PurchaseOrder
		triggered []raisedAlert
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetPOForUpdate(ctx, id)
		if err != nil {
			return err
		}
		po = current

		ok, err := tx.UpdateStatusCAS(ctx, id, input.From, input.To)
		if err != nil {
			return err
		}
		if !ok {
			return ErrStatusChanged
		}
		po.Status = input.To

		switch input.To {
		case StatusReceived:
			if _, _, err := materializeReceipt(ctx, tx, po, actor, s.today()); err != nil {
				return err
			}
		case StatusCompleted:
			triggered, err = s.completeOrder(ctx, tx, po, actor)
			if err != nil {
				return err
			}
		}

		label := StatusLabel(input.To, actor)
		msg := fmt.Sprintf("PO #%d status changed to %s by %s.", id, label, actor.DisplayName)
		return s.notifyStatus(ctx, tx, "PO Status Update", msg, poLink(id), staffNotifyStatuses[input.To])
	})
	if err != nil {
		return PurchaseOrder{}, err
	}

	s.recordActivity(ctx, actor, "Update", fmt.Sprintf(
		"Changed PO #%d status from %s to %s", id, input.From, input.To))
	s.publishStatusChange(ctx, actor, id, input.From, input.To)
	s.publishAlerts(ctx, triggered)
	return po, nil
}

// SupplierTransition is the portal-side status answer. Ownership and the
// caller's view of the current status are both verified under the row lock.
func (s *Service) SupplierTransition(ctx context.Context, actor shared.Actor, id int64, input SupplierUpdateInput) (PurchaseOrder, error) {
	if err := s.gate.RequireSupplier(actor); err != nil {
		return PurchaseOrder{}, err
	}
	if err := s.validate.Struct(input); err != nil {
		return PurchaseOrder{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := ValidateSupplierTransition(input.From, input.To); err != nil {
		return PurchaseOrder{}, err
	}
	if input.From == StatusPending && input.ExpectedDate.IsZero() {
		return PurchaseOrder{}, fmt.Errorf("%w: expected date is required when answering a pending order", ErrValidation)
	}

	var po PurchaseOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetPOForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := s.gate.RequireSupplierOwner(actor, current.SupplierID); err != nil {
			return err
		}
		if current.Status != input.From {
			return ErrStatusChanged
		}

		ok, err := tx.UpdateStatusCAS(ctx, id, input.From, input.To)
		if err != nil {
			return err
		}
		if !ok {
			return ErrStatusChanged
		}
		po = current
		po.Status = input.To

		if input.From == StatusPending {
			if err := tx.SetExpectedDate(ctx, id, input.ExpectedDate); err != nil {
				return err
			}
			po.ExpectedDate = input.ExpectedDate
		}

		label := StatusLabel(input.To, actor)
		msg := fmt.Sprintf("PO #%d was updated to %s by supplier %s.", id, label, actor.DisplayName)
		return s.notifyStatus(ctx, tx, "PO Status Update", msg, poLink(id), input.To == StatusShipped)
	})
	if err != nil {
		return PurchaseOrder{}, err
	}

	s.publishStatusChange(ctx, actor, id, input.From, input.To)
	return po, nil
}

// DeletePO removes an order. Orders past Pending are retained and the call
// reports restricted=true instead of failing.
func (s *Service) DeletePO(ctx context.Context, actor shared.Actor, id int64) (restricted bool, err error) {
	if err := s.gate.RequireStaff(actor, rbac.CapDeletePO); err != nil {
		return false, err
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		po, err := tx.GetPOForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if po.Status != StatusCreated && po.Status != StatusPending {
			restricted = true
			return nil
		}
		if err := tx.DeletePO(ctx, id); err != nil {
			return err
		}
		msg := fmt.Sprintf("PO #%d was deleted by %s.", id, actor.DisplayName)
		return tx.NotifyRole(ctx, rbac.RoleAdmin, "PO Deleted", msg, "/purchase-orders")
	})
	if err != nil || restricted {
		return restricted, err
	}

	s.recordActivity(ctx, actor, "Delete", fmt.Sprintf("Deleted PO #%d", id))
	s.publishPOEvent(ctx, actor, id, POEventDeleted)
	return false, nil
}

// MarkDelayed persists the Delayed status on every Approved, Confirmed or
// Shipped order whose expected date has passed. Returns the number of
// orders swept.
func (s *Service) MarkDelayed(ctx context.Context) (int64, error) {
	var swept int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		n, err := tx.MarkDelayed(ctx, s.today())
		if err != nil {
			return err
		}
		swept = n
		return nil
	})
	return swept, err
}

type raisedAlert struct {
	item      items.Item
	alertType items.AlertType
}

// completeOrder posts received quantities into item stock and reconciles
// alerts, all inside the surrounding transaction. A missing goods receipt
// is materialized first so a Completed order always has one.
func (s *Service) completeOrder(ctx context.Context, tx TxRepository, po PurchaseOrder, actor shared.Actor) ([]raisedAlert, error) {
	_, lines, err := materializeReceipt(ctx, tx, po, actor, s.today())
	if err != nil {
		return nil, err
	}

	var triggered []raisedAlert
	for _, line := range lines {
		item, err := tx.AddItemStock(ctx, line.ItemID, line.Quantity)
		if err != nil {
			return nil, err
		}
		alertType, err := items.Reconcile(ctx, tx, item)
		if err != nil {
			return nil, err
		}
		if alertType == "" {
			continue
		}
		title, msg, ok := items.AlertNotice(item, alertType)
		if ok {
			if err := s.notifyStatus(ctx, tx, title, msg, fmt.Sprintf("/items/%d", item.ID), false); err != nil {
				return nil, err
			}
		}
		triggered = append(triggered, raisedAlert{item: item, alertType: alertType})
	}

	return triggered, tx.SetCompletion(ctx, po.ID, actor.UserID, s.today())
}

func (s *Service) notifyStatus(ctx context.Context, tx TxRepository, title, msg, link string, includeStaff bool) error {
	roles := notifyRolesAlways
	if includeStaff {
		roles = append([]string{}, notifyRolesAlways...)
		roles = append(roles, rbac.RoleStaff)
	}
	for _, role := range roles {
		if err := tx.NotifyRole(ctx, role, title, msg, link); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) recordActivity(ctx context.Context, actor shared.Actor, actionType, description string) {
	if s.activity == nil {
		return
	}
	err := s.activity.Record(ctx, shared.ActivityEntry{
		ActorID:     actor.UserID,
		ActorName:   actor.DisplayName,
		ActionType:  actionType,
		Module:      "PurchaseOrder",
		Description: description,
	})
	if err != nil && s.logger != nil {
		s.logger.Error("activity log write failed", slog.Any("error", err))
	}
}

func (s *Service) publishStatusChange(ctx context.Context, actor shared.Actor, id int64, from, to Status) {
	if s.events == nil {
		return
	}
	label := StatusLabel(to, actor)
	event := StatusEvent{
		POID:       id,
		OldStatus:  from,
		NewStatus:  to,
		Label:      label,
		ActorRole:  actor.Role,
		ActorEmail: actor.Email,
		OccurredAt: s.now().UTC(),
	}
	if SupplierFacing(label) {
		email, err := s.repo.SupplierEmail(ctx, id)
		if err != nil && s.logger != nil {
			s.logger.Error("supplier email lookup failed",
				slog.Int64("po_id", id), slog.Any("error", err))
		}
		event.SupplierEmail = email
	}
	if err := s.events.PublishStatusChange(ctx, event); err != nil && s.logger != nil {
		s.logger.Error("status event publish failed",
			slog.Int64("po_id", id), slog.String("label", label), slog.Any("error", err))
	}
}

func (s *Service) publishPOEvent(ctx context.Context, actor shared.Actor, id int64, kind string) {
	if s.events == nil {
		return
	}
	event := POEvent{
		POID:       id,
		Kind:       kind,
		ActorRole:  actor.Role,
		ActorEmail: actor.Email,
		OccurredAt: s.now().UTC(),
	}
	if err := s.events.PublishPOEvent(ctx, event); err != nil && s.logger != nil {
		s.logger.Error("po event publish failed",
			slog.Int64("po_id", id), slog.String("kind", kind), slog.Any("error", err))
	}
}

func (s *Service) publishAlerts(ctx context.Context, raised []raisedAlert) {
	if s.alerts == nil {
		return
	}
	for _, r := range raised {
		event := items.AlertEvent{
			ItemID:     r.item.ID,
			ItemCode:   r.item.Code,
			ItemName:   r.item.Name,
			Type:       r.alertType,
			Stock:      r.item.Stock,
			ExpiryDate: r.item.ExpiryDate,
			OccurredAt: s.now().UTC(),
		}
		if err := s.alerts.PublishAlert(ctx, event); err != nil && s.logger != nil {
			s.logger.Error("alert event publish failed",
				slog.Int64("item_id", r.item.ID), slog.Any("error", err))
		}
	}
}

func (s *Service) today() time.Time {
	return s.now().UTC().Truncate(24 * time.Hour)
}

func buildLines(poID int64, inputs []POLineInput) []POLine {
	lines := make([]POLine, 0, len(inputs))
	for _, in := range inputs {
		lines = append(lines, POLine{
			POID:      poID,
			ItemID:    in.ItemID,
			Quantity:  in.Quantity,
			UnitPrice: in.UnitPrice,
			LineCost:  in.UnitPrice * float64(in.Quantity),
		})
	}
	return lines
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

func poLink(id int64) string {
	return fmt.Sprintf("/purchase-orders/%d", id)
}
