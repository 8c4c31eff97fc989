package items

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/procura-ims/procura/internal/rbac"
	"github.com/procura-ims/procura/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetItem(ctx context.Context, id int64) (Item, error)
	ListItems(ctx context.Context, filter ListFilter) ([]Item, error)
	ListOpenAlerts(ctx context.Context) ([]StockAlert, error)
}

// ActivityPort abstracts the append-only activity log.
type ActivityPort interface {
	Record(ctx context.Context, entry shared.ActivityEntry) error
}

// alertRoles receive in-app notifications when an alert is raised.
var alertRoles = []string{rbac.RoleAdmin, rbac.RoleManager}

// Service coordinates item mutations. Every stock or threshold change
// reconciles alerts inside the same transaction.
type Service struct {
	repo     RepositoryPort
	gate     *rbac.Gate
	activity ActivityPort
	events   EventPublisher
	validate *validator.Validate
	logger   *slog.Logger
	now      func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, gate *rbac.Gate, activity ActivityPort, events EventPublisher, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		gate:     gate,
		activity: activity,
		events:   events,
		validate: validator.New(),
		logger:   logger,
		now:      time.Now,
	}
}

// GetItem fetches one item.
func (s *Service) GetItem(ctx context.Context, id int64) (Item, error) {
	return s.repo.GetItem(ctx, id)
}

// ListItems lists items.
func (s *Service) ListItems(ctx context.Context, filter ListFilter) ([]Item, error) {
	return s.repo.ListItems(ctx, filter)
}

// ListOpenAlerts lists unresolved alerts.
func (s *Service) ListOpenAlerts(ctx context.Context) ([]StockAlert, error) {
	return s.repo.ListOpenAlerts(ctx)
}

// CreateItem inserts a new item and reconciles its initial stock. An item
// created at zero stock immediately raises an Out of Stock alert.
func (s *Service) CreateItem(ctx context.Context, actor shared.Actor, input CreateItemInput) (Item, error) {
	if err := s.gate.RequireStaff(actor, rbac.CapEditItems); err != nil {
		return Item{}, err
	}
	if err := s.validate.Struct(input); err != nil {
		return Item{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	item := Item{
		Code:         input.Code,
		Name:         input.Name,
		CategoryID:   input.CategoryID,
		Brand:        input.Brand,
		UOM:          input.UOM,
		UnitCost:     input.UnitCost,
		SellingPrice: input.SellingPrice,
		Stock:        input.Stock,
		Threshold:    input.Threshold,
		ExpiryDate:   input.ExpiryDate,
		SupplierID:   input.SupplierID,
	}

	var triggered AlertType
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertItem(ctx, item)
		if err != nil {
			return err
		}
		item.ID = id
		triggered, err = Reconcile(ctx, tx, item)
		if err != nil {
			return err
		}
		if triggered != "" {
			return s.notifyAlert(ctx, tx, item, triggered)
		}
		return nil
	})
	if err != nil {
		return Item{}, err
	}

	s.recordActivity(ctx, actor, "Add", fmt.Sprintf(
		"Created new item '%s' (Code: %s, ID: %d)", item.Name, item.Code, item.ID))
	s.publishAlert(ctx, item, triggered)
	return item, nil
}

// UpdateItem replaces the editable fields of an item. Threshold-only edits
// still reconcile: existing stock is re-evaluated against the new threshold.
func (s *Service) UpdateItem(ctx context.Context, actor shared.Actor, id int64, input UpdateItemInput) (Item, error) {
	if err := s.gate.RequireStaff(actor, rbac.CapEditItems); err != nil {
		return Item{}, err
	}
	if err := s.validate.Struct(input); err != nil {
		return Item{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	var (
		item      Item
		triggered AlertType
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetItemForUpdate(ctx, id)
		if err != nil {
			return err
		}
		item = current
		item.Code = input.Code
		item.Name = input.Name
		item.CategoryID = input.CategoryID
		item.Brand = input.Brand
		item.UOM = input.UOM
		item.UnitCost = input.UnitCost
		item.SellingPrice = input.SellingPrice
		item.Stock = input.Stock
		item.Threshold = input.Threshold
		item.ExpiryDate = input.ExpiryDate
		item.SupplierID = input.SupplierID

		if err := tx.UpdateItem(ctx, item); err != nil {
			return err
		}
		triggered, err = Reconcile(ctx, tx, item)
		if err != nil {
			return err
		}
		if triggered != "" {
			return s.notifyAlert(ctx, tx, item, triggered)
		}
		return nil
	})
	if err != nil {
		return Item{}, err
	}

	s.recordActivity(ctx, actor, "Update", fmt.Sprintf(
		"Updated item '%s' (Code: %s, ID: %d)", item.Name, item.Code, item.ID))
	s.publishAlert(ctx, item, triggered)
	return item, nil
}

// AdjustStock applies a signed manual delta. A delta driving stock below
// zero is rejected and leaves the item untouched.
func (s *Service) AdjustStock(ctx context.Context, actor shared.Actor, id int64, input AdjustStockInput) (Item, error) {
	if err := s.gate.RequireStaff(actor, rbac.CapAdjustStock); err != nil {
		return Item{}, err
	}
	if err := s.validate.Struct(input); err != nil {
		return Item{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	var (
		item      Item
		triggered AlertType
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetItemForUpdate(ctx, id)
		if err != nil {
			return err
		}
		newStock := current.Stock + input.Delta
		if newStock < 0 {
			return ErrInsufficientStock
		}
		if err := tx.SetStock(ctx, id, newStock); err != nil {
			return err
		}
		item = current
		item.Stock = newStock

		triggered, err = Reconcile(ctx, tx, item)
		if err != nil {
			return err
		}
		if triggered != "" {
			if err := s.notifyAlert(ctx, tx, item, triggered); err != nil {
				return err
			}
		}
		msg := fmt.Sprintf("Stock for '%s' was adjusted by %d by %s. Reason: %s",
			item.Name, input.Delta, actor.DisplayName, input.Reason)
		return s.notifyRoles(ctx, tx, "Stock Adjusted", msg, itemLink(item.ID))
	})
	if err != nil {
		return Item{}, err
	}

	actionType := "Stock Increase"
	if input.Delta < 0 {
		actionType = "Stock Decrease"
	}
	s.recordActivity(ctx, actor, actionType, fmt.Sprintf(
		"Adjusted stock for Item ID %d (%s) by %d units. New Qty: %d. Reason: %s",
		item.ID, item.Name, input.Delta, item.Stock, input.Reason))
	s.publishAlert(ctx, item, triggered)
	return item, nil
}

// DeleteItem removes an item; its alerts cascade away with it.
func (s *Service) DeleteItem(ctx context.Context, actor shared.Actor, id int64) error {
	if err := s.gate.RequireStaff(actor, rbac.CapDeleteItems); err != nil {
		return err
	}

	var item Item
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetItemForUpdate(ctx, id)
		if err != nil {
			return err
		}
		item = current
		return tx.DeleteItem(ctx, id)
	})
	if err != nil {
		return err
	}

	s.recordActivity(ctx, actor, "Delete", fmt.Sprintf(
		"Deleted item '%s' (Code: %s, ID: %d)", item.Name, item.Code, item.ID))
	return nil
}

// SweepExpired raises one-shot Expired alerts for items whose expiry date
// has passed while stock remains. Safe to repeat: items already carrying an
// open Expired alert are skipped. Returns the count of newly flagged items.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	today := s.now().UTC().Truncate(24 * time.Hour)

	var flagged []Item
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		candidates, err := tx.ExpiryCandidates(ctx, today)
		if err != nil {
			return err
		}
		for _, item := range candidates {
			if err := tx.CreateAlert(ctx, item.ID, AlertExpired); err != nil {
				return err
			}
			if err := s.notifyAlert(ctx, tx, item, AlertExpired); err != nil {
				return err
			}
			flagged = append(flagged, item)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, item := range flagged {
		s.publishAlert(ctx, item, AlertExpired)
	}
	return len(flagged), nil
}

func (s *Service) notifyAlert(ctx context.Context, tx TxRepository, item Item, alertType AlertType) error {
	title, msg, ok := AlertNotice(item, alertType)
	if !ok {
		return nil
	}
	return s.notifyRoles(ctx, tx, title, msg, itemLink(item.ID))
}

func (s *Service) notifyRoles(ctx context.Context, tx TxRepository, title, msg, link string) error {
	for _, role := range alertRoles {
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
		Module:      "Item",
		Description: description,
	})
	if err != nil && s.logger != nil {
		s.logger.Error("activity log write failed", slog.Any("error", err))
	}
}

func (s *Service) publishAlert(ctx context.Context, item Item, alertType AlertType) {
	if s.events == nil || alertType == "" {
		return
	}
	event := AlertEvent{
		ItemID:     item.ID,
		ItemCode:   item.Code,
		ItemName:   item.Name,
		Type:       alertType,
		Stock:      item.Stock,
		ExpiryDate: item.ExpiryDate,
		OccurredAt: s.now().UTC(),
	}
	if err := s.events.PublishAlert(ctx, event); err != nil && s.logger != nil {
		s.logger.Error("alert event publish failed",
			slog.Int64("item_id", item.ID),
			slog.String("alert_type", string(alertType)),
			slog.Any("error", err))
	}
}

func itemLink(id int64) string {
	return fmt.Sprintf("/items/%d", id)
}
