package items

import "context"

// AlertStore is the minimal alert surface the reconciler needs. Both the
// items transactional repository and the procurement one implement it so
// stock posted on order completion reconciles inside the same transaction.
type AlertStore interface {
	OpenAlertExists(ctx context.Context, itemID int64, alertType AlertType) (bool, error)
	ResolveAlerts(ctx context.Context, itemID int64, types ...AlertType) error
	CreateAlert(ctx context.Context, itemID int64, alertType AlertType) error
}

// decision is the outcome of evaluating stock against threshold.
type decision struct {
	resolve []AlertType
	create  AlertType
}

// evaluate computes the alert action for a stock/threshold pair. Exactly
// one branch applies:
//
//	stock > threshold      resolve Low Stock and Out of Stock
//	stock == 0             resolve Low Stock, raise Out of Stock
//	0 < stock <= threshold resolve Out of Stock, raise Low Stock
//
// Expired alerts are never touched here.
func evaluate(stock, threshold int) decision {
	switch {
	case stock > threshold:
		return decision{resolve: []AlertType{AlertLowStock, AlertOutOfStock}}
	case stock == 0:
		return decision{resolve: []AlertType{AlertLowStock}, create: AlertOutOfStock}
	default:
		return decision{resolve: []AlertType{AlertOutOfStock}, create: AlertLowStock}
	}
}

// Reconcile applies the alert decision for the item's current stock and
// threshold. It must run after every stock or threshold mutation, inside
// the same transaction. The returned AlertType is non-empty only when a
// new alert was raised this call; callers use it to fan out notifications.
// Running twice with unchanged inputs raises nothing the second time.
func Reconcile(ctx context.Context, store AlertStore, item Item) (AlertType, error) {
	d := evaluate(item.Stock, item.Threshold)

	if err := store.ResolveAlerts(ctx, item.ID, d.resolve...); err != nil {
		return "", err
	}
	if d.create == "" {
		return "", nil
	}
	open, err := store.OpenAlertExists(ctx, item.ID, d.create)
	if err != nil {
		return "", err
	}
	if open {
		return "", nil
	}
	if err := store.CreateAlert(ctx, item.ID, d.create); err != nil {
		return "", err
	}
	return d.create, nil
}
