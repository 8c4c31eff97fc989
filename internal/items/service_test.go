package items

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/procura-ims/procura/internal/rbac"
	"github.com/procura-ims/procura/internal/shared"
)

type memNotice struct {
	Role  string
	Title string
}

type memRepo struct {
	items       map[int64]Item
	nextItemID  int64
	alerts      []StockAlert
	nextAlertID int64
	notices     []memNotice
}

func newMemRepo() *memRepo {
	return &memRepo{items: map[int64]Item{}, nextItemID: 1, nextAlertID: 1}
}

func (m *memRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, m)
}

func (m *memRepo) GetItem(_ context.Context, id int64) (Item, error) {
	item, ok := m.items[id]
	if !ok {
		return Item{}, ErrNotFound
	}
	return item, nil
}

func (m *memRepo) ListItems(_ context.Context, _ ListFilter) ([]Item, error) {
	var out []Item
	for _, item := range m.items {
		out = append(out, item)
	}
	return out, nil
}

func (m *memRepo) ListOpenAlerts(_ context.Context) ([]StockAlert, error) {
	var out []StockAlert
	for _, a := range m.alerts {
		if !a.Resolved {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memRepo) GetItemForUpdate(ctx context.Context, id int64) (Item, error) {
	return m.GetItem(ctx, id)
}

func (m *memRepo) InsertItem(_ context.Context, item Item) (int64, error) {
	for _, existing := range m.items {
		if existing.Code == item.Code {
			return 0, ErrDuplicateCode
		}
	}
	id := m.nextItemID
	m.nextItemID++
	item.ID = id
	m.items[id] = item
	return id, nil
}

func (m *memRepo) UpdateItem(_ context.Context, item Item) error {
	if _, ok := m.items[item.ID]; !ok {
		return ErrNotFound
	}
	m.items[item.ID] = item
	return nil
}

func (m *memRepo) SetStock(_ context.Context, id int64, stock int) error {
	item, ok := m.items[id]
	if !ok {
		return ErrNotFound
	}
	item.Stock = stock
	m.items[id] = item
	return nil
}

func (m *memRepo) DeleteItem(_ context.Context, id int64) error {
	if _, ok := m.items[id]; !ok {
		return ErrNotFound
	}
	delete(m.items, id)
	var kept []StockAlert
	for _, a := range m.alerts {
		if a.ItemID != id {
			kept = append(kept, a)
		}
	}
	m.alerts = kept
	return nil
}

func (m *memRepo) OpenAlertExists(_ context.Context, itemID int64, alertType AlertType) (bool, error) {
	for _, a := range m.alerts {
		if a.ItemID == itemID && a.Type == alertType && !a.Resolved {
			return true, nil
		}
	}
	return false, nil
}

func (m *memRepo) ResolveAlerts(_ context.Context, itemID int64, types ...AlertType) error {
	for i, a := range m.alerts {
		if a.ItemID != itemID || a.Resolved {
			continue
		}
		for _, t := range types {
			if a.Type == t {
				m.alerts[i].Resolved = true
			}
		}
	}
	return nil
}

func (m *memRepo) CreateAlert(_ context.Context, itemID int64, alertType AlertType) error {
	m.alerts = append(m.alerts, StockAlert{
		ID:     m.nextAlertID,
		ItemID: itemID,
		Type:   alertType,
	})
	m.nextAlertID++
	return nil
}

func (m *memRepo) ExpiryCandidates(_ context.Context, today time.Time) ([]Item, error) {
	var out []Item
	for _, item := range m.items {
		if item.ExpiryDate == nil || item.Stock <= 0 || item.ExpiryDate.After(today) {
			continue
		}
		flagged, _ := m.OpenAlertExists(context.Background(), item.ID, AlertExpired)
		if !flagged {
			out = append(out, item)
		}
	}
	return out, nil
}

func (m *memRepo) NotifyRole(_ context.Context, role, title, _, _ string) error {
	m.notices = append(m.notices, memNotice{Role: role, Title: title})
	return nil
}

func (m *memRepo) openAlerts(itemID int64) []AlertType {
	var out []AlertType
	for _, a := range m.alerts {
		if a.ItemID == itemID && !a.Resolved {
			out = append(out, a.Type)
		}
	}
	return out
}

type memPublisher struct {
	events []AlertEvent
}

func (p *memPublisher) PublishAlert(_ context.Context, event AlertEvent) error {
	p.events = append(p.events, event)
	return nil
}

func adminActor() shared.Actor {
	return shared.Actor{Kind: shared.ActorStaff, UserID: 1, Role: rbac.RoleAdmin, DisplayName: "Ana Admin"}
}

func newTestService(repo *memRepo, pub *memPublisher) *Service {
	return NewService(repo, rbac.NewGate(), nil, pub, slog.Default())
}

func seedItem(t *testing.T, repo *memRepo, stock, threshold int) Item {
	t.Helper()
	id, err := repo.InsertItem(context.Background(), Item{
		Code: "ITM-001", Name: "Widget", CategoryID: 1, Stock: stock,
		Threshold: threshold, SupplierID: 1,
	})
	require.NoError(t, err)
	item := repo.items[id]
	return item
}

func TestAdjustStockLowStockScenario(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	pub := &memPublisher{}
	svc := newTestService(repo, pub)
	item := seedItem(t, repo, 10, 5)

	// Drop to 4: Low Stock raised, signaled once.
	updated, err := svc.AdjustStock(ctx, adminActor(), item.ID, AdjustStockInput{Delta: -6, Reason: "damaged"})
	require.NoError(t, err)
	require.Equal(t, 4, updated.Stock)
	require.Equal(t, []AlertType{AlertLowStock}, repo.openAlerts(item.ID))
	require.Len(t, pub.events, 1)
	require.Equal(t, AlertLowStock, pub.events[0].Type)

	// Still at threshold: no duplicate alert, no new signal.
	updated, err = svc.AdjustStock(ctx, adminActor(), item.ID, AdjustStockInput{Delta: 1, Reason: "recount"})
	require.NoError(t, err)
	require.Equal(t, 5, updated.Stock)
	require.Equal(t, []AlertType{AlertLowStock}, repo.openAlerts(item.ID))
	require.Len(t, pub.events, 1)

	// Back above threshold: alert resolved, nothing new raised.
	updated, err = svc.AdjustStock(ctx, adminActor(), item.ID, AdjustStockInput{Delta: 10, Reason: "restock"})
	require.NoError(t, err)
	require.Equal(t, 15, updated.Stock)
	require.Empty(t, repo.openAlerts(item.ID))
	require.Len(t, pub.events, 1)
}

func TestAdjustStockRejectsNegativeResult(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	svc := newTestService(repo, &memPublisher{})
	item := seedItem(t, repo, 4, 5)

	_, err := svc.AdjustStock(ctx, adminActor(), item.ID, AdjustStockInput{Delta: -5, Reason: "shrinkage"})
	require.ErrorIs(t, err, ErrInsufficientStock)
	require.Equal(t, 4, repo.items[item.ID].Stock)
}

func TestAdjustStockToZeroRaisesOutOfStock(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	pub := &memPublisher{}
	svc := newTestService(repo, pub)
	item := seedItem(t, repo, 3, 5)

	// Low Stock is already open at 3.
	_, err := svc.AdjustStock(ctx, adminActor(), item.ID, AdjustStockInput{Delta: -1, Reason: "sold"})
	require.NoError(t, err)
	require.Equal(t, []AlertType{AlertLowStock}, repo.openAlerts(item.ID))

	// Hitting zero resolves Low Stock and raises Out of Stock.
	_, err = svc.AdjustStock(ctx, adminActor(), item.ID, AdjustStockInput{Delta: -2, Reason: "sold out"})
	require.NoError(t, err)
	require.Equal(t, []AlertType{AlertOutOfStock}, repo.openAlerts(item.ID))
	require.Equal(t, AlertOutOfStock, pub.events[len(pub.events)-1].Type)
}

func TestCreateItemAtZeroStock(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	pub := &memPublisher{}
	svc := newTestService(repo, pub)

	item, err := svc.CreateItem(ctx, adminActor(), CreateItemInput{
		Code: "ITM-002", Name: "Gadget", CategoryID: 1, Stock: 0, Threshold: 3, SupplierID: 1,
	})
	require.NoError(t, err)
	require.Equal(t, []AlertType{AlertOutOfStock}, repo.openAlerts(item.ID))
	require.Len(t, pub.events, 1)

	// In-app fan-out went to Admin and Manager.
	require.Len(t, repo.notices, 2)
	require.Equal(t, "Out of Stock Alert", repo.notices[0].Title)
}

func TestUpdateItemThresholdOnlyReconciles(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	pub := &memPublisher{}
	svc := newTestService(repo, pub)
	item := seedItem(t, repo, 10, 5)

	// Raising the threshold above existing stock raises Low Stock.
	_, err := svc.UpdateItem(ctx, adminActor(), item.ID, UpdateItemInput{
		Code: item.Code, Name: item.Name, CategoryID: item.CategoryID,
		Stock: item.Stock, Threshold: 12, SupplierID: item.SupplierID,
	})
	require.NoError(t, err)
	require.Equal(t, []AlertType{AlertLowStock}, repo.openAlerts(item.ID))
	require.Len(t, pub.events, 1)
}

func TestCreateItemRequiresCapability(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	svc := newTestService(repo, &memPublisher{})

	supplier := shared.Actor{Kind: shared.ActorSupplier, SupplierID: 4}
	_, err := svc.CreateItem(ctx, supplier, CreateItemInput{
		Code: "ITM-003", Name: "Widget", CategoryID: 1, SupplierID: 1,
	})
	require.ErrorIs(t, err, rbac.ErrForbidden)
	require.Empty(t, repo.items)
}

func TestSweepExpiredIsOneShot(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	pub := &memPublisher{}
	svc := newTestService(repo, pub)

	past := time.Now().UTC().AddDate(0, 0, -3)
	future := time.Now().UTC().AddDate(0, 0, 30)

	expiredID, err := repo.InsertItem(ctx, Item{
		Code: "EXP-1", Name: "Old Stock", CategoryID: 1, Stock: 7,
		Threshold: 2, SupplierID: 1, ExpiryDate: &past,
	})
	require.NoError(t, err)
	_, err = repo.InsertItem(ctx, Item{
		Code: "EXP-2", Name: "Fresh Stock", CategoryID: 1, Stock: 7,
		Threshold: 2, SupplierID: 1, ExpiryDate: &future,
	})
	require.NoError(t, err)
	_, err = repo.InsertItem(ctx, Item{
		Code: "EXP-3", Name: "Empty Expired", CategoryID: 1, Stock: 0,
		Threshold: 2, SupplierID: 1, ExpiryDate: &past,
	})
	require.NoError(t, err)

	count, err := svc.SweepExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)
	require.Contains(t, repo.openAlerts(expiredID), AlertExpired)
	require.Len(t, pub.events, 1)
	require.Equal(t, AlertExpired, pub.events[0].Type)

	// Second sweep finds nothing new.
	count, err = svc.SweepExpired(ctx)
	require.NoError(t, err)
	require.Zero(t, count)
	require.Len(t, pub.events, 1)
}

func TestExpiredAlertSurvivesStockChanges(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	svc := newTestService(repo, &memPublisher{})

	past := time.Now().UTC().AddDate(0, 0, -1)
	id, err := repo.InsertItem(ctx, Item{
		Code: "EXP-9", Name: "Stale", CategoryID: 1, Stock: 5,
		Threshold: 2, SupplierID: 1, ExpiryDate: &past,
	})
	require.NoError(t, err)

	_, err = svc.SweepExpired(ctx)
	require.NoError(t, err)
	require.Contains(t, repo.openAlerts(id), AlertExpired)

	_, err = svc.AdjustStock(ctx, adminActor(), id, AdjustStockInput{Delta: 20, Reason: "restock"})
	require.NoError(t, err)
	require.Contains(t, repo.openAlerts(id), AlertExpired)
}

func TestDeleteItemDropsAlerts(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	svc := newTestService(repo, &memPublisher{})
	item := seedItem(t, repo, 0, 5)

	require.NoError(t, repo.CreateAlert(ctx, item.ID, AlertOutOfStock))
	require.NoError(t, svc.DeleteItem(ctx, adminActor(), item.ID))
	require.Empty(t, repo.items)
	require.Empty(t, repo.alerts)
}
