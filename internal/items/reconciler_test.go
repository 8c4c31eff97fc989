package items

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeAlertStore struct {
	open map[AlertType]bool
	log  []string
}

func newFakeAlertStore(open ...AlertType) *fakeAlertStore {
	s := &fakeAlertStore{open: map[AlertType]bool{}}
	for _, t := range open {
		s.open[t] = true
	}
	return s
}

func (s *fakeAlertStore) OpenAlertExists(_ context.Context, _ int64, t AlertType) (bool, error) {
	return s.open[t], nil
}

func (s *fakeAlertStore) ResolveAlerts(_ context.Context, _ int64, types ...AlertType) error {
	for _, t := range types {
		if s.open[t] {
			delete(s.open, t)
			s.log = append(s.log, "resolve:"+string(t))
		}
	}
	return nil
}

func (s *fakeAlertStore) CreateAlert(_ context.Context, _ int64, t AlertType) error {
	s.open[t] = true
	s.log = append(s.log, "create:"+string(t))
	return nil
}

func TestEvaluate(t *testing.T) {
	cases := []struct {
		name      string
		stock     int
		threshold int
		resolve   []AlertType
		create    AlertType
	}{
		{"above threshold", 10, 5, []AlertType{AlertLowStock, AlertOutOfStock}, ""},
		{"exactly zero", 0, 5, []AlertType{AlertLowStock}, AlertOutOfStock},
		{"at threshold", 5, 5, []AlertType{AlertOutOfStock}, AlertLowStock},
		{"below threshold", 2, 5, []AlertType{AlertOutOfStock}, AlertLowStock},
		{"zero threshold zero stock", 0, 0, []AlertType{AlertLowStock}, AlertOutOfStock},
		{"zero threshold with stock", 1, 0, []AlertType{AlertLowStock, AlertOutOfStock}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := evaluate(tc.stock, tc.threshold)
			require.Equal(t, tc.resolve, d.resolve)
			require.Equal(t, tc.create, d.create)
		})
	}
}

func TestReconcileRaisesLowStockOnce(t *testing.T) {
	ctx := context.Background()
	store := newFakeAlertStore()
	item := Item{ID: 1, Stock: 4, Threshold: 5}

	triggered, err := Reconcile(ctx, store, item)
	require.NoError(t, err)
	require.Equal(t, AlertLowStock, triggered)

	// Unchanged inputs must not raise again.
	triggered, err = Reconcile(ctx, store, item)
	require.NoError(t, err)
	require.Empty(t, triggered)
	require.Equal(t, []string{"create:Low Stock"}, store.log)
}

func TestReconcileSwitchesLowToOut(t *testing.T) {
	ctx := context.Background()
	store := newFakeAlertStore(AlertLowStock)
	item := Item{ID: 1, Stock: 0, Threshold: 5}

	triggered, err := Reconcile(ctx, store, item)
	require.NoError(t, err)
	require.Equal(t, AlertOutOfStock, triggered)
	require.False(t, store.open[AlertLowStock])
	require.True(t, store.open[AlertOutOfStock])
}

func TestReconcileResolvesAllAboveThreshold(t *testing.T) {
	ctx := context.Background()
	store := newFakeAlertStore(AlertLowStock, AlertOutOfStock)
	item := Item{ID: 1, Stock: 9, Threshold: 5}

	triggered, err := Reconcile(ctx, store, item)
	require.NoError(t, err)
	require.Empty(t, triggered)
	require.Empty(t, store.open)
}

func TestReconcileNeverTouchesExpired(t *testing.T) {
	ctx := context.Background()
	store := newFakeAlertStore(AlertExpired)

	_, err := Reconcile(ctx, store, Item{ID: 1, Stock: 100, Threshold: 5})
	require.NoError(t, err)
	require.True(t, store.open[AlertExpired])

	_, err = Reconcile(ctx, store, Item{ID: 1, Stock: 0, Threshold: 5})
	require.NoError(t, err)
	require.True(t, store.open[AlertExpired])
}
