package memstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-storefront/internal/orders"
)

func TestInTxDiscardsWritesOnError(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.PutProduct(orders.Product{ID: "p1", Name: "Shea butter", PriceCents: 1500, Stock: 4})

	boom := errors.New("boom")
	err := s.InTx(ctx, func(tx orders.Tx) error {
		require.NoError(t, tx.DecrementStock(ctx, "p1", 3))
		require.NoError(t, tx.InsertOrder(ctx, orders.Order{ID: "o1", UserID: "a1", Status: orders.StatusPaid}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	require.NoError(t, s.InTx(ctx, func(tx orders.Tx) error {
		p, err := tx.GetProduct(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, 4, p.Stock)

		_, err = tx.GetOrder(ctx, "o1")
		assert.ErrorIs(t, err, orders.ErrOrderNotFound)
		return nil
	}))
}

func TestDecrementStockRefusesToGoNegative(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.PutProduct(orders.Product{ID: "p1", Stock: 2})

	err := s.InTx(ctx, func(tx orders.Tx) error {
		return tx.DecrementStock(ctx, "p1", 3)
	})
	assert.ErrorIs(t, err, orders.ErrInsufficientStock)
}

func TestDeleteAwaitingOrdersOnlyTouchesOwnersPending(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.InTx(ctx, func(tx orders.Tx) error {
		for _, o := range []orders.Order{
			{ID: "o1", UserID: "a1", Status: orders.StatusAwaitingPayment},
			{ID: "o2", UserID: "a1", Status: orders.StatusPaid},
			{ID: "o3", UserID: "a2", Status: orders.StatusAwaitingPayment},
		} {
			if err := tx.InsertOrder(ctx, o); err != nil {
				return err
			}
		}
		return tx.InsertOrderItem(ctx, orders.OrderItem{OrderID: "o1", ProductID: "p1", Qty: 1})
	}))

	require.NoError(t, s.InTx(ctx, func(tx orders.Tx) error {
		n, err := tx.DeleteAwaitingOrders(ctx, "a1")
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		_, err = tx.GetOrder(ctx, "o1")
		assert.ErrorIs(t, err, orders.ErrOrderNotFound)
		_, err = tx.GetOrder(ctx, "o2")
		assert.NoError(t, err)
		_, err = tx.GetOrder(ctx, "o3")
		assert.NoError(t, err)
		return nil
	}))
}

func TestRecommendRanksCoPurchases(t *testing.T) {
	ctx := context.Background()
	s := New()
	for _, id := range []string{"p1", "p2", "p3", "p4"} {
		s.PutProduct(orders.Product{ID: id, SKU: id})
	}
	require.NoError(t, s.InTx(ctx, func(tx orders.Tx) error {
		add := func(orderID string, pids ...string) {
			require.NoError(t, tx.InsertOrder(ctx, orders.Order{ID: orderID, Status: orders.StatusPaid}))
			for _, pid := range pids {
				require.NoError(t, tx.InsertOrderItem(ctx, orders.OrderItem{OrderID: orderID, ProductID: pid, Qty: 1}))
			}
		}
		add("o1", "p1", "p2", "p3")
		add("o2", "p1", "p3")
		add("o3", "p4")
		return nil
	}))

	require.NoError(t, s.InTx(ctx, func(tx orders.Tx) error {
		recs, err := tx.Recommend(ctx, []string{"p1"}, 4)
		require.NoError(t, err)
		require.Len(t, recs, 2)
		assert.Equal(t, "p3", recs[0].ID)
		assert.Equal(t, "p2", recs[1].ID)
		return nil
	}))
}
