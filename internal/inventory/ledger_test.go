package inventory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-storefront/internal/orders"
)

func TestCheckCapacity(t *testing.T) {
	p := orders.Product{ID: "p1", Name: "Bissap syrup", Stock: 3}

	tests := []struct {
		name      string
		stock     int
		requested int
		held      int
		ok        bool
		msg       string
	}{
		{"fits exactly", 3, 3, 0, true, "3 x Bissap syrup added to cart."},
		{"fits with held", 3, 1, 2, true, "1 x Bissap syrup added to cart."},
		{"one over", 3, 1, 3, false, "Cannot add 1 x Bissap syrup: only 0 more available."},
		{"partial", 3, 5, 1, false, "Cannot add 5 x Bissap syrup: only 2 more available."},
		{"held above stock", 3, 1, 5, false, "Cannot add 1 x Bissap syrup: only 0 more available."},
		{"out of stock", 0, 1, 0, false, "Sorry, Bissap syrup is out of stock."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p.Stock = tt.stock
			ok, msg := CheckCapacity(p, tt.requested, tt.held)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.msg, msg)
		})
	}
}

func TestCheckCapacityNeverAdmitsMoreThanStock(t *testing.T) {
	for stock := 0; stock <= 6; stock++ {
		for held := 0; held <= 6; held++ {
			for req := 1; req <= 6; req++ {
				ok, _ := CheckCapacity(orders.Product{Name: "x", Stock: stock}, req, held)
				if ok {
					assert.LessOrEqual(t, held+req, stock, "stock=%d held=%d req=%d", stock, held, req)
				}
			}
		}
	}
}

type fakeDecrementer struct{ err error }

func (f fakeDecrementer) DecrementStock(context.Context, string, int) error { return f.err }

func TestCommitDecrementMapsInsufficientStock(t *testing.T) {
	err := CommitDecrement(context.Background(), fakeDecrementer{err: orders.ErrInsufficientStock}, "p1", "Kola nuts", 2)

	var ise *InsufficientStockError
	require.True(t, errors.As(err, &ise))
	assert.Equal(t, "p1", ise.ProductID)
	assert.Equal(t, 2, ise.Requested)
	assert.ErrorIs(t, err, orders.ErrInsufficientStock)
}

func TestCommitDecrementPassesOtherErrorsThrough(t *testing.T) {
	boom := errors.New("conn reset")
	err := CommitDecrement(context.Background(), fakeDecrementer{err: boom}, "p1", "Kola nuts", 2)
	assert.ErrorIs(t, err, boom)

	assert.NoError(t, CommitDecrement(context.Background(), fakeDecrementer{}, "p1", "Kola nuts", 2))
}
