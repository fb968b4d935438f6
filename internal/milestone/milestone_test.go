package milestone

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-storefront/internal/memstore"
	"github.com/ariefcatur/go-storefront/internal/orders"
)

func TestIsMilestone(t *testing.T) {
	thresholds := []int{1, 5}
	cases := map[int]bool{1: true, 2: false, 4: false, 5: true, 6: false}
	for ordinal, want := range cases {
		assert.Equal(t, want, IsMilestone(ordinal, thresholds), "ordinal %d", ordinal)
	}
	assert.False(t, IsMilestone(1, nil))
}

func TestEvaluateCountsOnlyFinalizedOrders(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	st.SetMilestones([]int{1, 5})

	statuses := []orders.Status{
		orders.StatusCashOnDelivery, orders.StatusPaid, orders.StatusShipped, orders.StatusCompleted,
		orders.StatusAwaitingPayment, orders.StatusCancelled,
	}
	require.NoError(t, st.InTx(ctx, func(tx orders.Tx) error {
		ok, ord, err := Evaluate(ctx, tx)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 1, ord)

		for i, s := range statuses {
			require.NoError(t, tx.InsertOrder(ctx, orders.Order{ID: string(rune('a' + i)), UserID: "u", Status: s}))
		}
		ok, ord, err = Evaluate(ctx, tx)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 5, ord)
		return nil
	}))
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "milestones.yaml")
	require.NoError(t, os.WriteFile(path, []byte("milestones: [100, 1, 10]\n"), 0o600))

	got, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 10, 100}, got)

	_, err = Parse([]byte("milestones: [1, 1]"))
	assert.Error(t, err)
	_, err = Parse([]byte("milestones: [0]"))
	assert.Error(t, err)
}
