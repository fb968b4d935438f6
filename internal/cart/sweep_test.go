package cart

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-storefront/internal/orders"
)

func TestSweepExpiredReleasesHold(t *testing.T) {
	ctx := context.Background()
	svc, st, now := newFixture(t)

	_, err := svc.Add(ctx, Account("a1"), "p1", 3)
	require.NoError(t, err)
	_, err = svc.Add(ctx, Account("a1"), "p2", 1)
	require.NoError(t, err)

	*now = t0.Add(ReservationWindow + time.Second)
	_, err = svc.Add(ctx, Account("a1"), "p2", 1) // keeps p2 alive
	require.NoError(t, err)

	err = svc.SweepExpired(ctx, "a1")
	var expErr *ExpiredError
	require.ErrorAs(t, err, &expErr)
	assert.Equal(t, []string{"Black soap"}, expErr.Products)

	lines := accountLines(t, st, "a1")
	require.Len(t, lines, 1)
	assert.Equal(t, "p2", lines[0].ProductID)

	// the expired units no longer count against capacity
	_, err = svc.Add(ctx, Account("a1"), "p1", 3)
	assert.NoError(t, err)
}

func TestSweepIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, _, now := newFixture(t)
	_, err := svc.Add(ctx, Account("a1"), "p1", 1)
	require.NoError(t, err)

	*now = t0.Add(time.Hour)
	require.Error(t, svc.SweepExpired(ctx, "a1"))
	assert.NoError(t, svc.SweepExpired(ctx, "a1"))
}

func TestSweepKeepsLineAtExactDeadline(t *testing.T) {
	ctx := context.Background()
	_, st, _ := newFixture(t)
	until := t0
	require.NoError(t, st.InTx(ctx, func(tx orders.Tx) error {
		require.NoError(t, tx.UpsertCartLine(ctx, orders.CartLine{AccountID: "a1", ProductID: "p1", Qty: 1, ReservedUntil: &until}))
		expired, err := Sweep(ctx, tx, "a1", t0)
		require.NoError(t, err)
		assert.Empty(t, expired)
		return nil
	}))
}
