package checkout

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-storefront/internal/inventory"
	"github.com/ariefcatur/go-storefront/internal/orders"
)

func openCardOrder(t *testing.T, f *fixture) orders.Order {
	t.Helper()
	f.add(t, "a1", "p1", 2)
	f.add(t, "a1", "p2", 1)
	res, err := f.svc.Checkout(context.Background(), "a1", MethodCard)
	require.NoError(t, err)
	return res.Order
}

func TestCompletePaymentEitherOrderDecrementsOnce(t *testing.T) {
	orderings := map[string][]Trigger{
		"redirect first": {TriggerRedirect, TriggerWebhook},
		"webhook first":  {TriggerWebhook, TriggerRedirect},
	}
	for name, triggers := range orderings {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t, nil)
			o := openCardOrder(t, f)

			var comps []Completion
			for _, tr := range triggers {
				expect := ""
				if tr == TriggerRedirect {
					expect = "a1"
				}
				c, err := f.svc.CompletePayment(ctx, o.ID, expect, tr)
				require.NoError(t, err)
				comps = append(comps, c)
			}

			assert.False(t, comps[0].AlreadyProcessed)
			assert.Equal(t, orders.StatusPaid, comps[0].Order.Status)
			assert.Equal(t, []orders.Status{orders.StatusAwaitingPayment}, comps[0].Order.StatusHistory)
			assert.True(t, comps[1].AlreadyProcessed)

			assert.Equal(t, 3, f.stock(t, "p1"))
			assert.Equal(t, 3, f.stock(t, "p2"))
			assert.Empty(t, f.cartLines(t, "a1"))
			assert.Equal(t, 1, f.final.count())
			assert.Len(t, f.mailer.confirmed, 1)
		})
	}
}

func TestCompletePaymentConcurrentTriggers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	o := openCardOrder(t, f)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		processed int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tr := TriggerWebhook
			if i%2 == 0 {
				tr = TriggerRedirect
			}
			c, err := f.svc.CompletePayment(ctx, o.ID, "", tr)
			if err == nil && !c.AlreadyProcessed {
				mu.Lock()
				processed++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, processed)
	assert.Equal(t, 3, f.stock(t, "p1"))
}

func TestCompletePaymentRejectsForeignOrUnknownOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	o := openCardOrder(t, f)

	_, err := f.svc.CompletePayment(ctx, o.ID, "a2", TriggerRedirect)
	assert.ErrorIs(t, err, orders.ErrOrderNotFound)
	_, err = f.svc.CompletePayment(ctx, "missing", "", TriggerWebhook)
	assert.ErrorIs(t, err, orders.ErrOrderNotFound)
	assert.Equal(t, 5, f.stock(t, "p1"))
}

func TestCompletePaymentStockGoneRollsBack(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	o := openCardOrder(t, f)
	f.st.SetStock("p2", 0)

	_, err := f.svc.CompletePayment(ctx, o.ID, "", TriggerWebhook)
	var depleted *inventory.InsufficientStockError
	require.ErrorAs(t, err, &depleted)

	got, err := f.svc.Order(ctx, o.ID, "")
	require.NoError(t, err)
	assert.Equal(t, orders.StatusAwaitingPayment, got.Status)
	assert.Equal(t, 5, f.stock(t, "p1"))
	assert.Len(t, f.cartLines(t, "a1"), 2)
}

func TestCardMilestoneEvaluatedAtPayment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.st.SetMilestones([]int{2})

	f.add(t, "a2", "p2", 1)
	_, err := f.svc.Checkout(ctx, "a2", MethodCashOnDelivery)
	require.NoError(t, err)

	o := openCardOrder(t, f)
	assert.False(t, o.IsMilestone)
	c, err := f.svc.CompletePayment(ctx, o.ID, "", TriggerWebhook)
	require.NoError(t, err)
	assert.True(t, c.Order.IsMilestone)
	require.Len(t, c.Order.Items, 2)
	assert.Equal(t, "Black soap", c.Order.Items[0].Name)
	assert.Equal(t, "Baobab oil", c.Order.Items[1].Name)
}

// countedLast fails unless every product lock in calls comes before the
// ordinal counter.
func countedLast(t *testing.T, calls []string) {
	t.Helper()
	counted := false
	for _, c := range calls {
		if c == "count" {
			counted = true
			continue
		}
		assert.False(t, counted, "%s locked after counting orders: %v", c, calls)
	}
	assert.True(t, counted, "orders never counted: %v", calls)
}

func TestFinalizePathsLockProductsBeforeCounting(t *testing.T) {
	ctx := context.Background()
	var ll *lockLog
	f := newFixture(t, func(st orders.Store) orders.Store {
		ll = &lockLog{Store: st}
		return ll
	})

	f.add(t, "a2", "p1", 1)
	ll.reset()
	_, err := f.svc.Checkout(ctx, "a2", MethodCashOnDelivery)
	require.NoError(t, err)
	countedLast(t, ll.snapshot())

	o := openCardOrder(t, f)
	ll.reset()
	_, err = f.svc.CompletePayment(ctx, o.ID, "", TriggerWebhook)
	require.NoError(t, err)
	calls := ll.snapshot()
	countedLast(t, calls)
	assert.Equal(t, []string{"product:p1", "product:p2", "count"}, calls)
}
