// Package memstore is an in-process orders.Store. Transactions are
// serialised by a single mutex and run against a private copy of the state,
// which replaces the live state only when the transaction function succeeds.
package memstore

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/ariefcatur/go-storefront/internal/orders"
)

type state struct {
	products   map[string]orders.Product
	carts      map[string]map[string]orders.CartLine // account -> product -> line
	orders     map[string]orders.Order
	orderIDs   []string // insertion order
	milestones []int
	accounts   map[string]string // id -> email
}

func newState() *state {
	return &state{
		products: map[string]orders.Product{},
		carts:    map[string]map[string]orders.CartLine{},
		orders:   map[string]orders.Order{},
		accounts: map[string]string{},
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.products {
		c.products[k] = v
	}
	for acc, lines := range s.carts {
		m := make(map[string]orders.CartLine, len(lines))
		for pid, l := range lines {
			if l.ReservedUntil != nil {
				t := *l.ReservedUntil
				l.ReservedUntil = &t
			}
			m[pid] = l
		}
		c.carts[acc] = m
	}
	for k, o := range s.orders {
		o.Items = slices.Clone(o.Items)
		o.StatusHistory = slices.Clone(o.StatusHistory)
		c.orders[k] = o
	}
	c.orderIDs = slices.Clone(s.orderIDs)
	c.milestones = slices.Clone(s.milestones)
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	return c
}

type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
}

func New() *Store {
	return &Store{st: newState(), now: time.Now}
}

func (s *Store) InTx(ctx context.Context, fn func(tx orders.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.st.clone()
	if err := fn(&tx{st: work, now: s.now}); err != nil {
		return err
	}
	s.st = work
	return nil
}

// Seeding helpers; they bypass transactions.

func (s *Store) PutProduct(p orders.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	s.st.products[p.ID] = p
}

func (s *Store) SetStock(productID string, stock int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.st.products[productID]
	p.Stock = stock
	s.st.products[productID] = p
}

func (s *Store) PutAccount(id, email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.accounts[id] = email
}

func (s *Store) SetMilestones(thresholds []int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.milestones = slices.Clone(thresholds)
}

type tx struct {
	st  *state
	now func() time.Time
}

func (t *tx) GetProduct(_ context.Context, id string) (orders.Product, error) {
	p, ok := t.st.products[id]
	if !ok {
		return orders.Product{}, orders.ErrProductNotFound
	}
	return p, nil
}

func (t *tx) LockProduct(ctx context.Context, id string) (orders.Product, error) {
	return t.GetProduct(ctx, id)
}

func (t *tx) ListProducts(_ context.Context) ([]orders.Product, error) {
	out := make([]orders.Product, 0, len(t.st.products))
	for _, p := range t.st.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	return out, nil
}

func (t *tx) DecrementStock(_ context.Context, productID string, qty int) error {
	p, ok := t.st.products[productID]
	if !ok {
		return orders.ErrProductNotFound
	}
	if p.Stock < qty {
		return orders.ErrInsufficientStock
	}
	p.Stock -= qty
	p.UpdatedAt = t.now().UTC()
	t.st.products[productID] = p
	return nil
}

func (t *tx) Recommend(_ context.Context, productIDs []string, limit int) ([]orders.Product, error) {
	inCart := map[string]bool{}
	for _, id := range productIDs {
		inCart[id] = true
	}
	counts := map[string]int{}
	for _, o := range t.st.orders {
		relevant := false
		for _, it := range o.Items {
			if inCart[it.ProductID] {
				relevant = true
				break
			}
		}
		if !relevant {
			continue
		}
		for _, it := range o.Items {
			if !inCart[it.ProductID] {
				counts[it.ProductID]++
			}
		}
	}
	ids := make([]string, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if counts[ids[i]] != counts[ids[j]] {
			return counts[ids[i]] > counts[ids[j]]
		}
		return ids[i] < ids[j]
	})
	var out []orders.Product
	for _, id := range ids {
		if len(out) == limit {
			break
		}
		if p, ok := t.st.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (t *tx) CartLines(_ context.Context, accountID string) ([]orders.CartLine, error) {
	lines := t.st.carts[accountID]
	out := make([]orders.CartLine, 0, len(lines))
	for _, l := range lines {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func (t *tx) UpsertCartLine(_ context.Context, line orders.CartLine) error {
	if _, ok := t.st.products[line.ProductID]; !ok {
		return orders.ErrProductNotFound
	}
	m, ok := t.st.carts[line.AccountID]
	if !ok {
		m = map[string]orders.CartLine{}
		t.st.carts[line.AccountID] = m
	}
	m[line.ProductID] = line
	return nil
}

func (t *tx) DeleteCartLine(_ context.Context, accountID, productID string) error {
	delete(t.st.carts[accountID], productID)
	return nil
}

func (t *tx) ClearCart(_ context.Context, accountID string) error {
	delete(t.st.carts, accountID)
	return nil
}

func (t *tx) InsertOrder(_ context.Context, o orders.Order) error {
	if _, dup := t.st.orders[o.ID]; dup {
		return fmt.Errorf("order %s already exists", o.ID)
	}
	o.Items = nil
	o.StatusHistory = slices.Clone(o.StatusHistory)
	t.st.orders[o.ID] = o
	t.st.orderIDs = append(t.st.orderIDs, o.ID)
	return nil
}

func (t *tx) InsertOrderItem(_ context.Context, it orders.OrderItem) error {
	o, ok := t.st.orders[it.OrderID]
	if !ok {
		return orders.ErrOrderNotFound
	}
	o.Items = append(o.Items, it)
	t.st.orders[it.OrderID] = o
	return nil
}

func (t *tx) GetOrder(_ context.Context, id string) (orders.Order, error) {
	o, ok := t.st.orders[id]
	if !ok {
		return orders.Order{}, orders.ErrOrderNotFound
	}
	o.Items = slices.Clone(o.Items)
	o.StatusHistory = slices.Clone(o.StatusHistory)
	return o, nil
}

func (t *tx) LockOrder(ctx context.Context, id string) (orders.Order, error) {
	return t.GetOrder(ctx, id)
}

func (t *tx) UpdateOrder(_ context.Context, o orders.Order) error {
	cur, ok := t.st.orders[o.ID]
	if !ok {
		return orders.ErrOrderNotFound
	}
	cur.Status = o.Status
	cur.StatusHistory = slices.Clone(o.StatusHistory)
	cur.IsMilestone = o.IsMilestone
	cur.UpdatedAt = o.UpdatedAt
	t.st.orders[o.ID] = cur
	return nil
}

func (t *tx) DeleteAwaitingOrders(_ context.Context, accountID string) (int, error) {
	n := 0
	kept := t.st.orderIDs[:0]
	for _, id := range t.st.orderIDs {
		o := t.st.orders[id]
		if o.UserID == accountID && o.Status == orders.StatusAwaitingPayment {
			delete(t.st.orders, id)
			n++
			continue
		}
		kept = append(kept, id)
	}
	t.st.orderIDs = kept
	return n, nil
}

func (t *tx) CountOrders(_ context.Context, statuses []orders.Status) (int, error) {
	n := 0
	for _, o := range t.st.orders {
		if slices.Contains(statuses, o.Status) {
			n++
		}
	}
	return n, nil
}

func (t *tx) Milestones(_ context.Context) ([]int, error) {
	return slices.Clone(t.st.milestones), nil
}

func (t *tx) AccountEmail(_ context.Context, accountID string) (string, error) {
	email, ok := t.st.accounts[accountID]
	if !ok {
		return "", orders.ErrAccountNotFound
	}
	return email, nil
}
