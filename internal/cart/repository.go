package cart

import (
	"context"
	"errors"
	"maps"
	"sort"
	"time"

	"github.com/ariefcatur/go-storefront/internal/orders"
)

// Line is one product/quantity selection. ReservedUntil is only ever set
// for account-backed carts.
type Line struct {
	ProductID     string
	Qty           int
	ReservedUntil *time.Time
}

// Repository is a cart's backing store. The cart logic is written once
// against it; which implementation is used depends on who owns the cart.
type Repository interface {
	Lines(ctx context.Context) ([]Line, error)
	Get(ctx context.Context, productID string) (Line, bool, error)
	Put(ctx context.Context, line Line) error
	Remove(ctx context.Context, productID string) error
	Clear(ctx context.Context) error
	// Reserves reports whether lines in this cart carry reservation deadlines.
	Reserves() bool
}

// Session is the anonymous cart of a single visitor. It is request scoped:
// the HTTP layer loads it from and saves it back to the session store.
type Session struct {
	Token string
	Items map[string]int // product id -> qty
}

func NewSession(token string) *Session {
	return &Session{Token: token, Items: map[string]int{}}
}

func (s *Session) Empty() bool { return len(s.Items) == 0 }

var ErrInvalidOwner = errors.New("cart owner must be exactly one of account or session")

// Owner identifies a cart: an authenticated account or an anonymous session,
// never both.
type Owner struct {
	AccountID string
	Session   *Session
}

func Account(id string) Owner       { return Owner{AccountID: id} }
func Anonymous(s *Session) Owner    { return Owner{Session: s} }
func (o Owner) Authenticated() bool { return o.AccountID != "" }

func (o Owner) validate() error {
	if (o.AccountID == "") == (o.Session == nil) {
		return ErrInvalidOwner
	}
	return nil
}

func repositoryFor(tx orders.Tx, o Owner) Repository {
	if o.Authenticated() {
		return &accountRepo{tx: tx, accountID: o.AccountID}
	}
	return newSessionRepo(o.Session)
}

// sessionRepo stages its writes on a copy of the session's items; commit
// hands them to the session once the surrounding transaction succeeded.
type sessionRepo struct {
	s     *Session
	items map[string]int
}

func newSessionRepo(s *Session) *sessionRepo {
	items := maps.Clone(s.Items)
	if items == nil {
		items = map[string]int{}
	}
	return &sessionRepo{s: s, items: items}
}

func (r *sessionRepo) commit() { r.s.Items = r.items }

func (r *sessionRepo) Lines(context.Context) ([]Line, error) {
	out := make([]Line, 0, len(r.items))
	for pid, qty := range r.items {
		out = append(out, Line{ProductID: pid, Qty: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func (r *sessionRepo) Get(_ context.Context, productID string) (Line, bool, error) {
	qty, ok := r.items[productID]
	return Line{ProductID: productID, Qty: qty}, ok, nil
}

func (r *sessionRepo) Put(_ context.Context, line Line) error {
	r.items[line.ProductID] = line.Qty
	return nil
}

func (r *sessionRepo) Remove(_ context.Context, productID string) error {
	delete(r.items, productID)
	return nil
}

func (r *sessionRepo) Clear(context.Context) error {
	r.items = map[string]int{}
	return nil
}

func (r *sessionRepo) Reserves() bool { return false }

type accountRepo struct {
	tx        orders.Tx
	accountID string
}

func (r *accountRepo) Lines(ctx context.Context) ([]Line, error) {
	rows, err := r.tx.CartLines(ctx, r.accountID)
	if err != nil {
		return nil, err
	}
	out := make([]Line, 0, len(rows))
	for _, row := range rows {
		out = append(out, Line{ProductID: row.ProductID, Qty: row.Qty, ReservedUntil: row.ReservedUntil})
	}
	return out, nil
}

func (r *accountRepo) Get(ctx context.Context, productID string) (Line, bool, error) {
	lines, err := r.Lines(ctx)
	if err != nil {
		return Line{}, false, err
	}
	for _, l := range lines {
		if l.ProductID == productID {
			return l, true, nil
		}
	}
	return Line{ProductID: productID}, false, nil
}

func (r *accountRepo) Put(ctx context.Context, line Line) error {
	return r.tx.UpsertCartLine(ctx, orders.CartLine{
		AccountID:     r.accountID,
		ProductID:     line.ProductID,
		Qty:           line.Qty,
		ReservedUntil: line.ReservedUntil,
	})
}

func (r *accountRepo) Remove(ctx context.Context, productID string) error {
	return r.tx.DeleteCartLine(ctx, r.accountID, productID)
}

func (r *accountRepo) Clear(ctx context.Context) error {
	return r.tx.ClearCart(ctx, r.accountID)
}

func (r *accountRepo) Reserves() bool { return true }
