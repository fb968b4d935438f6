package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-storefront/internal/cart"
	"github.com/ariefcatur/go-storefront/internal/memstore"
	"github.com/ariefcatur/go-storefront/internal/metrics"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/ariefcatur/go-storefront/internal/payment"
)

type fakeGateway struct {
	mu   sync.Mutex
	reqs []payment.CheckoutRequest
	err  error
}

func (g *fakeGateway) CreateCheckout(_ context.Context, req payment.CheckoutRequest) (payment.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return payment.CheckoutSession{}, g.err
	}
	g.reqs = append(g.reqs, req)
	return payment.CheckoutSession{ID: "cs_" + req.OrderID, URL: "https://pay.example/" + req.OrderID}, nil
}

func (g *fakeGateway) ParseWebhook([]byte, string) (payment.WebhookEvent, error) {
	return payment.WebhookEvent{}, payment.ErrInvalidWebhook
}

type fakeMailer struct {
	mu        sync.Mutex
	confirmed []string
	status    []string
	err       error
}

func (m *fakeMailer) OrderConfirmed(_ context.Context, _ string, o orders.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.confirmed = append(m.confirmed, o.ID)
	return nil
}

func (m *fakeMailer) StatusChanged(_ context.Context, _ string, o orders.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.status = append(m.status, o.ID)
	return nil
}

type recordingPublisher struct {
	mu   sync.Mutex
	envs []orders.Envelope
}

func (p *recordingPublisher) Publish(_, value []byte, _ ...kafkago.Header) {
	var env orders.Envelope
	if err := json.Unmarshal(value, &env); err != nil {
		panic(err)
	}
	p.mu.Lock()
	p.envs = append(p.envs, env)
	p.mu.Unlock()
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.envs)
}

// flakyStore fails DecrementStock for one product, to exercise rollback.
type flakyStore struct {
	orders.Store
	failOn string
}

func (s *flakyStore) InTx(ctx context.Context, fn func(tx orders.Tx) error) error {
	return s.Store.InTx(ctx, func(tx orders.Tx) error {
		return fn(&flakyTx{Tx: tx, failOn: s.failOn})
	})
}

type flakyTx struct {
	orders.Tx
	failOn string
}

func (t *flakyTx) DecrementStock(ctx context.Context, productID string, qty int) error {
	if productID == t.failOn {
		return orders.ErrInsufficientStock
	}
	return t.Tx.DecrementStock(ctx, productID, qty)
}

// lockLog records the order in which a transaction takes product row locks
// and the ordinal counter.
type lockLog struct {
	orders.Store
	mu    sync.Mutex
	calls []string
}

func (s *lockLog) InTx(ctx context.Context, fn func(tx orders.Tx) error) error {
	return s.Store.InTx(ctx, func(tx orders.Tx) error {
		return fn(&lockLogTx{Tx: tx, log: s})
	})
}

func (s *lockLog) record(call string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
}

func (s *lockLog) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

func (s *lockLog) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.calls)
}

type lockLogTx struct {
	orders.Tx
	log *lockLog
}

func (t *lockLogTx) LockProduct(ctx context.Context, id string) (orders.Product, error) {
	t.log.record("product:" + id)
	return t.Tx.LockProduct(ctx, id)
}

func (t *lockLogTx) CountOrders(ctx context.Context, statuses []orders.Status) (int, error) {
	t.log.record("count")
	return t.Tx.CountOrders(ctx, statuses)
}

var errBoom = errors.New("boom")

type fixture struct {
	st       *memstore.Store
	carts    *cart.Service
	svc      *Service
	gateway  *fakeGateway
	mailer   *fakeMailer
	final    *recordingPublisher
	statuses *recordingPublisher
	now      *time.Time
}

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newFixture(t *testing.T, wrap func(orders.Store) orders.Store) *fixture {
	t.Helper()
	st := memstore.New()
	st.PutProduct(orders.Product{ID: "p1", SKU: "SOAP", Name: "Black soap", PriceCents: 2500, Stock: 5})
	st.PutProduct(orders.Product{ID: "p2", SKU: "OIL", Name: "Baobab oil", PriceCents: 1000, Stock: 4})
	st.PutProduct(orders.Product{ID: "cheap", SKU: "PIN", Name: "Pin", PriceCents: 300, Stock: 10})
	st.PutAccount("a1", "ada@example.com")
	st.PutAccount("a2", "bob@example.com")

	var store orders.Store = st
	if wrap != nil {
		store = wrap(st)
	}
	f := &fixture{
		st:       st,
		gateway:  &fakeGateway{},
		mailer:   &fakeMailer{},
		final:    &recordingPublisher{},
		statuses: &recordingPublisher{},
	}
	now := t0
	f.now = &now
	clock := func() time.Time { return *f.now }
	f.carts = cart.NewService(store, nil).WithClock(clock)
	f.svc = NewService(Config{
		ServiceName:   "test",
		Currency:      "XOF",
		CardMinAmount: 330,
		PublicBaseURL: "https://shop.example/",
	}, Deps{
		Store:        store,
		Carts:        f.carts,
		Gateway:      f.gateway,
		Mailer:       f.mailer,
		Finalized:    f.final,
		StatusEvents: f.statuses,
		Metrics:      metrics.New("test"),
	}).WithClock(clock)
	return f
}

func (f *fixture) add(t *testing.T, account, productID string, qty int) {
	t.Helper()
	_, err := f.carts.Add(context.Background(), cart.Account(account), productID, qty)
	require.NoError(t, err)
}

func (f *fixture) stock(t *testing.T, productID string) int {
	t.Helper()
	var n int
	require.NoError(t, f.st.InTx(context.Background(), func(tx orders.Tx) error {
		p, err := tx.GetProduct(context.Background(), productID)
		n = p.Stock
		return err
	}))
	return n
}

func (f *fixture) orderCount(t *testing.T) int {
	t.Helper()
	all := []orders.Status{
		orders.StatusAwaitingPayment, orders.StatusCashOnDelivery, orders.StatusPaid, orders.StatusProcessing,
		orders.StatusShipped, orders.StatusCompleted, orders.StatusCancelled,
	}
	var n int
	require.NoError(t, f.st.InTx(context.Background(), func(tx orders.Tx) error {
		var err error
		n, err = tx.CountOrders(context.Background(), all)
		return err
	}))
	return n
}

func (f *fixture) cartLines(t *testing.T, account string) []orders.CartLine {
	t.Helper()
	var lines []orders.CartLine
	require.NoError(t, f.st.InTx(context.Background(), func(tx orders.Tx) error {
		var err error
		lines, err = tx.CartLines(context.Background(), account)
		return err
	}))
	return lines
}
