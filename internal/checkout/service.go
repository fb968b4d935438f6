// Package checkout turns an account cart into an order. Cash orders are
// finalized in one transaction; card orders are opened as AWAITING_PAYMENT
// and finalized by CompletePayment once the processor confirms them.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ariefcatur/go-storefront/internal/cart"
	"github.com/ariefcatur/go-storefront/internal/inventory"
	"github.com/ariefcatur/go-storefront/internal/metrics"
	"github.com/ariefcatur/go-storefront/internal/milestone"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/ariefcatur/go-storefront/internal/payment"
)

type Method string

const (
	MethodCashOnDelivery Method = "cod"
	MethodCard           Method = "card"
	MethodOrangeMoney    Method = "orange_money"
	MethodWave           Method = "wave"
)

type Config struct {
	ServiceName       string
	Currency          string
	CardMinAmount     int64
	PublicBaseURL     string
	EnableOrangeMoney bool
	EnableWaveMoney   bool
}

type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

type Mailer interface {
	OrderConfirmed(ctx context.Context, to string, o orders.Order) error
	StatusChanged(ctx context.Context, to string, o orders.Order) error
}

type Deps struct {
	Store   orders.Store
	Carts   *cart.Service
	Gateway payment.Gateway
	Mailer  Mailer
	// Finalized receives OrderFinalized events, StatusEvents receives
	// OrderStatusChanged events. Either may be nil.
	Finalized    Publisher
	StatusEvents Publisher
	Metrics      *metrics.Metrics
	Log          *slog.Logger
}

type Service struct {
	cfg       Config
	store     orders.Store
	carts     *cart.Service
	gateway   payment.Gateway
	mailer    Mailer
	finalized Publisher
	statusPub Publisher
	metrics   *metrics.Metrics
	log       *slog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

func NewService(cfg Config, d Deps) *Service {
	if d.Log == nil {
		d.Log = slog.Default()
	}
	if d.Metrics == nil {
		d.Metrics = metrics.New(cfg.ServiceName)
	}
	if d.Carts == nil {
		d.Carts = cart.NewService(d.Store, d.Log)
	}
	return &Service{
		cfg:       cfg,
		store:     d.Store,
		carts:     d.Carts,
		gateway:   d.Gateway,
		mailer:    d.Mailer,
		finalized: d.Finalized,
		statusPub: d.StatusEvents,
		metrics:   d.Metrics,
		log:       d.Log,
		tracer:    otel.Tracer("storefront-checkout"),
		now:       time.Now,
	}
}

// WithClock replaces the time source; used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

type Result struct {
	Order orders.Order `json:"order"`
	// RedirectURL is set for card checkouts: the processor's payment page.
	RedirectURL string `json:"redirect_url,omitempty"`
	// Warning reports a non-fatal problem after commit, e.g. the
	// confirmation mail could not be sent.
	Warning string `json:"warning,omitempty"`
}

// Checkout finalizes accountID's cart with the chosen payment method.
func (s *Service) Checkout(ctx context.Context, accountID string, method Method) (Result, error) {
	ctx, span := s.tracer.Start(ctx, "Checkout", trace.WithAttributes(
		attribute.String("payment.method", string(method)),
		attribute.String("account.id", accountID),
	))
	defer span.End()
	start := time.Now()

	res, err := s.checkout(ctx, accountID, method)

	s.metrics.CheckoutLatencyMS.WithLabelValues(string(method)).Observe(float64(time.Since(start).Milliseconds()))
	s.metrics.Checkouts.WithLabelValues(string(method), outcome(err)).Inc()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.log.Warn("checkout refused", "account_id", accountID, "method", method, "err", err)
		return Result{}, err
	}
	span.SetAttributes(attribute.String("order.id", res.Order.ID))
	s.log.Info("checkout done", "account_id", accountID, "order_id", res.Order.ID, "status", res.Order.Status, "total", res.Order.TotalCents)
	return res, nil
}

func (s *Service) checkout(ctx context.Context, accountID string, method Method) (Result, error) {
	if err := s.checkMethod(method); err != nil {
		return Result{}, err
	}
	if err := s.carts.SweepExpired(ctx, accountID); err != nil {
		return Result{}, classify(err)
	}
	switch method {
	case MethodCard:
		return s.openCardPayment(ctx, accountID)
	default:
		return s.finalizeCash(ctx, accountID)
	}
}

func (s *Service) checkMethod(m Method) error {
	switch m {
	case MethodCashOnDelivery, MethodCard:
		return nil
	case MethodOrangeMoney:
		if !s.cfg.EnableOrangeMoney {
			return ErrMethodUnavailable
		}
		return ErrMethodNotSupported
	case MethodWave:
		if !s.cfg.EnableWaveMoney {
			return ErrMethodUnavailable
		}
		return ErrMethodNotSupported
	default:
		return ErrUnknownMethod
	}
}

type pricedLine struct {
	product orders.Product
	qty     int
}

// priceCart locks every product in the cart, checks live stock and prices
// the cart at current catalog prices.
func (s *Service) priceCart(ctx context.Context, tx orders.Tx, accountID string) ([]pricedLine, int64, error) {
	lines, err := tx.CartLines(ctx, accountID)
	if err != nil {
		return nil, 0, err
	}
	if len(lines) == 0 {
		return nil, 0, ErrEmptyCart
	}

	now := s.now()
	var (
		priced []pricedLine
		total  int64
		short  []Shortage
		lapsed []string
	)
	for _, l := range lines {
		p, err := tx.LockProduct(ctx, l.ProductID)
		if errors.Is(err, orders.ErrProductNotFound) {
			short = append(short, Shortage{ProductID: l.ProductID, Name: l.ProductID, Requested: l.Qty})
			continue
		}
		if err != nil {
			return nil, 0, err
		}
		if l.Expired(now) {
			lapsed = append(lapsed, p.Name)
			continue
		}
		if p.Stock < l.Qty {
			short = append(short, Shortage{ProductID: p.ID, Name: p.Name, Requested: l.Qty, Available: p.Stock})
			continue
		}
		priced = append(priced, pricedLine{product: p, qty: l.Qty})
		total += p.PriceCents * int64(l.Qty)
	}
	if len(lapsed) > 0 {
		return nil, 0, &cart.ExpiredError{Products: lapsed}
	}
	if len(short) > 0 {
		return nil, 0, &ShortageError{Items: short}
	}
	return priced, total, nil
}

func (s *Service) finalizeCash(ctx context.Context, accountID string) (Result, error) {
	var (
		order orders.Order
		email string
	)
	err := s.store.InTx(ctx, func(tx orders.Tx) error {
		lines, total, err := s.priceCart(ctx, tx, accountID)
		if err != nil {
			return err
		}
		isMilestone, _, err := milestone.Evaluate(ctx, tx)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		order = orders.Order{
			ID:          uuid.NewString(),
			UserID:      accountID,
			Status:      orders.StatusCashOnDelivery,
			TotalCents:  total,
			IsMilestone: isMilestone,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.InsertOrder(ctx, order); err != nil {
			return err
		}
		for _, l := range lines {
			if err := inventory.CommitDecrement(ctx, tx, l.product.ID, l.product.Name, l.qty); err != nil {
				return err
			}
			it := orders.OrderItem{OrderID: order.ID, ProductID: l.product.ID, Name: l.product.Name, Qty: l.qty, PriceCents: l.product.PriceCents}
			if err := tx.InsertOrderItem(ctx, it); err != nil {
				return err
			}
			order.Items = append(order.Items, it)
		}
		if err := tx.ClearCart(ctx, accountID); err != nil {
			return err
		}
		email, err = s.lookupEmail(ctx, tx, accountID)
		return err
	})
	if err != nil {
		return Result{}, classify(err)
	}

	warning := s.announceFinalized(ctx, order, email)
	return Result{Order: order, Warning: warning}, nil
}

func (s *Service) openCardPayment(ctx context.Context, accountID string) (Result, error) {
	var order orders.Order
	err := s.store.InTx(ctx, func(tx orders.Tx) error {
		lines, total, err := s.priceCart(ctx, tx, accountID)
		if err != nil {
			return err
		}
		if total < s.cfg.CardMinAmount {
			return &BelowMinimumError{Min: s.cfg.CardMinAmount, Currency: s.cfg.Currency}
		}
		dropped, err := tx.DeleteAwaitingOrders(ctx, accountID)
		if err != nil {
			return err
		}
		if dropped > 0 {
			s.log.Info("discarded stale pending orders", "account_id", accountID, "count", dropped)
		}

		now := s.now().UTC()
		order = orders.Order{
			ID:         uuid.NewString(),
			UserID:     accountID,
			Status:     orders.StatusAwaitingPayment,
			TotalCents: total,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := tx.InsertOrder(ctx, order); err != nil {
			return err
		}
		for _, l := range lines {
			it := orders.OrderItem{OrderID: order.ID, ProductID: l.product.ID, Name: l.product.Name, Qty: l.qty, PriceCents: l.product.PriceCents}
			if err := tx.InsertOrderItem(ctx, it); err != nil {
				return err
			}
			order.Items = append(order.Items, it)
		}
		return nil
	})
	if err != nil {
		return Result{}, classify(err)
	}

	req := payment.CheckoutRequest{
		OrderID:    order.ID,
		AccountID:  accountID,
		Currency:   s.cfg.Currency,
		SuccessURL: s.absURL("/checkout/success?order_id=" + url.QueryEscape(order.ID)),
		CancelURL:  s.absURL("/cart"),
	}
	for _, it := range order.Items {
		req.Lines = append(req.Lines, payment.LineItem{Name: it.Name, UnitAmount: it.PriceCents, Qty: it.Qty})
	}
	sess, err := s.gateway.CreateCheckout(ctx, req)
	if err != nil {
		// The pending order stays behind; the next card checkout discards it.
		return Result{}, &PaymentError{Err: err}
	}
	s.log.Info("card payment opened", "order_id", order.ID, "session_id", sess.ID)
	return Result{Order: order, RedirectURL: sess.URL}, nil
}

func (s *Service) absURL(path string) string {
	return strings.TrimRight(s.cfg.PublicBaseURL, "/") + path
}

func (s *Service) lookupEmail(ctx context.Context, tx orders.Tx, accountID string) (string, error) {
	email, err := tx.AccountEmail(ctx, accountID)
	if errors.Is(err, orders.ErrAccountNotFound) {
		return "", nil
	}
	return email, err
}

// classify keeps domain errors intact and folds everything else into
// ErrCheckoutFailed so infrastructure details never reach the shopper.
func classify(err error) error {
	var (
		expired  *cart.ExpiredError
		short    *ShortageError
		below    *BelowMinimumError
		depleted *inventory.InsufficientStockError
	)
	switch {
	case errors.As(err, &expired), errors.As(err, &short), errors.As(err, &below), errors.As(err, &depleted),
		errors.Is(err, ErrEmptyCart):
		return err
	}
	return fmt.Errorf("%w: %v", ErrCheckoutFailed, err)
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if errors.Is(err, ErrCheckoutFailed) {
		return "error"
	}
	return "refused"
}
