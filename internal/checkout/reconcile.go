package checkout

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ariefcatur/go-storefront/internal/inventory"
	"github.com/ariefcatur/go-storefront/internal/milestone"
	"github.com/ariefcatur/go-storefront/internal/orders"
)

type Trigger string

const (
	TriggerRedirect Trigger = "redirect"
	TriggerWebhook  Trigger = "webhook"
)

type Completion struct {
	Order orders.Order `json:"order"`
	// AlreadyProcessed is true when the order had left AWAITING_PAYMENT
	// before this call; nothing was changed.
	AlreadyProcessed bool   `json:"already_processed"`
	Warning          string `json:"warning,omitempty"`
}

// CompletePayment finalizes a card order once the processor confirms it.
// The browser redirect and the webhook both land here, in any order and any
// number of times: the order row lock plus the AWAITING_PAYMENT guard make
// sure stock moves exactly once. expectAccount, when set, must own the order.
func (s *Service) CompletePayment(ctx context.Context, orderID, expectAccount string, trigger Trigger) (Completion, error) {
	ctx, span := s.tracer.Start(ctx, "CompletePayment", trace.WithAttributes(
		attribute.String("order.id", orderID),
		attribute.String("payment.trigger", string(trigger)),
	))
	defer span.End()

	c, err := s.completePayment(ctx, orderID, expectAccount)
	result := "ok"
	switch {
	case err != nil:
		result = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.log.Warn("payment completion failed", "order_id", orderID, "trigger", trigger, "err", err)
	case c.AlreadyProcessed:
		result = "duplicate"
		s.log.Info("payment already processed", "order_id", orderID, "trigger", trigger, "status", c.Order.Status)
	default:
		s.log.Info("payment completed", "order_id", orderID, "trigger", trigger, "milestone", c.Order.IsMilestone)
	}
	s.metrics.PaymentCompletions.WithLabelValues(string(trigger), result).Inc()
	return c, err
}

func (s *Service) completePayment(ctx context.Context, orderID, expectAccount string) (Completion, error) {
	var (
		c     Completion
		email string
	)
	err := s.store.InTx(ctx, func(tx orders.Tx) error {
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if expectAccount != "" && o.UserID != expectAccount {
			return orders.ErrOrderNotFound
		}
		if o.Status != orders.StatusAwaitingPayment {
			c = Completion{Order: o, AlreadyProcessed: true}
			return nil
		}

		// Product rows before the milestone counter, same order as the cash path.
		for _, it := range o.Items {
			p, err := tx.LockProduct(ctx, it.ProductID)
			if err != nil {
				if errors.Is(err, orders.ErrProductNotFound) {
					return &inventory.InsufficientStockError{ProductID: it.ProductID, Requested: it.Qty}
				}
				return err
			}
			if err := inventory.CommitDecrement(ctx, tx, p.ID, p.Name, it.Qty); err != nil {
				return err
			}
		}

		isMilestone, _, err := milestone.Evaluate(ctx, tx)
		if err != nil {
			return err
		}
		o.IsMilestone = isMilestone
		o.Advance(orders.StatusPaid)
		o.UpdatedAt = s.now().UTC()
		if err := tx.UpdateOrder(ctx, o); err != nil {
			return err
		}
		if err := tx.ClearCart(ctx, o.UserID); err != nil {
			return err
		}
		email, err = s.lookupEmail(ctx, tx, o.UserID)
		c = Completion{Order: o}
		return err
	})
	if err != nil {
		var depleted *inventory.InsufficientStockError
		if errors.Is(err, orders.ErrOrderNotFound) || errors.As(err, &depleted) {
			return Completion{}, err
		}
		return Completion{}, fmt.Errorf("complete payment %s: %w", orderID, err)
	}
	if !c.AlreadyProcessed {
		c.Warning = s.announceFinalized(ctx, c.Order, email)
	}
	return c, nil
}
