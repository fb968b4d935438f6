package checkout

import (
	"context"

	"github.com/ariefcatur/go-storefront/internal/orders"
)

// Transition moves an order along the fulfilment lifecycle on behalf of
// staff. The customer is told by mail on a best-effort basis. PAID is only
// reached through CompletePayment, which is what takes the stock.
func (s *Service) Transition(ctx context.Context, orderID string, to orders.Status) (Result, error) {
	if !to.Valid() {
		return Result{}, &TransitionError{To: to}
	}
	var (
		o     orders.Order
		from  orders.Status
		email string
	)
	err := s.store.InTx(ctx, func(tx orders.Tx) error {
		var err error
		o, err = tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		from = o.Status
		if to == orders.StatusPaid || !orders.CanTransition(from, to) {
			return &TransitionError{From: from, To: to}
		}
		o.Advance(to)
		o.UpdatedAt = s.now().UTC()
		if err := tx.UpdateOrder(ctx, o); err != nil {
			return err
		}
		email, err = s.lookupEmail(ctx, tx, o.UserID)
		return err
	})
	if err != nil {
		return Result{}, err
	}
	s.log.Info("order status changed", "order_id", o.ID, "from", from, "to", to)

	s.publish(ctx, s.statusPub, orders.EventOrderStatusChanged, o.ID,
		orders.OrderStatusChangedPayload{OrderID: o.ID, From: from, To: to})

	res := Result{Order: o}
	if email != "" && s.mailer != nil {
		if err := s.mailer.StatusChanged(ctx, email, o); err != nil {
			s.log.Error("status mail failed", "order_id", o.ID, "err", err)
			res.Warning = "Status updated, but the customer email could not be sent."
		}
	}
	return res, nil
}

// Order returns orderID when it belongs to accountID; staff callers pass "".
func (s *Service) Order(ctx context.Context, orderID, accountID string) (orders.Order, error) {
	var o orders.Order
	err := s.store.InTx(ctx, func(tx orders.Tx) error {
		var err error
		o, err = tx.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if accountID != "" && o.UserID != accountID {
			return orders.ErrOrderNotFound
		}
		return nil
	})
	return o, err
}
