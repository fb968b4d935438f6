// Package payment talks to the card processor. The rest of the module sees
// only Gateway; the Stripe adapter lives in stripe.go.
package payment

import (
	"context"
	"errors"
)

// EventCheckoutCompleted is the webhook event type that completes an order.
const EventCheckoutCompleted = "checkout.session.completed"

// MetadataOrderID is the metadata key carrying our order id through the
// processor and back.
const MetadataOrderID = "order_id"

var ErrInvalidWebhook = errors.New("invalid webhook payload or signature")

type LineItem struct {
	Name       string
	UnitAmount int64
	Qty        int
}

type CheckoutRequest struct {
	OrderID    string
	AccountID  string
	Currency   string
	Lines      []LineItem
	SuccessURL string
	CancelURL  string
}

type CheckoutSession struct {
	ID  string
	URL string
}

// WebhookEvent is a verified notification. OrderID is empty when the event
// carries no order reference.
type WebhookEvent struct {
	ID      string
	Type    string
	OrderID string
}

type Gateway interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (CheckoutSession, error)
	// ParseWebhook verifies signature against payload before decoding it.
	// Any failure is reported as ErrInvalidWebhook.
	ParseWebhook(payload []byte, signature string) (WebhookEvent, error)
}
