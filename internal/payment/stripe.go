package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/webhook"
)

type Stripe struct {
	sessions      *session.Client
	webhookSecret string
}

func NewStripe(secretKey, webhookSecret string) *Stripe {
	return &Stripe{
		sessions:      &session.Client{B: stripe.GetBackend(stripe.APIBackend), Key: secretKey},
		webhookSecret: webhookSecret,
	}
}

func (s *Stripe) CreateCheckout(ctx context.Context, req CheckoutRequest) (CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.OrderID),
	}
	params.Context = ctx
	params.AddMetadata(MetadataOrderID, req.OrderID)
	for _, l := range req.Lines {
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(strings.ToLower(req.Currency)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(l.Name),
				},
				UnitAmount: stripe.Int64(l.UnitAmount),
			},
			Quantity: stripe.Int64(int64(l.Qty)),
		})
	}

	cs, err := s.sessions.New(params)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("stripe checkout session: %w", err)
	}
	return CheckoutSession{ID: cs.ID, URL: cs.URL}, nil
}

func (s *Stripe) ParseWebhook(payload []byte, signature string) (WebhookEvent, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return WebhookEvent{}, fmt.Errorf("%w: %v", ErrInvalidWebhook, err)
	}

	out := WebhookEvent{ID: ev.ID, Type: string(ev.Type)}
	if out.Type != EventCheckoutCompleted || ev.Data == nil {
		return out, nil
	}
	var cs stripe.CheckoutSession
	if err := json.Unmarshal(ev.Data.Raw, &cs); err != nil {
		return WebhookEvent{}, fmt.Errorf("%w: %v", ErrInvalidWebhook, err)
	}
	out.OrderID = cs.Metadata[MetadataOrderID]
	if out.OrderID == "" {
		out.OrderID = cs.ClientReferenceID
	}
	return out, nil
}
