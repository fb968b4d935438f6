//go:build integration

package postgres

import (
	"context"

	"github.com/ariefcatur/go-storefront/internal/payment"
)

type stubGateway struct{}

func (stubGateway) CreateCheckout(_ context.Context, req payment.CheckoutRequest) (payment.CheckoutSession, error) {
	return payment.CheckoutSession{ID: "cs_" + req.OrderID, URL: "https://pay.example/" + req.OrderID}, nil
}

func (stubGateway) ParseWebhook([]byte, string) (payment.WebhookEvent, error) {
	return payment.WebhookEvent{}, payment.ErrInvalidWebhook
}
