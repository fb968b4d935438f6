package httpx

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-storefront/internal/auth"
	"github.com/ariefcatur/go-storefront/internal/checkout"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/ariefcatur/go-storefront/internal/payment"
)

const maxWebhookBody = 64 << 10

type CheckoutHandler struct {
	Checkout *checkout.Service
	Gateway  payment.Gateway
	Dedup    EventDeduper
	Cache    StatusCache
	Log      *slog.Logger
}

func (h *CheckoutHandler) Register(r chi.Router) {
	r.With(auth.RequireAccount).Post("/checkout", h.checkout)
	r.With(auth.RequireAccount).Get("/checkout/success", h.success)
	r.Post("/payments/webhook", h.webhook)
}

type checkoutReq struct {
	PaymentMethod checkout.Method `json:"payment_method"`
}

type checkoutResp struct {
	Order   orders.Order `json:"order"`
	Next    string       `json:"next"`
	Warning string       `json:"warning,omitempty"`
}

func (h *CheckoutHandler) checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	id := auth.FromContext(ctx)
	res, err := h.Checkout.Checkout(ctx, id.AccountID, req.PaymentMethod)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	h.cache(ctx, res.Order)

	next := res.RedirectURL
	if next == "" {
		next = "/orders/" + res.Order.ID
	}
	writeJSON(w, http.StatusCreated, checkoutResp{Order: res.Order, Next: next, Warning: res.Warning})
}

// success is where the processor sends the shopper back after paying.
func (h *CheckoutHandler) success(w http.ResponseWriter, r *http.Request) {
	orderID := r.URL.Query().Get("order_id")
	if orderID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing order_id"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	id := auth.FromContext(ctx)
	c, err := h.Checkout.CompletePayment(ctx, orderID, id.AccountID, checkout.TriggerRedirect)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	h.cache(ctx, c.Order)
	writeJSON(w, http.StatusOK, map[string]any{
		"order":             c.Order,
		"already_processed": c.AlreadyProcessed,
		"warning":           c.Warning,
		"next":              "/orders/" + c.Order.ID,
	})
}

func (h *CheckoutHandler) webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable body"})
		return
	}
	ev, err := h.Gateway.ParseWebhook(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.Log.Warn("webhook rejected", "err", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid signature"})
		return
	}
	if ev.Type != payment.EventCheckoutCompleted {
		writeJSON(w, http.StatusOK, map[string]any{"received": true})
		return
	}
	if ev.OrderID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing order_id metadata"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if seen, err := h.Dedup.Seen(ctx, ev.ID); err == nil && seen {
		writeJSON(w, http.StatusOK, map[string]any{"received": true, "duplicate": true})
		return
	}

	c, err := h.Checkout.CompletePayment(ctx, ev.OrderID, "", checkout.TriggerWebhook)
	switch {
	case errors.Is(err, orders.ErrOrderNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
		return
	case err != nil:
		h.Log.Error("webhook completion failed", "event_id", ev.ID, "order_id", ev.OrderID, "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "processing failed"})
		return
	}
	if err := h.Dedup.Mark(ctx, ev.ID); err != nil {
		h.Log.Warn("webhook dedup mark", "event_id", ev.ID, "err", err)
	}
	h.cache(ctx, c.Order)
	writeJSON(w, http.StatusOK, map[string]any{"received": true, "already_processed": c.AlreadyProcessed})
}

func (h *CheckoutHandler) cache(ctx context.Context, o orders.Order) {
	if h.Cache == nil {
		return
	}
	if err := h.Cache.Put(ctx, o); err != nil {
		h.Log.Warn("status cache put", "order_id", o.ID, "err", err)
	}
}
