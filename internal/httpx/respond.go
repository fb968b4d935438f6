package httpx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ariefcatur/go-storefront/internal/cart"
	"github.com/ariefcatur/go-storefront/internal/checkout"
	"github.com/ariefcatur/go-storefront/internal/inventory"
	"github.com/ariefcatur/go-storefront/internal/orders"
)

const cartPath = "/cart"

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// writeError maps domain errors to status codes. Anything unrecognised is
// logged and answered with a generic 500 so internals never leak.
func writeError(w http.ResponseWriter, log *slog.Logger, err error) {
	var (
		capErr   *cart.CapacityError
		expired  *cart.ExpiredError
		short    *checkout.ShortageError
		below    *checkout.BelowMinimumError
		depleted *inventory.InsufficientStockError
		payErr   *checkout.PaymentError
		trErr    *checkout.TransitionError
	)
	switch {
	case errors.As(err, &capErr):
		writeJSON(w, http.StatusConflict, map[string]any{"error": capErr.Message, "redirect": cartPath})
	case errors.As(err, &expired):
		writeJSON(w, http.StatusConflict, map[string]any{"error": expired.Error(), "products": expired.Products, "redirect": cartPath})
	case errors.As(err, &short):
		writeJSON(w, http.StatusConflict, map[string]any{"error": short.Error(), "items": short.Items, "redirect": cartPath})
	case errors.As(err, &below):
		writeJSON(w, http.StatusConflict, map[string]any{"error": below.Error(), "min": below.Min, "currency": below.Currency, "redirect": cartPath})
	case errors.As(err, &depleted):
		writeJSON(w, http.StatusConflict, map[string]any{"error": depleted.Error(), "redirect": cartPath})
	case errors.Is(err, checkout.ErrEmptyCart):
		writeJSON(w, http.StatusConflict, map[string]any{"error": err.Error(), "redirect": cartPath})
	case errors.As(err, &trErr):
		writeJSON(w, http.StatusConflict, map[string]string{"error": trErr.Error()})
	case errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, cart.ErrInvalidAction),
		errors.Is(err, cart.ErrInvalidOwner),
		errors.Is(err, checkout.ErrUnknownMethod),
		errors.Is(err, checkout.ErrMethodUnavailable),
		errors.Is(err, checkout.ErrMethodNotSupported):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, orders.ErrProductNotFound),
		errors.Is(err, orders.ErrOrderNotFound),
		errors.Is(err, cart.ErrLineNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.As(err, &payErr):
		log.Error("payment processor", "err", err)
		writeJSON(w, http.StatusBadGateway, map[string]any{"error": "The payment service is unavailable, please try again.", "redirect": cartPath})
	default:
		log.Error("request failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": checkout.ErrCheckoutFailed.Error()})
	}
}
