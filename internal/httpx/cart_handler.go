package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-storefront/internal/auth"
	"github.com/ariefcatur/go-storefront/internal/cart"
	"github.com/ariefcatur/go-storefront/internal/metrics"
)

type CartHandler struct {
	Carts    *cart.Service
	Sessions SessionStore
	Metrics  *metrics.Metrics
	Log      *slog.Logger
}

func (h *CartHandler) Register(r chi.Router) {
	r.Get("/cart", h.snapshot)
	r.Post("/cart/items", h.addItem)
	r.Patch("/cart/items/{productID}", h.updateItem)
	r.With(auth.RequireAccount).Post("/cart/merge", h.merge)
}

type addItemReq struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

type updateItemReq struct {
	Action cart.Action `json:"action"`
	Qty    *int        `json:"qty"`
}

// owner resolves the caller's cart. For anonymous callers the returned save
// func writes the session cart back; it is a no-op for accounts.
func (h *CartHandler) owner(ctx context.Context) (cart.Owner, func() error, error) {
	id := auth.FromContext(ctx)
	if id.Authenticated() {
		return cart.Account(id.AccountID), func() error { return nil }, nil
	}
	sess, err := h.Sessions.Load(ctx, id.SessionToken)
	if err != nil {
		return cart.Owner{}, nil, err
	}
	return cart.Anonymous(sess), func() error { return h.Sessions.Save(ctx, sess) }, nil
}

func (h *CartHandler) snapshot(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	owner, _, err := h.owner(ctx)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	snap, err := h.Carts.Snapshot(ctx, owner)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *CartHandler) addItem(w http.ResponseWriter, r *http.Request) {
	var req addItemReq
	if err := decodeJSON(w, r, &req); err != nil || req.ProductID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	owner, save, err := h.owner(ctx)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	msg, err := h.Carts.Add(ctx, owner, req.ProductID, req.Qty)
	if err != nil {
		var capErr *cart.CapacityError
		if errors.As(err, &capErr) {
			h.Metrics.CartAdds.WithLabelValues("refused").Inc()
		}
		writeError(w, h.Log, err)
		return
	}
	if err := save(); err != nil {
		writeError(w, h.Log, err)
		return
	}
	h.Metrics.CartAdds.WithLabelValues("ok").Inc()
	writeJSON(w, http.StatusOK, map[string]string{"message": msg})
}

func (h *CartHandler) updateItem(w http.ResponseWriter, r *http.Request) {
	var req updateItemReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	owner, save, err := h.owner(ctx)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	msg, err := h.Carts.Update(ctx, owner, chi.URLParam(r, "productID"), req.Action, req.Qty)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	if err := save(); err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": msg})
}

// merge folds the caller's anonymous cart into their account cart right
// after login; the anonymous cart replaces whatever the account held.
func (h *CartHandler) merge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	id := auth.FromContext(ctx)
	sess, err := h.Sessions.Load(ctx, id.SessionToken)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	if err := h.Carts.MergeOnLogin(ctx, sess, id.AccountID); err != nil {
		writeError(w, h.Log, err)
		return
	}
	if err := h.Sessions.Save(ctx, sess); err != nil {
		writeError(w, h.Log, err)
		return
	}
	snap, err := h.Carts.Snapshot(ctx, cart.Account(id.AccountID))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
