package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-storefront/internal/auth"
	"github.com/ariefcatur/go-storefront/internal/checkout"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/ariefcatur/go-storefront/internal/redisx"
)

type OrdersHandler struct {
	Store    orders.Store
	Checkout *checkout.Service
	Cache    StatusCache
	Log      *slog.Logger
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Get("/products", h.listProducts)
	r.With(auth.RequireAccount).Get("/orders/{id}", h.getOrder)
	r.With(auth.RequireAccount).Get("/orders/{id}/status", h.getStatus)
	r.With(auth.RequireStaff).Post("/admin/orders/{id}/status", h.setStatus)
}

func (h *OrdersHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	var ps []orders.Product
	err := h.Store.InTx(ctx, func(tx orders.Tx) error {
		var err error
		ps, err = tx.ListProducts(ctx)
		return err
	})
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	if ps == nil {
		ps = []orders.Product{}
	}
	writeJSON(w, http.StatusOK, ps)
}

// viewer is the account an order must belong to; staff may read any order.
func viewer(ctx context.Context) string {
	id := auth.FromContext(ctx)
	if id.Staff() {
		return ""
	}
	return id.AccountID
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Checkout.Order(ctx, chi.URLParam(r, "id"), viewer(ctx))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) getStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	who := viewer(ctx)
	if st, ok, err := h.Cache.Get(ctx, orderID); err == nil && ok && (who == "" || st.UserID == who) {
		writeJSON(w, http.StatusOK, st)
		return
	}

	o, err := h.Checkout.Order(ctx, orderID, who)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	if err := h.Cache.Put(ctx, o); err != nil {
		h.Log.Warn("status cache put", "order_id", o.ID, "err", err)
	}
	writeJSON(w, http.StatusOK, redisx.OrderStatus{OrderID: o.ID, UserID: o.UserID, Status: o.Status, UpdatedAt: o.UpdatedAt})
}

type setStatusReq struct {
	Status orders.Status `json:"status"`
}

func (h *OrdersHandler) setStatus(w http.ResponseWriter, r *http.Request) {
	var req setStatusReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	orderID := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	res, err := h.Checkout.Transition(ctx, orderID, req.Status)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	if err := h.Cache.Invalidate(ctx, orderID); err != nil {
		h.Log.Warn("status cache invalidate", "order_id", orderID, "err", err)
	}
	writeJSON(w, http.StatusOK, res)
}
