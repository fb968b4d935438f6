package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ariefcatur/go-storefront/internal/auth"
	"github.com/ariefcatur/go-storefront/internal/cart"
	"github.com/ariefcatur/go-storefront/internal/metrics"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/ariefcatur/go-storefront/internal/redisx"
)

// SessionStore persists anonymous carts between requests.
type SessionStore interface {
	Load(ctx context.Context, token string) (*cart.Session, error)
	Save(ctx context.Context, s *cart.Session) error
}

// EventDeduper remembers processed webhook events.
type EventDeduper interface {
	Seen(ctx context.Context, id string) (bool, error)
	Mark(ctx context.Context, id string) error
}

type StatusCache interface {
	Get(ctx context.Context, orderID string) (redisx.OrderStatus, bool, error)
	Put(ctx context.Context, o orders.Order) error
	Invalidate(ctx context.Context, orderID string) error
}

func NewRouter(m *metrics.Metrics, tokens *auth.Tokens, log *slog.Logger) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))
	r.Use(auth.Middleware(tokens, log))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if m != nil {
		r.Method(http.MethodGet, "/metrics", m.Handler())
	}
	return r
}
