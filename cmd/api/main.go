package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/ariefcatur/go-storefront/internal/auth"
	"github.com/ariefcatur/go-storefront/internal/cart"
	"github.com/ariefcatur/go-storefront/internal/checkout"
	"github.com/ariefcatur/go-storefront/internal/config"
	"github.com/ariefcatur/go-storefront/internal/httpx"
	kafkax "github.com/ariefcatur/go-storefront/internal/kafka"
	"github.com/ariefcatur/go-storefront/internal/logging"
	"github.com/ariefcatur/go-storefront/internal/memstore"
	"github.com/ariefcatur/go-storefront/internal/metrics"
	"github.com/ariefcatur/go-storefront/internal/milestone"
	"github.com/ariefcatur/go-storefront/internal/notify"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/ariefcatur/go-storefront/internal/payment"
	"github.com/ariefcatur/go-storefront/internal/postgres"
	"github.com/ariefcatur/go-storefront/internal/redisx"
	"github.com/ariefcatur/go-storefront/internal/shutdown"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "err", err)
		os.Exit(1)
	}
	log := logging.New(cfg.ServiceName, cfg.LogLevel)

	ctx, stop := shutdown.WithSignals(context.Background())
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Error("store", "err", err)
		os.Exit(1)
	}
	defer closeStore()

	rdb, err := redisx.Connect(ctx, cfg.RedisAddr)
	if err != nil {
		log.Error("redis connect", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	// Producers live past ctx so in-flight events are flushed on shutdown.
	prodCtx, stopProducers := context.WithCancel(context.Background())
	finalized := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderFinalized, 1024, log)
	finalized.Start(prodCtx)
	statusEvents := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderStatus, 1024, log)
	statusEvents.Start(prodCtx)

	m := metrics.New("api")
	tokens := auth.NewTokens(cfg.JWTSecret)
	gateway := payment.NewStripe(cfg.StripeSecretKey, cfg.StripeWebhookSecret)
	carts := cart.NewService(store, log)
	svc := checkout.NewService(checkout.Config{
		ServiceName:       cfg.ServiceName,
		Currency:          cfg.Currency,
		CardMinAmount:     cfg.CardMinAmount,
		PublicBaseURL:     cfg.PublicBaseURL,
		EnableOrangeMoney: cfg.EnableOrangeMoney,
		EnableWaveMoney:   cfg.EnableWaveMoney,
	}, checkout.Deps{
		Store:        store,
		Carts:        carts,
		Gateway:      gateway,
		Mailer:       notify.NewMailer(cfg.SMTPAddr, cfg.SMTPFrom, cfg.Currency),
		Finalized:    finalized,
		StatusEvents: statusEvents,
		Metrics:      m,
		Log:          log,
	})

	statusCache := redisx.NewStatusCache(rdb)
	router := httpx.NewRouter(m, tokens, log)
	(&httpx.CartHandler{Carts: carts, Sessions: redisx.NewSessionCarts(rdb), Metrics: m, Log: log}).Register(router)
	(&httpx.CheckoutHandler{Checkout: svc, Gateway: gateway, Dedup: redisx.NewDeduper(rdb, "webhook"), Cache: statusCache, Log: log}).Register(router)
	(&httpx.OrdersHandler{Store: store, Checkout: svc, Cache: statusCache, Log: log}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info("http listening", "addr", cfg.HTTPAddr, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("listen", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutCtx)
	finalized.Close()
	statusEvents.Close()
	finalized.WaitClosed()
	statusEvents.WaitClosed()
	stopProducers()
}

// openStore picks the order store named by STORE_DRIVER and loads the
// milestone thresholds into it.
func openStore(ctx context.Context, cfg config.Config, log *slog.Logger) (orders.Store, func(), error) {
	var thresholds []int
	if cfg.MilestonesFile != "" {
		var err error
		if thresholds, err = milestone.LoadFile(cfg.MilestonesFile); err != nil {
			return nil, nil, err
		}
	}

	if cfg.StoreDriver == "memory" {
		st := memstore.New()
		st.SetMilestones(thresholds)
		if cfg.SeedFile != "" {
			if err := st.LoadSeed(cfg.SeedFile); err != nil {
				return nil, nil, err
			}
			log.Info("memory store seeded", "file", cfg.SeedFile)
		}
		log.Warn("using in-memory store; data is lost on exit")
		return st, func() {}, nil
	}

	pool, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, err
	}
	if err := postgres.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}
	if cfg.MilestonesFile != "" {
		if err := postgres.SyncMilestones(ctx, pool, thresholds); err != nil {
			pool.Close()
			return nil, nil, err
		}
		log.Info("milestones synced", "count", len(thresholds))
	}
	return postgres.NewStore(pool), pool.Close, nil
}
