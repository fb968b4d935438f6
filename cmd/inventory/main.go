package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/ariefcatur/go-storefront/internal/config"
	"github.com/ariefcatur/go-storefront/internal/inventory"
	kafkax "github.com/ariefcatur/go-storefront/internal/kafka"
	"github.com/ariefcatur/go-storefront/internal/logging"
	"github.com/ariefcatur/go-storefront/internal/metrics"
	"github.com/ariefcatur/go-storefront/internal/orders"
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
	name := cfg.ServiceName + "-inventory"
	log := logging.New(name, cfg.LogLevel)

	ctx, stop := shutdown.WithSignals(context.Background())
	defer stop()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Error("db connect", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := redisx.Connect(ctx, cfg.RedisAddr)
	if err != nil {
		log.Error("redis connect", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	m := metrics.New("inventory")
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("metrics listener", "err", err)
		}
	}()

	alerts := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicLowStock, 256, log)
	alerts.Start(context.Background())

	svc := &inventory.Service{
		Store:       postgres.NewStore(db),
		Dedup:       redisx.NewDeduper(rdb, "inventory"),
		Alerts:      alerts,
		Metrics:     m,
		Log:         log,
		ServiceName: name,
	}

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.InventoryGroup, orders.TopicOrderFinalized, cfg.InventoryWorkers, log)
	log.Info("low-stock watcher started", "group", cfg.InventoryGroup, "topic", orders.TopicOrderFinalized, "workers", cfg.InventoryWorkers)
	if err := cons.Start(ctx, svc.HandleOrderFinalized); err != nil {
		log.Error("consumer exit", "err", err)
	}

	log.Info("shutting down")
	alerts.Close()
	alerts.WaitClosed()
}
