package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/ariefcatur/go-storefront/internal/kafka"
	"github.com/ariefcatur/go-storefront/internal/metrics"
	"github.com/ariefcatur/go-storefront/internal/orders"
)

type Deduper interface {
	Seen(ctx context.Context, id string) (bool, error)
	Mark(ctx context.Context, id string) error
}

type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// Service watches finalized orders and raises an alert for every product
// the order pushed to or below its restock threshold.
type Service struct {
	Store       orders.Store
	Dedup       Deduper
	Alerts      Publisher
	Metrics     *metrics.Metrics
	Log         *slog.Logger
	ServiceName string
}

// HandleOrderFinalized is the consumer handler for the order.finalized topic.
func (s *Service) HandleOrderFinalized(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		s.Log.Error("undecodable message dropped", "offset", m.Offset, "err", err)
		return nil
	}
	if env.EventType != orders.EventOrderFinalized {
		return nil
	}

	if seen, _ := s.Dedup.Seen(ctx, env.EventID); seen {
		return nil
	}

	p, err := kafkax.UnwrapPayload[orders.OrderFinalizedPayload](env.Payload)
	if err != nil {
		s.Log.Error("bad payload dropped", "event_id", env.EventID, "err", err)
		return nil
	}

	low, err := s.lowProducts(ctx, p.Items)
	if err != nil {
		return err
	}
	for _, prod := range low {
		s.Log.Warn("low stock", "product_id", prod.ID, "sku", prod.SKU, "stock", prod.Stock, "threshold", prod.LowStockThreshold, "order_id", p.OrderID)
		if err := s.publishLowStock(ctx, p.OrderID, env.TraceID, prod); err != nil {
			return err
		}
		if s.Metrics != nil {
			s.Metrics.LowStockAlerts.Inc()
		}
	}

	return s.Dedup.Mark(ctx, env.EventID)
}

func (s *Service) lowProducts(ctx context.Context, items []orders.ItemQty) ([]orders.Product, error) {
	var low []orders.Product
	err := s.Store.InTx(ctx, func(tx orders.Tx) error {
		for _, it := range items {
			prod, err := tx.GetProduct(ctx, it.ProductID)
			if err != nil {
				return fmt.Errorf("product %s: %w", it.ProductID, err)
			}
			if prod.LowOnStock() {
				low = append(low, prod)
			}
		}
		return nil
	})
	return low, err
}

func (s *Service) publishLowStock(ctx context.Context, orderID, trace string, p orders.Product) error {
	env, err := orders.NewEnvelope(orders.EventLowStockDetected, s.ServiceName, p.ID, orders.LowStockPayload{
		ProductID: p.ID,
		SKU:       p.SKU,
		Name:      p.Name,
		Stock:     p.Stock,
		Threshold: p.LowStockThreshold,
		OrderID:   orderID,
	})
	if err != nil {
		return err
	}
	env.TraceID = trace
	s.Alerts.Publish([]byte(p.ID), kafkax.MustMarshal(env), kafkax.EventHeaders(ctx, env.EventType, env.EventVersion)...)
	return nil
}
