package checkout

import (
	"context"

	"go.opentelemetry.io/otel/trace"

	kafkax "github.com/ariefcatur/go-storefront/internal/kafka"
	"github.com/ariefcatur/go-storefront/internal/orders"
)

const mailWarning = "Order placed, but the confirmation email could not be sent."

// announceFinalized runs after commit: it publishes OrderFinalized and sends
// the confirmation mail. It never fails; a mail problem comes back as a
// warning for the shopper.
func (s *Service) announceFinalized(ctx context.Context, o orders.Order, email string) string {
	s.publish(ctx, s.finalized, orders.EventOrderFinalized, o.ID, orders.FinalizedPayload(o))
	if email == "" || s.mailer == nil {
		return ""
	}
	if err := s.mailer.OrderConfirmed(ctx, email, o); err != nil {
		s.log.Error("confirmation mail failed", "order_id", o.ID, "err", err)
		return mailWarning
	}
	return ""
}

func (s *Service) publish(ctx context.Context, p Publisher, eventType, orderID string, payload any) {
	if p == nil {
		return
	}
	env, err := orders.NewEnvelope(eventType, s.cfg.ServiceName, orderID, payload)
	if err != nil {
		s.log.Error("build event", "event_type", eventType, "order_id", orderID, "err", err)
		return
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		env.TraceID = sc.TraceID().String()
	}
	p.Publish(orders.PartitionKey(orderID), kafkax.MustMarshal(env), kafkax.EventHeaders(ctx, eventType, env.EventVersion)...)
}
