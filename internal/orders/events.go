package orders

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	EventOrderFinalized     = "OrderFinalized"
	EventOrderStatusChanged = "OrderStatusChanged"
	EventLowStockDetected   = "LowStockDetected"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // usually the order id
	Payload       json.RawMessage `json:"payload"`
}

// NewEnvelope wraps payload in a v1 envelope with a fresh event id.
func NewEnvelope(eventType, producer, correlationID string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		CorrelationID: correlationID,
		Payload:       raw,
	}, nil
}

type ItemQty struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

type OrderFinalizedPayload struct {
	OrderID     string    `json:"order_id"`
	UserID      string    `json:"user_id"`
	Status      Status    `json:"status"`
	TotalCents  int64     `json:"total_cents"`
	IsMilestone bool      `json:"is_milestone"`
	Items       []ItemQty `json:"items"`
}

func FinalizedPayload(o Order) OrderFinalizedPayload {
	items := make([]ItemQty, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, ItemQty{ProductID: it.ProductID, Qty: it.Qty})
	}
	return OrderFinalizedPayload{
		OrderID:     o.ID,
		UserID:      o.UserID,
		Status:      o.Status,
		TotalCents:  o.TotalCents,
		IsMilestone: o.IsMilestone,
		Items:       items,
	}
}

type OrderStatusChangedPayload struct {
	OrderID string `json:"order_id"`
	From    Status `json:"from"`
	To      Status `json:"to"`
}

type LowStockPayload struct {
	ProductID string `json:"product_id"`
	SKU       string `json:"sku"`
	Name      string `json:"name"`
	Stock     int    `json:"stock"`
	Threshold int    `json:"threshold"`
	OrderID   string `json:"order_id,omitempty"` // order whose finalization crossed the threshold
}
