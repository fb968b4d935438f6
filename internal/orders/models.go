package orders

import "time"

type Product struct {
	ID                string    `json:"id"`
	SKU               string    `json:"sku"`
	Name              string    `json:"name"`
	PriceCents        int64     `json:"price_cents"`
	Stock             int       `json:"stock"`
	LowStockThreshold int       `json:"low_stock_threshold"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// LowOnStock reports whether the product sits at or below its restock threshold.
func (p Product) LowOnStock() bool { return p.Stock <= p.LowStockThreshold }

// CartLine is a persisted, account-backed cart row. Anonymous carts never
// produce CartLines; they live in the session (see package cart).
type CartLine struct {
	AccountID     string     `json:"account_id"`
	ProductID     string     `json:"product_id"`
	Qty           int        `json:"qty"`
	ReservedUntil *time.Time `json:"reserved_until,omitempty"`
}

// Expired reports whether the reservation deadline lies strictly before now.
func (l CartLine) Expired(now time.Time) bool {
	return l.ReservedUntil != nil && l.ReservedUntil.Before(now)
}

type Order struct {
	ID            string      `json:"id"`
	UserID        string      `json:"user_id"`
	Status        Status      `json:"status"`
	StatusHistory []Status    `json:"status_history,omitempty"`
	TotalCents    int64       `json:"total_cents"`
	IsMilestone   bool        `json:"is_milestone"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
	Items         []OrderItem `json:"items,omitempty"`
}

// OrderItem keeps the name and unit price seen at purchase time, independent
// of later catalog changes.
type OrderItem struct {
	OrderID    string `json:"order_id"`
	ProductID  string `json:"product_id"`
	Name       string `json:"name"`
	Qty        int    `json:"qty"`
	PriceCents int64  `json:"price_cents"`
}

func (it OrderItem) LineTotal() int64 { return it.PriceCents * int64(it.Qty) }
