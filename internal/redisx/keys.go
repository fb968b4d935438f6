package redisx

import "time"

const (
	// Anonymous cart: cart:session:{token} -> {"p1": 2, ...}
	KeySessionCart = "cart:session:%s"

	// Cached order status: order_status:{order_id} -> {"order_id": "...", "status": "...", "updated_at": "..."}
	KeyOrderStatus = "order_status:%s"

	// Processed event marker: dedup:{consumer}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLSessionCart = 7 * 24 * time.Hour
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
