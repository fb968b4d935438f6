package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/go-storefront/internal/orders"
)

type OrderStatus struct {
	OrderID   string        `json:"order_id"`
	UserID    string        `json:"user_id"`
	Status    orders.Status `json:"status"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// StatusCache is a short-lived read cache in front of the order store.
type StatusCache struct {
	rdb *redis.Client
}

func NewStatusCache(rdb *redis.Client) *StatusCache { return &StatusCache{rdb: rdb} }

func (c *StatusCache) Get(ctx context.Context, orderID string) (OrderStatus, bool, error) {
	raw, err := c.rdb.Get(ctx, fmt.Sprintf(KeyOrderStatus, orderID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return OrderStatus{}, false, nil
	}
	if err != nil {
		return OrderStatus{}, false, err
	}
	var st OrderStatus
	if err := json.Unmarshal(raw, &st); err != nil {
		return OrderStatus{}, false, err
	}
	return st, true, nil
}

func (c *StatusCache) Put(ctx context.Context, o orders.Order) error {
	raw, err := json.Marshal(OrderStatus{OrderID: o.ID, UserID: o.UserID, Status: o.Status, UpdatedAt: o.UpdatedAt})
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, fmt.Sprintf(KeyOrderStatus, o.ID), raw, TTLStatusCache).Err()
}

func (c *StatusCache) Invalidate(ctx context.Context, orderID string) error {
	return c.rdb.Del(ctx, fmt.Sprintf(KeyOrderStatus, orderID)).Err()
}
