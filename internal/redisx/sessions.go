package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/go-storefront/internal/cart"
)

// SessionCarts persists anonymous carts keyed by session token.
type SessionCarts struct {
	rdb *redis.Client
}

func NewSessionCarts(rdb *redis.Client) *SessionCarts { return &SessionCarts{rdb: rdb} }

// Load returns the session's cart; an unknown token yields an empty cart.
func (s *SessionCarts) Load(ctx context.Context, token string) (*cart.Session, error) {
	sess := cart.NewSession(token)
	raw, err := s.rdb.Get(ctx, fmt.Sprintf(KeySessionCart, token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return sess, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session cart: %w", err)
	}
	if err := json.Unmarshal(raw, &sess.Items); err != nil {
		return nil, fmt.Errorf("decode session cart: %w", err)
	}
	return sess, nil
}

// Save writes the cart back and extends its lifetime. An empty cart is
// deleted outright.
func (s *SessionCarts) Save(ctx context.Context, sess *cart.Session) error {
	key := fmt.Sprintf(KeySessionCart, sess.Token)
	if sess.Empty() {
		return s.rdb.Del(ctx, key).Err()
	}
	raw, err := json.Marshal(sess.Items)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, key, raw, TTLSessionCart).Err()
}
