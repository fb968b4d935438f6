package redisx

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Deduper remembers processed event ids for one consumer. It is only a fast
// path: handlers stay correct when a duplicate slips through.
type Deduper struct {
	rdb      *redis.Client
	consumer string
}

func NewDeduper(rdb *redis.Client, consumer string) *Deduper {
	return &Deduper{rdb: rdb, consumer: consumer}
}

func (d *Deduper) key(id string) string { return fmt.Sprintf(KeyDedup, d.consumer, id) }

func (d *Deduper) Seen(ctx context.Context, id string) (bool, error) {
	return Exists(ctx, d.rdb, d.key(id))
}

// Mark records id as processed. Call it only after processing succeeded.
func (d *Deduper) Mark(ctx context.Context, id string) error {
	return d.rdb.Set(ctx, d.key(id), "1", TTLDedup).Err()
}
