package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/chefkeenan/Lume/internal/domain"
)

// Client is the slice of the redis client the counter needs.
type Client interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

// RemainingCounter mirrors remaining capacity into Redis for cheap display
// reads. It is written after commit and never consulted for decisions.
type RemainingCounter struct {
	rdb Client
	ttl time.Duration
}

func NewRemainingCounter(rdb Client, ttl time.Duration) *RemainingCounter {
	return &RemainingCounter{rdb: rdb, ttl: ttl}
}

// NewClient parses a redis:// URL into a client.
func NewClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

func (c *RemainingCounter) Key(ref domain.ResourceRef) string {
	return fmt.Sprintf("lume:remaining:%s:%s", ref.Kind, ref.ID)
}

func (c *RemainingCounter) StoreRemaining(ctx context.Context, ref domain.ResourceRef, remaining int) error {
	return c.rdb.Set(ctx, c.Key(ref), remaining, c.ttl).Err()
}

// Remaining returns the last published value. ok is false on a cache miss.
func (c *RemainingCounter) Remaining(ctx context.Context, ref domain.ResourceRef) (n int, ok bool, err error) {
	raw, err := c.rdb.Get(ctx, c.Key(ref)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	n, err = strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("decode %s: %w", c.Key(ref), err)
	}
	return n, true, nil
}
