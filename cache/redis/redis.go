// Package redis stores match results in Redis.
//
// Invalidation bumps a generation counter instead of scanning keys: entries
// written under an older generation are never read again and expire by TTL.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gitea.kood.tech/petrkubec/vibetribe/backend/match"
	goredis "github.com/redis/go-redis/v9"
)

type Cache struct {
	client *goredis.Client
	prefix string
	ttl    time.Duration
}

// Connect builds a client and pings it.
func Connect(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	const op = "cache/redis/Connect"

	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return client, nil
}

// New keeps entries under "<prefix>:" for ttl.
func New(client *goredis.Client, prefix string, ttl time.Duration) *Cache {
	return &Cache{client: client, prefix: prefix, ttl: ttl}
}

func (c *Cache) genKey() string {
	return c.prefix + ":gen"
}

func (c *Cache) generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, c.genKey()).Int64()
	if errors.Is(err, goredis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (c *Cache) entryKey(gen int64, key string) string {
	return fmt.Sprintf("%s:%d:%s", c.prefix, gen, key)
}

func (c *Cache) Get(ctx context.Context, key string) ([]match.Result, int64, bool, error) {
	const op = "cache/redis/Get"

	gen, err := c.generation(ctx)
	if err != nil {
		return nil, 0, false, fmt.Errorf("%s: %w", op, err)
	}

	raw, err := c.client.Get(ctx, c.entryKey(gen, key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, gen, false, nil
	}
	if err != nil {
		return nil, 0, false, fmt.Errorf("%s: %w", op, err)
	}

	var results []match.Result
	if err := json.Unmarshal(raw, &results); err != nil {
		return nil, 0, false, fmt.Errorf("%s: %w", op, err)
	}
	return results, gen, true, nil
}

// Set writes under gen, not the current generation: results computed before
// an Invalidate land under a retired prefix and are never read.
func (c *Cache) Set(ctx context.Context, key string, gen int64, results []match.Result) error {
	const op = "cache/redis/Set"

	raw, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := c.client.Set(ctx, c.entryKey(gen, key), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (c *Cache) Invalidate(ctx context.Context) error {
	const op = "cache/redis/Invalidate"

	if err := c.client.Incr(ctx, c.genKey()).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

var _ match.Cache = (*Cache)(nil)
