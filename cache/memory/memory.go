// Package memory is an in-process match result cache bounded by size and TTL.
package memory

import (
	"context"
	"sync"
	"time"

	"gitea.kood.tech/petrkubec/vibetribe/backend/match"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

type Cache struct {
	lru *expirable.LRU[string, []match.Result]

	// mu orders Set against Invalidate so a stale write cannot land after a purge.
	mu  sync.Mutex
	gen int64
}

func New(size int, ttl time.Duration) *Cache {
	if size <= 0 {
		size = 1024
	}
	return &Cache{lru: expirable.NewLRU[string, []match.Result](size, nil, ttl)}
}

// Get hands out a copy of the slice so callers may reorder it.
func (c *Cache) Get(_ context.Context, key string) ([]match.Result, int64, bool, error) {
	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()

	results, ok := c.lru.Get(key)
	if !ok {
		return nil, gen, false, nil
	}
	return append([]match.Result(nil), results...), gen, true, nil
}

func (c *Cache) Set(_ context.Context, key string, gen int64, results []match.Result) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		return nil
	}
	c.lru.Add(key, append([]match.Result(nil), results...))
	return nil
}

func (c *Cache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen++
	c.lru.Purge()
	return nil
}

var _ match.Cache = (*Cache)(nil)
