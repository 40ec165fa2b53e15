package match

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
)

// Cache stores computed match results under an opaque key.
//
// Every lookup reports the generation it ran against. Invalidate starts a new
// generation, and Set drops results computed under an older one, so a scan
// that raced a profile write is never cached.
type Cache interface {
	// Get reports ok=false on a miss.
	Get(ctx context.Context, key string) (results []Result, gen int64, ok bool, err error)
	// Set stores results unless gen is no longer current.
	Set(ctx context.Context, key string, gen int64, results []Result) error
	// Invalidate drops every cached entry.
	Invalidate(ctx context.Context) error
}

// CachedMatcher memoizes a Matcher. Failed lookups are never cached and cache
// errors fall back to the wrapped matcher.
type CachedMatcher struct {
	next      Matcher
	cache     Cache
	namespace string
	log       *slog.Logger
}

// NewCachedMatcher wraps next. namespace keeps tenants apart in a shared cache.
func NewCachedMatcher(next Matcher, cache Cache, namespace string, log *slog.Logger) *CachedMatcher {
	if log == nil {
		log = slog.Default()
	}
	return &CachedMatcher{next: next, cache: cache, namespace: namespace, log: log}
}

// FindMatches implements Matcher.
func (m *CachedMatcher) FindMatches(ctx context.Context, requester Requester, tags []string, f Filters) ([]Result, error) {
	key, err := CacheKey(m.namespace, requester, tags, f)
	if err != nil {
		m.log.Warn("match_cache_skipped", slog.String("user_id", requester.UserID), slog.String("err", err.Error()))
		return m.next.FindMatches(ctx, requester, tags, f)
	}

	// the generation is read before the store scan starts
	cached, gen, ok, err := m.cache.Get(ctx, key)
	if err != nil {
		m.log.Warn("match_cache_error", slog.String("op", "get"), slog.String("err", err.Error()))
		return m.next.FindMatches(ctx, requester, tags, f)
	}
	if ok {
		return cached, nil
	}

	results, err := m.next.FindMatches(ctx, requester, tags, f)
	if err != nil {
		return results, err
	}
	if err := m.cache.Set(ctx, key, gen, results); err != nil {
		m.log.Warn("match_cache_error", slog.String("op", "set"), slog.String("err", err.Error()))
	}
	return results, nil
}

// Invalidate drops all cached results.
func (m *CachedMatcher) Invalidate(ctx context.Context) error {
	return m.cache.Invalidate(ctx)
}

type cacheKeyInput struct {
	Namespace string    `json:"ns"`
	UserID    string    `json:"uid"`
	Location  *Location `json:"loc,omitempty"`
	Tags      []string  `json:"tags"`
	Filters   Filters   `json:"f"`
}

// CacheKey derives a stable key for a match request. Tag order and
// duplicates do not change the key. Inputs that cannot be encoded, such as a
// NaN coordinate, return an error.
func CacheKey(namespace string, requester Requester, tags []string, f Filters) (string, error) {
	const op = "match/CacheKey"

	tags = NormalizeTags(tags)
	sort.Strings(tags)
	raw, err := json.Marshal(cacheKeyInput{
		Namespace: namespace,
		UserID:    requester.UserID,
		Location:  requester.Location,
		Tags:      tags,
		Filters:   f,
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
