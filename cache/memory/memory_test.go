package memory

import (
	"context"
	"testing"
	"time"

	"gitea.kood.tech/petrkubec/vibetribe/backend/match"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func results(ids ...string) []match.Result {
	out := make([]match.Result, 0, len(ids))
	for _, id := range ids {
		out = append(out, match.Result{Profile: match.Profile{UserID: id}})
	}
	return out
}

// set stores results under the generation current right now.
func set(t *testing.T, c *Cache, key string, r []match.Result) {
	t.Helper()
	_, gen, _, err := c.Get(context.Background(), key)
	require.NoError(t, err)
	require.NoError(t, c.Set(context.Background(), key, gen, r))
}

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()

	t.Run("Miss then hit", func(t *testing.T) {
		c := New(10, time.Minute)
		_, gen, ok, err := c.Get(ctx, "k")
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, c.Set(ctx, "k", gen, results("a", "b")))
		got, _, ok, err := c.Get(ctx, "k")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Len(t, got, 2)
	})

	t.Run("Callers cannot reorder the cached slice", func(t *testing.T) {
		c := New(10, time.Minute)
		set(t, c, "k", results("a", "b"))

		got, _, _, _ := c.Get(ctx, "k")
		got[0], got[1] = got[1], got[0]

		again, _, _, _ := c.Get(ctx, "k")
		assert.Equal(t, "a", again[0].UserID)
	})

	t.Run("Invalidate purges", func(t *testing.T) {
		c := New(10, time.Minute)
		set(t, c, "k", results("a"))
		require.NoError(t, c.Invalidate(ctx))
		_, _, ok, _ := c.Get(ctx, "k")
		assert.False(t, ok)
	})

	t.Run("Writes from before an invalidation are dropped", func(t *testing.T) {
		c := New(10, time.Minute)
		_, gen, _, err := c.Get(ctx, "k")
		require.NoError(t, err)

		require.NoError(t, c.Invalidate(ctx))
		require.NoError(t, c.Set(ctx, "k", gen, results("b")))

		_, next, ok, _ := c.Get(ctx, "k")
		assert.False(t, ok)
		assert.Equal(t, gen+1, next)
	})

	t.Run("Entries expire", func(t *testing.T) {
		c := New(10, 20*time.Millisecond)
		set(t, c, "k", results("a"))
		assert.Eventually(t, func() bool {
			_, _, ok, _ := c.Get(ctx, "k")
			return !ok
		}, time.Second, 10*time.Millisecond)
	})

	t.Run("Size bound evicts the oldest", func(t *testing.T) {
		c := New(1, time.Minute)
		set(t, c, "old", results("a"))
		set(t, c, "new", results("b"))
		_, _, ok, _ := c.Get(ctx, "old")
		assert.False(t, ok)
	})
}

// gatedMatcher reads its result set, then holds the first call until
// release is closed.
type gatedMatcher struct {
	started chan struct{}
	release chan struct{}
	results []match.Result
	calls   int
}

func (g *gatedMatcher) FindMatches(context.Context, match.Requester, []string, match.Filters) ([]match.Result, error) {
	g.calls++
	out := g.results
	if g.calls == 1 {
		close(g.started)
		<-g.release
	}
	return out, nil
}

func TestCachedMatcherInvalidatedMidScan(t *testing.T) {
	ctx := context.Background()
	inner := &gatedMatcher{
		started: make(chan struct{}),
		release: make(chan struct{}),
		results: results("a", "b"),
	}
	cm := match.NewCachedMatcher(inner, New(10, time.Minute), "test", nil)
	me := match.Requester{UserID: "me"}
	f := match.DefaultFilters()

	done := make(chan []match.Result)
	go func() {
		r, err := cm.FindMatches(ctx, me, []string{"Chill"}, f)
		assert.NoError(t, err)
		done <- r
	}()

	<-inner.started
	// "b" is deactivated while the first scan is still running
	require.NoError(t, cm.Invalidate(ctx))
	inner.results = results("a")
	close(inner.release)
	assert.Len(t, <-done, 2)

	got, err := cm.FindMatches(ctx, me, []string{"Chill"}, f)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].UserID)
}
