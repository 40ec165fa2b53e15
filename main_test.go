package main

import (
	"context"
	"testing"
	"time"

	"gitea.kood.tech/petrkubec/vibetribe/backend/avatar"
	"gitea.kood.tech/petrkubec/vibetribe/backend/config"
	"gitea.kood.tech/petrkubec/vibetribe/backend/match"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(storeDriver, cacheDriver string) *config.Config {
	cfg := &config.Config{Env: "local"}
	cfg.App.Namespace = "test"
	cfg.Store.Driver = storeDriver
	cfg.Store.Timeout = time.Second
	cfg.Store.MaxRetries = 1
	cfg.Cache.Driver = cacheDriver
	cfg.Cache.Size = 16
	cfg.Cache.TTL = time.Minute
	return cfg
}

func TestSetupLogger(t *testing.T) {
	for _, env := range []string{envLocal, envDev, envProd, "staging"} {
		assert.NotNil(t, setupLogger(env), env)
	}
}

func TestInitStore(t *testing.T) {
	ctx := context.Background()

	t.Run("Memory driver", func(t *testing.T) {
		st, closeFn, err := initStore(ctx, testConfig("memory", "none"), discardLogger())
		require.NoError(t, err)
		defer closeFn()

		_, err = st.SaveProfile(ctx, "u1", match.ProfileUpdate{})
		require.NoError(t, err)
		_, err = st.GetProfile(ctx, "u1")
		assert.NoError(t, err)
	})

	t.Run("Unknown driver", func(t *testing.T) {
		_, _, err := initStore(ctx, testConfig("sqlite", "none"), discardLogger())
		assert.Error(t, err)
	})
}

func TestInitCache(t *testing.T) {
	ctx := context.Background()

	c, closeFn, err := initCache(ctx, testConfig("memory", "none"), discardLogger())
	require.NoError(t, err)
	closeFn()
	assert.Nil(t, c)

	c, closeFn, err = initCache(ctx, testConfig("memory", "memory"), discardLogger())
	require.NoError(t, err)
	defer closeFn()
	require.NotNil(t, c)

	_, gen, _, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.NoError(t, c.Set(ctx, "k", gen, []match.Result{{Profile: match.Profile{UserID: "a"}}}))
	got, _, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, got, 1)
}

func TestInitAvatars(t *testing.T) {
	cfg := testConfig("memory", "none")
	cfg.S3.PublicBaseURL = "https://files.example"

	r, err := initAvatars(context.Background(), cfg, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, avatar.Static{BaseURL: "https://files.example"}, r)
}
