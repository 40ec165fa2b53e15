// Package store holds the backend-independent wrappers around match.ProfileStore.
package store

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gitea.kood.tech/petrkubec/vibetribe/backend/match"
	"github.com/cenkalti/backoff/v4"
)

// RetryConfig bounds how hard Resilient tries before giving up.
type RetryConfig struct {
	// Timeout applies to every single attempt. Zero disables it.
	Timeout     time.Duration
	MaxRetries  uint64
	InitialWait time.Duration
	MaxWait     time.Duration
}

// Resilient retries transient store failures with exponential backoff.
// Not-found and validation errors are returned immediately.
type Resilient struct {
	next match.ProfileStore
	cfg  RetryConfig
	log  *slog.Logger
}

// NewResilient wraps next.
func NewResilient(next match.ProfileStore, cfg RetryConfig, log *slog.Logger) *Resilient {
	if log == nil {
		log = slog.Default()
	}
	if cfg.InitialWait <= 0 {
		cfg.InitialWait = 50 * time.Millisecond
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = time.Second
	}
	return &Resilient{next: next, cfg: cfg, log: log}
}

func permanent(err error) bool {
	return errors.Is(err, match.ErrProfileNotFound) ||
		errors.Is(err, match.ErrInvalidProfile) ||
		errors.Is(err, match.ErrInvalidFilters) ||
		errors.Is(err, context.Canceled)
}

func (r *Resilient) do(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.cfg.InitialWait
	b.MaxInterval = r.cfg.MaxWait
	b.MaxElapsedTime = 0

	attempt := func() error {
		callCtx := ctx
		if r.cfg.Timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
			defer cancel()
		}
		err := fn(callCtx)
		if err != nil && (permanent(err) || ctx.Err() != nil) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		r.log.Warn("store_retry",
			slog.String("op", name),
			slog.Duration("wait", wait),
			slog.String("err", err.Error()),
		)
	}

	return backoff.RetryNotify(attempt, backoff.WithContext(backoff.WithMaxRetries(b, r.cfg.MaxRetries), ctx), notify)
}

func (r *Resilient) FindProfilesByAnyTag(ctx context.Context, tags []string) ([]match.Profile, error) {
	var out []match.Profile
	err := r.do(ctx, "FindProfilesByAnyTag", func(ctx context.Context) error {
		var err error
		out, err = r.next.FindProfilesByAnyTag(ctx, tags)
		return err
	})
	return out, err
}

func (r *Resilient) GetProfile(ctx context.Context, userID string) (*match.Profile, error) {
	var out *match.Profile
	err := r.do(ctx, "GetProfile", func(ctx context.Context) error {
		var err error
		out, err = r.next.GetProfile(ctx, userID)
		return err
	})
	return out, err
}

func (r *Resilient) GetProfiles(ctx context.Context, userIDs []string) ([]match.Profile, error) {
	var out []match.Profile
	err := r.do(ctx, "GetProfiles", func(ctx context.Context) error {
		var err error
		out, err = r.next.GetProfiles(ctx, userIDs)
		return err
	})
	return out, err
}

// SaveProfile is retried as a whole; applying the same update twice gives the
// same row.
func (r *Resilient) SaveProfile(ctx context.Context, userID string, update match.ProfileUpdate) (*match.Profile, error) {
	var out *match.Profile
	err := r.do(ctx, "SaveProfile", func(ctx context.Context) error {
		var err error
		out, err = r.next.SaveProfile(ctx, userID, update)
		return err
	})
	return out, err
}

func (r *Resilient) SaveFilters(ctx context.Context, userID string, f match.Filters) error {
	return r.do(ctx, "SaveFilters", func(ctx context.Context) error {
		return r.next.SaveFilters(ctx, userID, f)
	})
}

func (r *Resilient) LoadFilters(ctx context.Context, userID string) (*match.Filters, error) {
	var out *match.Filters
	err := r.do(ctx, "LoadFilters", func(ctx context.Context) error {
		var err error
		out, err = r.next.LoadFilters(ctx, userID)
		return err
	})
	return out, err
}

var _ match.ProfileStore = (*Resilient)(nil)
