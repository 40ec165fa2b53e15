// Package avatar turns stored image references into URLs a client can load.
//
// A profile's ImageURL is either empty, an absolute URL, a data URI, or an
// object key in the avatar bucket. Only object keys need resolving.
package avatar

import (
	"context"
	"log/slog"
	"strings"

	"gitea.kood.tech/petrkubec/vibetribe/backend/match"
)

// Resolver maps an object key to a loadable URL.
type Resolver interface {
	ResolveKey(ctx context.Context, key string) (string, error)
}

// IsObjectKey reports whether ref points into the bucket rather than at a URL.
func IsObjectKey(ref string) bool {
	if ref == "" {
		return false
	}
	for _, prefix := range []string{"http://", "https://", "data:", "/"} {
		if strings.HasPrefix(ref, prefix) {
			return false
		}
	}
	return true
}

// URL returns what a client should load for p: the placeholder when nothing
// is stored, the resolved key, or the stored URL as-is.
func URL(ctx context.Context, r Resolver, p *match.Profile) (string, error) {
	if p.ImageURL == "" {
		return match.PlaceholderImage(p.Name), nil
	}
	if r == nil || !IsObjectKey(p.ImageURL) {
		return p.ImageURL, nil
	}
	return r.ResolveKey(ctx, p.ImageURL)
}

// ResolveResults rewrites ImageURL on every result in place. A key that
// cannot be resolved falls back to the placeholder.
func ResolveResults(ctx context.Context, r Resolver, results []match.Result, log *slog.Logger) {
	for i := range results {
		p := &results[i].Profile
		u, err := URL(ctx, r, p)
		if err != nil {
			if log != nil {
				log.Warn("avatar_resolve_failed", slog.String("user_id", p.UserID), slog.String("err", err.Error()))
			}
			u = match.PlaceholderImage(p.Name)
		}
		p.ImageURL = u
	}
}

// Static joins keys onto a public base URL.
type Static struct {
	BaseURL string
}

func (s Static) ResolveKey(_ context.Context, key string) (string, error) {
	if s.BaseURL == "" {
		return key, nil
	}
	return strings.TrimRight(s.BaseURL, "/") + "/" + strings.TrimLeft(key, "/"), nil
}
