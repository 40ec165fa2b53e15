package match

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
)

// CandidateFinder is the slice of the profile store the engine reads from.
type CandidateFinder interface {
	// FindProfilesByAnyTag returns every profile whose tags intersect tags.
	FindProfilesByAnyTag(ctx context.Context, tags []string) ([]Profile, error)
}

// ProfileStore is the full profile collaborator used by the service layer.
type ProfileStore interface {
	CandidateFinder
	GetProfile(ctx context.Context, userID string) (*Profile, error)
	GetProfiles(ctx context.Context, userIDs []string) ([]Profile, error)
	// SaveProfile merges update into the stored profile, creating it when absent.
	SaveProfile(ctx context.Context, userID string, update ProfileUpdate) (*Profile, error)
	SaveFilters(ctx context.Context, userID string, f Filters) error
	// LoadFilters returns ErrProfileNotFound when nothing was saved.
	LoadFilters(ctx context.Context, userID string) (*Filters, error)
}

// Matcher is anything that can answer a match request.
type Matcher interface {
	FindMatches(ctx context.Context, requester Requester, tags []string, f Filters) ([]Result, error)
}

// Requester identifies the caller. Location is the distance origin.
type Requester struct {
	UserID   string    `json:"user_id"`
	Location *Location `json:"location,omitempty"`
}

// Result is a matched profile annotated for display.
type Result struct {
	Profile
	DistanceKm *float64 `json:"distance_km,omitempty"`
	SharedTags []string `json:"shared_tags"`
}

// Engine runs the match pipeline. It holds no mutable state and is safe for
// concurrent use.
type Engine struct {
	finder CandidateFinder
	log    *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for skipped records and store failures.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// NewEngine builds an engine over finder.
func NewEngine(finder CandidateFinder, opts ...Option) *Engine {
	e := &Engine{finder: finder, log: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// FindMatches returns the candidates compatible with requester in store
// iteration order.
//
// An empty tag set yields no matches. A store failure yields an empty slice
// and an error wrapping ErrStoreUnavailable.
func (e *Engine) FindMatches(ctx context.Context, requester Requester, tags []string, f Filters) ([]Result, error) {
	const op = "match/Engine.FindMatches"

	tags = NormalizeTags(tags)
	if len(tags) == 0 {
		return []Result{}, nil
	}

	candidates, err := e.finder.FindProfilesByAnyTag(ctx, tags)
	if err != nil {
		e.log.Warn("store_unavailable",
			slog.String("op", op),
			slog.String("requester", requester.UserID),
			slog.String("err", err.Error()),
		)
		return []Result{}, fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
	}

	origin := requester.Location
	if origin != nil && !origin.Valid() {
		origin = nil
	}

	results := make([]Result, 0, len(candidates))
	for i := range candidates {
		c := &candidates[i]
		if c.UserID == "" {
			e.log.Debug("candidate_skipped", slog.String("op", op), slog.String("reason", "missing user_id"))
			continue
		}
		if c.UserID == requester.UserID {
			continue
		}
		// deactivated profiles go before any predicate can observe them
		if c.IsDeactivated {
			continue
		}
		shared := intersect(tags, c.Tags)
		if len(shared) == 0 {
			continue
		}
		if !f.accepts(c) {
			continue
		}

		var dist *float64
		if origin != nil && c.Location != nil && c.Location.Valid() {
			d := DistanceBetween(*origin, *c.Location)
			if f.distanceConstrained() && d > f.MaxDistanceKm {
				continue
			}
			dist = &d
		}

		r := Result{Profile: *c, DistanceKm: dist, SharedTags: shared}
		if r.ImageURL == "" {
			r.ImageURL = PlaceholderImage(r.Name)
		}
		results = append(results, r)
	}

	return results, nil
}

// intersect returns the members of want present in have, in want's order.
func intersect(want, have []string) []string {
	if len(have) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(have))
	for _, h := range have {
		set[h] = struct{}{}
	}
	var out []string
	for _, w := range want {
		if _, ok := set[w]; ok {
			out = append(out, w)
		}
	}
	return out
}

// SortByDistance orders results nearest first. Results without a distance
// keep their relative order at the end.
func SortByDistance(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i].DistanceKm, results[j].DistanceKm
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return *a < *b
		}
	})
}
