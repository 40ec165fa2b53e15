package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"gitea.kood.tech/petrkubec/vibetribe/backend/avatar"
	"gitea.kood.tech/petrkubec/vibetribe/backend/match"
)

// storeUnavailableBody keeps "no data" distinguishable from "no matches".
var storeUnavailableBody = map[string]any{"error": "store_unavailable", "matches": []match.Result{}}

// resolveFilters picks, in order: query parameters over the defaults, the
// user's saved filters, the defaults.
func (a *App) resolveFilters(ctx context.Context, userID string, q url.Values) (match.Filters, error) {
	if hasFilterParams(q) {
		return parseFilters(q, a.defaults)
	}

	saved, err := a.store.LoadFilters(ctx, userID)
	switch {
	case err == nil:
		return *saved, nil
	case errors.Is(err, match.ErrProfileNotFound):
		return a.defaults, nil
	default:
		return a.defaults, err
	}
}

// findMatchesFor runs the engine for userID. Tags override the profile's own
// vibes when given.
func (a *App) findMatchesFor(ctx context.Context, userID string, tags []string, f match.Filters) ([]match.Result, error) {
	requester := match.Requester{UserID: userID}

	me, err := a.store.GetProfile(ctx, userID)
	switch {
	case err == nil:
		requester.Location = me.Location
		if len(tags) == 0 {
			tags = me.Tags
		}
	case errors.Is(err, match.ErrProfileNotFound):
		if len(tags) == 0 {
			return nil, match.ErrProfileNotFound
		}
	default:
		return []match.Result{}, errors.Join(match.ErrStoreUnavailable, err)
	}

	results, err := a.matcher.FindMatches(ctx, requester, tags, f)
	if err != nil {
		return results, err
	}
	avatar.ResolveResults(ctx, a.avatars, results, a.log)
	return results, nil
}

// GET /matches?tags=Chill,Creative&sort=distance&max_distance_km=25
func matchesHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := userIDFrom(r.Context())
		q := r.URL.Query()

		f, err := app.resolveFilters(r.Context(), userID, q)
		if err != nil {
			if errors.Is(err, match.ErrInvalidFilters) || errors.Is(err, errBadParam) {
				app.metrics.observeMatch("invalid", 0)
				writeError(w, http.StatusBadRequest, "invalid_filters")
				return
			}
			app.log.Warn("saved_filters_unavailable", slog.String("user_id", userID), slog.String("err", err.Error()))
		}

		results, err := app.findMatchesFor(r.Context(), userID, splitList(q.Get("tags")), f)
		switch {
		case err == nil:
		case errors.Is(err, match.ErrProfileNotFound):
			app.metrics.observeMatch("no_profile", 0)
			writeError(w, http.StatusNotFound, "profile_not_found")
			return
		case errors.Is(err, match.ErrStoreUnavailable):
			app.metrics.observeMatch("store_unavailable", 0)
			writeJSON(w, http.StatusServiceUnavailable, storeUnavailableBody)
			return
		default:
			app.metrics.observeMatch("error", 0)
			app.log.Error("match_failed", slog.String("user_id", userID), slog.String("err", err.Error()))
			writeError(w, http.StatusInternalServerError, "match_error")
			return
		}

		if q.Get("sort") == "distance" {
			match.SortByDistance(results)
		}

		app.metrics.observeMatch("ok", len(results))
		writeJSON(w, http.StatusOK, map[string]any{"matches": results, "filters": f})
	}
}
