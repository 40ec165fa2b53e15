package main

import (
	"encoding/json"
	"net/http"
	"testing"

	"gitea.kood.tech/petrkubec/vibetribe/backend/match"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type matchesBody struct {
	Matches []match.Result `json:"matches"`
	Filters match.Filters  `json:"filters"`
	Error   string         `json:"error"`
}

func decodeMatches(t *testing.T, raw []byte) matchesBody {
	t.Helper()
	var body matchesBody
	require.NoError(t, json.Unmarshal(raw, &body))
	return body
}

func matchIDs(results []match.Result) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, r.UserID)
	}
	return out
}

func TestMatchesHandler(t *testing.T) {
	t.Run("Worked example", func(t *testing.T) {
		app := newTestApp(t, scenarioProfiles())

		w := do(t, app, http.MethodGet, "/matches?min_age=18&max_age=40&max_distance_km=50", "me", "")
		assertStatus(t, w, http.StatusOK)

		body := decodeMatches(t, w.Body.Bytes())
		require.Equal(t, []string{"a"}, matchIDs(body.Matches))

		a := body.Matches[0]
		require.NotNil(t, a.DistanceKm)
		assert.InDelta(t, 34.42, *a.DistanceKm, 0.05)
		assert.Equal(t, []string{"Chill"}, a.SharedTags)
		assert.Equal(t, match.PlaceholderImage("Alex"), a.ImageURL)
		assert.Equal(t, 40, body.Filters.MaxAge)
	})

	t.Run("Tags override the profile's own vibes", func(t *testing.T) {
		app := newTestApp(t, scenarioProfiles())

		w := do(t, app, http.MethodGet, "/matches?tags=Energetic", "me", "")
		assertStatus(t, w, http.StatusOK)
		assert.Equal(t, []string{"b"}, matchIDs(decodeMatches(t, w.Body.Bytes()).Matches))
	})

	t.Run("Profile without vibes gets an empty list", func(t *testing.T) {
		app := newTestApp(t, append(scenarioProfiles(), match.Profile{UserID: "lonely", Name: "Lo"}))

		w := do(t, app, http.MethodGet, "/matches", "lonely", "")
		assertStatus(t, w, http.StatusOK)
		body := decodeMatches(t, w.Body.Bytes())
		assert.NotNil(t, body.Matches)
		assert.Empty(t, body.Matches)
		assert.Contains(t, w.Body.String(), `"matches":[]`)
	})

	t.Run("Unknown requester without tags", func(t *testing.T) {
		app := newTestApp(t, scenarioProfiles())

		w := do(t, app, http.MethodGet, "/matches", "ghost", "")
		assertStatus(t, w, http.StatusNotFound)
		assert.JSONEq(t, `{"error":"profile_not_found"}`, w.Body.String())
	})

	t.Run("Unknown requester with tags", func(t *testing.T) {
		app := newTestApp(t, scenarioProfiles())

		w := do(t, app, http.MethodGet, "/matches?tags=Creative", "ghost", "")
		assertStatus(t, w, http.StatusOK)
		// no origin, so nobody is distance-filtered and nobody has a distance
		body := decodeMatches(t, w.Body.Bytes())
		assert.Equal(t, []string{"me", "c"}, matchIDs(body.Matches))
		for _, r := range body.Matches {
			assert.Nil(t, r.DistanceKm)
		}
	})

	t.Run("Invalid filters", func(t *testing.T) {
		app := newTestApp(t, scenarioProfiles())

		for _, q := range []string{"min_age=abc", "min_age=50&max_age=20", "gender=Robot", "max_distance_km=NaN"} {
			w := do(t, app, http.MethodGet, "/matches?"+q, "me", "")
			assertStatus(t, w, http.StatusBadRequest)
			assert.JSONEq(t, `{"error":"invalid_filters"}`, w.Body.String(), q)
		}
	})

	t.Run("Store outage is not an empty result", func(t *testing.T) {
		app := newTestApp(t, nil, withStore(brokenStore{}))

		w := do(t, app, http.MethodGet, "/matches?tags=Chill", "me", "")
		assertStatus(t, w, http.StatusServiceUnavailable)
		assert.JSONEq(t, `{"error":"store_unavailable","matches":[]}`, w.Body.String())
	})

	t.Run("Anonymous", func(t *testing.T) {
		app := newTestApp(t, scenarioProfiles())
		w := do(t, app, http.MethodGet, "/matches", "", "")
		assertStatus(t, w, http.StatusUnauthorized)
	})
}

func TestMatchesFilterResolution(t *testing.T) {
	profiles := append(scenarioProfiles(),
		match.Profile{UserID: "e", Name: "Eli", Tags: []string{"Chill"}, Age: 33, Location: loc(40.05, -73.0)},
	)

	t.Run("Defaults when nothing is saved", func(t *testing.T) {
		app := newTestApp(t, profiles)

		w := do(t, app, http.MethodGet, "/matches", "me", "")
		assertStatus(t, w, http.StatusOK)
		body := decodeMatches(t, w.Body.Bytes())
		assert.Equal(t, []string{"a", "c", "e"}, matchIDs(body.Matches))
		assert.Equal(t, match.DefaultFilters(), body.Filters)
	})

	t.Run("Saved filters apply", func(t *testing.T) {
		app := newTestApp(t, profiles)

		w := do(t, app, http.MethodPut, "/me/filters", "me", `{"max_distance_km":10}`)
		assertStatus(t, w, http.StatusOK)

		w = do(t, app, http.MethodGet, "/matches", "me", "")
		assertStatus(t, w, http.StatusOK)
		// c has no location so the radius cannot exclude it
		assert.Equal(t, []string{"c", "e"}, matchIDs(decodeMatches(t, w.Body.Bytes()).Matches))
	})

	t.Run("Query parameters beat saved filters", func(t *testing.T) {
		app := newTestApp(t, profiles)

		w := do(t, app, http.MethodPut, "/me/filters", "me", `{"max_distance_km":10}`)
		assertStatus(t, w, http.StatusOK)

		w = do(t, app, http.MethodGet, "/matches?max_distance_km=50", "me", "")
		assertStatus(t, w, http.StatusOK)
		assert.Equal(t, []string{"a", "c", "e"}, matchIDs(decodeMatches(t, w.Body.Bytes()).Matches))
	})

	t.Run("Sort by distance", func(t *testing.T) {
		app := newTestApp(t, profiles)

		w := do(t, app, http.MethodGet, "/matches?sort=distance", "me", "")
		assertStatus(t, w, http.StatusOK)
		assert.Equal(t, []string{"e", "a", "c"}, matchIDs(decodeMatches(t, w.Body.Bytes()).Matches))
	})
}

func TestMatchesCacheInvalidation(t *testing.T) {
	app := newTestApp(t, scenarioProfiles(), withMatchCache())

	w := do(t, app, http.MethodGet, "/matches", "me", "")
	assertStatus(t, w, http.StatusOK)
	require.Equal(t, []string{"a", "c"}, matchIDs(decodeMatches(t, w.Body.Bytes()).Matches))

	w = do(t, app, http.MethodPatch, "/me/profile", "a", `{"is_deactivated":true}`)
	assertStatus(t, w, http.StatusOK)

	w = do(t, app, http.MethodGet, "/matches", "me", "")
	assertStatus(t, w, http.StatusOK)
	assert.Equal(t, []string{"c"}, matchIDs(decodeMatches(t, w.Body.Bytes()).Matches))
}
