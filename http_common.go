package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"gitea.kood.tech/petrkubec/vibetribe/backend/match"
)

// --- Response helpers ---
func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeJSON reads a size-limited body and rejects unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// splitList parses "a,b, c" into its non-empty parts.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

var filterParams = []string{
	"min_age", "max_age", "gender", "schedule", "max_distance_km", "min_vibe_score", "pet_friendly",
}

// hasFilterParams reports whether the query overrides any filter.
func hasFilterParams(q url.Values) bool {
	for _, p := range filterParams {
		if q.Has(p) {
			return true
		}
	}
	return false
}

var errBadParam = errors.New("bad query parameter")

// parseFilters overlays query parameters onto base. The result is validated.
func parseFilters(q url.Values, base match.Filters) (match.Filters, error) {
	f := base

	intParam := func(name string, dst *int) error {
		if !q.Has(name) {
			return nil
		}
		v, err := strconv.Atoi(q.Get(name))
		if err != nil {
			return fmt.Errorf("%w: %s", errBadParam, name)
		}
		*dst = v
		return nil
	}

	if err := intParam("min_age", &f.MinAge); err != nil {
		return f, err
	}
	if err := intParam("max_age", &f.MaxAge); err != nil {
		return f, err
	}
	if err := intParam("min_vibe_score", &f.MinVibeScore); err != nil {
		return f, err
	}
	if q.Has("gender") {
		f.Gender = match.Gender(q.Get("gender"))
	}
	if q.Has("schedule") {
		f.Schedule = match.Schedule(q.Get("schedule"))
	}
	if q.Has("max_distance_km") {
		v, err := strconv.ParseFloat(q.Get("max_distance_km"), 64)
		if err != nil {
			return f, fmt.Errorf("%w: max_distance_km", errBadParam)
		}
		f.MaxDistanceKm = v
	}
	if q.Has("pet_friendly") {
		v, err := strconv.ParseBool(q.Get("pet_friendly"))
		if err != nil {
			return f, fmt.Errorf("%w: pet_friendly", errBadParam)
		}
		f.PetFriendly = v
	}

	if err := f.Validate(); err != nil {
		return f, err
	}
	return f, nil
}
