package main

import (
	"errors"
	"log/slog"
	"net/http"

	"gitea.kood.tech/petrkubec/vibetribe/backend/avatar"
	"gitea.kood.tech/petrkubec/vibetribe/backend/match"
	"github.com/go-chi/chi/v5"
)

const maxBatchIDs = 100

// profileView is what clients see: the stored profile with a loadable avatar.
func (a *App) profileView(r *http.Request, p *match.Profile) *match.Profile {
	out := *p
	u, err := avatar.URL(r.Context(), a.avatars, p)
	if err != nil {
		a.log.Warn("avatar_resolve_failed", slog.String("user_id", p.UserID), slog.String("err", err.Error()))
		u = match.PlaceholderImage(p.Name)
	}
	out.ImageURL = u
	return &out
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, match.ErrProfileNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	writeError(w, http.StatusServiceUnavailable, "store_unavailable")
}

// GET /me/profile
func getMyProfileHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		me, _ := userIDFrom(r.Context())
		p, err := app.store.GetProfile(r.Context(), me)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, app.profileView(r, p))
	}
}

// PATCH /me/profile merges the body into the stored profile, creating it on
// first write.
func patchMyProfileHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		me, _ := userIDFrom(r.Context())

		var update match.ProfileUpdate
		if err := decodeJSON(w, r, &update); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		if err := update.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_profile")
			return
		}

		saved, err := app.store.SaveProfile(r.Context(), me, update)
		if err != nil {
			if errors.Is(err, match.ErrInvalidProfile) {
				writeError(w, http.StatusBadRequest, "invalid_profile")
				return
			}
			app.log.Error("profile_save_failed", slog.String("user_id", me), slog.String("err", err.Error()))
			writeError(w, http.StatusServiceUnavailable, "store_unavailable")
			return
		}

		app.announceProfileChange(r.Context(), me)
		writeJSON(w, http.StatusOK, app.profileView(r, saved))
	}
}

// GET /me/filters returns the saved filters, or the defaults when none exist.
func getMyFiltersHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		me, _ := userIDFrom(r.Context())
		f, err := app.store.LoadFilters(r.Context(), me)
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, map[string]any{"filters": f, "saved": true})
		case errors.Is(err, match.ErrProfileNotFound):
			writeJSON(w, http.StatusOK, map[string]any{"filters": app.defaults, "saved": false})
		default:
			writeError(w, http.StatusServiceUnavailable, "store_unavailable")
		}
	}
}

// PUT /me/filters replaces the saved filters. Omitted fields take the
// configured defaults.
func putMyFiltersHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		me, _ := userIDFrom(r.Context())

		f := app.defaults
		if err := decodeJSON(w, r, &f); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		if err := f.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_filters")
			return
		}
		if err := app.store.SaveFilters(r.Context(), me, f); err != nil {
			app.log.Error("filters_save_failed", slog.String("user_id", me), slog.String("err", err.Error()))
			writeError(w, http.StatusServiceUnavailable, "store_unavailable")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"filters": f, "saved": true})
	}
}

// GET /users/{id}/profile. Deactivated profiles look like missing ones.
func userProfileHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		targetID := chi.URLParam(r, "id")

		p, err := loadProfile(r.Context(), targetID)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		if p.IsDeactivated {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}
		writeJSON(w, http.StatusOK, app.profileView(r, p))
	}
}

// GET /profiles?ids=a,b,c. Unknown and deactivated IDs are left out.
func profilesBatchHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids := splitList(r.URL.Query().Get("ids"))
		if len(ids) == 0 {
			writeError(w, http.StatusBadRequest, "missing_ids")
			return
		}
		if len(ids) > maxBatchIDs {
			writeError(w, http.StatusBadRequest, "too_many_ids")
			return
		}

		profiles, err := loadProfiles(r.Context(), ids)
		if err != nil {
			writeStoreError(w, err)
			return
		}

		out := make([]*match.Profile, 0, len(profiles))
		for _, p := range profiles {
			if p == nil || p.IsDeactivated {
				continue
			}
			out = append(out, app.profileView(r, p))
		}
		writeJSON(w, http.StatusOK, map[string]any{"profiles": out})
	}
}

// GET /vocabulary
func vocabularyHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"vibes":     match.Vibes,
		"moods":     match.Moods,
		"genders":   []match.Gender{match.GenderMale, match.GenderFemale, match.GenderNonBinary, match.GenderPreferNotToSay},
		"schedules": []match.Schedule{match.ScheduleEarlyBird, match.ScheduleNightOwl, match.ScheduleFlexible},
	})
}
