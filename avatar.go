package main

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"gitea.kood.tech/petrkubec/vibetribe/backend/avatar"
	"gitea.kood.tech/petrkubec/vibetribe/backend/match"
	"github.com/go-chi/chi/v5"
)

// GET /avatars/{id}
// Redirects to the stored image, or serves the placeholder SVG when there is
// none. Deactivated and unknown users get 404 so their existence is not
// revealed.
func getUserAvatarHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		targetID := chi.URLParam(r, "id")
		me, _ := userIDFrom(r.Context())

		p, err := loadProfile(r.Context(), targetID)
		if err != nil {
			if errors.Is(err, match.ErrProfileNotFound) {
				http.NotFound(w, r)
				return
			}
			writeError(w, http.StatusServiceUnavailable, "store_unavailable")
			return
		}
		if p.IsDeactivated && p.UserID != me {
			http.NotFound(w, r)
			return
		}

		if p.ImageURL != "" {
			u, err := avatar.URL(r.Context(), app.avatars, p)
			if err == nil && !strings.HasPrefix(u, "data:") {
				http.Redirect(w, r, u, http.StatusFound)
				return
			}
			if err != nil {
				app.log.Warn("avatar_resolve_failed", slog.String("user_id", p.UserID), slog.String("err", err.Error()))
			}
		}

		w.Header().Set("Content-Type", "image/svg+xml")
		w.Header().Set("Cache-Control", "private, max-age=3600")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(match.PlaceholderSVG(p.Name)))
	}
}
