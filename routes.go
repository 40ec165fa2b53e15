package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// newRouter wires every endpoint. Middleware order is outer to inner.
func newRouter(app *App, corsOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.Recoverer,
		middleware.RequestID,
		withCORS(corsOrigins),
		app.metrics.instrument,
	)

	// Health check endpoint for Docker
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", app.metrics.Handler())
	r.Get("/vocabulary", vocabularyHandler)

	// The feed authenticates itself so browsers can pass ?token=.
	r.Get("/ws/matches", wsMatchesHandler(app, corsOrigins))

	r.Group(func(r chi.Router) {
		r.Use(authenticate(app.jwtSecret), DataLoaderMiddleware(app.store))

		r.Get("/matches", matchesHandler(app))

		r.Get("/me/profile", getMyProfileHandler(app))
		r.Patch("/me/profile", patchMyProfileHandler(app))
		r.Get("/me/filters", getMyFiltersHandler(app))
		r.Put("/me/filters", putMyFiltersHandler(app))

		r.Get("/users/{id}/profile", userProfileHandler(app))
		r.Get("/profiles", profilesBatchHandler(app))
		r.Get("/avatars/{id}", getUserAvatarHandler(app))
	})

	return r
}
