package main

import (
	"net/http"

	"gitea.kood.tech/petrkubec/vibetribe/backend/match"
)

// DataLoaderMiddleware creates middleware that injects dataloaders into the request context
func DataLoaderMiddleware(store match.ProfileStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Fresh loaders per request so one user's reads never leak into another's.
			ctx := WithDataLoaders(r.Context(), NewDataLoaders(store))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
