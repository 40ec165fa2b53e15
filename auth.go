package main

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// UserIDKey is the key type for storing user ID in context
type UserIDKey string

const userIDKey UserIDKey = "userID"

// userIDFrom returns the authenticated user, set by authenticate.
func userIDFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// authenticate verifies the bearer token and stores the user_id claim in the
// request context. Tokens are issued elsewhere; this service only checks them.
func authenticate(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := userIDFromRequest(r, secret)
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, userID)))
		})
	}
}

// userIDFromRequest tries the Authorization header first, then the token
// query param for websockets (browsers can't set headers).
func userIDFromRequest(r *http.Request, secret []byte) (string, bool) {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return parseUserIDFromJWT(strings.TrimPrefix(auth, "Bearer "), secret)
	}
	if q := r.URL.Query().Get("token"); q != "" {
		return parseUserIDFromJWT(q, secret)
	}
	return "", false
}

func parseUserIDFromJWT(tokenStr string, secret []byte) (string, bool) {
	claims := jwt.MapClaims{}

	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return "", false
	}

	// Numeric IDs from older tokens arrive as float64.
	switch v := claims["user_id"].(type) {
	case string:
		v = strings.TrimSpace(v)
		return v, v != ""
	case float64:
		return strconv.FormatInt(int64(v), 10), true
	default:
		return "", false
	}
}
