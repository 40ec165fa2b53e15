package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ============================================================================
// AUTHENTICATION TEST SUITE
// ============================================================================

func TestAuthenticationSuite(t *testing.T) {
	t.Run("ParseToken", func(t *testing.T) {
		testParseUserIDFromJWT(t)
	})

	t.Run("RequestSources", func(t *testing.T) {
		testUserIDFromRequest(t)
	})

	t.Run("Middleware", func(t *testing.T) {
		testAuthenticateMiddleware(t)
	})
}

func testParseUserIDFromJWT(t *testing.T) {
	sign := func(claims jwt.MapClaims, method jwt.SigningMethod, key any) string {
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return s
	}
	future := time.Now().Add(time.Hour).Unix()

	tests := []struct {
		name   string
		token  string
		wantID string
		wantOK bool
	}{
		{
			name:   "String user_id",
			token:  sign(jwt.MapClaims{"user_id": "u-42", "exp": future}, jwt.SigningMethodHS256, testSecret),
			wantID: "u-42",
			wantOK: true,
		},
		{
			name:   "Numeric user_id",
			token:  sign(jwt.MapClaims{"user_id": 7, "exp": future}, jwt.SigningMethodHS256, testSecret),
			wantID: "7",
			wantOK: true,
		},
		{
			name:  "Blank user_id",
			token: sign(jwt.MapClaims{"user_id": "  ", "exp": future}, jwt.SigningMethodHS256, testSecret),
		},
		{
			name:  "Missing user_id",
			token: sign(jwt.MapClaims{"sub": "u-42", "exp": future}, jwt.SigningMethodHS256, testSecret),
		},
		{
			name:  "Expired token",
			token: sign(jwt.MapClaims{"user_id": "u-42", "exp": time.Now().Add(-time.Minute).Unix()}, jwt.SigningMethodHS256, testSecret),
		},
		{
			name:  "Wrong secret",
			token: sign(jwt.MapClaims{"user_id": "u-42", "exp": future}, jwt.SigningMethodHS256, []byte("other-secret")),
		},
		{
			name:  "Unsigned token",
			token: sign(jwt.MapClaims{"user_id": "u-42", "exp": future}, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType),
		},
		{
			name:  "Garbage",
			token: "not-a-jwt",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := parseUserIDFromJWT(tt.token, testSecret)
			if ok != tt.wantOK {
				t.Fatalf("expected ok=%v, got %v", tt.wantOK, ok)
			}
			if id != tt.wantID {
				t.Errorf("expected user id %q, got %q", tt.wantID, id)
			}
		})
	}
}

func testUserIDFromRequest(t *testing.T) {
	token := signToken(t, "u-1")

	t.Run("Valid Authorization header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Authorization", "Bearer "+token)

		id, ok := userIDFromRequest(req, testSecret)
		if !ok || id != "u-1" {
			t.Errorf("expected u-1, got %q (ok=%v)", id, ok)
		}
	})

	t.Run("Valid token query parameter", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/test?token="+token, nil)

		id, ok := userIDFromRequest(req, testSecret)
		if !ok || id != "u-1" {
			t.Errorf("expected u-1, got %q (ok=%v)", id, ok)
		}
	})

	t.Run("Header wins over query", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/test?token="+signToken(t, "u-2"), nil)
		req.Header.Set("Authorization", "Bearer "+token)

		id, _ := userIDFromRequest(req, testSecret)
		if id != "u-1" {
			t.Errorf("expected header identity u-1, got %q", id)
		}
	})

	t.Run("No authentication", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)

		if id, ok := userIDFromRequest(req, testSecret); ok {
			t.Errorf("expected failure, got %q", id)
		}
	})

	t.Run("Malformed Authorization header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Authorization", "NotBearer "+token)

		if id, ok := userIDFromRequest(req, testSecret); ok {
			t.Errorf("expected failure, got %q", id)
		}
	})
}

func testAuthenticateMiddleware(t *testing.T) {
	var seen string
	handler := authenticate(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = userIDFrom(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	t.Run("Rejects anonymous requests", func(t *testing.T) {
		seen = ""
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/matches", nil))

		assertStatus(t, w, http.StatusUnauthorized)
		if seen != "" {
			t.Error("handler should not run without a token")
		}
	})

	t.Run("Stores the user in the context", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/matches", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, "u-9"))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assertStatus(t, w, http.StatusTeapot)
		if seen != "u-9" {
			t.Errorf("expected u-9 in context, got %q", seen)
		}
	})
}
