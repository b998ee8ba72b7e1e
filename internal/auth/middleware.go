package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"profile-service/internal/model"
)

// contextKey is an unexported type for context keys in this package.
// Using a package-private type means only this package can read or write
// claims in the request context; no string-key collisions possible.
type contextKey string

const claimsKey contextKey = "authClaims"

// RequireProfile enforces that the request carries a valid bearer token
// issued for exactly the given profile kind.
//
// Rejections:
//   - no "Authorization: Bearer <token>" header      → 401
//   - bad signature, expired, malformed, bad profile → 401
//   - valid token but for the other profile kind     → 403
//
// The 401/403 split matters: 403 tells the caller they ARE authenticated,
// just holding a token for the wrong principal category. On success the
// verified claims are stored in the request context for handlers.
func RequireProfile(codec *TokenCodec, kind model.ProfileKind) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr, ok := bearerToken(r)
			if !ok {
				writeAuthError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			claims, err := codec.Verify(tokenStr, kind)
			if err != nil {
				if errors.Is(err, ErrProfileMismatch) {
					writeAuthError(w, http.StatusForbidden, "token profile not permitted for this operation")
					return
				}
				// Never leak codec internals to the client; the taxonomy
				// kind and a safe message is all they get.
				writeAuthError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth enforces a valid bearer token of either profile kind.
// Used on cross-principal reads: a logged-in organiser may fetch a user's
// public profile by ID and vice versa. Handlers still see the caller's
// own kind through the claims in context.
func RequireAuth(codec *TokenCodec) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr, ok := bearerToken(r)
			if !ok {
				writeAuthError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			claims, err := codec.Decode(tokenStr)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext retrieves the verified claims set by RequireProfile or
// RequireAuth. Returns (nil, false) if the request never passed a gate.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*Claims)
	return claims, ok && claims != nil
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
// Absence or a malformed value rejects the request before any protected
// operation runs.
func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", false
	}
	if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return "", false
	}
	token := strings.TrimSpace(header[len("bearer "):])
	return token, token != ""
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	kind := "unauthorized"
	if status == http.StatusForbidden {
		kind = "forbidden"
	}
	_, _ = w.Write([]byte(`{"error":"` + kind + `","message":"` + message + `"}`))
}
