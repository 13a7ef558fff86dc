// Package middleware holds the HTTP middleware shared by every route.
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ttsudarshan/portfolio/auth"
)

// HeaderAdminKey carries the shared admin key.
const HeaderAdminKey = "X-Admin-Key"

// Authenticator checks admin credentials.
type Authenticator interface {
	CheckKey(client, key string) error
	ValidateToken(token string) (string, error)
}

type adminKey struct{}

// IsAdmin reports whether DetectAdmin or RequireAdmin accepted the request credentials.
func IsAdmin(ctx context.Context) bool {
	ok, _ := ctx.Value(adminKey{}).(bool)
	return ok
}

// DetectAdmin marks requests that carry valid admin credentials without rejecting the others.
// Key attempts are rate limited per client as resolved by proxies.
func DetectAdmin(a Authenticator, proxies Proxies) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := authenticate(a, proxies, r); err == nil {
				r = r.WithContext(context.WithValue(r.Context(), adminKey{}, true))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin rejects requests without valid admin credentials.
func RequireAdmin(a Authenticator, proxies Proxies) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			err := authenticate(a, proxies, r)
			switch {
			case err == nil:
				next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), adminKey{}, true)))
			case errors.Is(err, auth.ErrRateLimitExceeded):
				writeError(w, http.StatusTooManyRequests, "Too many attempts")
			default:
				writeError(w, http.StatusUnauthorized, "Unauthorized")
			}
		})
	}
}

// authenticate tries the bearer token first, then the admin key from the header or query.
func authenticate(a Authenticator, proxies Proxies, r *http.Request) error {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "Bearer") && token != "" {
			_, err := a.ValidateToken(token)
			return err
		}
	}

	key := r.Header.Get(HeaderAdminKey)
	if key == "" {
		key = r.URL.Query().Get("key")
	}
	if key == "" {
		return auth.ErrInvalidKey
	}
	return a.CheckKey(proxies.ClientIP(r), key)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": msg})
}
