// Package apikey guards the operator surfaces with a shared secret.
//
// The food court operator's back office is the only caller of /admin
// and /metrics; a single static key checked in constant time is the
// right amount of machinery for that.
package apikey

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

// HeaderAPIKey carries the admin key on operator requests.
const HeaderAPIKey = "X-API-Key"

// errorResponse is the JSON body sent with a 401.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Middleware rejects requests that do not present the configured admin
// key. An empty key disables the guard; the server logs a warning at
// startup in that case.
func Middleware(key string) func(http.Handler) http.Handler {
	if key == "" {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	want := []byte(key)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := []byte(extractKey(r))
			if subtle.ConstantTimeCompare(got, want) != 1 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(errorResponse{
					Error:   "unauthorized",
					Message: "valid API key required",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// extractKey reads the admin key from the X-API-Key header or a Bearer
// token. Prometheus scrapers typically only speak Authorization.
func extractKey(r *http.Request) string {
	if k := strings.TrimSpace(r.Header.Get(HeaderAPIKey)); k != "" {
		return k
	}
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}
