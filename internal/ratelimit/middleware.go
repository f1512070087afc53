// Package ratelimit throttles public endpoints per client IP.
//
// Admin surfaces, signage polling, and the bank callback endpoints are
// exempted via a prefix skip list: throttling a bank retrying a payment
// confirmation loses money, and signage boards poll on a fixed cadence
// that would trip any sane per-IP budget.
package ratelimit

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/httprate"

	"github.com/FoodCourtHub/server/internal/metrics"
)

// Config holds per-IP rate limiting configuration.
type Config struct {
	Enabled bool
	Limit   int           // requests per window
	Window  time.Duration // time window

	// SkipPrefixes bypass the limiter entirely.
	SkipPrefixes []string

	// Metrics collector (optional)
	Metrics *metrics.Metrics
}

// DefaultConfig returns generous limits designed to stop obvious spam
// from a single source while never throttling a busy lunch rush: a food
// court POS fires at most a few requests per order.
func DefaultConfig() Config {
	return Config{
		Enabled: true,
		Limit:   120,
		Window:  1 * time.Minute,
		SkipPrefixes: []string{
			"/admin",
			"/api/signage",
			"/api/payment-callback/stores/",
		},
	}
}

// rateLimitResponse is the JSON body sent with a 429.
type rateLimitResponse struct {
	Error             string `json:"error"`
	Message           string `json:"message"`
	RetryAfterSeconds int    `json:"retry_after_seconds"`
}

// Middleware creates the per-IP rate limiter. When disabled it returns
// a pass-through.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	if !cfg.Enabled {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	limiter := httprate.Limit(
		cfg.Limit,
		cfg.Window,
		httprate.WithKeyByIP(),
		httprate.WithLimitHandler(limitHandler(int(cfg.Window.Seconds()), cfg.Metrics)),
	)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skipPath(r.URL.Path, cfg.SkipPrefixes) {
				next.ServeHTTP(w, r)
				return
			}
			limiter(next).ServeHTTP(w, r)
		})
	}
}

// limitHandler renders the 429 response and records the hit.
func limitHandler(windowSeconds int, collector *metrics.Metrics) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		if collector != nil {
			collector.ObserveRateLimit("per_ip", r.RemoteAddr)
		}

		response := rateLimitResponse{
			Error:             "rate_limit_exceeded",
			Message:           "Too many requests from this address. Please try again later.",
			RetryAfterSeconds: windowSeconds,
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", fmt.Sprintf("%d", windowSeconds))
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(response)
	}
}

// skipPath reports whether the request path is exempt from limiting.
func skipPath(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
