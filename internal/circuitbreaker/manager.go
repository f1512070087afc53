// Package circuitbreaker gives each payment rail its own breaker so one
// bank's outage cannot queue up requests against the others.
package circuitbreaker

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// ServiceType identifies an external service for breaker isolation.
type ServiceType string

const (
	ServiceSCB    ServiceType = "scb_api"
	ServiceKBank  ServiceType = "kbank_api"
	ServiceOmise  ServiceType = "omise_api"
	ServiceStripe ServiceType = "stripe_api"
	ServiceSolana ServiceType = "solana_rpc"
	ServiceNotify ServiceType = "merchant_notify"
)

// BreakerConfig configures a single circuit breaker.
type BreakerConfig struct {
	// MaxRequests allowed through while half-open.
	MaxRequests uint32
	// Interval clears closed-state counts; 0 never clears.
	Interval time.Duration
	// Timeout is how long the breaker stays open before probing.
	Timeout time.Duration

	ConsecutiveFailures uint32
	FailureRatio        float64
	MinRequests         uint32
}

// Config holds breaker configuration for all services.
type Config struct {
	Enabled bool
	Rails   BreakerConfig
	Solana  BreakerConfig
	Notify  BreakerConfig
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Enabled: true,
		Rails: BreakerConfig{
			MaxRequests:         3,
			Interval:            60 * time.Second,
			Timeout:             30 * time.Second,
			ConsecutiveFailures: 5,
			FailureRatio:        0.5,
			MinRequests:         10,
		},
		Solana: BreakerConfig{
			MaxRequests:         3,
			Interval:            60 * time.Second,
			Timeout:             30 * time.Second,
			ConsecutiveFailures: 5,
			FailureRatio:        0.5,
			MinRequests:         10,
		},
		Notify: BreakerConfig{
			MaxRequests:         5,
			Interval:            60 * time.Second,
			Timeout:             60 * time.Second,
			ConsecutiveFailures: 10,
			FailureRatio:        0.7,
			MinRequests:         20,
		},
	}
}

// Manager manages circuit breakers for the external services the hub
// talks to. Each service has its own breaker, so a failing rail does not
// open the others.
type Manager struct {
	breakers map[ServiceType]*gobreaker.CircuitBreaker
	config   Config
}

// NewManager creates a circuit breaker manager.
func NewManager(cfg Config, log zerolog.Logger) *Manager {
	m := &Manager{
		breakers: make(map[ServiceType]*gobreaker.CircuitBreaker),
		config:   cfg,
	}
	if !cfg.Enabled {
		return m
	}
	for _, svc := range []ServiceType{ServiceSCB, ServiceKBank, ServiceOmise, ServiceStripe} {
		m.breakers[svc] = gobreaker.NewCircuitBreaker(toGobreakerSettings(string(svc), cfg.Rails, log))
	}
	m.breakers[ServiceSolana] = gobreaker.NewCircuitBreaker(toGobreakerSettings(string(ServiceSolana), cfg.Solana, log))
	m.breakers[ServiceNotify] = gobreaker.NewCircuitBreaker(toGobreakerSettings(string(ServiceNotify), cfg.Notify, log))
	return m
}

// Execute wraps fn with the service's breaker; disabled or unconfigured
// services pass through.
func (m *Manager) Execute(service ServiceType, fn func() (interface{}, error)) (interface{}, error) {
	if !m.config.Enabled {
		return fn()
	}
	breaker, ok := m.breakers[service]
	if !ok {
		return fn()
	}
	return breaker.Execute(fn)
}

// IsOpen reports whether err is the breaker rejecting without calling out.
func IsOpen(err error) bool {
	return err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests
}

// State returns the breaker state for a service, or "disabled".
func (m *Manager) State(service ServiceType) string {
	if !m.config.Enabled {
		return "disabled"
	}
	breaker, ok := m.breakers[service]
	if !ok {
		return "not_configured"
	}
	return breaker.State().String()
}

func toGobreakerSettings(name string, cfg BreakerConfig, log zerolog.Logger) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if cfg.ConsecutiveFailures > 0 && counts.ConsecutiveFailures >= cfg.ConsecutiveFailures {
				return true
			}
			if cfg.FailureRatio > 0 && cfg.MinRequests > 0 && counts.Requests >= cfg.MinRequests {
				failureRate := float64(counts.TotalFailures) / float64(counts.Requests)
				if failureRate >= cfg.FailureRatio {
					return true
				}
			}
			return false
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).
				Str("to", to.String()).Msg("circuit breaker state change")
		},
	}
}
