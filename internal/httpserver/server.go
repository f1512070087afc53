// Package httpserver mounts the hub's HTTP surface: the exchange counter,
// the payment hub POS endpoints, store administration, the rail webhook
// receivers, settlements, signage, and the operational endpoints.
package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/FoodCourtHub/server/internal/apikey"
	"github.com/FoodCourtHub/server/internal/config"
	"github.com/FoodCourtHub/server/internal/escrow"
	"github.com/FoodCourtHub/server/internal/gateway"
	"github.com/FoodCourtHub/server/internal/idempotency"
	"github.com/FoodCourtHub/server/internal/logger"
	"github.com/FoodCourtHub/server/internal/metrics"
	"github.com/FoodCourtHub/server/internal/profile"
	"github.com/FoodCourtHub/server/internal/ratelimit"
	"github.com/FoodCourtHub/server/internal/settlement"
	"github.com/FoodCourtHub/server/internal/signage"
	"github.com/FoodCourtHub/server/internal/storage"
	"github.com/FoodCourtHub/server/internal/versioning"
	"github.com/FoodCourtHub/server/internal/webhook"
)

var serverStartTime = time.Now()

// Dependencies carries everything the HTTP surface needs.
type Dependencies struct {
	Config      *config.Config
	Store       storage.Store
	Escrow      *escrow.Engine
	Settlements *settlement.Service
	Signage     *signage.Coordinator
	Gateway     *gateway.Router
	Profiles    *profile.Resolver
	Webhooks    *webhook.Processor
	Idempotency idempotency.Store
	Metrics     *metrics.Metrics
	Logger      zerolog.Logger
}

// Server wires handlers, middleware, and dependencies.
type Server struct {
	handlers
	httpServer *http.Server
}

type handlers struct {
	cfg         *config.Config
	store       storage.Store
	escrow      *escrow.Engine
	settlements *settlement.Service
	signage     *signage.Coordinator
	gateway     *gateway.Router
	profiles    *profile.Resolver
	webhooks    *webhook.Processor
	idempotency idempotency.Store
	metrics     *metrics.Metrics
	log         zerolog.Logger
}

// New builds the HTTP server with the configured router.
func New(deps Dependencies) *Server {
	router := chi.NewRouter()
	s := &Server{
		handlers: newHandlers(deps),
		httpServer: &http.Server{
			Addr:         deps.Config.Server.Address,
			ReadTimeout:  deps.Config.Server.ReadTimeout.Duration,
			WriteTimeout: deps.Config.Server.WriteTimeout.Duration,
			IdleTimeout:  deps.Config.Server.IdleTimeout.Duration,
			Handler:      router,
		},
	}
	ConfigureRouter(router, deps)
	return s
}

func newHandlers(deps Dependencies) handlers {
	return handlers{
		cfg:         deps.Config,
		store:       deps.Store,
		escrow:      deps.Escrow,
		settlements: deps.Settlements,
		signage:     deps.Signage,
		gateway:     deps.Gateway,
		profiles:    deps.Profiles,
		webhooks:    deps.Webhooks,
		idempotency: deps.Idempotency,
		metrics:     deps.Metrics,
		log:         deps.Logger.With().Str("component", "http").Logger(),
	}
}

// ConfigureRouter attaches the hub routes to an existing router.
func ConfigureRouter(router chi.Router, deps Dependencies) {
	if router == nil {
		return
	}
	cfg := deps.Config
	h := newHandlers(deps)

	if len(cfg.Server.CORSAllowedOrigins) > 0 {
		router.Use(cors.New(cors.Options{
			AllowedOrigins:   cfg.Server.CORSAllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"*"},
			AllowCredentials: false,
			MaxAge:           300,
		}).Handler)
	}

	router.Use(securityHeaders)
	router.Use(logger.Middleware(deps.Logger))
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(versioning.Negotiation)
	router.Use(h.metricsMiddleware)
	router.Use(ratelimit.Middleware(ratelimit.Config{
		Enabled:      cfg.RateLimit.Enabled,
		Limit:        cfg.RateLimit.Limit,
		Window:       cfg.RateLimit.Window.Duration,
		SkipPrefixes: cfg.RateLimit.SkipPrefixes,
		Metrics:      deps.Metrics,
	}))

	adminOnly := apikey.Middleware(cfg.Server.AdminAPIKey)
	idempotent := idempotency.Middleware(deps.Idempotency, idempotency.DefaultTTL)

	// Lightweight endpoints: health, version, metrics, signage polling.
	router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(5 * time.Second))
		r.Get("/healthz", h.healthz)
		r.Get("/version", h.version)
		r.With(adminOnly).Handle("/metrics", promhttp.Handler())

		r.Post("/api/signage/set-display", h.signageSetDisplay)
		r.Get("/api/signage/display", h.signageDisplay)
		r.Post("/api/signage/ack-paid", h.signageAckPaid)
		r.Post("/api/signage/clear", h.signageClear)
	})

	// Payment processing endpoints. Gateway calls and webhook fan-out can
	// legitimately take a while.
	router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		// Exchange counter.
		r.With(idempotent).Post("/api/counter/exchange", h.counterExchange)
		r.Get("/api/counter/balance/{code}", h.counterBalance)
		r.With(idempotent).Post("/api/counter/refund", h.counterRefund)
		r.With(idempotent).Post("/api/counter/topup", h.counterTopUp)

		// Payment hub POS.
		r.With(idempotent).Post("/api/payment-hub/use", h.hubUse)
		r.Get("/api/payment-hub/methods", h.hubMethods)

		// Store administration.
		r.With(adminOnly).Post("/api/stores", h.storeCreate)
		r.With(adminOnly).Put("/api/stores/{id}", h.storeUpdate)
		r.Post("/api/stores/{id}/generate-promptpay-qr", h.storePromptPayQR)
		r.Post("/api/stores/{id}/generate-bot-standard-qr", h.storeBOTQR)
		r.With(adminOnly).Post("/api/stores/{id}/menus", h.menuCreate)
		r.Get("/api/stores/{id}/menus", h.menuList)
		r.With(adminOnly).Post("/api/stores/{id}/quick-amounts", h.quickAmountCreate)
		r.Get("/api/stores/{id}/quick-amounts", h.quickAmountList)

		// Rail webhooks. URLs must stay stable; the banks register them once.
		r.Post("/api/payment-callback/webhook", h.webhookGeneric)
		r.Post("/api/payment-callback/webhook/kbank", h.webhookKBank)
		r.Post("/api/payment-callback/webhook/omise", h.webhookOmise)
		r.Post("/api/payment-callback/webhook/stripe", h.webhookStripe)
		r.Get("/api/payment-callback/webhook/links", h.webhookLinks)

		// Gateway charges and POS polling.
		r.With(idempotent).Post("/api/payment-callback/stores/{id}/create-gateway-qr", h.createGatewayQR)
		r.Get("/api/payment-callback/stores/{id}/recent-paid", h.recentPaid)
		r.Get("/api/payment-callback/report", h.backTransactionReport)

		// Settlements.
		r.With(adminOnly).Post("/api/payment-callback/settlements/create-daily", h.settlementCreateDaily)
		r.Get("/api/payment-callback/settlements", h.settlementList)
		r.With(adminOnly).Post("/api/payment-callback/settlements/{id}/mark-transferred", h.settlementMarkTransferred)
		r.With(adminOnly).Post("/api/payment-callback/settlements/{id}/notify", h.settlementNotify)
		r.Get("/api/payment-callback/stores/{id}/settlements-for-receipt", h.settlementsForReceipt)
		r.With(adminOnly).Get("/api/payment-callback/settlements/overdue", h.settlementOverdue)
	})
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
