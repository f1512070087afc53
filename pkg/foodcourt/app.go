// Package foodcourt assembles the payment hub for standalone serving or
// embedding: storage, the escrow engine, rail gateways, webhook ingestion,
// settlements, signage, and the background workers that keep custody
// obligations moving.
package foodcourt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/FoodCourtHub/server/internal/auth"
	"github.com/FoodCourtHub/server/internal/circuitbreaker"
	"github.com/FoodCourtHub/server/internal/config"
	"github.com/FoodCourtHub/server/internal/cryptowatch"
	"github.com/FoodCourtHub/server/internal/dbpool"
	"github.com/FoodCourtHub/server/internal/escrow"
	"github.com/FoodCourtHub/server/internal/gateway"
	"github.com/FoodCourtHub/server/internal/httpserver"
	"github.com/FoodCourtHub/server/internal/idempotency"
	"github.com/FoodCourtHub/server/internal/lifecycle"
	"github.com/FoodCourtHub/server/internal/logger"
	"github.com/FoodCourtHub/server/internal/metrics"
	"github.com/FoodCourtHub/server/internal/monitoring"
	"github.com/FoodCourtHub/server/internal/notify"
	"github.com/FoodCourtHub/server/internal/profile"
	"github.com/FoodCourtHub/server/internal/scheduler"
	"github.com/FoodCourtHub/server/internal/settlement"
	"github.com/FoodCourtHub/server/internal/signage"
	"github.com/FoodCourtHub/server/internal/storage"
	"github.com/FoodCourtHub/server/internal/webhook"
)

// profileCacheTTL is how long a resolved banking profile may be served
// before the resolver re-reads it. Profile edits are rare and tolerate
// a minute of staleness; charge creation cannot tolerate a read per call.
const profileCacheTTL = 60 * time.Second

// App wires the hub's components for reuse or standalone serving.
type App struct {
	Config      *config.Config
	Store       storage.Store
	Escrow      *escrow.Engine
	Settlements *settlement.Service
	Signage     *signage.Coordinator
	Gateway     *gateway.Router
	Profiles    *profile.Resolver
	Webhooks    *webhook.Processor
	Scheduler   *scheduler.Scheduler
	Notify      *notify.Worker
	Watchdog    *monitoring.CustodyWatchdog
	Idempotency *idempotency.MemoryStore

	log              zerolog.Logger
	router           chi.Router
	resourceManager  *lifecycle.Manager
	metricsCollector *metrics.Metrics
	started          bool
}

// Option configures App construction.
type Option func(*options)

type options struct {
	store      storage.Store
	router     chi.Router
	registry   prometheus.Registerer
	railDialer gateway.Client
}

// WithStore sets a custom storage backend. The app does not close stores
// it did not open.
func WithStore(store storage.Store) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithRouter registers routes onto an existing chi.Router instead of a
// fresh one.
func WithRouter(router chi.Router) Option {
	return func(o *options) {
		o.router = router
	}
}

// WithMetricsRegistry overrides the Prometheus registerer, mainly so
// tests can avoid the process-global default registry.
func WithMetricsRegistry(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registry = reg
	}
}

// WithRailClient replaces one rail client on the gateway router, keyed by
// the client's Provider(). Used by tests to stub bank round-trips.
func WithRailClient(c gateway.Client) Option {
	return func(o *options) {
		o.railDialer = c
	}
}

// NewApp assembles the hub's services.
func NewApp(cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("foodcourt: config required")
	}

	optState := options{}
	for _, opt := range opts {
		opt(&optState)
	}

	log := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Service:     "foodcourt-hub",
		Environment: cfg.Logging.Environment,
	})

	app := &App{
		Config:          cfg,
		log:             log,
		resourceManager: lifecycle.NewManager(),
	}

	registry := optState.registry
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	app.metricsCollector = metrics.New(registry)

	if optState.store != nil {
		app.Store = optState.store
	} else {
		store, err := openStore(cfg, app.resourceManager, log)
		if err != nil {
			return nil, err
		}
		app.Store = store
	}

	// Raw callback archive is optional; skip construction entirely when
	// no Mongo URI is configured.
	var archive webhook.Archiver
	if cfg.Audit.MongoURI != "" {
		mongoArchive, err := storage.NewWebhookArchive(cfg.Audit.MongoURI, cfg.Audit.MongoDatabase)
		if err != nil {
			return nil, fmt.Errorf("init webhook archive: %w", err)
		}
		app.resourceManager.RegisterFunc("webhook-archive", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return mongoArchive.Close(ctx)
		})
		archive = mongoArchive
	}

	breakers := circuitbreaker.NewManager(breakerConfig(cfg.CircuitBreaker), log)

	app.Signage = signage.NewCoordinator()
	app.Profiles = profile.NewResolver(app.Store, profileCacheTTL)
	app.Escrow = escrow.NewEngine(app.Store, log)
	app.Settlements = settlement.NewService(app.Store, log)
	app.Webhooks = webhook.NewProcessor(app.Store, signagePaidNotifier{app.Signage}, archive, log)

	app.Gateway = gateway.NewRouter(breakers, log)
	if optState.railDialer != nil {
		app.Gateway.Register(optState.railDialer)
	}

	app.Idempotency = idempotency.NewMemoryStore()
	app.resourceManager.RegisterFunc("idempotency-store", func() error {
		app.Idempotency.Stop()
		return nil
	})

	app.Notify = notify.NewWorker(notify.Options{
		Store:    app.Store,
		Signer:   auth.NewSigner(cfg.Notify.SigningSecret),
		Breakers: breakers,
		RetryConfig: notify.RetryConfig{
			InitialInterval: cfg.Notify.InitialInterval.Duration,
			MaxInterval:     cfg.Notify.MaxInterval.Duration,
			Multiplier:      cfg.Notify.Multiplier,
			Timeout:         cfg.Notify.Timeout.Duration,
		},
		Logger:       log,
		Metrics:      app.metricsCollector,
		PollInterval: cfg.Notify.PollInterval.Duration,
	})

	app.Watchdog = monitoring.NewCustodyWatchdog(app.Store, monitoring.Options{
		AlertURL:      cfg.Monitoring.AlertURL,
		Headers:       cfg.Monitoring.Headers,
		BodyTemplate:  cfg.Monitoring.BodyTemplate,
		CheckInterval: cfg.Monitoring.CheckInterval.Duration,
		OverdueAfter:  cfg.Monitoring.OverdueAfter.Duration,
		Timeout:       cfg.Monitoring.Timeout.Duration,
	}, app.metricsCollector, log)

	app.Scheduler = buildScheduler(cfg, app, breakers, log)

	if optState.router != nil {
		app.router = optState.router
	} else {
		app.router = chi.NewRouter()
	}
	httpserver.ConfigureRouter(app.router, app.Dependencies())

	return app, nil
}

// openStore builds the configured backend. Stores the app opens itself
// are registered for shutdown.
func openStore(cfg *config.Config, rm *lifecycle.Manager, log zerolog.Logger) (storage.Store, error) {
	switch cfg.Database.Backend {
	case "postgres":
		pool, err := dbpool.NewSharedPool(cfg.Database.DSN(), cfg.Database.Pool)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		store, err := storage.NewPostgresStoreWithDB(pool.DB())
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
		rm.Register("db-pool", pool)
		return store, nil
	case "memory", "":
		log.Warn().Msg("foodcourt: using the in-memory store; balances do not survive a restart")
		store := storage.NewMemoryStore()
		rm.Register("storage", store)
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Database.Backend)
	}
}

// buildScheduler binds the recurring jobs from config. Bindings happen at
// startup so tests can drive an app's scheduler with RunDue directly.
func buildScheduler(cfg *config.Config, app *App, breakers *circuitbreaker.Manager, log zerolog.Logger) *scheduler.Scheduler {
	loc := cfg.Location()
	sched := scheduler.New(loc, app.metricsCollector, log)

	sched.AddDaily("settlement-sweep", cfg.Scheduler.SettlementHour, cfg.Scheduler.SettlementMinute,
		scheduler.SettlementSweep(app.Settlements, loc))

	if cfg.Scheduler.BalanceResetEnabled {
		sched.AddDaily("balance-reset", cfg.Scheduler.ResetHour, cfg.Scheduler.ResetMinute,
			scheduler.BalanceReset(app.Escrow, app.Store, loc, cfg.Notify.OpsURL, log))
	}

	if cfg.Crypto.Enabled {
		watcher := cryptowatch.NewRPCWatcher(app.Store, cfg.Crypto.RPCURL, breakers, log)
		interval := cfg.Scheduler.CryptoPollInterval.Duration
		if interval <= 0 {
			interval = 5 * time.Minute
		}
		sched.AddInterval("crypto-poll", interval, scheduler.CryptoPoll(watcher))
	}

	return sched
}

// breakerConfig maps config values onto the breaker manager's shape,
// keeping defaults where the file leaves a service unconfigured.
func breakerConfig(cfg config.CircuitBreakerConfig) circuitbreaker.Config {
	out := circuitbreaker.DefaultConfig()
	out.Enabled = cfg.Enabled
	applyBreaker(&out.Rails, cfg.Rails)
	applyBreaker(&out.Solana, cfg.Solana)
	applyBreaker(&out.Notify, cfg.Notify)
	return out
}

func applyBreaker(dst *circuitbreaker.BreakerConfig, src config.BreakerServiceConfig) {
	if src.MaxRequests > 0 {
		dst.MaxRequests = src.MaxRequests
	}
	if src.Interval.Duration > 0 {
		dst.Interval = src.Interval.Duration
	}
	if src.Timeout.Duration > 0 {
		dst.Timeout = src.Timeout.Duration
	}
	if src.ConsecutiveFailures > 0 {
		dst.ConsecutiveFailures = src.ConsecutiveFailures
	}
	if src.FailureRatio > 0 {
		dst.FailureRatio = src.FailureRatio
	}
	if src.MinRequests > 0 {
		dst.MinRequests = src.MinRequests
	}
}

// signagePaidNotifier flips the merchant's display when a matched webhook
// lands. MarkPaid never blocks; a merchant with no armed slot is a no-op.
type signagePaidNotifier struct {
	coordinator *signage.Coordinator
}

func (n signagePaidNotifier) PaymentReceived(merchantID int64, _ webhook.Event) {
	n.coordinator.MarkPaid(merchantID)
}

// Dependencies exposes the wired components in the shape the HTTP layer
// consumes.
func (a *App) Dependencies() httpserver.Dependencies {
	return httpserver.Dependencies{
		Config:      a.Config,
		Store:       a.Store,
		Escrow:      a.Escrow,
		Settlements: a.Settlements,
		Signage:     a.Signage,
		Gateway:     a.Gateway,
		Profiles:    a.Profiles,
		Webhooks:    a.Webhooks,
		Idempotency: a.Idempotency,
		Metrics:     a.metricsCollector,
		Logger:      a.log,
	}
}

// Router returns the chi router with hub routes registered.
func (a *App) Router() chi.Router {
	return a.router
}

// Handler exposes the router as an http.Handler.
func (a *App) Handler() http.Handler {
	return a.router
}

// Logger returns the app's root logger.
func (a *App) Logger() zerolog.Logger {
	return a.log
}

// StartBackground launches the scheduler, the notification worker, and
// the custody watchdog. Call once; Close stops them.
func (a *App) StartBackground(ctx context.Context) {
	if a.started {
		return
	}
	a.started = true
	a.Scheduler.Start(ctx)
	a.Notify.Start(ctx)
	a.Watchdog.Start(ctx)
}

// Close stops the background workers and releases resources owned by the
// app. Workers stop before the store closes so in-flight jobs finish
// against a live pool.
func (a *App) Close() error {
	if a.started {
		a.started = false
		a.Scheduler.Stop()
		a.Notify.Stop()
		a.Watchdog.Stop()
	}
	return a.resourceManager.Close()
}

// Config is an exported alias of the internal configuration struct for
// embedding use.
type Config = config.Config

// LoadConfig wraps the internal loader for consumers embedding the hub.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}
