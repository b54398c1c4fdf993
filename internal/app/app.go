package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/audit"
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/auth"
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/config"
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/event"
	handler "github.com/FirudinMustafa/OkulTedarik-sub000/internal/handler/http"
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/provider"
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/provider/mock"
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/provider/resilient"
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/repository"
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/repository/memory"
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/repository/postgres"
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/sequence"
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/service"
	"github.com/FirudinMustafa/OkulTedarik-sub000/migrations"
	"github.com/FirudinMustafa/OkulTedarik-sub000/pkg/database"
	"github.com/FirudinMustafa/OkulTedarik-sub000/pkg/health"
	pkgkafka "github.com/FirudinMustafa/OkulTedarik-sub000/pkg/kafka"
	"github.com/FirudinMustafa/OkulTedarik-sub000/pkg/middleware"
	"github.com/FirudinMustafa/OkulTedarik-sub000/pkg/tracing"
)

const metricsName = "okultedarik"

// App wires together all dependencies and runs the ordering service.
type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	pool       *pgxpool.Pool
	redis      *redis.Client
	producer   *pkgkafka.Producer
	tracing    tracing.Shutdown
	stop       context.CancelFunc
	httpServer *http.Server
}

// NewApp creates a new application instance, initializing all dependencies.
// Optional infrastructure (Redis, Kafka, Postgres in memory mode) is skipped
// when it is not configured.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}
	ok := false
	defer func() {
		if !ok {
			a.release()
		}
	}()

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	a.tracing = shutdownTracing

	healthHandler := health.NewHandler(5 * time.Second)

	store, err := a.openStore(ctx, healthHandler)
	if err != nil {
		return nil, err
	}

	limiter, err := a.openLimiter(ctx, healthHandler)
	if err != nil {
		return nil, err
	}

	events := a.openEvents(healthHandler)

	cancellable, err := cfg.Cancellable()
	if err != nil {
		return nil, err
	}

	hasher := auth.NewHasher(bcrypt.DefaultCost)
	admin, err := adminCredentials(cfg, hasher)
	if err != nil {
		return nil, err
	}
	if admin.Email == "" {
		logger.Warn("administrator login is disabled, ADMIN_EMAIL is not set")
	}

	adapters := buildAdapters(cfg, logger)
	tokens := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL)
	auditLog := audit.NewLogger(logger)
	seq := sequence.NewGenerator(logger, sequence.WithFallback(cfg.SequenceFallback))

	// Build the dependency graph.
	orders := service.NewOrderService(store, seq, adapters, events, auditLog, logger)
	commissions := service.NewCommissionService(store, auditLog, logger)
	services := handler.Services{
		Auth:        service.NewAuthService(store, tokens, hasher, limiter, admin, auditLog, logger),
		Orders:      orders,
		Discounts:   service.NewDiscountService(store, auditLog, logger),
		Cancels:     service.NewCancellationService(store, adapters.Payment, events, auditLog, logger, cancellable),
		Batches:     service.NewBatchService(orders, auditLog, logger),
		Commissions: commissions,
		Catalog:     service.NewCatalogService(store, hasher, auditLog, logger),
		Exports:     service.NewExportService(orders, logger),
		Reports:     service.NewReportService(store, orders, commissions, logger),
	}

	// The rate limiter cleanup loop lives as long as the app.
	appCtx, stop := context.WithCancel(context.Background())
	a.stop = stop
	publicLimiter := middleware.NewIPRateLimiter(appCtx, cfg.PublicRateLimitRPS, cfg.PublicRateBurst, 10*time.Minute, logger)

	router := handler.NewRouter(services, handler.RouterConfig{
		Tokens:         tokens,
		CORS:           middleware.CORSConfig{AllowedOrigins: cfg.CORSAllowedOrigins, AllowCredentials: true},
		SecureCookie:   cfg.SecureCookie,
		PprofCIDRs:     cfg.PprofAllowedCIDRs,
		PublicLimiter:  publicLimiter,
		RequestTimeout: cfg.RequestTimeout,
		BatchTimeout:   cfg.BatchTimeout,
	}, healthHandler, logger)

	a.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.BatchTimeout + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ok = true
	return a, nil
}

func (a *App) openStore(ctx context.Context, h *health.Handler) (repository.Store, error) {
	if a.cfg.MemoryStore {
		a.logger.Warn("using the in-memory store, data is lost on restart")
		return memory.NewStore(), nil
	}

	pgCfg := a.cfg.Postgres()
	pool, err := database.NewPostgresPool(ctx, &pgCfg, a.logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	a.pool = pool
	a.logger.Info("connected to PostgreSQL",
		slog.String("host", pgCfg.Host),
		slog.Int("port", pgCfg.Port),
		slog.String("database", pgCfg.DBName),
	)

	if err := database.RunMigrations(ctx, pool, migrations.FS, a.logger); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	database.RegisterPoolMetrics(pool, metricsName)
	database.SetSlowQueryLogging(a.cfg.SlowQuery, a.logger)

	h.Register("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	return postgres.NewStore(pool), nil
}

func (a *App) openLimiter(ctx context.Context, h *health.Handler) (auth.LoginLimiter, error) {
	if !a.cfg.RedisEnabled() {
		a.logger.Warn("parent login limiter is disabled, REDIS_HOST is not set")
		return auth.NoLimit{}, nil
	}

	client, err := database.NewRedisClient(ctx, a.cfg.Redis())
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	a.redis = client
	a.logger.Info("connected to Redis", slog.String("addr", a.cfg.Redis().Addr()))

	h.Register("redis", func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
	return auth.NewRedisLimiter(client, a.cfg.Limiter()), nil
}

func (a *App) openEvents(h *health.Handler) event.Publisher {
	if len(a.cfg.KafkaBrokers) == 0 {
		a.logger.Info("no kafka brokers configured, order events are not published")
		return event.Noop{}
	}

	producer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(a.cfg.KafkaBrokers), a.logger)
	a.producer = producer
	a.logger.Info("kafka producer initialized", slog.Any("brokers", a.cfg.KafkaBrokers))

	h.Register("kafka", producer.Ping)
	return event.NewProducer(producer, a.logger)
}

// buildAdapters picks the simulated or unconfigured provider for each
// integration and wraps it with timeout and circuit breaker.
func buildAdapters(cfg *config.Config, logger *slog.Logger) service.Adapters {
	mockCfg := cfg.Mock()
	breaker := cfg.Breaker()

	var payment provider.PaymentAdapter = provider.Unconfigured{}
	if cfg.MockPayment {
		payment = mock.NewPayment(mockCfg)
	}
	var invoice provider.InvoiceAdapter = provider.Unconfigured{}
	if cfg.MockInvoice {
		invoice = mock.NewInvoice(mockCfg)
	}
	var shipping provider.ShippingAdapter = provider.Unconfigured{}
	if cfg.MockShipping {
		shipping = mock.NewShipping(mockCfg)
	}

	logger.Info("external adapters configured",
		slog.Bool("mock_payment", cfg.MockPayment),
		slog.Bool("mock_invoice", cfg.MockInvoice),
		slog.Bool("mock_shipping", cfg.MockShipping),
	)

	return service.Adapters{
		Payment:  resilient.NewPayment(payment, breaker, logger),
		Invoice:  resilient.NewInvoice(invoice, breaker, logger),
		Shipping: resilient.NewShipping(shipping, breaker, logger),
	}
}

func adminCredentials(cfg *config.Config, hasher *auth.Hasher) (service.AdminCredentials, error) {
	creds := service.AdminCredentials{Email: cfg.AdminEmail, PasswordHash: cfg.AdminPasswordHash}
	if creds.Email == "" || creds.PasswordHash != "" {
		return creds, nil
	}
	hash, err := hasher.Hash(cfg.AdminPassword)
	if err != nil {
		return creds, fmt.Errorf("hash admin password: %w", err)
	}
	creds.PasswordHash = hash
	return creds, nil
}

// Handler returns the HTTP handler. It is used by tests.
func (a *App) Handler() http.Handler {
	return a.httpServer.Handler
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		a.release()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	// Graceful HTTP server shutdown with a 10-second deadline.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}

	a.release()
	a.logger.Info("application shutdown complete")
	return nil
}

// release closes every opened dependency. It is safe to call on a partially
// built App.
func (a *App) release() {
	if a.stop != nil {
		a.stop()
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		}
		a.producer = nil
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
		}
		a.redis = nil
	}
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
	if a.tracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.tracing(ctx); err != nil {
			a.logger.Error("tracing shutdown error", slog.String("error", err.Error()))
		}
		a.tracing = nil
	}
}
