package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/auth"
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/domain"
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/provider/mock"
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/provider/resilient"
	pkgconfig "github.com/FirudinMustafa/OkulTedarik-sub000/pkg/config"
	"github.com/FirudinMustafa/OkulTedarik-sub000/pkg/database"
	"github.com/FirudinMustafa/OkulTedarik-sub000/pkg/tracing"
)

const minJWTSecretLength = 32

// Config holds all configuration for the ordering service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort           int      `env:"HTTP_PORT" envDefault:"8080"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:3000" envSeparator:","`
	SecureCookie       bool     `env:"SECURE_COOKIE" envDefault:"false"`
	PprofAllowedCIDRs  []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"127.0.0.1/32" envSeparator:","`
	PublicRateLimitRPS float64  `env:"PUBLIC_RATE_LIMIT_RPS" envDefault:"5"`
	PublicRateBurst    int      `env:"PUBLIC_RATE_LIMIT_BURST" envDefault:"20"`
	// BatchTimeout applies to /api/admin/batch, RequestTimeout to every other route.
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	BatchTimeout   time.Duration `env:"BATCH_TIMEOUT" envDefault:"10m"`

	// Storage. MemoryStore keeps everything in process and skips Postgres.
	MemoryStore  bool          `env:"MEMORY_STORE" envDefault:"false"`
	PostgresHost string        `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int           `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string        `env:"POSTGRES_USER" envDefault:"okul"`
	PostgresPass string        `env:"POSTGRES_PASSWORD" envDefault:"okul_secret"`
	PostgresDB   string        `env:"POSTGRES_DB" envDefault:"okul_tedarik"`
	PostgresSSL  string        `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	SlowQuery    time.Duration `env:"SLOW_QUERY_THRESHOLD" envDefault:"200ms"`

	// Redis backs the parent login limiter. An empty host disables it.
	RedisHost     string `env:"REDIS_HOST" envDefault:""`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Kafka. No brokers means events are dropped.
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`

	// Sessions
	JWTSecret string        `env:"JWT_SECRET"`
	JWTTTL    time.Duration `env:"JWT_TTL" envDefault:"12h"`

	// Administrator login. The hash takes precedence over the plain password.
	AdminEmail        string `env:"ADMIN_EMAIL"`
	AdminPassword     string `env:"ADMIN_PASSWORD"`
	AdminPasswordHash string `env:"ADMIN_PASSWORD_HASH"`

	// Parent login limiter
	LoginMaxFailures int           `env:"LOGIN_MAX_FAILURES" envDefault:"5"`
	LoginWindow      time.Duration `env:"LOGIN_WINDOW" envDefault:"15m"`
	LoginBlock       time.Duration `env:"LOGIN_BLOCK" envDefault:"15m"`

	// External adapters. A disabled mock leaves the adapter unconfigured.
	MockPayment     bool          `env:"MOCK_PAYMENT" envDefault:"true"`
	MockInvoice     bool          `env:"MOCK_INVOICE" envDefault:"true"`
	MockShipping    bool          `env:"MOCK_SHIPPING" envDefault:"true"`
	MockDelay       time.Duration `env:"MOCK_DELAY" envDefault:"300ms"`
	MockPaymentURL  string        `env:"MOCK_PAYMENT_URL" envDefault:"http://localhost:8080/odeme/mock"`
	MockTrackingURL string        `env:"MOCK_TRACKING_URL" envDefault:"https://kargo.example.com/takip"`

	AdapterTimeout      time.Duration `env:"ADAPTER_TIMEOUT" envDefault:"10s"`
	BreakerOpenTimeout  time.Duration `env:"BREAKER_OPEN_TIMEOUT" envDefault:"30s"`
	BreakerFailureRatio float64       `env:"BREAKER_FAILURE_RATIO" envDefault:"0.5"`
	BreakerMinRequests  uint32        `env:"BREAKER_MIN_REQUESTS" envDefault:"5"`

	// Order lifecycle
	CancellableStatuses []string `env:"CANCELLABLE_STATUSES" envDefault:"NEW,PAYMENT_PENDING,PAID,CONFIRMED,INVOICED" envSeparator:","`
	SequenceFallback    bool     `env:"SEQUENCE_FALLBACK" envDefault:"true"`

	Tracing tracing.Config `envPrefix:"OTEL_"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("invalid request timeout: %s", c.RequestTimeout)
	}
	if c.BatchTimeout < c.RequestTimeout {
		return fmt.Errorf("batch timeout %s is shorter than request timeout %s", c.BatchTimeout, c.RequestTimeout)
	}
	if len(c.JWTSecret) < minJWTSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters", minJWTSecretLength)
	}
	if c.JWTTTL <= 0 {
		return fmt.Errorf("invalid JWT TTL: %s", c.JWTTTL)
	}
	if c.AdminEmail != "" && c.AdminPassword == "" && c.AdminPasswordHash == "" {
		return fmt.Errorf("ADMIN_EMAIL is set without ADMIN_PASSWORD or ADMIN_PASSWORD_HASH")
	}
	if c.LoginMaxFailures < 1 {
		return fmt.Errorf("invalid login max failures: %d", c.LoginMaxFailures)
	}
	if c.BreakerFailureRatio <= 0 || c.BreakerFailureRatio > 1 {
		return fmt.Errorf("invalid breaker failure ratio: %v", c.BreakerFailureRatio)
	}
	if _, err := c.Cancellable(); err != nil {
		return err
	}
	return nil
}

// Cancellable returns the statuses a parent may request cancellation from.
func (c *Config) Cancellable() ([]domain.OrderStatus, error) {
	out := make([]domain.OrderStatus, 0, len(c.CancellableStatuses))
	for _, raw := range c.CancellableStatuses {
		s := domain.OrderStatus(strings.ToUpper(strings.TrimSpace(raw)))
		if s == "" {
			continue
		}
		if !s.IsValid() {
			return nil, fmt.Errorf("invalid cancellable status %q", raw)
		}
		if s.IsTerminal() {
			return nil, fmt.Errorf("terminal status %q cannot be cancellable", raw)
		}
		out = append(out, s)
	}
	return out, nil
}

// Postgres returns the connection pool settings.
func (c *Config) Postgres() database.PostgresConfig {
	pg := database.DefaultPostgresConfig()
	pg.Host = c.PostgresHost
	pg.Port = c.PostgresPort
	pg.User = c.PostgresUser
	pg.Password = c.PostgresPass
	pg.DBName = c.PostgresDB
	pg.SSLMode = c.PostgresSSL
	return pg
}

// RedisEnabled reports whether the login limiter is backed by Redis.
func (c *Config) RedisEnabled() bool {
	return c.RedisHost != ""
}

// Redis returns the Redis client settings.
func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{
		Host:        c.RedisHost,
		Port:        c.RedisPort,
		Password:    c.RedisPassword,
		DB:          c.RedisDB,
		DialTimeout: 5 * time.Second,
	}
}

// Limiter returns the parent login limiter settings.
func (c *Config) Limiter() auth.LimiterConfig {
	return auth.LimiterConfig{MaxFailures: c.LoginMaxFailures, Window: c.LoginWindow, Block: c.LoginBlock}
}

// Mock returns the settings of the simulated providers.
func (c *Config) Mock() mock.Config {
	m := mock.DefaultConfig()
	m.Delay = c.MockDelay
	m.PaymentBaseURL = c.MockPaymentURL
	m.TrackingBaseURL = c.MockTrackingURL
	return m
}

// Breaker returns the timeout and circuit breaker settings of every adapter.
func (c *Config) Breaker() resilient.Config {
	r := resilient.DefaultConfig()
	r.Timeout = c.AdapterTimeout
	r.OpenTimeout = c.BreakerOpenTimeout
	r.FailureRatio = c.BreakerFailureRatio
	r.MinRequests = c.BreakerMinRequests
	return r
}
