// Package resilient decorates provider adapters with a per-call timeout, a
// circuit breaker and Prometheus metrics.
package resilient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"

	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/provider"
)

// Errors returned instead of the raw timeout and breaker errors.
var (
	ErrTimeout     = errors.New("provider did not respond in time")
	ErrUnavailable = errors.New("provider temporarily unavailable")
)

// Config holds the timeout and circuit breaker settings shared by all
// decorated adapters.
type Config struct {
	// Timeout bounds every adapter call.
	Timeout time.Duration
	// MaxRequests is the number of trial calls allowed while half-open.
	MaxRequests uint32
	// Interval clears the failure counts while closed. 0 never clears.
	Interval time.Duration
	// OpenTimeout is how long the breaker stays open.
	OpenTimeout time.Duration
	// FailureRatio trips the breaker once MinRequests calls were seen.
	FailureRatio float64
	MinRequests  uint32
}

// DefaultConfig returns the settings used when none are configured.
func DefaultConfig() Config {
	return Config{
		Timeout:      10 * time.Second,
		MaxRequests:  1,
		Interval:     60 * time.Second,
		OpenTimeout:  30 * time.Second,
		FailureRatio: 0.5,
		MinRequests:  5,
	}
}

var (
	adapterCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adapter_calls_total",
			Help: "Total number of provider adapter calls by outcome",
		},
		[]string{"adapter", "operation", "outcome"},
	)

	adapterCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "adapter_call_duration_seconds",
			Help:    "Duration of provider adapter calls in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"adapter", "operation"},
	)

	circuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current state of the circuit breaker (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)
)

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// isRejection reports whether err is a business answer from a healthy
// provider rather than a fault.
func isRejection(err error) bool {
	var f *provider.Failure
	return errors.As(err, &f)
}

type guard struct {
	name    string
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker[any]
	logger  *slog.Logger
}

func newGuard(name string, cfg Config, logger *slog.Logger) *guard {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || isRejection(err) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			circuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	}
	circuitBreakerState.WithLabelValues(name).Set(0)

	return &guard{
		name:    name,
		timeout: cfg.Timeout,
		breaker: gobreaker.NewCircuitBreaker[any](settings),
		logger:  logger,
	}
}

// call runs fn through the breaker with the guard's timeout.
func call[T any](ctx context.Context, g *guard, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	start := time.Now()
	var zero T

	res, err := g.breaker.Execute(func() (any, error) {
		callCtx := ctx
		if g.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, g.timeout)
			defer cancel()
		}
		return fn(callCtx)
	})
	adapterCallDuration.WithLabelValues(g.name, op).Observe(time.Since(start).Seconds())

	outcome := "success"
	switch {
	case err == nil:
	case isRejection(err):
		outcome = "rejected"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		outcome = "open"
		err = fmt.Errorf("%s %s: %w", g.name, op, ErrUnavailable)
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		outcome = "timeout"
		err = fmt.Errorf("%s %s after %s: %w", g.name, op, g.timeout, ErrTimeout)
	default:
		outcome = "error"
	}
	adapterCalls.WithLabelValues(g.name, op, outcome).Inc()

	if err != nil {
		if outcome != "rejected" {
			g.logger.WarnContext(ctx, "provider call failed",
				slog.String("adapter", g.name),
				slog.String("operation", op),
				slog.String("outcome", outcome),
				slog.String("error", err.Error()),
			)
		}
		return zero, err
	}
	out, _ := res.(T)
	return out, nil
}

// Payment decorates a PaymentAdapter.
type Payment struct {
	next  provider.PaymentAdapter
	guard *guard
}

// NewPayment wraps next.
func NewPayment(next provider.PaymentAdapter, cfg Config, logger *slog.Logger) *Payment {
	return &Payment{next: next, guard: newGuard("payment", cfg, logger)}
}

func (p *Payment) Initialize(ctx context.Context, req provider.PaymentRequest) (*provider.PaymentSession, error) {
	return call(ctx, p.guard, "initialize", func(ctx context.Context) (*provider.PaymentSession, error) {
		return p.next.Initialize(ctx, req)
	})
}

func (p *Payment) Verify(ctx context.Context, token string) (*provider.PaymentResult, error) {
	return call(ctx, p.guard, "verify", func(ctx context.Context) (*provider.PaymentResult, error) {
		return p.next.Verify(ctx, token)
	})
}

func (p *Payment) ProcessDirect(ctx context.Context, req provider.DirectPaymentRequest) (*provider.PaymentResult, error) {
	return call(ctx, p.guard, "process_direct", func(ctx context.Context) (*provider.PaymentResult, error) {
		return p.next.ProcessDirect(ctx, req)
	})
}

func (p *Payment) Refund(ctx context.Context, paymentID string, amount decimal.Decimal) (*provider.RefundResult, error) {
	return call(ctx, p.guard, "refund", func(ctx context.Context) (*provider.RefundResult, error) {
		return p.next.Refund(ctx, paymentID, amount)
	})
}

// Invoice decorates an InvoiceAdapter.
type Invoice struct {
	next  provider.InvoiceAdapter
	guard *guard
}

// NewInvoice wraps next.
func NewInvoice(next provider.InvoiceAdapter, cfg Config, logger *slog.Logger) *Invoice {
	return &Invoice{next: next, guard: newGuard("invoice", cfg, logger)}
}

func (i *Invoice) Create(ctx context.Context, req provider.InvoiceRequest) (*provider.Invoice, error) {
	return call(ctx, i.guard, "create", func(ctx context.Context) (*provider.Invoice, error) {
		return i.next.Create(ctx, req)
	})
}

// Shipping decorates a ShippingAdapter.
type Shipping struct {
	next  provider.ShippingAdapter
	guard *guard
}

// NewShipping wraps next.
func NewShipping(next provider.ShippingAdapter, cfg Config, logger *slog.Logger) *Shipping {
	return &Shipping{next: next, guard: newGuard("shipping", cfg, logger)}
}

func (s *Shipping) CreateShipment(ctx context.Context, req provider.ShipmentRequest) (*provider.Shipment, error) {
	return call(ctx, s.guard, "create_shipment", func(ctx context.Context) (*provider.Shipment, error) {
		return s.next.CreateShipment(ctx, req)
	})
}

func (s *Shipping) Track(ctx context.Context, trackingNo string) (*provider.TrackingInfo, error) {
	return call(ctx, s.guard, "track", func(ctx context.Context) (*provider.TrackingInfo, error) {
		return s.next.Track(ctx, trackingNo)
	})
}
