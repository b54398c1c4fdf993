// Package sequence issues the human-readable order, invoice and delivery
// document numbers. Numbers are derived from the greatest persisted value of
// the current year; uniqueness is enforced by the database and callers retry
// on collision.
package sequence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/domain"
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/repository"
)

// Scheme describes one numbering series, e.g. ORD-2026-00001.
type Scheme struct {
	Prefix string
	Width  int
	Field  domain.NumberField
}

// Numbering series.
var (
	OrderNumber      = Scheme{Prefix: "ORD", Width: 5, Field: domain.FieldOrderNumber}
	InvoiceNumber    = Scheme{Prefix: "INV", Width: 6, Field: domain.FieldInvoiceNo}
	DeliveryDocument = Scheme{Prefix: "TT", Width: 5, Field: domain.FieldDeliveryDocumentNo}
)

// YearPrefix returns the prefix shared by all numbers of the scheme in year.
func (s Scheme) YearPrefix(year int) string {
	return fmt.Sprintf("%s-%d-", s.Prefix, year)
}

// Format renders the n-th number of the scheme in year.
func (s Scheme) Format(year, n int) string {
	return fmt.Sprintf("%s%0*d", s.YearPrefix(year), s.Width, n)
}

// Source reads the greatest persisted number. repository.OrderRepository
// satisfies it.
type Source interface {
	MaxWithPrefix(ctx context.Context, field domain.NumberField, prefix string) (string, error)
}

var fallbackIssued = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "sequence_fallback_numbers_total",
		Help: "Total number of identifiers issued by the timestamp fallback",
	},
	[]string{"scheme"},
)

// Generator issues numbers. It keeps no counters of its own.
type Generator struct {
	fallback bool
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithFallback enables timestamp+random numbers when the source cannot be
// read. Such numbers are unique with high probability only.
func WithFallback(enabled bool) Option {
	return func(g *Generator) { g.fallback = enabled }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// NewGenerator creates a Generator.
func NewGenerator(logger *slog.Logger, opts ...Option) *Generator {
	g := &Generator{now: time.Now, logger: logger}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Next returns the number following the greatest one src holds for the
// current year, starting at 1.
func (g *Generator) Next(ctx context.Context, src Source, scheme Scheme) (string, error) {
	year := g.now().Year()
	prefix := scheme.YearPrefix(year)

	last, err := src.MaxWithPrefix(ctx, scheme.Field, prefix)
	if err != nil {
		if !g.fallback {
			return "", fmt.Errorf("read last %s number: %w", scheme.Prefix, err)
		}
		number := g.fallbackNumber(prefix)
		fallbackIssued.WithLabelValues(scheme.Prefix).Inc()
		g.logger.WarnContext(ctx, "sequence source unavailable, issued fallback number",
			slog.String("scheme", scheme.Prefix),
			slog.String("number", number),
			slog.String("error", err.Error()),
		)
		return number, nil
	}

	if last == "" {
		return scheme.Format(year, 1), nil
	}

	n, err := strconv.Atoi(strings.TrimPrefix(last, prefix))
	if err != nil {
		return "", fmt.Errorf("parse %s number %q: %w", scheme.Prefix, last, err)
	}
	return scheme.Format(year, n+1), nil
}

// fallbackNumber never consists of digits only after the prefix, so it is
// ignored by MaxWithPrefix and cannot disturb the regular series.
func (g *Generator) fallbackNumber(prefix string) string {
	return fmt.Sprintf("%sT%d-%04d", prefix, g.now().Unix(), rand.IntN(10000))
}

// DefaultAttempts bounds Retry.
const DefaultAttempts = 5

// Retry calls fn until it returns something other than
// repository.ErrDuplicateNumber, at most attempts times. fn must draw a
// fresh number on every call.
func Retry(ctx context.Context, attempts int, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err = fn(); !errors.Is(err, repository.ErrDuplicateNumber) {
			return err
		}
	}
	return fmt.Errorf("gave up after %d attempts: %w", attempts, err)
}
