// Package service implements the business operations of the platform. Every
// operation receives the acting session explicitly as a domain.Actor.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/domain"
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/provider"
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/provider/resilient"
	apperrors "github.com/FirudinMustafa/OkulTedarik-sub000/pkg/errors"
	"github.com/FirudinMustafa/OkulTedarik-sub000/pkg/logger"
)

// Adapters bundles the provider integrations selected at startup.
type Adapters struct {
	Payment  provider.PaymentAdapter
	Invoice  provider.InvoiceAdapter
	Shipping provider.ShippingAdapter
}

// Provider names used in error messages and logs.
const (
	adapterPayment  = "payment"
	adapterInvoice  = "invoice"
	adapterShipping = "shipping"
)

var (
	ordersCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Orders created, by payment method.",
		},
		[]string{"payment_method"},
	)
	orderTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_transitions_total",
			Help: "Committed order status transitions.",
		},
		[]string{"from", "to"},
	)
	batchItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "batch_items_total",
			Help: "Orders processed by batch operations, by outcome.",
		},
		[]string{"operation", "outcome"},
	)
	discountRedemptions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "discount_redemptions_total",
			Help: "Discount codes applied to new orders.",
		},
	)
)

func utcNow() time.Time { return time.Now().UTC() }

// adapterError turns a provider error into a stable AppError. Business
// rejections keep the provider's message.
func adapterError(name string, err error) error {
	var f *provider.Failure
	switch {
	case errors.As(err, &f):
		if name == adapterPayment {
			return apperrors.PaymentFailed(f.Message)
		}
		return apperrors.AdapterFailed(name, f.Message)
	case errors.Is(err, resilient.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return apperrors.AdapterFailed(name, "provider did not respond in time")
	case errors.Is(err, resilient.ErrUnavailable):
		return apperrors.AdapterFailed(name, "provider is temporarily unavailable")
	case errors.Is(err, provider.ErrNotConfigured):
		return apperrors.AdapterFailed(name, "provider is not configured")
	}
	return apperrors.AdapterFailed(name, "provider call failed")
}

// logAdapterFailure records the underlying provider error before it is
// replaced by a stable message.
func logAdapterFailure(ctx context.Context, l *slog.Logger, name, op, orderNumber string, err error) {
	logger.WithContext(ctx, l).WarnContext(ctx, "adapter call failed",
		slog.String("adapter", name),
		slog.String("operation", op),
		slog.String("order_number", orderNumber),
		slog.String("error", err.Error()),
	)
}

func requireAdmin(actor domain.Actor) error {
	if actor.Type != domain.ActorAdmin {
		return apperrors.Forbidden("administrator access required")
	}
	return nil
}

func requireSchoolAccess(actor domain.Actor, schoolID string) error {
	if !actor.CanAccessSchool(schoolID) {
		return apperrors.Forbidden("no access to this school")
	}
	return nil
}

// isNotFound reports whether err means a missing row.
func isNotFound(err error) bool {
	return errors.Is(err, apperrors.ErrNotFound)
}
