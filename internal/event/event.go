// Package event publishes order domain events to Kafka.
package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/domain"
	pkgkafka "github.com/FirudinMustafa/OkulTedarik-sub000/pkg/kafka"
	"github.com/FirudinMustafa/OkulTedarik-sub000/pkg/logger"
)

// Kafka topics for order events.
const (
	TopicOrderCreated       = "okultedarik.order.created"
	TopicOrderStatusChanged = "okultedarik.order.status_changed"
	TopicCancelProcessed    = "okultedarik.order.cancel_processed"
)

// Topics lists every topic the publisher writes to.
var Topics = []string{TopicOrderCreated, TopicOrderStatusChanged, TopicCancelProcessed}

const (
	aggregateOrder = "order"
	source         = "okultedarik"
)

// OrderCreatedData is the payload of an order.created event.
type OrderCreatedData struct {
	OrderID        string               `json:"order_id"`
	OrderNumber    string               `json:"order_number"`
	SchoolID       string               `json:"school_id"`
	ClassID        string               `json:"class_id"`
	PackageID      string               `json:"package_id"`
	Status         domain.OrderStatus   `json:"status"`
	PaymentMethod  domain.PaymentMethod `json:"payment_method"`
	TotalAmount    decimal.Decimal      `json:"total_amount"`
	DiscountCode   string               `json:"discount_code,omitempty"`
	DiscountAmount decimal.Decimal      `json:"discount_amount"`
}

// StatusChangedData is the payload of an order.status_changed event.
type StatusChangedData struct {
	OrderID     string             `json:"order_id"`
	OrderNumber string             `json:"order_number"`
	OldStatus   domain.OrderStatus `json:"old_status"`
	NewStatus   domain.OrderStatus `json:"new_status"`
	ActorType   domain.ActorType   `json:"actor_type"`
	ActorID     string             `json:"actor_id"`
}

// CancelProcessedData is the payload of an order.cancel_processed event.
type CancelProcessedData struct {
	OrderID      string              `json:"order_id"`
	OrderNumber  string              `json:"order_number"`
	RequestID    string              `json:"request_id"`
	Decision     domain.CancelStatus `json:"decision"`
	RefundID     string              `json:"refund_id,omitempty"`
	RefundAmount decimal.Decimal     `json:"refund_amount"`
}

// Publisher is what services use to announce committed changes. Delivery
// is best effort: implementations log failures instead of returning them.
type Publisher interface {
	OrderCreated(ctx context.Context, o *domain.Order)
	StatusChanged(ctx context.Context, o *domain.Order, from domain.OrderStatus, actor domain.Actor)
	CancelProcessed(ctx context.Context, req *domain.CancelRequest, o *domain.Order, refundID string, refund decimal.Decimal)
}

// Noop discards every event.
type Noop struct{}

func (Noop) OrderCreated(context.Context, *domain.Order) {}

func (Noop) StatusChanged(context.Context, *domain.Order, domain.OrderStatus, domain.Actor) {}

func (Noop) CancelProcessed(context.Context, *domain.CancelRequest, *domain.Order, string, decimal.Decimal) {}

type eventWriter interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes events through a pkg/kafka producer.
type Producer struct {
	kafka  eventWriter
	logger *slog.Logger
}

// NewProducer creates a Producer. kafka is usually a *pkgkafka.Producer.
func NewProducer(kafka eventWriter, logger *slog.Logger) *Producer {
	return &Producer{kafka: kafka, logger: logger}
}

// OrderCreated publishes an order.created event.
func (p *Producer) OrderCreated(ctx context.Context, o *domain.Order) {
	p.publish(ctx, TopicOrderCreated, o.ID, OrderCreatedData{
		OrderID:        o.ID,
		OrderNumber:    o.OrderNumber,
		SchoolID:       o.SchoolID,
		ClassID:        o.ClassID,
		PackageID:      o.PackageID,
		Status:         o.Status,
		PaymentMethod:  o.PaymentMethod,
		TotalAmount:    o.TotalAmount,
		DiscountCode:   o.DiscountCode,
		DiscountAmount: o.DiscountAmount,
	})
}

// StatusChanged publishes an order.status_changed event.
func (p *Producer) StatusChanged(ctx context.Context, o *domain.Order, from domain.OrderStatus, actor domain.Actor) {
	p.publish(ctx, TopicOrderStatusChanged, o.ID, StatusChangedData{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		OldStatus:   from,
		NewStatus:   o.Status,
		ActorType:   actor.Type,
		ActorID:     actor.ID,
	})
}

// CancelProcessed publishes an order.cancel_processed event.
func (p *Producer) CancelProcessed(ctx context.Context, req *domain.CancelRequest, o *domain.Order, refundID string, refund decimal.Decimal) {
	p.publish(ctx, TopicCancelProcessed, o.ID, CancelProcessedData{
		OrderID:      o.ID,
		OrderNumber:  o.OrderNumber,
		RequestID:    req.ID,
		Decision:     req.Status,
		RefundID:     refundID,
		RefundAmount: refund,
	})
}

func (p *Producer) publish(ctx context.Context, topic, orderID string, data any) {
	l := logger.WithContext(ctx, p.logger)

	ev, err := pkgkafka.NewEvent(topic, orderID, aggregateOrder, source, data)
	if err == nil {
		if id := logger.CorrelationIDFromContext(ctx); id != "" {
			ev.WithCorrelationID(id)
		}
		err = p.kafka.Publish(ctx, topic, ev)
	}
	if err != nil {
		l.WarnContext(ctx, "event not published",
			slog.String("topic", topic),
			slog.String("order_id", orderID),
			slog.String("error", fmt.Sprint(err)),
		)
		return
	}

	l.DebugContext(ctx, "event published",
		slog.String("topic", topic),
		slog.String("order_id", orderID),
	)
}
