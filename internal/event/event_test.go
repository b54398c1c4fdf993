package event

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/domain"
	pkgkafka "github.com/FirudinMustafa/OkulTedarik-sub000/pkg/kafka"
	"github.com/FirudinMustafa/OkulTedarik-sub000/pkg/logger"
)

type mockWriter struct {
	mock.Mock
}

func (m *mockWriter) Publish(ctx context.Context, topic string, event *pkgkafka.Event) error {
	args := m.Called(ctx, topic, event)
	return args.Error(0)
}

func sampleOrder() *domain.Order {
	return &domain.Order{
		ID:             "order-1",
		OrderNumber:    "ORD-2026-00001",
		SchoolID:       "school-1",
		Status:         domain.StatusPaid,
		PaymentMethod:  domain.PaymentCreditCard,
		TotalAmount:    decimal.RequireFromString("360.00"),
		DiscountCode:   "YILBASI20",
		DiscountAmount: decimal.RequireFromString("90.00"),
	}
}

func TestProducer_StatusChanged(t *testing.T) {
	w := &mockWriter{}
	w.On("Publish", mock.Anything, TopicOrderStatusChanged, mock.AnythingOfType("*kafka.Event")).Return(nil)

	p := NewProducer(w, logger.NewWithWriter("test", "error", &bytes.Buffer{}))
	ctx := logger.WithCorrelationID(context.Background(), "req-9")
	p.StatusChanged(ctx, sampleOrder(), domain.StatusNew, domain.Actor{ID: "admin", Type: domain.ActorAdmin})

	w.AssertExpectations(t)
	ev := w.Calls[0].Arguments.Get(2).(*pkgkafka.Event)
	assert.Equal(t, "order-1", ev.AggregateID)
	assert.Equal(t, "req-9", ev.CorrelationID)

	var data StatusChangedData
	require.NoError(t, ev.DecodeData(&data))
	assert.Equal(t, domain.StatusNew, data.OldStatus)
	assert.Equal(t, domain.StatusPaid, data.NewStatus)
	assert.Equal(t, domain.ActorAdmin, data.ActorType)
}

func TestProducer_OrderCreatedCarriesAmounts(t *testing.T) {
	w := &mockWriter{}
	w.On("Publish", mock.Anything, TopicOrderCreated, mock.Anything).Return(nil)

	NewProducer(w, logger.NewWithWriter("test", "error", &bytes.Buffer{})).
		OrderCreated(context.Background(), sampleOrder())

	ev := w.Calls[0].Arguments.Get(2).(*pkgkafka.Event)
	var data OrderCreatedData
	require.NoError(t, ev.DecodeData(&data))
	assert.Equal(t, "ORD-2026-00001", data.OrderNumber)
	assert.True(t, data.TotalAmount.Equal(decimal.RequireFromString("360")))
	assert.Equal(t, "YILBASI20", data.DiscountCode)
}

func TestProducer_FailureIsLoggedNotReturned(t *testing.T) {
	w := &mockWriter{}
	w.On("Publish", mock.Anything, TopicCancelProcessed, mock.Anything).Return(errors.New("broker down"))

	var buf bytes.Buffer
	p := NewProducer(w, logger.NewWithWriter("test", "warn", &buf))
	req := &domain.CancelRequest{ID: "cr-1", OrderID: "order-1", Status: domain.CancelApproved}
	p.CancelProcessed(context.Background(), req, sampleOrder(), "mock_ref_1", decimal.RequireFromString("360"))

	assert.Contains(t, buf.String(), "event not published")
	assert.Contains(t, buf.String(), "broker down")
}

func TestNoop_SatisfiesPublisher(t *testing.T) {
	var p Publisher = Noop{}
	p.OrderCreated(context.Background(), sampleOrder())
}
