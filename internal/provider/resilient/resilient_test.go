package resilient

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/provider"
)

type fakeInvoice struct {
	calls int
	fn    func(ctx context.Context) (*provider.Invoice, error)
}

func (f *fakeInvoice) Create(ctx context.Context, _ provider.InvoiceRequest) (*provider.Invoice, error) {
	f.calls++
	return f.fn(ctx)
}

type fakePayment struct {
	provider.Unconfigured
	refunds []decimal.Decimal
}

func (f *fakePayment) Refund(_ context.Context, _ string, amount decimal.Decimal) (*provider.RefundResult, error) {
	f.refunds = append(f.refunds, amount)
	return &provider.RefundResult{RefundID: "ref-1"}, nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Timeout = 20 * time.Millisecond
	cfg.MinRequests = 2
	cfg.FailureRatio = 1
	return cfg
}

func TestCall_Success(t *testing.T) {
	inner := &fakeInvoice{fn: func(context.Context) (*provider.Invoice, error) {
		return &provider.Invoice{InvoiceNo: "INV-2026-000001"}, nil
	}}
	inv := NewInvoice(inner, testConfig(), discard())

	before := testutil.ToFloat64(adapterCalls.WithLabelValues("invoice", "create", "success"))
	got, err := inv.Create(context.Background(), provider.InvoiceRequest{})
	require.NoError(t, err)
	assert.Equal(t, "INV-2026-000001", got.InvoiceNo)
	assert.Equal(t, before+1, testutil.ToFloat64(adapterCalls.WithLabelValues("invoice", "create", "success")))
}

func TestCall_TimeoutBecomesErrTimeout(t *testing.T) {
	inner := &fakeInvoice{fn: func(ctx context.Context) (*provider.Invoice, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	inv := NewInvoice(inner, testConfig(), discard())

	_, err := inv.Create(context.Background(), provider.InvoiceRequest{})
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestCall_RejectionPassesThroughWithoutTripping(t *testing.T) {
	inner := &fakeInvoice{fn: func(context.Context) (*provider.Invoice, error) {
		return nil, provider.Reject("invoice", "Vergi numarası 10 haneli olmalıdır")
	}}
	inv := NewInvoice(inner, testConfig(), discard())

	for i := 0; i < 5; i++ {
		_, err := inv.Create(context.Background(), provider.InvoiceRequest{})
		var f *provider.Failure
		require.ErrorAs(t, err, &f)
		assert.Equal(t, "Vergi numarası 10 haneli olmalıdır", f.Message)
	}
	assert.Equal(t, 5, inner.calls)
}

func TestCall_BreakerOpensAfterFailures(t *testing.T) {
	inner := &fakeInvoice{fn: func(context.Context) (*provider.Invoice, error) {
		return nil, errors.New("connection refused")
	}}
	inv := NewInvoice(inner, testConfig(), discard())

	for i := 0; i < 2; i++ {
		_, err := inv.Create(context.Background(), provider.InvoiceRequest{})
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrUnavailable)
	}

	_, err := inv.Create(context.Background(), provider.InvoiceRequest{})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 2, inner.calls)
}

func TestPayment_RefundForwardsAmount(t *testing.T) {
	inner := &fakePayment{}
	p := NewPayment(inner, testConfig(), discard())

	res, err := p.Refund(context.Background(), "mock_pay_1", decimal.RequireFromString("360.00"))
	require.NoError(t, err)
	assert.Equal(t, "ref-1", res.RefundID)
	require.Len(t, inner.refunds, 1)
	assert.True(t, inner.refunds[0].Equal(decimal.RequireFromString("360")))
}

func TestPayment_UnconfiguredPropagates(t *testing.T) {
	p := NewPayment(provider.Unconfigured{}, testConfig(), discard())

	_, err := p.Initialize(context.Background(), provider.PaymentRequest{})
	assert.ErrorIs(t, err, provider.ErrNotConfigured)
}
