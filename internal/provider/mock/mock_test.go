package mock

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/domain"
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/provider"
)

func instant() Config {
	cfg := DefaultConfig()
	cfg.Delay = 0
	return cfg
}

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestPayment_InitializeAndVerify(t *testing.T) {
	ctx := context.Background()
	p := NewPayment(instant())

	sess, err := p.Initialize(ctx, provider.PaymentRequest{OrderNumber: "ORD-2026-00001", Amount: amount("450")})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sess.Token, "mock_"))
	assert.Contains(t, sess.URL, "token="+sess.Token)

	first, err := p.Verify(ctx, sess.Token)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(first.PaymentID, "mock_pay_"))

	again, err := p.Verify(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, first.PaymentID, again.PaymentID)
}

func TestPayment_VerifyUnknownToken(t *testing.T) {
	_, err := NewPayment(instant()).Verify(context.Background(), "nope")

	var f *provider.Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, "payment", f.Provider)
}

func TestPayment_ProcessDirect_DeclinedCard(t *testing.T) {
	p := NewPayment(instant())

	_, err := p.ProcessDirect(context.Background(), provider.DirectPaymentRequest{
		Amount: amount("450"),
		Card:   provider.Card{Number: "4111 1111 1111 1129"},
	})

	var f *provider.Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, "Yetersiz bakiye", f.Message)
}

func TestPayment_RefundUpToCapturedAmount(t *testing.T) {
	ctx := context.Background()
	p := NewPayment(instant())

	res, err := p.ProcessDirect(ctx, provider.DirectPaymentRequest{
		Amount: amount("360.00"),
		Card:   provider.Card{Number: "5528790000000008"},
	})
	require.NoError(t, err)

	refund, err := p.Refund(ctx, res.PaymentID, amount("360.00"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(refund.RefundID, "mock_ref_"))
	assert.True(t, p.Refunded(res.PaymentID).Equal(amount("360")))

	_, err = p.Refund(ctx, res.PaymentID, amount("0.01"))
	var f *provider.Failure
	assert.ErrorAs(t, err, &f)
}

func TestPayment_HonoursContext(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Delay = time.Second
	p := NewPayment(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := p.Initialize(ctx, provider.PaymentRequest{Amount: amount("1")})
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestInvoice_UsesReservedNumber(t *testing.T) {
	inv := NewInvoice(instant())

	got, err := inv.Create(context.Background(), provider.InvoiceRequest{
		DocumentNo: "INV-2026-000001",
		Buyer:      domain.Buyer{ParentName: "Ayşe Yılmaz"},
		Total:      amount("360"),
	})
	require.NoError(t, err)
	assert.Equal(t, "INV-2026-000001", got.InvoiceNo)
	assert.Equal(t, "/invoices/INV-2026-000001.pdf", got.PDFPath)
}

func TestInvoice_CorporateRequiresTaxData(t *testing.T) {
	inv := NewInvoice(instant())

	_, err := inv.Create(context.Background(), provider.InvoiceRequest{
		DocumentNo: "INV-2026-000002",
		Buyer:      domain.Buyer{ParentName: "Ayşe Yılmaz"},
		Corporate:  domain.CorporateInvoice{IsCorporate: true, CompanyTitle: "Yılmaz Ltd", TaxNumber: "123"},
		Total:      amount("360"),
	})

	var f *provider.Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, "Vergi numarası 10 haneli olmalıdır", f.Message)
}

func TestShipping_CreateAndTrack(t *testing.T) {
	ctx := context.Background()
	cfg := instant()
	cfg.TrackingStep = time.Hour
	s := NewShipping(cfg)

	start := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return start }

	shipment, err := s.CreateShipment(ctx, provider.ShipmentRequest{
		OrderNumber: "ORD-2026-00001",
		Receiver:    domain.Buyer{Phone: "05551234567"},
		Address:     domain.Address{Line: "Atatürk Cad. 1", City: "Ankara"},
	})
	require.NoError(t, err)
	assert.Regexp(t, `^MK\d{10}$`, shipment.TrackingNo)

	s.now = func() time.Time { return start.Add(150 * time.Minute) }
	info, err := s.Track(ctx, shipment.TrackingNo)
	require.NoError(t, err)
	assert.Equal(t, "OUT_FOR_DELIVERY", info.StatusCode)
	assert.Len(t, info.Events, 3)

	s.now = func() time.Time { return start.Add(48 * time.Hour) }
	info, err = s.Track(ctx, shipment.TrackingNo)
	require.NoError(t, err)
	assert.Equal(t, "DELIVERED", info.StatusCode)
	assert.Len(t, info.Events, 4)
}

func TestShipping_RequiresAddress(t *testing.T) {
	_, err := NewShipping(instant()).CreateShipment(context.Background(), provider.ShipmentRequest{
		Receiver: domain.Buyer{Phone: "05551234567"},
	})

	var f *provider.Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, "shipping", f.Provider)
}
