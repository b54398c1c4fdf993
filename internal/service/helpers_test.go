package service

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/audit"
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/auth"
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/domain"
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/provider"
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/provider/mock"
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/repository"
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/repository/memory"
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/sequence"
	"github.com/FirudinMustafa/OkulTedarik-sub000/pkg/logger"
)

var testNow = time.Date(2026, 10, 1, 9, 30, 0, 0, time.UTC)

var (
	adminActor = domain.Actor{ID: "admin", Type: domain.ActorAdmin}
)

func newTestLogger() *slog.Logger {
	return logger.NewWithWriter("test", "error", &bytes.Buffer{})
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// recordingPublisher collects events instead of sending them.
type recordingPublisher struct {
	mu      sync.Mutex
	created []string
	changes []string
	cancels []string
}

func (p *recordingPublisher) OrderCreated(_ context.Context, o *domain.Order) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created = append(p.created, o.OrderNumber)
}

func (p *recordingPublisher) StatusChanged(_ context.Context, o *domain.Order, from domain.OrderStatus, _ domain.Actor) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changes = append(p.changes, string(from)+"->"+string(o.Status))
}

func (p *recordingPublisher) CancelProcessed(_ context.Context, req *domain.CancelRequest, _ *domain.Order, _ string, _ decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancels = append(p.cancels, string(req.Status))
}

// countingInvoice wraps an invoice adapter and counts calls.
type countingInvoice struct {
	next  provider.InvoiceAdapter
	calls int
}

func (c *countingInvoice) Create(ctx context.Context, req provider.InvoiceRequest) (*provider.Invoice, error) {
	c.calls++
	return c.next.Create(ctx, req)
}

// refundSpy wraps the mock payment provider and records refunds.
type refundSpy struct {
	*mock.Payment
	refunds []decimal.Decimal
}

func (r *refundSpy) Refund(ctx context.Context, paymentID string, amount decimal.Decimal) (*provider.RefundResult, error) {
	r.refunds = append(r.refunds, amount)
	return r.Payment.Refund(ctx, paymentID, amount)
}

type testEnv struct {
	store    *memory.Store
	payment  *refundSpy
	invoice  *countingInvoice
	shipping *mock.Shipping
	events   *recordingPublisher
	audit    *audit.Logger
	seq      *sequence.Generator
	hasher   *auth.Hasher

	orders      *OrderService
	discounts   *DiscountService
	cancels     *CancellationService
	batches     *BatchService
	commissions *CommissionService
	catalog     *CatalogService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := mock.Config{Delay: 0, PaymentBaseURL: "http://test/pay", TrackingStep: time.Hour}
	env := &testEnv{
		store:    memory.NewStore(),
		payment:  &refundSpy{Payment: mock.NewPayment(cfg)},
		invoice:  &countingInvoice{next: mock.NewInvoice(cfg)},
		shipping: mock.NewShipping(cfg),
		events:   &recordingPublisher{},
		audit:    audit.NewLogger(newTestLogger()),
		seq:      sequence.NewGenerator(newTestLogger(), sequence.WithClock(func() time.Time { return testNow })),
		hasher:   auth.NewHasher(bcrypt.MinCost),
	}
	clock := func() time.Time { return testNow }

	env.orders = NewOrderService(env.store, env.seq, env.adapters(), env.events, env.audit, newTestLogger())
	env.orders.now = clock
	env.discounts = NewDiscountService(env.store, env.audit, newTestLogger())
	env.discounts.now = clock
	env.cancels = NewCancellationService(env.store, env.payment, env.events, env.audit, newTestLogger(), nil)
	env.cancels.now = clock
	env.batches = NewBatchService(env.orders, env.audit, newTestLogger())
	env.commissions = NewCommissionService(env.store, env.audit, newTestLogger())
	env.commissions.now = clock
	env.catalog = NewCatalogService(env.store, env.hasher, env.audit, newTestLogger())
	env.catalog.now = clock
	return env
}

func (e *testEnv) adapters() Adapters {
	return Adapters{Payment: e.payment, Invoice: e.invoice, Shipping: e.shipping}
}

type catalog struct {
	school *domain.School
	class  *domain.Class
	pkg    *domain.Package
}

func (e *testEnv) seedCatalog(t *testing.T, delivery domain.DeliveryType, suffix string) catalog {
	t.Helper()
	ctx := context.Background()

	school := &domain.School{
		ID:           "school-" + suffix,
		Name:         "Atatürk İlkokulu " + suffix,
		DeliveryType: delivery,
		Password:     "PASS" + suffix,
		IsActive:     true,
		CreatedAt:    testNow,
		UpdatedAt:    testNow,
	}
	require.NoError(t, e.store.Schools().Create(ctx, school))

	pkg := &domain.Package{
		ID:       "package-" + suffix,
		Name:     "1. Sınıf Paketi",
		Price:    dec("450.00"),
		IsActive: true,
		Items: []domain.PackageItem{
			{ID: "item-" + suffix, Name: "Defter", Quantity: 10, UnitPrice: dec("25.00")},
		},
		CreatedAt: testNow,
		UpdatedAt: testNow,
	}
	require.NoError(t, e.store.Packages().Create(ctx, pkg))

	class := &domain.Class{
		ID:               "class-" + suffix,
		SchoolID:         school.ID,
		Name:             "1-A",
		PackageID:        pkg.ID,
		CommissionAmount: dec("25.00"),
		IsActive:         true,
		CreatedAt:        testNow,
		UpdatedAt:        testNow,
	}
	require.NoError(t, e.store.Classes().Create(ctx, class))

	return catalog{school: school, class: class, pkg: pkg}
}

func (e *testEnv) seedDiscount(t *testing.T) *domain.Discount {
	t.Helper()
	d := &domain.Discount{
		ID:         "discount-1",
		Code:       "YILBASI20",
		Type:       domain.DiscountPercentage,
		Value:      dec("20"),
		MinAmount:  decimal.NewNullDecimal(dec("100")),
		ValidFrom:  testNow.AddDate(0, -1, 0),
		ValidUntil: testNow.AddDate(0, 3, 0),
		IsActive:   true,
		CreatedAt:  testNow,
		UpdatedAt:  testNow,
	}
	require.NoError(t, e.store.Discounts().Create(context.Background(), d))
	return d
}

func parentOf(c catalog) domain.Actor {
	return domain.Actor{ID: "parent-session", Type: domain.ActorParent, SchoolID: c.school.ID}
}

func orderInput(c catalog, student string, method domain.PaymentMethod) CreateOrderInput {
	return CreateOrderInput{
		ClassID: c.class.ID,
		Buyer: domain.Buyer{
			ParentName:  "Ayşe Yılmaz",
			StudentName: student,
			Phone:       "0532 123 45 67",
			Email:       "ayse@example.com",
		},
		Address:       domain.Address{Line: "Cumhuriyet Cad. 1", District: "Çankaya", City: "Ankara"},
		PaymentMethod: method,
	}
}

// placeOrder creates an order and moves it to status through admin updates.
func (e *testEnv) placeOrder(t *testing.T, c catalog, student string, path ...domain.OrderStatus) *domain.Order {
	t.Helper()
	ctx := context.Background()

	res, err := e.orders.CreateOrder(ctx, parentOf(c), orderInput(c, student, domain.PaymentCashOnDelivery))
	require.NoError(t, err)

	for _, st := range path {
		_, err := e.orders.UpdateStatus(ctx, adminActor, res.OrderID, string(st))
		require.NoError(t, err)
	}

	o, err := e.store.Orders().GetByID(ctx, res.OrderID)
	require.NoError(t, err)
	return o
}

func (e *testEnv) logs(t *testing.T, filter repository.LogFilter) []domain.SystemLog {
	t.Helper()
	logs, _, err := e.store.Logs().List(context.Background(), filter)
	require.NoError(t, err)
	return logs
}
