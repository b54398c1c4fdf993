package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/domain"
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/provider"
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/repository"
	apperrors "github.com/FirudinMustafa/OkulTedarik-sub000/pkg/errors"
)

// ---------------------------------------------------------------------------
// CreateOrder
// ---------------------------------------------------------------------------

func TestCreateOrder_AppliesPercentageDiscount(t *testing.T) {
	env := newTestEnv(t)
	c := env.seedCatalog(t, domain.DeliverySchool, "1")
	d := env.seedDiscount(t)
	ctx := context.Background()

	in := orderInput(c, "Ali Yılmaz", domain.PaymentCashOnDelivery)
	in.DiscountCode = "  yilbasi20 "

	res, err := env.orders.CreateOrder(ctx, parentOf(c), in)
	require.NoError(t, err)

	assert.Equal(t, "ORD-2026-00001", res.OrderNumber)
	assert.Equal(t, domain.StatusNew, res.Status)
	assert.Equal(t, "90.00", res.DiscountAmount.StringFixed(2))
	assert.Equal(t, "360.00", res.TotalAmount.StringFixed(2))
	assert.Empty(t, res.PaymentURL)

	stored, err := env.store.Discounts().GetByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.UsedCount)

	o, err := env.store.Orders().GetByID(ctx, res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, "YILBASI20", o.DiscountCode)
	assert.Equal(t, "05321234567", o.Phone)

	logs := env.logs(t, repository.LogFilter{EntityID: res.OrderID})
	require.Len(t, logs, 1)
	assert.Equal(t, domain.ActionCreate, logs[0].Action)
	assert.Equal(t, []string{"ORD-2026-00001"}, env.events.created)
}

func TestCreateOrder_SequentialNumbers(t *testing.T) {
	env := newTestEnv(t)
	c := env.seedCatalog(t, domain.DeliverySchool, "1")

	first := env.placeOrder(t, c, "Ali")
	second := env.placeOrder(t, c, "Veli")

	assert.Equal(t, "ORD-2026-00001", first.OrderNumber)
	assert.Equal(t, "ORD-2026-00002", second.OrderNumber)
}

func TestCreateOrder_DiscountRejectionLeavesNoTrace(t *testing.T) {
	env := newTestEnv(t)
	c := env.seedCatalog(t, domain.DeliverySchool, "1")
	d := env.seedDiscount(t)
	limit := 1
	d.UsageLimit = &limit
	require.NoError(t, env.store.Discounts().Update(context.Background(), d))
	require.NoError(t, env.store.Discounts().Redeem(context.Background(), d.ID))

	in := orderInput(c, "Ali", domain.PaymentCashOnDelivery)
	in.DiscountCode = "YILBASI20"
	_, err := env.orders.CreateOrder(context.Background(), parentOf(c), in)

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
	assert.Contains(t, err.Error(), domain.ErrDiscountLimitReached.Error())

	_, total, err := env.store.Orders().List(context.Background(), repository.OrderFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestCreateOrder_CreditCardOpensPaymentSession(t *testing.T) {
	env := newTestEnv(t)
	c := env.seedCatalog(t, domain.DeliverySchool, "1")
	ctx := context.Background()

	res, err := env.orders.CreateOrder(ctx, parentOf(c), orderInput(c, "Ali", domain.PaymentCreditCard))
	require.NoError(t, err)

	assert.Equal(t, domain.StatusPaymentPending, res.Status)
	assert.Contains(t, res.PaymentURL, "http://test/pay?token=mock_")

	o, err := env.store.Orders().GetByID(ctx, res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, res.PaymentURL, o.PaymentURL)
	assert.NotEmpty(t, o.PaymentToken)
}

func TestCreateOrder_DuplicateStudentReturnsExistingNumber(t *testing.T) {
	env := newTestEnv(t)
	c := env.seedCatalog(t, domain.DeliverySchool, "1")
	first := env.placeOrder(t, c, "Ali Yılmaz")

	_, err := env.orders.CreateOrder(context.Background(), parentOf(c), orderInput(c, " ali yılmaz ", domain.PaymentCashOnDelivery))

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "CONFLICT", appErr.Code)
	assert.Equal(t, first.OrderNumber, appErr.Details["orderNumber"])
}

func TestCreateOrder_AllowedAfterCancellation(t *testing.T) {
	env := newTestEnv(t)
	c := env.seedCatalog(t, domain.DeliverySchool, "1")
	env.placeOrder(t, c, "Ali", domain.StatusCancelled)

	res, err := env.orders.CreateOrder(context.Background(), parentOf(c), orderInput(c, "Ali", domain.PaymentCashOnDelivery))
	require.NoError(t, err)
	assert.Equal(t, "ORD-2026-00002", res.OrderNumber)
}

func TestCreateOrder_CargoRequiresAddress(t *testing.T) {
	env := newTestEnv(t)
	c := env.seedCatalog(t, domain.DeliveryCargo, "1")

	in := orderInput(c, "Ali", domain.PaymentCashOnDelivery)
	in.Address = domain.Address{}
	_, err := env.orders.CreateOrder(context.Background(), parentOf(c), in)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))

	in.Address = domain.Address{Line: "Cumhuriyet Cad. 1", District: "Çankaya"}
	_, err = env.orders.CreateOrder(context.Background(), parentOf(c), in)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

func TestCreateOrder_ParentOfOtherSchoolForbidden(t *testing.T) {
	env := newTestEnv(t)
	c := env.seedCatalog(t, domain.DeliverySchool, "1")
	other := env.seedCatalog(t, domain.DeliverySchool, "2")

	_, err := env.orders.CreateOrder(context.Background(), parentOf(other), orderInput(c, "Ali", domain.PaymentCashOnDelivery))
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))
}

func TestCreateOrder_MissingFields(t *testing.T) {
	env := newTestEnv(t)
	c := env.seedCatalog(t, domain.DeliverySchool, "1")

	in := orderInput(c, "  ", domain.PaymentCashOnDelivery)
	_, err := env.orders.CreateOrder(context.Background(), parentOf(c), in)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "studentName is required")
}

// ---------------------------------------------------------------------------
// Status transitions
// ---------------------------------------------------------------------------

func TestUpdateStatus_NewToCompletedRejected(t *testing.T) {
	env := newTestEnv(t)
	c := env.seedCatalog(t, domain.DeliverySchool, "1")
	o := env.placeOrder(t, c, "Ali")

	_, err := env.orders.UpdateStatus(context.Background(), adminActor, o.ID, "COMPLETED")

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidTransition))
	assert.Contains(t, err.Error(), "NEW")
	assert.Contains(t, err.Error(), "COMPLETED")

	after, err := env.store.Orders().GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, o, after)
	assert.Len(t, env.logs(t, repository.LogFilter{EntityID: o.ID}), 1)
}

func TestUpdateStatus_OnlyAdmins(t *testing.T) {
	env := newTestEnv(t)
	c := env.seedCatalog(t, domain.DeliverySchool, "1")
	o := env.placeOrder(t, c, "Ali")

	_, err := env.orders.UpdateStatus(context.Background(), parentOf(c), o.ID, "PAID")
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))
}

func TestUpdateStatus_PaidSetsPaidAt(t *testing.T) {
	env := newTestEnv(t)
	c := env.seedCatalog(t, domain.DeliverySchool, "1")
	o := env.placeOrder(t, c, "Ali")

	updated, err := env.orders.UpdateStatus(context.Background(), adminActor, o.ID, "PAID")
	require.NoError(t, err)
	require.NotNil(t, updated.PaidAt)
	assert.Equal(t, testNow, *updated.PaidAt)
	assert.Equal(t, []string{"NEW->PAID"}, env.events.changes)

	logs := env.logs(t, repository.LogFilter{EntityID: o.ID, Action: domain.ActionStatusChange})
	require.Len(t, logs, 1)
	details, ok := logs[0].Details.(*domain.StatusChangeDetails)
	require.True(t, ok)
	assert.Equal(t, domain.StatusNew, details.From)
	assert.Equal(t, domain.StatusPaid, details.To)
}

func TestUpdateStatus_LegacyNameNormalized(t *testing.T) {
	env := newTestEnv(t)
	c := env.seedCatalog(t, domain.DeliverySchool, "1")
	o := env.placeOrder(t, c, "Ali")

	updated, err := env.orders.UpdateStatus(context.Background(), adminActor, o.ID, "payment_received")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, updated.Status)

	logs := env.logs(t, repository.LogFilter{EntityID: o.ID, Action: domain.ActionStatusChange})
	require.Len(t, logs, 1)
	assert.Equal(t, "payment_received", logs[0].Details.(*domain.StatusChangeDetails).Legacy)
}

func TestUpdateStatus_UnknownStatus(t *testing.T) {
	env := newTestEnv(t)
	c := env.seedCatalog(t, domain.DeliverySchool, "1")
	o := env.placeOrder(t, c, "Ali")

	_, err := env.orders.UpdateStatus(context.Background(), adminActor, o.ID, "LOST")
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

func TestUpdateStatus_InvoicePersistsDocument(t *testing.T) {
	env := newTestEnv(t)
	c := env.seedCatalog(t, domain.DeliverySchool, "1")
	o := env.placeOrder(t, c, "Ali", domain.StatusPaid)

	updated, err := env.orders.UpdateStatus(context.Background(), adminActor, o.ID, "INVOICED")
	require.NoError(t, err)

	assert.Equal(t, domain.StatusInvoiced, updated.Status)
	assert.Equal(t, "INV-2026-000001", updated.InvoiceNo)
	assert.Equal(t, "/invoices/INV-2026-000001.pdf", updated.InvoicePDFPath)
	require.NotNil(t, updated.InvoiceDate)
}

func TestUpdateStatus_InvoiceFailureLeavesOrderUntouched(t *testing.T) {
	env := newTestEnv(t)
	c := env.seedCatalog(t, domain.DeliverySchool, "1")

	in := orderInput(c, "Ali", domain.PaymentCashOnDelivery)
	in.Corporate = domain.CorporateInvoice{IsCorporate: true, CompanyTitle: "ACME Ltd", TaxNumber: "123", TaxOffice: "Çankaya"}
	res, err := env.orders.CreateOrder(context.Background(), parentOf(c), in)
	require.NoError(t, err)
	_, err = env.orders.UpdateStatus(context.Background(), adminActor, res.OrderID, "PAID")
	require.NoError(t, err)
	before, err := env.store.Orders().GetByID(context.Background(), res.OrderID)
	require.NoError(t, err)

	_, err = env.orders.UpdateStatus(context.Background(), adminActor, res.OrderID, "INVOICED")

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "ADAPTER_FAILED", appErr.Code)
	assert.Contains(t, appErr.Message, "Vergi numarası")

	after, err := env.store.Orders().GetByID(context.Background(), res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestUpdateStatus_ShipmentRequiresCargoSchool(t *testing.T) {
	env := newTestEnv(t)
	c := env.seedCatalog(t, domain.DeliverySchool, "1")
	o := env.placeOrder(t, c, "Ali", domain.StatusConfirmed)

	_, err := env.orders.UpdateStatus(context.Background(), adminActor, o.ID, "CARGO_SHIPPED")
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

func TestUpdateStatus_CargoLifecycle(t *testing.T) {
	env := newTestEnv(t)
	c := env.seedCatalog(t, domain.DeliveryCargo, "1")
	o := env.placeOrder(t, c, "Ali",
		domain.StatusPaid, domain.StatusInvoiced, domain.StatusCargoShipped,
	)

	assert.NotEmpty(t, o.TrackingNo)
	require.NotNil(t, o.ShippedAt)

	delivered, err := env.orders.UpdateStatus(context.Background(), adminActor, o.ID, "DELIVERED")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDeliveredByCargo, delivered.Status)
	require.NotNil(t, delivered.DeliveredAt)

	done, err := env.orders.UpdateStatus(context.Background(), adminActor, o.ID, "COMPLETED")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, done.Status)
}

func TestUpdateStatus_SchoolDeliveryAssignsDocumentNumber(t *testing.T) {
	env := newTestEnv(t)
	c := env.seedCatalog(t, domain.DeliverySchool, "1")
	o := env.placeOrder(t, c, "Ali", domain.StatusPaid, domain.StatusInvoiced)

	delivered, err := env.orders.UpdateStatus(context.Background(), adminActor, o.ID, "DELIVERED_TO_SCHOOL")
	require.NoError(t, err)
	assert.Equal(t, "TT-2026-00001", delivered.DeliveryDocumentNo)
	assert.NotNil(t, delivered.DeliveredAt)
}

func TestUpdateOrder_EditsFieldsWithStatus(t *testing.T) {
	env := newTestEnv(t)
	c := env.seedCatalog(t, domain.DeliverySchool, "1")
	o := env.placeOrder(t, c, "Ali")

	section := "B"
	updated, err := env.orders.UpdateOrder(context.Background(), adminActor, o.ID, UpdateOrderInput{
		Status:         "CONFIRMED",
		StudentSection: &section,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, updated.Status)
	assert.Equal(t, "B", updated.StudentSection)

	logs := env.logs(t, repository.LogFilter{EntityID: o.ID, Action: domain.ActionStatusChange})
	require.Len(t, logs, 1)
	changes := logs[0].Details.(*domain.StatusChangeDetails).Changes
	require.Len(t, changes, 2)
	assert.Equal(t, "studentSection", changes[1].Field)
}

func TestUpdateOrder_FieldsOnly(t *testing.T) {
	env := newTestEnv(t)
	c := env.seedCatalog(t, domain.DeliverySchool, "1")
	o := env.placeOrder(t, c, "Ali")

	notes := "Kapıda aranacak"
	updated, err := env.orders.UpdateOrder(context.Background(), adminActor, o.ID, UpdateOrderInput{Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusNew, updated.Status)
	assert.Equal(t, notes, updated.Notes)
	assert.Len(t, env.logs(t, repository.LogFilter{EntityID: o.ID, Action: domain.ActionUpdate}), 1)
	assert.Empty(t, env.events.changes)
}

// ---------------------------------------------------------------------------
// Payments
// ---------------------------------------------------------------------------

func TestConfirmPayment_MarksPaid(t *testing.T) {
	env := newTestEnv(t)
	c := env.seedCatalog(t, domain.DeliverySchool, "1")
	ctx := context.Background()

	res, err := env.orders.CreateOrder(ctx, parentOf(c), orderInput(c, "Ali", domain.PaymentCreditCard))
	require.NoError(t, err)
	o, err := env.store.Orders().GetByID(ctx, res.OrderID)
	require.NoError(t, err)

	paid, err := env.orders.ConfirmPayment(ctx, o.PaymentToken)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, paid.Status)
	assert.Contains(t, paid.PaymentID, "mock_pay_")
	require.NotNil(t, paid.PaidAt)

	again, err := env.orders.ConfirmPayment(ctx, o.PaymentToken)
	require.NoError(t, err)
	assert.Equal(t, paid.PaymentID, again.PaymentID)
}

func TestConfirmPayment_UnknownToken(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.orders.ConfirmPayment(context.Background(), "nope")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestPayWithCard_DeclinedStaysPending(t *testing.T) {
	env := newTestEnv(t)
	c := env.seedCatalog(t, domain.DeliverySchool, "1")
	ctx := context.Background()

	res, err := env.orders.CreateOrder(ctx, parentOf(c), orderInput(c, "Ali", domain.PaymentCreditCard))
	require.NoError(t, err)

	_, err = env.orders.PayWithCard(ctx, parentOf(c), res.OrderID, provider.Card{
		HolderName: "AYSE YILMAZ", Number: "4111 1111 1111 1129", ExpireMonth: "12", ExpireYear: "2030", CVC: "123",
	})

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "PAYMENT_FAILED", appErr.Code)
	assert.Equal(t, "Yetersiz bakiye", appErr.Message)

	o, err := env.store.Orders().GetByID(ctx, res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaymentPending, o.Status)

	logs := env.logs(t, repository.LogFilter{EntityID: res.OrderID, Action: domain.ActionPayment})
	require.Len(t, logs, 1)
	assert.False(t, logs[0].Details.(*domain.PaymentDetails).Success)
}

func TestPayWithCard_Success(t *testing.T) {
	env := newTestEnv(t)
	c := env.seedCatalog(t, domain.DeliverySchool, "1")
	ctx := context.Background()

	res, err := env.orders.CreateOrder(ctx, parentOf(c), orderInput(c, "Ali", domain.PaymentCreditCard))
	require.NoError(t, err)

	paid, err := env.orders.PayWithCard(ctx, parentOf(c), res.OrderID, provider.Card{
		HolderName: "AYSE YILMAZ", Number: "5528790000000008", ExpireMonth: "12", ExpireYear: "2030", CVC: "123",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, paid.Status)
	assert.NotEmpty(t, paid.PaymentID)
}

// ---------------------------------------------------------------------------
// Reads
// ---------------------------------------------------------------------------

func TestGetOrderByNumber_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	c := env.seedCatalog(t, domain.DeliverySchool, "1")
	o := env.placeOrder(t, c, "Ali", domain.StatusPaid)

	first, err := env.orders.GetOrderByNumber(context.Background(), o.OrderNumber)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		again, err := env.orders.GetOrderByNumber(context.Background(), " "+o.OrderNumber+" ")
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestTrackOrder_IncludesShipment(t *testing.T) {
	env := newTestEnv(t)
	c := env.seedCatalog(t, domain.DeliveryCargo, "1")
	o := env.placeOrder(t, c, "Ali", domain.StatusConfirmed, domain.StatusCargoShipped)

	view, err := env.orders.TrackOrder(context.Background(), o.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, o.ID, view.Order.ID)
	assert.Nil(t, view.CancelRequest)
	require.NotNil(t, view.Shipment)
	assert.NotEmpty(t, view.Shipment.Events)
}

func TestListOrders_DirectorScopedToSchool(t *testing.T) {
	env := newTestEnv(t)
	c1 := env.seedCatalog(t, domain.DeliverySchool, "1")
	c2 := env.seedCatalog(t, domain.DeliverySchool, "2")
	env.placeOrder(t, c1, "Ali")
	env.placeOrder(t, c2, "Veli")

	director := domain.Actor{ID: "dir-1", Type: domain.ActorDirector, SchoolID: c1.school.ID}
	orders, total, err := env.orders.ListOrders(context.Background(), director, repository.OrderFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, c1.school.ID, orders[0].SchoolID)

	_, _, err = env.orders.ListOrders(context.Background(), director, repository.OrderFilter{SchoolID: c2.school.ID})
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))
}
