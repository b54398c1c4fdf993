package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/domain"
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/repository"
	"github.com/FirudinMustafa/OkulTedarik-sub000/pkg/database"
	apperrors "github.com/FirudinMustafa/OkulTedarik-sub000/pkg/errors"
)

// --- Test Helpers ---

func newTestRepo(t *testing.T) (*OrderRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	return NewOrderRepository(mock), mock
}

var orderColumnNames = []string{
	"id", "order_number", "school_id", "class_id", "package_id",
	"parent_name", "student_name", "student_section", "phone", "email",
	"address_line", "district", "city",
	"is_corporate_invoice", "company_title", "tax_number", "tax_office",
	"total_amount", "discount_code", "discount_amount",
	"status", "payment_method", "payment_id", "payment_token", "payment_url", "paid_at",
	"invoice_no", "invoice_date", "invoice_pdf_path",
	"tracking_no", "shipped_at", "delivered_at", "delivery_document_no",
	"notes", "created_at", "updated_at",
}

func sampleOrder() *domain.Order {
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	return &domain.Order{
		ID:          "order-001",
		OrderNumber: "ORD-2026-00001",
		SchoolID:    "school-001",
		ClassID:     "class-001",
		PackageID:   "package-001",
		Buyer: domain.Buyer{
			ParentName:  "Ayşe Yılmaz",
			StudentName: "Ali Yılmaz",
			Phone:       "05551234567",
			Email:       "ayse@example.com",
		},
		TotalAmount:    decimal.RequireFromString("360.00"),
		DiscountCode:   "YILBASI20",
		DiscountAmount: decimal.RequireFromString("90.00"),
		Status:         domain.StatusNew,
		PaymentMethod:  domain.PaymentCashOnDelivery,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func orderRowValues(o *domain.Order) []any {
	return []any{
		o.ID, o.OrderNumber, o.SchoolID, o.ClassID, o.PackageID,
		o.ParentName, o.StudentName, o.StudentSection, o.Phone, o.Email,
		o.Address.Line, o.Address.District, o.Address.City,
		o.IsCorporate, o.CompanyTitle, o.TaxNumber, o.TaxOffice,
		o.TotalAmount.StringFixed(2), o.DiscountCode, o.DiscountAmount.StringFixed(2),
		string(o.Status), string(o.PaymentMethod), o.PaymentID, o.PaymentToken, o.PaymentURL, o.PaidAt,
		o.InvoiceNo, o.InvoiceDate, o.InvoicePDFPath,
		o.TrackingNo, o.ShippedAt, o.DeliveredAt, o.DeliveryDocumentNo,
		o.Notes, o.CreatedAt, o.UpdatedAt,
	}
}

func createArgs(o *domain.Order) []any {
	return []any{
		o.ID, o.OrderNumber, o.SchoolID, o.ClassID, o.PackageID,
		o.ParentName, o.StudentName, o.StudentSection, o.Phone, o.Email,
		o.Address.Line, o.Address.District, o.Address.City,
		o.IsCorporate, o.CompanyTitle, o.TaxNumber, o.TaxOffice,
		"360.00", o.DiscountCode, "90.00",
		"NEW", "CASH_ON_DELIVERY", nil, o.PaymentURL,
		o.Notes, o.CreatedAt, o.UpdatedAt,
	}
}

func uniqueViolation(constraint string) error {
	return &pgconn.PgError{Code: "23505", ConstraintName: constraint}
}

// --- Create Tests ---

func TestOrderRepository_Create_Success(t *testing.T) {
	repo, mock := newTestRepo(t)
	o := sampleOrder()

	mock.ExpectExec("INSERT INTO orders").
		WithArgs(createArgs(o)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(context.Background(), o))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_Create_UniqueViolations(t *testing.T) {
	tests := []struct {
		constraint string
		want       error
	}{
		{constraintOrderNumber, repository.ErrDuplicateNumber},
		{constraintActiveStudent, repository.ErrDuplicateStudent},
	}

	for _, tt := range tests {
		t.Run(tt.constraint, func(t *testing.T) {
			repo, mock := newTestRepo(t)
			o := sampleOrder()

			mock.ExpectExec("INSERT INTO orders").
				WithArgs(createArgs(o)...).
				WillReturnError(uniqueViolation(tt.constraint))

			err := repo.Create(context.Background(), o)
			assert.ErrorIs(t, err, tt.want)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

// --- Get Tests ---

func TestOrderRepository_GetByID_Success(t *testing.T) {
	repo, mock := newTestRepo(t)
	o := sampleOrder()

	mock.ExpectQuery("SELECT").
		WithArgs("order-001").
		WillReturnRows(pgxmock.NewRows(orderColumnNames).AddRow(orderRowValues(o)...))

	got, err := repo.GetByID(context.Background(), "order-001")
	require.NoError(t, err)

	assert.Equal(t, "ORD-2026-00001", got.OrderNumber)
	assert.Equal(t, domain.StatusNew, got.Status)
	assert.Equal(t, domain.PaymentCashOnDelivery, got.PaymentMethod)
	assert.True(t, got.TotalAmount.Equal(decimal.RequireFromString("360")))
	assert.True(t, got.DiscountAmount.Equal(decimal.RequireFromString("90")))
	assert.Nil(t, got.PaidAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_GetByID_NotFound(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectQuery("SELECT").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	got, err := repo.GetByID(context.Background(), "missing")
	assert.Nil(t, got)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_GetByIDForUpdate_LocksRow(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1 FOR UPDATE")).
		WithArgs("order-001").
		WillReturnRows(pgxmock.NewRows(orderColumnNames).AddRow(orderRowValues(sampleOrder())...))

	_, err := repo.GetByIDForUpdate(context.Background(), "order-001")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_FindBlockingForStudent_None(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectQuery("SELECT").
		WithArgs("class-001", "Ali Yılmaz").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.FindBlockingForStudent(context.Background(), "class-001", "  Ali Yılmaz ")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// --- List Tests ---

func TestOrderRepository_ListByIDs_EmptyInputSkipsQuery(t *testing.T) {
	repo, mock := newTestRepo(t)

	got, err := repo.ListByIDs(context.Background(), nil, []domain.OrderStatus{domain.StatusPaid})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_ListByIDs(t *testing.T) {
	repo, mock := newTestRepo(t)
	o := sampleOrder()
	o.Status = domain.StatusPaid

	mock.ExpectQuery("SELECT").
		WithArgs([]string{"order-001", "order-002"}, []string{"PAID", "CONFIRMED"}).
		WillReturnRows(pgxmock.NewRows(orderColumnNames).AddRow(orderRowValues(o)...))

	got, err := repo.ListByIDs(context.Background(),
		[]string{"order-001", "order-002"},
		[]domain.OrderStatus{domain.StatusPaid, domain.StatusConfirmed})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domain.StatusPaid, got[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_List_WithFilters(t *testing.T) {
	repo, mock := newTestRepo(t)
	o := sampleOrder()

	cols := append(append([]string{}, orderColumnNames...), "total_count")
	values := append(orderRowValues(o), 7)

	mock.ExpectQuery("SELECT").
		WithArgs("school-001", "NEW", "%Ali%", 10, 10).
		WillReturnRows(pgxmock.NewRows(cols).AddRow(values...))

	got, total, err := repo.List(context.Background(), repository.OrderFilter{
		SchoolID: "school-001",
		Status:   domain.StatusNew,
		Search:   "Ali",
		Page:     2,
		PerPage:  10,
	})
	require.NoError(t, err)
	assert.Equal(t, 7, total)
	require.Len(t, got, 1)
	assert.Equal(t, "order-001", got[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_List_QueryError(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectQuery("SELECT").
		WithArgs(20, 0).
		WillReturnError(errors.New("connection reset"))

	_, _, err := repo.List(context.Background(), repository.OrderFilter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list orders")
	assert.NoError(t, mock.ExpectationsWereMet())
}

// --- Update Tests ---

func TestOrderRepository_Update_NotFound(t *testing.T) {
	repo, mock := newTestRepo(t)
	o := sampleOrder()

	mock.ExpectExec("UPDATE orders SET").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.Update(context.Background(), o)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_Update_InvoiceNumberCollision(t *testing.T) {
	repo, mock := newTestRepo(t)
	o := sampleOrder()
	o.InvoiceNo = "INV-2026-000001"

	mock.ExpectExec("UPDATE orders SET").
		WillReturnError(uniqueViolation(constraintInvoiceNo))

	err := repo.Update(context.Background(), o)
	assert.ErrorIs(t, err, repository.ErrDuplicateNumber)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// --- Aggregate Tests ---

func TestOrderRepository_MaxWithPrefix(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY length(invoice_no) DESC")).
		WithArgs("INV-2026-").
		WillReturnRows(pgxmock.NewRows([]string{"invoice_no"}).AddRow("INV-2026-000041"))

	got, err := repo.MaxWithPrefix(context.Background(), domain.FieldInvoiceNo, "INV-2026-")
	require.NoError(t, err)
	assert.Equal(t, "INV-2026-000041", got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_MaxWithPrefix_NoneYet(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectQuery("FROM orders").
		WithArgs("TT-2027-").
		WillReturnError(pgx.ErrNoRows)

	got, err := repo.MaxWithPrefix(context.Background(), domain.FieldDeliveryDocumentNo, "TT-2027-")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_MaxWithPrefix_UnknownField(t *testing.T) {
	repo, mock := newTestRepo(t)

	_, err := repo.MaxWithPrefix(context.Background(), domain.NumberField("tracking_no"), "X")
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_RecognizedStatsByClass(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectQuery("SELECT class_id").
		WithArgs("school-001", []string{"PAID", "CONFIRMED", "INVOICED", "CARGO_SHIPPED", "DELIVERED_TO_SCHOOL", "DELIVERED_BY_CARGO", "COMPLETED"}).
		WillReturnRows(pgxmock.NewRows([]string{"class_id", "count", "sum"}).
			AddRow("class-001", 3, "1350.00").
			AddRow("class-002", 1, "450.00"))

	got, err := repo.RecognizedStatsByClass(context.Background(), "school-001")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 3, got["class-001"].Count)
	assert.True(t, got["class-001"].Revenue.Equal(decimal.RequireFromString("1350")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_CountByStatus(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectQuery("SELECT status").
		WithArgs("").
		WillReturnRows(pgxmock.NewRows([]string{"status", "count"}).
			AddRow("NEW", 4).
			AddRow("PAID", 2))

	got, err := repo.CountByStatus(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []repository.StatusCount{
		{Status: domain.StatusNew, Count: 4},
		{Status: domain.StatusPaid, Count: 2},
	}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}
