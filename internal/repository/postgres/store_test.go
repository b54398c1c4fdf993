package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/domain"
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/repository"
	"github.com/FirudinMustafa/OkulTedarik-sub000/pkg/database"
)

func newTestStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	return NewStore(mock), mock
}

func TestStore_WithinTx_Commits(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE discounts SET used_count").
		WithArgs("discount-001").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err := store.WithinTx(context.Background(), func(tx repository.Store) error {
		return tx.Discounts().Redeem(context.Background(), "discount-001")
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_WithinTx_RollsBackOnError(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE discounts SET used_count").
		WithArgs("discount-001").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	err := store.WithinTx(context.Background(), func(tx repository.Store) error {
		return tx.Discounts().Redeem(context.Background(), "discount-001")
	})
	assert.ErrorIs(t, err, repository.ErrDiscountExhausted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_WithinTx_NestedReusesTransaction(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectBegin()
	mock.ExpectCommit()

	var inner repository.Store
	err := store.WithinTx(context.Background(), func(tx repository.Store) error {
		return tx.WithinTx(context.Background(), func(nested repository.Store) error {
			inner = nested
			return nil
		})
	})
	require.NoError(t, err)
	assert.NotSame(t, store, inner)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_WithinTx_BeginError(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

	err := store.WithinTx(context.Background(), func(repository.Store) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "begin transaction")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSchoolRepository_Delete_CascadesAndCounts(t *testing.T) {
	store, mock := newTestStore(t)
	now := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT").
		WithArgs("school-001").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "name", "address", "phone", "email", "delivery_type", "password",
			"director_name", "director_email", "director_password_hash",
			"is_active", "created_at", "updated_at",
		}).AddRow(
			"school-001", "Atatürk İlkokulu", "", "", "", "SCHOOL_DELIVERY", "ATA2026",
			"", "", "", true, now, now,
		))
	mock.ExpectExec("DELETE FROM cancel_requests").WithArgs("school-001").WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec("DELETE FROM orders").WithArgs("school-001").WillReturnResult(pgxmock.NewResult("DELETE", 5))
	mock.ExpectExec("DELETE FROM school_payments").WithArgs("school-001").WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectExec("DELETE FROM classes").WithArgs("school-001").WillReturnResult(pgxmock.NewResult("DELETE", 3))
	mock.ExpectExec("DELETE FROM schools").WithArgs("school-001").WillReturnResult(pgxmock.NewResult("DELETE", 1))

	got, err := store.Schools().Delete(context.Background(), "school-001")
	require.NoError(t, err)
	assert.Equal(t, domain.CascadeDeleteDetails{
		Name:           "Atatürk İlkokulu",
		Classes:        3,
		Orders:         5,
		CancelRequests: 1,
		Payments:       2,
	}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPackageRepository_GetByID_LoadsItems(t *testing.T) {
	store, mock := newTestStore(t)
	now := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT").
		WithArgs("package-001").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "name", "description", "note", "price", "is_active", "created_at", "updated_at",
		}).AddRow("package-001", "1. Sınıf Paketi", "", "", "450.00", true, now, now))
	mock.ExpectQuery("FROM package_items").
		WithArgs([]string{"package-001"}).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "package_id", "name", "quantity", "unit_price", "position",
		}).
			AddRow("item-1", "package-001", "Defter", 10, "12.50", 0).
			AddRow("item-2", "package-001", "Kalem", 5, "4.00", 1))

	got, err := store.Packages().GetByID(context.Background(), "package-001")
	require.NoError(t, err)
	assert.True(t, got.Price.Equal(decimal.RequireFromString("450")))
	require.Len(t, got.Items, 2)
	assert.Equal(t, "Defter", got.Items[0].Name)
	assert.Equal(t, 10, got.Items[0].Quantity)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDiscountRepository_GetByCode_NullableColumns(t *testing.T) {
	store, mock := newTestStore(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	maxDiscount := "100.00"
	limit := 50

	mock.ExpectQuery("SELECT").
		WithArgs("YILBASI20").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "code", "type", "value", "min_amount", "max_discount",
			"valid_from", "valid_until", "usage_limit", "used_count", "is_active", "created_at", "updated_at",
		}).AddRow(
			"discount-001", "YILBASI20", "PERCENTAGE", "20.00", nil, &maxDiscount,
			now, now.AddDate(1, 0, 0), &limit, 3, true, now, now,
		))

	got, err := store.Discounts().GetByCode(context.Background(), "YILBASI20")
	require.NoError(t, err)
	assert.Equal(t, domain.DiscountPercentage, got.Type)
	assert.False(t, got.MinAmount.Valid)
	require.True(t, got.MaxDiscount.Valid)
	assert.True(t, got.MaxDiscount.Decimal.Equal(decimal.RequireFromString("100")))
	require.NotNil(t, got.UsageLimit)
	assert.Equal(t, 50, *got.UsageLimit)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelRequestRepository_Create_Duplicate(t *testing.T) {
	store, mock := newTestStore(t)
	now := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	req := &domain.CancelRequest{
		ID: "cr-001", OrderID: "order-001", Reason: "Yanlış sınıf", Status: domain.CancelPending, CreatedAt: now,
	}

	mock.ExpectExec("INSERT INTO cancel_requests").
		WillReturnError(uniqueViolation("cancel_requests_order_id_key"))

	err := store.CancelRequests().Create(context.Background(), req)
	assert.ErrorIs(t, err, repository.ErrDuplicateCancelRequest)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSystemLogRepository_AppendAndList(t *testing.T) {
	store, mock := newTestStore(t)
	now := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	entry := &domain.SystemLog{
		ID:        "log-001",
		UserID:    "admin",
		UserType:  domain.ActorAdmin,
		Action:    domain.ActionStatusChange,
		Entity:    domain.EntityOrder,
		EntityID:  "order-001",
		Details:   &domain.StatusChangeDetails{OrderNumber: "ORD-2026-00001", From: domain.StatusNew, To: domain.StatusPaid},
		CreatedAt: now,
	}
	payload, err := domain.MarshalDetails(entry.Details)
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO system_logs").
		WithArgs("log-001", "admin", "ADMIN", "STATUS_CHANGE", domain.EntityOrder, "order-001", payload, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, store.Logs().Append(context.Background(), entry))

	mock.ExpectQuery(regexp.QuoteMeta("FROM system_logs")).
		WithArgs(domain.EntityOrder, "order-001", 50, 0).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "user_id", "user_type", "action", "entity", "entity_id", "details", "created_at", "count",
		}).AddRow("log-001", "admin", "ADMIN", "STATUS_CHANGE", domain.EntityOrder, "order-001", payload, now, 1))

	logs, total, err := store.Logs().List(context.Background(), repository.LogFilter{
		Entity:   domain.EntityOrder,
		EntityID: "order-001",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, logs, 1)
	assert.Equal(t, entry.Details, logs[0].Details)
	assert.NoError(t, mock.ExpectationsWereMet())
}
