package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/domain"
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/repository"
	"github.com/FirudinMustafa/OkulTedarik-sub000/pkg/database"
	apperrors "github.com/FirudinMustafa/OkulTedarik-sub000/pkg/errors"
)

const orderColumns = `
	id, order_number, school_id, class_id, package_id,
	parent_name, student_name, student_section, phone, email,
	address_line, district, city,
	is_corporate_invoice, company_title, tax_number, tax_office,
	total_amount::text, discount_code, discount_amount::text,
	status, payment_method, payment_id, COALESCE(payment_token, ''), payment_url, paid_at,
	COALESCE(invoice_no, ''), invoice_date, invoice_pdf_path,
	tracking_no, shipped_at, delivered_at, COALESCE(delivery_document_no, ''),
	notes, created_at, updated_at`

// Unique constraints the order repository translates into domain errors.
const (
	constraintOrderNumber   = "orders_order_number_key"
	constraintInvoiceNo     = "orders_invoice_no_key"
	constraintDeliveryDocNo = "orders_delivery_document_no_key"
	constraintActiveStudent = "orders_active_student_key"
)

// OrderRepository implements repository.OrderRepository using PostgreSQL.
type OrderRepository struct {
	db database.DBTX
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(db database.DBTX) *OrderRepository {
	return &OrderRepository{db: db}
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		o                     domain.Order
		total, discount       string
		status, paymentMethod string
	)

	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.SchoolID, &o.ClassID, &o.PackageID,
		&o.ParentName, &o.StudentName, &o.StudentSection, &o.Phone, &o.Email,
		&o.Address.Line, &o.Address.District, &o.Address.City,
		&o.IsCorporate, &o.CompanyTitle, &o.TaxNumber, &o.TaxOffice,
		&total, &o.DiscountCode, &discount,
		&status, &paymentMethod, &o.PaymentID, &o.PaymentToken, &o.PaymentURL, &o.PaidAt,
		&o.InvoiceNo, &o.InvoiceDate, &o.InvoicePDFPath,
		&o.TrackingNo, &o.ShippedAt, &o.DeliveredAt, &o.DeliveryDocumentNo,
		&o.Notes, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if o.TotalAmount, err = parseMoney(total); err != nil {
		return nil, err
	}
	if o.DiscountAmount, err = parseMoney(discount); err != nil {
		return nil, err
	}
	o.Status = domain.OrderStatus(status)
	o.PaymentMethod = domain.PaymentMethod(paymentMethod)
	return &o, nil
}

// mapOrderWriteError translates unique violations on orders.
func mapOrderWriteError(err error) error {
	constraint, ok := database.IsUniqueViolation(err)
	if !ok {
		return err
	}
	switch constraint {
	case constraintOrderNumber, constraintInvoiceNo, constraintDeliveryDocNo:
		return fmt.Errorf("%s: %w", constraint, repository.ErrDuplicateNumber)
	case constraintActiveStudent:
		return repository.ErrDuplicateStudent
	}
	return err
}

// Create inserts a new order.
func (r *OrderRepository) Create(ctx context.Context, o *domain.Order) (err error) {
	query := `
		INSERT INTO orders (
			id, order_number, school_id, class_id, package_id,
			parent_name, student_name, student_section, phone, email,
			address_line, district, city,
			is_corporate_invoice, company_title, tax_number, tax_office,
			total_amount, discount_code, discount_amount,
			status, payment_method, payment_token, payment_url,
			notes, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27
		)`

	ctx, end := database.TraceQuery(ctx, "CreateOrder", query)
	defer func() { end(err) }()

	_, err = r.db.Exec(ctx, query,
		o.ID, o.OrderNumber, o.SchoolID, o.ClassID, o.PackageID,
		o.ParentName, o.StudentName, o.StudentSection, o.Phone, o.Email,
		o.Address.Line, o.Address.District, o.Address.City,
		o.IsCorporate, o.CompanyTitle, o.TaxNumber, o.TaxOffice,
		moneyArg(o.TotalAmount), o.DiscountCode, moneyArg(o.DiscountAmount),
		string(o.Status), string(o.PaymentMethod), nullString(o.PaymentToken), o.PaymentURL,
		o.Notes, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return mapOrderWriteError(err)
	}
	return nil
}

func (r *OrderRepository) getOne(ctx context.Context, op, where string, arg any) (o *domain.Order, err error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE ` + where

	ctx, end := database.TraceQuery(ctx, op, query)
	defer func() {
		if errors.Is(err, pgx.ErrNoRows) {
			end(nil)
			return
		}
		end(err)
	}()

	return scanOrder(r.db.QueryRow(ctx, query, arg))
}

// GetByID retrieves an order by its ID.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	o, err := r.getOne(ctx, "GetOrder", "id = $1", id)
	if err != nil {
		return nil, notFound(err, "order", id)
	}
	return o, nil
}

// GetByIDForUpdate retrieves an order and locks its row until the surrounding
// transaction ends.
func (r *OrderRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Order, error) {
	o, err := r.getOne(ctx, "GetOrderForUpdate", "id = $1 FOR UPDATE", id)
	if err != nil {
		return nil, notFound(err, "order", id)
	}
	return o, nil
}

// GetByNumber retrieves an order by its order number.
func (r *OrderRepository) GetByNumber(ctx context.Context, orderNumber string) (*domain.Order, error) {
	o, err := r.getOne(ctx, "GetOrderByNumber", "order_number = $1", orderNumber)
	if err != nil {
		return nil, notFound(err, "order", orderNumber)
	}
	return o, nil
}

// GetByPaymentToken retrieves the order a payment session belongs to.
func (r *OrderRepository) GetByPaymentToken(ctx context.Context, token string) (*domain.Order, error) {
	o, err := r.getOne(ctx, "GetOrderByPaymentToken", "payment_token = $1", token)
	if err != nil {
		return nil, notFound(err, "payment session", token)
	}
	return o, nil
}

// FindBlockingForStudent returns the live order of the student in the class.
func (r *OrderRepository) FindBlockingForStudent(ctx context.Context, classID, studentName string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + `
		FROM orders
		WHERE class_id = $1 AND lower(student_name) = lower($2)
		  AND status NOT IN ('CANCELLED', 'REFUNDED')
		LIMIT 1`

	o, err := scanOrder(r.db.QueryRow(ctx, query, classID, strings.TrimSpace(studentName)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("find student order: %w", err)
	}
	return o, nil
}

// ListByIDs returns the orders among ids whose status is in statuses,
// keeping the order of ids.
func (r *OrderRepository) ListByIDs(ctx context.Context, ids []string, statuses []domain.OrderStatus) ([]domain.Order, error) {
	if len(ids) == 0 || len(statuses) == 0 {
		return []domain.Order{}, nil
	}

	st := make([]string, len(statuses))
	for i, s := range statuses {
		st[i] = string(s)
	}

	query := `SELECT ` + orderColumns + `
		FROM orders
		WHERE id = ANY($1::uuid[]) AND status = ANY($2)
		ORDER BY array_position($1::uuid[], id)`

	rows, err := r.db.Query(ctx, query, ids, st)
	if err != nil {
		return nil, fmt.Errorf("list orders by ids: %w", err)
	}
	defer rows.Close()

	return collectOrders(rows)
}

func collectOrders(rows pgx.Rows) ([]domain.Order, error) {
	orders := make([]domain.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}
	return orders, nil
}

// List returns orders matching the filter along with the total count.
func (r *OrderRepository) List(ctx context.Context, filter repository.OrderFilter) ([]domain.Order, int, error) {
	var (
		conditions []string
		args       []any
		argIndex   = 1
	)

	add := func(cond string, arg any) {
		conditions = append(conditions, fmt.Sprintf(cond, argIndex))
		args = append(args, arg)
		argIndex++
	}

	if filter.SchoolID != "" {
		add("school_id = $%d", filter.SchoolID)
	}
	if filter.ClassID != "" {
		add("class_id = $%d", filter.ClassID)
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf(
			"(order_number ILIKE $%[1]d OR parent_name ILIKE $%[1]d OR student_name ILIKE $%[1]d OR phone ILIKE $%[1]d)",
			argIndex))
		args = append(args, "%"+filter.Search+"%")
		argIndex++
	}
	if filter.From != nil {
		add("created_at >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("created_at < $%d", *filter.To)
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	limit := filter.PerPage
	if limit <= 0 {
		limit = 20
	}
	offset := 0
	if filter.Page > 1 {
		offset = (filter.Page - 1) * limit
	}

	query := fmt.Sprintf(`
		SELECT %s, count(*) OVER() AS total_count
		FROM orders
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		orderColumns, whereClause, argIndex, argIndex+1,
	)
	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var total int
	orders := make([]domain.Order, 0)
	for rows.Next() {
		o, err := scanOrder(countingScanner{rows, &total})
		if err != nil {
			return nil, 0, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate order rows: %w", err)
	}
	return orders, total, nil
}

// countingScanner appends a trailing count(*) OVER() column to a scan.
type countingScanner struct {
	row   rowScanner
	total *int
}

func (c countingScanner) Scan(dest ...any) error {
	return c.row.Scan(append(dest, c.total)...)
}

// Update writes all mutable columns of o.
func (r *OrderRepository) Update(ctx context.Context, o *domain.Order) (err error) {
	query := `
		UPDATE orders SET
			parent_name = $2, student_name = $3, student_section = $4, phone = $5, email = $6,
			address_line = $7, district = $8, city = $9,
			is_corporate_invoice = $10, company_title = $11, tax_number = $12, tax_office = $13,
			status = $14, payment_id = $15, payment_token = $16, payment_url = $17, paid_at = $18,
			invoice_no = $19, invoice_date = $20, invoice_pdf_path = $21,
			tracking_no = $22, shipped_at = $23, delivered_at = $24, delivery_document_no = $25,
			notes = $26, updated_at = $27
		WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "UpdateOrder", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query,
		o.ID,
		o.ParentName, o.StudentName, o.StudentSection, o.Phone, o.Email,
		o.Address.Line, o.Address.District, o.Address.City,
		o.IsCorporate, o.CompanyTitle, o.TaxNumber, o.TaxOffice,
		string(o.Status), o.PaymentID, nullString(o.PaymentToken), o.PaymentURL, o.PaidAt,
		nullString(o.InvoiceNo), o.InvoiceDate, o.InvoicePDFPath,
		o.TrackingNo, o.ShippedAt, o.DeliveredAt, nullString(o.DeliveryDocumentNo),
		o.Notes, o.UpdatedAt,
	)
	if err != nil {
		return mapOrderWriteError(err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("order", o.ID)
	}
	return nil
}

var numberColumns = map[domain.NumberField]string{
	domain.FieldOrderNumber:        "order_number",
	domain.FieldInvoiceNo:          "invoice_no",
	domain.FieldDeliveryDocumentNo: "delivery_document_no",
}

// MaxWithPrefix returns the greatest value of field made of prefix followed
// by digits only. Longer suffixes rank higher so a sequence that outgrows its
// padding keeps increasing.
func (r *OrderRepository) MaxWithPrefix(ctx context.Context, field domain.NumberField, prefix string) (string, error) {
	column, ok := numberColumns[field]
	if !ok {
		return "", fmt.Errorf("unknown number field %q", field)
	}

	query := fmt.Sprintf(`
		SELECT %[1]s FROM orders
		WHERE %[1]s LIKE $1 || '%%' AND substring(%[1]s from length($1) + 1) ~ '^[0-9]+$'
		ORDER BY length(%[1]s) DESC, %[1]s DESC
		LIMIT 1`, column)

	var value string
	if err := r.db.QueryRow(ctx, query, prefix).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("max %s: %w", column, err)
	}
	return value, nil
}

// RecognizedStatsByClass counts revenue-recognized orders and sums their
// totals per class of the school.
func (r *OrderRepository) RecognizedStatsByClass(ctx context.Context, schoolID string) (map[string]domain.ClassOrderStats, error) {
	statuses := domain.RevenueRecognizedStatuses()
	st := make([]string, len(statuses))
	for i, s := range statuses {
		st[i] = string(s)
	}

	query := `
		SELECT class_id, count(*), COALESCE(SUM(total_amount), 0)::text
		FROM orders
		WHERE school_id = $1 AND status = ANY($2)
		GROUP BY class_id`

	rows, err := r.db.Query(ctx, query, schoolID, st)
	if err != nil {
		return nil, fmt.Errorf("order stats by class: %w", err)
	}
	defer rows.Close()

	out := make(map[string]domain.ClassOrderStats)
	for rows.Next() {
		var (
			s       domain.ClassOrderStats
			revenue string
		)
		if err := rows.Scan(&s.ClassID, &s.Count, &revenue); err != nil {
			return nil, fmt.Errorf("scan class stats: %w", err)
		}
		if s.Revenue, err = parseMoney(revenue); err != nil {
			return nil, err
		}
		out[s.ClassID] = s
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate class stats: %w", err)
	}
	return out, nil
}

// CountByStatus counts orders per status, optionally for one school.
func (r *OrderRepository) CountByStatus(ctx context.Context, schoolID string) ([]repository.StatusCount, error) {
	query := `
		SELECT status, count(*)
		FROM orders
		WHERE ($1 = '' OR school_id::text = $1)
		GROUP BY status
		ORDER BY status`

	rows, err := r.db.Query(ctx, query, schoolID)
	if err != nil {
		return nil, fmt.Errorf("count orders by status: %w", err)
	}
	defer rows.Close()

	out := make([]repository.StatusCount, 0)
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		out = append(out, repository.StatusCount{Status: domain.OrderStatus(status), Count: count})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status counts: %w", err)
	}
	return out, nil
}

// CountByClass counts all orders of a class regardless of status.
func (r *OrderRepository) CountByClass(ctx context.Context, classID string) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM orders WHERE class_id = $1`, classID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count class orders: %w", err)
	}
	return n, nil
}
