package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/domain"
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/repository"
	"github.com/FirudinMustafa/OkulTedarik-sub000/pkg/database"
	apperrors "github.com/FirudinMustafa/OkulTedarik-sub000/pkg/errors"
)

const discountColumns = `
	id, code, type, value::text, min_amount::text, max_discount::text,
	valid_from, valid_until, usage_limit, used_count, is_active, created_at, updated_at`

// DiscountRepository implements repository.DiscountRepository using PostgreSQL.
type DiscountRepository struct {
	db database.DBTX
}

func scanDiscount(row rowScanner) (*domain.Discount, error) {
	var (
		d                      domain.Discount
		typ, value             string
		minAmount, maxDiscount *string
	)
	err := row.Scan(
		&d.ID, &d.Code, &typ, &value, &minAmount, &maxDiscount,
		&d.ValidFrom, &d.ValidUntil, &d.UsageLimit, &d.UsedCount, &d.IsActive, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	d.Type = domain.DiscountType(typ)
	if d.Value, err = parseMoney(value); err != nil {
		return nil, err
	}
	if d.MinAmount, err = parseNullMoney(minAmount); err != nil {
		return nil, err
	}
	if d.MaxDiscount, err = parseNullMoney(maxDiscount); err != nil {
		return nil, err
	}
	return &d, nil
}

func mapDiscountWriteError(err error) error {
	if _, ok := database.IsUniqueViolation(err); ok {
		return repository.ErrDuplicateDiscountCode
	}
	return err
}

// Create inserts a new discount.
func (r *DiscountRepository) Create(ctx context.Context, d *domain.Discount) error {
	query := `
		INSERT INTO discounts (
			id, code, type, value, min_amount, max_discount,
			valid_from, valid_until, usage_limit, used_count, is_active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := r.db.Exec(ctx, query,
		d.ID, d.Code, string(d.Type), moneyArg(d.Value), nullMoneyArg(d.MinAmount), nullMoneyArg(d.MaxDiscount),
		d.ValidFrom, d.ValidUntil, d.UsageLimit, d.UsedCount, d.IsActive, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return mapDiscountWriteError(err)
	}
	return nil
}

// GetByID retrieves a discount by its ID.
func (r *DiscountRepository) GetByID(ctx context.Context, id string) (*domain.Discount, error) {
	query := `SELECT ` + discountColumns + ` FROM discounts WHERE id = $1`

	d, err := scanDiscount(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "discount", id)
	}
	return d, nil
}

// GetByCode retrieves a discount by its normalized code.
func (r *DiscountRepository) GetByCode(ctx context.Context, code string) (*domain.Discount, error) {
	query := `SELECT ` + discountColumns + ` FROM discounts WHERE code = $1`

	d, err := scanDiscount(r.db.QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get discount by code: %w", err)
	}
	return d, nil
}

// List returns all discounts, newest first.
func (r *DiscountRepository) List(ctx context.Context) ([]domain.Discount, error) {
	query := `SELECT ` + discountColumns + ` FROM discounts ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list discounts: %w", err)
	}
	defer rows.Close()

	discounts := make([]domain.Discount, 0)
	for rows.Next() {
		d, err := scanDiscount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan discount row: %w", err)
		}
		discounts = append(discounts, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate discount rows: %w", err)
	}
	return discounts, nil
}

// Update writes the mutable columns of d. used_count is only changed by Redeem.
func (r *DiscountRepository) Update(ctx context.Context, d *domain.Discount) error {
	query := `
		UPDATE discounts SET
			code = $2, type = $3, value = $4, min_amount = $5, max_discount = $6,
			valid_from = $7, valid_until = $8, usage_limit = $9, is_active = $10, updated_at = $11
		WHERE id = $1`

	ct, err := r.db.Exec(ctx, query,
		d.ID, d.Code, string(d.Type), moneyArg(d.Value), nullMoneyArg(d.MinAmount), nullMoneyArg(d.MaxDiscount),
		d.ValidFrom, d.ValidUntil, d.UsageLimit, d.IsActive, d.UpdatedAt,
	)
	if err != nil {
		return mapDiscountWriteError(err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("discount", d.ID)
	}
	return nil
}

// Delete removes a discount. Orders keep the code they were placed with.
func (r *DiscountRepository) Delete(ctx context.Context, id string) error {
	ct, err := r.db.Exec(ctx, `DELETE FROM discounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete discount %s: %w", id, err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("discount", id)
	}
	return nil
}

// Redeem atomically consumes one use of the discount.
func (r *DiscountRepository) Redeem(ctx context.Context, id string) error {
	query := `
		UPDATE discounts SET used_count = used_count + 1, updated_at = now()
		WHERE id = $1 AND (usage_limit IS NULL OR used_count < usage_limit)`

	ct, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("redeem discount %s: %w", id, err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrDiscountExhausted
	}
	return nil
}
