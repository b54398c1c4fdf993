package postgres

import (
	"context"
	"fmt"

	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/domain"
	"github.com/FirudinMustafa/OkulTedarik-sub000/pkg/database"
	apperrors "github.com/FirudinMustafa/OkulTedarik-sub000/pkg/errors"
)

const payoutColumns = `id, school_id, amount::text, period, status, payment_date, paid_at, note, created_at`

// PayoutRepository implements repository.PayoutRepository using PostgreSQL.
type PayoutRepository struct {
	db database.DBTX
}

func scanPayout(row rowScanner) (*domain.SchoolPayment, error) {
	var (
		p              domain.SchoolPayment
		amount, status string
	)
	err := row.Scan(&p.ID, &p.SchoolID, &amount, &p.Period, &status, &p.PaymentDate, &p.PaidAt, &p.Note, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	if p.Amount, err = parseMoney(amount); err != nil {
		return nil, err
	}
	p.Status = domain.PayoutStatus(status)
	return &p, nil
}

// Create inserts a new payout.
func (r *PayoutRepository) Create(ctx context.Context, p *domain.SchoolPayment) error {
	query := `
		INSERT INTO school_payments (id, school_id, amount, period, status, payment_date, paid_at, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.Exec(ctx, query,
		p.ID, p.SchoolID, moneyArg(p.Amount), p.Period, string(p.Status), p.PaymentDate, p.PaidAt, p.Note, p.CreatedAt,
	)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return apperrors.NotFound("school", p.SchoolID)
		}
		return fmt.Errorf("insert payout: %w", err)
	}
	return nil
}

// GetByID retrieves a payout by its ID.
func (r *PayoutRepository) GetByID(ctx context.Context, id string) (*domain.SchoolPayment, error) {
	query := `SELECT ` + payoutColumns + ` FROM school_payments WHERE id = $1`

	p, err := scanPayout(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "payout", id)
	}
	return p, nil
}

// ListBySchool returns the payouts of a school, newest first.
func (r *PayoutRepository) ListBySchool(ctx context.Context, schoolID string) ([]domain.SchoolPayment, error) {
	query := `SELECT ` + payoutColumns + ` FROM school_payments WHERE school_id = $1 ORDER BY payment_date DESC`

	rows, err := r.db.Query(ctx, query, schoolID)
	if err != nil {
		return nil, fmt.Errorf("list payouts: %w", err)
	}
	defer rows.Close()

	out := make([]domain.SchoolPayment, 0)
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payout row: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payout rows: %w", err)
	}
	return out, nil
}

// Update writes the status fields of p.
func (r *PayoutRepository) Update(ctx context.Context, p *domain.SchoolPayment) error {
	query := `UPDATE school_payments SET status = $2, paid_at = $3, note = $4 WHERE id = $1`

	ct, err := r.db.Exec(ctx, query, p.ID, string(p.Status), p.PaidAt, p.Note)
	if err != nil {
		return fmt.Errorf("update payout: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("payout", p.ID)
	}
	return nil
}
