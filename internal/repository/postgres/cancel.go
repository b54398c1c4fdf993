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

const cancelColumns = `id, order_id, reason, status, admin_note, processed_at, created_at`

// CancelRequestRepository implements repository.CancelRequestRepository
// using PostgreSQL.
type CancelRequestRepository struct {
	db database.DBTX
}

func scanCancelRequest(row rowScanner) (*domain.CancelRequest, error) {
	var (
		c      domain.CancelRequest
		status string
	)
	if err := row.Scan(&c.ID, &c.OrderID, &c.Reason, &status, &c.AdminNote, &c.ProcessedAt, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.Status = domain.CancelStatus(status)
	return &c, nil
}

// Create inserts a new cancel request.
func (r *CancelRequestRepository) Create(ctx context.Context, c *domain.CancelRequest) error {
	query := `
		INSERT INTO cancel_requests (id, order_id, reason, status, admin_note, processed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.Exec(ctx, query,
		c.ID, c.OrderID, c.Reason, string(c.Status), c.AdminNote, c.ProcessedAt, c.CreatedAt,
	)
	if err != nil {
		if _, ok := database.IsUniqueViolation(err); ok {
			return repository.ErrDuplicateCancelRequest
		}
		return fmt.Errorf("insert cancel request: %w", err)
	}
	return nil
}

// GetByID retrieves a cancel request by its ID.
func (r *CancelRequestRepository) GetByID(ctx context.Context, id string) (*domain.CancelRequest, error) {
	query := `SELECT ` + cancelColumns + ` FROM cancel_requests WHERE id = $1`

	c, err := scanCancelRequest(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "cancel request", id)
	}
	return c, nil
}

// GetByOrderID retrieves the cancel request of an order, or
// apperrors.ErrNotFound.
func (r *CancelRequestRepository) GetByOrderID(ctx context.Context, orderID string) (*domain.CancelRequest, error) {
	query := `SELECT ` + cancelColumns + ` FROM cancel_requests WHERE order_id = $1`

	c, err := scanCancelRequest(r.db.QueryRow(ctx, query, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get cancel request by order: %w", err)
	}
	return c, nil
}

// List returns cancel requests, newest first. An empty status lists all.
func (r *CancelRequestRepository) List(ctx context.Context, status domain.CancelStatus) ([]domain.CancelRequest, error) {
	query := `SELECT ` + cancelColumns + ` FROM cancel_requests
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, string(status))
	if err != nil {
		return nil, fmt.Errorf("list cancel requests: %w", err)
	}
	defer rows.Close()

	out := make([]domain.CancelRequest, 0)
	for rows.Next() {
		c, err := scanCancelRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan cancel request row: %w", err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cancel request rows: %w", err)
	}
	return out, nil
}

// Update writes the decision fields of c.
func (r *CancelRequestRepository) Update(ctx context.Context, c *domain.CancelRequest) error {
	query := `UPDATE cancel_requests SET status = $2, admin_note = $3, processed_at = $4 WHERE id = $1`

	ct, err := r.db.Exec(ctx, query, c.ID, string(c.Status), c.AdminNote, c.ProcessedAt)
	if err != nil {
		return fmt.Errorf("update cancel request: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("cancel request", c.ID)
	}
	return nil
}

// Delete removes a cancel request.
func (r *CancelRequestRepository) Delete(ctx context.Context, id string) error {
	ct, err := r.db.Exec(ctx, `DELETE FROM cancel_requests WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete cancel request %s: %w", id, err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("cancel request", id)
	}
	return nil
}
