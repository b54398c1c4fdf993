package postgres

import (
	"context"
	"fmt"

	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/domain"
	"github.com/FirudinMustafa/OkulTedarik-sub000/pkg/database"
	apperrors "github.com/FirudinMustafa/OkulTedarik-sub000/pkg/errors"
)

const classColumns = `
	id, school_id, name, COALESCE(package_id::text, ''), commission_amount::text,
	is_active, created_at, updated_at`

// ClassRepository implements repository.ClassRepository using PostgreSQL.
type ClassRepository struct {
	db database.DBTX
}

func scanClass(row rowScanner) (*domain.Class, error) {
	var (
		c          domain.Class
		commission string
	)
	err := row.Scan(&c.ID, &c.SchoolID, &c.Name, &c.PackageID, &commission,
		&c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if c.CommissionAmount, err = parseMoney(commission); err != nil {
		return nil, err
	}
	return &c, nil
}

func mapClassWriteError(err error) error {
	if database.IsForeignKeyViolation(err) {
		return apperrors.InvalidInput("school or package does not exist")
	}
	return err
}

// Create inserts a new class.
func (r *ClassRepository) Create(ctx context.Context, c *domain.Class) error {
	query := `
		INSERT INTO classes (id, school_id, name, package_id, commission_amount, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.Exec(ctx, query,
		c.ID, c.SchoolID, c.Name, nullString(c.PackageID), moneyArg(c.CommissionAmount),
		c.IsActive, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return mapClassWriteError(err)
	}
	return nil
}

// GetByID retrieves a class by its ID.
func (r *ClassRepository) GetByID(ctx context.Context, id string) (*domain.Class, error) {
	query := `SELECT ` + classColumns + ` FROM classes WHERE id = $1`

	c, err := scanClass(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "class", id)
	}
	return c, nil
}

// ListBySchool returns the classes of a school ordered by name.
func (r *ClassRepository) ListBySchool(ctx context.Context, schoolID string) ([]domain.Class, error) {
	query := `SELECT ` + classColumns + ` FROM classes WHERE school_id = $1 ORDER BY name`

	rows, err := r.db.Query(ctx, query, schoolID)
	if err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	defer rows.Close()

	classes := make([]domain.Class, 0)
	for rows.Next() {
		c, err := scanClass(rows)
		if err != nil {
			return nil, fmt.Errorf("scan class row: %w", err)
		}
		classes = append(classes, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate class rows: %w", err)
	}
	return classes, nil
}

// Update writes all mutable columns of c.
func (r *ClassRepository) Update(ctx context.Context, c *domain.Class) error {
	query := `
		UPDATE classes SET name = $2, package_id = $3, commission_amount = $4, is_active = $5, updated_at = $6
		WHERE id = $1`

	ct, err := r.db.Exec(ctx, query,
		c.ID, c.Name, nullString(c.PackageID), moneyArg(c.CommissionAmount), c.IsActive, c.UpdatedAt,
	)
	if err != nil {
		return mapClassWriteError(err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("class", c.ID)
	}
	return nil
}

// Delete removes a class. A class that still has orders cannot be removed.
func (r *ClassRepository) Delete(ctx context.Context, id string) error {
	ct, err := r.db.Exec(ctx, `DELETE FROM classes WHERE id = $1`, id)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return apperrors.Conflict("class has orders and cannot be deleted")
		}
		return fmt.Errorf("delete class %s: %w", id, err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("class", id)
	}
	return nil
}
