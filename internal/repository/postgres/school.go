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

const schoolColumns = `
	id, name, address, phone, email, delivery_type, password,
	director_name, COALESCE(director_email, ''), director_password_hash,
	is_active, created_at, updated_at`

// SchoolRepository implements repository.SchoolRepository using PostgreSQL.
type SchoolRepository struct {
	db database.DBTX
}

func scanSchool(row rowScanner) (*domain.School, error) {
	var (
		s            domain.School
		deliveryType string
	)
	err := row.Scan(
		&s.ID, &s.Name, &s.Address, &s.Phone, &s.Email, &deliveryType, &s.Password,
		&s.DirectorName, &s.DirectorEmail, &s.DirectorPasswordHash,
		&s.IsActive, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.DeliveryType = domain.DeliveryType(deliveryType)
	return &s, nil
}

func mapSchoolWriteError(err error, directorEmail string) error {
	constraint, ok := database.IsUniqueViolation(err)
	if !ok {
		return err
	}
	switch constraint {
	case "schools_active_password_key":
		return repository.ErrDuplicateSchoolPassword
	case "schools_director_email_key":
		return apperrors.AlreadyExists("school", "director email", directorEmail)
	}
	return err
}

// Create inserts a new school.
func (r *SchoolRepository) Create(ctx context.Context, s *domain.School) error {
	query := `
		INSERT INTO schools (
			id, name, address, phone, email, delivery_type, password,
			director_name, director_email, director_password_hash,
			is_active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := r.db.Exec(ctx, query,
		s.ID, s.Name, s.Address, s.Phone, s.Email, string(s.DeliveryType), s.Password,
		s.DirectorName, nullString(strings.ToLower(s.DirectorEmail)), s.DirectorPasswordHash,
		s.IsActive, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return mapSchoolWriteError(err, s.DirectorEmail)
	}
	return nil
}

// GetByID retrieves a school by its ID.
func (r *SchoolRepository) GetByID(ctx context.Context, id string) (*domain.School, error) {
	query := `SELECT ` + schoolColumns + ` FROM schools WHERE id = $1`

	s, err := scanSchool(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "school", id)
	}
	return s, nil
}

// GetActiveByPassword finds the active school whose password matches.
func (r *SchoolRepository) GetActiveByPassword(ctx context.Context, password string) (*domain.School, error) {
	query := `SELECT ` + schoolColumns + ` FROM schools WHERE password = $1 AND is_active`

	s, err := scanSchool(r.db.QueryRow(ctx, query, password))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get school by password: %w", err)
	}
	return s, nil
}

// GetByDirectorEmail finds the school whose director logs in with email.
func (r *SchoolRepository) GetByDirectorEmail(ctx context.Context, email string) (*domain.School, error) {
	query := `SELECT ` + schoolColumns + ` FROM schools WHERE lower(director_email) = lower($1)`

	s, err := scanSchool(r.db.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get school by director email: %w", err)
	}
	return s, nil
}

// List returns schools ordered by name.
func (r *SchoolRepository) List(ctx context.Context, includeInactive bool) ([]domain.School, error) {
	query := `SELECT ` + schoolColumns + ` FROM schools WHERE ($1 OR is_active) ORDER BY name`

	rows, err := r.db.Query(ctx, query, includeInactive)
	if err != nil {
		return nil, fmt.Errorf("list schools: %w", err)
	}
	defer rows.Close()

	schools := make([]domain.School, 0)
	for rows.Next() {
		s, err := scanSchool(rows)
		if err != nil {
			return nil, fmt.Errorf("scan school row: %w", err)
		}
		schools = append(schools, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate school rows: %w", err)
	}
	return schools, nil
}

// Update writes all mutable columns of s.
func (r *SchoolRepository) Update(ctx context.Context, s *domain.School) error {
	query := `
		UPDATE schools SET
			name = $2, address = $3, phone = $4, email = $5, delivery_type = $6, password = $7,
			director_name = $8, director_email = $9, director_password_hash = $10,
			is_active = $11, updated_at = $12
		WHERE id = $1`

	ct, err := r.db.Exec(ctx, query,
		s.ID, s.Name, s.Address, s.Phone, s.Email, string(s.DeliveryType), s.Password,
		s.DirectorName, nullString(strings.ToLower(s.DirectorEmail)), s.DirectorPasswordHash,
		s.IsActive, s.UpdatedAt,
	)
	if err != nil {
		return mapSchoolWriteError(err, s.DirectorEmail)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("school", s.ID)
	}
	return nil
}

// Delete removes the school with its classes, orders, cancel requests and
// payouts. It must run inside a transaction.
func (r *SchoolRepository) Delete(ctx context.Context, id string) (domain.CascadeDeleteDetails, error) {
	s, err := r.GetByID(ctx, id)
	if err != nil {
		return domain.CascadeDeleteDetails{}, err
	}
	details := domain.CascadeDeleteDetails{Name: s.Name}

	steps := []struct {
		query string
		count *int
	}{
		{`DELETE FROM cancel_requests WHERE order_id IN (SELECT id FROM orders WHERE school_id = $1)`, &details.CancelRequests},
		{`DELETE FROM orders WHERE school_id = $1`, &details.Orders},
		{`DELETE FROM school_payments WHERE school_id = $1`, &details.Payments},
		{`DELETE FROM classes WHERE school_id = $1`, &details.Classes},
	}
	for _, step := range steps {
		ct, err := r.db.Exec(ctx, step.query, id)
		if err != nil {
			return domain.CascadeDeleteDetails{}, fmt.Errorf("delete school %s: %w", id, err)
		}
		*step.count = int(ct.RowsAffected())
	}

	if _, err := r.db.Exec(ctx, `DELETE FROM schools WHERE id = $1`, id); err != nil {
		return domain.CascadeDeleteDetails{}, fmt.Errorf("delete school %s: %w", id, err)
	}
	return details, nil
}
