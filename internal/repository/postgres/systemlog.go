package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/domain"
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/repository"
	"github.com/FirudinMustafa/OkulTedarik-sub000/pkg/database"
)

// SystemLogRepository implements repository.SystemLogRepository using
// PostgreSQL. Details are stored as a JSONB envelope.
type SystemLogRepository struct {
	db database.DBTX
}

// Append inserts an audit entry.
func (r *SystemLogRepository) Append(ctx context.Context, l *domain.SystemLog) error {
	details, err := domain.MarshalDetails(l.Details)
	if err != nil {
		return fmt.Errorf("marshal audit details: %w", err)
	}

	query := `
		INSERT INTO system_logs (id, user_id, user_type, action, entity, entity_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	if _, err := r.db.Exec(ctx, query,
		l.ID, l.UserID, string(l.UserType), string(l.Action), l.Entity, l.EntityID, details, l.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert system log: %w", err)
	}
	return nil
}

// List returns audit entries matching the filter, newest first, with the
// total count.
func (r *SystemLogRepository) List(ctx context.Context, filter repository.LogFilter) ([]domain.SystemLog, int, error) {
	var (
		conditions []string
		args       []any
	)
	if filter.Entity != "" {
		args = append(args, filter.Entity)
		conditions = append(conditions, fmt.Sprintf("entity = $%d", len(args)))
	}
	if filter.EntityID != "" {
		args = append(args, filter.EntityID)
		conditions = append(conditions, fmt.Sprintf("entity_id = $%d", len(args)))
	}
	if filter.Action != "" {
		args = append(args, string(filter.Action))
		conditions = append(conditions, fmt.Sprintf("action = $%d", len(args)))
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	limit := filter.PerPage
	if limit <= 0 {
		limit = 50
	}
	offset := 0
	if filter.Page > 1 {
		offset = (filter.Page - 1) * limit
	}
	args = append(args, limit, offset)

	query := fmt.Sprintf(`
		SELECT id, user_id, user_type, action, entity, entity_id, details, created_at, count(*) OVER()
		FROM system_logs
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, whereClause, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list system logs: %w", err)
	}
	defer rows.Close()

	var total int
	logs := make([]domain.SystemLog, 0)
	for rows.Next() {
		var (
			l                domain.SystemLog
			userType, action string
			details          []byte
		)
		if err := rows.Scan(&l.ID, &l.UserID, &userType, &action, &l.Entity, &l.EntityID, &details, &l.CreatedAt, &total); err != nil {
			return nil, 0, fmt.Errorf("scan system log row: %w", err)
		}
		l.UserType = domain.ActorType(userType)
		l.Action = domain.AuditAction(action)
		if l.Details, err = domain.UnmarshalDetails(details); err != nil {
			return nil, 0, fmt.Errorf("decode audit details: %w", err)
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate system log rows: %w", err)
	}
	return logs, total, nil
}
