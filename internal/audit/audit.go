// Package audit writes SystemLog entries.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/domain"
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/repository"
	"github.com/FirudinMustafa/OkulTedarik-sub000/pkg/logger"
)

// Entry is one audit record before it is stamped with id, actor and time.
type Entry struct {
	Action   domain.AuditAction
	Entity   string
	EntityID string
	Details  domain.AuditDetails
}

// Logger appends audit entries through the repository it is given, so an
// entry written inside a transaction commits or rolls back with it.
type Logger struct {
	now    func() time.Time
	logger *slog.Logger
}

// NewLogger creates an audit Logger.
func NewLogger(logger *slog.Logger) *Logger {
	return &Logger{
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger,
	}
}

// Record appends e attributed to actor.
func (l *Logger) Record(ctx context.Context, logs repository.SystemLogRepository, actor domain.Actor, e Entry) error {
	entry := &domain.SystemLog{
		ID:        uuid.New().String(),
		UserID:    actor.ID,
		UserType:  actor.Type,
		Action:    e.Action,
		Entity:    e.Entity,
		EntityID:  e.EntityID,
		Details:   e.Details,
		CreatedAt: l.now(),
	}
	if err := logs.Append(ctx, entry); err != nil {
		return fmt.Errorf("append audit %s %s: %w", e.Action, e.Entity, err)
	}
	return nil
}

// RecordBestEffort appends e outside of any unit of work. A failure is
// logged and otherwise ignored.
func (l *Logger) RecordBestEffort(ctx context.Context, logs repository.SystemLogRepository, actor domain.Actor, e Entry) {
	if err := l.Record(ctx, logs, actor, e); err != nil {
		logger.WithContext(ctx, l.logger).WarnContext(ctx, "audit entry dropped",
			slog.String("action", string(e.Action)),
			slog.String("entity", e.Entity),
			slog.String("entity_id", e.EntityID),
			slog.String("error", err.Error()),
		)
	}
}
