package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/audit"
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/domain"
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/repository"
	apperrors "github.com/FirudinMustafa/OkulTedarik-sub000/pkg/errors"
	"github.com/FirudinMustafa/OkulTedarik-sub000/pkg/logger"
)

// CommissionService computes commission statements and records payouts.
// Statements are derived from orders on every call; nothing is cached.
type CommissionService struct {
	store  repository.Store
	audit  *audit.Logger
	logger *slog.Logger
	now    func() time.Time
}

// NewCommissionService creates a new commission service.
func NewCommissionService(store repository.Store, auditLog *audit.Logger, logger *slog.Logger) *CommissionService {
	return &CommissionService{store: store, audit: auditLog, logger: logger, now: utcNow}
}

// Statement returns the commission statement of a school. Directors may
// only read their own school.
func (s *CommissionService) Statement(ctx context.Context, actor domain.Actor, schoolID string) (*domain.CommissionStatement, error) {
	if actor.Type != domain.ActorAdmin && actor.Type != domain.ActorDirector {
		return nil, apperrors.Forbidden("commission statements require an administrator or director")
	}
	if err := requireSchoolAccess(actor, schoolID); err != nil {
		return nil, err
	}

	school, err := s.store.Schools().GetByID(ctx, schoolID)
	if err != nil {
		return nil, fmt.Errorf("get school for statement: %w", err)
	}
	return s.statement(ctx, school)
}

// Overview returns the statements of all schools, inactive ones included.
func (s *CommissionService) Overview(ctx context.Context, actor domain.Actor) ([]domain.CommissionStatement, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	schools, err := s.store.Schools().List(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("list schools for overview: %w", err)
	}

	out := make([]domain.CommissionStatement, 0, len(schools))
	for i := range schools {
		st, err := s.statement(ctx, &schools[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *st)
	}
	return out, nil
}

func (s *CommissionService) statement(ctx context.Context, school *domain.School) (*domain.CommissionStatement, error) {
	classes, err := s.store.Classes().ListBySchool(ctx, school.ID)
	if err != nil {
		return nil, fmt.Errorf("list classes for statement: %w", err)
	}
	stats, err := s.store.Orders().RecognizedStatsByClass(ctx, school.ID)
	if err != nil {
		return nil, fmt.Errorf("aggregate orders for statement: %w", err)
	}
	payments, err := s.store.Payouts().ListBySchool(ctx, school.ID)
	if err != nil {
		return nil, fmt.Errorf("list payouts for statement: %w", err)
	}
	return domain.BuildCommissionStatement(school, classes, stats, payments), nil
}

// PayoutInput records a manual disbursement. Amount is not required to match
// the pending commission.
type PayoutInput struct {
	SchoolID string
	Amount   decimal.Decimal
	Note     string
}

// CreatePayout records a PENDING payout labelled with the current month.
func (s *CommissionService) CreatePayout(ctx context.Context, actor domain.Actor, in PayoutInput) (*domain.SchoolPayment, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if !in.Amount.IsPositive() {
		return nil, apperrors.InvalidInput("amount must be positive")
	}

	now := s.now()
	p := &domain.SchoolPayment{
		ID:          uuid.New().String(),
		SchoolID:    strings.TrimSpace(in.SchoolID),
		Amount:      in.Amount.Round(2),
		Period:      domain.PeriodLabel(now),
		Status:      domain.PayoutPending,
		PaymentDate: now,
		Note:        strings.TrimSpace(in.Note),
		CreatedAt:   now,
	}

	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		if _, err := tx.Schools().GetByID(ctx, p.SchoolID); err != nil {
			return err
		}
		if err := tx.Payouts().Create(ctx, p); err != nil {
			return fmt.Errorf("insert payout: %w", err)
		}
		return s.audit.Record(ctx, tx.Logs(), actor, payoutEntry(p))
	})
	if err != nil {
		return nil, fmt.Errorf("create payout: %w", err)
	}

	logger.WithContext(ctx, s.logger).InfoContext(ctx, "payout recorded",
		slog.String("payout_id", p.ID),
		slog.String("school_id", p.SchoolID),
		slog.String("amount", p.Amount.StringFixed(2)),
	)
	return p, nil
}

// MarkPayoutPaid completes a pending payout.
func (s *CommissionService) MarkPayoutPaid(ctx context.Context, actor domain.Actor, id string) (*domain.SchoolPayment, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	var paid *domain.SchoolPayment
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		p, err := tx.Payouts().GetByID(ctx, id)
		if err != nil {
			return err
		}
		if p.Status == domain.PayoutPaid {
			return apperrors.Conflict("payout is already paid")
		}
		now := s.now()
		p.Status = domain.PayoutPaid
		p.PaidAt = &now
		if err := tx.Payouts().Update(ctx, p); err != nil {
			return fmt.Errorf("update payout: %w", err)
		}
		paid = p
		return s.audit.Record(ctx, tx.Logs(), actor, payoutEntry(p))
	})
	if err != nil {
		return nil, fmt.Errorf("mark payout paid: %w", err)
	}
	return paid, nil
}

// ListPayouts returns the payouts of a school, newest first.
func (s *CommissionService) ListPayouts(ctx context.Context, actor domain.Actor, schoolID string) ([]domain.SchoolPayment, error) {
	if actor.Type != domain.ActorAdmin && actor.Type != domain.ActorDirector {
		return nil, apperrors.Forbidden("payouts require an administrator or director")
	}
	if err := requireSchoolAccess(actor, schoolID); err != nil {
		return nil, err
	}
	payouts, err := s.store.Payouts().ListBySchool(ctx, schoolID)
	if err != nil {
		return nil, fmt.Errorf("list payouts: %w", err)
	}
	return payouts, nil
}

func payoutEntry(p *domain.SchoolPayment) audit.Entry {
	return audit.Entry{
		Action:   domain.ActionPayout,
		Entity:   domain.EntitySchoolPayment,
		EntityID: p.ID,
		Details: &domain.PayoutDetails{
			SchoolID: p.SchoolID,
			Amount:   p.Amount,
			Period:   p.Period,
			Status:   p.Status,
		},
	}
}
