package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/audit"
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/domain"
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/event"
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/provider"
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/repository"
	apperrors "github.com/FirudinMustafa/OkulTedarik-sub000/pkg/errors"
	"github.com/FirudinMustafa/OkulTedarik-sub000/pkg/logger"
)

const maxCancelReasonLength = 1000

// CancellationService handles parent cancellation requests and their review.
type CancellationService struct {
	store       repository.Store
	payment     provider.PaymentAdapter
	events      event.Publisher
	audit       *audit.Logger
	logger      *slog.Logger
	cancellable []domain.OrderStatus
	now         func() time.Time
}

// NewCancellationService creates a new cancellation service. cancellable is
// the set of order statuses a request may be submitted from; when empty the
// domain default applies.
func NewCancellationService(
	store repository.Store,
	payment provider.PaymentAdapter,
	events event.Publisher,
	auditLog *audit.Logger,
	logger *slog.Logger,
	cancellable []domain.OrderStatus,
) *CancellationService {
	if len(cancellable) == 0 {
		cancellable = domain.DefaultCancellableStatuses()
	}
	return &CancellationService{
		store:       store,
		payment:     payment,
		events:      events,
		audit:       auditLog,
		logger:      logger,
		cancellable: cancellable,
		now:         utcNow,
	}
}

// RequestCancellation files a cancellation request for an order. An order
// with a pending or approved request is rejected with a conflict; a rejected
// request is replaced by a fresh one.
func (s *CancellationService) RequestCancellation(ctx context.Context, actor domain.Actor, orderID, reason string) (*domain.CancelRequest, error) {
	if actor.Type != domain.ActorParent && actor.Type != domain.ActorAdmin {
		return nil, apperrors.Forbidden("only parents can request a cancellation")
	}
	reason = strings.TrimSpace(reason)
	switch {
	case reason == "":
		return nil, apperrors.InvalidInput("reason is required")
	case len(reason) > maxCancelReasonLength:
		return nil, apperrors.InvalidInput(fmt.Sprintf("reason must be at most %d characters", maxCancelReasonLength))
	}

	var req *domain.CancelRequest
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		o, err := tx.Orders().GetByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := requireSchoolAccess(actor, o.SchoolID); err != nil {
			return err
		}
		if !slices.Contains(s.cancellable, o.Status) {
			return apperrors.Conflict(fmt.Sprintf("orders in status %s cannot be cancelled", o.Status)).
				WithDetail("currentStatus", string(o.Status))
		}

		resubmitted := false
		existing, err := tx.CancelRequests().GetByOrderID(ctx, o.ID)
		switch {
		case err == nil && existing.IsActive():
			return apperrors.Conflict("a cancellation request already exists for this order").
				WithDetail("requestStatus", string(existing.Status))
		case err == nil:
			if err := tx.CancelRequests().Delete(ctx, existing.ID); err != nil {
				return fmt.Errorf("delete rejected cancel request: %w", err)
			}
			resubmitted = true
		case !isNotFound(err):
			return fmt.Errorf("get cancel request: %w", err)
		}

		req = &domain.CancelRequest{
			ID:        uuid.New().String(),
			OrderID:   o.ID,
			Reason:    reason,
			Status:    domain.CancelPending,
			CreatedAt: s.now(),
		}
		if err := tx.CancelRequests().Create(ctx, req); err != nil {
			if errors.Is(err, repository.ErrDuplicateCancelRequest) {
				return apperrors.Conflict("a cancellation request already exists for this order")
			}
			return fmt.Errorf("create cancel request: %w", err)
		}

		return s.audit.Record(ctx, tx.Logs(), actor, audit.Entry{
			Action:   domain.ActionCancelRequest,
			Entity:   domain.EntityCancelRequest,
			EntityID: req.ID,
			Details: &domain.CancelRequestDetails{
				OrderNumber: o.OrderNumber,
				Reason:      reason,
				Resubmitted: resubmitted,
			},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("request cancellation: %w", err)
	}

	logger.WithContext(ctx, s.logger).InfoContext(ctx, "cancellation requested",
		slog.String("order_id", orderID),
		slog.String("request_id", req.ID),
	)
	return req, nil
}

// ListCancelRequests returns requests in status, or all when status is empty.
func (s *CancellationService) ListCancelRequests(ctx context.Context, actor domain.Actor, status domain.CancelStatus) ([]domain.CancelRequest, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	reqs, err := s.store.CancelRequests().List(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("list cancel requests: %w", err)
	}
	return reqs, nil
}

// CancelDecision is the administrator's verdict on a pending request.
type CancelDecision struct {
	Status    domain.CancelStatus
	AdminNote string
}

// CancelOutcome reports what processing a request did.
type CancelOutcome struct {
	Request      *domain.CancelRequest `json:"request"`
	Order        *domain.Order         `json:"order"`
	RefundID     string                `json:"refundId,omitempty"`
	RefundAmount decimal.Decimal       `json:"refundAmount"`
}

// ProcessCancelRequest approves or rejects a pending request. Approval
// refunds the order total when the order has a captured payment and moves
// the order to REFUNDED regardless of its current status. A failed refund
// leaves both the request and the order unchanged.
func (s *CancellationService) ProcessCancelRequest(ctx context.Context, actor domain.Actor, id string, decision CancelDecision) (*CancelOutcome, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if decision.Status != domain.CancelApproved && decision.Status != domain.CancelRejected {
		return nil, apperrors.InvalidInput(fmt.Sprintf("decision must be %s or %s", domain.CancelApproved, domain.CancelRejected))
	}
	note := strings.TrimSpace(decision.AdminNote)

	var (
		out  = &CancelOutcome{RefundAmount: decimal.Zero}
		from domain.OrderStatus
	)
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		req, err := tx.CancelRequests().GetByID(ctx, id)
		if err != nil {
			return err
		}
		if req.Status != domain.CancelPending {
			return apperrors.Conflict(fmt.Sprintf("cancel request is already %s", req.Status)).
				WithDetail("requestStatus", string(req.Status))
		}
		o, err := tx.Orders().GetByIDForUpdate(ctx, req.OrderID)
		if err != nil {
			return fmt.Errorf("get order of cancel request: %w", err)
		}
		from = o.Status

		now := s.now()
		req.Status = decision.Status
		req.AdminNote = note
		req.ProcessedAt = &now

		approved := decision.Status == domain.CancelApproved
		refundDue := approved && o.PaymentID != ""

		action := domain.ActionReject
		if approved {
			action = domain.ActionApprove
			if refundDue {
				out.RefundAmount = o.TotalAmount
			}
			o.Status = domain.StatusRefunded
			o.UpdatedAt = now
			if err := tx.Orders().Update(ctx, o); err != nil {
				return mapOrderWriteError(err)
			}
		}

		if err := tx.CancelRequests().Update(ctx, req); err != nil {
			return fmt.Errorf("update cancel request: %w", err)
		}
		out.Request = req
		out.Order = o

		if err := s.audit.Record(ctx, tx.Logs(), actor, audit.Entry{
			Action:   action,
			Entity:   domain.EntityCancelRequest,
			EntityID: req.ID,
			Details: &domain.CancelDecisionDetails{
				OrderID:        o.ID,
				OrderNumber:    o.OrderNumber,
				Decision:       decision.Status,
				AdminNote:      note,
				PreviousStatus: from,
				RefundAmount:   out.RefundAmount,
			},
		}); err != nil {
			return err
		}

		// The refund is the last step so that only the commit can fail
		// after money has moved.
		if refundDue {
			refund, err := s.payment.Refund(ctx, o.PaymentID, o.TotalAmount)
			if err != nil {
				logAdapterFailure(ctx, s.logger, adapterPayment, "refund", o.OrderNumber, err)
				return adapterError(adapterPayment, err)
			}
			out.RefundID = refund.RefundID
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("process cancel request: %w", err)
	}

	if out.Request.Status == domain.CancelApproved {
		orderTransitions.WithLabelValues(string(from), string(domain.StatusRefunded)).Inc()
	}
	s.events.CancelProcessed(ctx, out.Request, out.Order, out.RefundID, out.RefundAmount)

	logger.WithContext(ctx, s.logger).InfoContext(ctx, "cancel request processed",
		slog.String("request_id", out.Request.ID),
		slog.String("order_number", out.Order.OrderNumber),
		slog.String("decision", string(out.Request.Status)),
		slog.String("refund_id", out.RefundID),
		slog.String("refund_amount", out.RefundAmount.StringFixed(2)),
	)
	return out, nil
}
