package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/audit"
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/domain"
	apperrors "github.com/FirudinMustafa/OkulTedarik-sub000/pkg/errors"
	"github.com/FirudinMustafa/OkulTedarik-sub000/pkg/logger"
)

// MaxBatchSize bounds the number of order ids accepted by one batch call.
const MaxBatchSize = 500

// DefaultBatchReserve is how long before the caller's deadline a batch stops
// starting new orders, leaving time to write the audit entry and the response.
const DefaultBatchReserve = 2 * time.Second

// ErrMsgBatchTimeLimit is reported for orders the batch had no time left for.
const ErrMsgBatchTimeLimit = "batch time limit reached before this order was processed"

// Batch operation names.
const (
	BatchInvoice  = "invoice"
	BatchShip     = "ship"
	BatchDeliver  = "deliver"
	BatchComplete = "complete"
)

// BatchItemResult is the outcome for one order of a batch.
type BatchItemResult struct {
	OrderID            string `json:"orderId"`
	OrderNumber        string `json:"orderNumber"`
	Success            bool   `json:"success"`
	InvoiceNo          string `json:"invoiceNo,omitempty"`
	TrackingNo         string `json:"trackingNo,omitempty"`
	DeliveryDocumentNo string `json:"deliveryDocumentNo,omitempty"`
	AutoInvoiced       bool   `json:"autoInvoiced,omitempty"`
	Error              string `json:"error,omitempty"`
}

// BatchSummary counts the processed orders. AutoInvoiced is only reported by
// shipment batches and counts orders that were both invoiced and shipped.
type BatchSummary struct {
	Total        int  `json:"total"`
	Success      int  `json:"success"`
	Failed       int  `json:"failed"`
	AutoInvoiced *int `json:"autoInvoiced,omitempty"`
}

// BatchResult is returned by every batch operation. Orders that were not
// eligible are counted in Skipped and never touched.
type BatchResult struct {
	Operation string            `json:"operation"`
	Requested int               `json:"requested"`
	Skipped   int               `json:"skipped"`
	Results   []BatchItemResult `json:"results"`
	Summary   BatchSummary      `json:"summary"`
}

// BatchService runs lifecycle transitions over many orders. Each order is
// processed in its own transaction; one failure does not affect the others.
type BatchService struct {
	orders  *OrderService
	audit   *audit.Logger
	logger  *slog.Logger
	reserve time.Duration
}

// NewBatchService creates a new batch service on top of the order engine.
func NewBatchService(orders *OrderService, auditLog *audit.Logger, logger *slog.Logger) *BatchService {
	return &BatchService{orders: orders, audit: auditLog, logger: logger, reserve: DefaultBatchReserve}
}

// Invoice issues invoices for paid or confirmed orders.
func (s *BatchService) Invoice(ctx context.Context, actor domain.Actor, ids []string) (*BatchResult, error) {
	return s.run(ctx, actor, BatchInvoice, ids,
		[]domain.OrderStatus{domain.StatusPaid, domain.StatusConfirmed},
		nil,
		func(ctx context.Context, o *domain.Order, _ *domain.School, res *BatchItemResult) error {
			done, err := s.orders.transition(ctx, actor, o.ID, domain.StatusInvoiced, transitionOptions{batch: true})
			if err != nil {
				return err
			}
			res.InvoiceNo = done.InvoiceNo
			return nil
		})
}

// Ship hands cargo-school orders to the carrier. Orders that are paid or
// confirmed but not yet invoiced are invoiced first and flagged as
// auto-invoiced once the shipment succeeds. The invoice is committed before
// shipping, so a failed shipment leaves such an order INVOICED with its
// invoice number reported but not counted as auto-invoiced.
func (s *BatchService) Ship(ctx context.Context, actor domain.Actor, ids []string) (*BatchResult, error) {
	return s.run(ctx, actor, BatchShip, ids,
		[]domain.OrderStatus{domain.StatusPaid, domain.StatusConfirmed, domain.StatusInvoiced},
		func(school *domain.School, _ *domain.Order) bool { return school.DeliveryType == domain.DeliveryCargo },
		func(ctx context.Context, o *domain.Order, _ *domain.School, res *BatchItemResult) error {
			opts := transitionOptions{batch: true}
			if o.Status.IsPaymentConfirmed() {
				invoiced, err := s.orders.transition(ctx, actor, o.ID, domain.StatusInvoiced, transitionOptions{batch: true, autoInvoiced: true})
				if err != nil {
					return err
				}
				res.InvoiceNo = invoiced.InvoiceNo
				opts.autoInvoiced = true
			}

			shipped, err := s.orders.transition(ctx, actor, o.ID, domain.StatusCargoShipped, opts)
			if err != nil {
				return err
			}
			res.AutoInvoiced = opts.autoInvoiced
			res.InvoiceNo = shipped.InvoiceNo
			res.TrackingNo = shipped.TrackingNo
			return nil
		})
}

// Deliver marks invoiced school-delivery orders as delivered to the school
// and shipped cargo orders as delivered by the carrier.
func (s *BatchService) Deliver(ctx context.Context, actor domain.Actor, ids []string) (*BatchResult, error) {
	return s.run(ctx, actor, BatchDeliver, ids,
		[]domain.OrderStatus{domain.StatusInvoiced, domain.StatusCargoShipped},
		func(school *domain.School, o *domain.Order) bool {
			return o.Status == domain.StatusCargoShipped || school.DeliveryType == domain.DeliverySchool
		},
		func(ctx context.Context, o *domain.Order, school *domain.School, res *BatchItemResult) error {
			to := domain.StatusDeliveredToSchool
			if school.DeliveryType == domain.DeliveryCargo {
				to = domain.StatusDeliveredByCargo
			}
			done, err := s.orders.transition(ctx, actor, o.ID, to, transitionOptions{batch: true})
			if err != nil {
				return err
			}
			res.DeliveryDocumentNo = done.DeliveryDocumentNo
			return nil
		})
}

// Complete closes delivered orders.
func (s *BatchService) Complete(ctx context.Context, actor domain.Actor, ids []string) (*BatchResult, error) {
	return s.run(ctx, actor, BatchComplete, ids,
		[]domain.OrderStatus{domain.StatusDeliveredToSchool, domain.StatusDeliveredByCargo},
		nil,
		func(ctx context.Context, o *domain.Order, _ *domain.School, _ *BatchItemResult) error {
			_, err := s.orders.transition(ctx, actor, o.ID, domain.StatusCompleted, transitionOptions{batch: true})
			return err
		})
}

type (
	batchFilter func(school *domain.School, o *domain.Order) bool
	batchStep   func(ctx context.Context, o *domain.Order, school *domain.School, res *BatchItemResult) error
)

func (s *BatchService) run(
	ctx context.Context,
	actor domain.Actor,
	op string,
	ids []string,
	statuses []domain.OrderStatus,
	eligible batchFilter,
	step batchStep,
) (*BatchResult, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	ids = uniqueIDs(ids)
	switch {
	case len(ids) == 0:
		return nil, apperrors.InvalidInput("orderIds must not be empty")
	case len(ids) > MaxBatchSize:
		return nil, apperrors.InvalidInput(fmt.Sprintf("at most %d orders can be processed at once", MaxBatchSize))
	}

	store := s.orders.store
	candidates, err := store.Orders().ListByIDs(ctx, ids, statuses)
	if err != nil {
		return nil, fmt.Errorf("list batch orders: %w", err)
	}

	schools := make(map[string]*domain.School)
	type work struct {
		order  domain.Order
		school *domain.School
	}
	selected := make([]work, 0, len(candidates))
	for _, o := range candidates {
		school, ok := schools[o.SchoolID]
		if !ok {
			school, err = store.Schools().GetByID(ctx, o.SchoolID)
			if err != nil {
				return nil, fmt.Errorf("get school for batch: %w", err)
			}
			schools[o.SchoolID] = school
		}
		if eligible != nil && !eligible(school, &o) {
			continue
		}
		selected = append(selected, work{order: o, school: school})
	}

	result := &BatchResult{
		Operation: op,
		Requested: len(ids),
		Skipped:   len(ids) - len(selected),
		Results:   make([]BatchItemResult, 0, len(selected)),
	}

	workCtx, cancel := s.workContext(ctx)
	defer cancel()

	l := logger.WithContext(ctx, s.logger)
	for _, w := range selected {
		item := BatchItemResult{OrderID: w.order.ID, OrderNumber: w.order.OrderNumber}
		err := workCtx.Err()
		if err == nil {
			err = step(workCtx, &w.order, w.school, &item)
		}
		if err != nil {
			item.Success = false
			if workCtx.Err() != nil {
				item.Error = ErrMsgBatchTimeLimit
			} else {
				item.Error = s.itemError(ctx, op, &w.order, err)
			}
			result.Summary.Failed++
			batchItems.WithLabelValues(op, "failed").Inc()
		} else {
			item.Success = true
			result.Summary.Success++
			batchItems.WithLabelValues(op, "success").Inc()
		}
		result.Results = append(result.Results, item)
	}
	result.Summary.Total = len(result.Results)

	details := &domain.BatchSummaryDetails{
		Operation: op,
		Requested: result.Requested,
		Total:     result.Summary.Total,
		Success:   result.Summary.Success,
		Failed:    result.Summary.Failed,
	}
	if op == BatchShip {
		n := 0
		for _, item := range result.Results {
			if item.AutoInvoiced {
				n++
			}
		}
		result.Summary.AutoInvoiced = &n
		details.AutoInvoiced = n
	}
	s.audit.RecordBestEffort(context.WithoutCancel(ctx), store.Logs(), actor, audit.Entry{
		Action:   domain.ActionBatch,
		Entity:   domain.EntityOrder,
		EntityID: uuid.New().String(),
		Details:  details,
	})

	l.InfoContext(ctx, "batch processed",
		slog.String("operation", op),
		slog.Int("requested", result.Requested),
		slog.Int("total", result.Summary.Total),
		slog.Int("success", result.Summary.Success),
		slog.Int("failed", result.Summary.Failed),
	)
	return result, nil
}

// workContext bounds per-order work so that it ends s.reserve before the
// caller's deadline.
func (s *BatchService) workContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if deadline, ok := ctx.Deadline(); ok {
		return context.WithDeadline(ctx, deadline.Add(-s.reserve))
	}
	return context.WithCancel(ctx)
}

// itemError turns a per-order failure into the message reported for it.
// Unexpected errors are logged and reported generically.
func (s *BatchService) itemError(ctx context.Context, op string, o *domain.Order, err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Code != "INTERNAL_ERROR" {
		return appErr.Message
	}
	logger.WithContext(ctx, s.logger).ErrorContext(ctx, "batch item failed",
		slog.String("operation", op),
		slog.String("order_number", o.OrderNumber),
		slog.String("error", err.Error()),
	)
	return "internal error"
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
