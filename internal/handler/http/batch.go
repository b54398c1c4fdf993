package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/domain"
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/service"
	apperrors "github.com/FirudinMustafa/OkulTedarik-sub000/pkg/errors"
	"github.com/FirudinMustafa/OkulTedarik-sub000/pkg/httputil"
)

// BatchHandler runs lifecycle operations over many orders.
type BatchHandler struct {
	service *service.BatchService
	logger  *slog.Logger
}

// NewBatchHandler creates a new batch HTTP handler.
func NewBatchHandler(svc *service.BatchService, logger *slog.Logger) *BatchHandler {
	return &BatchHandler{service: svc, logger: logger}
}

// BatchRequest lists the orders to process.
type BatchRequest struct {
	OrderIDs []string `json:"orderIds" validate:"required,min=1,dive,required"`
}

type batchFunc func(ctx context.Context, actor domain.Actor, ids []string) (*service.BatchResult, error)

func (h *BatchHandler) operation(name string) (batchFunc, bool) {
	switch name {
	case service.BatchInvoice:
		return h.service.Invoice, true
	case service.BatchShip:
		return h.service.Ship, true
	case service.BatchDeliver:
		return h.service.Deliver, true
	case service.BatchComplete:
		return h.service.Complete, true
	}
	return nil, false
}

// BatchActionRequest names the operation in the body instead of the path.
type BatchActionRequest struct {
	Action   string   `json:"action" validate:"required"`
	OrderIDs []string `json:"orderIds" validate:"required,min=1,dive,required"`
}

// Run handles POST /api/admin/batch/{op}
func (h *BatchHandler) Run(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	op := chi.URLParam(r, "op")
	run, ok := h.operation(op)
	if !ok {
		httputil.WriteError(w, r, apperrors.NotFound("batch operation", op), h.logger)
		return
	}

	var req BatchRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	h.execute(w, r, actor, run, req.OrderIDs)
}

// RunAction handles POST /api/admin/batch
func (h *BatchHandler) RunAction(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	var req BatchActionRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	action := strings.ToLower(strings.TrimSpace(req.Action))
	run, ok := h.operation(action)
	if !ok {
		httputil.WriteError(w, r, apperrors.InvalidInput(fmt.Sprintf("unknown batch action %q", req.Action)), h.logger)
		return
	}
	h.execute(w, r, actor, run, req.OrderIDs)
}

func (h *BatchHandler) execute(w http.ResponseWriter, r *http.Request, actor domain.Actor, run batchFunc, ids []string) {
	if len(ids) > service.MaxBatchSize {
		httputil.WriteError(w, r, apperrors.InvalidInput(fmt.Sprintf("at most %d orders per batch", service.MaxBatchSize)), h.logger)
		return
	}

	res, err := run(r.Context(), actor, ids)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: res})
}
