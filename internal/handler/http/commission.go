package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/service"
	"github.com/FirudinMustafa/OkulTedarik-sub000/pkg/httputil"
)

// CommissionHandler handles commission statements and payouts.
type CommissionHandler struct {
	service *service.CommissionService
	logger  *slog.Logger
}

// NewCommissionHandler creates a new commission HTTP handler.
func NewCommissionHandler(svc *service.CommissionService, logger *slog.Logger) *CommissionHandler {
	return &CommissionHandler{service: svc, logger: logger}
}

// CreatePayoutRequest records a manual payout to a school.
type CreatePayoutRequest struct {
	SchoolID string          `json:"schoolId" validate:"required"`
	Amount   decimal.Decimal `json:"amount"`
	Note     string          `json:"note" validate:"max=500"`
}

// schoolParam reads the school from the path, falling back to the director's
// own school.
func schoolParam(r *http.Request, sessionSchool string) string {
	if id := chi.URLParam(r, "id"); id != "" {
		return id
	}
	return sessionSchool
}

// Overview handles GET /api/admin/commissions
func (h *CommissionHandler) Overview(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	list, err := h.service.Overview(r.Context(), actor)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: list})
}

// Statement handles GET /api/admin/schools/{id}/commission and GET /api/director/commission
func (h *CommissionHandler) Statement(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	st, err := h.service.Statement(r.Context(), actor, schoolParam(r, actor.SchoolID))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: st})
}

// ListPayouts handles GET /api/admin/schools/{id}/payouts and GET /api/director/payouts
func (h *CommissionHandler) ListPayouts(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	list, err := h.service.ListPayouts(r.Context(), actor, schoolParam(r, actor.SchoolID))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: list})
}

// CreatePayout handles POST /api/admin/payouts
func (h *CommissionHandler) CreatePayout(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	var req CreatePayoutRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	p, err := h.service.CreatePayout(r.Context(), actor, service.PayoutInput{
		SchoolID: req.SchoolID,
		Amount:   req.Amount,
		Note:     req.Note,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: p})
}

// MarkPayoutPaid handles POST /api/admin/payouts/{id}/paid
func (h *CommissionHandler) MarkPayoutPaid(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	p, err := h.service.MarkPayoutPaid(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: p})
}
