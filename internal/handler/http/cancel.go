package http

import (
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

// CancelHandler handles the administrator side of cancellation requests.
type CancelHandler struct {
	service *service.CancellationService
	logger  *slog.Logger
}

// NewCancelHandler creates a new cancellation HTTP handler.
func NewCancelHandler(svc *service.CancellationService, logger *slog.Logger) *CancelHandler {
	return &CancelHandler{service: svc, logger: logger}
}

// ProcessCancelRequest is the administrator decision on a request.
type ProcessCancelRequest struct {
	Status    string `json:"status" validate:"required,oneof=APPROVED REJECTED"`
	AdminNote string `json:"adminNote" validate:"max=1000"`
}

// ListCancelRequests handles GET /api/admin/cancel-requests
func (h *CancelHandler) ListCancelRequests(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	var status domain.CancelStatus
	if v := strings.TrimSpace(r.URL.Query().Get("status")); v != "" {
		status = domain.CancelStatus(strings.ToUpper(v))
		switch status {
		case domain.CancelPending, domain.CancelApproved, domain.CancelRejected:
		default:
			httputil.WriteError(w, r, apperrors.InvalidInput(fmt.Sprintf("unknown status %q", v)), h.logger)
			return
		}
	}

	list, err := h.service.ListCancelRequests(r.Context(), actor, status)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: list})
}

// ProcessCancelRequest handles PUT /api/admin/cancel-requests/{id}
func (h *CancelHandler) ProcessCancelRequest(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	var req ProcessCancelRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	out, err := h.service.ProcessCancelRequest(r.Context(), actor, chi.URLParam(r, "id"), service.CancelDecision{
		Status:    domain.CancelStatus(req.Status),
		AdminNote: req.AdminNote,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: out})
}
