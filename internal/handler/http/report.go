package http

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/domain"
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/repository"
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/service"
	"github.com/FirudinMustafa/OkulTedarik-sub000/pkg/httputil"
	"github.com/FirudinMustafa/OkulTedarik-sub000/pkg/pagination"
)

// ReportHandler serves dashboards and the audit trail.
type ReportHandler struct {
	service *service.ReportService
	logger  *slog.Logger
}

// NewReportHandler creates a new report HTTP handler.
func NewReportHandler(svc *service.ReportService, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{service: svc, logger: logger}
}

// AdminDashboard handles GET /api/admin/dashboard
func (h *ReportHandler) AdminDashboard(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	d, err := h.service.AdminDashboard(r.Context(), actor)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: d})
}

// DirectorDashboard handles GET /api/director/dashboard
func (h *ReportHandler) DirectorDashboard(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	d, err := h.service.DirectorDashboard(r.Context(), actor)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: d})
}

// ListLogs handles GET /api/admin/logs
func (h *ReportHandler) ListLogs(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	q := r.URL.Query()
	p := pagination.FromRequest(r)
	filter := repository.LogFilter{
		Entity:   strings.TrimSpace(q.Get("entity")),
		EntityID: strings.TrimSpace(q.Get("entity_id")),
		Action:   domain.AuditAction(strings.ToUpper(strings.TrimSpace(q.Get("action")))),
		Page:     p.Page,
		PerPage:  p.PerPage,
	}

	logs, total, err := h.service.ListLogs(r.Context(), actor, filter)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(logs, total, filter.Page, filter.PerPage))
}
