package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/domain"
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/repository"
	apperrors "github.com/FirudinMustafa/OkulTedarik-sub000/pkg/errors"
)

const recentOrderCount = 10

// StatusCounts is the number of orders per status, every status present.
type StatusCounts struct {
	Total    int                        `json:"total"`
	ByStatus map[domain.OrderStatus]int `json:"byStatus"`
}

func newStatusCounts(rows []repository.StatusCount) StatusCounts {
	c := StatusCounts{ByStatus: make(map[domain.OrderStatus]int, len(domain.AllStatuses()))}
	for _, s := range domain.AllStatuses() {
		c.ByStatus[s] = 0
	}
	for _, r := range rows {
		c.ByStatus[r.Status] += r.Count
		c.Total += r.Count
	}
	return c
}

// DirectorDashboard is what a school director sees after signing in.
type DirectorDashboard struct {
	School       SchoolSummary               `json:"school"`
	Orders       StatusCounts                `json:"orders"`
	RecentOrders []domain.Order              `json:"recentOrders"`
	Commission   *domain.CommissionStatement `json:"commission"`
}

// AdminDashboard summarizes the whole platform.
type AdminDashboard struct {
	Orders                StatusCounts   `json:"orders"`
	ActiveSchools         int            `json:"activeSchools"`
	PendingCancelRequests int            `json:"pendingCancelRequests"`
	RecentOrders          []domain.Order `json:"recentOrders"`
}

// ReportService builds dashboards and exposes the audit trail.
type ReportService struct {
	store       repository.Store
	orders      *OrderService
	commissions *CommissionService
	logger      *slog.Logger
}

// NewReportService creates a new report service.
func NewReportService(store repository.Store, orders *OrderService, commissions *CommissionService, logger *slog.Logger) *ReportService {
	return &ReportService{store: store, orders: orders, commissions: commissions, logger: logger}
}

// DirectorDashboard returns the dashboard of the director's own school.
func (s *ReportService) DirectorDashboard(ctx context.Context, actor domain.Actor) (*DirectorDashboard, error) {
	if actor.Type != domain.ActorDirector {
		return nil, apperrors.Forbidden("director access required")
	}

	school, err := s.store.Schools().GetByID(ctx, actor.SchoolID)
	if err != nil {
		return nil, fmt.Errorf("get school for dashboard: %w", err)
	}
	counts, err := s.store.Orders().CountByStatus(ctx, school.ID)
	if err != nil {
		return nil, fmt.Errorf("count orders for dashboard: %w", err)
	}
	recent, _, err := s.orders.ListOrders(ctx, actor, repository.OrderFilter{PerPage: recentOrderCount})
	if err != nil {
		return nil, err
	}
	statement, err := s.commissions.Statement(ctx, actor, school.ID)
	if err != nil {
		return nil, err
	}

	return &DirectorDashboard{
		School:       SchoolSummary{ID: school.ID, Name: school.Name, DeliveryType: school.DeliveryType},
		Orders:       newStatusCounts(counts),
		RecentOrders: recent,
		Commission:   statement,
	}, nil
}

// AdminDashboard returns platform-wide counters.
func (s *ReportService) AdminDashboard(ctx context.Context, actor domain.Actor) (*AdminDashboard, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	counts, err := s.store.Orders().CountByStatus(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("count orders for dashboard: %w", err)
	}
	schools, err := s.store.Schools().List(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("list schools for dashboard: %w", err)
	}
	pending, err := s.store.CancelRequests().List(ctx, domain.CancelPending)
	if err != nil {
		return nil, fmt.Errorf("list cancel requests for dashboard: %w", err)
	}
	recent, _, err := s.orders.ListOrders(ctx, actor, repository.OrderFilter{PerPage: recentOrderCount})
	if err != nil {
		return nil, err
	}

	return &AdminDashboard{
		Orders:                newStatusCounts(counts),
		ActiveSchools:         len(schools),
		PendingCancelRequests: len(pending),
		RecentOrders:          recent,
	}, nil
}

// ListLogs returns a page of the audit trail, newest first.
func (s *ReportService) ListLogs(ctx context.Context, actor domain.Actor, filter repository.LogFilter) ([]domain.SystemLog, int, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, 0, err
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PerPage <= 0 || filter.PerPage > 200 {
		filter.PerPage = 50
	}
	logs, total, err := s.store.Logs().List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list logs: %w", err)
	}
	return logs, total, nil
}
