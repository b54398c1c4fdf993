package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/domain"
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/service"
	"github.com/FirudinMustafa/OkulTedarik-sub000/pkg/httputil"
)

// DiscountHandler handles discount code endpoints.
type DiscountHandler struct {
	service *service.DiscountService
	logger  *slog.Logger
}

// NewDiscountHandler creates a new discount HTTP handler.
func NewDiscountHandler(svc *service.DiscountService, logger *slog.Logger) *DiscountHandler {
	return &DiscountHandler{service: svc, logger: logger}
}

// --- Request DTOs ---

// ValidateDiscountRequest checks a code against an order amount.
type ValidateDiscountRequest struct {
	Code   string          `json:"code" validate:"required,notblank"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
}

// DiscountRequest creates or replaces a discount code.
type DiscountRequest struct {
	Code        string              `json:"code" validate:"required,notblank,max=50"`
	Type        string              `json:"type" validate:"required,oneof=PERCENTAGE FIXED"`
	Value       decimal.Decimal     `json:"value"`
	MinAmount   decimal.NullDecimal `json:"minAmount"`
	MaxDiscount decimal.NullDecimal `json:"maxDiscount"`
	ValidFrom   time.Time           `json:"validFrom" validate:"required"`
	ValidUntil  time.Time           `json:"validUntil" validate:"required"`
	UsageLimit  *int                `json:"usageLimit" validate:"omitempty,min=1"`
	IsActive    *bool               `json:"isActive"`
}

func (req DiscountRequest) toInput() service.DiscountInput {
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	return service.DiscountInput{
		Code:        req.Code,
		Type:        domain.DiscountType(req.Type),
		Value:       req.Value,
		MinAmount:   req.MinAmount,
		MaxDiscount: req.MaxDiscount,
		ValidFrom:   req.ValidFrom,
		ValidUntil:  req.ValidUntil,
		UsageLimit:  req.UsageLimit,
		IsActive:    active,
	}
}

// --- Handlers ---

// ValidateDiscount handles POST /api/discounts/validate
func (h *DiscountHandler) ValidateDiscount(w http.ResponseWriter, r *http.Request) {
	var req ValidateDiscountRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	res, err := h.service.ValidateDiscount(r.Context(), req.Code, req.TotalAmount)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: res})
}

// ListDiscounts handles GET /api/admin/discounts
func (h *DiscountHandler) ListDiscounts(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	list, err := h.service.ListDiscounts(r.Context(), actor)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: list})
}

// GetDiscount handles GET /api/admin/discounts/{id}
func (h *DiscountHandler) GetDiscount(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	d, err := h.service.GetDiscount(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: d})
}

// CreateDiscount handles POST /api/admin/discounts
func (h *DiscountHandler) CreateDiscount(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	var req DiscountRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	d, err := h.service.CreateDiscount(r.Context(), actor, req.toInput())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: d})
}

// UpdateDiscount handles PUT /api/admin/discounts/{id}
func (h *DiscountHandler) UpdateDiscount(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	var req DiscountRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	d, err := h.service.UpdateDiscount(r.Context(), actor, chi.URLParam(r, "id"), req.toInput())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: d})
}

// DeleteDiscount handles DELETE /api/admin/discounts/{id}
func (h *DiscountHandler) DeleteDiscount(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if err := h.service.DeleteDiscount(r.Context(), actor, chi.URLParam(r, "id")); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
