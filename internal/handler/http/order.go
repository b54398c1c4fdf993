package http

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/domain"
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/provider"
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/repository"
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/service"
	apperrors "github.com/FirudinMustafa/OkulTedarik-sub000/pkg/errors"
	"github.com/FirudinMustafa/OkulTedarik-sub000/pkg/httputil"
	"github.com/FirudinMustafa/OkulTedarik-sub000/pkg/pagination"
)

// OrderHandler handles HTTP requests for order endpoints.
type OrderHandler struct {
	orders  *service.OrderService
	cancels *service.CancellationService
	exports *service.ExportService
	logger  *slog.Logger
}

// NewOrderHandler creates a new order HTTP handler.
func NewOrderHandler(orders *service.OrderService, cancels *service.CancellationService, exports *service.ExportService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, cancels: cancels, exports: exports, logger: logger}
}

// --- Request DTOs ---

// AddressRequest is a delivery address.
type AddressRequest struct {
	Line     string `json:"line" validate:"max=500"`
	District string `json:"district" validate:"max=100"`
	City     string `json:"city" validate:"max=100"`
}

func (a AddressRequest) toDomain() domain.Address {
	return domain.Address{Line: a.Line, District: a.District, City: a.City}
}

// CorporateInvoiceRequest asks for an invoice issued to a company.
type CorporateInvoiceRequest struct {
	IsCorporate  bool   `json:"isCorporateInvoice"`
	CompanyTitle string `json:"companyTitle" validate:"required_if=IsCorporate true,max=200"`
	TaxNumber    string `json:"taxNumber" validate:"required_if=IsCorporate true,omitempty,numeric"`
	TaxOffice    string `json:"taxOffice" validate:"max=100"`
}

func (c CorporateInvoiceRequest) toDomain() domain.CorporateInvoice {
	return domain.CorporateInvoice{
		IsCorporate:  c.IsCorporate,
		CompanyTitle: c.CompanyTitle,
		TaxNumber:    c.TaxNumber,
		TaxOffice:    c.TaxOffice,
	}
}

// CreateOrderRequest is the JSON request body a parent submits at checkout.
type CreateOrderRequest struct {
	ClassID        string                  `json:"classId" validate:"required"`
	ParentName     string                  `json:"parentName" validate:"required,notblank,max=100"`
	StudentName    string                  `json:"studentName" validate:"required,notblank,max=100"`
	StudentSection string                  `json:"studentSection" validate:"max=50"`
	Phone          string                  `json:"phone" validate:"required,phone"`
	Email          string                  `json:"email" validate:"omitempty,email"`
	Address        AddressRequest          `json:"address"`
	Invoice        CorporateInvoiceRequest `json:"invoice"`
	DiscountCode   string                  `json:"discountCode" validate:"max=50"`
	PaymentMethod  string                  `json:"paymentMethod" validate:"required,oneof=CREDIT_CARD CASH_ON_DELIVERY"`
	Notes          string                  `json:"notes" validate:"max=1000"`
}

// PayRequest is the JSON request body for a direct card payment.
type PayRequest struct {
	HolderName  string `json:"holderName" validate:"required,notblank"`
	Number      string `json:"number" validate:"required"`
	ExpireMonth string `json:"expireMonth" validate:"required,len=2,numeric"`
	ExpireYear  string `json:"expireYear" validate:"required,numeric"`
	CVC         string `json:"cvc" validate:"required,min=3,max=4,numeric"`
}

// PaymentCallbackRequest is sent by the payment provider after checkout.
type PaymentCallbackRequest struct {
	Token string `json:"token" validate:"required"`
}

// CancelRequestBody is the JSON request body for a parent cancellation request.
type CancelRequestBody struct {
	Reason string `json:"reason" validate:"required,notblank,max=1000"`
}

// UpdateStatusRequest is the JSON request body for updating order status.
// Legacy status names are accepted.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// UpdateOrderRequest is an administrator edit of an order.
type UpdateOrderRequest struct {
	Status         string                   `json:"status"`
	ParentName     *string                  `json:"parentName" validate:"omitempty,notblank,max=100"`
	StudentName    *string                  `json:"studentName" validate:"omitempty,notblank,max=100"`
	StudentSection *string                  `json:"studentSection" validate:"omitempty,max=50"`
	Phone          *string                  `json:"phone" validate:"omitempty,phone"`
	Email          *string                  `json:"email" validate:"omitempty,email"`
	Address        *AddressRequest          `json:"address"`
	Invoice        *CorporateInvoiceRequest `json:"invoice"`
	Notes          *string                  `json:"notes" validate:"omitempty,max=1000"`
}

// --- Public handlers ---

// TrackOrder handles GET /api/orders/track/{orderNumber}
func (h *OrderHandler) TrackOrder(w http.ResponseWriter, r *http.Request) {
	tracking, err := h.orders.TrackOrder(r.Context(), chi.URLParam(r, "orderNumber"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: tracking})
}

// PaymentCallback handles POST /api/payments/callback
func (h *OrderHandler) PaymentCallback(w http.ResponseWriter, r *http.Request) {
	var req PaymentCallbackRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	order, err := h.orders.ConfirmPayment(r.Context(), req.Token)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: order})
}

// --- Parent handlers ---

// CreateOrder handles POST /api/parent/orders
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	var req CreateOrderRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	res, err := h.orders.CreateOrder(r.Context(), actor, service.CreateOrderInput{
		ClassID: req.ClassID,
		Buyer: domain.Buyer{
			ParentName:     req.ParentName,
			StudentName:    req.StudentName,
			StudentSection: req.StudentSection,
			Phone:          req.Phone,
			Email:          req.Email,
		},
		Address:       req.Address.toDomain(),
		Corporate:     req.Invoice.toDomain(),
		DiscountCode:  req.DiscountCode,
		PaymentMethod: domain.PaymentMethod(req.PaymentMethod),
		Notes:         req.Notes,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: res})
}

// PayOrder handles POST /api/parent/orders/{id}/pay
func (h *OrderHandler) PayOrder(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	var req PayRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	order, err := h.orders.PayWithCard(r.Context(), actor, chi.URLParam(r, "id"), provider.Card{
		HolderName:  req.HolderName,
		Number:      req.Number,
		ExpireMonth: req.ExpireMonth,
		ExpireYear:  req.ExpireYear,
		CVC:         req.CVC,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: order})
}

// RequestCancellation handles POST /api/parent/orders/{id}/cancel-request
func (h *OrderHandler) RequestCancellation(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	var req CancelRequestBody
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	cr, err := h.cancels.RequestCancellation(r.Context(), actor, chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: cr})
}

// --- Panel handlers ---

// ListOrders handles GET /api/admin/orders and GET /api/director/orders
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	filter, err := orderFilterFromRequest(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	orders, total, err := h.orders.ListOrders(r.Context(), actor, filter)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(orders, total, filter.Page, filter.PerPage))
}

// GetOrder handles GET /api/admin/orders/{id}
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	order, err := h.orders.GetOrder(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: order})
}

// UpdateOrderStatus handles PUT /api/admin/orders/{id}/status
func (h *OrderHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	var req UpdateStatusRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	order, err := h.orders.UpdateStatus(r.Context(), actor, chi.URLParam(r, "id"), req.Status)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: order})
}

// UpdateOrder handles PATCH /api/admin/orders/{id}
func (h *OrderHandler) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	var req UpdateOrderRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	in := service.UpdateOrderInput{
		Status:         req.Status,
		ParentName:     req.ParentName,
		StudentName:    req.StudentName,
		StudentSection: req.StudentSection,
		Phone:          req.Phone,
		Email:          req.Email,
		Notes:          req.Notes,
	}
	if req.Address != nil {
		a := req.Address.toDomain()
		in.Address = &a
	}
	if req.Invoice != nil {
		c := req.Invoice.toDomain()
		in.Corporate = &c
	}

	order, err := h.orders.UpdateOrder(r.Context(), actor, chi.URLParam(r, "id"), in)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: order})
}

// ExportOrders handles GET /api/admin/orders/export and GET /api/director/orders/export
func (h *OrderHandler) ExportOrders(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	filter, err := orderFilterFromRequest(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	var buf bytes.Buffer
	if _, err := h.exports.ExportOrders(r.Context(), actor, filter, &buf); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	name := fmt.Sprintf("siparisler-%s.csv", time.Now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// orderFilterFromRequest reads school_id, class_id, status, search, from and
// to (YYYY-MM-DD, inclusive) plus paging from the query string. Legacy status
// names are accepted.
func orderFilterFromRequest(r *http.Request) (repository.OrderFilter, error) {
	q := r.URL.Query()
	p := pagination.FromRequest(r)
	filter := repository.OrderFilter{
		SchoolID: strings.TrimSpace(q.Get("school_id")),
		ClassID:  strings.TrimSpace(q.Get("class_id")),
		Search:   strings.TrimSpace(q.Get("search")),
		Page:     p.Page,
		PerPage:  p.PerPage,
	}

	if v := q.Get("status"); v != "" {
		st, _, err := domain.ParseStatus(v, "")
		if err != nil {
			return filter, apperrors.InvalidInput(err.Error())
		}
		filter.Status = st
	}
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.DateOnly, v)
		if err != nil {
			return filter, apperrors.InvalidInput("from must be YYYY-MM-DD")
		}
		filter.From = &t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.DateOnly, v)
		if err != nil {
			return filter, apperrors.InvalidInput("to must be YYYY-MM-DD")
		}
		end := t.AddDate(0, 0, 1)
		filter.To = &end
	}
	return filter, nil
}
