package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/domain"
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/service"
	"github.com/FirudinMustafa/OkulTedarik-sub000/pkg/httputil"
)

// CatalogHandler handles schools, classes and packages.
type CatalogHandler struct {
	service *service.CatalogService
	logger  *slog.Logger
}

// NewCatalogHandler creates a new catalog HTTP handler.
func NewCatalogHandler(svc *service.CatalogService, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{service: svc, logger: logger}
}

// --- Request DTOs ---

// CreateSchoolRequest creates a school. An empty password is generated.
type CreateSchoolRequest struct {
	Name         string `json:"name" validate:"required,notblank,max=200"`
	Address      string `json:"address" validate:"max=500"`
	Phone        string `json:"phone" validate:"omitempty,phone"`
	Email        string `json:"email" validate:"omitempty,email"`
	DeliveryType string `json:"deliveryType" validate:"required,oneof=CARGO SCHOOL_DELIVERY"`
	Password     string `json:"password" validate:"omitempty,min=4,max=32"`
	DirectorName string `json:"directorName" validate:"max=100"`
	IsActive     *bool  `json:"isActive"`
}

// UpdateSchoolRequest changes the given fields of a school.
type UpdateSchoolRequest struct {
	Name         *string `json:"name" validate:"omitempty,notblank,max=200"`
	Address      *string `json:"address" validate:"omitempty,max=500"`
	Phone        *string `json:"phone" validate:"omitempty,phone"`
	Email        *string `json:"email" validate:"omitempty,email"`
	DeliveryType *string `json:"deliveryType" validate:"omitempty,oneof=CARGO SCHOOL_DELIVERY"`
	Password     *string `json:"password" validate:"omitempty,min=4,max=32"`
	DirectorName *string `json:"directorName" validate:"omitempty,max=100"`
	IsActive     *bool   `json:"isActive"`
}

// DirectorCredentialsRequest sets the director login of a school.
type DirectorCredentialsRequest struct {
	Name     string `json:"name" validate:"max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// ClassRequest creates or replaces a class.
type ClassRequest struct {
	SchoolID         string          `json:"schoolId" validate:"required"`
	Name             string          `json:"name" validate:"required,notblank,max=100"`
	PackageID        string          `json:"packageId"`
	CommissionAmount decimal.Decimal `json:"commissionAmount"`
	IsActive         *bool           `json:"isActive"`
}

// PackageItemRequest is one display line of a package.
type PackageItemRequest struct {
	Name      string          `json:"name" validate:"required,notblank,max=200"`
	Quantity  int             `json:"quantity" validate:"min=1"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// PackageRequest creates or replaces a package.
type PackageRequest struct {
	Name        string               `json:"name" validate:"required,notblank,max=200"`
	Description string               `json:"description" validate:"max=2000"`
	Note        string               `json:"note" validate:"max=1000"`
	Price       decimal.Decimal      `json:"price"`
	IsActive    *bool                `json:"isActive"`
	Items       []PackageItemRequest `json:"items" validate:"dive"`
}

func activeOrDefault(v *bool) bool {
	return v == nil || *v
}

// --- Schools ---

// ListSchools handles GET /api/admin/schools
func (h *CatalogHandler) ListSchools(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	includeInactive, _ := strconv.ParseBool(r.URL.Query().Get("include_inactive"))
	list, err := h.service.ListSchools(r.Context(), actor, includeInactive)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: list})
}

// GetSchool handles GET /api/admin/schools/{id}
func (h *CatalogHandler) GetSchool(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	school, err := h.service.GetSchool(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: school})
}

// CreateSchool handles POST /api/admin/schools
func (h *CatalogHandler) CreateSchool(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	var req CreateSchoolRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	school, err := h.service.CreateSchool(r.Context(), actor, service.SchoolInput{
		Name:         req.Name,
		Address:      req.Address,
		Phone:        req.Phone,
		Email:        req.Email,
		DeliveryType: domain.DeliveryType(req.DeliveryType),
		Password:     req.Password,
		DirectorName: req.DirectorName,
		IsActive:     activeOrDefault(req.IsActive),
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: school})
}

// UpdateSchool handles PATCH /api/admin/schools/{id}
func (h *CatalogHandler) UpdateSchool(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	var req UpdateSchoolRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	in := service.SchoolUpdate{
		Name:         req.Name,
		Address:      req.Address,
		Phone:        req.Phone,
		Email:        req.Email,
		Password:     req.Password,
		DirectorName: req.DirectorName,
		IsActive:     req.IsActive,
	}
	if req.DeliveryType != nil {
		dt := domain.DeliveryType(*req.DeliveryType)
		in.DeliveryType = &dt
	}

	school, err := h.service.UpdateSchool(r.Context(), actor, chi.URLParam(r, "id"), in)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: school})
}

// RegenerateSchoolPassword handles POST /api/admin/schools/{id}/password
func (h *CatalogHandler) RegenerateSchoolPassword(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	password, err := h.service.RegenerateSchoolPassword(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]string{"password": password}})
}

// SetDirectorCredentials handles PUT /api/admin/schools/{id}/director
func (h *CatalogHandler) SetDirectorCredentials(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	var req DirectorCredentialsRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	err = h.service.SetDirectorCredentials(r.Context(), actor, chi.URLParam(r, "id"), service.DirectorCredentials{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteSchool handles DELETE /api/admin/schools/{id}
func (h *CatalogHandler) DeleteSchool(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	details, err := h.service.DeleteSchool(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: details})
}

// --- Classes ---

// ListClasses handles GET /api/admin/schools/{id}/classes and GET /api/director/classes
func (h *CatalogHandler) ListClasses(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	schoolID := chi.URLParam(r, "id")
	if schoolID == "" {
		schoolID = actor.SchoolID
	}
	list, err := h.service.ListClasses(r.Context(), actor, schoolID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: list})
}

// CreateClass handles POST /api/admin/classes
func (h *CatalogHandler) CreateClass(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	var req ClassRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	class, err := h.service.CreateClass(r.Context(), actor, req.toInput())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: class})
}

// UpdateClass handles PUT /api/admin/classes/{id}
func (h *CatalogHandler) UpdateClass(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	var req ClassRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	class, err := h.service.UpdateClass(r.Context(), actor, chi.URLParam(r, "id"), req.toInput())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: class})
}

// DeleteClass handles DELETE /api/admin/classes/{id}
func (h *CatalogHandler) DeleteClass(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if err := h.service.DeleteClass(r.Context(), actor, chi.URLParam(r, "id")); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (req ClassRequest) toInput() service.ClassInput {
	return service.ClassInput{
		SchoolID:         req.SchoolID,
		Name:             req.Name,
		PackageID:        req.PackageID,
		CommissionAmount: req.CommissionAmount,
		IsActive:         activeOrDefault(req.IsActive),
	}
}

// SchoolOffers handles GET /api/parent/offers. The school comes from the
// parent's session.
func (h *CatalogHandler) SchoolOffers(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	offers, err := h.service.SchoolOffers(r.Context(), actor, actor.SchoolID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: offers})
}

// --- Packages ---

// ListPackages handles GET /api/admin/packages
func (h *CatalogHandler) ListPackages(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	includeInactive, _ := strconv.ParseBool(r.URL.Query().Get("include_inactive"))
	list, err := h.service.ListPackages(r.Context(), actor, includeInactive)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: list})
}

// GetPackage handles GET /api/admin/packages/{id}
func (h *CatalogHandler) GetPackage(w http.ResponseWriter, r *http.Request) {
	pkg, err := h.service.GetPackage(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: pkg})
}

// CreatePackage handles POST /api/admin/packages
func (h *CatalogHandler) CreatePackage(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	var req PackageRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	pkg, err := h.service.CreatePackage(r.Context(), actor, req.toInput())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: pkg})
}

// UpdatePackage handles PUT /api/admin/packages/{id}
func (h *CatalogHandler) UpdatePackage(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	var req PackageRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	pkg, err := h.service.UpdatePackage(r.Context(), actor, chi.URLParam(r, "id"), req.toInput())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: pkg})
}

// DeletePackage handles DELETE /api/admin/packages/{id}
func (h *CatalogHandler) DeletePackage(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	details, err := h.service.DeletePackage(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: details})
}

func (req PackageRequest) toInput() service.PackageInput {
	in := service.PackageInput{
		Name:        req.Name,
		Description: req.Description,
		Note:        req.Note,
		Price:       req.Price,
		IsActive:    activeOrDefault(req.IsActive),
		Items:       make([]service.PackageItemInput, 0, len(req.Items)),
	}
	for _, item := range req.Items {
		in.Items = append(in.Items, service.PackageItemInput{
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return in
}
