package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/audit"
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/auth"
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/domain"
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/repository"
	apperrors "github.com/FirudinMustafa/OkulTedarik-sub000/pkg/errors"
	"github.com/FirudinMustafa/OkulTedarik-sub000/pkg/logger"
	"github.com/FirudinMustafa/OkulTedarik-sub000/pkg/validator"
)

// generatePasswordAttempts bounds retries when a generated school password
// collides with an active school.
const generatePasswordAttempts = 5

// CatalogService administers schools, classes and packages.
type CatalogService struct {
	store    repository.Store
	hasher   *auth.Hasher
	audit    *audit.Logger
	logger   *slog.Logger
	now      func() time.Time
	password func() (string, error)
}

// NewCatalogService creates a new catalog service.
func NewCatalogService(store repository.Store, hasher *auth.Hasher, auditLog *audit.Logger, logger *slog.Logger) *CatalogService {
	return &CatalogService{
		store:    store,
		hasher:   hasher,
		audit:    auditLog,
		logger:   logger,
		now:      utcNow,
		password: auth.GenerateSchoolPassword,
	}
}

// ---------------------------------------------------------------------------
// Schools
// ---------------------------------------------------------------------------

// SchoolInput holds the editable fields of a school. An empty Password on
// create means one is generated.
type SchoolInput struct {
	Name         string
	Address      string
	Phone        string
	Email        string
	DeliveryType domain.DeliveryType
	Password     string
	DirectorName string
	IsActive     bool
}

func (in *SchoolInput) normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Address = strings.TrimSpace(in.Address)
	in.Phone = validator.NormalizePhone(strings.TrimSpace(in.Phone))
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.DirectorName = strings.TrimSpace(in.DirectorName)
	switch {
	case in.Name == "":
		return apperrors.InvalidInput("name is required")
	case !in.DeliveryType.IsValid():
		return apperrors.InvalidInput(fmt.Sprintf("invalid delivery type %q", in.DeliveryType))
	}
	return nil
}

// ListSchools returns schools ordered by name.
func (s *CatalogService) ListSchools(ctx context.Context, actor domain.Actor, includeInactive bool) ([]domain.School, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	schools, err := s.store.Schools().List(ctx, includeInactive)
	if err != nil {
		return nil, fmt.Errorf("list schools: %w", err)
	}
	return schools, nil
}

// GetSchool returns one school.
func (s *CatalogService) GetSchool(ctx context.Context, actor domain.Actor, id string) (*domain.School, error) {
	if err := requireSchoolAccess(actor, id); err != nil {
		return nil, err
	}
	school, err := s.store.Schools().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get school: %w", err)
	}
	if actor.Type != domain.ActorAdmin {
		school.Password = ""
	}
	return school, nil
}

// CreateSchool adds a school. The password must not be used by another
// active school.
func (s *CatalogService) CreateSchool(ctx context.Context, actor domain.Actor, in SchoolInput) (*domain.School, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := in.normalize(); err != nil {
		return nil, err
	}

	now := s.now()
	school := &domain.School{
		ID:           uuid.New().String(),
		Name:         in.Name,
		Address:      in.Address,
		Phone:        in.Phone,
		Email:        in.Email,
		DeliveryType: in.DeliveryType,
		DirectorName: in.DirectorName,
		IsActive:     in.IsActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err := s.withSchoolPassword(in.Password, school, func() error {
		return s.store.WithinTx(ctx, func(tx repository.Store) error {
			if err := tx.Schools().Create(ctx, school); err != nil {
				return err
			}
			return s.audit.Record(ctx, tx.Logs(), actor, audit.Entry{
				Action:   domain.ActionCreate,
				Entity:   domain.EntitySchool,
				EntityID: school.ID,
				Details:  &domain.EntityChangeDetails{Name: school.Name},
			})
		})
	})
	if err != nil {
		return nil, fmt.Errorf("create school: %w", err)
	}

	logger.WithContext(ctx, s.logger).InfoContext(ctx, "school created",
		slog.String("school_id", school.ID),
		slog.String("delivery_type", string(school.DeliveryType)),
	)
	return school, nil
}

// withSchoolPassword sets the given or a generated password on school and
// runs write. Generated passwords are retried on collision; a given one is
// reported as a conflict.
func (s *CatalogService) withSchoolPassword(given string, school *domain.School, write func() error) error {
	if strings.TrimSpace(given) != "" {
		p, err := auth.NormalizeSchoolPassword(given)
		if err != nil {
			return apperrors.InvalidInput(err.Error())
		}
		school.Password = p
		return mapSchoolWriteError(write())
	}

	var err error
	for range generatePasswordAttempts {
		school.Password, err = s.password()
		if err != nil {
			return err
		}
		if err = write(); !errors.Is(err, repository.ErrDuplicateSchoolPassword) {
			return mapSchoolWriteError(err)
		}
	}
	return mapSchoolWriteError(err)
}

// SchoolUpdate changes the given fields of a school.
type SchoolUpdate struct {
	Name         *string
	Address      *string
	Phone        *string
	Email        *string
	DeliveryType *domain.DeliveryType
	Password     *string
	DirectorName *string
	IsActive     *bool
}

// UpdateSchool applies an administrator edit. Setting IsActive to false
// deactivates the school and frees its password.
func (s *CatalogService) UpdateSchool(ctx context.Context, actor domain.Actor, id string, in SchoolUpdate) (*domain.School, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	var updated *domain.School
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		school, err := tx.Schools().GetByID(ctx, id)
		if err != nil {
			return err
		}

		var changes []domain.FieldChange
		set := func(field string, dst *string, v *string) {
			if v == nil || strings.TrimSpace(*v) == *dst {
				return
			}
			changes = append(changes, domain.FieldChange{Field: field, From: *dst, To: strings.TrimSpace(*v)})
			*dst = strings.TrimSpace(*v)
		}
		set("name", &school.Name, in.Name)
		set("address", &school.Address, in.Address)
		set("phone", &school.Phone, in.Phone)
		set("email", &school.Email, in.Email)
		set("directorName", &school.DirectorName, in.DirectorName)

		if school.Name == "" {
			return apperrors.InvalidInput("name is required")
		}
		if in.DeliveryType != nil && *in.DeliveryType != school.DeliveryType {
			if !in.DeliveryType.IsValid() {
				return apperrors.InvalidInput(fmt.Sprintf("invalid delivery type %q", *in.DeliveryType))
			}
			changes = append(changes, domain.FieldChange{Field: "deliveryType", From: string(school.DeliveryType), To: string(*in.DeliveryType)})
			school.DeliveryType = *in.DeliveryType
		}
		if in.Password != nil {
			p, err := auth.NormalizeSchoolPassword(*in.Password)
			if err != nil {
				return apperrors.InvalidInput(err.Error())
			}
			if p != school.Password {
				changes = append(changes, domain.FieldChange{Field: "password"})
				school.Password = p
			}
		}
		if in.IsActive != nil && *in.IsActive != school.IsActive {
			changes = append(changes, domain.FieldChange{Field: "isActive", From: fmt.Sprint(school.IsActive), To: fmt.Sprint(*in.IsActive)})
			school.IsActive = *in.IsActive
		}

		updated = school
		if len(changes) == 0 {
			return nil
		}
		school.UpdatedAt = s.now()
		if err := tx.Schools().Update(ctx, school); err != nil {
			return mapSchoolWriteError(err)
		}
		return s.audit.Record(ctx, tx.Logs(), actor, audit.Entry{
			Action:   domain.ActionUpdate,
			Entity:   domain.EntitySchool,
			EntityID: school.ID,
			Details:  &domain.EntityChangeDetails{Name: school.Name, Changes: changes},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("update school: %w", err)
	}
	return updated, nil
}

// RegenerateSchoolPassword replaces the school password with a generated one
// and returns it.
func (s *CatalogService) RegenerateSchoolPassword(ctx context.Context, actor domain.Actor, id string) (string, error) {
	if err := requireAdmin(actor); err != nil {
		return "", err
	}
	school, err := s.store.Schools().GetByID(ctx, id)
	if err != nil {
		return "", fmt.Errorf("get school: %w", err)
	}

	err = s.withSchoolPassword("", school, func() error {
		school.UpdatedAt = s.now()
		return s.store.WithinTx(ctx, func(tx repository.Store) error {
			if err := tx.Schools().Update(ctx, school); err != nil {
				return err
			}
			return s.audit.Record(ctx, tx.Logs(), actor, audit.Entry{
				Action:   domain.ActionUpdate,
				Entity:   domain.EntitySchool,
				EntityID: school.ID,
				Details: &domain.EntityChangeDetails{
					Name:    school.Name,
					Changes: []domain.FieldChange{{Field: "password"}},
				},
			})
		})
	})
	if err != nil {
		return "", fmt.Errorf("regenerate school password: %w", err)
	}
	return school.Password, nil
}

// DirectorCredentials sets the login of a school's director.
type DirectorCredentials struct {
	Name     string
	Email    string
	Password string
}

// SetDirectorCredentials stores the director's email and a bcrypt hash of
// the password.
func (s *CatalogService) SetDirectorCredentials(ctx context.Context, actor domain.Actor, schoolID string, in DirectorCredentials) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))
	switch {
	case email == "":
		return apperrors.InvalidInput("email is required")
	case len(in.Password) < 8:
		return apperrors.InvalidInput("password must be at least 8 characters")
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return err
	}

	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		school, err := tx.Schools().GetByID(ctx, schoolID)
		if err != nil {
			return err
		}
		if name := strings.TrimSpace(in.Name); name != "" {
			school.DirectorName = name
		}
		school.DirectorEmail = email
		school.DirectorPasswordHash = hash
		school.UpdatedAt = s.now()
		if err := tx.Schools().Update(ctx, school); err != nil {
			return mapSchoolWriteError(err)
		}
		return s.audit.Record(ctx, tx.Logs(), actor, audit.Entry{
			Action:   domain.ActionUpdate,
			Entity:   domain.EntitySchool,
			EntityID: school.ID,
			Details: &domain.EntityChangeDetails{
				Name:    school.Name,
				Changes: []domain.FieldChange{{Field: "directorEmail", To: email}, {Field: "directorPassword"}},
			},
		})
	})
	if err != nil {
		return fmt.Errorf("set director credentials: %w", err)
	}
	return nil
}

// DeleteSchool removes a school with its classes, orders, cancel requests
// and payouts. What was removed is written to the audit log.
func (s *CatalogService) DeleteSchool(ctx context.Context, actor domain.Actor, id string) (*domain.CascadeDeleteDetails, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	var details domain.CascadeDeleteDetails
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		var err error
		details, err = tx.Schools().Delete(ctx, id)
		if err != nil {
			return err
		}
		return s.audit.Record(ctx, tx.Logs(), actor, audit.Entry{
			Action:   domain.ActionDelete,
			Entity:   domain.EntitySchool,
			EntityID: id,
			Details:  &details,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("delete school: %w", err)
	}

	logger.WithContext(ctx, s.logger).WarnContext(ctx, "school deleted",
		slog.String("school_id", id),
		slog.Int("classes", details.Classes),
		slog.Int("orders", details.Orders),
		slog.Int("cancel_requests", details.CancelRequests),
		slog.Int("payments", details.Payments),
	)
	return &details, nil
}

func mapSchoolWriteError(err error) error {
	if errors.Is(err, repository.ErrDuplicateSchoolPassword) {
		return apperrors.Conflict("school password is already used by another active school")
	}
	return err
}

// ---------------------------------------------------------------------------
// Classes
// ---------------------------------------------------------------------------

// ClassInput holds the editable fields of a class.
type ClassInput struct {
	SchoolID         string
	Name             string
	PackageID        string
	CommissionAmount decimal.Decimal
	IsActive         bool
}

func (in *ClassInput) normalize() error {
	in.SchoolID = strings.TrimSpace(in.SchoolID)
	in.Name = strings.TrimSpace(in.Name)
	in.PackageID = strings.TrimSpace(in.PackageID)
	switch {
	case in.SchoolID == "":
		return apperrors.InvalidInput("schoolId is required")
	case in.Name == "":
		return apperrors.InvalidInput("name is required")
	case in.CommissionAmount.IsNegative():
		return apperrors.InvalidInput("commissionAmount must not be negative")
	}
	in.CommissionAmount = in.CommissionAmount.Round(2)
	return nil
}

// ListClasses returns the classes of a school.
func (s *CatalogService) ListClasses(ctx context.Context, actor domain.Actor, schoolID string) ([]domain.Class, error) {
	if err := requireSchoolAccess(actor, schoolID); err != nil {
		return nil, err
	}
	classes, err := s.store.Classes().ListBySchool(ctx, schoolID)
	if err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	return classes, nil
}

// CreateClass adds a class to a school.
func (s *CatalogService) CreateClass(ctx context.Context, actor domain.Actor, in ClassInput) (*domain.Class, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := in.normalize(); err != nil {
		return nil, err
	}

	now := s.now()
	class := &domain.Class{
		ID:               uuid.New().String(),
		SchoolID:         in.SchoolID,
		Name:             in.Name,
		PackageID:        in.PackageID,
		CommissionAmount: in.CommissionAmount,
		IsActive:         in.IsActive,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		if err := tx.Classes().Create(ctx, class); err != nil {
			return err
		}
		return s.audit.Record(ctx, tx.Logs(), actor, audit.Entry{
			Action:   domain.ActionCreate,
			Entity:   domain.EntityClass,
			EntityID: class.ID,
			Details:  &domain.EntityChangeDetails{Name: class.Name},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("create class: %w", err)
	}
	return class, nil
}

// UpdateClass replaces the editable fields of a class. The school cannot
// change.
func (s *CatalogService) UpdateClass(ctx context.Context, actor domain.Actor, id string, in ClassInput) (*domain.Class, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	var updated *domain.Class
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		class, err := tx.Classes().GetByID(ctx, id)
		if err != nil {
			return err
		}
		in.SchoolID = class.SchoolID
		if err := in.normalize(); err != nil {
			return err
		}

		var changes []domain.FieldChange
		if class.Name != in.Name {
			changes = append(changes, domain.FieldChange{Field: "name", From: class.Name, To: in.Name})
		}
		if class.PackageID != in.PackageID {
			changes = append(changes, domain.FieldChange{Field: "packageId", From: class.PackageID, To: in.PackageID})
		}
		if !class.CommissionAmount.Equal(in.CommissionAmount) {
			changes = append(changes, domain.FieldChange{Field: "commissionAmount", From: class.CommissionAmount.StringFixed(2), To: in.CommissionAmount.StringFixed(2)})
		}
		if class.IsActive != in.IsActive {
			changes = append(changes, domain.FieldChange{Field: "isActive", From: fmt.Sprint(class.IsActive), To: fmt.Sprint(in.IsActive)})
		}

		class.Name = in.Name
		class.PackageID = in.PackageID
		class.CommissionAmount = in.CommissionAmount
		class.IsActive = in.IsActive
		class.UpdatedAt = s.now()
		if err := tx.Classes().Update(ctx, class); err != nil {
			return err
		}
		updated = class
		return s.audit.Record(ctx, tx.Logs(), actor, audit.Entry{
			Action:   domain.ActionUpdate,
			Entity:   domain.EntityClass,
			EntityID: class.ID,
			Details:  &domain.EntityChangeDetails{Name: class.Name, Changes: changes},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("update class: %w", err)
	}
	return updated, nil
}

// DeleteClass removes a class that has no orders.
func (s *CatalogService) DeleteClass(ctx context.Context, actor domain.Actor, id string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}

	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		class, err := tx.Classes().GetByID(ctx, id)
		if err != nil {
			return err
		}
		n, err := tx.Orders().CountByClass(ctx, id)
		if err != nil {
			return fmt.Errorf("count class orders: %w", err)
		}
		if n > 0 {
			return apperrors.Conflict(fmt.Sprintf("class has %d orders and cannot be deleted", n)).
				WithDetail("orders", fmt.Sprint(n))
		}
		if err := tx.Classes().Delete(ctx, id); err != nil {
			return err
		}
		return s.audit.Record(ctx, tx.Logs(), actor, audit.Entry{
			Action:   domain.ActionDelete,
			Entity:   domain.EntityClass,
			EntityID: id,
			Details:  &domain.EntityChangeDetails{Name: class.Name},
		})
	})
	if err != nil {
		return fmt.Errorf("delete class: %w", err)
	}
	return nil
}

// ClassOffer is a class together with the package it offers.
type ClassOffer struct {
	Class   domain.Class    `json:"class"`
	Package *domain.Package `json:"package,omitempty"`
}

// SchoolOffers lists the active classes of a school that offer an active
// package. It is what a parent chooses from.
func (s *CatalogService) SchoolOffers(ctx context.Context, actor domain.Actor, schoolID string) ([]ClassOffer, error) {
	if err := requireSchoolAccess(actor, schoolID); err != nil {
		return nil, err
	}
	classes, err := s.store.Classes().ListBySchool(ctx, schoolID)
	if err != nil {
		return nil, fmt.Errorf("list classes for offers: %w", err)
	}

	packages := make(map[string]*domain.Package)
	out := make([]ClassOffer, 0, len(classes))
	for _, c := range classes {
		if !c.IsActive || c.PackageID == "" {
			continue
		}
		pkg, ok := packages[c.PackageID]
		if !ok {
			pkg, err = s.store.Packages().GetByID(ctx, c.PackageID)
			if err != nil {
				return nil, fmt.Errorf("get package for offers: %w", err)
			}
			packages[c.PackageID] = pkg
		}
		if !pkg.IsActive {
			continue
		}
		out = append(out, ClassOffer{Class: c, Package: pkg})
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Packages
// ---------------------------------------------------------------------------

// PackageItemInput is one display line of a package.
type PackageItemInput struct {
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
}

// PackageInput holds the editable fields of a package. Items replace the
// existing list.
type PackageInput struct {
	Name        string
	Description string
	Note        string
	Price       decimal.Decimal
	IsActive    bool
	Items       []PackageItemInput
}

func (in *PackageInput) normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.Note = strings.TrimSpace(in.Note)
	switch {
	case in.Name == "":
		return apperrors.InvalidInput("name is required")
	case !in.Price.IsPositive():
		return apperrors.InvalidInput("price must be positive")
	}
	for i, item := range in.Items {
		if strings.TrimSpace(item.Name) == "" || item.Quantity < 1 || item.UnitPrice.IsNegative() {
			return apperrors.InvalidInput(fmt.Sprintf("item %d needs a name, a positive quantity and a non-negative unit price", i+1))
		}
	}
	in.Price = in.Price.Round(2)
	return nil
}

func (in PackageInput) applyTo(p *domain.Package) {
	p.Name = in.Name
	p.Description = in.Description
	p.Note = in.Note
	p.Price = in.Price
	p.IsActive = in.IsActive
	p.Items = make([]domain.PackageItem, len(in.Items))
	for i, item := range in.Items {
		p.Items[i] = domain.PackageItem{
			ID:        uuid.New().String(),
			PackageID: p.ID,
			Name:      strings.TrimSpace(item.Name),
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.Round(2),
			Position:  i,
		}
	}
}

// ListPackages returns packages ordered by name.
func (s *CatalogService) ListPackages(ctx context.Context, actor domain.Actor, includeInactive bool) ([]domain.Package, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	pkgs, err := s.store.Packages().List(ctx, includeInactive)
	if err != nil {
		return nil, fmt.Errorf("list packages: %w", err)
	}
	return pkgs, nil
}

// GetPackage returns one package with its items.
func (s *CatalogService) GetPackage(ctx context.Context, id string) (*domain.Package, error) {
	pkg, err := s.store.Packages().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get package: %w", err)
	}
	return pkg, nil
}

// CreatePackage adds a package with its items.
func (s *CatalogService) CreatePackage(ctx context.Context, actor domain.Actor, in PackageInput) (*domain.Package, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := in.normalize(); err != nil {
		return nil, err
	}

	now := s.now()
	pkg := &domain.Package{ID: uuid.New().String(), CreatedAt: now, UpdatedAt: now}
	in.applyTo(pkg)

	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		if err := tx.Packages().Create(ctx, pkg); err != nil {
			return err
		}
		return s.audit.Record(ctx, tx.Logs(), actor, audit.Entry{
			Action:   domain.ActionCreate,
			Entity:   domain.EntityPackage,
			EntityID: pkg.ID,
			Details:  &domain.EntityChangeDetails{Name: pkg.Name},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("create package: %w", err)
	}
	return pkg, nil
}

// UpdatePackage replaces a package and its items. Existing orders keep the
// total they were placed with.
func (s *CatalogService) UpdatePackage(ctx context.Context, actor domain.Actor, id string, in PackageInput) (*domain.Package, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := in.normalize(); err != nil {
		return nil, err
	}

	var updated *domain.Package
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		pkg, err := tx.Packages().GetByID(ctx, id)
		if err != nil {
			return err
		}
		var changes []domain.FieldChange
		if !pkg.Price.Equal(in.Price) {
			changes = append(changes, domain.FieldChange{Field: "price", From: pkg.Price.StringFixed(2), To: in.Price.StringFixed(2)})
		}
		if pkg.Name != in.Name {
			changes = append(changes, domain.FieldChange{Field: "name", From: pkg.Name, To: in.Name})
		}
		in.applyTo(pkg)
		pkg.UpdatedAt = s.now()
		if err := tx.Packages().Update(ctx, pkg); err != nil {
			return err
		}
		updated = pkg
		return s.audit.Record(ctx, tx.Logs(), actor, audit.Entry{
			Action:   domain.ActionUpdate,
			Entity:   domain.EntityPackage,
			EntityID: pkg.ID,
			Details:  &domain.EntityChangeDetails{Name: pkg.Name, Changes: changes},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("update package: %w", err)
	}
	return updated, nil
}

// DeletePackage removes a package together with its orders and their cancel
// requests, and unlinks the classes that offered it.
func (s *CatalogService) DeletePackage(ctx context.Context, actor domain.Actor, id string) (*domain.CascadeDeleteDetails, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	var details domain.CascadeDeleteDetails
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		var err error
		details, err = tx.Packages().Delete(ctx, id)
		if err != nil {
			return err
		}
		return s.audit.Record(ctx, tx.Logs(), actor, audit.Entry{
			Action:   domain.ActionDelete,
			Entity:   domain.EntityPackage,
			EntityID: id,
			Details:  &details,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("delete package: %w", err)
	}

	logger.WithContext(ctx, s.logger).WarnContext(ctx, "package deleted",
		slog.String("package_id", id),
		slog.Int("orders", details.Orders),
		slog.Int("cancel_requests", details.CancelRequests),
		slog.Int("unlinked_classes", details.UnlinkedClass),
	)
	return &details, nil
}
