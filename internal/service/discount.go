package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/audit"
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/domain"
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/repository"
	apperrors "github.com/FirudinMustafa/OkulTedarik-sub000/pkg/errors"
	"github.com/FirudinMustafa/OkulTedarik-sub000/pkg/logger"
)

// DiscountService validates discount codes for checkout and administers them.
type DiscountService struct {
	store  repository.Store
	audit  *audit.Logger
	logger *slog.Logger
	now    func() time.Time
}

// NewDiscountService creates a new discount service.
func NewDiscountService(store repository.Store, auditLog *audit.Logger, logger *slog.Logger) *DiscountService {
	return &DiscountService{store: store, audit: auditLog, logger: logger, now: utcNow}
}

// DiscountQuote is the discount a code would give on an amount.
type DiscountQuote struct {
	Code           string              `json:"code"`
	Type           domain.DiscountType `json:"type"`
	Value          decimal.Decimal     `json:"value"`
	DiscountAmount decimal.Decimal     `json:"discountAmount"`
}

// DiscountValidation is the answer to a checkout-time code check.
type DiscountValidation struct {
	Valid    bool           `json:"valid"`
	Discount *DiscountQuote `json:"discount,omitempty"`
}

// ValidateDiscount checks code against amount without redeeming it. A code
// that fails a rule is reported as InvalidInput with the rule's message.
func (s *DiscountService) ValidateDiscount(ctx context.Context, code string, amount decimal.Decimal) (*DiscountValidation, error) {
	code = domain.NormalizeDiscountCode(code)
	if code == "" {
		return nil, apperrors.InvalidInput("discount code is required")
	}

	d, err := s.store.Discounts().GetByCode(ctx, code)
	if err != nil {
		if isNotFound(err) {
			return nil, apperrors.InvalidInput(domain.ErrDiscountNotFound.Error())
		}
		return nil, fmt.Errorf("get discount by code: %w", err)
	}

	off, err := d.Evaluate(amount, s.now())
	if err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}

	return &DiscountValidation{
		Valid: true,
		Discount: &DiscountQuote{
			Code:           d.Code,
			Type:           d.Type,
			Value:          d.Value,
			DiscountAmount: off,
		},
	}, nil
}

// DiscountInput holds the administrator-editable fields of a discount.
type DiscountInput struct {
	Code        string
	Type        domain.DiscountType
	Value       decimal.Decimal
	MinAmount   decimal.NullDecimal
	MaxDiscount decimal.NullDecimal
	ValidFrom   time.Time
	ValidUntil  time.Time
	UsageLimit  *int
	IsActive    bool
}

func (in *DiscountInput) normalize() error {
	in.Code = domain.NormalizeDiscountCode(in.Code)
	switch {
	case in.Code == "":
		return apperrors.InvalidInput("code is required")
	case !in.Type.IsValid():
		return apperrors.InvalidInput(fmt.Sprintf("invalid discount type %q", in.Type))
	case !in.Value.IsPositive():
		return apperrors.InvalidInput("value must be positive")
	case in.Type == domain.DiscountPercentage && in.Value.GreaterThan(decimal.NewFromInt(100)):
		return apperrors.InvalidInput("percentage must not exceed 100")
	case in.ValidFrom.IsZero() || in.ValidUntil.IsZero():
		return apperrors.InvalidInput("validFrom and validUntil are required")
	case !in.ValidUntil.After(in.ValidFrom):
		return apperrors.InvalidInput("validUntil must be after validFrom")
	case in.UsageLimit != nil && *in.UsageLimit < 1:
		return apperrors.InvalidInput("usageLimit must be at least 1")
	case in.MinAmount.Valid && in.MinAmount.Decimal.IsNegative():
		return apperrors.InvalidInput("minAmount must not be negative")
	case in.MaxDiscount.Valid && !in.MaxDiscount.Decimal.IsPositive():
		return apperrors.InvalidInput("maxDiscount must be positive")
	}
	return nil
}

func (in DiscountInput) applyTo(d *domain.Discount) {
	d.Code = in.Code
	d.Type = in.Type
	d.Value = in.Value
	d.MinAmount = in.MinAmount
	d.MaxDiscount = in.MaxDiscount
	d.ValidFrom = in.ValidFrom.UTC()
	d.ValidUntil = in.ValidUntil.UTC()
	d.UsageLimit = in.UsageLimit
	d.IsActive = in.IsActive
}

// ListDiscounts returns every discount, newest first.
func (s *DiscountService) ListDiscounts(ctx context.Context, actor domain.Actor) ([]domain.Discount, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	discounts, err := s.store.Discounts().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list discounts: %w", err)
	}
	return discounts, nil
}

// GetDiscount returns one discount.
func (s *DiscountService) GetDiscount(ctx context.Context, actor domain.Actor, id string) (*domain.Discount, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	d, err := s.store.Discounts().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get discount: %w", err)
	}
	return d, nil
}

// CreateDiscount adds a code. Codes are unique after normalization.
func (s *DiscountService) CreateDiscount(ctx context.Context, actor domain.Actor, in DiscountInput) (*domain.Discount, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := in.normalize(); err != nil {
		return nil, err
	}

	now := s.now()
	d := &domain.Discount{ID: uuid.New().String(), CreatedAt: now, UpdatedAt: now}
	in.applyTo(d)

	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		if err := tx.Discounts().Create(ctx, d); err != nil {
			return mapDiscountWriteError(err, d.Code)
		}
		return s.audit.Record(ctx, tx.Logs(), actor, audit.Entry{
			Action:   domain.ActionCreate,
			Entity:   domain.EntityDiscount,
			EntityID: d.ID,
			Details:  &domain.EntityChangeDetails{Name: d.Code},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("create discount: %w", err)
	}

	logger.WithContext(ctx, s.logger).InfoContext(ctx, "discount created",
		slog.String("discount_id", d.ID),
		slog.String("code", d.Code),
	)
	return d, nil
}

// UpdateDiscount replaces the editable fields of a discount. The usage
// counter is kept.
func (s *DiscountService) UpdateDiscount(ctx context.Context, actor domain.Actor, id string, in DiscountInput) (*domain.Discount, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := in.normalize(); err != nil {
		return nil, err
	}

	var updated *domain.Discount
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		d, err := tx.Discounts().GetByID(ctx, id)
		if err != nil {
			return err
		}
		changes := discountChanges(d, in)
		in.applyTo(d)
		d.UpdatedAt = s.now()

		if err := tx.Discounts().Update(ctx, d); err != nil {
			return mapDiscountWriteError(err, d.Code)
		}
		updated = d
		return s.audit.Record(ctx, tx.Logs(), actor, audit.Entry{
			Action:   domain.ActionUpdate,
			Entity:   domain.EntityDiscount,
			EntityID: d.ID,
			Details:  &domain.EntityChangeDetails{Name: d.Code, Changes: changes},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("update discount: %w", err)
	}
	return updated, nil
}

// DeleteDiscount removes a code. Orders keep the code they were placed with.
func (s *DiscountService) DeleteDiscount(ctx context.Context, actor domain.Actor, id string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}

	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		d, err := tx.Discounts().GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.Discounts().Delete(ctx, id); err != nil {
			return err
		}
		return s.audit.Record(ctx, tx.Logs(), actor, audit.Entry{
			Action:   domain.ActionDelete,
			Entity:   domain.EntityDiscount,
			EntityID: id,
			Details:  &domain.EntityChangeDetails{Name: d.Code},
		})
	})
	if err != nil {
		return fmt.Errorf("delete discount: %w", err)
	}
	return nil
}

func discountChanges(d *domain.Discount, in DiscountInput) []domain.FieldChange {
	var changes []domain.FieldChange
	add := func(field, from, to string) {
		if from != to {
			changes = append(changes, domain.FieldChange{Field: field, From: from, To: to})
		}
	}
	add("code", d.Code, in.Code)
	add("type", string(d.Type), string(in.Type))
	add("value", d.Value.String(), in.Value.String())
	add("isActive", fmt.Sprint(d.IsActive), fmt.Sprint(in.IsActive))
	add("validUntil", d.ValidUntil.UTC().Format(time.RFC3339), in.ValidUntil.UTC().Format(time.RFC3339))
	return changes
}

func mapDiscountWriteError(err error, code string) error {
	if errors.Is(err, repository.ErrDuplicateDiscountCode) {
		return apperrors.AlreadyExists("discount", "code", code)
	}
	return err
}
