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
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/domain"
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/event"
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/provider"
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/repository"
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/sequence"
	apperrors "github.com/FirudinMustafa/OkulTedarik-sub000/pkg/errors"
	"github.com/FirudinMustafa/OkulTedarik-sub000/pkg/logger"
	"github.com/FirudinMustafa/OkulTedarik-sub000/pkg/validator"
)

// OrderService is the order lifecycle engine. Every status change runs as
// one transaction that locks the order, calls the provider the target status
// needs and writes the order and its audit entry together.
type OrderService struct {
	store    repository.Store
	seq      *sequence.Generator
	adapters Adapters
	events   event.Publisher
	audit    *audit.Logger
	logger   *slog.Logger
	now      func() time.Time
}

// NewOrderService creates a new order service.
func NewOrderService(
	store repository.Store,
	seq *sequence.Generator,
	adapters Adapters,
	events event.Publisher,
	auditLog *audit.Logger,
	logger *slog.Logger,
) *OrderService {
	return &OrderService{
		store:    store,
		seq:      seq,
		adapters: adapters,
		events:   events,
		audit:    auditLog,
		logger:   logger,
		now:      utcNow,
	}
}

// CreateOrderInput holds the checkout form of a parent.
type CreateOrderInput struct {
	ClassID       string
	Buyer         domain.Buyer
	Address       domain.Address
	Corporate     domain.CorporateInvoice
	DiscountCode  string
	PaymentMethod domain.PaymentMethod
	Notes         string
}

// CreateOrderResult is returned to the parent after checkout.
type CreateOrderResult struct {
	OrderID        string             `json:"orderId"`
	OrderNumber    string             `json:"orderNumber"`
	Status         domain.OrderStatus `json:"status"`
	TotalAmount    decimal.Decimal    `json:"totalAmount"`
	DiscountAmount decimal.Decimal    `json:"discountAmount"`
	PaymentURL     string             `json:"paymentUrl,omitempty"`
}

func (in *CreateOrderInput) normalize() error {
	in.ClassID = strings.TrimSpace(in.ClassID)
	in.Buyer.ParentName = strings.TrimSpace(in.Buyer.ParentName)
	in.Buyer.StudentName = strings.TrimSpace(in.Buyer.StudentName)
	in.Buyer.StudentSection = strings.TrimSpace(in.Buyer.StudentSection)
	in.Buyer.Phone = validator.NormalizePhone(strings.TrimSpace(in.Buyer.Phone))
	in.Buyer.Email = strings.ToLower(strings.TrimSpace(in.Buyer.Email))
	in.DiscountCode = domain.NormalizeDiscountCode(in.DiscountCode)

	switch {
	case in.ClassID == "":
		return apperrors.InvalidInput("classId is required")
	case in.Buyer.ParentName == "":
		return apperrors.InvalidInput("parentName is required")
	case in.Buyer.StudentName == "":
		return apperrors.InvalidInput("studentName is required")
	case in.Buyer.Phone == "":
		return apperrors.InvalidInput("phone is required")
	case !in.PaymentMethod.IsValid():
		return apperrors.InvalidInput(fmt.Sprintf("invalid payment method %q", in.PaymentMethod))
	}
	if in.Corporate.IsCorporate && (strings.TrimSpace(in.Corporate.CompanyTitle) == "" || strings.TrimSpace(in.Corporate.TaxNumber) == "") {
		return apperrors.InvalidInput("companyTitle and taxNumber are required for a corporate invoice")
	}
	return nil
}

// CreateOrder places an order for a student. Cash-on-delivery orders start
// as NEW; card orders start as PAYMENT_PENDING with a payment session whose
// URL is returned. The discount redemption, the order row and the payment
// session are committed together.
func (s *OrderService) CreateOrder(ctx context.Context, actor domain.Actor, input CreateOrderInput) (*CreateOrderResult, error) {
	if actor.Type != domain.ActorParent && actor.Type != domain.ActorAdmin {
		return nil, apperrors.Forbidden("only parents can place orders")
	}
	if err := input.normalize(); err != nil {
		return nil, err
	}

	class, err := s.store.Classes().GetByID(ctx, input.ClassID)
	if err != nil {
		return nil, fmt.Errorf("get class for order: %w", err)
	}
	if err := requireSchoolAccess(actor, class.SchoolID); err != nil {
		return nil, err
	}
	if !class.IsActive || class.PackageID == "" {
		return nil, apperrors.InvalidInput("class is not open for ordering")
	}

	school, err := s.store.Schools().GetByID(ctx, class.SchoolID)
	if err != nil {
		return nil, fmt.Errorf("get school for order: %w", err)
	}
	if !school.IsActive {
		return nil, apperrors.InvalidInput("school is not active")
	}
	if school.DeliveryType == domain.DeliveryCargo && input.Address.IsIncomplete() {
		return nil, apperrors.InvalidInput("address line and city are required for cargo delivery")
	}

	pkg, err := s.store.Packages().GetByID(ctx, class.PackageID)
	if err != nil {
		return nil, fmt.Errorf("get package for order: %w", err)
	}
	if !pkg.IsActive {
		return nil, apperrors.InvalidInput("package is not available")
	}

	if err := s.checkStudent(ctx, s.store.Orders(), class.ID, input.Buyer.StudentName); err != nil {
		return nil, err
	}

	now := s.now()
	discountAmount := decimal.Zero
	var discount *domain.Discount
	if input.DiscountCode != "" {
		discount, err = s.store.Discounts().GetByCode(ctx, input.DiscountCode)
		if err != nil {
			if isNotFound(err) {
				return nil, apperrors.InvalidInput(domain.ErrDiscountNotFound.Error())
			}
			return nil, fmt.Errorf("get discount for order: %w", err)
		}
		discountAmount, err = discount.Evaluate(pkg.Price, now)
		if err != nil {
			return nil, apperrors.InvalidInput(err.Error())
		}
	}

	order := &domain.Order{
		ID:               uuid.New().String(),
		SchoolID:         school.ID,
		ClassID:          class.ID,
		PackageID:        pkg.ID,
		Buyer:            input.Buyer,
		Address:          input.Address,
		CorporateInvoice: input.Corporate,
		TotalAmount:      pkg.Price.Sub(discountAmount),
		DiscountAmount:   discountAmount,
		Status:           input.PaymentMethod.InitialStatus(),
		PaymentMethod:    input.PaymentMethod,
		Notes:            strings.TrimSpace(input.Notes),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if discount != nil {
		order.DiscountCode = discount.Code
	}

	err = sequence.Retry(ctx, sequence.DefaultAttempts, func() error {
		return s.store.WithinTx(ctx, func(tx repository.Store) error {
			number, err := s.seq.Next(ctx, tx.Orders(), sequence.OrderNumber)
			if err != nil {
				return err
			}
			order.OrderNumber = number

			if discount != nil {
				if err := tx.Discounts().Redeem(ctx, discount.ID); err != nil {
					if errors.Is(err, repository.ErrDiscountExhausted) {
						return apperrors.InvalidInput(domain.ErrDiscountLimitReached.Error())
					}
					return fmt.Errorf("redeem discount: %w", err)
				}
			}

			if err := tx.Orders().Create(ctx, order); err != nil {
				return err
			}

			if order.PaymentMethod == domain.PaymentCreditCard {
				if err := s.openPaymentSession(ctx, tx, order, pkg); err != nil {
					return err
				}
			}

			return s.audit.Record(ctx, tx.Logs(), actor, audit.Entry{
				Action:   domain.ActionCreate,
				Entity:   domain.EntityOrder,
				EntityID: order.ID,
				Details: &domain.OrderCreatedDetails{
					OrderNumber:    order.OrderNumber,
					TotalAmount:    order.TotalAmount,
					DiscountCode:   order.DiscountCode,
					DiscountAmount: order.DiscountAmount,
					PaymentMethod:  order.PaymentMethod,
				},
			})
		})
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateStudent) {
			return nil, s.duplicateStudentError(ctx, class.ID, order.StudentName)
		}
		return nil, fmt.Errorf("create order: %w", err)
	}

	ordersCreated.WithLabelValues(string(order.PaymentMethod)).Inc()
	if discount != nil {
		discountRedemptions.Inc()
	}
	s.events.OrderCreated(ctx, order)

	logger.WithContext(ctx, s.logger).InfoContext(ctx, "order created",
		slog.String("order_id", order.ID),
		slog.String("order_number", order.OrderNumber),
		slog.String("status", string(order.Status)),
		slog.String("total_amount", order.TotalAmount.StringFixed(2)),
	)

	return &CreateOrderResult{
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		Status:         order.Status,
		TotalAmount:    order.TotalAmount,
		DiscountAmount: order.DiscountAmount,
		PaymentURL:     order.PaymentURL,
	}, nil
}

// checkStudent rejects a second live order for the same student and class.
func (s *OrderService) checkStudent(ctx context.Context, orders repository.OrderRepository, classID, studentName string) error {
	existing, err := orders.FindBlockingForStudent(ctx, classID, studentName)
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return fmt.Errorf("check existing student order: %w", err)
	}
	return apperrors.Conflict("an order already exists for this student in this class").
		WithDetail("orderNumber", existing.OrderNumber)
}

func (s *OrderService) duplicateStudentError(ctx context.Context, classID, studentName string) error {
	if err := s.checkStudent(ctx, s.store.Orders(), classID, studentName); err != nil {
		return err
	}
	return apperrors.Conflict("an order already exists for this student in this class")
}

func (s *OrderService) openPaymentSession(ctx context.Context, tx repository.Store, o *domain.Order, pkg *domain.Package) error {
	session, err := s.adapters.Payment.Initialize(ctx, provider.PaymentRequest{
		OrderNumber: o.OrderNumber,
		Amount:      o.TotalAmount,
		Buyer:       o.Buyer,
		Items:       []provider.LineItem{{Name: pkg.Name, Quantity: 1, UnitPrice: o.TotalAmount}},
	})
	if err != nil {
		logAdapterFailure(ctx, s.logger, adapterPayment, "initialize", o.OrderNumber, err)
		return adapterError(adapterPayment, err)
	}

	o.PaymentToken = session.Token
	o.PaymentURL = session.URL
	if err := tx.Orders().Update(ctx, o); err != nil {
		return fmt.Errorf("store payment session: %w", err)
	}
	return nil
}

// GetOrder returns an order the actor may see.
func (s *OrderService) GetOrder(ctx context.Context, actor domain.Actor, id string) (*domain.Order, error) {
	o, err := s.store.Orders().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order by id: %w", err)
	}
	if err := requireSchoolAccess(actor, o.SchoolID); err != nil {
		return nil, err
	}
	return o, nil
}

// GetOrderByNumber looks an order up by its order number. It has no side
// effects, so repeated calls return the same data.
func (s *OrderService) GetOrderByNumber(ctx context.Context, orderNumber string) (*domain.Order, error) {
	o, err := s.store.Orders().GetByNumber(ctx, strings.ToUpper(strings.TrimSpace(orderNumber)))
	if err != nil {
		return nil, fmt.Errorf("get order by number: %w", err)
	}
	return o, nil
}

// OrderTracking is what a parent sees when following an order.
type OrderTracking struct {
	Order         *domain.Order          `json:"order"`
	CancelRequest *domain.CancelRequest  `json:"cancelRequest,omitempty"`
	Shipment      *provider.TrackingInfo `json:"shipment,omitempty"`
}

// TrackOrder returns the order, its cancel request and, once shipped, the
// carrier's tracking history. A carrier failure leaves Shipment empty.
func (s *OrderService) TrackOrder(ctx context.Context, orderNumber string) (*OrderTracking, error) {
	o, err := s.GetOrderByNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	view := &OrderTracking{Order: o}

	req, err := s.store.CancelRequests().GetByOrderID(ctx, o.ID)
	switch {
	case err == nil:
		view.CancelRequest = req
	case !isNotFound(err):
		return nil, fmt.Errorf("get cancel request for tracking: %w", err)
	}

	if o.TrackingNo != "" {
		info, err := s.adapters.Shipping.Track(ctx, o.TrackingNo)
		if err != nil {
			logAdapterFailure(ctx, s.logger, adapterShipping, "track", o.OrderNumber, err)
		} else {
			view.Shipment = info
		}
	}
	return view, nil
}

// ListOrders returns a filtered page of orders. Directors only see their
// own school.
func (s *OrderService) ListOrders(ctx context.Context, actor domain.Actor, filter repository.OrderFilter) ([]domain.Order, int, error) {
	switch actor.Type {
	case domain.ActorAdmin:
	case domain.ActorDirector:
		if filter.SchoolID != "" && filter.SchoolID != actor.SchoolID {
			return nil, 0, apperrors.Forbidden("no access to this school")
		}
		filter.SchoolID = actor.SchoolID
	default:
		return nil, 0, apperrors.Forbidden("order listing requires an administrator or director")
	}

	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PerPage <= 0 {
		filter.PerPage = 20
	}
	if filter.PerPage > 100 {
		filter.PerPage = 100
	}

	orders, total, err := s.store.Orders().List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	return orders, total, nil
}

// UpdateOrderInput is an administrator edit. Status is optional and may use
// legacy names; nil fields are left unchanged.
type UpdateOrderInput struct {
	Status         string
	ParentName     *string
	StudentName    *string
	StudentSection *string
	Phone          *string
	Email          *string
	Address        *domain.Address
	Corporate      *domain.CorporateInvoice
	Notes          *string
}

// UpdateStatus moves an order to status.
func (s *OrderService) UpdateStatus(ctx context.Context, actor domain.Actor, id, status string) (*domain.Order, error) {
	return s.UpdateOrder(ctx, actor, id, UpdateOrderInput{Status: status})
}

// UpdateOrder applies an administrator edit. A status change is checked
// against the transition table and runs the provider call the target needs;
// edited fields are written in the same update.
func (s *OrderService) UpdateOrder(ctx context.Context, actor domain.Actor, id string, in UpdateOrderInput) (*domain.Order, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	var (
		updated *domain.Order
		from    domain.OrderStatus
	)
	err := sequence.Retry(ctx, sequence.DefaultAttempts, func() error {
		return s.store.WithinTx(ctx, func(tx repository.Store) error {
			o, err := tx.Orders().GetByIDForUpdate(ctx, id)
			if err != nil {
				return err
			}
			school, err := tx.Schools().GetByID(ctx, o.SchoolID)
			if err != nil {
				return fmt.Errorf("get school of order: %w", err)
			}
			from = o.Status

			var (
				changes []domain.FieldChange
				legacy  string
			)
			if strings.TrimSpace(in.Status) != "" {
				to, isLegacy, err := domain.ParseStatus(in.Status, school.DeliveryType)
				if err != nil {
					return apperrors.InvalidInput(err.Error())
				}
				if isLegacy {
					legacy = in.Status
					logger.WithContext(ctx, s.logger).WarnContext(ctx, "legacy order status normalized",
						slog.String("order_id", o.ID),
						slog.String("given", in.Status),
						slog.String("status", string(to)),
					)
				}
				if to != o.Status {
					changes, err = s.apply(ctx, tx, o, school, to)
					if err != nil {
						return err
					}
				}
			}

			changes = append(changes, applyEdits(o, in)...)
			if len(changes) == 0 {
				updated = o
				return nil
			}
			o.UpdatedAt = s.now()

			if err := tx.Orders().Update(ctx, o); err != nil {
				return mapOrderWriteError(err)
			}

			entry := audit.Entry{
				Action:   domain.ActionUpdate,
				Entity:   domain.EntityOrder,
				EntityID: o.ID,
				Details:  &domain.EntityChangeDetails{Name: o.OrderNumber, Changes: changes},
			}
			if o.Status != from {
				entry.Action = domain.ActionStatusChange
				entry.Details = &domain.StatusChangeDetails{
					OrderNumber: o.OrderNumber,
					From:        from,
					To:          o.Status,
					Changes:     changes,
					Legacy:      legacy,
				}
			}
			if err := s.audit.Record(ctx, tx.Logs(), actor, entry); err != nil {
				return err
			}
			updated = o
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("update order: %w", err)
	}

	if updated.Status != from {
		s.statusCommitted(ctx, updated, from, actor)
	}
	return updated, nil
}

// transitionOptions selects how a single transition is audited.
type transitionOptions struct {
	batch        bool
	autoInvoiced bool
}

// transition runs one status change of order id as its own unit of work.
func (s *OrderService) transition(ctx context.Context, actor domain.Actor, id string, to domain.OrderStatus, opts transitionOptions) (*domain.Order, error) {
	var (
		o    *domain.Order
		from domain.OrderStatus
	)
	err := sequence.Retry(ctx, sequence.DefaultAttempts, func() error {
		return s.store.WithinTx(ctx, func(tx repository.Store) error {
			var err error
			o, err = tx.Orders().GetByIDForUpdate(ctx, id)
			if err != nil {
				return err
			}
			school, err := tx.Schools().GetByID(ctx, o.SchoolID)
			if err != nil {
				return fmt.Errorf("get school of order: %w", err)
			}
			from = o.Status

			changes, err := s.apply(ctx, tx, o, school, to)
			if err != nil {
				return err
			}
			if err := tx.Orders().Update(ctx, o); err != nil {
				return mapOrderWriteError(err)
			}
			return s.audit.Record(ctx, tx.Logs(), actor, transitionEntry(o, from, changes, opts))
		})
	})
	if err != nil {
		return nil, err
	}

	s.statusCommitted(ctx, o, from, actor)
	return o, nil
}

func transitionEntry(o *domain.Order, from domain.OrderStatus, changes []domain.FieldChange, opts transitionOptions) audit.Entry {
	entry := audit.Entry{
		Action:   domain.ActionStatusChange,
		Entity:   domain.EntityOrder,
		EntityID: o.ID,
		Details: &domain.StatusChangeDetails{
			OrderNumber: o.OrderNumber,
			From:        from,
			To:          o.Status,
			Changes:     changes,
		},
	}
	if !opts.batch {
		return entry
	}

	artifact := &domain.ArtifactDetails{
		OrderNumber:  o.OrderNumber,
		AutoInvoiced: opts.autoInvoiced,
		Batch:        true,
	}
	switch o.Status {
	case domain.StatusInvoiced:
		entry.Action = domain.ActionInvoice
		artifact.InvoiceNo = o.InvoiceNo
	case domain.StatusCargoShipped:
		entry.Action = domain.ActionShipment
		artifact.InvoiceNo = o.InvoiceNo
		artifact.TrackingNo = o.TrackingNo
	default:
		return entry
	}
	entry.Details = artifact
	return entry
}

// apply validates from -> to against the transition table and performs the
// side effect the target status needs. o is only modified on success.
func (s *OrderService) apply(ctx context.Context, tx repository.Store, o *domain.Order, school *domain.School, to domain.OrderStatus) ([]domain.FieldChange, error) {
	from := o.Status
	if !domain.CanTransition(from, to) {
		return nil, apperrors.InvalidTransition(string(from), string(to))
	}

	now := s.now()
	changes := []domain.FieldChange{{Field: "status", From: string(from), To: string(to)}}

	switch to {
	case domain.StatusInvoiced:
		inv, err := s.issueInvoice(ctx, tx, o)
		if err != nil {
			return nil, err
		}
		issued := inv.IssuedAt.UTC()
		if inv.IssuedAt.IsZero() {
			issued = now
		}
		o.InvoiceNo = inv.InvoiceNo
		o.InvoicePDFPath = inv.PDFPath
		o.InvoiceDate = &issued
		changes = append(changes, domain.FieldChange{Field: "invoiceNo", To: inv.InvoiceNo})

	case domain.StatusCargoShipped:
		if school.DeliveryType != domain.DeliveryCargo {
			return nil, deliveryMismatch(to, school.DeliveryType)
		}
		shipment, err := s.adapters.Shipping.CreateShipment(ctx, provider.ShipmentRequest{
			OrderNumber: o.OrderNumber,
			Receiver:    o.Buyer,
			Address:     o.Address,
			Package:     provider.PackageInfo{Description: "Okul malzeme paketi " + o.OrderNumber, Pieces: 1},
		})
		if err != nil {
			logAdapterFailure(ctx, s.logger, adapterShipping, "create_shipment", o.OrderNumber, err)
			return nil, adapterError(adapterShipping, err)
		}
		o.TrackingNo = shipment.TrackingNo
		o.ShippedAt = &now
		changes = append(changes, domain.FieldChange{Field: "trackingNo", To: shipment.TrackingNo})

	case domain.StatusDeliveredToSchool:
		if school.DeliveryType != domain.DeliverySchool {
			return nil, deliveryMismatch(to, school.DeliveryType)
		}
		docNo, err := s.seq.Next(ctx, tx.Orders(), sequence.DeliveryDocument)
		if err != nil {
			return nil, err
		}
		o.DeliveryDocumentNo = docNo
		changes = append(changes, domain.FieldChange{Field: "deliveryDocumentNo", To: docNo})

	case domain.StatusDeliveredByCargo:
		if school.DeliveryType != domain.DeliveryCargo {
			return nil, deliveryMismatch(to, school.DeliveryType)
		}
	}

	o.ApplyStatus(to, now)
	return changes, nil
}

func deliveryMismatch(to domain.OrderStatus, delivery domain.DeliveryType) error {
	return apperrors.InvalidInput(fmt.Sprintf("status %s is not available for schools with %s", to, delivery))
}

// issueInvoice reserves the next invoice number and asks the invoice
// provider to issue it.
func (s *OrderService) issueInvoice(ctx context.Context, tx repository.Store, o *domain.Order) (*provider.Invoice, error) {
	number, err := s.seq.Next(ctx, tx.Orders(), sequence.InvoiceNumber)
	if err != nil {
		return nil, err
	}
	pkg, err := tx.Packages().GetByID(ctx, o.PackageID)
	if err != nil {
		return nil, fmt.Errorf("get package for invoice: %w", err)
	}

	inv, err := s.adapters.Invoice.Create(ctx, provider.InvoiceRequest{
		DocumentNo:  number,
		OrderNumber: o.OrderNumber,
		Buyer:       o.Buyer,
		Address:     o.Address,
		Corporate:   o.CorporateInvoice,
		Items:       invoiceLines(pkg, o),
		Total:       o.TotalAmount,
	})
	if err != nil {
		logAdapterFailure(ctx, s.logger, adapterInvoice, "create", o.OrderNumber, err)
		return nil, adapterError(adapterInvoice, err)
	}
	return inv, nil
}

// invoiceLines lists the package items for display. The billed amount is
// always the order total.
func invoiceLines(pkg *domain.Package, o *domain.Order) []provider.LineItem {
	if len(pkg.Items) == 0 {
		return []provider.LineItem{{Name: pkg.Name, Quantity: 1, UnitPrice: o.TotalAmount}}
	}
	lines := make([]provider.LineItem, len(pkg.Items))
	for i, item := range pkg.Items {
		lines[i] = provider.LineItem{Name: item.Name, Quantity: item.Quantity, UnitPrice: item.UnitPrice}
	}
	return lines
}

func (s *OrderService) statusCommitted(ctx context.Context, o *domain.Order, from domain.OrderStatus, actor domain.Actor) {
	orderTransitions.WithLabelValues(string(from), string(o.Status)).Inc()
	s.events.StatusChanged(ctx, o, from, actor)

	logger.WithContext(ctx, s.logger).InfoContext(ctx, "order status changed",
		slog.String("order_id", o.ID),
		slog.String("order_number", o.OrderNumber),
		slog.String("old_status", string(from)),
		slog.String("new_status", string(o.Status)),
	)
}

// ConfirmPayment completes a redirect payment reported by the provider. A
// failed verification leaves the order in PAYMENT_PENDING and is audited.
func (s *OrderService) ConfirmPayment(ctx context.Context, token string) (*domain.Order, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, apperrors.InvalidInput("payment token is required")
	}

	o, err := s.store.Orders().GetByPaymentToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("get order by payment token: %w", err)
	}
	if o.Status == domain.StatusPaid && o.PaymentID != "" {
		return o, nil
	}
	if o.Status != domain.StatusPaymentPending {
		return nil, apperrors.Conflict(fmt.Sprintf("order is %s, not awaiting payment", o.Status))
	}

	result, err := s.adapters.Payment.Verify(ctx, token)
	if err != nil {
		logAdapterFailure(ctx, s.logger, adapterPayment, "verify", o.OrderNumber, err)
		appErr := adapterError(adapterPayment, err)
		s.recordPaymentFailure(ctx, domain.SystemActor, o, appErr)
		return nil, appErr
	}

	return s.markPaid(ctx, domain.SystemActor, o.ID, func(*domain.Order) (string, error) {
		return result.PaymentID, nil
	})
}

// PayWithCard charges a card directly for a card order awaiting payment.
func (s *OrderService) PayWithCard(ctx context.Context, actor domain.Actor, orderID string, card provider.Card) (*domain.Order, error) {
	o, err := s.GetOrder(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}
	if o.PaymentMethod != domain.PaymentCreditCard {
		return nil, apperrors.InvalidInput("order is not paid by card")
	}

	var chargeErr error
	paid, err := s.markPaid(ctx, actor, o.ID, func(locked *domain.Order) (string, error) {
		res, err := s.adapters.Payment.ProcessDirect(ctx, provider.DirectPaymentRequest{
			OrderNumber: locked.OrderNumber,
			Amount:      locked.TotalAmount,
			Card:        card,
			Buyer:       locked.Buyer,
		})
		if err != nil {
			logAdapterFailure(ctx, s.logger, adapterPayment, "process_direct", locked.OrderNumber, err)
			chargeErr = adapterError(adapterPayment, err)
			return "", chargeErr
		}
		return res.PaymentID, nil
	})
	if chargeErr != nil {
		s.recordPaymentFailure(ctx, actor, o, chargeErr)
		return nil, chargeErr
	}
	return paid, err
}

// markPaid locks the order, obtains the payment id from capture and moves
// the order from PAYMENT_PENDING to PAID.
func (s *OrderService) markPaid(ctx context.Context, actor domain.Actor, id string, capture func(*domain.Order) (string, error)) (*domain.Order, error) {
	var o *domain.Order
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		var err error
		o, err = tx.Orders().GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if o.Status != domain.StatusPaymentPending {
			return apperrors.Conflict(fmt.Sprintf("order is %s, not awaiting payment", o.Status))
		}

		paymentID, err := capture(o)
		if err != nil {
			return err
		}
		o.PaymentID = paymentID
		o.ApplyStatus(domain.StatusPaid, s.now())
		if err := tx.Orders().Update(ctx, o); err != nil {
			return fmt.Errorf("update paid order: %w", err)
		}

		return s.audit.Record(ctx, tx.Logs(), actor, audit.Entry{
			Action:   domain.ActionPayment,
			Entity:   domain.EntityOrder,
			EntityID: o.ID,
			Details: &domain.PaymentDetails{
				OrderNumber: o.OrderNumber,
				Success:     true,
				PaymentID:   paymentID,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.statusCommitted(ctx, o, domain.StatusPaymentPending, actor)
	return o, nil
}

func (s *OrderService) recordPaymentFailure(ctx context.Context, actor domain.Actor, o *domain.Order, cause error) {
	msg := cause.Error()
	var appErr *apperrors.AppError
	if errors.As(cause, &appErr) {
		msg = appErr.Message
	}
	s.audit.RecordBestEffort(ctx, s.store.Logs(), actor, audit.Entry{
		Action:   domain.ActionPayment,
		Entity:   domain.EntityOrder,
		EntityID: o.ID,
		Details: &domain.PaymentDetails{
			OrderNumber: o.OrderNumber,
			Success:     false,
			Error:       msg,
		},
	})
}

// applyEdits copies the non-status fields of in onto o and reports what
// changed.
func applyEdits(o *domain.Order, in UpdateOrderInput) []domain.FieldChange {
	var changes []domain.FieldChange
	set := func(field string, dst *string, v *string) {
		if v == nil {
			return
		}
		nv := strings.TrimSpace(*v)
		if nv == *dst {
			return
		}
		changes = append(changes, domain.FieldChange{Field: field, From: *dst, To: nv})
		*dst = nv
	}

	set("parentName", &o.ParentName, in.ParentName)
	set("studentName", &o.StudentName, in.StudentName)
	set("studentSection", &o.StudentSection, in.StudentSection)
	if in.Phone != nil {
		phone := validator.NormalizePhone(*in.Phone)
		set("phone", &o.Phone, &phone)
	}
	set("email", &o.Email, in.Email)
	set("notes", &o.Notes, in.Notes)

	if in.Address != nil && *in.Address != o.Address {
		changes = append(changes, domain.FieldChange{Field: "address"})
		o.Address = *in.Address
	}
	if in.Corporate != nil && *in.Corporate != o.CorporateInvoice {
		changes = append(changes, domain.FieldChange{Field: "corporateInvoice"})
		o.CorporateInvoice = *in.Corporate
	}
	return changes
}

func mapOrderWriteError(err error) error {
	if errors.Is(err, repository.ErrDuplicateStudent) {
		return apperrors.Conflict("an order already exists for this student in this class")
	}
	if errors.Is(err, repository.ErrDuplicateNumber) {
		return err
	}
	return fmt.Errorf("write order: %w", err)
}
