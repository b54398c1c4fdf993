package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// AuditAction names what a SystemLog entry records.
type AuditAction string

// Audit actions.
const (
	ActionCreate        AuditAction = "CREATE"
	ActionUpdate        AuditAction = "UPDATE"
	ActionDelete        AuditAction = "DELETE"
	ActionStatusChange  AuditAction = "STATUS_CHANGE"
	ActionPayment       AuditAction = "PAYMENT"
	ActionInvoice       AuditAction = "INVOICE"
	ActionShipment      AuditAction = "SHIPMENT"
	ActionBatch         AuditAction = "BATCH"
	ActionApprove       AuditAction = "APPROVE"
	ActionReject        AuditAction = "REJECT"
	ActionCancelRequest AuditAction = "CANCEL_REQUEST"
	ActionPayout        AuditAction = "PAYOUT"
	ActionLogin         AuditAction = "LOGIN"
)

// Audit entity names.
const (
	EntityOrder         = "Order"
	EntitySchool        = "School"
	EntityClass         = "Class"
	EntityPackage       = "Package"
	EntityDiscount      = "Discount"
	EntityCancelRequest = "CancelRequest"
	EntitySchoolPayment = "SchoolPayment"
	EntityAdmin         = "Admin"
)

// AuditDetails is the typed payload of a SystemLog entry. Each action kind
// has its own struct so the stored JSON keeps a stable shape.
type AuditDetails interface {
	Kind() string
}

// FieldChange records one changed field.
type FieldChange struct {
	Field string `json:"field"`
	From  string `json:"from,omitempty"`
	To    string `json:"to,omitempty"`
}

// StatusChangeDetails records an order status transition and the fields it
// wrote.
type StatusChangeDetails struct {
	OrderNumber string        `json:"orderNumber"`
	From        OrderStatus   `json:"from"`
	To          OrderStatus   `json:"to"`
	Changes     []FieldChange `json:"changes,omitempty"`
	Legacy      string        `json:"legacyStatus,omitempty"`
}

func (StatusChangeDetails) Kind() string { return "status_change" }

// OrderCreatedDetails records a checkout.
type OrderCreatedDetails struct {
	OrderNumber    string          `json:"orderNumber"`
	TotalAmount    decimal.Decimal `json:"totalAmount"`
	DiscountCode   string          `json:"discountCode,omitempty"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	PaymentMethod  PaymentMethod   `json:"paymentMethod"`
}

func (OrderCreatedDetails) Kind() string { return "order_created" }

// PaymentDetails records a payment callback or direct charge.
type PaymentDetails struct {
	OrderNumber string `json:"orderNumber"`
	Success     bool   `json:"success"`
	PaymentID   string `json:"paymentId,omitempty"`
	Error       string `json:"error,omitempty"`
}

func (PaymentDetails) Kind() string { return "payment" }

// ArtifactDetails records an invoice or shipment produced for one order,
// typically inside a batch.
type ArtifactDetails struct {
	OrderNumber  string `json:"orderNumber"`
	InvoiceNo    string `json:"invoiceNo,omitempty"`
	TrackingNo   string `json:"trackingNo,omitempty"`
	AutoInvoiced bool   `json:"autoInvoiced,omitempty"`
	Batch        bool   `json:"batch,omitempty"`
}

func (ArtifactDetails) Kind() string { return "artifact" }

// BatchSummaryDetails records the aggregate outcome of a batch operation.
type BatchSummaryDetails struct {
	Operation    string `json:"operation"`
	Requested    int    `json:"requested"`
	Total        int    `json:"total"`
	Success      int    `json:"success"`
	Failed       int    `json:"failed"`
	AutoInvoiced int    `json:"autoInvoiced,omitempty"`
}

func (BatchSummaryDetails) Kind() string { return "batch_summary" }

// CancelDecisionDetails records the processing of a cancellation request.
type CancelDecisionDetails struct {
	OrderID        string          `json:"orderId"`
	OrderNumber    string          `json:"orderNumber"`
	Decision       CancelStatus    `json:"decision"`
	AdminNote      string          `json:"adminNote,omitempty"`
	PreviousStatus OrderStatus     `json:"previousStatus,omitempty"`
	RefundAmount   decimal.Decimal `json:"refundAmount"`
}

func (CancelDecisionDetails) Kind() string { return "cancel_decision" }

// CancelRequestDetails records a parent's cancellation request.
type CancelRequestDetails struct {
	OrderNumber string `json:"orderNumber"`
	Reason      string `json:"reason"`
	Resubmitted bool   `json:"resubmitted,omitempty"`
}

func (CancelRequestDetails) Kind() string { return "cancel_request" }

// PayoutDetails records a commission payout event.
type PayoutDetails struct {
	SchoolID string          `json:"schoolId"`
	Amount   decimal.Decimal `json:"amount"`
	Period   string          `json:"period"`
	Status   PayoutStatus    `json:"status"`
}

func (PayoutDetails) Kind() string { return "payout" }

// CascadeDeleteDetails records what a cascading delete removed.
type CascadeDeleteDetails struct {
	Name           string `json:"name"`
	Classes        int    `json:"classes,omitempty"`
	Orders         int    `json:"orders"`
	CancelRequests int    `json:"cancelRequests"`
	Payments       int    `json:"payments,omitempty"`
	UnlinkedClass  int    `json:"unlinkedClasses,omitempty"`
	PackageItems   int    `json:"packageItems,omitempty"`
}

func (CascadeDeleteDetails) Kind() string { return "cascade_delete" }

// EntityChangeDetails records a plain catalog create/update/delete.
type EntityChangeDetails struct {
	Name    string        `json:"name,omitempty"`
	Changes []FieldChange `json:"changes,omitempty"`
}

func (EntityChangeDetails) Kind() string { return "entity_change" }

// LoginDetails records a successful sign-in.
type LoginDetails struct {
	Role     ActorType `json:"role"`
	ClientIP string    `json:"clientIp,omitempty"`
}

func (LoginDetails) Kind() string { return "login" }

// SystemLog is one append-only audit entry.
type SystemLog struct {
	ID        string       `json:"id"`
	UserID    string       `json:"userId"`
	UserType  ActorType    `json:"userType"`
	Action    AuditAction  `json:"action"`
	Entity    string       `json:"entity"`
	EntityID  string       `json:"entityId"`
	Details   AuditDetails `json:"details"`
	CreatedAt time.Time    `json:"createdAt"`
}

// detailsEnvelope is the stored JSON form of AuditDetails.
type detailsEnvelope struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// MarshalDetails encodes d with its kind tag.
func MarshalDetails(d AuditDetails) ([]byte, error) {
	if d == nil {
		return []byte("null"), nil
	}
	data, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return json.Marshal(detailsEnvelope{Kind: d.Kind(), Data: data})
}

// UnmarshalDetails decodes a payload written by MarshalDetails.
func UnmarshalDetails(raw []byte) (AuditDetails, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var env detailsEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}

	var d AuditDetails
	switch env.Kind {
	case StatusChangeDetails{}.Kind():
		d = &StatusChangeDetails{}
	case OrderCreatedDetails{}.Kind():
		d = &OrderCreatedDetails{}
	case PaymentDetails{}.Kind():
		d = &PaymentDetails{}
	case ArtifactDetails{}.Kind():
		d = &ArtifactDetails{}
	case BatchSummaryDetails{}.Kind():
		d = &BatchSummaryDetails{}
	case CancelDecisionDetails{}.Kind():
		d = &CancelDecisionDetails{}
	case CancelRequestDetails{}.Kind():
		d = &CancelRequestDetails{}
	case PayoutDetails{}.Kind():
		d = &PayoutDetails{}
	case CascadeDeleteDetails{}.Kind():
		d = &CascadeDeleteDetails{}
	case EntityChangeDetails{}.Kind():
		d = &EntityChangeDetails{}
	case LoginDetails{}.Kind():
		d = &LoginDetails{}
	default:
		return nil, fmt.Errorf("unknown audit details kind %q", env.Kind)
	}

	if err := json.Unmarshal(env.Data, d); err != nil {
		return nil, err
	}
	return d, nil
}
