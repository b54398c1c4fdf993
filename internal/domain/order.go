package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethod chosen at checkout.
type PaymentMethod string

// Payment methods.
const (
	PaymentCreditCard     PaymentMethod = "CREDIT_CARD"
	PaymentCashOnDelivery PaymentMethod = "CASH_ON_DELIVERY"
)

// IsValid reports whether m is a known payment method.
func (m PaymentMethod) IsValid() bool {
	return m == PaymentCreditCard || m == PaymentCashOnDelivery
}

// InitialStatus is the status a new order starts in.
func (m PaymentMethod) InitialStatus() OrderStatus {
	if m == PaymentCreditCard {
		return StatusPaymentPending
	}
	return StatusNew
}

// Label is the Turkish display name.
func (m PaymentMethod) Label() string {
	switch m {
	case PaymentCreditCard:
		return "Kredi Kartı"
	case PaymentCashOnDelivery:
		return "Kapıda Ödeme"
	}
	return string(m)
}

// NumberField names a column filled by the sequence generator.
type NumberField string

// Sequence-numbered order columns.
const (
	FieldOrderNumber        NumberField = "order_number"
	FieldInvoiceNo          NumberField = "invoice_no"
	FieldDeliveryDocumentNo NumberField = "delivery_document_no"
)

// Buyer identifies the parent placing the order.
type Buyer struct {
	ParentName     string `json:"parentName"`
	StudentName    string `json:"studentName"`
	StudentSection string `json:"studentSection,omitempty"`
	Phone          string `json:"phone"`
	Email          string `json:"email,omitempty"`
}

// Address is the delivery and invoice address. Required for cargo schools.
type Address struct {
	Line     string `json:"line,omitempty"`
	District string `json:"district,omitempty"`
	City     string `json:"city,omitempty"`
}

// IsIncomplete reports whether the address line or the city is missing.
func (a Address) IsIncomplete() bool {
	return a.Line == "" || a.City == ""
}

// CorporateInvoice carries the company fields when the buyer wants a
// corporate invoice.
type CorporateInvoice struct {
	IsCorporate  bool   `json:"isCorporateInvoice"`
	CompanyTitle string `json:"companyTitle,omitempty"`
	TaxNumber    string `json:"taxNumber,omitempty"`
	TaxOffice    string `json:"taxOffice,omitempty"`
}

// Order is one package purchase for one student. TotalAmount is captured at
// creation and never re-derived from the package price.
type Order struct {
	ID          string `json:"id"`
	OrderNumber string `json:"orderNumber"`
	SchoolID    string `json:"schoolId"`
	ClassID     string `json:"classId"`
	PackageID   string `json:"packageId"`

	Buyer
	Address Address `json:"address"`
	CorporateInvoice

	TotalAmount    decimal.Decimal `json:"totalAmount"`
	DiscountCode   string          `json:"discountCode,omitempty"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`

	Status        OrderStatus   `json:"status"`
	PaymentMethod PaymentMethod `json:"paymentMethod"`
	PaymentID     string        `json:"paymentId,omitempty"`
	PaymentToken  string        `json:"-"`
	PaymentURL    string        `json:"paymentUrl,omitempty"`
	PaidAt        *time.Time    `json:"paidAt,omitempty"`

	InvoiceNo      string     `json:"invoiceNo,omitempty"`
	InvoiceDate    *time.Time `json:"invoiceDate,omitempty"`
	InvoicePDFPath string     `json:"invoicePdfPath,omitempty"`

	TrackingNo         string     `json:"trackingNo,omitempty"`
	ShippedAt          *time.Time `json:"shippedAt,omitempty"`
	DeliveredAt        *time.Time `json:"deliveredAt,omitempty"`
	DeliveryDocumentNo string     `json:"deliveryDocumentNo,omitempty"`

	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BlocksNewOrderForStudent reports whether this order prevents another order
// for the same student in the same class.
func (o *Order) BlocksNewOrderForStudent() bool {
	return o.Status != StatusCancelled && o.Status != StatusRefunded
}

// ApplyStatus moves the order to status and stamps the timestamp that
// belongs to the target, leaving existing timestamps untouched.
func (o *Order) ApplyStatus(status OrderStatus, now time.Time) {
	o.Status = status
	switch status {
	case StatusPaid:
		if o.PaidAt == nil {
			o.PaidAt = &now
		}
	case StatusDeliveredToSchool, StatusDeliveredByCargo:
		o.DeliveredAt = &now
	}
	o.UpdatedAt = now
}

// Clone returns a copy that shares no pointers with o.
func (o *Order) Clone() *Order {
	c := *o
	c.PaidAt = cloneTime(o.PaidAt)
	c.InvoiceDate = cloneTime(o.InvoiceDate)
	c.ShippedAt = cloneTime(o.ShippedAt)
	c.DeliveredAt = cloneTime(o.DeliveredAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
