// Package provider defines the payment, invoice and shipping integrations the
// order lifecycle depends on. Implementations are chosen at startup.
package provider

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/domain"
)

// ErrNotConfigured is returned by adapters that have no implementation in
// this deployment.
var ErrNotConfigured = errors.New("provider not configured")

// Failure is a business rejection reported by a provider, such as a declined
// card. Message is safe to show to the caller.
type Failure struct {
	Provider string
	Message  string
}

func (f *Failure) Error() string {
	return f.Provider + ": " + f.Message
}

// Reject returns a Failure for provider.
func Reject(provider, message string) *Failure {
	return &Failure{Provider: provider, Message: message}
}

// LineItem is one billed line.
type LineItem struct {
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// PaymentRequest opens a redirect-based payment session.
type PaymentRequest struct {
	OrderNumber string
	Amount      decimal.Decimal
	Buyer       domain.Buyer
	Items       []LineItem
}

// PaymentSession is an opened payment session. The buyer completes it at URL;
// the provider reports back with Token.
type PaymentSession struct {
	Token string
	URL   string
}

// Card holds raw card data for direct payments. It is never persisted.
type Card struct {
	HolderName  string
	Number      string
	ExpireMonth string
	ExpireYear  string
	CVC         string
}

// DirectPaymentRequest charges a card immediately.
type DirectPaymentRequest struct {
	OrderNumber string
	Amount      decimal.Decimal
	Card        Card
	Buyer       domain.Buyer
}

// PaymentResult is a captured payment.
type PaymentResult struct {
	PaymentID string
}

// RefundResult is a completed refund.
type RefundResult struct {
	RefundID string
	Message  string
}

// PaymentAdapter talks to the payment provider.
type PaymentAdapter interface {
	Initialize(ctx context.Context, req PaymentRequest) (*PaymentSession, error)
	// Verify resolves a session token to the captured payment once the buyer
	// has completed the redirect flow.
	Verify(ctx context.Context, token string) (*PaymentResult, error)
	ProcessDirect(ctx context.Context, req DirectPaymentRequest) (*PaymentResult, error)
	Refund(ctx context.Context, paymentID string, amount decimal.Decimal) (*RefundResult, error)
}

// InvoiceRequest issues an e-invoice. DocumentNo is the number reserved for
// the invoice by the caller.
type InvoiceRequest struct {
	DocumentNo  string
	OrderNumber string
	Buyer       domain.Buyer
	Address     domain.Address
	Corporate   domain.CorporateInvoice
	Items       []LineItem
	Total       decimal.Decimal
}

// Invoice is an issued invoice.
type Invoice struct {
	InvoiceNo string
	PDFPath   string
	IssuedAt  time.Time
}

// InvoiceAdapter talks to the e-invoice provider.
type InvoiceAdapter interface {
	Create(ctx context.Context, req InvoiceRequest) (*Invoice, error)
}

// PackageInfo describes the parcel.
type PackageInfo struct {
	Description string
	Pieces      int
}

// ShipmentRequest creates a cargo label.
type ShipmentRequest struct {
	OrderNumber string
	Receiver    domain.Buyer
	Address     domain.Address
	Package     PackageInfo
}

// Shipment is a created cargo label.
type Shipment struct {
	TrackingNo  string
	TrackingURL string
}

// TrackingEvent is one scan in a shipment's history.
type TrackingEvent struct {
	Time        time.Time `json:"time"`
	Status      string    `json:"status"`
	Location    string    `json:"location,omitempty"`
	Description string    `json:"description"`
}

// TrackingInfo is the carrier's view of a shipment.
type TrackingInfo struct {
	StatusCode string          `json:"statusCode"`
	Status     string          `json:"status"`
	Events     []TrackingEvent `json:"events"`
}

// ShippingAdapter talks to the cargo carrier.
type ShippingAdapter interface {
	CreateShipment(ctx context.Context, req ShipmentRequest) (*Shipment, error)
	Track(ctx context.Context, trackingNo string) (*TrackingInfo, error)
}

// Unconfigured satisfies every adapter interface and fails each call with
// ErrNotConfigured.
type Unconfigured struct{}

func (Unconfigured) Initialize(context.Context, PaymentRequest) (*PaymentSession, error) {
	return nil, ErrNotConfigured
}

func (Unconfigured) Verify(context.Context, string) (*PaymentResult, error) {
	return nil, ErrNotConfigured
}

func (Unconfigured) ProcessDirect(context.Context, DirectPaymentRequest) (*PaymentResult, error) {
	return nil, ErrNotConfigured
}

func (Unconfigured) Refund(context.Context, string, decimal.Decimal) (*RefundResult, error) {
	return nil, ErrNotConfigured
}

func (Unconfigured) Create(context.Context, InvoiceRequest) (*Invoice, error) {
	return nil, ErrNotConfigured
}

func (Unconfigured) CreateShipment(context.Context, ShipmentRequest) (*Shipment, error) {
	return nil, ErrNotConfigured
}

func (Unconfigured) Track(context.Context, string) (*TrackingInfo, error) {
	return nil, ErrNotConfigured
}
