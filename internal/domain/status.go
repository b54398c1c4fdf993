package domain

import (
	"fmt"
	"strings"
)

// OrderStatus is a state of the order lifecycle.
type OrderStatus string

// Order statuses.
const (
	StatusNew               OrderStatus = "NEW"
	StatusPaymentPending    OrderStatus = "PAYMENT_PENDING"
	StatusPaid              OrderStatus = "PAID"
	StatusConfirmed         OrderStatus = "CONFIRMED"
	StatusInvoiced          OrderStatus = "INVOICED"
	StatusCargoShipped      OrderStatus = "CARGO_SHIPPED"
	StatusDeliveredToSchool OrderStatus = "DELIVERED_TO_SCHOOL"
	StatusDeliveredByCargo  OrderStatus = "DELIVERED_BY_CARGO"
	StatusCompleted         OrderStatus = "COMPLETED"
	StatusCancelled         OrderStatus = "CANCELLED"
	StatusRefunded          OrderStatus = "REFUNDED"
)

// AllStatuses lists every status in lifecycle order.
func AllStatuses() []OrderStatus {
	return []OrderStatus{
		StatusNew, StatusPaymentPending, StatusPaid, StatusConfirmed, StatusInvoiced,
		StatusCargoShipped, StatusDeliveredToSchool, StatusDeliveredByCargo,
		StatusCompleted, StatusCancelled, StatusRefunded,
	}
}

// transitions is the allow-list for administrator status changes. REFUNDED is
// absent as a target: only cancellation approval sets it.
var transitions = map[OrderStatus][]OrderStatus{
	StatusNew:               {StatusPaid, StatusConfirmed, StatusCancelled},
	StatusPaymentPending:    {StatusPaid, StatusCancelled},
	StatusPaid:              {StatusConfirmed, StatusInvoiced, StatusCancelled},
	StatusConfirmed:         {StatusInvoiced, StatusCargoShipped, StatusCancelled},
	StatusInvoiced:          {StatusCargoShipped, StatusDeliveredToSchool, StatusCancelled},
	StatusCargoShipped:      {StatusDeliveredByCargo},
	StatusDeliveredToSchool: {StatusCompleted},
	StatusDeliveredByCargo:  {StatusCompleted},
	StatusCompleted:         {},
	StatusCancelled:         {},
	StatusRefunded:          {},
}

// AllowedTransitions returns the statuses reachable from s.
func AllowedTransitions(s OrderStatus) []OrderStatus {
	next := transitions[s]
	out := make([]OrderStatus, len(next))
	copy(out, next)
	return out
}

// CanTransition reports whether from -> to is an edge of the transition table.
func CanTransition(from, to OrderStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsValid reports whether s is a known status.
func (s OrderStatus) IsValid() bool {
	_, ok := transitions[s]
	return ok
}

// IsTerminal reports whether no further transition is possible.
func (s OrderStatus) IsTerminal() bool {
	return s.IsValid() && len(transitions[s]) == 0
}

// IsPaymentConfirmed reports whether the order has been paid or confirmed
// but not yet invoiced.
func (s OrderStatus) IsPaymentConfirmed() bool {
	return s == StatusPaid || s == StatusConfirmed
}

// IsDelivered reports whether s is one of the delivered states.
func (s OrderStatus) IsDelivered() bool {
	return s == StatusDeliveredToSchool || s == StatusDeliveredByCargo
}

// IsRevenueRecognized reports whether an order in s counts toward commission
// and revenue: payment confirmed through completed.
func (s OrderStatus) IsRevenueRecognized() bool {
	switch s {
	case StatusPaid, StatusConfirmed, StatusInvoiced, StatusCargoShipped,
		StatusDeliveredToSchool, StatusDeliveredByCargo, StatusCompleted:
		return true
	}
	return false
}

// RevenueRecognizedStatuses lists the statuses counted by the commission ledger.
func RevenueRecognizedStatuses() []OrderStatus {
	var out []OrderStatus
	for _, s := range AllStatuses() {
		if s.IsRevenueRecognized() {
			out = append(out, s)
		}
	}
	return out
}

// DefaultCancellableStatuses is the set parents may request cancellation from.
func DefaultCancellableStatuses() []OrderStatus {
	return []OrderStatus{StatusNew, StatusPaymentPending, StatusPaid, StatusConfirmed, StatusInvoiced}
}

// legacyStatuses maps the older vocabulary onto the canonical one. DELIVERED
// depends on the delivery type and is handled separately.
var legacyStatuses = map[string]OrderStatus{
	"PAYMENT_RECEIVED": StatusPaid,
	"PREPARING":        StatusInvoiced,
	"SHIPPED":          StatusCargoShipped,
}

// ParseStatus normalizes raw into a canonical status. Legacy names are
// accepted and reported through legacy so callers can log them.
func ParseStatus(raw string, delivery DeliveryType) (status OrderStatus, legacy bool, err error) {
	v := strings.ToUpper(strings.TrimSpace(raw))

	if s := OrderStatus(v); s.IsValid() {
		return s, false, nil
	}
	if s, ok := legacyStatuses[v]; ok {
		return s, true, nil
	}
	if v == "DELIVERED" {
		if delivery == DeliveryCargo {
			return StatusDeliveredByCargo, true, nil
		}
		return StatusDeliveredToSchool, true, nil
	}
	return "", false, fmt.Errorf("unknown order status %q", raw)
}

// Label is the Turkish display name used in exports and notifications.
func (s OrderStatus) Label() string {
	switch s {
	case StatusNew:
		return "Yeni"
	case StatusPaymentPending:
		return "Ödeme Bekleniyor"
	case StatusPaid:
		return "Ödendi"
	case StatusConfirmed:
		return "Onaylandı"
	case StatusInvoiced:
		return "Faturalandı"
	case StatusCargoShipped:
		return "Kargoya Verildi"
	case StatusDeliveredToSchool:
		return "Okula Teslim Edildi"
	case StatusDeliveredByCargo:
		return "Kargo ile Teslim Edildi"
	case StatusCompleted:
		return "Tamamlandı"
	case StatusCancelled:
		return "İptal Edildi"
	case StatusRefunded:
		return "İade Edildi"
	}
	return string(s)
}
