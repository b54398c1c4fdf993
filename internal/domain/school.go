package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DeliveryType decides whether orders of a school are shipped by cargo or
// handed over at the school.
type DeliveryType string

// Delivery types.
const (
	DeliverySchool DeliveryType = "SCHOOL_DELIVERY"
	DeliveryCargo  DeliveryType = "CARGO"
)

// IsValid reports whether d is a known delivery type.
func (d DeliveryType) IsValid() bool {
	return d == DeliverySchool || d == DeliveryCargo
}

// School owns classes and commission payouts. Password is the uppercase
// token parents use to unlock ordering.
type School struct {
	ID                   string       `json:"id"`
	Name                 string       `json:"name"`
	Address              string       `json:"address,omitempty"`
	Phone                string       `json:"phone,omitempty"`
	Email                string       `json:"email,omitempty"`
	DeliveryType         DeliveryType `json:"deliveryType"`
	Password             string       `json:"password,omitempty"`
	DirectorName         string       `json:"directorName,omitempty"`
	DirectorEmail        string       `json:"directorEmail,omitempty"`
	DirectorPasswordHash string       `json:"-"`
	IsActive             bool         `json:"isActive"`
	CreatedAt            time.Time    `json:"createdAt"`
	UpdatedAt            time.Time    `json:"updatedAt"`
}

// Class belongs to one school and optionally offers one package.
// CommissionAmount is a flat amount owed to the school per recognized order.
type Class struct {
	ID               string          `json:"id"`
	SchoolID         string          `json:"schoolId"`
	Name             string          `json:"name"`
	PackageID        string          `json:"packageId,omitempty"`
	CommissionAmount decimal.Decimal `json:"commissionAmount"`
	IsActive         bool            `json:"isActive"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// Package is a priced bundle of supplies. Price is authoritative; item unit
// prices are informational only.
type Package struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Note        string          `json:"note,omitempty"`
	Price       decimal.Decimal `json:"price"`
	IsActive    bool            `json:"isActive"`
	Items       []PackageItem   `json:"items"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// PackageItem is one display line of a package.
type PackageItem struct {
	ID        string          `json:"id"`
	PackageID string          `json:"packageId"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Position  int             `json:"position"`
}
