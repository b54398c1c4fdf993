package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PayoutStatus is the state of a commission payout.
type PayoutStatus string

// Payout states.
const (
	PayoutPending PayoutStatus = "PENDING"
	PayoutPaid    PayoutStatus = "PAID"
)

// SchoolPayment is a manually recorded commission disbursement.
type SchoolPayment struct {
	ID          string          `json:"id"`
	SchoolID    string          `json:"schoolId"`
	Amount      decimal.Decimal `json:"amount"`
	Period      string          `json:"period"`
	Status      PayoutStatus    `json:"status"`
	PaymentDate time.Time       `json:"paymentDate"`
	PaidAt      *time.Time      `json:"paidAt,omitempty"`
	Note        string          `json:"note,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

var turkishMonths = [...]string{
	"Ocak", "Şubat", "Mart", "Nisan", "Mayıs", "Haziran",
	"Temmuz", "Ağustos", "Eylül", "Ekim", "Kasım", "Aralık",
}

// PeriodLabel formats t as a month/year label such as "Ekim 2026".
func PeriodLabel(t time.Time) string {
	return fmt.Sprintf("%s %d", turkishMonths[t.Month()-1], t.Year())
}

// ClassCommission is the commission accrued by one class.
type ClassCommission struct {
	ClassID          string          `json:"classId"`
	ClassName        string          `json:"className"`
	CommissionAmount decimal.Decimal `json:"commissionAmount"`
	OrderCount       int             `json:"orderCount"`
	Revenue          decimal.Decimal `json:"revenue"`
	Commission       decimal.Decimal `json:"commission"`
}

// CommissionStatement is computed on demand for one school. CommissionRate is
// commission over revenue in percent and is informational only.
type CommissionStatement struct {
	SchoolID        string            `json:"schoolId"`
	SchoolName      string            `json:"schoolName"`
	Classes         []ClassCommission `json:"classes"`
	TotalOrders     int               `json:"totalOrders"`
	TotalRevenue    decimal.Decimal   `json:"totalRevenue"`
	TotalCommission decimal.Decimal   `json:"totalCommission"`
	TotalPaid       decimal.Decimal   `json:"totalPaid"`
	Pending         decimal.Decimal   `json:"pending"`
	CommissionRate  decimal.Decimal   `json:"commissionRate"`
	Payments        []SchoolPayment   `json:"payments"`
}

// ClassOrderStats aggregates recognized orders of one class.
type ClassOrderStats struct {
	ClassID string
	Count   int
	Revenue decimal.Decimal
}

// BuildCommissionStatement folds class stats and payouts into a statement.
func BuildCommissionStatement(school *School, classes []Class, stats map[string]ClassOrderStats, payments []SchoolPayment) *CommissionStatement {
	st := &CommissionStatement{
		SchoolID:        school.ID,
		SchoolName:      school.Name,
		Classes:         make([]ClassCommission, 0, len(classes)),
		TotalRevenue:    decimal.Zero,
		TotalCommission: decimal.Zero,
		TotalPaid:       decimal.Zero,
		Payments:        payments,
	}
	if st.Payments == nil {
		st.Payments = []SchoolPayment{}
	}

	for _, c := range classes {
		s := stats[c.ID]
		commission := c.CommissionAmount.Mul(decimal.NewFromInt(int64(s.Count)))

		st.Classes = append(st.Classes, ClassCommission{
			ClassID:          c.ID,
			ClassName:        c.Name,
			CommissionAmount: c.CommissionAmount,
			OrderCount:       s.Count,
			Revenue:          s.Revenue,
			Commission:       commission,
		})
		st.TotalOrders += s.Count
		st.TotalRevenue = st.TotalRevenue.Add(s.Revenue)
		st.TotalCommission = st.TotalCommission.Add(commission)
	}

	for _, p := range payments {
		if p.Status == PayoutPaid {
			st.TotalPaid = st.TotalPaid.Add(p.Amount)
		}
	}

	st.Pending = decimal.Max(decimal.Zero, st.TotalCommission.Sub(st.TotalPaid))
	if st.TotalRevenue.IsPositive() {
		st.CommissionRate = st.TotalCommission.Div(st.TotalRevenue).Mul(decimal.NewFromInt(100)).Round(2)
	}
	return st
}
