package domain

import "time"

// CancelStatus is the state of a cancellation request.
type CancelStatus string

// Cancellation request states.
const (
	CancelPending  CancelStatus = "PENDING"
	CancelApproved CancelStatus = "APPROVED"
	CancelRejected CancelStatus = "REJECTED"
)

// CancelRequest is a parent's request to cancel an order. There is at most
// one per order; a rejected request is replaced on resubmission.
type CancelRequest struct {
	ID          string       `json:"id"`
	OrderID     string       `json:"orderId"`
	Reason      string       `json:"reason"`
	Status      CancelStatus `json:"status"`
	AdminNote   string       `json:"adminNote,omitempty"`
	ProcessedAt *time.Time   `json:"processedAt,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// IsActive reports whether the request blocks a new submission.
func (r *CancelRequest) IsActive() bool {
	return r.Status == CancelPending || r.Status == CancelApproved
}
