package repository

import (
	"context"
	"errors"
	"time"

	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/domain"
)

// Errors surfaced by repositories beyond apperrors.ErrNotFound.
var (
	// ErrDuplicateNumber means a sequence-generated number was taken by a
	// concurrent writer. Callers retry with a fresh number.
	ErrDuplicateNumber = errors.New("sequence number already taken")
	// ErrDuplicateStudent means the class already has a blocking order for
	// the student.
	ErrDuplicateStudent = errors.New("student already has an order in this class")
	// ErrDuplicateSchoolPassword means another active school uses the password.
	ErrDuplicateSchoolPassword = errors.New("school password already in use")
	// ErrDuplicateDiscountCode means the discount code exists.
	ErrDuplicateDiscountCode = errors.New("discount code already exists")
	// ErrDuplicateCancelRequest means the order already has a cancel request.
	ErrDuplicateCancelRequest = errors.New("order already has a cancel request")
	// ErrDiscountExhausted means the conditional usage increment matched no row.
	ErrDiscountExhausted = errors.New("discount usage limit reached")
)

// Store groups the repositories and runs units of work. Repositories obtained
// from the Store passed to fn share fn's transaction.
type Store interface {
	Schools() SchoolRepository
	Classes() ClassRepository
	Packages() PackageRepository
	Discounts() DiscountRepository
	Orders() OrderRepository
	CancelRequests() CancelRequestRepository
	Payouts() PayoutRepository
	Logs() SystemLogRepository

	// WithinTx runs fn in a transaction, committing when fn returns nil.
	// Calling WithinTx on a Store that is already transactional runs fn
	// in the same transaction.
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}

// SchoolRepository persists schools.
type SchoolRepository interface {
	Create(ctx context.Context, s *domain.School) error
	GetByID(ctx context.Context, id string) (*domain.School, error)
	// GetActiveByPassword finds the active school using password.
	GetActiveByPassword(ctx context.Context, password string) (*domain.School, error)
	GetByDirectorEmail(ctx context.Context, email string) (*domain.School, error)
	List(ctx context.Context, includeInactive bool) ([]domain.School, error)
	Update(ctx context.Context, s *domain.School) error
	// Delete removes the school and everything that hangs off it and reports
	// what was removed.
	Delete(ctx context.Context, id string) (domain.CascadeDeleteDetails, error)
}

// ClassRepository persists classes.
type ClassRepository interface {
	Create(ctx context.Context, c *domain.Class) error
	GetByID(ctx context.Context, id string) (*domain.Class, error)
	ListBySchool(ctx context.Context, schoolID string) ([]domain.Class, error)
	Update(ctx context.Context, c *domain.Class) error
	Delete(ctx context.Context, id string) error
}

// PackageRepository persists packages together with their items.
type PackageRepository interface {
	Create(ctx context.Context, p *domain.Package) error
	GetByID(ctx context.Context, id string) (*domain.Package, error)
	List(ctx context.Context, includeInactive bool) ([]domain.Package, error)
	// Update replaces the package row and its items.
	Update(ctx context.Context, p *domain.Package) error
	// Delete removes the package, its orders with their cancel requests and
	// its items, and unlinks classes that offered it.
	Delete(ctx context.Context, id string) (domain.CascadeDeleteDetails, error)
}

// DiscountRepository persists discount codes.
type DiscountRepository interface {
	Create(ctx context.Context, d *domain.Discount) error
	GetByID(ctx context.Context, id string) (*domain.Discount, error)
	GetByCode(ctx context.Context, code string) (*domain.Discount, error)
	List(ctx context.Context) ([]domain.Discount, error)
	Update(ctx context.Context, d *domain.Discount) error
	Delete(ctx context.Context, id string) error
	// Redeem increments used_count by one unless the usage limit is reached,
	// in which case it returns ErrDiscountExhausted.
	Redeem(ctx context.Context, id string) error
}

// OrderFilter narrows order listings.
type OrderFilter struct {
	SchoolID string
	ClassID  string
	Status   domain.OrderStatus
	Search   string
	From     *time.Time
	To       *time.Time
	Page     int
	PerPage  int
}

// StatusCount is the number of orders in one status.
type StatusCount struct {
	Status domain.OrderStatus `json:"status"`
	Count  int                `json:"count"`
}

// OrderRepository persists orders.
type OrderRepository interface {
	// Create inserts o. It returns ErrDuplicateNumber or ErrDuplicateStudent
	// on the matching unique constraint.
	Create(ctx context.Context, o *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	// GetByIDForUpdate reads and locks the row for the rest of the transaction.
	GetByIDForUpdate(ctx context.Context, id string) (*domain.Order, error)
	GetByNumber(ctx context.Context, orderNumber string) (*domain.Order, error)
	GetByPaymentToken(ctx context.Context, token string) (*domain.Order, error)
	// FindBlockingForStudent returns the order that blocks a new order for
	// the student in the class, or apperrors.ErrNotFound.
	FindBlockingForStudent(ctx context.Context, classID, studentName string) (*domain.Order, error)
	// ListByIDs returns the orders among ids whose status is in statuses, in
	// the order of ids. Unknown ids are skipped.
	ListByIDs(ctx context.Context, ids []string, statuses []domain.OrderStatus) ([]domain.Order, error)
	List(ctx context.Context, filter OrderFilter) ([]domain.Order, int, error)
	// Update writes every mutable column of o in one statement. It returns
	// ErrDuplicateNumber if a generated document number collides.
	Update(ctx context.Context, o *domain.Order) error
	// MaxWithPrefix returns the greatest value of field that is prefix
	// followed by digits, comparing longer values as greater, or "" when
	// none exists.
	MaxWithPrefix(ctx context.Context, field domain.NumberField, prefix string) (string, error)
	// RecognizedStatsByClass aggregates revenue-recognized orders per class
	// of the school.
	RecognizedStatsByClass(ctx context.Context, schoolID string) (map[string]domain.ClassOrderStats, error)
	CountByStatus(ctx context.Context, schoolID string) ([]StatusCount, error)
	CountByClass(ctx context.Context, classID string) (int, error)
}

// CancelRequestRepository persists cancellation requests.
type CancelRequestRepository interface {
	Create(ctx context.Context, r *domain.CancelRequest) error
	GetByID(ctx context.Context, id string) (*domain.CancelRequest, error)
	GetByOrderID(ctx context.Context, orderID string) (*domain.CancelRequest, error)
	List(ctx context.Context, status domain.CancelStatus) ([]domain.CancelRequest, error)
	Update(ctx context.Context, r *domain.CancelRequest) error
	Delete(ctx context.Context, id string) error
}

// PayoutRepository persists commission payouts.
type PayoutRepository interface {
	Create(ctx context.Context, p *domain.SchoolPayment) error
	GetByID(ctx context.Context, id string) (*domain.SchoolPayment, error)
	ListBySchool(ctx context.Context, schoolID string) ([]domain.SchoolPayment, error)
	Update(ctx context.Context, p *domain.SchoolPayment) error
}

// LogFilter narrows audit log listings.
type LogFilter struct {
	Entity   string
	EntityID string
	Action   domain.AuditAction
	Page     int
	PerPage  int
}

// SystemLogRepository appends and reads audit entries. Entries are never
// updated or deleted.
type SystemLogRepository interface {
	Append(ctx context.Context, l *domain.SystemLog) error
	List(ctx context.Context, filter LogFilter) ([]domain.SystemLog, int, error)
}
