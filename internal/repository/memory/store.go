// Package memory is an in-process repository.Store used by service tests
// and local runs without PostgreSQL. It enforces the same unique constraints
// as the SQL schema.
package memory

import (
	"context"
	"maps"
	"sync"

	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/domain"
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/repository"
)

type tables struct {
	schools   map[string]domain.School
	classes   map[string]domain.Class
	packages  map[string]domain.Package
	discounts map[string]domain.Discount
	orders    map[string]domain.Order
	cancels   map[string]domain.CancelRequest
	payouts   map[string]domain.SchoolPayment
	logs      []domain.SystemLog
}

func newTables() *tables {
	return &tables{
		schools:   make(map[string]domain.School),
		classes:   make(map[string]domain.Class),
		packages:  make(map[string]domain.Package),
		discounts: make(map[string]domain.Discount),
		orders:    make(map[string]domain.Order),
		cancels:   make(map[string]domain.CancelRequest),
		payouts:   make(map[string]domain.SchoolPayment),
	}
}

func (t *tables) clone() *tables {
	c := &tables{
		schools:   maps.Clone(t.schools),
		classes:   maps.Clone(t.classes),
		packages:  make(map[string]domain.Package, len(t.packages)),
		discounts: maps.Clone(t.discounts),
		orders:    make(map[string]domain.Order, len(t.orders)),
		cancels:   maps.Clone(t.cancels),
		payouts:   maps.Clone(t.payouts),
		logs:      append([]domain.SystemLog(nil), t.logs...),
	}
	for id, p := range t.packages {
		p.Items = append([]domain.PackageItem(nil), p.Items...)
		c.packages[id] = p
	}
	for id, o := range t.orders {
		c.orders[id] = *o.Clone()
	}
	return c
}

// Store implements repository.Store in memory. Transactions are serialized
// and rolled back by restoring a snapshot taken at begin.
type Store struct {
	mu   *sync.Mutex
	txMu *sync.Mutex
	t    *tables
	inTx bool
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{mu: &sync.Mutex{}, txMu: &sync.Mutex{}, t: newTables()}
}

func (s *Store) Schools() repository.SchoolRepository { return schoolRepo{s} }
func (s *Store) Classes() repository.ClassRepository { return classRepo{s} }
func (s *Store) Packages() repository.PackageRepository { return packageRepo{s} }
func (s *Store) Discounts() repository.DiscountRepository { return discountRepo{s} }
func (s *Store) Orders() repository.OrderRepository { return orderRepo{s} }
func (s *Store) Payouts() repository.PayoutRepository { return payoutRepo{s} }
func (s *Store) Logs() repository.SystemLogRepository { return logRepo{s} }
func (s *Store) CancelRequests() repository.CancelRequestRepository { return cancelRepo{s} }

// WithinTx runs fn with exclusive access to the store. Any error restores
// the state from before fn started.
func (s *Store) WithinTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.t.clone()
	s.mu.Unlock()

	if err := fn(&Store{mu: s.mu, txMu: s.txMu, t: s.t, inTx: true}); err != nil {
		s.mu.Lock()
		*s.t = *snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

// read runs fn under the data lock.
func (s *Store) read(fn func(t *tables)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.t)
}

// write runs fn under the data lock and returns its error.
func (s *Store) write(fn func(t *tables) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.t)
}
