package postgres

import (
	"context"
	"fmt"

	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/repository"
	"github.com/FirudinMustafa/OkulTedarik-sub000/pkg/database"
)

// Store implements repository.Store on PostgreSQL.
type Store struct {
	db   database.DBTX
	inTx bool
}

// NewStore creates a Store over a pool, a transaction or a pgxmock pool.
func NewStore(db database.DBTX) *Store {
	return &Store{db: db}
}

func (s *Store) Schools() repository.SchoolRepository { return &SchoolRepository{db: s.db} }
func (s *Store) Classes() repository.ClassRepository { return &ClassRepository{db: s.db} }
func (s *Store) Packages() repository.PackageRepository { return &PackageRepository{db: s.db} }
func (s *Store) Discounts() repository.DiscountRepository { return &DiscountRepository{db: s.db} }
func (s *Store) Orders() repository.OrderRepository { return &OrderRepository{db: s.db} }
func (s *Store) Payouts() repository.PayoutRepository { return &PayoutRepository{db: s.db} }
func (s *Store) Logs() repository.SystemLogRepository { return &SystemLogRepository{db: s.db} }

func (s *Store) CancelRequests() repository.CancelRequestRepository {
	return &CancelRequestRepository{db: s.db}
}

// WithinTx runs fn inside a transaction. Nested calls reuse the outer one.
func (s *Store) WithinTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if s.inTx {
		return fn(s)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(&Store{db: tx, inTx: true}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
