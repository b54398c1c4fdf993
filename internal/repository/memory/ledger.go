package memory

import (
	"context"
	"slices"

	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/domain"
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/repository"
	apperrors "github.com/FirudinMustafa/OkulTedarik-sub000/pkg/errors"
)

type cancelRepo struct{ s *Store }

func (r cancelRepo) Create(_ context.Context, c *domain.CancelRequest) error {
	return r.s.write(func(t *tables) error {
		for _, other := range t.cancels {
			if other.OrderID == c.OrderID {
				return repository.ErrDuplicateCancelRequest
			}
		}
		t.cancels[c.ID] = *c
		return nil
	})
}

func (r cancelRepo) GetByID(_ context.Context, id string) (*domain.CancelRequest, error) {
	var (
		c  domain.CancelRequest
		ok bool
	)
	r.s.read(func(t *tables) { c, ok = t.cancels[id] })
	if !ok {
		return nil, apperrors.NotFound("cancel request", id)
	}
	return &c, nil
}

func (r cancelRepo) GetByOrderID(_ context.Context, orderID string) (*domain.CancelRequest, error) {
	var found *domain.CancelRequest
	r.s.read(func(t *tables) {
		for _, c := range t.cancels {
			if c.OrderID == orderID {
				found = &c
				return
			}
		}
	})
	if found == nil {
		return nil, apperrors.ErrNotFound
	}
	return found, nil
}

func (r cancelRepo) List(_ context.Context, status domain.CancelStatus) ([]domain.CancelRequest, error) {
	out := make([]domain.CancelRequest, 0)
	r.s.read(func(t *tables) {
		for _, c := range t.cancels {
			if status == "" || c.Status == status {
				out = append(out, c)
			}
		}
	})
	slices.SortFunc(out, func(a, b domain.CancelRequest) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

func (r cancelRepo) Update(_ context.Context, c *domain.CancelRequest) error {
	return r.s.write(func(t *tables) error {
		if _, ok := t.cancels[c.ID]; !ok {
			return apperrors.NotFound("cancel request", c.ID)
		}
		t.cancels[c.ID] = *c
		return nil
	})
}

func (r cancelRepo) Delete(_ context.Context, id string) error {
	return r.s.write(func(t *tables) error {
		if _, ok := t.cancels[id]; !ok {
			return apperrors.NotFound("cancel request", id)
		}
		delete(t.cancels, id)
		return nil
	})
}

type payoutRepo struct{ s *Store }

func (r payoutRepo) Create(_ context.Context, p *domain.SchoolPayment) error {
	return r.s.write(func(t *tables) error {
		if _, ok := t.schools[p.SchoolID]; !ok {
			return apperrors.NotFound("school", p.SchoolID)
		}
		t.payouts[p.ID] = *p
		return nil
	})
}

func (r payoutRepo) GetByID(_ context.Context, id string) (*domain.SchoolPayment, error) {
	var (
		p  domain.SchoolPayment
		ok bool
	)
	r.s.read(func(t *tables) { p, ok = t.payouts[id] })
	if !ok {
		return nil, apperrors.NotFound("payout", id)
	}
	return &p, nil
}

func (r payoutRepo) ListBySchool(_ context.Context, schoolID string) ([]domain.SchoolPayment, error) {
	out := make([]domain.SchoolPayment, 0)
	r.s.read(func(t *tables) {
		for _, p := range t.payouts {
			if p.SchoolID == schoolID {
				out = append(out, p)
			}
		}
	})
	slices.SortFunc(out, func(a, b domain.SchoolPayment) int { return b.PaymentDate.Compare(a.PaymentDate) })
	return out, nil
}

func (r payoutRepo) Update(_ context.Context, p *domain.SchoolPayment) error {
	return r.s.write(func(t *tables) error {
		if _, ok := t.payouts[p.ID]; !ok {
			return apperrors.NotFound("payout", p.ID)
		}
		t.payouts[p.ID] = *p
		return nil
	})
}

type logRepo struct{ s *Store }

func (r logRepo) Append(_ context.Context, l *domain.SystemLog) error {
	return r.s.write(func(t *tables) error {
		t.logs = append(t.logs, *l)
		return nil
	})
}

// List returns matching entries newest first; equal timestamps keep the
// most recently appended entry first.
func (r logRepo) List(_ context.Context, f repository.LogFilter) ([]domain.SystemLog, int, error) {
	all := make([]domain.SystemLog, 0)
	r.s.read(func(t *tables) {
		for i := len(t.logs) - 1; i >= 0; i-- {
			l := t.logs[i]
			if f.Entity != "" && l.Entity != f.Entity {
				continue
			}
			if f.EntityID != "" && l.EntityID != f.EntityID {
				continue
			}
			if f.Action != "" && l.Action != f.Action {
				continue
			}
			all = append(all, l)
		}
	})
	slices.SortStableFunc(all, func(a, b domain.SystemLog) int { return b.CreatedAt.Compare(a.CreatedAt) })

	limit := f.PerPage
	if limit <= 0 {
		limit = 50
	}
	offset := 0
	if f.Page > 1 {
		offset = (f.Page - 1) * limit
	}
	total := len(all)
	if offset >= total {
		return []domain.SystemLog{}, total, nil
	}
	return all[offset:min(offset+limit, total)], total, nil
}
