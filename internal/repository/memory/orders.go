package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/domain"
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/repository"
	apperrors "github.com/FirudinMustafa/OkulTedarik-sub000/pkg/errors"
)

type orderRepo struct{ s *Store }

func blocksStudent(o *domain.Order, classID, studentName string) bool {
	return o.ClassID == classID &&
		strings.EqualFold(strings.TrimSpace(o.StudentName), strings.TrimSpace(studentName)) &&
		o.BlocksNewOrderForStudent()
}

// checkUnique mirrors the unique constraints on the orders table.
func (r orderRepo) checkUnique(t *tables, o *domain.Order) error {
	for id, other := range t.orders {
		if id == o.ID {
			continue
		}
		switch {
		case other.OrderNumber == o.OrderNumber:
			return fmt.Errorf("order_number: %w", repository.ErrDuplicateNumber)
		case o.InvoiceNo != "" && other.InvoiceNo == o.InvoiceNo:
			return fmt.Errorf("invoice_no: %w", repository.ErrDuplicateNumber)
		case o.DeliveryDocumentNo != "" && other.DeliveryDocumentNo == o.DeliveryDocumentNo:
			return fmt.Errorf("delivery_document_no: %w", repository.ErrDuplicateNumber)
		case o.PaymentToken != "" && other.PaymentToken == o.PaymentToken:
			return fmt.Errorf("payment token %q already in use", o.PaymentToken)
		case o.BlocksNewOrderForStudent() && blocksStudent(&other, o.ClassID, o.StudentName):
			return repository.ErrDuplicateStudent
		}
	}
	return nil
}

func (r orderRepo) Create(_ context.Context, o *domain.Order) error {
	return r.s.write(func(t *tables) error {
		if err := r.checkUnique(t, o); err != nil {
			return err
		}
		t.orders[o.ID] = *o.Clone()
		return nil
	})
}

func (r orderRepo) get(id string) (*domain.Order, bool) {
	var (
		o  domain.Order
		ok bool
	)
	r.s.read(func(t *tables) { o, ok = t.orders[id] })
	if !ok {
		return nil, false
	}
	return o.Clone(), true
}

func (r orderRepo) GetByID(_ context.Context, id string) (*domain.Order, error) {
	o, ok := r.get(id)
	if !ok {
		return nil, apperrors.NotFound("order", id)
	}
	return o, nil
}

// GetByIDForUpdate needs no row lock; transactions are already serialized.
func (r orderRepo) GetByIDForUpdate(ctx context.Context, id string) (*domain.Order, error) {
	return r.GetByID(ctx, id)
}

func (r orderRepo) find(match func(*domain.Order) bool) *domain.Order {
	var found *domain.Order
	r.s.read(func(t *tables) {
		for _, o := range t.orders {
			if match(&o) {
				found = o.Clone()
				return
			}
		}
	})
	return found
}

func (r orderRepo) GetByNumber(_ context.Context, orderNumber string) (*domain.Order, error) {
	o := r.find(func(o *domain.Order) bool { return o.OrderNumber == orderNumber })
	if o == nil {
		return nil, apperrors.NotFound("order", orderNumber)
	}
	return o, nil
}

func (r orderRepo) GetByPaymentToken(_ context.Context, token string) (*domain.Order, error) {
	o := r.find(func(o *domain.Order) bool { return token != "" && o.PaymentToken == token })
	if o == nil {
		return nil, apperrors.NotFound("payment session", token)
	}
	return o, nil
}

func (r orderRepo) FindBlockingForStudent(_ context.Context, classID, studentName string) (*domain.Order, error) {
	o := r.find(func(o *domain.Order) bool { return blocksStudent(o, classID, studentName) })
	if o == nil {
		return nil, apperrors.ErrNotFound
	}
	return o, nil
}

func (r orderRepo) ListByIDs(_ context.Context, ids []string, statuses []domain.OrderStatus) ([]domain.Order, error) {
	out := make([]domain.Order, 0, len(ids))
	r.s.read(func(t *tables) {
		for _, id := range ids {
			o, ok := t.orders[id]
			if ok && slices.Contains(statuses, o.Status) {
				out = append(out, *o.Clone())
			}
		}
	})
	return out, nil
}

func matchesFilter(o *domain.Order, f repository.OrderFilter) bool {
	if f.SchoolID != "" && o.SchoolID != f.SchoolID {
		return false
	}
	if f.ClassID != "" && o.ClassID != f.ClassID {
		return false
	}
	if f.Status != "" && o.Status != f.Status {
		return false
	}
	if f.From != nil && o.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && !o.CreatedAt.Before(*f.To) {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		for _, field := range []string{o.OrderNumber, o.ParentName, o.StudentName, o.Phone} {
			if strings.Contains(strings.ToLower(field), q) {
				return true
			}
		}
		return false
	}
	return true
}

func (r orderRepo) List(_ context.Context, f repository.OrderFilter) ([]domain.Order, int, error) {
	all := make([]domain.Order, 0)
	r.s.read(func(t *tables) {
		for _, o := range t.orders {
			if matchesFilter(&o, f) {
				all = append(all, *o.Clone())
			}
		}
	})
	slices.SortFunc(all, func(a, b domain.Order) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.OrderNumber, a.OrderNumber)
	})

	limit := f.PerPage
	if limit <= 0 {
		limit = 20
	}
	offset := 0
	if f.Page > 1 {
		offset = (f.Page - 1) * limit
	}
	total := len(all)
	if offset >= total {
		return []domain.Order{}, total, nil
	}
	return all[offset:min(offset+limit, total)], total, nil
}

func (r orderRepo) Update(_ context.Context, o *domain.Order) error {
	return r.s.write(func(t *tables) error {
		if _, ok := t.orders[o.ID]; !ok {
			return apperrors.NotFound("order", o.ID)
		}
		if err := r.checkUnique(t, o); err != nil {
			return err
		}
		t.orders[o.ID] = *o.Clone()
		return nil
	})
}

func numberValue(o *domain.Order, field domain.NumberField) (string, error) {
	switch field {
	case domain.FieldOrderNumber:
		return o.OrderNumber, nil
	case domain.FieldInvoiceNo:
		return o.InvoiceNo, nil
	case domain.FieldDeliveryDocumentNo:
		return o.DeliveryDocumentNo, nil
	}
	return "", fmt.Errorf("unknown number field %q", field)
}

func (r orderRepo) MaxWithPrefix(_ context.Context, field domain.NumberField, prefix string) (string, error) {
	if _, err := numberValue(&domain.Order{}, field); err != nil {
		return "", err
	}

	var best string
	r.s.read(func(t *tables) {
		for _, o := range t.orders {
			v, _ := numberValue(&o, field)
			suffix, ok := strings.CutPrefix(v, prefix)
			if !ok || suffix == "" || strings.Trim(suffix, "0123456789") != "" {
				continue
			}
			if len(v) > len(best) || (len(v) == len(best) && v > best) {
				best = v
			}
		}
	})
	return best, nil
}

func (r orderRepo) RecognizedStatsByClass(_ context.Context, schoolID string) (map[string]domain.ClassOrderStats, error) {
	out := make(map[string]domain.ClassOrderStats)
	r.s.read(func(t *tables) {
		for _, o := range t.orders {
			if o.SchoolID != schoolID || !o.Status.IsRevenueRecognized() {
				continue
			}
			s := out[o.ClassID]
			s.ClassID = o.ClassID
			s.Count++
			s.Revenue = s.Revenue.Add(o.TotalAmount)
			out[o.ClassID] = s
		}
	})
	return out, nil
}

func (r orderRepo) CountByStatus(_ context.Context, schoolID string) ([]repository.StatusCount, error) {
	counts := make(map[domain.OrderStatus]int)
	r.s.read(func(t *tables) {
		for _, o := range t.orders {
			if schoolID == "" || o.SchoolID == schoolID {
				counts[o.Status]++
			}
		}
	})

	out := make([]repository.StatusCount, 0, len(counts))
	for status, n := range counts {
		out = append(out, repository.StatusCount{Status: status, Count: n})
	}
	slices.SortFunc(out, func(a, b repository.StatusCount) int {
		return strings.Compare(string(a.Status), string(b.Status))
	})
	return out, nil
}

func (r orderRepo) CountByClass(_ context.Context, classID string) (int, error) {
	n := 0
	r.s.read(func(t *tables) {
		for _, o := range t.orders {
			if o.ClassID == classID {
				n++
			}
		}
	})
	return n, nil
}
