package memory

import (
	"context"
	"slices"
	"strings"

	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/domain"
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/repository"
	apperrors "github.com/FirudinMustafa/OkulTedarik-sub000/pkg/errors"
)

type schoolRepo struct{ s *Store }

func (r schoolRepo) checkUnique(t *tables, sc *domain.School) error {
	for id, other := range t.schools {
		if id == sc.ID {
			continue
		}
		if sc.IsActive && other.IsActive && other.Password == sc.Password {
			return repository.ErrDuplicateSchoolPassword
		}
		if sc.DirectorEmail != "" && strings.EqualFold(other.DirectorEmail, sc.DirectorEmail) {
			return apperrors.AlreadyExists("school", "director email", sc.DirectorEmail)
		}
	}
	return nil
}

func (r schoolRepo) Create(_ context.Context, sc *domain.School) error {
	return r.s.write(func(t *tables) error {
		if err := r.checkUnique(t, sc); err != nil {
			return err
		}
		t.schools[sc.ID] = *sc
		return nil
	})
}

func (r schoolRepo) GetByID(_ context.Context, id string) (*domain.School, error) {
	var (
		sc domain.School
		ok bool
	)
	r.s.read(func(t *tables) { sc, ok = t.schools[id] })
	if !ok {
		return nil, apperrors.NotFound("school", id)
	}
	return &sc, nil
}

func (r schoolRepo) find(match func(domain.School) bool) (*domain.School, error) {
	var found *domain.School
	r.s.read(func(t *tables) {
		for _, sc := range t.schools {
			if match(sc) {
				found = &sc
				return
			}
		}
	})
	if found == nil {
		return nil, apperrors.ErrNotFound
	}
	return found, nil
}

func (r schoolRepo) GetActiveByPassword(_ context.Context, password string) (*domain.School, error) {
	return r.find(func(sc domain.School) bool { return sc.IsActive && sc.Password == password })
}

func (r schoolRepo) GetByDirectorEmail(_ context.Context, email string) (*domain.School, error) {
	return r.find(func(sc domain.School) bool {
		return sc.DirectorEmail != "" && strings.EqualFold(sc.DirectorEmail, email)
	})
}

func (r schoolRepo) List(_ context.Context, includeInactive bool) ([]domain.School, error) {
	out := make([]domain.School, 0)
	r.s.read(func(t *tables) {
		for _, sc := range t.schools {
			if includeInactive || sc.IsActive {
				out = append(out, sc)
			}
		}
	})
	slices.SortFunc(out, func(a, b domain.School) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

func (r schoolRepo) Update(_ context.Context, sc *domain.School) error {
	return r.s.write(func(t *tables) error {
		if _, ok := t.schools[sc.ID]; !ok {
			return apperrors.NotFound("school", sc.ID)
		}
		if err := r.checkUnique(t, sc); err != nil {
			return err
		}
		t.schools[sc.ID] = *sc
		return nil
	})
}

func (r schoolRepo) Delete(_ context.Context, id string) (domain.CascadeDeleteDetails, error) {
	var details domain.CascadeDeleteDetails
	err := r.s.write(func(t *tables) error {
		sc, ok := t.schools[id]
		if !ok {
			return apperrors.NotFound("school", id)
		}
		details.Name = sc.Name

		for oid, o := range t.orders {
			if o.SchoolID != id {
				continue
			}
			details.CancelRequests += deleteCancelsOf(t, oid)
			delete(t.orders, oid)
			details.Orders++
		}
		for pid, p := range t.payouts {
			if p.SchoolID == id {
				delete(t.payouts, pid)
				details.Payments++
			}
		}
		for cid, c := range t.classes {
			if c.SchoolID == id {
				delete(t.classes, cid)
				details.Classes++
			}
		}
		delete(t.schools, id)
		return nil
	})
	return details, err
}

func deleteCancelsOf(t *tables, orderID string) int {
	n := 0
	for id, c := range t.cancels {
		if c.OrderID == orderID {
			delete(t.cancels, id)
			n++
		}
	}
	return n
}

type classRepo struct{ s *Store }

func (r classRepo) checkRefs(t *tables, c *domain.Class) error {
	if _, ok := t.schools[c.SchoolID]; !ok {
		return apperrors.InvalidInput("school or package does not exist")
	}
	if c.PackageID != "" {
		if _, ok := t.packages[c.PackageID]; !ok {
			return apperrors.InvalidInput("school or package does not exist")
		}
	}
	return nil
}

func (r classRepo) Create(_ context.Context, c *domain.Class) error {
	return r.s.write(func(t *tables) error {
		if err := r.checkRefs(t, c); err != nil {
			return err
		}
		t.classes[c.ID] = *c
		return nil
	})
}

func (r classRepo) GetByID(_ context.Context, id string) (*domain.Class, error) {
	var (
		c  domain.Class
		ok bool
	)
	r.s.read(func(t *tables) { c, ok = t.classes[id] })
	if !ok {
		return nil, apperrors.NotFound("class", id)
	}
	return &c, nil
}

func (r classRepo) ListBySchool(_ context.Context, schoolID string) ([]domain.Class, error) {
	out := make([]domain.Class, 0)
	r.s.read(func(t *tables) {
		for _, c := range t.classes {
			if c.SchoolID == schoolID {
				out = append(out, c)
			}
		}
	})
	slices.SortFunc(out, func(a, b domain.Class) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

func (r classRepo) Update(_ context.Context, c *domain.Class) error {
	return r.s.write(func(t *tables) error {
		if _, ok := t.classes[c.ID]; !ok {
			return apperrors.NotFound("class", c.ID)
		}
		if err := r.checkRefs(t, c); err != nil {
			return err
		}
		t.classes[c.ID] = *c
		return nil
	})
}

func (r classRepo) Delete(_ context.Context, id string) error {
	return r.s.write(func(t *tables) error {
		if _, ok := t.classes[id]; !ok {
			return apperrors.NotFound("class", id)
		}
		for _, o := range t.orders {
			if o.ClassID == id {
				return apperrors.Conflict("class has orders and cannot be deleted")
			}
		}
		delete(t.classes, id)
		return nil
	})
}

type packageRepo struct{ s *Store }

func copyPackage(p domain.Package) *domain.Package {
	p.Items = append([]domain.PackageItem{}, p.Items...)
	return &p
}

func (r packageRepo) store(t *tables, p *domain.Package) {
	for i := range p.Items {
		p.Items[i].PackageID = p.ID
		p.Items[i].Position = i
	}
	t.packages[p.ID] = *copyPackage(*p)
}

func (r packageRepo) Create(_ context.Context, p *domain.Package) error {
	return r.s.write(func(t *tables) error {
		r.store(t, p)
		return nil
	})
}

func (r packageRepo) GetByID(_ context.Context, id string) (*domain.Package, error) {
	var (
		p  domain.Package
		ok bool
	)
	r.s.read(func(t *tables) { p, ok = t.packages[id] })
	if !ok {
		return nil, apperrors.NotFound("package", id)
	}
	return copyPackage(p), nil
}

func (r packageRepo) List(_ context.Context, includeInactive bool) ([]domain.Package, error) {
	out := make([]domain.Package, 0)
	r.s.read(func(t *tables) {
		for _, p := range t.packages {
			if includeInactive || p.IsActive {
				out = append(out, *copyPackage(p))
			}
		}
	})
	slices.SortFunc(out, func(a, b domain.Package) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

func (r packageRepo) Update(_ context.Context, p *domain.Package) error {
	return r.s.write(func(t *tables) error {
		if _, ok := t.packages[p.ID]; !ok {
			return apperrors.NotFound("package", p.ID)
		}
		r.store(t, p)
		return nil
	})
}

func (r packageRepo) Delete(_ context.Context, id string) (domain.CascadeDeleteDetails, error) {
	var details domain.CascadeDeleteDetails
	err := r.s.write(func(t *tables) error {
		p, ok := t.packages[id]
		if !ok {
			return apperrors.NotFound("package", id)
		}
		details.Name = p.Name

		for oid, o := range t.orders {
			if o.PackageID != id {
				continue
			}
			details.CancelRequests += deleteCancelsOf(t, oid)
			delete(t.orders, oid)
			details.Orders++
		}
		for cid, c := range t.classes {
			if c.PackageID == id {
				c.PackageID = ""
				t.classes[cid] = c
				details.UnlinkedClass++
			}
		}
		details.PackageItems = len(p.Items)
		delete(t.packages, id)
		return nil
	})
	return details, err
}

type discountRepo struct{ s *Store }

func (r discountRepo) Create(_ context.Context, d *domain.Discount) error {
	return r.s.write(func(t *tables) error {
		for _, other := range t.discounts {
			if other.Code == d.Code {
				return repository.ErrDuplicateDiscountCode
			}
		}
		t.discounts[d.ID] = *d
		return nil
	})
}

func (r discountRepo) GetByID(_ context.Context, id string) (*domain.Discount, error) {
	var (
		d  domain.Discount
		ok bool
	)
	r.s.read(func(t *tables) { d, ok = t.discounts[id] })
	if !ok {
		return nil, apperrors.NotFound("discount", id)
	}
	return &d, nil
}

func (r discountRepo) GetByCode(_ context.Context, code string) (*domain.Discount, error) {
	var found *domain.Discount
	r.s.read(func(t *tables) {
		for _, d := range t.discounts {
			if d.Code == code {
				found = &d
				return
			}
		}
	})
	if found == nil {
		return nil, apperrors.ErrNotFound
	}
	return found, nil
}

func (r discountRepo) List(_ context.Context) ([]domain.Discount, error) {
	out := make([]domain.Discount, 0)
	r.s.read(func(t *tables) {
		for _, d := range t.discounts {
			out = append(out, d)
		}
	})
	slices.SortFunc(out, func(a, b domain.Discount) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

func (r discountRepo) Update(_ context.Context, d *domain.Discount) error {
	return r.s.write(func(t *tables) error {
		cur, ok := t.discounts[d.ID]
		if !ok {
			return apperrors.NotFound("discount", d.ID)
		}
		for id, other := range t.discounts {
			if id != d.ID && other.Code == d.Code {
				return repository.ErrDuplicateDiscountCode
			}
		}
		next := *d
		next.UsedCount = cur.UsedCount
		t.discounts[d.ID] = next
		return nil
	})
}

func (r discountRepo) Delete(_ context.Context, id string) error {
	return r.s.write(func(t *tables) error {
		if _, ok := t.discounts[id]; !ok {
			return apperrors.NotFound("discount", id)
		}
		delete(t.discounts, id)
		return nil
	})
}

func (r discountRepo) Redeem(_ context.Context, id string) error {
	return r.s.write(func(t *tables) error {
		d, ok := t.discounts[id]
		if !ok || !d.HasUsesLeft() {
			return repository.ErrDiscountExhausted
		}
		d.UsedCount++
		t.discounts[id] = d
		return nil
	})
}
