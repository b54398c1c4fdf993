package postgres

import (
	"context"
	"fmt"

	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/domain"
	"github.com/FirudinMustafa/OkulTedarik-sub000/pkg/database"
	apperrors "github.com/FirudinMustafa/OkulTedarik-sub000/pkg/errors"
)

const packageColumns = `id, name, description, note, price::text, is_active, created_at, updated_at`

// PackageRepository implements repository.PackageRepository using PostgreSQL.
// Items are stored in package_items and always read back with their package.
type PackageRepository struct {
	db database.DBTX
}

func scanPackage(row rowScanner) (*domain.Package, error) {
	var (
		p     domain.Package
		price string
	)
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Note, &price, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if p.Price, err = parseMoney(price); err != nil {
		return nil, err
	}
	p.Items = []domain.PackageItem{}
	return &p, nil
}

// Create inserts the package and its items.
func (r *PackageRepository) Create(ctx context.Context, p *domain.Package) error {
	query := `
		INSERT INTO packages (id, name, description, note, price, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	if _, err := r.db.Exec(ctx, query,
		p.ID, p.Name, p.Description, p.Note, moneyArg(p.Price), p.IsActive, p.CreatedAt, p.UpdatedAt,
	); err != nil {
		return fmt.Errorf("insert package: %w", err)
	}
	return r.insertItems(ctx, p)
}

func (r *PackageRepository) insertItems(ctx context.Context, p *domain.Package) error {
	query := `
		INSERT INTO package_items (id, package_id, name, quantity, unit_price, position)
		VALUES ($1, $2, $3, $4, $5, $6)`

	for i := range p.Items {
		item := &p.Items[i]
		item.PackageID = p.ID
		item.Position = i
		if _, err := r.db.Exec(ctx, query,
			item.ID, item.PackageID, item.Name, item.Quantity, moneyArg(item.UnitPrice), item.Position,
		); err != nil {
			return fmt.Errorf("insert package item: %w", err)
		}
	}
	return nil
}

// GetByID retrieves a package with its items.
func (r *PackageRepository) GetByID(ctx context.Context, id string) (*domain.Package, error) {
	query := `SELECT ` + packageColumns + ` FROM packages WHERE id = $1`

	p, err := scanPackage(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "package", id)
	}

	items, err := r.listItems(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	p.Items = append(p.Items, items[id]...)
	return p, nil
}

func (r *PackageRepository) listItems(ctx context.Context, packageIDs []string) (map[string][]domain.PackageItem, error) {
	query := `
		SELECT id, package_id, name, quantity, unit_price::text, position
		FROM package_items
		WHERE package_id = ANY($1::uuid[])
		ORDER BY package_id, position`

	rows, err := r.db.Query(ctx, query, packageIDs)
	if err != nil {
		return nil, fmt.Errorf("list package items: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]domain.PackageItem, len(packageIDs))
	for rows.Next() {
		var (
			item      domain.PackageItem
			unitPrice string
		)
		if err := rows.Scan(&item.ID, &item.PackageID, &item.Name, &item.Quantity, &unitPrice, &item.Position); err != nil {
			return nil, fmt.Errorf("scan package item: %w", err)
		}
		if item.UnitPrice, err = parseMoney(unitPrice); err != nil {
			return nil, err
		}
		out[item.PackageID] = append(out[item.PackageID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate package items: %w", err)
	}
	return out, nil
}

// List returns packages ordered by name, each with its items.
func (r *PackageRepository) List(ctx context.Context, includeInactive bool) ([]domain.Package, error) {
	query := `SELECT ` + packageColumns + ` FROM packages WHERE ($1 OR is_active) ORDER BY name`

	rows, err := r.db.Query(ctx, query, includeInactive)
	if err != nil {
		return nil, fmt.Errorf("list packages: %w", err)
	}

	packages := make([]domain.Package, 0)
	for rows.Next() {
		p, err := scanPackage(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan package row: %w", err)
		}
		packages = append(packages, *p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate package rows: %w", err)
	}
	if len(packages) == 0 {
		return packages, nil
	}

	ids := make([]string, len(packages))
	for i, p := range packages {
		ids[i] = p.ID
	}
	items, err := r.listItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range packages {
		packages[i].Items = append(packages[i].Items, items[packages[i].ID]...)
	}
	return packages, nil
}

// Update writes the package row and replaces its items.
func (r *PackageRepository) Update(ctx context.Context, p *domain.Package) error {
	query := `
		UPDATE packages SET name = $2, description = $3, note = $4, price = $5, is_active = $6, updated_at = $7
		WHERE id = $1`

	ct, err := r.db.Exec(ctx, query,
		p.ID, p.Name, p.Description, p.Note, moneyArg(p.Price), p.IsActive, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update package: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("package", p.ID)
	}

	if _, err := r.db.Exec(ctx, `DELETE FROM package_items WHERE package_id = $1`, p.ID); err != nil {
		return fmt.Errorf("clear package items: %w", err)
	}
	return r.insertItems(ctx, p)
}

// Delete removes the package with its orders and their cancel requests,
// unlinks classes offering it and drops its items. It must run inside a
// transaction.
func (r *PackageRepository) Delete(ctx context.Context, id string) (domain.CascadeDeleteDetails, error) {
	var name string
	if err := r.db.QueryRow(ctx, `SELECT name FROM packages WHERE id = $1`, id).Scan(&name); err != nil {
		return domain.CascadeDeleteDetails{}, notFound(err, "package", id)
	}
	details := domain.CascadeDeleteDetails{Name: name}

	steps := []struct {
		query string
		count *int
	}{
		{`DELETE FROM cancel_requests WHERE order_id IN (SELECT id FROM orders WHERE package_id = $1)`, &details.CancelRequests},
		{`DELETE FROM orders WHERE package_id = $1`, &details.Orders},
		{`UPDATE classes SET package_id = NULL, updated_at = now() WHERE package_id = $1`, &details.UnlinkedClass},
		{`DELETE FROM package_items WHERE package_id = $1`, &details.PackageItems},
	}
	for _, step := range steps {
		ct, err := r.db.Exec(ctx, step.query, id)
		if err != nil {
			return domain.CascadeDeleteDetails{}, fmt.Errorf("delete package %s: %w", id, err)
		}
		*step.count = int(ct.RowsAffected())
	}

	if _, err := r.db.Exec(ctx, `DELETE FROM packages WHERE id = $1`, id); err != nil {
		return domain.CascadeDeleteDetails{}, fmt.Errorf("delete package %s: %w", id, err)
	}
	return details, nil
}
