package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	apperrors "github.com/FirudinMustafa/OkulTedarik-sub000/pkg/errors"
)

// Money columns are selected as ::text and written as strings so NUMERIC
// values never pass through float64.

type rowScanner interface {
	Scan(dest ...any) error
}

func parseMoney(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse money %q: %w", s, err)
	}
	return d, nil
}

func parseNullMoney(s *string) (decimal.NullDecimal, error) {
	if s == nil {
		return decimal.NullDecimal{}, nil
	}
	d, err := parseMoney(*s)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}

func moneyArg(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func nullMoneyArg(d decimal.NullDecimal) any {
	if !d.Valid {
		return nil
	}
	return d.Decimal.StringFixed(2)
}

// nullString maps "" to SQL NULL for nullable unique columns.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// notFound maps pgx.ErrNoRows to a 404 for resource/id.
func notFound(err error, resource, id string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NotFound(resource, id)
	}
	return err
}
