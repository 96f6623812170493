package voucher

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Querier is the subset of pgx used by the repository.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const activeVoucherSQL = `SELECT code, discount::float8
FROM vouchers
WHERE upper(code) = $1 AND active
  AND (valid_from IS NULL OR valid_from <= now())
  AND (valid_to IS NULL OR valid_to > now())`

// Repository is a Registry backed by the vouchers table.
type Repository struct {
	DB Querier
}

// Lookup implements Registry.
func (r Repository) Lookup(ctx context.Context, code string) (Rule, error) {
	if r.DB == nil {
		return Rule{}, errors.New("voucher repository not configured")
	}
	key := Normalize(code)
	if key == "" {
		return Rule{}, ErrUnknownVoucher
	}
	var rule Rule
	if err := r.DB.QueryRow(ctx, activeVoucherSQL, key).Scan(&rule.Code, &rule.Discount); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Rule{}, ErrUnknownVoucher
		}
		return Rule{}, fmt.Errorf("lookup voucher: %w", err)
	}
	rule.Code = Normalize(rule.Code)
	return rule, nil
}
