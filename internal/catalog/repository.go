package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Querier is the subset of pgx used by the repository. *pgxpool.Pool satisfies it.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Source resolves product records for the cart.
type Source interface {
	Product(ctx context.Context, id string) (Product, error)
}

const productByIDSQL = `SELECT id, name, original_price::text, discount::float8, is_on_deal,
	deal_percentage::float8, coupon_code, coupon_discount::float8, stock
FROM products
WHERE id = $1 AND deleted_at IS NULL`

// Repository reads products from Postgres.
type Repository struct {
	DB Querier
}

// Product loads a product by id.
func (r Repository) Product(ctx context.Context, id string) (Product, error) {
	if r.DB == nil {
		return Product{}, errors.New("catalog repository not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return Product{}, ErrProductNotFound
	}
	var (
		p              Product
		price          string
		couponCode     *string
		couponDiscount *float64
	)
	err := r.DB.QueryRow(ctx, productByIDSQL, id).Scan(
		&p.ID,
		&p.Name,
		&price,
		&p.Discount,
		&p.IsOnDeal,
		&p.DealPercentage,
		&couponCode,
		&couponDiscount,
		&p.Stock,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrProductNotFound
		}
		return Product{}, fmt.Errorf("load product %s: %w", id, err)
	}
	p.OriginalPrice, err = decimal.NewFromString(price)
	if err != nil {
		return Product{}, fmt.Errorf("parse price for %s: %w", id, err)
	}
	if couponCode != nil && strings.TrimSpace(*couponCode) != "" {
		def := CouponDefinition{Code: strings.TrimSpace(*couponCode)}
		if couponDiscount != nil {
			def.Discount = *couponDiscount
		}
		p.CouponCode = &def
	}
	return p, nil
}
