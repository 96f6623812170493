package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/noah-isme/toko-cart/internal/catalog"
	"github.com/noah-isme/toko-cart/internal/config"
	"github.com/noah-isme/toko-cart/internal/voucher"
)

var (
	seedFile   string
	seedDryRun bool
)

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load products and vouchers from a YAML catalog into Postgres",
		Long: `Upsert the products and vouchers of a YAML catalog into the database
named by DATABASE_URL. Existing rows with the same id or code are replaced.

Examples:
  cartctl seed -f catalog.yaml
  cartctl seed -f catalog.yaml --dry-run`,
		RunE: runSeed,
	}

	cmd.Flags().StringVarP(&seedFile, "file", "f", "catalog.yaml", "catalog fixture")
	cmd.Flags().BoolVar(&seedDryRun, "dry-run", false, "validate the fixture without writing")

	return cmd
}

func runSeed(cmd *cobra.Command, args []string) error {
	var fx catalogFixture
	if err := loadYAML(seedFile, &fx); err != nil {
		return err
	}
	if err := fx.validate(); err != nil {
		return err
	}
	if seedDryRun {
		fmt.Fprintf(cmd.OutOrStdout(), "%d products and %d vouchers valid, dry run - no changes made\n", len(fx.Products), len(fx.Vouchers))
		return nil
	}

	envs, err := config.LoadEnv()
	if err != nil {
		return err
	}
	databaseURL := envs.String("DATABASE_URL", "")
	if databaseURL == "" {
		return errors.New("DATABASE_URL is not set")
	}
	ctx := cmd.Context()
	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer conn.Close(context.Background())

	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	n, err := seedCatalog(ctx, tx, fx)
	if err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit seed: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "seeded %d products and %d vouchers\n", n.products, n.vouchers)

	if redisURL := envs.String("REDIS_URL", ""); redisURL != "" {
		if err := evictSeeded(ctx, redisURL, fx); err != nil {
			return fmt.Errorf("evict cached products: %w", err)
		}
	}
	return nil
}

// evictSeeded drops the API's cached copies of every seeded product.
func evictSeeded(ctx context.Context, redisURL string, fx catalogFixture) error {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return err
	}
	client := redis.NewClient(opts)
	defer client.Close()

	ids := make([]string, 0, len(fx.Products))
	for _, p := range fx.Products {
		ids = append(ids, p.ID)
	}
	return catalog.Invalidate(ctx, client, ids...)
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type seedCounts struct {
	products int
	vouchers int
}

const upsertProductSQL = `INSERT INTO products (
	id, name, original_price, discount, is_on_deal, deal_percentage, coupon_code, coupon_discount, stock
) VALUES ($1, $2, $3::numeric, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	original_price = EXCLUDED.original_price,
	discount = EXCLUDED.discount,
	is_on_deal = EXCLUDED.is_on_deal,
	deal_percentage = EXCLUDED.deal_percentage,
	coupon_code = EXCLUDED.coupon_code,
	coupon_discount = EXCLUDED.coupon_discount,
	stock = EXCLUDED.stock,
	updated_at = now(),
	deleted_at = NULL`

const upsertVoucherSQL = `INSERT INTO vouchers (code, discount, active)
VALUES ($1, $2, $3)
ON CONFLICT (code) DO UPDATE SET
	discount = EXCLUDED.discount,
	active = EXCLUDED.active`

func seedCatalog(ctx context.Context, db execer, fx catalogFixture) (seedCounts, error) {
	var n seedCounts
	for _, p := range fx.Products {
		code, discount := couponColumns(p)
		if _, err := db.Exec(ctx, upsertProductSQL,
			p.ID, p.Name, p.OriginalPrice.String(), p.Discount, p.IsOnDeal, p.DealPercentage, code, discount, p.Stock,
		); err != nil {
			return n, fmt.Errorf("seed product %s: %w", p.ID, err)
		}
		n.products++
	}
	for _, v := range fx.Vouchers {
		if _, err := db.Exec(ctx, upsertVoucherSQL, voucher.Normalize(v.Code), v.Discount, v.active()); err != nil {
			return n, fmt.Errorf("seed voucher %s: %w", v.Code, err)
		}
		n.vouchers++
	}
	return n, nil
}

func couponColumns(p catalog.Product) (*string, *float64) {
	if !p.HasCoupon() {
		return nil, nil
	}
	code := p.CouponCode.Code
	discount := p.CouponCode.Discount
	return &code, &discount
}
