package app

import (
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-cart/internal/cart"
	"github.com/noah-isme/toko-cart/internal/catalog"
	"github.com/noah-isme/toko-cart/internal/config"
	"github.com/noah-isme/toko-cart/internal/lock"
	"github.com/noah-isme/toko-cart/internal/resilience"
	"github.com/noah-isme/toko-cart/internal/voucher"
)

// VoucherRegistry returns the registry selected by VOUCHER_SOURCE.
func VoucherRegistry(cfg *config.Config, db voucher.Querier) (voucher.Registry, error) {
	if cfg == nil {
		return nil, errors.New("config required")
	}
	switch cfg.VoucherSource {
	case "db":
		if db == nil {
			return nil, errors.New("voucher source db requires a database")
		}
		return voucher.Repository{DB: db}, nil
	default:
		if cfg.VoucherTable == "" {
			return voucher.DefaultRegistry(), nil
		}
		table, err := voucher.ParseTable(cfg.VoucherTable)
		if err != nil {
			return nil, fmt.Errorf("parse VOUCHER_TABLE: %w", err)
		}
		return table, nil
	}
}

// NewCartService composes the cart service from its infrastructure clients.
// archive may be nil when snapshots are disabled.
func NewCartService(cfg *config.Config, rdb *redis.Client, products catalog.Source, vouchers voucher.Registry, archive cart.Archiver, logger zerolog.Logger) (*cart.Service, error) {
	if cfg == nil || rdb == nil {
		return nil, errors.New("config and redis client required")
	}
	if products == nil || vouchers == nil {
		return nil, errors.New("catalog and voucher registry required")
	}
	breaker := resilience.NewBreaker(resilience.Config{
		Target:       "catalog",
		MinRequests:  cfg.CatalogBreakerMinRequests,
		FailureRatio: 0.5,
		OpenFor:      cfg.CatalogBreakerOpenFor,
		Logger:       logger,
	})
	guarded := catalog.GuardedSource{Next: products, Breaker: breaker}
	return &cart.Service{
		Slots:       cart.RedisSlots{R: rdb, TTL: cfg.CartTTL},
		Catalog:     catalog.CachedSource{Next: guarded, R: rdb, TTL: cfg.CatalogCacheTTL, MissTTL: cfg.CatalogMissTTL},
		Vouchers:    vouchers,
		Locker:      lock.Locker{R: rdb, RetryBackoff: cfg.CartLockRetry, MaxWait: cfg.CartLockWait},
		LockTTL:     cfg.CartLockTTL,
		StockPolicy: cart.ParseStockPolicy(cfg.CartStockPolicy),
		Archive:     archive,
		Logger:      logger.With().Str("component", "cart").Logger(),
	}, nil
}
