package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/toko-cart/internal/catalog"
	"github.com/noah-isme/toko-cart/internal/obs"
	"github.com/noah-isme/toko-cart/internal/pricing"
	"github.com/noah-isme/toko-cart/internal/voucher"
)

var (
	// ErrNotFound indicates the requested product does not exist in the catalog.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput indicates a malformed session or product identifier.
	ErrInvalidInput = errors.New("invalid input")
)

// Locker serializes writers of one cart slot.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Archiver receives a copy of the cart after every change.
type Archiver interface {
	Enqueue(ctx context.Context, sessionID string, snap Snapshot, summary pricing.Summary) error
}

// Service runs Store operations against the persisted cart of a session.
type Service struct {
	Slots       SlotStore
	Catalog     catalog.Source
	Vouchers    voucher.Registry
	Locker      Locker
	LockTTL     time.Duration
	StockPolicy StockPolicy
	Archive     Archiver
	Logger      zerolog.Logger
}

// Get returns the cart for sessionID. A session without a slot gets an empty cart.
func (s *Service) Get(ctx context.Context, sessionID string) (*Store, error) {
	if s == nil || s.Slots == nil {
		return nil, errors.New("cart service not configured")
	}
	if strings.TrimSpace(sessionID) == "" {
		return nil, fmt.Errorf("session id required: %w", ErrInvalidInput)
	}
	ctx, span := otel.Tracer("cart.Service").Start(ctx, "CartService.Get")
	defer span.End()
	span.SetAttributes(attribute.String("cart.session", sessionID))

	st, err := s.load(ctx, sessionID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return st, nil
}

// AddItem resolves productID through the catalog and adds one unit.
func (s *Service) AddItem(ctx context.Context, sessionID, productID string) (*Store, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, fmt.Errorf("product id required: %w", ErrInvalidInput)
	}
	return s.mutate(ctx, sessionID, "add_item", func(ctx context.Context, st *Store) (bool, error) {
		product, err := s.resolve(ctx, st, productID)
		if err != nil {
			return false, err
		}
		if err := st.AddItem(product); err != nil {
			return false, err
		}
		return true, nil
	})
}

// UpdateQuantity sets the quantity of a line; zero or less removes it.
func (s *Service) UpdateQuantity(ctx context.Context, sessionID, productID string, quantity int) (*Store, error) {
	return s.mutate(ctx, sessionID, "update_quantity", func(_ context.Context, st *Store) (bool, error) {
		before := st.ItemQuantity(productID)
		if err := st.UpdateQuantity(productID, quantity); err != nil {
			return false, err
		}
		return st.ItemQuantity(productID) != before, nil
	})
}

// RemoveItem deletes a line.
func (s *Service) RemoveItem(ctx context.Context, sessionID, productID string) (*Store, error) {
	return s.mutate(ctx, sessionID, "remove_item", func(_ context.Context, st *Store) (bool, error) {
		_, ok := st.Item(productID)
		st.RemoveItem(productID)
		return ok, nil
	})
}

// Clear empties the cart, keeping the voucher.
func (s *Service) Clear(ctx context.Context, sessionID string) (*Store, error) {
	return s.mutate(ctx, sessionID, "clear", func(_ context.Context, st *Store) (bool, error) {
		had := len(st.Items()) > 0
		st.ClearCart()
		return had, nil
	})
}

// ApplyCoupon applies a product coupon. Rejections are returned in the Result.
func (s *Service) ApplyCoupon(ctx context.Context, sessionID, productID, code string) (*Store, Result, error) {
	var res Result
	st, err := s.mutate(ctx, sessionID, "apply_coupon", func(_ context.Context, st *Store) (bool, error) {
		res = st.ApplyCouponToItem(productID, code)
		return res.Success, nil
	})
	if err != nil {
		return nil, Result{}, err
	}
	obs.RecordPromotion("coupon", res.Success)
	return st, res, nil
}

// RemoveCoupon clears a line's coupon.
func (s *Service) RemoveCoupon(ctx context.Context, sessionID, productID string) (*Store, error) {
	return s.mutate(ctx, sessionID, "remove_coupon", func(_ context.Context, st *Store) (bool, error) {
		item, ok := st.Item(productID)
		st.RemoveCouponFromItem(productID)
		return ok && item.AppliedCoupon.Applied(), nil
	})
}

// ApplyVoucher applies a cart-wide voucher. Rejections are returned in the Result.
func (s *Service) ApplyVoucher(ctx context.Context, sessionID, code string) (*Store, Result, error) {
	var res Result
	st, err := s.mutate(ctx, sessionID, "apply_voucher", func(ctx context.Context, st *Store) (bool, error) {
		var err error
		res, err = st.ApplyVoucher(ctx, code)
		if err != nil {
			return false, err
		}
		return res.Success, nil
	})
	if err != nil {
		return nil, Result{}, err
	}
	obs.RecordPromotion("voucher", res.Success)
	return st, res, nil
}

// RemoveVoucher clears the cart-wide voucher.
func (s *Service) RemoveVoucher(ctx context.Context, sessionID string) (*Store, error) {
	return s.mutate(ctx, sessionID, "remove_voucher", func(_ context.Context, st *Store) (bool, error) {
		_, had := st.Voucher()
		st.RemoveVoucher()
		return had, nil
	})
}

func (s *Service) mutate(ctx context.Context, sessionID, op string, fn func(context.Context, *Store) (bool, error)) (*Store, error) {
	if s == nil || s.Slots == nil {
		return nil, errors.New("cart service not configured")
	}
	if strings.TrimSpace(sessionID) == "" {
		return nil, fmt.Errorf("session id required: %w", ErrInvalidInput)
	}
	ctx, span := otel.Tracer("cart.Service").Start(ctx, "CartService."+op)
	defer span.End()
	span.SetAttributes(attribute.String("cart.session", sessionID))

	start := time.Now()
	result := "error"
	defer func() {
		took := time.Since(start)
		span.SetAttributes(
			attribute.String("cart.mutation.result", result),
			attribute.Int64("cart.mutation.duration_ms", took.Milliseconds()),
		)
		obs.RecordCartMutation(op, result, took)
	}()

	var out *Store
	run := func(ctx context.Context) error {
		st, err := s.load(ctx, sessionID)
		if err != nil {
			return err
		}
		changed, err := fn(ctx, st)
		if err != nil {
			return err
		}
		out = st
		if !changed {
			result = "noop"
			return nil
		}
		if err := s.Slots.Save(ctx, sessionID, st.Snapshot()); err != nil {
			obs.RecordPersistFailure("slot")
			s.Logger.Error().Err(err).Str("session_id", sessionID).Str("op", op).Msg("cart slot save failed")
			return fmt.Errorf("save cart: %w", err)
		}
		result = "ok"
		s.archive(ctx, sessionID, st)
		return nil
	}

	var err error
	if s.Locker == nil {
		err = run(ctx)
	} else {
		err = s.Locker.WithLock(ctx, lockKey(sessionID), s.LockTTL, run)
	}
	if err != nil {
		if errors.Is(err, ErrInsufficientStock) || errors.Is(err, ErrNotFound) {
			result = "rejected"
		}
		span.RecordError(err)
		return nil, err
	}
	return out, nil
}

func (s *Service) load(ctx context.Context, sessionID string) (*Store, error) {
	st := NewStore(WithVoucherRegistry(s.Vouchers), WithStockPolicy(s.StockPolicy))
	snap, ok, err := s.Slots.Load(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if ok {
		st.Restore(snap)
	}
	return st, nil
}

// resolve prefers the snapshot already in the cart so repeat adds never hit the catalog.
func (s *Service) resolve(ctx context.Context, st *Store, productID string) (catalog.Product, error) {
	if item, ok := st.Item(productID); ok {
		return item.Product, nil
	}
	if s.Catalog == nil {
		return catalog.Product{}, errors.New("catalog not configured")
	}
	product, err := s.Catalog.Product(ctx, productID)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			return catalog.Product{}, fmt.Errorf("product %s: %w", productID, ErrNotFound)
		}
		return catalog.Product{}, fmt.Errorf("resolve product: %w", err)
	}
	return product, nil
}

func (s *Service) archive(ctx context.Context, sessionID string, st *Store) {
	if s.Archive == nil {
		return
	}
	snap := st.Snapshot()
	summary := st.Summary()
	logger := s.Logger
	go func() {
		actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.Archive.Enqueue(actx, sessionID, snap, summary); err != nil {
			obs.RecordPersistFailure("archive")
			logger.Warn().Err(err).Str("session_id", sessionID).Msg("cart archive enqueue failed")
		}
	}()
}

func lockKey(sessionID string) string {
	return "lock:cart:" + sessionID
}
