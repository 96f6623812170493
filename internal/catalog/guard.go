package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/noah-isme/toko-cart/internal/resilience"
)

// GuardedSource fails fast while the underlying source keeps erroring.
// Missing products and cancelled requests do not count as failures.
type GuardedSource struct {
	Next    Source
	Breaker *resilience.Breaker
}

// Product implements Source.
func (s GuardedSource) Product(ctx context.Context, id string) (Product, error) {
	if s.Next == nil {
		return Product{}, errors.New("catalog source not configured")
	}
	var p Product
	err := s.Breaker.Do(ctx, func(ctx context.Context) error {
		var err error
		p, err = s.Next.Product(ctx, id)
		return err
	}, countsAsOutage)
	if errors.Is(err, resilience.ErrOpenCircuit) {
		return Product{}, fmt.Errorf("catalog unavailable: %w", err)
	}
	return p, err
}

func countsAsOutage(err error) bool {
	return !errors.Is(err, ErrProductNotFound) && !errors.Is(err, context.Canceled)
}
