package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrProductNotFound indicates the catalog has no product for the requested id.
var ErrProductNotFound = errors.New("product not found")

// ErrInvalidProduct is returned when a product record violates catalog constraints.
var ErrInvalidProduct = errors.New("invalid product")

// CouponDefinition is the single coupon a product may offer.
type CouponDefinition struct {
	Code     string  `json:"code" yaml:"code"`
	Discount float64 `json:"discount" yaml:"discount"`
}

// Product is the catalog record attached to a cart line item at add time.
type Product struct {
	ID             string            `json:"id" yaml:"id"`
	Name           string            `json:"name,omitempty" yaml:"name"`
	OriginalPrice  decimal.Decimal   `json:"originalPrice" yaml:"originalPrice"`
	Discount       *float64          `json:"discount,omitempty" yaml:"discount"`
	IsOnDeal       bool              `json:"isOnDeal" yaml:"isOnDeal"`
	DealPercentage *float64          `json:"dealPercentage,omitempty" yaml:"dealPercentage"`
	CouponCode     *CouponDefinition `json:"couponCode,omitempty" yaml:"couponCode"`
	Stock          int               `json:"stock" yaml:"stock"`
}

// HasCoupon reports whether the product defines a coupon code.
func (p Product) HasCoupon() bool {
	return p.CouponCode != nil && strings.TrimSpace(p.CouponCode.Code) != ""
}

// DealActive reports whether deal pricing applies to the product.
func (p Product) DealActive() bool {
	return p.IsOnDeal && p.DealPercentage != nil
}

// Validate checks price, percentage and stock bounds.
func (p Product) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("id is required: %w", ErrInvalidProduct)
	}
	if p.OriginalPrice.IsNegative() {
		return fmt.Errorf("product %s: negative price: %w", p.ID, ErrInvalidProduct)
	}
	if p.Stock < 0 {
		return fmt.Errorf("product %s: negative stock: %w", p.ID, ErrInvalidProduct)
	}
	if !validPercent(p.Discount) {
		return fmt.Errorf("product %s: discount out of range: %w", p.ID, ErrInvalidProduct)
	}
	if !validPercent(p.DealPercentage) {
		return fmt.Errorf("product %s: deal percentage out of range: %w", p.ID, ErrInvalidProduct)
	}
	if p.CouponCode != nil {
		d := p.CouponCode.Discount
		if !validPercent(&d) {
			return fmt.Errorf("product %s: coupon discount out of range: %w", p.ID, ErrInvalidProduct)
		}
	}
	return nil
}

func validPercent(v *float64) bool {
	if v == nil {
		return true
	}
	return *v >= 0 && *v <= 100
}

// Percent is a convenience for building optional percentage fields.
func Percent(v float64) *float64 {
	return &v
}
