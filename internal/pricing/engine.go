package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-cart/internal/catalog"
)

// Money is a decimal monetary amount in major units.
type Money = decimal.Decimal

var hundred = decimal.NewFromInt(100)

// Line describes a cart line for pricing calculation.
type Line struct {
	Product  catalog.Product
	Quantity int
	// CouponDiscount is the applied coupon percentage, nil when no coupon is applied.
	CouponDiscount *float64
}

// Summary aggregates computed cart totals.
type Summary struct {
	DealSubtotal    Money `json:"dealSubtotal"`
	NonDealSubtotal Money `json:"nonDealSubtotal"`
	VoucherDiscount Money `json:"voucherDiscount"`
	Total           Money `json:"total"`
}

// ApplyPercent takes pct percent off amount.
func ApplyPercent(amount Money, pct float64) Money {
	if pct == 0 {
		return amount
	}
	return amount.Mul(hundred.Sub(decimal.NewFromFloat(pct))).Div(hundred)
}

// ItemPrice returns the effective unit price of a line.
//
// Deal pricing short-circuits every other layer. Otherwise the standing
// discount and the coupon compound multiplicatively. The result is never
// negative.
func ItemPrice(line Line) Money {
	p := line.Product
	price := p.OriginalPrice
	if p.DealActive() {
		return clamp(ApplyPercent(price, *p.DealPercentage))
	}
	if p.Discount != nil {
		price = ApplyPercent(price, *p.Discount)
	}
	if line.CouponDiscount != nil && !p.IsOnDeal {
		price = ApplyPercent(price, *line.CouponDiscount)
	}
	return clamp(price)
}

// LineTotal returns the effective unit price multiplied by quantity.
func LineTotal(line Line) Money {
	if line.Quantity <= 0 {
		return decimal.Zero
	}
	return ItemPrice(line).Mul(decimal.NewFromInt(int64(line.Quantity)))
}

// Compute calculates cart totals. The voucher percentage, when present, is
// applied to the non-deal subtotal only.
func Compute(lines []Line, voucher *float64) Summary {
	deal := decimal.Zero
	nonDeal := decimal.Zero
	for _, line := range lines {
		if line.Product.IsOnDeal {
			deal = deal.Add(LineTotal(line))
			continue
		}
		nonDeal = nonDeal.Add(LineTotal(line))
	}
	discount := decimal.Zero
	if voucher != nil && nonDeal.IsPositive() {
		discount = nonDeal.Sub(clamp(ApplyPercent(nonDeal, *voucher)))
	}
	return Summary{
		DealSubtotal:    deal,
		NonDealSubtotal: nonDeal,
		VoucherDiscount: discount,
		Total:           deal.Add(nonDeal).Sub(discount),
	}
}

func clamp(v Money) Money {
	if v.IsNegative() {
		return decimal.Zero
	}
	return v
}
