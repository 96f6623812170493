package pricing

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-cart/internal/catalog"
)

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestItemPriceStandingDiscount(t *testing.T) {
	for _, d := range []float64{0, 10, 33.5, 100} {
		line := Line{Product: catalog.Product{OriginalPrice: money("80"), Discount: catalog.Percent(d)}, Quantity: 1}
		want := money("80").Mul(decimal.NewFromFloat(100 - d)).Div(decimal.NewFromInt(100))
		if got := ItemPrice(line); !got.Equal(want) {
			t.Fatalf("discount %v: expected %s, got %s", d, want, got)
		}
	}
}

func TestItemPriceDealOverridesDiscountAndCoupon(t *testing.T) {
	line := Line{
		Product: catalog.Product{
			OriginalPrice:  money("200"),
			Discount:       catalog.Percent(10),
			IsOnDeal:       true,
			DealPercentage: catalog.Percent(50),
		},
		Quantity:       2,
		CouponDiscount: catalog.Percent(25),
	}
	if got := ItemPrice(line); !got.Equal(money("100")) {
		t.Fatalf("expected 100, got %s", got)
	}
	if got := LineTotal(line); !got.Equal(money("200")) {
		t.Fatalf("expected line total 200, got %s", got)
	}
}

func TestItemPriceCouponCompounds(t *testing.T) {
	line := Line{
		Product:        catalog.Product{OriginalPrice: money("100"), Discount: catalog.Percent(10)},
		Quantity:       1,
		CouponDiscount: catalog.Percent(10),
	}
	if got := ItemPrice(line); !got.Equal(money("81")) {
		t.Fatalf("expected 81, got %s", got)
	}
}

func TestItemPriceDealFlagWithoutPercentageFallsThrough(t *testing.T) {
	line := Line{Product: catalog.Product{OriginalPrice: money("50"), Discount: catalog.Percent(20), IsOnDeal: true}}
	if got := ItemPrice(line); !got.Equal(money("40")) {
		t.Fatalf("expected 40, got %s", got)
	}
}

func TestItemPriceNeverNegative(t *testing.T) {
	line := Line{
		Product:        catalog.Product{OriginalPrice: money("10"), Discount: catalog.Percent(100)},
		CouponDiscount: catalog.Percent(100),
	}
	if got := ItemPrice(line); !got.Equal(decimal.Zero) {
		t.Fatalf("expected 0, got %s", got)
	}
}

func TestComputeVoucherSkipsDealItems(t *testing.T) {
	lines := []Line{
		{Product: catalog.Product{ID: "p1", OriginalPrice: money("100"), Discount: catalog.Percent(10)}, Quantity: 1},
		{Product: catalog.Product{ID: "p2", OriginalPrice: money("200"), Discount: catalog.Percent(10), IsOnDeal: true, DealPercentage: catalog.Percent(50)}, Quantity: 2},
	}
	s := Compute(lines, catalog.Percent(10))
	if !s.DealSubtotal.Equal(money("200")) || !s.NonDealSubtotal.Equal(money("90")) {
		t.Fatalf("unexpected subtotals %s / %s", s.DealSubtotal, s.NonDealSubtotal)
	}
	if !s.VoucherDiscount.Equal(money("9")) {
		t.Fatalf("expected voucher discount 9, got %s", s.VoucherDiscount)
	}
	if !s.Total.Equal(money("281")) {
		t.Fatalf("expected total 281, got %s", s.Total)
	}
}

func TestComputeDealOnlyIgnoresVoucher(t *testing.T) {
	lines := []Line{
		{Product: catalog.Product{OriginalPrice: money("200"), IsOnDeal: true, DealPercentage: catalog.Percent(50)}, Quantity: 2},
	}
	with := Compute(lines, catalog.Percent(10))
	without := Compute(lines, nil)
	if !with.Total.Equal(without.Total) {
		t.Fatalf("expected voucher to leave deal-only total unchanged: %s vs %s", with.Total, without.Total)
	}
}

func TestComputeSkipsNonPositiveQuantity(t *testing.T) {
	lines := []Line{{Product: catalog.Product{OriginalPrice: money("5")}, Quantity: 0}}
	if s := Compute(lines, nil); !s.Total.IsZero() {
		t.Fatalf("expected zero total, got %s", s.Total)
	}
}
