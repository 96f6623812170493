package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/noah-isme/toko-cart/internal/cart"
	"github.com/noah-isme/toko-cart/internal/voucher"
)

var (
	quoteFile   string
	quoteJSON   bool
	quotePolicy string
)

func quoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Price a YAML cart fixture with the cart engine",
		Long: `Price a cart described in YAML without touching Redis or Postgres.

Each item carries its full product record. Coupons and the voucher are
applied in fixture order and rejected promotions are listed in the output.

Examples:
  cartctl quote -f cart.yaml
  cartctl quote -f cart.yaml --json --stock-policy reject`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var fx cartFixture
			if err := loadYAML(quoteFile, &fx); err != nil {
				return err
			}
			res, err := quote(cmd.Context(), fx, cart.ParseStockPolicy(quotePolicy))
			if err != nil {
				return err
			}
			return writeQuote(cmd.OutOrStdout(), res, quoteJSON)
		},
	}

	cmd.Flags().StringVarP(&quoteFile, "file", "f", "cart.yaml", "cart fixture")
	cmd.Flags().BoolVarP(&quoteJSON, "json", "j", false, "output as JSON")
	cmd.Flags().StringVar(&quotePolicy, "stock-policy", string(cart.StockAllow), "allow, clamp or reject")

	return cmd
}

type quoteLine struct {
	ProductID string `yaml:"productId" json:"productId"`
	Name      string `yaml:"name,omitempty" json:"name,omitempty"`
	Quantity  int    `yaml:"quantity" json:"quantity"`
	UnitPrice string `yaml:"unitPrice" json:"unitPrice"`
	LineTotal string `yaml:"lineTotal" json:"lineTotal"`
	Coupon    string `yaml:"coupon,omitempty" json:"coupon,omitempty"`
}

type quoteResult struct {
	Lines           []quoteLine `yaml:"lines" json:"lines"`
	TotalItems      int         `yaml:"totalItems" json:"totalItems"`
	DealSubtotal    string      `yaml:"dealSubtotal" json:"dealSubtotal"`
	NonDealSubtotal string      `yaml:"nonDealSubtotal" json:"nonDealSubtotal"`
	VoucherDiscount string      `yaml:"voucherDiscount" json:"voucherDiscount"`
	Total           string      `yaml:"total" json:"total"`
	Voucher         string      `yaml:"voucher,omitempty" json:"voucher,omitempty"`
	Rejected        []string    `yaml:"rejected,omitempty" json:"rejected,omitempty"`
}

func quote(ctx context.Context, fx cartFixture, policy cart.StockPolicy) (quoteResult, error) {
	registry := voucher.DefaultRegistry()
	if len(fx.Vouchers) > 0 {
		registry = voucher.NewStaticRegistry(fx.Vouchers)
	}
	st := cart.NewStore(cart.WithVoucherRegistry(registry), cart.WithStockPolicy(policy))

	var rejected []string
	for _, line := range fx.Items {
		if err := line.Product.Validate(); err != nil {
			return quoteResult{}, err
		}
		if line.Quantity < 0 {
			return quoteResult{}, fmt.Errorf("item %s: negative quantity", line.Product.ID)
		}
		if err := st.AddItem(line.Product); err != nil {
			return quoteResult{}, fmt.Errorf("add %s: %w", line.Product.ID, err)
		}
		if qty := line.Quantity; qty > 1 {
			if err := st.UpdateQuantity(line.Product.ID, st.ItemQuantity(line.Product.ID)+qty-1); err != nil {
				return quoteResult{}, fmt.Errorf("quantity %s: %w", line.Product.ID, err)
			}
		}
		if line.Coupon != "" {
			if res := st.ApplyCouponToItem(line.Product.ID, line.Coupon); !res.Success {
				rejected = append(rejected, fmt.Sprintf("coupon %s on %s: %s", line.Coupon, line.Product.ID, res.Message))
			}
		}
	}
	if fx.Voucher != "" {
		res, err := st.ApplyVoucher(ctx, fx.Voucher)
		if err != nil {
			return quoteResult{}, err
		}
		if !res.Success {
			rejected = append(rejected, fmt.Sprintf("voucher %s: %s", fx.Voucher, res.Message))
		}
	}

	summary := st.Summary()
	out := quoteResult{
		TotalItems:      st.TotalItems(),
		DealSubtotal:    summary.DealSubtotal.StringFixed(2),
		NonDealSubtotal: summary.NonDealSubtotal.StringFixed(2),
		VoucherDiscount: summary.VoucherDiscount.StringFixed(2),
		Total:           summary.Total.StringFixed(2),
		Rejected:        rejected,
	}
	if v, ok := st.Voucher(); ok {
		out.Voucher = v.Code
	}
	for _, item := range st.Items() {
		unit := st.ItemPrice(item)
		out.Lines = append(out.Lines, quoteLine{
			ProductID: item.Product.ID,
			Name:      item.Product.Name,
			Quantity:  item.Quantity,
			UnitPrice: unit.StringFixed(2),
			LineTotal: unit.Mul(decimal.NewFromInt(int64(item.Quantity))).StringFixed(2),
			Coupon:    item.AppliedCoupon.Code(),
		})
	}
	return out, nil
}

func writeQuote(w io.Writer, res quoteResult, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(res); err != nil {
		return err
	}
	return enc.Close()
}
