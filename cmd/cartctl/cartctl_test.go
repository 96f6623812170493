package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-cart/internal/cart"
)

const cartYAML = `voucher: save10
items:
  - product:
      id: p1
      name: Notebook
      originalPrice: 100
      discount: 10
      stock: 5
    quantity: 2
  - product:
      id: p2
      name: Headphones
      originalPrice: "200"
      discount: 10
      isOnDeal: true
      dealPercentage: 50
      couponCode: {code: DEAL5, discount: 5}
      stock: 5
    coupon: DEAL5
  - product:
      id: p3
      name: Lamp
      originalPrice: 100
      couponCode: {code: SAVE5, discount: 5}
      stock: 5
    coupon: SAVE5
`

func decodeCart(t *testing.T, src string) cartFixture {
	t.Helper()
	var fx cartFixture
	require.NoError(t, decodeYAML(strings.NewReader(src), &fx))
	return fx
}

func TestQuoteFixture(t *testing.T) {
	res, err := quote(context.Background(), decodeCart(t, cartYAML), cart.StockAllow)
	require.NoError(t, err)

	require.Equal(t, 4, res.TotalItems)
	require.Equal(t, "100.00", res.DealSubtotal)
	require.Equal(t, "275.00", res.NonDealSubtotal)
	require.Equal(t, "27.50", res.VoucherDiscount)
	require.Equal(t, "347.50", res.Total)
	require.Equal(t, "SAVE10", res.Voucher)
	require.Equal(t, []string{"coupon DEAL5 on p2: " + cart.MsgDealExcludesCoupon}, res.Rejected)

	require.Len(t, res.Lines, 3)
	require.Equal(t, quoteLine{ProductID: "p1", Name: "Notebook", Quantity: 2, UnitPrice: "90.00", LineTotal: "180.00"}, res.Lines[0])
	require.Equal(t, "SAVE5", res.Lines[2].Coupon)
	require.Equal(t, "95.00", res.Lines[2].UnitPrice)
}

func TestQuoteCustomVoucherTable(t *testing.T) {
	fx := decodeCart(t, cartYAML)
	fx.Vouchers = map[string]float64{"VIP": 50}
	res, err := quote(context.Background(), fx, cart.StockAllow)
	require.NoError(t, err)
	require.Empty(t, res.Voucher)
	require.Contains(t, res.Rejected, "voucher save10: "+cart.MsgInvalidVoucher)
	require.Equal(t, "375.00", res.Total)
}

func TestQuoteStockPolicy(t *testing.T) {
	fx := decodeCart(t, cartYAML)
	fx.Items[0].Quantity = 9
	_, err := quote(context.Background(), fx, cart.StockReject)
	require.ErrorIs(t, err, cart.ErrInsufficientStock)

	res, err := quote(context.Background(), fx, cart.StockClamp)
	require.NoError(t, err)
	require.Equal(t, 5, res.Lines[0].Quantity)
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	var fx cartFixture
	err := decodeYAML(strings.NewReader("itemz: []\n"), &fx)
	require.Error(t, err)
}

func TestQuoteCommandOutputsYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cart.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cartYAML), 0o600))

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"quote", "-f", path})
	require.NoError(t, root.Execute())
	require.Contains(t, out.String(), "total: \"347.50\"")
	require.Contains(t, out.String(), "productId: p3")
}

func TestVouchersCommand(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"vouchers", "--table", "VIP:30,save5:5"})
	require.NoError(t, root.Execute())
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	require.Contains(t, lines[1], "SAVE5")
	require.Contains(t, lines[2], "30%")
}

type execCall struct {
	sql  string
	args []any
}

type recordingDB struct {
	calls []execCall
	fail  error
}

func (d *recordingDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if d.fail != nil {
		return pgconn.CommandTag{}, d.fail
	}
	d.calls = append(d.calls, execCall{sql: sql, args: args})
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

const catalogYAML = `products:
  - id: p1
    name: Notebook
    originalPrice: 100.50
    discount: 10
    stock: 5
  - id: p3
    name: Lamp
    originalPrice: 100
    couponCode: {code: SAVE5, discount: 5}
    stock: 2
vouchers:
  - code: save10
    discount: 10
  - code: OLD
    discount: 5
    active: false
`

func TestSeedCatalog(t *testing.T) {
	var fx catalogFixture
	require.NoError(t, decodeYAML(strings.NewReader(catalogYAML), &fx))
	require.NoError(t, fx.validate())

	db := &recordingDB{}
	n, err := seedCatalog(context.Background(), db, fx)
	require.NoError(t, err)
	require.Equal(t, seedCounts{products: 2, vouchers: 2}, n)
	require.Len(t, db.calls, 4)

	first := db.calls[0]
	require.Equal(t, upsertProductSQL, first.sql)
	require.Equal(t, "p1", first.args[0])
	require.Equal(t, "100.5", first.args[2])
	require.Nil(t, first.args[6])

	lamp := db.calls[1]
	code, ok := lamp.args[6].(*string)
	require.True(t, ok)
	require.Equal(t, "SAVE5", *code)

	require.Equal(t, []any{"SAVE10", 10.0, true}, db.calls[2].args)
	require.Equal(t, []any{"OLD", 5.0, false}, db.calls[3].args)
}

func TestSeedCatalogStopsOnError(t *testing.T) {
	var fx catalogFixture
	require.NoError(t, decodeYAML(strings.NewReader(catalogYAML), &fx))
	_, err := seedCatalog(context.Background(), &recordingDB{fail: errors.New("boom")}, fx)
	require.ErrorContains(t, err, "seed product p1")
}

func TestCatalogFixtureValidation(t *testing.T) {
	fx := catalogFixture{Vouchers: []voucherFixture{{Code: "X", Discount: 120}}}
	require.Error(t, fx.validate())

	var dup catalogFixture
	require.NoError(t, decodeYAML(strings.NewReader(`products:
  - {id: p1, originalPrice: 1, stock: 1}
  - {id: p1, originalPrice: 2, stock: 1}
`), &dup))
	require.ErrorContains(t, dup.validate(), "listed twice")
}
