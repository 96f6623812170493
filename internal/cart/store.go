package cart

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/noah-isme/toko-cart/internal/catalog"
	"github.com/noah-isme/toko-cart/internal/common"
	"github.com/noah-isme/toko-cart/internal/pricing"
	"github.com/noah-isme/toko-cart/internal/voucher"
)

// User-facing promotion outcomes.
const (
	MsgProductNotInCart      = "Product not found in cart"
	MsgDealExcludesCoupon    = "Deal products cannot be combined with coupon codes"
	MsgNoCouponAvailable     = "This product doesn't have any coupon codes available"
	MsgInvalidCoupon         = "Invalid coupon code for this product"
	MsgCouponAlreadyApplied  = "Coupon code already applied to this product"
	MsgVoucherDealOnly       = "Voucher codes cannot be applied to deal products only"
	MsgInvalidVoucher        = "Invalid voucher code"
	MsgVoucherAlreadyApplied = "Voucher already applied"
)

// ErrInsufficientStock is returned when the stock policy refuses a quantity.
var ErrInsufficientStock = errors.New("insufficient stock")

// StockPolicy decides what happens when a quantity exceeds product stock.
type StockPolicy string

const (
	// StockAllow accepts any quantity; stock limits are left to the caller.
	StockAllow StockPolicy = "allow"
	// StockClamp lowers the quantity to the available stock.
	StockClamp StockPolicy = "clamp"
	// StockReject refuses the mutation and leaves state untouched.
	StockReject StockPolicy = "reject"
)

// ParseStockPolicy maps a config value to a policy, defaulting to StockAllow.
func ParseStockPolicy(v string) StockPolicy {
	switch StockPolicy(strings.ToLower(strings.TrimSpace(v))) {
	case StockClamp:
		return StockClamp
	case StockReject:
		return StockReject
	default:
		return StockAllow
	}
}

// LineItem is one product entry in the cart.
type LineItem struct {
	Product       catalog.Product `json:"product"`
	Quantity      int             `json:"quantity"`
	AppliedCoupon Coupon          `json:"appliedCoupon"`
}

// Voucher is the cart-wide promotion code.
type Voucher struct {
	Code     string  `json:"code"`
	Discount float64 `json:"discount"`
}

// Result reports the outcome of a promotion mutation. A failed result never changes state.
type Result struct {
	Success  bool     `json:"success"`
	Message  string   `json:"message"`
	Discount *float64 `json:"discount,omitempty"`
}

// AppliedCouponView is a flattened active coupon for display.
type AppliedCouponView struct {
	Code        string  `json:"code"`
	Discount    float64 `json:"discount"`
	ProductID   string  `json:"productId"`
	ProductName string  `json:"productName"`
}

// Store holds the cart line items and the active voucher. It is the single
// source of pricing truth: every query is recomputed from current state.
// A Store is not safe for concurrent use; callers serialize writers.
type Store struct {
	items    []LineItem
	voucher  *Voucher
	vouchers voucher.Registry
	stock    StockPolicy
}

// Option configures a Store.
type Option func(*Store)

// WithVoucherRegistry sets the registry used to validate voucher codes.
func WithVoucherRegistry(r voucher.Registry) Option {
	return func(s *Store) {
		if r != nil {
			s.vouchers = r
		}
	}
}

// WithStockPolicy sets how quantities above stock are handled.
func WithStockPolicy(p StockPolicy) Option {
	return func(s *Store) {
		if p != "" {
			s.stock = p
		}
	}
}

// NewStore creates an empty cart.
func NewStore(opts ...Option) *Store {
	s := &Store{vouchers: voucher.DefaultRegistry(), stock: StockAllow}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddItem increments the quantity of an existing line or appends a new one.
func (s *Store) AddItem(product catalog.Product) error {
	if idx := s.index(product.ID); idx >= 0 {
		qty, err := s.admit(s.items[idx].Product, s.items[idx].Quantity+1)
		if err != nil {
			return err
		}
		s.items[idx].Quantity = qty
		return nil
	}
	qty, err := s.admit(product, 1)
	if err != nil {
		return err
	}
	s.items = append(s.items, LineItem{Product: product, Quantity: qty})
	return nil
}

// RemoveItem deletes the line for productID. Absent ids are ignored.
func (s *Store) RemoveItem(productID string) {
	idx := s.index(productID)
	if idx < 0 {
		return
	}
	s.items = append(s.items[:idx], s.items[idx+1:]...)
}

// UpdateQuantity sets the quantity of a line; a quantity of zero or less removes it.
func (s *Store) UpdateQuantity(productID string, quantity int) error {
	if quantity <= 0 {
		s.RemoveItem(productID)
		return nil
	}
	idx := s.index(productID)
	if idx < 0 {
		return nil
	}
	qty, err := s.admit(s.items[idx].Product, quantity)
	if err != nil {
		return err
	}
	s.items[idx].Quantity = qty
	return nil
}

// ClearCart empties the line items. The voucher is kept.
func (s *Store) ClearCart() {
	s.items = nil
}

// ApplyCouponToItem applies the product's own coupon to its line item.
func (s *Store) ApplyCouponToItem(productID, code string) Result {
	idx := s.index(productID)
	if idx < 0 {
		return failed(MsgProductNotInCart)
	}
	item := &s.items[idx]
	p := item.Product
	if p.IsOnDeal {
		return failed(MsgDealExcludesCoupon)
	}
	if !p.HasCoupon() {
		return failed(MsgNoCouponAvailable)
	}
	normalized := normalizeCode(code)
	if normalized == "" || normalized != normalizeCode(p.CouponCode.Code) {
		return failed(MsgInvalidCoupon)
	}
	if item.AppliedCoupon.Code() == normalized {
		return failed(MsgCouponAlreadyApplied)
	}
	item.AppliedCoupon = Coupon{code: normalized, discount: p.CouponCode.Discount}
	pct := p.CouponCode.Discount
	return Result{
		Success:  true,
		Message:  fmt.Sprintf("Coupon %s applied: %s%% off %s", normalized, formatPercent(pct), displayName(p)),
		Discount: &pct,
	}
}

// RemoveCouponFromItem clears the coupon of a line item. Absent ids are ignored.
func (s *Store) RemoveCouponFromItem(productID string) {
	if idx := s.index(productID); idx >= 0 {
		s.items[idx].AppliedCoupon = Coupon{}
	}
}

// ApplyVoucher validates code against the registry and replaces the active voucher.
// The error is reserved for registry failures; rejected codes are reported in the Result.
func (s *Store) ApplyVoucher(ctx context.Context, code string) (Result, error) {
	if !s.hasNonDealItems() {
		return failed(MsgVoucherDealOnly), nil
	}
	rule, err := s.vouchers.Lookup(ctx, code)
	if err != nil {
		if errors.Is(err, voucher.ErrUnknownVoucher) {
			return failed(MsgInvalidVoucher), nil
		}
		return Result{}, fmt.Errorf("lookup voucher: %w", err)
	}
	normalized := normalizeCode(code)
	if s.voucher != nil && s.voucher.Code == normalized {
		return failed(MsgVoucherAlreadyApplied), nil
	}
	s.voucher = &Voucher{Code: normalized, Discount: rule.Discount}
	pct := rule.Discount
	return Result{
		Success:  true,
		Message:  fmt.Sprintf("Voucher %s applied: %s%% off non-deal items only", normalized, formatPercent(pct)),
		Discount: &pct,
	}, nil
}

// RemoveVoucher clears the active voucher.
func (s *Store) RemoveVoucher() {
	s.voucher = nil
}

// ItemPrice returns the effective unit price of item.
func (s *Store) ItemPrice(item LineItem) pricing.Money {
	return pricing.ItemPrice(lineOf(item))
}

// TotalPrice returns the cart total after the voucher.
func (s *Store) TotalPrice() pricing.Money {
	return s.Summary().Total
}

// Summary returns the full total breakdown.
func (s *Store) Summary() pricing.Summary {
	lines := make([]pricing.Line, 0, len(s.items))
	for _, item := range s.items {
		lines = append(lines, lineOf(item))
	}
	var pct *float64
	if s.voucher != nil {
		d := s.voucher.Discount
		pct = &d
	}
	return pricing.Compute(lines, pct)
}

// TotalItems returns the sum of quantities.
func (s *Store) TotalItems() int {
	total := 0
	for _, item := range s.items {
		total += item.Quantity
	}
	return total
}

// ItemQuantity returns the quantity for productID or zero.
func (s *Store) ItemQuantity(productID string) int {
	if idx := s.index(productID); idx >= 0 {
		return s.items[idx].Quantity
	}
	return 0
}

// AppliedCoupons lists every active coupon in line order.
func (s *Store) AppliedCoupons() []AppliedCouponView {
	out := make([]AppliedCouponView, 0)
	for _, item := range s.items {
		if !item.AppliedCoupon.Applied() {
			continue
		}
		out = append(out, AppliedCouponView{
			Code:        item.AppliedCoupon.Code(),
			Discount:    item.AppliedCoupon.Discount(),
			ProductID:   item.Product.ID,
			ProductName: item.Product.Name,
		})
	}
	return out
}

// Items returns a copy of the line items.
func (s *Store) Items() []LineItem {
	out := make([]LineItem, len(s.items))
	copy(out, s.items)
	return out
}

// Item returns the line for productID.
func (s *Store) Item(productID string) (LineItem, bool) {
	if idx := s.index(productID); idx >= 0 {
		return s.items[idx], true
	}
	return LineItem{}, false
}

// Voucher returns the active voucher.
func (s *Store) Voucher() (Voucher, bool) {
	if s.voucher == nil {
		return Voucher{}, false
	}
	return *s.voucher, true
}

func (s *Store) index(productID string) int {
	for i := range s.items {
		if s.items[i].Product.ID == productID {
			return i
		}
	}
	return -1
}

func (s *Store) hasNonDealItems() bool {
	for _, item := range s.items {
		if !item.Product.IsOnDeal {
			return true
		}
	}
	return false
}

func (s *Store) admit(p catalog.Product, qty int) (int, error) {
	if qty <= p.Stock {
		return qty, nil
	}
	switch s.stock {
	case StockReject:
		return 0, stockError(p, qty)
	case StockClamp:
		if p.Stock <= 0 {
			return 0, stockError(p, qty)
		}
		return p.Stock, nil
	default:
		return qty, nil
	}
}

func stockError(p catalog.Product, requested int) error {
	available := max(p.Stock, 0)
	msg := fmt.Sprintf("only %d of %s available", available, displayName(p))
	return common.NewAppError("INSUFFICIENT_STOCK", msg, http.StatusConflict, ErrInsufficientStock).
		WithDetails(map[string]any{"productId": p.ID, "requested": requested, "available": available})
}

func lineOf(item LineItem) pricing.Line {
	return pricing.Line{
		Product:        item.Product,
		Quantity:       item.Quantity,
		CouponDiscount: item.AppliedCoupon.percent(),
	}
}

func failed(msg string) Result {
	return Result{Success: false, Message: msg}
}

func normalizeCode(code string) string {
	return voucher.Normalize(code)
}

func formatPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func displayName(p catalog.Product) string {
	if strings.TrimSpace(p.Name) != "" {
		return p.Name
	}
	return p.ID
}
