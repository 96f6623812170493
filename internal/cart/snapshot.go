package cart

import "strings"

// Snapshot is the persisted cart state.
type Snapshot struct {
	Items          []LineItem `json:"items"`
	AppliedVoucher *Voucher   `json:"appliedVoucher"`
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() Snapshot {
	snap := Snapshot{Items: s.Items()}
	if s.voucher != nil {
		v := *s.voucher
		snap.AppliedVoucher = &v
	}
	return snap
}

// Restore replaces the store state with snap. Lines without a product id or
// with a non-positive quantity are dropped, repeated product ids are merged
// and coupons that the stored product does not permit are cleared.
func (s *Store) Restore(snap Snapshot) {
	s.items = nil
	s.voucher = nil
	for _, item := range snap.Items {
		if strings.TrimSpace(item.Product.ID) == "" || item.Quantity <= 0 {
			continue
		}
		if idx := s.index(item.Product.ID); idx >= 0 {
			s.items[idx].Quantity += item.Quantity
			continue
		}
		item.AppliedCoupon = sanitizeCoupon(item)
		s.items = append(s.items, item)
	}
	if v := snap.AppliedVoucher; v != nil && normalizeCode(v.Code) != "" {
		s.voucher = &Voucher{Code: normalizeCode(v.Code), Discount: v.Discount}
	}
}

func sanitizeCoupon(item LineItem) Coupon {
	c := item.AppliedCoupon
	p := item.Product
	if !c.Applied() || p.IsOnDeal || !p.HasCoupon() {
		return Coupon{}
	}
	if c.code != normalizeCode(p.CouponCode.Code) {
		return Coupon{}
	}
	return Coupon{code: c.code, discount: p.CouponCode.Discount}
}
