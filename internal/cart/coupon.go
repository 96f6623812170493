package cart

import (
	"bytes"
	"encoding/json"
)

// Coupon is the coupon sub-state of a line item. The zero value is the
// no-coupon state; an applied coupon can only be produced inside this package
// after the deal exclusion and code match checks have passed.
type Coupon struct {
	code     string
	discount float64
}

// Applied reports whether a coupon is active on the line item.
func (c Coupon) Applied() bool { return c.code != "" }

// Code returns the upper-cased coupon code, empty when no coupon is applied.
func (c Coupon) Code() string { return c.code }

// Discount returns the coupon percentage, zero when no coupon is applied.
func (c Coupon) Discount() float64 { return c.discount }

func (c Coupon) percent() *float64 {
	if !c.Applied() {
		return nil
	}
	d := c.discount
	return &d
}

type couponJSON struct {
	Code     string  `json:"code"`
	Discount float64 `json:"discount"`
}

// MarshalJSON encodes the no-coupon state as null.
func (c Coupon) MarshalJSON() ([]byte, error) {
	if !c.Applied() {
		return []byte("null"), nil
	}
	return json.Marshal(couponJSON{Code: c.code, Discount: c.discount})
}

// UnmarshalJSON decodes a persisted coupon. Restore re-validates it against the product.
func (c *Coupon) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*c = Coupon{}
		return nil
	}
	var raw couponJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = Coupon{code: normalizeCode(raw.Code), discount: raw.Discount}
	return nil
}
