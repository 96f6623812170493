package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/noah-isme/toko-cart/internal/catalog"
)

// cartFixture describes a cart to price offline.
type cartFixture struct {
	// Vouchers overrides the voucher table; empty uses the built-in one.
	Vouchers map[string]float64 `yaml:"vouchers"`
	Items    []lineFixture      `yaml:"items"`
	Voucher  string             `yaml:"voucher"`
}

type lineFixture struct {
	Product  catalog.Product `yaml:"product"`
	Quantity int             `yaml:"quantity"`
	Coupon   string          `yaml:"coupon"`
}

// catalogFixture is the seed format for products and vouchers.
type catalogFixture struct {
	Products []catalog.Product `yaml:"products"`
	Vouchers []voucherFixture  `yaml:"vouchers"`
}

type voucherFixture struct {
	Code     string  `yaml:"code"`
	Discount float64 `yaml:"discount"`
	Active   *bool   `yaml:"active"`
}

func (v voucherFixture) active() bool {
	return v.Active == nil || *v.Active
}

func decodeYAML(r io.Reader, dst any) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode fixture: %w", err)
	}
	return nil
}

func loadYAML(path string, dst any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return decodeYAML(f, dst)
}

func (c catalogFixture) validate() error {
	seen := make(map[string]struct{}, len(c.Products))
	for _, p := range c.Products {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("product %q: %w", p.ID, err)
		}
		if _, dup := seen[p.ID]; dup {
			return fmt.Errorf("product %q listed twice", p.ID)
		}
		seen[p.ID] = struct{}{}
	}
	for _, v := range c.Vouchers {
		if v.Code == "" {
			return errors.New("voucher without code")
		}
		if v.Discount < 0 || v.Discount > 100 {
			return fmt.Errorf("voucher %q: discount out of range", v.Code)
		}
	}
	return nil
}
