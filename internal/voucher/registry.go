package voucher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrUnknownVoucher is returned when the registry has no voucher for a code.
var ErrUnknownVoucher = errors.New("unknown voucher")

// DefaultTable is the built-in code to percentage table.
const DefaultTable = "SAVE10:10,SAVE20:20,WELCOME15:15"

// Rule is a validated voucher as issued by the registry.
type Rule struct {
	Code     string  `json:"code"`
	Discount float64 `json:"discount"`
}

// Registry validates voucher codes. Implementations must treat codes case-insensitively.
type Registry interface {
	Lookup(ctx context.Context, code string) (Rule, error)
}

// StaticRegistry is a fixed in-memory lookup table keyed by upper-cased code.
type StaticRegistry map[string]float64

// NewStaticRegistry builds a registry from a code to percentage map.
func NewStaticRegistry(table map[string]float64) StaticRegistry {
	out := make(StaticRegistry, len(table))
	for code, pct := range table {
		out[Normalize(code)] = pct
	}
	return out
}

// Lookup implements Registry.
func (r StaticRegistry) Lookup(_ context.Context, code string) (Rule, error) {
	key := Normalize(code)
	pct, ok := r[key]
	if !ok || key == "" {
		return Rule{}, ErrUnknownVoucher
	}
	return Rule{Code: key, Discount: pct}, nil
}

// Rules returns the table sorted by code.
func (r StaticRegistry) Rules() []Rule {
	out := make([]Rule, 0, len(r))
	for code, pct := range r {
		out = append(out, Rule{Code: code, Discount: pct})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// ParseTable parses "CODE:PCT,CODE:PCT" into a StaticRegistry.
func ParseTable(csv string) (StaticRegistry, error) {
	table := map[string]float64{}
	for _, part := range strings.Split(csv, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		code, rawPct, ok := strings.Cut(part, ":")
		if !ok || strings.TrimSpace(code) == "" {
			return nil, fmt.Errorf("voucher table entry %q: expected CODE:PERCENT", part)
		}
		pct, err := strconv.ParseFloat(strings.TrimSpace(rawPct), 64)
		if err != nil {
			return nil, fmt.Errorf("voucher table entry %q: %w", part, err)
		}
		if pct < 0 || pct > 100 {
			return nil, fmt.Errorf("voucher table entry %q: percentage out of range", part)
		}
		table[code] = pct
	}
	return NewStaticRegistry(table), nil
}

// Normalize upper-cases and trims a code.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// DefaultRegistry returns the built-in voucher table.
func DefaultRegistry() StaticRegistry {
	reg, err := ParseTable(DefaultTable)
	if err != nil {
		panic(err)
	}
	return reg
}
