// Package money provides the fixed-point decimal type used for every price,
// quantity, and balance field in the exchange. No binary float crosses the
// boundary between API ingress and persistence for anything that carries
// money or shares.
package money

import (
	"database/sql/driver"
	"fmt"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits carried by prices and quantities
// (4dp, per spec).
const Scale = 4

// Decimal wraps shopspring/decimal.Decimal so every money-path value in this
// module shares one exact, round-trip-safe representation.
type Decimal struct {
	d decimal.Decimal
}

// Zero is the additive identity.
var Zero = Decimal{d: decimal.Zero}

// One is used as the settlement payout multiplier and the upper price bound.
var One = Decimal{d: decimal.New(1, 0)}

// New builds a Decimal from an integer value and exponent, same convention
// as decimal.New.
func New(value int64, exp int32) Decimal {
	return Decimal{d: decimal.New(value, exp)}
}

// FromString parses a decimal literal. Returns an error on malformed input
// so request-boundary parsing is total (never silently truncates).
func FromString(s string) (Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Decimal{}, fmt.Errorf("money: invalid decimal %q: %w", s, err)
	}
	return Decimal{d: d.Round(Scale)}, nil
}

// FromFloat converts a float, rounded to Scale. It is used for
// config-supplied limits and the initial balance, and for literal constants
// such as a new market's 0.5 mark prices; request bodies and database rows
// are decoded through UnmarshalJSON/Scan and never pass through a float.
func FromFloat(f float64) Decimal {
	return Decimal{d: decimal.NewFromFloat(f).Round(Scale)}
}

func (d Decimal) Add(o Decimal) Decimal { return Decimal{d: d.d.Add(o.d).Round(Scale)} }
func (d Decimal) Sub(o Decimal) Decimal { return Decimal{d: d.d.Sub(o.d).Round(Scale)} }
func (d Decimal) Mul(o Decimal) Decimal { return Decimal{d: d.d.Mul(o.d).Round(Scale)} }

// Div performs exact-enough division for VWAP recomputation; callers never
// divide by a quantity that can be zero (guarded by their own invariants).
func (d Decimal) Div(o Decimal) Decimal { return Decimal{d: d.d.Div(o.d).Round(Scale)} }

func (d Decimal) Neg() Decimal { return Decimal{d: d.d.Neg()} }

func (d Decimal) Cmp(o Decimal) int     { return d.d.Cmp(o.d) }
func (d Decimal) Equal(o Decimal) bool  { return d.d.Equal(o.d) }
func (d Decimal) IsZero() bool          { return d.d.IsZero() }
func (d Decimal) IsPositive() bool      { return d.d.IsPositive() }
func (d Decimal) IsNegative() bool      { return d.d.IsNegative() }
func (d Decimal) GreaterThan(o Decimal) bool        { return d.d.GreaterThan(o.d) }
func (d Decimal) GreaterThanOrEqual(o Decimal) bool { return d.d.GreaterThanOrEqual(o.d) }
func (d Decimal) LessThan(o Decimal) bool           { return d.d.LessThan(o.d) }
func (d Decimal) LessThanOrEqual(o Decimal) bool     { return d.d.LessThanOrEqual(o.d) }

func Min(a, b Decimal) Decimal {
	if a.LessThanOrEqual(b) {
		return a
	}
	return b
}

func Max(a, b Decimal) Decimal {
	if a.GreaterThanOrEqual(b) {
		return a
	}
	return b
}

// MustSub subtracts and panics if the result would go negative. Used on
// balance/position arithmetic where underflow below zero is a programming
// error, never a recoverable business condition (spec §4.1).
func (d Decimal) MustSub(o Decimal) Decimal {
	r := d.Sub(o)
	if r.IsNegative() {
		panic(fmt.Sprintf("money: underflow subtracting %s from %s", o, d))
	}
	return r
}

func (d Decimal) String() string { return d.d.StringFixed(Scale) }

func (d Decimal) MarshalJSON() ([]byte, error) { return d.d.MarshalJSON() }

func (d *Decimal) UnmarshalJSON(b []byte) error {
	var inner decimal.Decimal
	if err := inner.UnmarshalJSON(b); err != nil {
		return err
	}
	d.d = inner.Round(Scale)
	return nil
}

// Value implements driver.Valuer so Decimal can be written directly by
// database/sql against a NUMERIC column.
func (d Decimal) Value() (driver.Value, error) { return d.d.Value() }

// Scan implements sql.Scanner so Decimal can be read directly from a
// NUMERIC column.
func (d *Decimal) Scan(value any) error {
	var inner decimal.Decimal
	if err := inner.Scan(value); err != nil {
		return err
	}
	d.d = inner.Round(Scale)
	return nil
}
