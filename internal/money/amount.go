// Package money implements fixed-point currency amounts held in integer minor units (cents).
// Decimal strings are only produced or consumed at the boundary.
package money

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is a currency value in minor units. The zero value is 0.00.
type Amount int64

// Zero is 0.00.
const Zero Amount = 0

// ErrInvalidAmount is returned for unparsable or over-precise inputs.
var ErrInvalidAmount = errors.New("money: invalid amount")

// FromCents builds an Amount from minor units.
func FromCents(cents int64) Amount {
	return Amount(cents)
}

// FromUnits builds an Amount from whole currency units.
func FromUnits(units int64) Amount {
	return Amount(units * 100)
}

// Cents returns the minor-unit value.
func (a Amount) Cents() int64 {
	return int64(a)
}

// Add returns a + b.
func (a Amount) Add(b Amount) Amount {
	return a + b
}

// Sub returns a - b.
func (a Amount) Sub(b Amount) Amount {
	return a - b
}

// Mul multiplies by an integer factor.
func (a Amount) Mul(n int64) Amount {
	return Amount(int64(a) * n)
}

// Neg returns -a.
func (a Amount) Neg() Amount {
	return -a
}

// IsZero reports a == 0.
func (a Amount) IsZero() bool {
	return a == 0
}

// IsNegative reports a < 0.
func (a Amount) IsNegative() bool {
	return a < 0
}

// ClampZero returns max(0, a).
func (a Amount) ClampZero() Amount {
	if a < 0 {
		return 0
	}
	return a
}

// Sum adds all amounts.
func Sum(amounts ...Amount) Amount {
	var total Amount
	for _, a := range amounts {
		total += a
	}
	return total
}

// Decimal converts to a decimal value with two fractional digits.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(int64(a), -2)
}

// String renders the canonical wire form, e.g. "1234.50" or "-5.00".
func (a Amount) String() string {
	return a.Decimal().StringFixed(2)
}

// FromDecimal converts a decimal into minor units. More than two fractional
// digits is rejected rather than rounded.
func FromDecimal(d decimal.Decimal) (Amount, error) {
	shifted := d.Shift(2)
	if !shifted.IsInteger() {
		return 0, fmt.Errorf("%w: %s has more than 2 decimal places", ErrInvalidAmount, d.String())
	}
	return Amount(shifted.IntPart()), nil
}

// Parse reads a canonical decimal string ("12.5", "-3.00").
func Parse(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return FromDecimal(d)
}

// MustParse is Parse for constants and tests.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// MarshalJSON encodes the amount as a decimal string so it never passes through a float.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON accepts a decimal string or a JSON number.
func (a *Amount) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*a = 0
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		raw = s
	}
	parsed, err := Parse(raw)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Value stores the amount as BIGINT minor units.
func (a Amount) Value() (driver.Value, error) {
	return int64(a), nil
}

// Scan reads BIGINT minor units.
func (a *Amount) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*a = 0
	case int64:
		*a = Amount(v)
	case int32:
		*a = Amount(v)
	default:
		return fmt.Errorf("money: cannot scan %T", src)
	}
	return nil
}
