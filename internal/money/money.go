// Package money implements fixed-point monetary amounts as integer counts
// of minor units (cents). All arithmetic happens on int64 cents; decimals
// appear only at the boundaries (parsing, rate products) so floating point
// never touches a money value.
package money

import (
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrMalformedAmount is returned when a string cannot be read as a scale-2
// decimal amount.
var ErrMalformedAmount = errors.New("malformed amount")

// Amount is a monetary value with scale 2, stored as cents.
type Amount struct {
	cents int64
}

// Zero is the zero amount.
var Zero = Amount{}

// FromCents builds an Amount from a count of minor units.
func FromCents(cents int64) Amount {
	return Amount{cents: cents}
}

// Parse reads a decimal string with at most 2 fractional digits.
func Parse(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %q", ErrMalformedAmount, s)
	}
	shifted := d.Shift(2)
	if !shifted.IsInteger() {
		return Amount{}, fmt.Errorf("%w: %q has more than 2 fractional digits", ErrMalformedAmount, s)
	}
	return Amount{cents: shifted.IntPart()}, nil
}

// MustParse is Parse for values known to be well formed; it panics otherwise.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Cents returns the amount in minor units.
func (a Amount) Cents() int64 {
	return a.cents
}

// Add returns a + b.
func (a Amount) Add(b Amount) Amount {
	return Amount{cents: a.cents + b.cents}
}

// Sub returns a - b.
func (a Amount) Sub(b Amount) Amount {
	return Amount{cents: a.cents - b.cents}
}

// MulRate multiplies the amount by a rate as an exact decimal product and
// rounds the result half away from zero to 2 fractional digits.
func (a Amount) MulRate(rate decimal.Decimal) Amount {
	product := a.Decimal().Mul(rate)
	return Amount{cents: product.Round(2).Shift(2).IntPart()}
}

// Equal reports whether two amounts are the same value.
func (a Amount) Equal(b Amount) bool {
	return a.cents == b.cents
}

// IsZero reports whether the amount is zero.
func (a Amount) IsZero() bool {
	return a.cents == 0
}

// IsPositive reports whether the amount is strictly greater than zero.
func (a Amount) IsPositive() bool {
	return a.cents > 0
}

// IsNegative reports whether the amount is strictly less than zero.
func (a Amount) IsNegative() bool {
	return a.cents < 0
}

// Decimal returns the amount as a scale-2 decimal.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(a.cents, -2)
}

// String renders the amount with exactly 2 fractional digits, e.g. "297.00".
func (a Amount) String() string {
	cents := a.cents
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// MarshalJSON renders the amount as a 2-decimal JSON string.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

// UnmarshalJSON accepts both JSON strings ("297.00") and bare numbers (297).
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" {
		return nil
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	v, err := Parse(s)
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// Value implements driver.Valuer so amounts bind to numeric columns.
func (a Amount) Value() (driver.Value, error) {
	return a.String(), nil
}

// Scan implements sql.Scanner for numeric columns.
func (a *Amount) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*a = Amount{}
		return nil
	case []byte:
		parsed, err := Parse(string(v))
		if err != nil {
			return err
		}
		*a = parsed
		return nil
	case string:
		parsed, err := Parse(v)
		if err != nil {
			return err
		}
		*a = parsed
		return nil
	case int64:
		*a = Amount{cents: v * 100}
		return nil
	default:
		return fmt.Errorf("cannot scan %T into money.Amount", src)
	}
}
