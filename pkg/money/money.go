// Package money provides fixed-point arithmetic on minor currency units.
// All monetary values in the system are stored and computed as int64 cents
// so that sums and splits are exact.
package money

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Amount is a monetary value in minor units (cents).
type Amount int64

var (
	ErrInvalidAmount = errors.New("invalid_amount")
	ErrInvalidSplit  = errors.New("invalid_split")
)

// FromMinorUnits wraps raw minor units.
func FromMinorUnits(v int64) Amount { return Amount(v) }

// MinorUnits returns the raw minor-unit value.
func (a Amount) MinorUnits() int64 { return int64(a) }

// Add returns a + b.
func (a Amount) Add(b Amount) Amount { return a + b }

// Sub returns a - b.
func (a Amount) Sub(b Amount) Amount { return a - b }

// MulQuantity returns the amount multiplied by an integer quantity.
func (a Amount) MulQuantity(q int64) Amount { return Amount(int64(a) * q) }

// IsPositive reports whether the amount is strictly greater than zero.
func (a Amount) IsPositive() bool { return a > 0 }

// IsNegative reports whether the amount is strictly less than zero.
func (a Amount) IsNegative() bool { return a < 0 }

// String renders the amount as a decimal with two fraction digits, e.g. "101.00".
func (a Amount) String() string {
	v := int64(a)
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// Parse converts a decimal string such as "1234.56" into minor units.
// At most two fraction digits are accepted; floats never enter the path.
func Parse(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}

	negative := false
	if strings.HasPrefix(s, "-") {
		negative = true
		s = s[1:]
	}

	whole := s
	frac := ""
	if idx := strings.IndexByte(s, '.'); idx >= 0 {
		whole = s[:idx]
		frac = s[idx+1:]
	}
	if whole == "" && frac == "" {
		return 0, ErrInvalidAmount
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > 2 {
		return 0, ErrInvalidAmount
	}
	for len(frac) < 2 {
		frac += "0"
	}

	wholeUnits, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	fracUnits, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}

	v := wholeUnits*100 + fracUnits
	if negative {
		v = -v
	}
	return Amount(v), nil
}

// Split divides total into n shares whose sum equals total exactly.
// The remainder after integer division is distributed one cent at a time
// to the first shares, so no cents are lost or invented.
func Split(total Amount, n int) ([]Amount, error) {
	if n <= 0 {
		return nil, ErrInvalidSplit
	}
	if total < 0 {
		return nil, ErrInvalidSplit
	}

	base := int64(total) / int64(n)
	remainder := int64(total) % int64(n)

	shares := make([]Amount, n)
	for i := range shares {
		share := base
		if int64(i) < remainder {
			share++
		}
		shares[i] = Amount(share)
	}
	return shares, nil
}

// Sum adds a slice of amounts.
func Sum(amounts []Amount) Amount {
	var total Amount
	for _, a := range amounts {
		total += a
	}
	return total
}
