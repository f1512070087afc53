package money

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Amount is a THB amount in satang (1 baht = 100 satang).
// All arithmetic is performed on int64 to avoid floating-point drift;
// floats appear only at the API boundary.
type Amount int64

var (
	// ErrOverflow occurs when an operation would exceed int64 capacity.
	ErrOverflow = errors.New("money: arithmetic overflow")

	// ErrNegativeAmount occurs when a negative amount is invalid for the operation.
	ErrNegativeAmount = errors.New("money: negative amount not allowed")

	// ErrInvalidFormat occurs when parsing fails.
	ErrInvalidFormat = errors.New("money: invalid format")
)

// Currency is the ISO 4217 alphabetic code for everything this service moves.
const Currency = "THB"

// NumericCurrency is the ISO 4217 numeric code, as required by EMV Tag 53.
const NumericCurrency = "764"

// FromSatang creates an Amount from integer satang.
func FromSatang(satang int64) Amount {
	return Amount(satang)
}

// FromBaht converts a float baht amount (as received on the external API)
// to satang, rounding half away from zero.
//
// Examples:
//   - FromBaht(10.50)  → 1050
//   - FromBaht(0.005)  → 1
//   - FromBaht(-0.005) → -1
func FromBaht(baht float64) (Amount, error) {
	if math.IsNaN(baht) || math.IsInf(baht, 0) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidFormat, baht)
	}
	scaled := baht * 100
	if scaled >= math.MaxInt64 || scaled <= math.MinInt64 {
		return 0, ErrOverflow
	}
	var rounded float64
	if scaled >= 0 {
		rounded = math.Floor(scaled + 0.5)
	} else {
		rounded = math.Ceil(scaled - 0.5)
	}
	return Amount(rounded), nil
}

// ParseBaht parses a two-decimal baht string ("14.81") into satang,
// rounding half away from zero when more than two decimals are supplied.
func ParseBaht(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty string", ErrInvalidFormat)
	}
	neg := false
	if s[0] == '+' || s[0] == '-' {
		neg = s[0] == '-'
		s = s[1:]
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, fmt.Errorf("%w: too many decimal points", ErrInvalidFormat)
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" && fracPart == "" {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
	}
	if intPart == "" {
		intPart = "0"
	}

	whole, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}

	var frac int64
	roundUp := false
	if fracPart != "" {
		for _, r := range fracPart {
			if r < '0' || r > '9' {
				return 0, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
			}
		}
		if len(fracPart) > 2 {
			roundUp = fracPart[2] >= '5'
			fracPart = fracPart[:2]
		}
		for len(fracPart) < 2 {
			fracPart += "0"
		}
		frac, _ = strconv.ParseInt(fracPart, 10, 64)
		if roundUp {
			frac++
		}
	}

	if whole > (math.MaxInt64-frac)/100 {
		return 0, ErrOverflow
	}
	total := whole*100 + frac
	if neg {
		total = -total
	}
	return Amount(total), nil
}

// Satang returns the raw satang value.
func (a Amount) Satang() int64 {
	return int64(a)
}

// Baht returns the amount as a float for external responses.
// Safe for display; never feed the result back into arithmetic.
func (a Amount) Baht() float64 {
	return float64(a) / 100
}

// BahtString formats the amount with exactly two decimals ("14.81"),
// the form EMV Tag 54 requires.
func (a Amount) BahtString() string {
	v := int64(a)
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// Add returns a+b or ErrOverflow.
func (a Amount) Add(b Amount) (Amount, error) {
	sum := a + b
	if (sum > a) != (b > 0) && b != 0 {
		return 0, ErrOverflow
	}
	return sum, nil
}

// Sub returns a-b or ErrOverflow.
func (a Amount) Sub(b Amount) (Amount, error) {
	diff := a - b
	if (diff < a) != (b > 0) && b != 0 {
		return 0, ErrOverflow
	}
	return diff, nil
}

// IsPositive reports a > 0.
func (a Amount) IsPositive() bool { return a > 0 }

// IsNegative reports a < 0.
func (a Amount) IsNegative() bool { return a < 0 }

// IsZero reports a == 0.
func (a Amount) IsZero() bool { return a == 0 }

// String returns a human-readable representation, e.g. "14.81 THB".
func (a Amount) String() string {
	return a.BahtString() + " " + Currency
}
