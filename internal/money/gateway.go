package money

import "fmt"

// Gateway minor-unit conversion. Stripe and Omise both take THB in satang;
// SCB and K Bank take two-decimal baht strings. Keeping the conversions here
// stops handlers from multiplying floats by 100 ad hoc.

// MaxGatewayAmount is the largest charge we will hand to any gateway,
// in satang (9,999,999.99 baht).
const MaxGatewayAmount Amount = 999_999_999

// ToMinorUnits returns the satang value for a gateway charge request.
// Rejects non-positive and out-of-range amounts.
func ToMinorUnits(a Amount) (int64, error) {
	if a <= 0 {
		return 0, fmt.Errorf("%w: %s", ErrNegativeAmount, a)
	}
	if a > MaxGatewayAmount {
		return 0, fmt.Errorf("money: amount exceeds gateway maximum (%s)", a)
	}
	return int64(a), nil
}

// FromMinorUnits converts a satang value received from a gateway
// (Omise charge amount, Stripe payment intent amount) into an Amount.
func FromMinorUnits(minor int64) Amount {
	return Amount(minor)
}
