package valueobject

import (
	"errors"

	"github.com/shopspring/decimal"
)

// MoneyScale is the number of decimal places stored for monetary amounts
const MoneyScale int32 = 2

var (
	hundred = decimal.NewFromInt(100)
	cent    = decimal.New(1, -MoneyScale)
)

// RoundMoney rounds an amount to MoneyScale places, half away from zero
func RoundMoney(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(MoneyScale)
}

// Percentage returns percent% of amount rounded to MoneyScale places
func Percentage(amount, percent decimal.Decimal) decimal.Decimal {
	return RoundMoney(amount.Mul(percent).Div(hundred))
}

// IsPositive reports whether amount is strictly greater than zero
func IsPositive(amount decimal.Decimal) bool {
	return amount.GreaterThan(decimal.Zero)
}

// SplitProportional divides total into len(weights) parts proportional to
// weights. Each part is truncated to whole cents and the leftover cents are
// handed out one at a time from the first part, so the parts always sum to
// exactly total.
func SplitProportional(total decimal.Decimal, weights []decimal.Decimal) ([]decimal.Decimal, error) {
	if len(weights) == 0 {
		return nil, errors.New("weights must not be empty")
	}
	if total.IsNegative() {
		return nil, errors.New("total must not be negative")
	}
	sum := decimal.Zero
	for _, w := range weights {
		if !w.IsPositive() {
			return nil, errors.New("weights must be positive")
		}
		sum = sum.Add(w)
	}

	total = RoundMoney(total)
	parts := make([]decimal.Decimal, len(weights))
	allotted := decimal.Zero
	for i, w := range weights {
		parts[i] = total.Mul(w).Div(sum).Truncate(MoneyScale)
		allotted = allotted.Add(parts[i])
	}

	leftover := total.Sub(allotted).Div(cent).IntPart()
	for i := 0; leftover > 0; i = (i + 1) % len(parts) {
		parts[i] = parts[i].Add(cent)
		leftover--
	}
	return parts, nil
}

// SplitAlong divides total across parts proportionally to the given shares,
// using the same remainder rule as SplitProportional. Zero shares receive
// zero. It is used to split an advance across per-participant shares.
func SplitAlong(total decimal.Decimal, shares []decimal.Decimal) ([]decimal.Decimal, error) {
	weights := make([]decimal.Decimal, 0, len(shares))
	index := make([]int, 0, len(shares))
	for i, s := range shares {
		if s.IsPositive() {
			weights = append(weights, s)
			index = append(index, i)
		}
	}
	out := make([]decimal.Decimal, len(shares))
	for i := range out {
		out[i] = decimal.Zero
	}
	if len(weights) == 0 {
		if total.IsZero() {
			return out, nil
		}
		return nil, errors.New("cannot split a non-zero total across zero shares")
	}
	parts, err := SplitProportional(total, weights)
	if err != nil {
		return nil, err
	}
	for j, i := range index {
		out[i] = parts[j]
	}
	return out, nil
}
