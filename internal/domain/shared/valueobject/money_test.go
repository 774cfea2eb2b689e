package valueobject

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func sum(parts []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, p := range parts {
		total = total.Add(p)
	}
	return total
}

func TestPercentage(t *testing.T) {
	assert.True(t, d("300.00").Equal(Percentage(d("1000"), d("30"))))
	assert.True(t, d("0.33").Equal(Percentage(d("1"), d("33.333"))))
}

func TestSplitProportional(t *testing.T) {
	t.Run("even split", func(t *testing.T) {
		parts, err := SplitProportional(d("100"), []decimal.Decimal{d("1"), d("1"), d("1")})
		require.NoError(t, err)
		assert.Equal(t, "33.34", parts[0].StringFixed(2))
		assert.Equal(t, "33.33", parts[1].StringFixed(2))
		assert.Equal(t, "33.33", parts[2].StringFixed(2))
	})

	t.Run("weighted split", func(t *testing.T) {
		parts, err := SplitProportional(d("9000"), []decimal.Decimal{d("4500"), d("2700"), d("1800")})
		require.NoError(t, err)
		assert.True(t, d("4500").Equal(parts[0]))
		assert.True(t, d("2700").Equal(parts[1]))
		assert.True(t, d("1800").Equal(parts[2]))
	})

	t.Run("rejects empty and non-positive weights", func(t *testing.T) {
		_, err := SplitProportional(d("10"), nil)
		assert.Error(t, err)
		_, err = SplitProportional(d("10"), []decimal.Decimal{d("0")})
		assert.Error(t, err)
	})
}

func TestSplitAlong_ZeroShares(t *testing.T) {
	parts, err := SplitAlong(d("0"), []decimal.Decimal{d("0"), d("0")})
	require.NoError(t, err)
	assert.True(t, parts[0].IsZero())
	assert.True(t, parts[1].IsZero())

	_, err = SplitAlong(d("5"), []decimal.Decimal{d("0")})
	assert.Error(t, err)
}

func TestSplitProportional_SumsExactly(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		cents := rapid.Int64Range(0, 100_000_000).Draw(t, "cents")
		n := rapid.IntRange(1, 6).Draw(t, "n")
		weights := make([]decimal.Decimal, n)
		for i := range weights {
			weights[i] = decimal.NewFromInt(rapid.Int64Range(1, 10_000).Draw(t, "weight"))
		}
		total := decimal.New(cents, -2)

		parts, err := SplitProportional(total, weights)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !sum(parts).Equal(total) {
			t.Fatalf("parts %v sum to %s, want %s", parts, sum(parts), total)
		}
		for _, p := range parts {
			if p.IsNegative() || !p.Equal(p.Truncate(MoneyScale)) {
				t.Fatalf("part %s is not a non-negative whole-cent amount", p)
			}
		}
	})
}
