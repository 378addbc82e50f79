package billing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/meridianpay/capture/internal/money"
)

func split(recipient, role, percent string) SplitInput {
	return SplitInput{
		RecipientID: recipient,
		Role:        role,
		Percent:     decimal.RequireFromString(percent),
	}
}

func amounts(receivables []Receivable) []string {
	out := make([]string, len(receivables))
	for i, r := range receivables {
		out[i] = r.Amount.String()
	}
	return out
}

func TestDistributeSeventyThirty(t *testing.T) {
	calc := NewSplitCalculator()
	got := calc.Distribute(money.MustParse("270.30"), []SplitInput{
		split("producer_1", "producer", "70"),
		split("affiliate_9", "affiliate", "30"),
	})

	require.Len(t, got, 2)
	assert.Equal(t, []string{"189.21", "81.09"}, amounts(got))
	assert.Equal(t, "producer_1", got[0].RecipientID)
	assert.Equal(t, "producer", got[0].Role)
	assert.Equal(t, "affiliate_9", got[1].RecipientID)
}

func TestDistributeSingleRecipient(t *testing.T) {
	calc := NewSplitCalculator()
	got := calc.Distribute(money.MustParse("96.01"), []SplitInput{
		split("p1", "producer", "100"),
	})

	require.Len(t, got, 1)
	assert.Equal(t, "96.01", got[0].Amount.String())
}

func TestDistributeOneCentFiftyFifty(t *testing.T) {
	calc := NewSplitCalculator()
	got := calc.Distribute(money.MustParse("0.01"), []SplitInput{
		split("a", "producer", "50"),
		split("b", "affiliate", "50"),
	})

	// Equal remainders: the earlier input index takes the spare cent.
	assert.Equal(t, []string{"0.01", "0.00"}, amounts(got))
}

func TestDistributeLargestRemainderWins(t *testing.T) {
	calc := NewSplitCalculator()
	got := calc.Distribute(money.MustParse("10.00"), []SplitInput{
		split("a", "producer", "33.33"),
		split("b", "affiliate", "33.33"),
		split("c", "affiliate", "33.34"),
	})

	assert.Equal(t, []string{"3.33", "3.33", "3.34"}, amounts(got))
}

func TestDistributeZeroNet(t *testing.T) {
	calc := NewSplitCalculator()
	got := calc.Distribute(money.Zero, []SplitInput{
		split("a", "producer", "60"),
		split("b", "affiliate", "40"),
	})

	assert.Equal(t, []string{"0.00", "0.00"}, amounts(got))
}

func TestDistributeDeterministic(t *testing.T) {
	calc := NewSplitCalculator()
	splits := []SplitInput{
		split("a", "producer", "33.33"),
		split("b", "affiliate", "33.33"),
		split("c", "affiliate", "33.34"),
	}

	first := calc.Distribute(money.MustParse("271.53"), splits)
	second := calc.Distribute(money.MustParse("271.53"), splits)
	assert.Equal(t, amounts(first), amounts(second))
}

// randomSplits draws between 1 and 5 splits whose percents are whole basis
// points summing to exactly 100%.
func randomSplits(t *rapid.T) []SplitInput {
	n := rapid.IntRange(1, 5).Draw(t, "n")
	remaining := int64(10000)
	parts := make([]int64, n)
	for i := 0; i < n-1; i++ {
		upper := remaining - int64(n-1-i)
		parts[i] = rapid.Int64Range(1, upper).Draw(t, "part")
		remaining -= parts[i]
	}
	parts[n-1] = remaining

	splits := make([]SplitInput, n)
	for i, bp := range parts {
		splits[i] = SplitInput{
			RecipientID: string(rune('a' + i)),
			Role:        "producer",
			Percent:     decimal.New(bp, -2),
		}
	}
	return splits
}

func TestDistributeConservesTotal(t *testing.T) {
	calc := NewSplitCalculator()
	rapid.Check(t, func(t *rapid.T) {
		net := money.FromCents(rapid.Int64Range(0, 1e10).Draw(t, "net"))
		splits := randomSplits(t)

		got := calc.Distribute(net, splits)
		require.Len(t, got, len(splits))

		sum := money.Zero
		for i, r := range got {
			assert.False(t, r.Amount.IsNegative())
			assert.Equal(t, splits[i].RecipientID, r.RecipientID)
			sum = sum.Add(r.Amount)
		}
		assert.True(t, sum.Equal(net), "sum %s != net %s", sum, net)
	})
}
