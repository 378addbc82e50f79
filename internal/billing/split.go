package billing

import (
	"sort"

	"github.com/meridianpay/capture/internal/money"
)

// SplitCalculator distributes a net amount across recipients by percentage
// using the largest-remainder method, so the shares always sum to the net
// exactly.
type SplitCalculator struct{}

// NewSplitCalculator creates a split calculator.
func NewSplitCalculator() *SplitCalculator {
	return &SplitCalculator{}
}

// Distribute apportions net across splits in integer cents. Each share starts
// at the floor of net·percent/100; the cents left over go one each to the
// shares with the largest remainders, earlier input index winning ties. The
// result preserves input order. Callers must have validated that percents sum
// to exactly 100, which bounds the leftover to [0, len(splits)).
func (s *SplitCalculator) Distribute(net money.Amount, splits []SplitInput) []Receivable {
	total := net.Cents()
	n := len(splits)

	baseCents := make([]int64, n)
	remainders := make([]int64, n)
	var allocated int64
	for i, sp := range splits {
		// percent has at most 2 fractional digits, so shifting to basis
		// points keeps the arithmetic exact in int64.
		basisPoints := sp.Percent.Shift(2).IntPart()
		numerator := total * basisPoints
		baseCents[i] = numerator / 10000
		remainders[i] = numerator % 10000
		allocated += baseCents[i]
	}

	leftover := total - allocated

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return remainders[order[a]] > remainders[order[b]]
	})
	for i := int64(0); i < leftover; i++ {
		baseCents[order[i]]++
	}

	out := make([]Receivable, n)
	for i, sp := range splits {
		out[i] = Receivable{
			RecipientID: sp.RecipientID,
			Role:        sp.Role,
			Amount:      money.FromCents(baseCents[i]),
		}
	}
	return out
}
