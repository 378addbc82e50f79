package billing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// RateTable maps (method, installments) to the platform rate. Card rates grow
// linearly with the installment count; PIX is flat.
type RateTable struct {
	pixRate              decimal.Decimal
	cardBase             decimal.Decimal
	cardInstallmentBase  decimal.Decimal
	cardInstallmentExtra decimal.Decimal
}

// DefaultRateTable returns the standard production rates: PIX 0%, card 1x
// 3.99%, card 2x..12x 4.99% plus 2% per additional installment.
func DefaultRateTable() RateTable {
	return RateTable{
		pixRate:              decimal.Zero,
		cardBase:             decimal.New(399, -4),
		cardInstallmentBase:  decimal.New(499, -4),
		cardInstallmentExtra: decimal.New(2, -2),
	}
}

// NewRateTable builds a rate table from configured decimal strings.
func NewRateTable(pixRate, cardBase, cardInstallmentBase, cardInstallmentExtra string) (RateTable, error) {
	var t RateTable
	var err error
	if t.pixRate, err = decimal.NewFromString(pixRate); err != nil {
		return RateTable{}, fmt.Errorf("invalid pix_rate %q: %w", pixRate, err)
	}
	if t.cardBase, err = decimal.NewFromString(cardBase); err != nil {
		return RateTable{}, fmt.Errorf("invalid card_base %q: %w", cardBase, err)
	}
	if t.cardInstallmentBase, err = decimal.NewFromString(cardInstallmentBase); err != nil {
		return RateTable{}, fmt.Errorf("invalid card_installment_base %q: %w", cardInstallmentBase, err)
	}
	if t.cardInstallmentExtra, err = decimal.NewFromString(cardInstallmentExtra); err != nil {
		return RateTable{}, fmt.Errorf("invalid card_installment_extra %q: %w", cardInstallmentExtra, err)
	}
	return t, nil
}

// Rate returns the platform rate for a method and installment count.
func (t RateTable) Rate(method Method, installments int) decimal.Decimal {
	if method == MethodPix {
		return t.pixRate
	}
	if installments <= 1 {
		return t.cardBase
	}
	extra := t.cardInstallmentExtra.Mul(decimal.NewFromInt(int64(installments - 1)))
	return t.cardInstallmentBase.Add(extra)
}
