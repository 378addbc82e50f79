package billing

import "github.com/meridianpay/capture/internal/money"

// FeeCalculator applies the platform rate to a gross amount.
type FeeCalculator struct {
	rates RateTable
}

// NewFeeCalculator creates a fee calculator over the given rate table.
func NewFeeCalculator(rates RateTable) *FeeCalculator {
	return &FeeCalculator{rates: rates}
}

// Calculate returns the platform fee on gross for the given method and
// installment count, rounded half away from zero to the cent. A zero rate
// short-circuits to a zero fee. Rates never reach 100%, so the fee is always
// at most gross.
func (f *FeeCalculator) Calculate(gross money.Amount, method Method, installments int) money.Amount {
	rate := f.rates.Rate(method, installments)
	if rate.IsZero() {
		return money.Zero
	}
	return gross.MulRate(rate)
}
