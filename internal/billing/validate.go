package billing

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

var percentSum = decimal.NewFromInt(100)

// ValidationError carries one message per failing field. The whole rule set
// runs before it is raised, so a single response reports every violation.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, field+": "+msg)
	}
	sort.Strings(parts)
	return "validation failed: " + strings.Join(parts, "; ")
}

// Validate checks the business rules for a capture request and returns a
// *ValidationError accumulating every violation, or nil when the request is
// acceptable.
func Validate(req CaptureRequest) error {
	errs := map[string]string{}

	if !req.Amount.IsPositive() {
		errs["amount"] = "Amount must be greater than zero."
	}

	if !isSupportedCurrency(req.Currency) {
		errs["currency"] = fmt.Sprintf("Unsupported currency. Use: %s.", strings.Join(SupportedCurrencies, ", "))
	}

	if req.Method == MethodPix && req.Installments != MinInstallments {
		errs["installments"] = "PIX payments do not allow installments."
	}

	if req.Method == MethodCard {
		if req.Installments < MinInstallments || req.Installments > MaxInstallments {
			errs["installments"] = fmt.Sprintf("Card payments accept between %d and %d installments.", MinInstallments, MaxInstallments)
		}
	}

	if len(req.Splits) < MinSplits || len(req.Splits) > MaxSplits {
		errs["splits"] = fmt.Sprintf("Provide between %d and %d recipients.", MinSplits, MaxSplits)
	} else {
		for i, s := range req.Splits {
			if !s.Percent.IsPositive() || s.Percent.GreaterThan(percentSum) {
				errs[fmt.Sprintf("splits[%d].percent", i)] = "Percent must be greater than 0 and at most 100."
			}
		}

		total := decimal.Zero
		for _, s := range req.Splits {
			total = total.Add(s.Percent)
		}
		if !total.Equal(percentSum) {
			errs["splits"] = fmt.Sprintf("Split percents must sum to 100%%. Got: %s%%.", total.String())
		}
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

func isSupportedCurrency(currency string) bool {
	for _, c := range SupportedCurrencies {
		if strings.EqualFold(currency, c) {
			return true
		}
	}
	return false
}
