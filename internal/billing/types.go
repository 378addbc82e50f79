// Package billing holds the pure payment domain: payment methods, the rate
// table, fee calculation, split distribution and business validation. Nothing
// in this package touches storage or transport.
package billing

import (
	"github.com/shopspring/decimal"

	"github.com/meridianpay/capture/internal/money"
)

// Method identifies how a payment is charged.
type Method string

const (
	MethodPix  Method = "pix"
	MethodCard Method = "card"
)

// Installment bounds for card payments. PIX always charges in one shot.
const (
	MinInstallments = 1
	MaxInstallments = 12
)

// Split cardinality bounds per payment.
const (
	MinSplits = 1
	MaxSplits = 5
)

// SupportedCurrencies is the set of currencies a capture may use.
var SupportedCurrencies = []string{"BRL"}

// SplitInput is one requested share of the net amount.
type SplitInput struct {
	RecipientID string
	Role        string
	Percent     decimal.Decimal
}

// CaptureRequest is a validated-shape capture order. Business rules are
// checked separately by Validate.
type CaptureRequest struct {
	Amount       money.Amount
	Currency     string
	Method       Method
	Installments int
	Splits       []SplitInput
}

// Receivable is one recipient's computed share of the net amount.
type Receivable struct {
	RecipientID string       `json:"recipient_id"`
	Role        string       `json:"role"`
	Amount      money.Amount `json:"amount"`
}
