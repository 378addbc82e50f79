// Package capture orchestrates payment capture: validation, fee and split
// calculation, then an atomic write of the payment, its ledger, the outbox
// event and the idempotency record.
package capture

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/meridianpay/capture/internal/billing"
	"github.com/meridianpay/capture/internal/database"
	"github.com/meridianpay/capture/internal/idempotency"
	"github.com/meridianpay/capture/internal/money"
)

// EventPaymentCaptured is the outbox event type written for every capture.
const EventPaymentCaptured = "payment_captured"

// Result is the capture response body. Field order matches the public API
// contract.
type Result struct {
	PaymentID         string               `json:"payment_id"`
	Status            string               `json:"status"`
	GrossAmount       money.Amount         `json:"gross_amount"`
	PlatformFeeAmount money.Amount         `json:"platform_fee_amount"`
	NetAmount         money.Amount         `json:"net_amount"`
	Receivables       []billing.Receivable `json:"receivables"`
	OutboxEvent       OutboxEventInfo      `json:"outbox_event"`
}

// OutboxEventInfo is the outbox summary embedded in a capture response.
type OutboxEventInfo struct {
	Type   string `json:"type"`
	Status string `json:"status"`
}

// QuoteResult is a dry-run calculation: the amounts a capture would produce,
// with nothing persisted.
type QuoteResult struct {
	GrossAmount       money.Amount         `json:"gross_amount"`
	PlatformFeeAmount money.Amount         `json:"platform_fee_amount"`
	NetAmount         money.Amount         `json:"net_amount"`
	Receivables       []billing.Receivable `json:"receivables"`
}

// Coordinator runs the capture workflow.
type Coordinator struct {
	db     *database.DB
	keys   *idempotency.Service
	fees   *billing.FeeCalculator
	splits *billing.SplitCalculator
}

// NewCoordinator creates a capture coordinator.
func NewCoordinator(db *database.DB, keys *idempotency.Service, fees *billing.FeeCalculator, splits *billing.SplitCalculator) *Coordinator {
	return &Coordinator{
		db:     db,
		keys:   keys,
		fees:   fees,
		splits: splits,
	}
}

// Process captures a payment under the given Idempotency-Key and returns the
// response body. Replays return the stored body of the first capture. The
// whole write path runs in one transaction bound to ctx, so any failure or
// cancellation rolls back the payment, ledger, outbox event and key claim
// together.
func (c *Coordinator) Process(ctx context.Context, req billing.CaptureRequest, key string) (json.RawMessage, error) {
	start := time.Now()

	if err := billing.Validate(req); err != nil {
		return nil, err
	}

	payloadHash, err := idempotency.HashPayload(canonicalPayload(req))
	if err != nil {
		return nil, err
	}

	tx, err := c.db.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	check, err := c.keys.Check(ctx, tx, key, payloadHash)
	if err != nil {
		return nil, fmt.Errorf("idempotency check failed: %w", err)
	}

	switch check.Outcome {
	case idempotency.OutcomeConflict:
		idempotencyOutcomes.WithLabelValues(check.Outcome.String()).Inc()
		return nil, ErrIdempotencyConflict

	case idempotency.OutcomeInFlight:
		idempotencyOutcomes.WithLabelValues(check.Outcome.String()).Inc()
		return nil, ErrDuplicateInFlight

	case idempotency.OutcomeReplay:
		// Commit releases the row lock; nothing was written.
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("failed to commit replay transaction: %w", err)
		}
		idempotencyOutcomes.WithLabelValues(check.Outcome.String()).Inc()
		log.Info().Str("idempotency_key", key).Msg("Returning cached capture response")
		return check.CachedResponse, nil
	}

	fee := c.fees.Calculate(req.Amount, req.Method, req.Installments)
	net := req.Amount.Sub(fee)
	receivables := c.splits.Distribute(net, req.Splits)

	now := time.Now().UTC()
	payment := database.Payment{
		ID:                uuid.New().String(),
		Status:            database.PaymentStatusCaptured,
		GrossAmount:       req.Amount,
		PlatformFeeAmount: fee,
		NetAmount:         net,
		PaymentMethod:     string(req.Method),
		Installments:      req.Installments,
		IdempotencyKey:    key,
		CreatedAt:         now,
	}
	if err := c.db.InsertPayment(ctx, tx, payment); err != nil {
		return nil, fmt.Errorf("failed to insert payment: %w", err)
	}

	entries := make([]database.LedgerEntry, len(receivables))
	for i, r := range receivables {
		entries[i] = database.LedgerEntry{
			ID:          uuid.New().String(),
			PaymentID:   payment.ID,
			RecipientID: r.RecipientID,
			Role:        r.Role,
			Amount:      r.Amount,
			CreatedAt:   now,
		}
	}
	if err := c.db.InsertLedgerEntries(ctx, tx, entries); err != nil {
		return nil, fmt.Errorf("failed to insert ledger entries: %w", err)
	}

	eventPayload, err := json.Marshal(map[string]string{
		"payment_id":   payment.ID,
		"gross_amount": payment.GrossAmount.String(),
		"net_amount":   payment.NetAmount.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to serialize outbox payload: %w", err)
	}
	event := database.OutboxEvent{
		ID:        uuid.New().String(),
		EventType: EventPaymentCaptured,
		Payload:   eventPayload,
		Status:    database.OutboxStatusPending,
		CreatedAt: now,
	}
	if err := c.db.InsertOutboxEvent(ctx, tx, event); err != nil {
		return nil, fmt.Errorf("failed to insert outbox event: %w", err)
	}

	body, err := json.Marshal(Result{
		PaymentID:         payment.ID,
		Status:            payment.Status,
		GrossAmount:       payment.GrossAmount,
		PlatformFeeAmount: payment.PlatformFeeAmount,
		NetAmount:         payment.NetAmount,
		Receivables:       receivables,
		OutboxEvent:       OutboxEventInfo{Type: event.EventType, Status: event.Status},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to serialize capture response: %w", err)
	}

	if err := c.keys.SaveResponse(ctx, tx, key, body); err != nil {
		return nil, fmt.Errorf("failed to save idempotent response: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit capture: %w", err)
	}

	idempotencyOutcomes.WithLabelValues(check.Outcome.String()).Inc()
	paymentsTotal.WithLabelValues(string(req.Method)).Inc()
	grossAmountTotal.Add(payment.GrossAmount.Decimal().InexactFloat64())
	captureDuration.Observe(time.Since(start).Seconds())

	log.Info().
		Str("payment_id", payment.ID).
		Str("method", string(req.Method)).
		Str("gross_amount", payment.GrossAmount.String()).
		Str("net_amount", payment.NetAmount.String()).
		Msg("Payment captured")

	return body, nil
}

// Quote runs validation and the fee and split calculations without opening a
// transaction or persisting anything.
func (c *Coordinator) Quote(req billing.CaptureRequest) (*QuoteResult, error) {
	if err := billing.Validate(req); err != nil {
		return nil, err
	}

	fee := c.fees.Calculate(req.Amount, req.Method, req.Installments)
	net := req.Amount.Sub(fee)

	return &QuoteResult{
		GrossAmount:       req.Amount,
		PlatformFeeAmount: fee,
		NetAmount:         net,
		Receivables:       c.splits.Distribute(net, req.Splits),
	}, nil
}

// canonicalPayload renders the validated request in its canonical JSON form:
// amounts as 2-decimal strings, percents as trimmed decimal strings, so that
// equivalent client spellings of the same value hash identically.
func canonicalPayload(req billing.CaptureRequest) map[string]interface{} {
	splits := make([]map[string]interface{}, len(req.Splits))
	for i, s := range req.Splits {
		splits[i] = map[string]interface{}{
			"recipient_id": s.RecipientID,
			"role":         s.Role,
			"percent":      s.Percent.String(),
		}
	}
	return map[string]interface{}{
		"amount":         req.Amount.String(),
		"currency":       req.Currency,
		"payment_method": string(req.Method),
		"installments":   req.Installments,
		"splits":         splits,
	}
}
