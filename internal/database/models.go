package database

import (
	"encoding/json"
	"time"

	"github.com/meridianpay/capture/internal/money"
)

// Payment statuses. A payment is written once in its terminal state.
const (
	PaymentStatusCaptured = "captured"
)

// Outbox event statuses
const (
	OutboxStatusPending   = "pending"
	OutboxStatusPublished = "published"
)

// Idempotency record statuses
const (
	IdempotencyStatusProcessing = "processing"
	IdempotencyStatusCompleted  = "completed"
)

// Payment is a captured payment row
type Payment struct {
	ID                string       `json:"id"`
	Status            string       `json:"status"`
	GrossAmount       money.Amount `json:"gross_amount"`
	PlatformFeeAmount money.Amount `json:"platform_fee_amount"`
	NetAmount         money.Amount `json:"net_amount"`
	PaymentMethod     string       `json:"payment_method"`
	Installments      int          `json:"installments"`
	IdempotencyKey    string       `json:"idempotency_key"`
	CreatedAt         time.Time    `json:"created_at"`
}

// LedgerEntry is one recipient's share of a payment's net amount
type LedgerEntry struct {
	ID          string       `json:"id"`
	PaymentID   string       `json:"payment_id"`
	RecipientID string       `json:"recipient_id"`
	Role        string       `json:"role"`
	Amount      money.Amount `json:"amount"`
	CreatedAt   time.Time    `json:"created_at"`
}

// OutboxEvent is a domain event staged for publication
type OutboxEvent struct {
	ID          string          `json:"id"`
	EventType   string          `json:"event_type"`
	Payload     json.RawMessage `json:"payload"`
	Status      string          `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	PublishedAt *time.Time      `json:"published_at"`
}

// IdempotencyRecord tracks one Idempotency-Key and the response it produced
type IdempotencyRecord struct {
	ID           string          `json:"id"`
	Key          string          `json:"key"`
	PayloadHash  string          `json:"payload_hash"`
	Status       string          `json:"status"`
	ResponseData json.RawMessage `json:"response_data"`
	CreatedAt    time.Time       `json:"created_at"`
}

// CaptureStats aggregates totals across all captured payments
type CaptureStats struct {
	TotalPayments       int64            `json:"total_payments"`
	TotalGrossAmount    money.Amount     `json:"total_gross_amount"`
	TotalPlatformFees   money.Amount     `json:"total_platform_fees"`
	TotalNetAmount      money.Amount     `json:"total_net_amount"`
	PaymentsByMethod    map[string]int64 `json:"payments_by_method"`
	PendingOutboxEvents int64            `json:"pending_outbox_events"`
}
