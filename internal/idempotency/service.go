package idempotency

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/meridianpay/capture/internal/database"
)

// Outcome classifies what a key check found.
type Outcome int

const (
	// OutcomeFirstTime means the key was unseen and is now claimed by this
	// transaction.
	OutcomeFirstTime Outcome = iota
	// OutcomeReplay means the key completed earlier with the same payload;
	// the stored response must be returned verbatim.
	OutcomeReplay
	// OutcomeConflict means the key was used with a different payload.
	OutcomeConflict
	// OutcomeInFlight means another request holds the key and has not
	// finished yet.
	OutcomeInFlight
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFirstTime:
		return "first_time"
	case OutcomeReplay:
		return "replay"
	case OutcomeConflict:
		return "conflict"
	case OutcomeInFlight:
		return "in_flight"
	default:
		return "unknown"
	}
}

// CheckResult is the verdict for one key check. CachedResponse is set only
// for OutcomeReplay.
type CheckResult struct {
	Outcome        Outcome
	CachedResponse json.RawMessage
}

// Service runs the key protocol against the idempotency_records table.
type Service struct {
	db *database.DB
}

// NewService creates an idempotency service over db.
func NewService(db *database.DB) *Service {
	return &Service{db: db}
}

// Check resolves a key inside the caller's transaction. An existing record is
// row-locked first, so concurrent holders of the same key serialize here. A
// missing record is claimed by inserting a processing row; losing the insert
// race to a concurrent transaction reports the key as in flight.
func (s *Service) Check(ctx context.Context, tx *sql.Tx, key, payloadHash string) (CheckResult, error) {
	rec, err := s.db.GetIdempotencyRecordForUpdate(ctx, tx, key)
	if err != nil {
		return CheckResult{}, err
	}

	if rec != nil {
		if rec.PayloadHash != payloadHash {
			return CheckResult{Outcome: OutcomeConflict}, nil
		}
		if rec.Status == database.IdempotencyStatusCompleted && len(rec.ResponseData) > 0 {
			return CheckResult{Outcome: OutcomeReplay, CachedResponse: rec.ResponseData}, nil
		}
		return CheckResult{Outcome: OutcomeInFlight}, nil
	}

	err = s.db.InsertIdempotencyRecord(ctx, tx, database.IdempotencyRecord{
		ID:          uuid.New().String(),
		Key:         key,
		PayloadHash: payloadHash,
		Status:      database.IdempotencyStatusProcessing,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		// The insert blocks on the unique index while a concurrent claim
		// is uncommitted, then fails once it commits.
		if database.IsUniqueViolation(err) {
			return CheckResult{Outcome: OutcomeInFlight}, nil
		}
		return CheckResult{}, err
	}

	return CheckResult{Outcome: OutcomeFirstTime}, nil
}

// SaveResponse stores the response body for a first-time key and marks the
// record completed. It must run in the same transaction that claimed the key.
func (s *Service) SaveResponse(ctx context.Context, tx *sql.Tx, key string, response json.RawMessage) error {
	return s.db.CompleteIdempotencyRecord(ctx, tx, key, response)
}
