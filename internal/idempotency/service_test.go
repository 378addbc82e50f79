package idempotency

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianpay/capture/internal/database"
	"github.com/meridianpay/capture/test"
)

const testHash = "1f2e3d4c5b6a79881f2e3d4c5b6a79881f2e3d4c5b6a79881f2e3d4c5b6a7988"

func TestCheckFirstTimeClaimsKey(t *testing.T) {
	db := test.SetupTestDB(t)
	defer test.TeardownTestDB(t, db)
	svc := NewService(db)
	ctx := context.Background()

	tx, err := db.BeginTx(ctx)
	require.NoError(t, err)

	res, err := svc.Check(ctx, tx, "key-first", testHash)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFirstTime, res.Outcome)
	assert.Nil(t, res.CachedResponse)

	rec, err := db.GetIdempotencyRecordForUpdate(ctx, tx, "key-first")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, database.IdempotencyStatusProcessing, rec.Status)

	require.NoError(t, tx.Commit())
}

func TestCheckInFlightWhenProcessing(t *testing.T) {
	db := test.SetupTestDB(t)
	defer test.TeardownTestDB(t, db)
	svc := NewService(db)
	ctx := context.Background()

	// Claim and commit without completing, as if the first request died
	// between commit points. Same key and hash must report in flight.
	tx, err := db.BeginTx(ctx)
	require.NoError(t, err)
	res, err := svc.Check(ctx, tx, "key-inflight", testHash)
	require.NoError(t, err)
	require.Equal(t, OutcomeFirstTime, res.Outcome)
	require.NoError(t, tx.Commit())

	tx2, err := db.BeginTx(ctx)
	require.NoError(t, err)
	defer tx2.Rollback()

	res, err = svc.Check(ctx, tx2, "key-inflight", testHash)
	require.NoError(t, err)
	assert.Equal(t, OutcomeInFlight, res.Outcome)
}

func TestCheckReplayReturnsStoredResponse(t *testing.T) {
	db := test.SetupTestDB(t)
	defer test.TeardownTestDB(t, db)
	svc := NewService(db)
	ctx := context.Background()

	response := json.RawMessage(`{"payment_id":"abc","status":"captured"}`)

	tx, err := db.BeginTx(ctx)
	require.NoError(t, err)
	res, err := svc.Check(ctx, tx, "key-replay", testHash)
	require.NoError(t, err)
	require.Equal(t, OutcomeFirstTime, res.Outcome)
	require.NoError(t, svc.SaveResponse(ctx, tx, "key-replay", response))
	require.NoError(t, tx.Commit())

	tx2, err := db.BeginTx(ctx)
	require.NoError(t, err)
	defer tx2.Rollback()

	res, err = svc.Check(ctx, tx2, "key-replay", testHash)
	require.NoError(t, err)
	assert.Equal(t, OutcomeReplay, res.Outcome)
	assert.JSONEq(t, string(response), string(res.CachedResponse))
}

func TestCheckConflictOnDifferentPayload(t *testing.T) {
	db := test.SetupTestDB(t)
	defer test.TeardownTestDB(t, db)
	svc := NewService(db)
	ctx := context.Background()

	tx, err := db.BeginTx(ctx)
	require.NoError(t, err)
	res, err := svc.Check(ctx, tx, "key-conflict", testHash)
	require.NoError(t, err)
	require.Equal(t, OutcomeFirstTime, res.Outcome)
	require.NoError(t, svc.SaveResponse(ctx, tx, "key-conflict", json.RawMessage(`{}`)))
	require.NoError(t, tx.Commit())

	otherHash := "ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff"

	tx2, err := db.BeginTx(ctx)
	require.NoError(t, err)
	defer tx2.Rollback()

	res, err = svc.Check(ctx, tx2, "key-conflict", otherHash)
	require.NoError(t, err)
	assert.Equal(t, OutcomeConflict, res.Outcome)
}

func TestCheckConflictBeatsInFlight(t *testing.T) {
	db := test.SetupTestDB(t)
	defer test.TeardownTestDB(t, db)
	svc := NewService(db)
	ctx := context.Background()

	// A still-processing record with a different hash is a conflict, not an
	// in-flight duplicate.
	tx, err := db.BeginTx(ctx)
	require.NoError(t, err)
	_, err = svc.Check(ctx, tx, "key-proc-conflict", testHash)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	otherHash := "ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff"

	tx2, err := db.BeginTx(ctx)
	require.NoError(t, err)
	defer tx2.Rollback()

	res, err := svc.Check(ctx, tx2, "key-proc-conflict", otherHash)
	require.NoError(t, err)
	assert.Equal(t, OutcomeConflict, res.Outcome)
}

func TestConcurrentClaimSerializes(t *testing.T) {
	db := test.SetupTestDB(t)
	defer test.TeardownTestDB(t, db)
	svc := NewService(db)
	ctx := context.Background()

	tx1, err := db.BeginTx(ctx)
	require.NoError(t, err)

	res1, err := svc.Check(ctx, tx1, "key-race", testHash)
	require.NoError(t, err)
	require.Equal(t, OutcomeFirstTime, res1.Outcome)

	type verdict struct {
		res CheckResult
		err error
	}
	done := make(chan verdict, 1)
	go func() {
		tx2, err := db.BeginTx(ctx)
		if err != nil {
			done <- verdict{err: err}
			return
		}
		defer tx2.Rollback()
		res, err := svc.Check(ctx, tx2, "key-race", testHash)
		done <- verdict{res: res, err: err}
	}()

	// The competing claim must block on the unique index while the first
	// transaction is open.
	select {
	case v := <-done:
		t.Fatalf("second check returned before first committed: %+v %v", v.res, v.err)
	case <-time.After(200 * time.Millisecond):
	}

	require.NoError(t, svc.SaveResponse(ctx, tx1, "key-race", json.RawMessage(`{"ok":true}`)))
	require.NoError(t, tx1.Commit())

	v := <-done
	require.NoError(t, v.err)
	assert.Equal(t, OutcomeInFlight, v.res.Outcome)

	// Once the loser retries on a fresh transaction it sees the replay.
	tx3, err := db.BeginTx(ctx)
	require.NoError(t, err)
	defer tx3.Rollback()

	res3, err := svc.Check(ctx, tx3, "key-race", testHash)
	require.NoError(t, err)
	assert.Equal(t, OutcomeReplay, res3.Outcome)
}
