package capture

import "errors"

// ErrIdempotencyConflict means the Idempotency-Key was already used with a
// different payload. The client must pick a new key.
var ErrIdempotencyConflict = errors.New("idempotency key already used with a different payload")

// ErrDuplicateInFlight means another request holding the same key and payload
// has not committed yet. The client may retry once it finishes.
var ErrDuplicateInFlight = errors.New("concurrent request with this idempotency key is still being processed")
