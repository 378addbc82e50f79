// Package idempotency implements the Idempotency-Key protocol: canonical
// payload hashing plus the row-locked record lifecycle that decides whether a
// request is new, a replay, a conflict or a concurrent duplicate.
package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// HashPayload returns the hex SHA-256 of the payload's canonical JSON form.
// The payload is marshaled, decoded into generic maps and re-marshaled, which
// sorts object keys at every depth. Two requests that differ only in key
// order or in number formatting therefore hash identically, while any change
// to a value produces a different hash.
func HashPayload(payload interface{}) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to serialize payload: %w", err)
	}

	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return "", fmt.Errorf("failed to normalize payload: %w", err)
	}

	canonical, err := json.Marshal(generic)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize payload: %w", err)
	}

	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
