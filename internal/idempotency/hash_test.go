package idempotency

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var hexDigest = regexp.MustCompile(`^[0-9a-f]{64}$`)

func TestHashPayloadShape(t *testing.T) {
	hash, err := HashPayload(map[string]interface{}{"amount": "297.00"})
	require.NoError(t, err)
	assert.Regexp(t, hexDigest, hash)
}

func TestHashPayloadIgnoresKeyOrder(t *testing.T) {
	// Struct fields marshal in declaration order, maps in sorted order; the
	// canonical form must make both hash the same.
	type payload struct {
		PaymentMethod string `json:"payment_method"`
		Amount        string `json:"amount"`
		Installments  int    `json:"installments"`
	}

	fromStruct, err := HashPayload(payload{
		PaymentMethod: "card",
		Amount:        "297.00",
		Installments:  3,
	})
	require.NoError(t, err)

	fromMap, err := HashPayload(map[string]interface{}{
		"amount":         "297.00",
		"installments":   3,
		"payment_method": "card",
	})
	require.NoError(t, err)

	assert.Equal(t, fromStruct, fromMap)
}

func TestHashPayloadNormalizesNumberForm(t *testing.T) {
	a, err := HashPayload(map[string]interface{}{"installments": 3})
	require.NoError(t, err)
	b, err := HashPayload(map[string]interface{}{"installments": 3.0})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestHashPayloadDetectsValueChanges(t *testing.T) {
	base := map[string]interface{}{
		"amount":         "100.00",
		"currency":       "BRL",
		"payment_method": "card",
		"installments":   1,
		"splits": []map[string]interface{}{
			{"recipient_id": "p1", "role": "producer", "percent": "100"},
		},
	}
	baseHash, err := HashPayload(base)
	require.NoError(t, err)

	changed := map[string]interface{}{
		"amount":         "999.00",
		"currency":       "BRL",
		"payment_method": "card",
		"installments":   1,
		"splits": []map[string]interface{}{
			{"recipient_id": "p1", "role": "producer", "percent": "100"},
		},
	}
	changedHash, err := HashPayload(changed)
	require.NoError(t, err)

	assert.NotEqual(t, baseHash, changedHash)
}

func TestHashPayloadNestedKeyOrder(t *testing.T) {
	a, err := HashPayload(map[string]interface{}{
		"splits": []map[string]interface{}{
			{"recipient_id": "p1", "percent": "70", "role": "producer"},
		},
	})
	require.NoError(t, err)

	type splitJSON struct {
		RecipientID string `json:"recipient_id"`
		Percent     string `json:"percent"`
		Role        string `json:"role"`
	}
	b, err := HashPayload(map[string]interface{}{
		"splits": []splitJSON{{RecipientID: "p1", Percent: "70", Role: "producer"}},
	})
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestHashPayloadSplitOrderMatters(t *testing.T) {
	a, err := HashPayload(map[string]interface{}{
		"splits": []string{"p1", "p2"},
	})
	require.NoError(t, err)
	b, err := HashPayload(map[string]interface{}{
		"splits": []string{"p2", "p1"},
	})
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestHashPayloadDeterministic(t *testing.T) {
	payload := map[string]interface{}{
		"amount":   "297.00",
		"currency": "BRL",
	}
	first, err := HashPayload(payload)
	require.NoError(t, err)
	second, err := HashPayload(payload)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
