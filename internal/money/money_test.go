package money

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		cents int64
	}{
		{"integer", "297", 29700},
		{"one decimal place", "10.5", 1050},
		{"two decimal places", "297.00", 29700},
		{"smallest unit", "0.01", 1},
		{"zero", "0", 0},
		{"zero with decimals", "0.00", 0},
		{"negative", "-5.25", -525},
		{"large", "999999999999.99", 99999999999999},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.cents, a.Cents())
		})
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, input := range []string{"", "abc", "10.999", "0.001", "1,50", "10.00.00"} {
		t.Run(input, func(t *testing.T) {
			_, err := Parse(input)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedAmount)
		})
	}
}

func TestString(t *testing.T) {
	tests := []struct {
		cents int64
		want  string
	}{
		{29700, "297.00"},
		{1, "0.01"},
		{0, "0.00"},
		{4, "0.04"},
		{2670, "26.70"},
		{100, "1.00"},
		{-525, "-5.25"},
		{99999999999999, "999999999999.99"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FromCents(tt.cents).String())
	}
}

func TestMulRate(t *testing.T) {
	tests := []struct {
		name  string
		gross string
		rate  string
		want  string
	}{
		{"card 3x fee", "297.00", "0.0899", "26.70"},
		{"card 1x fee", "100.00", "0.0399", "3.99"},
		{"card 12x fee", "100.00", "0.2699", "26.99"},
		{"rounds half up", "1.00", "0.0399", "0.04"},
		{"tiny gross", "0.01", "0.0399", "0.00"},
		{"exact product", "200.00", "0.0499", "9.98"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gross := MustParse(tt.gross)
			rate, err := decimal.NewFromString(tt.rate)
			require.NoError(t, err)
			assert.Equal(t, tt.want, gross.MulRate(rate).String())
		})
	}
}

func TestArithmetic(t *testing.T) {
	a := MustParse("297.00")
	fee := MustParse("26.70")

	net := a.Sub(fee)
	assert.Equal(t, "270.30", net.String())
	assert.Equal(t, a, net.Add(fee))

	assert.True(t, Zero.IsZero())
	assert.True(t, a.IsPositive())
	assert.False(t, a.IsNegative())
	assert.True(t, FromCents(-1).IsNegative())
}

func TestJSONRoundTrip(t *testing.T) {
	a := MustParse("297.00")
	data, err := json.Marshal(a)
	require.NoError(t, err)
	assert.Equal(t, `"297.00"`, string(data))

	var back Amount
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, a.Equal(back))
}

func TestUnmarshalJSONAcceptsNumbers(t *testing.T) {
	var a Amount
	require.NoError(t, json.Unmarshal([]byte(`297`), &a))
	assert.Equal(t, int64(29700), a.Cents())

	require.NoError(t, json.Unmarshal([]byte(`10.50`), &a))
	assert.Equal(t, int64(1050), a.Cents())

	require.Error(t, json.Unmarshal([]byte(`"10.999"`), &a))
}

func TestScan(t *testing.T) {
	var a Amount
	require.NoError(t, a.Scan([]byte("297.00")))
	assert.Equal(t, int64(29700), a.Cents())

	require.NoError(t, a.Scan("0.01"))
	assert.Equal(t, int64(1), a.Cents())

	require.NoError(t, a.Scan(nil))
	assert.True(t, a.IsZero())

	require.Error(t, a.Scan(3.14))
}

func TestValue(t *testing.T) {
	v, err := MustParse("26.70").Value()
	require.NoError(t, err)
	assert.Equal(t, "26.70", v)
}

func TestParseStringRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		cents := rapid.Int64Range(-999999999999, 999999999999).Draw(t, "cents")
		a := FromCents(cents)
		back, err := Parse(a.String())
		require.NoError(t, err)
		assert.Equal(t, cents, back.Cents())
	})
}

func TestAddSubInverse(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := FromCents(rapid.Int64Range(0, 1e12).Draw(t, "a"))
		b := FromCents(rapid.Int64Range(0, 1e12).Draw(t, "b"))
		assert.Equal(t, a.Cents(), a.Add(b).Sub(b).Cents())
	})
}
