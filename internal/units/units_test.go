package units

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in       string
		decimals int32
		want     string
	}{
		{"0.00001", 18, "10000000000000"},
		{"1", 18, "1000000000000000000"},
		{"12.5", 2, "1250"},
		{"0", 18, "0"},
	}
	for _, tc := range tests {
		got, err := Parse(tc.in, tc.decimals)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got.String(), tc.in)
	}
}

func TestParseRejects(t *testing.T) {
	_, err := Parse("0.001", 2)
	require.ErrorIs(t, err, ErrTooPrecise)

	_, err = Parse("-1", 18)
	require.Error(t, err)

	_, err = Parse("abc", 18)
	require.Error(t, err)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "0.00001", Format(big.NewInt(10_000_000_000_000), 18))
	assert.Equal(t, "12.5", Format(big.NewInt(1250), 2))
	assert.Equal(t, "0", Format(nil, 18))
}

func TestParseInteger(t *testing.T) {
	v, err := ParseInteger("10000000000000")
	require.NoError(t, err)
	assert.Equal(t, int64(10_000_000_000_000), v.Int64())

	_, err = ParseInteger("1.5")
	require.Error(t, err)
}
