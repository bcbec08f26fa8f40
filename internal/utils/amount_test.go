package utils

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	n, err := ParseAmount("12345")
	require.NoError(t, err)
	assert.Equal(t, int64(12345), n.Int64())

	n, err = ParseAmount("  42 ")
	require.NoError(t, err)
	assert.Equal(t, int64(42), n.Int64())

	// Values beyond uint64 must survive intact.
	huge := "115792089237316195423570985008687907853269984665640564039457584007913129639935"
	n, err = ParseAmount(huge)
	require.NoError(t, err)
	assert.Equal(t, huge, n.String())

	n, err = ParseAmount("-7")
	require.NoError(t, err)
	assert.Equal(t, int64(-7), n.Int64())
}

func TestParseAmountRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "   ", "abc", "1.5", "0x10", "1e9"} {
		_, err := ParseAmount(in)
		assert.Error(t, err, "input %q", in)
	}
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "0", FormatAmount(nil))
	assert.Equal(t, "0", FormatAmount(big.NewInt(0)))
	assert.Equal(t, "987654321", FormatAmount(big.NewInt(987654321)))

	n, _ := new(big.Int).SetString("340282366920938463463374607431768211456", 10)
	assert.Equal(t, "340282366920938463463374607431768211456", FormatAmount(n))
}
