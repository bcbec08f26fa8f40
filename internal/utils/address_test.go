package utils

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAddress(t *testing.T) {
	want := common.HexToAddress("0x742d35Cc6634C0532925a3b0F26750C66d78EB66")

	for _, in := range []string{
		"0x742d35Cc6634C0532925a3b0F26750C66d78EB66",
		"0x742d35cc6634c0532925a3b0f26750c66d78eb66",
		"742d35cc6634c0532925a3b0f26750c66d78eb66",
		"  0x742d35Cc6634C0532925a3b0F26750C66d78EB66  ",
	} {
		got, err := ParseAddress(in)
		require.NoError(t, err, "input %q", in)
		assert.Equal(t, want, got)
	}
}

func TestParseAddressRejectsMalformed(t *testing.T) {
	for _, in := range []string{"", "0x123", "0xzz2d35cc6634c0532925a3b0f26750c66d78eb66", "not-an-address"} {
		_, err := ParseAddress(in)
		assert.Error(t, err, "input %q", in)
	}
}

func TestNormalizeAddress(t *testing.T) {
	addr := common.HexToAddress("0x742d35Cc6634C0532925a3b0F26750C66d78EB66")
	assert.Equal(t, "0x742d35cc6634c0532925a3b0f26750c66d78eb66", NormalizeAddress(addr))

	// Round trip through parse keeps the canonical form stable.
	parsed, err := ParseAddress(NormalizeAddress(addr))
	assert.NoError(t, err)
	assert.Equal(t, addr, parsed)
}
