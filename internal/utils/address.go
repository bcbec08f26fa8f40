package utils

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ParseAddress normalizes and validates a 20-byte EVM address string.
// Accepts with or without the 0x prefix, any casing.
func ParseAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return common.Address{}, fmt.Errorf("address is empty")
	}
	if !strings.HasPrefix(strings.ToLower(s), "0x") {
		s = "0x" + s
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address: %s", s)
	}
	return common.HexToAddress(s), nil
}

// NormalizeAddress is the canonical lowercase hex form used for database
// keys and JSON responses.
func NormalizeAddress(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}
