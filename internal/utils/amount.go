package utils

import (
	"fmt"
	"math/big"
	"strings"
)

// ParseAmount parses a decimal string into a big.Int. Amounts travel as
// strings in JSON and in the database to avoid float truncation on values
// beyond 2^53.
func ParseAmount(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("amount is empty")
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount: %s", s)
	}
	return n, nil
}

// FormatAmount renders a big.Int as its decimal string. Nil formats as "0".
func FormatAmount(n *big.Int) string {
	if n == nil {
		return "0"
	}
	return n.String()
}
