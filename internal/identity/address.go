// Package identity normalizes address-like strings to the canonical
// lowercase hex form used as the join key between events and entities.
package identity

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Normalize returns the canonical lowercase form of an address-like string.
// Well-formed hex addresses are round-tripped through common.Address so
// mixed-case (EIP-55) input collapses to a single key; anything else is
// lowercased as-is. Pure function, never errors.
func Normalize(addr string) string {
	trimmed := strings.TrimSpace(addr)
	if common.IsHexAddress(trimmed) {
		return strings.ToLower(common.HexToAddress(trimmed).Hex())
	}
	return strings.ToLower(trimmed)
}
