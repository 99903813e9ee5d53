package codec

import (
	"fmt"
	"strings"

	"github.com/vedhavyas/go-subkey/v2"

	"github.com/availkit/go-node-client/entities"
)

// ParseAddress converts a human-readable address into an account id. Both SS58
// addresses and 0x-prefixed 32 byte hex strings are accepted. Validation
// happens here, at the boundary, before any network call.
func ParseAddress(address string) (entities.AccountID, error) {
	if strings.HasPrefix(address, "0x") {
		h, err := entities.HashFromHex(address)
		if err != nil {
			return entities.AccountID{}, err
		}
		return entities.AccountID(h), nil
	}
	_, pub, err := subkey.SS58Decode(address)
	if err != nil {
		return entities.AccountID{}, entities.NewUserInputError(fmt.Sprintf("malformed ss58 address %q: %v", address, err))
	}
	return entities.AccountIDFromBytes(pub)
}

// SS58Address formats an account id with the given network prefix.
func SS58Address(account entities.AccountID, network uint16) string {
	return subkey.SS58Encode(account[:], network)
}
