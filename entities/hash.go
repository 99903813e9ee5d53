package entities

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// Hash is a 32 byte block or extrinsic hash.
type Hash [32]byte

func HashFromHex(s string) (Hash, error) {
	var h Hash
	trimmed := strings.TrimPrefix(s, "0x")
	if len(trimmed) != 64 {
		return h, NewUserInputError(fmt.Sprintf("hash must be 32 bytes, got %d hex chars", len(trimmed)))
	}
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return h, NewUserInputError(fmt.Sprintf("malformed hash %q: %v", s, err))
	}
	copy(h[:], raw)
	return h, nil
}

func HashFromBytes(b []byte) (Hash, error) {
	var h Hash
	if len(b) != 32 {
		return h, NewUserInputError(fmt.Sprintf("hash must be 32 bytes, got %d", len(b)))
	}
	copy(h[:], b)
	return h, nil
}

func (h Hash) Hex() string {
	return "0x" + hex.EncodeToString(h[:])
}

func (h Hash) String() string {
	return h.Hex()
}

func (h Hash) IsZero() bool {
	return h == Hash{}
}

func (h Hash) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.Hex())
}

func (h *Hash) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return NewDecodingError(fmt.Sprintf("hash is not a json string: %v", err))
	}
	parsed, err := HashFromHex(s)
	if err != nil {
		return NewDecodingError(fmt.Sprintf("decoding hash %q", s))
	}
	*h = parsed
	return nil
}

// AccountID is the 32 byte public key identifying an on-chain account.
type AccountID [32]byte

func AccountIDFromBytes(b []byte) (AccountID, error) {
	var a AccountID
	if len(b) != 32 {
		return a, NewUserInputError(fmt.Sprintf("account id must be 32 bytes, got %d", len(b)))
	}
	copy(a[:], b)
	return a, nil
}

func (a AccountID) Hex() string {
	return "0x" + hex.EncodeToString(a[:])
}

func (a AccountID) String() string {
	return a.Hex()
}

func (a AccountID) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.Hex())
}

func (a *AccountID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return NewDecodingError(fmt.Sprintf("account id is not a json string: %v", err))
	}
	h, err := HashFromHex(s)
	if err != nil {
		return NewDecodingError(fmt.Sprintf("decoding account id %q", s))
	}
	*a = AccountID(h)
	return nil
}
