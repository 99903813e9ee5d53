package codec

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"github.com/availkit/go-node-client/entities"
)

const (
	extrinsicVersion   = 4
	signedBit          = 0x80
	multiAddressID     = 0x00
	multiAddress32     = 0x03
	multiSigEd25519    = 0x00
	multiSigSr25519    = 0x01
	multiSigEcdsa      = 0x02
	maxUnhashedPayload = 256
)

// SignerPayload is everything that gets signed: the encoded call, the signed
// extensions (extra) and the additional data the runtime checks implicitly.
type SignerPayload struct {
	Call        []byte
	Era         Era
	Nonce       uint32
	Tip         uint64
	AppID       uint32
	SpecVersion uint32
	TxVersion   uint32
	GenesisHash entities.Hash
	AnchorHash  entities.Hash
}

// Encode returns call ++ extra ++ additional, the byte string the signature
// scheme operates on.
func (p SignerPayload) Encode() []byte {
	out := make([]byte, 0, len(p.Call)+2+5+9+5+8+64)
	out = append(out, p.Call...)
	out = appendExtra(out, p.Era, p.Nonce, p.Tip, p.AppID)
	out = binary.LittleEndian.AppendUint32(out, p.SpecVersion)
	out = binary.LittleEndian.AppendUint32(out, p.TxVersion)
	out = append(out, p.GenesisHash[:]...)
	out = append(out, p.AnchorHash[:]...)
	return out
}

// SigningMessage applies the runtime's oversized-payload rule: payloads longer
// than 256 bytes are signed through their blake2b-256 hash.
func (p SignerPayload) SigningMessage() []byte {
	encoded := p.Encode()
	if len(encoded) > maxUnhashedPayload {
		h := blake2b.Sum256(encoded)
		return h[:]
	}
	return encoded
}

func appendExtra(dst []byte, era Era, nonce uint32, tip uint64, appID uint32) []byte {
	dst = era.Encode(dst)
	dst = AppendCompact(dst, uint64(nonce))
	dst = AppendCompact(dst, tip)
	dst = AppendCompact(dst, uint64(appID))
	return dst
}

// EncodeExtrinsic assembles the full length-prefixed, signed v4 extrinsic.
func EncodeExtrinsic(signer entities.AccountID, signature []byte, era Era, nonce uint32, tip uint64, appID uint32, call []byte) ([]byte, error) {
	if len(signature) != 64 {
		return nil, entities.NewDecodingError(fmt.Sprintf("signature must be 64 bytes, got %d", len(signature)))
	}
	inner := make([]byte, 0, 1+33+65+16+len(call))
	inner = append(inner, extrinsicVersion|signedBit)
	inner = append(inner, multiAddressID)
	inner = append(inner, signer[:]...)
	inner = append(inner, multiSigSr25519)
	inner = append(inner, signature...)
	inner = appendExtra(inner, era, nonce, tip, appID)
	inner = append(inner, call...)

	out := AppendCompact(make([]byte, 0, len(inner)+4), uint64(len(inner)))
	out = append(out, inner...)
	return out, nil
}

// TxHash computes the on-chain extrinsic hash: blake2b-256 over the complete
// length-prefixed encoding, matching how block bodies are hashed.
func TxHash(encoded []byte) entities.Hash {
	return entities.Hash(blake2b.Sum256(encoded))
}

// ExtrinsicSigner is the signer information recoverable from an encoded
// extrinsic without metadata: enough for {account, nonce} matching during
// receipt scans.
type ExtrinsicSigner struct {
	Account entities.AccountID
	Era     Era
	Nonce   uint32
	Tip     uint64
	AppID   uint32
}

// ParseExtrinsicSigner extracts the signer payload from a raw length-prefixed
// extrinsic. Unsigned extrinsics yield (nil, nil); addresses that are not plain
// account ids also yield (nil, nil) since they cannot participate in
// {account, nonce} matching.
func ParseExtrinsicSigner(encoded []byte) (*ExtrinsicSigner, error) {
	length, n, err := DecodeCompact(encoded)
	if err != nil {
		return nil, err
	}
	body := encoded[n:]
	if uint64(len(body)) != length {
		return nil, entities.NewDecodingError(fmt.Sprintf("extrinsic length prefix %d does not match body size %d", length, len(body)))
	}
	if len(body) == 0 {
		return nil, entities.NewDecodingError("extrinsic: empty body")
	}
	version := body[0]
	if version&signedBit == 0 {
		return nil, nil
	}
	if version&^byte(signedBit) != extrinsicVersion {
		return nil, entities.NewDecodingError(fmt.Sprintf("unsupported extrinsic version %d", version&^byte(signedBit)))
	}
	rest := body[1:]

	var account entities.AccountID
	if len(rest) == 0 {
		return nil, entities.NewDecodingError("extrinsic: truncated address")
	}
	switch rest[0] {
	case multiAddressID, multiAddress32:
		if len(rest) < 33 {
			return nil, entities.NewDecodingError("extrinsic: truncated account id")
		}
		copy(account[:], rest[1:33])
		rest = rest[33:]
	default:
		// Index, raw and 20 byte addresses carry no account id we can match on.
		return nil, nil
	}

	if len(rest) == 0 {
		return nil, entities.NewDecodingError("extrinsic: truncated signature")
	}
	sigLen := 64
	switch rest[0] {
	case multiSigEd25519, multiSigSr25519:
	case multiSigEcdsa:
		sigLen = 65
	default:
		return nil, entities.NewDecodingError(fmt.Sprintf("unknown signature variant %d", rest[0]))
	}
	if len(rest) < 1+sigLen {
		return nil, entities.NewDecodingError("extrinsic: truncated signature bytes")
	}
	rest = rest[1+sigLen:]

	era, n, err := DecodeEra(rest)
	if err != nil {
		return nil, err
	}
	rest = rest[n:]

	nonce, n, err := DecodeCompact(rest)
	if err != nil {
		return nil, err
	}
	rest = rest[n:]

	tip, n, err := DecodeCompact(rest)
	if err != nil {
		return nil, err
	}
	rest = rest[n:]

	appID, _, err := DecodeCompact(rest)
	if err != nil {
		return nil, err
	}

	return &ExtrinsicSigner{
		Account: account,
		Era:     era,
		Nonce:   uint32(nonce),
		Tip:     tip,
		AppID:   uint32(appID),
	}, nil
}
