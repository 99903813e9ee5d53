package codec

import (
	"encoding/binary"
	"math/bits"

	"github.com/availkit/go-node-client/entities"
)

// Era is the transaction validity window as encoded on the wire. A zero Period
// means the transaction is immortal.
type Era struct {
	Period uint64
	Phase  uint64
}

// MortalEra derives the era for a validity window of `period` blocks anchored
// at `anchorHeight`. The period is normalized to a power of two within the
// runtime's accepted range; the phase is quantized the same way the runtime
// quantizes it so that signatures verify.
func MortalEra(period uint64, anchorHeight uint32) Era {
	period = entities.NormalizePeriod(period)
	phase := uint64(anchorHeight) % period
	quantizeFactor := period >> 12
	if quantizeFactor < 1 {
		quantizeFactor = 1
	}
	return Era{Period: period, Phase: phase / quantizeFactor * quantizeFactor}
}

// ImmortalEra returns the era of a transaction with unbounded validity.
func ImmortalEra() Era {
	return Era{}
}

func (e Era) IsImmortal() bool {
	return e.Period == 0
}

// Encode appends the era's wire form: a single zero byte for immortal
// transactions, otherwise a little-endian u16 packing the period exponent in
// the low four bits and the quantized phase in the rest.
func (e Era) Encode(dst []byte) []byte {
	if e.IsImmortal() {
		return append(dst, 0)
	}
	// Normalize here as well so an era built by hand, bypassing MortalEra,
	// still encodes a representable window.
	period := entities.NormalizePeriod(e.Period)
	phase := e.Phase % period
	quantizeFactor := period >> 12
	if quantizeFactor < 1 {
		quantizeFactor = 1
	}
	exponent := uint16(bits.TrailingZeros64(period)) - 1
	encoded := exponent | uint16(phase/quantizeFactor)<<4
	return binary.LittleEndian.AppendUint16(dst, encoded)
}

// DecodeEra reads an era from the front of data, returning it and the number
// of bytes consumed.
func DecodeEra(data []byte) (Era, int, error) {
	if len(data) == 0 {
		return Era{}, 0, entities.NewDecodingError("era: empty input")
	}
	if data[0] == 0 {
		return Era{}, 1, nil
	}
	if len(data) < 2 {
		return Era{}, 0, entities.NewDecodingError("era: truncated mortal era")
	}
	encoded := uint64(data[0]) | uint64(data[1])<<8
	period := uint64(2) << (encoded % (1 << 4))
	quantizeFactor := period >> 12
	if quantizeFactor < 1 {
		quantizeFactor = 1
	}
	phase := (encoded >> 4) * quantizeFactor
	if period < 4 || phase >= period {
		return Era{}, 0, entities.NewDecodingError("era: invalid period and phase")
	}
	return Era{Period: period, Phase: phase}, 2, nil
}
