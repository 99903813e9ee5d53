// Package codec implements the small slice of SCALE this library owns: compact
// integers, era encoding, and extrinsic assembly/parsing. Full metadata-driven
// call encoding is an external collaborator and is consumed as opaque bytes.
package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/availkit/go-node-client/entities"
)

// AppendCompact appends the SCALE compact encoding of v.
func AppendCompact(dst []byte, v uint64) []byte {
	switch {
	case v < 1<<6:
		return append(dst, byte(v)<<2)
	case v < 1<<14:
		return binary.LittleEndian.AppendUint16(dst, uint16(v)<<2|0b01)
	case v < 1<<30:
		return binary.LittleEndian.AppendUint32(dst, uint32(v)<<2|0b10)
	default:
		n := 8
		for n > 4 && v>>(8*(n-1)) == 0 {
			n--
		}
		dst = append(dst, byte(n-4)<<2|0b11)
		for i := 0; i < n; i++ {
			dst = append(dst, byte(v>>(8*i)))
		}
		return dst
	}
}

// DecodeCompact reads a compact integer from the front of data. It returns the
// value and the number of bytes consumed.
func DecodeCompact(data []byte) (uint64, int, error) {
	if len(data) == 0 {
		return 0, 0, entities.NewDecodingError("compact integer: empty input")
	}
	switch data[0] & 0b11 {
	case 0b00:
		return uint64(data[0] >> 2), 1, nil
	case 0b01:
		if len(data) < 2 {
			return 0, 0, entities.NewDecodingError("compact integer: truncated two byte mode")
		}
		return uint64(binary.LittleEndian.Uint16(data) >> 2), 2, nil
	case 0b10:
		if len(data) < 4 {
			return 0, 0, entities.NewDecodingError("compact integer: truncated four byte mode")
		}
		return uint64(binary.LittleEndian.Uint32(data) >> 2), 4, nil
	default:
		n := int(data[0]>>2) + 4
		if n > 8 {
			return 0, 0, entities.NewDecodingError(fmt.Sprintf("compact integer: %d byte big-integer mode exceeds uint64", n))
		}
		if len(data) < n+1 {
			return 0, 0, entities.NewDecodingError("compact integer: truncated big-integer mode")
		}
		var v uint64
		for i := 0; i < n; i++ {
			v |= uint64(data[1+i]) << (8 * i)
		}
		return v, n + 1, nil
	}
}
