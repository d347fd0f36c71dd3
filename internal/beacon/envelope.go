package beacon

import (
	"encoding/binary"
	"fmt"
)

// Beacon records are a compact binary envelope:
//
//	8-byte LE round number
//	compact-encoded length prefix
//	<length> bytes of randomness
//	signature blob (opaque, ignored here)
//
// The payload comes from an external, independently-operated beacon and is
// treated as adversarial input: decoding is bounds-checked everywhere and any
// malformation yields ok=false rather than a panic or an error value.

// DecodeEnvelope parses a raw beacon record. ok is false on truncation, a
// malformed length prefix, or a randomness length other than RandomnessLen.
// An all-zero randomness value is as present as any other.
func DecodeEnvelope(raw []byte) (round uint64, randomness [RandomnessLen]byte, ok bool) {
	if len(raw) < 8 {
		return 0, randomness, false
	}
	round = binary.LittleEndian.Uint64(raw[:8])
	rest := raw[8:]

	n, consumed, lenOK := decodeCompactLen(rest)
	if !lenOK {
		return 0, randomness, false
	}
	rest = rest[consumed:]

	if n != RandomnessLen {
		return 0, randomness, false
	}
	if len(rest) < RandomnessLen {
		return 0, randomness, false
	}
	copy(randomness[:], rest[:RandomnessLen])
	// Anything after the randomness is the signature blob; length unchecked.
	return round, randomness, true
}

// EncodeEnvelope builds a record the decoder accepts. Used by the relayer and
// by tests; sig may be empty.
func EncodeEnvelope(round uint64, randomness []byte, sig []byte) ([]byte, error) {
	if len(randomness) != RandomnessLen {
		return nil, fmt.Errorf("randomness must be %d bytes, got %d", RandomnessLen, len(randomness))
	}
	out := make([]byte, 0, 8+4+RandomnessLen+len(sig))
	enc := make([]byte, 8)
	binary.LittleEndian.PutUint64(enc, round)
	out = append(out, enc...)
	out = append(out, encodeCompactLen(RandomnessLen)...)
	out = append(out, randomness...)
	out = append(out, sig...)
	return out, nil
}

// Compact length prefix, parity with the host pallet's encoding: the low two
// bits of the first byte select the width.
//
//	00 -> value in the remaining 6 bits
//	01 -> value in the remaining 14 bits (2 bytes, LE)
//	10 -> value in the remaining 30 bits (4 bytes, LE)
//	11 -> big-integer mode; never a plausible length, rejected
func decodeCompactLen(b []byte) (value uint64, consumed int, ok bool) {
	if len(b) == 0 {
		return 0, 0, false
	}
	switch b[0] & 0b11 {
	case 0b00:
		return uint64(b[0] >> 2), 1, true
	case 0b01:
		if len(b) < 2 {
			return 0, 0, false
		}
		v := uint64(binary.LittleEndian.Uint16(b[:2])) >> 2
		if v < 1<<6 {
			return 0, 0, false // non-canonical
		}
		return v, 2, true
	case 0b10:
		if len(b) < 4 {
			return 0, 0, false
		}
		v := uint64(binary.LittleEndian.Uint32(b[:4])) >> 2
		if v < 1<<14 {
			return 0, 0, false // non-canonical
		}
		return v, 4, true
	default:
		return 0, 0, false
	}
}

func encodeCompactLen(v uint64) []byte {
	switch {
	case v < 1<<6:
		return []byte{byte(v) << 2}
	case v < 1<<14:
		out := make([]byte, 2)
		binary.LittleEndian.PutUint16(out, uint16(v<<2)|0b01)
		return out
	default:
		out := make([]byte, 4)
		binary.LittleEndian.PutUint32(out, uint32(v<<2)|0b10)
		return out
	}
}
