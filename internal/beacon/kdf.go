package beacon

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2b"
)

// RandomnessLen is the only accepted randomness payload length. Records whose
// decoded length differs are treated as absent, not as an error value.
const RandomnessLen = 32

// namespacePrefix addresses the beacon's record map inside its host store.
// Fixed by convention with the storage reader: hash128("beacon") || hash128("pulses").
var namespacePrefix = append(hash128([]byte("beacon")), hash128([]byte("pulses"))...)

func hash128(data []byte) []byte {
	sum := blake2b.Sum256(data)
	return sum[:16]
}

// roundKeyBytes is the canonical 8-byte little-endian encoding of a round id.
func roundKeyBytes(round uint64) []byte {
	enc := make([]byte, 8)
	binary.LittleEndian.PutUint64(enc, round)
	return enc
}

// DeriveRecordKey maps a round id to the storage address of its beacon record:
// namespacePrefix || hash128(le64(round)) || le64(round).
func DeriveRecordKey(round uint64) []byte {
	enc := roundKeyBytes(round)
	key := make([]byte, 0, len(namespacePrefix)+16+8)
	key = append(key, namespacePrefix...)
	key = append(key, hash128(enc)...)
	key = append(key, enc...)
	return key
}
