package beacon

import (
	"encoding/hex"
)

// MemStore is an in-memory Reader used by tests and by the relayer before its
// cache is opened. Keys are tracked as hex strings.
type MemStore struct {
	records map[string][]byte
}

func NewMemStore() *MemStore {
	return &MemStore{records: map[string][]byte{}}
}

func (m *MemStore) Put(key, value []byte) {
	m.records[hex.EncodeToString(key)] = append([]byte(nil), value...)
}

func (m *MemStore) Read(key []byte) ([]byte, bool, error) {
	v, ok := m.records[hex.EncodeToString(key)]
	if !ok {
		return nil, false, nil
	}
	return v, true, nil
}
