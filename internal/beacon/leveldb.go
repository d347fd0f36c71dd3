package beacon

import (
	"encoding/binary"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
)

// LevelDBStore is a persistent beacon record cache used by the relayer so
// observed pulses survive restarts. It satisfies Reader.
type LevelDBStore struct {
	db *leveldb.DB
}

var metaLastRoundKey = []byte("meta/lastRound")

func OpenLevelDBStore(path string) (*LevelDBStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open beacon cache: %w", err)
	}
	return &LevelDBStore{db: db}, nil
}

func (s *LevelDBStore) Close() error {
	return s.db.Close()
}

func (s *LevelDBStore) Put(key, value []byte) error {
	return s.db.Put(key, value, nil)
}

func (s *LevelDBStore) Read(key []byte) ([]byte, bool, error) {
	v, err := s.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// LastRound returns the highest round the relayer has recorded, 0 if none.
// The meta key stores a bare LE round, not an envelope.
func (s *LevelDBStore) LastRound() (uint64, error) {
	v, found, err := s.Read(metaLastRoundKey)
	if err != nil || !found {
		return 0, err
	}
	if len(v) != 8 {
		return 0, fmt.Errorf("invalid lastRound encoding")
	}
	return binary.LittleEndian.Uint64(v), nil
}

func (s *LevelDBStore) SetLastRound(round uint64) error {
	return s.db.Put(metaLastRoundKey, roundKeyBytes(round), nil)
}
