package beacon

// Reader is the storage-reading capability the gateway consumes. Implementors
// report absence via found=false; a nil/empty value with found=true is still a
// read, and errors are treated by the gateway the same as absence.
type Reader interface {
	Read(key []byte) (value []byte, found bool, err error)
}

// ReaderFunc adapts a function to the Reader interface.
type ReaderFunc func(key []byte) ([]byte, bool, error)

func (f ReaderFunc) Read(key []byte) ([]byte, bool, error) {
	return f(key)
}

// Gateway resolves beacon rounds to verified randomness through an injected
// storage reader. It is a pure function of (round, external storage) and holds
// no mutable state.
type Gateway struct {
	reader Reader
}

func NewGateway(r Reader) *Gateway {
	return &Gateway{reader: r}
}

// Lookup returns the randomness for a round together with an explicit
// existence flag. Presence and value are never conflated: an all-zero value
// with exists=true is a legitimate outcome, and every failure mode (missing
// record, read error, malformed or truncated envelope, wrong randomness
// length, round mismatch) collapses to exists=false.
func (g *Gateway) Lookup(round uint64) (value [RandomnessLen]byte, exists bool) {
	raw, found, err := g.reader.Read(DeriveRecordKey(round))
	if err != nil || !found {
		return value, false
	}
	gotRound, randomness, ok := DecodeEnvelope(raw)
	if !ok || gotRound != round {
		return value, false
	}
	return randomness, true
}
