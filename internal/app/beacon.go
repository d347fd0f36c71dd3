package app

import (
	"encoding/hex"
	"fmt"

	errorsmod "cosmossdk.io/errors"
	abci "github.com/cometbft/cometbft/abci/types"

	"minoritybet/internal/beacon"
	"minoritybet/internal/codec"
	"minoritybet/internal/state"
)

// stateBeaconReader exposes the consensus-replicated beacon records as the
// storage-reading capability the gateway consumes.
type stateBeaconReader struct {
	bs *state.BeaconState
}

func (r stateBeaconReader) Read(key []byte) ([]byte, bool, error) {
	if r.bs == nil || r.bs.Records == nil {
		return nil, false, nil
	}
	v, ok := r.bs.Records[hex.EncodeToString(key)]
	if !ok {
		return nil, false, nil
	}
	return v, true, nil
}

func beaconGateway(st *state.State) *beacon.Gateway {
	return beacon.NewGateway(stateBeaconReader{bs: st.Beacon})
}

// beaconSubmit relays an observed beacon record into consensus state.
// Permissionless: relaying is a public good and the payload is verified by
// decoding, so a malicious relayer can at worst submit the true record early
// (which the compromise voider then detects). Re-submitting a stored round is
// a no-op.
func beaconSubmit(st *state.State, msg codec.BeaconSubmitTx) (*abci.ExecTxResult, error) {
	if msg.Round == 0 {
		return nil, errorsmod.Wrap(ErrInvalidRequest, "missing round")
	}
	round, _, ok := beacon.DecodeEnvelope(msg.Payload)
	if !ok {
		return nil, errorsmod.Wrap(ErrInvalidRequest, "malformed beacon record")
	}
	if round != msg.Round {
		return nil, errorsmod.Wrapf(ErrInvalidRequest, "payload round %d != %d", round, msg.Round)
	}

	key := hex.EncodeToString(beacon.DeriveRecordKey(msg.Round))
	if _, exists := st.Beacon.Records[key]; exists {
		return okEvent("BeaconRecordStored", map[string]string{
			"round":    fmt.Sprintf("%d", msg.Round),
			"existing": "true",
		}), nil
	}
	st.Beacon.Records[key] = append([]byte(nil), msg.Payload...)
	if msg.Round > st.Beacon.LastRound {
		st.Beacon.LastRound = msg.Round
	}
	return okEvent("BeaconRecordStored", map[string]string{
		"round": fmt.Sprintf("%d", msg.Round),
	}), nil
}
