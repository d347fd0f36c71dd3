package codec

import (
	"encoding/json"
	"fmt"
)

// TxEnvelope is the v0 transaction container.
//
// CometBFT transactions are opaque bytes. For v0 localnet we use JSON-encoded
// txs to move fast; this is NOT the final protocol encoding.
type TxEnvelope struct {
	// Basic routing.
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`

	// Tx auth (required for account-acting txs):
	// - Nonce: included in the signed message for replay protection (must increase per signer).
	// - Signer: logical signer id (account address).
	// - Sig: Ed25519 signature over (type, nonce, signer, sha256(value)).
	Nonce  string `json:"nonce,omitempty"`
	Signer string `json:"signer,omitempty"`
	Sig    []byte `json:"sig,omitempty"`
}

func DecodeTxEnvelope(txBytes []byte) (TxEnvelope, error) {
	var env TxEnvelope
	if err := json.Unmarshal(txBytes, &env); err != nil {
		return TxEnvelope{}, fmt.Errorf("invalid tx json: %w", err)
	}
	if env.Type == "" {
		return TxEnvelope{}, fmt.Errorf("missing tx.type")
	}
	return env, nil
}

// ---- Bank ----

type BankMintTx struct {
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

type BankSendTx struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

// ---- Auth ----

// Account pubkey registration for tx authentication.
type AuthRegisterAccountTx struct {
	Account string `json:"account"`
	PubKey  []byte `json:"pubKey"` // base64 (32 bytes)
}

// ---- Beacon ----

// Permissionless relay of an observed beacon record. Payload is the raw
// binary envelope as published by the beacon; it must decode and its embedded
// round must match Round.
type BeaconSubmitTx struct {
	Round   uint64 `json:"round"`
	Payload []byte `json:"payload"` // base64 in JSON
}

// ---- Game ----

type GameCreateTx struct {
	Creator string `json:"creator"`
}

type GameBetTx struct {
	Player string `json:"player"`
	GameID uint64 `json:"gameId"`
	Side   string `json:"side"` // red|blue
	Amount uint64 `json:"amount"`
}

// Resolution step 1: close the betting window.
type GameEndBettingTx struct {
	GameID uint64 `json:"gameId"`
}

// Resolution step 2: verify randomness, partition, settle. Retryable while
// the committed round is not yet observed.
type GameResolveTx struct {
	GameID uint64 `json:"gameId"`
}

type GameClaimTx struct {
	Player string `json:"player"`
	GameID uint64 `json:"gameId"`
	Side   string `json:"side"` // red|blue|both
}

type GameVoidTx struct {
	GameID uint64 `json:"gameId"`
}

type GameEmergencyWithdrawTx struct {
	Player string `json:"player"`
	GameID uint64 `json:"gameId"`
}

// ---- Admin ----

// Sweeps released fees only; never touches any game's funds. Amount 0 sweeps
// the full collected balance.
type AdminWithdrawFeesTx struct {
	Admin  string `json:"admin"`
	To     string `json:"to,omitempty"` // defaults to admin
	Amount uint64 `json:"amount,omitempty"`
}
