package app

import (
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"
	"strconv"

	errorsmod "cosmossdk.io/errors"
	abci "github.com/cometbft/cometbft/abci/types"

	"minoritybet/internal/codec"
	"minoritybet/internal/state"
)

const txAuthDomainV0 = "mbt/tx/v0"

// TxAuthSignBytes builds the message covered by a tx signature:
// DOMAIN || 0x00 || type || 0x00 || nonce || 0x00 || signer || 0x00 || sha256(value).
// Exported for client/tooling use.
func TxAuthSignBytes(typ string, value []byte, nonce string, signer string) []byte {
	sum := sha256.Sum256(value)
	out := make([]byte, 0, len(txAuthDomainV0)+1+len(typ)+1+len(nonce)+1+len(signer)+1+sha256.Size)
	out = append(out, []byte(txAuthDomainV0)...)
	out = append(out, 0)
	out = append(out, []byte(typ)...)
	out = append(out, 0)
	out = append(out, []byte(nonce)...)
	out = append(out, 0)
	out = append(out, []byte(signer)...)
	out = append(out, 0)
	out = append(out, sum[:]...)
	return out
}

func requireSignedEnvelope(env codec.TxEnvelope) error {
	if env.Nonce == "" {
		return errorsmod.Wrap(ErrUnauthorized, "missing tx.nonce")
	}
	if env.Signer == "" {
		return errorsmod.Wrap(ErrUnauthorized, "missing tx.signer")
	}
	if len(env.Sig) != ed25519.SignatureSize {
		return errorsmod.Wrapf(ErrUnauthorized, "invalid tx.sig length: got %d want %d", len(env.Sig), ed25519.SignatureSize)
	}
	return nil
}

// requireAccountAuth verifies that env was signed by the given account with a
// registered key, and enforces a strictly increasing per-signer nonce.
func requireAccountAuth(st *state.State, env codec.TxEnvelope, account string) error {
	if st == nil {
		return fmt.Errorf("state is nil")
	}
	if account == "" {
		return errorsmod.Wrap(ErrInvalidRequest, "missing account")
	}
	if err := requireSignedEnvelope(env); err != nil {
		return err
	}
	if env.Signer != account {
		return errorsmod.Wrapf(ErrUnauthorized, "tx signer mismatch: signer=%q want=%q", env.Signer, account)
	}
	pub := st.AccountKeys[account]
	if len(pub) != ed25519.PublicKeySize {
		return errorsmod.Wrapf(ErrUnauthorized, "account %q missing pubKey (auth/register_account required)", account)
	}
	msg := TxAuthSignBytes(env.Type, env.Value, env.Nonce, env.Signer)
	if !ed25519.Verify(ed25519.PublicKey(pub), msg, env.Sig) {
		return errorsmod.Wrap(ErrUnauthorized, "invalid signature")
	}

	nonce, err := strconv.ParseUint(env.Nonce, 10, 64)
	if err != nil {
		return errorsmod.Wrapf(ErrUnauthorized, "invalid tx.nonce %q", env.Nonce)
	}
	if last, seen := st.NonceMax[account]; seen && nonce <= last {
		return errorsmod.Wrapf(ErrUnauthorized, "nonce replay: got %d, last %d", nonce, last)
	}
	st.NonceMax[account] = nonce
	return nil
}

func registerAccount(st *state.State, env codec.TxEnvelope, msg codec.AuthRegisterAccountTx) (*abci.ExecTxResult, error) {
	if msg.Account == "" {
		return nil, errorsmod.Wrap(ErrInvalidRequest, "missing account")
	}
	if len(msg.PubKey) != ed25519.PublicKeySize {
		return nil, errorsmod.Wrapf(ErrInvalidRequest, "pubKey must be %d bytes", ed25519.PublicKeySize)
	}
	if err := requireSignedEnvelope(env); err != nil {
		return nil, err
	}
	if env.Signer != msg.Account {
		return nil, errorsmod.Wrapf(ErrUnauthorized, "tx signer mismatch: signer=%q want=%q", env.Signer, msg.Account)
	}
	// Registration proves possession of the key being registered.
	signBytes := TxAuthSignBytes(env.Type, env.Value, env.Nonce, env.Signer)
	if !ed25519.Verify(ed25519.PublicKey(msg.PubKey), signBytes, env.Sig) {
		return nil, errorsmod.Wrap(ErrUnauthorized, "invalid signature")
	}
	if existing := st.AccountKeys[msg.Account]; len(existing) != 0 {
		return nil, errorsmod.Wrapf(ErrUnauthorized, "account %q already registered", msg.Account)
	}
	st.AccountKeys[msg.Account] = append([]byte(nil), msg.PubKey...)
	return okEvent("AccountRegistered", map[string]string{
		"account": msg.Account,
	}), nil
}
