package app

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/log"
	abci "github.com/cometbft/cometbft/abci/types"

	"minoritybet/internal/codec"
	"minoritybet/internal/state"
)

const (
	AppVersion uint64 = 1
)

type MBApp struct {
	*abci.BaseApplication

	home   string
	logger log.Logger

	mu       sync.Mutex
	st       *state.State
	lastHash []byte
}

func New(home string, logger log.Logger) (*MBApp, error) {
	appHome := filepath.Join(home, "app")
	st, err := state.Load(appHome)
	if err != nil {
		return nil, err
	}
	a := &MBApp{
		BaseApplication: abci.NewBaseApplication(),
		home:            home,
		logger:          logger.With("module", "app"),
		st:              st,
		lastHash:        st.AppHash(),
	}
	return a, nil
}

func (a *MBApp) Info(_ context.Context, _ *abci.InfoRequest) (*abci.InfoResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	return &abci.InfoResponse{
		Data:             "minoritybet (v0)",
		Version:          "v0",
		AppVersion:       AppVersion,
		LastBlockHeight:  a.st.Height,
		LastBlockAppHash: a.lastHash,
	}, nil
}

func (a *MBApp) CheckTx(_ context.Context, req *abci.CheckTxRequest) (*abci.CheckTxResponse, error) {
	_, err := codec.DecodeTxEnvelope(req.Tx)
	if err != nil {
		return &abci.CheckTxResponse{Code: 1, Log: err.Error()}, nil
	}
	// Structural validation only; stateful checks happen at delivery.
	return &abci.CheckTxResponse{Code: 0}, nil
}

// genesisState is the consensus app-state carried in the genesis document.
// Consensus parameters live here, never in node-local config.
type genesisState struct {
	Admin    string            `json:"admin,omitempty"`
	Accounts map[string]uint64 `json:"accounts,omitempty"`
	Params   *state.Params     `json:"params,omitempty"`
	Beacon   *struct {
		PeriodSecs  uint64 `json:"periodSecs"`
		GenesisUnix int64  `json:"genesisUnix,omitempty"`
		LastRound   uint64 `json:"lastRound,omitempty"`
	} `json:"beacon,omitempty"`
}

func (a *MBApp) InitChain(_ context.Context, req *abci.InitChainRequest) (*abci.InitChainResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(req.AppStateBytes) == 0 || a.st.Height != 0 {
		return &abci.InitChainResponse{AppHash: a.lastHash}, nil
	}

	var gs genesisState
	if err := json.Unmarshal(req.AppStateBytes, &gs); err != nil {
		return nil, fmt.Errorf("decode genesis app state: %w", err)
	}
	a.st.AdminAccount = gs.Admin
	for addr, bal := range gs.Accounts {
		if err := a.st.Credit(addr, bal); err != nil {
			return nil, fmt.Errorf("genesis account %s: %w", addr, err)
		}
	}
	if gs.Params != nil {
		a.st.Params = *gs.Params
	}
	if gs.Beacon != nil {
		a.st.Beacon.PeriodSecs = gs.Beacon.PeriodSecs
		a.st.Beacon.GenesisUnix = gs.Beacon.GenesisUnix
		a.st.Beacon.LastRound = gs.Beacon.LastRound
	}
	a.st.Params = a.st.Params.Normalized()

	a.lastHash = a.st.AppHash()
	return &abci.InitChainResponse{AppHash: a.lastHash}, nil
}

func (a *MBApp) FinalizeBlock(_ context.Context, req *abci.FinalizeBlockRequest) (*abci.FinalizeBlockResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.st.Height = req.Height
	a.st.LastBlockUnix = req.Time.Unix()

	txResults := make([]*abci.ExecTxResult, 0, len(req.Txs))
	for _, txBytes := range req.Txs {
		res := a.deliverTx(txBytes, req.Height, req.Time.Unix())
		txResults = append(txResults, res)
	}

	a.lastHash = a.st.AppHash()

	return &abci.FinalizeBlockResponse{
		TxResults: txResults,
		AppHash:   a.lastHash,
	}, nil
}

func (a *MBApp) Commit(_ context.Context, _ *abci.CommitRequest) (*abci.CommitResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Persist after each block for devnet durability.
	appHome := filepath.Join(a.home, "app")
	if err := a.st.Save(appHome); err != nil {
		// CometBFT expects Commit to not crash; return error so node halts loudly.
		return nil, err
	}
	return &abci.CommitResponse{}, nil
}

// deliverTx applies one transaction all-or-nothing: the handler runs against a
// staged clone which replaces live state only on success, so any failure
// (including a failed transfer after partial bookkeeping) reverts wholesale.
func (a *MBApp) deliverTx(txBytes []byte, height int64, nowUnix int64) *abci.ExecTxResult {
	env, err := codec.DecodeTxEnvelope(txBytes)
	if err != nil {
		return &abci.ExecTxResult{Code: 1, Log: err.Error()}
	}

	staged, err := a.st.Clone()
	if err != nil {
		return errTxResult(errorsmod.Wrap(ErrInvalidRequest, err.Error()))
	}

	res, err := a.applyTx(staged, env, height, nowUnix)
	if err != nil {
		return errTxResult(err)
	}
	a.st = staged
	a.logLifecycle(res.Events)
	return res
}

// Per-tx rejections stay in ExecTxResult.Log; only game lifecycle transitions
// get an operator-facing log line.
func (a *MBApp) logLifecycle(events []abci.Event) {
	for _, ev := range events {
		switch ev.Type {
		case "GameCreated", "GameResolved", "GameCancelled", "GameVoided":
			kv := make([]any, 0, 2*len(ev.Attributes))
			for _, attr := range ev.Attributes {
				kv = append(kv, attr.Key, attr.Value)
			}
			a.logger.Info(ev.Type, kv...)
		}
	}
}

func (a *MBApp) applyTx(st *state.State, env codec.TxEnvelope, height int64, nowUnix int64) (*abci.ExecTxResult, error) {
	switch env.Type {
	case "bank/mint":
		var msg codec.BankMintTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return nil, errorsmod.Wrap(ErrInvalidRequest, "bad bank/mint value")
		}
		if msg.To == "" || msg.Amount == 0 {
			return nil, errorsmod.Wrap(ErrInvalidRequest, "missing to/amount")
		}
		if err := st.Credit(msg.To, msg.Amount); err != nil {
			return nil, errorsmod.Wrap(ErrOverflow, err.Error())
		}
		return okEvent("BankMinted", map[string]string{
			"to":     msg.To,
			"amount": fmt.Sprintf("%d", msg.Amount),
		}), nil

	case "bank/send":
		var msg codec.BankSendTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return nil, errorsmod.Wrap(ErrInvalidRequest, "bad bank/send value")
		}
		if msg.From == "" || msg.To == "" || msg.Amount == 0 {
			return nil, errorsmod.Wrap(ErrInvalidRequest, "missing from/to/amount")
		}
		if err := requireAccountAuth(st, env, msg.From); err != nil {
			return nil, err
		}
		if err := st.Debit(msg.From, msg.Amount); err != nil {
			return nil, errorsmod.Wrap(ErrInvalidRequest, err.Error())
		}
		if err := st.Credit(msg.To, msg.Amount); err != nil {
			return nil, errorsmod.Wrap(ErrOverflow, err.Error())
		}
		return okEvent("BankSent", map[string]string{
			"from":   msg.From,
			"to":     msg.To,
			"amount": fmt.Sprintf("%d", msg.Amount),
		}), nil

	case "auth/register_account":
		var msg codec.AuthRegisterAccountTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return nil, errorsmod.Wrap(ErrInvalidRequest, "bad auth/register_account value")
		}
		return registerAccount(st, env, msg)

	case "beacon/submit":
		var msg codec.BeaconSubmitTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return nil, errorsmod.Wrap(ErrInvalidRequest, "bad beacon/submit value")
		}
		return beaconSubmit(st, msg)

	case "game/create":
		var msg codec.GameCreateTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return nil, errorsmod.Wrap(ErrInvalidRequest, "bad game/create value")
		}
		return gameCreate(st, env, msg, height, nowUnix)

	case "game/bet":
		var msg codec.GameBetTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return nil, errorsmod.Wrap(ErrInvalidRequest, "bad game/bet value")
		}
		return gameBet(st, env, msg, height)

	case "game/end_betting":
		var msg codec.GameEndBettingTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return nil, errorsmod.Wrap(ErrInvalidRequest, "bad game/end_betting value")
		}
		return gameEndBetting(st, msg, height)

	case "game/resolve":
		var msg codec.GameResolveTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return nil, errorsmod.Wrap(ErrInvalidRequest, "bad game/resolve value")
		}
		return gameResolve(st, msg)

	case "game/claim":
		var msg codec.GameClaimTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return nil, errorsmod.Wrap(ErrInvalidRequest, "bad game/claim value")
		}
		return gameClaim(st, env, msg)

	case "game/void":
		var msg codec.GameVoidTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return nil, errorsmod.Wrap(ErrInvalidRequest, "bad game/void value")
		}
		return gameVoid(st, msg, height, nowUnix)

	case "game/emergency_withdraw":
		var msg codec.GameEmergencyWithdrawTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return nil, errorsmod.Wrap(ErrInvalidRequest, "bad game/emergency_withdraw value")
		}
		return gameEmergencyWithdraw(st, env, msg, nowUnix)

	case "admin/withdraw_fees":
		var msg codec.AdminWithdrawFeesTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return nil, errorsmod.Wrap(ErrInvalidRequest, "bad admin/withdraw_fees value")
		}
		return adminWithdrawFees(st, env, msg)

	default:
		return nil, errorsmod.Wrapf(ErrInvalidRequest, "unknown tx type: %s", env.Type)
	}
}

func errTxResult(err error) *abci.ExecTxResult {
	space, code, log := errorsmod.ABCIInfo(err, false)
	return &abci.ExecTxResult{Code: code, Codespace: space, Log: log}
}

func okEvent(typ string, attrs map[string]string) *abci.ExecTxResult {
	ev := abci.Event{Type: typ}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		ev.Attributes = append(ev.Attributes, abci.EventAttribute{Key: k, Value: attrs[k], Index: true})
	}
	return &abci.ExecTxResult{
		Code:   0,
		Events: []abci.Event{ev},
	}
}

func event(typ string, attrs map[string]string) abci.Event {
	ev := abci.Event{Type: typ}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		ev.Attributes = append(ev.Attributes, abci.EventAttribute{Key: k, Value: attrs[k], Index: true})
	}
	return ev
}
