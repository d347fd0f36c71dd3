package app

import (
	"fmt"

	errorsmod "cosmossdk.io/errors"
	abci "github.com/cometbft/cometbft/abci/types"

	"minoritybet/internal/codec"
	"minoritybet/internal/state"
)

func getGame(st *state.State, gameID uint64) (*state.Game, error) {
	g := st.Games[gameID]
	if g == nil {
		return nil, errorsmod.Wrapf(ErrGameNotFound, "game %d", gameID)
	}
	return g, nil
}

func parseSide(raw string) (state.Side, error) {
	s := state.Side(raw)
	if !s.Valid() {
		return "", errorsmod.Wrapf(ErrInvalidSide, "%q (want red|blue)", raw)
	}
	return s, nil
}

// gameCreate opens a new round. Permissionless apart from signature auth on
// the creator, but only one game may be Betting/Calculating at a time. The
// randomness target is fully determined here: no later step can change which
// beacon round settles the game, which closes the grinding surface.
func gameCreate(st *state.State, env codec.TxEnvelope, msg codec.GameCreateTx, height int64, nowUnix int64) (*abci.ExecTxResult, error) {
	if msg.Creator == "" {
		return nil, errorsmod.Wrap(ErrInvalidRequest, "missing creator")
	}
	if err := requireAccountAuth(st, env, msg.Creator); err != nil {
		return nil, err
	}
	if st.ActiveGameID != 0 {
		if prev := st.Games[st.ActiveGameID]; prev != nil && !prev.Phase.Terminal() {
			return nil, errorsmod.Wrapf(ErrActiveGameExists, "game %d is %s", prev.ID, prev.Phase)
		}
	}
	if st.Beacon == nil || st.Beacon.PeriodSecs == 0 {
		return nil, errorsmod.Wrap(ErrInvalidRequest, "beacon period not configured")
	}

	p := st.Params
	endBlock, err := addInt64AndU64Checked(height, uint64(p.BettingWindowBlocks), "end block")
	if err != nil {
		return nil, err
	}

	// Rounds the beacon will publish while betting runs, plus a safety buffer
	// so the target lands strictly after the window even with beacon jitter.
	windowSecs := uint64(p.BettingWindowBlocks) * p.BlockSecs
	roundsSpanned := windowSecs / st.Beacon.PeriodSecs
	targetRound, err := addU64Checked(st.Beacon.LastRound, roundsSpanned+p.TargetRoundBuffer, "target round")
	if err != nil {
		return nil, err
	}
	roundsUntil := targetRound - st.Beacon.LastRound
	predictedUnix, err := addInt64AndU64Checked(nowUnix, roundsUntil*st.Beacon.PeriodSecs, "predicted timestamp")
	if err != nil {
		return nil, err
	}

	id := st.NextGameID
	st.NextGameID++
	g := &state.Game{
		ID:            id,
		Creator:       msg.Creator,
		Phase:         state.PhaseBetting,
		StartBlock:    height,
		EndBlock:      endBlock,
		StartUnix:     nowUnix,
		TargetRound:   targetRound,
		PredictedUnix: predictedUnix,
		Bets:          map[string]*state.BetPair{},
	}
	st.Games[id] = g
	st.ActiveGameID = id

	return okEvent("GameCreated", map[string]string{
		"gameId":        fmt.Sprintf("%d", id),
		"creator":       msg.Creator,
		"startBlock":    fmt.Sprintf("%d", g.StartBlock),
		"endBlock":      fmt.Sprintf("%d", g.EndBlock),
		"targetRound":   fmt.Sprintf("%d", g.TargetRound),
		"predictedUnix": fmt.Sprintf("%d", g.PredictedUnix),
	}), nil
}

// gameBet stakes on one side. Gross amount is escrowed; the net portion feeds
// claimable balance and the fee portion accrues separately. A top-up on an
// existing side overwrites placedAtBlock: only the latest top-up's block
// governs lateness classification.
func gameBet(st *state.State, env codec.TxEnvelope, msg codec.GameBetTx, height int64) (*abci.ExecTxResult, error) {
	if msg.Player == "" {
		return nil, errorsmod.Wrap(ErrInvalidRequest, "missing player")
	}
	side, err := parseSide(msg.Side)
	if err != nil {
		return nil, err
	}
	if err := requireAccountAuth(st, env, msg.Player); err != nil {
		return nil, err
	}
	g, err := getGame(st, msg.GameID)
	if err != nil {
		return nil, err
	}
	if g.Phase != state.PhaseBetting {
		return nil, errorsmod.Wrapf(ErrWrongPhase, "game %d is %s", g.ID, g.Phase)
	}
	if height >= g.EndBlock {
		return nil, errorsmod.Wrapf(ErrBettingClosed, "block %d >= end block %d", height, g.EndBlock)
	}
	if msg.Amount < st.Params.MinBet {
		return nil, errorsmod.Wrapf(ErrBetTooSmall, "%d < %d", msg.Amount, st.Params.MinBet)
	}

	// Roster capacity is checked before any mutation; the cap bounds the
	// settlement scan and is a hard invariant, not a soft limit.
	bp := g.Bets[msg.Player]
	if bp == nil {
		if len(g.Roster) >= st.Params.RosterCap {
			return nil, errorsmod.Wrapf(ErrRosterFull, "%d bettors", len(g.Roster))
		}
		bp = &state.BetPair{}
	}

	fee := feeOf(msg.Amount, st.Params.FeeBps)
	net := msg.Amount - fee

	if err := st.Debit(msg.Player, msg.Amount); err != nil {
		return nil, errorsmod.Wrap(ErrInvalidRequest, err.Error())
	}

	if g.Bets[msg.Player] == nil {
		g.Roster = append(g.Roster, msg.Player)
		g.Bets[msg.Player] = bp
	}
	b := bp.Side(side)
	if b == nil {
		b = &state.SideBet{}
		bp.SetSide(side, b)
		if side == state.SideRed {
			g.RedBettors++
		} else {
			g.BlueBettors++
		}
	}
	if b.Amount, err = addU64Checked(b.Amount, msg.Amount, "bet amount"); err != nil {
		return nil, err
	}
	if b.FeePaid, err = addU64Checked(b.FeePaid, fee, "bet fee paid"); err != nil {
		return nil, err
	}
	b.PlacedAtBlock = height

	if side == state.SideRed {
		if g.RedPool, err = addU64Checked(g.RedPool, msg.Amount, "red pool"); err != nil {
			return nil, err
		}
	} else {
		if g.BluePool, err = addU64Checked(g.BluePool, msg.Amount, "blue pool"); err != nil {
			return nil, err
		}
	}
	if g.Balance, err = addU64Checked(g.Balance, net, "game balance"); err != nil {
		return nil, err
	}
	if g.Fees, err = addU64Checked(g.Fees, fee, "game fees"); err != nil {
		return nil, err
	}
	if g.TotalLiquidity, err = addU64Checked(g.TotalLiquidity, net, "total liquidity"); err != nil {
		return nil, err
	}

	st.StatsFor(msg.Player).Bets++

	return okEvent("BetPlaced", map[string]string{
		"gameId": fmt.Sprintf("%d", g.ID),
		"player": msg.Player,
		"side":   string(side),
		"amount": fmt.Sprintf("%d", msg.Amount),
		"fee":    fmt.Sprintf("%d", fee),
		"block":  fmt.Sprintf("%d", height),
		"total":  fmt.Sprintf("%d", b.Amount),
	}), nil
}
