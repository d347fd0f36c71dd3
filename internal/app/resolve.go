package app

import (
	"fmt"

	errorsmod "cosmossdk.io/errors"
	abci "github.com/cometbft/cometbft/abci/types"

	"minoritybet/internal/codec"
	"minoritybet/internal/state"
)

// gameEndBetting is resolution step 1: a permissionless, no-op phase
// transition once the betting window has elapsed.
func gameEndBetting(st *state.State, msg codec.GameEndBettingTx, height int64) (*abci.ExecTxResult, error) {
	g, err := getGame(st, msg.GameID)
	if err != nil {
		return nil, err
	}
	if g.Phase.Terminal() {
		return nil, errorsmod.Wrapf(ErrAlreadyResolved, "game %d is %s", g.ID, g.Phase)
	}
	if g.Phase != state.PhaseBetting {
		return nil, errorsmod.Wrapf(ErrWrongPhase, "game %d is %s", g.ID, g.Phase)
	}
	if height < g.EndBlock {
		return nil, errorsmod.Wrapf(ErrPeriodNotEnded, "block %d < end block %d", height, g.EndBlock)
	}
	g.Phase = state.PhaseCalculating
	return okEvent("CalculationStarted", map[string]string{
		"gameId":      fmt.Sprintf("%d", g.ID),
		"targetRound": fmt.Sprintf("%d", g.TargetRound),
	}), nil
}

// gameResolve is resolution step 2: permissionless and repeatable. While the
// committed beacon round is unobserved it fails with a retryable condition;
// once the randomness verifies, partitioning and settlement run in the same
// atomic step.
func gameResolve(st *state.State, msg codec.GameResolveTx) (*abci.ExecTxResult, error) {
	g, err := getGame(st, msg.GameID)
	if err != nil {
		return nil, err
	}
	if g.Phase.Terminal() {
		return nil, errorsmod.Wrapf(ErrAlreadyResolved, "game %d is %s", g.ID, g.Phase)
	}
	if g.Phase != state.PhaseCalculating {
		return nil, errorsmod.Wrapf(ErrWrongPhase, "game %d is %s", g.ID, g.Phase)
	}

	randomness, exists := beaconGateway(st).Lookup(g.TargetRound)
	if !exists {
		return nil, errorsmod.Wrapf(ErrWaitingForRandomness, "round %d", g.TargetRound)
	}

	lateEvents, err := partitionBets(st, g, randomness)
	if err != nil {
		return nil, err
	}
	res, err := settleGame(st, g)
	if err != nil {
		return nil, err
	}
	res.Events = append(res.Events, lateEvents...)
	return res, nil
}

// partitionBets derives the anti-snipe cutoff from the verified randomness and
// walks the roster exactly once, classifying every stake. Valid stakes feed
// the valid pools and valid liquidity (net of fee); late stakes get their fee
// portion moved from accrued fees back into claimable balance so they can be
// refunded whole. Cost is O(roster), bounded by the roster cap.
func partitionBets(st *state.State, g *state.Game, randomness [32]byte) ([]abci.Event, error) {
	window := st.Params.FinalCallBlocks
	g.ActualEndBlock = (g.EndBlock - window) + randomOffset(randomness, window)

	var events []abci.Event
	for _, addr := range g.Roster {
		bp := g.Bets[addr]
		for _, side := range []state.Side{state.SideRed, state.SideBlue} {
			b := bp.Side(side)
			if b == nil || b.Amount == 0 {
				continue
			}
			if b.PlacedAtBlock < g.ActualEndBlock {
				var err error
				if side == state.SideRed {
					if g.ValidRedPool, err = addU64Checked(g.ValidRedPool, b.Amount, "valid red pool"); err != nil {
						return nil, err
					}
				} else {
					if g.ValidBluePool, err = addU64Checked(g.ValidBluePool, b.Amount, "valid blue pool"); err != nil {
						return nil, err
					}
				}
				net := b.Amount - b.FeePaid
				if g.ValidLiquidity, err = addU64Checked(g.ValidLiquidity, net, "valid liquidity"); err != nil {
					return nil, err
				}
				continue
			}

			b.IsLateBet = true
			fee := b.FeePaid
			newFees, err := subU64Checked(g.Fees, fee, "fee accrual")
			if err != nil {
				return nil, err
			}
			newBalance, err := addU64Checked(g.Balance, fee, "game balance")
			if err != nil {
				return nil, err
			}
			g.Fees, g.Balance = newFees, newBalance
			events = append(events, event("LateBetFlagged", map[string]string{
				"gameId": fmt.Sprintf("%d", g.ID),
				"player": addr,
				"side":   string(side),
				"amount": fmt.Sprintf("%d", b.Amount),
				"block":  fmt.Sprintf("%d", b.PlacedAtBlock),
				"cutoff": fmt.Sprintf("%d", g.ActualEndBlock),
			}))
		}
	}
	return events, nil
}

// settleGame finalizes a partitioned game: cancel on one-sided or undersized
// participation, cancel flat on a tie, otherwise the strictly smaller valid
// pool wins and the accrued fee is released for withdrawal.
func settleGame(st *state.State, g *state.Game) (*abci.ExecTxResult, error) {
	switch {
	case g.ValidLiquidity < st.Params.MinValidLiquidity,
		g.ValidRedPool == 0,
		g.ValidBluePool == 0:
		if err := cancelGame(g); err != nil {
			return nil, err
		}
		return okEvent("GameCancelled", map[string]string{
			"gameId": fmt.Sprintf("%d", g.ID),
			"reason": "insufficient two-sided participation",
		}), nil

	case g.ValidRedPool == g.ValidBluePool:
		if err := cancelGame(g); err != nil {
			return nil, err
		}
		return okEvent("GameCancelled", map[string]string{
			"gameId": fmt.Sprintf("%d", g.ID),
			"reason": "tie",
		}), nil
	}

	winner := state.SideRed
	if g.ValidBluePool < g.ValidRedPool {
		winner = state.SideBlue
	}

	released := g.Fees
	newCollected, err := addU64Checked(st.CollectedFees, released, "collected fees")
	if err != nil {
		return nil, err
	}
	st.CollectedFees = newCollected
	g.Fees = 0
	g.WinningSide = winner
	g.HasWinner = true
	g.Phase = state.PhaseResolved

	return okEvent("GameResolved", map[string]string{
		"gameId":         fmt.Sprintf("%d", g.ID),
		"winningSide":    string(winner),
		"actualEndBlock": fmt.Sprintf("%d", g.ActualEndBlock),
		"validRedPool":   fmt.Sprintf("%d", g.ValidRedPool),
		"validBluePool":  fmt.Sprintf("%d", g.ValidBluePool),
		"validLiquidity": fmt.Sprintf("%d", g.ValidLiquidity),
		"feesReleased":   fmt.Sprintf("%d", released),
	}), nil
}

// cancelGame diverts a game to Finalized with no winner and returns the
// accrued fee to claimable balance, restoring totalLiquidity to the full
// gross pools so every participant recovers their whole stake.
func cancelGame(g *state.Game) error {
	newBalance, err := addU64Checked(g.Balance, g.Fees, "game balance")
	if err != nil {
		return err
	}
	total, err := addU64Checked(g.RedPool, g.BluePool, "gross pools")
	if err != nil {
		return err
	}
	g.Balance = newBalance
	g.Fees = 0
	g.TotalLiquidity = total
	g.HasWinner = false
	g.WinningSide = ""
	g.Phase = state.PhaseFinalized
	return nil
}
