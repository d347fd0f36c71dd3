package app

import (
	"fmt"

	errorsmod "cosmossdk.io/errors"
	abci "github.com/cometbft/cometbft/abci/types"

	"minoritybet/internal/codec"
	"minoritybet/internal/state"
)

// gameVoid is the permissionless compromise detector. A game in an active
// phase is voided with full refunds (fees included) when randomness integrity
// can no longer be established:
//
//	(a) the committed round's value is already observable strictly before the
//	    betting window closes, so whoever sees it first has a timing edge.
//	    Betting phase only.
//	(b) real time has run past the predicted beacon arrival by more than the
//	    grace margin, meaning the host chain lags badly enough that the
//	    commitment's timing guarantee no longer holds. Both active phases.
func gameVoid(st *state.State, msg codec.GameVoidTx, height int64, nowUnix int64) (*abci.ExecTxResult, error) {
	g, err := getGame(st, msg.GameID)
	if err != nil {
		return nil, err
	}
	if g.Phase.Terminal() {
		return nil, errorsmod.Wrapf(ErrAlreadyResolved, "game %d is %s", g.ID, g.Phase)
	}

	reason := ""
	if g.Phase == state.PhaseBetting && height < g.EndBlock {
		if _, exists := beaconGateway(st).Lookup(g.TargetRound); exists {
			reason = "randomness available before betting closed"
		}
	}
	if reason == "" && nowUnix > g.PredictedUnix+st.Params.GraceSecs {
		reason = "beacon overdue past grace margin"
	}
	if reason == "" {
		return nil, errorsmod.Wrapf(ErrNotCompromised, "game %d", g.ID)
	}

	if err := cancelGame(g); err != nil {
		return nil, err
	}
	return okEvent("GameVoided", map[string]string{
		"gameId": fmt.Sprintf("%d", g.ID),
		"reason": reason,
	}), nil
}

// gameEmergencyWithdraw lets one user pull exactly their own net stake plus
// their own fee contribution out of a stuck game, long after its predicted
// start. Bet records are zeroed before the transfer so a re-entrant call sees
// nothing left to withdraw, and the fee refund fails closed if the game's fee
// reserve cannot cover it in full.
func gameEmergencyWithdraw(st *state.State, env codec.TxEnvelope, msg codec.GameEmergencyWithdrawTx, nowUnix int64) (*abci.ExecTxResult, error) {
	if msg.Player == "" {
		return nil, errorsmod.Wrap(ErrInvalidRequest, "missing player")
	}
	if err := requireAccountAuth(st, env, msg.Player); err != nil {
		return nil, err
	}
	g, err := getGame(st, msg.GameID)
	if err != nil {
		return nil, err
	}
	if g.Phase.Terminal() {
		return nil, errorsmod.Wrapf(ErrAlreadyResolved, "game %d is %s: claim instead", g.ID, g.Phase)
	}
	unlockAt := g.StartUnix + st.Params.EmergencyTimeoutSecs
	if nowUnix < unlockAt {
		return nil, errorsmod.Wrapf(ErrEmergencyLocked, "unlocks at %d, now %d", unlockAt, nowUnix)
	}

	bp := g.Bets[msg.Player]
	var gross, fees uint64
	for _, side := range []state.Side{state.SideRed, state.SideBlue} {
		b := bp.Side(side)
		if b == nil || b.Amount == 0 || b.Claimed {
			continue
		}
		if gross, err = addU64Checked(gross, b.Amount, "gross stake"); err != nil {
			return nil, err
		}
		if fees, err = addU64Checked(fees, b.FeePaid, "fee contribution"); err != nil {
			return nil, err
		}
	}
	if gross == 0 {
		return nil, errorsmod.Wrapf(ErrNoBet, "player %s", msg.Player)
	}
	net := gross - fees

	newFees, err := subU64Checked(g.Fees, fees, "fee reserve")
	if err != nil {
		return nil, errorsmod.Wrapf(ErrInsufficientFeeReserve, "game %d: need %d, have %d", g.ID, fees, g.Fees)
	}
	newBalance, err := subU64Checked(g.Balance, net, "game balance")
	if err != nil {
		return nil, errorsmod.Wrapf(ErrInsufficientGameBalance, "game %d: need %d, have %d", g.ID, net, g.Balance)
	}

	// Zero the user's records and back their stake out of the pools before
	// any funds move.
	for _, side := range []state.Side{state.SideRed, state.SideBlue} {
		b := bp.Side(side)
		if b == nil || b.Amount == 0 || b.Claimed {
			continue
		}
		amount := b.Amount
		b.Amount = 0
		b.Claimed = true
		if side == state.SideRed {
			if g.RedPool, err = subU64Checked(g.RedPool, amount, "red pool"); err != nil {
				return nil, err
			}
		} else {
			if g.BluePool, err = subU64Checked(g.BluePool, amount, "blue pool"); err != nil {
				return nil, err
			}
		}
	}
	g.Fees = newFees
	g.Balance = newBalance
	if g.TotalLiquidity, err = subU64Checked(g.TotalLiquidity, net, "total liquidity"); err != nil {
		return nil, err
	}

	if err := st.Credit(msg.Player, gross); err != nil {
		return nil, errorsmod.Wrap(ErrOverflow, err.Error())
	}
	return okEvent("EmergencyWithdrawn", map[string]string{
		"gameId": fmt.Sprintf("%d", g.ID),
		"player": msg.Player,
		"amount": fmt.Sprintf("%d", gross),
		"fee":    fmt.Sprintf("%d", fees),
	}), nil
}
