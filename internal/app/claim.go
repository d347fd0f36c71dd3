package app

import (
	"fmt"

	errorsmod "cosmossdk.io/errors"
	abci "github.com/cometbft/cometbft/abci/types"

	"minoritybet/internal/codec"
	"minoritybet/internal/state"
)

// claimOutcome describes what a single (game, user, side) claim pays.
type claimOutcome struct {
	payout uint64
	kind   string // "win" | "loss" | "refund" | "lateRefund"
}

// payoutFor computes the lazy per-stake payout:
//   - no winner (cancelled/voided): full gross refund
//   - late stake: full gross refund regardless of outcome
//   - valid losing stake: zero, counted as a loss
//   - valid winning stake: exact pro-rata share of the net liquidity pool
func payoutFor(g *state.Game, side state.Side, b *state.SideBet) (claimOutcome, error) {
	if !g.HasWinner {
		return claimOutcome{payout: b.Amount, kind: "refund"}, nil
	}
	if b.IsLateBet {
		return claimOutcome{payout: b.Amount, kind: "lateRefund"}, nil
	}
	if side != g.WinningSide {
		return claimOutcome{payout: 0, kind: "loss"}, nil
	}
	winningPool := g.ValidRedPool
	if g.WinningSide == state.SideBlue {
		winningPool = g.ValidBluePool
	}
	payout, err := payoutShare(g.ValidLiquidity, b.Amount, winningPool)
	if err != nil {
		return claimOutcome{}, err
	}
	return claimOutcome{payout: payout, kind: "win"}, nil
}

// gameClaim settles one or both of a user's stakes. Idempotent per (game,
// user, side) via the claimed flag; all bookkeeping mutation happens before
// the credit so a re-entrant observer can never see pre-mutation state.
func gameClaim(st *state.State, env codec.TxEnvelope, msg codec.GameClaimTx) (*abci.ExecTxResult, error) {
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
	if !g.Phase.Terminal() {
		return nil, errorsmod.Wrapf(ErrWrongPhase, "game %d is %s", g.ID, g.Phase)
	}

	var sides []state.Side
	switch msg.Side {
	case "both":
		sides = []state.Side{state.SideRed, state.SideBlue}
	default:
		side, err := parseSide(msg.Side)
		if err != nil {
			return nil, err
		}
		sides = []state.Side{side}
	}

	bp := g.Bets[msg.Player]
	var events []abci.Event
	claimedAny := false
	for _, side := range sides {
		b := bp.Side(side)
		if b == nil || b.Amount == 0 {
			if msg.Side != "both" {
				return nil, errorsmod.Wrapf(ErrNoBet, "player %s side %s", msg.Player, side)
			}
			continue
		}
		if b.Claimed {
			if msg.Side != "both" {
				return nil, errorsmod.Wrapf(ErrAlreadyClaimed, "player %s side %s", msg.Player, side)
			}
			continue
		}

		outcome, err := payoutFor(g, side, b)
		if err != nil {
			return nil, err
		}

		// Mutate, then transfer.
		b.Claimed = true
		if outcome.payout > 0 {
			newBalance, err := subU64Checked(g.Balance, outcome.payout, "game balance")
			if err != nil {
				return nil, errorsmod.Wrapf(ErrInsufficientGameBalance, "game %d: need %d, have %d", g.ID, outcome.payout, g.Balance)
			}
			g.Balance = newBalance
			if err := st.Credit(msg.Player, outcome.payout); err != nil {
				return nil, errorsmod.Wrap(ErrOverflow, err.Error())
			}
		}

		stats := st.StatsFor(msg.Player)
		evType := "BetRefunded"
		switch outcome.kind {
		case "win":
			stats.Wins++
			var err error
			if stats.Winnings, err = addU64Checked(stats.Winnings, outcome.payout, "winnings"); err != nil {
				return nil, err
			}
			updateLeaderboard(st, msg.Player)
			evType = "WinningsClaimed"
		case "loss":
			stats.Losses++
			evType = "WinningsClaimed" // zero-payout claim on the losing side
		}

		claimedAny = true
		events = append(events, event(evType, map[string]string{
			"gameId": fmt.Sprintf("%d", g.ID),
			"player": msg.Player,
			"side":   string(side),
			"payout": fmt.Sprintf("%d", outcome.payout),
			"kind":   outcome.kind,
		}))
	}

	if !claimedAny {
		return nil, errorsmod.Wrapf(ErrAlreadyClaimed, "player %s has nothing to claim", msg.Player)
	}
	return &abci.ExecTxResult{Code: 0, Events: events}, nil
}

// adminWithdrawFees sweeps released fees to the admin (or a named recipient).
// It only moves the separately-tracked collected balance and never touches any
// game's funds.
func adminWithdrawFees(st *state.State, env codec.TxEnvelope, msg codec.AdminWithdrawFeesTx) (*abci.ExecTxResult, error) {
	if st.AdminAccount == "" {
		return nil, errorsmod.Wrap(ErrUnauthorized, "no admin account configured")
	}
	if msg.Admin != st.AdminAccount {
		return nil, errorsmod.Wrapf(ErrUnauthorized, "admin mismatch")
	}
	if err := requireAccountAuth(st, env, msg.Admin); err != nil {
		return nil, err
	}

	amount := msg.Amount
	if amount == 0 {
		amount = st.CollectedFees
	}
	if amount == 0 {
		return nil, errorsmod.Wrap(ErrInvalidRequest, "no fees to withdraw")
	}
	newCollected, err := subU64Checked(st.CollectedFees, amount, "collected fees")
	if err != nil {
		return nil, errorsmod.Wrapf(ErrInvalidRequest, "withdraw %d exceeds collected %d", amount, st.CollectedFees)
	}
	to := msg.To
	if to == "" {
		to = msg.Admin
	}
	st.CollectedFees = newCollected
	if err := st.Credit(to, amount); err != nil {
		return nil, errorsmod.Wrap(ErrOverflow, err.Error())
	}
	return okEvent("FeesWithdrawn", map[string]string{
		"to":     to,
		"amount": fmt.Sprintf("%d", amount),
	}), nil
}
