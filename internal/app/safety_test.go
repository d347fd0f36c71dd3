package app

import (
	"testing"

	"minoritybet/internal/state"
)

func TestVoid_EarlyRandomnessDuringBetting(t *testing.T) {
	h := newHarness(t)
	h.fund("alice", 10_000)
	h.fund("bob", 10_000)
	gameID := h.createGame("alice")
	g := h.a.st.Games[gameID]
	mustOk(t, h.bet("alice", gameID, "red", 1000))
	mustOk(t, h.bet("bob", gameID, "blue", 2000))

	// Healthy game: nothing to void.
	mustFailWith(t, h.deliver("game/void", map[string]any{"gameId": gameID}), ErrNotCompromised.ABCICode())

	// The committed round's value appears while betting is still open.
	h.submitRandomness(g.TargetRound, [32]byte{1})
	res := mustOk(t, h.deliver("game/void", map[string]any{"gameId": gameID}))
	if got := attr(findEvent(res.Events, "GameVoided"), "reason"); got != "randomness available before betting closed" {
		t.Fatalf("reason: got %q", got)
	}

	g = h.a.st.Games[gameID]
	if g.Phase != state.PhaseFinalized || g.HasWinner {
		t.Fatalf("void state: phase=%s hasWinner=%v", g.Phase, g.HasWinner)
	}

	// Everyone recovers gross, fee included.
	mustOk(t, h.claim("alice", gameID, "red"))
	mustOk(t, h.claim("bob", gameID, "blue"))
	if h.a.st.Balance("alice") != 10_000 || h.a.st.Balance("bob") != 10_000 {
		t.Fatalf("refunds incomplete: alice=%d bob=%d", h.a.st.Balance("alice"), h.a.st.Balance("bob"))
	}
}

func TestVoid_BeaconOverduePastGrace(t *testing.T) {
	h := newHarness(t)
	h.fund("alice", 10_000)
	h.fund("bob", 10_000)
	gameID := h.createGame("alice")
	g := h.a.st.Games[gameID]
	mustOk(t, h.bet("alice", gameID, "red", 1000))
	mustOk(t, h.bet("bob", gameID, "blue", 2000))

	h.height = g.EndBlock
	mustOk(t, h.deliver("game/end_betting", map[string]any{"gameId": gameID}))

	// Exactly at the grace boundary: still not compromised.
	h.now = g.PredictedUnix + h.a.st.Params.GraceSecs
	mustFailWith(t, h.deliver("game/void", map[string]any{"gameId": gameID}), ErrNotCompromised.ABCICode())

	// One second past: void.
	h.now++
	res := mustOk(t, h.deliver("game/void", map[string]any{"gameId": gameID}))
	if got := attr(findEvent(res.Events, "GameVoided"), "reason"); got != "beacon overdue past grace margin" {
		t.Fatalf("reason: got %q", got)
	}

	// The randomness arriving afterwards cannot resurrect the game.
	h.submitRandomness(g.TargetRound, [32]byte{1})
	mustFailWith(t, h.deliver("game/resolve", map[string]any{"gameId": gameID}), ErrAlreadyResolved.ABCICode())
	mustFailWith(t, h.deliver("game/void", map[string]any{"gameId": gameID}), ErrAlreadyResolved.ABCICode())
}

func TestVoid_RandomnessAfterWindowIsNotCompromise(t *testing.T) {
	h := newHarness(t)
	h.fund("alice", 10_000)
	h.fund("bob", 10_000)
	gameID := h.createGame("alice")
	g := h.a.st.Games[gameID]
	mustOk(t, h.bet("alice", gameID, "red", 1000))
	mustOk(t, h.bet("bob", gameID, "blue", 2000))

	// Randomness observed only after the window closed: the normal path.
	h.height = g.EndBlock
	h.submitRandomness(g.TargetRound, [32]byte{1})
	mustFailWith(t, h.deliver("game/void", map[string]any{"gameId": gameID}), ErrNotCompromised.ABCICode())
}

func TestEmergencyWithdraw_AfterTimeout(t *testing.T) {
	h := newHarness(t)
	h.fund("alice", 10_000)
	h.fund("bob", 10_000)
	gameID := h.createGame("alice")
	mustOk(t, h.bet("alice", gameID, "red", 1000))
	mustOk(t, h.bet("bob", gameID, "blue", 2000))

	// Locked until the timeout elapses.
	mustFailWith(t, h.deliverSigned("alice", "game/emergency_withdraw", map[string]any{
		"player": "alice", "gameId": gameID,
	}), ErrEmergencyLocked.ABCICode())

	h.now += h.a.st.Params.EmergencyTimeoutSecs

	res := mustOk(t, h.deliverSigned("alice", "game/emergency_withdraw", map[string]any{
		"player": "alice", "gameId": gameID,
	}))
	ev := findEvent(res.Events, "EmergencyWithdrawn")
	if got := parseU64(t, attr(ev, "amount")); got != 1000 {
		t.Fatalf("amount: got %d want 1000", got)
	}
	if got := h.a.st.Balance("alice"); got != 10_000 {
		t.Fatalf("alice balance: got %d want 10000 (made whole)", got)
	}

	// Alice's stake is backed fully out of the game's books; bob's remains.
	g := h.a.st.Games[gameID]
	if g.RedPool != 0 || g.BluePool != 2000 {
		t.Fatalf("pools: red=%d blue=%d", g.RedPool, g.BluePool)
	}
	if g.Balance != 1900 || g.Fees != 100 || g.TotalLiquidity != 1900 {
		t.Fatalf("books: balance=%d fees=%d liquidity=%d", g.Balance, g.Fees, g.TotalLiquidity)
	}

	// Nothing left for a second withdrawal.
	mustFailWith(t, h.deliverSigned("alice", "game/emergency_withdraw", map[string]any{
		"player": "alice", "gameId": gameID,
	}), ErrNoBet.ABCICode())

	// Other participants withdraw independently.
	mustOk(t, h.deliverSigned("bob", "game/emergency_withdraw", map[string]any{
		"player": "bob", "gameId": gameID,
	}))
	if got := h.a.st.Balance("bob"); got != 10_000 {
		t.Fatalf("bob balance: got %d want 10000", got)
	}
	g = h.a.st.Games[gameID]
	if g.Balance != 0 || g.Fees != 0 || g.TotalLiquidity != 0 {
		t.Fatalf("books must be empty: balance=%d fees=%d liquidity=%d", g.Balance, g.Fees, g.TotalLiquidity)
	}
}

func TestEmergencyWithdraw_CoversBothSides(t *testing.T) {
	h := newHarness(t)
	h.fund("alice", 10_000)
	gameID := h.createGame("alice")
	mustOk(t, h.bet("alice", gameID, "red", 1000))
	mustOk(t, h.bet("alice", gameID, "blue", 2000))

	h.now += h.a.st.Params.EmergencyTimeoutSecs
	res := mustOk(t, h.deliverSigned("alice", "game/emergency_withdraw", map[string]any{
		"player": "alice", "gameId": gameID,
	}))
	if got := parseU64(t, attr(findEvent(res.Events, "EmergencyWithdrawn"), "amount")); got != 3000 {
		t.Fatalf("amount: got %d want 3000", got)
	}
	if got := h.a.st.Balance("alice"); got != 10_000 {
		t.Fatalf("alice balance: got %d", got)
	}
}

func TestEmergencyWithdraw_TopUpFeesUseAccrued(t *testing.T) {
	h := newHarness(t)
	h.fund("alice", 10_000)
	gameID := h.createGame("alice")

	// Two min-bets whose per-top-up fee floors to zero. The refund moves the
	// accrued 0, while feeOf over the summed 20 would demand 1 from an empty
	// fee reserve and lock the withdrawal.
	mustOk(t, h.bet("alice", gameID, "red", 10))
	mustOk(t, h.bet("alice", gameID, "red", 10))

	g := h.a.st.Games[gameID]
	if g.Fees != 0 || g.BetFor("alice", state.SideRed).FeePaid != 0 {
		t.Fatalf("accrual: gameFees=%d feePaid=%d", g.Fees, g.BetFor("alice", state.SideRed).FeePaid)
	}

	h.now += h.a.st.Params.EmergencyTimeoutSecs
	res := mustOk(t, h.deliverSigned("alice", "game/emergency_withdraw", map[string]any{
		"player": "alice", "gameId": gameID,
	}))
	ev := findEvent(res.Events, "EmergencyWithdrawn")
	if got := parseU64(t, attr(ev, "amount")); got != 20 {
		t.Fatalf("amount: got %d want 20", got)
	}
	if got := parseU64(t, attr(ev, "fee")); got != 0 {
		t.Fatalf("fee: got %d want 0", got)
	}
	if got := h.a.st.Balance("alice"); got != 10_000 {
		t.Fatalf("alice balance: got %d want 10000", got)
	}
	g = h.a.st.Games[gameID]
	if g.Balance != 0 || g.Fees != 0 || g.TotalLiquidity != 0 {
		t.Fatalf("books must be empty: balance=%d fees=%d liquidity=%d", g.Balance, g.Fees, g.TotalLiquidity)
	}
}

func TestEmergencyWithdraw_TerminalGameUsesClaim(t *testing.T) {
	h := newHarness(t)
	h.fund("alice", 10_000)
	h.fund("bob", 10_000)
	gameID := h.createGame("alice")
	mustOk(t, h.bet("alice", gameID, "red", 1000))
	mustOk(t, h.bet("bob", gameID, "blue", 2000))
	endBettingAndResolve(h, gameID, [32]byte{})

	h.now += h.a.st.Params.EmergencyTimeoutSecs
	mustFailWith(t, h.deliverSigned("alice", "game/emergency_withdraw", map[string]any{
		"player": "alice", "gameId": gameID,
	}), ErrAlreadyResolved.ABCICode())
}
