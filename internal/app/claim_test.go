package app

import (
	"testing"

	"minoritybet/internal/state"
)

func TestClaim_WinnerGetsProRataShare(t *testing.T) {
	h := newHarness(t)
	h.fund("alice", 10_000)
	h.fund("bob", 10_000)
	h.fund("carol", 10_000)
	gameID := h.createGame("alice")
	mustOk(t, h.bet("alice", gameID, "red", 1000))
	mustOk(t, h.bet("bob", gameID, "blue", 2000))
	mustOk(t, h.bet("carol", gameID, "blue", 1000))
	endBettingAndResolve(h, gameID, [32]byte{})

	// Sole winner takes the whole net liquidity: 3800 * 1000 / 1000.
	res := mustOk(t, h.claim("alice", gameID, "red"))
	ev := findEvent(res.Events, "WinningsClaimed")
	if got := parseU64(t, attr(ev, "payout")); got != 3800 {
		t.Fatalf("payout: got %d want 3800", got)
	}
	if got := attr(ev, "kind"); got != "win" {
		t.Fatalf("kind: got %q", got)
	}
	if got := h.a.st.Balance("alice"); got != 10_000-1000+3800 {
		t.Fatalf("alice balance: got %d want 12800", got)
	}

	stats := h.a.st.StatsFor("alice")
	if stats.Wins != 1 || stats.Winnings != 3800 {
		t.Fatalf("stats: wins=%d winnings=%d", stats.Wins, stats.Winnings)
	}
	if len(h.a.st.Leaderboard) != 1 || h.a.st.Leaderboard[0].Address != "alice" {
		t.Fatalf("leaderboard: %+v", h.a.st.Leaderboard)
	}
	if got := h.a.st.Games[gameID].Balance; got != 0 {
		t.Fatalf("game balance after full payout: got %d", got)
	}
}

func TestClaim_LoserGetsZeroAndLossCounted(t *testing.T) {
	h := newHarness(t)
	h.fund("alice", 10_000)
	h.fund("bob", 10_000)
	gameID := h.createGame("alice")
	mustOk(t, h.bet("alice", gameID, "red", 1000))
	mustOk(t, h.bet("bob", gameID, "blue", 2000))
	endBettingAndResolve(h, gameID, [32]byte{})

	res := mustOk(t, h.claim("bob", gameID, "blue"))
	ev := findEvent(res.Events, "WinningsClaimed")
	if got := parseU64(t, attr(ev, "payout")); got != 0 {
		t.Fatalf("payout: got %d want 0", got)
	}
	if got := attr(ev, "kind"); got != "loss" {
		t.Fatalf("kind: got %q", got)
	}
	if got := h.a.st.Balance("bob"); got != 8000 {
		t.Fatalf("bob balance: got %d want 8000", got)
	}
	if got := h.a.st.StatsFor("bob").Losses; got != 1 {
		t.Fatalf("losses: got %d", got)
	}
}

func TestClaim_LateBetRefundedGross(t *testing.T) {
	h := newHarness(t)
	h.fund("alice", 10_000)
	h.fund("bob", 10_000)
	h.fund("carol", 10_000)
	gameID := h.createGame("alice")
	mustOk(t, h.bet("alice", gameID, "red", 1000))
	mustOk(t, h.bet("bob", gameID, "blue", 2000))
	h.height = 95
	mustOk(t, h.bet("carol", gameID, "blue", 1000))
	endBettingAndResolve(h, gameID, [32]byte{})

	// Late stake refunds in full, fee included, even on the losing side.
	res := mustOk(t, h.claim("carol", gameID, "blue"))
	ev := findEvent(res.Events, "BetRefunded")
	if got := parseU64(t, attr(ev, "payout")); got != 1000 {
		t.Fatalf("refund: got %d want 1000", got)
	}
	if got := attr(ev, "kind"); got != "lateRefund" {
		t.Fatalf("kind: got %q", got)
	}
	if got := h.a.st.Balance("carol"); got != 10_000 {
		t.Fatalf("carol balance: got %d want 10000 (made whole)", got)
	}
}

func TestClaim_CancelledGameRefundsEveryone(t *testing.T) {
	h := newHarness(t)
	h.fund("alice", 10_000)
	h.fund("bob", 10_000)
	gameID := h.createGame("alice")
	mustOk(t, h.bet("alice", gameID, "red", 1000))
	mustOk(t, h.bet("bob", gameID, "blue", 1000))
	endBettingAndResolve(h, gameID, [32]byte{}) // tie -> cancelled

	for _, player := range []string{"alice", "bob"} {
		res := mustOk(t, h.claim(player, gameID, "both"))
		ev := findEvent(res.Events, "BetRefunded")
		if got := parseU64(t, attr(ev, "payout")); got != 1000 {
			t.Fatalf("%s refund: got %d want 1000", player, got)
		}
		if got := h.a.st.Balance(player); got != 10_000 {
			t.Fatalf("%s balance: got %d want 10000", player, got)
		}
	}
	if got := h.a.st.Games[gameID].Balance; got != 0 {
		t.Fatalf("game balance after refunds: got %d", got)
	}
}

func TestClaim_Guards(t *testing.T) {
	h := newHarness(t)
	h.fund("alice", 10_000)
	h.fund("bob", 10_000)
	h.fund("dave", 10_000)
	gameID := h.createGame("alice")
	mustOk(t, h.bet("alice", gameID, "red", 1000))
	mustOk(t, h.bet("bob", gameID, "blue", 2000))

	// Not terminal yet.
	mustFailWith(t, h.claim("alice", gameID, "red"), ErrWrongPhase.ABCICode())

	endBettingAndResolve(h, gameID, [32]byte{})

	// No stake on that side.
	mustFailWith(t, h.claim("alice", gameID, "blue"), ErrNoBet.ABCICode())
	// Never bet at all.
	mustFailWith(t, h.claim("dave", gameID, "red"), ErrNoBet.ABCICode())

	mustOk(t, h.claim("alice", gameID, "red"))
	// Second single-side claim is an error.
	mustFailWith(t, h.claim("alice", gameID, "red"), ErrAlreadyClaimed.ABCICode())
	// "both" with everything already claimed also errors.
	mustFailWith(t, h.claim("alice", gameID, "both"), ErrAlreadyClaimed.ABCICode())
}

func TestClaim_BothSettlesBothSidesInOneTx(t *testing.T) {
	h := newHarness(t)
	h.fund("alice", 10_000)
	h.fund("bob", 10_000)
	gameID := h.createGame("alice")
	// Alice hedges: 1000 red + 2000 blue; bob adds 3000 blue.
	mustOk(t, h.bet("alice", gameID, "red", 1000))
	mustOk(t, h.bet("alice", gameID, "blue", 2000))
	mustOk(t, h.bet("bob", gameID, "blue", 3000))
	endBettingAndResolve(h, gameID, [32]byte{})

	g := h.a.st.Games[gameID]
	if g.WinningSide != state.SideRed {
		t.Fatalf("winner: got %s want red", g.WinningSide)
	}

	res := mustOk(t, h.claim("alice", gameID, "both"))
	if len(res.Events) != 2 {
		t.Fatalf("expected 2 claim events, got %d", len(res.Events))
	}
	// Red wins the full net liquidity (sole winning stake); blue pays zero.
	// 5700 = (950 + 1900 + 2850) * 1000 / 1000.
	if got := h.a.st.Balance("alice"); got != 10_000-3000+5700 {
		t.Fatalf("alice balance: got %d want 12700", got)
	}
	stats := h.a.st.StatsFor("alice")
	if stats.Wins != 1 || stats.Losses != 1 {
		t.Fatalf("stats: wins=%d losses=%d", stats.Wins, stats.Losses)
	}
}

func TestAdminWithdrawFees(t *testing.T) {
	h := newHarness(t)
	h.a.st.AdminAccount = "admin"
	h.register("admin")
	h.fund("alice", 10_000)
	h.fund("bob", 10_000)
	gameID := h.createGame("alice")
	mustOk(t, h.bet("alice", gameID, "red", 1000))
	mustOk(t, h.bet("bob", gameID, "blue", 2000))
	endBettingAndResolve(h, gameID, [32]byte{})

	if h.a.st.CollectedFees != 150 {
		t.Fatalf("collected: got %d want 150", h.a.st.CollectedFees)
	}

	// Non-admin cannot sweep.
	mustFailWith(t, h.deliverSigned("alice", "admin/withdraw_fees", map[string]any{
		"admin": "alice",
	}), ErrUnauthorized.ABCICode())

	// Partial withdrawal to a named recipient.
	mustOk(t, h.deliverSigned("admin", "admin/withdraw_fees", map[string]any{
		"admin": "admin", "to": "treasury", "amount": 100,
	}))
	if got := h.a.st.Balance("treasury"); got != 100 {
		t.Fatalf("treasury: got %d", got)
	}

	// Amount 0 sweeps the remainder to the admin.
	mustOk(t, h.deliverSigned("admin", "admin/withdraw_fees", map[string]any{
		"admin": "admin",
	}))
	if got := h.a.st.Balance("admin"); got != 50 {
		t.Fatalf("admin: got %d want 50", got)
	}
	if h.a.st.CollectedFees != 0 {
		t.Fatalf("collected after sweep: got %d", h.a.st.CollectedFees)
	}

	// Overdraw is rejected.
	res := h.deliverSigned("admin", "admin/withdraw_fees", map[string]any{
		"admin": "admin", "amount": 1,
	})
	if res.Code == 0 {
		t.Fatalf("expected overdraw rejection")
	}
}
