package app

import (
	"testing"

	"minoritybet/internal/state"
)

func TestCreateGame_CommitsRandomnessTarget(t *testing.T) {
	h := newHarness(t)
	h.fund("alice", 10_000)
	h.a.st.Beacon.LastRound = 100

	res := mustOk(t, h.deliverSigned("alice", "game/create", map[string]any{"creator": "alice"}))
	ev := findEvent(res.Events, "GameCreated")
	if ev == nil {
		t.Fatalf("expected GameCreated event")
	}
	gameID := parseU64(t, attr(ev, "gameId"))

	g := h.a.st.Games[gameID]
	if g == nil {
		t.Fatalf("missing game")
	}
	if g.Phase != state.PhaseBetting {
		t.Fatalf("phase: got %q", g.Phase)
	}
	if g.EndBlock != h.height+h.a.st.Params.BettingWindowBlocks {
		t.Fatalf("endBlock: got %d", g.EndBlock)
	}

	// 100 blocks * 6s = 600s of betting; at a 3s beacon period that spans 200
	// rounds, plus the 2-round buffer.
	if g.TargetRound != 100+200+2 {
		t.Fatalf("targetRound: got %d want 302", g.TargetRound)
	}
	if g.PredictedUnix != h.now+202*3 {
		t.Fatalf("predictedUnix: got %d want %d", g.PredictedUnix, h.now+202*3)
	}
	if h.a.st.ActiveGameID != gameID {
		t.Fatalf("activeGameId: got %d want %d", h.a.st.ActiveGameID, gameID)
	}
}

func TestCreateGame_OnlyOneActive(t *testing.T) {
	h := newHarness(t)
	h.fund("alice", 10_000)
	h.fund("bob", 10_000)
	h.createGame("alice")

	res := h.deliverSigned("bob", "game/create", map[string]any{"creator": "bob"})
	mustFailWith(t, res, ErrActiveGameExists.ABCICode())
}

func TestBet_EscrowsGrossAndSplitsFee(t *testing.T) {
	h := newHarness(t)
	h.fund("alice", 10_000)
	gameID := h.createGame("alice")

	res := mustOk(t, h.bet("alice", gameID, "red", 1000))
	ev := findEvent(res.Events, "BetPlaced")
	if got := parseU64(t, attr(ev, "fee")); got != 50 {
		t.Fatalf("fee: got %d want 50", got)
	}

	if got := h.a.st.Balance("alice"); got != 9000 {
		t.Fatalf("alice balance: got %d want 9000", got)
	}
	g := h.a.st.Games[gameID]
	if g.RedPool != 1000 || g.BluePool != 0 {
		t.Fatalf("pools: red=%d blue=%d", g.RedPool, g.BluePool)
	}
	if g.Balance != 950 || g.Fees != 50 || g.TotalLiquidity != 950 {
		t.Fatalf("escrow split: balance=%d fees=%d liquidity=%d", g.Balance, g.Fees, g.TotalLiquidity)
	}
	if g.RedBettors != 1 || g.BlueBettors != 0 {
		t.Fatalf("bettor counts: red=%d blue=%d", g.RedBettors, g.BlueBettors)
	}
	if got := h.a.st.StatsFor("alice").Bets; got != 1 {
		t.Fatalf("stats.bets: got %d", got)
	}
}

func TestBet_TopUpAccumulatesAndRefreshesBlock(t *testing.T) {
	h := newHarness(t)
	h.fund("alice", 10_000)
	gameID := h.createGame("alice")

	mustOk(t, h.bet("alice", gameID, "red", 1000))
	h.height = 50
	mustOk(t, h.bet("alice", gameID, "red", 500))

	g := h.a.st.Games[gameID]
	b := g.BetFor("alice", state.SideRed)
	if b.Amount != 1500 {
		t.Fatalf("amount: got %d want 1500", b.Amount)
	}
	// Only the latest top-up's block governs lateness.
	if b.PlacedAtBlock != 50 {
		t.Fatalf("placedAtBlock: got %d want 50", b.PlacedAtBlock)
	}
	if got := len(g.Roster); got != 1 {
		t.Fatalf("roster: got %d entries", got)
	}
	if g.RedBettors != 1 {
		t.Fatalf("redBettors: got %d", g.RedBettors)
	}
}

func TestBet_BothSidesAllowed(t *testing.T) {
	h := newHarness(t)
	h.fund("alice", 10_000)
	gameID := h.createGame("alice")

	mustOk(t, h.bet("alice", gameID, "red", 1000))
	mustOk(t, h.bet("alice", gameID, "blue", 2000))

	g := h.a.st.Games[gameID]
	if g.RedPool != 1000 || g.BluePool != 2000 {
		t.Fatalf("pools: red=%d blue=%d", g.RedPool, g.BluePool)
	}
	if g.RedBettors != 1 || g.BlueBettors != 1 {
		t.Fatalf("bettor counts: red=%d blue=%d", g.RedBettors, g.BlueBettors)
	}
	if got := len(g.Roster); got != 1 {
		t.Fatalf("roster: got %d entries, want 1 (same player)", got)
	}
}

func TestBet_Validation(t *testing.T) {
	h := newHarness(t)
	h.fund("alice", 10_000)
	gameID := h.createGame("alice")

	mustFailWith(t, h.bet("alice", gameID, "green", 1000), ErrInvalidSide.ABCICode())
	mustFailWith(t, h.bet("alice", gameID, "red", 5), ErrBetTooSmall.ABCICode())
	mustFailWith(t, h.bet("alice", gameID+1, "red", 1000), ErrGameNotFound.ABCICode())

	h.height = h.a.st.Games[gameID].EndBlock
	mustFailWith(t, h.bet("alice", gameID, "red", 1000), ErrBettingClosed.ABCICode())
}

func TestBet_RosterCapIsHard(t *testing.T) {
	h := newHarness(t)
	h.a.st.Params.RosterCap = 2
	h.fund("alice", 10_000)
	h.fund("bob", 10_000)
	h.fund("carol", 10_000)
	gameID := h.createGame("alice")

	mustOk(t, h.bet("alice", gameID, "red", 1000))
	mustOk(t, h.bet("bob", gameID, "blue", 1000))
	mustFailWith(t, h.bet("carol", gameID, "blue", 1000), ErrRosterFull.ABCICode())

	// Carol was not debited by the rejected bet.
	if got := h.a.st.Balance("carol"); got != 10_000 {
		t.Fatalf("carol balance: got %d want 10000", got)
	}
	// Existing bettors can still top up at capacity.
	mustOk(t, h.bet("alice", gameID, "red", 500))
}
