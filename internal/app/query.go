package app

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	abci "github.com/cometbft/cometbft/abci/types"

	"minoritybet/internal/state"
)

// Query exposes the read surface. Paths:
//
//	/games
//	/game/<id>
//	/game/<id>/timing
//	/game/<id>/resolution
//	/game/<id>/projection/<side>/<amount>
//	/account/<addr>
//	/bet/<gameId>/<addr>/<side>
//	/stats/<addr>
//	/leaderboard[/<limit>]
//	/beacon
func (a *MBApp) Query(_ context.Context, req *abci.QueryRequest) (*abci.QueryResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	parts := strings.Split(strings.Trim(strings.TrimSpace(req.Path), "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		return a.queryErr("empty query path"), nil
	}

	switch parts[0] {
	case "games":
		ids := make([]uint64, 0, len(a.st.Games))
		for id := range a.st.Games {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		return a.queryJSON(ids)

	case "game":
		if len(parts) < 2 {
			return a.queryErr("missing game id"), nil
		}
		id, err := strconv.ParseUint(parts[1], 10, 64)
		if err != nil {
			return a.queryErr("invalid game id"), nil
		}
		g := a.st.Games[id]
		if g == nil {
			return a.queryErr("game not found"), nil
		}
		if len(parts) == 2 {
			return a.queryJSON(g)
		}
		switch parts[2] {
		case "timing":
			return a.queryJSON(a.gameTiming(g))
		case "resolution":
			return a.queryJSON(a.gameResolution(g))
		case "projection":
			if len(parts) != 5 {
				return a.queryErr("want /game/<id>/projection/<side>/<amount>"), nil
			}
			side := state.Side(parts[3])
			if !side.Valid() {
				return a.queryErr("invalid side"), nil
			}
			amount, err := strconv.ParseUint(parts[4], 10, 64)
			if err != nil {
				return a.queryErr("invalid amount"), nil
			}
			out, perr := a.gameProjection(g, side, amount)
			if perr != nil {
				return a.queryErr(perr.Error()), nil
			}
			return a.queryJSON(out)
		default:
			return a.queryErr("unknown game subquery"), nil
		}

	case "account":
		if len(parts) != 2 {
			return a.queryErr("missing address"), nil
		}
		return a.queryJSON(map[string]any{"addr": parts[1], "balance": a.st.Balance(parts[1])})

	case "bet":
		if len(parts) != 4 {
			return a.queryErr("want /bet/<gameId>/<addr>/<side>"), nil
		}
		id, err := strconv.ParseUint(parts[1], 10, 64)
		if err != nil {
			return a.queryErr("invalid game id"), nil
		}
		g := a.st.Games[id]
		if g == nil {
			return a.queryErr("game not found"), nil
		}
		side := state.Side(parts[3])
		if !side.Valid() {
			return a.queryErr("invalid side"), nil
		}
		b := g.BetFor(parts[2], side)
		if b == nil {
			return a.queryErr("no bet"), nil
		}
		return a.queryJSON(map[string]any{
			"gameId":        id,
			"player":        parts[2],
			"side":          side,
			"amount":        b.Amount,
			"feePaid":       b.FeePaid,
			"placedAtBlock": b.PlacedAtBlock,
			"claimed":       b.Claimed,
			"isLateBet":     b.IsLateBet,
		})

	case "stats":
		if len(parts) != 2 {
			return a.queryErr("missing address"), nil
		}
		st := a.st.Stats[parts[1]]
		if st == nil {
			st = &state.UserStats{}
		}
		return a.queryJSON(st)

	case "leaderboard":
		entries := a.st.Leaderboard
		if len(parts) == 2 {
			limit, err := strconv.Atoi(parts[1])
			if err != nil || limit < 0 {
				return a.queryErr("invalid limit"), nil
			}
			if limit < len(entries) {
				entries = entries[:limit]
			}
		}
		return a.queryJSON(entries)

	case "beacon":
		lastRound := a.st.Beacon.LastRound
		_, available := beaconGateway(a.st).Lookup(lastRound)
		return a.queryJSON(map[string]any{
			"lastRound":  lastRound,
			"periodSecs": a.st.Beacon.PeriodSecs,
			"available":  available,
		})

	default:
		return a.queryErr("unknown query path"), nil
	}
}

func (a *MBApp) gameTiming(g *state.Game) map[string]any {
	remaining := int64(0)
	if g.Phase == state.PhaseBetting && a.st.Height < g.EndBlock {
		remaining = g.EndBlock - a.st.Height
	}
	inFinalCall := g.Phase == state.PhaseBetting &&
		a.st.Height >= g.EndBlock-a.st.Params.FinalCallBlocks &&
		a.st.Height < g.EndBlock
	return map[string]any{
		"gameId":          g.ID,
		"blocksRemaining": remaining,
		"inFinalCall":     inFinalCall,
	}
}

func (a *MBApp) gameResolution(g *state.Game) map[string]any {
	_, available := beaconGateway(a.st).Lookup(g.TargetRound)
	return map[string]any{
		"gameId":         g.ID,
		"phase":          g.Phase,
		"targetRound":    g.TargetRound,
		"predictedUnix":  g.PredictedUnix,
		"actualEndBlock": g.ActualEndBlock,
		"hasWinner":      g.HasWinner,
		"canFinalize":    g.Phase == state.PhaseCalculating && available,
	}
}

// gameProjection prices a hypothetical additional stake against the current
// raw pools with the settlement pro-rata formula, assuming the chosen side
// ends up the minority winner.
func (a *MBApp) gameProjection(g *state.Game, side state.Side, amount uint64) (map[string]any, error) {
	fee := feeOf(amount, a.st.Params.FeeBps)
	net := amount - fee
	liquidity, err := addU64Checked(g.TotalLiquidity, net, "projected liquidity")
	if err != nil {
		return nil, err
	}
	pool := g.RedPool
	if side == state.SideBlue {
		pool = g.BluePool
	}
	pool, err = addU64Checked(pool, amount, "projected pool")
	if err != nil {
		return nil, err
	}
	payout, err := payoutShare(liquidity, amount, pool)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"gameId":          g.ID,
		"side":            side,
		"amount":          amount,
		"fee":             fee,
		"projectedPayout": payout,
	}, nil
}

func (a *MBApp) queryJSON(v any) (*abci.QueryResponse, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return a.queryErr(err.Error()), nil
	}
	return &abci.QueryResponse{Code: 0, Value: b, Height: a.st.Height}, nil
}

func (a *MBApp) queryErr(log string) *abci.QueryResponse {
	return &abci.QueryResponse{Code: 1, Log: log, Height: a.st.Height}
}
