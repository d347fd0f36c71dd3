package app

import (
	"minoritybet/internal/state"
)

// updateLeaderboard reflects addr's lifetime winnings in the bounded top-N
// ranking. Existing entries are refreshed in place; a new entrant either fills
// free capacity or replaces the lowest-ranked entry when strictly ahead of it.
// Either way the touched entry bubbles upward past smaller predecessors, a
// local insertion-sort step that is O(N) for the small fixed N.
func updateLeaderboard(st *state.State, addr string) {
	winnings := st.StatsFor(addr).Winnings

	idx := -1
	for i := range st.Leaderboard {
		if st.Leaderboard[i].Address == addr {
			idx = i
			break
		}
	}

	switch {
	case idx >= 0:
		st.Leaderboard[idx].Winnings = winnings
	case len(st.Leaderboard) < st.Params.LeaderboardSize:
		st.Leaderboard = append(st.Leaderboard, state.LeaderboardEntry{Address: addr, Winnings: winnings})
		idx = len(st.Leaderboard) - 1
	default:
		lowest := len(st.Leaderboard) - 1
		if winnings <= st.Leaderboard[lowest].Winnings {
			return
		}
		st.Leaderboard[lowest] = state.LeaderboardEntry{Address: addr, Winnings: winnings}
		idx = lowest
	}

	for idx > 0 && st.Leaderboard[idx].Winnings > st.Leaderboard[idx-1].Winnings {
		st.Leaderboard[idx], st.Leaderboard[idx-1] = st.Leaderboard[idx-1], st.Leaderboard[idx]
		idx--
	}
}
