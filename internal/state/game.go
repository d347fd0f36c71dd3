package state

// ---- Game ----

type GamePhase string

const (
	PhaseNotStarted  GamePhase = "notStarted"
	PhaseBetting     GamePhase = "betting"
	PhaseCalculating GamePhase = "calculating"
	PhaseResolved    GamePhase = "resolved"
	PhaseFinalized   GamePhase = "finalized"
)

// Terminal reports whether the phase permits no further transitions.
func (p GamePhase) Terminal() bool {
	return p == PhaseResolved || p == PhaseFinalized
}

type Side string

const (
	SideRed  Side = "red"
	SideBlue Side = "blue"
)

func (s Side) Valid() bool {
	return s == SideRed || s == SideBlue
}

func (s Side) Other() Side {
	if s == SideRed {
		return SideBlue
	}
	return SideRed
}

// SideBet is one (game, user, side) stake. Amount is the gross stake and only
// grows on top-ups; PlacedAtBlock is the block of the most recent top-up, and
// it alone governs lateness classification. FeePaid is the sum of each
// top-up's fee as it was accrued. Fees floor per top-up, so recomputing the
// fee from the summed Amount can exceed what was actually taken; every refund
// path moves FeePaid, never a recomputation.
type SideBet struct {
	Amount        uint64 `json:"amount"`
	FeePaid       uint64 `json:"feePaid"`
	PlacedAtBlock int64  `json:"placedAtBlock"`
	Claimed       bool   `json:"claimed"`
	IsLateBet     bool   `json:"isLateBet"` // meaningful only after partitioning
}

type BetPair struct {
	Red  *SideBet `json:"red,omitempty"`
	Blue *SideBet `json:"blue,omitempty"`
}

func (bp *BetPair) Side(s Side) *SideBet {
	if bp == nil {
		return nil
	}
	if s == SideRed {
		return bp.Red
	}
	return bp.Blue
}

func (bp *BetPair) SetSide(s Side, b *SideBet) {
	if s == SideRed {
		bp.Red = b
		return
	}
	bp.Blue = b
}

type Game struct {
	ID      uint64    `json:"id"`
	Creator string    `json:"creator"`
	Phase   GamePhase `json:"phase"`

	StartBlock int64 `json:"startBlock"`
	EndBlock   int64 `json:"endBlock"`
	StartUnix  int64 `json:"startUnix"`

	// Randomness commitment, fixed at creation.
	TargetRound   uint64 `json:"targetRound"`
	PredictedUnix int64  `json:"predictedUnix"`

	// ActualEndBlock is derived only once randomness is verified; 0 means
	// "undetermined".
	ActualEndBlock int64 `json:"actualEndBlock"`

	RedPool     uint64 `json:"redPool"`
	BluePool    uint64 `json:"bluePool"`
	RedBettors  uint32 `json:"redBettors"`
	BlueBettors uint32 `json:"blueBettors"`

	// Valid pools are populated only after anti-snipe partitioning.
	ValidRedPool   uint64 `json:"validRedPool"`
	ValidBluePool  uint64 `json:"validBluePool"`
	ValidLiquidity uint64 `json:"validLiquidity"`

	// HasWinner is authoritative; WinningSide is meaningless while false.
	WinningSide Side `json:"winningSide,omitempty"`
	HasWinner   bool `json:"hasWinner"`

	// TotalLiquidity is the net-of-fee stake. Invariant while betting:
	// totalLiquidity == redPool + bluePool - fees. After cancellation the fees
	// are returned, so totalLiquidity == redPool + bluePool.
	TotalLiquidity uint64 `json:"totalLiquidity"`

	// Per-game claimable principal and accrued (unreleased) fee.
	Balance uint64 `json:"balance"`
	Fees    uint64 `json:"fees"`

	// Roster is the append-only dedup set of bettor addresses, capped to bound
	// the settlement scan.
	Roster []string            `json:"roster,omitempty"`
	Bets   map[string]*BetPair `json:"bets,omitempty"`
}

func (g *Game) normalize() {
	if g.Bets == nil {
		g.Bets = map[string]*BetPair{}
	}
	if g.Phase == "" {
		g.Phase = PhaseNotStarted
	}
}

// BetFor returns the stake for (addr, side), or nil.
func (g *Game) BetFor(addr string, side Side) *SideBet {
	return g.Bets[addr].Side(side)
}

// OnRoster reports whether addr already staked in this game.
func (g *Game) OnRoster(addr string) bool {
	_, ok := g.Bets[addr]
	return ok
}

// ---- Stats & leaderboard ----

// UserStats counters are append-only and never decremented.
type UserStats struct {
	Bets     uint64 `json:"bets"`
	Wins     uint64 `json:"wins"`
	Losses   uint64 `json:"losses"`
	Winnings uint64 `json:"winnings"`
}

type LeaderboardEntry struct {
	Address  string `json:"address"`
	Winnings uint64 `json:"winnings"`
}

// ---- Beacon ----

// BeaconState mirrors the slice of the external randomness beacon this chain
// has observed: reported records keyed by derived storage address, plus the
// highest round seen. The beacon itself is independently operated; records
// only enter state through permissionless relay txs.
type BeaconState struct {
	PeriodSecs  uint64 `json:"periodSecs"`
	GenesisUnix int64  `json:"genesisUnix,omitempty"`
	LastRound   uint64 `json:"lastRound"`

	// Records maps hex(derived storage key) -> raw envelope bytes.
	Records map[string][]byte `json:"records,omitempty"`
}

func NewBeaconState() *BeaconState {
	return &BeaconState{
		PeriodSecs: 3,
		Records:    map[string][]byte{},
	}
}

// ---- Consensus parameters ----

// Params are consensus constants. They are genesis state, not node config;
// every validator must agree on them.
type Params struct {
	BlockSecs uint64 `json:"blockSecs"`

	BettingWindowBlocks int64 `json:"bettingWindowBlocks"`
	FinalCallBlocks     int64 `json:"finalCallBlocks"`

	FeeBps            uint32 `json:"feeBps"`
	MinBet            uint64 `json:"minBet"`
	MinValidLiquidity uint64 `json:"minValidLiquidity"`

	TargetRoundBuffer uint64 `json:"targetRoundBuffer"`

	GraceSecs            int64 `json:"graceSecs"`
	EmergencyTimeoutSecs int64 `json:"emergencyTimeoutSecs"`

	RosterCap       int `json:"rosterCap"`
	LeaderboardSize int `json:"leaderboardSize"`
}

func DefaultParams() Params {
	return Params{
		BlockSecs:            6,
		BettingWindowBlocks:  100,
		FinalCallBlocks:      10,
		FeeBps:               500,
		MinBet:               1_000_000,
		MinValidLiquidity:    10_000_000,
		TargetRoundBuffer:    2,
		GraceSecs:            600,
		EmergencyTimeoutSecs: 86_400,
		RosterCap:            256,
		LeaderboardSize:      10,
	}
}

// Normalized fills zero fields with defaults so older or hand-edited
// genesis/state files still load with sane parameters.
func (p Params) Normalized() Params {
	d := DefaultParams()
	if p.BlockSecs == 0 {
		p.BlockSecs = d.BlockSecs
	}
	if p.BettingWindowBlocks == 0 {
		p.BettingWindowBlocks = d.BettingWindowBlocks
	}
	if p.FinalCallBlocks == 0 {
		p.FinalCallBlocks = d.FinalCallBlocks
	}
	if p.FeeBps == 0 {
		p.FeeBps = d.FeeBps
	}
	if p.MinBet == 0 {
		p.MinBet = d.MinBet
	}
	if p.MinValidLiquidity == 0 {
		p.MinValidLiquidity = d.MinValidLiquidity
	}
	if p.TargetRoundBuffer == 0 {
		p.TargetRoundBuffer = d.TargetRoundBuffer
	}
	if p.GraceSecs == 0 {
		p.GraceSecs = d.GraceSecs
	}
	if p.EmergencyTimeoutSecs == 0 {
		p.EmergencyTimeoutSecs = d.EmergencyTimeoutSecs
	}
	if p.RosterCap == 0 {
		p.RosterCap = d.RosterCap
	}
	if p.LeaderboardSize == 0 {
		p.LeaderboardSize = d.LeaderboardSize
	}
	return p
}
