package state

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

type State struct {
	Height        int64 `json:"height"`
	LastBlockUnix int64 `json:"lastBlockUnix"`

	Accounts    map[string]uint64 `json:"accounts"`
	AccountKeys map[string][]byte `json:"accountKeys,omitempty"` // addr -> ed25519 pubkey (32 bytes)
	NonceMax    map[string]uint64 `json:"nonceMax,omitempty"`    // signer -> last accepted tx.nonce (u64), for replay protection

	Params Params `json:"params"`

	// AdminAccount may sweep CollectedFees. It never touches game funds.
	AdminAccount  string `json:"adminAccount,omitempty"`
	CollectedFees uint64 `json:"collectedFees"`

	NextGameID uint64 `json:"nextGameId"`
	// ActiveGameID is the most recently created game, 0 if none. Creation
	// returns the id explicitly and all later calls pass it back; this field
	// only enforces the one-active-game-at-a-time rule.
	ActiveGameID uint64           `json:"activeGameId,omitempty"`
	Games        map[uint64]*Game `json:"games"`

	Stats       map[string]*UserStats `json:"stats,omitempty"`
	Leaderboard []LeaderboardEntry    `json:"leaderboard,omitempty"`

	Beacon *BeaconState `json:"beacon,omitempty"`
}

func NewState() *State {
	return &State{
		Height:      0,
		Accounts:    map[string]uint64{},
		AccountKeys: map[string][]byte{},
		NonceMax:    map[string]uint64{},
		Params:      DefaultParams(),
		NextGameID:  1,
		Games:       map[uint64]*Game{},
		Stats:       map[string]*UserStats{},
		Beacon:      NewBeaconState(),
	}
}

func Load(home string) (*State, error) {
	path := filepath.Join(home, "state.json")
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewState(), nil
		}
		return nil, fmt.Errorf("read state: %w", err)
	}
	var st State
	if err := json.Unmarshal(b, &st); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	st.normalize()
	return &st, nil
}

func (s *State) Save(home string) error {
	if err := os.MkdirAll(home, 0o755); err != nil {
		return fmt.Errorf("mkdir home: %w", err)
	}
	path := filepath.Join(home, "state.json")
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return nil
}

// Clone returns a deep copy of state suitable for staged tx execution. Each tx
// runs against a clone that is swapped in only on success, so a failed
// transfer can never leave partial bookkeeping behind.
func (s *State) Clone() (*State, error) {
	if s == nil {
		return nil, fmt.Errorf("state is nil")
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode state clone: %w", err)
	}
	var out State
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode state clone: %w", err)
	}
	out.normalize()
	return &out, nil
}

func (s *State) normalize() {
	if s.Accounts == nil {
		s.Accounts = map[string]uint64{}
	}
	if s.AccountKeys == nil {
		s.AccountKeys = map[string][]byte{}
	}
	if s.NonceMax == nil {
		s.NonceMax = map[string]uint64{}
	}
	if s.Games == nil {
		s.Games = map[uint64]*Game{}
	}
	if s.Stats == nil {
		s.Stats = map[string]*UserStats{}
	}
	if s.NextGameID == 0 {
		s.NextGameID = 1
	}
	if s.Beacon == nil {
		s.Beacon = NewBeaconState()
	}
	if s.Beacon.Records == nil {
		s.Beacon.Records = map[string][]byte{}
	}
	s.Params = s.Params.Normalized()
	for _, g := range s.Games {
		g.normalize()
	}
}

func (s *State) AppHash() []byte {
	// Deterministic JSON hash: marshal with stable key ordering by serializing
	// a normalized view.
	//
	// Note: encoding/json does NOT guarantee map key order, so we manually
	// normalize maps into slices.
	type accountKV struct {
		Addr    string `json:"addr"`
		Balance uint64 `json:"balance"`
	}
	type accountKeyKV struct {
		Addr   string `json:"addr"`
		PubKey []byte `json:"pubKey"`
	}
	type nonceKV struct {
		Signer string `json:"signer"`
		Nonce  uint64 `json:"nonce"`
	}
	type betKV struct {
		Addr string   `json:"addr"`
		Bets *BetPair `json:"bets"`
	}
	type gameKV struct {
		ID   uint64  `json:"id"`
		Game *Game   `json:"game"`
		Bets []betKV `json:"bets"`
	}
	type statKV struct {
		Addr  string     `json:"addr"`
		Stats *UserStats `json:"stats"`
	}
	type recordKV struct {
		Key   string `json:"key"`
		Value []byte `json:"value"`
	}

	accounts := make([]accountKV, 0, len(s.Accounts))
	for k, v := range s.Accounts {
		accounts = append(accounts, accountKV{Addr: k, Balance: v})
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Addr < accounts[j].Addr })

	accountKeys := make([]accountKeyKV, 0, len(s.AccountKeys))
	for k, v := range s.AccountKeys {
		accountKeys = append(accountKeys, accountKeyKV{Addr: k, PubKey: v})
	}
	sort.Slice(accountKeys, func(i, j int) bool { return accountKeys[i].Addr < accountKeys[j].Addr })

	nonces := make([]nonceKV, 0, len(s.NonceMax))
	for k, v := range s.NonceMax {
		nonces = append(nonces, nonceKV{Signer: k, Nonce: v})
	}
	sort.Slice(nonces, func(i, j int) bool { return nonces[i].Signer < nonces[j].Signer })

	games := make([]gameKV, 0, len(s.Games))
	for id, g := range s.Games {
		bets := make([]betKV, 0, len(g.Bets))
		for addr, bp := range g.Bets {
			bets = append(bets, betKV{Addr: addr, Bets: bp})
		}
		sort.Slice(bets, func(i, j int) bool { return bets[i].Addr < bets[j].Addr })
		games = append(games, gameKV{ID: id, Game: g, Bets: bets})
	}
	sort.Slice(games, func(i, j int) bool { return games[i].ID < games[j].ID })

	stats := make([]statKV, 0, len(s.Stats))
	for k, v := range s.Stats {
		stats = append(stats, statKV{Addr: k, Stats: v})
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Addr < stats[j].Addr })

	var records []recordKV
	var beaconLastRound uint64
	if s.Beacon != nil {
		beaconLastRound = s.Beacon.LastRound
		records = make([]recordKV, 0, len(s.Beacon.Records))
		for k, v := range s.Beacon.Records {
			records = append(records, recordKV{Key: k, Value: v})
		}
		sort.Slice(records, func(i, j int) bool { return records[i].Key < records[j].Key })
	}

	normalized := struct {
		Height        int64              `json:"height"`
		LastBlockUnix int64              `json:"lastBlockUnix"`
		Accounts      []accountKV        `json:"accounts"`
		AccountKeys   []accountKeyKV     `json:"accountKeys,omitempty"`
		NonceMax      []nonceKV          `json:"nonceMax,omitempty"`
		Params        Params             `json:"params"`
		AdminAccount  string             `json:"adminAccount,omitempty"`
		CollectedFees uint64             `json:"collectedFees"`
		NextGameID    uint64             `json:"nextGameId"`
		ActiveGameID  uint64             `json:"activeGameId"`
		Games         []gameKV           `json:"games"`
		Stats         []statKV           `json:"stats,omitempty"`
		Leaderboard   []LeaderboardEntry `json:"leaderboard,omitempty"`
		BeaconRound   uint64             `json:"beaconLastRound"`
		BeaconRecords []recordKV         `json:"beaconRecords,omitempty"`
	}{
		Height:        s.Height,
		LastBlockUnix: s.LastBlockUnix,
		Accounts:      accounts,
		AccountKeys:   accountKeys,
		NonceMax:      nonces,
		Params:        s.Params,
		AdminAccount:  s.AdminAccount,
		CollectedFees: s.CollectedFees,
		NextGameID:    s.NextGameID,
		ActiveGameID:  s.ActiveGameID,
		Games:         games,
		Stats:         stats,
		Leaderboard:   s.Leaderboard,
		BeaconRound:   beaconLastRound,
		BeaconRecords: records,
	}

	b, _ := json.Marshal(normalized)
	sum := sha256.Sum256(b)
	return sum[:]
}

// ---- Bank ----

func (s *State) Balance(addr string) uint64 {
	return s.Accounts[addr]
}

func (s *State) Credit(addr string, amount uint64) error {
	bal := s.Accounts[addr]
	if bal > ^uint64(0)-amount {
		return fmt.Errorf("balance overflow: have=%d add=%d", bal, amount)
	}
	s.Accounts[addr] = bal + amount
	return nil
}

func (s *State) Debit(addr string, amount uint64) error {
	bal := s.Accounts[addr]
	if bal < amount {
		return fmt.Errorf("insufficient funds: have=%d need=%d", bal, amount)
	}
	s.Accounts[addr] = bal - amount
	return nil
}

// ---- Stats ----

func (s *State) StatsFor(addr string) *UserStats {
	st := s.Stats[addr]
	if st == nil {
		st = &UserStats{}
		s.Stats[addr] = st
	}
	return st
}
