package beacon

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPClient talks to a drand-compatible HTTP endpoint. Only the relayer uses
// it; consensus code never performs network IO.
type HTTPClient struct {
	base string
	hc   *http.Client
}

func NewHTTPClient(base string) *HTTPClient {
	return &HTTPClient{
		base: base,
		hc:   &http.Client{Timeout: 10 * time.Second},
	}
}

type ChainInfo struct {
	PeriodSecs  uint64 `json:"period"`
	GenesisUnix int64  `json:"genesis_time"`
}

type Pulse struct {
	Round      uint64
	Randomness []byte
	Signature  []byte
}

func (c *HTTPClient) Info(ctx context.Context) (ChainInfo, error) {
	var info ChainInfo
	if err := c.getJSON(ctx, c.base+"/info", &info); err != nil {
		return ChainInfo{}, err
	}
	if info.PeriodSecs == 0 {
		return ChainInfo{}, fmt.Errorf("beacon info: zero period")
	}
	return info, nil
}

func (c *HTTPClient) Latest(ctx context.Context) (Pulse, error) {
	return c.fetch(ctx, c.base+"/public/latest")
}

func (c *HTTPClient) Pulse(ctx context.Context, round uint64) (Pulse, error) {
	return c.fetch(ctx, fmt.Sprintf("%s/public/%d", c.base, round))
}

func (c *HTTPClient) fetch(ctx context.Context, url string) (Pulse, error) {
	var raw struct {
		Round      uint64 `json:"round"`
		Randomness string `json:"randomness"`
		Signature  string `json:"signature"`
	}
	if err := c.getJSON(ctx, url, &raw); err != nil {
		return Pulse{}, err
	}
	randomness, err := hex.DecodeString(raw.Randomness)
	if err != nil {
		return Pulse{}, fmt.Errorf("beacon pulse %d: bad randomness hex: %w", raw.Round, err)
	}
	if len(randomness) != RandomnessLen {
		return Pulse{}, fmt.Errorf("beacon pulse %d: randomness is %d bytes, want %d", raw.Round, len(randomness), RandomnessLen)
	}
	sig, err := hex.DecodeString(raw.Signature)
	if err != nil {
		return Pulse{}, fmt.Errorf("beacon pulse %d: bad signature hex: %w", raw.Round, err)
	}
	return Pulse{Round: raw.Round, Randomness: randomness, Signature: sig}, nil
}

func (c *HTTPClient) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
