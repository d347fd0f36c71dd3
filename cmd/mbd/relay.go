package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cosmossdk.io/log"
	rpchttp "github.com/cometbft/cometbft/rpc/client/http"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"minoritybet/internal/beacon"
	"minoritybet/internal/codec"
)

// relayCmd runs the permissionless beacon relayer: it polls a drand-compatible
// HTTP endpoint, caches observed pulses locally, and submits each new pulse to
// the chain as a beacon/submit tx. The relayer holds no keys; submissions are
// verified and deduplicated on-chain.
func relayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Relay beacon pulses to the chain",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := log.NewLogger(os.Stderr).With("module", "relay")

			cache, err := beacon.OpenLevelDBStore(viper.GetString("relay-db"))
			if err != nil {
				return fmt.Errorf("open relay cache: %w", err)
			}
			defer func() { _ = cache.Close() }()

			rpc, err := rpchttp.New(viper.GetString("node"))
			if err != nil {
				return fmt.Errorf("dial node rpc: %w", err)
			}
			client := beacon.NewHTTPClient(viper.GetString("beacon-url"))

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			info, err := client.Info(ctx)
			if err != nil {
				return fmt.Errorf("beacon info: %w", err)
			}
			logger.Info("beacon chain", "periodSecs", info.PeriodSecs, "genesisUnix", info.GenesisUnix)

			interval := viper.GetDuration("interval")
			if interval <= 0 {
				interval = time.Duration(info.PeriodSecs) * time.Second / 2
			}
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			for {
				if err := relayOnce(ctx, logger, client, cache, rpc); err != nil {
					logger.Error("relay pass failed", "err", err)
				}
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
				}
			}
		},
	}

	cmd.Flags().String("node", "http://127.0.0.1:26657", "CometBFT RPC address")
	cmd.Flags().String("beacon-url", "https://api.drand.sh", "drand-compatible beacon HTTP endpoint")
	cmd.Flags().String("relay-db", ".mbt/relay.db", "local pulse cache path")
	cmd.Flags().Duration("interval", 0, "poll interval (default: half the beacon period)")
	for _, name := range []string{"node", "beacon-url", "relay-db", "interval"} {
		_ = viper.BindPFlag(name, cmd.Flags().Lookup(name))
	}
	return cmd
}

// relayOnce submits every pulse between the last relayed round and the
// beacon's current head, fetching gaps individually so restarts and slow polls
// never skip a round.
func relayOnce(ctx context.Context, logger log.Logger, client *beacon.HTTPClient, cache *beacon.LevelDBStore, rpc *rpchttp.HTTP) error {
	latest, err := client.Latest(ctx)
	if err != nil {
		return fmt.Errorf("fetch latest pulse: %w", err)
	}
	last, err := cache.LastRound()
	if err != nil {
		return fmt.Errorf("read relay watermark: %w", err)
	}
	if last == 0 && latest.Round > 1 {
		// Fresh cache: start from the head rather than replaying history.
		last = latest.Round - 1
	}

	for round := last + 1; round <= latest.Round; round++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		pulse := latest
		if round != latest.Round {
			pulse, err = client.Pulse(ctx, round)
			if err != nil {
				return fmt.Errorf("fetch pulse %d: %w", round, err)
			}
		}
		payload, err := beacon.EncodeEnvelope(pulse.Round, pulse.Randomness, pulse.Signature)
		if err != nil {
			return fmt.Errorf("encode pulse %d: %w", pulse.Round, err)
		}
		if err := cache.Put(beacon.DeriveRecordKey(pulse.Round), payload); err != nil {
			return fmt.Errorf("cache pulse %d: %w", pulse.Round, err)
		}

		if err := broadcastPulse(ctx, rpc, pulse.Round, payload); err != nil {
			return fmt.Errorf("submit pulse %d: %w", pulse.Round, err)
		}
		if err := cache.SetLastRound(pulse.Round); err != nil {
			return fmt.Errorf("advance relay watermark: %w", err)
		}
		logger.Info("relayed pulse", "round", pulse.Round)
	}
	return nil
}

func broadcastPulse(ctx context.Context, rpc *rpchttp.HTTP, round uint64, payload []byte) error {
	value, err := json.Marshal(codec.BeaconSubmitTx{Round: round, Payload: payload})
	if err != nil {
		return err
	}
	tx, err := json.Marshal(codec.TxEnvelope{Type: "beacon/submit", Value: value})
	if err != nil {
		return err
	}
	res, err := rpc.BroadcastTxSync(ctx, tx)
	if err != nil {
		return err
	}
	if res.Code != 0 {
		return fmt.Errorf("tx rejected: code=%d log=%q", res.Code, res.Log)
	}
	return nil
}
