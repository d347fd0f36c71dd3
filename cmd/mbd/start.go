package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"cosmossdk.io/log"
	"github.com/cometbft/cometbft/abci/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"minoritybet/internal/app"
)

func startCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Run the ABCI application server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := log.NewLogger(os.Stderr)

			a, err := app.New(viper.GetString("home"), logger)
			if err != nil {
				return fmt.Errorf("init app: %w", err)
			}

			srv, err := server.NewServer(viper.GetString("addr"), viper.GetString("transport"), a)
			if err != nil {
				return fmt.Errorf("build abci server: %w", err)
			}
			if err := srv.Start(); err != nil {
				return fmt.Errorf("start abci server: %w", err)
			}
			defer func() { _ = srv.Stop() }()

			logger.Info("abci server running", "addr", viper.GetString("addr"))

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			<-sigCh
			return nil
		},
	}

	cmd.Flags().String("home", ".mbt", "app home directory (state is stored under <home>/app)")
	cmd.Flags().String("addr", "tcp://127.0.0.1:26658", "ABCI listen address")
	cmd.Flags().String("transport", "socket", "ABCI transport (socket|grpc)")
	for _, name := range []string{"home", "addr", "transport"} {
		_ = viper.BindPFlag(name, cmd.Flags().Lookup(name))
	}
	return cmd
}
