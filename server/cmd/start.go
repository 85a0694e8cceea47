package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/julienstroheker/portrelay/internal/config"
	"github.com/julienstroheker/portrelay/internal/logging"
	"github.com/julienstroheker/portrelay/internal/relay"
	"github.com/julienstroheker/portrelay/server/listener"
	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start relaying every configured route",
	Long:  `Bind every route's source port and relay connections until interrupted`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRelay(cmd)
	},
}

func init() {
	rootCmd.AddCommand(startCmd)
	startCmd.Flags().String(config.KeyListenHost, config.DefaultHost, "Host source ports are bound on")
	startCmd.Flags().String(config.KeyTargetHost, config.DefaultHost, "Host destination ports are dialed on")
	startCmd.Flags().Duration(config.KeyConnectTimeout, config.DefaultConnectTimeout,
		"Bound on each destination connect attempt (0 disables it)")
	startCmd.Flags().Duration(config.KeyShutdownTimeout, config.DefaultShutdownTimeout,
		"How long in-flight relays are drained on shutdown")
}

func runRelay(cmd *cobra.Command) error {
	table, err := config.LoadRoutes(cfg.RoutesFile)
	if err != nil {
		return err
	}

	logger.Info("Starting proxy",
		logging.String("routes_file", cfg.RoutesFile),
		logging.Int("routes", len(table)),
		logging.Duration("connect_timeout", cfg.ConnectTimeout))
	for _, route := range table {
		logger.Debug("Route loaded", logging.String("route", route.String()))
	}

	selector := relay.NewSelector(&relay.SelectorOptions{
		Host:           cfg.TargetHost,
		ConnectTimeout: cfg.ConnectTimeout,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := listener.Run(ctx, logger, table, &listener.RunOptions{
		ListenHost:      cfg.ListenHost,
		Selector:        selector,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}); err != nil {
		return err
	}

	logger.Info("Relay stopped")
	return nil
}
