package cmd

import (
	"fmt"
	"os"

	"github.com/julienstroheker/portrelay/internal/config"
	"github.com/julienstroheker/portrelay/internal/logging"
	"github.com/spf13/cobra"
)

var (
	cfg    *config.Config
	logger *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "portrelay",
	Short: "Local TCP port relay with destination fallback",
	Long: `portrelay - forwards local TCP ports to the first reachable port
of an ordered destination list.

Routes are read from a file with one "<source> -> <destination>" per line.
Repeating a source port adds a fallback destination.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cmd.Flags())
		if err != nil {
			return err
		}
		if err := loaded.Validate(); err != nil {
			return err
		}
		cfg = loaded

		// Logs go to stderr so command output on stdout stays machine-readable
		logger = logging.NewWithOutput(logging.ParseLevel(cfg.LogLevel), cmd.ErrOrStderr())
		logger.SetFormat(logging.ParseFormat(cfg.LogFormat.String()))
		logger.Debug("Logger initialized",
			logging.String("level", logger.Level().String()),
			logging.String("format", cfg.LogFormat.String()),
		)
		return nil
	},
}

func init() {
	// Disable default completion and help commands
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	rootCmd.PersistentFlags().StringP(config.KeyRoutesFile, "c", config.DefaultRoutesFile, "Path of the route file")
	rootCmd.PersistentFlags().BoolP(config.KeyVerbose, "v", false, "Enable verbose logging (debug level)")
	rootCmd.PersistentFlags().Bool(config.KeyJSON, false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String(config.KeyLogLevel, config.DefaultLogLevel, "Log level (debug, info, warn, error)")
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// GetLogger returns the global logger instance
func GetLogger() *logging.Logger {
	return logger
}

// GetConfig returns the global config instance
func GetConfig() *config.Config {
	return cfg
}
