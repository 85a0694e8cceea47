package cmd

import (
	"fmt"

	"github.com/julienstroheker/portrelay/internal/config"
	"github.com/julienstroheker/portrelay/internal/logging"
	"github.com/spf13/cobra"
)

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "Print the merged route table",
	Long:  `Parse the route file and print one line per source port, without binding anything`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		table, err := config.LoadRoutes(cfg.RoutesFile)
		if err != nil {
			return err
		}
		logger.Debug("Loaded route file",
			logging.String("path", cfg.RoutesFile),
			logging.Int("routes", len(table)))

		for _, route := range table {
			if _, err := fmt.Fprintln(cmd.OutOrStdout(), route.String()); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(routesCmd)
}
