package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "queuectl",
		Short: "Operations on the membership email queue",
		Long: `queuectl runs the same queue sweeps as the background worker.
Intended for cron or a scheduler when the web process runs without the worker.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to YAML config (overrides CONFIG_PATH)")

	rootCmd.AddCommand(drainCmd())
	rootCmd.AddCommand(checkExpiringCmd())
	rootCmd.AddCommand(requeueFailedCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(pendingWebhooksCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
