package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nao1215/iocchecker/internal/config"
)

// NewRootCmd creates the root command for iocchecker.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "iocchecker",
		Short: "Find duplicate IOC values across detection rules",
		Long: `iocchecker scans detection-rule files (*.rule), extracts the values of known
event fields, and reports values that appear in more than one rule.

Every value is also merged into a persistent repository so that later runs
flag values that were already seen, even when they occur only once.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().String("log-format", config.LogFormatText, "Log format: text or json")

	cmd.AddCommand(NewScanCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewTokensCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
