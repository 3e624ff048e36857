package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewTokensCmd creates the tokens command.
func NewTokensCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tokens",
		Short: "List the fields whose values are extracted",
		Long: `Tokens prints the effective allow-list: the built-in fields, minus the ones
disabled in the configuration file, plus any extra fields and patterns.`,
		Args: cobra.NoArgs,
		RunE: runTokensCmd,
	}

	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .iocchecker in current or home directory)")

	return cmd
}

// runTokensCmd executes the tokens command.
func runTokensCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadBaseConfig(cmd)
	if err != nil {
		return err
	}

	allow := cfg.AllowList()
	out := cmd.OutOrStdout()

	for _, c := range allow.Categories() {
		fmt.Fprintf(out, "%s (%d)\n", c.Name, len(c.Tokens))
		for _, t := range c.Tokens {
			fmt.Fprintf(out, "  %s\n", t)
		}
	}

	if patterns := allow.Patterns(); len(patterns) > 0 {
		fmt.Fprintf(out, "patterns (%d)\n", len(patterns))
		for _, p := range patterns {
			fmt.Fprintf(out, "  %s\n", p)
		}
	}
	return nil
}
