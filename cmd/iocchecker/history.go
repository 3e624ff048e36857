package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/nao1215/iocchecker/internal/database"
	"github.com/nao1215/iocchecker/internal/model"
)

// defaultHistoryLimit is the number of runs listed by default.
const defaultHistoryLimit = 10

// shortIDLength is the run ID prefix shown in listings.
const shortIDLength = 8

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show previous runs and the duplicates they found",
		Long: `History displays runs recorded by 'iocchecker scan'.

Without arguments the most recent runs are listed. With a run ID (or a unique
prefix of one) the run and every duplicate it reported are shown. With
--value, the runs that flagged the given value are listed.

Examples:
  # List the last 10 runs
  iocchecker history

  # List the last 50 runs
  iocchecker history -n 50

  # Show one run
  iocchecker history 3f2a9c1e

  # Find every run that flagged a value
  iocchecker history --value svchost.exe`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().IntP("limit", "n", defaultHistoryLimit,
		"Number of runs to list (0 lists every run)")
	cmd.Flags().String("value", "",
		"List the runs that flagged this value")
	cmd.Flags().String("db-dir", "",
		"History database directory (default: XDG data directory)")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .iocchecker in current or home directory)")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadBaseConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("db-dir") {
		if cfg.DBDir, err = cmd.Flags().GetString("db-dir"); err != nil {
			return err
		}
	}

	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	value, err := cmd.Flags().GetString("value")
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	if _, err := os.Stat(filepath.Join(cfg.DBDir, database.FileName)); errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(out, "No run history found in %s\n", cfg.DBDir)
		return nil
	}

	db, err := database.Open(cfg.DBDir, database.Options{CreateIfNotExists: false, EnableWAL: true})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := context.Background()

	switch {
	case value != "":
		return findValue(ctx, out, db, value)
	case len(args) == 1:
		return showRun(ctx, out, db, args[0])
	default:
		return listRuns(ctx, out, db, limit)
	}
}

// listRuns prints the most recent runs.
func listRuns(ctx context.Context, out io.Writer, db *database.HistoryDB, limit int) error {
	runs, err := db.ListRuns(ctx, limit)
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded yet")
		return nil
	}

	fmt.Fprintf(out, "Recent runs (%d):\n\n", len(runs))
	fmt.Fprintf(out, "  %-8s  %-20s  %8s  %8s  %8s  %s\n", "ID", "Date", "Files", "Values", "New", "Directories")
	for _, r := range runs {
		fmt.Fprintf(out, "  %-8s  %-20s  %8s  %8s  %8s  %s\n",
			shortID(r.ID),
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			humanize.Comma(int64(r.Stats.FilesExtracted)),
			humanize.Comma(int64(r.Stats.ValuesExtracted)),
			humanize.Comma(int64(r.NewValues)),
			strings.Join(r.Directories, ", "),
		)
	}
	return nil
}

// showRun prints one run with its duplicates.
func showRun(ctx context.Context, out io.Writer, db *database.HistoryDB, id string) error {
	r, err := db.GetRun(ctx, id)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Run %s\n\n", r.ID)
	fmt.Fprintf(out, "  Date:        %s (%s)\n", r.StartedAt.Local().Format("2006-01-02 15:04:05"), humanize.Time(r.StartedAt))
	fmt.Fprintf(out, "  Executed by: %s@%s\n", r.ExecutedBy, r.Hostname)
	fmt.Fprintf(out, "  Directories: %s\n", strings.Join(r.Directories, ", "))
	fmt.Fprintf(out, "  Files:       %d discovered, %d extracted, %d unreadable, %d unsupported\n",
		r.Stats.FilesDiscovered, r.Stats.FilesExtracted, r.Stats.FilesSkipped, r.Stats.FilesRejected)
	fmt.Fprintf(out, "  Values:      %d extracted, %d ignored, %d new\n",
		r.Stats.ValuesExtracted, r.Stats.ValuesDropped, r.NewValues)
	fmt.Fprintf(out, "  Repository:  %s (%d fields, %d values)\n", r.RepositoryPath, r.RepositorySize, r.StoredValues)
	if len(r.Outputs) > 0 {
		fmt.Fprintf(out, "  Results:     %s\n", strings.Join(r.Outputs, ", "))
	}
	if r.Warnings > 0 {
		fmt.Fprintf(out, "  Warnings:    %d\n", r.Warnings)
	}

	if len(r.Duplicates) == 0 {
		fmt.Fprintln(out, "\nNo duplicate values")
		return nil
	}

	fmt.Fprintf(out, "\nDuplicate values (%d):\n", len(r.Duplicates))
	for _, d := range r.Duplicates {
		prefix := ""
		if d.Source == database.SourceRepository {
			prefix = model.RepositoryTag + " "
		}
		fmt.Fprintf(out, "\n  %s%s: %s (Count: %d)\n", prefix, d.Token, d.Value, d.Count)
		for i, f := range d.Files {
			fmt.Fprintf(out, "    %d. %s\n", i+1, f)
		}
	}
	return nil
}

// findValue prints the runs that flagged value.
func findValue(ctx context.Context, out io.Writer, db *database.HistoryDB, value string) error {
	hits, err := db.FindValue(ctx, value)
	if err != nil {
		return err
	}

	if len(hits) == 0 {
		fmt.Fprintf(out, "No run flagged %s\n", value)
		return nil
	}

	fmt.Fprintf(out, "Runs that flagged %s (%d):\n\n", value, len(hits))
	fmt.Fprintf(out, "  %-8s  %-20s  %-10s  %5s  %s\n", "ID", "Date", "Source", "Count", "Token")
	for _, h := range hits {
		fmt.Fprintf(out, "  %-8s  %-20s  %-10s  %5d  %s\n",
			shortID(h.RunID),
			h.StartedAt.Local().Format("2006-01-02 15:04:05"),
			h.Source,
			h.Count,
			h.Token,
		)
	}
	return nil
}

// shortID returns the displayed prefix of a run ID.
func shortID(id string) string {
	if len(id) > shortIDLength {
		return id[:shortIDLength]
	}
	return id
}
