package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"os/user"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nao1215/iocchecker/internal/config"
	"github.com/nao1215/iocchecker/internal/database"
	applog "github.com/nao1215/iocchecker/internal/log"
	"github.com/nao1215/iocchecker/internal/model"
	"github.com/nao1215/iocchecker/internal/pipeline"
)

// NewScanCmd creates the scan command.
func NewScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [directory...]",
		Short: "Scan rule files for duplicate IOC values",
		Long: `Scan walks the given directories recursively, extracts the values of known
event fields from every *.rule file and writes:

- extracted_values.json    every extracted value and how often it was seen
- duplicates_<date>.txt    values seen more than once in this scan, and values
                           already present in the repository ([REPO])
- duplicates_<date>.md     the same findings as Markdown (--markdown)
- audit_log.txt            one entry per run
- repository.json          all values seen so far, grouped by field

Directories may contain glob wildcards and may be separated by commas.
When no directory is given, the directories of the configuration file are
scanned.

Examples:
  # Scan one directory and write results to the current directory
  iocchecker scan ./rules

  # Scan several directories, write results elsewhere
  iocchecker scan ./rules/windows,./rules/linux -o ./results

  # Use a shared repository and also write a Markdown report
  iocchecker scan ./rules -r /srv/iocs/repository.json -m

  # Use a custom configuration file
  iocchecker scan -c myconfig.yaml`,
		Args: cobra.ArbitraryArgs,
		RunE: runScanCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultOutputDir,
		"Directory to save the results")
	cmd.Flags().StringP("repository", "r", "",
		"Repository file path (default: repository.json in the output directory)")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .iocchecker in current or home directory)")
	cmd.Flags().IntP("workers", "w", config.DefaultWorkers,
		"Number of rule files decoded in parallel")
	cmd.Flags().StringP("extension", "e", config.DefaultExtension,
		"Rule file extension")
	cmd.Flags().BoolP("markdown", "m", false,
		"Also write the duplicates report as Markdown")
	cmd.Flags().Bool("no-history", false,
		"Do not record this run in the history database")
	cmd.Flags().String("db-dir", "",
		"History database directory (default: XDG data directory)")

	return cmd
}

// runScanCmd executes the scan command.
func runScanCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cfg.LogFormat, cfg.Verbose, cmd.ErrOrStderr())
	slog.SetDefault(logger)

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return runScan(ctx, cfg, logger, cmd.OutOrStdout())
}

// loadBaseConfig returns the defaults overlaid with the configuration file,
// .env and IOCCHECKER_* variables. An explicit --config that does not exist
// is an error; a missing default file is not.
func loadBaseConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()

	var configPath string
	if cmd.Flags().Lookup("config") != nil {
		var err error
		configPath, err = cmd.Flags().GetString("config")
		if err != nil {
			return nil, err
		}
	}

	path := config.FindConfigFile(configPath)
	switch {
	case path != "":
		f, err := config.LoadConfigFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
		cfg.ApplyFile(f)
		cfg.ConfigFilePath = path
	case configPath != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, configPath)
	}

	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	if flagChanged(cmd, "verbose") {
		cfg.Verbose = getVerboseFlag(cmd)
	}
	if flagChanged(cmd, "log-format") {
		format, err := cmd.Flags().GetString("log-format")
		if err != nil {
			return nil, err
		}
		cfg.LogFormat = strings.ToLower(format)
	}

	return cfg, nil
}

// buildConfig creates the scan Config. Flags set on the command line take
// precedence over every other source.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg, err := loadBaseConfig(cmd)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()

	if flags.Changed("output") {
		if cfg.OutputDir, err = flags.GetString("output"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("repository") {
		if cfg.RepositoryPath, err = flags.GetString("repository"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("workers") {
		if cfg.Workers, err = flags.GetInt("workers"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("extension") {
		ext, err := flags.GetString("extension")
		if err != nil {
			return nil, err
		}
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		cfg.Extension = ext
	}
	if flags.Changed("markdown") {
		if cfg.Markdown, err = flags.GetBool("markdown"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("no-history") {
		noHistory, err := flags.GetBool("no-history")
		if err != nil {
			return nil, err
		}
		cfg.SaveHistory = !noHistory
	}
	if flags.Changed("db-dir") {
		if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
			return nil, err
		}
	}

	if dirs := splitDirectories(args); len(dirs) > 0 {
		cfg.Directories = dirs
	}

	return cfg, nil
}

// splitDirectories splits comma-separated arguments and drops blanks.
func splitDirectories(args []string) []string {
	dirs := make([]string, 0, len(args))
	for _, arg := range args {
		for _, d := range strings.Split(arg, ",") {
			if d = strings.TrimSpace(d); d != "" {
				dirs = append(dirs, d)
			}
		}
	}
	return dirs
}

// flagChanged reports whether the named flag exists on cmd and was set.
func flagChanged(cmd *cobra.Command, name string) bool {
	f := cmd.Flags().Lookup(name)
	return f != nil && f.Changed
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// setupLogger creates the secret-masking logger for the given format.
func setupLogger(format string, verbose bool, w io.Writer) *slog.Logger {
	if format == config.LogFormatJSON {
		return applog.NewSecureJSONLogger(w, verbose)
	}
	return applog.NewSecureLogger(w, verbose)
}

// currentIdentity returns the user name and hostname recorded in the audit
// log. Lookup failures yield "unknown".
func currentIdentity() (string, string) {
	username := "unknown"
	if u, err := user.Current(); err == nil && u.Username != "" {
		username = u.Username
	} else if v := os.Getenv("USER"); v != "" {
		username = v
	} else if v := os.Getenv("USERNAME"); v != "" {
		username = v
	}

	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "unknown"
	}
	return username, hostname
}

// openHistory opens the history database, or returns nil and records a
// warning when it cannot be opened.
func openHistory(cfg *config.Config, run *model.Run, logger *slog.Logger) *database.HistoryDB {
	if !cfg.SaveHistory {
		return nil
	}

	db, err := database.Open(cfg.DBDir, database.DefaultOptions())
	if err != nil {
		logger.Warn("run history disabled", "dir", cfg.DBDir, "error", err)
		run.Warnf("run history disabled: %v", err)
		return nil
	}
	logger.Debug("database opened", "path", db.Path())
	return db
}

// runScan executes the scan.
func runScan(ctx context.Context, cfg *config.Config, logger *slog.Logger, out io.Writer) error {
	startTime := time.Now()

	run := model.NewRun(uuid.NewString(), cfg.Directories, startTime)
	run.OutputDir = cfg.OutputDir
	run.RepositoryPath = cfg.RepositoryFile()
	run.ExecutedBy, run.Hostname = currentIdentity()

	logger.Info("starting scan",
		"run", run.ID,
		"directories", cfg.Directories,
		"workers", cfg.Workers,
		"repository", run.RepositoryPath,
	)

	configOpts := []pipeline.DefaultPipelineOption{
		pipeline.WithPipelineExtension(cfg.Extension),
		pipeline.WithPipelineWorkers(cfg.Workers),
		pipeline.WithPipelineFilter(cfg.AllowList()),
		pipeline.WithPipelineMarkdown(cfg.Markdown),
	}
	if db := openHistory(cfg, run, logger); db != nil {
		defer db.Close()
		configOpts = append(configOpts, pipeline.WithPipelineHistory(db))
	}

	p := pipeline.DefaultPipeline([]pipeline.Option{pipeline.WithLogger(logger)}, configOpts...)
	if err := p.Execute(ctx, run); err != nil {
		if errors.Is(err, context.Canceled) {
			return errors.New("scan cancelled")
		}
		return fmt.Errorf("scan failed: %w", err)
	}

	printSummary(out, run, time.Since(startTime))
	return nil
}

// printSummary writes the human-readable result of a run.
func printSummary(out io.Writer, run *model.Run, elapsed time.Duration) {
	var totalBytes int64
	for _, info := range run.DirectoryInfo {
		totalBytes += info.Bytes
	}

	s := run.Stats
	fmt.Fprintf(out, "Run %s\n\n", run.ID)
	fmt.Fprintf(out, "  Rule files:         %s (%s)\n", humanize.Comma(int64(s.FilesDiscovered)), humanize.IBytes(uint64(max(totalBytes, 0))))
	fmt.Fprintf(out, "  Extracted:          %s files, %s values\n", humanize.Comma(int64(s.FilesExtracted)), humanize.Comma(int64(s.ValuesExtracted)))
	if s.FilesSkipped > 0 || s.FilesRejected > 0 {
		fmt.Fprintf(out, "  Not extracted:      %d unreadable, %d unsupported\n", s.FilesSkipped, s.FilesRejected)
	}
	fmt.Fprintf(out, "  Duplicates:         %s in this run, %s already in repository\n",
		humanize.Comma(int64(run.Findings.Len())), humanize.Comma(int64(run.RepositoryFindings().Len())))
	fmt.Fprintf(out, "  Repository:         %s (%s fields, %s values)\n",
		run.RepositoryPath, humanize.Comma(int64(run.Merge.RepositorySize)), humanize.Comma(int64(run.Merge.StoredValues)))

	if len(run.Warnings) > 0 {
		fmt.Fprintf(out, "\nWarnings (%d):\n", len(run.Warnings))
		for _, w := range run.Warnings {
			fmt.Fprintf(out, "  ! %s\n", w)
		}
	}

	fmt.Fprintf(out, "\nExtraction completed in %s. Results saved to '%s'.\n", elapsed.Round(time.Millisecond), run.OutputDir)
	fmt.Fprintf(out, "Total number of new IOCs: %s\n", humanize.Comma(int64(run.Merge.NewValues)))
}
