package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/nao1215/iocchecker/internal/dedup"
	"github.com/nao1215/iocchecker/internal/model"
	"github.com/nao1215/iocchecker/internal/report"
	"github.com/nao1215/iocchecker/internal/repository"
	"github.com/nao1215/iocchecker/internal/rulefile"
	"github.com/nao1215/iocchecker/internal/token"
)

// DiscoverStep expands the run directories into the list of rule files.
type DiscoverStep struct {
	extension string
	logger    *slog.Logger
}

// NewDiscoverStep creates a discovery step for files with extension.
func NewDiscoverStep(extension string, logger *slog.Logger) *DiscoverStep {
	if extension == "" {
		extension = rulefile.Extension
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DiscoverStep{extension: extension, logger: logger}
}

// Name returns the step name.
func (s *DiscoverStep) Name() string {
	return "discover"
}

// Do executes the discovery step.
func (s *DiscoverStep) Do(_ context.Context, run *model.Run) error {
	d, err := rulefile.Discover(run.Directories, s.extension)
	if err != nil {
		return fmt.Errorf("discovery failed: %w", err)
	}

	run.Files = d.Files
	run.DirectoryInfo = d.Directories
	run.Stats.FilesDiscovered = len(d.Files)

	for _, dir := range d.Empty {
		s.logger.Warn("no rule files found", "directory", dir)
		run.Warnf("no %s files found in %s", s.extension, dir)
	}

	s.logger.Info("rule files discovered",
		"files", len(d.Files),
		"directories", len(d.Directories),
	)
	return nil
}

// ExtractStep decodes and extracts every discovered file and aggregates
// the results.
type ExtractStep struct {
	batch  *BatchProcessor
	logger *slog.Logger
}

// NewExtractStep creates an extraction step backed by batch.
func NewExtractStep(batch *BatchProcessor, logger *slog.Logger) *ExtractStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExtractStep{batch: batch, logger: logger}
}

// Name returns the step name.
func (s *ExtractStep) Name() string {
	return "extract"
}

// Do executes the extraction step.
func (s *ExtractStep) Do(ctx context.Context, run *model.Run) error {
	results, err := s.batch.Process(ctx, run.Files)
	if err != nil {
		return fmt.Errorf("extraction interrupted: %w", err)
	}

	run.Results = results
	for _, r := range results {
		if r.Err != nil {
			if errors.Is(r.Err, rulefile.ErrUnsupportedFileType) {
				run.Stats.FilesRejected++
			} else {
				run.Stats.FilesSkipped++
			}
			s.logger.Warn("rule file skipped", "file", r.File, "error", r.Err)
			run.Warnf("%v", r.Err)
			continue
		}

		run.Stats.FilesExtracted++
		run.Stats.ValuesExtracted += len(r.Extractions)
		run.Stats.ValuesDropped += r.Dropped
	}

	run.Occurrences = dedup.Aggregate(results)

	s.logger.Info("values extracted",
		"files", run.Stats.FilesExtracted,
		"values", run.Stats.ValuesExtracted,
		"dropped", run.Stats.ValuesDropped,
	)
	return nil
}

// DetectStep finds the values that occur more than once in the run.
type DetectStep struct{}

// NewDetectStep creates a duplicate detection step.
func NewDetectStep() *DetectStep {
	return &DetectStep{}
}

// Name returns the step name.
func (s *DetectStep) Name() string {
	return "detect"
}

// Do executes the detection step.
func (s *DetectStep) Do(_ context.Context, run *model.Run) error {
	run.Findings = dedup.Detect(run.Occurrences)
	return nil
}

// MergeStep merges the run into the persistent repository.
type MergeStep struct {
	merger *repository.Merger
}

// NewMergeStep creates a merge step using merger.
func NewMergeStep(merger *repository.Merger) *MergeStep {
	return &MergeStep{merger: merger}
}

// Name returns the step name.
func (s *MergeStep) Name() string {
	return "merge"
}

// Do executes the merge step. Repository failures are recorded on the run
// and never fail the step.
func (s *MergeStep) Do(_ context.Context, run *model.Run) error {
	occ := run.Occurrences
	if occ == nil {
		occ = model.NewOccurrences()
	}

	res := s.merger.Run(run.RepositoryPath, occ)
	run.Merge = model.MergeSummary{
		NewValues:      res.NewCount,
		RepositorySize: res.Size,
		StoredValues:   res.StoredValues,
		Duplicates:     res.Duplicates,
		LoadFailed:     res.LoadErr != nil,
		WriteFailed:    res.WriteErr != nil,
	}

	if res.LoadErr != nil {
		run.Warnf("%v", res.LoadErr)
	}
	if res.BackupPath != "" {
		run.Warnf("corrupt repository preserved as %s", res.BackupPath)
	}
	if res.WriteErr != nil {
		run.Warnf("%v", res.WriteErr)
	}
	return nil
}

// ReportStep writes the run reports into the output directory.
type ReportStep struct {
	markdown bool
}

// NewReportStep creates a report step. markdown adds the Markdown
// duplicates report.
func NewReportStep(markdown bool) *ReportStep {
	return &ReportStep{markdown: markdown}
}

// reportOutput is one report file and the writer that renders it.
type reportOutput struct {
	name      string
	newWriter func(io.Writer) report.Writer
}

// Name returns the step name.
func (s *ReportStep) Name() string {
	return "report"
}

// Do executes the report step.
func (s *ReportStep) Do(_ context.Context, run *model.Run) error {
	outputs := []reportOutput{
		{name: report.ExtractedValuesFileName, newWriter: report.NewExtractedValuesReport},
		{name: report.DuplicatesFileName(run.StartedAt), newWriter: report.NewDuplicatesReport},
	}
	if s.markdown {
		outputs = append(outputs, reportOutput{
			name:      report.DuplicatesMarkdownFileName(run.StartedAt),
			newWriter: report.NewMarkdownReport,
		})
	}

	for _, o := range outputs {
		path := filepath.Join(run.OutputDir, o.name)
		if err := report.WriteFile(path, o.newWriter, run); err != nil {
			return fmt.Errorf("failed to write %s: %w", o.name, err)
		}
		run.Outputs = append(run.Outputs, o.name)
	}
	return nil
}

// AuditStep appends the run to the audit log in the output directory.
type AuditStep struct {
	logger *slog.Logger
}

// NewAuditStep creates an audit step.
func NewAuditStep(logger *slog.Logger) *AuditStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditStep{logger: logger}
}

// Name returns the step name.
func (s *AuditStep) Name() string {
	return "audit"
}

// Do executes the audit step. A failed append is recorded as a warning.
func (s *AuditStep) Do(_ context.Context, run *model.Run) error {
	audit := report.NewAuditLog(filepath.Join(run.OutputDir, report.AuditLogFileName))
	err := audit.Append(report.AuditEntry{
		ExecutedAt:     run.StartedAt,
		NewValues:      run.Merge.NewValues,
		RepositorySize: run.Merge.RepositorySize,
		ResultFiles:    run.Outputs,
		RepositoryPath: run.RepositoryPath,
		ExecutedBy:     run.ExecutedBy,
		Hostname:       run.Hostname,
	})
	if err != nil {
		s.logger.Warn("audit log not updated", "path", audit.Path(), "error", err)
		run.Warnf("audit log not updated: %v", err)
	}
	return nil
}

// HistoryRecorder stores finished runs. *database.HistoryDB implements it.
type HistoryRecorder interface {
	SaveRun(ctx context.Context, run *model.Run) error
}

// HistoryStep records the run in the history database.
type HistoryStep struct {
	recorder HistoryRecorder
	logger   *slog.Logger
}

// NewHistoryStep creates a history step writing to recorder.
func NewHistoryStep(recorder HistoryRecorder, logger *slog.Logger) *HistoryStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &HistoryStep{recorder: recorder, logger: logger}
}

// Name returns the step name.
func (s *HistoryStep) Name() string {
	return "history"
}

// Do executes the history step. A failed save is logged and recorded as a
// warning.
func (s *HistoryStep) Do(ctx context.Context, run *model.Run) error {
	if err := s.recorder.SaveRun(ctx, run); err != nil {
		s.logger.Warn("run history not recorded", "run", run.ID, "error", err)
		run.Warnf("run history not recorded: %v", err)
	}
	return nil
}

// DefaultPipelineConfig holds configuration for the default pipeline.
type DefaultPipelineConfig struct {
	// Extension is the rule file extension.
	Extension string

	// Workers is the number of files decoded concurrently.
	Workers int

	// Filter selects the tokens to extract.
	Filter rulefile.TokenFilter

	// Markdown enables the Markdown duplicates report.
	Markdown bool

	// History receives the finished run. Nil disables the history step.
	History HistoryRecorder

	// MergerOptions configure the repository merger.
	MergerOptions []repository.MergerOption
}

// DefaultPipelineOption configures a DefaultPipelineConfig.
type DefaultPipelineOption func(*DefaultPipelineConfig)

// WithPipelineExtension sets the rule file extension.
func WithPipelineExtension(ext string) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Extension = ext
	}
}

// WithPipelineWorkers sets the number of files decoded concurrently.
func WithPipelineWorkers(n int) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Workers = n
	}
}

// WithPipelineFilter sets the token filter.
func WithPipelineFilter(filter rulefile.TokenFilter) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Filter = filter
	}
}

// WithPipelineMarkdown enables or disables the Markdown report.
func WithPipelineMarkdown(enabled bool) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Markdown = enabled
	}
}

// WithPipelineHistory records runs in recorder.
func WithPipelineHistory(recorder HistoryRecorder) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.History = recorder
	}
}

// WithPipelineMergerOptions passes options to the repository merger.
func WithPipelineMergerOptions(opts ...repository.MergerOption) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.MergerOptions = append(c.MergerOptions, opts...)
	}
}

// DefaultPipeline creates a pipeline with all run steps configured:
// discover, extract, detect, merge, report, audit and, when a history
// recorder is set, history.
//
// The first parameter accepts pipeline options (WithLogger, etc).
// The variadic parameter accepts pipeline config options.
func DefaultPipeline(pipelineOpts []Option, configOpts ...DefaultPipelineOption) *Pipeline {
	p := New(pipelineOpts...)
	logger := p.Logger()

	cfg := &DefaultPipelineConfig{
		Extension: rulefile.Extension,
		Workers:   DefaultConcurrency,
	}
	for _, opt := range configOpts {
		opt(cfg)
	}
	if cfg.Filter == nil {
		cfg.Filter = token.NewAllowList()
	}

	decoder := rulefile.NewDecoder(rulefile.WithExtension(cfg.Extension))
	batch := NewBatchProcessor(
		decoder,
		rulefile.NewExtractor(cfg.Filter),
		WithConcurrency(cfg.Workers),
		WithBatchLogger(logger),
	)
	mergerOpts := append([]repository.MergerOption{repository.WithLogger(logger)}, cfg.MergerOptions...)

	p.AddSteps(
		NewDiscoverStep(decoder.Extension(), logger),
		NewExtractStep(batch, logger),
		NewDetectStep(),
		NewMergeStep(repository.NewMerger(mergerOpts...)),
		NewReportStep(cfg.Markdown),
		NewAuditStep(logger),
	)
	if cfg.History != nil {
		p.AddStep(NewHistoryStep(cfg.History, logger))
	}

	return p
}
