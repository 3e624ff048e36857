package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/nao1215/iocchecker/internal/model"
	"github.com/nao1215/iocchecker/internal/report"
	"github.com/nao1215/iocchecker/internal/repository"
)

// quietLogger discards all output.
func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeRecorder records saved runs.
type fakeRecorder struct {
	mu   sync.Mutex
	runs []*model.Run
	err  error
}

// SaveRun implements HistoryRecorder.
func (f *fakeRecorder) SaveRun(_ context.Context, run *model.Run) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.runs = append(f.runs, run)
	return nil
}

// newScanRun prepares a run over rulesDir writing into outDir.
func newScanRun(rulesDir, outDir string) *model.Run {
	run := newTestRun()
	run.Directories = []string{rulesDir}
	run.OutputDir = outDir
	run.RepositoryPath = filepath.Join(outDir, repository.FileName)
	run.ExecutedBy = "analyst"
	run.Hostname = "workstation"
	return run
}

// TestStepNames tests that every step reports its name.
func TestStepNames(t *testing.T) {
	t.Parallel()

	tests := []struct {
		step Step
		want string
	}{
		{step: NewDiscoverStep("", nil), want: "discover"},
		{step: NewExtractStep(newTestBatch(), nil), want: "extract"},
		{step: NewDetectStep(), want: "detect"},
		{step: NewMergeStep(repository.NewMerger()), want: "merge"},
		{step: NewReportStep(false), want: "report"},
		{step: NewAuditStep(nil), want: "audit"},
		{step: NewHistoryStep(&fakeRecorder{}, nil), want: "history"},
	}

	for _, tt := range tests {
		if got := tt.step.Name(); got != tt.want {
			t.Errorf("expected %s, got %s", tt.want, got)
		}
	}
}

// TestDefaultPipeline tests a complete run and a repeated run over the same
// rules.
func TestDefaultPipeline(t *testing.T) {
	t.Parallel()

	rulesDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "out")
	writeFile(t, rulesDir, "a.rule", `{"detection": {"execution": [[
		{"token": "processEvent/process", "value": "svchost.exe"},
		{"token": "ipv4NetworkEvent/remotePort", "value": 445},
		{"token": "processEvent/unknownField", "value": "x"}
	]]}}`)
	writeFile(t, rulesDir, "nested/b.rule", ruleContent("svchost.exe"))
	writeFile(t, rulesDir, "broken.rule", "{")
	writeFile(t, rulesDir, "readme.md", "not a rule")

	recorder := &fakeRecorder{}
	newPipeline := func() *Pipeline {
		return DefaultPipeline(
			[]Option{WithLogger(quietLogger())},
			WithPipelineWorkers(2),
			WithPipelineMarkdown(true),
			WithPipelineHistory(recorder),
			WithPipelineMergerOptions(repository.WithLogger(quietLogger())),
		)
	}

	p := newPipeline()
	want := "discover,extract,detect,merge,report,audit,history"
	if got := strings.Join(p.StepNames(), ","); got != want {
		t.Fatalf("expected steps %s, got %s", want, got)
	}

	first := newScanRun(rulesDir, outDir)
	if err := p.Execute(context.Background(), first); err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	wantStats := model.Stats{
		FilesDiscovered: 3,
		FilesExtracted:  2,
		FilesSkipped:    1,
		ValuesExtracted: 3,
		ValuesDropped:   1,
	}
	if first.Stats != wantStats {
		t.Errorf("expected stats %+v, got %+v", wantStats, first.Stats)
	}

	dups := first.Findings.Lookup("processEvent/process")
	if len(dups) != 1 || dups[0].Value.String() != "svchost.exe" || dups[0].Count != 2 {
		t.Errorf("unexpected in-run findings: %+v", first.Findings)
	}

	// svchost.exe from b.rule is already present once a.rule was merged.
	if first.Merge.NewValues != 2 || len(first.Merge.Duplicates) != 1 {
		t.Errorf("unexpected merge summary: %+v", first.Merge)
	}
	if first.Merge.RepositorySize != 2 || first.Merge.StoredValues != 2 {
		t.Errorf("unexpected repository size: %+v", first.Merge)
	}

	for _, name := range []string{
		report.ExtractedValuesFileName,
		report.DuplicatesFileName(first.StartedAt),
		report.DuplicatesMarkdownFileName(first.StartedAt),
		report.AuditLogFileName,
		repository.FileName,
	} {
		if _, err := os.Stat(filepath.Join(outDir, name)); err != nil {
			t.Errorf("expected %s to exist: %v", name, err)
		}
	}
	if len(first.Outputs) != 3 {
		t.Errorf("expected 3 outputs, got %v", first.Outputs)
	}
	if len(first.Warnings) != 1 || !strings.Contains(first.Warnings[0], "broken.rule") {
		t.Errorf("expected one warning for broken.rule, got %v", first.Warnings)
	}

	second := newScanRun(rulesDir, outDir)
	if err := newPipeline().Execute(context.Background(), second); err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if second.Merge.NewValues != 0 {
		t.Errorf("expected no new values on repeat, got %d", second.Merge.NewValues)
	}
	if len(second.Merge.Duplicates) != 3 {
		t.Errorf("expected every extraction to be a repository duplicate, got %d", len(second.Merge.Duplicates))
	}
	if second.Merge.StoredValues != first.Merge.StoredValues {
		t.Errorf("repository size changed on repeat: %d -> %d", first.Merge.StoredValues, second.Merge.StoredValues)
	}

	if len(recorder.runs) != 2 {
		t.Errorf("expected 2 recorded runs, got %d", len(recorder.runs))
	}

	audit, err := os.ReadFile(filepath.Join(outDir, report.AuditLogFileName))
	if err != nil {
		t.Fatalf("failed to read audit log: %v", err)
	}
	if strings.Count(string(audit), "Audit Log") != 1 {
		t.Errorf("expected audit header once, got:\n%s", audit)
	}
	if strings.Count(string(audit), "Executed by: analyst") != 2 {
		t.Errorf("expected two audit entries, got:\n%s", audit)
	}
}

// TestDefaultPipelineWithoutHistory tests that history is optional.
func TestDefaultPipelineWithoutHistory(t *testing.T) {
	t.Parallel()

	p := DefaultPipeline([]Option{WithLogger(quietLogger())})
	for _, name := range p.StepNames() {
		if name == "history" {
			t.Error("expected no history step without a recorder")
		}
	}
}

// TestEmptyScan tests a run over directories without rule files.
func TestEmptyScan(t *testing.T) {
	t.Parallel()

	rulesDir := t.TempDir()
	outDir := t.TempDir()

	p := DefaultPipeline(
		[]Option{WithLogger(quietLogger())},
		WithPipelineMergerOptions(repository.WithLogger(quietLogger())),
	)
	run := newScanRun(rulesDir, outDir)
	if err := p.Execute(context.Background(), run); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if run.Stats.FilesDiscovered != 0 || run.Merge.NewValues != 0 {
		t.Errorf("expected an empty run, got %+v %+v", run.Stats, run.Merge)
	}
	if len(run.Warnings) != 1 || !strings.Contains(run.Warnings[0], rulesDir) {
		t.Errorf("expected a warning for the empty directory, got %v", run.Warnings)
	}

	dups, err := os.ReadFile(filepath.Join(outDir, report.DuplicatesFileName(run.StartedAt)))
	if err != nil {
		t.Fatalf("failed to read duplicates report: %v", err)
	}
	if string(dups) != "Duplicate values:\n" {
		t.Errorf("expected header-only report, got %q", dups)
	}
}

// TestExtractStepCounts tests how failures are counted.
func TestExtractStepCounts(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	run := newTestRun()
	run.Files = []string{
		writeFile(t, dir, "ok.rule", ruleContent("a.exe", "b.exe")),
		writeFile(t, dir, "bad.rule", "[1,"),
		writeFile(t, dir, "other.json", ruleContent("c.exe")),
		filepath.Join(dir, "missing.rule"),
	}

	if err := NewExtractStep(newTestBatch(), quietLogger()).Do(context.Background(), run); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := model.Stats{
		FilesExtracted:  1,
		FilesSkipped:    2,
		FilesRejected:   1,
		ValuesExtracted: 2,
	}
	if run.Stats != want {
		t.Errorf("expected %+v, got %+v", want, run.Stats)
	}
	if run.Occurrences.Len() != 2 {
		t.Errorf("expected 2 occurrences, got %d", run.Occurrences.Len())
	}
	if len(run.Warnings) != 3 {
		t.Errorf("expected 3 warnings, got %v", run.Warnings)
	}
}

// TestExtractStepCancelled tests that cancellation fails the step.
func TestExtractStepCancelled(t *testing.T) {
	t.Parallel()

	run := newTestRun()
	run.Files = []string{writeFile(t, t.TempDir(), "a.rule", ruleContent("a.exe"))}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewExtractStep(newTestBatch(), quietLogger()).Do(ctx, run)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

// TestMergeStepCorruptRepository tests that repository failures become
// warnings.
func TestMergeStepCorruptRepository(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	run := newScanRun(dir, dir)
	if err := os.WriteFile(run.RepositoryPath, []byte("{corrupt"), 0o600); err != nil {
		t.Fatalf("failed to write repository: %v", err)
	}

	step := NewMergeStep(repository.NewMerger(repository.WithLogger(quietLogger())))
	if err := step.Do(context.Background(), run); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !run.Merge.LoadFailed || run.Merge.WriteFailed {
		t.Errorf("unexpected merge flags: %+v", run.Merge)
	}
	if len(run.Warnings) != 2 {
		t.Errorf("expected load and backup warnings, got %v", run.Warnings)
	}
}

// TestReportStepFailure tests that an unwritable output directory fails
// the step.
func TestReportStepFailure(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	blocker := writeFile(t, dir, "file", "x")

	run := newTestRun()
	run.OutputDir = blocker

	if err := NewReportStep(false).Do(context.Background(), run); err == nil {
		t.Fatal("expected error when the output directory is a file")
	}
	if len(run.Outputs) != 0 {
		t.Errorf("expected no outputs, got %v", run.Outputs)
	}
}

// TestAuditStepFailure tests that audit failures become warnings.
func TestAuditStepFailure(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	run := newTestRun()
	run.OutputDir = writeFile(t, dir, "file", "x")

	if err := NewAuditStep(quietLogger()).Do(context.Background(), run); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(run.Warnings) != 1 {
		t.Errorf("expected one warning, got %v", run.Warnings)
	}
}

// TestHistoryStepFailure tests that history failures become warnings.
func TestHistoryStepFailure(t *testing.T) {
	t.Parallel()

	recorder := &fakeRecorder{err: errors.New("database locked")}
	run := newTestRun()

	if err := NewHistoryStep(recorder, quietLogger()).Do(context.Background(), run); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(run.Warnings) != 1 || !strings.Contains(run.Warnings[0], "database locked") {
		t.Errorf("expected history warning, got %v", run.Warnings)
	}
}
