package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	applog "github.com/nao1215/iocchecker/internal/log"
	"github.com/nao1215/iocchecker/internal/model"
	"github.com/nao1215/iocchecker/internal/rulefile"
	"github.com/nao1215/iocchecker/internal/token"
)

// ruleContent returns a rule document with one process condition per value.
func ruleContent(values ...string) string {
	conditions := ""
	for i, v := range values {
		if i > 0 {
			conditions += ","
		}
		conditions += fmt.Sprintf(`{"token": "processEvent/process", "value": %q}`, v)
	}
	return `{"detection": {"execution": [[` + conditions + `]]}}`
}

// writeFile creates a file below dir and returns its path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

// newTestBatch returns a processor with the built-in allow-list.
func newTestBatch(opts ...BatchOption) *BatchProcessor {
	return NewBatchProcessor(
		rulefile.NewDecoder(),
		rulefile.NewExtractor(token.NewAllowList()),
		append([]BatchOption{WithBatchLogger(quietLogger())}, opts...)...,
	)
}

// TestBatchProcessorNew tests the BatchProcessor constructor.
func TestBatchProcessorNew(t *testing.T) {
	t.Parallel()

	t.Run("creates processor with defaults", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(rulefile.NewDecoder(), rulefile.NewExtractor(token.NewAllowList()))

		if bp.Concurrency() != DefaultConcurrency {
			t.Errorf("expected default concurrency %d, got %d", DefaultConcurrency, bp.Concurrency())
		}
		if bp.logger == nil {
			t.Error("expected non-nil logger")
		}
	})

	t.Run("applies WithConcurrency option", func(t *testing.T) {
		t.Parallel()

		bp := newTestBatch(WithConcurrency(5))

		if bp.Concurrency() != 5 {
			t.Errorf("expected concurrency 5, got %d", bp.Concurrency())
		}
	})

	t.Run("ignores non-positive concurrency", func(t *testing.T) {
		t.Parallel()

		bp := newTestBatch(WithConcurrency(0))

		if bp.Concurrency() != DefaultConcurrency {
			t.Errorf("expected concurrency %d, got %d", DefaultConcurrency, bp.Concurrency())
		}
	})
}

// TestBatchProcessorProcess tests that results keep discovery order.
func TestBatchProcessorProcess(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	var files []string
	for i := range 20 {
		files = append(files, writeFile(t, dir, fmt.Sprintf("rule%02d.rule", i), ruleContent(fmt.Sprintf("proc%02d.exe", i))))
	}
	files = append(files,
		writeFile(t, dir, "broken.rule", "{not json"),
		writeFile(t, dir, "notes.txt", ruleContent("ignored.exe")),
	)

	for _, workers := range []int{1, 3, 16} {
		t.Run(fmt.Sprintf("%d workers", workers), func(t *testing.T) {
			t.Parallel()

			var calls atomic.Int32
			bp := newTestBatch(
				WithConcurrency(workers),
				WithFileCallback(func(model.FileExtraction) { calls.Add(1) }),
			)

			results, err := bp.Process(context.Background(), files)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(results) != len(files) {
				t.Fatalf("expected %d results, got %d", len(files), len(results))
			}
			if int(calls.Load()) != len(files) {
				t.Errorf("expected %d callbacks, got %d", len(files), calls.Load())
			}

			for i := range 20 {
				r := results[i]
				if r.Index != i || r.File != files[i] {
					t.Errorf("result %d out of place: index %d file %s", i, r.Index, r.File)
				}
				if r.Err != nil || len(r.Extractions) != 1 {
					t.Fatalf("result %d: unexpected %+v", i, r)
				}
				if got := r.Extractions[0].Value.String(); got != fmt.Sprintf("proc%02d.exe", i) {
					t.Errorf("result %d: got value %s", i, got)
				}
			}

			if !errors.Is(results[20].Err, rulefile.ErrParseFailure) {
				t.Errorf("expected parse failure, got %v", results[20].Err)
			}
			if !errors.Is(results[21].Err, rulefile.ErrUnsupportedFileType) {
				t.Errorf("expected unsupported file type, got %v", results[21].Err)
			}
		})
	}
}

// TestBatchProcessorCancelled tests that a cancelled context stops the batch.
func TestBatchProcessorCancelled(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	files := []string{
		writeFile(t, dir, "a.rule", ruleContent("a.exe")),
		writeFile(t, dir, "b.rule", ruleContent("b.exe")),
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := newTestBatch().Process(ctx, files)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(results) != len(files) {
		t.Fatalf("expected %d placeholder results, got %d", len(files), len(results))
	}
	for i, r := range results {
		if r.Index != i || r.File != files[i] {
			t.Errorf("placeholder %d: unexpected %+v", i, r)
		}
	}
}

// TestBatchProcessorEmpty tests an empty file list.
func TestBatchProcessorEmpty(t *testing.T) {
	t.Parallel()

	results, err := newTestBatch().Process(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

// TestBatchProcessorLogsValuesRedacted tests that extracted values are logged
// at debug level with credentials redacted and the token visible.
func TestBatchProcessorLogsValuesRedacted(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "lateral.rule", `{"detection": {"execution": [[
		{"token": "processEvent/processCmdLine", "value": "net use \\\\h /user:x password=hunter2"},
		{"token": "processEvent/process", "value": "net.exe"}
	]]}}`)

	var buf bytes.Buffer
	bp := NewBatchProcessor(
		rulefile.NewDecoder(),
		rulefile.NewExtractor(token.NewAllowList()),
		WithBatchLogger(applog.NewSecureLogger(&buf, true)),
	)

	results, err := bp.Process(context.Background(), []string{path})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results[0].Err != nil || len(results[0].Extractions) != 2 {
		t.Fatalf("unexpected result: %+v", results[0])
	}

	output := buf.String()
	if strings.Count(output, "value extracted") != 2 {
		t.Errorf("expected 2 extracted values logged, got: %s", output)
	}
	for _, want := range []string{"processEvent/processCmdLine", "net.exe", "password=" + applog.MaskValue} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got: %s", want, output)
		}
	}
	if strings.Contains(output, "hunter2") {
		t.Errorf("credential leaked: %s", output)
	}
}
