package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/iocchecker/internal/model"
	"github.com/nao1215/iocchecker/internal/rulefile"
)

// DefaultConcurrency is the number of files decoded at once when no
// concurrency is configured.
const DefaultConcurrency = 4

// BatchProcessor decodes and extracts rule files concurrently.
// Results keep discovery order whatever the concurrency.
type BatchProcessor struct {
	decoder   *rulefile.Decoder
	extractor *rulefile.Extractor

	// concurrency is the maximum number of files processed at once.
	concurrency int

	// logger is used for batch-level logging.
	logger *slog.Logger

	// onFile is called after each file, from the goroutine that handled it.
	onFile func(result model.FileExtraction)
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of files processed at once.
// Values below 1 keep the default.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithFileCallback registers fn to be called after each file. fn must be
// safe for concurrent use.
func WithFileCallback(fn func(result model.FileExtraction)) BatchOption {
	return func(b *BatchProcessor) {
		b.onFile = fn
	}
}

// NewBatchProcessor creates a BatchProcessor using dec and x for every file.
func NewBatchProcessor(dec *rulefile.Decoder, x *rulefile.Extractor, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		decoder:     dec,
		extractor:   x,
		concurrency: DefaultConcurrency,
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// Concurrency returns the configured worker limit.
func (bp *BatchProcessor) Concurrency() int {
	return bp.concurrency
}

// Process decodes and extracts files. The result at position i belongs to
// files[i]. Per-file failures are reported in FileExtraction.Err and do not
// stop the batch; only cancellation does, in which case the returned error
// is the context error and unprocessed positions hold only Index and File.
func (bp *BatchProcessor) Process(ctx context.Context, files []string) ([]model.FileExtraction, error) {
	bp.logger.Debug("starting batch processing",
		"total_files", len(files),
		"concurrency", bp.concurrency,
	)

	startTime := time.Now()

	// Pre-allocate so each goroutine writes only its own slot.
	results := make([]model.FileExtraction, len(files))
	for i, path := range files {
		results[i] = model.FileExtraction{Index: i, File: path}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, path := range files {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			result := bp.extractor.ExtractFile(bp.decoder, i, path)
			results[i] = result

			if result.Err != nil {
				bp.logger.Debug("file not extracted",
					"file", path,
					"error", result.Err,
				)
			}
			if bp.logger.Enabled(ctx, slog.LevelDebug) {
				for _, e := range result.Extractions {
					bp.logger.Debug("value extracted",
						"token", e.Token,
						"value", e.Value,
						"file", e.File,
					)
				}
			}
			if bp.onFile != nil {
				bp.onFile(result)
			}

			return nil
		})
	}

	err := g.Wait()

	bp.logger.Debug("batch processing complete",
		"total_files", len(files),
		"elapsed", time.Since(startTime),
	)

	return results, err
}
