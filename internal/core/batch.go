package core

// batch.go runs the classifier over every uploaded file.
//
// Each file is parsed and classified by its own task in an errgroup. A task
// fills a private FileResult; finished results are appended to the merged
// sequence under a mutex, so files appear in the order their tasks complete
// and rows inside a file keep their parse order. Nothing is returned until
// every task has finished.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// ctxCheckInterval is how many rows a task classifies between context checks.
const ctxCheckInterval = 1000

// BatchOptions bounds one run. Zero values disable the corresponding cap.
type BatchOptions struct {
	Workers     int
	MaxFiles    int
	MaxFileSize int64
	Timeout     time.Duration
	Logger      *slog.Logger
}

// BatchResult is the merged outcome of a run.
type BatchResult struct {
	Files   []FileResult // completion order
	Rows    []ResultRow
	Emitted int
	Dropped int
}

// CheckFiles enforces the file-count and file-size caps.
func CheckFiles(files []SourceFile, maxFiles int, maxFileSize int64) error {
	if maxFiles > 0 && len(files) > maxFiles {
		return fmt.Errorf("%d files selected, limit is %d: %w", len(files), maxFiles, ErrTooManyFiles)
	}
	if maxFileSize > 0 {
		for _, f := range files {
			if f.Size() > maxFileSize {
				return fmt.Errorf("%s is %d bytes, limit is %d: %w", f.Name, f.Size(), maxFileSize, ErrFileTooLarge)
			}
		}
	}
	return nil
}

// RunBatch classifies all files with c. It fails only on a cap violation,
// a timeout or cancellation; a file that cannot be read contributes the rows
// parsed before the error.
func RunBatch(ctx context.Context, files []SourceFile, c Classifier, opts BatchOptions) (BatchResult, error) {
	if err := CheckFiles(files, opts.MaxFiles, opts.MaxFileSize); err != nil {
		return BatchResult{}, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	g, gctx := errgroup.WithContext(ctx)
	if opts.Workers > 0 {
		g.SetLimit(opts.Workers)
	}

	var (
		mu     sync.Mutex
		merged BatchResult
	)

	for _, f := range files {
		g.Go(func() error {
			fr, err := classifyFile(gctx, f, c)
			if err != nil {
				return fmt.Errorf("classify %s: %w", f.Name, err)
			}
			if fr.ReadErr != "" {
				logger.Warn("file read stopped early",
					"file", f.Name,
					"rows_read", fr.DataRows,
					"error", fr.ReadErr,
					"code", MapError(errors.New(fr.ReadErr)).Code,
				)
			}

			mu.Lock()
			merged.Files = append(merged.Files, fr)
			merged.Rows = append(merged.Rows, fr.Rows...)
			merged.Emitted += len(fr.Rows)
			merged.Dropped += fr.Dropped
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return BatchResult{}, err
	}
	return merged, nil
}

// classifyFile parses f, skips its header row and classifies the rest.
func classifyFile(ctx context.Context, f SourceFile, c Classifier) (FileResult, error) {
	parsed := ParseFile(f)
	fr := FileResult{FileName: f.Name}
	if parsed.Err != nil {
		fr.ReadErr = parsed.Err.Error()
	}
	if len(parsed.Rows) <= 1 {
		return fr, nil
	}

	data := parsed.Rows[1:]
	fr.DataRows = len(data)
	fr.Rows = make([]ResultRow, 0, len(data))
	for i, raw := range data {
		if i%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return FileResult{}, err
			}
		}
		row, ok := c.Classify(raw)
		if !ok {
			fr.Dropped++
			continue
		}
		row.SourceFile = f.Name
		fr.Rows = append(fr.Rows, row)
	}
	return fr, nil
}
