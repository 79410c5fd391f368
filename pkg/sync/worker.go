package sync

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sdejongh/foldermirror/pkg/models"
	"github.com/sdejongh/foldermirror/pkg/ratelimit"
	"github.com/sdejongh/foldermirror/pkg/storage"
)

// TransferFunc receives the outcome of one transfer. A non-nil return
// stops the remaining transfers.
type TransferFunc func(op models.Operation, start time.Time, written int64, err error) error

// Worker runs file transfers in parallel
type Worker struct {
	source     storage.Backend
	replica    storage.Backend
	maxWorkers int
	limiter    *ratelimit.Limiter
}

// NewWorker creates a new worker pool. A nil limiter leaves reads
// unthrottled.
func NewWorker(source, replica storage.Backend, maxWorkers int, limiter *ratelimit.Limiter) *Worker {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &Worker{
		source:     source,
		replica:    replica,
		maxWorkers: maxWorkers,
		limiter:    limiter,
	}
}

// Execute copies every operation from source to replica with at most
// maxWorkers transfers in flight. It returns once all started transfers
// have finished.
func (w *Worker) Execute(ctx context.Context, operations []models.Operation, done TransferFunc) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.maxWorkers)

	for _, op := range operations {
		if gctx.Err() != nil {
			break
		}

		op := op
		g.Go(func() error {
			start := time.Now()
			written, err := w.copyFile(gctx, op)

			// Transfers interrupted by cancellation are not entry failures
			if err != nil && gctx.Err() != nil {
				return gctx.Err()
			}
			return done(op, start, written, err)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// copyFile copies one file through a temporary file in the replica
func (w *Worker) copyFile(ctx context.Context, op models.Operation) (int64, error) {
	// Stat again: the file may have changed since the scan
	info, err := w.source.Stat(ctx, op.RelativePath)
	if err != nil {
		return 0, fmt.Errorf("failed to get source metadata: %w", err)
	}
	if info.IsDir {
		return 0, fmt.Errorf("source is now a directory")
	}

	reader, err := w.source.Read(ctx, op.RelativePath)
	if err != nil {
		return 0, fmt.Errorf("failed to read source: %w", err)
	}
	defer reader.Close()

	src := ratelimit.NewReader(ctx, reader, w.limiter)
	if err := w.replica.Write(ctx, op.RelativePath, src, info.Size, info); err != nil {
		return 0, fmt.Errorf("failed to write replica: %w", err)
	}

	return info.Size, nil
}
