// Package sync mirrors a source tree onto a replica tree in one pass.
package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sdejongh/foldermirror/pkg/compare"
	"github.com/sdejongh/foldermirror/pkg/logging"
	"github.com/sdejongh/foldermirror/pkg/models"
	"github.com/sdejongh/foldermirror/pkg/output"
	"github.com/sdejongh/foldermirror/pkg/ratelimit"
	"github.com/sdejongh/foldermirror/pkg/storage"
	"github.com/sdejongh/foldermirror/pkg/tree"
)

var (
	// ErrSourceNotFound is returned when the source root does not exist
	ErrSourceNotFound = errors.New("source directory not found")

	// ErrPassAborted is returned when fail-fast stops a pass on the first
	// per-entry error
	ErrPassAborted = errors.New("pass aborted")
)

// Engine reconciles a replica with its source. It keeps no state between
// passes; every call rescans both trees.
type Engine struct {
	source     storage.Backend
	replica    storage.Backend
	comparator compare.Comparator
	formatter  output.Formatter
	logger     logging.Logger
	operation  *models.SyncOperation

	scanner *tree.Scanner
	limiter *ratelimit.Limiter
}

// NewEngine creates a new sync engine. A nil formatter or logger discards
// that output.
func NewEngine(
	source, replica storage.Backend,
	comparator compare.Comparator,
	formatter output.Formatter,
	logger logging.Logger,
	operation *models.SyncOperation,
) (*Engine, error) {
	if err := operation.Validate(); err != nil {
		return nil, err
	}

	matcher, err := tree.NewMatcher(operation.ExcludePatterns)
	if err != nil {
		return nil, err
	}

	if comparator == nil {
		comparator = compare.NewMetadataComparator(0)
	}
	if formatter == nil {
		formatter = output.Null{}
	}
	if logger == nil {
		logger = logging.NewNullLogger()
	}

	return &Engine{
		source:     source,
		replica:    replica,
		comparator: comparator,
		formatter:  formatter,
		logger:     logger,
		operation:  operation,
		scanner:    tree.NewScanner(matcher),
		limiter:    ratelimit.NewLimiter(operation.BandwidthLimit),
	}, nil
}

// Plan scans both trees and returns the operations a pass would apply
func (e *Engine) Plan(ctx context.Context) (*models.Plan, error) {
	src, rep, err := e.scan(ctx)
	if err != nil {
		return nil, err
	}
	return e.plan(ctx, src, rep)
}

// Synchronize performs one full pass. Per-entry failures are logged,
// recorded in the report and skipped; the returned error is reserved for
// failures that stop the pass (missing source, cancellation, fail-fast).
func (e *Engine) Synchronize(ctx context.Context) (*models.SyncReport, error) {
	report := &models.SyncReport{
		ID:          uuid.New().String(),
		SourcePath:  e.source.Root(),
		ReplicaPath: e.replica.Root(),
		DryRun:      e.operation.DryRun,
		StartTime:   time.Now(),
		Status:      models.StatusSuccess,
	}
	logger := e.logger.WithFields(logging.Fields{"pass": report.ID})

	logger.Debug(ctx, "Starting pass", logging.Fields{
		"source":      report.SourcePath,
		"replica":     report.ReplicaPath,
		"comparison":  e.comparator.Name(),
		"max_workers": e.operation.MaxWorkers,
		"dry_run":     report.DryRun,
	})

	err := e.run(ctx, logger, report)
	e.finish(ctx, logger, report, err)
	return report, err
}

func (e *Engine) run(ctx context.Context, logger logging.Logger, report *models.SyncReport) error {
	src, rep, err := e.scan(ctx)
	if err != nil {
		return err
	}

	report.Stats.SourceFiles = len(src.Files)
	report.Stats.SourceDirs = len(src.Dirs)
	report.Stats.ReplicaFiles = len(rep.Files)
	report.Stats.ReplicaDirs = len(rep.Dirs)

	plan, err := e.plan(ctx, src, rep)
	if err != nil {
		return err
	}

	report.Stats.FilesSkipped = plan.Identical
	for _, pe := range plan.Errors {
		report.Errors = append(report.Errors, pe)
		report.Stats.Errors++
		logger.Error(ctx, "Failed to inspect "+pe.FilePath, errors.New(pe.Error), logging.Fields{"path": pe.FilePath})
	}
	if e.operation.FailFast && len(plan.Errors) > 0 {
		first := plan.Errors[0]
		return fmt.Errorf("%w: %s: %s", ErrPassAborted, first.FilePath, first.Error)
	}

	if err := e.formatter.Start(plan.Len(), plan.TransferBytes()); err != nil {
		return fmt.Errorf("failed to start output: %w", err)
	}

	if e.operation.DryRun {
		report.Operations = plan.Operations()
		countPlanned(&report.Stats, plan)
		return nil
	}

	// Mutation lines carry no fields so they keep the plain
	// "<timestamp> -- <message>" form
	r := &reconciler{
		engine: e,
		logger: e.logger,
		report: report,
	}
	return r.apply(ctx, plan)
}

// finish stamps the report, derives its status and notifies the formatter
func (e *Engine) finish(ctx context.Context, logger logging.Logger, report *models.SyncReport, err error) {
	report.EndTime = time.Now()
	report.Duration = report.EndTime.Sub(report.StartTime)
	if secs := report.Duration.Seconds(); secs > 0 {
		report.Stats.AverageSpeed = int64(float64(report.Stats.BytesTransferred) / secs)
	}

	switch {
	case err == nil && len(report.Errors) > 0:
		report.Status = models.StatusPartial
	case err == nil:
		report.Status = models.StatusSuccess
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		report.Status = models.StatusCancelled
	default:
		report.Status = models.StatusFailed
	}

	if err != nil {
		e.formatter.Error(err)
		logger.Error(ctx, "Pass failed", err, nil)
	}
	e.formatter.Complete(report)

	logger.Debug(ctx, "Pass completed", logging.Fields{
		"duration":          report.Duration.String(),
		"status":            report.Status,
		"dirs_created":      report.Stats.DirsCreated,
		"files_copied":      report.Stats.FilesCopied,
		"files_updated":     report.Stats.FilesUpdated,
		"files_deleted":     report.Stats.FilesDeleted,
		"dirs_deleted":      report.Stats.DirsDeleted,
		"errors":            report.Stats.Errors,
		"bytes_transferred": report.Stats.BytesTransferred,
	})
}

// scan lists both roots. A missing source is fatal, a missing replica is
// an empty tree.
func (e *Engine) scan(ctx context.Context) (*tree.Tree, *tree.Tree, error) {
	src, err := e.scanner.Scan(ctx, e.source)
	if err != nil {
		if errors.Is(err, tree.ErrDirectoryNotFound) {
			return nil, nil, fmt.Errorf("%w: %s", ErrSourceNotFound, e.source.Root())
		}
		return nil, nil, fmt.Errorf("failed to scan source: %w", err)
	}

	rep, err := e.scanner.Scan(ctx, e.replica)
	if err != nil {
		if !errors.Is(err, tree.ErrDirectoryNotFound) {
			return nil, nil, fmt.Errorf("failed to scan replica: %w", err)
		}
		rep = tree.Empty(e.replica.Root())
	}

	return src, rep, nil
}

// countPlanned fills the operation counters of a dry-run report
func countPlanned(stats *models.Statistics, plan *models.Plan) {
	for _, op := range plan.Operations() {
		stats.Count(op.Action)
	}
}

// reconciler applies one plan and records the outcome in the report
type reconciler struct {
	engine *Engine
	logger logging.Logger

	mu     sync.Mutex
	report *models.SyncReport
}
