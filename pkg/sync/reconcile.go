package sync

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/sdejongh/foldermirror/pkg/logging"
	"github.com/sdejongh/foldermirror/pkg/models"
	"github.com/sdejongh/foldermirror/pkg/output"
)

// errVanished marks a deletion target that no longer exists
var errVanished = errors.New("entry already removed")

// apply runs the plan phase by phase. Every phase completes before the
// next one starts.
func (r *reconciler) apply(ctx context.Context, plan *models.Plan) error {
	if err := r.sequential(ctx, plan.Conflicts); err != nil {
		return err
	}
	if err := r.sequential(ctx, plan.CreateDirs); err != nil {
		return err
	}

	e := r.engine
	worker := NewWorker(e.source, e.replica, e.operation.MaxWorkers, e.limiter)
	err := worker.Execute(ctx, plan.Transfers, func(op models.Operation, start time.Time, written int64, err error) error {
		return r.record(ctx, op, start, written, err)
	})
	if err != nil {
		return err
	}

	if err := r.sequential(ctx, plan.DeleteFiles); err != nil {
		return err
	}
	return r.sequential(ctx, plan.DeleteDirs)
}

// sequential applies ops one at a time, checking for cancellation between
// entries
func (r *reconciler) sequential(ctx context.Context, ops []models.Operation) error {
	for _, op := range ops {
		if err := ctx.Err(); err != nil {
			return err
		}

		start := time.Now()
		err := r.mutate(ctx, op)
		if errors.Is(err, errVanished) {
			continue
		}
		if err := r.record(ctx, op, start, 0, err); err != nil {
			return err
		}
	}
	return nil
}

// mutate applies one non-transfer operation to the replica
func (r *reconciler) mutate(ctx context.Context, op models.Operation) error {
	replica := r.engine.replica

	switch op.Action {
	case models.ActionCreateDir:
		return replica.MkdirAll(ctx, op.RelativePath)
	case models.ActionDeleteFile:
		err := replica.Remove(ctx, op.RelativePath)
		if errors.Is(err, fs.ErrNotExist) {
			return errVanished
		}
		return err
	case models.ActionDeleteDir:
		return replica.RemoveAll(ctx, op.RelativePath)
	default:
		return fmt.Errorf("unexpected action %s", op.Action)
	}
}

// record adds the outcome of op to the report and emits its log line.
// With fail-fast enabled a failure is returned wrapped in ErrPassAborted.
func (r *reconciler) record(ctx context.Context, op models.Operation, start time.Time, written int64, err error) error {
	e := r.engine
	op.Duration = time.Since(start)

	r.mu.Lock()
	defer r.mu.Unlock()

	report := r.report
	if err != nil {
		op.Error = err.Error()
		report.Operations = append(report.Operations, op)
		report.Errors = append(report.Errors, models.SyncError{
			FilePath:  op.RelativePath,
			Operation: op.Action,
			Error:     err.Error(),
			Timestamp: time.Now(),
		})
		report.Stats.Errors++

		r.logger.Error(ctx, failureMessage(op), err, logging.Fields{
			"path":   op.RelativePath,
			"action": string(op.Action),
		})
		e.formatter.Progress(output.ProgressUpdate{
			Type:     output.UpdateError,
			Action:   op.Action,
			FilePath: op.RelativePath,
			Error:    err,
		})

		if e.operation.FailFast {
			return fmt.Errorf("%w: %s: %v", ErrPassAborted, op.RelativePath, err)
		}
		return nil
	}

	op.BytesCopied = written
	report.Operations = append(report.Operations, op)
	report.Stats.Count(op.Action)
	report.Stats.BytesTransferred += written

	r.logger.Info(ctx, successMessage(op, e.replica.Root()), nil)
	e.formatter.Progress(output.ProgressUpdate{
		Type:         output.UpdateComplete,
		Action:       op.Action,
		FilePath:     op.RelativePath,
		BytesWritten: written,
		TotalBytes:   op.Size,
	})
	return nil
}

// successMessage is the log line for an applied operation
func successMessage(op models.Operation, replicaRoot string) string {
	rel := filepath.FromSlash(op.RelativePath)

	switch op.Action {
	case models.ActionCreateDir:
		return "Created missing directory: " + filepath.Join(replicaRoot, rel)
	case models.ActionCopy:
		return fmt.Sprintf("Copied file: %s to replica.", rel)
	case models.ActionUpdate:
		return fmt.Sprintf("Updated file: %s in replica.", rel)
	case models.ActionDeleteFile:
		return fmt.Sprintf("Deleted obsolete file: %s from replica.", rel)
	case models.ActionDeleteDir:
		return fmt.Sprintf("Deleted obsolete directory: %s from replica.", rel)
	default:
		return fmt.Sprintf("Applied %s: %s", op.Action, rel)
	}
}

// failureMessage is the log line for an operation that failed
func failureMessage(op models.Operation) string {
	rel := filepath.FromSlash(op.RelativePath)

	switch op.Action {
	case models.ActionCreateDir:
		return "Failed to create directory: " + rel
	case models.ActionCopy:
		return "Failed to copy file: " + rel
	case models.ActionUpdate:
		return "Failed to update file: " + rel
	case models.ActionDeleteFile:
		return "Failed to delete file: " + rel
	case models.ActionDeleteDir:
		return "Failed to delete directory: " + rel
	default:
		return fmt.Sprintf("Failed to apply %s: %s", op.Action, rel)
	}
}
