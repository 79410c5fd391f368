package sync

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sdejongh/foldermirror/pkg/compare"
	"github.com/sdejongh/foldermirror/pkg/models"
	"github.com/sdejongh/foldermirror/pkg/tree"
)

// view answers replica lookups once the type conflicts are removed
type view struct {
	src, rep *tree.Tree
	removed  []string // replica directories removed as conflicts
}

func (v *view) gone(rel string) bool {
	for _, dir := range v.removed {
		if tree.Within(rel, dir) {
			return true
		}
	}
	return false
}

// hasFile reports whether the replica still holds rel as a file
func (v *view) hasFile(rel string) bool {
	return v.rep.HasFile(rel) && !v.src.HasDir(rel) && !v.gone(rel)
}

// hasDir reports whether the replica still holds rel as a directory
func (v *view) hasDir(rel string) bool {
	return v.rep.HasDir(rel) && !v.src.HasFile(rel) && !v.gone(rel)
}

// hasSpecial reports whether the replica still holds rel as an entry that
// is neither a regular file nor a directory
func (v *view) hasSpecial(rel string) bool {
	return v.rep.HasSpecial(rel) && !v.src.HasDir(rel) && !v.gone(rel)
}

// plan derives the phase-ordered operations that make rep mirror src
func (e *Engine) plan(ctx context.Context, src, rep *tree.Tree) (*models.Plan, error) {
	plan := &models.Plan{
		SourcePath:  src.Root,
		ReplicaPath: rep.Root,
	}
	now := time.Now()

	for _, se := range src.Errors {
		plan.Errors = append(plan.Errors, models.SyncError{
			FilePath:  se.RelativePath,
			Error:     fmt.Sprintf("cannot read source entry: %v", se.Err),
			Timestamp: now,
		})
	}
	for _, se := range rep.Errors {
		plan.Errors = append(plan.Errors, models.SyncError{
			FilePath:  se.RelativePath,
			Error:     fmt.Sprintf("cannot read replica entry: %v", se.Err),
			Timestamp: now,
		})
	}

	v := &view{src: src, rep: rep}

	// Phase 0: replica entries whose type differs from the source
	for _, f := range rep.Files {
		if src.HasDir(f.RelativePath) {
			plan.Conflicts = append(plan.Conflicts, models.Operation{
				Action:       models.ActionDeleteFile,
				RelativePath: f.RelativePath,
				Reason:       "source has a directory at this path",
			})
		}
	}
	for _, rel := range rep.Special {
		if src.HasDir(rel) {
			plan.Conflicts = append(plan.Conflicts, models.Operation{
				Action:       models.ActionDeleteFile,
				RelativePath: rel,
				Reason:       "source has a directory at this path",
			})
		}
	}
	for _, d := range rep.Dirs {
		if src.HasFile(d) && !v.gone(d) {
			plan.Conflicts = append(plan.Conflicts, models.Operation{
				Action:       models.ActionDeleteDir,
				RelativePath: d,
				Reason:       "source has a file at this path",
			})
			v.removed = append(v.removed, d)
		}
	}

	// Phase 1: directories missing from the replica, parents first
	for _, d := range src.Dirs {
		if !v.hasDir(d) {
			plan.CreateDirs = append(plan.CreateDirs, models.Operation{
				Action:       models.ActionCreateDir,
				RelativePath: d,
			})
		}
	}

	// Phase 2: files to copy or overwrite
	transfers, err := e.planTransfers(ctx, v, plan)
	if err != nil {
		return nil, err
	}
	plan.Transfers = transfers

	// Phase 3: obsolete files and special entries. Nothing is deleted
	// below a source entry the scan could not read.
	obsoleteFiles := rep.FileSet().Difference(src.FileSet())
	for _, f := range rep.Files {
		rel := f.RelativePath
		if !obsoleteFiles.Contains(rel) || !v.hasFile(rel) || src.Incomplete(rel) {
			continue
		}
		plan.DeleteFiles = append(plan.DeleteFiles, models.Operation{
			Action:       models.ActionDeleteFile,
			RelativePath: rel,
			Size:         f.Size,
		})
	}
	for _, rel := range rep.Special {
		if src.HasFile(rel) || !v.hasSpecial(rel) || src.Incomplete(rel) {
			continue
		}
		plan.DeleteFiles = append(plan.DeleteFiles, models.Operation{
			Action:       models.ActionDeleteFile,
			RelativePath: rel,
			Reason:       "not a regular file",
		})
	}

	// Phase 4: obsolete directories, deepest first
	obsolete := rep.DirSet().Difference(src.DirSet()).ToSlice()
	obsolete = slices.DeleteFunc(obsolete, func(d string) bool {
		return !v.hasDir(d) || src.Incomplete(d)
	})
	sortDeepestFirst(obsolete)
	for _, d := range obsolete {
		plan.DeleteDirs = append(plan.DeleteDirs, models.Operation{
			Action:       models.ActionDeleteDir,
			RelativePath: d,
		})
	}

	return plan, nil
}

// planTransfers compares the files present on both sides in parallel and
// returns the copies and updates in source order
func (e *Engine) planTransfers(ctx context.Context, v *view, plan *models.Plan) ([]models.Operation, error) {
	type outcome struct {
		op        *models.Operation
		identical bool
		err       error
	}
	outcomes := make([]outcome, len(v.src.Files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.operation.MaxWorkers)

	for i, f := range v.src.Files {
		if v.hasSpecial(f.RelativePath) {
			outcomes[i].op = &models.Operation{
				Action:       models.ActionUpdate,
				RelativePath: f.RelativePath,
				Size:         f.Size,
				ModTime:      f.ModTime,
				Reason:       "replica entry is not a regular file",
			}
			continue
		}
		if !v.hasFile(f.RelativePath) {
			outcomes[i].op = &models.Operation{
				Action:       models.ActionCopy,
				RelativePath: f.RelativePath,
				Size:         f.Size,
				ModTime:      f.ModTime,
			}
			continue
		}

		i, f := i, f
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			cmp, err := e.comparator.Compare(gctx, e.source, e.replica, f.RelativePath)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				outcomes[i].err = err
				return nil
			}

			if cmp.Result == compare.Identical {
				outcomes[i].identical = true
				return nil
			}
			outcomes[i].op = &models.Operation{
				Action:       models.ActionUpdate,
				RelativePath: f.RelativePath,
				Size:         f.Size,
				ModTime:      f.ModTime,
				Reason:       cmp.Reason,
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var transfers []models.Operation
	for i, o := range outcomes {
		switch {
		case o.err != nil:
			plan.Errors = append(plan.Errors, models.SyncError{
				FilePath:  v.src.Files[i].RelativePath,
				Operation: models.ActionUpdate,
				Error:     fmt.Sprintf("comparison failed: %v", o.err),
				Timestamp: time.Now(),
			})
		case o.identical:
			plan.Identical++
		case o.op != nil:
			transfers = append(transfers, *o.op)
		}
	}
	return transfers, nil
}

// sortDeepestFirst orders directories by descending depth, ties lexical
func sortDeepestFirst(dirs []string) {
	sort.Slice(dirs, func(i, j int) bool {
		di, dj := tree.Depth(dirs[i]), tree.Depth(dirs[j])
		if di != dj {
			return di > dj
		}
		return dirs[i] < dirs[j]
	})
}
