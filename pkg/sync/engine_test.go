package sync

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sdejongh/foldermirror/pkg/compare"
	"github.com/sdejongh/foldermirror/pkg/logging"
	"github.com/sdejongh/foldermirror/pkg/models"
	"github.com/sdejongh/foldermirror/pkg/storage"
)

// recordLogger keeps the messages it receives
type recordLogger struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (l *recordLogger) Debug(ctx context.Context, msg string, fields logging.Fields) {}
func (l *recordLogger) Warn(ctx context.Context, msg string, fields logging.Fields) {}

func (l *recordLogger) Info(ctx context.Context, msg string, fields logging.Fields) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infos = append(l.infos, msg)
}

func (l *recordLogger) Error(ctx context.Context, msg string, err error, fields logging.Fields) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

func (l *recordLogger) WithFields(fields logging.Fields) logging.Logger { return l }
func (l *recordLogger) Close() error { return nil }

func (l *recordLogger) Infos() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.infos...)
}

func (l *recordLogger) Errors() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.errors...)
}

// faultyBackend injects failures into a real backend
type faultyBackend struct {
	storage.Backend
	failWrite string // Write of this path fails
	failWalk  string // this entry is reported unreadable by Walk
}

func (b *faultyBackend) Write(ctx context.Context, path string, r io.Reader, size int64, metadata *storage.FileInfo) error {
	if path == b.failWrite {
		return errors.New("disk full")
	}
	return b.Backend.Write(ctx, path, r, size, metadata)
}

func (b *faultyBackend) Walk(ctx context.Context, fn storage.WalkFunc) error {
	return b.Backend.Walk(ctx, func(info storage.FileInfo, err error) error {
		if err == nil && info.RelativePath == b.failWalk {
			return fn(info, errors.New("permission denied"))
		}
		return fn(info, err)
	})
}

// TestHelper provides a source and replica directory pair
type TestHelper struct {
	t          *testing.T
	sourceDir  string
	replicaDir string
	logger     *recordLogger
}

// NewTestHelper creates source and replica directories in a temp dir
func NewTestHelper(t *testing.T) *TestHelper {
	t.Helper()

	tempDir := t.TempDir()
	h := &TestHelper{
		t:          t,
		sourceDir:  filepath.Join(tempDir, "source"),
		replicaDir: filepath.Join(tempDir, "replica"),
		logger:     &recordLogger{},
	}
	for _, dir := range []string{h.sourceDir, h.replicaDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatalf("failed to create dir: %v", err)
		}
	}
	return h
}

func defaultOperation(source, replica string) *models.SyncOperation {
	return &models.SyncOperation{
		SourcePath:       source,
		ReplicaPath:      replica,
		ComparisonMethod: models.CompareMetadata,
		MaxWorkers:       4,
		BufferSize:       64 * 1024,
	}
}

// Backends opens both roots
func (h *TestHelper) Backends() (storage.Backend, storage.Backend) {
	h.t.Helper()
	source, err := storage.NewLocal(h.sourceDir)
	if err != nil {
		h.t.Fatalf("failed to create source backend: %v", err)
	}
	replica, err := storage.NewLocal(h.replicaDir)
	if err != nil {
		h.t.Fatalf("failed to create replica backend: %v", err)
	}
	return source, replica
}

// EngineFor builds an engine over the given backends
func (h *TestHelper) EngineFor(source, replica storage.Backend, configure func(*models.SyncOperation)) *Engine {
	h.t.Helper()

	op := defaultOperation(h.sourceDir, h.replicaDir)
	if configure != nil {
		configure(op)
	}

	comparator, err := compare.New(op.ComparisonMethod, compare.Options{BufferSize: op.BufferSize})
	if err != nil {
		h.t.Fatalf("failed to create comparator: %v", err)
	}

	engine, err := NewEngine(source, replica, comparator, nil, h.logger, op)
	if err != nil {
		h.t.Fatalf("NewEngine() error = %v", err)
	}
	return engine
}

// Engine builds an engine over the helper directories
func (h *TestHelper) Engine(configure func(*models.SyncOperation)) *Engine {
	h.t.Helper()
	source, replica := h.Backends()
	return h.EngineFor(source, replica, configure)
}

// Sync runs one pass and fails the test on a pass error
func (h *TestHelper) Sync(engine *Engine) *models.SyncReport {
	h.t.Helper()
	report, err := engine.Synchronize(context.Background())
	if err != nil {
		h.t.Fatalf("Synchronize() error = %v", err)
	}
	return report
}

func writeFile(t *testing.T, root, name, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create parent dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
}

func mkdir(t *testing.T, root, name string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Join(root, filepath.FromSlash(name)), 0755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
}

func setModTime(t *testing.T, root, name string, mtime time.Time) {
	t.Helper()
	if err := os.Chtimes(filepath.Join(root, filepath.FromSlash(name)), mtime, mtime); err != nil {
		t.Fatalf("failed to set mod time: %v", err)
	}
}

func readFile(t *testing.T, root, name string) string {
	t.Helper()
	content, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(name)))
	if err != nil {
		t.Fatalf("failed to read %s: %v", name, err)
	}
	return string(content)
}

func exists(root, name string) bool {
	_, err := os.Lstat(filepath.Join(root, filepath.FromSlash(name)))
	return err == nil
}

func containsAll(t *testing.T, got []string, want ...string) {
	t.Helper()
	seen := make(map[string]bool, len(got))
	for _, g := range got {
		seen[g] = true
	}
	for _, w := range want {
		if !seen[w] {
			t.Errorf("missing log line %q in %q", w, got)
		}
	}
}

// assertMirrored checks that the replica holds exactly the source entries
func assertMirrored(t *testing.T, source, replica string) {
	t.Helper()

	list := func(root string) map[string]string {
		if resolved, err := filepath.EvalSymlinks(root); err == nil {
			root = resolved
		}
		entries := make(map[string]string)
		filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
			if err != nil || p == root {
				return err
			}
			rel, _ := filepath.Rel(root, p)
			if info.IsDir() {
				entries[rel] = "<dir>"
				return nil
			}
			content, _ := os.ReadFile(p)
			entries[rel] = string(content)
			return nil
		})
		return entries
	}

	src, rep := list(source), list(replica)
	if len(src) != len(rep) {
		t.Errorf("replica has %d entries, source has %d: %v vs %v", len(rep), len(src), rep, src)
	}
	for rel, content := range src {
		if got, ok := rep[rel]; !ok || got != content {
			t.Errorf("replica entry %s = %q, want %q", rel, got, content)
		}
	}
}

func TestSynchronize_CopyIntoEmptyReplica(t *testing.T) {
	h := NewTestHelper(t)
	writeFile(t, h.sourceDir, "a.txt", "hello")
	writeFile(t, h.sourceDir, "sub/b.txt", "world")

	report := h.Sync(h.Engine(nil))

	assertMirrored(t, h.sourceDir, h.replicaDir)
	containsAll(t, h.logger.Infos(),
		"Created missing directory: "+filepath.Join(h.replicaDir, "sub"),
		"Copied file: a.txt to replica.",
		"Copied file: "+filepath.Join("sub", "b.txt")+" to replica.",
	)

	if report.Status != models.StatusSuccess {
		t.Errorf("Status = %s, want success", report.Status)
	}
	if report.Stats.FilesCopied != 2 || report.Stats.DirsCreated != 1 {
		t.Errorf("Stats = %+v, want 2 copies and 1 dir", report.Stats)
	}
	if report.Stats.BytesTransferred != 10 {
		t.Errorf("BytesTransferred = %d, want 10", report.Stats.BytesTransferred)
	}
	if report.ID == "" {
		t.Error("report should carry a pass ID")
	}
}

func TestSynchronize_UpdateStaleFile(t *testing.T) {
	h := NewTestHelper(t)
	writeFile(t, h.sourceDir, "a.txt", "new content")
	writeFile(t, h.replicaDir, "a.txt", "old")
	setModTime(t, h.replicaDir, "a.txt", time.Now().Add(-time.Hour))

	report := h.Sync(h.Engine(nil))

	if got := readFile(t, h.replicaDir, "a.txt"); got != "new content" {
		t.Errorf("replica content = %q, want %q", got, "new content")
	}
	containsAll(t, h.logger.Infos(), "Updated file: a.txt in replica.")
	if report.Stats.FilesUpdated != 1 {
		t.Errorf("FilesUpdated = %d, want 1", report.Stats.FilesUpdated)
	}
}

func TestSynchronize_DeleteObsoleteFile(t *testing.T) {
	h := NewTestHelper(t)
	writeFile(t, h.sourceDir, "keep.txt", "keep")
	writeFile(t, h.replicaDir, "keep.txt", "keep")
	writeFile(t, h.replicaDir, "obsolete.txt", "gone")
	setModTime(t, h.replicaDir, "keep.txt", modTimeOf(t, h.sourceDir, "keep.txt"))

	report := h.Sync(h.Engine(nil))

	if exists(h.replicaDir, "obsolete.txt") {
		t.Error("obsolete file should be deleted")
	}
	if got := h.logger.Infos(); len(got) != 1 || got[0] != "Deleted obsolete file: obsolete.txt from replica." {
		t.Errorf("log = %q, want only the deletion", got)
	}
	if report.Stats.FilesSkipped != 1 {
		t.Errorf("FilesSkipped = %d, want 1", report.Stats.FilesSkipped)
	}
}

func TestSynchronize_CreateEmptyDirectory(t *testing.T) {
	h := NewTestHelper(t)
	mkdir(t, h.sourceDir, "empty/nested")

	h.Sync(h.Engine(nil))

	if info, err := os.Stat(filepath.Join(h.replicaDir, "empty", "nested")); err != nil || !info.IsDir() {
		t.Fatalf("empty/nested should exist in replica: %v", err)
	}
	containsAll(t, h.logger.Infos(),
		"Created missing directory: "+filepath.Join(h.replicaDir, "empty"),
		"Created missing directory: "+filepath.Join(h.replicaDir, "empty", "nested"),
	)
}

func TestSynchronize_Idempotent(t *testing.T) {
	h := NewTestHelper(t)
	writeFile(t, h.sourceDir, "a.txt", "a")
	writeFile(t, h.sourceDir, "x/y/z.txt", "z")
	mkdir(t, h.sourceDir, "empty")
	writeFile(t, h.replicaDir, "stale/old.txt", "old")

	engine := h.Engine(nil)
	first := h.Sync(engine)
	if first.Stats.Changes() == 0 {
		t.Fatal("first pass should change the replica")
	}
	assertMirrored(t, h.sourceDir, h.replicaDir)

	logged := len(h.logger.Infos())
	second := h.Sync(engine)

	if second.Stats.Changes() != 0 {
		t.Errorf("second pass changes = %d, want 0 (%+v)", second.Stats.Changes(), second.Stats)
	}
	if len(h.logger.Infos()) != logged {
		t.Errorf("second pass logged %q", h.logger.Infos()[logged:])
	}
	if second.Stats.FilesSkipped != 2 {
		t.Errorf("FilesSkipped = %d, want 2", second.Stats.FilesSkipped)
	}

	plan, err := engine.Plan(context.Background())
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if !plan.Empty() {
		t.Errorf("plan after convergence = %+v, want empty", plan.Operations())
	}
}

func TestSynchronize_DirectoryDeletionDeepestFirst(t *testing.T) {
	h := NewTestHelper(t)
	mkdir(t, h.replicaDir, "a/b/c")
	mkdir(t, h.replicaDir, "z")

	h.Sync(h.Engine(nil))

	want := []string{
		"Deleted obsolete directory: " + filepath.Join("a", "b", "c") + " from replica.",
		"Deleted obsolete directory: " + filepath.Join("a", "b") + " from replica.",
		"Deleted obsolete directory: a from replica.",
		"Deleted obsolete directory: z from replica.",
	}
	got := h.logger.Infos()
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("log = %q, want %q", got, want)
	}
	if exists(h.replicaDir, "a") || exists(h.replicaDir, "z") {
		t.Error("obsolete directories should be removed")
	}
}

func TestSynchronize_FilesDeletedBeforeDirectories(t *testing.T) {
	h := NewTestHelper(t)
	writeFile(t, h.replicaDir, "old/file.txt", "x")

	h.Sync(h.Engine(nil))

	want := []string{
		"Deleted obsolete file: " + filepath.Join("old", "file.txt") + " from replica.",
		"Deleted obsolete directory: old from replica.",
	}
	if got := h.logger.Infos(); strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("log = %q, want %q", got, want)
	}
}

func TestSynchronize_TypeConflicts(t *testing.T) {
	h := NewTestHelper(t)
	// Source directory where the replica has a file
	writeFile(t, h.sourceDir, "x/inner.txt", "inner")
	writeFile(t, h.replicaDir, "x", "file in the way")
	// Source file where the replica has a directory
	writeFile(t, h.sourceDir, "y", "now a file")
	writeFile(t, h.replicaDir, "y/deep/z.txt", "below")

	report := h.Sync(h.Engine(nil))

	assertMirrored(t, h.sourceDir, h.replicaDir)
	containsAll(t, h.logger.Infos(),
		"Deleted obsolete file: x from replica.",
		"Deleted obsolete directory: y from replica.",
		"Created missing directory: "+filepath.Join(h.replicaDir, "x"),
		"Copied file: "+filepath.Join("x", "inner.txt")+" to replica.",
		"Copied file: y to replica.",
	)
	if report.Status != models.StatusSuccess {
		t.Errorf("Status = %s, errors = %v", report.Status, report.Errors)
	}

	// Entries below the removed directory are not deleted a second time
	for _, line := range h.logger.Infos() {
		if strings.Contains(line, filepath.Join("y", "deep")) {
			t.Errorf("unexpected log line %q", line)
		}
	}
}

func TestSynchronize_MissingSourceIsFatal(t *testing.T) {
	h := NewTestHelper(t)
	writeFile(t, h.replicaDir, "precious.txt", "keep me")
	if err := os.RemoveAll(h.sourceDir); err != nil {
		t.Fatal(err)
	}

	report, err := h.Engine(nil).Synchronize(context.Background())
	if !errors.Is(err, ErrSourceNotFound) {
		t.Fatalf("Synchronize() error = %v, want ErrSourceNotFound", err)
	}
	if report.Status != models.StatusFailed {
		t.Errorf("Status = %s, want failed", report.Status)
	}
	if !exists(h.replicaDir, "precious.txt") {
		t.Error("replica must be left untouched")
	}
	if report.Status.ExitCode() != 2 {
		t.Errorf("ExitCode = %d, want 2", report.Status.ExitCode())
	}
}

func TestSynchronize_MissingReplicaIsPopulated(t *testing.T) {
	h := NewTestHelper(t)
	writeFile(t, h.sourceDir, "a.txt", "a")
	if err := os.RemoveAll(h.replicaDir); err != nil {
		t.Fatal(err)
	}

	report := h.Sync(h.Engine(nil))

	assertMirrored(t, h.sourceDir, h.replicaDir)
	if report.Stats.ReplicaFiles != 0 || report.Stats.FilesCopied != 1 {
		t.Errorf("Stats = %+v", report.Stats)
	}
}

func TestSynchronize_DryRunLeavesReplicaUntouched(t *testing.T) {
	h := NewTestHelper(t)
	writeFile(t, h.sourceDir, "new.txt", "new")
	writeFile(t, h.replicaDir, "obsolete.txt", "old")

	report := h.Sync(h.Engine(func(op *models.SyncOperation) { op.DryRun = true }))

	if exists(h.replicaDir, "new.txt") || !exists(h.replicaDir, "obsolete.txt") {
		t.Error("dry run must not modify the replica")
	}
	if len(h.logger.Infos()) != 0 {
		t.Errorf("dry run logged mutations: %q", h.logger.Infos())
	}
	if !report.DryRun || len(report.Operations) != 2 {
		t.Errorf("report = %+v, want 2 planned operations", report)
	}
	if report.Stats.FilesCopied != 1 || report.Stats.FilesDeleted != 1 {
		t.Errorf("Stats = %+v", report.Stats)
	}
}

func TestSynchronize_Exclusions(t *testing.T) {
	h := NewTestHelper(t)
	writeFile(t, h.sourceDir, "a.txt", "a")
	writeFile(t, h.sourceDir, "build.tmp", "skip")
	writeFile(t, h.sourceDir, "cache/blob", "skip")
	writeFile(t, h.replicaDir, "local.tmp", "keep")

	h.Sync(h.Engine(func(op *models.SyncOperation) {
		op.ExcludePatterns = []string{"*.tmp", "cache/"}
	}))

	if !exists(h.replicaDir, "a.txt") {
		t.Error("a.txt should be copied")
	}
	if exists(h.replicaDir, "build.tmp") || exists(h.replicaDir, "cache") {
		t.Error("excluded source entries must not be copied")
	}
	if !exists(h.replicaDir, "local.tmp") {
		t.Error("excluded replica entries must not be deleted")
	}
}

func TestSynchronize_PerEntryErrorIsSkipped(t *testing.T) {
	h := NewTestHelper(t)
	writeFile(t, h.sourceDir, "bad.txt", "bad")
	writeFile(t, h.sourceDir, "good.txt", "good")
	writeFile(t, h.replicaDir, "obsolete.txt", "old")

	source, replica := h.Backends()
	engine := h.EngineFor(source, &faultyBackend{Backend: replica, failWrite: "bad.txt"}, nil)

	report, err := engine.Synchronize(context.Background())
	if err != nil {
		t.Fatalf("Synchronize() error = %v", err)
	}

	if report.Status != models.StatusPartial {
		t.Errorf("Status = %s, want partial", report.Status)
	}
	if len(report.Errors) != 1 || report.Errors[0].FilePath != "bad.txt" {
		t.Errorf("Errors = %+v", report.Errors)
	}
	if !exists(h.replicaDir, "good.txt") || exists(h.replicaDir, "obsolete.txt") {
		t.Error("other entries should still be processed")
	}
	if exists(h.replicaDir, "bad.txt") {
		t.Error("failed copy must not leave a file")
	}
	if got := h.logger.Errors(); len(got) != 1 || got[0] != "Failed to copy file: bad.txt" {
		t.Errorf("error log = %q", got)
	}
}

func TestSynchronize_FailFast(t *testing.T) {
	h := NewTestHelper(t)
	writeFile(t, h.sourceDir, "bad.txt", "bad")
	writeFile(t, h.replicaDir, "obsolete.txt", "old")

	source, replica := h.Backends()
	engine := h.EngineFor(source, &faultyBackend{Backend: replica, failWrite: "bad.txt"}, func(op *models.SyncOperation) {
		op.FailFast = true
	})

	report, err := engine.Synchronize(context.Background())
	if !errors.Is(err, ErrPassAborted) {
		t.Fatalf("Synchronize() error = %v, want ErrPassAborted", err)
	}
	if report.Status != models.StatusFailed {
		t.Errorf("Status = %s, want failed", report.Status)
	}
	if !exists(h.replicaDir, "obsolete.txt") {
		t.Error("later phases must not run after an abort")
	}
}

func TestSynchronize_UnreadableSourceDirectoryProtectsReplica(t *testing.T) {
	h := NewTestHelper(t)
	writeFile(t, h.sourceDir, "locked/new.txt", "new")
	writeFile(t, h.replicaDir, "locked/old.txt", "old")
	writeFile(t, h.replicaDir, "obsolete.txt", "old")

	source, replica := h.Backends()
	engine := h.EngineFor(&faultyBackend{Backend: source, failWalk: "locked"}, replica, nil)

	report, err := engine.Synchronize(context.Background())
	if err != nil {
		t.Fatalf("Synchronize() error = %v", err)
	}

	if !exists(h.replicaDir, "locked/old.txt") {
		t.Error("entries below an unreadable source directory must not be deleted")
	}
	if exists(h.replicaDir, "obsolete.txt") {
		t.Error("unrelated obsolete files should still be deleted")
	}
	if report.Status != models.StatusPartial {
		t.Errorf("Status = %s, want partial", report.Status)
	}
}

func TestSynchronize_Cancelled(t *testing.T) {
	h := NewTestHelper(t)
	writeFile(t, h.sourceDir, "a.txt", "a")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := h.Engine(nil).Synchronize(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Synchronize() error = %v, want context.Canceled", err)
	}
	if report.Status != models.StatusCancelled {
		t.Errorf("Status = %s, want cancelled", report.Status)
	}
	if exists(h.replicaDir, "a.txt") {
		t.Error("cancelled pass must not copy")
	}
}

func TestSynchronize_DigestIgnoresTouchedFiles(t *testing.T) {
	h := NewTestHelper(t)
	writeFile(t, h.sourceDir, "a.txt", "same")
	writeFile(t, h.replicaDir, "a.txt", "same")
	setModTime(t, h.replicaDir, "a.txt", time.Now().Add(-24*time.Hour))

	report := h.Sync(h.Engine(func(op *models.SyncOperation) {
		op.ComparisonMethod = models.CompareDigest
	}))
	if report.Stats.FilesUpdated != 0 || report.Stats.FilesSkipped != 1 {
		t.Errorf("digest: Stats = %+v, want the file unchanged", report.Stats)
	}

	report = h.Sync(h.Engine(nil))
	if report.Stats.FilesUpdated != 1 {
		t.Errorf("metadata: FilesUpdated = %d, want 1", report.Stats.FilesUpdated)
	}
}

func TestSynchronize_BandwidthLimited(t *testing.T) {
	h := NewTestHelper(t)
	writeFile(t, h.sourceDir, "a.txt", strings.Repeat("x", 1024))

	h.Sync(h.Engine(func(op *models.SyncOperation) { op.BandwidthLimit = 1024 * 1024 }))

	assertMirrored(t, h.sourceDir, h.replicaDir)
}

// linkRoot moves dir aside and leaves a symbolic link to it at dir. It
// returns the real directory.
func linkRoot(t *testing.T, dir string) string {
	t.Helper()
	target := dir + ".real"
	if err := os.Rename(dir, target); err != nil {
		t.Fatalf("failed to move %s: %v", dir, err)
	}
	if err := os.Symlink(target, dir); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}
	return target
}

func TestSynchronize_LinkedSourceRoot(t *testing.T) {
	h := NewTestHelper(t)
	linkRoot(t, h.sourceDir)

	writeFile(t, h.sourceDir, "a.txt", "alpha")
	writeFile(t, h.sourceDir, "sub/b.txt", "beta")
	writeFile(t, h.sourceDir, "new.txt", "new")
	writeFile(t, h.replicaDir, "a.txt", "alpha")
	writeFile(t, h.replicaDir, "sub/b.txt", "beta")
	setModTime(t, h.replicaDir, "a.txt", modTimeOf(t, h.sourceDir, "a.txt"))
	setModTime(t, h.replicaDir, "sub/b.txt", modTimeOf(t, h.sourceDir, "sub/b.txt"))

	report := h.Sync(h.Engine(nil))

	assertMirrored(t, h.sourceDir, h.replicaDir)
	if got := h.logger.Infos(); len(got) != 1 || got[0] != "Copied file: new.txt to replica." {
		t.Errorf("log = %q, want only the new file", got)
	}
	if report.Stats.SourceFiles != 3 {
		t.Errorf("SourceFiles = %d, want 3", report.Stats.SourceFiles)
	}
	if report.Stats.FilesDeleted != 0 || report.Stats.DirsDeleted != 0 {
		t.Errorf("Stats = %+v, want no deletions", report.Stats)
	}
}

func TestSynchronize_LinkedReplicaRoot(t *testing.T) {
	h := NewTestHelper(t)
	linkRoot(t, h.replicaDir)

	writeFile(t, h.sourceDir, "a.txt", "alpha")
	writeFile(t, h.sourceDir, "sub/b.txt", "beta")
	writeFile(t, h.replicaDir, "obsolete.txt", "old")

	engine := h.Engine(nil)
	h.Sync(engine)

	assertMirrored(t, h.sourceDir, h.replicaDir)
	containsAll(t, h.logger.Infos(), "Deleted obsolete file: obsolete.txt from replica.")

	logged := len(h.logger.Infos())
	second := h.Sync(engine)

	if len(h.logger.Infos()) != logged {
		t.Errorf("second pass logged %q", h.logger.Infos()[logged:])
	}
	if second.Stats.Changes() != 0 || second.Stats.ReplicaFiles != 2 {
		t.Errorf("second pass Stats = %+v, want no changes over 2 replica files", second.Stats)
	}
	if info, err := os.Lstat(h.replicaDir); err != nil || info.Mode()&os.ModeSymlink == 0 {
		t.Errorf("replica root should still be a link: %v", err)
	}
}

func TestSynchronize_SpecialReplicaEntries(t *testing.T) {
	h := NewTestHelper(t)
	outside := filepath.Join(filepath.Dir(h.sourceDir), "outside")
	writeFile(t, outside, "keep.txt", "not ours")

	// Link to a directory with nothing at that path in the source
	if err := os.Symlink(outside, filepath.Join(h.replicaDir, "dirlink")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}
	// Dangling link with nothing at that path in the source
	if err := os.Symlink(filepath.Join(outside, "missing"), filepath.Join(h.replicaDir, "dangling")); err != nil {
		t.Fatal(err)
	}
	// Dangling link where the source has a file
	writeFile(t, h.sourceDir, "x", "file")
	if err := os.Symlink(filepath.Join(outside, "missing"), filepath.Join(h.replicaDir, "x")); err != nil {
		t.Fatal(err)
	}
	// Link to a directory where the source has a directory
	writeFile(t, h.sourceDir, "d/in.txt", "inner")
	if err := os.Symlink(outside, filepath.Join(h.replicaDir, "d")); err != nil {
		t.Fatal(err)
	}

	engine := h.Engine(nil)
	report := h.Sync(engine)

	if report.Status != models.StatusSuccess {
		t.Errorf("Status = %s, errors = %v", report.Status, report.Errors)
	}
	assertMirrored(t, h.sourceDir, h.replicaDir)
	containsAll(t, h.logger.Infos(),
		"Deleted obsolete file: d from replica.",
		"Created missing directory: "+filepath.Join(h.replicaDir, "d"),
		"Copied file: "+filepath.Join("d", "in.txt")+" to replica.",
		"Updated file: x in replica.",
		"Deleted obsolete file: dangling from replica.",
		"Deleted obsolete file: dirlink from replica.",
	)
	if got := readFile(t, outside, "keep.txt"); got != "not ours" {
		t.Errorf("link target content = %q, must be left alone", got)
	}
	if exists(outside, "in.txt") {
		t.Error("copy must not go through the replaced link")
	}

	logged := len(h.logger.Infos())
	h.Sync(engine)
	if len(h.logger.Infos()) != logged {
		t.Errorf("second pass logged %q", h.logger.Infos()[logged:])
	}
}

func TestSynchronize_SpecialSourceEntriesIgnored(t *testing.T) {
	h := NewTestHelper(t)
	writeFile(t, h.sourceDir, "a.txt", "alpha")
	if err := os.Symlink(filepath.Join(h.sourceDir, "missing"), filepath.Join(h.sourceDir, "ghost")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	report := h.Sync(h.Engine(nil))

	if report.Status != models.StatusSuccess {
		t.Errorf("Status = %s, errors = %v", report.Status, report.Errors)
	}
	if exists(h.replicaDir, "ghost") {
		t.Error("dangling source link must not be mirrored")
	}
	if !exists(h.replicaDir, "a.txt") {
		t.Error("a.txt should be copied")
	}
}

func TestPlan(t *testing.T) {
	h := NewTestHelper(t)
	writeFile(t, h.sourceDir, "copy.txt", "c")
	writeFile(t, h.sourceDir, "update.txt", "new")
	writeFile(t, h.sourceDir, "same.txt", "same")
	mkdir(t, h.sourceDir, "newdir")
	writeFile(t, h.replicaDir, "update.txt", "old!!")
	writeFile(t, h.replicaDir, "same.txt", "same")
	writeFile(t, h.replicaDir, "gone/deeper/f.txt", "f")
	setModTime(t, h.replicaDir, "same.txt", modTimeOf(t, h.sourceDir, "same.txt"))

	plan, err := h.Engine(nil).Plan(context.Background())
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}

	check := func(phase string, ops []models.Operation, want ...string) {
		t.Helper()
		var got []string
		for _, op := range ops {
			got = append(got, string(op.Action)+":"+op.RelativePath)
		}
		if strings.Join(got, ",") != strings.Join(want, ",") {
			t.Errorf("%s = %v, want %v", phase, got, want)
		}
	}

	check("Conflicts", plan.Conflicts)
	check("CreateDirs", plan.CreateDirs, "create_dir:newdir")
	check("Transfers", plan.Transfers, "copy:copy.txt", "update:update.txt")
	check("DeleteFiles", plan.DeleteFiles, "delete_file:gone/deeper/f.txt")
	check("DeleteDirs", plan.DeleteDirs, "delete_dir:gone/deeper", "delete_dir:gone")

	if plan.Identical != 1 {
		t.Errorf("Identical = %d, want 1", plan.Identical)
	}
	if plan.Transfers[1].Reason == "" {
		t.Error("update should carry the comparator reason")
	}
	if !exists(h.replicaDir, "gone") {
		t.Error("Plan() must not modify the replica")
	}
}

func TestNewEngine_InvalidOperation(t *testing.T) {
	h := NewTestHelper(t)
	source, replica := h.Backends()

	op := defaultOperation(h.sourceDir, h.replicaDir)
	op.MaxWorkers = 0
	if _, err := NewEngine(source, replica, nil, nil, nil, op); err == nil {
		t.Error("NewEngine() should reject zero workers")
	}

	op = defaultOperation(h.sourceDir, h.replicaDir)
	op.ExcludePatterns = []string{"[unclosed"}
	if _, err := NewEngine(source, replica, nil, nil, nil, op); err == nil {
		t.Error("NewEngine() should reject invalid exclude patterns")
	}
}

func TestSortDeepestFirst(t *testing.T) {
	dirs := []string{"a", "b/c", "a/b/c", "a/b", "b"}
	sortDeepestFirst(dirs)

	want := "a/b/c,a/b,b/c,a,b"
	if got := strings.Join(dirs, ","); got != want {
		t.Errorf("order = %s, want %s", got, want)
	}
}

func modTimeOf(t *testing.T, root, name string) time.Time {
	t.Helper()
	info, err := os.Stat(filepath.Join(root, filepath.FromSlash(name)))
	if err != nil {
		t.Fatalf("failed to stat %s: %v", name, err)
	}
	return info.ModTime()
}
