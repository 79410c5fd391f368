package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// tempPattern names the staging files created by Write
const tempPattern = ".foldermirror-*.tmp"

// Local is a filesystem-based storage backend
type Local struct {
	rootPath string
	fs       afero.Fs
}

// NewLocal creates a new local filesystem backend. The root does not have to
// exist yet; a replica root is created by the first write. If it exists it
// must be a directory.
func NewLocal(rootPath string) (*Local, error) {
	absPath, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}

	return NewLocalFs(afero.NewOsFs(), absPath)
}

// NewLocalFs creates a backend rooted at rootPath on an arbitrary afero
// filesystem
func NewLocalFs(fs afero.Fs, rootPath string) (*Local, error) {
	rootPath = filepath.Clean(rootPath)

	info, err := fs.Stat(rootPath)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to access path: %w", err)
	}
	if err == nil && !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", rootPath)
	}

	return &Local{rootPath: rootPath, fs: fs}, nil
}

// Root returns the absolute root path
func (l *Local) Root() string {
	return l.rootPath
}

func (l *Local) fullPath(path string) string {
	return filepath.Join(l.rootPath, filepath.FromSlash(path))
}

func (l *Local) relPath(fullPath string) (string, error) {
	rel, err := filepath.Rel(l.rootPath, fullPath)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

// Walk visits every entry below the root. A root that is itself a link
// to a directory is followed. Links to regular files are reported with the
// metadata of their target; every other non-regular entry is reported as
// Special and not descended into.
func (l *Local) Walk(ctx context.Context, fn WalkFunc) error {
	info, err := l.fs.Stat(l.rootPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrDirectoryNotFound, l.rootPath)
		}
		return fmt.Errorf("failed to access root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("root is not a directory: %s", l.rootPath)
	}

	// afero.Walk lstats its root; the trailing separator resolves a
	// linked root to the directory it points to
	walkRoot := l.rootPath
	if !strings.HasSuffix(walkRoot, string(filepath.Separator)) {
		walkRoot += string(filepath.Separator)
	}

	err = afero.Walk(l.fs, walkRoot, func(p string, fi os.FileInfo, walkErr error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		relPath, err := l.relPath(p)
		if err != nil {
			return err
		}

		if walkErr != nil {
			if relPath == "." {
				return walkErr
			}
			return fn(FileInfo{Path: p, RelativePath: relPath, IsDir: fi != nil && fi.IsDir()}, walkErr)
		}

		if relPath == "." {
			return nil
		}

		if fi.Mode()&os.ModeSymlink != 0 {
			if target, err := l.fs.Stat(p); err == nil && target.Mode().IsRegular() {
				fi = target
			}
		}

		if !fi.IsDir() && !fi.Mode().IsRegular() {
			return fn(FileInfo{
				Path:         p,
				RelativePath: relPath,
				ModTime:      fi.ModTime(),
				Special:      true,
			}, nil)
		}

		return fn(FileInfo{
			Path:         p,
			RelativePath: relPath,
			Size:         fi.Size(),
			ModTime:      fi.ModTime(),
			IsDir:        fi.IsDir(),
		}, nil)
	})

	if err != nil {
		return fmt.Errorf("failed to walk %s: %w", l.rootPath, err)
	}

	return nil
}

// Read opens a file for reading
func (l *Local) Read(ctx context.Context, path string) (io.ReadCloser, error) {
	file, err := l.fs.Open(l.fullPath(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	return file, nil
}

// Write stages the content in a temporary file in the target directory and
// renames it over the destination
func (l *Local) Write(ctx context.Context, path string, reader io.Reader, size int64, metadata *FileInfo) error {
	fullPath := l.fullPath(path)

	// Ensure parent directory exists
	dir := filepath.Dir(fullPath)
	if err := l.fs.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := afero.TempFile(l.fs, dir, tempPattern)
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpPath := tmp.Name()

	committed := false
	defer func() {
		if !committed {
			l.fs.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmp, reader)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}

	if written != size {
		tmp.Close()
		return fmt.Errorf("incomplete write: expected %d bytes, wrote %d", size, written)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to flush file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}

	if metadata != nil && !metadata.ModTime.IsZero() {
		if err := l.fs.Chtimes(tmpPath, metadata.ModTime, metadata.ModTime); err != nil {
			return fmt.Errorf("failed to set modification time: %w", err)
		}
	}

	if err := l.fs.Rename(tmpPath, fullPath); err != nil {
		return fmt.Errorf("failed to replace file: %w", err)
	}
	committed = true

	return nil
}

// Remove deletes a single file or empty directory
func (l *Local) Remove(ctx context.Context, path string) error {
	if err := l.fs.Remove(l.fullPath(path)); err != nil {
		return fmt.Errorf("failed to delete: %w", err)
	}

	return nil
}

// RemoveAll deletes a directory tree
func (l *Local) RemoveAll(ctx context.Context, path string) error {
	if err := l.fs.RemoveAll(l.fullPath(path)); err != nil {
		return fmt.Errorf("failed to delete: %w", err)
	}

	return nil
}

// Exists checks if a file or directory exists
func (l *Local) Exists(ctx context.Context, path string) (bool, error) {
	exists, err := afero.Exists(l.fs, l.fullPath(path))
	if err != nil {
		return false, fmt.Errorf("failed to check existence: %w", err)
	}
	return exists, nil
}

// Stat returns file metadata
func (l *Local) Stat(ctx context.Context, path string) (*FileInfo, error) {
	fullPath := l.fullPath(path)

	info, err := l.fs.Stat(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	relPath, err := l.relPath(fullPath)
	if err != nil {
		return nil, err
	}

	return &FileInfo{
		Path:         fullPath,
		RelativePath: relPath,
		Size:         info.Size(),
		ModTime:      info.ModTime(),
		IsDir:        info.IsDir(),
	}, nil
}

// MkdirAll creates a directory and all necessary parents
func (l *Local) MkdirAll(ctx context.Context, path string) error {
	if err := l.fs.MkdirAll(l.fullPath(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	return nil
}

// Close releases resources (no-op for local filesystem)
func (l *Local) Close() error {
	return nil
}
