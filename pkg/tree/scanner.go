package tree

import (
	"context"
	"path/filepath"

	"github.com/sdejongh/foldermirror/pkg/storage"
)

// ErrDirectoryNotFound is returned when the scanned root does not exist
var ErrDirectoryNotFound = storage.ErrDirectoryNotFound

// Scanner builds Trees from storage backends
type Scanner struct {
	matcher *Matcher
}

// NewScanner creates a scanner that skips entries matched by matcher.
// A nil matcher excludes nothing.
func NewScanner(matcher *Matcher) *Scanner {
	return &Scanner{matcher: matcher}
}

// Scan lists every file, directory and special entry below the backend
// root. Entries that cannot be read are recorded in Tree.Errors and the
// scan continues. A missing root returns an error wrapping
// ErrDirectoryNotFound.
func (s *Scanner) Scan(ctx context.Context, backend storage.Backend) (*Tree, error) {
	t := Empty(backend.Root())

	err := backend.Walk(ctx, func(info storage.FileInfo, err error) error {
		if err != nil {
			t.Errors = append(t.Errors, ScanError{RelativePath: info.RelativePath, Err: err})
			if info.IsDir {
				return filepath.SkipDir
			}
			return nil
		}

		if s.matcher.Match(info.RelativePath, info.IsDir) {
			if info.IsDir {
				return filepath.SkipDir
			}
			return nil
		}

		if info.IsDir {
			t.addDir(info.RelativePath)
			return nil
		}

		if info.Special {
			t.addSpecial(info.RelativePath)
			return nil
		}

		t.addFile(Entry{
			RelativePath: info.RelativePath,
			Size:         info.Size,
			ModTime:      info.ModTime,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return t, nil
}
