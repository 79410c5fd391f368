package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrDirectoryNotFound is returned when a backend root does not exist
var ErrDirectoryNotFound = errors.New("directory not found")

// FileInfo represents metadata about a file or directory below a backend root
type FileInfo struct {
	// Path is the absolute path on the underlying filesystem
	Path string

	// RelativePath is relative to the backend root, always '/'-separated
	RelativePath string

	Size    int64
	ModTime time.Time
	IsDir   bool

	// Special marks an entry that is neither a regular file nor a
	// directory: a link to a directory, a dangling link, a FIFO, a socket
	// or a device. Its content is never read.
	Special bool
}

// WalkFunc is called for every entry below the root, the root itself excluded.
// When err is non-nil the entry could not be read; info still carries its
// paths. Returning filepath.SkipDir for a directory skips its contents, any
// other non-nil error stops the walk.
type WalkFunc func(info FileInfo, err error) error

// Backend defines the interface for storage operations
type Backend interface {
	// Root returns the absolute root path of the backend
	Root() string

	// Walk visits all entries below the root recursively, in lexical order.
	// It returns ErrDirectoryNotFound if the root does not exist.
	Walk(ctx context.Context, fn WalkFunc) error

	// Read opens a file for reading
	Read(ctx context.Context, path string) (io.ReadCloser, error)

	// Write creates or replaces a file with the given content. The content
	// is staged in a temporary file next to the target and renamed over it,
	// so a failed write never leaves a partial file at path. If metadata is
	// provided its modification time is applied.
	Write(ctx context.Context, path string, reader io.Reader, size int64, metadata *FileInfo) error

	// Remove deletes a single file or empty directory
	Remove(ctx context.Context, path string) error

	// RemoveAll deletes a directory and everything beneath it
	RemoveAll(ctx context.Context, path string) error

	// Exists checks if a file or directory exists
	Exists(ctx context.Context, path string) (bool, error)

	// Stat returns file metadata
	Stat(ctx context.Context, path string) (*FileInfo, error)

	// MkdirAll creates a directory and all necessary parents
	MkdirAll(ctx context.Context, path string) error

	// Close releases any resources held by the backend
	Close() error
}
