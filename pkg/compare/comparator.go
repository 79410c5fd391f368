package compare

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sdejongh/foldermirror/pkg/models"
	"github.com/sdejongh/foldermirror/pkg/storage"
)

// Result represents the outcome of comparing two files
type Result string

const (
	// Identical means the replica copy does not need to be rewritten
	Identical Result = "identical"
	// Divergent means the replica copy must be overwritten from the source
	Divergent Result = "divergent"
)

// Comparison holds the result of comparing the source and replica copies
// of one relative path
type Comparison struct {
	RelativePath string
	Result       Result
	Reason       string
}

// Comparator defines the interface for file comparison algorithms
type Comparator interface {
	// Compare compares the file at relativePath in both backends. It is
	// only called for paths present as regular files on both sides.
	Compare(ctx context.Context, source, replica storage.Backend, relativePath string) (*Comparison, error)

	// Name returns the name of the comparison method
	Name() string
}

// ReaderWrapper wraps readers opened by content comparators (e.g. for rate limiting)
type ReaderWrapper func(io.ReadCloser) io.ReadCloser

// Options configures the comparator built by New
type Options struct {
	// BufferSize is the read buffer for content comparators
	BufferSize int

	// ModTimeWindow tolerates modification time differences up to this
	// duration in the metadata comparator
	ModTimeWindow time.Duration

	// DigestAlgorithm is "sha256" (default) or "md5"
	DigestAlgorithm string

	// ReaderWrapper is applied to every reader opened by content comparators
	ReaderWrapper ReaderWrapper
}

// New builds the comparator for a comparison method
func New(method models.ComparisonMethod, opts Options) (Comparator, error) {
	switch method {
	case models.CompareMetadata, "":
		return NewMetadataComparator(opts.ModTimeWindow), nil
	case models.CompareDigest:
		c, err := NewDigestComparator(opts.DigestAlgorithm, opts.BufferSize)
		if err != nil {
			return nil, err
		}
		c.SetReaderWrapper(opts.ReaderWrapper)
		return c, nil
	case models.CompareBinary:
		c := NewBinaryComparator(opts.BufferSize)
		c.SetReaderWrapper(opts.ReaderWrapper)
		return c, nil
	default:
		return nil, fmt.Errorf("unknown comparison method: %s", method)
	}
}

func identical(relativePath, reason string) *Comparison {
	return &Comparison{RelativePath: relativePath, Result: Identical, Reason: reason}
}

func divergent(relativePath, reason string) *Comparison {
	return &Comparison{RelativePath: relativePath, Result: Divergent, Reason: reason}
}

// statPair returns the metadata of both copies
func statPair(ctx context.Context, source, replica storage.Backend, relativePath string) (*storage.FileInfo, *storage.FileInfo, error) {
	sourceInfo, err := source.Stat(ctx, relativePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to stat source file: %w", err)
	}

	replicaInfo, err := replica.Stat(ctx, relativePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to stat replica file: %w", err)
	}

	return sourceInfo, replicaInfo, nil
}
