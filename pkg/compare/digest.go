package compare

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/sdejongh/foldermirror/pkg/storage"
)

// Partial hashing configuration
const (
	// Minimum file size to enable partial hashing (1MB)
	partialHashThreshold = 1 * 1024 * 1024
	// Size of partial hash to compute (256KB)
	partialHashSize = 256 * 1024
)

// DigestComparator compares files by a content hash
type DigestComparator struct {
	algorithm         string
	newHash           func() hash.Hash
	bufferPool        *sync.Pool
	enablePartialHash bool
	readerWrapper     ReaderWrapper
}

// NewDigestComparator creates a digest comparator for "sha256" (the
// default when algorithm is empty) or "md5"
func NewDigestComparator(algorithm string, bufferSize int) (*DigestComparator, error) {
	var newHash func() hash.Hash
	switch algorithm {
	case "", "sha256":
		algorithm = "sha256"
		newHash = sha256.New
	case "md5":
		newHash = md5.New
	default:
		return nil, fmt.Errorf("unsupported digest algorithm: %s", algorithm)
	}

	if bufferSize < 4096 {
		bufferSize = 4096
	}

	return &DigestComparator{
		algorithm:         algorithm,
		newHash:           newHash,
		enablePartialHash: true,
		bufferPool: &sync.Pool{
			New: func() interface{} {
				buf := make([]byte, bufferSize)
				return &buf
			},
		},
	}, nil
}

// SetPartialHashEnabled enables or disables the partial hash pre-check
func (c *DigestComparator) SetPartialHashEnabled(enabled bool) {
	c.enablePartialHash = enabled
}

// SetReaderWrapper sets a function to wrap readers (e.g., for rate limiting)
func (c *DigestComparator) SetReaderWrapper(wrapper ReaderWrapper) {
	c.readerWrapper = wrapper
}

// Compare compares both copies by digest. A size mismatch is Divergent
// without reading any content.
func (c *DigestComparator) Compare(ctx context.Context, source, replica storage.Backend, relativePath string) (*Comparison, error) {
	sourceInfo, replicaInfo, err := statPair(ctx, source, replica, relativePath)
	if err != nil {
		return nil, err
	}

	if sourceInfo.Size != replicaInfo.Size {
		return divergent(relativePath, "file sizes differ"), nil
	}

	// Large files: a differing prefix rejects early
	if c.enablePartialHash && sourceInfo.Size >= partialHashThreshold {
		sourceSum, replicaSum, err := c.digestPair(ctx, source, replica, relativePath, partialHashSize)
		if err == nil && sourceSum != replicaSum {
			return divergent(relativePath, "file partial hashes differ"), nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// On error fall back to the full hash
	}

	sourceSum, replicaSum, err := c.digestPair(ctx, source, replica, relativePath, -1)
	if err != nil {
		return nil, err
	}

	if sourceSum != replicaSum {
		return divergent(relativePath, "file hashes differ"), nil
	}

	return identical(relativePath, c.algorithm+" hashes match"), nil
}

// digestPair hashes both copies in parallel. A negative limit hashes the
// whole file.
func (c *DigestComparator) digestPair(ctx context.Context, source, replica storage.Backend, relativePath string, limit int64) (string, string, error) {
	var sourceSum, replicaSum string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sum, err := c.digest(gctx, source, relativePath, limit)
		if err != nil {
			return fmt.Errorf("failed to compute source hash: %w", err)
		}
		sourceSum = sum
		return nil
	})
	g.Go(func() error {
		sum, err := c.digest(gctx, replica, relativePath, limit)
		if err != nil {
			return fmt.Errorf("failed to compute replica hash: %w", err)
		}
		replicaSum = sum
		return nil
	})

	if err := g.Wait(); err != nil {
		return "", "", err
	}
	return sourceSum, replicaSum, nil
}

func (c *DigestComparator) digest(ctx context.Context, backend storage.Backend, path string, limit int64) (string, error) {
	reader, err := backend.Read(ctx, path)
	if err != nil {
		return "", err
	}
	defer reader.Close()

	if c.readerWrapper != nil {
		reader = c.readerWrapper(reader)
	}

	var src io.Reader = reader
	if limit >= 0 {
		src = io.LimitReader(reader, limit)
	}

	hasher := c.newHash()

	bufPtr := c.bufferPool.Get().(*[]byte)
	buffer := *bufPtr
	defer c.bufferPool.Put(bufPtr)

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		n, err := src.Read(buffer)
		if n > 0 {
			hasher.Write(buffer[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to read file: %w", err)
		}
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// Name returns the comparator name
func (c *DigestComparator) Name() string {
	return "digest"
}

// Algorithm returns the configured hash algorithm
func (c *DigestComparator) Algorithm() string {
	return c.algorithm
}
