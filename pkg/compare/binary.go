package compare

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/sdejongh/foldermirror/pkg/storage"
)

// BinaryComparator compares files byte-by-byte.
// This is the most thorough comparison but also the slowest; the reason
// of a Divergent result names the first differing offset.
type BinaryComparator struct {
	bufferPool    *sync.Pool
	readerWrapper ReaderWrapper
}

// NewBinaryComparator creates a new byte-by-byte comparator
func NewBinaryComparator(bufferSize int) *BinaryComparator {
	if bufferSize < 4096 {
		bufferSize = 4096
	}
	return &BinaryComparator{
		bufferPool: &sync.Pool{
			New: func() interface{} {
				buf := make([]byte, bufferSize)
				return &buf
			},
		},
	}
}

// SetReaderWrapper sets a function to wrap readers (e.g., for rate limiting)
func (c *BinaryComparator) SetReaderWrapper(wrapper ReaderWrapper) {
	c.readerWrapper = wrapper
}

// Compare compares two files byte-by-byte
func (c *BinaryComparator) Compare(ctx context.Context, source, replica storage.Backend, relativePath string) (*Comparison, error) {
	sourceInfo, replicaInfo, err := statPair(ctx, source, replica, relativePath)
	if err != nil {
		return nil, err
	}

	if sourceInfo.Size != replicaInfo.Size {
		return divergent(relativePath, fmt.Sprintf("size mismatch: source=%d, replica=%d", sourceInfo.Size, replicaInfo.Size)), nil
	}

	sourceReader, err := source.Read(ctx, relativePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open source file: %w", err)
	}
	defer sourceReader.Close()

	replicaReader, err := replica.Read(ctx, relativePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open replica file: %w", err)
	}
	defer replicaReader.Close()

	var sourceStream io.Reader = sourceReader
	var replicaStream io.Reader = replicaReader
	if c.readerWrapper != nil {
		sourceStream = c.readerWrapper(sourceReader)
		replicaStream = c.readerWrapper(replicaReader)
	}

	sourceBufPtr := c.bufferPool.Get().(*[]byte)
	defer c.bufferPool.Put(sourceBufPtr)
	sourceBuf := *sourceBufPtr

	replicaBufPtr := c.bufferPool.Get().(*[]byte)
	defer c.bufferPool.Put(replicaBufPtr)
	replicaBuf := *replicaBufPtr

	var offset int64
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		// ReadFull keeps both streams aligned on short reads
		sourceN, sourceErr := io.ReadFull(sourceStream, sourceBuf)
		replicaN, replicaErr := io.ReadFull(replicaStream, replicaBuf)

		n := sourceN
		if replicaN < n {
			n = replicaN
		}
		if !bytes.Equal(sourceBuf[:n], replicaBuf[:n]) {
			for i := 0; i < n; i++ {
				if sourceBuf[i] != replicaBuf[i] {
					return divergent(relativePath, fmt.Sprintf("binary content differs at byte offset %d", offset+int64(i))), nil
				}
			}
		}
		if sourceN != replicaN {
			return divergent(relativePath, fmt.Sprintf("length differs at byte offset %d", offset+int64(n))), nil
		}
		offset += int64(n)

		sourceDone := sourceErr == io.EOF || sourceErr == io.ErrUnexpectedEOF
		replicaDone := replicaErr == io.EOF || replicaErr == io.ErrUnexpectedEOF

		if sourceErr != nil && !sourceDone {
			return nil, fmt.Errorf("failed to read source: %w", sourceErr)
		}
		if replicaErr != nil && !replicaDone {
			return nil, fmt.Errorf("failed to read replica: %w", replicaErr)
		}
		if sourceDone && replicaDone {
			break
		}
		if sourceDone != replicaDone {
			return divergent(relativePath, fmt.Sprintf("length differs at byte offset %d", offset)), nil
		}
	}

	return identical(relativePath, fmt.Sprintf("binary content matches (%d bytes)", offset)), nil
}

// Name returns the comparator name
func (c *BinaryComparator) Name() string {
	return "binary"
}
