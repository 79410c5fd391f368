package compare

import (
	"context"
	"fmt"
	"time"

	"github.com/sdejongh/foldermirror/pkg/storage"
)

const timeLayout = "2006-01-02 15:04:05.000000000"

// MetadataComparator compares files by size and last modification time (UTC)
type MetadataComparator struct {
	window time.Duration
}

// NewMetadataComparator creates a metadata comparator. A zero window
// requires modification times to match exactly.
func NewMetadataComparator(window time.Duration) *MetadataComparator {
	if window < 0 {
		window = 0
	}
	return &MetadataComparator{window: window}
}

// Compare reports Divergent when sizes differ or when modification times
// differ by more than the configured window
func (c *MetadataComparator) Compare(ctx context.Context, source, replica storage.Backend, relativePath string) (*Comparison, error) {
	sourceInfo, replicaInfo, err := statPair(ctx, source, replica, relativePath)
	if err != nil {
		return nil, err
	}

	if sourceInfo.Size != replicaInfo.Size {
		return divergent(relativePath, fmt.Sprintf("file sizes differ (source: %d, replica: %d)", sourceInfo.Size, replicaInfo.Size)), nil
	}

	sourceTime := sourceInfo.ModTime.UTC()
	replicaTime := replicaInfo.ModTime.UTC()

	diff := sourceTime.Sub(replicaTime)
	if diff < 0 {
		diff = -diff
	}
	if diff > c.window {
		return divergent(relativePath, fmt.Sprintf("modification times differ (source: %s, replica: %s)",
			sourceTime.Format(timeLayout), replicaTime.Format(timeLayout))), nil
	}

	return identical(relativePath, "size and modification time match"), nil
}

// Name returns the comparator name
func (c *MetadataComparator) Name() string {
	return "metadata"
}
