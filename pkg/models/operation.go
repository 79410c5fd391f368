package models

// ComparisonMethod defines how same-path files are compared
type ComparisonMethod string

const (
	// CompareMetadata compares size and last modification time (UTC)
	CompareMetadata ComparisonMethod = "metadata"
	// CompareDigest compares content hashes (SHA-256 or MD5)
	CompareDigest ComparisonMethod = "digest"
	// CompareBinary compares byte-by-byte
	CompareBinary ComparisonMethod = "binary"
)

// ComparisonMethods lists the supported methods
var ComparisonMethods = []ComparisonMethod{CompareMetadata, CompareDigest, CompareBinary}

// Valid reports whether m names a supported method
func (m ComparisonMethod) Valid() bool {
	for _, known := range ComparisonMethods {
		if m == known {
			return true
		}
	}
	return false
}

// SyncOperation is the configuration of one mirror: the two roots and how
// a pass treats them
type SyncOperation struct {
	SourcePath       string
	ReplicaPath      string
	ComparisonMethod ComparisonMethod
	ExcludePatterns  []string
	DryRun           bool
	FailFast         bool  // Abort the pass on the first per-entry error
	MaxWorkers       int   // Parallel file transfers
	BandwidthLimit   int64 // bytes per second, 0 = unlimited
	BufferSize       int
}

// Validate checks if the operation configuration is valid
func (op *SyncOperation) Validate() error {
	if op.SourcePath == "" {
		return &ValidationError{Field: "SourcePath", Message: "source path is required"}
	}
	if op.ReplicaPath == "" {
		return &ValidationError{Field: "ReplicaPath", Message: "replica path is required"}
	}
	if !op.ComparisonMethod.Valid() {
		return &ValidationError{Field: "ComparisonMethod", Message: "unknown comparison method " + string(op.ComparisonMethod)}
	}
	if op.MaxWorkers < 1 {
		return &ValidationError{Field: "MaxWorkers", Message: "max workers must be at least 1"}
	}
	if op.BufferSize < 1024 {
		return &ValidationError{Field: "BufferSize", Message: "buffer size must be at least 1024 bytes"}
	}
	if op.BandwidthLimit < 0 {
		return &ValidationError{Field: "BandwidthLimit", Message: "bandwidth limit cannot be negative"}
	}
	return nil
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
