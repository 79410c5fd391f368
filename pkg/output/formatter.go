package output

import (
	"fmt"
	"io"

	"github.com/sdejongh/foldermirror/pkg/models"
)

// Progress update types
const (
	UpdateStart    = "op_start"
	UpdateComplete = "op_complete"
	UpdateError    = "op_error"
)

// ProgressUpdate represents a progress notification during a pass
type ProgressUpdate struct {
	Type         string
	Action       models.Action
	FilePath     string
	BytesWritten int64
	TotalBytes   int64
	Error        error
}

// Formatter defines the interface for output formatting
// Implementations include human-readable, JSON and progress bar formatters
type Formatter interface {
	// Start initializes the formatter for a new pass
	Start(totalOps int, totalBytes int64) error

	// Progress reports progress during the pass
	Progress(update ProgressUpdate) error

	// Complete finalizes output and displays summary
	Complete(report *models.SyncReport) error

	// Error reports an error that stopped the pass
	Error(err error) error

	// Name returns the formatter name
	Name() string
}

// Formatter names accepted by New
const (
	FormatHuman    = "human"
	FormatJSON     = "json"
	FormatProgress = "progress"
)

// New creates the formatter registered under name
func New(name string, w io.Writer) (Formatter, error) {
	switch name {
	case "", FormatHuman:
		return NewHumanFormatter(w), nil
	case FormatJSON:
		return NewJSONFormatter(w), nil
	case FormatProgress:
		return NewProgressFormatter(w), nil
	default:
		return nil, fmt.Errorf("unknown output format %q", name)
	}
}

// Null discards everything
type Null struct{}

func (Null) Start(int, int64) error { return nil }
func (Null) Progress(ProgressUpdate) error { return nil }
func (Null) Complete(*models.SyncReport) error { return nil }
func (Null) Error(error) error { return nil }
func (Null) Name() string { return "null" }
