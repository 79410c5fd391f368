package output

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/sdejongh/foldermirror/pkg/models"
)

// JSONFormatter formats output as JSON for automation and scripting
type JSONFormatter struct {
	writer io.Writer

	mu     sync.Mutex
	failed []string
}

// JSONReportData represents the final report document
type JSONReportData struct {
	ID          string             `json:"id"`
	Source      string             `json:"source"`
	Replica     string             `json:"replica"`
	DryRun      bool               `json:"dry_run"`
	Status      string             `json:"status"`
	StartTime   string             `json:"start_time"`
	Duration    string             `json:"duration"`
	DurationMs  int64              `json:"duration_ms"`
	Stats       JSONStatsData      `json:"stats"`
	Operations  []models.Operation `json:"operations,omitempty"`
	Errors      []models.SyncError `json:"errors,omitempty"`
	FatalErrors []string           `json:"fatal_errors,omitempty"`
}

// JSONStatsData represents statistics in JSON format
type JSONStatsData struct {
	Scanned    JSONScannedData    `json:"scanned"`
	Operations JSONOperationsData `json:"operations"`
	Transfer   JSONTransferData   `json:"transfer"`
}

// JSONScannedData represents scanned entry counts
type JSONScannedData struct {
	SourceFiles  int `json:"source_files"`
	SourceDirs   int `json:"source_dirs"`
	ReplicaFiles int `json:"replica_files"`
	ReplicaDirs  int `json:"replica_dirs"`
}

// JSONOperationsData represents operation counts
type JSONOperationsData struct {
	DirsCreated    int `json:"dirs_created"`
	FilesCopied    int `json:"files_copied"`
	FilesUpdated   int `json:"files_updated"`
	FilesDeleted   int `json:"files_deleted"`
	DirsDeleted    int `json:"dirs_deleted"`
	FilesUnchanged int `json:"files_unchanged"`
	Errors         int `json:"errors"`
}

// JSONTransferData represents transfer statistics
type JSONTransferData struct {
	BytesTransferred int64  `json:"bytes_transferred"`
	AverageSpeed     int64  `json:"average_speed_bytes_per_sec,omitempty"`
	AverageSpeedStr  string `json:"average_speed,omitempty"`
}

// NewJSONFormatter creates a new JSON formatter
func NewJSONFormatter(w io.Writer) *JSONFormatter {
	if w == nil {
		w = io.Discard
	}
	return &JSONFormatter{writer: w}
}

// Start initializes the formatter
func (f *JSONFormatter) Start(totalOps int, totalBytes int64) error {
	f.mu.Lock()
	f.failed = nil
	f.mu.Unlock()
	return nil
}

// Progress does nothing; the document is written once by Complete so the
// output stays parseable
func (f *JSONFormatter) Progress(update ProgressUpdate) error {
	return nil
}

// Complete writes the report as one JSON document
func (f *JSONFormatter) Complete(report *models.SyncReport) error {
	f.mu.Lock()
	fatal := f.failed
	f.mu.Unlock()

	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(NewJSONReport(report, fatal))
}

// Error records an error that stopped the pass
func (f *JSONFormatter) Error(err error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed = append(f.failed, err.Error())
	return nil
}

// Name returns the formatter name
func (f *JSONFormatter) Name() string {
	return FormatJSON
}

// NewJSONReport converts a report into its JSON document
func NewJSONReport(report *models.SyncReport, fatal []string) JSONReportData {
	s := report.Stats

	data := JSONReportData{
		ID:         report.ID,
		Source:     report.SourcePath,
		Replica:    report.ReplicaPath,
		DryRun:     report.DryRun,
		Status:     string(report.Status),
		StartTime:  report.StartTime.UTC().Format(time.RFC3339),
		Duration:   report.Duration.Round(time.Millisecond).String(),
		DurationMs: report.Duration.Milliseconds(),
		Stats: JSONStatsData{
			Scanned: JSONScannedData{
				SourceFiles:  s.SourceFiles,
				SourceDirs:   s.SourceDirs,
				ReplicaFiles: s.ReplicaFiles,
				ReplicaDirs:  s.ReplicaDirs,
			},
			Operations: JSONOperationsData{
				DirsCreated:    s.DirsCreated,
				FilesCopied:    s.FilesCopied,
				FilesUpdated:   s.FilesUpdated,
				FilesDeleted:   s.FilesDeleted,
				DirsDeleted:    s.DirsDeleted,
				FilesUnchanged: s.FilesSkipped,
				Errors:         s.Errors,
			},
			Transfer: JSONTransferData{
				BytesTransferred: s.BytesTransferred,
				AverageSpeed:     s.AverageSpeed,
			},
		},
		Operations:  report.Operations,
		Errors:      report.Errors,
		FatalErrors: fatal,
	}
	if s.AverageSpeed > 0 {
		data.Stats.Transfer.AverageSpeedStr = humanize.IBytes(uint64(s.AverageSpeed)) + "/s"
	}
	return data
}
