package schedule

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sdejongh/foldermirror/pkg/models"
)

const (
	statusFileVersion = 1
	statusFileName    = "foldermirror-status.json"
	lockFileName      = "foldermirror.lock"
)

// Status summarizes the passes of a mirror. It is persisted after every
// pass so that another process can report on a running driver.
type Status struct {
	// Version for status file format compatibility
	Version int `json:"version"`

	SourcePath  string `json:"source_path"`
	ReplicaPath string `json:"replica_path"`

	// Passes counts the passes recorded since the file was created
	Passes int `json:"passes"`

	LastPassID       string            `json:"last_pass_id,omitempty"`
	LastPassTime     time.Time         `json:"last_pass_time"`
	LastPassDuration string            `json:"last_pass_duration,omitempty"`
	LastStatus       models.SyncStatus `json:"last_status,omitempty"`
	LastError        string            `json:"last_error,omitempty"`
	LastStats        models.Statistics `json:"last_stats"`

	// LastSuccess is when a pass last completed without any error
	LastSuccess time.Time `json:"last_success"`

	// ConsecutiveFailures resets to 0 on a successful pass
	ConsecutiveFailures int `json:"consecutive_failures"`

	path string
}

// StatusPath returns the status file location inside a log directory
func StatusPath(logDir string) string {
	return filepath.Join(logDir, statusFileName)
}

// LockPath returns the driver lock file location inside a log directory
func LockPath(logDir string) string {
	return filepath.Join(logDir, lockFileName)
}

// NewStatus creates an empty status stored at path
func NewStatus(path, sourcePath, replicaPath string) *Status {
	return &Status{
		Version:     statusFileVersion,
		SourcePath:  sourcePath,
		ReplicaPath: replicaPath,
		path:        path,
	}
}

// LoadStatus reads the status file at path.
// Returns a new empty status if the file doesn't exist.
func LoadStatus(path string) (*Status, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewStatus(path, "", ""), nil
		}
		return nil, fmt.Errorf("failed to read status file: %w", err)
	}

	var status Status
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("failed to parse status file: %w", err)
	}

	if status.Version > statusFileVersion {
		return nil, fmt.Errorf("status file version %d is newer than supported version %d", status.Version, statusFileVersion)
	}

	status.path = path
	return &status, nil
}

// Path returns the file the status is saved to
func (s *Status) Path() string {
	return s.path
}

// Empty reports whether no pass was recorded yet
func (s *Status) Empty() bool {
	return s.Passes == 0
}

// Record updates the status with the outcome of one pass
func (s *Status) Record(report *models.SyncReport, err error) {
	s.Passes++
	s.LastError = ""

	if report != nil {
		s.SourcePath = report.SourcePath
		s.ReplicaPath = report.ReplicaPath
		s.LastPassID = report.ID
		s.LastPassTime = report.EndTime
		s.LastPassDuration = report.Duration.Round(time.Millisecond).String()
		s.LastStatus = report.Status
		s.LastStats = report.Stats
	} else {
		s.LastPassTime = time.Now()
		s.LastStatus = models.StatusFailed
		s.LastStats = models.Statistics{}
	}

	if err != nil {
		s.LastError = err.Error()
	}

	if err == nil && s.LastStatus == models.StatusSuccess {
		s.LastSuccess = s.LastPassTime
		s.ConsecutiveFailures = 0
	} else {
		s.ConsecutiveFailures++
	}
}

// Save writes the status file atomically
func (s *Status) Save() error {
	if s.path == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create status directory: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}

	// Write atomically using temp file
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write status file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to finalize status file: %w", err)
	}

	return nil
}
