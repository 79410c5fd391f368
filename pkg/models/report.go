package models

import (
	"time"
)

// SyncReport represents the results of one synchronization pass
type SyncReport struct {
	ID          string
	SourcePath  string
	ReplicaPath string
	DryRun      bool

	// Timing
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	Stats Statistics

	// Operations performed, in completion order
	Operations []Operation

	// Errors encountered
	Errors []SyncError

	Status SyncStatus
}

// Statistics holds pass metrics
type Statistics struct {
	SourceFiles  int `json:"source_files"`
	SourceDirs   int `json:"source_dirs"`
	ReplicaFiles int `json:"replica_files"`
	ReplicaDirs  int `json:"replica_dirs"`

	DirsCreated  int `json:"dirs_created"`
	FilesCopied  int `json:"files_copied"`
	FilesUpdated int `json:"files_updated"`
	FilesDeleted int `json:"files_deleted"`
	DirsDeleted  int `json:"dirs_deleted"`
	FilesSkipped int `json:"files_unchanged"` // Identical, left untouched
	Errors       int `json:"errors"`

	BytesTransferred int64 `json:"bytes_transferred"`

	// AverageSpeed is in bytes per second
	AverageSpeed int64 `json:"average_speed"`
}

// Changes returns the number of mutations applied to the replica
func (s Statistics) Changes() int {
	return s.DirsCreated + s.FilesCopied + s.FilesUpdated + s.FilesDeleted + s.DirsDeleted
}

// Count adds one applied operation to the counters
func (s *Statistics) Count(action Action) {
	switch action {
	case ActionCreateDir:
		s.DirsCreated++
	case ActionCopy:
		s.FilesCopied++
	case ActionUpdate:
		s.FilesUpdated++
	case ActionDeleteFile:
		s.FilesDeleted++
	case ActionDeleteDir:
		s.DirsDeleted++
	}
}

// SyncStatus represents the overall result
type SyncStatus string

const (
	// StatusSuccess indicates all operations completed successfully
	StatusSuccess SyncStatus = "success"
	// StatusPartial indicates some entries failed and were skipped
	StatusPartial SyncStatus = "partial"
	// StatusFailed indicates the pass could not run or was aborted
	StatusFailed SyncStatus = "failed"
	// StatusCancelled indicates the pass was cancelled
	StatusCancelled SyncStatus = "cancelled"
)

// SyncError represents a per-entry error during a pass
type SyncError struct {
	FilePath  string    `json:"path"`
	Operation Action    `json:"operation,omitempty"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// ExitCode returns the appropriate exit code for the sync status
func (s SyncStatus) ExitCode() int {
	switch s {
	case StatusSuccess:
		return 0
	case StatusPartial:
		return 1
	case StatusFailed:
		return 2
	case StatusCancelled:
		return 3
	default:
		return 2
	}
}
