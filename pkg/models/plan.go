package models

import (
	"time"
)

// Action represents what is done to a replica entry
type Action string

const (
	// ActionCreateDir creates a directory missing from the replica
	ActionCreateDir Action = "create_dir"
	// ActionCopy copies a file missing from the replica
	ActionCopy Action = "copy"
	// ActionUpdate overwrites a divergent replica file
	ActionUpdate Action = "update"
	// ActionDeleteFile deletes a replica file absent from the source
	ActionDeleteFile Action = "delete_file"
	// ActionDeleteDir deletes a replica directory absent from the source
	ActionDeleteDir Action = "delete_dir"
)

// Operation is one planned or performed change to the replica
type Operation struct {
	Action       Action        `json:"action"`
	RelativePath string        `json:"path"`
	Size         int64         `json:"size,omitempty"`
	ModTime      time.Time     `json:"-"`
	Reason       string        `json:"reason,omitempty"`
	Error        string        `json:"error,omitempty"`
	BytesCopied  int64         `json:"bytes_copied,omitempty"`
	Duration     time.Duration `json:"duration,omitempty"`
}

// Plan groups the operations of one pass by phase. Each phase must finish
// before the next one starts.
type Plan struct {
	SourcePath  string
	ReplicaPath string

	// Conflicts remove replica entries whose type differs from the source
	// entry at the same path
	Conflicts   []Operation
	CreateDirs  []Operation
	Transfers   []Operation
	DeleteFiles []Operation
	// DeleteDirs is ordered deepest first
	DeleteDirs []Operation

	// Identical counts files that need no transfer
	Identical int

	// Errors holds scan and comparison failures found while planning
	Errors []SyncError
}

// Phases returns the operation lists in execution order
func (p *Plan) Phases() [][]Operation {
	return [][]Operation{p.Conflicts, p.CreateDirs, p.Transfers, p.DeleteFiles, p.DeleteDirs}
}

// Operations returns every operation in execution order
func (p *Plan) Operations() []Operation {
	ops := make([]Operation, 0, p.Len())
	for _, phase := range p.Phases() {
		ops = append(ops, phase...)
	}
	return ops
}

// Len returns the number of planned operations
func (p *Plan) Len() int {
	n := 0
	for _, phase := range p.Phases() {
		n += len(phase)
	}
	return n
}

// Empty reports whether the replica already mirrors the source
func (p *Plan) Empty() bool {
	return p.Len() == 0
}

// TransferBytes returns the number of bytes the transfers will copy
func (p *Plan) TransferBytes() int64 {
	var total int64
	for _, op := range p.Transfers {
		total += op.Size
	}
	return total
}
