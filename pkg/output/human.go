package output

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/sdejongh/foldermirror/pkg/models"
)

// HumanFormatter formats output in human-readable format
type HumanFormatter struct {
	writer     io.Writer
	totalOps   int
	totalBytes int64
	done       int
}

// NewHumanFormatter creates a new human-readable formatter
func NewHumanFormatter(w io.Writer) *HumanFormatter {
	if w == nil {
		w = io.Discard
	}
	return &HumanFormatter{writer: w}
}

// Start initializes the formatter
func (f *HumanFormatter) Start(totalOps int, totalBytes int64) error {
	f.totalOps = totalOps
	f.totalBytes = totalBytes
	f.done = 0

	if totalOps == 0 {
		fmt.Fprintf(f.writer, "Replica is up to date\n")
		return nil
	}
	fmt.Fprintf(f.writer, "Starting pass: %d operations, %s to transfer\n",
		totalOps, humanize.IBytes(uint64(totalBytes)))
	return nil
}

// Progress reports failed operations; successful ones go to the log
func (f *HumanFormatter) Progress(update ProgressUpdate) error {
	switch update.Type {
	case UpdateComplete:
		f.done++
	case UpdateError:
		f.done++
		fmt.Fprintf(f.writer, "[%d/%d] ✗ %s %s: %v\n",
			f.done, f.totalOps, update.Action, update.FilePath, update.Error)
	}
	return nil
}

// Complete finalizes output and displays summary
func (f *HumanFormatter) Complete(report *models.SyncReport) error {
	writeSummary(f.writer, report)
	return nil
}

// Error reports an error
func (f *HumanFormatter) Error(err error) error {
	fmt.Fprintf(f.writer, "Error: %v\n", err)
	return nil
}

// Name returns the formatter name
func (f *HumanFormatter) Name() string {
	return FormatHuman
}

// writeSummary prints the end-of-pass summary shared by the human and
// progress formatters
func writeSummary(w io.Writer, report *models.SyncReport) {
	s := report.Stats

	fmt.Fprintf(w, "\n")
	if report.DryRun {
		fmt.Fprintf(w, "Dry run completed in %s\n", report.Duration.Round(time.Millisecond))
	} else {
		fmt.Fprintf(w, "Pass completed in %s\n", report.Duration.Round(time.Millisecond))
	}
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "Summary:\n")
	fmt.Fprintf(w, "  Scanned:\n")
	fmt.Fprintf(w, "    Source:         %d files, %d dirs\n", s.SourceFiles, s.SourceDirs)
	fmt.Fprintf(w, "    Replica:        %d files, %d dirs\n", s.ReplicaFiles, s.ReplicaDirs)
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "  Operations:\n")
	fmt.Fprintf(w, "    Dirs created:       %d\n", s.DirsCreated)
	fmt.Fprintf(w, "    Files copied:       %d\n", s.FilesCopied)
	fmt.Fprintf(w, "    Files updated:      %d\n", s.FilesUpdated)
	fmt.Fprintf(w, "    Files deleted:      %d\n", s.FilesDeleted)
	fmt.Fprintf(w, "    Dirs deleted:       %d\n", s.DirsDeleted)
	fmt.Fprintf(w, "    Files unchanged:    %d\n", s.FilesSkipped)
	fmt.Fprintf(w, "    Errors:             %d\n", s.Errors)
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "  Transfer:\n")
	fmt.Fprintf(w, "    Data:           %s\n", humanize.IBytes(uint64(s.BytesTransferred)))
	if s.AverageSpeed > 0 {
		fmt.Fprintf(w, "    Average speed:  %s/s\n", humanize.IBytes(uint64(s.AverageSpeed)))
	}

	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "Status: %s\n", report.Status)

	if len(report.Errors) > 0 {
		fmt.Fprintf(w, "\nErrors:\n")
		for _, err := range report.Errors {
			fmt.Fprintf(w, "  %s: %s\n", err.FilePath, err.Error)
		}
	}
}
