package output

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/cheggaaa/pb/v3"
	"golang.org/x/term"

	"github.com/sdejongh/foldermirror/pkg/models"
)

const progressTemplate = `{{string . "prefix"}}{{counters . }} {{bar . "[" "█" "█" "░" "]"}} {{percent . }} {{speed . "%s/s" "?/s"}} {{rtime . "ETA %s"}}`

// ProgressFormatter draws a transfer progress bar
type ProgressFormatter struct {
	writer io.Writer

	mu       sync.Mutex
	bar      *pb.ProgressBar
	totalOps int
	done     int
}

// NewProgressFormatter creates a new progress bar formatter
func NewProgressFormatter(w io.Writer) *ProgressFormatter {
	if w == nil {
		w = os.Stdout
	}
	return &ProgressFormatter{writer: w}
}

// Start creates the bar sized to the bytes of the pass
func (f *ProgressFormatter) Start(totalOps int, totalBytes int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.totalOps = totalOps
	f.done = 0

	bar := pb.New64(totalBytes)
	bar.Set(pb.Bytes, true)
	bar.SetWriter(f.writer)
	bar.SetRefreshRate(200 * time.Millisecond)
	bar.SetTemplateString(progressTemplate)
	bar.Set("prefix", fmt.Sprintf("0/%d ops ", totalOps))

	// Keep the bar on one line when the terminal is narrow
	if file, ok := f.writer.(*os.File); ok {
		if width, _, err := term.GetSize(int(file.Fd())); err == nil && width > 0 {
			bar.SetWidth(width)
		}
	}

	f.bar = bar.Start()
	return nil
}

// Progress advances the bar
func (f *ProgressFormatter) Progress(update ProgressUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.bar == nil {
		return nil
	}

	switch update.Type {
	case UpdateComplete:
		f.done++
		f.bar.Add64(update.BytesWritten)
	case UpdateError:
		f.done++
	}
	f.bar.Set("prefix", fmt.Sprintf("%d/%d ops ", f.done, f.totalOps))
	return nil
}

// Complete stops the bar and prints the summary
func (f *ProgressFormatter) Complete(report *models.SyncReport) error {
	f.mu.Lock()
	if f.bar != nil {
		f.bar.SetCurrent(f.bar.Total())
		f.bar.Finish()
		f.bar = nil
	}
	f.mu.Unlock()

	writeSummary(f.writer, report)
	return nil
}

// Error stops the bar and reports the error
func (f *ProgressFormatter) Error(err error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.bar != nil {
		f.bar.Finish()
		f.bar = nil
	}
	fmt.Fprintf(f.writer, "\n✗ Error: %v\n", err)
	return nil
}

// Name returns the formatter name
func (f *ProgressFormatter) Name() string {
	return FormatProgress
}
