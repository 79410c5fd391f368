package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdejongh/foldermirror/pkg/models"
)

func sampleReport() *models.SyncReport {
	start := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	return &models.SyncReport{
		ID:          "4f1c2b1e-0000-4000-8000-000000000001",
		SourcePath:  "/data/source",
		ReplicaPath: "/data/replica",
		StartTime:   start,
		EndTime:     start.Add(1500 * time.Millisecond),
		Duration:    1500 * time.Millisecond,
		Stats: models.Statistics{
			SourceFiles:      3,
			SourceDirs:       1,
			DirsCreated:      1,
			FilesCopied:      2,
			FilesDeleted:     1,
			Errors:           1,
			BytesTransferred: 2048,
			AverageSpeed:     1365,
		},
		Operations: []models.Operation{
			{Action: models.ActionCreateDir, RelativePath: "docs"},
			{Action: models.ActionCopy, RelativePath: "docs/a.txt", Size: 1024},
		},
		Errors: []models.SyncError{
			{FilePath: "locked.bin", Operation: models.ActionCopy, Error: "permission denied"},
		},
		Status: models.StatusPartial,
	}
}

func samplePlan() *models.Plan {
	return &models.Plan{
		SourcePath:  "/data/source",
		ReplicaPath: "/data/replica",
		CreateDirs:  []models.Operation{{Action: models.ActionCreateDir, RelativePath: "docs"}},
		Transfers: []models.Operation{
			{Action: models.ActionCopy, RelativePath: "docs/a.txt", Size: 1024},
			{Action: models.ActionUpdate, RelativePath: "b.txt", Size: 2048, Reason: "file sizes differ (2048 vs 10)"},
		},
		DeleteFiles: []models.Operation{{Action: models.ActionDeleteFile, RelativePath: "old.txt"}},
		DeleteDirs:  []models.Operation{{Action: models.ActionDeleteDir, RelativePath: "stale"}},
		Identical:   4,
	}
}

func TestNew(t *testing.T) {
	for _, name := range []string{"", FormatHuman, FormatJSON, FormatProgress} {
		f, err := New(name, &bytes.Buffer{})
		require.NoError(t, err, name)
		if name != "" {
			assert.Equal(t, name, f.Name())
		}
	}

	_, err := New("xml", nil)
	assert.Error(t, err)
}

func TestHumanFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewHumanFormatter(&buf)

	require.NoError(t, f.Start(3, 2048))
	require.NoError(t, f.Progress(ProgressUpdate{Type: UpdateComplete, Action: models.ActionCopy, FilePath: "docs/a.txt"}))
	require.NoError(t, f.Progress(ProgressUpdate{Type: UpdateError, Action: models.ActionCopy, FilePath: "locked.bin", Error: errors.New("permission denied")}))
	require.NoError(t, f.Complete(sampleReport()))

	out := buf.String()
	assert.Contains(t, out, "Starting pass: 3 operations, 2.0 KiB to transfer")
	assert.Contains(t, out, "[2/3] ✗ copy locked.bin: permission denied")
	assert.Contains(t, out, "Pass completed in 1.5s")
	assert.Contains(t, out, "Files copied:       2")
	assert.Contains(t, out, "Status: partial")
	assert.Contains(t, out, "locked.bin: permission denied")
}

func TestHumanFormatter_UpToDate(t *testing.T) {
	var buf bytes.Buffer
	f := NewHumanFormatter(&buf)

	require.NoError(t, f.Start(0, 0))
	assert.Equal(t, "Replica is up to date\n", buf.String())
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewJSONFormatter(&buf)

	require.NoError(t, f.Start(2, 1024))
	require.NoError(t, f.Progress(ProgressUpdate{Type: UpdateComplete}))
	assert.Zero(t, buf.Len(), "progress must not break the JSON document")

	require.NoError(t, f.Complete(sampleReport()))

	var doc JSONReportData
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "partial", doc.Status)
	assert.Equal(t, "2024-03-09T14:05:07Z", doc.StartTime)
	assert.Equal(t, int64(1500), doc.DurationMs)
	assert.Equal(t, 2, doc.Stats.Operations.FilesCopied)
	assert.Equal(t, int64(2048), doc.Stats.Transfer.BytesTransferred)
	assert.Equal(t, "1.3 KiB/s", doc.Stats.Transfer.AverageSpeedStr)
	require.Len(t, doc.Operations, 2)
	assert.Equal(t, models.ActionCreateDir, doc.Operations[0].Action)
	require.Len(t, doc.Errors, 1)
	assert.Equal(t, "locked.bin", doc.Errors[0].FilePath)
}

func TestJSONFormatter_FatalErrors(t *testing.T) {
	var buf bytes.Buffer
	f := NewJSONFormatter(&buf)

	require.NoError(t, f.Start(0, 0))
	require.NoError(t, f.Error(errors.New("source directory not found")))

	report := sampleReport()
	report.Status = models.StatusFailed
	require.NoError(t, f.Complete(report))

	var doc JSONReportData
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, []string{"source directory not found"}, doc.FatalErrors)
}

func TestProgressFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewProgressFormatter(&buf)

	require.NoError(t, f.Start(2, 2048))
	require.NoError(t, f.Progress(ProgressUpdate{Type: UpdateStart, FilePath: "a"}))
	require.NoError(t, f.Progress(ProgressUpdate{Type: UpdateComplete, FilePath: "a", BytesWritten: 1024}))
	require.NoError(t, f.Progress(ProgressUpdate{Type: UpdateError, FilePath: "b", Error: errors.New("boom")}))
	require.NoError(t, f.Complete(sampleReport()))

	assert.Contains(t, buf.String(), "Status: partial")

	// Progress after completion is ignored
	assert.NoError(t, f.Progress(ProgressUpdate{Type: UpdateComplete, BytesWritten: 1}))
}

func TestWritePlan_Human(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePlan(samplePlan(), &buf, FormatHuman))

	out := buf.String()
	assert.Contains(t, out, "Total operations: 5 (3.0 KiB to transfer, 4 files unchanged)")
	assert.Contains(t, out, "Directories to create (1)")
	assert.Contains(t, out, "Files to transfer (2)")
	assert.Contains(t, out, "Reason: file sizes differ (2048 vs 10)")
	assert.Contains(t, out, "Obsolete directories (1)")
	assert.NotContains(t, out, "Type conflicts")
}

func TestWritePlan_UpToDate(t *testing.T) {
	var buf bytes.Buffer
	plan := &models.Plan{SourcePath: "/s", ReplicaPath: "/r", Identical: 7}
	require.NoError(t, WritePlan(plan, &buf, FormatHuman))

	assert.Contains(t, buf.String(), "Replica is up to date (7 files unchanged)")
}

func TestWritePlanFile_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.json")
	require.NoError(t, WritePlanFile(samplePlan(), path, FormatJSON))

	content, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc struct {
		TotalCount    int                `json:"total_count"`
		TransferBytes int64              `json:"transfer_bytes"`
		Operations    []models.Operation `json:"operations"`
	}
	require.NoError(t, json.Unmarshal(content, &doc))
	assert.Equal(t, 5, doc.TotalCount)
	assert.Equal(t, int64(3072), doc.TransferBytes)
	require.Len(t, doc.Operations, 5)
	assert.Equal(t, "docs", doc.Operations[0].RelativePath)
	assert.Equal(t, models.ActionDeleteDir, doc.Operations[4].Action)
}
