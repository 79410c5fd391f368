package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/sdejongh/foldermirror/pkg/models"
)

var phaseLabels = []string{
	"Type conflicts",
	"Directories to create",
	"Files to transfer",
	"Obsolete files",
	"Obsolete directories",
}

// WritePlanFile writes a dry-run plan to a file
// Format can be "human" or "json"
func WritePlanFile(plan *models.Plan, path string, format string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create plan file: %w", err)
	}

	if err := WritePlan(plan, file, format); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// WritePlan writes a dry-run plan to w
func WritePlan(plan *models.Plan, w io.Writer, format string) error {
	switch format {
	case FormatJSON:
		return writePlanJSON(plan, w)
	default:
		return writePlanHuman(plan, w)
	}
}

// writePlanHuman lists the operations grouped by phase
func writePlanHuman(plan *models.Plan, w io.Writer) error {
	fmt.Fprintf(w, "Mirror Plan\n")
	fmt.Fprintf(w, "===========\n\n")
	fmt.Fprintf(w, "Source:  %s\n", plan.SourcePath)
	fmt.Fprintf(w, "Replica: %s\n\n", plan.ReplicaPath)

	if plan.Empty() {
		fmt.Fprintf(w, "Replica is up to date (%d files unchanged)\n", plan.Identical)
	} else {
		fmt.Fprintf(w, "Total operations: %d (%s to transfer, %d files unchanged)\n\n",
			plan.Len(), humanize.IBytes(uint64(plan.TransferBytes())), plan.Identical)
	}

	for i, ops := range plan.Phases() {
		if len(ops) == 0 {
			continue
		}

		label := fmt.Sprintf("%s (%d)", phaseLabels[i], len(ops))
		fmt.Fprintf(w, "%s\n", label)
		fmt.Fprintf(w, "%s\n", strings.Repeat("-", len(label)))

		for _, op := range ops {
			fmt.Fprintf(w, "  %-11s %s", op.Action, op.RelativePath)
			if op.Action == models.ActionCopy || op.Action == models.ActionUpdate {
				fmt.Fprintf(w, " (%s)", humanize.IBytes(uint64(op.Size)))
			}
			fmt.Fprintf(w, "\n")
			if op.Reason != "" {
				fmt.Fprintf(w, "    Reason: %s\n", op.Reason)
			}
		}
		fmt.Fprintf(w, "\n")
	}

	if len(plan.Errors) > 0 {
		label := fmt.Sprintf("Errors (%d)", len(plan.Errors))
		fmt.Fprintf(w, "%s\n", label)
		fmt.Fprintf(w, "%s\n", strings.Repeat("-", len(label)))
		for _, e := range plan.Errors {
			fmt.Fprintf(w, "  %s: %s\n", e.FilePath, e.Error)
		}
	}

	return nil
}

// writePlanJSON writes the plan as one JSON document
func writePlanJSON(plan *models.Plan, w io.Writer) error {
	output := struct {
		Generated     string             `json:"generated"`
		SourcePath    string             `json:"source_path"`
		ReplicaPath   string             `json:"replica_path"`
		TotalCount    int                `json:"total_count"`
		TransferBytes int64              `json:"transfer_bytes"`
		Identical     int                `json:"identical"`
		Operations    []models.Operation `json:"operations"`
		Errors        []models.SyncError `json:"errors,omitempty"`
	}{
		Generated:     time.Now().UTC().Format(time.RFC3339),
		SourcePath:    plan.SourcePath,
		ReplicaPath:   plan.ReplicaPath,
		TotalCount:    plan.Len(),
		TransferBytes: plan.TransferBytes(),
		Identical:     plan.Identical,
		Operations:    plan.Operations(),
		Errors:        plan.Errors,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}
