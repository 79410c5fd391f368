package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/sdejongh/foldermirror/pkg/schedule"
)

// NewStatusCommand creates the status command
func NewStatusCommand() *cobra.Command {
	var (
		logDir string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "status [log-dir]",
		Short: "Show the outcome of the last pass",
		Long:  `Read the status file a running or past driver wrote to its log directory.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				logDir = args[0]
			}
			if logDir == "" {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				logDir = cfg.Logging.Dir
			}
			if logDir == "" {
				return fmt.Errorf("log directory is required")
			}

			status, err := schedule.LoadStatus(schedule.StatusPath(logDir))
			if err != nil {
				return err
			}

			if asJSON {
				encoder := json.NewEncoder(os.Stdout)
				encoder.SetIndent("", "  ")
				return encoder.Encode(status)
			}
			printStatus(os.Stdout, status, time.Now())
			return nil
		},
	}

	cmd.Flags().StringVarP(&logDir, "log-dir", "l", "", "driver log directory")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw status file")

	return cmd
}

// printStatus renders a status for humans, with times relative to now
func printStatus(w io.Writer, status *schedule.Status, now time.Time) {
	if status.Empty() {
		fmt.Fprintf(w, "No pass recorded in %s\n", status.Path())
		return
	}

	fmt.Fprintf(w, "Source:   %s\n", status.SourcePath)
	fmt.Fprintf(w, "Replica:  %s\n", status.ReplicaPath)
	fmt.Fprintf(w, "Passes:   %d\n", status.Passes)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Last pass:    %s (%s)\n", humanize.RelTime(status.LastPassTime, now, "ago", "from now"), status.LastPassTime.Format(time.RFC3339))
	if status.LastPassDuration != "" {
		fmt.Fprintf(w, "Duration:     %s\n", status.LastPassDuration)
	}
	fmt.Fprintf(w, "Status:       %s\n", status.LastStatus)
	if status.LastError != "" {
		fmt.Fprintf(w, "Error:        %s\n", status.LastError)
	}
	if status.LastSuccess.IsZero() {
		fmt.Fprintf(w, "Last success: never\n")
	} else {
		fmt.Fprintf(w, "Last success: %s\n", humanize.RelTime(status.LastSuccess, now, "ago", "from now"))
	}
	if status.ConsecutiveFailures > 0 {
		fmt.Fprintf(w, "Failures:     %d consecutive\n", status.ConsecutiveFailures)
	}

	stats := status.LastStats
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Directories created: %d\n", stats.DirsCreated)
	fmt.Fprintf(w, "Files copied:        %d\n", stats.FilesCopied)
	fmt.Fprintf(w, "Files updated:       %d\n", stats.FilesUpdated)
	fmt.Fprintf(w, "Files deleted:       %d\n", stats.FilesDeleted)
	fmt.Fprintf(w, "Directories deleted: %d\n", stats.DirsDeleted)
	fmt.Fprintf(w, "Errors:              %d\n", stats.Errors)
	fmt.Fprintf(w, "Transferred:         %s\n", humanize.IBytes(uint64(stats.BytesTransferred)))
}
