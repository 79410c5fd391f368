package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sdejongh/foldermirror/pkg/logging"
	"github.com/sdejongh/foldermirror/pkg/schedule"
)

// NewSyncCommand creates the sync command
func NewSyncCommand() *cobra.Command {
	var flags MirrorFlags

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run a single mirror pass",
		Long: `Make the replica an exact copy of the source once and exit.
Missing directories and files are created, changed files are rewritten
and everything absent from the source is removed from the replica.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, &flags)
		},
	}

	flags.addRootFlags(cmd)
	flags.addPassFlags(cmd)
	flags.addMutationFlags(cmd)
	cmd.Flags().StringVarP(&flags.Output, "output", "o", "", "output format: human, json")
	cmd.MarkFlagRequired("source")
	cmd.MarkFlagRequired("replica")

	return cmd
}

func runSync(cmd *cobra.Command, flags *MirrorFlags) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyFlagsToConfig(cfg, flags); err != nil {
		return err
	}

	source, replica, err := resolveRoots(flags)
	if err != nil {
		return err
	}

	logger, err := createLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Close()

	formatter, err := createFormatter(cfg, os.Stdout)
	if err != nil {
		return err
	}

	engine, cleanup, err := newEngine(cfg, source, replica, false, formatter, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	// The scheduler records the status file and flushes the log
	scheduleConfig := schedule.Config{Interval: cfg.Schedule.Interval.Duration()}
	if cfg.Logging.Dir != "" {
		scheduleConfig.StatusPath = schedule.StatusPath(cfg.Logging.Dir)
	}
	scheduler, err := schedule.New(engine, logger, scheduleConfig)
	if err != nil {
		return err
	}

	report, err := scheduler.RunOnce(ctx)
	if report == nil {
		if err != nil {
			return fmt.Errorf("sync failed: %w", err)
		}
		return nil
	}

	if code := report.Status.ExitCode(); code != 0 {
		logging.Flush(logger)
		logger.Close()
		cleanup()
		os.Exit(code)
	}
	return nil
}
