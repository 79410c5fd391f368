package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sdejongh/foldermirror/pkg/logging"
	"github.com/sdejongh/foldermirror/pkg/output"
	"github.com/sdejongh/foldermirror/pkg/ratelimit"
	"github.com/sdejongh/foldermirror/pkg/schedule"
)

// NewRunCommand creates the run command
func NewRunCommand() *cobra.Command {
	var flags MirrorFlags

	cmd := &cobra.Command{
		Use:   "run [source replica log-dir interval]",
		Short: "Mirror a folder periodically",
		Long: `Keep the replica an exact copy of the source. A first pass runs
immediately, then one pass per interval until interrupted. Every change
to the replica is logged to <log-dir>/log.txt and to the console.

The interval accepts Go durations ("30s", "5m") or HH:MM:SS.`,
		Example: `  foldermirror run ~/documents /mnt/backup/documents ~/.local/state/foldermirror 00:05:00
  foldermirror run -s ~/documents -r /mnt/backup/documents -l /var/log/foldermirror -i 1h`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 && len(args) != 4 {
				return fmt.Errorf("expected 4 arguments (source replica log-dir interval) or flags, got %d", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 4 {
				flags.Source, flags.Replica, flags.LogDir, flags.Interval = args[0], args[1], args[2], args[3]
			}
			return runDriver(cmd, &flags)
		},
	}

	flags.addRootFlags(cmd)
	flags.addPassFlags(cmd)
	flags.addMutationFlags(cmd)
	cmd.Flags().StringVarP(&flags.Interval, "interval", "i", "", "time between the end of a pass and the next one")
	cmd.Flags().BoolVar(&flags.StopOnError, "stop-on-error", false, "exit when a pass fails instead of retrying")

	return cmd
}

func runDriver(cmd *cobra.Command, flags *MirrorFlags) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyFlagsToConfig(cfg, flags); err != nil {
		return err
	}
	if cfg.Logging.Dir == "" {
		return fmt.Errorf("log directory is required (--log-dir or logging.dir)")
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

	// Per-pass summaries only with --verbose; the log lines already
	// describe every change
	var formatter output.Formatter = output.Null{}
	if globalFlags.Verbose {
		cfg.Output.Progress = false
		if formatter, err = createFormatter(cfg, os.Stdout); err != nil {
			return err
		}
	}

	engine, cleanup, err := newEngine(cfg, source, replica, false, formatter, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	scheduler, err := schedule.New(engine, logger, schedule.Config{
		Interval:    cfg.Schedule.Interval.Duration(),
		LockPath:    schedule.LockPath(cfg.Logging.Dir),
		StatusPath:  schedule.StatusPath(cfg.Logging.Dir),
		StopOnError: flags.StopOnError,
	})
	if err != nil {
		return err
	}

	bandwidth, _ := cfg.BandwidthLimit()
	logger.Debug(ctx, fmt.Sprintf("Mirroring %s to %s every %s", source, replica, cfg.Schedule.Interval), logging.Fields{
		"comparison": string(cfg.Sync.Comparison),
		"workers":    cfg.Performance.MaxWorkers,
		"bandwidth":  ratelimit.FormatBandwidth(bandwidth),
	})

	logger.Info(ctx, "Folder synchronization started.", nil)

	if err := scheduler.Run(ctx); err != nil {
		return err
	}

	logger.Debug(context.Background(), "Stopped", nil)
	return nil
}
