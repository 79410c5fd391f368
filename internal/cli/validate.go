package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	"golang.org/x/term"

	"github.com/sdejongh/foldermirror/internal/platform"
	"github.com/sdejongh/foldermirror/pkg/compare"
	"github.com/sdejongh/foldermirror/pkg/config"
	"github.com/sdejongh/foldermirror/pkg/logging"
	"github.com/sdejongh/foldermirror/pkg/models"
	"github.com/sdejongh/foldermirror/pkg/output"
	"github.com/sdejongh/foldermirror/pkg/storage"
	"github.com/sdejongh/foldermirror/pkg/sync"
)

// loadConfig loads configuration from file or returns default
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(globalFlags.ConfigFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// applyFlagsToConfig overrides config values with command-line flags and
// validates the result
func applyFlagsToConfig(cfg *config.Config, f *MirrorFlags) error {
	if f.Comparison != "" {
		cfg.Sync.Comparison = models.ComparisonMethod(f.Comparison)
	}
	if f.FailFast {
		cfg.Sync.FailFast = true
	}

	if f.Interval != "" {
		interval, err := config.ParseInterval(f.Interval)
		if err != nil {
			return err
		}
		cfg.Schedule.Interval = config.Duration(interval)
	}

	if f.Parallel > 0 {
		cfg.Performance.MaxWorkers = f.Parallel
	}
	if f.Bandwidth != "" {
		cfg.Performance.BandwidthLimit = f.Bandwidth
	}

	if len(f.Exclude) > 0 {
		cfg.Exclude = append(cfg.Exclude, f.Exclude...)
	}

	if f.Output != "" {
		cfg.Output.Format = f.Output
	}

	if f.LogDir != "" {
		dir, err := homedir.Expand(f.LogDir)
		if err != nil {
			return fmt.Errorf("failed to expand log directory: %w", err)
		}
		cfg.Logging.Dir = dir
	}
	if f.LogFormat != "" {
		cfg.Logging.Format = f.LogFormat
	}
	if f.LogLevel != "" {
		cfg.Logging.Level = f.LogLevel
	}

	// Disable progress in quiet mode
	if globalFlags.Quiet {
		cfg.Output.Progress = false
		cfg.Output.Quiet = true
	}

	// Enable progress in verbose mode
	if globalFlags.Verbose {
		cfg.Output.Progress = true
		if f.LogLevel == "" {
			cfg.Logging.Level = "debug"
		}
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// resolveRoots normalizes and checks the source and replica paths
func resolveRoots(f *MirrorFlags) (string, string, error) {
	if f.Source == "" {
		return "", "", fmt.Errorf("source directory is required")
	}
	if f.Replica == "" {
		return "", "", fmt.Errorf("replica directory is required")
	}

	source, err := platform.NormalizePath(f.Source)
	if err != nil {
		return "", "", err
	}
	replica, err := platform.NormalizePath(f.Replica)
	if err != nil {
		return "", "", err
	}

	if err := platform.ValidateRoots(source, replica); err != nil {
		return "", "", err
	}

	if f.CreateReplica {
		if err := os.MkdirAll(replica, 0755); err != nil {
			return "", "", fmt.Errorf("failed to create replica directory: %w", err)
		}
	}

	return source, replica, nil
}

// createLogger builds the log sink: the log file inside the log directory
// plus the console echo unless quiet
func createLogger(cfg *config.Config) (logging.Logger, error) {
	level := logging.ParseLevel(cfg.Logging.Level)
	var loggers []logging.Logger

	if cfg.Logging.Dir != "" {
		fileLogger, err := logging.NewFileLogger(logging.FileLoggerConfig{
			Path:       filepath.Join(cfg.Logging.Dir, cfg.Logging.File),
			Format:     logging.Format(cfg.Logging.Format),
			Level:      level,
			MaxSize:    cfg.Logging.MaxSize,
			MaxBackups: cfg.Logging.MaxBackups,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
		loggers = append(loggers, fileLogger)
	}

	if cfg.Logging.Console && !cfg.Output.Quiet {
		loggers = append(loggers, logging.NewConsoleLogger(os.Stderr, level))
	}

	switch len(loggers) {
	case 0:
		return logging.NewNullLogger(), nil
	case 1:
		return loggers[0], nil
	default:
		return logging.NewMultiLogger(loggers...), nil
	}
}

// createFormatter picks the report output for the configuration. The
// progress bar is only used when w is a terminal.
func createFormatter(cfg *config.Config, w io.Writer) (output.Formatter, error) {
	if cfg.Output.Quiet {
		return output.Null{}, nil
	}

	name := cfg.Output.Format
	if name == output.FormatHuman && cfg.Output.Progress && isTerminal(w) {
		name = output.FormatProgress
	}
	return output.New(name, w)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// newEngine wires the backends and comparator for one mirror
func newEngine(
	cfg *config.Config,
	source, replica string,
	dryRun bool,
	formatter output.Formatter,
	logger logging.Logger,
) (*sync.Engine, func(), error) {
	operation, err := cfg.Operation(source, replica)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create sync operation: %w", err)
	}
	operation.DryRun = dryRun

	comparator, err := compare.New(operation.ComparisonMethod, compare.Options{
		BufferSize:      cfg.Performance.BufferSize,
		ModTimeWindow:   cfg.Sync.ModTimeWindow.Duration(),
		DigestAlgorithm: cfg.Sync.DigestAlgorithm,
	})
	if err != nil {
		return nil, nil, err
	}

	sourceBackend, err := storage.NewLocal(source)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create source backend: %w", err)
	}
	replicaBackend, err := storage.NewLocal(replica)
	if err != nil {
		sourceBackend.Close()
		return nil, nil, fmt.Errorf("failed to create replica backend: %w", err)
	}
	cleanup := func() {
		sourceBackend.Close()
		replicaBackend.Close()
	}

	engine, err := sync.NewEngine(sourceBackend, replicaBackend, comparator, formatter, logger, operation)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to create sync operation: %w", err)
	}

	return engine, cleanup, nil
}
