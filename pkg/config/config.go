package config

import (
	"fmt"

	"github.com/mitchellh/go-homedir"

	"github.com/sdejongh/foldermirror/pkg/models"
	"github.com/sdejongh/foldermirror/pkg/ratelimit"
	"github.com/sdejongh/foldermirror/pkg/tree"
)

// Config represents the application configuration
type Config struct {
	Sync        SyncConfig        `yaml:"sync"`
	Schedule    ScheduleConfig    `yaml:"schedule"`
	Performance PerformanceConfig `yaml:"performance"`
	Output      OutputConfig      `yaml:"output"`
	Logging     LoggingConfig     `yaml:"logging"`
	Exclude     []string          `yaml:"exclude"`
}

// SyncConfig holds pass-related settings
type SyncConfig struct {
	Comparison      models.ComparisonMethod `yaml:"comparison"`
	DigestAlgorithm string                  `yaml:"digest_algorithm"` // "sha256" or "md5"
	ModTimeWindow   Duration                `yaml:"mod_time_window"`
	FailFast        bool                    `yaml:"fail_fast"`
}

// ScheduleConfig holds the periodic driver settings
type ScheduleConfig struct {
	Interval Duration `yaml:"interval"`
}

// PerformanceConfig holds performance-related settings
type PerformanceConfig struct {
	MaxWorkers     int    `yaml:"max_workers"`
	BufferSize     int    `yaml:"buffer_size"`
	BandwidthLimit string `yaml:"bandwidth_limit"` // e.g. "10MiB", empty = unlimited
}

// OutputConfig holds output-related settings
type OutputConfig struct {
	Format   string `yaml:"format"`   // "human" or "json"
	Progress bool   `yaml:"progress"` // Show progress bars
	Quiet    bool   `yaml:"quiet"`    // Suppress non-error output
}

// LoggingConfig holds logging-related settings
type LoggingConfig struct {
	Dir        string `yaml:"dir"`         // Directory holding the log file, lock and status
	File       string `yaml:"file"`        // Log file name inside Dir
	Format     string `yaml:"format"`      // "text" or "json"
	Level      string `yaml:"level"`       // "debug", "info", "warn", "error"
	MaxSize    int64  `yaml:"max_size"`    // Rotation threshold in bytes, 0 = never
	MaxBackups int    `yaml:"max_backups"` // Rotated files kept
	Console    bool   `yaml:"console"`     // Echo log lines to stderr
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Sync: SyncConfig{
			Comparison:      models.CompareMetadata,
			DigestAlgorithm: "sha256",
		},
		Schedule: ScheduleConfig{
			Interval: Duration(defaultInterval),
		},
		Performance: PerformanceConfig{
			MaxWorkers: 4,
			BufferSize: 65536,
		},
		Output: OutputConfig{
			Format: "human",
		},
		Logging: LoggingConfig{
			File:       "log.txt",
			Format:     "text",
			Level:      "info",
			MaxSize:    10 * 1024 * 1024,
			MaxBackups: 3,
			Console:    true,
		},
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if !c.Sync.Comparison.Valid() {
		return &models.ValidationError{
			Field:   "sync.comparison",
			Message: "must be 'metadata', 'digest', or 'binary'",
		}
	}

	validAlgorithms := map[string]bool{"sha256": true, "md5": true}
	if !validAlgorithms[c.Sync.DigestAlgorithm] {
		return &models.ValidationError{
			Field:   "sync.digest_algorithm",
			Message: "must be 'sha256' or 'md5'",
		}
	}

	if c.Sync.ModTimeWindow < 0 {
		return &models.ValidationError{
			Field:   "sync.mod_time_window",
			Message: "cannot be negative",
		}
	}

	if c.Schedule.Interval <= 0 {
		return &models.ValidationError{
			Field:   "schedule.interval",
			Message: "must be greater than zero",
		}
	}

	if c.Performance.MaxWorkers < 1 {
		return &models.ValidationError{
			Field:   "performance.max_workers",
			Message: "must be at least 1",
		}
	}

	if c.Performance.BufferSize < 1024 {
		return &models.ValidationError{
			Field:   "performance.buffer_size",
			Message: "must be at least 1024 bytes",
		}
	}

	if _, err := c.BandwidthLimit(); err != nil {
		return &models.ValidationError{
			Field:   "performance.bandwidth_limit",
			Message: err.Error(),
		}
	}

	validFormats := map[string]bool{"human": true, "json": true}
	if !validFormats[c.Output.Format] {
		return &models.ValidationError{
			Field:   "output.format",
			Message: "must be 'human' or 'json'",
		}
	}

	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[c.Logging.Format] {
		return &models.ValidationError{
			Field:   "logging.format",
			Message: "must be 'json' or 'text'",
		}
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return &models.ValidationError{
			Field:   "logging.level",
			Message: "must be 'debug', 'info', 'warn', or 'error'",
		}
	}

	if c.Logging.File == "" {
		return &models.ValidationError{
			Field:   "logging.file",
			Message: "is required",
		}
	}

	if _, err := tree.NewMatcher(c.Exclude); err != nil {
		return &models.ValidationError{
			Field:   "exclude",
			Message: err.Error(),
		}
	}

	return nil
}

// BandwidthLimit returns the configured limit in bytes per second, 0 when unlimited
func (c *Config) BandwidthLimit() (int64, error) {
	return ratelimit.ParseBandwidth(c.Performance.BandwidthLimit)
}

// ExpandPaths resolves a leading "~" in configured paths
func (c *Config) ExpandPaths() error {
	dir, err := homedir.Expand(c.Logging.Dir)
	if err != nil {
		return fmt.Errorf("failed to expand logging.dir: %w", err)
	}
	c.Logging.Dir = dir
	return nil
}

// Operation builds the mirror operation for a source and replica
func (c *Config) Operation(source, replica string) (*models.SyncOperation, error) {
	bandwidth, err := c.BandwidthLimit()
	if err != nil {
		return nil, err
	}

	return &models.SyncOperation{
		SourcePath:       source,
		ReplicaPath:      replica,
		ComparisonMethod: c.Sync.Comparison,
		ExcludePatterns:  c.Exclude,
		FailFast:         c.Sync.FailFast,
		MaxWorkers:       c.Performance.MaxWorkers,
		BandwidthLimit:   bandwidth,
		BufferSize:       c.Performance.BufferSize,
	}, nil
}
