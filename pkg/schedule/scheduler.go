// Package schedule runs mirror passes on a fixed interval.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/jonboulle/clockwork"

	"github.com/sdejongh/foldermirror/pkg/logging"
	"github.com/sdejongh/foldermirror/pkg/models"
)

var (
	// ErrAlreadyRunning is returned when another driver holds the lock
	ErrAlreadyRunning = errors.New("another foldermirror driver is running")

	// ErrPassRunning is returned by RunOnce while a pass is in progress
	ErrPassRunning = errors.New("pass already running")
)

// Synchronizer performs one mirror pass
type Synchronizer interface {
	Synchronize(ctx context.Context) (*models.SyncReport, error)
}

// Config holds the driver settings
type Config struct {
	// Interval separates the end of one pass from the start of the next
	Interval time.Duration

	// LockPath is an advisory lock held while Run is active; empty disables it
	LockPath string

	// StatusPath receives the status after every pass; empty disables it
	StatusPath string

	// StopOnError makes Run return the first pass error instead of
	// retrying on the next interval
	StopOnError bool
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithClock replaces the real clock, for tests
func WithClock(clock clockwork.Clock) Option {
	return func(s *Scheduler) {
		s.clock = clock
	}
}

// WithPassHook calls fn after every pass with its outcome
func WithPassHook(fn func(*models.SyncReport, error)) Option {
	return func(s *Scheduler) {
		s.onPass = fn
	}
}

// Scheduler invokes a Synchronizer periodically. Passes never overlap.
type Scheduler struct {
	engine Synchronizer
	logger logging.Logger
	config Config
	clock  clockwork.Clock
	onPass func(*models.SyncReport, error)

	running sync.Mutex // held for the duration of a pass

	mu     sync.Mutex
	status *Status
}

// New creates a scheduler
func New(engine Synchronizer, logger logging.Logger, config Config, opts ...Option) (*Scheduler, error) {
	if config.Interval <= 0 {
		return nil, &models.ValidationError{Field: "Interval", Message: "interval must be greater than zero"}
	}
	if logger == nil {
		logger = logging.NewNullLogger()
	}

	s := &Scheduler{
		engine: engine,
		logger: logger,
		config: config,
		clock:  clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if config.StatusPath != "" {
		status, err := LoadStatus(config.StatusPath)
		if err != nil {
			// A damaged status file is replaced by the next pass
			logger.Warn(context.Background(), "Ignoring unreadable status file", logging.Fields{
				"path":  config.StatusPath,
				"error": err.Error(),
			})
			status = NewStatus(config.StatusPath, "", "")
		}
		s.status = status
	}

	return s, nil
}

// Status returns a copy of the current status, nil when disabled
func (s *Scheduler) Status() *Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == nil {
		return nil
	}
	cp := *s.status
	return &cp
}

// Run performs a first pass immediately, then one pass per interval until
// ctx is cancelled. Pass errors are retried on the next interval unless
// StopOnError is set.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.config.LockPath != "" {
		lock, err := acquireLock(s.config.LockPath)
		if err != nil {
			return err
		}
		defer releaseLock(lock)
	}

	s.logger.Debug(ctx, "Scheduler started", logging.Fields{
		"interval": s.config.Interval.String(),
	})

	for {
		_, err := s.RunOnce(ctx)
		if ctx.Err() != nil {
			s.logger.Debug(ctx, "Scheduler stopped", nil)
			return nil
		}
		if err != nil && s.config.StopOnError {
			return err
		}

		select {
		case <-ctx.Done():
			s.logger.Debug(ctx, "Scheduler stopped", nil)
			return nil
		case <-s.clock.After(s.config.Interval):
		}
	}
}

// RunOnce performs a single pass, records its status and flushes the log
func (s *Scheduler) RunOnce(ctx context.Context) (*models.SyncReport, error) {
	if !s.running.TryLock() {
		return nil, ErrPassRunning
	}
	defer s.running.Unlock()

	report, err := s.engine.Synchronize(ctx)

	s.mu.Lock()
	if s.status != nil {
		s.status.Record(report, err)
		if saveErr := s.status.Save(); saveErr != nil {
			s.logger.Warn(ctx, "Failed to save status file", logging.Fields{"error": saveErr.Error()})
		}
	}
	s.mu.Unlock()

	if flushErr := logging.Flush(s.logger); flushErr != nil {
		fmt.Fprintf(os.Stderr, "failed to flush log: %v\n", flushErr)
	}

	if s.onPass != nil {
		s.onPass(report, err)
	}
	return report, err
}

// acquireLock takes the advisory driver lock without blocking
func acquireLock(path string) (*flock.Flock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	lock := flock.New(path)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyRunning, path)
	}
	return lock, nil
}

// releaseLock unlocks the lock file and leaves it in place
func releaseLock(lock *flock.Flock) {
	if !lock.Locked() {
		return
	}
	lock.Unlock()
}
