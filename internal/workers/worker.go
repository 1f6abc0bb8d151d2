// Package workers runs periodic background jobs on a shared scheduler
package workers

import (
	"context"
	"time"

	"autopilot/pkg/logger"
)

// Worker defines the interface for background workers
type Worker interface {
	// Name returns the unique identifier for this worker
	Name() string

	// Run executes one iteration of the worker's task
	Run(ctx context.Context) error

	// Interval returns how often this worker should run
	Interval() time.Duration

	// Enabled returns whether this worker is active
	Enabled() bool
}

// BaseWorker provides common functionality for workers
type BaseWorker struct {
	name     string
	interval time.Duration
	log      *logger.Logger
}

// NewBaseWorker creates a new base worker
func NewBaseWorker(name string, interval time.Duration) *BaseWorker {
	return &BaseWorker{
		name:     name,
		interval: interval,
		log:      logger.Get().With("worker", name),
	}
}

// Name returns the worker name
func (w *BaseWorker) Name() string {
	return w.name
}

// Interval returns the run interval
func (w *BaseWorker) Interval() time.Duration {
	return w.interval
}

// Enabled reports whether the worker should run. An interval of zero
// disables the worker entirely.
func (w *BaseWorker) Enabled() bool {
	return w.interval > 0
}

// Log returns the logger
func (w *BaseWorker) Log() *logger.Logger {
	return w.log
}
