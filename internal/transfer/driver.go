package transfer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rescale/archive-uploader/internal/constants"
	"github.com/rescale/archive-uploader/internal/events"
	"github.com/rescale/archive-uploader/internal/logging"
)

// ErrStepTimeout marks a task whose step exceeded the per-file timeout.
var ErrStepTimeout = errors.New("upload timed out")

// ErrStepFailed marks a task whose step reported failure.
var ErrStepFailed = errors.New("upload failed")

// Step is one file's full orchestrator step. It reports success.
type Step func(ctx context.Context, path string) bool

// Stats aggregates a driver run.
type Stats struct {
	RunID    string
	Total    int
	Success  int
	Errors   int
	TimedOut int // started but did not finish within the timeout
	Skipped  int // never started because the run was cancelled
}

// Driver runs steps across a bounded worker pool.
type Driver struct {
	// Workers is clamped to [1, constants.MaxWorkers].
	Workers int

	// FileTimeout bounds each step. Default: constants.DefaultFileTimeout
	FileTimeout time.Duration

	EventBus *events.EventBus
	Logger   *logging.Logger

	queue *Queue
	mu    sync.Mutex
}

// NewDriver creates a driver with the given pool size and per-file timeout.
func NewDriver(workers int, fileTimeout time.Duration, bus *events.EventBus, logger *logging.Logger) *Driver {
	return &Driver{
		Workers:     workers,
		FileTimeout: fileTimeout,
		EventBus:    bus,
		Logger:      logger,
	}
}

// PoolSize returns the effective number of workers.
func (d *Driver) PoolSize() int {
	switch {
	case d.Workers < 1:
		return 1
	case d.Workers > constants.MaxWorkers:
		return constants.MaxWorkers
	default:
		return d.Workers
	}
}

// Queue returns the task tracker of the current or last run.
func (d *Driver) Queue() *Queue {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.queue
}

// Run executes step for every file and returns the aggregate counts.
//
// Cancelling ctx stops dispatch: files not yet started are counted as
// Skipped. Steps already running are not interrupted; they run on a
// context that ignores ctx's cancellation but expires after FileTimeout.
// A step that outlives the timeout is abandoned, logged and counted as
// TimedOut; it is not retried.
func (d *Driver) Run(ctx context.Context, files []string, step Step) Stats {
	logger := d.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	timeout := d.FileTimeout
	if timeout <= 0 {
		timeout = constants.DefaultFileTimeout
	}
	workers := d.PoolSize()

	queue := NewQueue(d.EventBus)
	d.mu.Lock()
	d.queue = queue
	d.mu.Unlock()

	runID := uuid.NewString()

	tasks := make([]*TransferTask, len(files))
	for i, path := range files {
		var size int64
		if info, err := os.Stat(path); err == nil {
			size = info.Size()
		}
		tasks[i] = queue.Track(filepath.Base(path), path, size)
	}

	start := time.Now()
	d.EventBus.Publish(&events.RunStartedEvent{
		BaseEvent: events.BaseEvent{EventType: events.EventRunStarted, Time: start},
		RunID:     runID,
		Total:     len(files),
	})
	logger.Info().Msgf("Starting upload of %d files with %d workers", len(files), workers)

	skip := func(task *TransferTask) { _ = queue.Cancel(task.ID) }

	jobs := make(chan *TransferTask)
	go func() {
		defer close(jobs)
		for i, task := range tasks {
			if ctx.Err() != nil {
				for _, rest := range tasks[i:] {
					skip(rest)
				}
				return
			}
			select {
			case jobs <- task:
			case <-ctx.Done():
				for _, rest := range tasks[i:] {
					skip(rest)
				}
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range jobs {
				if ctx.Err() != nil {
					skip(task)
					continue
				}
				d.runTask(ctx, queue, task, timeout, step, logger)
			}
		}()
	}
	wg.Wait()

	stats := collectStats(runID, queue)
	if ctx.Err() != nil {
		logger.Warn().Msgf("Upload cancelled, %d files not started", stats.Skipped)
	}
	logger.Info().
		Int("success", stats.Success).
		Int("errors", stats.Errors).
		Int("timed_out", stats.TimedOut).
		Int("skipped", stats.Skipped).
		Int("total", stats.Total).
		Msgf("Summary: %d uploaded, %d errors, %d total", stats.Success, stats.Errors, stats.Total)

	d.EventBus.Publish(&events.CompleteEvent{
		BaseEvent: events.BaseEvent{EventType: events.EventComplete, Time: time.Now()},
		RunID:     stats.RunID,
		Total:     stats.Total,
		Success:   stats.Success,
		Errors:    stats.Errors,
		TimedOut:  stats.TimedOut,
		Skipped:   stats.Skipped,
		Duration:  time.Since(start),
	})
	return stats
}

func (d *Driver) runTask(ctx context.Context, queue *Queue, task *TransferTask, timeout time.Duration,
	step Step, logger *logging.Logger) {
	_ = queue.Start(task.ID)

	stepCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	done := make(chan bool, 1)
	go func() {
		ok := false
		defer func() {
			if r := recover(); r != nil {
				logger.Error().Str("path", task.Path).Msgf("Upload step panicked: %v", r)
			}
			done <- ok
		}()
		ok = step(stepCtx, task.Path)
	}()

	select {
	case ok := <-done:
		if ok {
			_ = queue.Complete(task.ID)
		} else {
			_ = queue.Fail(task.ID, fmt.Errorf("%w: %s", ErrStepFailed, task.Name))
		}
	case <-stepCtx.Done():
		logger.Error().Str("path", task.Path).Dur("timeout", timeout).Msgf("Upload timed out: %s", task.Name)
		_ = queue.Fail(task.ID, fmt.Errorf("%w after %s: %s", ErrStepTimeout, timeout, task.Name))
	}
}

// collectStats derives the run counts from the final task states. Every
// task is terminal once the workers have returned.
func collectStats(runID string, queue *Queue) Stats {
	qs := queue.GetStats()
	stats := Stats{
		RunID:   runID,
		Total:   qs.Total(),
		Success: qs.Completed,
		Skipped: qs.Cancelled,
	}
	for _, task := range queue.Tasks() {
		if task.State != TaskFailed {
			continue
		}
		if task.TimedOut() {
			stats.TimedOut++
		} else {
			stats.Errors++
		}
	}
	return stats
}
