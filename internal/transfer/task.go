// Package transfer runs orchestrator steps across a bounded worker pool and
// tracks each file as a task whose lifecycle is published on the event bus.
package transfer

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TaskState represents the current state of a transfer task.
type TaskState string

const (
	TaskQueued    TaskState = "queued"    // Waiting for a worker
	TaskActive    TaskState = "active"    // Step running
	TaskCompleted TaskState = "completed" // Step reported success
	TaskFailed    TaskState = "failed"    // Step reported failure or timed out
	TaskCancelled TaskState = "cancelled" // Never started because the run was cancelled
)

// TransferTask is one file handed to the driver.
// Thread-safe: Use the provided methods to read state.
type TransferTask struct {
	ID   string
	Name string // file name
	Path string
	Size int64

	State TaskState
	Error error

	CreatedAt   time.Time
	StartedAt   time.Time
	CompletedAt time.Time

	mu sync.RWMutex
}

// NewTransferTask creates a queued task for path.
func NewTransferTask(name, path string, size int64) *TransferTask {
	return &TransferTask{
		ID:        uuid.NewString(),
		Name:      name,
		Path:      path,
		Size:      size,
		State:     TaskQueued,
		CreatedAt: time.Now(),
	}
}

// GetState returns the current state (thread-safe).
func (t *TransferTask) GetState() TaskState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.State
}

// GetError returns the error if any (thread-safe).
func (t *TransferTask) GetError() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.Error
}

// transition moves the task to state and reports whether it changed.
// Terminal states are final.
func (t *TransferTask) transition(state TaskState, err error) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.isTerminal() {
		return false
	}
	if state == TaskActive && t.State != TaskQueued {
		return false
	}

	t.State = state
	now := time.Now()
	switch state {
	case TaskActive:
		t.StartedAt = now
	case TaskFailed:
		t.Error = err
		t.CompletedAt = now
	case TaskCompleted, TaskCancelled:
		t.CompletedAt = now
	}
	return true
}

// TaskSnapshot is a point-in-time copy of a TransferTask.
type TaskSnapshot struct {
	ID   string
	Name string
	Path string
	Size int64

	State TaskState
	Error error

	CreatedAt   time.Time
	StartedAt   time.Time
	CompletedAt time.Time
}

// TimedOut reports whether the task failed because its step exceeded the
// per-file timeout.
func (s TaskSnapshot) TimedOut() bool {
	return s.State == TaskFailed && errors.Is(s.Error, ErrStepTimeout)
}

// Snapshot returns a copy of the task for safe external use.
func (t *TransferTask) Snapshot() TaskSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return TaskSnapshot{
		ID:          t.ID,
		Name:        t.Name,
		Path:        t.Path,
		Size:        t.Size,
		State:       t.State,
		Error:       t.Error,
		CreatedAt:   t.CreatedAt,
		StartedAt:   t.StartedAt,
		CompletedAt: t.CompletedAt,
	}
}

func (t *TransferTask) isTerminal() bool {
	return t.State == TaskCompleted || t.State == TaskFailed || t.State == TaskCancelled
}
