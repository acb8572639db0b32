package transfer

import (
	"errors"
	"sync"
	"time"

	"github.com/rescale/archive-uploader/internal/events"
)

// ErrTaskNotFound is returned for an unknown task ID.
var ErrTaskNotFound = errors.New("task not found")

// QueueStats holds statistics about the transfer queue.
type QueueStats struct {
	Queued    int
	Active    int
	Completed int
	Failed    int
	Cancelled int
}

// Total returns total number of tasks in queue.
func (s QueueStats) Total() int {
	return s.Queued + s.Active + s.Completed + s.Failed + s.Cancelled
}

// Queue is a passive task tracker that publishes events for UI updates.
// It does NOT execute anything: the driver registers tasks with Track and
// reports each transition.
type Queue struct {
	tasks     []*TransferTask
	tasksByID map[string]*TransferTask
	mu        sync.RWMutex

	eventBus *events.EventBus
}

// NewQueue creates a queue publishing on eventBus (may be nil).
func NewQueue(eventBus *events.EventBus) *Queue {
	return &Queue{
		tasks:     make([]*TransferTask, 0),
		tasksByID: make(map[string]*TransferTask),
		eventBus:  eventBus,
	}
}

// Track registers a queued task for path.
func (q *Queue) Track(name, path string, size int64) *TransferTask {
	task := NewTransferTask(name, path, size)

	q.mu.Lock()
	q.tasks = append(q.tasks, task)
	q.tasksByID[task.ID] = task
	q.mu.Unlock()

	q.publishTransferEvent(events.EventTransferQueued, task)
	return task
}

// Start marks a queued task as active.
func (q *Queue) Start(taskID string) error {
	return q.move(taskID, TaskActive, nil, events.EventTransferStarted)
}

// Complete marks a task as successfully completed.
func (q *Queue) Complete(taskID string) error {
	return q.move(taskID, TaskCompleted, nil, events.EventTransferCompleted)
}

// Fail marks a task as failed with err.
func (q *Queue) Fail(taskID string, err error) error {
	return q.move(taskID, TaskFailed, err, events.EventTransferFailed)
}

// Cancel marks a task that never started as cancelled.
func (q *Queue) Cancel(taskID string) error {
	return q.move(taskID, TaskCancelled, nil, events.EventTransferCancelled)
}

func (q *Queue) move(taskID string, state TaskState, err error, eventType events.EventType) error {
	q.mu.RLock()
	task, exists := q.tasksByID[taskID]
	q.mu.RUnlock()

	if !exists {
		return ErrTaskNotFound
	}
	if task.transition(state, err) {
		q.publishTransferEvent(eventType, task)
	}
	return nil
}

// GetStats returns current queue statistics.
func (q *Queue) GetStats() QueueStats {
	q.mu.RLock()
	defer q.mu.RUnlock()

	stats := QueueStats{}
	for _, task := range q.tasks {
		switch task.GetState() {
		case TaskQueued:
			stats.Queued++
		case TaskActive:
			stats.Active++
		case TaskCompleted:
			stats.Completed++
		case TaskFailed:
			stats.Failed++
		case TaskCancelled:
			stats.Cancelled++
		}
	}
	return stats
}

// Tasks returns snapshots of all tasks in creation order.
func (q *Queue) Tasks() []TaskSnapshot {
	q.mu.RLock()
	defer q.mu.RUnlock()

	result := make([]TaskSnapshot, len(q.tasks))
	for i, task := range q.tasks {
		result[i] = task.Snapshot()
	}
	return result
}

// publishTransferEvent publishes a transfer event to the event bus.
func (q *Queue) publishTransferEvent(eventType events.EventType, task *TransferTask) {
	if q.eventBus == nil {
		return
	}

	q.eventBus.Publish(&events.TransferEvent{
		BaseEvent: events.BaseEvent{
			EventType: eventType,
			Time:      time.Now(),
		},
		TaskID: task.ID,
		Name:   task.Name,
		Path:   task.Path,
		Size:   task.Size,
		Error:  task.GetError(),
	})
}
