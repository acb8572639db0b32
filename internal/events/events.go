// Package events carries log and progress updates from upload workers to the
// single goroutine that renders them.
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rescale/archive-uploader/internal/constants"
)

// EventType defines the types of events that can be emitted
type EventType string

const (
	EventLog        EventType = "log"
	EventFileState  EventType = "file_state"
	EventRunStarted EventType = "run_started"
	EventComplete   EventType = "complete"

	// Parallel driver task lifecycle
	EventTransferQueued    EventType = "transfer_queued"
	EventTransferStarted   EventType = "transfer_started"
	EventTransferCompleted EventType = "transfer_completed"
	EventTransferFailed    EventType = "transfer_failed"
	EventTransferCancelled EventType = "transfer_cancelled"
)

// LogLevel defines log severity levels
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l LogLevel) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARNING"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// FileState is the per-file upload state seen by observers.
type FileState string

const (
	FilePending   FileState = "pending"
	FileSkipped   FileState = "skipped"
	FileUploading FileState = "uploading"
	FileSuccess   FileState = "success"
	FileFailed    FileState = "failed"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common event fields
type BaseEvent struct {
	EventType EventType
	Time      time.Time
}

func (e BaseEvent) Type() EventType      { return e.EventType }
func (e BaseEvent) Timestamp() time.Time { return e.Time }

// LogEvent represents a log line
type LogEvent struct {
	BaseEvent
	Level   LogLevel
	Message string
}

// FileStateEvent reports a file moving through the orchestrator's states.
type FileStateEvent struct {
	BaseEvent
	Path       string
	Identifier string
	State      FileState
	Detail     string
}

// RunStartedEvent announces how many candidates a run will process.
type RunStartedEvent struct {
	BaseEvent
	RunID string
	Total int
}

// CompleteEvent is published once a run's summary is final.
type CompleteEvent struct {
	BaseEvent
	RunID    string
	Total    int
	Success  int
	Errors   int
	TimedOut int
	Skipped  int
	Duration time.Duration
}

// TransferEvent reports parallel driver task lifecycle changes.
type TransferEvent struct {
	BaseEvent
	TaskID string
	Name   string // file name
	Path   string
	Size   int64
	Error  error
}

// subscription is one subscriber channel and the event types it receives.
type subscription struct {
	ch    chan Event
	types map[EventType]bool // nil: every type
}

func (s subscription) wants(t EventType) bool {
	return s.types == nil || s.types[t]
}

// EventBus manages event subscriptions and publishing
type EventBus struct {
	subs          []subscription
	mu            sync.RWMutex
	bufferSize    int
	closed        bool
	droppedEvents atomic.Int64
}

// NewEventBus creates a new event bus with specified buffer size
func NewEventBus(bufferSize int) *EventBus {
	if bufferSize <= 0 {
		bufferSize = constants.EventBusDefaultBuffer
	}
	if bufferSize > constants.EventBusMaxBuffer {
		bufferSize = constants.EventBusMaxBuffer
	}
	return &EventBus{bufferSize: bufferSize}
}

// Subscribe returns a channel receiving events of the given types in
// publish order. With no types the channel receives every event.
func (eb *EventBus) Subscribe(types ...EventType) <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	sub := subscription{ch: make(chan Event, eb.bufferSize)}
	if len(types) > 0 {
		sub.types = make(map[EventType]bool, len(types))
		for _, t := range types {
			sub.types[t] = true
		}
	}
	eb.subs = append(eb.subs, sub)
	return sub.ch
}

// Publish sends an event to all subscribers. It never blocks: when a
// subscriber's buffer is full the event is dropped and counted.
func (eb *EventBus) Publish(event Event) {
	if eb == nil {
		return
	}

	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.closed {
		return
	}

	for _, sub := range eb.subs {
		if !sub.wants(event.Type()) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			eb.droppedEvents.Add(1)
		}
	}
}

// Close shuts down the event bus and closes all channels
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	eb.closed = true
	for _, sub := range eb.subs {
		close(sub.ch)
	}
	eb.subs = nil
}

// PublishLog is a convenience method for publishing log events
func (eb *EventBus) PublishLog(level LogLevel, message string) {
	eb.Publish(&LogEvent{
		BaseEvent: BaseEvent{EventType: EventLog, Time: time.Now()},
		Level:     level,
		Message:   message,
	})
}

// PublishFileState is a convenience method for publishing file state changes
func (eb *EventBus) PublishFileState(path, identifier string, state FileState, detail string) {
	eb.Publish(&FileStateEvent{
		BaseEvent:  BaseEvent{EventType: EventFileState, Time: time.Now()},
		Path:       path,
		Identifier: identifier,
		State:      state,
		Detail:     detail,
	})
}

// Unsubscribe removes and closes a channel returned by Subscribe.
func (eb *EventBus) Unsubscribe(ch <-chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	for i, sub := range eb.subs {
		if sub.ch == ch {
			eb.subs = append(eb.subs[:i], eb.subs[i+1:]...)
			close(sub.ch)
			return
		}
	}
}

// DroppedEvents returns the total number of events dropped due to full buffers
func (eb *EventBus) DroppedEvents() int64 {
	if eb == nil {
		return 0
	}
	return eb.droppedEvents.Load()
}
