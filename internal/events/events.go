// Package events provides the in-process event bus that decouples the
// transfer coordinators, the thumbnail loader and the folder navigator.
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/capiweb/capishare/internal/constants"
)

// EventType defines the types of events that can be emitted
type EventType string

const (
	EventLog EventType = "log"

	// Per-task transfer events
	EventTransferQueued    EventType = "transfer_queued"    // Task created in pending state
	EventTransferStarted   EventType = "transfer_started"   // Transport opened
	EventTransferProgress  EventType = "transfer_progress"  // Bytes moved
	EventTransferCompleted EventType = "transfer_completed" // Finished successfully
	EventTransferFailed    EventType = "transfer_failed"    // Finished with error
	EventTransferCancelled EventType = "transfer_cancelled" // Aborted by the user

	// Batch notifications, exactly one per batch
	EventBatchAllCompleted     EventType = "batch_all_completed"
	EventBatchPartialCompleted EventType = "batch_partial_completed"
)

// Transfer kinds carried by TransferEvent.Kind and BatchEvent.Kind
const (
	KindUpload   = "upload"
	KindDownload = "download"
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
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

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

// NewBase stamps a BaseEvent with the current time.
func NewBase(t EventType) BaseEvent {
	return BaseEvent{EventType: t, Time: time.Now()}
}

// LogEvent represents log messages
type LogEvent struct {
	BaseEvent
	Level     LogLevel
	Message   string
	Component string
	Error     error
}

// TransferEvent represents a state change of a single transfer task
type TransferEvent struct {
	BaseEvent
	TaskID   string
	BatchID  string
	Kind     string // "upload" or "download"
	Name     string // Display name (filename)
	Loaded   int64
	Total    int64
	Progress int // 0 to 100
	Error    error
}

// BatchEvent is the one-shot completion notification of a transfer batch.
// EventBatchAllCompleted means Failed and Cancelled are zero.
type BatchEvent struct {
	BaseEvent
	BatchID   string
	Kind      string
	Completed int
	Failed    int
	Cancelled int
}

// EventBus manages event subscriptions and publishing
type EventBus struct {
	subscribers   map[EventType][]chan Event
	all           []chan Event // Subscribers to all events
	mu            sync.RWMutex
	bufferSize    int
	closed        bool
	droppedEvents atomic.Int64 // Count of dropped events due to full buffers
	onDrop        func(EventType)
}

// NewEventBus creates a new event bus with specified buffer size
func NewEventBus(bufferSize int) *EventBus {
	if bufferSize <= 0 {
		bufferSize = constants.EventBusDefaultBuffer
	}
	if bufferSize > constants.EventBusMaxBuffer {
		bufferSize = constants.EventBusMaxBuffer
	}
	return &EventBus{
		subscribers: make(map[EventType][]chan Event),
		all:         make([]chan Event, 0),
		bufferSize:  bufferSize,
	}
}

// OnDrop registers a callback invoked whenever an event is dropped because a
// subscriber buffer is full. Must be called before publishing starts.
func (eb *EventBus) OnDrop(fn func(EventType)) {
	eb.mu.Lock()
	eb.onDrop = fn
	eb.mu.Unlock()
}

// Subscribe creates a subscription to one or more event types. All types share
// the returned channel.
func (eb *EventBus) Subscribe(eventTypes ...EventType) <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, eb.bufferSize)
	for _, t := range eventTypes {
		eb.subscribers[t] = append(eb.subscribers[t], ch)
	}
	return ch
}

// SubscribeAll creates a subscription to all events
func (eb *EventBus) SubscribeAll() <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, eb.bufferSize)
	eb.all = append(eb.all, ch)
	return ch
}

// Publish sends an event to all subscribers without blocking. Events for a
// subscriber whose buffer is full are dropped and counted.
func (eb *EventBus) Publish(event Event) {
	if eb == nil {
		return
	}

	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.closed {
		return
	}

	for _, ch := range eb.subscribers[event.Type()] {
		eb.send(ch, event)
	}
	for _, ch := range eb.all {
		eb.send(ch, event)
	}
}

func (eb *EventBus) send(ch chan Event, event Event) {
	select {
	case ch <- event:
	default:
		eb.droppedEvents.Add(1)
		if eb.onDrop != nil {
			eb.onDrop(event.Type())
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

	// A channel subscribed to several types must be closed once.
	seen := make(map[chan Event]bool)
	for _, channels := range eb.subscribers {
		for _, ch := range channels {
			if !seen[ch] {
				seen[ch] = true
				close(ch)
			}
		}
	}
	for _, ch := range eb.all {
		close(ch)
	}
}

// PublishLog is a convenience method for publishing log events
func (eb *EventBus) PublishLog(level LogLevel, message, component string, err error) {
	eb.Publish(&LogEvent{
		BaseEvent: NewBase(EventLog),
		Level:     level,
		Message:   message,
		Component: component,
		Error:     err,
	})
}

// Unsubscribe removes a subscription channel from every event type and from
// the all-events list.
func (eb *EventBus) Unsubscribe(ch <-chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	for eventType, subscribers := range eb.subscribers {
		for i, subCh := range subscribers {
			if subCh == ch {
				subscribers[i] = subscribers[len(subscribers)-1]
				eb.subscribers[eventType] = subscribers[:len(subscribers)-1]
				break
			}
		}
	}

	for i, subCh := range eb.all {
		if subCh == ch {
			eb.all[i] = eb.all[len(eb.all)-1]
			eb.all = eb.all[:len(eb.all)-1]
			break
		}
	}
}

// GetDroppedEventCount returns the total number of events dropped due to full buffers
func (eb *EventBus) GetDroppedEventCount() int64 {
	return eb.droppedEvents.Load()
}

// ResetDroppedEventCount resets the dropped event counter to zero
func (eb *EventBus) ResetDroppedEventCount() int64 {
	return eb.droppedEvents.Swap(0)
}
