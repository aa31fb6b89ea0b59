package alerting

import (
	"sync"
	"time"

	"github.com/evanhu96/load-management-app/internal/datastore/entities"
)

// LoadEvent carries a newly ingested load to the alert engine.
type LoadEvent struct {
	Load      *entities.Load
	Timestamp time.Time
}

// LoadEventHandler processes load events.
type LoadEventHandler func(event *LoadEvent)

const (
	// eventBusBufferSize is the capacity of the async event channel.
	// Events are dropped if the buffer is full to avoid blocking callers.
	eventBusBufferSize = 1000
)

// EventBus is an async pub/sub for load events. Publish is non-blocking:
// events are sent to a buffered channel and processed by a worker goroutine,
// so ingestion is never blocked by DB writes or SMS dispatch.
type EventBus struct {
	handlers []LoadEventHandler
	mu       sync.RWMutex
	eventCh  chan *LoadEvent
	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewEventBus creates a new event bus and starts its worker.
func NewEventBus() *EventBus {
	b := &EventBus{
		handlers: make([]LoadEventHandler, 0),
		eventCh:  make(chan *LoadEvent, eventBusBufferSize),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
	go b.processLoop()
	return b
}

// Subscribe registers a handler for load events.
func (b *EventBus) Subscribe(handler LoadEventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, handler)
}

// Publish enqueues an event for async processing. Non-blocking: if the buffer
// is full the event is dropped to protect the ingestion hot path.
// Events are silently dropped after Stop() has been called.
func (b *EventBus) Publish(event *LoadEvent) {
	select {
	case <-b.stopCh:
		return
	default:
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case b.eventCh <- event:
	default:
		// Buffer full, drop event to avoid blocking callers
	}
}

// Stop shuts down the worker goroutine after draining queued events.
// Safe to call multiple times; returns once the worker has exited.
func (b *EventBus) Stop() {
	b.stopOnce.Do(func() {
		close(b.stopCh)
	})
	<-b.done
}

// processLoop drains the event channel and dispatches to handlers.
func (b *EventBus) processLoop() {
	defer close(b.done)
	for {
		select {
		case event := <-b.eventCh:
			b.dispatch(event)
		case <-b.stopCh:
			// Drain remaining events before exiting
			for {
				select {
				case event := <-b.eventCh:
					b.dispatch(event)
				default:
					return
				}
			}
		}
	}
}

func (b *EventBus) dispatch(event *LoadEvent) {
	b.mu.RLock()
	handlers := make([]LoadEventHandler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	for _, handler := range handlers {
		b.safeCall(handler, event)
	}
}

// safeCall invokes a handler with panic recovery so a panicking handler
// cannot kill the event bus goroutine.
func (b *EventBus) safeCall(handler LoadEventHandler, event *LoadEvent) {
	defer func() {
		recover() //nolint:errcheck // intentionally swallowed to keep bus alive
	}()
	handler(event)
}
