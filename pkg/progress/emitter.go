// Package progress fans scrape state transitions out to interested
// listeners. Delivery is best effort and never blocks the scheduler: a
// subscriber that stops draining its channel loses events and gets a
// warning in the log, nothing more.
package progress

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Status identifies the kind of state transition an event describes
type Status string

const (
	// StatusRunning is emitted when a task starts executing
	StatusRunning Status = "running"
	// StatusVideo is emitted for each post ingested during a composite job
	StatusVideo Status = "video"
	// StatusSuccess is emitted exactly once on terminal success
	StatusSuccess Status = "success"
	// StatusError is emitted exactly once on terminal failure
	StatusError Status = "error"
)

// Event is one scrape progress notification.
type Event struct {
	Username  string `json:"username"`
	Status    Status `json:"status"`
	SessionID string `json:"sessionId,omitempty"`
	Error     string `json:"error,omitempty"`
	PostRef   string `json:"postRef,omitempty"`
	Count     int    `json:"count,omitempty"`
}

const subscriberBuffer = 64

// Emitter broadcasts events to all subscribers.
type Emitter struct {
	mu          sync.RWMutex
	subscribers map[string]chan Event
	logger      *logrus.Logger
}

// NewEmitter creates an emitter with no subscribers.
func NewEmitter(logger *logrus.Logger) *Emitter {
	if logger == nil {
		logger = logrus.New()
	}
	return &Emitter{
		subscribers: make(map[string]chan Event),
		logger:      logger,
	}
}

// Subscribe registers a new listener and returns its id and event channel.
func (e *Emitter) Subscribe() (string, <-chan Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := uuid.New().String()
	ch := make(chan Event, subscriberBuffer)
	e.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a listener and closes its channel.
func (e *Emitter) Unsubscribe(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if ch, ok := e.subscribers[id]; ok {
		delete(e.subscribers, id)
		close(ch)
	}
}

// Publish delivers an event to every subscriber without blocking. Events
// for full subscriber buffers are dropped and logged.
func (e *Emitter) Publish(event Event) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for id, ch := range e.subscribers {
		select {
		case ch <- event:
		default:
			e.logger.WithFields(logrus.Fields{
				"subscriber": id,
				"username":   event.Username,
				"status":     event.Status,
			}).Warn("Progress subscriber buffer full, dropping event")
		}
	}
}

// Close removes all subscribers and closes their channels.
func (e *Emitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for id, ch := range e.subscribers {
		delete(e.subscribers, id)
		close(ch)
	}
}
