// Package events dispatches lifecycle signals (new issue, resolved, batch
// operations, viewed) to registered subscribers. Dispatch is best-effort:
// each subscriber runs inside a panic-recovering wrapper so one failing
// consumer can never block the others or fail the call that emitted the
// signal.
package events

import (
	"log"
	"sync"

	"github.com/errdeck/errdeck/internal/database"
)

// Event names emitted by the tracker
const (
	EventNewIssue            = "new_issue"
	EventIssueResolved       = "issue_resolved"
	EventIssuesBatchResolved = "issues_batch_resolved"
	EventIssuesBatchDeleted  = "issues_batch_deleted"
	EventIssueViewed         = "issue_viewed"
	EventAnomalyDetected     = "anomaly_detected"
)

// Payload carries the subject of an event. Issue is set for single-issue
// events; IssueIDs for batch events; Extra for anything event-specific.
type Payload struct {
	Issue    *database.Issue
	IssueIDs []uint
	Extra    map[string]interface{}
}

// Subscriber is a named consumer of one event
type Subscriber struct {
	Name string
	Fn   func(Payload)
}

// Bus holds explicit subscriber lists per named event
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]Subscriber
}

// NewBus creates an empty event bus
func NewBus() *Bus {
	return &Bus{subscribers: make(map[string][]Subscriber)}
}

// Subscribe registers a consumer for an event name
func (b *Bus) Subscribe(event, name string, fn func(Payload)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[event] = append(b.subscribers[event], Subscriber{Name: name, Fn: fn})
}

// Publish delivers the payload to every subscriber of the event. Panicking
// subscribers are logged and skipped; the rest still run.
func (b *Bus) Publish(event string, payload Payload) {
	b.mu.RLock()
	subs := make([]Subscriber, len(b.subscribers[event]))
	copy(subs, b.subscribers[event])
	b.mu.RUnlock()

	for _, sub := range subs {
		b.deliver(event, sub, payload)
	}
}

func (b *Bus) deliver(event string, sub Subscriber, payload Payload) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Event subscriber %s panicked on %s: %v", sub.Name, event, r)
		}
	}()
	sub.Fn(payload)
}
