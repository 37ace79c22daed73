// Package queue implements the in-memory event buffer between the HTTP
// ingestion handlers and the batch dispatcher.
package queue

import (
	"sync"

	"github.com/letinc/beacon/internal/event"
)

// EventQueue is an unbounded FIFO buffer of tracking events. Any number of
// request handlers push concurrently; a single dispatcher drains.
type EventQueue struct {
	mu     sync.Mutex
	events []event.TrackingEvent
}

// New creates an empty queue.
func New() *EventQueue {
	return &EventQueue{}
}

// Push appends an event. It never blocks beyond the insertion cost and
// never fails.
func (q *EventQueue) Push(ev event.TrackingEvent) {
	q.mu.Lock()
	q.events = append(q.events, ev)
	q.mu.Unlock()
}

// Drain atomically removes and returns up to max events in FIFO order.
// It returns nil when the queue is empty.
func (q *EventQueue) Drain(max int) []event.TrackingEvent {
	if max <= 0 {
		return nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.events)
	if n == 0 {
		return nil
	}
	if n > max {
		n = max
	}

	batch := make([]event.TrackingEvent, n)
	copy(batch, q.events[:n])

	// Shift the remainder down so the backing array does not pin
	// already-drained events.
	remaining := copy(q.events, q.events[n:])
	for i := remaining; i < len(q.events); i++ {
		q.events[i] = event.TrackingEvent{}
	}
	q.events = q.events[:remaining]

	return batch
}

// Len reports the number of buffered events.
func (q *EventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}
