// Package async implements a one-shot completion signal. A background job
// (decode, page, seek, free) signals it exactly once when the work
// finishes, with a code of Complete or Failed. The blocking Event variant
// lets a control thread wait on it; callers that want a callback instead
// can implement the Notifier interface themselves.
package async

import (
	"sync"

	"github.com/google/uuid"
)

// Code is the completion status an AsyncNotification is signalled with.
type Code int

const (
	Complete Code = iota
	Failed
)

// Notifier receives a one-shot completion signal. Implementations must
// tolerate being signalled from a worker goroutine that is not the waiter.
type Notifier interface {
	OnSignal(code Code)
}

// Event is a condition-variable-backed Notifier: a blocking waiter plus an
// ID useful for correlating log lines across the job queue and resource
// manager. Every Event gets a random UUID.
type Event struct {
	id string

	mu     sync.Mutex
	cond   *sync.Cond
	fired  bool
	result Code
}

// NewEvent returns an unfired Event ready to be waited on.
func NewEvent() *Event {
	e := &Event{id: uuid.NewString()}
	e.cond = sync.NewCond(&e.mu)
	return e
}

// ID returns a stable correlation identifier for logging.
func (e *Event) ID() string { return e.id }

// OnSignal fires the event. Signalling an already-fired event is a no-op;
// only the first signal is observed, matching the "one-shot" contract.
func (e *Event) OnSignal(code Code) {
	e.mu.Lock()
	if !e.fired {
		e.fired = true
		e.result = code
	}
	e.mu.Unlock()
	e.cond.Broadcast()
}

// Wait blocks until OnSignal has been called and returns the signalled code.
func (e *Event) Wait() Code {
	e.mu.Lock()
	defer e.mu.Unlock()
	for !e.fired {
		e.cond.Wait()
	}
	return e.result
}

// Fired reports whether the event has already been signalled, without blocking.
func (e *Event) Fired() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fired
}
