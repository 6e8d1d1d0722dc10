package routine

import "sync"

// StopEvent is a resettable broadcast flag. Set closes the Done channel so any
// number of goroutines can select on it; Clear re-arms the event.
type StopEvent struct {
	mu  sync.Mutex
	ch  chan struct{}
	set bool
}

// NewStopEvent returns a cleared event.
func NewStopEvent() *StopEvent {
	return &StopEvent{ch: make(chan struct{})}
}

// NewSetStopEvent returns an event that starts set.
func NewSetStopEvent() *StopEvent {
	e := NewStopEvent()
	e.Set()
	return e
}

// Set raises the event. Setting an already set event is a no-op.
func (e *StopEvent) Set() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.set {
		e.set = true
		close(e.ch)
	}
}

// Clear lowers the event. Goroutines that captured the previous Done channel
// keep seeing it closed.
func (e *StopEvent) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.set {
		e.set = false
		e.ch = make(chan struct{})
	}
}

// IsSet reports whether the event is raised.
func (e *StopEvent) IsSet() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.set
}

// Done returns a channel that is closed once the event is set.
func (e *StopEvent) Done() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ch
}
