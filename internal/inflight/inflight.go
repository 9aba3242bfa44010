// Package inflight prevents duplicate concurrent operations of the same
// kind. A flag is set for the lifetime of exactly one in-flight request and
// must be cleared via End in a deferred cleanup path, so a failed worker can
// never leave it stuck.
package inflight

import "sync"

// Op identifies a guarded operation kind.
type Op string

const (
	OpStart  Op = "start"
	OpStop   Op = "stop"
	OpStatus Op = "status"
)

// Guard tracks which operation kinds currently have a request in flight.
// It is safe for concurrent use.
type Guard struct {
	mu       sync.Mutex
	inFlight map[Op]bool
}

// New creates an empty guard.
func New() *Guard {
	return &Guard{inFlight: make(map[Op]bool)}
}

// TryBegin marks the operation kind as in flight. Returns false if a request
// of that kind is already running; the existing flag is left untouched.
func (g *Guard) TryBegin(kind Op) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.inFlight[kind] {
		return false
	}
	g.inFlight[kind] = true
	return true
}

// End unconditionally clears the flag for the operation kind. Callers must
// invoke it (typically via defer) on every exit path of an operation they
// began.
func (g *Guard) End(kind Op) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.inFlight[kind] = false
}

// InProgress reports whether a request of the given kind is in flight.
func (g *Guard) InProgress(kind Op) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inFlight[kind]
}

// Reset clears all flags. Used on shutdown.
func (g *Guard) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for k := range g.inFlight {
		g.inFlight[k] = false
	}
}
