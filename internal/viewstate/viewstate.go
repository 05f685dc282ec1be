// Package viewstate tracks the lifecycle of one view's remote request:
// Idle, Loading, Success or Error. Results are stamped with a ticket so a
// response that arrives after the view moved on is dropped.
package viewstate

import "sync"

// Phase is where a view is in its request lifecycle.
type Phase int

const (
	Idle Phase = iota
	Loading
	Success
	Error
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Success:
		return "success"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Ticket identifies one request issued by Begin.
type Ticket uint64

// Snapshot is a consistent copy of a machine's state.
type Snapshot[T any] struct {
	Phase      Phase
	Value      T
	Err        error
	Generation uint64
	Active     bool
}

// Machine is safe for concurrent use.
type Machine[T any] struct {
	mu       sync.Mutex
	phase    Phase
	value    T
	err      error
	gen      uint64
	closed   bool
	onChange func(Snapshot[T])
}

// New returns an active machine in Idle.
func New[T any]() *Machine[T] {
	return &Machine[T]{}
}

// OnChange registers fn to receive every state transition. fn runs on the
// goroutine that caused the transition, after the lock is released.
func (m *Machine[T]) OnChange(fn func(Snapshot[T])) {
	m.mu.Lock()
	m.onChange = fn
	m.mu.Unlock()
}

// Begin moves to Loading and returns a fresh ticket. It refuses while a
// request is already in flight or after Close.
func (m *Machine[T]) Begin() (Ticket, bool) {
	m.mu.Lock()
	if m.closed || m.phase == Loading {
		m.mu.Unlock()
		return 0, false
	}
	m.gen++
	m.phase = Loading
	var zero T
	m.value = zero
	m.err = nil
	t := Ticket(m.gen)
	m.unlockAndNotify()
	return t, true
}

// Succeed records the result for t. Stale tickets are ignored.
func (m *Machine[T]) Succeed(t Ticket, v T) bool {
	m.mu.Lock()
	if !m.current(t) {
		m.mu.Unlock()
		return false
	}
	m.phase = Success
	m.value = v
	m.unlockAndNotify()
	return true
}

// Fail records err for t. Stale tickets are ignored.
func (m *Machine[T]) Fail(t Ticket, err error) bool {
	m.mu.Lock()
	if !m.current(t) {
		m.mu.Unlock()
		return false
	}
	m.phase = Error
	m.err = err
	m.unlockAndNotify()
	return true
}

// Dismiss clears an error back to Idle.
func (m *Machine[T]) Dismiss() bool {
	m.mu.Lock()
	if m.closed || m.phase != Error {
		m.mu.Unlock()
		return false
	}
	m.phase = Idle
	m.err = nil
	m.unlockAndNotify()
	return true
}

// Abandon drops the request behind t and returns to Idle. A superseded
// ticket changes nothing.
func (m *Machine[T]) Abandon(t Ticket) bool {
	m.mu.Lock()
	if !m.current(t) {
		m.mu.Unlock()
		return false
	}
	m.gen++
	m.phase = Idle
	m.err = nil
	m.unlockAndNotify()
	return true
}

// Reset returns to Idle and orphans any in-flight request.
func (m *Machine[T]) Reset() {
	m.mu.Lock()
	m.gen++
	m.phase = Idle
	var zero T
	m.value = zero
	m.err = nil
	m.unlockAndNotify()
}

// Close deactivates the machine. Every later result is stale.
func (m *Machine[T]) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.gen++
	m.unlockAndNotify()
}

// Snapshot returns the current state.
func (m *Machine[T]) Snapshot() Snapshot[T] {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Machine[T]) current(t Ticket) bool {
	return !m.closed && m.phase == Loading && uint64(t) == m.gen
}

func (m *Machine[T]) snapshotLocked() Snapshot[T] {
	return Snapshot[T]{
		Phase:      m.phase,
		Value:      m.value,
		Err:        m.err,
		Generation: m.gen,
		Active:     !m.closed,
	}
}

func (m *Machine[T]) unlockAndNotify() {
	snap := m.snapshotLocked()
	fn := m.onChange
	m.mu.Unlock()
	if fn != nil {
		fn(snap)
	}
}
