package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/truthinlistings/dashboard/internal/logging"
)

// DefaultIdleTimeout is how long an untouched session survives.
const DefaultIdleTimeout = 30 * time.Minute

// Store keeps sessions by id and expires idle ones.
type Store struct {
	api    API
	logger logging.Logger
	idle   time.Duration
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewStore returns an empty store. idle <= 0 means DefaultIdleTimeout.
func NewStore(api API, idle time.Duration, logger logging.Logger) *Store {
	if logger == nil {
		logger = logging.Nop{}
	}
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	return &Store{
		api:      api,
		logger:   logger.With(logging.Field{Key: "component", Value: "session"}),
		idle:     idle,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// SetClock replaces the time source, for tests.
func (st *Store) SetClock(now func() time.Time) {
	st.mu.Lock()
	st.now = now
	st.mu.Unlock()
}

// Get returns the live session for id and marks it used.
func (st *Store) Get(id string) (*Session, bool) {
	st.mu.Lock()
	s, ok := st.sessions[id]
	now := st.now()
	st.mu.Unlock()
	if !ok {
		return nil, false
	}
	if now.Sub(s.idleSince()) > st.idle {
		st.remove(id)
		return nil, false
	}
	s.touch(now)
	return s, true
}

// Create starts a session on the analyze view.
func (st *Store) Create() *Session {
	id := uuid.NewString()
	st.mu.Lock()
	s := newSession(id, st.api, st.logger, st.now())
	st.sessions[id] = s
	n := len(st.sessions)
	st.mu.Unlock()
	st.logger.Info("created session",
		logging.Field{Key: "id", Value: id},
		logging.Field{Key: "active", Value: n})
	return s
}

// GetOrCreate returns the session for id, or a new one when id is unknown
// or expired. created reports which.
func (st *Store) GetOrCreate(id string) (s *Session, created bool) {
	if id != "" {
		if s, ok := st.Get(id); ok {
			return s, false
		}
	}
	return st.Create(), true
}

// Len is the number of stored sessions.
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// Sweep closes every session idle longer than the timeout.
func (st *Store) Sweep() int {
	st.mu.Lock()
	now := st.now()
	var expired []*Session
	for id, s := range st.sessions {
		if now.Sub(s.idleSince()) > st.idle {
			expired = append(expired, s)
			delete(st.sessions, id)
		}
	}
	st.mu.Unlock()

	for _, s := range expired {
		s.Close()
	}
	if len(expired) > 0 {
		st.logger.Info("expired idle sessions", logging.Field{Key: "count", Value: len(expired)})
	}
	return len(expired)
}

// Run sweeps periodically until ctx ends, then closes every session.
func (st *Store) Run(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			st.Sweep()
		case <-ctx.Done():
			st.closeAll()
			return
		}
	}
}

func (st *Store) remove(id string) {
	st.mu.Lock()
	s, ok := st.sessions[id]
	delete(st.sessions, id)
	st.mu.Unlock()
	if ok {
		s.Close()
	}
}

func (st *Store) closeAll() {
	st.mu.Lock()
	all := st.sessions
	st.sessions = make(map[string]*Session)
	st.mu.Unlock()
	for _, s := range all {
		s.Close()
	}
}
