// Package session routes one dashboard user between the analyze, bulk and
// history views. Exactly one view is active; leaving it discards its state.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/truthinlistings/dashboard/internal/bulk"
	"github.com/truthinlistings/dashboard/internal/history"
	"github.com/truthinlistings/dashboard/internal/listing"
	"github.com/truthinlistings/dashboard/internal/logging"
	"github.com/truthinlistings/dashboard/internal/report"
	"github.com/truthinlistings/dashboard/internal/viewstate"
)

// View names a top-level screen.
type View string

const (
	ViewAnalyze View = "analyze"
	ViewBulk    View = "bulk"
	ViewHistory View = "history"
)

// ParseView validates a view name.
func ParseView(s string) (View, error) {
	switch v := View(s); v {
	case ViewAnalyze, ViewBulk, ViewHistory:
		return v, nil
	}
	return "", fmt.Errorf("unknown view %q", s)
}

// API is everything the three views call.
type API interface {
	listing.API
	bulk.API
	history.API
}

// Snapshot is the active view's state as pushed to the browser.
type Snapshot struct {
	View    View   `json:"view"`
	Phase   string `json:"phase"`
	Message string `json:"message,omitempty"`

	// Analyze view
	Tier    string `json:"tier,omitempty"`
	Percent *int   `json:"percent,omitempty"`

	// Bulk view
	Status string `json:"status,omitempty"`
	Rows   int    `json:"rows,omitempty"`

	// History view
	Records     int    `json:"records,omitempty"`
	SelectedID  string `json:"selected_id,omitempty"`
	DetailPhase string `json:"detail_phase,omitempty"`
}

// Session is one user's dashboard. Safe for concurrent use.
type Session struct {
	ID string

	api    API
	logger logging.Logger

	mu       sync.Mutex
	view     View
	analyze  *listing.Controller
	bulk     *bulk.Controller
	history  *history.Browser
	lastSeen time.Time
	subs     map[chan Snapshot]struct{}
}

func newSession(id string, api API, logger logging.Logger, now time.Time) *Session {
	s := &Session{
		ID:       id,
		api:      api,
		logger:   logger.With(logging.Field{Key: "session", Value: id}),
		lastSeen: now,
		subs:     make(map[chan Snapshot]struct{}),
	}
	s.mountLocked(ViewAnalyze)
	return s
}

// mounted is the active view's state objects.
type mounted struct {
	analyze *listing.Controller
	bulk    *bulk.Controller
	history *history.Browser
}

// Navigate makes v the active view. Moving to a different view closes the
// old one, so its late results are dropped, and mounts a fresh one. The
// history view loads its list on entry. Navigating to the current view
// keeps its state; history only refetches when its list is idle.
func (s *Session) Navigate(ctx context.Context, v View) error {
	_, err := s.enter(ctx, v)
	return err
}

func (s *Session) enter(ctx context.Context, v View) (mounted, error) {
	s.mu.Lock()
	if s.view == v {
		m := mounted{s.analyze, s.bulk, s.history}
		s.mu.Unlock()
		if v == ViewHistory {
			// An abandoned first load leaves the list idle.
			return m, m.history.Resume(ctx)
		}
		return m, nil
	}
	closeOld := s.unmountLocked()
	s.mountLocked(v)
	m := mounted{s.analyze, s.bulk, s.history}
	s.mu.Unlock()

	closeOld()
	s.logger.Debug("navigated", logging.Field{Key: "view", Value: string(v)})
	s.publish()
	if v == ViewHistory {
		return m, m.history.Load(ctx)
	}
	return m, nil
}

// unmountLocked detaches the active view. The returned func closes it and
// must run without s.mu held, since closing notifies observers.
func (s *Session) unmountLocked() func() {
	a, b, h := s.analyze, s.bulk, s.history
	s.analyze, s.bulk, s.history = nil, nil, nil
	return func() {
		if a != nil {
			a.Close()
		}
		if b != nil {
			b.Close()
		}
		if h != nil {
			h.Close()
		}
	}
}

func (s *Session) mountLocked(v View) {
	s.view = v
	switch v {
	case ViewAnalyze:
		c := listing.NewController(s.api, s.logger)
		c.OnChange(func(viewstate.Snapshot[*listing.Outcome]) { s.publish() })
		s.analyze = c
	case ViewBulk:
		c := bulk.NewController(s.api, s.logger)
		c.OnChange(func(viewstate.Snapshot[*bulk.Summary]) { s.publish() })
		s.bulk = c
	case ViewHistory:
		b := history.NewBrowser(s.api, s.logger)
		b.OnChange(s.publish)
		s.history = b
	}
}

// Current returns the active view.
func (s *Session) Current() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// Analyze returns the form controller, switching to the analyze view.
func (s *Session) Analyze(ctx context.Context) *listing.Controller {
	m, _ := s.enter(ctx, ViewAnalyze)
	return m.analyze
}

// Bulk returns the upload controller, switching to the bulk view.
func (s *Session) Bulk(ctx context.Context) *bulk.Controller {
	m, _ := s.enter(ctx, ViewBulk)
	return m.bulk
}

// History returns the history browser, switching to the history view. The
// error is from the eager list load on entry; the browser is usable either
// way.
func (s *Session) History(ctx context.Context) (*history.Browser, error) {
	m, err := s.enter(ctx, ViewHistory)
	return m.history, err
}

// Snapshot summarises the active view.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	view, a, b, h := s.view, s.analyze, s.bulk, s.history
	s.mu.Unlock()

	snap := Snapshot{View: view}
	switch {
	case view == ViewAnalyze && a != nil:
		st := a.State()
		snap.Phase = st.Phase.String()
		snap.Message = st.Message
		if st.Outcome != nil {
			p := report.Percent(st.Outcome.Result.FraudProbability)
			snap.Percent = &p
			snap.Tier = report.TierFor(st.Outcome.Result.FraudProbability).Key
		}
	case view == ViewBulk && b != nil:
		v := b.View()
		snap.Status = v.Status.String()
		snap.Phase = bulkPhase(v.Status)
		snap.Message = v.Message
		if v.Summary != nil {
			snap.Rows = v.Summary.Total()
		}
	case view == ViewHistory && h != nil:
		v := h.View()
		snap.Phase = v.ListPhase.String()
		snap.Message = v.ListMessage
		snap.Records = len(v.Rows)
		snap.SelectedID = v.SelectedID
		snap.DetailPhase = v.DetailPhase.String()
		if v.DetailMessage != "" && snap.Message == "" {
			snap.Message = v.DetailMessage
		}
	}
	return snap
}

func bulkPhase(st bulk.Status) string {
	switch st {
	case bulk.Busy:
		return viewstate.Loading.String()
	case bulk.Failed:
		return viewstate.Error.String()
	case bulk.Empty, bulk.Ready:
		return viewstate.Success.String()
	default:
		return viewstate.Idle.String()
	}
}

// Subscribe returns a channel receiving a snapshot after every state
// change. Slow subscribers miss intermediate snapshots, never the channel.
func (s *Session) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 8)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()
	return ch, func() {
		s.mu.Lock()
		if _, ok := s.subs[ch]; ok {
			delete(s.subs, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
}

func (s *Session) publish() {
	snap := s.Snapshot()
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- snap:
		default:
		}
	}
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Close unmounts the active view and ends every subscription.
func (s *Session) Close() {
	s.mu.Lock()
	closeView := s.unmountLocked()
	s.view = ""
	for ch := range s.subs {
		delete(s.subs, ch)
		close(ch)
	}
	s.mu.Unlock()
	closeView()
}
