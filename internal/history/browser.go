// Package history drives the past-analyses view: the eagerly loaded list,
// a detail panel for one selected record, and side-by-side comparison.
package history

import (
	"context"
	"sync"

	"github.com/truthinlistings/dashboard/internal/apiclient"
	"github.com/truthinlistings/dashboard/internal/logging"
	"github.com/truthinlistings/dashboard/internal/viewstate"
)

// API is the part of the fraud API the history view needs.
type API interface {
	ListHistory(ctx context.Context) ([]apiclient.HistoryRecord, error)
	GetHistoryDetail(ctx context.Context, id string) (*apiclient.HistoryRecord, error)
}

// View is a consistent read of the browser.
type View struct {
	ListPhase   viewstate.Phase
	Rows        []Row
	ListMessage string

	SelectedID    string
	DetailPhase   viewstate.Phase
	Detail        *apiclient.HistoryRecord
	DetailMessage string
}

// Browser owns one history view. The list and the detail panel each have
// their own request lifecycle. Safe for concurrent use.
type Browser struct {
	api    API
	logger logging.Logger

	// seq serialises request starts and selection changes. Observers
	// never take it.
	seq      sync.Mutex
	mu       sync.Mutex
	selected string
	list     *viewstate.Machine[[]apiclient.HistoryRecord]
	detail   *viewstate.Machine[*apiclient.HistoryRecord]
}

func NewBrowser(api API, logger logging.Logger) *Browser {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &Browser{
		api:    api,
		logger: logger.With(logging.Field{Key: "component", Value: "history"}),
		list:   viewstate.New[[]apiclient.HistoryRecord](),
		detail: viewstate.New[*apiclient.HistoryRecord](),
	}
}

// OnChange reports every list or detail transition to fn.
func (b *Browser) OnChange(fn func()) {
	b.list.OnChange(func(viewstate.Snapshot[[]apiclient.HistoryRecord]) { fn() })
	b.detail.OnChange(func(viewstate.Snapshot[*apiclient.HistoryRecord]) { fn() })
}

// supersede starts a new request on m, orphaning any in-flight one. The
// caller holds b.seq.
func supersede[T any](m *viewstate.Machine[T]) (viewstate.Ticket, bool) {
	if t, ok := m.Begin(); ok {
		return t, true
	}
	m.Reset()
	return m.Begin()
}

// Load fetches the full list. It is called on view entry.
func (b *Browser) Load(ctx context.Context) error {
	return b.Refresh(ctx)
}

// Refresh refetches the list unconditionally.
func (b *Browser) Refresh(ctx context.Context) error {
	b.seq.Lock()
	ticket, ok := supersede(b.list)
	b.seq.Unlock()
	if !ok {
		return nil
	}
	return b.fetchList(ctx, ticket)
}

// Resume fetches the list only when none is loaded or loading, as after a
// request the client abandoned.
func (b *Browser) Resume(ctx context.Context) error {
	b.seq.Lock()
	if b.list.Snapshot().Phase != viewstate.Idle {
		b.seq.Unlock()
		return nil
	}
	ticket, ok := b.list.Begin()
	b.seq.Unlock()
	if !ok {
		return nil
	}
	return b.fetchList(ctx, ticket)
}

func (b *Browser) fetchList(ctx context.Context, ticket viewstate.Ticket) error {
	records, err := b.api.ListHistory(ctx)
	if err != nil {
		if ctx.Err() != nil {
			b.list.Abandon(ticket)
			return ctx.Err()
		}
		b.logger.Warn("failed to load history", logging.Err(err))
		b.list.Fail(ticket, err)
		return err
	}
	if b.list.Succeed(ticket, records) {
		b.logger.Debug("loaded history", logging.Field{Key: "records", Value: len(records)})
	}
	return nil
}

// Select opens the detail panel for id, replacing any previous selection
// at once. Each call fetches the detail exactly once.
func (b *Browser) Select(ctx context.Context, id string) error {
	b.seq.Lock()
	b.mu.Lock()
	b.selected = id
	b.mu.Unlock()
	ticket, ok := supersede(b.detail)
	b.seq.Unlock()
	if !ok {
		return nil
	}
	rec, err := b.api.GetHistoryDetail(ctx, id)
	if err != nil {
		if ctx.Err() != nil {
			b.seq.Lock()
			if b.detail.Abandon(ticket) {
				b.mu.Lock()
				b.selected = ""
				b.mu.Unlock()
			}
			b.seq.Unlock()
			return ctx.Err()
		}
		b.logger.Warn("failed to load history detail",
			logging.Field{Key: "id", Value: id},
			logging.Err(err))
		b.detail.Fail(ticket, err)
		return err
	}
	b.detail.Succeed(ticket, rec)
	return nil
}

// CloseDetail clears the selection. The list is left as is.
func (b *Browser) CloseDetail() {
	b.seq.Lock()
	defer b.seq.Unlock()
	b.mu.Lock()
	b.selected = ""
	b.mu.Unlock()
	b.detail.Reset()
}

// Close tears the view down.
func (b *Browser) Close() {
	b.list.Close()
	b.detail.Close()
}

// Records returns the loaded list, if any.
func (b *Browser) Records() []apiclient.HistoryRecord {
	return b.list.Snapshot().Value
}

// View reports the current state.
func (b *Browser) View() View {
	ls := b.list.Snapshot()
	ds := b.detail.Snapshot()
	b.mu.Lock()
	selected := b.selected
	b.mu.Unlock()

	v := View{
		ListPhase:   ls.Phase,
		Rows:        Rows(ls.Value),
		SelectedID:  selected,
		DetailPhase: ds.Phase,
		Detail:      ds.Value,
	}
	if ls.Phase == viewstate.Error {
		v.ListMessage = apiclient.UserMessage(ls.Err)
	}
	if ds.Phase == viewstate.Error {
		v.DetailMessage = apiclient.UserMessage(ds.Err)
	}
	return v
}
