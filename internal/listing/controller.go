// Package listing drives the single-listing analysis form: the draft being
// typed, its submission, and the resulting report or error.
package listing

import (
	"context"
	"errors"
	"sync"

	"github.com/truthinlistings/dashboard/internal/apiclient"
	"github.com/truthinlistings/dashboard/internal/logging"
	"github.com/truthinlistings/dashboard/internal/viewstate"
)

// ErrInFlight is returned by Submit while an analysis is already running.
var ErrInFlight = errors.New("analysis already in progress")

// API is the part of the fraud API the form needs.
type API interface {
	Analyze(ctx context.Context, in apiclient.ListingInput) (*apiclient.AnalysisResult, error)
	DetachSaveHistory(ctx context.Context, in apiclient.ListingInput, result apiclient.AnalysisResult) <-chan error
}

// Outcome is a finished analysis together with the listing it was run on.
type Outcome struct {
	Listing apiclient.ListingInput
	Result  apiclient.AnalysisResult
}

// State is what the analyze view renders.
type State struct {
	Draft   Draft
	Phase   viewstate.Phase
	Outcome *Outcome
	// Message is the user-facing error text in the Error phase.
	Message string
	// Invalid holds per-field problems from the last rejected submit.
	Invalid ValidationErrors
}

// Controller owns one form instance. It is safe for concurrent use.
type Controller struct {
	api    API
	logger logging.Logger

	mu      sync.Mutex
	draft   Draft
	invalid ValidationErrors
	machine *viewstate.Machine[*Outcome]
}

// NewController returns an empty form.
func NewController(api API, logger logging.Logger) *Controller {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &Controller{
		api:     api,
		logger:  logger.With(logging.Field{Key: "component", Value: "listing"}),
		machine: viewstate.New[*Outcome](),
	}
}

// OnChange forwards every phase transition to fn.
func (c *Controller) OnChange(fn func(viewstate.Snapshot[*Outcome])) {
	c.machine.OnChange(fn)
}

// SetField updates one field and clears any displayed error.
func (c *Controller) SetField(name, value string) error {
	c.mu.Lock()
	err := c.draft.Set(name, value)
	if err == nil {
		c.invalid = nil
	}
	c.mu.Unlock()
	if err != nil {
		return err
	}
	c.machine.Dismiss()
	return nil
}

// SetDraft replaces the whole draft, as a form post does.
func (c *Controller) SetDraft(d Draft) {
	c.mu.Lock()
	c.draft = d
	c.invalid = nil
	c.mu.Unlock()
	c.machine.Dismiss()
}

// Submit validates the draft and runs the analysis. While a submission is
// in flight it does nothing and returns ErrInFlight. Invalid input never
// reaches the network. A successful result is saved to history in the
// background; that save cannot change what the user sees.
func (c *Controller) Submit(ctx context.Context) error {
	ticket, ok := c.machine.Begin()
	if !ok {
		return ErrInFlight
	}
	return c.run(ctx, ticket)
}

// SubmitDraft replaces the draft with d and submits it. While a submission
// is in flight the draft on screen is kept and ErrInFlight is returned.
func (c *Controller) SubmitDraft(ctx context.Context, d Draft) error {
	ticket, ok := c.machine.Begin()
	if !ok {
		return ErrInFlight
	}
	c.mu.Lock()
	c.draft = d
	c.mu.Unlock()
	return c.run(ctx, ticket)
}

func (c *Controller) run(ctx context.Context, ticket viewstate.Ticket) error {
	c.mu.Lock()
	in, invalid := c.draft.Validate()
	c.invalid = invalid
	c.mu.Unlock()
	if len(invalid) > 0 {
		c.machine.Fail(ticket, invalid)
		return invalid
	}

	c.logger.Info("submitting listing", logging.Field{Key: "title", Value: in.Title})
	result, err := c.api.Analyze(ctx, in)
	if err != nil {
		if ctx.Err() != nil {
			// The requester went away; nobody is left to show the error to.
			c.machine.Abandon(ticket)
			return ctx.Err()
		}
		c.logger.Warn("analysis failed", logging.Err(err))
		c.machine.Fail(ticket, err)
		return err
	}

	if !c.machine.Succeed(ticket, &Outcome{Listing: in, Result: *result}) {
		c.logger.Debug("dropped stale analysis result")
		return nil
	}
	c.api.DetachSaveHistory(ctx, in, *result)
	return nil
}

// Dismiss hides the current error without touching the draft.
func (c *Controller) Dismiss() {
	c.mu.Lock()
	c.invalid = nil
	c.mu.Unlock()
	c.machine.Dismiss()
}

// Back returns from the report to the form, keeping the draft.
func (c *Controller) Back() {
	c.mu.Lock()
	c.invalid = nil
	c.mu.Unlock()
	c.machine.Reset()
}

// Close tears the form down. The draft is discarded and any in-flight
// result will be ignored.
func (c *Controller) Close() {
	c.machine.Close()
	c.mu.Lock()
	c.draft = Draft{}
	c.invalid = nil
	c.mu.Unlock()
}

// State returns a consistent view of the form.
func (c *Controller) State() State {
	snap := c.machine.Snapshot()
	c.mu.Lock()
	defer c.mu.Unlock()
	st := State{
		Draft:   c.draft,
		Phase:   snap.Phase,
		Outcome: snap.Value,
		Invalid: c.invalid,
	}
	if snap.Phase == viewstate.Error {
		st.Message = apiclient.UserMessage(snap.Err)
	}
	return st
}
