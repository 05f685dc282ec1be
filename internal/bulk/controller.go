// Package bulk drives the CSV upload view: it checks the file, sends it for
// classification and prepares the charts and searchable table.
package bulk

import (
	"context"
	"errors"
	"io"
	"mime"
	"sync"

	"github.com/truthinlistings/dashboard/internal/apiclient"
	"github.com/truthinlistings/dashboard/internal/logging"
	"github.com/truthinlistings/dashboard/internal/viewstate"
)

// ErrNotCSV rejects uploads that are not declared as text/csv.
var ErrNotCSV = errors.New("Please select a valid CSV file.")

// ErrInFlight is returned while an upload is being analysed.
var ErrInFlight = errors.New("bulk analysis already in progress")

// ValidateUpload accepts only files declared as text/csv. Parameters such
// as charset are ignored.
func ValidateUpload(filename, contentType string) error {
	if filename == "" {
		return ErrNotCSV
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil || mt != "text/csv" {
		return ErrNotCSV
	}
	return nil
}

// API is the part of the fraud API the bulk view needs.
type API interface {
	AnalyzeBulk(ctx context.Context, filename string, r io.Reader) (*apiclient.BulkResult, error)
}

// Status distinguishes the states the view renders differently.
type Status int

const (
	NotUploaded Status = iota
	Busy
	Empty
	Ready
	Failed
)

func (s Status) String() string {
	return [...]string{"not_uploaded", "busy", "empty", "ready", "failed"}[s]
}

// View is a consistent read of the bulk controller.
type View struct {
	Status  Status
	Summary *Summary
	Filter  string
	// Rows are the filtered table rows.
	Rows    []apiclient.BulkRow
	Message string
}

// Controller owns one bulk view. It is safe for concurrent use.
type Controller struct {
	api    API
	logger logging.Logger

	mu      sync.Mutex
	filter  string
	machine *viewstate.Machine[*Summary]
}

func NewController(api API, logger logging.Logger) *Controller {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &Controller{
		api:     api,
		logger:  logger.With(logging.Field{Key: "component", Value: "bulk"}),
		machine: viewstate.New[*Summary](),
	}
}

// OnChange forwards every phase transition to fn.
func (c *Controller) OnChange(fn func(viewstate.Snapshot[*Summary])) {
	c.machine.OnChange(fn)
}

// Upload validates and analyses one file. A file that is not CSV fails
// without contacting the API.
func (c *Controller) Upload(ctx context.Context, filename, contentType string, r io.Reader) error {
	ticket, ok := c.machine.Begin()
	if !ok {
		return ErrInFlight
	}
	c.mu.Lock()
	c.filter = ""
	c.mu.Unlock()

	if err := ValidateUpload(filename, contentType); err != nil {
		c.logger.Info("rejected upload",
			logging.Field{Key: "filename", Value: filename},
			logging.Field{Key: "content_type", Value: contentType})
		c.machine.Fail(ticket, err)
		return err
	}

	res, err := c.api.AnalyzeBulk(ctx, filename, r)
	if err != nil {
		if ctx.Err() != nil {
			c.machine.Abandon(ticket)
			return ctx.Err()
		}
		c.logger.Warn("bulk analysis failed", logging.Err(err))
		c.machine.Fail(ticket, err)
		return err
	}

	s := Summarize(filename, *res)
	c.logger.Info("bulk analysis complete",
		logging.Field{Key: "filename", Value: filename},
		logging.Field{Key: "rows", Value: s.Total()},
		logging.Field{Key: "fraudulent", Value: s.Distribution[1]})
	c.machine.Succeed(ticket, s)
	return nil
}

// SetFilter changes the table search term.
func (c *Controller) SetFilter(term string) {
	c.mu.Lock()
	c.filter = term
	c.mu.Unlock()
}

// Filtered returns the rows matching the current search term.
func (c *Controller) Filtered() []apiclient.BulkRow {
	return c.View().Rows
}

// Reset returns to the upload prompt.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.filter = ""
	c.mu.Unlock()
	c.machine.Reset()
}

// Close tears the view down.
func (c *Controller) Close() {
	c.machine.Close()
}

// View reports the current state.
func (c *Controller) View() View {
	snap := c.machine.Snapshot()
	c.mu.Lock()
	filter := c.filter
	c.mu.Unlock()

	v := View{Filter: filter}
	switch snap.Phase {
	case viewstate.Idle:
		v.Status = NotUploaded
	case viewstate.Loading:
		v.Status = Busy
	case viewstate.Error:
		v.Status = Failed
		v.Message = apiclient.UserMessage(snap.Err)
	case viewstate.Success:
		v.Summary = snap.Value
		if snap.Value == nil || snap.Value.Total() == 0 {
			v.Status = Empty
		} else {
			v.Status = Ready
			v.Rows = Filter(snap.Value.Rows, filter)
		}
	}
	return v
}
