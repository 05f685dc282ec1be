// Package testutil provides shared test doubles for use across package tests.
// All dummies implement the corresponding interfaces from the production code,
// allowing injection into components under test without real I/O.
package testutil

import (
	"context"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/truthinlistings/dashboard/internal/apiclient"
	"github.com/truthinlistings/dashboard/internal/logging"
)

// ─── Logger ────────────────────────────────────────────────────────────

// DummyLogger implements logging.Logger with in-memory recording.
type DummyLogger struct {
	mu     sync.Mutex
	Errors []string
	Infos  []string
	Debugs []string
	Warns  []string
}

func (l *DummyLogger) Debug(msg string, _ ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Debugs = append(l.Debugs, msg)
}

func (l *DummyLogger) Info(msg string, _ ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Infos = append(l.Infos, msg)
}

func (l *DummyLogger) Warn(msg string, _ ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Warns = append(l.Warns, msg)
}

func (l *DummyLogger) Error(msg string, _ ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Errors = append(l.Errors, msg)
}

func (l *DummyLogger) With(_ ...logging.Field) logging.Logger { return l }

func (l *DummyLogger) HasInfo(msg string) bool { return l.has(&l.Infos, msg) }
func (l *DummyLogger) HasWarn(msg string) bool { return l.has(&l.Warns, msg) }

func (l *DummyLogger) has(list *[]string, msg string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Contains(*list, msg)
}

// ─── API ───────────────────────────────────────────────────────────────

// DummyAPI stands in for apiclient.Client. Each operation returns the
// configured value or error and counts its calls. Gate channels, when set,
// block the matching call until a value is sent or the context ends.
type DummyAPI struct {
	mu sync.Mutex

	AnalyzeResult *apiclient.AnalysisResult
	AnalyzeErr    error
	AnalyzeGate   chan struct{}
	AnalyzeCalls  int
	LastListing   apiclient.ListingInput

	SaveErr   error
	SaveCalls int
	SaveDone  chan error

	BulkResult *apiclient.BulkResult
	BulkErr    error
	BulkCalls  int

	History     []apiclient.HistoryRecord
	HistoryErr  error
	ListCalls   int
	Details     map[string]*apiclient.HistoryRecord
	DetailErr   error
	DetailGate  chan struct{}
	DetailCalls []string

	HealthReport *apiclient.HealthReport
	HealthErr    error
}

func (d *DummyAPI) Analyze(ctx context.Context, in apiclient.ListingInput) (*apiclient.AnalysisResult, error) {
	d.mu.Lock()
	d.AnalyzeCalls++
	d.LastListing = in
	gate := d.AnalyzeGate
	d.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.AnalyzeErr != nil {
		return nil, d.AnalyzeErr
	}
	return d.AnalyzeResult, nil
}

// DetachSaveHistory mirrors the real client: the save runs on its own
// goroutine and its error only reaches the returned channel.
func (d *DummyAPI) DetachSaveHistory(_ context.Context, _ apiclient.ListingInput, _ apiclient.AnalysisResult) <-chan error {
	done := make(chan error, 1)
	d.mu.Lock()
	d.SaveCalls++
	err := d.SaveErr
	notify := d.SaveDone
	d.mu.Unlock()
	go func() {
		done <- err
		close(done)
		if notify != nil {
			notify <- err
		}
	}()
	return done
}

func (d *DummyAPI) AnalyzeBulk(_ context.Context, _ string, r io.Reader) (*apiclient.BulkResult, error) {
	_, _ = io.Copy(io.Discard, r)
	d.mu.Lock()
	defer d.mu.Unlock()
	d.BulkCalls++
	if d.BulkErr != nil {
		return nil, d.BulkErr
	}
	return d.BulkResult, nil
}

func (d *DummyAPI) ListHistory(ctx context.Context) ([]apiclient.HistoryRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ListCalls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.HistoryErr != nil {
		return nil, d.HistoryErr
	}
	return slices.Clone(d.History), nil
}

func (d *DummyAPI) GetHistoryDetail(ctx context.Context, id string) (*apiclient.HistoryRecord, error) {
	d.mu.Lock()
	d.DetailCalls = append(d.DetailCalls, id)
	gate := d.DetailGate
	d.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.DetailErr != nil {
		return nil, d.DetailErr
	}
	rec, ok := d.Details[id]
	if !ok {
		return nil, &apiclient.Error{Kind: apiclient.KindRequest, Status: 404, Message: fmt.Sprintf("history record %s not found", id)}
	}
	return rec, nil
}

func (d *DummyAPI) DetailedHealth(_ context.Context) (*apiclient.HealthReport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.HealthErr != nil {
		return nil, d.HealthErr
	}
	if d.HealthReport == nil {
		return &apiclient.HealthReport{Status: 200, Body: []byte(`{"status":"healthy"}`)}, nil
	}
	return d.HealthReport, nil
}

// BaseURL is a fixed placeholder.
func (d *DummyAPI) BaseURL() string { return "http://fraud-api.test" }

// Counts returns a consistent snapshot of call counters.
func (d *DummyAPI) Counts() (analyze, save, bulk, list int, details []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.AnalyzeCalls, d.SaveCalls, d.BulkCalls, d.ListCalls, slices.Clone(d.DetailCalls)
}
