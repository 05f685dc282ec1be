package history_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/truthinlistings/dashboard/internal/apiclient"
	"github.com/truthinlistings/dashboard/internal/history"
	"github.com/truthinlistings/dashboard/internal/report"
	"github.com/truthinlistings/dashboard/internal/testutil"
	"github.com/truthinlistings/dashboard/internal/viewstate"
)

func price(f float64) *float64 { return &f }

func fixture() *testutil.DummyAPI {
	return &testutil.DummyAPI{
		History: []apiclient.HistoryRecord{
			{ID: "2", Timestamp: "2024-03-05T14:30:00Z", Title: "Villa", Locality: "Baner", City: "Pune",
				FraudProbability: 0.72, FraudTypes: []string{"a", "b", "c"}},
			{ID: "1", Timestamp: "not a date", Title: "Flat", City: "Mumbai", FraudProbability: 0.1},
		},
		Details: map[string]*apiclient.HistoryRecord{
			"1": {ID: "1", Title: "Flat", FraudProbability: 0.1, Price: price(100),
				Explanations: []string{"Summary", "Price looks fine"},
				ModuleScores: apiclient.ModuleScores{{Name: "price_analysis", Score: 0.1}, {Name: "geo_analysis", Score: 0.2}}},
			"2": {ID: "2", Title: "Villa", FraudProbability: 0.72, Price: price(200),
				Explanations: []string{"Summary", "Price is far below market"},
				ModuleScores: apiclient.ModuleScores{{Name: "price_analysis", Score: 0.9}, {Name: "text_analysis", Score: 0.4}}},
		},
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached")
}

// ─── List ──────────────────────────────────────────────────────────────

func TestBrowser_LoadFormatsRows(t *testing.T) {
	t.Parallel()
	api := fixture()
	b := history.NewBrowser(api, &testutil.DummyLogger{})

	if err := b.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	v := b.View()
	if v.ListPhase != viewstate.Success || len(v.Rows) != 2 {
		t.Fatalf("unexpected view %+v", v)
	}
	r := v.Rows[0]
	if r.Tier != report.Critical || r.Percent != 72 || r.Location != "Baner, Pune" {
		t.Errorf("unexpected row %+v", r)
	}
	if r.Day != "Mar 5, 2024" || r.Time != "14:30" {
		t.Errorf("date split = %q %q", r.Day, r.Time)
	}
	if len(r.Types) != 2 || r.More != 1 {
		t.Errorf("types preview = %v +%d", r.Types, r.More)
	}
	if v.Rows[1].Day != "not a date" || v.Rows[1].Location != "Mumbai" {
		t.Errorf("fallbacks wrong: %+v", v.Rows[1])
	}
}

func TestBrowser_RefreshAlwaysRefetches(t *testing.T) {
	t.Parallel()
	api := fixture()
	b := history.NewBrowser(api, &testutil.DummyLogger{})

	_ = b.Load(context.Background())
	_ = b.Refresh(context.Background())
	_ = b.Refresh(context.Background())
	if _, _, _, list, _ := api.Counts(); list != 3 {
		t.Errorf("list fetched %d times, want 3", list)
	}
}

func TestBrowser_ListFailure(t *testing.T) {
	t.Parallel()
	api := fixture()
	api.HistoryErr = &apiclient.Error{Kind: apiclient.KindTransport, Message: "Connection error: backend unreachable"}
	b := history.NewBrowser(api, &testutil.DummyLogger{})

	if err := b.Load(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	v := b.View()
	if v.ListPhase != viewstate.Error || v.ListMessage != "Connection error: backend unreachable" {
		t.Errorf("unexpected view %+v", v)
	}
}

func TestBrowser_CanceledRequestsReturnToIdle(t *testing.T) {
	t.Parallel()
	api := fixture()
	b := history.NewBrowser(api, &testutil.DummyLogger{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := b.Load(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Load err = %v, want context.Canceled", err)
	}
	if err := b.Select(ctx, "1"); !errors.Is(err, context.Canceled) {
		t.Fatalf("Select err = %v, want context.Canceled", err)
	}
	v := b.View()
	if v.ListPhase != viewstate.Idle || v.DetailPhase != viewstate.Idle {
		t.Fatalf("list phase=%v detail phase=%v, want idle", v.ListPhase, v.DetailPhase)
	}
	if v.ListMessage != "" || v.DetailMessage != "" {
		t.Errorf("cancellation surfaced an error: %+v", v)
	}
	if v.SelectedID != "" {
		t.Errorf("abandoned selection still open: %q", v.SelectedID)
	}

	if err := b.Load(context.Background()); err != nil {
		t.Fatalf("Load after cancel: %v", err)
	}
	if v := b.View(); v.ListPhase != viewstate.Success || len(v.Rows) != 2 {
		t.Errorf("list did not recover: %+v", v)
	}
}

func TestBrowser_CanceledSelectLeavesNewerSelectAlone(t *testing.T) {
	t.Parallel()
	api := fixture()
	gate := make(chan struct{})
	api.DetailGate = gate
	b := history.NewBrowser(api, &testutil.DummyLogger{})

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() { first <- b.Select(ctx, "1") }()
	waitFor(t, func() bool { return b.View().DetailPhase == viewstate.Loading })

	second := make(chan error, 1)
	go func() { second <- b.Select(context.Background(), "2") }()
	waitFor(t, func() bool {
		_, _, _, _, d := api.Counts()
		return len(d) == 2
	})

	cancel()
	if err := <-first; !errors.Is(err, context.Canceled) {
		t.Fatalf("first Select err = %v", err)
	}
	if v := b.View(); v.DetailPhase != viewstate.Loading {
		t.Fatalf("superseded cancel touched the newer request: %v", v.DetailPhase)
	}
	close(gate)
	if err := <-second; err != nil {
		t.Fatal(err)
	}
	if v := b.View(); v.Detail == nil || v.Detail.ID != "2" {
		t.Errorf("expected record 2, got %+v", v.Detail)
	}
}

// ─── Detail ────────────────────────────────────────────────────────────

func TestBrowser_SelectCloseSelectFetchesEachTime(t *testing.T) {
	t.Parallel()
	api := fixture()
	b := history.NewBrowser(api, &testutil.DummyLogger{})
	ctx := context.Background()
	_ = b.Load(ctx)

	if err := b.Select(ctx, "1"); err != nil {
		t.Fatal(err)
	}
	b.CloseDetail()
	if v := b.View(); v.Detail != nil || v.SelectedID != "" {
		t.Errorf("detail not cleared: %+v", v)
	}
	if err := b.Select(ctx, "1"); err != nil {
		t.Fatal(err)
	}

	_, _, _, list, details := api.Counts()
	if len(details) != 2 || details[0] != "1" || details[1] != "1" {
		t.Errorf("detail fetches = %v, want [1 1]", details)
	}
	if list != 1 {
		t.Errorf("closing the detail refetched the list (%d fetches)", list)
	}
	if v := b.View(); v.Detail == nil || *v.Detail.Price != 100 {
		t.Errorf("unexpected detail %+v", v.Detail)
	}
}

func TestBrowser_NewSelectionSupersedesInFlight(t *testing.T) {
	t.Parallel()
	api := fixture()
	gate := make(chan struct{})
	api.DetailGate = gate
	b := history.NewBrowser(api, &testutil.DummyLogger{})
	ctx := context.Background()

	first := make(chan error, 1)
	go func() { first <- b.Select(ctx, "1") }()
	waitFor(t, func() bool { return b.View().DetailPhase == viewstate.Loading })

	second := make(chan error, 1)
	go func() { second <- b.Select(ctx, "2") }()
	waitFor(t, func() bool {
		_, _, _, _, d := api.Counts()
		return len(d) == 2
	})
	if v := b.View(); v.SelectedID != "2" || v.Detail != nil {
		t.Errorf("previous detail should clear at once: %+v", v)
	}

	close(gate)
	<-first
	<-second
	v := b.View()
	if v.Detail == nil || v.Detail.ID != "2" {
		t.Fatalf("expected record 2, got %+v", v.Detail)
	}
}

func TestBrowser_ConcurrentSelectsAgreeOnSelection(t *testing.T) {
	t.Parallel()
	b := history.NewBrowser(fixture(), &testutil.DummyLogger{})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		id := []string{"1", "2"}[i%2]
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = b.Select(ctx, id)
		}()
	}
	wg.Wait()

	v := b.View()
	if v.Detail == nil || string(v.Detail.ID) != v.SelectedID {
		t.Fatalf("selected %q but showing %+v", v.SelectedID, v.Detail)
	}
}

func TestBrowser_DetailNotFound(t *testing.T) {
	t.Parallel()
	b := history.NewBrowser(fixture(), &testutil.DummyLogger{})

	err := b.Select(context.Background(), "404")
	var apiErr *apiclient.Error
	if !errors.As(err, &apiErr) || apiErr.Status != 404 {
		t.Fatalf("expected 404, got %v", err)
	}
	if v := b.View(); v.DetailPhase != viewstate.Error || v.DetailMessage == "" {
		t.Errorf("unexpected view %+v", v)
	}
}

// ─── Compare ───────────────────────────────────────────────────────────

func TestCompare_ModuleDeltasAndExplanationDiff(t *testing.T) {
	t.Parallel()
	api := fixture()

	c, err := history.Compare(context.Background(), api, "1", "2")
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if got := c.Probability; got < 61.9 || got > 62.1 {
		t.Errorf("probability delta = %v", got)
	}
	if len(c.Deltas) != 3 {
		t.Fatalf("expected 3 modules, got %+v", c.Deltas)
	}
	if c.Deltas[0].Module != "price_analysis" || c.Deltas[0].Change() < 79.9 || c.Deltas[0].Change() > 80.1 {
		t.Errorf("price delta wrong: %+v", c.Deltas[0])
	}
	if c.Deltas[1].B != nil || c.Deltas[2].A != nil || c.Deltas[2].Module != "text_analysis" {
		t.Errorf("one-sided modules wrong: %+v", c.Deltas)
	}

	want := []history.Chunk{
		{Type: "same", Content: "Summary"},
		{Type: "removed", Content: "Price looks fine"},
		{Type: "added", Content: "Price is far below market"},
	}
	if len(c.Chunks) != len(want) {
		t.Fatalf("chunks = %+v", c.Chunks)
	}
	for i := range want {
		if c.Chunks[i] != want[i] {
			t.Errorf("chunk %d = %+v, want %+v", i, c.Chunks[i], want[i])
		}
	}
}

func TestCompare_RequiresBothIDs(t *testing.T) {
	t.Parallel()
	if _, err := history.Compare(context.Background(), fixture(), "1", ""); err == nil {
		t.Fatal("expected error")
	}
}
