package history

import (
	"context"
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
	"golang.org/x/sync/errgroup"

	"github.com/truthinlistings/dashboard/internal/apiclient"
	"github.com/truthinlistings/dashboard/internal/report"
)

// Delta is one module's score in two analyses.
type Delta struct {
	Module string
	Label  string
	A, B   *float64
}

// Change is B minus A in percentage points, or 0 when either is missing.
func (d Delta) Change() float64 {
	if d.A == nil || d.B == nil {
		return 0
	}
	return (*d.B - *d.A) * 100
}

// Chunk is one run of the explanation diff.
type Chunk struct {
	// Type is "same", "added" or "removed".
	Type    string
	Content string
}

// Comparison sets two past analyses side by side.
type Comparison struct {
	A, B        *apiclient.HistoryRecord
	Probability float64
	Deltas      []Delta
	Chunks      []Chunk
}

// Compare fetches both records and diffs them. Module order follows a,
// then any modules only b has.
func Compare(ctx context.Context, api API, a, b string) (*Comparison, error) {
	if a == "" || b == "" {
		return nil, fmt.Errorf("two history ids are required")
	}
	var ra, rb *apiclient.HistoryRecord
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		ra, err = api.GetHistoryDetail(gctx, a)
		return err
	})
	g.Go(func() (err error) {
		rb, err = api.GetHistoryDetail(gctx, b)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return Diff(ra, rb), nil
}

// Diff compares two detail records.
func Diff(a, b *apiclient.HistoryRecord) *Comparison {
	c := &Comparison{
		A:           a,
		B:           b,
		Probability: (b.FraudProbability - a.FraudProbability) * 100,
	}

	seen := map[string]bool{}
	for _, m := range a.ModuleScores {
		seen[m.Name] = true
		d := Delta{Module: m.Name, Label: report.Humanize(m.Name), A: ptr(m.Score)}
		if s, ok := b.ModuleScores.Get(m.Name); ok {
			d.B = ptr(s)
		}
		c.Deltas = append(c.Deltas, d)
	}
	for _, m := range b.ModuleScores {
		if !seen[m.Name] {
			c.Deltas = append(c.Deltas, Delta{Module: m.Name, Label: report.Humanize(m.Name), B: ptr(m.Score)})
		}
	}

	c.Chunks = diffLines(a.Explanations, b.Explanations)
	return c
}

// diffLines diffs explanation lists one explanation per line.
func diffLines(a, b []string) []Chunk {
	dmp := diffmatchpatch.New()
	ta, tb, lines := dmp.DiffLinesToChars(joinLines(a), joinLines(b))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(ta, tb, false), lines)

	var chunks []Chunk
	for _, d := range diffs {
		var typ string
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			typ = "added"
		case diffmatchpatch.DiffDelete:
			typ = "removed"
		default:
			typ = "same"
		}
		for _, line := range strings.Split(strings.TrimSuffix(d.Text, "\n"), "\n") {
			if strings.TrimSpace(line) != "" {
				chunks = append(chunks, Chunk{Type: typ, Content: line})
			}
		}
	}
	return chunks
}

func joinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

func ptr(f float64) *float64 { return &f }
