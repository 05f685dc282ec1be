package history

import (
	"strings"

	"github.com/truthinlistings/dashboard/internal/apiclient"
	"github.com/truthinlistings/dashboard/internal/report"
)

// PreviewTypes is how many fraud types a list row shows before "+N more".
const PreviewTypes = 2

// Row is one line of the history table.
type Row struct {
	ID       string
	Title    string
	Location string
	Day      string
	Time     string
	Tier     report.Tier
	Percent  int
	Types    []string
	More     int
}

// Rows formats records for the table, in server order.
func Rows(records []apiclient.HistoryRecord) []Row {
	out := make([]Row, 0, len(records))
	for _, r := range records {
		out = append(out, NewRow(r))
	}
	return out
}

// NewRow formats one record.
func NewRow(r apiclient.HistoryRecord) Row {
	row := Row{
		ID:       r.ID.String(),
		Title:    r.Title,
		Location: joinNonEmpty(", ", r.Locality, r.City),
		Tier:     report.TierFor(r.FraudProbability),
		Percent:  report.Percent(r.FraudProbability),
	}
	row.Types, row.More = report.Preview(r.FraudTypes, PreviewTypes)
	if t, ok := r.Time(); ok {
		row.Day = t.Format("Jan 2, 2006")
		row.Time = t.Format("15:04")
	} else {
		row.Day = r.Timestamp
	}
	return row
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
