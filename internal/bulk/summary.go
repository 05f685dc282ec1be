package bulk

import (
	"fmt"
	"math"
	"strings"

	"github.com/truthinlistings/dashboard/internal/apiclient"
)

// TrendSize is how many rows the confidence trend chart shows.
const TrendSize = 10

// TrendPoint is one bar of the confidence trend.
type TrendPoint struct {
	Label string
	Value float64
}

// Cell is one square of the correlation heat map.
type Cell struct {
	Value float64
	// Intensity is |Value| clamped to [0,1], used as the fill opacity.
	Intensity float64
	Positive  bool
}

// Summary is a bulk result prepared for charts and the results table.
type Summary struct {
	Filename string
	Rows     []apiclient.BulkRow
	// Distribution is [real, fraudulent].
	Distribution [2]int
	Trend        []TrendPoint
	Columns      []string
	Metrics      *apiclient.Metrics
	EDA          *apiclient.EDA
	Heat         [][]Cell
}

// Total is the number of analysed rows.
func (s *Summary) Total() int { return len(s.Rows) }

// Summarize derives chart data from a bulk result. The rows are shared,
// not copied; nothing here mutates them.
func Summarize(filename string, res apiclient.BulkResult) *Summary {
	s := &Summary{
		Filename: filename,
		Rows:     res.Rows,
		Metrics:  res.Metrics,
		EDA:      res.EDA,
	}
	for i, row := range res.Rows {
		if row.IsReal() {
			s.Distribution[0]++
		} else {
			s.Distribution[1]++
		}
		if i < TrendSize {
			s.Trend = append(s.Trend, TrendPoint{Label: fmt.Sprintf("L%d", i+1), Value: row.Confidence})
		}
	}
	if len(res.Rows) > 0 {
		for _, f := range res.Rows[0].Fields {
			if f.Key == "prediction" || f.Key == "confidence" {
				continue
			}
			s.Columns = append(s.Columns, f.Key)
		}
	}
	if res.EDA != nil && res.EDA.Correlation != nil {
		s.Heat = heat(res.EDA.Correlation.Values)
	}
	return s
}

func heat(values [][]float64) [][]Cell {
	out := make([][]Cell, len(values))
	for i, row := range values {
		out[i] = make([]Cell, len(row))
		for j, v := range row {
			out[i][j] = Cell{Value: v, Intensity: math.Min(1, math.Abs(v)), Positive: v >= 0}
		}
	}
	return out
}

// Filter keeps rows where any field's string form contains term,
// ignoring case. The term is matched as typed, spaces included. An empty
// term keeps everything. rows is not modified.
func Filter(rows []apiclient.BulkRow, term string) []apiclient.BulkRow {
	term = strings.ToLower(term)
	if term == "" {
		return rows
	}
	var out []apiclient.BulkRow
	for _, row := range rows {
		for _, f := range row.Fields {
			if strings.Contains(strings.ToLower(f.String()), term) {
				out = append(out, row)
				break
			}
		}
	}
	return out
}

// CellValue returns the display value of column key in row.
func CellValue(row apiclient.BulkRow, key string) string {
	for _, f := range row.Fields {
		if f.Key == key {
			return f.String()
		}
	}
	return ""
}
