// Package report turns an analysis result into display values. Results
// arrive as fractions; this is the only place they become percentages.
package report

import (
	"fmt"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/truthinlistings/dashboard/internal/apiclient"
)

// Tier is a risk bucket with its fixed label and colour.
type Tier struct {
	Key   string
	Label string
	Color string
}

var (
	Critical = Tier{Key: "critical", Label: "CRITICAL RISK", Color: "#dc2626"}
	Moderate = Tier{Key: "moderate", Label: "MODERATE RISK", Color: "#d97706"}
	Minimal  = Tier{Key: "minimal", Label: "MINIMAL RISK", Color: "#059669"}
)

// Thresholds are inclusive lower bounds.
const (
	CriticalThreshold = 0.70
	ModerateThreshold = 0.40
)

// TierFor buckets a fraud probability.
func TierFor(p float64) Tier {
	switch {
	case p >= CriticalThreshold:
		return Critical
	case p >= ModerateThreshold:
		return Moderate
	default:
		return Minimal
	}
}

// Percent converts a fraction to a whole percentage.
func Percent(p float64) int {
	return int(math.Round(p * 100))
}

// Bar colours for module scores.
const (
	BarRed    = "#ef4444"
	BarOrange = "#f97316"
	BarYellow = "#eab308"
	BarGreen  = "#22c55e"
)

// BarColor picks the colour of one module bar.
func BarColor(score float64) string {
	switch {
	case score >= 0.8:
		return BarRed
	case score >= 0.6:
		return BarOrange
	case score >= 0.4:
		return BarYellow
	default:
		return BarGreen
	}
}

// Bar is one module in the breakdown chart.
type Bar struct {
	Module string
	Label  string
	// Value is the score as a percentage rounded to one decimal.
	Value float64
	Color string
}

// Display formats Value for a chart tooltip.
func (b Bar) Display() string { return fmt.Sprintf("%.1f%%", b.Value) }

// View is everything the result page draws.
type View struct {
	Listing    apiclient.ListingInput
	Tier       Tier
	Percent    int
	Bars       []Bar
	FraudTypes []string
	Summary    string
	Findings   []string
	NoFindings bool
}

// Render builds the view for one analysis. It never fails: missing parts
// of the result render as empty sections.
func Render(result apiclient.AnalysisResult, listing apiclient.ListingInput) View {
	v := View{
		Listing:    listing,
		Tier:       TierFor(result.FraudProbability),
		Percent:    Percent(result.FraudProbability),
		FraudTypes: append([]string(nil), result.FraudTypes...),
	}
	for _, m := range result.ModuleScores {
		v.Bars = append(v.Bars, Bar{
			Module: m.Name,
			Label:  Humanize(m.Name),
			Value:  math.Round(m.Score*1000) / 10,
			Color:  BarColor(m.Score),
		})
	}
	if len(result.Explanations) > 0 {
		v.Summary = result.Explanations[0]
		v.Findings = append([]string(nil), result.Explanations[1:]...)
	}
	v.NoFindings = len(result.Explanations) <= 1
	return v
}

// Humanize turns a snake_case key into a title.
func Humanize(key string) string {
	words := strings.FieldsFunc(key, func(r rune) bool { return r == '_' || r == '-' || r == ' ' })
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}

// Preview returns at most n fraud types and how many were left out.
func Preview(types []string, n int) ([]string, int) {
	if len(types) <= n {
		return types, 0
	}
	return types[:n], len(types) - n
}
