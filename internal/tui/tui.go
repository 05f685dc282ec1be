// Package tui is a terminal browser for saved analyses.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/truthinlistings/dashboard/internal/apiclient"
	"github.com/truthinlistings/dashboard/internal/history"
	"github.com/truthinlistings/dashboard/internal/logging"
	"github.com/truthinlistings/dashboard/internal/report"
	"github.com/truthinlistings/dashboard/internal/viewstate"
)

type listLoadedMsg struct{ err error }

type detailLoadedMsg struct{ err error }

type comparedMsg struct {
	cmp *history.Comparison
	err error
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Background(lipgloss.Color("62")).Foreground(lipgloss.Color("230")).Padding(0, 1)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	paneStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1).MarginTop(1)
	addedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#22c55e"))
	removeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#ef4444")).Strikethrough(true)
)

// Model is the bubbletea model of the history browser.
type Model struct {
	ctx     context.Context
	api     history.API
	browser *history.Browser
	table   table.Model
	width   int

	// mark is the first record picked for comparison.
	mark    string
	compare *history.Comparison
	err     string
}

// New builds the browser. Nothing is fetched until Init runs.
func New(ctx context.Context, api history.API, logger logging.Logger) *Model {
	t := table.New(
		table.WithColumns(columns(80)),
		table.WithFocused(true),
		table.WithHeight(12),
	)
	return &Model{
		ctx:     ctx,
		api:     api,
		browser: history.NewBrowser(api, logger),
		table:   t,
		width:   80,
	}
}

func columns(width int) []table.Column {
	title := width - 4 - 6 - 18 - 8 - 24 - 10
	if title < 16 {
		title = 16
	}
	return []table.Column{
		{Title: "ID", Width: 6},
		{Title: "Listing", Width: title},
		{Title: "When", Width: 18},
		{Title: "Risk", Width: 8},
		{Title: "Fraud types", Width: 24},
	}
}

func (m *Model) load() tea.Cmd {
	return func() tea.Msg {
		return listLoadedMsg{err: m.browser.Refresh(m.ctx)}
	}
}

func (m *Model) selectRecord(id string) tea.Cmd {
	return func() tea.Msg {
		return detailLoadedMsg{err: m.browser.Select(m.ctx, id)}
	}
}

func (m *Model) compareRecords(a, b string) tea.Cmd {
	return func() tea.Msg {
		cmp, err := history.Compare(m.ctx, m.api, a, b)
		return comparedMsg{cmp: cmp, err: err}
	}
}

func (m *Model) Init() tea.Cmd {
	return m.load()
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.table.SetColumns(columns(msg.Width))
		if h := msg.Height - 16; h > 4 {
			m.table.SetHeight(h)
		}
		return m, nil

	case listLoadedMsg:
		m.table.SetRows(tableRows(m.browser.View().Rows))
		return m, nil

	case detailLoadedMsg:
		return m, nil

	case comparedMsg:
		m.mark = ""
		if msg.err != nil {
			m.err = apiclient.UserMessage(msg.err)
			return m, nil
		}
		m.compare = msg.cmp
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.browser.Close()
			return m, tea.Quit
		case "esc":
			switch {
			case m.compare != nil:
				m.compare = nil
			case m.browser.View().SelectedID != "":
				m.browser.CloseDetail()
			default:
				m.browser.Close()
				return m, tea.Quit
			}
			return m, nil
		case "r":
			m.err = ""
			return m, m.load()
		case "enter":
			if id := m.selectedID(); id != "" {
				m.compare = nil
				return m, m.selectRecord(id)
			}
			return m, nil
		case "c":
			id := m.selectedID()
			switch {
			case id == "":
			case m.mark == "":
				m.mark = id
			case m.mark == id:
				m.mark = ""
			default:
				return m, m.compareRecords(m.mark, id)
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *Model) selectedID() string {
	row := m.table.SelectedRow()
	if len(row) == 0 {
		return ""
	}
	return row[0]
}

func tableRows(rows []history.Row) []table.Row {
	out := make([]table.Row, 0, len(rows))
	for _, r := range rows {
		when := strings.TrimSpace(r.Day + " " + r.Time)
		types := make([]string, len(r.Types))
		for i, t := range r.Types {
			types[i] = report.Humanize(t)
		}
		typeCell := strings.Join(types, ", ")
		if r.More > 0 {
			typeCell += fmt.Sprintf(" +%d more", r.More)
		}
		title := r.Title
		if r.Location != "" {
			title += " (" + r.Location + ")"
		}
		out = append(out, table.Row{r.ID, title, when, fmt.Sprintf("%d%%", r.Percent), typeCell})
	}
	return out
}

func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("TruthInListings history"))
	b.WriteString("\n\n")

	v := m.browser.View()
	switch v.ListPhase {
	case viewstate.Idle, viewstate.Loading:
		b.WriteString(mutedStyle.Render("Loading history…"))
	case viewstate.Error:
		b.WriteString(errorStyle.Render(v.ListMessage))
		b.WriteString("\n" + mutedStyle.Render("r to retry, q to quit"))
		return b.String()
	case viewstate.Success:
		if len(v.Rows) == 0 {
			b.WriteString(mutedStyle.Render("No analyses have been saved yet."))
		} else {
			b.WriteString(m.table.View())
		}
	}

	if m.err != "" {
		b.WriteString("\n" + errorStyle.Render(m.err))
	}

	switch {
	case m.compare != nil:
		b.WriteString(paneStyle.Render(renderComparison(m.compare)))
	case v.SelectedID != "":
		b.WriteString(paneStyle.Render(renderDetail(v)))
	}

	help := "↑/↓ move • enter open • c mark/compare • r refresh • esc back • q quit"
	if m.mark != "" {
		help = fmt.Sprintf("comparing from %s: pick a second record and press c • ", m.mark) + help
	}
	b.WriteString("\n" + mutedStyle.Render(help))
	return b.String()
}

func renderDetail(v history.View) string {
	switch v.DetailPhase {
	case viewstate.Loading:
		return mutedStyle.Render("Loading analysis " + v.SelectedID + "…")
	case viewstate.Error:
		return errorStyle.Render(v.DetailMessage)
	case viewstate.Success:
	default:
		return ""
	}
	rec := v.Detail
	if rec == nil {
		return ""
	}
	rv := report.Render(apiclient.AnalysisResult{
		FraudProbability: rec.FraudProbability,
		FraudTypes:       rec.FraudTypes,
		Explanations:     rec.Explanations,
		ModuleScores:     rec.ModuleScores,
	}, apiclient.ListingInput{Title: rec.Title})

	tier := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(rv.Tier.Color))
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s\n", tier.Render(fmt.Sprintf("%s %d%%", rv.Tier.Label, rv.Percent)), rec.Title)
	if rec.Price != nil {
		fmt.Fprintf(&b, "Price %.0f\n", *rec.Price)
	}
	for _, bar := range rv.Bars {
		color := lipgloss.NewStyle().Foreground(lipgloss.Color(bar.Color))
		filled := int(bar.Value / 5)
		fmt.Fprintf(&b, "%-22s %s %s\n", bar.Label, color.Render(strings.Repeat("█", filled)), bar.Display())
	}
	if rv.Summary != "" {
		b.WriteString("\n" + rv.Summary + "\n")
	}
	for i, f := range rv.Findings {
		fmt.Fprintf(&b, "%d. %s\n", i+1, f)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderComparison(c *history.Comparison) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s → %s  (%+.1f pts)\n", c.A.Title, c.B.Title, c.Probability)
	for _, d := range c.Deltas {
		change := "n/a"
		if d.A != nil && d.B != nil {
			change = fmt.Sprintf("%+.1f", d.Change())
		}
		fmt.Fprintf(&b, "%-22s %8s %8s %8s\n", d.Label, score(d.A), score(d.B), change)
	}
	if len(c.Chunks) > 0 {
		b.WriteString("\n")
	}
	for _, ch := range c.Chunks {
		switch ch.Type {
		case "added":
			b.WriteString(addedStyle.Render("+ "+ch.Content) + "\n")
		case "removed":
			b.WriteString(removeStyle.Render("- "+ch.Content) + "\n")
		default:
			b.WriteString("  " + ch.Content + "\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func score(p *float64) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f%%", *p*100)
}

// Run starts the browser in the terminal and blocks until the user quits.
func Run(ctx context.Context, api history.API, logger logging.Logger) error {
	p := tea.NewProgram(New(ctx, api, logger), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
