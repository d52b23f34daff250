// Package components provides reusable TUI components.
package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ResultRow is one pipeline result, already formatted.
type ResultRow struct {
	Time    string
	Swap    string
	Outcome string
	Detail  string // tx hash or error category
	Success bool
	DryRun  bool
}

// ResultsComponent renders the most recent results, newest first.
type ResultsComponent struct {
	rows    []ResultRow
	maxRows int
	offset  int
	visible int
}

// NewResultsComponent keeps up to maxRows and shows visible of them.
func NewResultsComponent(maxRows, visible int) *ResultsComponent {
	return &ResultsComponent{
		rows:    make([]ResultRow, 0),
		maxRows: maxRows,
		visible: visible,
	}
}

// Add prepends a result.
func (r *ResultsComponent) Add(row ResultRow) {
	r.rows = append([]ResultRow{row}, r.rows...)
	if len(r.rows) > r.maxRows {
		r.rows = r.rows[:r.maxRows]
	}
	r.offset = 0
}

// Clear clears all results.
func (r *ResultsComponent) Clear() {
	r.rows = make([]ResultRow, 0)
	r.offset = 0
}

func (r *ResultsComponent) Len() int { return len(r.rows) }

func (r *ResultsComponent) ScrollUp() {
	if r.offset > 0 {
		r.offset--
	}
}

func (r *ResultsComponent) ScrollDown() {
	if r.offset+r.visible < len(r.rows) {
		r.offset++
	}
}

// View renders the results component.
func (r *ResultsComponent) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	okStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	dryStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#60A5FA"))
	failStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))

	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("RECENT SWAPS (%d)", len(r.rows))))
	b.WriteString("\n\n")

	if len(r.rows) == 0 {
		b.WriteString(dimStyle.Render("  No swap requests yet..."))
		return b.String()
	}

	b.WriteString(fmt.Sprintf("  %-8s  %-26s  %-22s  %s\n", "Time", "Swap", "Outcome", "Detail"))
	b.WriteString(dimStyle.Render("  "+strings.Repeat("─", 76)) + "\n")

	end := r.offset + r.visible
	if end > len(r.rows) {
		end = len(r.rows)
	}
	for _, row := range r.rows[r.offset:end] {
		style, icon := failStyle, "✗"
		switch {
		case row.Success && row.DryRun:
			style, icon = dryStyle, "○"
		case row.Success:
			style, icon = okStyle, "✓"
		}
		b.WriteString(fmt.Sprintf("  %-8s  %-26s  %s  %s\n",
			row.Time,
			truncate(row.Swap, 26),
			style.Render(fmt.Sprintf("%s %-20s", icon, truncate(row.Outcome, 20))),
			dimStyle.Render(truncate(row.Detail, 24)),
		))
	}
	if len(r.rows) > r.visible {
		b.WriteString(dimStyle.Render(fmt.Sprintf("  showing %d-%d of %d", r.offset+1, end, len(r.rows))))
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
