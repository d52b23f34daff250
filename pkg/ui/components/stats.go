package components

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Stats holds statistics for display.
type Stats struct {
	Requested       uint64
	Executed        uint64
	Failed          uint64
	BroadcastFailed uint64
	DryRuns         uint64
	GasUsed         uint64
	FeesETH         string
	Volume          map[string]string // asset -> formatted amount
	LastSwap        time.Time

	// From the monitor.
	BlocksSeen uint64
	Matches    uint64
}

// StatsComponent renders statistics.
type StatsComponent struct {
	stats Stats
}

// NewStatsComponent creates a new stats component.
func NewStatsComponent() *StatsComponent {
	return &StatsComponent{}
}

// Update replaces the pipeline counters, keeping the monitor ones.
func (s *StatsComponent) Update(stats Stats) {
	stats.BlocksSeen, stats.Matches = s.stats.BlocksSeen, s.stats.Matches
	s.stats = stats
}

func (s *StatsComponent) BlockSeen() { s.stats.BlocksSeen++ }
func (s *StatsComponent) Matched()   { s.stats.Matches++ }

func (s *StatsComponent) Stats() Stats { return s.stats }

// View renders the stats component.
func (s *StatsComponent) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Bold(true)
	errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)

	st := s.stats
	num := func(v uint64) string { return valueStyle.Render(fmt.Sprintf("%d", v)) }

	failed := num(st.Failed)
	if st.Failed > 0 {
		failed = errorStyle.Render(fmt.Sprintf("%d", st.Failed))
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render("STATISTICS"))
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("  Requested: %s  │  Executed: %s  │  Failed: %s (%s after broadcast)\n",
		num(st.Requested), num(st.Executed), failed, num(st.BroadcastFailed)))
	b.WriteString(fmt.Sprintf("  Dry runs:  %s  │  Gas used: %s  │  Fees: %s ETH\n",
		num(st.DryRuns), num(st.GasUsed), valueStyle.Render(orDash(st.FeesETH))))
	b.WriteString(fmt.Sprintf("  Blocks:    %s  │  Matches:  %s\n", num(st.BlocksSeen), num(st.Matches)))

	if len(st.Volume) > 0 {
		assets := make([]string, 0, len(st.Volume))
		for a := range st.Volume {
			assets = append(assets, a)
		}
		sort.Strings(assets)
		b.WriteString(style.Render("  Volume:"))
		b.WriteString("\n")
		for _, a := range assets {
			b.WriteString(fmt.Sprintf("    %-44s %s\n", a, valueStyle.Render(st.Volume[a])))
		}
	}

	if !st.LastSwap.IsZero() {
		b.WriteString(style.Render(fmt.Sprintf("  Last swap: %s ago", time.Since(st.LastSwap).Round(time.Second))))
	}
	return b.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
