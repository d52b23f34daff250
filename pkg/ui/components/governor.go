package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Limits are the risk limits as configured.
type Limits struct {
	Signer              string
	MaxSlippagePercent  float64
	MaxTransactionValue string
	MaxGasPriceGwei     float64
	DeadlineMinutes     int
	RealTrading         bool
}

// GovernorComponent renders the emergency-stop state and the limits it
// enforces.
type GovernorComponent struct {
	limits  *Limits
	stopped bool
	reason  string
}

func NewGovernorComponent() *GovernorComponent {
	return &GovernorComponent{}
}

func (g *GovernorComponent) SetLimits(l Limits) { g.limits = &l }

func (g *GovernorComponent) SetState(stopped bool, reason string) {
	g.stopped = stopped
	g.reason = reason
}

func (g *GovernorComponent) Stopped() bool { return g.stopped }

// View renders the governor component.
func (g *GovernorComponent) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	activeStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#10B981"))
	stoppedStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#EF4444")).Padding(0, 1)
	warnStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F59E0B"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))

	var b strings.Builder
	b.WriteString(headerStyle.Render("RISK GOVERNOR"))
	b.WriteString("\n\n")

	if g.stopped {
		b.WriteString("  " + stoppedStyle.Render("EMERGENCY STOP"))
		if g.reason != "" {
			b.WriteString(dimStyle.Render("  " + g.reason))
		}
	} else {
		b.WriteString("  " + activeStyle.Render("● ACTIVE"))
	}
	b.WriteString("\n\n")

	if g.limits == nil {
		b.WriteString(dimStyle.Render("  Waiting for limits..."))
		return b.String()
	}
	l := g.limits

	signer := l.Signer
	if signer == "" {
		signer = warnStyle.Render("not configured")
	}
	mode := dimStyle.Render("dry run only")
	if l.RealTrading {
		mode = warnStyle.Render("REAL TRADING")
	}

	b.WriteString(fmt.Sprintf("  Signer:        %s\n", signer))
	b.WriteString(fmt.Sprintf("  Mode:          %s\n", mode))
	b.WriteString(dimStyle.Render("  "+strings.Repeat("─", 40)) + "\n")
	b.WriteString(fmt.Sprintf("  Max slippage:  %.2f%%\n", l.MaxSlippagePercent))
	b.WriteString(fmt.Sprintf("  Max value:     %s ETH\n", l.MaxTransactionValue))
	b.WriteString(fmt.Sprintf("  Max gas price: %.1f gwei\n", l.MaxGasPriceGwei))
	b.WriteString(fmt.Sprintf("  Deadline:      %d min\n", l.DeadlineMinutes))
	return b.String()
}
