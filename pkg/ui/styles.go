package ui

import "github.com/charmbracelet/lipgloss"

// Palette shared by the dashboard chrome. The components package keeps its
// own copies of these hex values since it cannot import ui.
var (
	ColorAccent  = lipgloss.Color("#7C3AED")
	ColorOK      = lipgloss.Color("#10B981")
	ColorDanger  = lipgloss.Color("#EF4444")
	ColorWarning = lipgloss.Color("#F59E0B")
	ColorChain   = lipgloss.Color("#60A5FA")
	ColorDim     = lipgloss.Color("#6B7280")
	ColorEdge    = lipgloss.Color("#374151")
	ColorText    = lipgloss.Color("#FFFFFF")
)

var (
	PanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorEdge).
			Padding(0, 1)

	// HaltedPanelStyle frames the panels while the governor is stopped.
	HaltedPanelStyle = PanelStyle.BorderForeground(ColorDanger)

	BannerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorText).
			Background(ColorAccent).
			Padding(0, 2)

	HaltedBannerStyle = BannerStyle.Background(ColorDanger)

	SectionStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)

	OnlineStyle  = lipgloss.NewStyle().Foreground(ColorOK).Bold(true)
	OfflineStyle = lipgloss.NewStyle().Foreground(ColorDanger).Bold(true)
	RetryStyle   = lipgloss.NewStyle().Foreground(ColorWarning).Bold(true)

	// Activity feed lines.
	BlockLineStyle = lipgloss.NewStyle().Foreground(ColorChain)
	MatchLineStyle = lipgloss.NewStyle().Foreground(ColorWarning)

	DimStyle  = lipgloss.NewStyle().Foreground(ColorDim)
	HelpStyle = DimStyle.Padding(0, 1)
)

// panel picks the frame for the main columns.
func panel(halted bool) lipgloss.Style {
	if halted {
		return HaltedPanelStyle
	}
	return PanelStyle
}
