// Package ui provides the Bubble Tea dashboard for the swap sentinel.
package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	swapDomain "github.com/fd1az/swap-sentinel/business/swap/domain"
	"github.com/fd1az/swap-sentinel/internal/asset"
	"github.com/fd1az/swap-sentinel/pkg/ui/components"
)

// ConnectionInfo holds connection state.
type ConnectionInfo struct {
	Connected bool
	State     string
	ViaHTTP   bool
	LastSeen  time.Time
}

// StartupStep represents a step in the startup process.
type StartupStep struct {
	Name   string
	Status string // "pending", "connecting", "connected", "done", "failed"
}

// Phase represents the current UI phase.
type Phase string

const (
	PhaseWelcome   Phase = "welcome"   // Initial welcome screen
	PhaseStartup   Phase = "startup"   // Loading/connecting
	PhaseDashboard Phase = "dashboard" // Main dashboard
)

// WelcomeDuration is how long the welcome screen shows before auto-advancing.
const WelcomeDuration = 2 * time.Second

// startupOrder lists the startup steps as main reports them.
var startupOrder = []string{"config", "ethereum", "pricing", "swap", "notify", "monitor"}

// ErrorEntry represents an error with timestamp.
type ErrorEntry struct {
	Message   string
	Timestamp time.Time
}

// GovernorControl is the emergency-stop switch behind the s and r keys.
type GovernorControl interface {
	EmergencyStop(ctx context.Context, reason string) bool
	ResumeTrading(ctx context.Context) bool
}

// Model is the main Bubble Tea model for the TUI.
type Model struct {
	// Components
	results  *components.ResultsComponent
	stats    *components.StatsComponent
	governor *components.GovernorComponent
	keys     KeyMap

	// Phase state
	phase        Phase
	welcomeStart time.Time

	// State
	ready           bool
	quitting        bool
	paused          bool // freezes the activity feed and results table
	width           int
	height          int
	currentBlock    uint64
	gasPrice        float64
	connectionState map[string]*ConnectionInfo
	lastUpdate      time.Time
	errors          []ErrorEntry // Persistent error panel (last 3)
	logs            []string     // Recent log messages

	// Startup state
	startupComplete bool
	startupSteps    map[string]*StartupStep
	startupTime     time.Time

	activityFeed []string
}

// New creates a new TUI model.
func New() Model {
	now := time.Now()
	return Model{
		results:      components.NewResultsComponent(50, 8),
		stats:        components.NewStatsComponent(),
		governor:     components.NewGovernorComponent(),
		keys:         DefaultKeyMap(),
		phase:        PhaseWelcome,
		welcomeStart: now,
		connectionState: map[string]*ConnectionInfo{
			"Ethereum": {Connected: false, State: "disconnected"},
		},
		logs:         make([]string, 0, 10),
		errors:       make([]ErrorEntry, 0, 3),
		activityFeed: make([]string, 0, 8),
		startupSteps: map[string]*StartupStep{
			"config":   {Name: "Loading configuration", Status: "pending"},
			"ethereum": {Name: "Connecting to Ethereum", Status: "pending"},
			"pricing":  {Name: "Starting price oracle", Status: "pending"},
			"swap":     {Name: "Arming swap pipeline", Status: "pending"},
			"notify":   {Name: "Starting notifications", Status: "pending"},
			"monitor":  {Name: "Starting transaction monitor", Status: "pending"},
		},
		startupTime: now,
	}
}

// Init initializes the TUI model.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// tickCmd returns a command that sends a tick every 100ms for smooth animations.
func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg{}
	})
}

func (m *Model) leaveWelcome() {
	m.phase = PhaseStartup
	m.startupTime = time.Now()
	// Trigger callback directly (don't use Send() from within Update)
	if OnStartModules != nil {
		go OnStartModules()
	}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		// Always allow quit
		if key.Matches(msg, m.keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
		// During welcome phase, any other key skips to startup
		if m.phase == PhaseWelcome {
			m.leaveWelcome()
			return m, tickCmd()
		}
		switch {
		case key.Matches(msg, m.keys.Stop):
			if Governor != nil {
				go Governor.EmergencyStop(context.Background(), "operator stop from dashboard")
			}
		case key.Matches(msg, m.keys.Resume):
			if Governor != nil {
				go Governor.ResumeTrading(context.Background())
			}
		case key.Matches(msg, m.keys.Clear):
			m.results.Clear()
			m.activityFeed = m.activityFeed[:0]
		case key.Matches(msg, m.keys.Pause):
			m.paused = !m.paused
		case key.Matches(msg, m.keys.Up):
			m.results.ScrollUp()
		case key.Matches(msg, m.keys.Down):
			m.results.ScrollDown()
		case key.Matches(msg, m.keys.ClearErrors):
			m.errors = make([]ErrorEntry, 0, 3)
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true

	case TickMsg:
		if m.phase == PhaseWelcome && time.Since(m.welcomeStart) >= WelcomeDuration {
			m.leaveWelcome()
		}
		return m, tickCmd()

	case SwapResultMsg:
		if !m.paused {
			m.results.Add(resultRow(msg.Result))
			m.activityFeed = addActivity(m.activityFeed, resultActivity(msg.Result))
		}
		m.lastUpdate = time.Now()

	case StatsMsg:
		m.stats.Update(statsRow(msg.Stats))
		m.lastUpdate = time.Now()

	case MatchMsg:
		m.stats.Matched()
		if !m.paused {
			m.activityFeed = addActivity(m.activityFeed, matchActivity(msg))
		}
		m.lastUpdate = time.Now()

	case GovernorMsg:
		m.governor.SetState(msg.Stopped, msg.Reason)
		if msg.Stopped {
			m.logs = addLog(m.logs, "warn", "emergency stop: "+msg.Reason)
		} else {
			m.logs = addLog(m.logs, "info", "trading resumed")
		}
		m.lastUpdate = time.Now()

	case LimitsMsg:
		m.governor.SetLimits(components.Limits{
			Signer:              msg.Signer,
			MaxSlippagePercent:  msg.MaxSlippagePercent,
			MaxTransactionValue: msg.MaxTransactionValue,
			MaxGasPriceGwei:     msg.MaxGasPriceGwei,
			DeadlineMinutes:     msg.DeadlineMinutes,
			RealTrading:         msg.RealTrading,
		})

	case ConnectionStatusMsg:
		m.connectionState[msg.Name] = &ConnectionInfo{
			Connected: msg.Connected,
			State:     msg.State,
			ViaHTTP:   msg.ViaHTTP,
			LastSeen:  time.Now(),
		}
		m.lastUpdate = time.Now()

		if step, ok := m.startupSteps[strings.ToLower(msg.Name)]; ok {
			if msg.Connected {
				step.Status = "connected"
			} else if step.Status != "connected" {
				step.Status = "connecting"
			}
		}

	case BlockMsg:
		m.currentBlock = msg.Number
		m.stats.BlockSeen()
		m.lastUpdate = time.Now()
		if !m.paused {
			m.activityFeed = addActivity(m.activityFeed, fmt.Sprintf("Block #%d (%d txs)", msg.Number, msg.TxCount))
		}

	case GasPriceMsg:
		m.gasPrice = msg.GweiPrice
		m.lastUpdate = time.Now()

	case ErrorMsg:
		m.logs = addLog(m.logs, "error", msg.Error.Error())
		m.errors = append(m.errors, ErrorEntry{
			Message:   msg.Error.Error(),
			Timestamp: time.Now(),
		})
		if len(m.errors) > 3 {
			m.errors = m.errors[len(m.errors)-3:]
		}

	case LogMsg:
		m.logs = addLog(m.logs, msg.Level, msg.Message)

	case StartupMsg:
		if step, ok := m.startupSteps[msg.Step]; ok {
			step.Status = msg.Status
		}
		m.startupComplete = true
		for _, step := range m.startupSteps {
			if step.Status != "connected" && step.Status != "done" {
				m.startupComplete = false
				break
			}
		}
	}

	return m, nil
}

func resultRow(res swapDomain.ExecutionResult) components.ResultRow {
	row := components.ResultRow{
		Time:    res.CompletedAt.Format("15:04:05"),
		Swap:    fmt.Sprintf("%s %s→%s", res.Request.AmountIn, shortAsset(res.Request.AssetIn), shortAsset(res.Request.AssetOut)),
		Success: res.Success,
		DryRun:  res.DryRun,
	}
	switch {
	case res.Success && res.DryRun:
		row.Outcome = "dry run ok"
	case res.Success:
		row.Outcome = "executed"
	case res.Broadcast:
		row.Outcome = "failed on-chain"
	default:
		row.Outcome = "rejected: " + string(res.Stage)
	}
	switch {
	case res.TxHash != nil:
		row.Detail = res.TxHash.Hex()
	case res.Err != nil:
		row.Detail = string(res.Category())
	}
	return row
}

func resultActivity(res swapDomain.ExecutionResult) string {
	r := resultRow(res)
	return fmt.Sprintf("Swap %s: %s", r.Swap, r.Outcome)
}

func matchActivity(msg MatchMsg) string {
	what := msg.Kind
	if msg.Token != "" {
		what += " " + msg.Token
	}
	line := fmt.Sprintf("Match %s %s %s", what, msg.Direction, shortHash(msg.TxHash))
	if msg.Reaction {
		line += " → swap"
	}
	return line
}

func statsRow(st swapDomain.Statistics) components.Stats {
	row := components.Stats{
		Requested:       st.TotalRequested,
		Executed:        st.TotalExecuted,
		Failed:          st.TotalFailed,
		BroadcastFailed: st.TotalBroadcastFailed,
		DryRuns:         st.TotalDryRuns,
		GasUsed:         st.TotalGasUsed,
		LastSwap:        st.LastSwapTime,
		Volume:          make(map[string]string, len(st.TotalVolume)),
	}
	if st.TotalFeesWei != nil {
		row.FeesETH = asset.FormatUnits(st.TotalFeesWei, 18).StringFixed(6)
	}
	for ref, raw := range st.TotalVolume {
		if ref == swapDomain.Native().String() {
			row.Volume["ETH"] = asset.FormatUnits(raw, 18).StringFixed(4)
			continue
		}
		row.Volume[ref] = raw.String() + " (raw)"
	}
	return row
}

func shortAsset(ref swapDomain.AssetRef) string {
	if ref.IsNative() {
		return "ETH"
	}
	return shortHash(ref.String())
}

func shortHash(h string) string {
	if len(h) <= 10 {
		return h
	}
	return h[:6] + "…" + h[len(h)-4:]
}

// addLog adds a log message and returns the updated slice (keeps last 5).
func addLog(logs []string, level, message string) []string {
	timestamp := time.Now().Format("15:04:05")
	logLine := fmt.Sprintf("[%s] %s: %s", timestamp, level, message)
	logs = append(logs, logLine)
	if len(logs) > 5 {
		logs = logs[len(logs)-5:]
	}
	return logs
}

// addActivity adds an activity message and returns the updated slice (keeps last 8).
func addActivity(feed []string, message string) []string {
	timestamp := time.Now().Format("15:04:05")
	line := fmt.Sprintf("[%s] %s", timestamp, message)
	feed = append(feed, line)
	if len(feed) > 8 {
		feed = feed[len(feed)-8:]
	}
	return feed
}

func joinBullets(parts []string) string {
	return strings.Join(parts, " • ")
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return "\n  Goodbye!\n\n"
	}

	switch m.phase {
	case PhaseWelcome:
		return m.renderWelcomeScreen()
	case PhaseStartup:
		if m.currentBlock == 0 && !m.startupComplete {
			return m.renderStartupScreen()
		}
	}

	var b strings.Builder

	banner := BannerStyle
	if m.governor.Stopped() {
		banner = HaltedBannerStyle
	}
	b.WriteString(banner.Render(" Swap Sentinel "))
	b.WriteString("\n\n")

	b.WriteString(m.renderStatusBar())
	b.WriteString("\n\n")

	// Left: governor and stats. Right: activity and results.
	leftCol := m.governor.View() + "\n\n" + m.stats.View()
	rightCol := m.renderActivityFeed() + "\n\n" + m.results.View()

	width := m.width
	if width == 0 {
		width = 120
	}
	if width > 110 {
		left := panel(m.governor.Stopped()).Width(width*2/5 - 2).Render(leftCol)
		right := panel(m.governor.Stopped()).Width(width*3/5 - 2).Render(rightCol)
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, right))
	} else {
		b.WriteString(panel(m.governor.Stopped()).Width(width - 4).Render(leftCol))
		b.WriteString("\n")
		b.WriteString(panel(m.governor.Stopped()).Width(width - 4).Render(rightCol))
	}

	b.WriteString("\n\n")

	if len(m.errors) > 0 {
		errorStyle := lipgloss.NewStyle().Foreground(ColorDanger)
		errorHeader := lipgloss.NewStyle().Bold(true).Foreground(ColorDanger)

		b.WriteString(errorHeader.Render("ERRORS"))
		b.WriteString(DimStyle.Render(" (e: clear)"))
		b.WriteString("\n")
		for _, err := range m.errors {
			ago := time.Since(err.Timestamp).Round(time.Second)
			b.WriteString(errorStyle.Render(fmt.Sprintf("  • %s ", err.Message)))
			b.WriteString(DimStyle.Render(fmt.Sprintf("(%s ago)", ago)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if len(m.logs) > 0 {
		for _, l := range m.logs {
			b.WriteString(DimStyle.Render("  " + l))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if m.paused {
		pauseStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorWarning)
		b.WriteString(pauseStyle.Render("⏸ PAUSED"))
		b.WriteString(" • ")
	}
	b.WriteString(HelpStyle.Render(m.keys.HelpLine()))

	return b.String()
}

// renderActivityFeed renders the recent activity feed.
func (m Model) renderActivityFeed() string {
	var sb strings.Builder
	sb.WriteString(SectionStyle.Render("LIVE ACTIVITY"))
	sb.WriteString("\n\n")

	if len(m.activityFeed) == 0 {
		sb.WriteString(DimStyle.Render("  Waiting for blocks..."))
		return sb.String()
	}
	for _, activity := range m.activityFeed {
		switch {
		case strings.Contains(activity, "Block #"):
			sb.WriteString(BlockLineStyle.Render("  " + activity))
		case strings.Contains(activity, "Match "):
			sb.WriteString(MatchLineStyle.Render("  " + activity))
		default:
			sb.WriteString(DimStyle.Render("  " + activity))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// renderWelcomeScreen renders the animated welcome screen.
func (m Model) renderWelcomeScreen() string {
	titleStyle := SectionStyle
	goldStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorWarning)
	greenStyle := lipgloss.NewStyle().Foreground(ColorOK)

	elapsed := time.Since(m.welcomeStart)
	dots := strings.Repeat(".", int(elapsed.Milliseconds()/300)%4)

	var sb strings.Builder
	sb.WriteString("\n\n\n\n")

	logo := `
   ███████╗██╗    ██╗ █████╗ ██████╗
   ██╔════╝██║    ██║██╔══██╗██╔══██╗
   ███████╗██║ █╗ ██║███████║██████╔╝
   ╚════██║██║███╗██║██╔══██║██╔═══╝
   ███████║╚███╔███╔╝██║  ██║██║
   ╚══════╝ ╚══╝╚══╝ ╚═╝  ╚═╝╚═╝
`
	sb.WriteString(titleStyle.Render(logo))
	sb.WriteString("\n")
	sb.WriteString(DimStyle.Render("          S W A P   S E N T I N E L"))
	sb.WriteString("\n\n\n")
	sb.WriteString(goldStyle.Render("       validate • simulate • then sign"))
	sb.WriteString("\n\n\n")
	sb.WriteString(greenStyle.Render(fmt.Sprintf("             Initializing%s", dots)))
	sb.WriteString("\n\n")
	sb.WriteString(DimStyle.Render("       Press any key to skip, or wait..."))
	sb.WriteString("\n")

	return sb.String()
}

// renderStartupScreen renders the loading/startup screen.
func (m Model) renderStartupScreen() string {
	titleStyle := SectionStyle.MarginBottom(1)
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorText)
	successStyle := lipgloss.NewStyle().Foreground(ColorOK)
	connectingStyle := lipgloss.NewStyle().Foreground(ColorWarning)
	failedStyle := lipgloss.NewStyle().Foreground(ColorDanger)

	var sb strings.Builder

	sb.WriteString("\n\n")
	sb.WriteString(titleStyle.Render("  Swap Sentinel"))
	sb.WriteString("\n\n")
	sb.WriteString(headerStyle.Render("  Starting up..."))
	sb.WriteString("\n\n")

	for _, k := range startupOrder {
		step, ok := m.startupSteps[k]
		if !ok {
			continue
		}

		var icon, statusText string
		var style lipgloss.Style

		switch step.Status {
		case "connected", "done":
			icon, statusText, style = "✓", "Ready", successStyle
		case "connecting":
			spinners := []string{"◐", "◓", "◑", "◒"}
			idx := int(time.Since(m.startupTime).Milliseconds()/200) % len(spinners)
			icon, statusText, style = spinners[idx], "Connecting...", connectingStyle
		case "failed":
			icon, statusText, style = "✗", "Failed", failedStyle
		default:
			icon, statusText, style = "○", "Pending", DimStyle
		}

		sb.WriteString(fmt.Sprintf("  %s %s %s\n",
			style.Render(icon),
			DimStyle.Render(step.Name),
			style.Render(statusText),
		))
	}

	sb.WriteString("\n")
	elapsed := time.Since(m.startupTime).Round(time.Second)
	sb.WriteString(DimStyle.Render(fmt.Sprintf("  Elapsed: %s", elapsed)))
	sb.WriteString("\n\n")

	for _, e := range m.errors {
		sb.WriteString(failedStyle.Render("  " + e.Message))
		sb.WriteString("\n")
	}

	return sb.String()
}

func (m Model) renderStatusBar() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("Block: #%d", m.currentBlock))

	if m.gasPrice > 0 {
		parts = append(parts, fmt.Sprintf("Gas: %.1f gwei", m.gasPrice))
	}

	for name, info := range m.connectionState {
		if info != nil && info.ViaHTTP {
			parts = append(parts, RetryStyle.Render(fmt.Sprintf("◐ %s (polling)", name)))
			continue
		}
		if info != nil && info.Connected {
			parts = append(parts, OnlineStyle.Render("● "+name))
			continue
		}
		state := "disconnected"
		if info != nil && info.State != "" {
			state = info.State
		}
		style := OfflineStyle
		if state == "reconnecting" || state == "connecting" {
			style = RetryStyle
		}
		parts = append(parts, style.Render(fmt.Sprintf("○ %s (%s)", name, state)))
	}

	if m.governor.Stopped() {
		parts = append(parts, OfflineStyle.Render("■ STOPPED"))
	} else {
		parts = append(parts, OnlineStyle.Render("▶ trading"))
	}

	if !m.lastUpdate.IsZero() {
		ago := time.Since(m.lastUpdate).Round(time.Second)
		parts = append(parts, DimStyle.Render(fmt.Sprintf("Updated: %s ago", ago)))
	}

	return strings.Join(parts, "  │  ")
}

// Program holds the Bubble Tea program instance for external access.
var Program *tea.Program

// OnStartModules is called when the welcome screen completes and modules should start.
// This is set by main.go to signal when to begin loading modules.
var OnStartModules func()

// Governor is set by main.go before the program runs.
var Governor GovernorControl

// Send sends a message to the running program. It blocks until the
// program receives it, so callers on hot paths send from a goroutine.
func Send(msg tea.Msg) {
	if Program != nil {
		Program.Send(msg)
	}
}
