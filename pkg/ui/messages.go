package ui

import (
	"time"

	swapDomain "github.com/fd1az/swap-sentinel/business/swap/domain"
)

// Message types for TUI updates

// SwapResultMsg carries every terminal pipeline result.
type SwapResultMsg struct {
	Result swapDomain.ExecutionResult
}

// StatsMsg is a statistics snapshot taken after a result.
type StatsMsg struct {
	Stats swapDomain.Statistics
}

// MatchMsg is sent when the monitor matches a watched transaction.
type MatchMsg struct {
	TxHash    string
	Block     uint64
	Kind      string
	Direction string
	Token     string
	Reaction  bool // a reaction rule fired
}

// GovernorMsg is sent on every emergency-stop transition.
type GovernorMsg struct {
	Stopped bool
	Reason  string
}

// LimitsMsg describes the active risk limits. Sent once at startup.
type LimitsMsg struct {
	Signer              string
	MaxSlippagePercent  float64
	MaxTransactionValue string
	MaxGasPriceGwei     float64
	DeadlineMinutes     int
	RealTrading         bool
}

// ConnectionStatusMsg reports a node connection on every status tick.
type ConnectionStatusMsg struct {
	Name      string
	Connected bool
	State     string
	ViaHTTP   bool // heads are polled, the stream is down
}

// BlockMsg is sent when the monitor finishes a block.
type BlockMsg struct {
	Number    uint64
	Timestamp time.Time
	TxCount   int
}

// GasPriceMsg is sent when gas price is updated.
type GasPriceMsg struct {
	GweiPrice float64
}

// ErrorMsg is sent when an error occurs.
type ErrorMsg struct {
	Error error
}

// TickMsg is sent periodically for UI updates.
type TickMsg struct{}

// StartModulesMsg signals that modules should start loading.
type StartModulesMsg struct{}

// LogMsg is sent to display a log message in the UI.
type LogMsg struct {
	Level   string // "info", "warn", "error"
	Message string
}

// StartupMsg is sent during application startup to show progress.
type StartupMsg struct {
	Step    string // Current step name
	Status  string // "connecting", "connected", "failed"
	Message string // Optional message
}
