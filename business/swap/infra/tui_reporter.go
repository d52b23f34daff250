package infra

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/fd1az/swap-sentinel/business/swap/app"
	"github.com/fd1az/swap-sentinel/business/swap/domain"
	"github.com/fd1az/swap-sentinel/pkg/ui"
)

var _ app.ResultSink = (*TUIReporter)(nil)

// TUIReporter forwards results and fresh statistics to the Bubble Tea
// program.
type TUIReporter struct {
	send  func(tea.Msg)
	stats func() domain.Statistics
}

// NewTUIReporter sends through ui.Send. stats may be nil.
func NewTUIReporter(stats func() domain.Statistics) *TUIReporter {
	return &TUIReporter{send: ui.Send, stats: stats}
}

// Publish hands off to a goroutine since Program.Send blocks until the
// model reads the message.
func (r *TUIReporter) Publish(_ context.Context, res domain.ExecutionResult) {
	msgs := []tea.Msg{ui.SwapResultMsg{Result: res}}
	if r.stats != nil {
		msgs = append(msgs, ui.StatsMsg{Stats: r.stats()})
	}
	go func() {
		for _, m := range msgs {
			r.send(m)
		}
	}()
}
