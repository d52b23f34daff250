// Package infra contains infrastructure adapters for the monitor context.
package infra

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	blockchainDomain "github.com/fd1az/swap-sentinel/business/blockchain/domain"
	"github.com/fd1az/swap-sentinel/business/monitor/app"
	"github.com/fd1az/swap-sentinel/pkg/ui"
)

var _ app.Observer = (*TUIObserver)(nil)

// TUIObserver feeds blocks and matches to the dashboard activity feed.
type TUIObserver struct {
	send func(tea.Msg)
}

func NewTUIObserver() *TUIObserver {
	return &TUIObserver{send: ui.Send}
}

func (o *TUIObserver) BlockProcessed(_ context.Context, b *blockchainDomain.Block, txCount int) {
	msg := ui.BlockMsg{Number: b.Number, Timestamp: b.Timestamp, TxCount: txCount}
	go o.send(msg)
}

func (o *TUIObserver) Matched(_ context.Context, m app.Match) {
	c := m.Classification
	msg := ui.MatchMsg{
		TxHash:    c.Tx.Hash.Hex(),
		Block:     c.Tx.BlockNumber,
		Kind:      string(c.Kind),
		Direction: string(c.Direction),
		Reaction:  m.Rule != nil,
	}
	if c.Token != nil {
		msg.Token = c.Token.Symbol
	}
	go o.send(msg)
}
