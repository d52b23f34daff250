// Package domain contains the core domain types for the blockchain context.
package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Block represents an Ethereum block header.
type Block struct {
	Number     uint64
	Hash       common.Hash
	ParentHash common.Hash
	Timestamp  time.Time
	GasLimit   uint64
	GasUsed    uint64
	BaseFee    *big.Int
	TxCount    int
}

// Transaction is a mined transaction with its sender recovered.
// To is nil for contract creation.
type Transaction struct {
	Hash        common.Hash
	From        common.Address
	To          *common.Address
	Value       *big.Int
	Data        []byte
	BlockNumber uint64
}

// HasCalldata reports whether the transaction carries input data.
func (t Transaction) HasCalldata() bool { return len(t.Data) > 0 }

// Touches reports whether addr is the sender or the recipient.
func (t Transaction) Touches(addr common.Address) bool {
	return t.From == addr || (t.To != nil && *t.To == addr)
}

// ConnectionState is the head subscription's transport state.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateReconnecting ConnectionState = "reconnecting"
)

// ConnectionStatus is a snapshot of the head subscription.
type ConnectionStatus struct {
	State      ConnectionState
	Head       uint64 // newest block emitted, 0 before the first
	Reconnects int
	// ViaHTTP is set while heads come from polling instead of the stream.
	ViaHTTP bool
}
