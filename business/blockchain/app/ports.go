// Package app holds the blockchain context's services and the ports its
// infrastructure implements.
package app

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/swap-sentinel/business/blockchain/domain"
)

// HeadSource streams canonical block headers.
type HeadSource interface {
	// Subscribe starts the stream. The channel closes when the source does.
	Subscribe(ctx context.Context) (<-chan *domain.Block, error)
	// LatestBlock asks the node directly, bypassing the stream.
	LatestBlock(ctx context.Context) (*domain.Block, error)
	Status() domain.ConnectionStatus
}

type GasOracle interface {
	GetGasPrice(ctx context.Context) (*domain.GasPrice, error)
}

// BlockReader returns the transactions of a mined block.
type BlockReader interface {
	BlockTransactions(ctx context.Context, number uint64) ([]domain.Transaction, error)
}

// NonceSource reports the account nonce including pending transactions.
type NonceSource interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
}
