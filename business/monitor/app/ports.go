// Package app contains the monitor service and its port definitions.
package app

import (
	"context"

	blockchainDomain "github.com/fd1az/swap-sentinel/business/blockchain/domain"
	"github.com/fd1az/swap-sentinel/business/monitor/domain"
	swapDomain "github.com/fd1az/swap-sentinel/business/swap/domain"
)

// BlockSource delivers new blocks and their transactions.
type BlockSource interface {
	SubscribeBlocks(ctx context.Context) (<-chan *blockchainDomain.Block, error)
	BlockTransactions(ctx context.Context, number uint64) ([]blockchainDomain.Transaction, error)
}

// SwapExecutor runs a swap through the safety pipeline.
type SwapExecutor interface {
	ExecuteParams(ctx context.Context, p swapDomain.SwapParams) swapDomain.ExecutionResult
}

// Match is a classified transaction and the rule it triggered, if any.
type Match struct {
	Classification domain.Classification
	Rule           *domain.ReactionRule
}

// Observer is told about processed blocks and matches. Calls must not block.
type Observer interface {
	BlockProcessed(ctx context.Context, block *blockchainDomain.Block, txCount int)
	Matched(ctx context.Context, m Match)
}
