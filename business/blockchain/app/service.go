package app

import (
	"context"

	"github.com/fd1az/swap-sentinel/business/blockchain/domain"
)

// ChainStatus is what dashboards and health checks show about the node.
type ChainStatus struct {
	domain.ConnectionStatus
	GasGwei float64 // 0 when the oracle could not answer
}

// BlockchainService is the read side of the chain other modules use.
type BlockchainService struct {
	heads  HeadSource
	gas    GasOracle
	blocks BlockReader
}

func NewBlockchainService(heads HeadSource, gas GasOracle, blocks BlockReader) *BlockchainService {
	return &BlockchainService{heads: heads, gas: gas, blocks: blocks}
}

func (s *BlockchainService) SubscribeBlocks(ctx context.Context) (<-chan *domain.Block, error) {
	return s.heads.Subscribe(ctx)
}

func (s *BlockchainService) BlockTransactions(ctx context.Context, number uint64) ([]domain.Transaction, error) {
	return s.blocks.BlockTransactions(ctx, number)
}

// ConnectionState is cheap and never touches the network.
func (s *BlockchainService) ConnectionState() domain.ConnectionState {
	return s.heads.Status().State
}

// Status snapshots the subscription and the gas price. Before the first
// header arrives the head is read from the node.
func (s *BlockchainService) Status(ctx context.Context) ChainStatus {
	st := ChainStatus{ConnectionStatus: s.heads.Status()}
	if st.Head == 0 {
		if b, err := s.heads.LatestBlock(ctx); err == nil {
			st.Head = b.Number
		}
	}
	if p, err := s.gas.GetGasPrice(ctx); err == nil {
		st.GasGwei = p.Gwei()
	}
	return st
}
