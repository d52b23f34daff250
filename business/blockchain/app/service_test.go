package app

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/fd1az/swap-sentinel/business/blockchain/domain"
)

type stubHeads struct {
	status  domain.ConnectionStatus
	latest  *domain.Block
	asked   int
	headErr error
}

func (s *stubHeads) Subscribe(context.Context) (<-chan *domain.Block, error) { return nil, nil }

func (s *stubHeads) LatestBlock(context.Context) (*domain.Block, error) {
	s.asked++
	return s.latest, s.headErr
}

func (s *stubHeads) Status() domain.ConnectionStatus { return s.status }

type stubGas struct {
	wei *big.Int
	err error
}

func (g stubGas) GetGasPrice(context.Context) (*domain.GasPrice, error) {
	if g.err != nil {
		return nil, g.err
	}
	return domain.NewGasPrice(g.wei), nil
}

func TestStatus_UsesStreamedHead(t *testing.T) {
	heads := &stubHeads{status: domain.ConnectionStatus{State: domain.StateConnected, Head: 100}}
	svc := NewBlockchainService(heads, stubGas{wei: big.NewInt(30_000_000_000)}, nil)

	st := svc.Status(context.Background())
	if st.Head != 100 || heads.asked != 0 {
		t.Errorf("head = %d, node asked %d times", st.Head, heads.asked)
	}
	if st.GasGwei != 30 {
		t.Errorf("gas = %v gwei, want 30", st.GasGwei)
	}
}

func TestStatus_AsksNodeBeforeFirstHead(t *testing.T) {
	heads := &stubHeads{
		status: domain.ConnectionStatus{State: domain.StateDisconnected},
		latest: &domain.Block{Number: 42},
	}
	svc := NewBlockchainService(heads, stubGas{err: errors.New("rpc down")}, nil)

	st := svc.Status(context.Background())
	if st.Head != 42 || heads.asked != 1 {
		t.Errorf("head = %d, node asked %d times", st.Head, heads.asked)
	}
	if st.GasGwei != 0 {
		t.Errorf("gas = %v, want 0 on oracle failure", st.GasGwei)
	}
	if svc.ConnectionState() != domain.StateDisconnected {
		t.Errorf("state = %s", svc.ConnectionState())
	}
}
