package ethereum

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fd1az/swap-sentinel/internal/apperror"
)

type slowSuggester struct {
	calls   atomic.Int32
	release chan struct{}
	price   *big.Int
	err     error
}

func (s *slowSuggester) SuggestGasPrice(context.Context) (*big.Int, error) {
	s.calls.Add(1)
	if s.release != nil {
		<-s.release
	}
	return s.price, s.err
}

func TestGasOracle_CoalescesAndCaches(t *testing.T) {
	sugg := &slowSuggester{release: make(chan struct{}), price: big.NewInt(25_000_000_000)}
	g, err := NewGasOracle(sugg, GasOracleConfig{CacheTTL: time.Minute}, &mockLogger{})
	if err != nil {
		t.Fatal(err)
	}
	defer g.Close()

	const callers = 10
	var wg sync.WaitGroup
	gwei := make([]float64, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := g.GetGasPrice(context.Background())
			if err != nil {
				t.Errorf("GetGasPrice: %v", err)
				return
			}
			gwei[i] = p.Gwei()
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(sugg.release)
	wg.Wait()

	if n := sugg.calls.Load(); n != 1 {
		t.Errorf("rpc calls = %d, want 1", n)
	}
	for i, v := range gwei {
		if v != 25 {
			t.Errorf("caller %d got %v gwei", i, v)
		}
	}

	if _, err := g.GetGasPrice(context.Background()); err != nil {
		t.Fatal(err)
	}
	if n := sugg.calls.Load(); n != 1 {
		t.Errorf("cached lookup hit the node, calls = %d", n)
	}
}

func TestGasOracle_FailureIsNotCached(t *testing.T) {
	sugg := &slowSuggester{err: errors.New("node down")}
	g, _ := NewGasOracle(sugg, DefaultGasOracleConfig(), &mockLogger{})
	defer g.Close()

	_, err := g.GetGasPrice(context.Background())
	if !apperror.HasCode(err, apperror.CodeEthereumRPCError) {
		t.Fatalf("err = %v", err)
	}

	sugg.err, sugg.price = nil, big.NewInt(1_000_000_000)
	p, err := g.GetGasPrice(context.Background())
	if err != nil || p.Gwei() != 1 {
		t.Fatalf("after recovery: %v, %v", p, err)
	}
	if sugg.calls.Load() != 2 {
		t.Errorf("calls = %d", sugg.calls.Load())
	}
}
