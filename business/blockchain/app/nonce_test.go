package app

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/swap-sentinel/internal/apperror"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Info(ctx context.Context, msg string, args ...any)               {}
func (m *mockLogger) Warn(ctx context.Context, msg string, args ...any)               {}
func (m *mockLogger) Error(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Debugc(ctx context.Context, caller int, msg string, args ...any) {}
func (m *mockLogger) Infoc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Warnc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Errorc(ctx context.Context, caller int, msg string, args ...any) {}

type mockNonceSource struct {
	mu      sync.Mutex
	pending uint64
	err     error
	calls   int
}

func (m *mockNonceSource) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.pending, m.err
}

var account = common.HexToAddress("0x1111111111111111111111111111111111111111")

func TestNonceAllocator_SeedsOnceAndIncrements(t *testing.T) {
	src := &mockNonceSource{pending: 42}
	a := NewNonceAllocator(src, account, &mockLogger{})
	ctx := context.Background()

	for want := uint64(42); want < 45; want++ {
		got, err := a.Next(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("Next = %d, want %d", got, want)
		}
	}
	if src.calls != 1 {
		t.Errorf("source queried %d times, want 1", src.calls)
	}
}

func TestNonceAllocator_ReleaseResyncsWithChain(t *testing.T) {
	src := &mockNonceSource{pending: 5}
	a := NewNonceAllocator(src, account, &mockLogger{})
	ctx := context.Background()

	if n, _ := a.Next(ctx); n != 5 {
		t.Fatalf("first nonce = %d", n)
	}

	// Two transactions from the same key land outside the allocator.
	src.mu.Lock()
	src.pending = 7
	src.mu.Unlock()

	n, _ := a.Next(ctx) // 6, rejected as too low
	a.Release(n)

	for attempt := 0; attempt < 3; attempt++ {
		got, err := a.Next(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if got != uint64(7+attempt) {
			t.Errorf("attempt %d nonce = %d, want %d", attempt, got, 7+attempt)
		}
	}
	if src.calls != 2 {
		t.Errorf("source queried %d times, want 2", src.calls)
	}
}

func TestNonceAllocator_ReleaseLatestReusesWhenChainAgrees(t *testing.T) {
	src := &mockNonceSource{pending: 5}
	a := NewNonceAllocator(src, account, &mockLogger{})
	ctx := context.Background()

	n, _ := a.Next(ctx)
	a.Release(n)
	if again, _ := a.Next(ctx); again != n {
		t.Errorf("after release got %d, want %d", again, n)
	}
}

func TestNonceAllocator_ReleaseOlderReseeds(t *testing.T) {
	src := &mockNonceSource{pending: 5}
	a := NewNonceAllocator(src, account, &mockLogger{})
	ctx := context.Background()

	first, _ := a.Next(ctx)
	_, _ = a.Next(ctx)
	a.Release(first)

	// The node still reports 5 as pending since nonce 5 never arrived.
	got, _ := a.Next(ctx)
	if got != 5 || src.calls != 2 {
		t.Errorf("got %d after %d source calls, want 5 after 2", got, src.calls)
	}
}

func TestNonceAllocator_SourceError(t *testing.T) {
	src := &mockNonceSource{err: errors.New("rpc down")}
	a := NewNonceAllocator(src, account, &mockLogger{})

	if _, err := a.Next(context.Background()); !apperror.HasCode(err, apperror.CodeEthereumRPCError) {
		t.Fatalf("got %v", err)
	}

	src.err = nil
	src.pending = 9
	if n, err := a.Next(context.Background()); err != nil || n != 9 {
		t.Errorf("recovery got %d, %v", n, err)
	}
}

func TestNonceAllocator_ConcurrentUnique(t *testing.T) {
	a := NewNonceAllocator(&mockNonceSource{pending: 100}, account, &mockLogger{})

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[uint64]bool)
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := a.Next(context.Background())
			if err != nil {
				t.Error(err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if seen[n] {
				t.Errorf("nonce %d handed out twice", n)
			}
			seen[n] = true
		}()
	}
	wg.Wait()

	if len(seen) != 100 {
		t.Errorf("got %d distinct nonces", len(seen))
	}
}
