package app

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/swap-sentinel/internal/apperror"
	"github.com/fd1az/swap-sentinel/internal/logger"
)

// NonceAllocator hands out sequential nonces for one signer. It seeds
// lazily from the pending nonce and reseeds after every release.
type NonceAllocator struct {
	source  NonceSource
	account common.Address
	logger  logger.LoggerInterface

	mu     sync.Mutex
	next   uint64
	seeded bool
}

func NewNonceAllocator(source NonceSource, account common.Address, log logger.LoggerInterface) *NonceAllocator {
	return &NonceAllocator{source: source, account: account, logger: log}
}

// Next reserves the next nonce.
func (a *NonceAllocator) Next(ctx context.Context) (uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.seeded {
		n, err := a.source.PendingNonceAt(ctx, a.account)
		if err != nil {
			return 0, apperror.New(apperror.CodeEthereumRPCError,
				apperror.WithCause(err),
				apperror.WithContext("pending nonce for "+a.account.Hex()))
		}
		a.next = n
		a.seeded = true
		a.logger.Debug(ctx, "nonce allocator seeded", "account", a.account.Hex(), "nonce", n)
	}

	n := a.next
	a.next++
	return n, nil
}

// Release returns a nonce whose transaction never reached the node. The
// next allocation reseeds from the pending nonce, so a rejection caused by
// a transaction sent outside the allocator is not repeated.
func (a *NonceAllocator) Release(nonce uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.seeded {
		a.logger.Debug(context.Background(), "nonce released", "account", a.account.Hex(), "nonce", nonce)
	}
	a.seeded = false
}
