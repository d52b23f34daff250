package app

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/swap-sentinel/business/swap/domain"
	"github.com/fd1az/swap-sentinel/internal/apperror"
)

// TransactionBuilder turns a quote into a router transaction. It does not
// touch the network and is deterministic for a given clock.
type TransactionBuilder struct {
	router   RouterEncoder
	wrapped  common.Address
	deadline time.Duration
	now      func() time.Time
}

// NewTransactionBuilder uses wrapped as the pool token for native legs.
func NewTransactionBuilder(router RouterEncoder, wrapped common.Address, deadlineMinutes int) *TransactionBuilder {
	return &TransactionBuilder{
		router:   router,
		wrapped:  wrapped,
		deadline: time.Duration(deadlineMinutes) * time.Minute,
		now:      time.Now,
	}
}

func (b *TransactionBuilder) Build(recipient common.Address, vs domain.ValidatedSwap, q domain.SwapQuote) (domain.SwapTransaction, error) {
	in, out := vs.Request.AssetIn, vs.Request.AssetOut
	deadline := b.now().Add(b.deadline).Unix()

	call := domain.RouterCall{
		TokenIn:          b.poolToken(in),
		TokenOut:         b.poolToken(out),
		Fee:              q.FeeTier,
		Recipient:        recipient,
		Deadline:         big.NewInt(deadline),
		AmountIn:         new(big.Int).Set(q.AmountIn),
		AmountOutMinimum: new(big.Int).Set(q.MinOutputAfterSlippage),
		UnwrapNative:     out.IsNative(),
	}

	data, err := b.router.EncodeSwap(call)
	if err != nil {
		return domain.SwapTransaction{}, apperror.Internal(apperror.CodeInternalError, "encode router call", err)
	}

	value := new(big.Int)
	if in.IsNative() {
		value.Set(q.AmountIn)
	}

	return domain.SwapTransaction{
		To:       b.router.Address(),
		Data:     data,
		Value:    value,
		Deadline: deadline,
	}, nil
}

func (b *TransactionBuilder) poolToken(ref domain.AssetRef) common.Address {
	if ref.IsNative() {
		return b.wrapped
	}
	return ref.Address()
}
