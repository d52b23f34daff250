package app

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// TxSigner signs transactions for a single account.
type TxSigner interface {
	Address() common.Address
	ChainID() *big.Int
	SignTx(tx *types.Transaction) (*types.Transaction, error)
}

// Wallet is the configured signing identity. When no usable key is
// configured Signer and Nonces are nil and Err says why.
type Wallet struct {
	Signer TxSigner
	Nonces *NonceAllocator
	Err    error
}

// Ready reports whether the wallet can sign.
func (w *Wallet) Ready() bool { return w != nil && w.Signer != nil && w.Err == nil }
