package ethereum

import (
	"crypto/ecdsa"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/fd1az/swap-sentinel/internal/apperror"
)

// Signer holds the operator key in memory. The key never appears in
// errors or logs.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
	chainID *big.Int
	signer  types.Signer
}

// NewSigner parses a hex private key, with or without 0x.
func NewSigner(hexKey string, chainID *big.Int) (*Signer, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if hexKey == "" {
		return nil, apperror.New(apperror.CodeInvalidSigningKey, apperror.WithContext("PRIVATE_KEY is not set"))
	}

	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, apperror.New(apperror.CodeInvalidSigningKey, apperror.WithContext("PRIVATE_KEY is not a valid secp256k1 key"))
	}

	return newSigner(key, chainID), nil
}

func newSigner(key *ecdsa.PrivateKey, chainID *big.Int) *Signer {
	return &Signer{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		chainID: new(big.Int).Set(chainID),
		signer:  types.LatestSignerForChainID(chainID),
	}
}

func (s *Signer) Address() common.Address { return s.address }
func (s *Signer) ChainID() *big.Int       { return new(big.Int).Set(s.chainID) }

func (s *Signer) SignTx(tx *types.Transaction) (*types.Transaction, error) {
	return types.SignTx(tx, s.signer, s.key)
}
