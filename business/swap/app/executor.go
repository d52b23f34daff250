package app

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/fd1az/swap-sentinel/business/swap/domain"
	"github.com/fd1az/swap-sentinel/internal/apperror"
	"github.com/fd1az/swap-sentinel/internal/logger"
)

// ExecutorConfig bounds the local wait for block inclusion. The on-chain
// deadline does not shorten or extend it.
type ExecutorConfig struct {
	Enabled             bool
	ConfirmationTimeout time.Duration
	PollInterval        time.Duration
}

// ExecutionOutcome is what the executor learned about a transaction.
type ExecutionOutcome struct {
	TxHash    common.Hash
	Broadcast bool
	Receipt   *domain.Receipt
}

// Executor signs, broadcasts and waits for a swap to be mined.
type Executor struct {
	sender TxSender
	signer Signer
	nonces NonceAllocator
	config ExecutorConfig
	logger logger.LoggerInterface

	// sendMu spans nonce allocation through broadcast for the one signer.
	sendMu sync.Mutex
}

func NewExecutor(sender TxSender, signer Signer, nonces NonceAllocator, cfg ExecutorConfig, log logger.LoggerInterface) *Executor {
	if cfg.ConfirmationTimeout <= 0 {
		cfg.ConfirmationTimeout = 3 * time.Minute
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	return &Executor{sender: sender, signer: signer, nonces: nonces, config: cfg, logger: log}
}

// Execute requires real trading to be enabled and a permit from the
// governor's pre-broadcast gate.
func (e *Executor) Execute(ctx context.Context, permit ExecutionPermit, tx domain.SwapTransaction, gasPrice *big.Int) (ExecutionOutcome, error) {
	if !e.config.Enabled {
		return ExecutionOutcome{}, apperror.Forbidden(apperror.CodeRealTradingDisabled, "set ENABLE_REAL_TRADING=true")
	}
	if !permit.valid() {
		return ExecutionOutcome{}, apperror.New(apperror.CodeInvalidState, apperror.WithContext("missing execution permit"))
	}

	signed, nonce, err := e.signAndSend(ctx, tx, gasPrice)
	if err != nil {
		var out ExecutionOutcome
		if signed != nil {
			out.TxHash = signed.Hash()
		}
		return out, err
	}

	out := ExecutionOutcome{TxHash: signed.Hash(), Broadcast: true}
	e.logger.Info(ctx, "swap broadcast", "tx", out.TxHash.Hex(), "nonce", nonce, "gas_limit", tx.GasLimit)

	receipt, err := e.awaitReceipt(ctx, out.TxHash)
	if err != nil {
		return out, err
	}

	out.Receipt = &domain.Receipt{
		TxHash:            out.TxHash,
		BlockNumber:       receipt.BlockNumber.Uint64(),
		GasUsed:           receipt.GasUsed,
		EffectiveGasPrice: receipt.EffectiveGasPrice,
	}
	if out.Receipt.EffectiveGasPrice == nil {
		out.Receipt.EffectiveGasPrice = gasPrice
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		return out, apperror.New(apperror.CodeTransactionReverted,
			apperror.WithContext(fmt.Sprintf("tx %s reverted in block %d", out.TxHash.Hex(), out.Receipt.BlockNumber)))
	}
	return out, nil
}

// signAndSend holds sendMu so nonces reach the node in allocation order.
// Any failure releases the nonce.
func (e *Executor) signAndSend(ctx context.Context, tx domain.SwapTransaction, gasPrice *big.Int) (*types.Transaction, uint64, error) {
	e.sendMu.Lock()
	defer e.sendMu.Unlock()

	nonce, err := e.nonces.Next(ctx)
	if err != nil {
		return nil, 0, apperror.New(apperror.CodeExecutionFailed,
			apperror.WithCause(err), apperror.WithContext("allocate nonce"))
	}

	to := tx.To
	signed, err := e.signer.SignTx(types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      tx.GasLimit,
		To:       &to,
		Value:    tx.Value,
		Data:     tx.Data,
	}))
	if err != nil {
		e.nonces.Release(nonce)
		return nil, nonce, apperror.New(apperror.CodeExecutionFailed,
			apperror.WithCause(err), apperror.WithContext("sign transaction"))
	}

	if err := e.sender.SendTransaction(ctx, signed); err != nil {
		e.nonces.Release(nonce)
		return signed, nonce, apperror.New(apperror.CodeExecutionFailed,
			apperror.WithCause(err), apperror.WithContext("broadcast rejected"))
	}
	return signed, nonce, nil
}

// awaitReceipt polls until the receipt appears or the local timeout hits.
// A timeout does not mean the transaction failed; it may still be mined.
func (e *Executor) awaitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, e.config.ConfirmationTimeout)
	defer cancel()

	ticker := time.NewTicker(e.config.PollInterval)
	defer ticker.Stop()

	for {
		receipt, err := e.sender.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) && ctx.Err() == nil {
			e.logger.Warn(ctx, "receipt lookup failed", "tx", hash.Hex(), "error", err)
		}

		select {
		case <-ctx.Done():
			return nil, apperror.New(apperror.CodeConfirmationTimeout,
				apperror.WithCause(ctx.Err()),
				apperror.WithContext(fmt.Sprintf("tx %s not mined within %s", hash.Hex(), e.config.ConfirmationTimeout)))
		case <-ticker.C:
		}
	}
}
