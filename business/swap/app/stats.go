package app

import (
	"math/big"
	"sync"
	"time"

	"github.com/fd1az/swap-sentinel/business/swap/domain"
	"github.com/fd1az/swap-sentinel/internal/apperror"
)

// StatisticsRecorder keeps the pipeline counters. Each request resolves to
// exactly one of executed, failed or dry run, and a terminal record that
// has no outstanding request is refused.
type StatisticsRecorder struct {
	mu    sync.Mutex
	stats domain.Statistics
}

func NewStatisticsRecorder() *StatisticsRecorder {
	return &StatisticsRecorder{stats: domain.Statistics{
		TotalVolume:  make(map[string]*big.Int),
		TotalFeesWei: new(big.Int),
	}}
}

func (r *StatisticsRecorder) RecordRequested() {
	r.mu.Lock()
	r.stats.TotalRequested++
	r.mu.Unlock()
}

// RecordExecuted books a confirmed swap.
func (r *StatisticsRecorder) RecordExecuted(in domain.AssetRef, amountIn *big.Int, rcpt domain.Receipt) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkTerminal(); err != nil {
		return err
	}
	r.stats.TotalExecuted++

	key := in.String()
	vol, ok := r.stats.TotalVolume[key]
	if !ok {
		vol = new(big.Int)
		r.stats.TotalVolume[key] = vol
	}
	vol.Add(vol, amountIn)

	r.stats.TotalGasUsed += rcpt.GasUsed
	if rcpt.EffectiveGasPrice != nil {
		fee := new(big.Int).Mul(new(big.Int).SetUint64(rcpt.GasUsed), rcpt.EffectiveGasPrice)
		r.stats.TotalFeesWei.Add(r.stats.TotalFeesWei, fee)
	}
	r.stats.LastSwapTime = time.Now()
	return nil
}

// RecordFailed books any failure; broadcast marks those that spent gas.
func (r *StatisticsRecorder) RecordFailed(broadcast bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkTerminal(); err != nil {
		return err
	}
	r.stats.TotalFailed++
	if broadcast {
		r.stats.TotalBroadcastFailed++
	}
	return nil
}

// RecordDryRun books a successful dry run; it is neither executed nor failed.
func (r *StatisticsRecorder) RecordDryRun() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkTerminal(); err != nil {
		return err
	}
	r.stats.TotalDryRuns++
	return nil
}

// Snapshot returns a deep copy.
func (r *StatisticsRecorder) Snapshot() domain.Statistics {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := r.stats
	cp.TotalVolume = make(map[string]*big.Int, len(r.stats.TotalVolume))
	for k, v := range r.stats.TotalVolume {
		cp.TotalVolume[k] = new(big.Int).Set(v)
	}
	cp.TotalFeesWei = new(big.Int).Set(r.stats.TotalFeesWei)
	return cp
}

func (r *StatisticsRecorder) checkTerminal() error {
	resolved := r.stats.TotalExecuted + r.stats.TotalFailed + r.stats.TotalDryRuns
	if resolved >= r.stats.TotalRequested {
		return apperror.New(apperror.CodeInvalidState,
			apperror.WithContext("terminal outcome without a matching request"))
	}
	return nil
}
