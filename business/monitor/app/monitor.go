package app

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	blockchainDomain "github.com/fd1az/swap-sentinel/business/blockchain/domain"
	"github.com/fd1az/swap-sentinel/business/monitor/domain"
	"github.com/fd1az/swap-sentinel/internal/cache"
	"github.com/fd1az/swap-sentinel/internal/logger"
	"github.com/fd1az/swap-sentinel/internal/retry"
)

const (
	tracerName = "monitor"
	meterName  = "monitor"
)

// Config holds monitor tuning.
type Config struct {
	DedupTTL           time.Duration
	MaxConcurrentSwaps int64
	SwapTimeout        time.Duration
	Fetch              retry.Policy
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		DedupTTL:           10 * time.Minute,
		MaxConcurrentSwaps: 2,
		SwapTimeout:        5 * time.Minute,
		Fetch: retry.Policy{
			MaxAttempts:     4,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     5 * time.Second,
			Multiplier:      2,
		},
	}
}

// Stats are the monitor's running counters.
type Stats struct {
	BlocksProcessed uint64
	TxMatched       uint64
	SwapsSubmitted  uint64
	SwapsSkipped    uint64
	FetchFailures   uint64
}

type monitorMetrics struct {
	blocks   metric.Int64Counter
	matches  metric.Int64Counter
	swaps    metric.Int64Counter
	fetchErr metric.Int64Counter
}

// Monitor watches new blocks, classifies transactions touching the
// watchlist and submits swaps for those matching a reaction rule.
type Monitor struct {
	blocks     BlockSource
	swaps      SwapExecutor
	classifier *domain.Classifier
	rules      []domain.ReactionRule
	config     Config
	observer   Observer

	seen *cache.Cache[common.Hash, struct{}]
	sem  *semaphore.Weighted
	wg   sync.WaitGroup

	cancel context.CancelFunc
	done   chan struct{}

	blocksProcessed atomic.Uint64
	txMatched       atomic.Uint64
	swapsSubmitted  atomic.Uint64
	swapsSkipped    atomic.Uint64
	fetchFailures   atomic.Uint64

	logger  logger.LoggerInterface
	tracer  trace.Tracer
	metrics *monitorMetrics
}

// NewMonitor creates a monitor. observer may be nil.
func NewMonitor(
	blocks BlockSource,
	swaps SwapExecutor,
	classifier *domain.Classifier,
	rules []domain.ReactionRule,
	cfg Config,
	observer Observer,
	log logger.LoggerInterface,
) (*Monitor, error) {
	if cfg.MaxConcurrentSwaps <= 0 {
		cfg.MaxConcurrentSwaps = 1
	}
	if cfg.DedupTTL <= 0 {
		cfg.DedupTTL = DefaultConfig().DedupTTL
	}

	m := &Monitor{
		blocks:     blocks,
		swaps:      swaps,
		classifier: classifier,
		rules:      rules,
		config:     cfg,
		observer:   observer,
		seen:       cache.New[common.Hash, struct{}](time.Minute),
		sem:        semaphore.NewWeighted(cfg.MaxConcurrentSwaps),
		logger:     log,
		tracer:     otel.Tracer(tracerName),
	}
	if err := m.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}
	return m, nil
}

func (m *Monitor) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	m.metrics = &monitorMetrics{}

	m.metrics.blocks, err = meter.Int64Counter(
		"monitor_blocks_processed_total",
		metric.WithDescription("Blocks inspected"),
	)
	if err != nil {
		return err
	}

	m.metrics.matches, err = meter.Int64Counter(
		"monitor_matches_total",
		metric.WithDescription("Watched transactions by kind"),
	)
	if err != nil {
		return err
	}

	m.metrics.swaps, err = meter.Int64Counter(
		"monitor_swaps_total",
		metric.WithDescription("Swap reactions by outcome"),
	)
	if err != nil {
		return err
	}

	m.metrics.fetchErr, err = meter.Int64Counter(
		"monitor_fetch_failures_total",
		metric.WithDescription("Blocks whose transactions could not be fetched"),
	)
	return err
}

// Start subscribes to blocks and processes them in the background.
func (m *Monitor) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)

	blocks, err := m.blocks.SubscribeBlocks(ctx)
	if err != nil {
		cancel()
		return fmt.Errorf("subscribe blocks: %w", err)
	}

	m.cancel = cancel
	m.done = make(chan struct{})
	m.logger.Info(ctx, "monitor started", "rules", len(m.rules), "max_concurrent_swaps", m.config.MaxConcurrentSwaps)

	go m.run(ctx, blocks)
	return nil
}

func (m *Monitor) run(ctx context.Context, blocks <-chan *blockchainDomain.Block) {
	defer close(m.done)
	for {
		select {
		case <-ctx.Done():
			m.logger.Info(ctx, "monitor stopping", "reason", ctx.Err())
			return
		case block, ok := <-blocks:
			if !ok {
				m.logger.Warn(ctx, "block subscription closed")
				return
			}
			if block != nil {
				m.ProcessBlock(ctx, block)
			}
		}
	}
}

// ProcessBlock inspects one block. Swaps it triggers run in the
// background, bounded by MaxConcurrentSwaps.
func (m *Monitor) ProcessBlock(ctx context.Context, block *blockchainDomain.Block) {
	ctx, span := m.tracer.Start(ctx, "monitor.process_block",
		trace.WithAttributes(attribute.Int64("block_number", int64(block.Number))))
	defer span.End()

	txs, err := retry.Do(ctx, m.config.Fetch, func() ([]blockchainDomain.Transaction, error) {
		return m.blocks.BlockTransactions(ctx, block.Number)
	}, func(err error, wait time.Duration) {
		m.logger.Debug(ctx, "retrying block fetch", "block", block.Number, "wait", wait, "error", err)
	})
	if err != nil {
		m.fetchFailures.Add(1)
		m.metrics.fetchErr.Add(ctx, 1)
		span.RecordError(err)
		m.logger.Error(ctx, "failed to fetch block transactions", "block", block.Number, "error", err)
		return
	}

	m.blocksProcessed.Add(1)
	m.metrics.blocks.Add(ctx, 1)
	if m.observer != nil {
		m.observer.BlockProcessed(ctx, block, len(txs))
	}

	for _, tx := range txs {
		m.inspect(ctx, tx)
	}
}

func (m *Monitor) inspect(ctx context.Context, tx blockchainDomain.Transaction) {
	c, ok := m.classifier.Classify(tx)
	if !ok {
		return
	}
	if !m.seen.SetIfAbsent(ctx, tx.Hash, struct{}{}, m.config.DedupTTL) {
		return
	}

	m.txMatched.Add(1)
	m.metrics.matches.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(c.Kind))))

	match := Match{Classification: c}
	rule, ok := domain.FirstMatch(m.rules, c)
	if ok {
		match.Rule = &rule
	}
	if m.observer != nil {
		m.observer.Matched(ctx, match)
	}

	m.logger.Info(ctx, "watched transaction",
		"tx", tx.Hash.Hex(),
		"block", tx.BlockNumber,
		"kind", c.Kind,
		"direction", c.Direction,
		"watched", c.Watched.Hex(),
		"reaction", ok)

	if ok {
		m.submit(ctx, rule, c)
	}
}

// submit never blocks the block loop. When every slot is busy the
// reaction is dropped: skipping a swap is the safe failure.
func (m *Monitor) submit(ctx context.Context, rule domain.ReactionRule, c domain.Classification) {
	if !m.sem.TryAcquire(1) {
		m.swapsSkipped.Add(1)
		m.metrics.swaps.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "skipped")))
		m.logger.Warn(ctx, "swap reaction skipped, too many in flight",
			"tx", c.Tx.Hash.Hex(), "limit", m.config.MaxConcurrentSwaps)
		return
	}

	m.swapsSubmitted.Add(1)
	params := rule.Request(c)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer m.sem.Release(1)

		swapCtx := ctx
		if m.config.SwapTimeout > 0 {
			var cancel context.CancelFunc
			swapCtx, cancel = context.WithTimeout(ctx, m.config.SwapTimeout)
			defer cancel()
		}

		res := m.swaps.ExecuteParams(swapCtx, params)

		outcome := "failed"
		if res.Success {
			outcome = "succeeded"
		}
		m.metrics.swaps.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
		m.logger.Info(ctx, "swap reaction finished",
			"trigger", c.Tx.Hash.Hex(),
			"request_id", res.RequestID,
			"success", res.Success,
			"dry_run", res.DryRun,
			"stage", res.Stage)
	}()
}

// Stats returns a snapshot of the counters.
func (m *Monitor) Stats() Stats {
	return Stats{
		BlocksProcessed: m.blocksProcessed.Load(),
		TxMatched:       m.txMatched.Load(),
		SwapsSubmitted:  m.swapsSubmitted.Load(),
		SwapsSkipped:    m.swapsSkipped.Load(),
		FetchFailures:   m.fetchFailures.Load(),
	}
}

// Wait blocks until every submitted swap has finished.
func (m *Monitor) Wait() { m.wg.Wait() }

// Stop ends the block loop and waits for in-flight swaps.
func (m *Monitor) Stop() error {
	if m.cancel != nil {
		m.cancel()
		<-m.done
	}
	m.wg.Wait()
	m.seen.Close()
	return nil
}
