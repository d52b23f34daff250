package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fd1az/swap-sentinel/business/notify/domain"
	swapApp "github.com/fd1az/swap-sentinel/business/swap/app"
	swapDomain "github.com/fd1az/swap-sentinel/business/swap/domain"
	"github.com/fd1az/swap-sentinel/internal/apperror"
	"github.com/fd1az/swap-sentinel/internal/logger"
)

const meterName = "notify"

var _ swapApp.ResultSink = (*Dispatcher)(nil)

type dispatcherMetrics struct {
	sent    metric.Int64Counter
	failed  metric.Int64Counter
	dropped metric.Int64Counter
}

// Dispatcher queues messages for a single delivery worker so that slow
// channels never hold up the swap pipeline. A full queue drops.
type Dispatcher struct {
	notifier    *Notifier
	sendTimeout time.Duration
	assets      domain.AssetLookup

	mu     sync.RWMutex
	closed bool
	queue  chan domain.Message
	done   chan struct{}

	logger  logger.LoggerInterface
	metrics *dispatcherMetrics
}

// NewDispatcher starts the worker. sendTimeout bounds one delivery across
// all channels including retries.
func NewDispatcher(n *Notifier, bufferSize int, sendTimeout time.Duration, log logger.LoggerInterface) (*Dispatcher, error) {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	d := &Dispatcher{
		notifier:    n,
		sendTimeout: sendTimeout,
		queue:       make(chan domain.Message, bufferSize),
		done:        make(chan struct{}),
		logger:      log,
	}
	if err := d.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	go d.run()
	return d, nil
}

// UseAssets lets swap messages show symbols and decimal amounts. Call it
// before the dispatcher is subscribed.
func (d *Dispatcher) UseAssets(lookup domain.AssetLookup) { d.assets = lookup }

func (d *Dispatcher) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	d.metrics = &dispatcherMetrics{}

	d.metrics.sent, err = meter.Int64Counter(
		"notify_sent_total",
		metric.WithDescription("Notifications delivered by event"),
	)
	if err != nil {
		return err
	}

	d.metrics.failed, err = meter.Int64Counter(
		"notify_failed_total",
		metric.WithDescription("Notifications that failed on at least one channel"),
	)
	if err != nil {
		return err
	}

	d.metrics.dropped, err = meter.Int64Counter(
		"notify_dropped_total",
		metric.WithDescription("Notifications dropped on a full queue or after close"),
	)
	return err
}

// Publish implements the swap ResultSink.
func (d *Dispatcher) Publish(ctx context.Context, res swapDomain.ExecutionResult) {
	if !d.notifier.Enabled(domain.EventFor(res)) {
		return
	}
	d.Enqueue(ctx, domain.FromResult(res, d.assets))
}

// GovernorChanged is registered as a RiskGovernor listener.
func (d *Dispatcher) GovernorChanged(state swapDomain.GovernorState, reason string) {
	msg := domain.FromGovernor(state, reason, time.Now())
	if !d.notifier.Enabled(msg.Event) {
		return
	}
	d.Enqueue(context.Background(), msg)
}

// Enqueue never blocks. It reports false when the message was dropped.
func (d *Dispatcher) Enqueue(ctx context.Context, msg domain.Message) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.closed {
		select {
		case d.queue <- msg:
			return true
		default:
		}
	}

	d.metrics.dropped.Add(ctx, 1, metric.WithAttributes(attribute.String("event", string(msg.Event))))
	d.logger.Warn(ctx, "notification dropped",
		"title", msg.Title,
		"closed", d.closed,
		"error", apperror.New(apperror.CodeNotificationDropped, apperror.WithContext(string(msg.Event))))
	return false
}

func (d *Dispatcher) run() {
	defer close(d.done)

	for msg := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), d.sendTimeout)
		err := d.notifier.Notify(ctx, msg)
		cancel()

		attrs := metric.WithAttributes(attribute.String("event", string(msg.Event)))
		if err != nil {
			d.metrics.failed.Add(context.Background(), 1, attrs)
			d.logger.Error(context.Background(), "notification delivery failed", "event", msg.Event, "error", err)
			continue
		}
		d.metrics.sent.Add(context.Background(), 1, attrs)
	}
}

// Close stops accepting messages and waits until the queue is drained or
// ctx is done. It is idempotent.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
