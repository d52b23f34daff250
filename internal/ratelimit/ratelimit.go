// Package ratelimit throttles calls to third-party HTTP APIs.
package ratelimit

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/time/rate"

	"github.com/fd1az/swap-sentinel/internal/apperror"
)

// Limiter is a token bucket for one upstream API.
type Limiter struct {
	name  string
	lim   *rate.Limiter
	waits metric.Float64Histogram
	attrs metric.MeasurementOption
}

// PerMinute allows rpm requests a minute with a burst of a tenth of that,
// and never less than one.
func PerMinute(name string, rpm int) *Limiter {
	if rpm <= 0 {
		rpm = 60
	}
	burst := max(rpm/10, 1)

	l := &Limiter{
		name:  name,
		lim:   rate.NewLimiter(rate.Limit(float64(rpm)/60), burst),
		attrs: metric.WithAttributes(attribute.String("api", name)),
	}
	// A nil histogram only loses the wait metric.
	l.waits, _ = otel.Meter("ratelimit").Float64Histogram(
		"ratelimit_wait_ms",
		metric.WithDescription("Time spent waiting for a rate limit token"),
		metric.WithUnit("ms"),
	)
	return l
}

// Name is the API the limiter guards.
func (l *Limiter) Name() string { return l.name }

// Wait blocks for a token. It fails with CodeRateLimitExceeded when ctx ends
// first or its deadline is too close to ever get one.
func (l *Limiter) Wait(ctx context.Context) error {
	start := time.Now()
	err := l.lim.Wait(ctx)
	if l.waits != nil {
		l.waits.Record(ctx, float64(time.Since(start).Milliseconds()), l.attrs)
	}
	if err != nil {
		return apperror.New(apperror.CodeRateLimitExceeded,
			apperror.WithCause(err),
			apperror.WithContext(l.name))
	}
	return nil
}

// Allow takes a token if one is available now.
func (l *Limiter) Allow() bool {
	return l.lim.Allow()
}
