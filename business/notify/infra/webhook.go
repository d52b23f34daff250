// Package infra contains the notification channel adapters.
package infra

import (
	"context"
	"fmt"
	"time"

	"github.com/fd1az/swap-sentinel/internal/apperror"
	"github.com/fd1az/swap-sentinel/internal/httpclient"
	"github.com/fd1az/swap-sentinel/internal/logger"
	"github.com/fd1az/swap-sentinel/internal/retry"
)

// poster is the delivery loop shared by the channels: a rate-limited JSON
// POST, retried on throttling and server errors.
type poster struct {
	name   string
	client *httpclient.Client
	policy retry.Policy
	logger logger.LoggerInterface
}

func newPoster(name string, requestsPerMinute int, policy retry.Policy, log logger.LoggerInterface) (*poster, error) {
	client, err := httpclient.New(
		httpclient.WithName(name),
		httpclient.WithRateLimit(requestsPerMinute),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s http client: %w", name, err)
	}
	return &poster{
		name:   name,
		client: client,
		policy: policy,
		logger: log,
	}, nil
}

func (p *poster) post(ctx context.Context, url string, body any, result any) error {
	err := retry.Run(ctx, p.policy, func() error {
		resp, err := p.client.Post(ctx, url, body, result)
		if apperror.HasCode(err, apperror.CodeRateLimitExceeded) {
			return retry.Permanent(err)
		}
		if err != nil {
			return err
		}
		return statusError(p.name, resp)
	}, func(err error, wait time.Duration) {
		p.logger.Debug(ctx, "retrying notification", "channel", p.name, "wait", wait, "error", err)
	})
	if err != nil {
		return apperror.New(apperror.CodeNotificationFailed,
			apperror.WithCause(err),
			apperror.WithContext(p.name))
	}
	return nil
}

// statusError treats throttling and server errors as retryable and every
// other client error as permanent.
func statusError(name string, resp *httpclient.Response) error {
	err := resp.Err(name)
	if err == nil || resp.Retryable() {
		return err
	}
	return retry.Permanent(err)
}
