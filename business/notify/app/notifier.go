// Package app fans swap outcomes out to the operator's notification channels.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/fd1az/swap-sentinel/business/notify/domain"
	"github.com/fd1az/swap-sentinel/internal/apperror"
	"github.com/fd1az/swap-sentinel/internal/logger"
)

// Sender delivers one message over one channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier filters messages by event and delivers to every sender.
type Notifier struct {
	senders []Sender
	events  map[domain.Event]bool
	logger  logger.LoggerInterface
}

func NewNotifier(senders []Sender, events []domain.Event, log logger.LoggerInterface) *Notifier {
	set := make(map[domain.Event]bool, len(events))
	for _, e := range events {
		set[e] = true
	}
	return &Notifier{senders: senders, events: set, logger: log}
}

// Enabled reports whether e is forwarded and anyone would receive it.
func (n *Notifier) Enabled(e domain.Event) bool {
	return len(n.senders) > 0 && n.events[e]
}

// Channels lists the sender names.
func (n *Notifier) Channels() []string {
	names := make([]string, len(n.senders))
	for i, s := range n.senders {
		names[i] = s.Name()
	}
	return names
}

// Notify sends msg to every sender. One failing channel does not stop the
// others; all failures are joined.
func (n *Notifier) Notify(ctx context.Context, msg domain.Message) error {
	if !n.Enabled(msg.Event) {
		return nil
	}

	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, msg.Title, msg.Body); err != nil {
			n.logger.Warn(ctx, "notification failed", "channel", s.Name(), "event", msg.Event, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return apperror.New(apperror.CodeNotificationFailed,
		apperror.WithCause(errors.Join(errs...)),
		apperror.WithContext(string(msg.Event)))
}
