// Package notify implements the notification bounded context: swap
// outcomes and emergency stops forwarded to Telegram and Discord.
package notify

import (
	"context"
	"fmt"
	"time"

	notifyApp "github.com/fd1az/swap-sentinel/business/notify/app"
	notifyDI "github.com/fd1az/swap-sentinel/business/notify/di"
	"github.com/fd1az/swap-sentinel/business/notify/domain"
	"github.com/fd1az/swap-sentinel/business/notify/infra"
	swapDI "github.com/fd1az/swap-sentinel/business/swap/di"
	swapDomain "github.com/fd1az/swap-sentinel/business/swap/domain"
	"github.com/fd1az/swap-sentinel/internal/asset"
	"github.com/fd1az/swap-sentinel/internal/config"
	"github.com/fd1az/swap-sentinel/internal/di"
	"github.com/fd1az/swap-sentinel/internal/logger"
	"github.com/fd1az/swap-sentinel/internal/monolith"
	"github.com/fd1az/swap-sentinel/internal/retry"
)

const (
	sendTimeout  = 30 * time.Second
	drainTimeout = 10 * time.Second
)

// Module implements the notify bounded context.
type Module struct{}

// RegisterServices registers all notify services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, notifyDI.Notifier, func(sr di.ServiceRegistry) *notifyApp.Notifier {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		senders, err := buildSenders(cfg.Notify, log)
		if err != nil {
			panic("failed to create notification senders: " + err.Error())
		}
		events, err := parseEvents(cfg.Notify.Events)
		if err != nil {
			panic("invalid notification events: " + err.Error())
		}
		return notifyApp.NewNotifier(senders, events, log)
	})

	di.RegisterToken(c, notifyDI.Dispatcher, func(sr di.ServiceRegistry) *notifyApp.Dispatcher {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		d, err := notifyApp.NewDispatcher(notifyDI.GetNotifier(sr), cfg.Notify.BufferSize, sendTimeout, log)
		if err != nil {
			panic("failed to create notification dispatcher: " + err.Error())
		}
		d.UseAssets(assetLookup(sr.Get("assetRegistry").(*asset.Registry), cfg.Ethereum.ChainID))
		return d
	})

	return nil
}

func assetLookup(registry *asset.Registry, chainID uint64) domain.AssetLookup {
	return func(ref swapDomain.AssetRef) (*asset.Asset, bool) {
		switch {
		case ref.IsNative():
			return registry.GetNative(chainID)
		case ref.IsToken():
			return registry.GetToken(chainID, ref.Address())
		}
		return nil, false
	}
}

func buildSenders(cfg config.NotifyConfig, log logger.LoggerInterface) ([]notifyApp.Sender, error) {
	policy := retry.DefaultPolicy()
	policy.MaxAttempts = cfg.RetryAttempts

	var senders []notifyApp.Sender
	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		tg, err := infra.NewTelegramSender(cfg.TelegramAPIURL, cfg.TelegramToken, cfg.TelegramChatID, policy, log)
		if err != nil {
			return nil, err
		}
		senders = append(senders, tg)
	}
	if cfg.DiscordWebhook != "" {
		dc, err := infra.NewDiscordSender(cfg.DiscordWebhook, policy, log)
		if err != nil {
			return nil, err
		}
		senders = append(senders, dc)
	}
	return senders, nil
}

func parseEvents(names []string) ([]domain.Event, error) {
	events := make([]domain.Event, 0, len(names))
	for _, n := range names {
		e, err := domain.ParseEvent(n)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, nil
}

// Startup subscribes the dispatcher to swap results and governor
// transitions.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	notifier := notifyDI.GetNotifier(mono.Services())

	channels := notifier.Channels()
	if len(channels) == 0 {
		log.Info(ctx, "notifications disabled: no channel configured")
		return nil
	}

	dispatcher := notifyDI.GetDispatcher(mono.Services())
	svc := swapDI.GetService(mono.Services())
	svc.AddSink(dispatcher)
	svc.Governor().OnStateChange(dispatcher.GovernorChanged)

	log.Info(ctx, "notify module started", "channels", channels, "events", mono.Config().Notify.Events)
	return nil
}

// Shutdown drains queued notifications, bounded by drainTimeout.
func (m *Module) Shutdown(ctx context.Context, mono monolith.Monolith) error {
	if len(notifyDI.GetNotifier(mono.Services()).Channels()) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, drainTimeout)
	defer cancel()
	if err := notifyDI.GetDispatcher(mono.Services()).Close(ctx); err != nil {
		return fmt.Errorf("notification queue not drained: %w", err)
	}
	return nil
}
