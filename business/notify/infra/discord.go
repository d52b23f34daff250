package infra

import (
	"context"
	"errors"
	"strings"

	"github.com/fd1az/swap-sentinel/business/notify/app"
	"github.com/fd1az/swap-sentinel/internal/logger"
	"github.com/fd1az/swap-sentinel/internal/retry"
)

var _ app.Sender = (*DiscordSender)(nil)

// Discord webhooks accept 30 requests a minute.
const discordRPM = 30

// Embed colors.
const (
	colorRed   = 0xE74C3C
	colorGreen = 0x2ECC71
	colorGrey  = 0x95A5A6
)

// DiscordSender posts an embed to a channel webhook.
type DiscordSender struct {
	webhook string
	poster  *poster
}

type discordPayload struct {
	Username string         `json:"username,omitempty"`
	Embeds   []discordEmbed `json:"embeds"`
}

type discordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Color       int    `json:"color"`
}

func NewDiscordSender(webhook string, policy retry.Policy, log logger.LoggerInterface) (*DiscordSender, error) {
	if webhook == "" {
		return nil, errors.New("discord: webhook url is required")
	}
	p, err := newPoster("discord", discordRPM, policy, log)
	if err != nil {
		return nil, err
	}
	return &DiscordSender{webhook: webhook, poster: p}, nil
}

func (s *DiscordSender) Name() string { return "discord" }

func (s *DiscordSender) Send(ctx context.Context, title, message string) error {
	return s.poster.post(ctx, s.webhook, discordPayload{
		Username: "swap-sentinel",
		Embeds: []discordEmbed{{
			Title:       title,
			Description: message,
			Color:       embedColor(title),
		}},
	}, nil)
}

func embedColor(title string) int {
	t := strings.ToLower(title)
	switch {
	case strings.Contains(t, "fail"), strings.Contains(t, "reject"), strings.Contains(t, "emergency"):
		return colorRed
	case strings.Contains(t, "executed"), strings.Contains(t, "resumed"):
		return colorGreen
	default:
		return colorGrey
	}
}
