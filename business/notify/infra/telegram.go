package infra

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fd1az/swap-sentinel/business/notify/app"
	"github.com/fd1az/swap-sentinel/internal/logger"
	"github.com/fd1az/swap-sentinel/internal/retry"
)

var _ app.Sender = (*TelegramSender)(nil)

// Telegram allows about 20 messages a minute into one group chat.
const telegramRPM = 20

// TelegramSender posts to a chat through the Bot API sendMessage method.
type TelegramSender struct {
	url    string
	chatID string
	poster *poster
}

type telegramMessage struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func NewTelegramSender(apiURL, token, chatID string, policy retry.Policy, log logger.LoggerInterface) (*TelegramSender, error) {
	if token == "" || chatID == "" {
		return nil, errors.New("telegram: token and chat id are required")
	}
	if apiURL == "" {
		apiURL = "https://api.telegram.org"
	}
	p, err := newPoster("telegram", telegramRPM, policy, log)
	if err != nil {
		return nil, err
	}
	return &TelegramSender{
		url:    fmt.Sprintf("%s/bot%s/sendMessage", strings.TrimSuffix(apiURL, "/"), token),
		chatID: chatID,
		poster: p,
	}, nil
}

func (s *TelegramSender) Name() string { return "telegram" }

func (s *TelegramSender) Send(ctx context.Context, title, message string) error {
	text := title
	if message != "" {
		text += "\n\n" + message
	}

	var out telegramResponse
	if err := s.poster.post(ctx, s.url, telegramMessage{
		ChatID:                s.chatID,
		Text:                  text,
		DisableWebPagePreview: true,
	}, &out); err != nil {
		return err
	}
	if !out.OK && out.Description != "" {
		return fmt.Errorf("telegram: %s", out.Description)
	}
	return nil
}
