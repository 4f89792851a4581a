package notify

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	tele "gopkg.in/telebot.v4"
)

// Telegram sends notifications through a bot to one chat.
type Telegram struct {
	bot  *tele.Bot
	chat *tele.Chat
}

type TelegramConfig struct {
	Token  string
	ChatID int64
	APIURL string       // empty uses the public Bot API
	Client *http.Client // nil uses the default client
}

// NewTelegram creates a write-only bot; it never polls for updates.
func NewTelegram(cfg TelegramConfig) (*Telegram, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram bot token is required")
	}
	if cfg.ChatID == 0 {
		return nil, fmt.Errorf("telegram chat id is required")
	}
	bot, err := tele.NewBot(tele.Settings{
		Token:   cfg.Token,
		URL:     cfg.APIURL,
		Client:  cfg.Client,
		Offline: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	return &Telegram{bot: bot, chat: &tele.Chat{ID: cfg.ChatID}}, nil
}

func (t *Telegram) Info(ctx context.Context, text string) error {
	return t.send(ctx, "✅ "+text)
}

func (t *Telegram) Error(ctx context.Context, text string) error {
	return t.send(ctx, "❌ "+text)
}

func (t *Telegram) send(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := t.bot.Send(t.chat, text); err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}

// SendPhoto posts a JPEG with a caption and returns the message ID.
func (t *Telegram) SendPhoto(ctx context.Context, jpeg []byte, caption string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	msg, err := t.bot.Send(t.chat, &tele.Photo{
		File:    tele.FromReader(bytes.NewReader(jpeg)),
		Caption: caption,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to send photo: %w", err)
	}
	if msg == nil {
		return 0, fmt.Errorf("received nil message response")
	}
	return msg.ID, nil
}
