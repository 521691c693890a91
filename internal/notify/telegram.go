package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"fintrack/internal/domain"
)

// Sender is the part of *tgbotapi.BotAPI the notifier needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram sends each reminder as a direct message; the owner id is the
// Telegram chat id.
type Telegram struct {
	Sender Sender
}

func NewTelegram(token string) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram init: %w", err)
	}
	api.Debug = false
	return &Telegram{Sender: api}, nil
}

func (t *Telegram) Notify(ctx context.Context, r domain.Reminder) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(r.OwnerID, Message(r))
	if _, err := t.Sender.Send(msg); err != nil {
		return fmt.Errorf("telegram send to %d: %w", r.OwnerID, err)
	}
	return nil
}

func (t *Telegram) NotifySummary(ctx context.Context, s domain.DailySummary) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := t.Sender.Send(tgbotapi.NewMessage(s.OwnerID, SummaryMessage(s))); err != nil {
		return fmt.Errorf("telegram summary to %d: %w", s.OwnerID, err)
	}
	return nil
}
