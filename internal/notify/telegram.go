package notify

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type ChatSender interface {
	SendMessage(chatID int64, text string) error
}

// TelegramSender pushes notifications to a user's Telegram chat.
type TelegramSender struct {
	API *tgbotapi.BotAPI
}

func NewTelegramSender(token string) (*TelegramSender, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return &TelegramSender{API: bot}, nil
}

func (t *TelegramSender) SendMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := t.API.Send(msg); err != nil {
		return fmt.Errorf("API.Send: %w", err)
	}
	return nil
}

func formatChat(title, message string) string {
	return fmt.Sprintf("*%s*\n%s", tgbotapi.EscapeText(tgbotapi.ModeMarkdown, title), tgbotapi.EscapeText(tgbotapi.ModeMarkdown, message))
}
