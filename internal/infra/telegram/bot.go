package telegram

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Bot receives group commands over long polling. It is the in-chat front end
// of the executor; Gateway performs the actual moderation calls.
type Bot struct {
	api *tgbotapi.BotAPI
}

// CommandUpdate carries one parsed bot command. Reply fields are populated
// when the command message replies to another message, which is how
// moderators usually target a user.
type CommandUpdate struct {
	ChatID           int64
	MessageID        int64
	UserID           int64
	Username         string
	Command          string
	Args             string
	ReplyToUserID    int64
	ReplyToMessageID int64
}

type Handlers struct {
	OnCommand func(context.Context, CommandUpdate) error
}

func NewBot(token string) (*Bot, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("telegram bot token is empty")
	}

	api, err := tgbotapi.NewBotAPI(strings.TrimSpace(token))
	if err != nil {
		return nil, fmt.Errorf("create telegram bot api: %w", err)
	}

	return &Bot{api: api}, nil
}

func (b *Bot) Listen(ctx context.Context, handlers Handlers) error {
	if b == nil || b.api == nil {
		return fmt.Errorf("telegram bot is not initialized")
	}

	updateCfg := tgbotapi.NewUpdate(0)
	updateCfg.Timeout = 30
	updates := b.api.GetUpdatesChan(updateCfg)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update := <-updates:
			msg := update.Message
			if msg == nil || msg.From == nil || !msg.IsCommand() || handlers.OnCommand == nil {
				continue
			}

			cmd := CommandUpdate{
				ChatID:    msg.Chat.ID,
				MessageID: int64(msg.MessageID),
				UserID:    msg.From.ID,
				Username:  msg.From.UserName,
				Command:   msg.Command(),
				Args:      msg.CommandArguments(),
			}
			if msg.ReplyToMessage != nil {
				cmd.ReplyToMessageID = int64(msg.ReplyToMessage.MessageID)
				if msg.ReplyToMessage.From != nil {
					cmd.ReplyToUserID = msg.ReplyToMessage.From.ID
				}
			}

			if err := handlers.OnCommand(ctx, cmd); err != nil {
				return err
			}
		}
	}
}

func (b *Bot) SendText(ctx context.Context, chatID int64, text string) error {
	if b == nil || b.api == nil {
		return fmt.Errorf("telegram bot is not initialized")
	}
	if chatID == 0 {
		return fmt.Errorf("chat id is required")
	}

	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}

	_ = ctx
	return nil
}
