package handlers

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"telegram-support-bot/internal/models"
)

// TelegramSink sends outbound commands, paced to stay under Telegram's
// global bot limit.
type TelegramSink struct {
	bot     Bot
	limiter *rate.Limiter
	log     zerolog.Logger
}

func NewTelegramSink(bot Bot, perSecond float64, log zerolog.Logger) *TelegramSink {
	limit, burst := rate.Inf, 1
	if perSecond > 0 {
		limit, burst = rate.Limit(perSecond), max(1, int(perSecond))
	}
	return &TelegramSink{bot: bot, limiter: rate.NewLimiter(limit, burst), log: log}
}

func (s *TelegramSink) Send(ctx context.Context, out models.Outbound) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("telegram: send to %d: %w", out.UserID, err)
	}

	if out.EditMessageID != 0 {
		_, err := s.bot.Send(editConfig(out))
		if err == nil {
			return nil
		}
		// старые сообщения не редактируются, шлём новое
		s.log.Debug().Err(err).Int64("user", out.UserID).Msg("edit failed, sending new message")
	}
	if _, err := s.bot.Send(messageConfig(out)); err != nil {
		return fmt.Errorf("telegram: send to %d: %w", out.UserID, err)
	}
	return nil
}

func messageConfig(out models.Outbound) tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(out.UserID, out.Text)
	if out.Markdown {
		msg.ParseMode = tgbotapi.ModeMarkdown
	}
	if len(out.Options) > 0 {
		msg.ReplyMarkup = keyboard(out.Options)
	}
	return msg
}

func editConfig(out models.Outbound) tgbotapi.EditMessageTextConfig {
	edit := tgbotapi.NewEditMessageText(out.UserID, out.EditMessageID, out.Text)
	if out.Markdown {
		edit.ParseMode = tgbotapi.ModeMarkdown
	}
	if len(out.Options) > 0 {
		kb := keyboard(out.Options)
		edit.ReplyMarkup = &kb
	}
	return edit
}

func keyboard(rows [][]models.Option) tgbotapi.InlineKeyboardMarkup {
	kb := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, o := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(o.Label, o.Value))
		}
		kb = append(kb, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	return tgbotapi.NewInlineKeyboardMarkup(kb...)
}

// RegisterCommands publishes the command menu.
func RegisterCommands(bot Bot) error {
	cmds := make([]tgbotapi.BotCommand, 0, len(BotCommands))
	for _, c := range BotCommands {
		cmds = append(cmds, tgbotapi.BotCommand{Command: c.Name, Description: c.Description})
	}
	_, err := bot.Request(tgbotapi.NewSetMyCommands(cmds...))
	return err
}
