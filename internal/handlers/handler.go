// Package handlers adapts Telegram updates to orchestrator events and
// orchestrator commands back to Telegram API calls.
package handlers

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"telegram-support-bot/internal/orchestrator"
)

// Bot is the subset of *tgbotapi.BotAPI the adapter calls.
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Turns is the orchestrator surface driven by updates.
type Turns interface {
	HandleText(ctx context.Context, ev orchestrator.TextEvent) error
	HandleCommand(ctx context.Context, ev orchestrator.CommandEvent) error
	HandleCallback(ctx context.Context, ev orchestrator.CallbackEvent) error
}

type Handler struct {
	Bot     Bot
	Turns   Turns
	Mailbox *orchestrator.Mailbox
	Log     zerolog.Logger
}

func NewHandler(bot Bot, turns Turns, mailbox *orchestrator.Mailbox, log zerolog.Logger) *Handler {
	return &Handler{Bot: bot, Turns: turns, Mailbox: mailbox, Log: log}
}

// Listen dispatches updates until ctx is done or the channel closes.
func (h *Handler) Listen(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	for {
		select {
		case <-ctx.Done():
			return
		case upd, ok := <-updates:
			if !ok {
				return
			}
			h.Dispatch(ctx, upd)
		}
	}
}

// Dispatch queues the update on its user's mailbox. Queued turns outlive
// ctx cancellation so a shutdown drains them instead of cutting them short.
func (h *Handler) Dispatch(ctx context.Context, upd tgbotapi.Update) {
	jobCtx := context.WithoutCancel(ctx)

	switch {
	case upd.Message != nil:
		// === 📌 Текстовые сообщения и команды ===
		h.HandleMessage(jobCtx, upd.Message)
	case upd.CallbackQuery != nil:
		// === 📌 Callback кнопки ===
		h.HandleCallback(jobCtx, upd.CallbackQuery)
	}
}

func (h *Handler) HandleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.From.IsBot {
		return
	}
	userID, name := msg.From.ID, msg.From.FirstName

	if msg.IsCommand() {
		ev := orchestrator.CommandEvent{UserID: userID, DisplayName: name, Command: commandFor(msg.Command())}
		h.post(userID, "command", func() error { return h.Turns.HandleCommand(ctx, ev) })
		return
	}
	if msg.Text == "" {
		return
	}
	ev := orchestrator.TextEvent{UserID: userID, DisplayName: name, Text: msg.Text, At: msg.Time()}
	h.post(userID, "text", func() error { return h.Turns.HandleText(ctx, ev) })
}

func (h *Handler) post(userID int64, kind string, turn func() error) {
	ok := h.Mailbox.Post(userID, func() {
		if err := turn(); err != nil {
			h.Log.Error().Err(err).Int64("user", userID).Str("kind", kind).Msg("turn failed")
		}
	})
	if !ok {
		h.Log.Warn().Int64("user", userID).Str("kind", kind).Msg("shutting down, update dropped")
	}
}
