package handlers

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telegram-support-bot/internal/orchestrator"
)

func (h *Handler) HandleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	// всегда отвечаем на callback, чтобы убрать "loading..."
	if _, err := h.Bot.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
		h.Log.Debug().Err(err).Msg("callback answer failed")
	}
	if cq.From == nil {
		return
	}

	ev := orchestrator.CallbackEvent{
		UserID:      cq.From.ID,
		DisplayName: cq.From.FirstName,
		Data:        cq.Data,
	}
	if cq.Message != nil {
		ev.MessageID = cq.Message.MessageID
	}
	h.post(ev.UserID, "callback", func() error { return h.Turns.HandleCallback(ctx, ev) })
}
