package handlers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"telegram-support-bot/internal/messages"
	"telegram-support-bot/internal/models"
	"telegram-support-bot/internal/orchestrator"
)

type fakeBot struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	sendErr  func(c tgbotapi.Chattable) error
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sendErr != nil {
		if err := b.sendErr(c); err != nil {
			return tgbotapi.Message{}, err
		}
	}
	b.sent = append(b.sent, c)
	return tgbotapi.Message{MessageID: len(b.sent)}, nil
}

func (b *fakeBot) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests = append(b.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

type stubTurns struct {
	mu        sync.Mutex
	texts     []orchestrator.TextEvent
	commands  []orchestrator.CommandEvent
	callbacks []orchestrator.CallbackEvent
}

func (s *stubTurns) HandleText(_ context.Context, ev orchestrator.TextEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, ev)
	return nil
}

func (s *stubTurns) HandleCommand(_ context.Context, ev orchestrator.CommandEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commands = append(s.commands, ev)
	return nil
}

func (s *stubTurns) HandleCallback(_ context.Context, ev orchestrator.CallbackEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks = append(s.callbacks, ev)
	return errors.New("ignored by the handler")
}

func newTestHandler() (*Handler, *fakeBot, *stubTurns) {
	bot, turns := &fakeBot{}, &stubTurns{}
	return NewHandler(bot, turns, orchestrator.NewMailbox(zerolog.Nop()), zerolog.Nop()), bot, turns
}

func commandMessage(userID int64, text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		From:     &tgbotapi.User{ID: userID, FirstName: "Ann"},
		Chat:     &tgbotapi.Chat{ID: userID},
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(text)}},
	}
}

func TestDispatchText(t *testing.T) {
	h, _, turns := newTestHandler()
	at := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)

	h.Dispatch(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{
		From: &tgbotapi.User{ID: 5, FirstName: "Ann"},
		Chat: &tgbotapi.Chat{ID: 5},
		Text: "Привіт",
		Date: int(at.Unix()),
	}})
	h.Mailbox.Close()

	require.Len(t, turns.texts, 1)
	ev := turns.texts[0]
	require.Equal(t, int64(5), ev.UserID)
	require.Equal(t, "Ann", ev.DisplayName)
	require.Equal(t, "Привіт", ev.Text)
	require.True(t, at.Equal(ev.At))
}

func TestDispatchCommands(t *testing.T) {
	h, _, turns := newTestHandler()

	for _, text := range []string{"/start", "/mood", "/sos", "/stats", "/weather"} {
		h.Dispatch(context.Background(), tgbotapi.Update{Message: commandMessage(5, text)})
	}
	h.Mailbox.Close()

	var got []models.Command
	for _, ev := range turns.commands {
		got = append(got, ev.Command)
	}
	require.Equal(t, []models.Command{
		models.CommandStart, models.CommandMoodCheck, models.CommandSOS, models.CommandStats, models.Command("weather"),
	}, got)
	require.Empty(t, turns.texts)
}

func TestDispatchIgnoresBotsAndEmpty(t *testing.T) {
	h, _, turns := newTestHandler()

	h.Dispatch(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{From: &tgbotapi.User{ID: 1, IsBot: true}, Text: "hi"}})
	h.Dispatch(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{From: &tgbotapi.User{ID: 1}}})
	h.Dispatch(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{Text: "no sender"}})
	h.Mailbox.Close()

	require.Empty(t, turns.texts)
}

func TestDispatchCallbackAnswersAndForwards(t *testing.T) {
	h, bot, turns := newTestHandler()

	h.Dispatch(context.Background(), tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb1",
		From:    &tgbotapi.User{ID: 9, FirstName: "Bob"},
		Message: &tgbotapi.Message{MessageID: 77},
		Data:    "mood_3",
	}})
	h.Mailbox.Close()

	require.Len(t, bot.requests, 1)
	answer, ok := bot.requests[0].(tgbotapi.CallbackConfig)
	require.True(t, ok)
	require.Equal(t, "cb1", answer.CallbackQueryID)

	require.Equal(t, []orchestrator.CallbackEvent{{UserID: 9, DisplayName: "Bob", Data: "mood_3", MessageID: 77}}, turns.callbacks)
}

func TestDispatchAfterCloseDrops(t *testing.T) {
	h, _, turns := newTestHandler()
	h.Mailbox.Close()

	h.Dispatch(context.Background(), tgbotapi.Update{Message: commandMessage(1, "/start")})
	require.Empty(t, turns.commands)
}

func TestListenStopsOnClosedChannel(t *testing.T) {
	h, _, turns := newTestHandler()
	updates := make(chan tgbotapi.Update, 1)
	updates <- tgbotapi.Update{Message: commandMessage(1, "/sos")}
	close(updates)

	h.Listen(context.Background(), updates)
	h.Mailbox.Close()
	require.Len(t, turns.commands, 1)
}

func TestSinkSendsKeyboard(t *testing.T) {
	bot := &fakeBot{}
	sink := NewTelegramSink(bot, 0, zerolog.Nop())

	require.NoError(t, sink.Send(context.Background(), models.Outbound{
		UserID:  5,
		Text:    messages.MoodPrompt,
		Options: messages.MoodKeyboard(),
	}))

	require.Len(t, bot.sent, 1)
	msg, ok := bot.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	require.Equal(t, int64(5), msg.ChatID)
	require.Empty(t, msg.ParseMode)

	kb, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, kb.InlineKeyboard, 3)
	require.Len(t, kb.InlineKeyboard[2], 4)
	require.Equal(t, "mood_10", *kb.InlineKeyboard[2][3].CallbackData)
}

func TestSinkPlainAndMarkdown(t *testing.T) {
	bot := &fakeBot{}
	sink := NewTelegramSink(bot, 100, zerolog.Nop())

	require.NoError(t, sink.Send(context.Background(), models.Outbound{UserID: 5, Text: "hi"}))
	require.NoError(t, sink.Send(context.Background(), models.Outbound{UserID: 5, Text: messages.SOS, Markdown: true}))

	plain := bot.sent[0].(tgbotapi.MessageConfig)
	require.Nil(t, plain.ReplyMarkup)
	md := bot.sent[1].(tgbotapi.MessageConfig)
	require.Equal(t, tgbotapi.ModeMarkdown, md.ParseMode)
}

func TestSinkEditsWhenAsked(t *testing.T) {
	bot := &fakeBot{}
	sink := NewTelegramSink(bot, 0, zerolog.Nop())

	require.NoError(t, sink.Send(context.Background(), models.Outbound{UserID: 5, Text: "8/10", EditMessageID: 12}))
	edit, ok := bot.sent[0].(tgbotapi.EditMessageTextConfig)
	require.True(t, ok)
	require.Equal(t, 12, edit.MessageID)
	require.Equal(t, "8/10", edit.Text)
}

func TestSinkEditFailureSendsNew(t *testing.T) {
	bot := &fakeBot{sendErr: func(c tgbotapi.Chattable) error {
		if _, ok := c.(tgbotapi.EditMessageTextConfig); ok {
			return errors.New("message can't be edited")
		}
		return nil
	}}
	sink := NewTelegramSink(bot, 0, zerolog.Nop())

	require.NoError(t, sink.Send(context.Background(), models.Outbound{UserID: 5, Text: "8/10", EditMessageID: 12}))
	require.Len(t, bot.sent, 1)
	_, ok := bot.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
}

func TestSinkError(t *testing.T) {
	bot := &fakeBot{sendErr: func(tgbotapi.Chattable) error { return errors.New("Forbidden: bot was blocked by the user") }}
	sink := NewTelegramSink(bot, 0, zerolog.Nop())

	err := sink.Send(context.Background(), models.Outbound{UserID: 5, Text: "hi"})
	require.ErrorContains(t, err, "blocked")
}

func TestSinkHonoursContext(t *testing.T) {
	sink := NewTelegramSink(&fakeBot{}, 0.001, zerolog.Nop())
	require.NoError(t, sink.Send(context.Background(), models.Outbound{UserID: 5, Text: "first"}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.Error(t, sink.Send(ctx, models.Outbound{UserID: 5, Text: "second"}))
}

func TestRegisterCommands(t *testing.T) {
	bot := &fakeBot{}
	require.NoError(t, RegisterCommands(bot))
	cfg, ok := bot.requests[0].(tgbotapi.SetMyCommandsConfig)
	require.True(t, ok)
	require.Len(t, cfg.Commands, len(BotCommands))
}
