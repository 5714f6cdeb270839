// Package reply produces the supportive answer to a user message.
package reply

import (
	"context"
	"errors"

	"telegram-support-bot/internal/dialog"
	"telegram-support-bot/internal/messages"
)

// ErrEmptyReply is returned when the provider answers with no usable text.
var ErrEmptyReply = errors.New("reply: empty response")

// Request carries everything a generator may use.
type Request struct {
	Context   dialog.Context `json:"context"`
	MoodScore int            `json:"moodScore"`
	Message   string         `json:"message"`
}

// Generator produces reply text. Any error, including a cancelled context,
// means the caller must fall back.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, req Request) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// Fallback picks the fixed reply for a mood band: <=3 supportive,
// >=8 celebratory, otherwise neutral.
func Fallback(mood int) string {
	switch {
	case mood <= 3:
		return messages.FallbackSupportive
	case mood >= 8:
		return messages.FallbackCelebratory
	default:
		return messages.FallbackNeutral
	}
}
