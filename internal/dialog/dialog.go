// Package dialog assembles the bounded context handed to reply generation.
package dialog

import (
	"context"

	"github.com/rs/zerolog"

	"telegram-support-bot/internal/models"
)

// WindowSize is the number of recent messages in a context.
const WindowSize = 10

// Context is what reply generation sees about a user.
type Context struct {
	Stage          models.Stage     `json:"stage"`
	LastMood       int              `json:"lastMood"`
	RecentMessages []models.Message `json:"recentMessages"`
}

// Default is the context used when nothing can be read.
func Default() Context {
	return Context{
		Stage:          models.StageOnboarding,
		LastMood:       models.NeutralMood,
		RecentMessages: []models.Message{},
	}
}

// Source is the read side of the user store.
type Source interface {
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetContextWindow(ctx context.Context, userID int64, limit int) ([]models.Message, error)
}

// Aggregator builds contexts. It never fails: unknown users and read errors
// degrade to Default values.
type Aggregator struct {
	src Source
	log zerolog.Logger
}

func NewAggregator(src Source, log zerolog.Logger) *Aggregator {
	return &Aggregator{src: src, log: log}
}

// Build returns the context for userID.
func (a *Aggregator) Build(ctx context.Context, userID int64) Context {
	out := Default()

	u, err := a.src.GetUser(ctx, userID)
	if err != nil {
		// unknown user is the common onboarding case, not worth a warning
		a.log.Debug().Err(err).Int64("user", userID).Msg("context: user unavailable, using defaults")
		return out
	}
	if u.Stage != "" {
		out.Stage = u.Stage
	}
	out.LastMood = models.ClampMood(u.MoodScore)

	msgs, err := a.src.GetContextWindow(ctx, userID, WindowSize)
	if err != nil {
		a.log.Warn().Err(err).Int64("user", userID).Msg("context: history unavailable")
		return Default()
	}
	if len(msgs) > WindowSize {
		msgs = msgs[:WindowSize]
	}
	out.RecentMessages = msgs
	return out
}
