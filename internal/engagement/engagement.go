// Package engagement decides who gets proactive outreach on a tick and what
// they are sent. It keeps no state between ticks, so a tick may be re-run.
package engagement

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"telegram-support-bot/internal/messages"
	"telegram-support-bot/internal/models"
	"telegram-support-bot/internal/storage"
)

// Store is the read side the scheduler needs.
type Store interface {
	ListUsersForOutreach(ctx context.Context, c storage.Criteria) ([]models.User, error)
	WeeklySummary(ctx context.Context, userID int64, since time.Time, sinceDay string) (models.WeeklySummary, error)
}

// Outreach is one planned proactive message.
type Outreach struct {
	User    models.User
	Command models.Outbound
}

// ---------- eligibility -----------------------------------------------------

// Admins selects the configured operator ids. This is the current production
// policy until outreach is opened to everyone.
func Admins(ids []int64) storage.Criteria {
	return func(u models.User) bool { return slices.Contains(ids, u.ID) }
}

// ActiveWithin selects users seen during the last d.
func ActiveWithin(d time.Duration, now func() time.Time) storage.Criteria {
	return func(u models.User) bool { return now().Sub(u.LastInteractionAt) <= d }
}

// OptedIn wraps c so users who switched outreach off are always skipped.
func OptedIn(c storage.Criteria) storage.Criteria {
	return func(u models.User) bool {
		if u.Setting(models.SettingOutreachOff) == "true" {
			return false
		}
		return c == nil || c(u)
	}
}

// ---------- scheduler -------------------------------------------------------

type Scheduler struct {
	store    Store
	eligible storage.Criteria
	loc      *time.Location
	log      zerolog.Logger

	// Pick returns an index in [0,n). Defaults to a uniform random pick.
	Pick func(n int) int
	// Now defaults to time.Now.
	Now func() time.Time
}

func New(store Store, eligible storage.Criteria, loc *time.Location, log zerolog.Logger) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		store:    store,
		eligible: OptedIn(eligible),
		loc:      loc,
		log:      log,
		Pick:     rand.IntN,
		Now:      time.Now,
	}
}

// Today is the local calendar day used for mood pattern samples.
func (s *Scheduler) Today() string {
	return s.Now().In(s.loc).Format("2006-01-02")
}

// Plan returns exactly one outbound command per eligible user.
func (s *Scheduler) Plan(ctx context.Context, kind models.TickKind) ([]Outreach, error) {
	if _, ok := models.ParseTickKind(string(kind)); !ok {
		return nil, fmt.Errorf("engagement: unknown tick %q", kind)
	}
	users, err := s.store.ListUsersForOutreach(ctx, s.eligible)
	if err != nil {
		return nil, err
	}

	out := make([]Outreach, 0, len(users))
	for _, u := range users {
		out = append(out, Outreach{User: u, Command: s.command(ctx, kind, u)})
	}
	return out, nil
}

func (s *Scheduler) command(ctx context.Context, kind models.TickKind, u models.User) models.Outbound {
	cmd := models.Outbound{UserID: u.ID}
	switch kind {
	case models.TickMorningCheckin:
		cmd.Text = s.pick(messages.MorningVariants)
	case models.TickEveningReflection:
		cmd.Text = s.pick(messages.EveningVariants)
		cmd.Options = messages.EveningKeyboard
	case models.TickWeeklyAnalysis:
		cmd.Text = s.pick(messages.WeeklyVariants)
		now := s.Now()
		since := now.AddDate(0, 0, -7)
		summary, err := s.store.WeeklySummary(ctx, u.ID, since, since.In(s.loc).Format("2006-01-02"))
		if err != nil {
			s.log.Warn().Err(err).Int64("user", u.ID).Msg("weekly summary unavailable, sending opener only")
			break
		}
		cmd.Text += "\n\n" + messages.Stats(summary)
	}
	return cmd
}

func (s *Scheduler) pick(pool []string) string {
	if len(pool) == 1 {
		return pool[0]
	}
	i := s.Pick(len(pool))
	if i < 0 || i >= len(pool) {
		i = 0
	}
	return pool[i]
}
