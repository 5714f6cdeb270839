// Package orchestrator turns inbound events and ticks into state changes and
// outbound commands. It holds no per-user state of its own; everything
// durable lives in the store.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"telegram-support-bot/internal/achievements"
	"telegram-support-bot/internal/dialog"
	"telegram-support-bot/internal/engagement"
	"telegram-support-bot/internal/messages"
	"telegram-support-bot/internal/metrics"
	"telegram-support-bot/internal/models"
	"telegram-support-bot/internal/mood"
	"telegram-support-bot/internal/reply"
	"telegram-support-bot/internal/storage"
)

// ErrStorage marks a turn that failed because the store did.
var ErrStorage = errors.New("orchestrator: storage failure")

const (
	defaultReplyTimeout = 15 * time.Second
	achievementsShown   = 20
)

// Store is everything the orchestrator reads and writes.
type Store interface {
	dialog.Source
	engagement.Store
	UpsertUser(ctx context.Context, id int64, displayName string) (*models.User, error)
	RecordMessage(ctx context.Context, m models.Message) error
	SetMood(ctx context.Context, userID int64, mood int) error
	UpdateSettings(ctx context.Context, userID int64, fn func(map[string]string)) (map[string]string, error)
	RecordAchievement(ctx context.Context, userID int64, title, description string) error
	ListAchievements(ctx context.Context, userID int64, limit int) ([]models.Achievement, error)
	UpsertMoodPattern(ctx context.Context, userID int64, day string, slot storage.PatternSlot, mood int) error
}

// Sink delivers outbound commands.
type Sink interface {
	Send(ctx context.Context, out models.Outbound) error
}

// TextEvent is a free-text message.
type TextEvent struct {
	UserID      int64
	DisplayName string
	Text        string
	At          time.Time
}

// CommandEvent is a slash command. Unknown commands keep their raw name.
type CommandEvent struct {
	UserID      int64
	DisplayName string
	Command     models.Command
}

// CallbackEvent is a button press. MessageID is the message carrying the
// keyboard, 0 when unknown.
type CallbackEvent struct {
	UserID      int64
	DisplayName string
	Data        string
	MessageID   int
}

type Orchestrator struct {
	store      Store
	scorer     mood.Scorer
	gen        reply.Generator
	sink       Sink
	aggregator *dialog.Aggregator
	detector   *achievements.Detector
	planner    *engagement.Scheduler
	metrics    *metrics.Metrics
	log        zerolog.Logger
	loc        *time.Location
	now        func() time.Time

	replyTimeout     time.Duration
	recordBotReplies bool
	concurrency      int
}

type Option func(*Orchestrator)

func WithDetector(d *achievements.Detector) Option { return func(o *Orchestrator) { o.detector = d } }
func WithPlanner(p *engagement.Scheduler) Option { return func(o *Orchestrator) { o.planner = p } }
func WithMetrics(m *metrics.Metrics) Option { return func(o *Orchestrator) { o.metrics = m } }
func WithLogger(l zerolog.Logger) Option { return func(o *Orchestrator) { o.log = l } }
func WithLocation(loc *time.Location) Option { return func(o *Orchestrator) { o.loc = loc } }
func WithClock(now func() time.Time) Option { return func(o *Orchestrator) { o.now = now } }

// WithReplyTimeout bounds a single reply generation call.
func WithReplyTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.replyTimeout = d
		}
	}
}

// WithRecordBotReplies logs generated replies as bot messages.
func WithRecordBotReplies(on bool) Option {
	return func(o *Orchestrator) { o.recordBotReplies = on }
}

// WithOutreachConcurrency caps parallel sends during a tick.
func WithOutreachConcurrency(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

func New(store Store, scorer mood.Scorer, gen reply.Generator, sink Sink, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:        store,
		scorer:       scorer,
		gen:          gen,
		sink:         sink,
		log:          zerolog.Nop(),
		loc:          time.Local,
		now:          time.Now,
		replyTimeout: defaultReplyTimeout,
		concurrency:  4,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.detector == nil {
		o.detector = achievements.NewDefaultDetector()
	}
	if o.metrics == nil {
		o.metrics = metrics.Nop()
	}
	if o.planner == nil {
		o.planner = engagement.New(store, nil, o.loc, o.log)
	}
	o.aggregator = dialog.NewAggregator(store, o.log)
	return o
}

func (o *Orchestrator) turnLog(userID int64) zerolog.Logger {
	return o.log.With().Str("turn", uuid.NewString()).Int64("user", userID).Logger()
}

func displayName(name string) string {
	if name = strings.TrimSpace(name); name == "" {
		return messages.DefaultName
	}
	return name
}

// ---------- free text -------------------------------------------------------

// HandleText runs one conversational turn. Only storage failures are
// returned; the user then gets an apology instead of a reply.
func (o *Orchestrator) HandleText(ctx context.Context, ev TextEvent) error {
	log := o.turnLog(ev.UserID)
	o.metrics.Turns.WithLabelValues("text").Inc()

	if _, err := o.store.UpsertUser(ctx, ev.UserID, displayName(ev.DisplayName)); err != nil {
		return o.storageFailure(ctx, log, ev.UserID, "upsert_user", err)
	}

	score := o.scorer.Score(ev.Text)
	at := ev.At
	if at.IsZero() {
		at = o.now()
	}
	err := o.store.RecordMessage(ctx, models.Message{
		UserID:    ev.UserID,
		Text:      ev.Text,
		MoodScore: score,
		CreatedAt: at,
		Type:      models.MessageUser,
	})
	if err != nil {
		return o.storageFailure(ctx, log, ev.UserID, "record_message", err)
	}

	req := reply.Request{
		Context:   o.aggregator.Build(ctx, ev.UserID),
		MoodScore: score,
		Message:   ev.Text,
	}
	text := o.generate(ctx, log, req)
	o.send(ctx, log, models.Outbound{UserID: ev.UserID, Text: text})

	if o.recordBotReplies {
		err := o.store.RecordMessage(ctx, models.Message{
			UserID:    ev.UserID,
			Text:      text,
			MoodScore: score,
			CreatedAt: o.now(),
			Type:      models.MessageBot,
		})
		if err != nil {
			o.metrics.StorageErrors.WithLabelValues("record_bot_reply").Inc()
			log.Error().Err(err).Msg("bot reply not recorded")
		}
	}

	for _, hit := range o.detector.Detect(ev.Text) {
		if err := o.store.RecordAchievement(ctx, ev.UserID, hit.Title, hit.Description); err != nil {
			return o.storageFailure(ctx, log, ev.UserID, "record_achievement", err)
		}
		o.metrics.Achievements.WithLabelValues(hit.Title).Inc()
		o.send(ctx, log, models.Outbound{
			UserID: ev.UserID,
			Text:   messages.AchievementAnnouncement(hit.Title, hit.Description),
		})
	}
	log.Debug().Int("mood", score).Msg("turn done")
	return nil
}

// generate never fails: errors, timeouts and blank answers become the
// mood-band fallback. The call runs detached so a generator that ignores
// its context still cannot hold the turn past the timeout.
func (o *Orchestrator) generate(ctx context.Context, log zerolog.Logger, req reply.Request) string {
	ctx, cancel := context.WithTimeout(ctx, o.replyTimeout)
	defer cancel()

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		text, err := o.gen.Generate(ctx, req)
		done <- result{text, err}
	}()

	var res result
	select {
	case res = <-done:
	case <-ctx.Done():
		res.err = ctx.Err()
	}
	if res.err == nil && strings.TrimSpace(res.text) == "" {
		res.err = reply.ErrEmptyReply
	}
	if res.err == nil {
		return strings.TrimSpace(res.text)
	}

	reason := "error"
	switch {
	case errors.Is(res.err, context.DeadlineExceeded):
		reason = "timeout"
	case errors.Is(res.err, reply.ErrEmptyReply):
		reason = "empty"
	}
	o.metrics.Fallbacks.WithLabelValues(reason).Inc()
	log.Warn().Err(res.err).Str("reason", reason).Msg("reply generation failed, using fallback")
	return reply.Fallback(req.MoodScore)
}

// ---------- commands --------------------------------------------------------

func (o *Orchestrator) HandleCommand(ctx context.Context, ev CommandEvent) error {
	log := o.turnLog(ev.UserID)
	o.metrics.Turns.WithLabelValues("command").Inc()

	name := displayName(ev.DisplayName)
	u, err := o.store.UpsertUser(ctx, ev.UserID, name)
	if err != nil {
		return o.storageFailure(ctx, log, ev.UserID, "upsert_user", err)
	}

	out := models.Outbound{UserID: ev.UserID}
	switch ev.Command {
	case models.CommandStart:
		out.Text = messages.Welcome(name)
	case models.CommandMoodCheck:
		out.Text, out.Options = messages.MoodPrompt, messages.MoodKeyboard()
	case models.CommandSOS:
		out.Text, out.Options = messages.SOS, messages.SOSKeyboard
		out.Markdown = true
	case models.CommandAchievements:
		return o.sendAchievements(ctx, log, ev.UserID)
	case models.CommandStats:
		now := o.now()
		since := now.AddDate(0, 0, -7)
		s, err := o.store.WeeklySummary(ctx, ev.UserID, since, since.In(o.loc).Format("2006-01-02"))
		if err != nil {
			return o.storageFailure(ctx, log, ev.UserID, "weekly_summary", err)
		}
		out.Text = messages.Stats(s)
	case models.CommandSettings:
		out.Text, out.Options = messages.Settings(u)
	default:
		log.Debug().Str("command", string(ev.Command)).Msg("unknown command")
		out.Text = messages.UnknownCommand
	}
	o.send(ctx, log, out)
	return nil
}

func (o *Orchestrator) sendAchievements(ctx context.Context, log zerolog.Logger, userID int64) error {
	list, err := o.store.ListAchievements(ctx, userID, achievementsShown)
	if err != nil {
		return o.storageFailure(ctx, log, userID, "list_achievements", err)
	}
	o.send(ctx, log, models.Outbound{UserID: userID, Text: messages.AchievementList(list)})
	return nil
}

// ---------- callbacks -------------------------------------------------------

// HandleMoodSelection stores an explicit check-in. No message is logged and
// the scorer is not consulted.
func (o *Orchestrator) HandleMoodSelection(ctx context.Context, ev CallbackEvent, selected int) error {
	log := o.turnLog(ev.UserID)
	o.metrics.Turns.WithLabelValues("mood").Inc()

	if selected < models.MinMood || selected > models.MaxMood {
		log.Debug().Int("mood", selected).Msg("mood selection out of range, ignored")
		return nil
	}
	if _, err := o.store.UpsertUser(ctx, ev.UserID, displayName(ev.DisplayName)); err != nil {
		return o.storageFailure(ctx, log, ev.UserID, "upsert_user", err)
	}
	if err := o.store.SetMood(ctx, ev.UserID, selected); err != nil {
		return o.storageFailure(ctx, log, ev.UserID, "set_mood", err)
	}
	o.send(ctx, log, models.Outbound{
		UserID:        ev.UserID,
		Text:          messages.MoodAck(selected),
		EditMessageID: ev.MessageID,
	})
	return nil
}

// HandleCallback dispatches a button press. Unrecognised data is ignored.
func (o *Orchestrator) HandleCallback(ctx context.Context, ev CallbackEvent) error {
	if n, ok := messages.ParseMoodCallback(ev.Data); ok {
		return o.HandleMoodSelection(ctx, ev, n)
	}

	log := o.turnLog(ev.UserID)
	switch ev.Data {
	case messages.CbTalkSOS, messages.CbShowAchievements, messages.CbSupportMode,
		messages.CbShareDay, messages.CbRateMood, messages.CbToggleOutreach:
	default:
		log.Debug().Str("data", ev.Data).Msg("unknown callback, ignored")
		return nil
	}
	o.metrics.Turns.WithLabelValues("callback").Inc()

	if _, err := o.store.UpsertUser(ctx, ev.UserID, displayName(ev.DisplayName)); err != nil {
		return o.storageFailure(ctx, log, ev.UserID, "upsert_user", err)
	}

	out := models.Outbound{UserID: ev.UserID}
	switch ev.Data {
	case messages.CbTalkSOS:
		out.Text = messages.TalkPrompt
	case messages.CbShowAchievements:
		return o.sendAchievements(ctx, log, ev.UserID)
	case messages.CbSupportMode:
		_, err := o.store.UpdateSettings(ctx, ev.UserID, func(s map[string]string) {
			s[models.SettingSupportMode] = "true"
		})
		if err != nil {
			return o.storageFailure(ctx, log, ev.UserID, "update_settings", err)
		}
		out.Text = messages.SupportModeOn
	case messages.CbShareDay:
		out.Text = messages.ShareDayPrompt
	case messages.CbRateMood:
		out.Text, out.Options = messages.MoodPrompt, messages.MoodKeyboard()
	case messages.CbToggleOutreach:
		s, err := o.store.UpdateSettings(ctx, ev.UserID, func(s map[string]string) {
			if s[models.SettingOutreachOff] == "true" {
				delete(s, models.SettingOutreachOff)
			} else {
				s[models.SettingOutreachOff] = "true"
			}
		})
		if err != nil {
			return o.storageFailure(ctx, log, ev.UserID, "update_settings", err)
		}
		out.Text = messages.OutreachToggled(s[models.SettingOutreachOff] == "true")
	}
	o.send(ctx, log, out)
	return nil
}

// ---------- plumbing --------------------------------------------------------

// send logs delivery failures and carries on; persisted state is unaffected.
func (o *Orchestrator) send(ctx context.Context, log zerolog.Logger, out models.Outbound) {
	if err := o.sink.Send(ctx, out); err != nil {
		log.Warn().Err(err).Msg("send failed")
	}
}

func (o *Orchestrator) storageFailure(ctx context.Context, log zerolog.Logger, userID int64, op string, err error) error {
	o.metrics.StorageErrors.WithLabelValues(op).Inc()
	log.Error().Err(err).Str("op", op).Msg("storage failure")
	o.send(ctx, log, models.Outbound{UserID: userID, Text: messages.Apology})
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}
