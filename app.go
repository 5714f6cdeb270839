package main

import (
	"context"
	"errors"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"telegram-support-bot/internal/achievements"
	"telegram-support-bot/internal/config"
	"telegram-support-bot/internal/engagement"
	"telegram-support-bot/internal/handlers"
	"telegram-support-bot/internal/messages"
	"telegram-support-bot/internal/metrics"
	"telegram-support-bot/internal/mood"
	"telegram-support-bot/internal/orchestrator"
	"telegram-support-bot/internal/reply"
	"telegram-support-bot/internal/storage"
	"telegram-support-bot/internal/utils"
)

var errNoProvider = errors.New("reply: OPENAI_API_KEY not set")

// app is the wired process: every collaborator built once from config.
type app struct {
	cfg  config.Config
	log  zerolog.Logger
	db   *storage.DB
	bot  *tgbotapi.BotAPI
	reg  *prometheus.Registry
	orch *orchestrator.Orchestrator
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := utils.SetupLogger(cfg.LogLevel)

	db, err := storage.New(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	bot, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.MustNew(reg)

	if !cfg.OutreachAllUsers {
		if err := seedAdmins(context.Background(), db, cfg.AdminIDs); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	loc := cfg.Location()
	planner := engagement.New(db, eligibility(cfg), loc, log)

	orch := orchestrator.New(db, mood.NewDefaultScorer(), generator(cfg, log),
		handlers.NewTelegramSink(bot, cfg.SendRate, log),
		orchestrator.WithDetector(achievements.NewDefaultDetector()),
		orchestrator.WithPlanner(planner),
		orchestrator.WithMetrics(m),
		orchestrator.WithLogger(log),
		orchestrator.WithLocation(loc),
		orchestrator.WithReplyTimeout(cfg.ReplyTimeout),
		orchestrator.WithRecordBotReplies(cfg.RecordBotReplies),
		orchestrator.WithOutreachConcurrency(cfg.OutreachConcurrency),
	)

	return &app{cfg: cfg, log: log, db: db, bot: bot, reg: reg, orch: orch}, nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		a.log.Warn().Err(err).Msg("db close")
	}
}

// eligibility keeps outreach on the operator list unless it is explicitly
// opened to every recently active user.
func eligibility(cfg config.Config) storage.Criteria {
	if cfg.OutreachAllUsers {
		return engagement.ActiveWithin(cfg.ActiveWindow(), time.Now)
	}
	return engagement.Admins(cfg.AdminIDs)
}

// seedAdmins makes configured operators eligible for outreach before they
// ever write to the bot.
func seedAdmins(ctx context.Context, db *storage.DB, ids []int64) error {
	for _, id := range ids {
		if err := db.EnsureUser(ctx, id, messages.DefaultName); err != nil {
			return err
		}
	}
	return nil
}

func generator(cfg config.Config, log zerolog.Logger) reply.Generator {
	if cfg.OpenAIKey == "" {
		log.Warn().Msg("no OpenAI key, every reply will use the fallback texts")
		return reply.GeneratorFunc(func(context.Context, reply.Request) (string, error) {
			return "", errNoProvider
		})
	}
	return reply.NewOpenAIGenerator(cfg.OpenAIKey,
		reply.WithModel(cfg.OpenAIModel),
		reply.WithBaseURL(cfg.OpenAIBaseURL),
	)
}
