package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"

	"telegram-support-bot/internal/models"
	"telegram-support-bot/internal/orchestrator"
)

// Crontabs maps each tick to its local-time schedule.
var Crontabs = map[models.TickKind]string{
	models.TickMorningCheckin:    "0 9 * * *",
	models.TickEveningReflection: "0 21 * * *",
	models.TickWeeklyAnalysis:    "0 19 * * 0",
}

// Ticker is what a job fires.
type Ticker interface {
	HandleTick(ctx context.Context, kind models.TickKind) (orchestrator.TickReport, error)
}

// Start registers one singleton-mode job per tick and starts the scheduler.
// A tick still running when its next run comes up is skipped, not stacked.
func Start(ctx context.Context, t Ticker, loc *time.Location, log zerolog.Logger) (gocron.Scheduler, error) {
	if loc == nil {
		loc = time.Local
	}
	// Создаём планировщик в часовом поясе бота
	s, err := gocron.NewScheduler(gocron.WithLocation(loc))
	if err != nil {
		return nil, err
	}

	// Регистрируем по задаче на каждый тик
	for _, kind := range models.TickKinds {
		_, err = s.NewJob(
			gocron.CronJob(Crontabs[kind], false),
			gocron.NewTask(func() {
				if _, err := t.HandleTick(ctx, kind); err != nil {
					log.Error().Err(err).Str("tick", string(kind)).Msg("tick failed")
				}
			}),
			gocron.WithName(string(kind)),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			_ = s.Shutdown()
			return nil, err
		}
	}

	// Запускаем планировщик
	s.Start()
	return s, nil
}
