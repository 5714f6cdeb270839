package orchestrator

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"telegram-support-bot/internal/engagement"
	"telegram-support-bot/internal/models"
	"telegram-support-bot/internal/storage"
)

// TickReport counts what a tick did.
type TickReport struct {
	Planned int
	Sent    int
	Failed  int
}

// HandleTick plans the tick and fans the sends out with bounded concurrency.
// Every send is retried once; one user's failure never stops the others.
func (o *Orchestrator) HandleTick(ctx context.Context, kind models.TickKind) (TickReport, error) {
	log := o.log.With().Str("turn", uuid.NewString()).Str("tick", string(kind)).Logger()
	if _, ok := models.ParseTickKind(string(kind)); !ok {
		return TickReport{}, fmt.Errorf("orchestrator: unknown tick %q", kind)
	}
	o.metrics.Turns.WithLabelValues("tick").Inc()

	plan, err := o.planner.Plan(ctx, kind)
	if err != nil {
		o.metrics.StorageErrors.WithLabelValues("plan_tick").Inc()
		log.Error().Err(err).Msg("tick planning failed")
		return TickReport{}, fmt.Errorf("%w: plan %s: %w", ErrStorage, kind, err)
	}

	slot, sample := patternSlot(kind)
	day := o.planner.Today()

	var sent, failed atomic.Int64
	var g errgroup.Group
	g.SetLimit(o.concurrency)
	for _, p := range plan {
		g.Go(func() error {
			if sample {
				if err := o.store.UpsertMoodPattern(ctx, p.User.ID, day, slot, p.User.MoodScore); err != nil {
					o.metrics.StorageErrors.WithLabelValues("upsert_mood_pattern").Inc()
					log.Error().Err(err).Int64("user", p.User.ID).Msg("mood pattern not stored")
				}
			}
			if o.deliver(ctx, log, kind, p) {
				sent.Add(1)
			} else {
				failed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	r := TickReport{Planned: len(plan), Sent: int(sent.Load()), Failed: int(failed.Load())}
	log.Info().Int("planned", r.Planned).Int("sent", r.Sent).Int("failed", r.Failed).Msg("tick done")
	return r, nil
}

func (o *Orchestrator) deliver(ctx context.Context, log zerolog.Logger, kind models.TickKind, p engagement.Outreach) bool {
	ulog := log.With().Int64("user", p.User.ID).Logger()
	err := o.sink.Send(ctx, p.Command)
	if err != nil {
		ulog.Warn().Err(err).Msg("outreach send failed, retrying")
		err = o.sink.Send(ctx, p.Command)
	}
	status := "sent"
	if err != nil {
		status = "failed"
		ulog.Warn().Err(err).Msg("outreach send failed")
	}
	o.metrics.Outreach.WithLabelValues(string(kind), status).Inc()
	return err == nil
}

func patternSlot(kind models.TickKind) (storage.PatternSlot, bool) {
	switch kind {
	case models.TickMorningCheckin:
		return storage.SlotMorning, true
	case models.TickEveningReflection:
		return storage.SlotEvening, true
	}
	return "", false
}
