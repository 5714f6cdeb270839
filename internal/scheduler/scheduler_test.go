package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"telegram-support-bot/internal/models"
	"telegram-support-bot/internal/orchestrator"
)

type recordingTicker struct {
	mu    sync.Mutex
	kinds []models.TickKind
}

func (r *recordingTicker) HandleTick(_ context.Context, kind models.TickKind) (orchestrator.TickReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds = append(r.kinds, kind)
	return orchestrator.TickReport{}, nil
}

func TestStartRegistersEveryTick(t *testing.T) {
	kyiv, err := time.LoadLocation("Europe/Kyiv")
	require.NoError(t, err)

	s, err := Start(context.Background(), &recordingTicker{}, kyiv, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Shutdown() })

	jobs := s.Jobs()
	require.Len(t, jobs, len(models.TickKinds))

	names := map[string]bool{}
	for _, j := range jobs {
		names[j.Name()] = true

		next, err := j.NextRun()
		require.NoError(t, err)
		local := next.In(kyiv)
		require.Zero(t, local.Minute())
		switch models.TickKind(j.Name()) {
		case models.TickMorningCheckin:
			require.Equal(t, 9, local.Hour())
		case models.TickEveningReflection:
			require.Equal(t, 21, local.Hour())
		case models.TickWeeklyAnalysis:
			require.Equal(t, 19, local.Hour())
			require.Equal(t, time.Sunday, local.Weekday())
		}
	}
	for _, k := range models.TickKinds {
		require.True(t, names[string(k)], "missing job %s", k)
	}
}

func TestJobRunsTicker(t *testing.T) {
	r := &recordingTicker{}
	s, err := Start(context.Background(), r, time.UTC, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Shutdown() })

	for _, j := range s.Jobs() {
		if j.Name() == string(models.TickEveningReflection) {
			require.NoError(t, j.RunNow())
		}
	}
	require.Eventually(t, func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		return len(r.kinds) == 1 && r.kinds[0] == models.TickEveningReflection
	}, 2*time.Second, 10*time.Millisecond)
}
