package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMustNewRegistersAll(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := MustNew(reg)

	m.Turns.WithLabelValues("text").Inc()
	m.Fallbacks.WithLabelValues("timeout").Inc()
	m.Achievements.WithLabelValues("Завершувач").Inc()
	m.Outreach.WithLabelValues("morningCheckin", "sent").Add(2)
	m.StorageErrors.WithLabelValues("record_message").Inc()

	n, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, 2.0, testutil.ToFloat64(m.Outreach.WithLabelValues("morningCheckin", "sent")))
}

func TestMustNewPanicsOnDoubleRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	MustNew(reg)
	require.Panics(t, func() { MustNew(reg) })
}
