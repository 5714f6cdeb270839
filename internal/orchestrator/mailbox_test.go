package orchestrator

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestMailboxKeepsPerUserOrder(t *testing.T) {
	m := NewMailbox(zerolog.Nop())

	var mu sync.Mutex
	got := map[int64][]int{}
	for i := 0; i < 200; i++ {
		user := int64(i % 3)
		require.True(t, m.Post(user, func() {
			mu.Lock()
			got[user] = append(got[user], i)
			mu.Unlock()
		}))
	}
	m.Close()

	for user, seq := range got {
		for j := 1; j < len(seq); j++ {
			require.Less(t, seq[j-1], seq[j], "user %d out of order", user)
		}
	}
	require.Equal(t, 0, m.Active())
}

func TestMailboxUsersRunInParallel(t *testing.T) {
	m := NewMailbox(zerolog.Nop())
	defer m.Close()

	other := make(chan struct{})
	done := make(chan struct{})
	m.Post(1, func() {
		select {
		case <-other:
			close(done)
		case <-time.After(2 * time.Second):
		}
	})
	m.Post(2, func() { close(other) })

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("user 1 was blocked by user 2")
	}
}

func TestMailboxSurvivesPanic(t *testing.T) {
	m := NewMailbox(zerolog.Nop())

	ran := make(chan struct{})
	m.Post(1, func() { panic("boom") })
	m.Post(1, func() { close(ran) })
	m.Close()

	select {
	case <-ran:
	default:
		t.Fatal("job after panic did not run")
	}
}

func TestMailboxRejectsAfterClose(t *testing.T) {
	m := NewMailbox(zerolog.Nop())
	m.Close()
	require.False(t, m.Post(1, func() {}))
}
