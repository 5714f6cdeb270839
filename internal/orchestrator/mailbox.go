package orchestrator

import (
	"sync"

	"github.com/rs/zerolog"
)

// Mailbox runs jobs one at a time per user, in the order they were posted.
// Different users are served in parallel. A user's goroutine exits as soon as
// their queue is empty.
type Mailbox struct {
	mu     sync.Mutex
	queues map[int64][]func()
	closed bool
	wg     sync.WaitGroup
	log    zerolog.Logger
}

func NewMailbox(log zerolog.Logger) *Mailbox {
	return &Mailbox{queues: make(map[int64][]func()), log: log}
}

// Post queues job for userID. It returns false once the mailbox is closed.
func (m *Mailbox) Post(userID int64, job func()) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	q, busy := m.queues[userID]
	m.queues[userID] = append(q, job)
	if !busy {
		m.wg.Add(1)
		go m.drain(userID)
	}
	return true
}

func (m *Mailbox) drain(userID int64) {
	defer m.wg.Done()
	for {
		m.mu.Lock()
		q := m.queues[userID]
		if len(q) == 0 {
			delete(m.queues, userID)
			m.mu.Unlock()
			return
		}
		job := q[0]
		q[0] = nil
		m.queues[userID] = q[1:]
		m.mu.Unlock()

		m.run(userID, job)
	}
}

func (m *Mailbox) run(userID int64, job func()) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error().Int64("user", userID).Interface("panic", r).Msg("mailbox job panicked")
		}
	}()
	job()
}

// Active is the number of users with queued or running jobs.
func (m *Mailbox) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queues)
}

// Close rejects new jobs and waits for queued ones to finish.
func (m *Mailbox) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.wg.Wait()
}
