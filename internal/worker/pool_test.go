package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
)

type stubRepo struct {
	mu      sync.Mutex
	saves   [][]domain.WorkoutSession
	err     error
	release chan struct{}
}

func (r *stubRepo) SaveSessions(_ context.Context, sessions []domain.WorkoutSession) error {
	if r.release != nil {
		<-r.release
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves = append(r.saves, sessions)
	return r.err
}

func (r *stubRepo) LoadSessions(context.Context) ([]domain.WorkoutSession, error) {
	return nil, nil
}

func (r *stubRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.saves)
}

func TestPool_PersistsAndDrainsOnStop(t *testing.T) {
	repo := &stubRepo{}
	logger, _ := logtest.NewNullLogger()
	p := NewPool(repo, 8, logger)
	p.Start(2)

	for i := 0; i < 5; i++ {
		p.Persist([]domain.WorkoutSession{{ID: "s"}})
	}
	p.Stop()

	assert.Equal(t, 5, repo.count())
	assert.False(t, p.Submit(Job{}), "submit after stop must drop")
	p.Stop()
}

func TestPool_DropsWhenQueueFull(t *testing.T) {
	repo := &stubRepo{release: make(chan struct{})}
	logger, hook := logtest.NewNullLogger()
	p := NewPool(repo, 1, logger)
	p.Start(1)

	// the worker picks up one job and blocks, one more fits in the queue
	require.True(t, p.Submit(Job{}))
	require.Eventually(t, func() bool { return len(p.jobs) == 0 }, time.Second, time.Millisecond)
	require.True(t, p.Submit(Job{}))
	assert.False(t, p.Submit(Job{}))

	close(repo.release)
	p.Stop()
	assert.Equal(t, 2, repo.count())

	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			warned = true
		}
	}
	assert.True(t, warned)
}

func TestPool_LogsSaveErrors(t *testing.T) {
	repo := &stubRepo{err: errors.New("disk full")}
	logger, hook := logtest.NewNullLogger()
	p := NewPool(repo, 1, logger)
	p.Start(1)
	p.Persist(nil)
	p.Stop()

	require.NotNil(t, hook.LastEntry())
	assert.Contains(t, hook.LastEntry().Message, "disk full")
}
