// Package worker persists workout history in the background so the
// session state machine never waits on storage.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
	"github.com/ewilliams-labs/cadence/internal/core/ports"
)

const defaultSaveTimeout = 10 * time.Second

// Job is one history snapshot to write.
type Job struct {
	Sessions []domain.WorkoutSession
}

// Pool manages background workers that write history snapshots.
type Pool struct {
	repo        ports.HistoryRepository
	logger      logrus.FieldLogger
	saveTimeout time.Duration
	jobs        chan Job
	wg          sync.WaitGroup

	mu      sync.RWMutex
	stopped bool
}

// NewPool creates a pool with the given queue size. Call Start before
// submitting.
func NewPool(repo ports.HistoryRepository, queueSize int, logger logrus.FieldLogger) *Pool {
	if queueSize < 1 {
		queueSize = 1
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Pool{
		repo:        repo,
		logger:      logger,
		saveTimeout: defaultSaveTimeout,
		jobs:        make(chan Job, queueSize),
	}
}

// Start launches the worker goroutines.
func (p *Pool) Start(workers int) {
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for job := range p.jobs {
				p.processJob(job)
			}
		}()
	}
}

// Stop closes the queue and waits for queued jobs to finish. Later
// submissions are dropped.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.jobs)
	p.mu.Unlock()

	p.wg.Wait()
}

// Submit queues a job without blocking. It reports false when the job was
// dropped.
func (p *Pool) Submit(job Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		p.logger.Warnf("worker: pool stopped, dropping history snapshot of %d sessions", len(job.Sessions))
		return false
	}
	select {
	case p.jobs <- job:
		return true
	default:
		p.logger.Warnf("worker: queue full, dropping history snapshot of %d sessions", len(job.Sessions))
		return false
	}
}

// Persist satisfies workout.Persister.
func (p *Pool) Persist(sessions []domain.WorkoutSession) {
	p.Submit(Job{Sessions: sessions})
}

func (p *Pool) processJob(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), p.saveTimeout)
	defer cancel()

	if err := p.repo.SaveSessions(ctx, job.Sessions); err != nil {
		p.logger.Warnf("worker: failed to save history: %v", err)
		return
	}
	p.logger.Debugf("worker: saved %d sessions", len(job.Sessions))
}
