// Package workout tracks the running session: elapsed time, the optional
// countdown, completion and the songs played along the way.
package workout

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
	"github.com/ewilliams-labs/cadence/internal/events"
	"github.com/ewilliams-labs/cadence/internal/goroutine"
)

var (
	ErrSessionActive      = errors.New("workout: a session is already active")
	ErrDurationRequired   = errors.New("workout: timed session needs a duration")
	ErrInvalidBPM         = errors.New("workout: target BPM must be positive")
	ErrInvalidSessionType = errors.New("workout: unknown session type")
)

// Status is the coarse state of the manager.
type Status string

const (
	StatusIdle   Status = "idle"
	StatusActive Status = "active"
)

// State is a point-in-time view of the open session.
type State struct {
	Status        Status
	SessionID     string
	Type          domain.SessionType
	TargetBPM     int
	Elapsed       time.Duration
	Remaining     time.Duration
	ElapsedText   string
	RemainingText string
	Completion    float64
	SongsPlayed   int
}

// Persister receives the full history after every stop. Implementations
// must not block.
type Persister interface {
	Persist(sessions []domain.WorkoutSession)
}

// Options configures a Manager.
type Options struct {
	Persister    Persister
	Clock        func() time.Time
	TickInterval time.Duration
	Logger       logrus.FieldLogger
}

// Manager is the workout session state machine.
type Manager struct {
	persister    Persister
	now          func() time.Time
	tickInterval time.Duration
	logger       logrus.FieldLogger

	// OnState publishes a snapshot on every start, tick and stop. Tick
	// snapshots are delivered on the ticker goroutine; listeners must not
	// call Stop synchronously.
	OnState *events.Feed[State]
	// OnFinished publishes each finalized session.
	OnFinished *events.Feed[domain.WorkoutSession]

	mu      sync.Mutex
	session *domain.WorkoutSession
	history []domain.WorkoutSession
	quit    chan struct{}
	done    chan struct{}
}

// NewManager returns an idle manager.
func NewManager(opts Options) *Manager {
	m := &Manager{
		persister:    opts.Persister,
		now:          opts.Clock,
		tickInterval: opts.TickInterval,
		logger:       opts.Logger,
		OnState:      events.NewFeed[State](true),
		OnFinished:   events.NewFeed[domain.WorkoutSession](false),
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.tickInterval <= 0 {
		m.tickInterval = time.Second
	}
	if m.logger == nil {
		m.logger = logrus.StandardLogger()
	}
	return m
}

// Restore replaces the in-memory history, typically with what the
// repository loaded at startup.
func (m *Manager) Restore(history []domain.WorkoutSession) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = make([]domain.WorkoutSession, 0, len(history))
	for _, s := range history {
		m.history = append(m.history, s.Clone())
	}
}

// Start opens a new session. Timed sessions need a positive duration; the
// duration is ignored for free runs.
func (m *Manager) Start(targetBPM int, sessionType domain.SessionType, duration time.Duration) (domain.WorkoutSession, error) {
	if targetBPM <= 0 {
		return domain.WorkoutSession{}, ErrInvalidBPM
	}
	if !sessionType.Valid() {
		return domain.WorkoutSession{}, fmt.Errorf("%w: %q", ErrInvalidSessionType, sessionType)
	}
	if sessionType == domain.SessionTimed && duration <= 0 {
		return domain.WorkoutSession{}, ErrDurationRequired
	}
	if sessionType == domain.SessionFreeRun {
		duration = 0
	}

	m.mu.Lock()
	if m.session != nil {
		m.mu.Unlock()
		return domain.WorkoutSession{}, ErrSessionActive
	}

	s := &domain.WorkoutSession{
		ID:              uuid.New().String(),
		StartTime:       m.now(),
		TargetBPM:       targetBPM,
		Type:            sessionType,
		PlannedDuration: duration,
	}
	m.session = s
	quit, done := make(chan struct{}), make(chan struct{})
	m.quit, m.done = quit, done
	started := s.Clone()
	snap := m.snapshotLocked(s.StartTime)
	m.mu.Unlock()

	m.logger.Infof("workout: session %s started (%s, %d BPM, planned %v)", started.ID, sessionType, targetBPM, duration)
	m.OnState.Publish(snap)

	goroutine.SafeGo(m.logger, "workout-ticker", func() { m.runTicker(started.ID, quit, done) })
	return started, nil
}

// Stop finalizes the open session and returns it. It reports false when
// the manager was already idle. No tick is processed after Stop returns.
func (m *Manager) Stop() (domain.WorkoutSession, bool) {
	m.mu.Lock()
	if m.session == nil {
		m.mu.Unlock()
		return domain.WorkoutSession{}, false
	}
	finished, history := m.finalizeLocked(m.now())
	quit, done := m.quit, m.done
	m.quit, m.done = nil, nil
	idle := m.snapshotLocked(m.now())
	m.mu.Unlock()

	close(quit)
	<-done

	m.afterStop(finished, history, idle)
	return finished, true
}

// AddSongToSession appends title to the open session. It is a no-op when
// idle.
func (m *Manager) AddSongToSession(title string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session != nil {
		m.session.Songs = append(m.session.Songs, title)
	}
}

// AddSongToSessionID appends title only if sessionID is still the open
// session, so late results from a finished run are dropped.
func (m *Manager) AddSongToSessionID(sessionID, title string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil || m.session.ID != sessionID {
		return false
	}
	m.session.Songs = append(m.session.Songs, title)
	return true
}

// State returns a snapshot computed at the current clock reading.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked(m.now())
}

// Current returns a copy of the open session.
func (m *Manager) Current() (domain.WorkoutSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return domain.WorkoutSession{}, false
	}
	return m.session.Clone(), true
}

// CompletionPercentage is 0 for free runs and idle, otherwise the share of
// the planned duration elapsed, capped at 100.
func (m *Manager) CompletionPercentage() float64 {
	return m.State().Completion
}

// History returns copies of all finalized sessions, oldest first.
func (m *Manager) History() []domain.WorkoutSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneAll(m.history)
}

// Stats aggregates the history.
func (m *Manager) Stats() domain.WorkoutStats {
	return domain.ComputeStats(m.History())
}

func (m *Manager) runTicker(sessionID string, quit <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-quit:
			return
		case <-ticker.C:
			if finished := m.handleTick(sessionID, m.now()); finished {
				return
			}
		}
	}
}

// handleTick refreshes the session clock at now. It reports true when the
// session is over, either because the countdown ran out or because it was
// already stopped.
func (m *Manager) handleTick(sessionID string, now time.Time) bool {
	m.mu.Lock()
	if m.session == nil || m.session.ID != sessionID {
		m.mu.Unlock()
		return true
	}

	snap := m.snapshotLocked(now)
	if m.session.Type != domain.SessionTimed || snap.Remaining > 0 {
		m.mu.Unlock()
		m.OnState.Publish(snap)
		return false
	}

	// countdown expired: the 100% snapshot goes out before the stop
	finished, history := m.finalizeLocked(now)
	quit := m.quit
	m.quit, m.done = nil, nil
	idle := m.snapshotLocked(now)
	m.mu.Unlock()

	if quit != nil {
		close(quit)
	}
	m.OnState.Publish(snap)
	m.logger.Infof("workout: session %s completed its countdown", finished.ID)
	m.afterStop(finished, history, idle)
	return true
}

func (m *Manager) finalizeLocked(now time.Time) (domain.WorkoutSession, []domain.WorkoutSession) {
	s := m.session
	end := now
	s.EndTime = &end
	s.Duration = end.Sub(s.StartTime)
	if s.Duration < 0 {
		s.Duration = 0
	}
	finished := s.Clone()
	m.history = append(m.history, finished)
	m.session = nil
	return finished.Clone(), cloneAll(m.history)
}

func (m *Manager) afterStop(finished domain.WorkoutSession, history []domain.WorkoutSession, idle State) {
	m.logger.Infof("workout: session %s stopped after %s with %d songs", finished.ID, domain.FormatDuration(finished.Duration), len(finished.Songs))
	m.OnState.Publish(idle)
	m.OnFinished.Publish(finished)
	if m.persister != nil {
		m.persister.Persist(history)
	}
}

func (m *Manager) snapshotLocked(now time.Time) State {
	s := m.session
	if s == nil {
		return State{Status: StatusIdle, ElapsedText: domain.FormatDuration(0), RemainingText: domain.FormatDuration(0)}
	}

	elapsed := now.Sub(s.StartTime)
	if elapsed < 0 {
		elapsed = 0
	}
	st := State{
		Status:      StatusActive,
		SessionID:   s.ID,
		Type:        s.Type,
		TargetBPM:   s.TargetBPM,
		Elapsed:     elapsed,
		ElapsedText: domain.FormatDuration(elapsed),
		SongsPlayed: len(s.Songs),
	}
	if s.Type == domain.SessionTimed && s.PlannedDuration > 0 {
		st.Remaining = max(s.PlannedDuration-elapsed, 0)
		st.Completion = min(100, float64(elapsed)/float64(s.PlannedDuration)*100)
	}
	st.RemainingText = domain.FormatDuration(st.Remaining)
	return st
}

func cloneAll(sessions []domain.WorkoutSession) []domain.WorkoutSession {
	out := make([]domain.WorkoutSession, len(sessions))
	for i, s := range sessions {
		out[i] = s.Clone()
	}
	return out
}
