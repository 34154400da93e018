package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
	"github.com/ewilliams-labs/cadence/internal/core/ports"
	"github.com/ewilliams-labs/cadence/internal/events"
	"github.com/ewilliams-labs/cadence/internal/goroutine"
)

// SessionTracker is the workout state machine as the orchestrator sees it.
type SessionTracker interface {
	Start(targetBPM int, sessionType domain.SessionType, duration time.Duration) (domain.WorkoutSession, error)
	Stop() (domain.WorkoutSession, bool)
	Current() (domain.WorkoutSession, bool)
	AddSongToSessionID(sessionID, title string) bool
}

// Metronome is the click scheduler as the orchestrator sees it.
type Metronome interface {
	Start(bpm int) error
	Stop()
	SetBPM(bpm int) error
}

// OrchestratorOptions wires the collaborators of an Orchestrator.
type OrchestratorOptions struct {
	Catalog   ports.CatalogClient
	Matcher   *Matcher
	Workouts  SessionTracker
	Metronome Metronome
	Notices   *Notices
	DeviceID  string
	Logger    logrus.FieldLogger
}

// Orchestrator coordinates a run: the workout clock, the metronome, song
// matching and playback.
type Orchestrator struct {
	catalog   ports.CatalogClient
	matcher   *Matcher
	workouts  SessionTracker
	metronome Metronome
	notices   *Notices
	deviceID  string
	logger    logrus.FieldLogger

	// OnSongs publishes every match result, including fallbacks.
	OnSongs *events.Feed[MatchResult]

	mu        sync.Mutex
	runCancel context.CancelFunc
	matching  sync.WaitGroup
}

// NewOrchestrator constructs an Orchestrator.
func NewOrchestrator(opts OrchestratorOptions) *Orchestrator {
	o := &Orchestrator{
		catalog:   opts.Catalog,
		matcher:   opts.Matcher,
		workouts:  opts.Workouts,
		metronome: opts.Metronome,
		notices:   opts.Notices,
		deviceID:  opts.DeviceID,
		logger:    opts.Logger,
		OnSongs:   events.NewFeed[MatchResult](true),
	}
	if o.logger == nil {
		o.logger = logrus.StandardLogger()
	}
	if o.notices == nil {
		o.notices = NewNotices(NoticeTTL)
	}
	if o.matcher == nil {
		o.matcher = NewMatcher(o.catalog, MatcherOptions{Logger: o.logger})
	}
	return o
}

// Notices exposes the notice board the orchestrator reports to.
func (o *Orchestrator) Notices() *Notices {
	return o.notices
}

// StartRun opens a workout session, starts the metronome at the target
// rate and loads matching songs in the background.
func (o *Orchestrator) StartRun(ctx context.Context, bpm int, sessionType domain.SessionType, duration time.Duration) (domain.WorkoutSession, error) {
	session, err := o.workouts.Start(bpm, sessionType, duration)
	if err != nil {
		return domain.WorkoutSession{}, fmt.Errorf("service: failed to start workout: %w", err)
	}

	// SetBPM retunes a metronome already clicking at another rate; Start
	// is a no-op in that case.
	if err := o.metronome.SetBPM(bpm); err != nil {
		o.logger.Warnf("service: metronome rate not set: %v", err)
	}
	if err := o.metronome.Start(bpm); err != nil {
		o.logger.Warnf("service: metronome did not start: %v", err)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	o.mu.Lock()
	if o.runCancel != nil {
		o.runCancel()
	}
	o.runCancel = cancel
	o.mu.Unlock()

	o.matching.Add(1)
	goroutine.SafeGo(o.logger, "run-match", func() {
		defer o.matching.Done()
		o.LoadSongs(runCtx, bpm)
	})

	return session, nil
}

// StopRun ends the session, silences the metronome and pauses playback.
// It reports false when no run was active.
func (o *Orchestrator) StopRun(ctx context.Context) (domain.WorkoutSession, bool) {
	o.mu.Lock()
	if o.runCancel != nil {
		o.runCancel()
		o.runCancel = nil
	}
	o.mu.Unlock()

	session, ok := o.workouts.Stop()
	o.metronome.Stop()

	if ok && o.catalog.Authenticated() {
		if err := o.catalog.Pause(ctx, o.deviceID); err != nil {
			o.logger.Warnf("service: pause after run failed: %v", err)
			o.notices.Report(err)
		}
	}
	return session, ok
}

// SetBPM retunes the metronome.
func (o *Orchestrator) SetBPM(bpm int) error {
	return o.metronome.SetBPM(bpm)
}

// LoadSongs matches songs for bpm and publishes the result. Catalog
// failures become a notice; the result then holds the fallback list.
// Nothing is reported or published once ctx is done, so a run stopped
// mid-search leaves the song list as it was.
func (o *Orchestrator) LoadSongs(ctx context.Context, bpm int) MatchResult {
	res := o.matcher.SongsForBPM(ctx, bpm)
	if ctx.Err() != nil {
		o.logger.Debugf("service: song load for %d BPM canceled", bpm)
		return res
	}
	if res.Err != nil {
		o.notices.Report(res.Err)
	}
	o.OnSongs.Publish(res)
	return res
}

// LoadDefaultSongs loads songs at the default rate, as done right after
// sign-in.
func (o *Orchestrator) LoadDefaultSongs(ctx context.Context) MatchResult {
	return o.LoadSongs(ctx, domain.DefaultBPM)
}

// Songs returns the latest match result.
func (o *Orchestrator) Songs() (MatchResult, bool) {
	return o.OnSongs.Last()
}

// PlaySong starts song on the catalog player and logs it against the
// session that was open when the request was made.
func (o *Orchestrator) PlaySong(ctx context.Context, song domain.Song) error {
	session, active := o.workouts.Current()

	if err := o.catalog.Play(ctx, song.URI, o.deviceID); err != nil {
		o.notices.Report(err)
		return fmt.Errorf("service: failed to play %q: %w", song.Title, err)
	}

	if active && !o.workouts.AddSongToSessionID(session.ID, song.Title) {
		o.logger.Debugf("service: session %s ended before %q started", session.ID, song.Title)
	}
	return nil
}

// RandomSong picks a song near bpm without playing it.
func (o *Orchestrator) RandomSong(bpm int) (domain.Song, error) {
	return o.matcher.RandomSongForBPM(bpm)
}

// PlayRandom plays a random song near bpm.
func (o *Orchestrator) PlayRandom(ctx context.Context, bpm int) (domain.Song, error) {
	song, err := o.matcher.RandomSongForBPM(bpm)
	if err != nil {
		o.notices.Report(err)
		return domain.Song{}, fmt.Errorf("service: no song for %d BPM: %w", bpm, err)
	}
	if err := o.PlaySong(ctx, song); err != nil {
		return domain.Song{}, err
	}
	return song, nil
}

// Pause pauses the catalog player.
func (o *Orchestrator) Pause(ctx context.Context) error {
	if err := o.catalog.Pause(ctx, o.deviceID); err != nil {
		o.notices.Report(err)
		return fmt.Errorf("service: pause failed: %w", err)
	}
	return nil
}

// Resume resumes the catalog player.
func (o *Orchestrator) Resume(ctx context.Context) error {
	if err := o.catalog.Resume(ctx, o.deviceID); err != nil {
		o.notices.Report(err)
		return fmt.Errorf("service: resume failed: %w", err)
	}
	return nil
}

// Shutdown stops any run and waits for background matching to return.
func (o *Orchestrator) Shutdown(ctx context.Context) {
	o.StopRun(ctx)
	o.matching.Wait()
}
