package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
	"github.com/ewilliams-labs/cadence/internal/core/ports"
	"github.com/ewilliams-labs/cadence/internal/workout"
)

// fakeMetronome mirrors the scheduler: Start does nothing while running.
type fakeMetronome struct {
	mu      sync.Mutex
	started []int
	stops   int
	bpm     int
	running bool
}

func (f *fakeMetronome) Start(bpm int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, bpm)
	if !f.running {
		f.running = true
		f.bpm = bpm
	}
	return nil
}

func (f *fakeMetronome) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	f.running = false
}

func (f *fakeMetronome) rate() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bpm
}

func (f *fakeMetronome) SetBPM(bpm int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bpm = bpm
	return nil
}

// hookedCatalog runs onPlay before delegating, to simulate a session
// change while the play request is in flight.
type hookedCatalog struct {
	*mockCatalog
	onPlay func()
}

func (h *hookedCatalog) Play(ctx context.Context, uri, deviceID string) error {
	if h.onPlay != nil {
		h.onPlay()
	}
	return h.mockCatalog.Play(ctx, uri, deviceID)
}

type orchestratorFixture struct {
	orch      *Orchestrator
	workouts  *workout.Manager
	metronome *fakeMetronome
	notices   *Notices
}

func newOrchestratorFixture(t *testing.T, catalog ports.CatalogClient) orchestratorFixture {
	t.Helper()
	logger, _ := logtest.NewNullLogger()
	f := orchestratorFixture{
		workouts:  workout.NewManager(workout.Options{TickInterval: time.Hour, Logger: logger}),
		metronome: &fakeMetronome{},
		notices:   NewNotices(time.Minute),
	}
	f.orch = NewOrchestrator(OrchestratorOptions{
		Catalog:   catalog,
		Matcher:   newTestMatcher(catalog),
		Workouts:  f.workouts,
		Metronome: f.metronome,
		Notices:   f.notices,
		Logger:    logger,
	})
	t.Cleanup(func() { f.orch.Shutdown(context.Background()) })
	return f
}

func TestStartRun_StartsEverythingAndLoadsSongs(t *testing.T) {
	f := newOrchestratorFixture(t, &mockCatalog{})

	session, err := f.orch.StartRun(context.Background(), 160, domain.SessionTimed, 20*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 160, session.TargetBPM)

	cur, ok := f.workouts.Current()
	require.True(t, ok)
	assert.Equal(t, session.ID, cur.ID)
	assert.Equal(t, []int{160}, f.metronome.started)

	require.Eventually(t, func() bool {
		_, ok := f.orch.Songs()
		return ok
	}, time.Second, time.Millisecond)
	res, _ := f.orch.Songs()
	assert.True(t, res.Fallback)
	assert.Equal(t, 160, res.BPM)
	_, hasNotice := f.notices.Current()
	assert.False(t, hasNotice, "signed-out fallback is not an error")
}

func TestStartRun_WorkoutErrorSkipsMetronome(t *testing.T) {
	f := newOrchestratorFixture(t, &mockCatalog{})

	_, err := f.orch.StartRun(context.Background(), 160, domain.SessionTimed, 0)
	assert.ErrorIs(t, err, workout.ErrDurationRequired)
	assert.Empty(t, f.metronome.started)
}

func TestStartRun_CatalogFailureBecomesNotice(t *testing.T) {
	catalog := &mockCatalog{
		authenticated: true,
		searchFn: func(context.Context, string) ([]domain.Track, error) {
			return nil, &ports.CatalogError{Kind: ports.KindNetwork, Message: "connection reset", Temporary: true}
		},
	}
	f := newOrchestratorFixture(t, catalog)

	_, err := f.orch.StartRun(context.Background(), 150, domain.SessionFreeRun, 0)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, ok := f.orch.Songs()
		return ok
	}, time.Second, time.Millisecond)
	notice, ok := f.notices.Current()
	require.True(t, ok)
	assert.Contains(t, notice.Message, "Network error")

	res, _ := f.orch.Songs()
	assert.True(t, res.Fallback)
	assert.ErrorIs(t, res.Err, ports.ErrNetwork)
}

func TestStopRun(t *testing.T) {
	catalog := &mockCatalog{authenticated: true}
	f := newOrchestratorFixture(t, catalog)

	_, ok := f.orch.StopRun(context.Background())
	assert.False(t, ok)
	assert.Zero(t, catalog.paused, "nothing to pause when idle")

	_, err := f.orch.StartRun(context.Background(), 170, domain.SessionFreeRun, 0)
	require.NoError(t, err)

	session, ok := f.orch.StopRun(context.Background())
	require.True(t, ok)
	assert.True(t, session.Finalized())
	assert.Equal(t, 2, f.metronome.stops)
	assert.Equal(t, 1, catalog.paused)

	_, active := f.workouts.Current()
	assert.False(t, active)
}

func TestPlaySong_LogsAgainstOpenSession(t *testing.T) {
	catalog := &mockCatalog{authenticated: true}
	f := newOrchestratorFixture(t, catalog)

	song := domain.Song{Title: "Can't Hold Us", URI: "spotify:track:abc", BPM: 146}

	require.NoError(t, f.orch.PlaySong(context.Background(), song), "playing without a run is allowed")

	_, err := f.orch.StartRun(context.Background(), 146, domain.SessionFreeRun, 0)
	require.NoError(t, err)
	require.NoError(t, f.orch.PlaySong(context.Background(), song))

	cur, _ := f.workouts.Current()
	assert.Equal(t, []string{"Can't Hold Us"}, cur.Songs)
	assert.Equal(t, []string{"spotify:track:abc", "spotify:track:abc"}, catalog.played)
}

func TestPlaySong_DropsSongWhenSessionChangedMidRequest(t *testing.T) {
	hooked := &hookedCatalog{mockCatalog: &mockCatalog{authenticated: true}}
	f := newOrchestratorFixture(t, hooked)

	first, err := f.workouts.Start(160, domain.SessionFreeRun, 0)
	require.NoError(t, err)

	hooked.onPlay = func() {
		f.workouts.Stop()
		_, err := f.workouts.Start(165, domain.SessionFreeRun, 0)
		require.NoError(t, err)
	}
	require.NoError(t, f.orch.PlaySong(context.Background(), domain.Song{Title: "Late", URI: "spotify:track:late"}))

	second, _ := f.workouts.Current()
	assert.NotEqual(t, first.ID, second.ID)
	assert.Empty(t, second.Songs)
	assert.Empty(t, f.workouts.History()[0].Songs)
}

func TestPlaySong_ErrorReportsNotice(t *testing.T) {
	catalog := &mockCatalog{playErr: &ports.CatalogError{Kind: ports.KindAuthenticationRequired, Status: 401}}
	f := newOrchestratorFixture(t, catalog)

	err := f.orch.PlaySong(context.Background(), domain.Song{Title: "x", URI: "spotify:track:x"})
	assert.ErrorIs(t, err, ports.ErrAuthenticationRequired)

	notice, ok := f.notices.Current()
	require.True(t, ok)
	assert.Contains(t, notice.Message, "authentication")
}

func TestPlayRandom(t *testing.T) {
	catalog := &mockCatalog{}
	f := newOrchestratorFixture(t, catalog)

	song, err := f.orch.PlayRandom(context.Background(), 128)
	require.NoError(t, err)
	assert.InDelta(t, 128, song.BPM, TempoTolerance)
	assert.Equal(t, []string{song.URI}, catalog.played)

	_, err = f.orch.PlayRandom(context.Background(), 40)
	assert.ErrorIs(t, err, ErrNoMatch)
}

func TestLoadDefaultSongs(t *testing.T) {
	f := newOrchestratorFixture(t, &mockCatalog{})
	res := f.orch.LoadDefaultSongs(context.Background())
	assert.Equal(t, domain.DefaultBPM, res.BPM)

	last, ok := f.orch.Songs()
	require.True(t, ok)
	assert.Equal(t, res.BPM, last.BPM)
}

func TestPauseResume_ReportFailures(t *testing.T) {
	f := newOrchestratorFixture(t, &mockCatalog{})
	require.NoError(t, f.orch.Pause(context.Background()))
	require.NoError(t, f.orch.Resume(context.Background()))
	require.NoError(t, f.orch.SetBPM(172))
	assert.Equal(t, 172, f.metronome.bpm)

	failing := newOrchestratorFixture(t, &failingPauseCatalog{mockCatalog: &mockCatalog{}})
	err := failing.orch.Pause(context.Background())
	assert.ErrorIs(t, err, ports.ErrApplication)
	notice, ok := failing.notices.Current()
	require.True(t, ok)
	assert.Equal(t, "Spotify: Player command failed: No active device found", notice.Message)
}

type failingPauseCatalog struct {
	*mockCatalog
}

func (c *failingPauseCatalog) Pause(context.Context, string) error {
	return &ports.CatalogError{Kind: ports.KindApplication, Status: 404, Message: "Player command failed: No active device found"}
}

func TestNotices_ExpireAndReplace(t *testing.T) {
	n := NewNotices(200 * time.Millisecond)

	var mu sync.Mutex
	var seen []string
	n.OnChange.Subscribe(func(v Notice) {
		mu.Lock()
		seen = append(seen, v.Message)
		mu.Unlock()
	})

	n.Post("")
	_, ok := n.Current()
	assert.False(t, ok, "empty messages are ignored")

	n.Post("first")
	time.Sleep(100 * time.Millisecond)
	n.Post("second")

	// the first timer must not clear the second message
	time.Sleep(150 * time.Millisecond)
	cur, ok := n.Current()
	require.True(t, ok)
	assert.Equal(t, "second", cur.Message)

	require.Eventually(t, func() bool {
		_, ok := n.Current()
		return !ok
	}, time.Second, time.Millisecond)

	mu.Lock()
	assert.Equal(t, []string{"first", "second", ""}, seen)
	mu.Unlock()

	n.Post("third")
	n.Clear()
	_, ok = n.Current()
	assert.False(t, ok)
}

func TestNoticeFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"auth", &ports.CatalogError{Kind: ports.KindAuthenticationRequired}, "Spotify authentication is required. Please connect your account."},
		{"network", &ports.CatalogError{Kind: ports.KindNetwork}, "Network error. Please check your internet connection and try again."},
		{"decoding", &ports.CatalogError{Kind: ports.KindDecoding}, "Spotify sent a response we could not read. Please try again."},
		{"application", &ports.CatalogError{Kind: ports.KindApplication, Message: "Premium required"}, "Spotify: Premium required"},
		{"no match", ErrNoMatch, "No songs match that tempo yet."},
		{"other", errors.New("boom"), "Unable to reach Spotify. Please try again."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NoticeFor(tt.err))
		})
	}
}

func TestPlaybackMonitor(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	playing := &domain.PlaybackState{IsPlaying: true, ProgressMs: 1200, Track: &domain.Track{ID: "t1", Title: "Run"}}

	t.Run("publishes while signed in", func(t *testing.T) {
		m := NewPlaybackMonitor(&mockCatalog{authenticated: true, playback: playing}, 5*time.Millisecond, logger)
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			m.Run(ctx)
			close(done)
		}()

		require.Eventually(t, func() bool {
			st, ok := m.Latest()
			return ok && st != nil && st.IsPlaying
		}, time.Second, time.Millisecond)
		cancel()
		<-done
	})

	t.Run("silent when signed out", func(t *testing.T) {
		m := NewPlaybackMonitor(&mockCatalog{playback: playing}, 5*time.Millisecond, logger)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		defer cancel()
		m.Run(ctx)
		_, ok := m.Latest()
		assert.False(t, ok)
	})

	t.Run("skips failed polls", func(t *testing.T) {
		m := NewPlaybackMonitor(&mockCatalog{authenticated: true, playbackErr: &ports.CatalogError{Kind: ports.KindNetwork}}, 5*time.Millisecond, logger)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		defer cancel()
		m.Run(ctx)
		_, ok := m.Latest()
		assert.False(t, ok)
	})
}

func TestStartRun_RetunesRunningMetronome(t *testing.T) {
	f := newOrchestratorFixture(t, &mockCatalog{})
	require.NoError(t, f.metronome.Start(150))

	_, err := f.orch.StartRun(context.Background(), 172, domain.SessionFreeRun, 0)
	require.NoError(t, err)
	assert.Equal(t, 172, f.metronome.rate())
}

func TestStopRun_CanceledMatchKeepsSongs(t *testing.T) {
	catalog := newScenarioCatalog()
	scenario := catalog.searchFn
	var blocking atomic.Bool
	catalog.searchFn = func(ctx context.Context, q string) ([]domain.Track, error) {
		if blocking.Load() {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return scenario(ctx, q)
	}
	f := newOrchestratorFixture(t, catalog)

	loaded := f.orch.LoadSongs(context.Background(), 160)
	require.False(t, loaded.Fallback)
	require.Len(t, loaded.Songs, 5)
	pool := f.orch.matcher.Pool()

	blocking.Store(true)
	searched := catalog.searchCount()
	_, err := f.orch.StartRun(context.Background(), 160, domain.SessionFreeRun, 0)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return catalog.searchCount() > searched
	}, time.Second, time.Millisecond)

	_, ok := f.orch.StopRun(context.Background())
	require.True(t, ok)
	f.orch.Shutdown(context.Background())

	assert.Equal(t, pool, f.orch.matcher.Pool())
	latest, ok := f.orch.Songs()
	require.True(t, ok)
	assert.False(t, latest.Fallback)
	assert.Equal(t, loaded.Songs, latest.Songs)
	_, hasNotice := f.notices.Current()
	assert.False(t, hasNotice)
}
