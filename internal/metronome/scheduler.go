// Package metronome fires a click at a steady beats-per-minute rate.
//
// Ticks are scheduled against absolute deadlines (anchor + n*period) so
// the rate does not drift, and the last stretch before each deadline is
// spun instead of slept to keep jitter near a millisecond.
package metronome

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
	"github.com/ewilliams-labs/cadence/internal/core/ports"
	"github.com/ewilliams-labs/cadence/internal/events"
	"github.com/ewilliams-labs/cadence/internal/goroutine"
)

// DefaultSpinWindow is how long before a deadline the scheduler stops
// sleeping and starts polling the clock.
const DefaultSpinWindow = time.Millisecond

var ErrInvalidBPM = errors.New("metronome: bpm must be positive")

// Tick describes one fired beat.
type Tick struct {
	Seq      uint64
	BPM      int
	Deadline time.Time
	At       time.Time
}

// Options configures a Scheduler.
type Options struct {
	Clicker    ports.Clicker
	BPM        int
	Disabled   bool
	SpinWindow time.Duration
	Logger     logrus.FieldLogger
}

// Scheduler is the metronome. The zero value is not usable; call New.
type Scheduler struct {
	clicker ports.Clicker
	spin    time.Duration
	logger  logrus.FieldLogger

	// OnTick publishes every fired beat, including beats whose click failed.
	// Listeners run on the scheduler goroutine and must not call Stop or
	// SetBPM.
	OnTick *events.Feed[Tick]

	// control serializes Start, Stop, SetBPM and SetEnabled.
	control sync.Mutex

	mu       sync.Mutex
	bpm      int
	enabled  bool
	running  bool
	quit     chan struct{}
	done     chan struct{}
	lastTick time.Time
	seq      uint64
}

// New returns a stopped scheduler.
func New(opts Options) *Scheduler {
	s := &Scheduler{
		clicker: opts.Clicker,
		spin:    opts.SpinWindow,
		logger:  opts.Logger,
		bpm:     opts.BPM,
		enabled: !opts.Disabled,
		OnTick:  events.NewFeed[Tick](false),
	}
	if s.clicker == nil {
		s.clicker = ports.ClickerFunc(func() error { return nil })
	}
	if s.spin <= 0 {
		s.spin = DefaultSpinWindow
	}
	if s.logger == nil {
		s.logger = logrus.StandardLogger()
	}
	if s.bpm <= 0 {
		s.bpm = domain.DefaultBPM
	}
	return s
}

// Period converts a rate to the interval between beats.
func Period(bpm int) time.Duration {
	return time.Duration(float64(time.Minute) / float64(bpm))
}

// Start begins ticking at bpm with an immediate first beat. It is a no-op
// when already running or disabled.
func (s *Scheduler) Start(bpm int) error {
	if bpm <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidBPM, bpm)
	}

	s.control.Lock()
	defer s.control.Unlock()

	s.mu.Lock()
	if s.running || !s.enabled {
		s.mu.Unlock()
		return nil
	}
	s.bpm = bpm
	s.mu.Unlock()

	s.launch(bpm, time.Now())
	s.logger.Infof("metronome: started at %d BPM", bpm)
	return nil
}

// Stop halts the scheduler. No beat fires after Stop returns.
func (s *Scheduler) Stop() {
	s.control.Lock()
	defer s.control.Unlock()

	if s.halt() {
		s.logger.Info("metronome: stopped")
	}
}

// SetBPM changes the rate. A running scheduler restarts at the new period
// with its next beat no earlier than one new period after the last one.
func (s *Scheduler) SetBPM(bpm int) error {
	if bpm <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidBPM, bpm)
	}

	s.control.Lock()
	defer s.control.Unlock()

	s.mu.Lock()
	running := s.running
	s.bpm = bpm
	s.mu.Unlock()
	if !running {
		return nil
	}

	s.halt()

	s.mu.Lock()
	last := s.lastTick
	s.mu.Unlock()

	anchor := time.Now()
	if next := last.Add(Period(bpm)); !last.IsZero() && next.After(anchor) {
		anchor = next
	}
	s.launch(bpm, anchor)
	s.logger.Infof("metronome: rate changed to %d BPM", bpm)
	return nil
}

// SetEnabled toggles the metronome. Disabling stops it.
func (s *Scheduler) SetEnabled(enabled bool) {
	s.control.Lock()
	defer s.control.Unlock()

	s.mu.Lock()
	s.enabled = enabled
	s.mu.Unlock()

	if !enabled && s.halt() {
		s.logger.Info("metronome: disabled")
	}
}

func (s *Scheduler) BPM() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bpm
}

func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// launch must be called with control held.
func (s *Scheduler) launch(bpm int, anchor time.Time) {
	quit, done := make(chan struct{}), make(chan struct{})
	s.mu.Lock()
	s.running = true
	s.quit, s.done = quit, done
	s.mu.Unlock()

	goroutine.SafeGo(s.logger, "metronome", func() { s.run(bpm, anchor, quit, done) })
}

// halt must be called with control held. It reports whether a loop was
// running.
func (s *Scheduler) halt() bool {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return false
	}
	quit, done := s.quit, s.done
	s.running = false
	s.quit, s.done = nil, nil
	s.mu.Unlock()

	close(quit)
	<-done
	return true
}

func (s *Scheduler) run(bpm int, anchor time.Time, quit <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	period := Period(bpm)
	for n := 0; ; n++ {
		deadline := anchor.Add(time.Duration(n) * period)
		if !s.waitUntil(deadline, quit) {
			return
		}
		s.fire(bpm, deadline)
	}
}

// waitUntil sleeps until just before deadline, then spins. It reports false
// when quit closes first.
func (s *Scheduler) waitUntil(deadline time.Time, quit <-chan struct{}) bool {
	if d := time.Until(deadline) - s.spin; d > 0 {
		timer := time.NewTimer(d)
		select {
		case <-quit:
			timer.Stop()
			return false
		case <-timer.C:
		}
	}

	for time.Now().Before(deadline) {
		select {
		case <-quit:
			return false
		default:
		}
		runtime.Gosched()
	}

	select {
	case <-quit:
		return false
	default:
		return true
	}
}

func (s *Scheduler) fire(bpm int, deadline time.Time) {
	now := time.Now()
	s.mu.Lock()
	s.lastTick = now
	s.seq++
	tick := Tick{Seq: s.seq, BPM: bpm, Deadline: deadline, At: now}
	s.mu.Unlock()

	s.click()
	s.OnTick.Publish(tick)
}

func (s *Scheduler) click() {
	defer goroutine.Recover(s.logger, "metronome-click")
	if err := s.clicker.Click(); err != nil {
		s.logger.Warnf("metronome: click failed: %v", err)
	}
}
