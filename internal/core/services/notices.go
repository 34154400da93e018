package services

import (
	"errors"
	"sync"
	"time"

	"github.com/ewilliams-labs/cadence/internal/core/ports"
	"github.com/ewilliams-labs/cadence/internal/events"
)

// NoticeTTL is how long a notice stays visible.
const NoticeTTL = 10 * time.Second

// Notice is a transient user-facing message.
type Notice struct {
	Message  string    `json:"message"`
	PostedAt time.Time `json:"posted_at"`
}

// Notices holds at most one message and clears it after a fixed delay,
// unless a newer message replaced it first.
type Notices struct {
	ttl time.Duration

	// OnChange publishes each new notice and an empty Notice on clear.
	OnChange *events.Feed[Notice]

	mu      sync.Mutex
	current Notice
	seq     uint64
	timer   *time.Timer
}

// NewNotices returns an empty board. A non-positive ttl selects NoticeTTL.
func NewNotices(ttl time.Duration) *Notices {
	if ttl <= 0 {
		ttl = NoticeTTL
	}
	return &Notices{ttl: ttl, OnChange: events.NewFeed[Notice](true)}
}

// Post replaces the current notice and restarts the clear timer.
func (n *Notices) Post(message string) {
	if message == "" {
		return
	}

	n.mu.Lock()
	n.seq++
	seq := n.seq
	n.current = Notice{Message: message, PostedAt: time.Now()}
	if n.timer != nil {
		n.timer.Stop()
	}
	n.timer = time.AfterFunc(n.ttl, func() { n.expire(seq) })
	posted := n.current
	n.mu.Unlock()

	n.OnChange.Publish(posted)
}

// Report posts the user-facing text for err.
func (n *Notices) Report(err error) {
	if err != nil {
		n.Post(NoticeFor(err))
	}
}

// Current returns the visible notice, if any.
func (n *Notices) Current() (Notice, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current, n.current.Message != ""
}

// Clear removes the notice now.
func (n *Notices) Clear() {
	n.mu.Lock()
	n.seq++
	had := n.current.Message != ""
	n.current = Notice{}
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
	n.mu.Unlock()

	if had {
		n.OnChange.Publish(Notice{})
	}
}

func (n *Notices) expire(seq uint64) {
	n.mu.Lock()
	if seq != n.seq {
		n.mu.Unlock()
		return
	}
	n.current = Notice{}
	n.timer = nil
	n.mu.Unlock()

	n.OnChange.Publish(Notice{})
}

// NoticeFor maps a catalog failure to the message shown to the runner.
func NoticeFor(err error) string {
	var ce *ports.CatalogError
	switch {
	case errors.Is(err, ports.ErrAuthenticationRequired):
		return "Spotify authentication is required. Please connect your account."
	case errors.Is(err, ports.ErrNetwork):
		return "Network error. Please check your internet connection and try again."
	case errors.Is(err, ports.ErrDecoding):
		return "Spotify sent a response we could not read. Please try again."
	case errors.As(err, &ce) && ce.Kind == ports.KindApplication && ce.Message != "":
		return "Spotify: " + ce.Message
	case errors.Is(err, ErrNoMatch):
		return "No songs match that tempo yet."
	default:
		return "Unable to reach Spotify. Please try again."
	}
}
