package audio

import (
	"fmt"
	"io"
	"sync"

	"github.com/ewilliams-labs/cadence/internal/core/ports"
)

const (
	SinkBell = "bell"
	SinkPCM  = "pcm"
	SinkNone = "none"
)

// StreamClicker writes the whole sample to w on every click. Pipe w into
// a player such as `aplay -f S16_LE -r 44100 -c 1`.
type StreamClicker struct {
	mu  sync.Mutex
	w   io.Writer
	pcm []byte
}

func NewStreamClicker(w io.Writer, s Sample) *StreamClicker {
	return &StreamClicker{w: w, pcm: s.Bytes()}
}

func (c *StreamClicker) Click() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.w.Write(c.pcm); err != nil {
		return fmt.Errorf("audio: pcm sink: %w", err)
	}
	return nil
}

// BellClicker rings the terminal bell.
type BellClicker struct {
	W io.Writer
}

func (c BellClicker) Click() error {
	_, err := io.WriteString(c.W, "\a")
	return err
}

// NewClicker builds the click primitive for a configured sink kind.
func NewClicker(kind string, w io.Writer, s Sample) (ports.Clicker, error) {
	switch kind {
	case "", SinkBell:
		return BellClicker{W: w}, nil
	case SinkPCM:
		return NewStreamClicker(w, s), nil
	case SinkNone:
		return ports.ClickerFunc(func() error { return nil }), nil
	default:
		return nil, fmt.Errorf("audio: unknown sink %q", kind)
	}
}
