// Package audio produces the metronome click: a synthesized tone or a
// decoded MP3 sample, written to a PCM sink or exported as WAV.
package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"time"
)

const (
	DefaultSampleRate = 44100
	bitsPerSample     = 16
)

// ClickSpec describes a synthesized sine click.
type ClickSpec struct {
	Frequency  float64
	Duration   time.Duration
	SampleRate int
	Amplitude  float64
}

// DefaultClick is a short 800 Hz beep.
var DefaultClick = ClickSpec{
	Frequency:  800,
	Duration:   100 * time.Millisecond,
	SampleRate: DefaultSampleRate,
	Amplitude:  0.3,
}

// Sample is mono signed 16-bit PCM.
type Sample struct {
	Rate int
	PCM  []int16
}

// Duration of the sample at its rate.
func (s Sample) Duration() time.Duration {
	if s.Rate <= 0 {
		return 0
	}
	return time.Duration(len(s.PCM)) * time.Second / time.Duration(s.Rate)
}

// Bytes encodes the sample as little-endian PCM.
func (s Sample) Bytes() []byte {
	out := make([]byte, 2*len(s.PCM))
	for i, v := range s.PCM {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(v))
	}
	return out
}

// Synthesize renders spec as a sine wave.
func Synthesize(spec ClickSpec) (Sample, error) {
	if spec.SampleRate <= 0 || spec.Duration <= 0 || spec.Frequency <= 0 {
		return Sample{}, fmt.Errorf("audio: invalid click spec %+v", spec)
	}
	if spec.Amplitude < 0 || spec.Amplitude > 1 {
		return Sample{}, fmt.Errorf("audio: amplitude %.2f outside [0,1]", spec.Amplitude)
	}

	n := int(spec.Duration.Seconds() * float64(spec.SampleRate))
	pcm := make([]int16, n)
	for i := range pcm {
		t := float64(i) / float64(spec.SampleRate)
		v := spec.Amplitude * math.Sin(2*math.Pi*spec.Frequency*t)
		pcm[i] = int16(math.Round(v * math.MaxInt16))
	}
	return Sample{Rate: spec.SampleRate, PCM: pcm}, nil
}

// WriteWAV writes s as a canonical 44-byte-header RIFF/WAVE file.
func WriteWAV(w io.Writer, s Sample) error {
	const channels = 1
	dataSize := uint32(2 * len(s.PCM))
	blockAlign := uint16(channels * bitsPerSample / 8)

	header := []any{
		[4]byte{'R', 'I', 'F', 'F'},
		uint32(36) + dataSize,
		[4]byte{'W', 'A', 'V', 'E'},
		[4]byte{'f', 'm', 't', ' '},
		uint32(16),
		uint16(1), // PCM
		uint16(channels),
		uint32(s.Rate),
		uint32(s.Rate) * uint32(blockAlign),
		blockAlign,
		uint16(bitsPerSample),
		[4]byte{'d', 'a', 't', 'a'},
		dataSize,
	}
	for _, field := range header {
		if err := binary.Write(w, binary.LittleEndian, field); err != nil {
			return fmt.Errorf("audio: write wav header: %w", err)
		}
	}
	if _, err := w.Write(s.Bytes()); err != nil {
		return fmt.Errorf("audio: write wav data: %w", err)
	}
	return nil
}
