package audio

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/hajimehoshi/go-mp3"
)

// MinClickEnergy is the RMS level (0..1) below which a decoded sample is
// treated as silence.
const MinClickEnergy = 0.01

var ErrSilentSample = errors.New("audio: click sample is silent")

// LoadMP3File decodes the MP3 at path.
func LoadMP3File(path string) (Sample, error) {
	f, err := os.Open(path) // #nosec G304 -- path comes from operator config
	if err != nil {
		return Sample{}, fmt.Errorf("audio: open click file: %w", err)
	}
	defer f.Close()
	return LoadMP3(f)
}

// LoadMP3 decodes r to mono PCM. The decoder always yields 16-bit stereo;
// channels are averaged.
func LoadMP3(r io.Reader) (Sample, error) {
	decoder, err := mp3.NewDecoder(r)
	if err != nil {
		return Sample{}, fmt.Errorf("audio: mp3 decode failed: %w", err)
	}

	buf := make([]byte, 4096)
	var pcm []int16
	var sumSquares float64
	var pending []byte

	for {
		n, err := decoder.Read(buf)
		if n > 0 {
			frame := append(pending, buf[:n]...)
			i := 0
			for ; i+3 < len(frame); i += 4 {
				left := int16(frame[i]) | int16(frame[i+1])<<8
				right := int16(frame[i+2]) | int16(frame[i+3])<<8
				mono := int16((int32(left) + int32(right)) / 2)
				pcm = append(pcm, mono)
				v := float64(mono)
				sumSquares += v * v
			}
			pending = append(pending[:0], frame[i:]...)
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return Sample{}, fmt.Errorf("audio: mp3 read failed: %w", err)
		}
	}

	if len(pcm) == 0 {
		return Sample{}, fmt.Errorf("audio: mp3 contains no samples")
	}

	if energy := math.Sqrt(sumSquares/float64(len(pcm))) / 32768.0; energy < MinClickEnergy {
		return Sample{}, fmt.Errorf("%w (rms %.4f)", ErrSilentSample, energy)
	}

	return Sample{Rate: decoder.SampleRate(), PCM: pcm}, nil
}
