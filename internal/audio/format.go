package audio

import (
	"errors"
	"fmt"
	"time"
)

// BitDepth is the only sample depth the output graph plays: signed 16-bit
// little endian.
const BitDepth = 16

// Format describes interleaved signed 16-bit little endian PCM.
type Format struct {
	SampleRate int
	Channels   int
}

// DefaultFormat returns the output format used for speech.
func DefaultFormat() Format {
	return Format{
		SampleRate: 44100, // CD quality
		Channels:   1,     // Mono for TTS
	}
}

// FrameSize returns the number of bytes per frame.
func (f Format) FrameSize() int {
	return BitDepth / 8 * f.Channels
}

// Validate checks that the format can be played by the device.
func (f Format) Validate() error {
	// oto only supports these sample rates reliably
	if f.SampleRate != 44100 && f.SampleRate != 48000 {
		return fmt.Errorf("sample rate must be 44100 or 48000 Hz, got %d", f.SampleRate)
	}
	if f.Channels != 1 && f.Channels != 2 {
		return fmt.Errorf("channels must be 1 (mono) or 2 (stereo), got %d", f.Channels)
	}
	return nil
}

// Duration returns the playing time of n bytes of PCM in format f.
func Duration(n int, f Format) time.Duration {
	if f.SampleRate <= 0 || f.FrameSize() <= 0 {
		return 0
	}
	frames := n / f.FrameSize()
	return time.Duration(frames) * time.Second / time.Duration(f.SampleRate)
}

// ByteCount returns the number of PCM bytes that play for d, rounded down
// to whole frames.
func ByteCount(d time.Duration, f Format) int {
	return int(d.Seconds()*float64(f.SampleRate)) * f.FrameSize()
}

// Silence returns d worth of silent PCM.
func Silence(d time.Duration, f Format) []byte {
	frames := int(d.Seconds() * float64(f.SampleRate))
	return make([]byte, frames*f.FrameSize())
}

// Buffer is decoded audio ready for playback.
type Buffer struct {
	PCM      []byte
	Format   Format
	Duration time.Duration
}

// NewBuffer wraps pcm, which must be aligned to whole frames.
func NewBuffer(pcm []byte, f Format) (*Buffer, error) {
	if len(pcm) == 0 {
		return nil, errors.New("empty PCM data")
	}
	if len(pcm)%f.FrameSize() != 0 {
		return nil, fmt.Errorf("PCM data length %d is not aligned to %d-byte frames", len(pcm), f.FrameSize())
	}
	return &Buffer{PCM: pcm, Format: f, Duration: Duration(len(pcm), f)}, nil
}

// Seconds returns the buffer duration in seconds.
func (b *Buffer) Seconds() float64 {
	return b.Duration.Seconds()
}
