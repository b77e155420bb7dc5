package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
)

var (
	// ErrEmptyPayload is returned when there is nothing to decode.
	ErrEmptyPayload = errors.New("audio payload is empty")

	// ErrUnknownFormat is returned for payloads that are neither WAV nor MP3.
	ErrUnknownFormat = errors.New("unrecognized audio format")
)

// Container identifies an encoded audio payload.
type Container int

const (
	ContainerUnknown Container = iota
	ContainerWAV
	ContainerMP3
)

// String returns the string representation of the container.
func (c Container) String() string {
	switch c {
	case ContainerWAV:
		return "wav"
	case ContainerMP3:
		return "mp3"
	default:
		return "unknown"
	}
}

// Sniff guesses the container of payload from its first bytes.
func Sniff(payload []byte) Container {
	switch {
	case len(payload) >= 12 && string(payload[:4]) == "RIFF" && string(payload[8:12]) == "WAVE":
		return ContainerWAV
	case len(payload) >= 3 && string(payload[:3]) == "ID3":
		return ContainerMP3
	case len(payload) >= 2 && payload[0] == 0xFF && payload[1]&0xE0 == 0xE0:
		return ContainerMP3
	default:
		return ContainerUnknown
	}
}

// Decode turns an encoded payload into a buffer in the target format.
func Decode(payload []byte, target Format) (*Buffer, error) {
	if len(payload) == 0 {
		return nil, ErrEmptyPayload
	}

	var (
		samples []int16
		src     Format
		err     error
	)
	switch Sniff(payload) {
	case ContainerWAV:
		samples, src, err = decodeWAV(payload)
	case ContainerMP3:
		samples, src, err = decodeMP3(payload)
	default:
		return nil, ErrUnknownFormat
	}
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("decoded audio is empty: %w", ErrEmptyPayload)
	}

	out := resample(remix(samples, src.Channels, target.Channels), target.Channels, src.SampleRate, target.SampleRate)
	return NewBuffer(encodePCM(out), target)
}

func decodeWAV(payload []byte) ([]int16, Format, error) {
	d := wav.NewDecoder(bytes.NewReader(payload))
	if !d.IsValidFile() {
		return nil, Format{}, fmt.Errorf("invalid wav file: %w", ErrUnknownFormat)
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, Format{}, fmt.Errorf("failed to read wav data: %w", err)
	}
	if buf.Format == nil || buf.Format.NumChannels <= 0 || buf.Format.SampleRate <= 0 {
		return nil, Format{}, errors.New("wav file has no format information")
	}

	depth := buf.SourceBitDepth
	if depth == 0 {
		depth = int(d.BitDepth)
	}
	samples := make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		switch depth {
		case 8:
			samples[i] = int16((v - 128) << 8) // 8-bit wav is unsigned
		case 24:
			samples[i] = int16(v >> 8)
		case 32:
			samples[i] = int16(v >> 16)
		default:
			samples[i] = int16(v)
		}
	}
	return samples, Format{SampleRate: buf.Format.SampleRate, Channels: buf.Format.NumChannels}, nil
}

func decodeMP3(payload []byte) ([]int16, Format, error) {
	d, err := mp3.NewDecoder(bytes.NewReader(payload))
	if err != nil {
		return nil, Format{}, fmt.Errorf("failed to create mp3 decoder: %w", err)
	}
	raw, err := io.ReadAll(d)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, Format{}, fmt.Errorf("failed to decode mp3: %w", err)
	}
	// go-mp3 always produces 16-bit little endian stereo
	raw = raw[:len(raw)/4*4]
	samples := make([]int16, len(raw)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
	}
	return samples, Format{SampleRate: d.SampleRate(), Channels: 2}, nil
}

// remix converts interleaved samples between channel counts. Downmixing
// averages the source channels; upmixing copies them.
func remix(samples []int16, from, to int) []int16 {
	if from == to || from <= 0 || to <= 0 {
		return samples
	}
	frames := len(samples) / from
	out := make([]int16, frames*to)
	for f := 0; f < frames; f++ {
		frame := samples[f*from : f*from+from]
		if to < from {
			var sum int
			for _, s := range frame {
				sum += int(s)
			}
			avg := int16(sum / from)
			for c := 0; c < to; c++ {
				out[f*to+c] = avg
			}
			continue
		}
		for c := 0; c < to; c++ {
			out[f*to+c] = frame[c%from]
		}
	}
	return out
}

// resample converts the sample rate with linear interpolation.
func resample(samples []int16, channels, from, to int) []int16 {
	if from == to || from <= 0 || to <= 0 || channels <= 0 {
		return samples
	}
	inFrames := len(samples) / channels
	if inFrames == 0 {
		return samples
	}
	outFrames := int(int64(inFrames) * int64(to) / int64(from))
	out := make([]int16, outFrames*channels)
	ratio := float64(from) / float64(to)
	for f := 0; f < outFrames; f++ {
		pos := float64(f) * ratio
		i := int(pos)
		frac := pos - float64(i)
		j := i + 1
		if j >= inFrames {
			j = inFrames - 1
		}
		for c := 0; c < channels; c++ {
			a := float64(samples[i*channels+c])
			b := float64(samples[j*channels+c])
			out[f*channels+c] = int16(a + (b-a)*frac)
		}
	}
	return out
}

func encodePCM(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}
