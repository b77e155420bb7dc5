// Package audiotest builds encoded audio payloads for tests.
package audiotest

import (
	"bytes"
	"encoding/binary"
	"time"
)

// WAV returns a 16-bit PCM WAV file of the given length. Samples hold a
// constant non-zero value so that decoded audio is distinguishable from
// silence.
func WAV(d time.Duration, sampleRate, channels int) []byte {
	frames := int(d.Seconds() * float64(sampleRate))
	dataSize := frames * channels * 2

	var b bytes.Buffer
	b.WriteString("RIFF")
	_ = binary.Write(&b, binary.LittleEndian, uint32(36+dataSize))
	b.WriteString("WAVE")

	b.WriteString("fmt ")
	_ = binary.Write(&b, binary.LittleEndian, uint32(16))
	_ = binary.Write(&b, binary.LittleEndian, uint16(1)) // PCM
	_ = binary.Write(&b, binary.LittleEndian, uint16(channels))
	_ = binary.Write(&b, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(&b, binary.LittleEndian, uint32(sampleRate*channels*2))
	_ = binary.Write(&b, binary.LittleEndian, uint16(channels*2))
	_ = binary.Write(&b, binary.LittleEndian, uint16(16))

	b.WriteString("data")
	_ = binary.Write(&b, binary.LittleEndian, uint32(dataSize))
	for range frames * channels {
		_ = binary.Write(&b, binary.LittleEndian, int16(1000))
	}
	return b.Bytes()
}
