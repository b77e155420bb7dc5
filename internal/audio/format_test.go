package audio

import (
	"testing"
	"time"
)

func TestFormatValidate(t *testing.T) {
	tests := []struct {
		name      string
		format    Format
		expectErr bool
	}{
		{"valid 44100Hz mono", Format{SampleRate: 44100, Channels: 1}, false},
		{"valid 48000Hz stereo", Format{SampleRate: 48000, Channels: 2}, false},
		{"invalid sample rate", Format{SampleRate: 22050, Channels: 1}, true},
		{"invalid channels", Format{SampleRate: 44100, Channels: 3}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.format.Validate(); (err != nil) != tt.expectErr {
				t.Errorf("Validate() error = %v, expectErr %v", err, tt.expectErr)
			}
		})
	}
}

func TestDurationAndSilence(t *testing.T) {
	f := Format{SampleRate: 48000, Channels: 2}
	pcm := Silence(250*time.Millisecond, f)
	if len(pcm) != 12000*4 {
		t.Fatalf("Silence length = %d, want %d", len(pcm), 12000*4)
	}
	if d := Duration(len(pcm), f); d != 250*time.Millisecond {
		t.Errorf("Duration = %v, want 250ms", d)
	}
	if d := Duration(100, Format{}); d != 0 {
		t.Errorf("Duration with zero format = %v, want 0", d)
	}
	if n := ByteCount(250*time.Millisecond, f); n != len(pcm) {
		t.Errorf("ByteCount = %d, want %d", n, len(pcm))
	}
}

func TestNewBuffer(t *testing.T) {
	f := DefaultFormat()
	if _, err := NewBuffer(nil, f); err == nil {
		t.Error("NewBuffer(nil) succeeded")
	}
	if _, err := NewBuffer([]byte{1, 2, 3}, f); err == nil {
		t.Error("NewBuffer with a partial frame succeeded")
	}
	b, err := NewBuffer(make([]byte, 88200), f)
	if err != nil {
		t.Fatalf("NewBuffer() error = %v", err)
	}
	if b.Seconds() != 1 {
		t.Errorf("Seconds() = %v, want 1", b.Seconds())
	}
}
