package audio

import (
	"bytes"
	"io"
	"slices"
	"testing"
)

func pcmBuffer(t *testing.T, fill byte, n int) *Buffer {
	t.Helper()
	b, err := NewBuffer(bytes.Repeat([]byte{fill}, n), DefaultFormat())
	if err != nil {
		t.Fatalf("NewBuffer() error = %v", err)
	}
	return b
}

func kinds(events []Event) []EventKind {
	out := make([]EventKind, len(events))
	for i, e := range events {
		out[i] = e.Kind
	}
	return out
}

func TestQueueReaderGapless(t *testing.T) {
	r := &queueReader{}
	r.push(pcmBuffer(t, 1, 4), Token{Session: 1, Index: 0})
	r.push(pcmBuffer(t, 2, 4), Token{Session: 1, Index: 1})

	p := make([]byte, 10)
	n, err := r.Read(p)
	if err != nil || n != len(p) {
		t.Fatalf("Read() = %d, %v", n, err)
	}
	want := []byte{1, 1, 1, 1, 2, 2, 2, 2, 0, 0}
	if !bytes.Equal(p, want) {
		t.Errorf("Read() filled %v, want %v", p, want)
	}
	if got := r.consumed(); got != 10 {
		t.Errorf("consumed() = %d, want 10", got)
	}

	tests := []struct {
		heard int64
		want  []EventKind
	}{
		{-1, nil},
		{3, []EventKind{EventStarted}},
		{4, []EventKind{EventEnded, EventStarted}},
		{7, nil},
		{8, []EventKind{EventEnded}},
		{10, nil},
	}
	for _, tt := range tests {
		events := r.due(tt.heard)
		if !slices.Equal(kinds(events), tt.want) {
			t.Errorf("due(%d) = %v, want %v", tt.heard, kinds(events), tt.want)
		}
	}
	if r.busy() {
		t.Error("busy() after every mark was heard")
	}
}

func TestQueueReaderStarvedReadsSilence(t *testing.T) {
	r := &queueReader{}
	p := bytes.Repeat([]byte{9}, 8)
	if n, _ := r.Read(p); n != 8 || !bytes.Equal(p, make([]byte, 8)) {
		t.Fatalf("starved Read() = %d %v, want 8 bytes of silence", n, p)
	}
	if r.busy() {
		t.Error("busy() with an empty queue")
	}
	if r.consumed() != 8 {
		t.Errorf("silence not counted: consumed() = %d", r.consumed())
	}
}

func TestQueueReaderSplitAcrossReads(t *testing.T) {
	r := &queueReader{}
	r.push(pcmBuffer(t, 5, 6), Token{Index: 0})

	p := make([]byte, 4)
	r.Read(p)
	if got := kinds(r.due(r.consumed())); !slices.Equal(got, []EventKind{EventStarted}) || !r.busy() {
		t.Fatalf("after first read events = %v, busy = %v", got, r.busy())
	}
	r.Read(p)
	if !bytes.Equal(p, []byte{5, 5, 0, 0}) {
		t.Errorf("tail read = %v", p)
	}
	if got := r.due(5); len(got) != 0 {
		t.Errorf("buffer ended before its last byte was heard: %v", got)
	}
	if got := kinds(r.due(6)); !slices.Equal(got, []EventKind{EventEnded}) {
		t.Errorf("due(6) = %v, want ended", got)
	}
}

func TestQueueReaderClear(t *testing.T) {
	r := &queueReader{}
	r.push(pcmBuffer(t, 1, 4), Token{})
	r.Read(make([]byte, 2))
	r.clear()
	if r.busy() {
		t.Error("busy() after clear")
	}
	if got := r.due(100); got != nil {
		t.Errorf("events after clear: %v", got)
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		t.Errorf("Seek(0, start) error = %v", err)
	}
	if _, err := r.Seek(10, io.SeekCurrent); err == nil {
		t.Error("Seek(10, current) succeeded")
	}
}

func TestQueueReaderTruncateKeepsCurrent(t *testing.T) {
	r := &queueReader{}
	r.push(pcmBuffer(t, 1, 4), Token{Session: 2, Index: 0})
	r.push(pcmBuffer(t, 2, 4), Token{Session: 2, Index: 1})
	r.push(pcmBuffer(t, 3, 4), Token{Session: 2, Index: 2})

	p := make([]byte, 2)
	r.Read(p) // index 0 is now playing

	dropped := r.truncate()
	if len(dropped) != 2 || dropped[0].Index != 1 || dropped[1].Index != 2 {
		t.Fatalf("truncate() = %v, want indexes 1 and 2", dropped)
	}

	p = make([]byte, 4)
	r.Read(p)
	if !bytes.Equal(p, []byte{1, 1, 0, 0}) {
		t.Errorf("after truncate Read() = %v, want the rest of the current buffer", p)
	}
}

func TestEndedWaitsForReadAhead(t *testing.T) {
	r := &queueReader{}
	h := playhead{latency: 50}
	r.push(pcmBuffer(t, 1, 100), Token{Index: 0})

	// the player reads far past the end of the only buffer
	r.Read(make([]byte, 400))

	steps := []struct {
		buffered int
		want     []EventKind
	}{
		{400, nil},                       // nothing sent to the device yet
		{300, nil},                       // sent, still in the device buffer
		{250, []EventKind{EventStarted}}, // whole buffer played, end held back a sample
		{250, []EventKind{EventEnded}},
	}
	for i, st := range steps {
		got := kinds(r.due(h.heard(r.consumed(), st.buffered)))
		if !slices.Equal(got, st.want) {
			t.Errorf("step %d (buffered %d): events %v, want %v", i, st.buffered, got, st.want)
		}
	}
}

func TestPlayheadNeverRunsAhead(t *testing.T) {
	h := playhead{}
	tests := []struct {
		read     int64
		buffered int
		want     int64
	}{
		{1000, 400, 600},
		{1200, 500, 600},
		// a read returned but is not in the player buffer yet
		{2200, 500, 700},
		{2200, 1500, 700},
		{2200, 1400, 700},
		{2200, 1400, 800},
	}
	for i, tt := range tests {
		if got := h.heard(tt.read, tt.buffered); got != tt.want {
			t.Errorf("sample %d: heard(%d, %d) = %d, want %d", i, tt.read, tt.buffered, got, tt.want)
		}
	}
}
