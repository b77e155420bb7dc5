package audio

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"
)

// DeviceConfig contains configuration for the audio device.
type DeviceConfig struct {
	Format     Format
	BufferSize time.Duration // device buffer; smaller reacts faster to Flush
}

// DefaultDeviceConfig returns the default device configuration.
func DefaultDeviceConfig() DeviceConfig {
	return DeviceConfig{
		Format:     DefaultFormat(),
		BufferSize: 100 * time.Millisecond,
	}
}

// Device owns the process-wide oto context. oto allows one context per
// process, so every Graph is created from the same Device.
type Device struct {
	ctx     *oto.Context
	format  Format
	latency time.Duration
}

// NewDevice opens the audio device and waits until it is ready.
func NewDevice(cfg DeviceConfig) (*Device, error) {
	if err := cfg.Format.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	op := &oto.NewContextOptions{
		SampleRate:   cfg.Format.SampleRate,
		ChannelCount: cfg.Format.Channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   cfg.BufferSize,
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-ready

	return &Device{ctx: ctx, format: cfg.Format, latency: cfg.BufferSize}, nil
}

// Format returns the PCM format the device plays.
func (d *Device) Format() Format {
	return d.format
}

// monitorInterval is how often a graph checks what has been heard.
const monitorInterval = 10 * time.Millisecond

// NewGraph creates an output graph on the device.
func (d *Device) NewGraph() *Graph {
	src := &queueReader{}
	g := &Graph{
		player: d.ctx.NewPlayer(src),
		src:    src,
		events: newEventQueue(),
		format: d.format,
		head:   playhead{latency: int64(ByteCount(d.latency, d.format))},
		done:   make(chan struct{}),
	}
	g.volume.Store(math.Float64bits(1))
	go g.monitor()
	return g
}

// Graph plays queued buffers through one long-lived oto player. The player
// never runs dry: while no buffer is queued it reads silence, and the next
// Enqueue is heard without restarting anything.
//
// oto reads ahead of the speaker, so started/ended events are not sent when
// the reader hands bytes over. A monitor goroutine compares each buffer's
// position in the byte stream with what the player has passed on to the
// device, and sends the events once the audio has been heard.
type Graph struct {
	player *oto.Player
	src    *queueReader
	events *eventQueue
	format Format
	head   playhead // owned by monitor
	done   chan struct{}

	mu      sync.Mutex
	started bool
	paused  bool
	closed  bool
	volume  atomic.Uint64 // float64 bits
}

var _ Output = (*Graph)(nil)

// Enqueue appends buf to the playback queue.
func (g *Graph) Enqueue(buf *Buffer, token Token) {
	if buf.Format != g.format {
		log.Warn("audio: buffer format mismatch", "token", token, "buffer", buf.Format, "device", g.format)
	}
	g.src.push(buf, token)

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed || g.paused || g.started {
		return
	}
	g.player.Play()
	g.started = true
}

// Flush drops the current and queued buffers and stops the player. Audio
// that was read ahead but not heard yet is dropped too, and no events are
// sent for it.
func (g *Graph) Flush() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return
	}

	g.src.clear()
	g.player.Pause()
	// seeking resets oto's internal buffer so no stale audio is heard
	if _, err := g.player.Seek(0, io.SeekStart); err != nil {
		log.Debug("audio: reset player buffer", "err", err)
	}
	g.started = false
	g.paused = false
}

// Truncate drops queued buffers that have not started playing.
func (g *Graph) Truncate() []Token {
	return g.src.truncate()
}

// Pause suspends the graph. The current buffer keeps its position.
func (g *Graph) Pause() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed || g.paused {
		return
	}
	g.paused = true
	if g.started {
		g.player.Pause()
	}
}

// Resume continues from the paused position.
func (g *Graph) Resume() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed || !g.paused {
		return
	}
	g.paused = false
	if g.started || g.src.busy() {
		g.player.Play()
		g.started = true
	}
}

// SetVolume sets the gain, clamped to [0, 1].
func (g *Graph) SetVolume(v float64) {
	v = math.Max(0, math.Min(1, v))
	g.volume.Store(math.Float64bits(v))
	g.player.SetVolume(v)
}

// Volume returns the current gain.
func (g *Graph) Volume() float64 {
	return math.Float64frombits(g.volume.Load())
}

// monitor sends the events of every mark the listener has reached.
func (g *Graph) monitor() {
	ticker := time.NewTicker(monitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-g.done:
			return
		case <-ticker.C:
		}
		read := g.src.consumed()
		heard := g.head.heard(read, g.player.BufferedSize())
		for _, e := range g.src.due(heard) {
			g.events.post(e)
		}
	}
}

// Events returns the started/ended event stream.
func (g *Graph) Events() <-chan Event {
	return g.events.out
}

// Close releases the player. The device stays open for other graphs.
func (g *Graph) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil
	}
	g.closed = true
	close(g.done)
	g.src.clear()
	g.events.close()
	if err := g.player.Close(); err != nil {
		return fmt.Errorf("failed to close player: %w", err)
	}
	return nil
}

type queued struct {
	buf   *Buffer
	token Token
	off   int
}

// mark is an event waiting for the listener to reach pos, an absolute
// offset in the byte stream handed to the player.
type mark struct {
	pos   int64
	event Event
}

// queueReader is the source of the oto player. It moves from one buffer to
// the next inside a single Read and fills gaps with silence. Buffer starts
// and ends are recorded as marks at their stream offset.
type queueReader struct {
	mu    sync.Mutex
	cur   *queued
	queue []*queued
	read  int64 // bytes handed to the player, silence included
	marks []mark
}

func (r *queueReader) push(buf *Buffer, token Token) {
	r.mu.Lock()
	r.queue = append(r.queue, &queued{buf: buf, token: token})
	r.mu.Unlock()
}

func (r *queueReader) clear() {
	r.mu.Lock()
	r.cur = nil
	r.queue = nil
	r.marks = nil
	r.mu.Unlock()
}

func (r *queueReader) truncate() []Token {
	r.mu.Lock()
	defer r.mu.Unlock()
	dropped := make([]Token, 0, len(r.queue))
	for _, q := range r.queue {
		dropped = append(dropped, q.token)
	}
	r.queue = nil
	return dropped
}

// busy reports whether any queued audio has not been heard yet.
func (r *queueReader) busy() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cur != nil || len(r.queue) > 0 || len(r.marks) > 0
}

func (r *queueReader) consumed() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.read
}

// due removes and returns the events of marks at or before heard.
func (r *queueReader) due(heard int64) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for n < len(r.marks) && r.marks[n].pos <= heard {
		n++
	}
	if n == 0 {
		return nil
	}
	events := make([]Event, n)
	for i, m := range r.marks[:n] {
		events[i] = m.event
	}
	r.marks = r.marks[n:]
	return events
}

// Read implements io.Reader. It always fills p.
func (r *queueReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for n < len(p) {
		if r.cur == nil {
			if len(r.queue) == 0 {
				break
			}
			r.cur = r.queue[0]
			r.queue[0] = nil
			r.queue = r.queue[1:]
			r.mark(r.read+int64(n), EventStarted, r.cur.token)
		}

		c := copy(p[n:], r.cur.buf.PCM[r.cur.off:])
		n += c
		r.cur.off += c
		if r.cur.off >= len(r.cur.buf.PCM) {
			r.mark(r.read+int64(n), EventEnded, r.cur.token)
			r.cur = nil
		}
	}

	clear(p[n:])
	r.read += int64(len(p))
	return len(p), nil
}

func (r *queueReader) mark(pos int64, kind EventKind, token Token) {
	r.marks = append(r.marks, mark{pos: pos, event: Event{Kind: kind, Token: token}})
}

// Seek implements io.Seeker so the player can drop its internal buffer on
// Flush. Only a reset to the start is supported.
func (r *queueReader) Seek(offset int64, whence int) (int64, error) {
	if offset != 0 || whence != io.SeekStart {
		return 0, errors.New("queue reader only seeks to the start")
	}
	return 0, nil
}

// playhead estimates how much of the byte stream has been heard.
type playhead struct {
	latency int64 // device buffer in bytes
	prev    int64
	primed  bool
}

// heard returns the stream offset the listener has reached, given the bytes
// read by the player and the part of them still in its buffer. The player
// appends a read to its buffer just after Read returns, so a single sample
// can run ahead by one read; the lower of two consecutive samples is used.
func (h *playhead) heard(read int64, buffered int) int64 {
	cur := read - int64(buffered) - h.latency
	safe := cur
	if h.primed && h.prev < safe {
		safe = h.prev
	}
	h.prev, h.primed = cur, true
	return safe
}
