package tts

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/readaloud/internal/audio"
	"github.com/dgnsrekt/readaloud/internal/observability"
	"github.com/dgnsrekt/readaloud/internal/queue"
	"github.com/dgnsrekt/readaloud/internal/segment"
	"github.com/dgnsrekt/readaloud/internal/synth"
)

// segmentBuffer bounds how far the segmenter runs ahead of the loop.
const segmentBuffer = 16

// Settings are the user-adjustable voice and output settings.
type Settings struct {
	Voice           string
	Volume          float64
	Stability       float64
	SimilarityBoost float64
}

// DefaultSettings returns the default settings with no voice selected.
func DefaultSettings() Settings {
	return Settings{
		Volume:          DefaultVolume,
		Stability:       DefaultStability,
		SimilarityBoost: DefaultSimilarityBoost,
	}
}

func (s Settings) clamped() Settings {
	s.Volume = synth.Clamp01(s.Volume)
	s.Stability = synth.Clamp01(s.Stability)
	s.SimilarityBoost = synth.Clamp01(s.SimilarityBoost)
	return s
}

// StreamConfig configures a Stream.
type StreamConfig struct {
	Synthesizer synth.Synthesizer
	// Catalog lists voices; nil disables LoadVoices.
	Catalog synth.Catalog
	// Output plays decoded buffers. The stream owns it and closes it.
	Output audio.Output
	// Format is the PCM format payloads are decoded to.
	Format audio.Format

	Scheduler   queue.SchedulerConfig
	TargetChars int
	MaxChars    int
	// Splitter overrides the sentence splitter of the segmenter.
	Splitter segment.Splitter

	Settings Settings
	Metrics  *observability.Metrics
}

type decoded struct {
	index int
	buf   *audio.Buffer
}

type fetchResult struct {
	session uint64
	chunk   queue.PendingChunk
	buf     *audio.Buffer
	err     error
}

// Stream is the remote streaming provider. One goroutine owns the whole
// pipeline state; every input reaches it as a channel message.
type Stream struct {
	synth   synth.Synthesizer
	catalog synth.Catalog
	out     audio.Output
	format  audio.Format
	worker  *segment.Worker
	metrics *observability.Metrics
	pub     *Publisher

	targetChars int
	maxChars    int

	ctx       context.Context
	cancel    context.CancelFunc
	cmds      chan func()
	results   chan fetchResult
	done      chan struct{}
	closeOnce sync.Once

	// owned by the loop goroutine
	sm           *StateMachine
	sched        *queue.Scheduler
	reorder      *queue.Reorder[decoded]
	lastID       uint64
	session      Session
	active       bool
	chunkingDone bool
	failed       bool
	outstanding  map[int]float64 // released to the output and not ended yet
	texts        map[int]string
	current      int
	currentText  string
	onComplete   func()
	settings     Settings
	voices       []Voice
	loading      bool
	err          error
}

var _ Provider = (*Stream)(nil)

// NewStream creates a streaming provider and starts its loop.
func NewStream(cfg StreamConfig) (*Stream, error) {
	if cfg.Synthesizer == nil {
		return nil, errors.New("synthesizer is required")
	}
	if cfg.Output == nil {
		return nil, errors.New("output is required")
	}
	if cfg.Format == (audio.Format{}) {
		cfg.Format = audio.DefaultFormat()
	}
	if err := cfg.Format.Validate(); err != nil {
		return nil, fmt.Errorf("invalid format: %w", err)
	}
	if cfg.TargetChars <= 0 {
		cfg.TargetChars = TargetChars
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = MaxChars
	}
	if cfg.Settings == (Settings{}) {
		cfg.Settings = DefaultSettings()
	}

	ctx, cancel := context.WithCancel(context.Background())
	wopts := []segment.WorkerOption{segment.WithBuffer(segmentBuffer)}
	if cfg.Splitter != nil {
		wopts = append(wopts, segment.WithSplitter(cfg.Splitter))
	}

	s := &Stream{
		synth:       cfg.Synthesizer,
		catalog:     cfg.Catalog,
		out:         cfg.Output,
		format:      cfg.Format,
		worker:      segment.NewWorker(ctx, wopts...),
		metrics:     cfg.Metrics,
		targetChars: cfg.TargetChars,
		maxChars:    cfg.MaxChars,
		ctx:         ctx,
		cancel:      cancel,
		cmds:        make(chan func()),
		results:     make(chan fetchResult),
		done:        make(chan struct{}),
		sm:          NewStateMachine(),
		sched:       queue.NewScheduler(cfg.Scheduler),
		reorder:     queue.NewReorder[decoded](),
		outstanding: make(map[int]float64),
		texts:       make(map[int]string),
		current:     -1,
		settings:    cfg.Settings.clamped(),
	}
	for p, outcome := range map[Phase]string{
		PhaseCompleted: observability.SessionCompleted,
		PhaseStopped:   observability.SessionStopped,
		PhaseErrored:   observability.SessionErrored,
	} {
		s.sm.OnEnter(p, func() { s.metrics.SessionEnded(outcome) })
	}
	s.out.SetVolume(s.settings.Volume)
	s.pub = NewPublisher(s.snapshot())

	go s.run()
	return s, nil
}

// Speak starts reading text, replacing any running session. Empty text or
// a missing voice fail at once and leave a running session untouched.
func (s *Stream) Speak(text string, opts SpeakOptions) error {
	var err error
	if !s.call(func() { err = s.speak(text, opts) }) {
		return ErrClosed
	}
	return err
}

// Pause suspends playback mid-buffer. It does nothing while the output
// waits for the next chunk.
func (s *Stream) Pause() {
	s.call(func() {
		if !s.sm.Can(PhasePaused) || s.starved() {
			return
		}
		s.out.Pause()
		s.sm.Transition(PhasePaused)
	})
}

// Resume continues the paused buffer.
func (s *Stream) Resume() {
	s.call(func() {
		if s.sm.Current() != PhasePaused {
			return
		}
		s.out.Resume()
		s.sm.Transition(PhasePlaying)
	})
}

// Stop tears down the running session without completing it.
func (s *Stream) Stop() {
	s.call(func() { s.finish(PhaseStopped) })
}

// SetVoice selects the voice for the next request.
func (s *Stream) SetVoice(id string) {
	s.call(func() { s.settings.Voice = id })
}

// SetVolume changes the output gain at once.
func (s *Stream) SetVolume(v float64) {
	s.call(func() {
		s.settings.Volume = synth.Clamp01(v)
		s.out.SetVolume(s.settings.Volume)
	})
}

// SetStability changes the stability of the next request.
func (s *Stream) SetStability(v float64) {
	s.call(func() { s.settings.Stability = synth.Clamp01(v) })
}

// SetSimilarityBoost changes the similarity boost of the next request.
func (s *Stream) SetSimilarityBoost(v float64) {
	s.call(func() { s.settings.SimilarityBoost = synth.Clamp01(v) })
}

// LoadVoices fetches the catalog. The selected voice falls back to the
// first entry when it is unset or no longer listed.
func (s *Stream) LoadVoices(ctx context.Context) error {
	if s.catalog == nil {
		return nil
	}
	if !s.call(func() {
		s.loading = true
		s.err = nil
	}) {
		return ErrClosed
	}

	voices, err := s.catalog.Voices(ctx)

	var result error
	s.call(func() {
		s.loading = false
		if err != nil {
			s.err = catalogError(err)
			result = s.err
			return
		}
		s.voices = voices
		s.settings.Voice = pickVoice(voices, s.settings.Voice)
	})
	return result
}

// State returns the latest snapshot.
func (s *Stream) State() Snapshot {
	return s.pub.State()
}

// Subscribe returns a channel of snapshots; see Publisher.
func (s *Stream) Subscribe() <-chan Snapshot {
	return s.pub.Subscribe()
}

// Close stops playback, ends the loop and closes the output.
func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.call(func() { s.finish(PhaseStopped) })
		s.cancel()
		<-s.done
		s.worker.Close()
		err = s.out.Close()
		s.pub.Close()
	})
	return err
}

// call runs fn on the loop goroutine and waits for it. It reports false
// once the loop has exited.
func (s *Stream) call(fn func()) bool {
	ran := make(chan struct{})
	select {
	case s.cmds <- func() {
		fn()
		s.publish()
		close(ran)
	}:
	case <-s.done:
		return false
	}
	<-ran
	return true
}

func (s *Stream) run() {
	defer close(s.done)
	events := s.out.Events()
	for {
		select {
		case <-s.ctx.Done():
			return
		case fn := <-s.cmds:
			fn()
			continue
		case msg := <-s.worker.Messages():
			s.handleSegment(msg)
		case res := <-s.results:
			s.handleResult(res)
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			s.handleEvent(ev)
		}
		s.publish()
	}
}

func (s *Stream) speak(text string, opts SpeakOptions) error {
	text = segment.CollapseWhitespace(text)
	if text == "" {
		s.err = errNothingToRead()
		return s.err
	}
	if s.settings.Voice == "" {
		s.err = errSelectVoice()
		return s.err
	}

	s.finish(PhaseStopped)

	s.lastID++
	s.session = Session{ID: s.lastID, StartedAt: time.Now()}
	s.active = true
	s.err = nil
	s.onComplete = opts.OnComplete
	s.sm.Transition(PhaseGenerating)

	log.Debug("stream: speak", "session", s.session.ID, "chars", len(text))
	s.worker.Submit(segment.Request{
		ID:          s.session.ID,
		Text:        text,
		TargetChars: s.targetChars,
		MaxChars:    s.maxChars,
	})
	return nil
}

func (s *Stream) handleSegment(msg segment.Message) {
	if !s.active || msg.ID != s.session.ID {
		return
	}
	switch msg.Type {
	case segment.MessageChunk:
		if s.failed {
			return
		}
		s.texts[msg.Index] = msg.Text
		s.sched.Push(msg.Index, msg.Text)
		s.pump()
	case segment.MessageDone:
		s.chunkingDone = true
		s.checkComplete()
	case segment.MessageError:
		cause := fmt.Errorf("%w: %w", ErrSegmentation, msg.Err)
		s.fail(NewTTSError(ErrorCodeSegmentation, msg.Err.Error(), cause))
	}
}

// pump dispatches as many pending chunks as the scheduler allows.
func (s *Stream) pump() {
	if !s.active || s.failed {
		return
	}
	for {
		c, ok := s.sched.Next()
		if !ok {
			return
		}
		req := synth.Request{
			Text:            c.Text,
			VoiceID:         s.settings.Voice,
			Stability:       s.settings.Stability,
			SimilarityBoost: s.settings.SimilarityBoost,
		}
		log.Debug("stream: dispatch", "session", s.session.ID, "index", c.Index,
			"inflight", s.sched.Inflight(), "pending", s.sched.PendingLen(), "budget", s.sched.Budget().Total())
		s.metrics.ChunkEvent(observability.ChunkDispatched)
		go s.fetch(s.session.ID, c, req)
	}
}

// fetch requests and decodes one chunk. Its slot stays taken until the
// payload is decoded.
func (s *Stream) fetch(session uint64, c queue.PendingChunk, req synth.Request) {
	res := fetchResult{session: session, chunk: c}

	start := time.Now()
	payload, err := s.synth.Synthesize(s.ctx, req)
	s.metrics.ObserveSynthLatency(time.Since(start))

	if err != nil {
		res.err = NewTTSError(ErrorCodeEngineFailure, err.Error(), err).WithContext("index", c.Index)
	} else if buf, derr := audio.Decode(payload, s.format); derr != nil {
		res.err = NewTTSError(ErrorCodeAudioFormat, msgDecodeFailed, derr).WithContext("index", c.Index)
	} else {
		res.buf = buf
	}

	select {
	case s.results <- res:
	case <-s.ctx.Done():
	}
}

func (s *Stream) handleResult(res fetchResult) {
	if !s.active || res.session != s.session.ID {
		log.Debug("stream: dropping stale result", "session", res.session, "index", res.chunk.Index)
		s.metrics.ChunkEvent(observability.ChunkStale)
		return
	}
	s.sched.Settle(res.chunk)
	if s.failed {
		return
	}
	if res.err != nil {
		s.metrics.ChunkEvent(observability.ChunkFailed)
		s.fail(res.err)
		return
	}

	s.sched.AddBuffered(res.buf.Seconds())
	if err := s.reorder.Push(res.chunk.Index, decoded{index: res.chunk.Index, buf: res.buf}); err != nil {
		log.Warn("stream: unexpected chunk", "session", res.session, "index", res.chunk.Index, "err", err)
		s.sched.ConsumeBuffered(res.buf.Seconds())
	}
	s.release()
	s.pump()
	s.checkComplete()
}

// release hands every buffer whose predecessors were all released to the
// output, in index order.
func (s *Stream) release() {
	for {
		item, ok := s.reorder.PopReady()
		if !ok {
			return
		}
		s.outstanding[item.index] = item.buf.Seconds()
		s.out.Enqueue(item.buf, audio.Token{Session: s.session.ID, Index: item.index})
	}
}

func (s *Stream) handleEvent(ev audio.Event) {
	if !s.active || ev.Token.Session != s.session.ID {
		return
	}
	idx := ev.Token.Index

	switch ev.Kind {
	case audio.EventStarted:
		if sec, ok := s.outstanding[idx]; ok {
			s.sched.ConsumeBuffered(sec)
		}
		s.current = idx
		s.currentText = s.texts[idx]
		if s.sm.Current() == PhaseGenerating {
			s.sm.Transition(PhasePlaying)
		}
		s.metrics.ChunkEvent(observability.ChunkPlayed)
		s.pump()

	case audio.EventEnded:
		delete(s.outstanding, idx)
		delete(s.texts, idx)
		if s.failed {
			if len(s.outstanding) == 0 {
				s.finish(PhaseErrored)
			}
			return
		}
		s.pump()
		s.checkComplete()
	}
}

// fail aborts the session: no more dispatch or release. Audio that is
// already playing runs to its end, then the session ends as errored.
func (s *Stream) fail(err error) {
	log.Warn("stream: session failed", "session", s.session.ID, "err", err)
	s.failed = true
	s.err = err
	s.worker.Cancel(s.session.ID)
	s.sched.Reset()
	s.reorder.Reset()
	for _, tok := range s.out.Truncate() {
		delete(s.outstanding, tok.Index)
	}
	if len(s.outstanding) == 0 {
		s.finish(PhaseErrored)
	}
}

func (s *Stream) checkComplete() {
	if !s.active || s.failed || !s.chunkingDone {
		return
	}
	if !s.sched.Idle() || s.reorder.Len() > 0 || len(s.outstanding) > 0 {
		return
	}
	s.finish(PhaseCompleted)
}

// finish ends the running session, if any, in phase p. The output is
// flushed and all session state dropped before the id is retired.
func (s *Stream) finish(p Phase) {
	if !s.active {
		return
	}
	id := s.session.ID
	s.worker.Cancel(id)
	s.out.Flush()
	s.sched.Reset()
	s.reorder.Reset()
	clear(s.outstanding)
	clear(s.texts)
	s.active = false
	s.failed = false
	s.chunkingDone = false
	s.current = -1
	s.currentText = ""

	if !s.sm.Transition(p) {
		log.Debug("stream: invalid transition", "from", s.sm.Current(), "to", p)
	}
	cb := s.onComplete
	s.onComplete = nil

	log.Debug("stream: session ended", "session", id, "phase", p, "took", time.Since(s.session.StartedAt))
	if p == PhaseCompleted && cb != nil {
		go cb()
	}
}

// starved reports a playing session whose output has run dry while the
// next chunk is still being fetched.
func (s *Stream) starved() bool {
	return s.sm.Current() == PhasePlaying && len(s.outstanding) == 0
}

func (s *Stream) snapshot() Snapshot {
	p := s.sm.Current()
	return Snapshot{
		Phase:           p,
		IsPlaying:       (p == PhasePlaying && !s.starved()) || p == PhasePaused,
		IsPaused:        p == PhasePaused,
		IsGenerating:    s.active && !s.failed && (!s.chunkingDone || !s.sched.Idle() || s.reorder.Len() > 0),
		Voices:          s.voices,
		SelectedVoice:   s.settings.Voice,
		LoadingVoices:   s.loading,
		Volume:          s.settings.Volume,
		Stability:       s.settings.Stability,
		SimilarityBoost: s.settings.SimilarityBoost,
		Err:             s.err,
		Session:         s.session,
		Chunk:           s.current,
		ChunkText:       s.currentText,
	}
}

func (s *Stream) publish() {
	s.metrics.SetInflight(s.sched.Inflight())
	s.metrics.SetBufferedAhead(s.sched.Budget().BufferedAheadSeconds)
	s.pub.Publish(s.snapshot())
}

// pickVoice keeps current when it is listed, else selects the first voice.
func pickVoice(voices []Voice, current string) string {
	for _, v := range voices {
		if v.ID == current {
			return current
		}
	}
	if len(voices) > 0 {
		return voices[0].ID
	}
	return current
}

func catalogError(err error) *TTSError {
	msg := msgVoicesFailed
	var se *synth.StatusError
	if errors.As(err, &se) && se.Body != "" {
		msg = se.Body
	}
	return NewTTSError(ErrorCodeVoicesUnavailable, msg, err)
}
