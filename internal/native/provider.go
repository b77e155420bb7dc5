package native

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/readaloud/internal/audio"
	"github.com/dgnsrekt/readaloud/internal/segment"
	"github.com/dgnsrekt/readaloud/internal/synth"
	"github.com/dgnsrekt/readaloud/internal/tts"
)

// Config configures a Provider.
type Config struct {
	Engine Engine
	// Output plays the rendered chapter. The provider owns it.
	Output audio.Output
	Format audio.Format
	// Voice is the initial voice; empty uses the engine default.
	Voice  string
	Volume float64
}

// Provider speaks a whole chapter as a single utterance. There is no
// chunking and no request concurrency; the session id guards the engine
// result the same way the streaming provider guards its chunks.
type Provider struct {
	engine Engine
	out    audio.Output
	format audio.Format
	pub    *tts.Publisher

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once

	mu         sync.Mutex
	sm         *tts.StateMachine
	lastID     uint64
	session    tts.Session
	active     bool
	text       string
	onComplete func()
	settings   tts.Settings
	voices     []tts.Voice
	loading    bool
	err        error
	closed     bool
}

var _ tts.Provider = (*Provider)(nil)

// New creates a native provider.
func New(cfg Config) (*Provider, error) {
	if cfg.Engine == nil {
		return nil, errors.New("engine is required")
	}
	if cfg.Output == nil {
		return nil, errors.New("output is required")
	}
	if cfg.Format == (audio.Format{}) {
		cfg.Format = audio.DefaultFormat()
	}

	settings := tts.DefaultSettings()
	settings.Voice = cfg.Voice
	if cfg.Volume > 0 {
		settings.Volume = synth.Clamp01(cfg.Volume)
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Provider{
		engine:   cfg.Engine,
		out:      cfg.Output,
		format:   cfg.Format,
		ctx:      ctx,
		cancel:   cancel,
		sm:       tts.NewStateMachine(),
		settings: settings,
	}
	p.out.SetVolume(settings.Volume)
	p.pub = tts.NewPublisher(p.snapshotLocked())

	p.wg.Add(1)
	go p.watch()
	return p, nil
}

// Speak renders text and plays it, replacing any running utterance.
func (p *Provider) Speak(text string, opts tts.SpeakOptions) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	defer p.publishLocked()

	if p.closed {
		return tts.ErrClosed
	}
	text = segment.CollapseWhitespace(text)
	if text == "" {
		p.err = tts.NewTTSError(tts.ErrorCodeInvalidInput, "Nothing to read from this chapter.", tts.ErrEmptyText)
		return p.err
	}

	p.finishLocked(tts.PhaseStopped)

	p.lastID++
	p.session = tts.Session{ID: p.lastID, StartedAt: time.Now()}
	p.active = true
	p.text = text
	p.err = nil
	p.onComplete = opts.OnComplete
	p.sm.Transition(tts.PhaseGenerating)

	p.wg.Add(1)
	go p.render(p.session.ID, text, p.settings.Voice)
	return nil
}

func (p *Provider) render(id uint64, text, voice string) {
	defer p.wg.Done()

	payload, err := p.engine.Synthesize(p.ctx, text, voice)
	var buf *audio.Buffer
	if err == nil {
		buf, err = audio.Decode(payload, p.format)
		if err != nil {
			err = tts.NewTTSError(tts.ErrorCodeAudioFormat, "Failed to decode speech engine audio.", err)
		}
	} else {
		err = tts.NewTTSError(tts.ErrorCodeEngineFailure, err.Error(), err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.active || p.session.ID != id {
		log.Debug("native: dropping stale utterance", "session", id)
		return
	}
	if err != nil {
		log.Warn("native: synthesis failed", "session", id, "err", err)
		p.err = err
		p.finishLocked(tts.PhaseErrored)
		p.publishLocked()
		return
	}
	p.out.Enqueue(buf, audio.Token{Session: id})
	p.publishLocked()
}

// watch follows output events until the provider is closed.
func (p *Provider) watch() {
	defer p.wg.Done()
	events := p.out.Events()
	for {
		select {
		case <-p.ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			p.handleEvent(ev)
		}
	}
}

func (p *Provider) handleEvent(ev audio.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.active || ev.Token.Session != p.session.ID {
		return
	}
	switch ev.Kind {
	case audio.EventStarted:
		if p.sm.Current() == tts.PhaseGenerating {
			p.sm.Transition(tts.PhasePlaying)
		}
	case audio.EventEnded:
		p.finishLocked(tts.PhaseCompleted)
	}
	p.publishLocked()
}

// Pause suspends playback.
func (p *Provider) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sm.Current() != tts.PhasePlaying {
		return
	}
	p.out.Pause()
	p.sm.Transition(tts.PhasePaused)
	p.publishLocked()
}

// Resume continues playback.
func (p *Provider) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sm.Current() != tts.PhasePaused {
		return
	}
	p.out.Resume()
	p.sm.Transition(tts.PhasePlaying)
	p.publishLocked()
}

// Stop ends the utterance without completing it.
func (p *Provider) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finishLocked(tts.PhaseStopped)
	p.publishLocked()
}

// SetVoice selects the voice of the next utterance.
func (p *Provider) SetVoice(id string) {
	p.update(func() { p.settings.Voice = id })
}

// SetVolume changes the output gain at once.
func (p *Provider) SetVolume(v float64) {
	p.update(func() {
		p.settings.Volume = synth.Clamp01(v)
		p.out.SetVolume(p.settings.Volume)
	})
}

// SetStability is recorded but has no effect on the local engine.
func (p *Provider) SetStability(v float64) {
	p.update(func() { p.settings.Stability = synth.Clamp01(v) })
}

// SetSimilarityBoost is recorded but has no effect on the local engine.
func (p *Provider) SetSimilarityBoost(v float64) {
	p.update(func() { p.settings.SimilarityBoost = synth.Clamp01(v) })
}

func (p *Provider) update(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn()
	p.publishLocked()
}

// LoadVoices lists the engine voices. An empty selection falls back to the
// first voice.
func (p *Provider) LoadVoices(ctx context.Context) error {
	p.update(func() {
		p.loading = true
		p.err = nil
	})

	voices, err := p.engine.Voices(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	defer p.publishLocked()
	p.loading = false
	if err != nil {
		p.err = tts.NewTTSError(tts.ErrorCodeVoicesUnavailable, "Unable to load device voices.", err)
		return p.err
	}
	p.voices = voices
	if p.settings.Voice == "" && len(voices) > 0 {
		p.settings.Voice = voices[0].ID
	}
	return nil
}

// State returns the latest snapshot.
func (p *Provider) State() tts.Snapshot {
	return p.pub.State()
}

// Subscribe returns a channel of snapshots.
func (p *Provider) Subscribe() <-chan tts.Snapshot {
	return p.pub.Subscribe()
}

// Close stops playback and releases the output.
func (p *Provider) Close() error {
	var err error
	p.once.Do(func() {
		p.mu.Lock()
		p.finishLocked(tts.PhaseStopped)
		p.closed = true
		p.mu.Unlock()

		p.cancel()
		p.wg.Wait()
		err = p.out.Close()
		p.pub.Close()
	})
	return err
}

func (p *Provider) finishLocked(phase tts.Phase) {
	if !p.active {
		return
	}
	p.out.Flush()
	p.active = false
	p.text = ""
	if !p.sm.Transition(phase) {
		log.Debug("native: invalid transition", "from", p.sm.Current(), "to", phase)
	}
	cb := p.onComplete
	p.onComplete = nil
	if phase == tts.PhaseCompleted && cb != nil {
		go cb()
	}
}

func (p *Provider) snapshotLocked() tts.Snapshot {
	phase := p.sm.Current()
	snap := tts.Snapshot{
		Phase:           phase,
		IsPlaying:       phase == tts.PhasePlaying || phase == tts.PhasePaused,
		IsPaused:        phase == tts.PhasePaused,
		IsGenerating:    phase == tts.PhaseGenerating,
		Voices:          p.voices,
		SelectedVoice:   p.settings.Voice,
		LoadingVoices:   p.loading,
		Volume:          p.settings.Volume,
		Stability:       p.settings.Stability,
		SimilarityBoost: p.settings.SimilarityBoost,
		Err:             p.err,
		Session:         p.session,
		Chunk:           -1,
	}
	if p.active && snap.IsPlaying {
		snap.Chunk = 0
		snap.ChunkText = p.text
	}
	return snap
}

func (p *Provider) publishLocked() {
	p.pub.Publish(p.snapshotLocked())
}
