package ui

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dgnsrekt/readaloud/internal/cache"
	"github.com/dgnsrekt/readaloud/internal/library"
	"github.com/dgnsrekt/readaloud/internal/tts"
)

// fakePlayer records calls and serves a fixed snapshot.
type fakePlayer struct {
	mu     sync.Mutex
	calls  []string
	snap   tts.Snapshot
	active tts.ProviderKind
	kinds  []tts.ProviderKind
	useErr error
	opts   tts.SpeakOptions
	pub    *tts.Publisher
}

func newFakePlayer() *fakePlayer {
	snap := tts.Snapshot{
		Provider:        tts.ProviderStream,
		Chunk:           -1,
		Volume:          0.5,
		Stability:       0.5,
		SimilarityBoost: 0.75,
		Voices: []tts.Voice{
			{ID: "a", Name: "Aria", Language: "en"},
			{ID: "b", Name: "Brian", Language: "en"},
			{ID: "c", Name: "Charlotte", Language: "sv"},
		},
		SelectedVoice: "a",
	}
	return &fakePlayer{
		snap:   snap,
		active: tts.ProviderStream,
		kinds:  []tts.ProviderKind{tts.ProviderStream, tts.ProviderNative},
		pub:    tts.NewPublisher(snap),
	}
}

func (p *fakePlayer) record(c string) {
	p.mu.Lock()
	p.calls = append(p.calls, c)
	p.mu.Unlock()
}

func (p *fakePlayer) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

func (p *fakePlayer) setPhase(ph tts.Phase) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap.Phase = ph
	p.snap.IsPlaying = ph == tts.PhasePlaying
	p.snap.IsPaused = ph == tts.PhasePaused
	p.snap.IsGenerating = ph == tts.PhaseGenerating
}

func (p *fakePlayer) Speak(text string, opts tts.SpeakOptions) error {
	p.record("speak:" + text)
	p.mu.Lock()
	p.opts = opts
	p.mu.Unlock()
	return nil
}

func (p *fakePlayer) Pause()  { p.record("pause") }
func (p *fakePlayer) Resume() { p.record("resume") }
func (p *fakePlayer) Stop()   { p.record("stop") }

func (p *fakePlayer) SetVoice(id string) { p.record("voice:" + id) }

func (p *fakePlayer) SetVolume(v float64) {
	p.record("volume")
	p.mu.Lock()
	p.snap.Volume = v
	p.mu.Unlock()
}

func (p *fakePlayer) SetStability(float64)       { p.record("stability") }
func (p *fakePlayer) SetSimilarityBoost(float64) { p.record("similarity") }

func (p *fakePlayer) LoadVoices(context.Context) error {
	p.record("voices")
	return nil
}

func (p *fakePlayer) State() tts.Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snap
}

func (p *fakePlayer) Subscribe() <-chan tts.Snapshot { return p.pub.Subscribe() }
func (p *fakePlayer) Close() error                   { p.pub.Close(); return nil }

func (p *fakePlayer) Active() tts.ProviderKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

func (p *fakePlayer) Kinds() []tts.ProviderKind { return p.kinds }

func (p *fakePlayer) Use(_ context.Context, kind tts.ProviderKind) error {
	p.record("use:" + string(kind))
	if p.useErr != nil {
		return p.useErr
	}
	p.mu.Lock()
	p.active = kind
	p.mu.Unlock()
	return nil
}

func keyPress(s string) tea.KeyMsg {
	switch s {
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func testLibrary(t *testing.T) *library.Library {
	t.Helper()
	dir := t.TempDir()
	for name, body := range map[string]string{
		"01-opening.txt": "It was a bright cold day.",
		"02-middle.txt":  "The clocks were striking thirteen.",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	lib, err := library.Open(dir, false)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return lib
}

func newTestModel(t *testing.T, p *fakePlayer) model {
	t.Helper()
	t.Cleanup(func() { p.Close() })
	cfg := Config{AutoAdvance: true, VolumeStep: 0.1, SettingStep: 0.05, StatusExpiry: time.Minute}
	m := newModel(cfg, p, testLibrary(t), func() cache.Stats { return cache.Stats{} })
	t.Cleanup(func() {
		if m.watcher != nil {
			_ = m.watcher.Close()
		}
	})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 30})
	return next.(model)
}

// loaded feeds the first chapter into m.
func loaded(t *testing.T, m model) model {
	t.Helper()
	ch, _ := m.lib.Current()
	msg := loadChapterCmd(m.lib.Index(), ch, false)()
	next, _ := m.Update(msg)
	return next.(model)
}

func press(m model, keys ...string) (model, tea.Cmd) {
	var cmd tea.Cmd
	for _, k := range keys {
		var next tea.Model
		next, cmd = m.Update(keyPress(k))
		m = next.(model)
	}
	return m, cmd
}

func TestPlayPauseKey(t *testing.T) {
	tests := []struct {
		name  string
		phase tts.Phase
		want  string
	}{
		{"idle speaks", tts.PhaseIdle, "speak:It was a bright cold day."},
		{"stopped speaks", tts.PhaseStopped, "speak:It was a bright cold day."},
		{"playing pauses", tts.PhasePlaying, "pause"},
		{"paused resumes", tts.PhasePaused, "resume"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newFakePlayer()
			p.setPhase(tt.phase)
			m := loaded(t, newTestModel(t, p))

			_, cmd := press(m, " ")
			if cmd != nil {
				cmd()
			}
			calls := p.Calls()
			if len(calls) != 1 || calls[0] != tt.want {
				t.Errorf("calls = %v, want [%s]", calls, tt.want)
			}
		})
	}
}

func TestPlayWithoutChapter(t *testing.T) {
	p := newFakePlayer()
	m := newTestModel(t, p)

	m, _ = press(m, " ")
	if len(p.Calls()) != 0 {
		t.Errorf("calls = %v, want none", p.Calls())
	}
	if m.statusMessage != "No chapter loaded" {
		t.Errorf("status = %q", m.statusMessage)
	}
}

func TestChapterNavigationStopsPlayback(t *testing.T) {
	p := newFakePlayer()
	p.setPhase(tts.PhasePlaying)
	m := loaded(t, newTestModel(t, p))

	m, cmd := press(m, "n")
	if m.lib.Index() != 1 {
		t.Fatalf("index = %d, want 1", m.lib.Index())
	}
	if cmd == nil {
		t.Fatal("expected a load command")
	}
	msg, ok := cmd().(chapterLoadedMsg)
	if !ok || !msg.play {
		t.Fatalf("load msg = %#v, want play", msg)
	}
	next, cmd := m.Update(msg)
	m = next.(model)
	if m.chapter.Title != "02-middle" {
		t.Errorf("title = %q", m.chapter.Title)
	}
	cmd()

	calls := p.Calls()
	want := []string{"stop", "speak:The clocks were striking thirteen."}
	if strings.Join(calls, "|") != strings.Join(want, "|") {
		t.Errorf("calls = %v, want %v", calls, want)
	}

	// No chapter before the first one.
	m, _ = press(m, "p", "p")
	if m.lib.Index() != 0 {
		t.Errorf("index = %d, want 0", m.lib.Index())
	}
}

func TestAutoAdvance(t *testing.T) {
	p := newFakePlayer()
	m := loaded(t, newTestModel(t, p))

	_, cmd := press(m, " ")
	cmd()
	p.mu.Lock()
	onComplete := p.opts.OnComplete
	p.mu.Unlock()
	if onComplete == nil {
		t.Fatal("OnComplete not set")
	}
	onComplete()

	msg := waitForFinished(m.finished)()
	next, cmd := m.Update(msg)
	m = next.(model)
	if m.lib.Index() != 1 {
		t.Fatalf("index = %d, want 1", m.lib.Index())
	}
	loadedMsg := findMsg[chapterLoadedMsg](t, cmd)
	if !loadedMsg.play || loadedMsg.index != 1 {
		t.Errorf("load msg = %#v", loadedMsg)
	}

	// A completion for a chapter that is no longer current is ignored.
	next, _ = m.Update(chapterFinishedMsg{index: 0})
	if next.(model).lib.Index() != 1 {
		t.Error("stale completion advanced the library")
	}
}

func TestAutoAdvanceAtEnd(t *testing.T) {
	p := newFakePlayer()
	m := loaded(t, newTestModel(t, p))
	m.lib.Seek(1)
	m.chapterIndex = 1

	next, _ := m.Update(chapterFinishedMsg{index: 1})
	if got := next.(model).statusMessage; got != "Finished reading." {
		t.Errorf("status = %q", got)
	}
}

func TestSettingsKeys(t *testing.T) {
	p := newFakePlayer()
	m := newTestModel(t, p)

	m, _ = press(m, "+", "+", "]", "{")
	calls := p.Calls()
	want := []string{"volume", "volume", "stability", "similarity"}
	if strings.Join(calls, "|") != strings.Join(want, "|") {
		t.Errorf("calls = %v, want %v", calls, want)
	}
	if v := p.State().Volume; v < 0.69 || v > 0.71 {
		t.Errorf("volume = %v, want 0.7", v)
	}

	p.active = tts.ProviderNative
	m, _ = press(m, "]")
	if len(p.Calls()) != len(want) {
		t.Error("native provider received a stability change")
	}
	if m.statusMessage == "" {
		t.Error("expected a status message")
	}
}

func TestVoicePicker(t *testing.T) {
	p := newFakePlayer()
	m := newTestModel(t, p)

	m, _ = press(m, "v")
	if m.picker == nil {
		t.Fatal("picker not open")
	}
	if v, _ := m.picker.Selected(); v.ID != "a" {
		t.Errorf("initial selection = %q, want a", v.ID)
	}
	if !strings.Contains(m.View(), "Charlotte") {
		t.Error("picker view does not list voices")
	}

	m, _ = press(m, "c", "h", "a", "r")
	if v, ok := m.picker.Selected(); !ok || v.ID != "c" {
		t.Errorf("filtered selection = %+v", v)
	}

	m, _ = press(m, "enter")
	if m.picker != nil {
		t.Error("picker still open")
	}
	if calls := p.Calls(); len(calls) != 1 || calls[0] != "voice:c" {
		t.Errorf("calls = %v", calls)
	}

	m, _ = press(m, "v", "esc")
	if m.picker != nil || len(p.Calls()) != 1 {
		t.Error("esc should close the picker without selecting")
	}
}

func TestSwitchProviderKey(t *testing.T) {
	p := newFakePlayer()
	m := newTestModel(t, p)

	_, cmd := press(m, "tab")
	msg := cmd().(providerSwitchedMsg)
	if msg.kind != tts.ProviderNative || msg.err != nil {
		t.Fatalf("msg = %#v", msg)
	}
	next, _ := m.Update(msg)
	if got := next.(model).statusMessage; got != "Using Device voices" {
		t.Errorf("status = %q", got)
	}

	p.useErr = tts.NewTTSError(tts.ErrorCodeVoicesUnavailable, "Unable to load device voices.", errors.New("boom"))
	_, cmd = press(m, "tab")
	next, _ = m.Update(cmd())
	nm := next.(model)
	if !nm.statusIsError || nm.statusMessage != "Unable to load device voices." {
		t.Errorf("status = %q (error %v)", nm.statusMessage, nm.statusIsError)
	}
}

func TestSnapshotErrorShown(t *testing.T) {
	p := newFakePlayer()
	m := newTestModel(t, p)

	snap := p.State()
	snap.Phase = tts.PhaseErrored
	snap.Err = tts.NewTTSError(tts.ErrorCodeEngineFailure, "Speech synthesis failed.", nil)
	next, _ := m.Update(stateMsg(snap))
	m = next.(model)
	if m.statusMessage != "Speech synthesis failed." {
		t.Errorf("status = %q", m.statusMessage)
	}
	if viewOf(m.snap) != phaseError {
		t.Errorf("phase view = %v", viewOf(m.snap))
	}

	next, _ = m.Update(statusMessageTimeoutMsg{})
	if next.(model).statusMessage != "" {
		t.Error("status message not cleared")
	}
}

func TestFatalErrorStays(t *testing.T) {
	p := newFakePlayer()
	m := newTestModel(t, p)

	fatal := tts.NewTTSError(tts.ErrorCodeEngineUnavailable, "Speech engine not found.", nil)
	next, cmd := m.Update(voicesLoadedMsg{err: fatal})
	m = next.(model)
	if cmd != nil {
		t.Error("fatal error armed the status timer")
	}
	next, _ = m.Update(statusMessageTimeoutMsg{})
	m = next.(model)
	if m.statusMessage != "Speech engine not found." || !m.statusIsError {
		t.Errorf("fatal error cleared: status = %q", m.statusMessage)
	}

	// the next status replaces it and expires as usual
	_ = m.showStatus("Voice: Rachel")
	next, _ = m.Update(statusMessageTimeoutMsg{})
	if next.(model).statusMessage != "" {
		t.Error("status after a fatal error did not expire")
	}
}

func TestChapterReloadOnChange(t *testing.T) {
	p := newFakePlayer()
	m := loaded(t, newTestModel(t, p))

	if err := os.WriteFile(m.chapter.Path, []byte("A new opening."), 0o644); err != nil {
		t.Fatal(err)
	}
	next, cmd := m.Update(chapterChangedMsg{path: m.chapter.Path})
	m = next.(model)
	if m.statusMessage != "Chapter reloaded" {
		t.Errorf("status = %q", m.statusMessage)
	}
	msg := findMsg[chapterLoadedMsg](t, cmd)
	if msg.play || msg.text != "A new opening." {
		t.Errorf("reload msg = %#v", msg)
	}

	// Other files in the directory are ignored.
	m.statusMessage = ""
	next, _ = m.Update(chapterChangedMsg{path: filepath.Join(filepath.Dir(m.chapter.Path), "notes.txt")})
	if got := next.(model).statusMessage; got != "" {
		t.Errorf("status = %q, want none", got)
	}
}

func TestView(t *testing.T) {
	p := newFakePlayer()
	m := loaded(t, newTestModel(t, p))

	snap := p.State()
	snap.Phase = tts.PhasePlaying
	snap.IsPlaying = true
	snap.Chunk = 0
	snap.ChunkText = "It was a bright cold day."
	next, _ := m.Update(stateMsg(snap))
	view := next.(model).View()

	for _, want := range []string{"Read Aloud", "01-opening", "1/2", "Playing", "Aria", "ElevenLabs"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

// findMsg runs cmd and returns the first T it produces. Commands in a
// batch run concurrently since some of them block on channels.
func findMsg[T tea.Msg](t *testing.T, cmd tea.Cmd) T {
	t.Helper()
	var zero T
	if cmd == nil {
		t.Fatal("no command")
	}
	msg := cmd()
	if m, ok := msg.(T); ok {
		return m
	}
	batch, ok := msg.(tea.BatchMsg)
	if !ok {
		t.Fatalf("got %T, want %T", msg, zero)
	}
	found := make(chan T, len(batch))
	for _, c := range batch {
		if c == nil {
			continue
		}
		go func() {
			if m, ok := c().(T); ok {
				found <- m
			}
		}()
	}
	select {
	case m := <-found:
		return m
	case <-time.After(2 * time.Second):
		t.Fatalf("no %T in batch", zero)
	}
	return zero
}
