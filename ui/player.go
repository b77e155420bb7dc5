package ui

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	"github.com/muesli/reflow/ansi"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/termenv"

	"github.com/dgnsrekt/readaloud/internal/cache"
	"github.com/dgnsrekt/readaloud/internal/library"
	"github.com/dgnsrekt/readaloud/internal/tts"
)

const ellipsis = "…"

// Player is the speech control surface the UI drives.
type Player interface {
	tts.Provider
	Active() tts.ProviderKind
	Kinds() []tts.ProviderKind
	Use(ctx context.Context, kind tts.ProviderKind) error
}

type model struct {
	cfg    Config
	player Player
	lib    *library.Library
	stats  func() cache.Stats

	keys     keyMap
	help     help.Model
	spinner  spinner.Model
	viewport viewport.Model
	picker   *voicePicker
	watcher  *fsnotify.Watcher

	width  int
	height int

	snap     tts.Snapshot
	states   <-chan tts.Snapshot
	finished chan int

	chapter      library.Chapter
	chapterIndex int
	text         string
	loaded       bool

	statusMessage string
	statusIsError bool
	statusSticky  bool // fatal errors stay until replaced
	statusTimer   *time.Timer
}

func newModel(cfg Config, player Player, lib *library.Library, stats func() cache.Stats) model {
	if cfg.StatusExpiry <= 0 {
		cfg.StatusExpiry = 3 * time.Second
	}
	if cfg.VolumeStep <= 0 {
		cfg.VolumeStep = 0.1
	}
	if cfg.SettingStep <= 0 {
		cfg.SettingStep = 0.05
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(blue)

	return model{
		cfg:          cfg,
		player:       player,
		lib:          lib,
		stats:        stats,
		keys:         newKeyMap(),
		help:         help.New(),
		spinner:      sp,
		viewport:     viewport.New(0, 0),
		snap:         player.State(),
		states:       player.Subscribe(),
		finished:     make(chan int, 1),
		chapterIndex: -1,
		watcher:      newWatcher(),
	}
}

func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		waitForState(m.states),
		waitForFinished(m.finished),
		m.spinner.Tick,
		loadVoicesCmd(m.player),
		waitForChange(m.watcher),
	}
	if ch, ok := m.lib.Current(); ok {
		cmds = append(cmds, loadChapterCmd(m.lib.Index(), ch, m.cfg.AutoPlay))
	}
	return tea.Batch(cmds...)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.resize()
		return m, nil

	case tea.KeyMsg:
		if m.picker != nil {
			return m.updatePicker(msg)
		}
		return m.handleKey(msg)

	case stateMsg:
		prev := m.snap
		m.snap = tts.Snapshot(msg)
		var cmd tea.Cmd
		if m.snap.Err != nil && m.snap.Err != prev.Err {
			cmd = m.showError(m.snap.Err)
		}
		return m, tea.Batch(waitForState(m.states), cmd)

	case stateClosedMsg:
		log.Debug("ui: snapshot stream closed")
		return m, nil

	case chapterLoadedMsg:
		if msg.err != nil {
			return m, m.showError(msg.err)
		}
		m.chapter = msg.chapter
		m.chapterIndex = msg.index
		m.text = msg.text
		m.loaded = true
		watchDir(m.watcher, m.chapter.Path)
		m.setContent()
		m.viewport.GotoTop()
		if msg.play {
			return m, speakCmd(m.player, m.text, m.chapterIndex, m.finished)
		}
		return m, nil

	case chapterChangedMsg:
		cmds := []tea.Cmd{waitForChange(m.watcher)}
		if m.loaded && filepath.Clean(msg.path) == filepath.Clean(m.chapter.Path) {
			cmds = append(cmds, loadChapterCmd(m.chapterIndex, m.chapter, false), m.showStatus("Chapter reloaded"))
		}
		return m, tea.Batch(cmds...)

	case chapterFinishedMsg:
		cmds := []tea.Cmd{waitForFinished(m.finished)}
		if msg.index != m.chapterIndex || !m.cfg.AutoAdvance {
			return m, tea.Batch(cmds...)
		}
		ch, ok := m.lib.Next()
		if !ok {
			cmds = append(cmds, m.showStatus("Finished reading."))
			return m, tea.Batch(cmds...)
		}
		cmds = append(cmds, loadChapterCmd(m.lib.Index(), ch, true))
		return m, tea.Batch(cmds...)

	case speakResultMsg:
		if msg.err != nil {
			return m, m.showError(msg.err)
		}
		return m, nil

	case voicesLoadedMsg:
		if msg.err != nil {
			return m, m.showError(msg.err)
		}
		return m, nil

	case providerSwitchedMsg:
		if msg.err != nil {
			return m, m.showError(msg.err)
		}
		return m, m.showStatus("Using " + providerLabel(msg.kind) + " voices")

	case copiedMsg:
		if msg.err != nil {
			log.Debug("ui: system clipboard unavailable", "error", msg.err)
		}
		return m, m.showStatus("Copied current passage")

	case statusMessageTimeoutMsg:
		if m.statusSticky {
			return m, nil
		}
		m.statusMessage = ""
		m.statusIsError = false
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quit()
		return m, tea.Quit

	case key.Matches(msg, m.keys.PlayPause):
		switch viewOf(m.player.State()) {
		case phasePlaying:
			m.player.Pause()
		case phasePaused:
			m.player.Resume()
		case phaseLoading:
		default:
			if !m.loaded {
				return m, m.showStatus("No chapter loaded")
			}
			return m, speakCmd(m.player, m.text, m.chapterIndex, m.finished)
		}
		return m, nil

	case key.Matches(msg, m.keys.Stop):
		m.player.Stop()
		return m, nil

	case key.Matches(msg, m.keys.NextChapter), key.Matches(msg, m.keys.PrevChapter):
		move := m.lib.Next
		if key.Matches(msg, m.keys.PrevChapter) {
			move = m.lib.Prev
		}
		play := m.player.State().Phase.Active()
		ch, ok := move()
		if !ok {
			return m, nil
		}
		m.player.Stop()
		return m, loadChapterCmd(m.lib.Index(), ch, play)

	case key.Matches(msg, m.keys.VolumeUp):
		m.player.SetVolume(m.player.State().Volume + m.cfg.VolumeStep)
		return m, nil

	case key.Matches(msg, m.keys.VolumeDown):
		m.player.SetVolume(m.player.State().Volume - m.cfg.VolumeStep)
		return m, nil

	case key.Matches(msg, m.keys.StabilityUp), key.Matches(msg, m.keys.StabilityDown),
		key.Matches(msg, m.keys.SimilarityUp), key.Matches(msg, m.keys.SimilarityDown):
		if m.player.Active() == tts.ProviderNative {
			return m, m.showStatus("Device voices have no tuning settings")
		}
		s := m.player.State()
		switch {
		case key.Matches(msg, m.keys.StabilityUp):
			m.player.SetStability(s.Stability + m.cfg.SettingStep)
		case key.Matches(msg, m.keys.StabilityDown):
			m.player.SetStability(s.Stability - m.cfg.SettingStep)
		case key.Matches(msg, m.keys.SimilarityUp):
			m.player.SetSimilarityBoost(s.SimilarityBoost + m.cfg.SettingStep)
		default:
			m.player.SetSimilarityBoost(s.SimilarityBoost - m.cfg.SettingStep)
		}
		return m, nil

	case key.Matches(msg, m.keys.Voices):
		s := m.player.State()
		if len(s.Voices) == 0 {
			return m, m.showStatus("No voices loaded")
		}
		m.picker = newVoicePicker(s.Voices, s.SelectedVoice)
		m.picker.input.Width = max(m.width-20, 10)
		return m, textinput.Blink

	case key.Matches(msg, m.keys.Reload):
		return m, loadVoicesCmd(m.player)

	case key.Matches(msg, m.keys.Provider):
		kinds := m.player.Kinds()
		if len(kinds) < 2 {
			return m, m.showStatus("Only one provider is configured")
		}
		active := m.player.Active()
		next := kinds[0]
		for i, k := range kinds {
			if k == active {
				next = kinds[(i+1)%len(kinds)]
			}
		}
		return m, switchProviderCmd(m.player, next)

	case key.Matches(msg, m.keys.Copy):
		text := m.player.State().ChunkText
		if text == "" {
			return m, m.showStatus("Nothing is being read")
		}
		return m, copyCmd(text)

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.resize()
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m model) updatePicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.picker = nil
		return m, nil
	case "enter":
		v, ok := m.picker.Selected()
		m.picker = nil
		if !ok {
			return m, nil
		}
		m.player.SetVoice(v.ID)
		return m, m.showStatus("Voice: " + v.Name)
	case "ctrl+c":
		m.quit()
		return m, tea.Quit
	}
	return m, m.picker.update(msg)
}

func (m model) quit() {
	m.player.Stop()
	if m.watcher != nil {
		_ = m.watcher.Close()
	}
}

func (m *model) showStatus(s string) tea.Cmd {
	m.statusMessage = s
	m.statusIsError = false
	return m.armStatusTimer()
}

func (m *model) showError(err error) tea.Cmd {
	m.statusMessage = tts.Message(err)
	m.statusIsError = true

	var te *tts.TTSError
	if errors.As(err, &te) && te.IsFatal() {
		if m.statusTimer != nil {
			m.statusTimer.Stop()
		}
		m.statusSticky = true
		return nil
	}
	return m.armStatusTimer()
}

func (m *model) armStatusTimer() tea.Cmd {
	m.statusSticky = false
	if m.statusTimer != nil {
		m.statusTimer.Stop()
	}
	m.statusTimer = time.NewTimer(m.cfg.StatusExpiry)
	return waitForStatusMessageTimeout(m.statusTimer)
}

func (m *model) resize() {
	if m.width == 0 {
		return
	}
	// header, spacer, passage block, status bar and help
	reserved := 2 + 5 + 1 + lipgloss.Height(m.help.View(m.keys))
	m.viewport.Width = m.width
	m.viewport.Height = max(m.height-reserved, 3)
	m.setContent()
}

func (m *model) setContent() {
	if m.text == "" || m.viewport.Width == 0 {
		return
	}
	m.viewport.SetContent(wordwrap.String(m.text, min(m.viewport.Width, 100)))
}

func (m model) View() string {
	if m.width == 0 {
		return ""
	}

	var b strings.Builder
	fmt.Fprintln(&b, m.headerView())
	fmt.Fprintln(&b)

	if m.picker != nil {
		fmt.Fprintln(&b, m.picker.view(m.width))
		return b.String()
	}

	fmt.Fprintln(&b, m.viewport.View())
	fmt.Fprintln(&b, m.passageView())
	m.statusBarView(&b)
	fmt.Fprint(&b, "\n"+m.help.View(m.keys))
	return b.String()
}

func (m model) headerView() string {
	s := titleStyle.Render("Read Aloud")
	if m.loaded {
		s += " " + chapterStyle.Render(m.chapter.Title)
		s += dimStyle.Render(fmt.Sprintf("  %d/%d", m.chapterIndex+1, m.lib.Len()))
	} else if m.lib.Len() > 0 {
		s += " " + m.spinner.View() + dimStyle.Render(" Loading chapter")
	}
	return truncate.StringWithTail(s, uint(max(m.width, 0)), ellipsis) //nolint:gosec
}

// passageView shows the chunk being read.
func (m model) passageView() string {
	w := max(m.width-4, 10)
	var body string
	switch {
	case m.snap.ChunkText != "":
		body = wordwrap.String(m.snap.ChunkText, w)
	case m.snap.IsGenerating:
		body = m.spinner.View() + dimStyle.Render(" Preparing audio")
	default:
		body = dimStyle.Render("Press space to read this chapter.")
	}
	if n := strings.Count(body, "\n"); n > 2 {
		lines := strings.SplitN(body, "\n", 4)
		body = strings.Join(lines[:3], "\n") + ellipsis
	}
	return chunkStyle.Render(body)
}

func (m model) statusBarView(b *strings.Builder) {
	phase := viewOf(m.snap)
	phaseText := phase.icon() + " " + phase.String()
	if m.snap.Chunk >= 0 && phase == phasePlaying {
		phaseText += fmt.Sprintf(" %d", m.snap.Chunk+1)
	}
	if m.cfg.ShowSession {
		phaseText += fmt.Sprintf(" #%d", m.snap.Session.ID)
	}
	phaseCell := statusBarPhaseStyle.Background(phaseColor(phase)).Render(phaseText)

	provider := statusBarNoteStyle(" " + providerLabel(m.snap.Provider) + " ")

	var note string
	switch {
	case m.statusMessage != "":
		note = m.statusMessage
	default:
		note = settingsLine(m.snap)
		if m.stats != nil && m.snap.Provider == tts.ProviderStream {
			if c := cacheLine(m.stats()); c != "" {
				note += " · " + c
			}
		}
	}
	note = truncate.StringWithTail(" "+note+" ", uint(max(0, //nolint:gosec
		m.width-
			ansi.PrintableRuneWidth(phaseCell)-
			ansi.PrintableRuneWidth(provider),
	)), ellipsis)

	style := statusBarNoteStyle
	if m.statusMessage != "" {
		style = statusBarMessageStyle
		if m.statusIsError {
			style = errorStyle.Background(statusBarBg).Render
		}
	}
	note = style(note)

	padding := max(0,
		m.width-
			ansi.PrintableRuneWidth(phaseCell)-
			ansi.PrintableRuneWidth(note)-
			ansi.PrintableRuneWidth(provider),
	)
	fmt.Fprintf(b, "%s%s%s%s",
		phaseCell,
		note,
		style(strings.Repeat(" ", padding)),
		provider,
	)
}

func copyCmd(text string) tea.Cmd {
	return func() tea.Msg {
		termenv.Copy(text)
		return copiedMsg{err: clipboard.WriteAll(text)}
	}
}
