package ui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dgnsrekt/readaloud/internal/library"
	"github.com/dgnsrekt/readaloud/internal/tts"
)

// Messages for Bubble Tea communication between the player and the UI.

// stateMsg carries a new provider snapshot.
type stateMsg tts.Snapshot

// stateClosedMsg is sent when the snapshot stream ends.
type stateClosedMsg struct{}

// chapterLoadedMsg is sent when a chapter file has been read.
type chapterLoadedMsg struct {
	index   int
	chapter library.Chapter
	text    string
	play    bool
	err     error
}

// chapterFinishedMsg is sent when every chunk of a chapter was played.
type chapterFinishedMsg struct {
	index int
}

// speakResultMsg reports the outcome of a Speak call.
type speakResultMsg struct {
	err error
}

// voicesLoadedMsg is sent when the voice catalog was refreshed.
type voicesLoadedMsg struct {
	err error
}

// providerSwitchedMsg is sent after switching providers.
type providerSwitchedMsg struct {
	kind tts.ProviderKind
	err  error
}

// copiedMsg reports a copy of the current chunk.
type copiedMsg struct {
	err error
}

type statusMessageTimeoutMsg struct{}

// waitForState blocks until the next snapshot.
func waitForState(ch <-chan tts.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-ch
		if !ok {
			return stateClosedMsg{}
		}
		return stateMsg(snap)
	}
}

// waitForFinished blocks until a chapter completes.
func waitForFinished(ch <-chan int) tea.Cmd {
	return func() tea.Msg {
		return chapterFinishedMsg{index: <-ch}
	}
}

func loadChapterCmd(index int, ch library.Chapter, play bool) tea.Cmd {
	return func() tea.Msg {
		text, err := library.Load(ch.Path)
		return chapterLoadedMsg{index: index, chapter: ch, text: text, play: play, err: err}
	}
}

// speakCmd starts a chapter. finished receives the chapter index when the
// provider reports completion.
func speakCmd(p Player, text string, index int, finished chan<- int) tea.Cmd {
	return func() tea.Msg {
		err := p.Speak(text, tts.SpeakOptions{
			OnComplete: func() {
				select {
				case finished <- index:
				default:
				}
			},
		})
		return speakResultMsg{err: err}
	}
}

func loadVoicesCmd(p Player) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return voicesLoadedMsg{err: p.LoadVoices(ctx)}
	}
}

func switchProviderCmd(p Player, kind tts.ProviderKind) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return providerSwitchedMsg{kind: kind, err: p.Use(ctx, kind)}
	}
}

func waitForStatusMessageTimeout(t *time.Timer) tea.Cmd {
	return func() tea.Msg {
		<-t.C
		return statusMessageTimeoutMsg{}
	}
}
