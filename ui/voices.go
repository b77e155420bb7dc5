package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-runewidth"
	"github.com/sahilm/fuzzy"

	"github.com/dgnsrekt/readaloud/internal/tts"
)

const pickerRows = 8

// voiceSource adapts a voice list to fuzzy.Source.
type voiceSource []tts.Voice

func (v voiceSource) String(i int) string {
	s := v[i].Name
	if v[i].Language != "" {
		s += " " + v[i].Language
	}
	return s
}

func (v voiceSource) Len() int { return len(v) }

// voicePicker filters the catalog as the user types.
type voicePicker struct {
	input   textinput.Model
	voices  []tts.Voice
	matches fuzzy.Matches
	cursor  int
}

func newVoicePicker(voices []tts.Voice, selected string) *voicePicker {
	ti := textinput.New()
	ti.Prompt = "Find a voice: "
	ti.Placeholder = "name or language"
	ti.CharLimit = 64
	ti.Focus()

	p := &voicePicker{input: ti, voices: voices}
	p.filter()
	for i, m := range p.matches {
		if voices[m.Index].ID == selected {
			p.cursor = i
		}
	}
	return p
}

// filter recomputes the matches; an empty query lists every voice.
func (p *voicePicker) filter() {
	q := strings.TrimSpace(p.input.Value())
	if q == "" {
		p.matches = make(fuzzy.Matches, len(p.voices))
		for i := range p.voices {
			p.matches[i] = fuzzy.Match{Str: voiceSource(p.voices).String(i), Index: i}
		}
	} else {
		p.matches = fuzzy.FindFrom(q, voiceSource(p.voices))
	}
	p.cursor = min(p.cursor, max(len(p.matches)-1, 0))
}

// Selected returns the highlighted voice.
func (p *voicePicker) Selected() (tts.Voice, bool) {
	if p.cursor < 0 || p.cursor >= len(p.matches) {
		return tts.Voice{}, false
	}
	return p.voices[p.matches[p.cursor].Index], true
}

func (p *voicePicker) update(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "up", "ctrl+p":
		if p.cursor > 0 {
			p.cursor--
		}
		return nil
	case "down", "ctrl+n":
		if p.cursor < len(p.matches)-1 {
			p.cursor++
		}
		return nil
	}

	var cmd tea.Cmd
	p.input, cmd = p.input.Update(msg)
	p.filter()
	return cmd
}

func (p *voicePicker) view(width int) string {
	var b strings.Builder
	b.WriteString(p.input.View())
	b.WriteString("\n\n")

	if len(p.matches) == 0 {
		b.WriteString(dimStyle.Render("  No voices match."))
		return b.String()
	}

	start := 0
	if p.cursor >= pickerRows {
		start = p.cursor - pickerRows + 1
	}
	end := min(start+pickerRows, len(p.matches))
	for i := start; i < end; i++ {
		m := p.matches[i]
		v := p.voices[m.Index]
		line := runewidth.Truncate(highlightMatch(m), max(width-4, 10), "…")
		if v.Category != "" {
			line += dimStyle.Render(" · " + v.Category)
		}
		if i == p.cursor {
			fmt.Fprintf(&b, "%s %s\n", pickerCursorStyle.Render("›"), line)
		} else {
			fmt.Fprintf(&b, "  %s\n", line)
		}
	}
	b.WriteString(dimStyle.Render(fmt.Sprintf("  %d of %d · enter select · esc cancel", len(p.matches), len(p.voices))))
	return b.String()
}

// highlightMatch underlines the matched runes.
func highlightMatch(m fuzzy.Match) string {
	if len(m.MatchedIndexes) == 0 {
		return m.Str
	}
	matched := make(map[int]bool, len(m.MatchedIndexes))
	for _, i := range m.MatchedIndexes {
		matched[i] = true
	}
	var b strings.Builder
	for i, r := range m.Str {
		if matched[i] {
			b.WriteString(pickerMatchStyle.Render(string(r)))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
