package ui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	PlayPause      key.Binding
	Stop           key.Binding
	NextChapter    key.Binding
	PrevChapter    key.Binding
	VolumeUp       key.Binding
	VolumeDown     key.Binding
	StabilityUp    key.Binding
	StabilityDown  key.Binding
	SimilarityUp   key.Binding
	SimilarityDown key.Binding
	Voices         key.Binding
	Reload         key.Binding
	Provider       key.Binding
	Copy           key.Binding
	Help           key.Binding
	Quit           key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		PlayPause:      key.NewBinding(key.WithKeys(" ", "enter"), key.WithHelp("space", "play/pause")),
		Stop:           key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "stop")),
		NextChapter:    key.NewBinding(key.WithKeys("n", "right"), key.WithHelp("n", "next chapter")),
		PrevChapter:    key.NewBinding(key.WithKeys("p", "left"), key.WithHelp("p", "prev chapter")),
		VolumeUp:       key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "volume up")),
		VolumeDown:     key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "volume down")),
		StabilityUp:    key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "stability up")),
		StabilityDown:  key.NewBinding(key.WithKeys("["), key.WithHelp("[", "stability down")),
		SimilarityUp:   key.NewBinding(key.WithKeys("}"), key.WithHelp("}", "similarity up")),
		SimilarityDown: key.NewBinding(key.WithKeys("{"), key.WithHelp("{", "similarity down")),
		Voices:         key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "voices")),
		Reload:         key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload voices")),
		Provider:       key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "switch provider")),
		Copy:           key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "copy chunk")),
		Help:           key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:           key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.PlayPause, k.Stop, k.NextChapter, k.Voices, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.PlayPause, k.Stop, k.NextChapter, k.PrevChapter},
		{k.VolumeUp, k.VolumeDown, k.StabilityUp, k.StabilityDown},
		{k.SimilarityUp, k.SimilarityDown, k.Voices, k.Reload},
		{k.Provider, k.Copy, k.Help, k.Quit},
	}
}
