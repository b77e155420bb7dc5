package ui

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/dgnsrekt/readaloud/internal/cache"
	"github.com/dgnsrekt/readaloud/internal/tts"
)

// phaseView is the phase as the status bar presents it.
type phaseView int

const (
	phaseIdle phaseView = iota
	phaseLoading
	phasePlaying
	phasePaused
	phaseError
)

func viewOf(s tts.Snapshot) phaseView {
	switch {
	case s.IsPaused:
		return phasePaused
	case s.IsPlaying:
		return phasePlaying
	case s.IsGenerating:
		return phaseLoading
	case s.Phase == tts.PhaseErrored:
		return phaseError
	default:
		return phaseIdle
	}
}

func (p phaseView) icon() string {
	switch p {
	case phasePlaying:
		return "▶"
	case phasePaused:
		return "⏸"
	case phaseLoading:
		return "⟳"
	case phaseError:
		return "✗"
	default:
		return "■"
	}
}

func (p phaseView) String() string {
	switch p {
	case phasePlaying:
		return "Playing"
	case phasePaused:
		return "Paused"
	case phaseLoading:
		return "Preparing audio"
	case phaseError:
		return "Error"
	default:
		return "Stopped"
	}
}

// providerLabel is the user-facing name of a provider.
func providerLabel(k tts.ProviderKind) string {
	switch k {
	case tts.ProviderNative:
		return "Device"
	case tts.ProviderStream:
		return "ElevenLabs"
	default:
		return string(k)
	}
}

// settingsLine summarizes the voice settings.
func settingsLine(s tts.Snapshot) string {
	voice := "no voice"
	if v, ok := s.Voice(); ok {
		voice = v.Name
	} else if s.SelectedVoice != "" {
		voice = s.SelectedVoice
	}
	if s.LoadingVoices {
		voice = "loading voices…"
	}
	line := fmt.Sprintf("%s · vol %d%%", voice, percent(s.Volume))
	if s.Provider != tts.ProviderNative {
		line += fmt.Sprintf(" · stability %d%% · similarity %d%%", percent(s.Stability), percent(s.SimilarityBoost))
	}
	return line
}

func cacheLine(st cache.Stats) string {
	if st.Hits+st.Misses == 0 && st.ItemCount == 0 {
		return ""
	}
	return fmt.Sprintf("cache %s / %s · %d items · %.0f%% hits",
		humanize.Bytes(uint64(max(st.Size, 0))),
		humanize.Bytes(uint64(max(st.Capacity, 0))),
		st.ItemCount,
		st.HitRate*100,
	)
}

func percent(v float64) int {
	return int(v*100 + 0.5)
}
