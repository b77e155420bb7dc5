package tts

import (
	"fmt"
	"strings"
	"time"

	"github.com/dgnsrekt/readaloud/internal/synth"
)

// Voice is a selectable voice.
type Voice = synth.Voice

// Default voice and output settings.
const (
	DefaultStability       = 0.5
	DefaultSimilarityBoost = 0.75
	DefaultVolume          = 1.0
)

// Chunk limits used by the streaming provider.
const (
	TargetChars = 120
	MaxChars    = 220
)

// ProviderKind names a speech provider.
type ProviderKind string

const (
	// ProviderStream is the remote streaming provider.
	ProviderStream ProviderKind = "stream"
	// ProviderNative is the device-native speech engine.
	ProviderNative ProviderKind = "native"
)

// ParseProviderKind validates a provider name.
func ParseProviderKind(s string) (ProviderKind, error) {
	switch k := ProviderKind(strings.ToLower(strings.TrimSpace(s))); k {
	case ProviderStream, ProviderNative:
		return k, nil
	case "elevenlabs", "remote":
		return ProviderStream, nil
	case "espeak", "local", "device":
		return ProviderNative, nil
	default:
		return "", fmt.Errorf("%w: %q (want stream or native)", ErrInvalidProvider, s)
	}
}

// Phase is the lifecycle position of the current session.
type Phase int

const (
	// PhaseIdle means no session has run yet.
	PhaseIdle Phase = iota
	// PhaseGenerating means text is being segmented and fetched but no audio
	// has started.
	PhaseGenerating
	// PhasePlaying means audio is audible.
	PhasePlaying
	// PhasePaused means playback is suspended mid-buffer.
	PhasePaused
	// PhaseCompleted means every chunk was played.
	PhaseCompleted
	// PhaseStopped means the session was stopped or replaced.
	PhaseStopped
	// PhaseErrored means the session was aborted by a failure.
	PhaseErrored
)

// String returns the string representation of the phase
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseGenerating:
		return "generating"
	case PhasePlaying:
		return "playing"
	case PhasePaused:
		return "paused"
	case PhaseCompleted:
		return "completed"
	case PhaseStopped:
		return "stopped"
	case PhaseErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Active reports whether a session is running in this phase.
func (p Phase) Active() bool {
	return p == PhaseGenerating || p == PhasePlaying || p == PhasePaused
}

// Session identifies one Speak call.
type Session struct {
	ID        uint64
	StartedAt time.Time
}

// SpeakOptions configures a Speak call.
type SpeakOptions struct {
	// OnComplete runs once after the last chunk finished playing. It is
	// not called when the session is stopped, replaced or fails. It runs on
	// its own goroutine and may call Speak.
	OnComplete func()
}

// Snapshot is the observable state of a provider.
type Snapshot struct {
	// Provider is set by Switcher.
	Provider ProviderKind

	Phase        Phase
	IsPlaying    bool
	IsPaused     bool
	IsGenerating bool

	Voices          []Voice
	SelectedVoice   string
	LoadingVoices   bool
	Volume          float64
	Stability       float64
	SimilarityBoost float64

	// Err is the last user-visible error; see Message.
	Err error

	Session Session
	// Chunk is the index of the chunk being played, -1 before the first.
	Chunk     int
	ChunkText string
}

// Voice returns the selected voice entry.
func (s Snapshot) Voice() (Voice, bool) {
	for _, v := range s.Voices {
		if v.ID == s.SelectedVoice {
			return v, true
		}
	}
	return Voice{}, false
}
