package tts

import "context"

// Provider is the control surface shared by the streaming and the native
// speech providers.
//
// Speak replaces any running session. Pause and Resume are no-ops outside
// playing and paused. Stop is valid in any state and never runs the
// completion callback. Settings apply to the next request or buffer and
// never touch audio that is already queued, except volume which applies
// at once.
type Provider interface {
	Speak(text string, opts SpeakOptions) error
	Pause()
	Resume()
	Stop()

	SetVoice(id string)
	SetVolume(v float64)
	SetStability(v float64)
	SetSimilarityBoost(v float64)

	// LoadVoices refreshes the voice catalog. A failure is kept in the
	// snapshot until the next load.
	LoadVoices(ctx context.Context) error

	State() Snapshot
	Subscribe() <-chan Snapshot
	Close() error
}
