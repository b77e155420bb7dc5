// Package native is the device-native speech provider: a local speech
// engine renders a whole chapter into one buffer.
package native

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/dgnsrekt/readaloud/internal/synth"
)

// DefaultCommand is the speech engine binary.
const DefaultCommand = "espeak-ng"

// ErrEngineNotFound is returned when the engine binary is not in PATH.
var ErrEngineNotFound = errors.New("speech engine not found")

// Engine renders text to an encoded audio payload and lists its voices.
type Engine interface {
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
	Voices(ctx context.Context) ([]synth.Voice, error)
}

// Espeak runs espeak-ng (or a compatible command) once per utterance.
type Espeak struct {
	command string
	args    []string
	timeout time.Duration
}

var _ Engine = (*Espeak)(nil)

// NewEspeak creates an engine for command. Extra args are passed before
// the voice selection.
func NewEspeak(command string, args []string, timeout time.Duration) *Espeak {
	if strings.TrimSpace(command) == "" {
		command = DefaultCommand
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Espeak{command: command, args: args, timeout: timeout}
}

// Check verifies that the engine binary can be found.
func (e *Espeak) Check() (string, error) {
	path, err := exec.LookPath(e.command)
	if err != nil {
		return "", fmt.Errorf("%w: %s: install espeak-ng (apt install espeak-ng, brew install espeak-ng) or set native.command", ErrEngineNotFound, e.command)
	}
	return path, nil
}

// Synthesize writes text to the engine's stdin and returns the WAV it
// prints on stdout.
func (e *Espeak) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("text cannot be empty")
	}

	args := append([]string{}, e.args...)
	args = append(args, "--stdout")
	if voice != "" {
		args = append(args, "-v", voice)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.command, args...)
	// stdin is set up front so the engine never races us for it
	cmd.Stdin = strings.NewReader(text)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
	cmd.WaitDelay = 100 * time.Millisecond

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("synthesis timeout: %w", ctx.Err())
		}
		return nil, fmt.Errorf("%s failed: %w, stderr: %s", e.command, err, strings.TrimSpace(stderr.String()))
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("%s produced no audio output, stderr: %s", e.command, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// Voices lists the engine's English voices, one per identifier, sorted by
// name.
func (e *Espeak) Voices(ctx context.Context) ([]synth.Voice, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, e.command, "--voices").Output()
	if err != nil {
		return nil, fmt.Errorf("failed to list %s voices: %w", e.command, err)
	}
	return ParseVoices(out), nil
}

// ParseVoices reads the table printed by `espeak-ng --voices`:
//
//	Pty Language       Age/Gender VoiceName          File          Other Languages
//	 5  en-us           --/M      English_(America)  gmw/en-US     (en 10)
func ParseVoices(out []byte) []synth.Voice {
	seen := make(map[string]bool)
	var voices []synth.Voice

	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 4 || fields[0] == "Pty" {
			continue
		}
		lang := fields[1]
		if !isEnglish(lang) || seen[lang] {
			continue
		}
		seen[lang] = true

		v := synth.Voice{
			ID:       lang,
			Name:     strings.ReplaceAll(fields[3], "_", " "),
			Language: lang,
			Category: "native",
		}
		if len(fields) > 2 {
			v.Description = genderDescription(fields[2])
		}
		voices = append(voices, v)
	}

	sort.SliceStable(voices, func(i, j int) bool {
		return strings.ToLower(voices[i].Name) < strings.ToLower(voices[j].Name)
	})
	return voices
}

func isEnglish(lang string) bool {
	lang = strings.ToLower(lang)
	return lang == "en" || strings.HasPrefix(lang, "en-")
}

func genderDescription(ageGender string) string {
	_, g, ok := strings.Cut(ageGender, "/")
	if !ok {
		return ""
	}
	switch g {
	case "M":
		return "male"
	case "F":
		return "female"
	default:
		return ""
	}
}
