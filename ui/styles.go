package ui

import "github.com/charmbracelet/lipgloss"

var (
	normalDim = lipgloss.AdaptiveColor{Light: "#A49FA5", Dark: "#777777"}
	gray      = lipgloss.AdaptiveColor{Light: "#909090", Dark: "#626262"}
	fuchsia   = lipgloss.Color("#EE6FF8")
	yellow    = lipgloss.Color("#ECFD65")
	red       = lipgloss.AdaptiveColor{Light: "#FF4672", Dark: "#ED567A"}
	green     = lipgloss.Color("#04B575")
	blue      = lipgloss.Color("#00AAFF")
	mintGreen = lipgloss.AdaptiveColor{Light: "#89F0CB", Dark: "#89F0CB"}
	darkGreen = lipgloss.AdaptiveColor{Light: "#1C8760", Dark: "#1C8760"}

	statusBarNoteFg = lipgloss.AdaptiveColor{Light: "#656565", Dark: "#7D7D7D"}
	statusBarBg     = lipgloss.AdaptiveColor{Light: "#E6E6E6", Dark: "#242424"}
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#5A56E0")).
			Padding(0, 1)

	chapterStyle = lipgloss.NewStyle().Foreground(fuchsia).Bold(true)

	dimStyle   = lipgloss.NewStyle().Foreground(normalDim)
	grayStyle  = lipgloss.NewStyle().Foreground(gray)
	errorStyle = lipgloss.NewStyle().Foreground(red)

	chunkStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderLeft(true).
			BorderForeground(fuchsia).
			PaddingLeft(1)

	statusBarNoteStyle = lipgloss.NewStyle().
				Foreground(statusBarNoteFg).
				Background(statusBarBg).
				Render

	statusBarPhaseStyle = lipgloss.NewStyle().
				Foreground(mintGreen).
				Background(darkGreen).
				Padding(0, 1)

	statusBarMessageStyle = lipgloss.NewStyle().
				Foreground(mintGreen).
				Background(darkGreen).
				Render

	pickerCursorStyle = lipgloss.NewStyle().Foreground(fuchsia).Bold(true)
	pickerMatchStyle  = lipgloss.NewStyle().Foreground(yellow).Underline(true)
)

// phaseColor returns the status color of a playback phase.
func phaseColor(p phaseView) lipgloss.TerminalColor {
	switch p {
	case phasePlaying:
		return green
	case phasePaused:
		return yellow
	case phaseLoading:
		return blue
	case phaseError:
		return red
	default:
		return gray
	}
}
