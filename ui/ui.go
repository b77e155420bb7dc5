// Package ui provides the interactive reader for readaloud.
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/readaloud/internal/cache"
	"github.com/dgnsrekt/readaloud/internal/library"
)

// NewProgram returns a new Tea program. stats may be nil when no cache is
// configured.
func NewProgram(cfg Config, player Player, lib *library.Library, stats func() cache.Stats) *tea.Program {
	log.Debug(
		"Starting readaloud",
		"chapters", lib.Len(),
		"provider", player.Active(),
		"autoplay", cfg.AutoPlay,
	)

	opts := []tea.ProgramOption{tea.WithAltScreen()}
	if cfg.EnableMouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	return tea.NewProgram(newModel(cfg, player, lib, stats), opts...)
}
