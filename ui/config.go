package ui

import "time"

// Config contains TUI-specific configuration.
type Config struct {
	HomeDir     string `env:"HOME"`
	EnableMouse bool

	// Working directory or chapter path
	Path string

	// Play the first chapter as soon as it is loaded
	AutoPlay bool `env:"READALOUD_AUTOPLAY" envDefault:"false"`
	// Start the next chapter when one completes
	AutoAdvance bool `env:"READALOUD_AUTO_ADVANCE" envDefault:"true"`

	VolumeStep   float64       `env:"READALOUD_VOLUME_STEP" envDefault:"0.1"`
	SettingStep  float64       `env:"READALOUD_SETTING_STEP" envDefault:"0.05"`
	StatusExpiry time.Duration `env:"READALOUD_STATUS_EXPIRY" envDefault:"3s"`

	// For debugging the UI
	ShowSession bool `env:"READALOUD_SHOW_SESSION" envDefault:"false"`
}
