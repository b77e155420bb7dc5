package main

import (
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/dgnsrekt/readaloud/internal/config"
	"github.com/dgnsrekt/readaloud/internal/tts"
)

// activeProvider is the part of the switcher config reloads act on.
type activeProvider interface {
	Active() tts.ProviderKind
	SetVolume(v float64)
	SetVoice(id string)
}

// watchConfig applies volume and voice edits of the config file while
// playing.
func watchConfig(p activeProvider) {
	if viper.ConfigFileUsed() == "" {
		return
	}
	viper.OnConfigChange(func(e fsnotify.Event) {
		log.Debug("config file changed", "file", e.Name, "op", e.Op)
		applyConfig(viper.GetViper(), p)
	})
	viper.WatchConfig()
}

func applyConfig(v *viper.Viper, p activeProvider) {
	c, err := config.FromViper(v)
	if err != nil {
		log.Warn("ignoring invalid config change", "err", err)
		return
	}

	p.SetVolume(c.Volume)
	voice := c.Stream.Voice
	if p.Active() == tts.ProviderNative {
		voice = c.Native.Voice
	}
	if voice != "" {
		p.SetVoice(voice)
	}
}
