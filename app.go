package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dgnsrekt/readaloud/internal/audio"
	"github.com/dgnsrekt/readaloud/internal/cache"
	"github.com/dgnsrekt/readaloud/internal/config"
	"github.com/dgnsrekt/readaloud/internal/native"
	"github.com/dgnsrekt/readaloud/internal/observability"
	"github.com/dgnsrekt/readaloud/internal/synth"
	"github.com/dgnsrekt/readaloud/internal/tts"
)

// app owns the providers and the resources they share.
type app struct {
	player  *tts.Switcher
	cache   *cache.Tiered
	cached  *synth.Cached
	metrics *observability.Metrics
}

// newApp opens the audio device and builds every provider that can run.
// The native provider is skipped when its engine is missing, unless it is
// the configured provider.
func newApp(c config.Config) (*app, error) {
	dev, err := audio.NewDevice(c.Audio.DeviceConfig())
	if err != nil {
		return nil, tts.NewTTSError(tts.ErrorCodeAudioDevice, "Unable to open the audio device.", err)
	}

	a := &app{metrics: observability.NewMetrics(appName, prometheus.DefaultRegisterer)}
	providers := make(map[tts.ProviderKind]tts.Provider, 2)

	stream, err := a.newStream(c, dev)
	if err != nil {
		return nil, err
	}
	providers[tts.ProviderStream] = stream

	nat, err := newNative(c, dev)
	switch {
	case err == nil:
		providers[tts.ProviderNative] = nat
	case c.ProviderKind() == tts.ProviderNative:
		_ = a.closeProviders(providers)
		return nil, err
	default:
		log.Info("native provider unavailable", "command", c.Native.Command, "err", err)
	}

	a.player, err = tts.NewSwitcher(providers, c.ProviderKind())
	if err != nil {
		_ = a.closeProviders(providers)
		return nil, err
	}
	return a, nil
}

func (a *app) newStream(c config.Config, dev *audio.Device) (*tts.Stream, error) {
	client, err := synth.NewClient(c.Stream.ClientConfig())
	if err != nil {
		return nil, err
	}

	var synthesizer synth.Synthesizer = client
	if c.Cache.Enabled {
		dir, err := gap.NewScope(gap.User, appName).CacheDir()
		if err != nil {
			return nil, err
		}
		a.cache, err = cache.New(c.Cache.CacheConfig(filepath.Join(dir, "audio")))
		if err != nil {
			return nil, fmt.Errorf("unable to open audio cache: %w", err)
		}
		a.cached = synth.NewCached(client, a.cache)
		synthesizer = a.cached
	}

	return tts.NewStream(tts.StreamConfig{
		Synthesizer: synthesizer,
		Catalog:     client,
		Output:      dev.NewGraph(),
		Format:      dev.Format(),
		Scheduler:   c.Stream.SchedulerConfig(),
		TargetChars: c.Stream.TargetChars,
		MaxChars:    c.Stream.MaxChars,
		Settings:    c.Settings(),
		Metrics:     a.metrics,
	})
}

func newNative(c config.Config, dev *audio.Device) (*native.Provider, error) {
	engine := native.NewEspeak(c.Native.Command, c.Native.Args, c.Native.Timeout)
	version, err := engine.Check()
	if err != nil {
		return nil, tts.NewTTSError(tts.ErrorCodeEngineUnavailable, "The device speech engine is not installed.", err)
	}
	log.Debug("native engine found", "version", version)

	out := dev.NewGraph()
	p, err := native.New(native.Config{
		Engine: engine,
		Output: out,
		Format: dev.Format(),
		Voice:  c.Native.Voice,
		Volume: c.Volume,
	})
	if err != nil {
		_ = out.Close()
		return nil, err
	}
	return p, nil
}

// cacheStats returns the cache statistics source, or nil without a cache.
func (a *app) cacheStats() func() cache.Stats {
	if a.cached == nil {
		return nil
	}
	return a.cached.Stats
}

func (a *app) closeProviders(providers map[tts.ProviderKind]tts.Provider) error {
	var errs []error
	for _, p := range providers {
		errs = append(errs, p.Close())
	}
	if a.cache != nil {
		errs = append(errs, a.cache.Close())
	}
	return errors.Join(errs...)
}

// Close stops playback and releases every provider and the cache.
func (a *app) Close() error {
	err := a.player.Close()
	if a.cache != nil {
		err = errors.Join(err, a.cache.Close())
	}
	return err
}
