// Package config holds the typed readaloud configuration and its viper
// bindings.
package config

import (
	"bytes"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/dgnsrekt/readaloud/internal/audio"
	"github.com/dgnsrekt/readaloud/internal/cache"
	"github.com/dgnsrekt/readaloud/internal/native"
	"github.com/dgnsrekt/readaloud/internal/queue"
	"github.com/dgnsrekt/readaloud/internal/synth"
	"github.com/dgnsrekt/readaloud/internal/tts"
	"github.com/dgnsrekt/readaloud/utils"
)

// Config contains all readaloud configuration options.
type Config struct {
	// Provider is "stream" or "native".
	Provider string  `yaml:"provider" mapstructure:"provider"`
	Volume   float64 `yaml:"volume" mapstructure:"volume"`

	Stream StreamConfig `yaml:"stream" mapstructure:"stream"`
	Native NativeConfig `yaml:"native" mapstructure:"native"`
	Cache  CacheConfig  `yaml:"cache" mapstructure:"cache"`
	Audio  AudioConfig  `yaml:"audio" mapstructure:"audio"`
	Serve  ServeConfig  `yaml:"serve" mapstructure:"serve"`
}

// StreamConfig configures the remote streaming provider.
type StreamConfig struct {
	URL               string        `yaml:"url" mapstructure:"url"`
	APIKey            string        `yaml:"api_key,omitempty" mapstructure:"api_key"`
	Voice             string        `yaml:"voice" mapstructure:"voice"`
	Stability         float64       `yaml:"stability" mapstructure:"stability"`
	SimilarityBoost   float64       `yaml:"similarity_boost" mapstructure:"similarity_boost"`
	RequestsPerMinute int           `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
	Timeout           time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxConcurrent     int           `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	HeadroomSeconds   float64       `yaml:"headroom_seconds" mapstructure:"headroom_seconds"`
	TargetChars       int           `yaml:"target_chars" mapstructure:"target_chars"`
	MaxChars          int           `yaml:"max_chars" mapstructure:"max_chars"`
}

// NativeConfig configures the device-native provider.
type NativeConfig struct {
	Command string        `yaml:"command" mapstructure:"command"`
	Args    []string      `yaml:"args,omitempty" mapstructure:"args"`
	Voice   string        `yaml:"voice" mapstructure:"voice"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// CacheConfig configures the synthesized audio cache.
type CacheConfig struct {
	Enabled     bool   `yaml:"enabled" mapstructure:"enabled"`
	Dir         string `yaml:"dir" mapstructure:"dir"`
	MemoryMB    int    `yaml:"memory_mb" mapstructure:"memory_mb"`
	DiskMB      int    `yaml:"disk_mb" mapstructure:"disk_mb"`
	Compression int    `yaml:"compression" mapstructure:"compression"`
}

// AudioConfig configures the output device.
type AudioConfig struct {
	SampleRate int           `yaml:"sample_rate" mapstructure:"sample_rate"`
	Channels   int           `yaml:"channels" mapstructure:"channels"`
	Buffer     time.Duration `yaml:"buffer" mapstructure:"buffer"`
}

// ServeConfig configures the synthesis proxy.
type ServeConfig struct {
	Addr         string        `yaml:"addr" mapstructure:"addr"`
	UpstreamURL  string        `yaml:"upstream_url" mapstructure:"upstream_url"`
	APIKey       string        `yaml:"api_key,omitempty" mapstructure:"api_key"`
	ModelID      string        `yaml:"model_id" mapstructure:"model_id"`
	OutputFormat string        `yaml:"output_format" mapstructure:"output_format"`
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Provider: string(tts.ProviderStream),
		Volume:   tts.DefaultVolume,
		Stream: StreamConfig{
			URL:               "http://localhost:8787",
			Stability:         tts.DefaultStability,
			SimilarityBoost:   tts.DefaultSimilarityBoost,
			RequestsPerMinute: 0,
			Timeout:           30 * time.Second,
			MaxConcurrent:     queue.DefaultMaxConcurrent,
			HeadroomSeconds:   queue.DefaultHeadroomSeconds,
			TargetChars:       tts.TargetChars,
			MaxChars:          tts.MaxChars,
		},
		Native: NativeConfig{
			Command: native.DefaultCommand,
			Timeout: 2 * time.Minute,
		},
		Cache: CacheConfig{
			Enabled:     true,
			MemoryMB:    32,
			DiskMB:      512,
			Compression: 3,
		},
		Audio: AudioConfig{
			SampleRate: audio.DefaultFormat().SampleRate,
			Channels:   audio.DefaultFormat().Channels,
			Buffer:     audio.DefaultDeviceConfig().BufferSize,
		},
		Serve: ServeConfig{
			Addr:         "127.0.0.1:8787",
			UpstreamURL:  synth.DefaultUpstreamURL,
			ModelID:      synth.DefaultModelID,
			OutputFormat: synth.DefaultOutputFormat,
			Timeout:      10 * time.Second,
		},
	}
}

// SetDefaults registers every default with v so that unset keys and
// environment overrides resolve.
func SetDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("provider", d.Provider)
	v.SetDefault("volume", d.Volume)

	v.SetDefault("stream.url", d.Stream.URL)
	v.SetDefault("stream.api_key", "")
	v.SetDefault("stream.voice", "")
	v.SetDefault("stream.stability", d.Stream.Stability)
	v.SetDefault("stream.similarity_boost", d.Stream.SimilarityBoost)
	v.SetDefault("stream.requests_per_minute", d.Stream.RequestsPerMinute)
	v.SetDefault("stream.timeout", d.Stream.Timeout.String())
	v.SetDefault("stream.max_concurrent", d.Stream.MaxConcurrent)
	v.SetDefault("stream.headroom_seconds", d.Stream.HeadroomSeconds)
	v.SetDefault("stream.target_chars", d.Stream.TargetChars)
	v.SetDefault("stream.max_chars", d.Stream.MaxChars)

	v.SetDefault("native.command", d.Native.Command)
	v.SetDefault("native.args", []string{})
	v.SetDefault("native.voice", "")
	v.SetDefault("native.timeout", d.Native.Timeout.String())

	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("cache.dir", "")
	v.SetDefault("cache.memory_mb", d.Cache.MemoryMB)
	v.SetDefault("cache.disk_mb", d.Cache.DiskMB)
	v.SetDefault("cache.compression", d.Cache.Compression)

	v.SetDefault("audio.sample_rate", d.Audio.SampleRate)
	v.SetDefault("audio.channels", d.Audio.Channels)
	v.SetDefault("audio.buffer", d.Audio.Buffer.String())

	v.SetDefault("serve.addr", d.Serve.Addr)
	v.SetDefault("serve.upstream_url", d.Serve.UpstreamURL)
	v.SetDefault("serve.api_key", "")
	v.SetDefault("serve.model_id", d.Serve.ModelID)
	v.SetDefault("serve.output_format", d.Serve.OutputFormat)
	v.SetDefault("serve.timeout", d.Serve.Timeout.String())
}

// FromViper decodes and validates the configuration held by v.
func FromViper(v *viper.Viper) (Config, error) {
	cfg := Default()
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("unable to decode configuration: %w", err)
	}
	cfg.Cache.Dir = utils.ExpandPath(cfg.Cache.Dir)
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

var validSampleRates = []int{8000, 16000, 22050, 24000, 44100, 48000}

// Validate checks the configuration and normalizes the provider name.
func (c *Config) Validate() error {
	kind, err := tts.ParseProviderKind(c.Provider)
	if err != nil {
		return err
	}
	c.Provider = string(kind)

	if c.Volume < 0 || c.Volume > 1 {
		return fmt.Errorf("volume must be between 0.0 and 1.0, got %.2f", c.Volume)
	}
	if err := c.Stream.Validate(); err != nil {
		return fmt.Errorf("stream: %w", err)
	}
	if strings.TrimSpace(c.Native.Command) == "" {
		return fmt.Errorf("native: command cannot be empty")
	}
	if c.Cache.MemoryMB < 0 || c.Cache.DiskMB < 0 {
		return fmt.Errorf("cache: sizes cannot be negative")
	}
	if c.Cache.Compression < 0 || c.Cache.Compression > 22 {
		return fmt.Errorf("cache: compression must be between 0 and 22, got %d", c.Cache.Compression)
	}
	if !slices.Contains(validSampleRates, c.Audio.SampleRate) {
		return fmt.Errorf("audio: invalid sample rate %d: must be one of %v", c.Audio.SampleRate, validSampleRates)
	}
	if c.Audio.Channels != 1 && c.Audio.Channels != 2 {
		return fmt.Errorf("audio: channels must be 1 or 2, got %d", c.Audio.Channels)
	}
	return nil
}

// Validate checks the streaming provider settings.
func (c *StreamConfig) Validate() error {
	if strings.TrimSpace(c.URL) == "" {
		return fmt.Errorf("url cannot be empty")
	}
	for name, v := range map[string]float64{"stability": c.Stability, "similarity_boost": c.SimilarityBoost} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be between 0.0 and 1.0, got %.2f", name, v)
		}
	}
	if c.MaxConcurrent < 1 || c.MaxConcurrent > 16 {
		return fmt.Errorf("max_concurrent must be between 1 and 16, got %d", c.MaxConcurrent)
	}
	if c.HeadroomSeconds <= 0 {
		return fmt.Errorf("headroom_seconds must be positive, got %.1f", c.HeadroomSeconds)
	}
	if c.TargetChars < 1 || c.MaxChars < c.TargetChars {
		return fmt.Errorf("chunk sizes must satisfy 1 <= target_chars <= max_chars, got %d/%d", c.TargetChars, c.MaxChars)
	}
	if c.RequestsPerMinute < 0 {
		return fmt.Errorf("requests_per_minute cannot be negative")
	}
	return nil
}

// ProviderKind returns the configured provider.
func (c Config) ProviderKind() tts.ProviderKind {
	return tts.ProviderKind(c.Provider)
}

// ClientConfig returns the synthesis client settings.
func (c StreamConfig) ClientConfig() synth.ClientConfig {
	return synth.ClientConfig{
		BaseURL:           c.URL,
		APIKey:            c.APIKey,
		Timeout:           c.Timeout,
		RequestsPerMinute: c.RequestsPerMinute,
	}
}

// SchedulerConfig returns the fetch scheduler settings.
func (c StreamConfig) SchedulerConfig() queue.SchedulerConfig {
	return queue.SchedulerConfig{
		MaxConcurrent:   c.MaxConcurrent,
		HeadroomSeconds: c.HeadroomSeconds,
	}
}

// Settings returns the initial voice settings.
func (c Config) Settings() tts.Settings {
	return tts.Settings{
		Voice:           c.Stream.Voice,
		Volume:          c.Volume,
		Stability:       c.Stream.Stability,
		SimilarityBoost: c.Stream.SimilarityBoost,
	}
}

// CacheConfig returns the two-level cache settings. defaultDir is used
// when no directory is configured.
func (c CacheConfig) CacheConfig(defaultDir string) cache.Config {
	dir := c.Dir
	if dir == "" {
		dir = defaultDir
	}
	return cache.Config{
		Dir:              dir,
		MemoryCapacity:   int64(c.MemoryMB) << 20,
		DiskCapacity:     int64(c.DiskMB) << 20,
		CompressionLevel: c.Compression,
	}
}

// DeviceConfig returns the output device settings.
func (c AudioConfig) DeviceConfig() audio.DeviceConfig {
	return audio.DeviceConfig{
		Format:     audio.Format{SampleRate: c.SampleRate, Channels: c.Channels},
		BufferSize: c.Buffer,
	}
}

// UpstreamConfig returns the proxy's upstream client settings.
func (c ServeConfig) UpstreamConfig() synth.UpstreamConfig {
	return synth.UpstreamConfig{
		APIKey:       c.APIKey,
		BaseURL:      c.UpstreamURL,
		ModelID:      c.ModelID,
		OutputFormat: c.OutputFormat,
		Timeout:      c.Timeout,
	}
}

const yamlHeader = `# readaloud configuration
#
# provider: "stream" reads through the synthesis service at stream.url,
# "native" uses the local speech engine (espeak-ng).
# Every key can be overridden with a READALOUD_ environment variable,
# for example READALOUD_STREAM_VOICE.

`

// DefaultYAML renders the default configuration file.
func DefaultYAML() ([]byte, error) {
	var b bytes.Buffer
	b.WriteString(yamlHeader)
	enc := yaml.NewEncoder(&b)
	enc.SetIndent(2)
	if err := enc.Encode(Default()); err != nil {
		return nil, fmt.Errorf("unable to encode default config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}
