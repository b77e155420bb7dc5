package config

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/dgnsrekt/readaloud/internal/tts"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
	if cfg.ProviderKind() != tts.ProviderStream {
		t.Errorf("default provider = %q, want stream", cfg.Provider)
	}
	if cfg.Stream.MaxConcurrent != 3 || cfg.Stream.HeadroomSeconds != 12 {
		t.Errorf("scheduler defaults = %d/%v, want 3/12", cfg.Stream.MaxConcurrent, cfg.Stream.HeadroomSeconds)
	}
	if cfg.Stream.TargetChars != 120 || cfg.Stream.MaxChars != 220 {
		t.Errorf("chunk defaults = %d/%d, want 120/220", cfg.Stream.TargetChars, cfg.Stream.MaxChars)
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{name: "valid config", modify: func(*Config) {}},
		{name: "provider alias", modify: func(c *Config) { c.Provider = "espeak" }},
		{name: "invalid provider", modify: func(c *Config) { c.Provider = "cloud" }, wantErr: "invalid provider"},
		{name: "volume too high", modify: func(c *Config) { c.Volume = 1.5 }, wantErr: "volume must be between"},
		{name: "stability out of range", modify: func(c *Config) { c.Stream.Stability = -0.1 }, wantErr: "stability must be between"},
		{name: "empty url", modify: func(c *Config) { c.Stream.URL = " " }, wantErr: "url cannot be empty"},
		{name: "no concurrency", modify: func(c *Config) { c.Stream.MaxConcurrent = 0 }, wantErr: "max_concurrent"},
		{name: "zero headroom", modify: func(c *Config) { c.Stream.HeadroomSeconds = 0 }, wantErr: "headroom_seconds"},
		{name: "max below target", modify: func(c *Config) { c.Stream.MaxChars = 50 }, wantErr: "chunk sizes"},
		{name: "empty native command", modify: func(c *Config) { c.Native.Command = "" }, wantErr: "command cannot be empty"},
		{name: "bad compression", modify: func(c *Config) { c.Cache.Compression = 30 }, wantErr: "compression"},
		{name: "bad sample rate", modify: func(c *Config) { c.Audio.SampleRate = 12345 }, wantErr: "invalid sample rate"},
		{name: "bad channels", modify: func(c *Config) { c.Audio.Channels = 6 }, wantErr: "channels"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestProviderAliasIsNormalized(t *testing.T) {
	cfg := Default()
	cfg.Provider = "device"
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.ProviderKind() != tts.ProviderNative {
		t.Errorf("provider = %q, want native", cfg.Provider)
	}
}

func TestFromViper(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")
	err := v.ReadConfig(bytes.NewBufferString(`
provider: native
volume: 0.4
stream:
  voice: rachel
  timeout: 5s
  max_concurrent: 2
native:
  command: /usr/bin/espeak-ng
  args: ["-s", "160"]
cache:
  dir: /tmp/readaloud-cache
`))
	if err != nil {
		t.Fatal(err)
	}

	cfg, err := FromViper(v)
	if err != nil {
		t.Fatalf("FromViper() error = %v", err)
	}
	if cfg.ProviderKind() != tts.ProviderNative || cfg.Volume != 0.4 {
		t.Errorf("provider/volume = %q/%v", cfg.Provider, cfg.Volume)
	}
	if cfg.Stream.Voice != "rachel" || cfg.Stream.Timeout != 5*time.Second || cfg.Stream.MaxConcurrent != 2 {
		t.Errorf("stream = %+v", cfg.Stream)
	}
	// unset keys keep their defaults
	if cfg.Stream.HeadroomSeconds != 12 || cfg.Stream.SimilarityBoost != 0.75 {
		t.Errorf("stream defaults lost: %+v", cfg.Stream)
	}
	if len(cfg.Native.Args) != 2 || cfg.Native.Args[1] != "160" {
		t.Errorf("native args = %v", cfg.Native.Args)
	}
	if got := cfg.Cache.CacheConfig("/default").Dir; got != "/tmp/readaloud-cache" {
		t.Errorf("cache dir = %q", got)
	}
	if got := cfg.Serve.Timeout; got != 10*time.Second {
		t.Errorf("serve timeout = %v, want default 10s", got)
	}
}

func TestFromViperRejectsInvalid(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("stream.max_concurrent", 0)
	if _, err := FromViper(v); err == nil {
		t.Fatal("expected an error for max_concurrent 0")
	}
}

func TestConversions(t *testing.T) {
	cfg := Default()
	cfg.Stream.Voice = "v1"
	cfg.Stream.RequestsPerMinute = 60

	if s := cfg.Settings(); s.Voice != "v1" || s.Volume != 1 || s.Stability != 0.5 {
		t.Errorf("Settings() = %+v", s)
	}
	if cc := cfg.Stream.ClientConfig(); cc.BaseURL != cfg.Stream.URL || cc.RequestsPerMinute != 60 {
		t.Errorf("ClientConfig() = %+v", cc)
	}
	if sc := cfg.Stream.SchedulerConfig(); sc.MaxConcurrent != 3 || sc.HeadroomSeconds != 12 {
		t.Errorf("SchedulerConfig() = %+v", sc)
	}
	cc := cfg.Cache.CacheConfig("/var/cache/readaloud")
	if cc.Dir != "/var/cache/readaloud" || cc.MemoryCapacity != 32<<20 || cc.DiskCapacity != 512<<20 {
		t.Errorf("CacheConfig() = %+v", cc)
	}
	if dc := cfg.Audio.DeviceConfig(); dc.Format.SampleRate != cfg.Audio.SampleRate {
		t.Errorf("DeviceConfig() = %+v", dc)
	}
	if uc := cfg.Serve.UpstreamConfig(); uc.ModelID == "" || uc.BaseURL == "" {
		t.Errorf("UpstreamConfig() = %+v", uc)
	}
}

func TestDefaultYAMLRoundTrips(t *testing.T) {
	out, err := DefaultYAML()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(out), "# readaloud configuration") {
		t.Errorf("missing header:\n%s", out)
	}
	if strings.Contains(string(out), "api_key") {
		t.Error("default config should not carry api keys")
	}

	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(out)); err != nil {
		t.Fatalf("default YAML does not parse: %v", err)
	}
	cfg, err := FromViper(v)
	if err != nil {
		t.Fatalf("default YAML is invalid: %v", err)
	}
	if cfg.Stream.Timeout != Default().Stream.Timeout {
		t.Errorf("timeout = %v after round trip", cfg.Stream.Timeout)
	}
}
