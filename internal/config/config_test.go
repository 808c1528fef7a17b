package config

import (
	"reflect"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("NODE_ID", "node-1")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != 8080 || cfg.BindAddr != "0.0.0.0" {
		t.Errorf("listen = %s", cfg.ListenAddr())
	}
	want := []string{"response.audio.delta", "response.output_audio.delta"}
	if !reflect.DeepEqual(cfg.AudioDeltaEvents, want) {
		t.Errorf("AudioDeltaEvents = %v, want %v", cfg.AudioDeltaEvents, want)
	}
	if cfg.SpeechHandshakeTimeout != 0 || cfg.IdleTimeout != 0 {
		t.Errorf("timeouts = %v/%v, want disabled", cfg.SpeechHandshakeTimeout, cfg.IdleTimeout)
	}
	if !cfg.GreetFirst || cfg.InterruptOnSpeech {
		t.Errorf("GreetFirst=%v InterruptOnSpeech=%v", cfg.GreetFirst, cfg.InterruptOnSpeech)
	}
	if cfg.NodeID != "node-1" {
		t.Errorf("NodeID = %q", cfg.NodeID)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Errorf("ShutdownTimeout = %v", cfg.ShutdownTimeout)
	}
}

func TestLoadEnvironmentAndFlags(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", " sk-test ")
	t.Setenv("PORT", "9000")
	t.Setenv("LOGLEVEL", "warn")
	t.Setenv("AUDIO_DELTA_EVENTS", "audio.chunk")
	t.Setenv("IDLE_TIMEOUT", "30s")
	t.Setenv("MAX_CONCURRENT_CALLS", "25")

	cfg, err := Load([]string{"-port", "9100", "-public-host", "bridge.example.com"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != 9100 {
		t.Errorf("Port = %d, want flag value 9100", cfg.Port)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want env value warn", cfg.LogLevel)
	}
	if cfg.PublicHost != "bridge.example.com" {
		t.Errorf("PublicHost = %q", cfg.PublicHost)
	}
	if cfg.APIKey != "sk-test" {
		t.Errorf("APIKey not trimmed: %q", cfg.APIKey)
	}
	if !reflect.DeepEqual(cfg.AudioDeltaEvents, []string{"audio.chunk"}) {
		t.Errorf("AudioDeltaEvents = %v", cfg.AudioDeltaEvents)
	}
	if cfg.IdleTimeout != 30*time.Second || cfg.MaxConcurrentCalls != 25 {
		t.Errorf("IdleTimeout=%v MaxConcurrentCalls=%d", cfg.IdleTimeout, cfg.MaxConcurrentCalls)
	}
}

func TestLoadRequiresAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	if _, err := Load(nil); err == nil {
		t.Fatal("Load() succeeded without OPENAI_API_KEY")
	}
}

func TestValidate(t *testing.T) {
	base := Config{APIKey: "k", Port: 8080}

	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"valid", func(c *Config) {}, true},
		{"bad port", func(c *Config) { c.Port = 70000 }, false},
		{"negative idle", func(c *Config) { c.IdleTimeout = -time.Second }, false},
		{"negative cap", func(c *Config) { c.MaxConcurrentCalls = -1 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			if err := c.Validate(); (err == nil) != tt.ok {
				t.Errorf("Validate() error = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}
