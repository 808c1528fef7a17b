package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds the voicebridge configuration
type Config struct {
	// Service
	Port            int           `env:"PORT" envDefault:"8080"`
	BindAddr        string        `env:"BIND" envDefault:"0.0.0.0"`
	PublicHost      string        `env:"PUBLIC_HOST"` // host the carrier reaches us on; empty disables streaming in call control
	LogLevel        string        `env:"LOGLEVEL" envDefault:"info"`
	LogFile         string        `env:"LOG_FILE"`
	NodeID          string        `env:"NODE_ID"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// Speech session
	APIKey            string   `env:"OPENAI_API_KEY"`
	RealtimeURL       string   `env:"OPENAI_REALTIME_URL" envDefault:"wss://api.openai.com/v1/realtime"`
	Model             string   `env:"OPENAI_REALTIME_MODEL" envDefault:"gpt-4o-realtime-preview"`
	Voice             string   `env:"VOICE" envDefault:"alloy"`
	Instructions      string   `env:"INSTRUCTIONS" envDefault:"You are the intake assistant for a medical clinic. Greet the caller, ask for their name, date of birth and reason for calling, and keep answers short."`
	AudioDeltaEvents  []string `env:"AUDIO_DELTA_EVENTS" envSeparator:"," envDefault:"response.audio.delta,response.output_audio.delta"`
	GreetFirst        bool     `env:"GREET_FIRST" envDefault:"true"`
	InterruptOnSpeech bool     `env:"INTERRUPT_ON_SPEECH" envDefault:"false"`

	// Server-side voice activity detection
	VADThreshold         float64 `env:"VAD_THRESHOLD" envDefault:"0.5"`
	VADPrefixPaddingMS   int     `env:"VAD_PREFIX_PADDING_MS" envDefault:"300"`
	VADSilenceDurationMS int     `env:"VAD_SILENCE_DURATION_MS" envDefault:"500"`

	// Timeouts; zero disables
	SpeechHandshakeTimeout time.Duration `env:"SPEECH_HANDSHAKE_TIMEOUT" envDefault:"0s"`
	IdleTimeout            time.Duration `env:"IDLE_TIMEOUT" envDefault:"0s"`

	MaxConcurrentCalls int `env:"MAX_CONCURRENT_CALLS" envDefault:"0"`

	// Call control
	Greeting       string `env:"GREETING" envDefault:"Hello. This is the clinic intake line."`
	ClosingMessage string `env:"CLOSING_MESSAGE" envDefault:"Thank you for calling. Goodbye."`
	GreetingVoice  string `env:"GREETING_VOICE" envDefault:"alice"`

	// Events
	NATSURL    string `env:"NATS_URL"`
	NATSStream string `env:"NATS_STREAM" envDefault:"VOICEBRIDGE_CALLS"`
	NATSCreds  string `env:"NATS_CREDS"`
}

// Load reads .env (if present), then the environment, then command line
// flags. Flags given explicitly win over the environment.
func Load(args []string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}

	fs := flag.NewFlagSet("voicebridge", flag.ContinueOnError)
	port := fs.Int("port", cfg.Port, "HTTP listen port")
	bind := fs.String("bind", cfg.BindAddr, "HTTP bind address")
	publicHost := fs.String("public-host", cfg.PublicHost, "Public host name used in the stream URL")
	logLevel := fs.String("loglevel", cfg.LogLevel, "Log level")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Port = *port
		case "bind":
			cfg.BindAddr = *bind
		case "public-host":
			cfg.PublicHost = *publicHost
		case "loglevel":
			cfg.LogLevel = *logLevel
		}
	})

	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.PublicHost = strings.TrimSpace(cfg.PublicHost)
	if cfg.NodeID == "" {
		cfg.NodeID, _ = os.Hostname()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required values and ranges.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return errors.New("OPENAI_API_KEY is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.SpeechHandshakeTimeout < 0 || c.IdleTimeout < 0 {
		return errors.New("timeouts must not be negative")
	}
	if c.MaxConcurrentCalls < 0 {
		return fmt.Errorf("invalid MAX_CONCURRENT_CALLS %d", c.MaxConcurrentCalls)
	}
	return nil
}

// ListenAddr returns the HTTP listen address.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.BindAddr, c.Port)
}
