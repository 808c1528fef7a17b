package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sebas/voicebridge/internal/api"
	"github.com/sebas/voicebridge/internal/banner"
	"github.com/sebas/voicebridge/internal/bridge"
	"github.com/sebas/voicebridge/internal/config"
	"github.com/sebas/voicebridge/internal/events"
	"github.com/sebas/voicebridge/internal/logger"
	"github.com/sebas/voicebridge/internal/realtime"
	"github.com/sebas/voicebridge/internal/telephony"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "voicebridge: %v\n", err)
		os.Exit(2)
	}

	// Initialize logger
	outputs := []io.Writer{os.Stdout}
	if cfg.LogFile != "" {
		file := logger.NewFileWriter(logger.FileOptions{Path: cfg.LogFile})
		defer file.Close()
		outputs = append(outputs, file)
	}
	logger.InitLogger(outputs...)
	logger.SetLevel(cfg.LogLevel)

	printBanner(cfg)

	if err := run(cfg); err != nil {
		slog.Error("Voicebridge exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	publisher, err := newPublisher(ctx, cfg)
	if err != nil {
		return err
	}
	defer publisher.Close()

	manager := bridge.NewManager(bridgeConfig(cfg), bridge.RealtimeDialer(realtime.DialConfig{
		URL:              cfg.RealtimeURL,
		Model:            cfg.Model,
		APIKey:           cfg.APIKey,
		HandshakeTimeout: cfg.SpeechHandshakeTimeout,
		IdleTimeout:      cfg.IdleTimeout,
	}), publisher, cfg.MaxConcurrentCalls)

	cc := api.CallControl{
		Greeting:       cfg.Greeting,
		ClosingMessage: cfg.ClosingMessage,
		Voice:          cfg.GreetingVoice,
	}
	if cfg.PublicHost != "" {
		cc.StreamURL = telephony.StreamURL(cfg.PublicHost, api.PathMedia)
	} else {
		slog.Warn("PUBLIC_HOST not set; calls will hear the greeting only")
	}

	server := api.NewServer(cfg.ListenAddr(), manager, cc, cfg.IdleTimeout)
	if err := server.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}

	<-ctx.Done()
	slog.Info("Received signal, shutting down", "active_calls", manager.Count())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP server shutdown incomplete", "error", err)
	}
	if err := manager.CloseAll(shutdownCtx); err != nil {
		slog.Warn("Bridges still running at shutdown deadline", "count", manager.Count(), "error", err)
	}
	if err := publisher.Flush(shutdownCtx); err != nil {
		slog.Warn("Event flush incomplete", "error", err)
	}
	return nil
}

func newPublisher(ctx context.Context, cfg *config.Config) (events.Publisher, error) {
	logging := events.NewLoggingPublisher(slog.Default())
	if cfg.NATSURL == "" {
		return logging, nil
	}

	natsCfg := events.DefaultNATSConfig()
	natsCfg.URL = cfg.NATSURL
	natsCfg.StreamName = cfg.NATSStream
	natsCfg.CredsFile = cfg.NATSCreds

	nc, err := events.NewNATSPublisher(ctx, natsCfg, slog.Default())
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return events.NewMultiPublisher(logging, nc), nil
}

func bridgeConfig(cfg *config.Config) bridge.Config {
	return bridge.Config{
		Session: realtime.SessionConfig{
			Instructions: cfg.Instructions,
			Voice:        cfg.Voice,
			TurnDetection: &realtime.TurnDetection{
				Type:              "server_vad",
				Threshold:         cfg.VADThreshold,
				PrefixPaddingMS:   cfg.VADPrefixPaddingMS,
				SilenceDurationMS: cfg.VADSilenceDurationMS,
			},
		},
		SpeechURL:         cfg.RealtimeURL,
		SpeechModel:       cfg.Model,
		AudioDeltaTypes:   cfg.AudioDeltaEvents,
		GreetFirst:        cfg.GreetFirst,
		InterruptOnSpeech: cfg.InterruptOnSpeech,
		NodeID:            cfg.NodeID,
	}
}

func printBanner(cfg *config.Config) {
	publicHost := cfg.PublicHost
	if publicHost == "" {
		publicHost = "(not set)"
	}
	natsURL := cfg.NATSURL
	if natsURL == "" {
		natsURL = "(disabled)"
	}
	maxCalls := "unlimited"
	if cfg.MaxConcurrentCalls > 0 {
		maxCalls = fmt.Sprintf("%d", cfg.MaxConcurrentCalls)
	}

	banner.Print(os.Stdout, "Voicebridge Media Relay", []banner.ConfigLine{
		{Label: "Listen", Value: cfg.ListenAddr()},
		{Label: "Public host", Value: publicHost},
		{Label: "Realtime URL", Value: cfg.RealtimeURL},
		{Label: "Model", Value: cfg.Model},
		{Label: "Voice", Value: cfg.Voice},
		{Label: "API key", Value: banner.Mask(cfg.APIKey)},
		{Label: "Max calls", Value: maxCalls},
		{Label: "NATS", Value: natsURL},
		{Label: "Log level", Value: cfg.LogLevel},
		{Label: "Node", Value: cfg.NodeID},
	})
}
