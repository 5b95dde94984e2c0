package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/PrathameshPGAGI/webhook/internal/config"
	"github.com/PrathameshPGAGI/webhook/internal/meeting"
	"github.com/PrathameshPGAGI/webhook/internal/observability"
	"github.com/PrathameshPGAGI/webhook/internal/pipeline"
	"github.com/PrathameshPGAGI/webhook/internal/rebuild"
	"github.com/PrathameshPGAGI/webhook/internal/recall"
	"github.com/PrathameshPGAGI/webhook/internal/store"
	"github.com/PrathameshPGAGI/webhook/internal/transcribe"
	"github.com/PrathameshPGAGI/webhook/internal/tts"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("port", cfg.Port).
		Int("sample_rate", cfg.SampleRate).
		Float64("window_seconds", cfg.WindowSeconds).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Meeting Audio Service starting")

	// Document store
	connectCtx, cancelConnect := context.WithTimeout(context.Background(), 15*time.Second)
	mongoStore, err := store.Connect(connectCtx, cfg.MongoURI, cfg.MongoDatabase)
	cancelConnect()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to MongoDB")
	}

	transcriptLog, err := store.NewTranscriptLog(cfg.TranscriptDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create transcript log")
	}

	// Transcription pipeline
	engine, err := transcribe.NewDeepgramEngine(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create Deepgram engine")
	}
	dispatcher := transcribe.NewDispatcher(
		engine,
		mongoStore,
		transcriptLog,
		cfg.TranscribeWorkers,
		cfg.TranscribeQueueSize,
		cfg.SampleRate,
		time.Duration(cfg.TranscribeTimeout)*time.Second,
	)

	// Session windowing
	windower := pipeline.NewWindower(cfg.WindowSeconds, cfg.SampleRate)
	registry := pipeline.NewRegistry(windower, time.Duration(cfg.SessionIdleTimeout)*time.Second)

	listener := meeting.NewListener(registry, mongoStore, dispatcher)
	reconstructor := rebuild.NewReconstructor(mongoStore, cfg.SampleRate)

	mux := http.NewServeMux()
	mux.HandleFunc("/streams/meeting", listener.HandleWS)
	mux.HandleFunc("POST /api/webhook/meeting/transcript", meeting.HandleTranscriptWebhook)
	mux.Handle("GET /audio/{botID}", rebuild.NewHandler(reconstructor, cfg.SampleRate))

	// Bot dispatch is only exposed when the bot API is configured.
	if cfg.RecallAPIKey != "" {
		var synthesizer tts.Synthesizer
		if cfg.TTSServiceURL != "" {
			synthesizer = tts.NewHTTPSynthesizer(cfg)
		}
		botHandler := meeting.NewBotHandler(recall.NewClient(cfg), synthesizer, cfg)
		mux.Handle("POST /api/bot", botHandler)
		logger.Info().Msg("Bot dispatch enabled at /api/bot")
	}

	mux.HandleFunc("/health", observability.HealthCheckHandler())

	mongoCheck := func(ctx context.Context) (bool, error) {
		if err := mongoStore.Ping(ctx); err != nil {
			return false, err
		}
		return true, nil
	}
	deepgramCheck := func(ctx context.Context) (bool, error) {
		// Validates configuration without spending API quota.
		if cfg.DeepgramAPIKey == "" {
			return false, fmt.Errorf("deepgram API key missing")
		}
		return true, nil
	}
	mux.HandleFunc("/ready", observability.ReadinessHandler(map[string]observability.HealthCheckFunc{
		"mongodb":  mongoCheck,
		"deepgram": deepgramCheck,
	}))

	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("endpoint", fmt.Sprintf("ws://localhost:%s/streams/meeting", cfg.Port)).
			Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop ingesting before tearing down the pipeline behind it.
	registry.Shutdown()
	dispatcher.Shutdown()
	if err := mongoStore.Close(ctx); err != nil {
		logger.Warn().Err(err).Msg("Mongo disconnect failed")
	}

	logger.Info().Msg("Server exited gracefully")
}
