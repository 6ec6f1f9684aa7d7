package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/snarg/anomia-engine/internal/api"
	"github.com/snarg/anomia-engine/internal/audio"
	"github.com/snarg/anomia-engine/internal/config"
	"github.com/snarg/anomia-engine/internal/match"
	"github.com/snarg/anomia-engine/internal/metrics"
	"github.com/snarg/anomia-engine/internal/storage"
	"github.com/snarg/anomia-engine/internal/store"
	"github.com/snarg/anomia-engine/internal/transcribe"
	"github.com/snarg/anomia-engine/internal/verify"
	"github.com/snarg/anomia-engine/internal/words"
)

var version = "dev"

func main() {
	startTime := time.Now()

	var overrides config.Overrides
	flag.StringVar(&overrides.EnvFile, "env-file", "", "path to .env file (default .env)")
	flag.StringVar(&overrides.HTTPAddr, "listen", "", "HTTP listen address")
	flag.StringVar(&overrides.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	flag.StringVar(&overrides.DatabaseURL, "database-url", "", "PostgreSQL connection URL (empty keeps records in memory)")
	flag.StringVar(&overrides.WordsFile, "words", "", "word list file (YAML or JSON)")
	flag.StringVar(&overrides.ScratchDir, "scratch-dir", "", "directory for per-request audio workspaces")
	flag.StringVar(&overrides.STTProvider, "stt-provider", "", "speech-to-text provider (whisper, deepinfra, elevenlabs, openai)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("anomia-engine", version)
		return
	}

	// Config
	cfg, err := config.Load(overrides)
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("failed to load config")
	}

	// Logger
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)
	log.Info().Str("version", version).Msg("anomia-engine starting")

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Word list
	catalog := words.Default()
	var watcher *words.Watcher
	if cfg.WordsFile != "" {
		ws, err := words.LoadFile(cfg.WordsFile)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.WordsFile).Msg("failed to load word list")
		}
		catalog.Replace(ws, cfg.WordsFile)

		if cfg.WordsWatch {
			watcher = words.NewWatcher(catalog, cfg.WordsFile, log, func(n int, err error) {
				if err != nil {
					metrics.WordListReloadsTotal.WithLabelValues("error").Inc()
					return
				}
				metrics.WordListReloadsTotal.WithLabelValues("ok").Inc()
			})
			if err := watcher.Start(); err != nil {
				log.Warn().Err(err).Msg("word list watcher not started, changes need a restart")
				watcher = nil
			}
		}
	}
	log.Info().Int("words", catalog.Len()).Str("source", catalog.Source()).Msg("word list loaded")

	// Scratch space
	scratch, err := storage.NewScratch(cfg.ScratchDir)
	if err != nil {
		log.Fatal().Err(err).Str("dir", cfg.ScratchDir).Msg("failed to prepare scratch directory")
	}
	var background []storage.BackgroundService
	sweeper := storage.NewSweeper(scratch, cfg.ScratchMaxAge, log)
	background = append(background, sweeper)

	// Transcoder
	transcoder, err := audio.NewTranscoder(audio.TranscoderOptions{
		Tool:    cfg.Transcoder,
		Command: cfg.TranscoderCommand,
		Timeout: cfg.TranscodeTimeout,
		Log:     log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("invalid transcoder configuration")
	}
	if !transcoder.Available() {
		log.Warn().Str("tool", transcoder.Tool()).Msg("transcoder not found in PATH, only canonical WAV uploads will verify")
	}

	// Speech-to-text
	provider, err := transcribe.NewProvider(transcribe.Settings{
		Provider: cfg.STTProvider,
		URL:      cfg.STTURL,
		Model:    cfg.STTModel,
		APIKey:   cfg.STTAPIKey,
		Timeout:  cfg.STTTimeout,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("invalid transcription provider configuration")
	}
	stt := transcribe.NewClient(provider, transcribe.ClientOptions{
		Language:    cfg.STTLanguage,
		Prompt:      cfg.STTPrompt,
		Temperature: cfg.STTTemperature,
		Timeout:     cfg.STTTimeout,
	})
	log.Info().
		Str("provider", provider.Name()).
		Str("model", provider.Model()).
		Str("language", cfg.STTLanguage).
		Msg("transcription provider configured")

	// Scorer
	rules, err := match.RuleSetByName(cfg.MatchRules)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid match rules")
	}
	scorer := match.New(
		match.WithThreshold(cfg.MatchThreshold),
		match.WithRuleSet(rules),
		match.WithLengthAdjust(cfg.MatchLengthAdjust),
	)

	// Record store
	var records store.Store
	var collector *metrics.Collector
	if cfg.DatabaseURL != "" {
		dbLog := log.With().Str("component", "database").Logger()
		pg, err := store.Connect(ctx, cfg.DatabaseURL, dbLog)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		records = pg
		collector = metrics.NewCollector(pg.Pool, scratch, catalog)
	} else {
		log.Warn().Msg("DATABASE_URL not set, sessions and progress are kept in memory")
		records = store.NewMemory()
		collector = metrics.NewCollector(nil, scratch, catalog)
	}
	defer records.Close()

	// Verification pipeline
	verifier := verify.New(verify.Deps{
		Words:       catalog,
		Workspaces:  scratch,
		Normalizer:  transcoder,
		Transcriber: stt,
		Scorer:      scorer,
		Language:    cfg.STTLanguage,
		Log:         log,
	})

	// Metrics
	var metricsHandler http.Handler
	if cfg.MetricsEnabled {
		prometheus.MustRegister(collector)
		metricsHandler = promhttp.Handler()
	}

	for _, svc := range background {
		svc.Start()
	}

	// HTTP Server
	httpLog := log.With().Str("component", "http").Logger()
	srv := api.NewServer(cfg, api.ServerOptions{
		Verifier: verifier,
		Words:    catalog,
		Store:    records,
		Health: api.HealthDeps{
			Words:       catalog,
			Transcoder:  transcoder,
			Store:       records,
			Transcriber: provider.Name() + "/" + provider.Model(),
		},
		Metrics:   metricsHandler,
		Version:   version,
		StartTime: startTime,
	}, httpLog)

	// Start HTTP server in background
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	// Wait for shutdown signal or server error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server error")
		}
	}

	// Graceful shutdown with 10s timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}
	if watcher != nil {
		watcher.Stop()
	}
	for _, svc := range background {
		svc.Stop()
	}

	log.Info().Msg("anomia-engine stopped")
}
