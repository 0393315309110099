package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/snarg/speakscore"
	"github.com/snarg/speakscore/internal/acoustic"
	"github.com/snarg/speakscore/internal/api"
	"github.com/snarg/speakscore/internal/assess"
	"github.com/snarg/speakscore/internal/audio"
	"github.com/snarg/speakscore/internal/config"
	"github.com/snarg/speakscore/internal/database"
	"github.com/snarg/speakscore/internal/errlog"
	"github.com/snarg/speakscore/internal/metrics"
	"github.com/snarg/speakscore/internal/mqttclient"
	"github.com/snarg/speakscore/internal/storage"
	"github.com/snarg/speakscore/internal/transcribe"
)

var version = "dev"

func main() {
	startTime := time.Now()

	var overrides config.Overrides
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.StringVar(&overrides.EnvFile, "env-file", "", "path to .env file (default .env)")
	flag.StringVar(&overrides.HTTPAddr, "listen", "", "HTTP listen address")
	flag.StringVar(&overrides.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	flag.StringVar(&overrides.DatabaseURL, "database-url", "", "PostgreSQL connection URL")
	flag.StringVar(&overrides.AcousticPolicy, "acoustic-policy", "", "acoustic scoring policy (volume or features)")
	flag.StringVar(&overrides.TempDir, "temp-dir", "", "directory for temporary audio files")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
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
	log.Info().Str("version", version).Msg("speakscore starting")

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Error log
	errs, err := errlog.Open(cfg.ErrorLogPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.ErrorLogPath).Msg("failed to open error log")
	}
	defer errs.Close()

	// Database
	dbLog := log.With().Str("component", "database").Logger()
	db, err := database.Connect(ctx, database.Options{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
		Log:      dbLog,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := db.InitSchema(ctx, speakscore.SchemaSQL); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize schema")
	}

	// Audio sources and transcoder
	sources, err := storage.New(cfg.S3, cfg.AudioDir, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to configure audio sources")
	}
	ffmpeg := audio.NewFFmpeg(cfg.FFmpegPath)
	if !ffmpeg.Available() {
		log.Warn().Str("path", cfg.FFmpegPath).Msg("ffmpeg not found; every evaluation will fail until it is installed")
	}
	ingestor := audio.NewIngestor(audio.IngestorOptions{
		TempDir:      cfg.TempDir,
		FetchTimeout: cfg.FetchTimeout,
		MaxBytes:     cfg.MaxAudioBytes,
		Transcoder:   ffmpeg,
		Sources:      sources,
		Log:          log,
	})

	// Acoustic scoring
	models, err := acoustic.LoadModelTable(cfg.LanguageModelsFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load language models")
	}
	policy, err := acoustic.NewPolicy(cfg.AcousticPolicy, ffmpeg, models)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid acoustic policy")
	}
	log.Info().
		Str("policy", policy.Name()).
		Strs("languages", models.Languages()).
		Float64("silence_threshold", cfg.SilenceThreshold).
		Msg("acoustic scoring configured")

	// Transcription
	if cfg.TranscriptionAPIKey == "" {
		log.Warn().Msg("TRANSCRIPTION_API_KEY not set; transcription requests will be rejected")
	}
	if budget := cfg.EvaluationBudget(); cfg.WriteTimeout <= budget {
		log.Warn().
			Dur("write_timeout", cfg.WriteTimeout).
			Dur("evaluation_budget", budget).
			Msg("HTTP_WRITE_TIMEOUT is shorter than a worst-case evaluation; slow assessments will be saved but the response cut off")
	}
	transcriber := transcribe.NewClient(transcribe.ClientOptions{
		BaseURL:        cfg.TranscriptionURL,
		APIKey:         cfg.TranscriptionAPIKey,
		PollInterval:   cfg.TranscriptionPollInterval,
		MaxAttempts:    cfg.TranscriptionMaxAttempts,
		RequestTimeout: cfg.TranscriptionTimeout,
		Log:            log,
	})

	// MQTT (optional)
	var notifier assess.Notifier
	var broker api.ConnectionChecker
	if cfg.MQTTBrokerURL != "" {
		mqtt, err := mqttclient.Connect(mqttclient.Options{
			BrokerURL:   cfg.MQTTBrokerURL,
			ClientID:    cfg.MQTTClientID,
			Username:    cfg.MQTTUsername,
			Password:    cfg.MQTTPassword,
			TopicPrefix: cfg.MQTTTopicPrefix,
			QoS:         1,
			Log:         log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to mqtt broker")
		}
		defer mqtt.Close()
		notifier, broker = mqtt, mqtt
	} else {
		log.Info().Msg("MQTT_BROKER_URL not set; assessment events disabled")
	}

	// Assessment pipeline
	svc := assess.NewService(assess.Options{
		Ingestor:         ingestor,
		Policy:           policy,
		Transcriber:      transcriber,
		Store:            db,
		Notifier:         notifier,
		ErrorLog:         errs,
		SilenceThreshold: cfg.SilenceThreshold,
		Log:              log,
	})
	analyzer := assess.NewAnalyzer(ingestor,
		&acoustic.VolumePolicy{Detector: ffmpeg},
		&acoustic.FeaturePolicy{Models: models},
		errs, log)

	pool := assess.NewPool(svc, assess.PoolOptions{
		Workers:   cfg.EvalWorkers,
		QueueSize: cfg.EvalQueueSize,
		Log:       log,
	})
	pool.Start()

	prometheus.MustRegister(metrics.NewCollector(db.Pool, pool))

	// HTTP Server
	httpLog := log.With().Str("component", "http").Logger()
	srv := api.NewServer(cfg, api.Deps{
		DB:        db,
		MQTT:      broker,
		FFmpeg:    ffmpeg,
		Pool:      pool,
		History:   svc,
		Analyzer:  analyzer,
		Languages: models,
	}, version, startTime, httpLog)

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

	// Graceful shutdown: stop accepting requests, then drain queued evaluations
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}
	pool.Stop()

	log.Info().Msg("speakscore stopped")
}
