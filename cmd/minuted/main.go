package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/rs/zerolog"

	"github.com/meetscribe/minuted/internal/api"
	"github.com/meetscribe/minuted/internal/asr"
	"github.com/meetscribe/minuted/internal/config"
	"github.com/meetscribe/minuted/internal/llm"
	"github.com/meetscribe/minuted/internal/mail"
	"github.com/meetscribe/minuted/internal/queue"
	"github.com/meetscribe/minuted/internal/store"
	"github.com/meetscribe/minuted/internal/worker"
)

var version = "dev"

func main() {
	startTime := time.Now()

	// Config
	cfg, err := config.Load()
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
	log.Info().Str("version", version).Msg("minuted starting")

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// AWS clients
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load aws config")
	}

	blobs := store.NewS3Store(awsCfg, cfg.S3Bucket, cfg.S3Prefix, log)
	if err := blobs.HeadBucket(ctx); err != nil {
		log.Fatal().Err(err).Str("bucket", cfg.S3Bucket).Msg("bucket not reachable")
	}

	records := store.NewMeetingStore(awsCfg, cfg.MeetingsTable, log)
	glossary := store.NewGlossaryCache(store.NewGlossaryStore(awsCfg, cfg.GlossaryTable, log), log)
	queues := queue.New(awsCfg, log)
	bedrock := llm.NewBedrock(awsCfg, cfg.BedrockModelID, log)
	mailer := mail.NewSESSender(awsCfg, cfg.SESFromEmail, log)

	// ASR tracks
	tracks := []asr.Track{
		asr.NewTranscribeTrack(awsCfg, asr.TranscribeOptions{
			Enabled:      cfg.EnableTranscribe,
			Bucket:       cfg.S3Bucket,
			Prefix:       cfg.S3Prefix,
			LanguageCode: cfg.TranscribeLanguage,
			Vocabulary:   cfg.TranscribeVocabulary,
		}, log),
		asr.NewWhisperTrack(asr.WhisperOptions{
			Enabled:      cfg.EnableWhisper,
			URL:          cfg.WhisperURL,
			Bucket:       cfg.S3Bucket,
			ProbeTimeout: cfg.ASRProbeLimit,
			PostTimeout:  cfg.ASRPostLimit,
		}, blobs, log),
		asr.NewFunASRTrack(asr.FunASROptions{
			URL:          cfg.FunASRURL,
			Bucket:       cfg.S3Bucket,
			Language:     cfg.FunASRLanguage,
			ProbeTimeout: cfg.ASRProbeLimit,
			PostTimeout:  cfg.ASRPostLimit,
		}, blobs, log),
	}

	// Stage processors and controllers
	transcription := worker.NewTranscription(records, queues, cfg.ReportQueueURL, tracks, log)
	report := worker.NewReport(records, blobs, queues, cfg.ExportQueueURL, bedrock, glossary, cfg.LLMMaxTokens, log)
	export := worker.NewExport(records, blobs, mailer, cfg.SESToEmail, log)
	retrier := worker.NewRetrier(records, queues, cfg.TranscriptionQueueURL, log)

	controllers := []*worker.Controller{
		worker.NewController(queues, transcription, worker.ControllerOptions{
			QueueURL:    cfg.TranscriptionQueueURL,
			MaxMessages: cfg.MaxMessages,
			PollWait:    cfg.PollWait,
			IdleSleep:   cfg.IdleSleep,
		}, log),
		worker.NewController(queues, report, worker.ControllerOptions{
			QueueURL:    cfg.ReportQueueURL,
			MaxMessages: cfg.MaxMessages,
			PollWait:    cfg.PollWait,
			IdleSleep:   cfg.IdleSleep,
		}, log),
		worker.NewController(queues, export, worker.ControllerOptions{
			QueueURL:    cfg.ExportQueueURL,
			MaxMessages: cfg.MaxMessages,
			PollWait:    cfg.PollWait,
			IdleSleep:   cfg.IdleSleep,
		}, log),
	}

	var wg sync.WaitGroup
	for _, c := range controllers {
		wg.Add(1)
		go func(c *worker.Controller) {
			defer wg.Done()
			c.Run(ctx)
		}(c)
	}

	// Ops HTTP server
	httpLog := log.With().Str("component", "http").Logger()
	srv := api.NewServer(cfg, blobs, retrier, version, startTime, httpLog)

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
	stop()

	// Graceful shutdown with 10s timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}

	wg.Wait()
	log.Info().Msg("minuted stopped")
}
