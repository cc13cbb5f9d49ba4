// Package main runs the pcitrack worker: the extraction pipeline, the
// scheduled-job handlers, and the cron scheduler that feeds them.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dmarquez/pcitrack/internal/config"
	"github.com/dmarquez/pcitrack/internal/database"
	"github.com/dmarquez/pcitrack/internal/jobs"
	"github.com/dmarquez/pcitrack/internal/notify"
	"github.com/dmarquez/pcitrack/internal/repository"
	"github.com/dmarquez/pcitrack/internal/s3storage"
	"github.com/dmarquez/pcitrack/internal/worker"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()
	if err := database.EnsureSchema(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("ensure schema")
	}
	repo := repository.NewDocumentRepository(pool)
	users := repository.NewUserRepository(pool)

	store, err := s3storage.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("init storage")
	}

	var email, slack notify.Channel
	if cfg.SMTPHost != "" {
		email = notify.NewEmailChannel(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.EmailFrom)
	}
	if cfg.SlackToken != "" {
		slack = notify.NewSlackChannel(cfg.SlackToken)
	}
	dispatcher := notify.NewDispatcher(users, email, slack, cfg.SlackChannel, cfg.DispatchTimeout)

	scan := jobs.NewExpirationScan(repo, dispatcher, cfg.NotifyWindowDays, cfg.Cooldown)
	reconcile := jobs.NewStatusReconcile(repo, dispatcher, cfg.ThresholdDays, cfg.Cooldown)
	report := jobs.NewWeeklyReport(repo, users, dispatcher)
	registry := jobs.NewDefaultRegistry(scan, reconcile, report)

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
	server := asynq.NewServer(redisOpt, asynq.Config{Concurrency: cfg.Concurrency})
	processor := worker.NewProcessor(repo, store, registry, cfg.ThresholdDays)

	scheduler, err := worker.NewScheduler(cfg, redisOpt)
	if err != nil {
		log.Fatal().Err(err).Msg("init scheduler")
	}
	if err := scheduler.Start(); err != nil {
		log.Fatal().Err(err).Msg("start scheduler")
	}

	go func() {
		<-ctx.Done()
		scheduler.Shutdown()
		server.Shutdown()
	}()

	log.Info().Int("concurrency", cfg.Concurrency).Msg("worker running")
	if err := server.Run(processor.Handler()); err != nil {
		log.Error().Err(err).Msg("worker stopped")
		os.Exit(1)
	}
}
