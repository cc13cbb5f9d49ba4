// Package main is the entry point for the pcitrack API server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dmarquez/pcitrack/internal/api"
	"github.com/dmarquez/pcitrack/internal/config"
	"github.com/dmarquez/pcitrack/internal/database"
	"github.com/dmarquez/pcitrack/internal/jobs"
	"github.com/dmarquez/pcitrack/internal/notify"
	"github.com/dmarquez/pcitrack/internal/repository"
	"github.com/dmarquez/pcitrack/internal/s3storage"
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
	if err := store.EnsureBucket(ctx); err != nil {
		log.Fatal().Err(err).Msg("ensure bucket")
	}

	queueClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer queueClient.Close()

	dispatcher := buildDispatcher(cfg, users)
	scan := jobs.NewExpirationScan(repo, dispatcher, cfg.NotifyWindowDays, cfg.Cooldown)
	reconcile := jobs.NewStatusReconcile(repo, dispatcher, cfg.ThresholdDays, cfg.Cooldown)
	report := jobs.NewWeeklyReport(repo, users, dispatcher)
	registry := jobs.NewDefaultRegistry(scan, reconcile, report)

	srv := api.New(cfg, repo, store, queueClient, registry, dispatcher)
	if err := srv.Run(ctx); err != nil {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
}

// buildDispatcher wires whichever notification transports are configured.
func buildDispatcher(cfg *config.Config, users *repository.UserRepository) *notify.Dispatcher {
	var email, slack notify.Channel
	if cfg.SMTPHost != "" {
		email = notify.NewEmailChannel(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.EmailFrom)
	} else {
		log.Warn().Msg("SMTP not configured; email notifications disabled")
	}
	if cfg.SlackToken != "" {
		slack = notify.NewSlackChannel(cfg.SlackToken)
	}
	return notify.NewDispatcher(users, email, slack, cfg.SlackChannel, cfg.DispatchTimeout)
}
