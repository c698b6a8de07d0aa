package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mealwise/backend/config"
	"github.com/mealwise/backend/internal/bot"
	"github.com/mealwise/backend/internal/database"
	"github.com/mealwise/backend/internal/server"
	"github.com/mealwise/backend/internal/service"
)

func main() {
	logger := config.NewLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("failed to load configuration")
	}

	db, err := database.New(cfg)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to database")
	}

	// Stats caching degrades gracefully when Redis is unavailable.
	redisClient, err := database.NewRedisClient(cfg)
	if err != nil {
		logger.WithError(err).Warn("redis unavailable, stats caching disabled")
		redisClient = nil
	}

	ctx := context.Background()

	var archiver service.PhotoArchiver
	s3cfg, err := config.NewS3Config(ctx, cfg)
	if err != nil {
		logger.WithError(err).Warn("S3 unavailable, photo archiving disabled")
	} else if s3cfg != nil {
		archiver = service.NewPhotoArchiveService(s3cfg, logger)
	}

	directory := service.NewUserDirectoryService(db, logger)
	moderation := service.NewModerationService(db, logger, cfg.BanThreshold)
	analyzer := service.NewVisionService(cfg, logger)
	stats := service.NewStatsService(db, redisClient, logger)
	telemetry := service.NewTelemetryService(db, logger)

	tgBot, err := bot.New(cfg, directory, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to start telegram bot")
	}

	pipeline := service.NewMealPipeline(db, analyzer, moderation, tgBot, archiver, cfg.FetchTimeout, logger)
	tgBot.SetPipeline(pipeline)

	srv := server.NewServer(cfg, server.Services{
		Stats:     stats,
		Telemetry: telemetry,
		Directory: directory,
		Sender:    tgBot,
	}, logger)

	botCtx, cancelBot := context.WithCancel(ctx)
	defer cancelBot()

	errChan := make(chan error, 2)

	go func() {
		errChan <- srv.Start(cfg.ServerPort)
	}()

	go func() {
		if err := tgBot.Run(botCtx); err != nil && err != context.Canceled {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		if err != nil {
			logger.WithError(err).Error("fatal runtime error")
		}
	case sig := <-quit:
		logger.WithField("signal", sig.String()).Info("shutdown signal received")
	}

	cancelBot()
	if err := srv.Stop(ctx); err != nil {
		logger.WithError(err).Error("HTTP server shutdown error")
	}
	logger.Info("server stopped")
}
