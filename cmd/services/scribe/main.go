package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	config "github.com/xilidan/roboscribe/config/scribe"
	"github.com/xilidan/roboscribe/gateways/discord"
	"github.com/xilidan/roboscribe/gateways/discord/handler"
	"github.com/xilidan/roboscribe/gateways/discord/voice"
	"github.com/xilidan/roboscribe/gateways/health"
	"github.com/xilidan/roboscribe/pkg/logger"
	"github.com/xilidan/roboscribe/services/scribe/recognizer"
	"github.com/xilidan/roboscribe/services/scribe/session"
	"github.com/xilidan/roboscribe/services/scribe/storage"
	"github.com/xilidan/roboscribe/services/scribe/summarize"
	"github.com/xilidan/roboscribe/services/scribe/transcribe"
	"github.com/xilidan/roboscribe/services/scribe/usecase"
)

func main() {
	cfg := config.MustLoad()

	log := logger.New(logger.Config{
		Level:      logger.ParseLevel(cfg.LogLevel),
		Output:     os.Stderr,
		AddSource:  true,
		JSONFormat: cfg.LogJSON,
	})
	log.Info("configuration loaded",
		slog.Int("port", cfg.Port),
		slog.String("db_driver", cfg.Database.Driver),
		slog.String("recordings_dir", cfg.Recording.Dir),
		slog.Duration("chunk_length", cfg.Recording.ChunkLength()),
		slog.Bool("gemini_api_key_set", cfg.Gemini.APIKey != ""),
		slog.String("discord_guild_id", cfg.Discord.GuildID))

	ctx := logger.WithContext(context.Background(), log)

	rootCtx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(rootCtx, cfg, log); err != nil {
		log.Error("failed to run()", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log.Info("application terminated successfully")
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	if err := os.MkdirAll(cfg.Recording.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create recordings dir: %w", err)
	}

	stg, err := storage.New(ctx, cfg.Database, logger.Component(log, "storage"))
	if err != nil {
		return err
	}
	defer func() {
		if err := stg.Close(); err != nil {
			log.Error("failed to close storage", slog.String("error", err.Error()))
		}
	}()

	rec, err := recognizer.New(ctx, cfg.Speech)
	if err != nil {
		return err
	}
	defer rec.Close()

	var generator summarize.Generator
	gemini, err := summarize.NewGemini(ctx, cfg.Gemini)
	switch {
	case errors.Is(err, summarize.ErrNotConfigured):
		log.Warn("GEMINI_API_KEY is not set, summaries are disabled")
	case err != nil:
		return err
	default:
		generator = gemini
	}

	dg, err := discord.NewSession(cfg.Discord)
	if err != nil {
		return err
	}

	transcriber := transcribe.New(rec, logger.Component(log, "transcribe"),
		transcribe.WithChunkLength(cfg.Recording.ChunkLength()))

	usc := usecase.New(usecase.Deps{
		Registry:    session.New(logger.Component(log, "session")),
		Transport:   voice.NewTransport(dg, log),
		Transcriber: transcriber,
		Summarizer:  summarize.New(generator, logger.Component(log, "summarize")),
		Storage:     stg,
	}, cfg.Recording, logger.Component(log, "usecase"))

	h := handler.New(usc, voice.NewLocator(dg, log), logger.Component(log, "handler"))
	bot := discord.New(cfg.Discord, dg, h, log, discord.BeforeClose(usc.Shutdown))
	probe := health.New(cfg.Port, bot.Ready, log)

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	serverErrors := make(chan error, 2)
	go func() {
		serverErrors <- bot.Start(runCtx)
	}()
	go func() {
		serverErrors <- probe.Start(runCtx)
	}()
	log.Info("roboscribe started")

	// The first component to stop takes the other one down with it.
	var firstErr error
	for i := 0; i < 2; i++ {
		if err := <-serverErrors; err != nil && firstErr == nil {
			firstErr = err
		}
		stop()
	}
	return firstErr
}
