package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"linkbrief/internal/bot"
	"linkbrief/internal/config"
	"linkbrief/internal/loader"
	"linkbrief/internal/logging"
	"linkbrief/internal/metrics"
	"linkbrief/internal/pipeline"
	"linkbrief/internal/summarizer"
	"linkbrief/internal/web"

	"github.com/gin-gonic/gin"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	start := time.Now()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config",
			"error", err)

		return err
	}

	log, err := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		slog.Error("Failed to build logger",
			"error", err,
			"logLevel", cfg.LogLevel,
			"logFormat", cfg.LogFormat)

		return err
	}
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summarizerCfg := cfg.Summarizer()
	s, err := summarizer.New(summarizerCfg)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize summarizer",
			"error", err,
			"provider", summarizerCfg.Provider)

		return err
	}
	log.InfoContext(ctx, "Summarizer is initialized",
		"provider", cfg.LLMProvider,
		"model", cfg.LLMModel,
		"maxWords", cfg.MaxWords)

	m := metrics.New()
	client := &http.Client{Timeout: cfg.FetchTimeout}
	p := pipeline.New(loader.NewDefaultRegistry(client, log), s, m, log)

	gin.SetMode(gin.ReleaseMode)

	server, err := web.New(web.Options{Addr: cfg.Addr, MaxWords: cfg.MaxWords}, p, m, log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize web server",
			"error", err,
			"addr", cfg.Addr)

		return err
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()
	log.InfoContext(ctx, "Web server is started",
		"addr", cfg.Addr)

	var botInst *bot.Bot
	if cfg.TelegramEnabled() {
		botInst, err = bot.New(bot.Options{
			Token:        cfg.TelegramToken,
			APIKey:       cfg.LLMAPIKey,
			AllowedUsers: cfg.AllowedUsers,
			MaxWords:     cfg.MaxWords,
		}, p, log)
		if err != nil {
			log.ErrorContext(ctx, "Failed to initialize bot",
				"error", err,
				"allowedUsersCount", len(cfg.AllowedUsers))

			return errors.Join(err, shutdown(server, log))
		}

		go botInst.Start(ctx)
		log.InfoContext(ctx, "Bot is started",
			"username", botInst.Username(),
			"allowedUsersCount", len(cfg.AllowedUsers),
			"updateTimeoutSeconds", bot.BotUpdateTimeout)
	}

	select {
	case <-ctx.Done():
		log.InfoContext(ctx, "Shutdown signal is received",
			"error", ctx.Err())
	case err = <-serverErr:
		if err != nil {
			log.ErrorContext(ctx, "Web server failed",
				"error", err,
				"addr", cfg.Addr)
		}
	}
	stop()

	log.InfoContext(ctx, "Exiting...",
		"uptimeSeconds", time.Since(start).Seconds())

	if botInst != nil {
		botInst.Stop()
		log.InfoContext(ctx, "Bot is stopped",
			"uptimeSeconds", time.Since(start).Seconds())
	}

	return errors.Join(err, shutdown(server, log))
}

func shutdown(server *web.Server, log *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.ErrorContext(ctx, "Failed to shut down web server",
			"error", err)

		return err
	}

	log.InfoContext(ctx, "Web server is stopped")

	return nil
}
