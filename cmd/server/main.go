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

	"github.com/joho/godotenv"

	"ddm-news-harvester/internal/api"
	"ddm-news-harvester/internal/config"
	"ddm-news-harvester/internal/crawl"
	"ddm-news-harvester/internal/extract"
	"ddm-news-harvester/internal/fetch"
	"ddm-news-harvester/internal/schedule"
	"ddm-news-harvester/internal/store"
	"ddm-news-harvester/pkg/logger"
)

func main() {
	godotenv.Load()
	log := logger.New()
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	loc, err := time.LoadLocation(cfg.Schedule.Timezone)
	if err != nil {
		log.Error("invalid timezone", "tz", cfg.Schedule.Timezone, "err", err)
		os.Exit(1)
	}

	publisher, err := store.New(cfg.Storage.DataDir, log)
	if err != nil {
		log.Error("failed to initialize storage", "err", err)
		os.Exit(1)
	}

	client := fetch.NewClient(cfg.Fetch.Timeout, cfg.Fetch.DialTimeout, cfg.Fetch.SizeCap, cfg.Fetch.RequestsPerSecond, cfg.Fetch.UserAgent)
	crawler := crawl.New(client, extract.New(log), log, crawl.Config{
		EntryURL:   cfg.Source.EntryURL,
		MaxPages:   cfg.Source.MaxPages,
		BatchSize:  cfg.Source.BatchSize,
		TopicCount: cfg.Source.TopicCount,
	})
	runner := crawl.NewRunner(crawler, publisher, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	trigger := schedule.NewTrigger(cfg.Schedule.Hour, cfg.Schedule.Minute, loc, schedule.SystemClock(), runner.RunOnce, log)
	go func() {
		if err := trigger.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("scheduler stopped", "err", err)
		}
	}()

	addr := cfg.Server.Host + ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      api.NewRouter(publisher, runner, log),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("server listening", "addr", addr, "entry_url", cfg.Source.EntryURL)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Info("bye")
}
