package main

import (
	"context"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"example.com/eventsync/internal/config"
	"example.com/eventsync/internal/logging"
	"example.com/eventsync/internal/metrics"
	"example.com/eventsync/internal/pipeline"
	"example.com/eventsync/internal/scheduler"
	spg "example.com/eventsync/internal/storage/postgres"
	"example.com/eventsync/internal/upstream"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logging.Init(logging.Config{})
		fallback.Fatal().Err(err).Msg("invalid configuration")
	}
	log := logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := spg.Connect(ctx, cfg.Store.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("connect to store")
	}
	defer db.Close()

	if err := db.RunMigration(ctx, filepath.Join("migrations", "0001_init.sql")); err != nil {
		log.Fatal().Err(err).Msg("run migration")
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	if cfg.Metrics.Addr != "" {
		srv := &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           metrics.Handler(reg),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Info().Str("addr", cfg.Metrics.Addr).Msg("metrics server listening")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("metrics server failed")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	client := upstream.NewClient(upstream.Config{
		BaseURL:   cfg.Upstream.BaseURL,
		APIKey:    cfg.Upstream.APIKey,
		PageSize:  cfg.Upstream.PageSize,
		MaxPages:  cfg.Upstream.MaxPages,
		Timeout:   cfg.Upstream.Timeout,
		PageDelay: cfg.Upstream.PageDelay,
	}, log)

	p := pipeline.New(pipeline.Config{
		BusinessID:      cfg.Attribution.BusinessID,
		PreferredUserID: cfg.Attribution.UserID,
		BatchSize:       cfg.Sync.BatchSize,
		Country:         cfg.Market.Country,
		City:            cfg.Market.City,
	}, client, spg.NewStore(db), m, log)

	ticker := time.NewTicker(cfg.Sync.Interval)
	defer ticker.Stop()

	log.Info().Dur("interval", cfg.Sync.Interval).Bool("run_on_start", cfg.Sync.RunOnStart).Msg("eventsync starting")
	sched := scheduler.New(p, ticker.C, cfg.Sync.RunOnStart, m, log)
	sched.Run(ctx)
	log.Info().Msg("eventsync stopped")
}
