package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/sastik/logserver/internal/aggregate"
	"github.com/sastik/logserver/internal/broadcast"
	"github.com/sastik/logserver/internal/coldstore"
	"github.com/sastik/logserver/internal/config"
	"github.com/sastik/logserver/internal/frame"
	"github.com/sastik/logserver/internal/hotstore"
	"github.com/sastik/logserver/internal/httpapi"
	"github.com/sastik/logserver/internal/ingestpipeline"
	"github.com/sastik/logserver/internal/logging"
	"github.com/sastik/logserver/internal/position"
	"github.com/sastik/logserver/internal/query"
	"github.com/sastik/logserver/internal/tailer"
	"github.com/sastik/logserver/internal/version"
)

var (
	ver      = flag.Bool("version", false, "print version information and exit")
	addr     = flag.String("addr", ":8080", "HTTP listen address")
	logLevel = flag.String("loglevel", "", "override LOG_LEVEL for this run")
)

func main() {
	flag.Parse()
	if *ver {
		version.PrintVersion(os.Stdout)
		return
	}

	cfg := config.Load()
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	log := logging.New(os.Stderr, "logserver")
	if err := log.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn("invalid LOG_LEVEL, defaulting to INFO", logging.KVErr(err))
	}
	defer log.Close()

	if err := run(cfg, log); err != nil {
		log.Fatal("fatal startup error", logging.KVErr(err))
	}
}

func run(cfg *config.Config, log *logging.Logger) error {
	cold, err := coldstore.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("opening cold store: %w", err)
	}
	defer cold.Close()

	hot := hotstore.New(cfg.LogFileRetention, 0)

	posStore := position.New(cold, log)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := posStore.Load(ctx); err != nil {
		log.Warn("failed to restore position snapshot, starting from a full replay", logging.KVErr(err))
	}

	bcast := broadcast.New(log)

	pipeline, err := ingestpipeline.New(ingestpipeline.Config{
		BatchSize:     cfg.LogBatchSize,
		FlushInterval: time.Second,
	}, hot, cold, bcast.Publish, log)
	if err != nil {
		return fmt.Errorf("constructing ingest pipeline: %w", err)
	}

	tl := tailer.New(tailer.Config{
		Root:       cfg.LogBasePath,
		MaxWorkers: cfg.MaxWorkers,
	}, frame.New(), posStore, pipeline.Ingest, log)

	queryRouter := query.New(hot, cold, cfg.LogFileRetention, cfg.HotQueryDefaultAll, log)
	agg := aggregate.New(hot, cold)

	hotCutoff := func() time.Time { return time.Now().Add(-cfg.LogFileRetention) }
	health := map[string]httpapi.HealthChecker{
		"database":     func(ctx context.Context) bool { return cold.Ping(ctx) == nil },
		"cache":        func(ctx context.Context) bool { return hot.Available() },
		"file_watcher": func(ctx context.Context) bool { return true },
	}

	server := httpapi.New(httpapi.Config{CORSOrigins: cfg.CORSOrigins}, queryRouter, agg, cold, hot, bcast, health, hotCutoff, log)
	httpSrv := &http.Server{Addr: *addr, Handler: server}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		tl.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		pipeline.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		posStore.Run(ctx, 5*time.Second)
	}()

	stopHeartbeat := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		bcast.Run(stopHeartbeat)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		runRetentionSweeper(ctx, cold, cfg.RetentionHorizon, log)
	}()

	serverErr := make(chan error, 1)
	go func() {
		log.Info("http server listening", logging.KV("addr", *addr))
		serverErr <- httpSrv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)

	select {
	case <-sigCh:
		log.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			log.Error("http server exited unexpectedly", logging.KVErr(err))
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = httpSrv.Shutdown(shutdownCtx)

	close(stopHeartbeat)
	cancel()
	wg.Wait()
	return nil
}

func runRetentionSweeper(ctx context.Context, cold *coldstore.Store, horizon time.Duration, log *logging.Logger) {
	if horizon <= 0 {
		horizon = 90 * 24 * time.Hour
	}
	tck := time.NewTicker(24 * time.Hour)
	defer tck.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tck.C:
			cutoff := time.Now().Add(-horizon)
			n, err := cold.DeleteOlderThan(ctx, cutoff)
			if err != nil {
				log.Error("retention sweep failed", logging.KVErr(err))
				continue
			}
			log.Info("retention sweep complete", logging.KV("deleted", n))
		}
	}
}
