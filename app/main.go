package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rishabhpatre/ai-news-agent/app/adapter"
	"github.com/rishabhpatre/ai-news-agent/app/api"
	"github.com/rishabhpatre/ai-news-agent/app/cfg"
	"github.com/rishabhpatre/ai-news-agent/app/collect"
	"github.com/rishabhpatre/ai-news-agent/app/database"
	"github.com/rishabhpatre/ai-news-agent/app/metrics"
	"github.com/rishabhpatre/ai-news-agent/app/pipeline"
	"github.com/rishabhpatre/ai-news-agent/app/publish"
	"github.com/rishabhpatre/ai-news-agent/app/source"
	"github.com/rishabhpatre/ai-news-agent/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		return
	}

	setupLogging(appCfg.Debug)

	slog.Info("Starting AI News Digest", "version", appCfg.Version, "timezone", appCfg.Timezone)

	configCache := source.NewConfigCache(appCfg.SourcesDir)
	if err := configCache.Run(); err != nil {
		fatal("Failed to load source configurations", err)
	}
	sources := configCache.GetEnabledConfigs()
	slog.Info("Source configurations loaded", "count", configCache.GetConfigCount(), "enabled", len(sources))

	policy, err := source.LoadPolicy(appCfg.PolicyFile)
	if err != nil {
		fatal("Failed to load policy", err)
	}
	slog.Debug("Policy loaded", "policy", policy.String())

	collector := metrics.NewCollector()

	registry := adapter.NewDefaultRegistry(adapter.Deps{
		HTTPClient: &http.Client{Timeout: collect.DefaultTimeout},
		UserAgent:  appCfg.UserAgent,
		Getenv:     os.Getenv,
	})

	p, err := pipeline.New(sources, policy, pipeline.Options{
		Registry: registry,
		Retry:    collect.RetryPolicy{Attempts: appCfg.FetchRetries, BaseDelay: appCfg.FetchRetryDelay},
		Metrics:  collector,
	})
	if err != nil {
		fatal("Invalid configuration", err)
	}

	var db *database.DB
	if appCfg.DBPath != "" {
		db, err = database.NewDB(appCfg.DBPath)
		if err != nil {
			fatal("Failed to open archive", err)
		}
		defer db.Close()

		version, dirty, err := database.RunMigrations(db)
		if err != nil {
			fatal("Failed to run migrations", err)
		}
		slog.Info("Archive ready", "path", appCfg.DBPath, "schema_version", version, "dirty", dirty)
	}

	if appCfg.Once {
		if err := runOnce(p, db); err != nil {
			fatal("Digest run failed", err)
		}
		return
	}

	if db == nil {
		fatal("Serve mode needs an archive", errors.New("--db-path is empty"))
	}

	serve(appCfg, p, database.NewDigestRepository(db), collector)
}

func setupLogging(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}

// runOnce prints the digest as JSON on stdout. Source failures are part of
// the digest and do not fail the run.
func runOnce(p *pipeline.Pipeline, db *database.DB) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	digest, err := p.Run(ctx)
	if err != nil {
		return err
	}

	if db != nil {
		if err := database.NewDigestRepository(db).SaveDigest(ctx, digest); err != nil {
			slog.Warn("Failed to archive digest", "digest", digest.ID, "error", err)
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(digest)
}

func serve(appCfg *cfg.Cfg, p *pipeline.Pipeline, store *database.DigestRepository, collector *metrics.Collector) {
	var publisher tasks.Publisher
	if appCfg.RedisAddr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		pub, err := publish.NewPublisher(ctx, publish.Options{
			Addr:     appCfg.RedisAddr,
			Password: appCfg.RedisPassword,
			DB:       appCfg.RedisDB,
			Prefix:   appCfg.RedisPrefix,
			TTL:      appCfg.RedisTTL,
		})
		cancel()
		if err != nil {
			fatal("Failed to set up publishing", err)
		}
		defer pub.Close()
		publisher = pub
	} else {
		slog.Info("Publishing disabled (REDIS_ADDR not set)")
	}

	scheduler, err := tasks.NewScheduler(tasks.SchedulerConfig{
		Schedule:    appCfg.Schedule,
		Location:    appCfg.Location(),
		RunOnStart:  appCfg.RunOnStart,
		WorkerCount: appCfg.WorkerCount,
	}, p, store, publisher, collector)
	if err != nil {
		fatal("Failed to create scheduler", err)
	}

	slog.Info("Starting background scheduler", "workers", appCfg.WorkerCount, "schedule", appCfg.Schedule)
	scheduler.Start()
	defer scheduler.Stop()

	handler := api.NewHandler(store, scheduler, collector, len(p.Sources()), appCfg.Version)
	server := api.NewServer(handler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down server gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}
}
