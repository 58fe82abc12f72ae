// Package main wires together the authenticated scraping service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/crawlgate/crawlgate/internal/api"
	"github.com/crawlgate/crawlgate/internal/auth"
	"github.com/crawlgate/crawlgate/internal/browser"
	"github.com/crawlgate/crawlgate/internal/clock/system"
	"github.com/crawlgate/crawlgate/internal/config"
	"github.com/crawlgate/crawlgate/internal/crawl"
	"github.com/crawlgate/crawlgate/internal/fetcher/headless"
	"github.com/crawlgate/crawlgate/internal/fetcher/plain"
	"github.com/crawlgate/crawlgate/internal/id/uuid"
	"github.com/crawlgate/crawlgate/internal/logging"
	"github.com/crawlgate/crawlgate/internal/metrics"
	"github.com/crawlgate/crawlgate/internal/platform"
	"github.com/crawlgate/crawlgate/internal/platform/xiaohongshu"
	"github.com/crawlgate/crawlgate/internal/profile"
	"github.com/crawlgate/crawlgate/internal/storage"
	"github.com/crawlgate/crawlgate/internal/storage/postgres"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := system.New()
	sleeper := system.NewSleeper()
	idGen := uuid.New()

	profiles, err := profile.NewStore(cfg.Browser.ProfilesDir, logger.Named("profiles"))
	if err != nil {
		logger.Fatal("profile store init failed", zap.Error(err))
	}
	resolver := browser.NewResolver(
		cfg.Browser.ConfigFile,
		logger.Named("browser"),
		browser.WithExecOverride(cfg.Browser.ExecPath),
		browser.WithFallbackPath(cfg.Browser.FallbackPath),
	)

	engine, err := headless.New(headless.Config{
		MaxParallel:    cfg.Engine.MaxParallel,
		DefaultTimeout: cfg.NavTimeout(),
	}, logger.Named("engine"))
	if err != nil {
		logger.Fatal("browser engine init failed", zap.Error(err))
	}

	browserOpts := auth.Options{
		UserAgent: cfg.Engine.UserAgent,
		Viewport: crawl.Viewport{
			Width:  cfg.Engine.ViewportWidth,
			Height: cfg.Engine.ViewportHeight,
		},
		NavTimeout:     cfg.NavTimeout(),
		ExtensionPath:  cfg.Browser.ExtensionPath,
		AllowNoBrowser: cfg.Browser.AllowNoBrowser,
	}
	analyzer := auth.NewAnalyzer()
	sessions := auth.NewSessionRegistry()
	orchestrator := auth.NewOrchestrator(
		engine,
		profiles,
		resolver,
		sessions,
		analyzer,
		clock,
		sleeper,
		logger.Named("setup"),
		browserOpts,
	)
	authSvc := auth.NewService(engine, profiles, resolver, analyzer, logger.Named("auth"), browserOpts).
		WithPlainEngine(plain.New(plain.Config{
			UserAgent: cfg.Engine.UserAgent,
			Timeout:   cfg.NavTimeout(),
		}, logger.Named("plain")))

	platforms := platform.NewRegistry()
	xhs := xiaohongshu.New(authSvc, logger.Named("xiaohongshu"), xiaohongshu.Options{
		MinHTMLLength: cfg.Extract.MinHTMLLength,
		TokenTTL:      cfg.TokenTTL(),
		Clock:         clock,
	})
	if err := platforms.Register(xhs); err != nil {
		logger.Fatal("platform registration failed", zap.Error(err))
	}

	var saver storage.ContentSaver = storage.Noop{}
	if cfg.DB.DSN != "" {
		store, err := postgres.NewContentStore(ctx, postgres.ContentStoreConfig{
			DSN:      cfg.DB.DSN,
			Table:    cfg.DB.Table,
			MaxConns: cfg.DB.MaxConns,
		})
		if err != nil {
			logger.Fatal("content store init failed", zap.Error(err))
		}
		defer store.Close()
		saver = store
	}

	apiServer := api.NewServer(
		cfg,
		logger.Named("api"),
		orchestrator,
		authSvc,
		sessions,
		profiles,
		platforms,
		saver,
		idGen,
		clock,
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
}
