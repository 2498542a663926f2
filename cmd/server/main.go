package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iammatthias/mysky.wtf/internal/auth"
	"github.com/iammatthias/mysky.wtf/internal/config"
	"github.com/iammatthias/mysky.wtf/internal/constellation"
	"github.com/iammatthias/mysky.wtf/internal/domain"
	"github.com/iammatthias/mysky.wtf/internal/firehose"
	"github.com/iammatthias/mysky.wtf/internal/httpserver"
	"github.com/iammatthias/mysky.wtf/internal/identity"
	"github.com/iammatthias/mysky.wtf/internal/pds"
	"github.com/iammatthias/mysky.wtf/internal/sqlite"
	"github.com/iammatthias/mysky.wtf/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.TraceEndpoint, "mysky")
	if err != nil {
		return fmt.Errorf("set up tracing: %w", err)
	}
	defer shutdownTracing(context.Background())

	// Sessions, the local backlink index and the firehose cursor share one database.
	repo, err := sqlite.NewRepository(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("create repository: %w", err)
	}
	defer repo.Close()
	logger.Info("opened database", "path", cfg.DatabasePath)

	resolver := identity.NewResolver(cfg.PLCDirectory, logger)
	reader := pds.NewReader(resolver, logger)

	var links domain.BacklinkIndex
	switch cfg.Backlinks {
	case config.BacklinksLocal:
		links = repo
	default:
		links = constellation.NewClient(cfg.ConstellationURL, logger)
	}

	service := domain.NewService(reader, links, logger, domain.WithSiteURL(cfg.SiteURL))

	sessions := auth.NewManager(repo, []byte(cfg.SessionSecret), cfg.SessionTTL, func() (auth.Authenticator, error) {
		return auth.NewXRPCAuthenticator(cfg.Entryway, resolver, logger)
	}, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if cfg.Backlinks == config.BacklinksLocal {
		subscriber := firehose.NewSubscriber(cfg.FirehoseURL, repo, logger)
		go func() {
			if err := subscriber.Start(ctx); err != nil && ctx.Err() == nil {
				logger.Error("firehose subscriber exited with error", "error", err)
			}
		}()
	}

	go startSessionCleanup(ctx, repo, cfg.SessionTTL, logger)

	server := httpserver.NewServer(cfg, service, sessions, logger)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server exited with error", "error", err)
		}
	}()

	logger.Info("server started", "port", cfg.Port, "backlinks", cfg.Backlinks)

	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("error shutting down http server", "error", err)
	}

	return nil
}

// startSessionCleanup drops sessions older than their token lifetime once an hour.
func startSessionCleanup(ctx context.Context, repo *sqlite.Repository, maxAge time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := repo.DeleteOldSessions(ctx, maxAge)
			if err != nil {
				logger.Error("session cleanup failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("expired sessions removed", "count", n)
			}
		}
	}
}
