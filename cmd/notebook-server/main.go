// Package main is the entry point for the notebook API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/prn-tf/notebook-server/internal/auth"
	"github.com/prn-tf/notebook-server/internal/config"
	"github.com/prn-tf/notebook-server/internal/handler"
	"github.com/prn-tf/notebook-server/internal/logging"
	"github.com/prn-tf/notebook-server/internal/metrics"
	"github.com/prn-tf/notebook-server/internal/migration"
	"github.com/prn-tf/notebook-server/internal/ownership"
	"github.com/prn-tf/notebook-server/internal/service"
	"github.com/prn-tf/notebook-server/internal/storage"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to the configuration file")
	showVersion := pflag.BoolP("version", "v", false, "print version information and exit")
	pflag.Parse()

	if *showVersion {
		fmt.Printf("Notebook Server\nVersion: %s\nBuild Time: %s\nGit Commit: %s\n", Version, BuildTime, GitCommit)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, logCloser, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	defer logCloser.Close()
	log.Logger = logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error().Err(err).Msg("server stopped with error")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	logger.Info().
		Str("version", Version).
		Str("build_time", BuildTime).
		Str("git_commit", GitCommit).
		Str("environment", cfg.App.Environment).
		Msg("starting notebook server")

	secret, err := auth.ResolveSigningSecret(cfg.Auth.JWTSecret, cfg.App.IsProduction(), logger)
	if err != nil {
		return err
	}
	tokens, err := auth.NewTokenService(auth.TokenConfig{Secret: secret, TTL: cfg.Auth.TokenTTL()})
	if err != nil {
		return err
	}

	visibility, err := ownership.ParseVisibility(cfg.Auth.UnownedVisibility)
	if err != nil {
		return err
	}

	backend, err := storage.Open(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer closeWithLog(logger, "database", backend)

	coord, err := storage.OpenCoordination(ctx, cfg.Redis, logger)
	if err != nil {
		return err
	}
	defer closeWithLog(logger, "coordination", coord)

	hasher := auth.NewBcryptHasher(cfg.Auth.BcryptCost)
	repos := backend.Repositories()

	if cfg.Database.AutoMigrate {
		schema, err := backend.Schema()
		if err != nil {
			return err
		}
		migrator := migration.NewOwnershipMigrator(schema, repos, hasher, coord.Locker, cfg.Bootstrap, logger,
			migration.WithCache(coord.Cache))
		if _, err := migrator.Up(ctx); err != nil {
			return fmt.Errorf("ownership migration failed: %w", err)
		}
	}

	authConfig := auth.Config{
		LegacyPassword:     cfg.Auth.LegacyPassword,
		RequireCredentials: cfg.Auth.RequireCredentials,
		SkipPaths:          auth.DefaultSkipPaths,
	}

	var (
		collector handler.MetricsCollector
		observer  auth.Observer
		recorder  service.Recorder
	)
	if cfg.Metrics.Enabled {
		m := metrics.NewMetrics()
		collector, observer, recorder = m, m, m
		if cfg.Metrics.Path != "" && cfg.Metrics.Path != "/metrics" {
			authConfig.SkipPaths = append(append([]string{}, auth.DefaultSkipPaths...), cfg.Metrics.Path)
		}
	}

	services := service.New(service.Dependencies{
		Repositories: repos,
		Hasher:       hasher,
		Tokens:       tokens,
		Auth:         authConfig,
		Visibility:   visibility,
		Cache:        coord.Cache,
		Recorder:     recorder,
		Logger:       logger,
	})

	router := handler.NewRouter(handler.RouterConfig{
		Services:      services,
		Authenticator: auth.NewAuthenticator(tokens, repos.User, authConfig, observer, logger),
		Health:        backend,
		Metrics:       collector,
		MetricsPath:   cfg.Metrics.Path,
		MaxBodySize:   cfg.Server.MaxBodySize,
		Logger:        logger,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", srv.Addr).
			Str("driver", backend.Driver()).
			Str("unowned_visibility", string(visibility)).
			Bool("legacy_password", authConfig.LegacyPassword != "").
			Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	logger.Info().Dur("timeout", cfg.Server.ShutdownTimeout).Msg("server stopped")
	return nil
}

func closeWithLog(logger zerolog.Logger, name string, c io.Closer) {
	if err := c.Close(); err != nil {
		logger.Warn().Err(err).Str("resource", name).Msg("close failed")
	}
}
