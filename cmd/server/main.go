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

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/me/drill/internal/config"
	"github.com/me/drill/internal/logging"
	"github.com/me/drill/internal/practice"
	"github.com/me/drill/internal/records"
	"github.com/me/drill/internal/runner"
	"github.com/me/drill/internal/server"
	"github.com/me/drill/internal/store"
	"github.com/me/drill/internal/sweeper"
)

func main() {
	flags := pflag.NewFlagSet("drill-server", pflag.ExitOnError)
	configFile := flags.String("config", "", "YAML config file")
	debug := flags.Bool("debug", false, "Shorthand for --log-level=debug")
	flags.String("addr", ":8080", "Listen address")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.String("log-format", "text", "Log format (text, json)")
	flags.String("data-dir", "", "Data directory (default ~/.drill)")
	flags.String("records", "", "Record file or directory")
	flags.String("store", "", "Progress store backend: sqlite, postgres, redis, file")
	flags.String("dsn", "", "Progress store DSN (path, connection string or address)")
	flags.String("python", "", "Python interpreter used to check answers")
	flags.Parse(os.Args[1:])

	cfg, err := config.Load(*configFile, flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *debug {
		cfg.LogLevel = "debug"
	}

	logger := logging.NewLogger(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)

	if err := run(cfg, logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	recs, err := records.LoadPath(cfg.Records)
	if err != nil {
		return fmt.Errorf("load records: %w", err)
	}
	set, err := records.NewSet(recs)
	if err != nil {
		return err
	}
	logger.Info("records loaded", "path", cfg.Records, "count", set.Len(), "categories", len(set.Categories()))

	dsn, err := cfg.StoreDSN()
	if err != nil {
		return err
	}
	ps, err := store.Open(ctx, cfg.Store.Backend, dsn, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer ps.Close()
	logger.Info("store ready", "backend", cfg.Store.Backend)

	reg := runner.NewDefaultRegistry(cfg.PythonBin, "", cfg.CheckTimeout, logger)
	svc := practice.New(set, ps, reg, logger, practice.WithSessionTTL(cfg.SessionTTL))

	var serverOpts []server.Option
	keys, err := server.LoadKeyConfig(cfg.APIKeysFile)
	if err != nil {
		return fmt.Errorf("load API keys: %w", err)
	}
	if keys.IsEnabled() {
		serverOpts = append(serverOpts, server.WithKeyConfig(keys))
		logger.Info("API key authentication enabled", "keys", len(keys.Keys))
	}

	srv := server.New(cfg, svc, logger, serverOpts...)
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	if ss, err := store.Sessions(ps); err == nil {
		sweep := sweeper.NewLoop(ss, sweeper.Config{Interval: cfg.SweepInterval}, logger)
		g.Go(func() error {
			if err := sweep.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	} else {
		logger.Warn("store keeps no sessions; web UI and session API are disabled", "backend", cfg.Store.Backend)
	}

	g.Go(func() error {
		logger.Info("server starting", "addr", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}
