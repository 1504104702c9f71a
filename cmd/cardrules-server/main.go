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

	"github.com/sirupsen/logrus"

	"github.com/peterkuimelis/cardrules/internal/config"
	"github.com/peterkuimelis/cardrules/internal/game"
	"github.com/peterkuimelis/cardrules/internal/notify"
	"github.com/peterkuimelis/cardrules/internal/storage"
	"github.com/peterkuimelis/cardrules/internal/table"
	"github.com/peterkuimelis/cardrules/internal/web"
)

func main() {
	envFile := flag.String("env", ".env", "path to an optional .env file")
	addr := flag.String("addr", "", "listen address (overrides "+config.EnvAddr+")")
	cleanupEvery := flag.Duration("cleanup", time.Minute, "how often finished games are dropped from memory")
	maxIdle := flag.Duration("max-idle", 30*time.Minute, "how long a finished game stays in memory")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	cfg.ConfigureLogging()

	if err := run(cfg, *cleanupEvery, *maxIdle); err != nil {
		logrus.WithError(err).Fatal("server stopped")
	}
}

func run(cfg config.Config, cleanupEvery, maxIdle time.Duration) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	logger := logrus.StandardLogger()

	store, err := storage.New(cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	hub := web.NewHub(logger)
	pubs := notify.Multi{hub, notify.NewLogPublisher(logger)}
	if cfg.RedisURL != "" {
		rp, err := notify.NewRedisPublisher(cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rp.Close()
		if err := rp.Ping(ctx); err != nil {
			logger.WithError(err).Warn("redis unreachable at startup")
		}
		pubs = append(pubs, rp)
	}

	mgr := table.NewManager(game.BuiltinRegistry(), table.Options{
		Store:           store,
		Publisher:       pubs,
		DecisionTimeout: cfg.DecisionTimeout,
		Logger:          logger,
	})
	defer mgr.Close()

	if cfg.RuleSetDir != "" {
		ids, err := web.LoadRuleSets(ctx, cfg.RuleSetDir, mgr, store, logger)
		if err != nil {
			return err
		}
		logger.WithField("count", len(ids)).Info("rule sets loaded")
	}
	n, err := mgr.Restore(ctx)
	if err != nil {
		return err
	}
	logger.WithField("count", n).Info("games restored")
	go mgr.CleanupLoop(ctx, cleanupEvery, maxIdle)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           web.NewServer(mgr, hub, store, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logger.WithField("addr", cfg.Addr).Info("cardrules listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
