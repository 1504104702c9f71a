package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"github.com/peterkuimelis/cardrules/internal/game"
	cardmcp "github.com/peterkuimelis/cardrules/internal/mcp"
	"github.com/peterkuimelis/cardrules/internal/notify"
	"github.com/peterkuimelis/cardrules/internal/storage"
	"github.com/peterkuimelis/cardrules/internal/table"
	"github.com/peterkuimelis/cardrules/internal/web"
)

func main() {
	port := flag.String("port", "9999", "HTTP port humans join games on (empty to disable)")
	dbPath := flag.String("db", "", "SQLite file to keep games in (default: in memory)")
	timeout := flag.Duration("decision-timeout", 0, "answer pending decisions with the default after this long (0 disables)")
	rulesDir := flag.String("rules", "", "directory of extra rule-set files")
	flag.Parse()

	// stdout carries the MCP protocol.
	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	if err := run(logger, *port, *dbPath, *timeout, *rulesDir); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(logger *logrus.Logger, port, dbPath string, timeout time.Duration, rulesDir string) error {
	ctx := context.Background()
	if dbPath == "" {
		dbPath = ":memory:"
	}
	store, err := storage.New(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	joinURL := ""
	if port != "" {
		joinURL = "ws://localhost:" + port
	}
	sess := cardmcp.NewSession(joinURL)
	hub := web.NewHub(logger)
	mgr := table.NewManager(game.BuiltinRegistry(), table.Options{
		Store:           store,
		Publisher:       notify.Multi{sess, hub, notify.NewLogPublisher(logger)},
		DecisionTimeout: timeout,
		Logger:          logger,
	})
	defer mgr.Close()
	sess.Attach(mgr)

	if rulesDir != "" {
		if _, err := web.LoadRuleSets(ctx, rulesDir, mgr, store, logger); err != nil {
			return err
		}
	}
	if _, err := mgr.Restore(ctx); err != nil {
		return err
	}

	if port != "" {
		srv := &http.Server{
			Addr:              ":" + port,
			Handler:           web.NewServer(mgr, hub, store, logger).Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.WithError(err).Error("join server stopped")
			}
		}()
		defer srv.Close()
	}

	s := server.NewMCPServer("cardrules", "1.0.0")
	cardmcp.RegisterTools(s, sess)
	return server.ServeStdio(s)
}
