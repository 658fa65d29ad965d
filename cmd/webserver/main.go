// Command webserver runs the single-host HTTP/1.1 server described by
// original_source's WebServer class: parse flags, open the database
// pool and preload the user cache, start the async log sink, and hand
// off to the reactor event loop until a shutdown signal drains every
// connection.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/urfave/cli"

	"github.com/yourusername/webserver/internal/applog"
	"github.com/yourusername/webserver/internal/config"
	"github.com/yourusername/webserver/internal/dbpool"
	"github.com/yourusername/webserver/internal/httpstate"
	"github.com/yourusername/webserver/internal/metrics"
	"github.com/yourusername/webserver/internal/reactor"
	"github.com/yourusername/webserver/internal/userstore"
)

func main() {
	app := cli.NewApp()
	app.Name = "webserver"
	app.Usage = "single-host HTTP/1.1 static + CGI-login server"
	app.Flags = config.Flags()
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "webserver:", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg, err := config.FromContext(c)
	if err != nil {
		return err
	}

	logger, err := applog.Init(cfg.LogOptions())
	if err != nil {
		return fmt.Errorf("init log: %w", err)
	}
	defer logger.Close()

	ctx := context.Background()

	pool, err := dbpool.Open(ctx, cfg.DBConfig())
	if err != nil {
		return fmt.Errorf("open database pool: %w", err)
	}
	defer pool.Close()

	users, err := userstore.Load(ctx, pool)
	if err != nil {
		return fmt.Errorf("load user cache: %w", err)
	}

	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, logger)
	}

	rcfg := reactor.Config{
		ListenAddr:  cfg.ListenAddr(),
		DocRoot:     cfg.DocRoot,
		Mode:        connTrigMode(cfg),
		Concurrency: cfg.Concurrency(),
		WorkerCount: cfg.ThreadCount,
		Linger:      cfg.OptLinger,
	}
	r := reactor.New(rcfg, users, logger)

	logger.Infof("webserver: listening on %s (doc root %s)", cfg.ListenAddr(), cfg.DocRoot)
	// Shutdown itself is driven by the reactor's own self-pipe, which
	// listens for SIGINT/SIGTERM directly; ctx here only supports a
	// caller (tests, or an embedder) cancelling programmatically.
	return r.Run(ctx)
}

// serveMetrics runs a plain net/http server exposing Prometheus text
// exposition on its own listener, deliberately outside the reactor:
// the reactor's own sockets speak nothing but the CGI-routed HTTP/1.1
// dialect httpstate implements, so metrics scraping gets an ordinary
// net/http.Server instead of a ninth CGI code.
func serveMetrics(addr string, logger *applog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Errorf("metrics: listen %s: %v", addr, err)
	}
}

// connTrigMode selects the per-connection half of -m's two trigger
// bits. The reactor registers every fd it owns, listener included,
// through one Poller instance, so only one edge/level setting can
// actually apply at a time; connections are the common case worth
// tuning independently, so that's the bit threaded through.
func connTrigMode(cfg config.Config) httpstate.Mode {
	return cfg.ConnMode()
}
