package main

import (
	"io"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"despesas/internal/amqp"
	"despesas/internal/cli"
	apphttp "despesas/internal/http"
	"despesas/internal/log"
	"despesas/internal/refresh"
	"despesas/internal/remote"
	"despesas/internal/store"
	"despesas/internal/worker"
)

func main() {
	cfg, logger := cli.Bootstrap()

	client, err := remote.New(&http.Client{Timeout: cfg.RemoteTimeout}, cfg.RemoteBaseURL)
	if err != nil {
		logger.Error("Invalid records service URL", log.FieldError, err, "url", cfg.RemoteBaseURL)
		os.Exit(1)
	}

	prefs := cli.InitSQLite(logger, cfg.PrefsDBPath)
	closers := []io.Closer{prefs}

	st := store.New()
	pipeline := refresh.New(client, st, logger)

	srv := apphttp.NewServer(apphttp.Config{
		Addr:               ":" + cfg.Port,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		CacheSize:          cfg.CacheSize,
		CacheTTL:           cfg.CacheTTL,
	}, pipeline, st, prefs, logger)
	srv.ReadTimeout = 30 * time.Second
	srv.WriteTimeout = 60 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, stop := cli.SignalContext()
	defer stop()

	// A failed initial load leaves the store empty and /readyz failing until
	// a later refresh succeeds.
	if err := pipeline.Refresh(ctx); err != nil {
		logger.Warn("Initial refresh failed", log.FieldError, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	logger.Info("Starting dashboard", log.FieldOperation, log.OpStartup,
		"port", cfg.Port, "remote", cfg.RemoteBaseURL)
	cli.Serve(gctx, g, srv, logger, cli.ShutdownTimeout)

	if cfg.RefreshInterval > 0 {
		g.Go(func() error {
			return cli.IgnoreCanceled(pipeline.Every(gctx, cfg.RefreshInterval))
		})
	} else {
		logger.Info("Periodic refresh disabled")
	}

	if cfg.AMQPEnabled() {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Warn("AMQP unavailable, relying on periodic refresh", log.FieldError, err)
		} else {
			closers = append([]io.Closer{amqpClient}, closers...)
			changes := worker.NewChangeWorker(logger)
			g.Go(func() error {
				return cli.IgnoreCanceled(amqpClient.ConsumeChanges(gctx, changes.HandleChangeMessage))
			})
			g.Go(func() error {
				return cli.IgnoreCanceled(pipeline.Changes(gctx, changes.Events()))
			})
		}
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	if err := cli.Wait(g, logger, closers...); err != nil {
		stop()
		logger.Error("Dashboard stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Dashboard stopped gracefully")
}
