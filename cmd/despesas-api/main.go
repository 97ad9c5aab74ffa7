package main

import (
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"despesas/internal/amqp"
	"despesas/internal/api"
	"despesas/internal/cli"
	"despesas/internal/log"
	"despesas/internal/services"
)

func main() {
	cfg, logger := cli.Bootstrap()

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)

	// Change events are optional; without a broker dashboards fall back to
	// their periodic refresh.
	var publisher services.Publisher
	if cfg.AMQPEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Warn("AMQP unavailable, change events disabled", log.FieldError, err)
		} else {
			publisher = client
		}
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	svc := services.NewExpenseService(repo, publisher, logger)

	srv := api.NewServer(":"+cfg.APIPort, svc, repo.Ping, cfg.RateLimitPerMinute, logger)
	srv.ReadTimeout = 30 * time.Second
	srv.WriteTimeout = 60 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, stop := cli.SignalContext()
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	logger.Info("Starting records service", log.FieldOperation, log.OpStartup,
		"port", cfg.APIPort, "db", cfg.SQLiteDBPath)
	cli.Serve(gctx, g, srv, logger, cli.ShutdownTimeout)

	if err := cli.Wait(g, logger, svc); err != nil {
		stop()
		logger.Error("Records service stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Records service stopped gracefully")
}
