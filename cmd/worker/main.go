package main

import (
	"context"
	"flag"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"avatarpipe/internal/app"
	"avatarpipe/internal/config"
	"avatarpipe/internal/pkg/errors"
	"avatarpipe/internal/pkg/shutdown"
	"avatarpipe/internal/repositories"
	"avatarpipe/internal/worker"
	"avatarpipe/internal/worker/processor"
	"avatarpipe/internal/worker/queue"
)

func main() {
	configPath := flag.String("config", "", "Configuration file path")
	flag.Parse()

	cfg, _, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	log := app.NewLogger(cfg, "avatarpipe-worker")
	if cfg.API.DatabaseURL == "" {
		log.LogFatal("missing required configuration", errors.MissingConfig("DATABASE_URL"))
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.LogFatal("failed to create working directories", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	shutdownMgr := shutdown.NewManager(log, 30*time.Second)

	pool, err := pgxpool.New(ctx, cfg.API.DatabaseURL)
	if err != nil {
		log.LogFatal("failed to connect to PostgreSQL", err)
	}
	shutdownMgr.RegisterSimple("postgres", pool.Close)

	rdb := redis.NewClient(&redis.Options{Addr: cfg.API.RedisAddr})
	shutdownMgr.Register("redis", func(ctx context.Context) error {
		return rdb.Close()
	})

	runs := repositories.NewRunRepository(pool)
	if err := runs.Migrate(ctx); err != nil {
		log.LogFatal("failed to migrate runs table", err)
	}

	proc := processor.New(processor.Deps{
		Runs:        runs,
		Pipeline:    app.NewPipeline(cfg, log),
		TempDir:     cfg.Paths.TempDir,
		CleanupTemp: config.BoolEnv("WORKER_CLEANUP_TEMP", true),
		Log:         log,
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		log.Info("worker started", "queue", cfg.API.QueueKey)
		err := worker.Run(ctx, worker.Deps{
			Queue:     queue.NewRedisQueue(rdb, cfg.API.QueueKey),
			Processor: proc,
			Log:       log,
		})
		if err != nil && ctx.Err() == nil {
			log.Error("worker stopped", "error", err.Error())
		}
	}()

	// Registered last so it runs first: stop taking runs before closing
	// the connections the current run is using.
	shutdownMgr.Register("worker", func(sctx context.Context) error {
		cancel()
		select {
		case <-done:
			return nil
		case <-sctx.Done():
			return sctx.Err()
		}
	})

	if err := shutdownMgr.Wait(); err != nil {
		log.Warn("shutdown finished with errors", "error", err.Error())
	}
}
