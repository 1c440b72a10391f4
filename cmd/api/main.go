package main

import (
	"context"
	"flag"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"avatarpipe/internal/app"
	"avatarpipe/internal/config"
	"avatarpipe/internal/httpapi"
	"avatarpipe/internal/httpapi/handlers"
	"avatarpipe/internal/pkg/errors"
	"avatarpipe/internal/pkg/shutdown"
	"avatarpipe/internal/repositories"
	"avatarpipe/internal/storage"
	"avatarpipe/internal/worker/queue"
)

func main() {
	configPath := flag.String("config", "", "Configuration file path")
	flag.Parse()

	cfg, _, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	log := app.NewLogger(cfg, "avatarpipe-api")
	log.Info("starting avatarpipe API", "config", cfg.Path())

	if cfg.API.DatabaseURL == "" {
		log.LogFatal("missing required configuration", errors.MissingConfig("DATABASE_URL"))
	}

	ctx := context.Background()
	shutdownMgr := shutdown.NewManager(log, 30*time.Second)

	// PostgreSQL
	log.Info("connecting to PostgreSQL")
	pool, err := pgxpool.New(ctx, cfg.API.DatabaseURL)
	if err != nil {
		log.LogFatal("failed to connect to PostgreSQL", err)
	}
	shutdownMgr.RegisterSimple("postgres", pool.Close)

	if err := pool.Ping(ctx); err != nil {
		log.LogFatal("failed to ping PostgreSQL", err)
	}
	runs := repositories.NewRunRepository(pool)
	if err := runs.Migrate(ctx); err != nil {
		log.LogFatal("failed to migrate runs table", err)
	}
	log.Info("PostgreSQL connected")

	// Redis
	log.Info("connecting to Redis", "addr", cfg.API.RedisAddr)
	rdb := redis.NewClient(&redis.Options{Addr: cfg.API.RedisAddr})
	shutdownMgr.Register("redis", func(ctx context.Context) error {
		return rdb.Close()
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.LogFatal("failed to ping Redis", err)
	}
	log.Info("Redis connected")

	// Storage is optional for the API; it only feeds the deep health check.
	sp, err := storage.NewProvider(ctx, cfg)
	if err != nil {
		log.Warn("storage provider unavailable", "error", err.Error())
	} else {
		log.Info("storage provider initialized", "provider", sp.Provider())
	}

	router := httpapi.NewRouter(httpapi.Deps{
		Runs:  runs,
		Queue: queue.NewRedisQueue(rdb, cfg.API.QueueKey),
		SP:    sp,
		Checks: []handlers.Check{
			{Name: "postgres", Ping: pool.Ping},
			{Name: "redis", Ping: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
		},
		CORSOrigins: cfg.API.CORSOrigins,
		Log:         log,
	})

	server := &http.Server{
		Addr:         cfg.API.Bind,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	shutdownMgr.Register("http-server", func(ctx context.Context) error {
		log.Info("shutting down HTTP server")
		return server.Shutdown(ctx)
	})

	go func() {
		log.Info("HTTP server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.LogFatal("HTTP server failed", err)
		}
	}()

	if err := shutdownMgr.Wait(); err != nil {
		log.Warn("shutdown finished with errors", "error", err.Error())
	}
}
