package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/queueme/scheduling-core/internal/availability"
	"github.com/queueme/scheduling-core/internal/buffer"
	"github.com/queueme/scheduling-core/internal/cache"
	"github.com/queueme/scheduling-core/internal/cache/rediscache"
	"github.com/queueme/scheduling-core/internal/config"
	"github.com/queueme/scheduling-core/internal/conflict"
	"github.com/queueme/scheduling-core/internal/httpapi"
	"github.com/queueme/scheduling-core/internal/notify"
	"github.com/queueme/scheduling-core/internal/notify/natsnotify"
	"github.com/queueme/scheduling-core/internal/orchestrator"
	"github.com/queueme/scheduling-core/internal/prediction"
	"github.com/queueme/scheduling-core/internal/prediction/httpclient"
	"github.com/queueme/scheduling-core/internal/repository/postgres"
	"github.com/queueme/scheduling-core/pkg/events"
	"github.com/queueme/scheduling-core/pkg/logger"
	"github.com/queueme/scheduling-core/pkg/scheduler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}

	log := logger.New(cfg.LogLevel)

	db, err := postgres.Connect(cfg.Database)
	if err != nil {
		log.Fatal("failed to connect to database", "error", err)
	}
	if err := postgres.Migrate(db); err != nil {
		log.Fatal("failed to run database migrations", "error", err)
	}
	store := postgres.New(db)

	var redisClient *redis.Client
	redisClient, err = rediscache.Connect(cfg.Redis)
	if err != nil {
		if cfg.Environment == "development" {
			log.Warn("failed to connect to redis, continuing without cache", "error", err)
			redisClient = nil
		} else {
			log.Fatal("failed to connect to redis", "error", err)
		}
	}
	var slotCache cache.Cache = cache.Null{}
	if redisClient != nil {
		slotCache = rediscache.New(redisClient)
	} else {
		log.Warn("redis unavailable, slot cache disabled for this process")
	}

	var notifier notify.Notifier = notify.Null{}
	natsConn, err := events.Connect(cfg.NATS)
	if err != nil {
		if cfg.Environment == "development" {
			log.Warn("failed to connect to nats, continuing without notifications", "error", err)
		} else {
			log.Fatal("failed to connect to nats", "error", err)
		}
	} else {
		defer natsConn.Close()
		publisher := events.NewPublisher(natsConn, log)
		notifier = natsnotify.New(publisher)
	}

	var predictor prediction.Consumer = prediction.Null{}
	if cfg.Prediction.BaseURL != "" {
		predictor = httpclient.New(cfg.Prediction.BaseURL, cfg.Prediction.Timeout, log)
	} else {
		log.Info("no prediction service configured, using null predictor")
	}

	availEngine := availability.New(store, nil, slotCache)
	conflictDetector := conflict.New(store)
	bufferManager := buffer.New(store)
	sched := orchestrator.New(store, availEngine, conflictDetector, bufferManager, notifier, predictor, nil, log, cfg.BookingTimeout, cfg.TransientRetryMax)

	cronScheduler := scheduler.New(store, bufferManager, notifier, log)
	cronScheduler.Start()
	defer cronScheduler.Stop()

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := httpapi.NewRouter(sched, availEngine, bufferManager, db, redisClient, log)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("starting scheduling core", "port", cfg.Port, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("failed to start server", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down scheduling core")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("server forced to shutdown", "error", err)
	}

	log.Info("scheduling core stopped")
}
