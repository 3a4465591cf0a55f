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

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"quizgame/config"
	"quizgame/handlers"
	"quizgame/logger"
	"quizgame/routes"
	"quizgame/services"
	"quizgame/storage"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log, err := logger.Init(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	// Initialize database
	db, err := config.InitDB(cfg)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	if err := config.Migrate(db); err != nil {
		return err
	}
	store := storage.NewGormStore(db)

	// Observers
	registry := services.NewObserverRegistry(logger.Named("observers"))
	stats := services.NewStatisticsObserver()
	registry.AddObserver(services.NewLoggingObserver(logger.Named("events")))
	registry.AddObserver(stats)

	gameService := services.NewGameService(store, registry, cfg.Game.PointsPerCorrectAnswer, logger.Named("game"))
	packService := services.NewPackService(store, logger.Named("packs"))

	hub := services.NewHub(gameService, logger.Named("hub"))
	asyncHub := services.NewAsyncObserver(hub, cfg.Game.ObserverQueueSize, logger.Named("hub"))
	registry.AddObserver(asyncHub)
	async := []*services.AsyncObserver{asyncHub}

	var history handlers.EventHistory
	if redisClient := config.InitRedis(cfg); redisClient != nil {
		defer redisClient.Close()
		publisher := services.NewRedisPublisher(redisClient, cfg.Game.EventHistoryTTL, logger.Named("redis"))
		asyncPublisher := services.NewAsyncObserver(publisher, cfg.Game.ObserverQueueSize, logger.Named("redis"))
		registry.AddObserver(asyncPublisher)
		async = append(async, asyncPublisher)
		history = publisher
	}

	// Setup Gin router
	gin.SetMode(cfg.GinMode)
	router := routes.NewRouter(logger.Named("http"))
	routes.SetupRoutes(
		router,
		handlers.NewPackHandler(packService, logger.Named("http")),
		handlers.NewGameHandler(gameService, stats, history, logger.Named("http")),
		hub,
		gameService,
		logger.Named("ws"),
	)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(ctx)
		return nil
	})
	g.Go(func() error {
		log.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()

	// Deliver whatever the observers still have queued.
	registry.ClearObservers()
	for _, o := range async {
		o.Close()
	}
	return err
}
