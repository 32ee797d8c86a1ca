package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/score-ledger/internal/config"
	"github.com/score-ledger/internal/handler"
	"github.com/score-ledger/internal/kafka"
	"github.com/score-ledger/internal/mongo"
	"github.com/score-ledger/internal/postgres"
	"github.com/score-ledger/internal/redis"
	"github.com/score-ledger/internal/service"
	"github.com/score-ledger/internal/websocket"
	"github.com/score-ledger/internal/worker"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Warn("failed to load config file, using defaults", "error", err)
		cfg = config.DefaultConfig()
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize the document store
	logger.Info("connecting to document store", "uri", cfg.Mongo.URI, "database", cfg.Mongo.Database)
	store, err := mongo.NewStore(ctx, &cfg.Mongo, logger)
	if err != nil {
		logger.Error("failed to connect to document store", "error", err)
		os.Exit(1)
	}
	defer store.Close(context.Background())

	// Initialize the optional rankings mirror
	var mirror *redis.RankingsMirror
	if cfg.Redis.Enabled {
		logger.Info("connecting to Redis", "addr", cfg.Redis.Addr)
		mirror, err = redis.NewRankingsMirror(&cfg.Redis, logger)
		if err != nil {
			logger.Warn("failed to connect to Redis, continuing without rankings mirror", "error", err)
			mirror = nil
		} else {
			defer mirror.Close()
			logger.Info("connected to Redis")
		}
	}

	// Initialize the optional submission audit sink
	var audit *postgres.AuditLog
	if cfg.Postgres.Enabled {
		logger.Info("connecting to PostgreSQL", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
		audit, err = postgres.NewAuditLog(&cfg.Postgres, logger)
		if err != nil {
			logger.Warn("failed to connect to PostgreSQL, continuing without audit sink", "error", err)
			audit = nil
		} else {
			defer audit.Close()
			if err := audit.RunMigrations(ctx); err != nil {
				logger.Error("failed to run audit sink migrations", "error", err)
				os.Exit(1)
			}
			logger.Info("connected to PostgreSQL")
		}
	}

	// Initialize WebSocket hub
	wsHub := websocket.NewHub(logger)
	go wsHub.Run()
	logger.Info("WebSocket hub initialized")

	// Initialize the score ledger service
	ledger := service.NewScoreLedger(store, &cfg.Leaderboard, logger)
	ledger.SetHub(wsHub)
	if mirror != nil {
		ledger.SetMirror(mirror)
	}
	if audit != nil {
		ledger.SetAudit(audit)
	}

	// Initialize the mirror sync worker
	var mirrorSync *worker.MirrorSync
	if mirror != nil {
		mirrorSync = worker.NewMirrorSync(store, mirror, &cfg.Mirror, logger)

		// Seed the mirror from the store on startup (recovery)
		if err := mirrorSync.SeedFromStore(ctx); err != nil {
			logger.Warn("failed to seed rankings mirror on startup", "error", err)
		}

		if cfg.Mirror.Enabled {
			if err := mirrorSync.Start(ctx); err != nil {
				logger.Error("failed to start mirror sync worker", "error", err)
				os.Exit(1)
			}
		}
	}

	// Initialize Kafka consumer for high-load score ingestion
	var kafkaConsumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		logger.Info("initializing Kafka consumer",
			"brokers", cfg.Kafka.Brokers,
			"topic", cfg.Kafka.Topic,
		)
		var err error
		kafkaConsumer, err = kafka.NewConsumer(&cfg.Kafka, ledger, logger)
		if err != nil {
			logger.Warn("failed to create Kafka consumer, continuing without Kafka", "error", err)
		} else {
			if err := kafkaConsumer.Start(); err != nil {
				logger.Warn("failed to start Kafka consumer, continuing without Kafka", "error", err)
				kafkaConsumer = nil
			} else {
				logger.Info("Kafka consumer started successfully")
			}
		}
	}

	// Initialize HTTP handler with WebSocket hub
	httpHandler := handler.NewHandler(ledger, wsHub, logger)

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpHandler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting HTTP server", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop WebSocket hub
	wsHub.Stop()

	// Stop Kafka consumer
	if kafkaConsumer != nil {
		if err := kafkaConsumer.Stop(); err != nil {
			logger.Error("failed to stop Kafka consumer", "error", err)
		}
	}

	// Stop mirror sync worker
	if mirrorSync != nil {
		if err := mirrorSync.Stop(); err != nil {
			logger.Error("failed to stop mirror sync worker", "error", err)
		}
	}

	// Shutdown HTTP server
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	}

	logger.Info("server stopped")
}
