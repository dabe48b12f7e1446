package main

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/hibiken/asynq"

	"github.com/jamolinav/ai-assist-attorney/internal/ai"
	"github.com/jamolinav/ai-assist-attorney/internal/archive"
	"github.com/jamolinav/ai-assist-attorney/internal/cases"
	"github.com/jamolinav/ai-assist-attorney/internal/config"
	"github.com/jamolinav/ai-assist-attorney/internal/logger"
	"github.com/jamolinav/ai-assist-attorney/internal/progress"
	"github.com/jamolinav/ai-assist-attorney/internal/queue"
	"github.com/jamolinav/ai-assist-attorney/internal/telemetry"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	shutdownTracer, err := telemetry.InitTracer("ai-assist-attorney-worker", cfg.OTLPEndpoint)
	if err != nil {
		logger.Warn("tracer init failed, continuing without tracing", "error", err)
	} else {
		defer shutdownTracer()
	}

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Fatal("Failed to init metrics:", err)
	}

	// Connect to MongoDB
	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()

	// Connect to Redis
	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer rdb.Close()

	// Initialize Gemini client
	geminiClient, err := ai.NewGeminiClient(context.Background(), cfg, metrics)
	if err != nil {
		log.Fatal("Failed to initialize Gemini client:", err)
	}
	defer geminiClient.Close()

	registry := cases.NewRegistry(mongoClient, cfg.DBName)
	prog := progress.NewRedisStore(rdb)

	arc, err := archive.New(mongoClient, cfg.DBName)
	if err != nil {
		log.Fatal("Failed to open archive:", err)
	}

	// Sweep processing rows abandoned by a killed worker.
	scheduler := gocron.NewScheduler(time.UTC)
	scheduler.Every(10).Minutes().Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := registry.FailStaleProcessing(ctx, time.Hour); err != nil {
			logger.Error("stale case sweep failed", "error", err)
		}
	})
	scheduler.StartAsync()
	defer scheduler.Stop()

	asynqOpt, err := config.AsynqRedisOpt(cfg)
	if err != nil {
		log.Fatal("Failed to build Asynq Redis options:", err)
	}

	// Create Asynq server
	server := asynq.NewServer(
		asynqOpt,
		asynq.Config{
			// Acquisition jobs own a whole browser each; keep them few.
			Concurrency: 4,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			StrictPriority: true,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("task failed", "type", task.Type(), "error", err)
			}),
		},
	)

	// Create task processor
	processor := queue.NewTaskProcessor(cfg, registry, prog, geminiClient, arc, metrics)

	// Create mux and register handlers
	mux := asynq.NewServeMux()
	if err := processor.Register(mux); err != nil {
		log.Fatal("Handler registration failed:", err)
	}

	logger.Info("starting worker",
		"redis", cfg.RedisURL,
		"queues", "critical(6), default(3), low(1)")

	// Start the server
	if err := server.Run(mux); err != nil {
		log.Fatal("Failed to start worker:", err)
	}
}
