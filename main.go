package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"caderneta_server/adapter/in/http"
	"caderneta_server/adapter/in/worker"
	"caderneta_server/config"
	"caderneta_server/internal/bootstrap"
	"caderneta_server/internal/stream"
	"caderneta_server/pkg/logger"

	"github.com/joho/godotenv"
)

const (
	shutdownTimeout = 30 * time.Second
	startupTimeout  = 30 * time.Second
)

func main() {
	// Load .env file if exists (for local development)
	envErr := godotenv.Load()

	mode := flag.String("mode", "all", "Run mode: api, worker, all, chat, retrain")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config: %v", err)
	}
	initLogger(cfg, *mode)
	if envErr != nil {
		logger.Debug("No .env file found, using environment variables")
	}

	switch *mode {
	case "api":
		run(cfg, true, false)
	case "worker":
		run(cfg, false, true)
	case "all":
		run(cfg, true, true)
	case "chat":
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		if err := bootstrap.RunChat(ctx, cfg, os.Stdin, os.Stdout); err != nil {
			logger.Fatal("Chat failed: %v", err)
		}
	case "retrain":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if err := bootstrap.RunRetrain(ctx, cfg); err != nil {
			logger.Fatal("Retrain failed: %v", err)
		}
	default:
		logger.Fatal("Unknown mode: %s", *mode)
	}
}

func initLogger(cfg *config.Config, mode string) {
	level := logger.LevelInfo
	if cfg.IsDevelopment() {
		level = logger.LevelDebug
	}
	if cfg.LogLevel != "" {
		level = logger.ParseLevel(cfg.LogLevel)
	}
	output := os.Stdout
	if mode == "chat" {
		output = os.Stderr
	}
	logger.Init(logger.Config{
		Level:   level,
		Output:  output,
		Service: "caderneta-" + mode,
	})
}

// run starts the HTTP server, the worker pool or both. Without Redis the
// API feeds an in-process pool, so "api" also starts one.
func run(cfg *config.Config, withAPI, withWorker bool) {
	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	deps, cleanup, err := bootstrap.NewDependencies(ctx, cfg, nil)
	cancel()
	if err != nil {
		logger.Fatal("Failed to initialize dependencies: %v", err)
	}
	defer cleanup()

	if !withAPI && deps.Stream == nil {
		logger.Fatal("worker mode requires REDIS_URL")
	}

	var w *bootstrap.Worker
	if withWorker || deps.Stream == nil {
		w = bootstrap.NewWorker(deps)
		if err := w.Start(); err != nil {
			logger.Fatal("Failed to start worker: %v", err)
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if !withAPI {
		<-sigChan
		stopWorker(w)
		return
	}

	var publisher http.InboundPublisher
	if deps.Stream != nil {
		publisher = stream.NewProducer(deps.Stream)
	} else {
		publisher = bootstrap.NewLocalPublisher(w.Pool())
	}
	var pool *worker.Pool
	if w != nil {
		pool = w.Pool()
	}
	app := bootstrap.NewAPI(deps, publisher, pool)

	go func() {
		<-sigChan
		logger.Info("Shutting down API server (timeout: %v)...", shutdownTimeout)
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			logger.Error("Error shutting down: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	logger.Info("Starting API server on %s", addr)
	if err := app.Listen(addr); err != nil {
		logger.Error("API server stopped: %v", err)
	}
	stopWorker(w)
}

func stopWorker(w *bootstrap.Worker) {
	if w == nil {
		return
	}
	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()
	select {
	case <-done:
		logger.Info("Worker shut down gracefully")
	case <-time.After(shutdownTimeout):
		logger.Warn("Worker shutdown timed out")
	}
}
