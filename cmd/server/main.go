package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/lk2023060901/agent-gateway/internal/conf"
	"github.com/lk2023060901/agent-gateway/internal/pkg/injector"
	"github.com/lk2023060901/agent-gateway/internal/pkg/logger"
)

var (
	configFile = flag.String("config", "config.yaml", "config file path (optional)")
)

func main() {
	flag.Parse()

	// Load configuration
	config, err := conf.LoadConfig(*configFile)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log, err := logger.New(&config.Log)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("config loaded successfully",
		zap.String("model_endpoint", config.Model.Endpoint),
		zap.String("deployment", config.Model.Deployment),
		zap.Bool("agent_configured", config.Agent.ID != ""),
		zap.Bool("blob_enabled", config.BlobEnabled()),
		zap.Bool("redis_enabled", config.RedisEnabled()),
	)

	app, cleanup, err := injector.InitializeApp(config, log)
	if err != nil {
		log.Fatal("failed to initialize application", zap.Error(err))
	}
	defer cleanup()

	// Start servers in goroutines
	go func() {
		if err := app.HTTPServer.Start(); err != nil {
			log.Fatal("failed to start HTTP server", zap.Error(err))
		}
	}()

	go func() {
		if err := app.GRPCServer.Start(); err != nil {
			log.Fatal("failed to start gRPC server", zap.Error(err))
		}
	}()

	log.Info("servers started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down servers...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	app.GRPCServer.Stop()

	if err := app.HTTPServer.Stop(ctx); err != nil {
		log.Error("HTTP server forced to shutdown", zap.Error(err))
	}

	log.Info("servers exited")
}
