package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/user/browserstudio/internal/auth"
	"github.com/user/browserstudio/internal/chrome"
	"github.com/user/browserstudio/internal/config"
	"github.com/user/browserstudio/internal/console"
	"github.com/user/browserstudio/internal/logger"
	"github.com/user/browserstudio/internal/recording"
	"github.com/user/browserstudio/internal/registry"
	"github.com/user/browserstudio/internal/server"
)

const shutdownTimeout = 15 * time.Second

func main() {
	configPath := flag.String("c", "config.yaml", "config file path")
	flag.Parse()

	fmt.Println("browserstudio starting...")

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, closeLog, err := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.FilePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	browserCtx, browserCancel, wsEndpoint, err := chrome.Launch(context.Background(), chrome.LaunchConfig{
		Headless:  cfg.Chrome.Headless,
		NoSandbox: cfg.Chrome.NoSandbox,
		DebugPort: cfg.Server.CDPPort,
	}, log)
	if err != nil {
		log.Fatal("Failed to launch Chrome", zap.Error(err))
	}
	defer browserCancel()

	consoleCapture := console.New(log)
	recordingEngine := recording.New(log, cfg.Perception.AuditDir, recording.NewFfmpegEncoder())
	reg := registry.New(browserCtx, log, consoleCapture, recordingEngine)
	defer reg.Shutdown()

	var authMgr *auth.Manager
	if cfg.Auth.Enabled {
		authMgr, err = auth.NewManager(cfg.Auth.SecretKey, log)
		if err != nil {
			log.Fatal("Failed to create auth manager", zap.Error(err))
		}
		log.Info("Bearer-token auth enabled")
	}

	srv := server.New(cfg, log, reg, recordingEngine, authMgr, wsEndpoint)

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	log.Info("browserstudio started",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.Int("cdp_port", cfg.Server.CDPPort),
		zap.String("ws_endpoint", wsEndpoint),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutdown signal received")

	log.Info("Shutting down HTTP server...")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server shutdown error", zap.Error(err))
	}

	log.Info("Shutting down registry and browser...")
	reg.Shutdown()
	browserCancel()

	log.Info("browserstudio stopped")
}
