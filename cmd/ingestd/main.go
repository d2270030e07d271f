package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/akolanti/TenantRAG/internal/bootstrap"
	"github.com/akolanti/TenantRAG/internal/config"
	"github.com/akolanti/TenantRAG/internal/handlers"
	"github.com/akolanti/TenantRAG/internal/mcpServer"
	"github.com/akolanti/TenantRAG/internal/server"
	"github.com/akolanti/TenantRAG/internal/worker"
	"github.com/akolanti/TenantRAG/pkg/logger_i"
)

func main() {
	var (
		configPath string
		listenAddr string
	)
	flag.StringVar(&configPath, "config", "", "path to a YAML config file (default $"+config.ConfigFileEnv+")")
	flag.StringVar(&listenAddr, "listen-addr", "", "override server.listen_addr")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		logger_i.NewLogger("main").Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	if listenAddr != "" {
		cfg.Server.ListenAddr = listenAddr
	}
	logger_i.Init(cfg.Log)
	logger := logger_i.NewLogger("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := bootstrap.Open(ctx, cfg)
	if err != nil {
		logger.Error("External services failed to initialize. Shutting down.", "error", err)
		os.Exit(1)
	}
	defer deps.Close()

	pool := worker.NewPool(deps.Queue, deps.Service, cfg.Worker)
	pool.Start(ctx)

	h := handlers.NewHandlers(deps.Service, cfg.Ingest.TempDir, deps.HealthDependencies())
	srv := server.NewServer(cfg.Server, h, mcpServer.NewServer(deps.Service).Handler())

	if err = srv.Run(ctx); err != nil {
		logger.Error("Server stopped with error", "error", err)
	}
	stop()

	logger.Info("Waiting for workers to finish")
	pool.Stop()
	logger.Info("Server stopped")
}
