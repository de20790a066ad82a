package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/kubecloud/console-agent/internal/config"
	"github.com/kubecloud/console-agent/internal/database"
	"github.com/kubecloud/console-agent/internal/devserver"
	"github.com/kubecloud/console-agent/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("devserver", version.String())
		return
	}

	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting devserver",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	var cfg *config.DevServerConfig
	if *configPath != "" {
		loaded, err := config.LoadDevServer(*configPath)
		if err != nil {
			logger.Error("failed to load config", "error", err)
			os.Exit(1)
		}
		cfg = loaded
	} else {
		cfg = config.DevServerDefaults()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var store devserver.Store
	if cfg.Database.Host != "" {
		logger.Info("connecting to database",
			"host", cfg.Database.Host,
			"port", cfg.Database.Port,
			"database", cfg.Database.Name,
		)
		pool, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		store, err = devserver.NewPostgresStore(ctx, pool)
		if err != nil {
			logger.Error("failed to initialize notification store", "error", err)
			os.Exit(1)
		}
		logger.Info("database connected")
	} else {
		logger.Info("no database configured, using in-memory store")
		store = devserver.NewMemoryStore()
	}

	srv := devserver.New(*cfg, store, logger)
	if err := srv.Start(ctx); err != nil {
		logger.Error("failed to start devserver", "error", err)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
