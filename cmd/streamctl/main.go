package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/mantonx/streamctl/internal/config"
	"github.com/mantonx/streamctl/internal/database"
	"github.com/mantonx/streamctl/internal/logger"
	"github.com/mantonx/streamctl/internal/modules/streammodule"
	"github.com/mantonx/streamctl/internal/server"
	"gorm.io/gorm"
)

func main() {
	configPath := os.Getenv("STREAMCTL_CONFIG_PATH")
	if configPath == "" {
		if _, err := os.Stat("./streamctl.yaml"); err == nil {
			configPath = "./streamctl.yaml"
		}
	}

	if err := config.Load(configPath); err != nil {
		logger.Error("Failed to load configuration", "path", configPath, "error", err)
		os.Exit(1)
	}
	cfg := config.Get()

	log := logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	if configPath != "" {
		log.Info("✅ Configuration loaded", "path", configPath)
	} else {
		log.Info("✅ Using default configuration")
	}

	var db *gorm.DB
	if cfg.Database.Enabled {
		var err error
		db, err = database.Open(cfg.Database)
		if err != nil {
			log.Error("Failed to initialize database", "error", err)
			os.Exit(1)
		}
		defer database.Close(db)
	} else {
		log.Warn("Dispatch log disabled")
	}

	if cfg.Stream.SourceURL == "" {
		log.Warn("stream.source_url is not set; /run requires a source in every request")
	}

	module := streammodule.NewModule(cfg, db, log.Named("stream"))
	if err := module.Migrate(); err != nil {
		log.Error("Failed to migrate stream module", "error", err)
		os.Exit(1)
	}
	module.Start()

	router, err := server.SetupRouter(cfg, log, module)
	if err != nil {
		log.Error("Failed to set up router", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info("Shutting down gracefully...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", "error", err)
		}

		if err := module.Shutdown(); err != nil {
			log.Error("Stream module shutdown error", "error", err)
		}

		cancel()
	}()

	log.Info("🚀 Starting streamctl server", "addr", srv.Addr, "output_dir", cfg.Stream.OutputDir)
	err = srv.ListenAndServe()

	if err != nil && err != http.ErrServerClosed {
		log.Error("Failed to start server", "error", err)
		os.Exit(1)
	}

	<-ctx.Done()
	log.Info("Server shutdown complete")
}
