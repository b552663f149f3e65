// Package streammodule starts and stops adaptive streaming jobs.
//
// A start request resolves tier names against the representation catalog
// and hands one request to the engine, which packages the source into DASH
// or HLS under the configured output directory. A stop request finalizes
// whatever is writing an output path. Both are fire-and-forget.
//
// Architecture:
//
//	HTTP (api) → Controller → RecordingEngine → FFmpegEngine → ffmpeg
//	                                 ↓                ↓
//	                         dispatch_records   process registry
package streammodule

import (
	"context"
	"fmt"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"
	"github.com/mantonx/streamctl/internal/config"
	"github.com/mantonx/streamctl/internal/database"
	"github.com/mantonx/streamctl/internal/modules/streammodule/api"
	"github.com/mantonx/streamctl/internal/modules/streammodule/core/engine"
	"github.com/mantonx/streamctl/internal/modules/streammodule/core/process"
	"github.com/mantonx/streamctl/internal/modules/streammodule/core/repository"
	"gorm.io/gorm"
)

// Module wires the controller, engine and API together
type Module struct {
	cfg        *config.Config
	db         *gorm.DB
	logger     hclog.Logger
	ffmpeg     *engine.FFmpegEngine
	repo       *repository.DispatchRepository
	controller *Controller
	handler    *api.APIHandler

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewModule creates the stream module. db may be nil, which disables the dispatch log.
func NewModule(cfg *config.Config, db *gorm.DB, logger hclog.Logger) *Module {
	m := &Module{
		cfg:    cfg,
		db:     db,
		logger: logger,
	}

	m.ffmpeg = engine.NewFFmpegEngine(engine.FFmpegConfig{
		BinaryPath:     cfg.Stream.FFmpegPath,
		KillGrace:      cfg.Stream.KillGrace,
		WatchManifests: cfg.Stream.WatchManifests,
		WatchTimeout:   cfg.Stream.WatchTimeout,
	}, logger.Named("engine"))

	m.ffmpeg.OnManifestReady(func(path string) {
		logger.Info("stream is playable", "manifest", path)
	})
	m.ffmpeg.OnExit(func(entry process.Entry, err error) {
		if err != nil {
			logger.Warn("stream ended with error", "output", entry.OutputPath, "request_id", entry.RequestID, "error", err)
		}
	})

	var eng engine.Engine = m.ffmpeg
	if db != nil {
		m.repo = repository.NewDispatchRepository(db)
		eng = engine.NewRecordingEngine(m.ffmpeg, m.repo, logger.Named("dispatch-log"))
	}

	m.controller = NewController(eng, cfg.Stream, logger.Named("controller"))

	// A nil *DispatchRepository must not reach the handler as a non-nil interface
	var history api.DispatchHistory
	if m.repo != nil {
		history = m.repo
	}
	m.handler = api.NewAPIHandler(m.controller, m.ffmpeg, history, cfg.SampleVideoURL())

	return m
}

// Migrate performs the module's database migrations
func (m *Module) Migrate() error {
	if m.db == nil {
		return nil
	}
	m.logger.Info("Migrating stream database schema")
	if err := database.Migrate(m.db); err != nil {
		return fmt.Errorf("failed to migrate stream module: %w", err)
	}
	return nil
}

// RegisterRoutes registers the module's HTTP routes
func (m *Module) RegisterRoutes(router *gin.Engine) {
	api.RegisterRoutes(router, m.handler)
}

// Start launches the dispatch log cleanup when a retention is configured
func (m *Module) Start() {
	if m.repo == nil || m.cfg.Database.Retention <= 0 || m.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	cleanup := repository.NewCleanupService(m.repo, m.cfg.Database.Retention, m.cfg.Database.CleanupInterval,
		m.logger.Named("cleanup"))
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		cleanup.Run(ctx)
	}()
}

// Shutdown stops background tasks and terminates every running engine process
func (m *Module) Shutdown() error {
	m.logger.Info("Shutting down stream module", "processes", len(m.ffmpeg.Processes()))
	if m.cancel != nil {
		m.cancel()
		m.wg.Wait()
	}
	return m.ffmpeg.Shutdown()
}
