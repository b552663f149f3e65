package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/mantonx/streamctl/internal/modules/streammodule/core/ffmpeg"
	"github.com/mantonx/streamctl/internal/modules/streammodule/core/process"
	"github.com/mantonx/streamctl/internal/modules/streammodule/core/watch"
	"github.com/mantonx/streamctl/internal/modules/streammodule/types"
)

var errNoOutput = errors.New("engine request has no output path")

// FFmpegConfig configures the FFmpeg engine
type FFmpegConfig struct {
	BinaryPath     string
	KillGrace      time.Duration
	WatchManifests bool
	WatchTimeout   time.Duration
}

// ExitFunc is called after an engine process has been reaped
type ExitFunc func(entry process.Entry, err error)

// FFmpegEngine runs one FFmpeg process per output path
type FFmpegEngine struct {
	cfg      FFmpegConfig
	logger   hclog.Logger
	builder  *ffmpeg.ArgsBuilder
	registry *process.Registry
	watcher  *watch.ManifestWatcher

	onReady watch.ReadyFunc
	onExit  ExitFunc

	// serializes dispatches so a stop and a start for the same output never interleave
	mu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewFFmpegEngine creates an engine backed by the FFmpeg binary in cfg
func NewFFmpegEngine(cfg FFmpegConfig, logger hclog.Logger) *FFmpegEngine {
	return NewFFmpegEngineWithBuilder(cfg, logger, ffmpeg.NewArgsBuilder(logger.Named("args")))
}

// NewFFmpegEngineWithBuilder creates an engine with a specific args builder
func NewFFmpegEngineWithBuilder(cfg FFmpegConfig, logger hclog.Logger, builder *ffmpeg.ArgsBuilder) *FFmpegEngine {
	if cfg.BinaryPath == "" {
		cfg.BinaryPath = "ffmpeg"
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &FFmpegEngine{
		cfg:      cfg,
		logger:   logger,
		builder:  builder,
		registry: process.NewRegistry(logger.Named("process"), cfg.KillGrace),
		watcher:  watch.NewManifestWatcher(logger.Named("watch"), cfg.WatchTimeout),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// OnManifestReady sets the callback run when a started job first writes its manifest
func (e *FFmpegEngine) OnManifestReady(fn watch.ReadyFunc) {
	e.onReady = fn
}

// OnExit sets the callback run after a process exits
func (e *FFmpegEngine) OnExit(fn ExitFunc) {
	e.onExit = fn
}

// Dispatch starts or finalizes the job writing req.OutputPath
func (e *FFmpegEngine) Dispatch(ctx context.Context, req *types.EngineRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if req.OutputPath == "" {
		return errNoOutput
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	found, err := e.registry.Terminate(req.OutputPath)
	if err != nil {
		return fmt.Errorf("failed to stop previous writer of %s: %w", req.OutputPath, err)
	}

	if req.IsFinalize() {
		if !found {
			e.logger.Info("nothing to finalize", "output", req.OutputPath, "request_id", req.ID)
		} else {
			e.logger.Info("finalized stream", "output", req.OutputPath, "request_id", req.ID)
		}
		return nil
	}

	return e.start(req)
}

func (e *FFmpegEngine) start(req *types.EngineRequest) error {
	args, err := e.builder.BuildArgs(req)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(req.OutputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	// Armed before the process starts so an early manifest write is not missed
	watchCtx, stopWatching := context.WithCancel(e.ctx)
	if e.cfg.WatchManifests {
		if err := e.watcher.Watch(watchCtx, req.OutputPath, e.onReady); err != nil {
			e.logger.Warn("failed to watch manifest", "output", req.OutputPath, "error", err)
		}
	}

	// Not tied to the request context: the process outlives the HTTP call
	cmd := exec.Command(e.cfg.BinaryPath, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGKILL,
	}
	cmd.Stdout = nil
	cmd.Stderr = e.logger.Named("ffmpeg").StandardWriter(&hclog.StandardLoggerOptions{
		InferLevels: true,
	})

	if err := cmd.Start(); err != nil {
		stopWatching()
		return fmt.Errorf("failed to start %s: %w", e.cfg.BinaryPath, err)
	}

	done := make(chan struct{})
	entry := process.NewEntry(cmd.Process.Pid, req.ID, req.OutputPath, string(req.Protocol), done)
	e.registry.Register(entry)

	e.logger.Info("started stream",
		"request_id", req.ID,
		"pid", entry.PID,
		"protocol", req.Protocol,
		"tiers", req.TierNames(),
		"output", req.OutputPath)

	e.wg.Add(1)
	go e.monitor(cmd, entry, done, stopWatching)

	return nil
}

func (e *FFmpegEngine) monitor(cmd *exec.Cmd, entry *process.Entry, done chan struct{}, stopWatching context.CancelFunc) {
	defer e.wg.Done()
	defer stopWatching()

	err := cmd.Wait()
	close(done)
	e.registry.Unregister(entry.OutputPath, entry.PID)

	duration := time.Since(entry.StartTime)
	if err != nil {
		e.logger.Warn("engine process exited",
			"pid", entry.PID,
			"output", entry.OutputPath,
			"duration", duration,
			"error", err)
	} else {
		e.logger.Info("engine process completed",
			"pid", entry.PID,
			"output", entry.OutputPath,
			"duration", duration)
	}

	if e.onExit != nil {
		e.onExit(*entry, err)
	}
}

// Processes returns the currently running engine processes
func (e *FFmpegEngine) Processes() []process.Entry {
	return e.registry.Entries()
}

// Shutdown terminates every running process and waits for the monitors to finish
func (e *FFmpegEngine) Shutdown() error {
	e.cancel()

	e.mu.Lock()
	err := e.registry.TerminateAll()
	e.mu.Unlock()

	e.wg.Wait()
	return err
}
