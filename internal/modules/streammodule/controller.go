package streammodule

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/mantonx/streamctl/internal/config"
	"github.com/mantonx/streamctl/internal/modules/streammodule/core/engine"
	serrors "github.com/mantonx/streamctl/internal/modules/streammodule/errors"
	"github.com/mantonx/streamctl/internal/modules/streammodule/profile"
	"github.com/mantonx/streamctl/internal/modules/streammodule/types"
)

// StopConfirmation is the response body of a successful stop
const StopConfirmation = "<h1>Stream is stopped</h1>"

// Controller turns start/stop requests into engine requests
type Controller struct {
	engine engine.Engine
	cfg    config.StreamConfig
	logger hclog.Logger
}

// NewController creates a controller dispatching to eng
func NewController(eng engine.Engine, cfg config.StreamConfig, logger hclog.Logger) *Controller {
	if len(cfg.DefaultTiers) == 0 {
		cfg.DefaultTiers = []string{profile.Tier480p}
	}
	return &Controller{engine: eng, cfg: cfg, logger: logger}
}

// Start validates job, fills defaults and dispatches exactly one start request.
// Zero-valued fields in job fall back to configuration. The source must still
// be non-empty after defaulting.
func (c *Controller) Start(ctx context.Context, job types.StreamJob) (*types.EngineRequest, error) {
	const op = "start_stream"

	source := strings.TrimSpace(job.Source)
	if source == "" {
		source = strings.TrimSpace(c.cfg.SourceURL)
	}
	if source == "" {
		return nil, serrors.ValidationError(op, serrors.ErrInvalidSource)
	}

	protocol, err := c.protocolOrDefault(job.Protocol, c.cfg.StartProtocol)
	if err != nil {
		return nil, err
	}

	tiers := job.Tiers
	if len(tiers) == 0 {
		tiers = c.cfg.DefaultTiers
	}
	reps, err := profile.Resolve(tiers)
	if err != nil {
		return nil, err
	}

	output, err := c.resolveOutput(job.OutputPath, protocol)
	if err != nil {
		return nil, err
	}

	req := types.NewEngineRequest(types.OperationStart, source, protocol, reps, output)
	if err := c.engine.Dispatch(ctx, req); err != nil {
		c.logger.Error("start dispatch failed", "request_id", req.ID, "output", output, "error", err)
		return nil, serrors.EngineError(op, err).WithDetail("output", output)
	}

	c.logger.Info("stream start requested",
		"request_id", req.ID,
		"protocol", protocol,
		"tiers", req.TierNames(),
		"output", output)

	return req, nil
}

// Stop dispatches a finalize request for output covering the full ladder
func (c *Controller) Stop(ctx context.Context, output string, protocol types.Protocol) (string, error) {
	const op = "stop_stream"

	protocol, err := c.protocolOrDefault(protocol, c.cfg.StopProtocol)
	if err != nil {
		return "", err
	}

	resolved, err := c.resolveOutput(output, protocol)
	if err != nil {
		return "", err
	}

	req := types.NewEngineRequest(types.OperationStop, "", protocol, profile.AutoLadder(0), resolved)
	req.AutoLadder = true

	if err := c.engine.Dispatch(ctx, req); err != nil {
		c.logger.Error("stop dispatch failed", "request_id", req.ID, "output", resolved, "error", err)
		return "", serrors.EngineError(op, err).WithDetail("output", resolved)
	}

	c.logger.Info("stream stop requested", "request_id", req.ID, "protocol", protocol, "output", resolved)
	return StopConfirmation, nil
}

// ResolveOutput returns the absolute path an explicit output argument refers to
func (c *Controller) ResolveOutput(output string) (string, error) {
	if strings.TrimSpace(output) == "" {
		return "", serrors.ValidationError("resolve_output", serrors.ErrInvalidOutput)
	}
	return c.resolveOutput(output, "")
}

func (c *Controller) protocolOrDefault(p types.Protocol, fallback string) (types.Protocol, error) {
	if p == "" {
		return types.ParseProtocol(fallback)
	}
	return types.ParseProtocol(string(p))
}

// resolveOutput places output under the configured output directory. An
// empty output becomes <output_dir>/<protocol><ext>, dash.mpd or hls.m3u8.
func (c *Controller) resolveOutput(output string, protocol types.Protocol) (string, error) {
	base, err := filepath.Abs(c.cfg.OutputDir)
	if err != nil {
		return "", serrors.InternalError("resolve_output", err)
	}

	output = strings.TrimSpace(output)
	if output == "" {
		return filepath.Join(base, string(protocol)+protocol.ManifestExt()), nil
	}

	resolved := output
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(base, resolved)
	}
	resolved = filepath.Clean(resolved)

	rel, err := filepath.Rel(base, resolved)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", serrors.ValidationError("resolve_output", serrors.ErrInvalidOutput).WithDetail("output", output)
	}

	return resolved, nil
}
