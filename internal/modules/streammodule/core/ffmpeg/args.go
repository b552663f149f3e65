// Package ffmpeg builds FFmpeg command arguments for adaptive bitrate packaging.
// One FFmpeg invocation encodes every requested representation from a single
// input and muxes them into either a DASH manifest or an HLS master playlist
// with one variant playlist per representation.
//
// Example usage:
//
//	builder := ffmpeg.NewArgsBuilder(logger)
//	args, err := builder.BuildArgs(req)
//	cmd := exec.Command("ffmpeg", args...)
package ffmpeg

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/mantonx/streamctl/internal/modules/streammodule/types"
)

// SegmentDuration is the target segment length in seconds for both protocols
const SegmentDuration = 10

var (
	errNoSource          = errors.New("engine request has no source")
	errNoRepresentations = errors.New("engine request has no representations")
)

// ArgsBuilder handles building FFmpeg command arguments
type ArgsBuilder struct {
	logger          hclog.Logger
	resourceManager *ResourceManager
}

// NewArgsBuilder creates a new FFmpeg args builder
func NewArgsBuilder(logger hclog.Logger) *ArgsBuilder {
	return &ArgsBuilder{
		logger:          logger,
		resourceManager: NewResourceManager(logger),
	}
}

// NewArgsBuilderWithResources creates a builder with a specific resource manager
func NewArgsBuilderWithResources(logger hclog.Logger, rm *ResourceManager) *ArgsBuilder {
	return &ArgsBuilder{logger: logger, resourceManager: rm}
}

// BuildArgs builds the full FFmpeg argument list for a start request
func (b *ArgsBuilder) BuildArgs(req *types.EngineRequest) ([]string, error) {
	if req.IsFinalize() {
		return nil, errNoSource
	}
	if len(req.Representations) == 0 {
		return nil, errNoRepresentations
	}

	resources := b.resourceManager.GetOptimalResources(len(req.Representations))

	var args []string

	// Global options
	args = append(args, "-y", "-hide_banner", "-loglevel", "warning")
	args = append(args, "-probesize", resources.ProbeSize)
	args = append(args, "-analyzeduration", resources.AnalyzeDuration)

	// Input
	args = append(args, "-i", req.Source)

	// Codecs and keyframe alignment shared by every representation
	args = append(args,
		"-c:v", "libx264",
		"-c:a", "aac",
		"-bf", "1",
		"-keyint_min", "25",
		"-g", "250",
		"-sc_threshold", "40",
	)

	args = append(args, representationArgs(req)...)

	args = append(args,
		"-threads", resources.ThreadCount,
		"-max_muxing_queue_size", resources.MuxingQueueSize,
	)

	switch req.Protocol {
	case types.ProtocolDASH:
		args = append(args, dashArgs(req.OutputPath)...)
	case types.ProtocolHLS:
		args = append(args, hlsArgs(req)...)
	default:
		return nil, fmt.Errorf("unsupported protocol %q", req.Protocol)
	}

	if b.logger != nil {
		b.logger.Debug("built ffmpeg arguments",
			"request_id", req.ID,
			"protocol", req.Protocol,
			"representations", len(req.Representations),
			"output", req.OutputPath,
		)
	}

	return args, nil
}

// representationArgs maps the input once per representation and sets its size and bitrates.
// Output stream i of each type belongs to representation i. The source must carry
// an audio track: every representation has an audio bitrate and the HLS variant
// map pairs audio stream i with video stream i.
func representationArgs(req *types.EngineRequest) []string {
	var args []string
	for i, rep := range req.Representations {
		args = append(args,
			"-map", "0:v:0",
			"-map", "0:a:0",
			fmt.Sprintf("-s:v:%d", i), rep.Size(),
			fmt.Sprintf("-b:v:%d", i), fmt.Sprintf("%dk", rep.VideoKbps()),
			fmt.Sprintf("-b:a:%d", i), fmt.Sprintf("%dk", rep.AudioKbps()),
		)
	}
	return args
}

func dashArgs(outputPath string) []string {
	return []string{
		"-f", "dash",
		"-use_timeline", "1",
		"-use_template", "1",
		"-seg_duration", fmt.Sprintf("%d", SegmentDuration),
		"-adaptation_sets", "id=0,streams=v id=1,streams=a",
		"-init_seg_name", "init_$RepresentationID$.$ext$",
		"-media_seg_name", "chunk_$RepresentationID$_$Number%05d$.$ext$",
		outputPath,
	}
}

// hlsArgs writes <base>.m3u8 as the master playlist next to one
// <base>_<tier>.m3u8 variant playlist per representation.
func hlsArgs(req *types.EngineRequest) []string {
	dir := filepath.Dir(req.OutputPath)
	master := filepath.Base(req.OutputPath)
	base := strings.TrimSuffix(master, filepath.Ext(master))

	variants := make([]string, len(req.Representations))
	for i, rep := range req.Representations {
		variants[i] = fmt.Sprintf("v:%d,a:%d,name:%s", i, i, rep.Name)
	}

	return []string{
		"-f", "hls",
		"-hls_time", fmt.Sprintf("%d", SegmentDuration),
		"-hls_list_size", "0",
		"-hls_segment_type", "mpegts",
		"-hls_segment_filename", filepath.Join(dir, base+"_%v_%04d.ts"),
		"-master_pl_name", master,
		"-var_stream_map", strings.Join(variants, " "),
		filepath.Join(dir, base+"_%v.m3u8"),
	}
}
