// Package types defines the request types shared by the stream module's
// controller, engine and API layers.
package types

import (
	"strings"
	"time"

	"github.com/google/uuid"
	serrors "github.com/mantonx/streamctl/internal/modules/streammodule/errors"
	"github.com/mantonx/streamctl/internal/modules/streammodule/profile"
)

// Protocol is the segmented adaptive streaming format the engine packages into
type Protocol string

const (
	// ProtocolDASH produces an MPEG-DASH .mpd manifest
	ProtocolDASH Protocol = "dash"
	// ProtocolHLS produces an HLS .m3u8 master playlist
	ProtocolHLS Protocol = "hls"
)

// ParseProtocol normalizes a protocol name
func ParseProtocol(s string) (Protocol, error) {
	switch Protocol(strings.ToLower(strings.TrimSpace(s))) {
	case ProtocolDASH:
		return ProtocolDASH, nil
	case ProtocolHLS:
		return ProtocolHLS, nil
	default:
		return "", serrors.ValidationError("parse_protocol", serrors.ErrInvalidProtocol).
			WithDetail("protocol", s)
	}
}

// ManifestExt returns the manifest file extension for the protocol
func (p Protocol) ManifestExt() string {
	if p == ProtocolHLS {
		return ".m3u8"
	}
	return ".mpd"
}

// Operation names the controller operation that issued an engine request
type Operation string

const (
	OperationStart Operation = "start"
	OperationStop  Operation = "stop"
)

// StreamJob is what a caller asks the controller to start
type StreamJob struct {
	Source     string
	Tiers      []string
	OutputPath string
	Protocol   Protocol
}

// EngineRequest is a single request handed to the transcoding engine.
// An empty Source marks a finalize request: the engine stops producing
// output at OutputPath instead of starting a new transcode.
type EngineRequest struct {
	ID              string
	Operation       Operation
	Source          string
	Protocol        Protocol
	Representations []profile.Representation
	OutputPath      string
	AutoLadder      bool
	IssuedAt        time.Time
}

// NewEngineRequest stamps a request with a fresh ID and issue time
func NewEngineRequest(op Operation, source string, protocol Protocol, reps []profile.Representation, outputPath string) *EngineRequest {
	return &EngineRequest{
		ID:              uuid.New().String(),
		Operation:       op,
		Source:          source,
		Protocol:        protocol,
		Representations: reps,
		OutputPath:      outputPath,
		IssuedAt:        time.Now(),
	}
}

// IsFinalize reports whether the request only finalizes existing output
func (r *EngineRequest) IsFinalize() bool {
	return strings.TrimSpace(r.Source) == ""
}

// TierNames returns the names of the requested representations in order
func (r *EngineRequest) TierNames() []string {
	names := make([]string, len(r.Representations))
	for i, rep := range r.Representations {
		names[i] = rep.Name
	}
	return names
}
