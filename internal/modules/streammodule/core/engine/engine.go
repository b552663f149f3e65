// Package engine hands stream requests to the transcoding backend.
//
// Dispatch is fire-and-forget: a nil error means the request was accepted,
// not that the stream is playable. Requests with an empty source finalize
// whatever is currently writing the request's output path.
package engine

import (
	"context"

	"github.com/mantonx/streamctl/internal/modules/streammodule/types"
)

// Engine accepts start and finalize requests
type Engine interface {
	Dispatch(ctx context.Context, req *types.EngineRequest) error
}

// EngineFunc adapts a function to the Engine interface
type EngineFunc func(ctx context.Context, req *types.EngineRequest) error

// Dispatch calls f(ctx, req)
func (f EngineFunc) Dispatch(ctx context.Context, req *types.EngineRequest) error {
	return f(ctx, req)
}
