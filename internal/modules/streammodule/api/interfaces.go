// This file defines what the API layer needs from the rest of the module.

package api

import (
	"context"

	"github.com/mantonx/streamctl/internal/database"
	"github.com/mantonx/streamctl/internal/modules/streammodule/core/process"
	"github.com/mantonx/streamctl/internal/modules/streammodule/types"
)

// StreamController starts and stops streams
type StreamController interface {
	Start(ctx context.Context, job types.StreamJob) (*types.EngineRequest, error)
	Stop(ctx context.Context, output string, protocol types.Protocol) (string, error)
	ResolveOutput(output string) (string, error)
}

// ProcessLister reports running engine processes
type ProcessLister interface {
	Processes() []process.Entry
}

// DispatchHistory reads the dispatch log
type DispatchHistory interface {
	ListRecent(ctx context.Context, limit int) ([]*database.DispatchRecord, error)
	ListByOutput(ctx context.Context, outputPath string) ([]*database.DispatchRecord, error)
	GetByID(ctx context.Context, id string) (*database.DispatchRecord, error)
}
