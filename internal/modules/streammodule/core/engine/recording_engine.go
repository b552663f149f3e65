package engine

import (
	"context"

	"github.com/hashicorp/go-hclog"
	"github.com/mantonx/streamctl/internal/database"
	"github.com/mantonx/streamctl/internal/modules/streammodule/types"
)

// Recorder persists dispatch records
type Recorder interface {
	Create(ctx context.Context, record *database.DispatchRecord) error
}

// RecordingEngine logs every request to a Recorder before returning the
// wrapped engine's result. Failing to record never fails the dispatch.
type RecordingEngine struct {
	next     Engine
	recorder Recorder
	logger   hclog.Logger
}

// NewRecordingEngine wraps next so its requests are recorded
func NewRecordingEngine(next Engine, recorder Recorder, logger hclog.Logger) *RecordingEngine {
	return &RecordingEngine{next: next, recorder: recorder, logger: logger}
}

// Dispatch forwards req and records the outcome
func (e *RecordingEngine) Dispatch(ctx context.Context, req *types.EngineRequest) error {
	dispatchErr := e.next.Dispatch(ctx, req)

	record := NewDispatchRecord(req, dispatchErr)
	if err := e.recorder.Create(context.WithoutCancel(ctx), record); err != nil {
		e.logger.Warn("failed to record dispatch", "request_id", req.ID, "error", err)
	}

	return dispatchErr
}

// NewDispatchRecord converts a request and its dispatch result into a record
func NewDispatchRecord(req *types.EngineRequest, dispatchErr error) *database.DispatchRecord {
	record := &database.DispatchRecord{
		ID:         req.ID,
		Operation:  string(req.Operation),
		Source:     req.Source,
		Protocol:   string(req.Protocol),
		OutputPath: req.OutputPath,
		AutoLadder: req.AutoLadder,
		IssuedAt:   req.IssuedAt,
	}
	// A []string always marshals
	_ = record.SetTiers(req.TierNames())
	if dispatchErr != nil {
		record.Error = dispatchErr.Error()
	}
	return record
}
