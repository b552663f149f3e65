package repository

import (
	"context"
	"time"

	"github.com/hashicorp/go-hclog"
)

// CleanupService periodically deletes dispatch records past their retention
type CleanupService struct {
	repo      *DispatchRepository
	retention time.Duration
	interval  time.Duration
	logger    hclog.Logger
}

// NewCleanupService creates a cleanup service for repo
func NewCleanupService(repo *DispatchRepository, retention, interval time.Duration, logger hclog.Logger) *CleanupService {
	return &CleanupService{
		repo:      repo,
		retention: retention,
		interval:  interval,
		logger:    logger,
	}
}

// Run cleans up once immediately, then every interval until ctx is cancelled
func (cs *CleanupService) Run(ctx context.Context) {
	cs.logger.Info("starting dispatch log cleanup", "retention", cs.retention, "interval", cs.interval)

	ticker := time.NewTicker(cs.interval)
	defer ticker.Stop()

	cs.RunOnce(ctx)

	for {
		select {
		case <-ticker.C:
			cs.RunOnce(ctx)
		case <-ctx.Done():
			cs.logger.Info("dispatch log cleanup stopped")
			return
		}
	}
}

// RunOnce deletes the expired records and returns how many were removed
func (cs *CleanupService) RunOnce(ctx context.Context) int64 {
	count, err := cs.repo.CleanupOlderThan(ctx, cs.retention)
	if err != nil {
		cs.logger.Error("failed to clean up dispatch records", "error", err)
		return 0
	}
	if count > 0 {
		cs.logger.Info("cleaned up dispatch records", "count", count)
	}
	return count
}
