// Package repository provides data access for the dispatch log
package repository

import (
	"context"
	"time"

	"github.com/mantonx/streamctl/internal/database"
	"gorm.io/gorm"
)

// DispatchRepository handles dispatch record data access
type DispatchRepository struct {
	db *gorm.DB
}

// NewDispatchRepository creates a new dispatch repository
func NewDispatchRepository(db *gorm.DB) *DispatchRepository {
	return &DispatchRepository{db: db}
}

// Create stores a dispatch record
func (r *DispatchRepository) Create(ctx context.Context, record *database.DispatchRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// GetByID retrieves a record by request ID
func (r *DispatchRepository) GetByID(ctx context.Context, id string) (*database.DispatchRecord, error) {
	var record database.DispatchRecord
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// ListRecent returns the newest records first
func (r *DispatchRepository) ListRecent(ctx context.Context, limit int) ([]*database.DispatchRecord, error) {
	var records []*database.DispatchRecord
	err := r.db.WithContext(ctx).
		Order("issued_at DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

// ListByOutput returns every request issued for an output path, oldest first
func (r *DispatchRepository) ListByOutput(ctx context.Context, outputPath string) ([]*database.DispatchRecord, error) {
	var records []*database.DispatchRecord
	err := r.db.WithContext(ctx).
		Where("output_path = ?", outputPath).
		Order("issued_at ASC").
		Find(&records).Error
	return records, err
}

// CleanupOlderThan removes records issued before the cutoff
func (r *DispatchRepository) CleanupOlderThan(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	result := r.db.WithContext(ctx).
		Where("issued_at < ?", cutoff).
		Delete(&database.DispatchRecord{})
	return result.RowsAffected, result.Error
}
