package database

import (
	"encoding/json"
	"time"
)

// DispatchRecord is the audit entry for one request handed to the engine
type DispatchRecord struct {
	ID         string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Operation  string    `gorm:"type:varchar(16);not null;index" json:"operation"`
	Source     string    `gorm:"type:text" json:"source"`
	Protocol   string    `gorm:"type:varchar(16);not null" json:"protocol"`
	OutputPath string    `gorm:"type:varchar(512);not null;index" json:"output_path"`
	Tiers      string    `gorm:"type:text" json:"-"` // JSON array of tier names
	AutoLadder bool      `json:"auto_ladder"`
	IssuedAt   time.Time `gorm:"not null;index" json:"issued_at"`
	Error      string    `gorm:"type:text" json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName returns the table name for GORM
func (DispatchRecord) TableName() string {
	return "dispatch_records"
}

// GetTiers deserializes the Tiers JSON string
func (r *DispatchRecord) GetTiers() ([]string, error) {
	if r.Tiers == "" {
		return nil, nil
	}
	var tiers []string
	if err := json.Unmarshal([]byte(r.Tiers), &tiers); err != nil {
		return nil, err
	}
	return tiers, nil
}

// SetTiers serializes tier names into the Tiers column
func (r *DispatchRecord) SetTiers(tiers []string) error {
	data, err := json.Marshal(tiers)
	if err != nil {
		return err
	}
	r.Tiers = string(data)
	return nil
}
