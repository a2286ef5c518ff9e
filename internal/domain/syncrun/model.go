package syncrun

import (
	"time"

	"gorm.io/datatypes"
)

// Run records one ingestion pass over the job registry.
type Run struct {
	ID         string         `gorm:"primaryKey;size:36;column:id" json:"id"`
	StartedAt  time.Time      `gorm:"not null;column:started_at" json:"startedAt"`
	FinishedAt time.Time      `gorm:"not null;index;column:finished_at" json:"finishedAt"`
	HeadBlock  uint64         `gorm:"not null;column:head_block" json:"headBlock"`
	JobCount   uint64         `gorm:"not null;column:job_count" json:"jobCount"`
	Fetched    int            `gorm:"not null;column:fetched" json:"fetched"`
	Failed     int            `gorm:"not null;column:failed" json:"failed"`
	Skipped    int            `gorm:"not null;default:0;column:skipped" json:"skipped"` // ids the registry cannot serve
	Success    bool           `gorm:"not null;index;column:success" json:"success"`
	Errors     datatypes.JSON `gorm:"column:errors" json:"errors,omitempty"`
}

// TableName specifies the database table name
func (Run) TableName() string {
	return "sync_runs"
}
