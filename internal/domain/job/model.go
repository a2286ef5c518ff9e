package job

import (
	"fmt"
	"time"
)

// Status mirrors the on-chain job status ordinal.
type Status uint8

const (
	StatusUnknown   Status = 0
	StatusOpen      Status = 1
	StatusHired     Status = 2
	StatusCancelled Status = 3
	StatusCompleted Status = 4
)

// MaxQueryStatus is the highest ordinal accepted by the HTTP boundary.
const MaxQueryStatus Status = 5

// ZeroAddress is the sentinel the registry uses for unset addresses.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

func (s Status) String() string {
	switch s {
	case StatusUnknown:
		return "unknown"
	case StatusOpen:
		return "open"
	case StatusHired:
		return "hired"
	case StatusCancelled:
		return "cancelled"
	case StatusCompleted:
		return "completed"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// IsTerminal reports whether the registry can no longer move a job out of s.
func (s Status) IsTerminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

// Job is the denormalized view of one registry record.
type Job struct {
	ID          uint64  `gorm:"primaryKey;autoIncrement:false;column:id" json:"id"`
	Client      string  `gorm:"size:42;not null;index;column:client" json:"client"`
	Freelancer  *string `gorm:"size:42;column:freelancer" json:"freelancer"`
	Status      Status  `gorm:"not null;index;column:status" json:"status"`
	Budget      string  `gorm:"size:78;not null;default:'0';column:budget" json:"budget"`
	Escrow      string  `gorm:"size:42;not null;column:escrow" json:"escrow"`
	MetadataURI string  `gorm:"type:text;column:metadata_uri" json:"metadataURI"`
}

// HasEscrow reports whether the escrow contract has been deployed.
func (j *Job) HasEscrow() bool {
	return j.Escrow != "" && j.Escrow != ZeroAddress
}

// Entry is a cached Job plus the marker of when it was last mirrored.
type Entry struct {
	Job         `gorm:"embedded"`
	SyncedBlock uint64    `gorm:"not null;default:0;column:synced_block" json:"syncedBlock"`
	SyncedAt    time.Time `gorm:"not null;index;column:synced_at" json:"syncedAt"`
}

// TableName specifies the database table name
func (Entry) TableName() string {
	return "cached_jobs"
}
