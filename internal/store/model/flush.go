package model

import "time"

// Flush audit statuses.
const (
	FlushStatusComplete = "COMPLETE"
	FlushStatusAborted  = "ABORTED"
)

// FlushAudit is the durable record of one corpus flush. It is written after
// the flush finishes and is independent of job logs, which the flush itself
// may have deleted.
type FlushAudit struct {
	ID           string `gorm:"primaryKey;column:id;type:VARCHAR(255)"`
	ProjectID    string `gorm:"not null;type:VARCHAR(255)"`
	Operator     string `gorm:"type:VARCHAR(255)"`
	TotalDeleted int64
	Status       string    `gorm:"not null;type:VARCHAR(50)"`
	StartedAt    time.Time `gorm:"not null"`
	CompletedAt  *time.Time
}

// VolumeCacheEntry caches a provider volume lookup so repeat rebuilds of the
// same keyword do not spend rate budget.
type VolumeCacheEntry struct {
	ID        string `gorm:"primaryKey;column:id;type:VARCHAR(255)"`
	Keyword   string `gorm:"not null;uniqueIndex"`
	Volume    int64
	FetchedAt time.Time `gorm:"not null"`
}
