package model

import "time"

// Keyword row statuses.
const (
	RowStatusValid      = "VALID"
	RowStatusLow        = "LOW"
	RowStatusZero       = "ZERO"
	RowStatusUnverified = "UNVERIFIED"
)

// KeywordRow is one keyword/volume observation inside a snapshot. This is the
// high-cardinality table: a snapshot commonly carries thousands of rows.
type KeywordRow struct {
	ID           string `gorm:"primaryKey;column:id;type:VARCHAR(255)"`
	SnapshotID   string `gorm:"not null;index;type:VARCHAR(255)"`
	CategoryID   string `gorm:"not null;index;type:VARCHAR(255)"`
	Keyword      string `gorm:"not null"`
	Volume       int64
	Status       string `gorm:"not null;type:VARCHAR(50)"`
	Active       bool
	IntentBucket string    `gorm:"type:VARCHAR(100)"`
	CreatedAt    time.Time `gorm:"not null"`
}

// IsValid reports whether the row counts toward a snapshot's valid total:
// it must be active and either marked VALID or carrying observed volume.
func (r *KeywordRow) IsValid() bool {
	return r.Active && (r.Status == RowStatusValid || r.Volume > 0)
}
