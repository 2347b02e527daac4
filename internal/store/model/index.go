package model

import (
	"fmt"
	"time"
)

type KeywordTotals struct {
	Valid     int `json:"valid"`
	Total     int `json:"total"`
	Validated int `json:"validated"`
	Zero      int `json:"zero"`
}

// IndexPointer maps a category to its currently active snapshot. Keys use the
// canonical "<category>_<COUNTRY>_<language>" spelling; legacy spellings are
// normalized once by migration, never probed at read time.
type IndexPointer struct {
	ID               string `gorm:"primaryKey;column:id;type:VARCHAR(255)"`
	CategoryID       string `gorm:"not null;index;type:VARCHAR(255)"`
	Country          string `gorm:"not null;type:VARCHAR(10)"`
	Language         string `gorm:"not null;type:VARCHAR(10)"`
	ActiveSnapshotID string `gorm:"type:VARCHAR(255)"`
	SnapshotStatus   string `gorm:"type:VARCHAR(50)"`
	Totals           *JSONField[KeywordTotals] `gorm:"type:jsonb"`
	Source           string                    `gorm:"type:VARCHAR(100)"`
	UpdatedAt        time.Time
}

// PointerKey builds the canonical index pointer key.
func PointerKey(categoryID, country, language string) string {
	return fmt.Sprintf("%s_%s_%s", categoryID, country, language)
}
