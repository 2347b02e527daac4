package model

import (
	"encoding/json"
	"strings"
	"time"
)

// Snapshot lifecycle stages, from most to least certified.
const (
	LifecycleCertifiedFull = "CERTIFIED_FULL"
	LifecycleCertifiedLite = "CERTIFIED_LITE"
	LifecycleCertified     = "CERTIFIED"
	LifecycleValidatedLite = "VALIDATED_LITE"
	LifecycleValidated     = "VALIDATED"
	LifecycleHydrated      = "HYDRATED"
	LifecycleDraft         = "DRAFT"
	LifecycleUnknown       = "UNKNOWN"
)

var lifecycleOrder = []string{
	LifecycleCertifiedFull,
	LifecycleCertifiedLite,
	LifecycleCertified,
	LifecycleValidatedLite,
	LifecycleValidated,
	LifecycleHydrated,
	LifecycleDraft,
}

// LifecycleRank maps a lifecycle to its certification rank; lower is more
// certified. Unrecognized lifecycles rank behind everything known.
func LifecycleRank(lifecycle string) int {
	for i, l := range lifecycleOrder {
		if l == lifecycle {
			return i
		}
	}
	return len(lifecycleOrder) + 1
}

type SnapshotStats struct {
	ValidTotal    int `json:"valid_total"`
	KeywordsTotal int `json:"keywords_total"`
	Validated     int `json:"validated"`
	Zero          int `json:"zero"`
}

// Snapshot is a versioned point-in-time record set for one category.
// Certified snapshots are treated as immutable.
type Snapshot struct {
	ID         string `gorm:"primaryKey;column:id;type:VARCHAR(255)"`
	CategoryID string `gorm:"not null;index;type:VARCHAR(255)"`
	Country    string `gorm:"not null;type:VARCHAR(10)"`
	Language   string `gorm:"not null;type:VARCHAR(10)"`
	Lifecycle  string `gorm:"not null;type:VARCHAR(50)"`
	Stats      *JSONField[SnapshotStats] `gorm:"type:jsonb"`
	CreatedAt  time.Time                 `gorm:"not null"`
}

func (s Snapshot) String() string {
	val, _ := json.Marshal(s)
	return string(val)
}

// IsDiagnosticSnapshotID reports whether an id names a synthetic snapshot
// written by diagnostics tooling. Such ids must never become index pointers.
func IsDiagnosticSnapshotID(id string) bool {
	return strings.HasPrefix(id, "diag_") ||
		strings.HasPrefix(id, "v4_check_") ||
		strings.Contains(id, "integrity")
}

// IsWellFormedSnapshotID reports whether an id follows a known production
// naming convention and is not diagnostic.
func IsWellFormedSnapshotID(id string) bool {
	if id == "" || IsDiagnosticSnapshotID(id) {
		return false
	}
	return strings.HasPrefix(id, "snap_") || strings.HasPrefix(id, "cbv3_")
}
