package model

import (
	"encoding/json"
	"time"
)

// Job kinds.
const (
	JobKindResetRebuild = "RESET_REBUILD"
	JobKindAudit        = "AUDIT"
	JobKindIndexRepair  = "INDEX_REPAIR"
)

// Job statuses. Failed and Completed are terminal; Stopped and Partial may be
// resumed with a fresh orchestrator run.
const (
	JobStatusInitializing  = "INITIALIZING"
	JobStatusRunning       = "RUNNING"
	JobStatusPartial       = "PARTIAL"
	JobStatusStopRequested = "STOP_REQUESTED"
	JobStatusStopped       = "STOPPED"
	JobStatusFailed        = "FAILED"
	JobStatusCompleted     = "COMPLETED"
)

// Job phases, in forward order.
const (
	JobPhaseIdle       = "IDLE"
	JobPhasePreflight  = "PREFLIGHT"
	JobPhaseFlushing   = "FLUSHING"
	JobPhaseRebuilding = "REBUILDING"
	JobPhaseVerifying  = "VERIFYING"
	JobPhaseCompleted  = "COMPLETED"
)

// ScopeGlobal marks a job that spans the whole corpus rather than one category.
const ScopeGlobal = "GLOBAL"

// JobLogCap bounds the ring buffer of job log lines.
const JobLogCap = 1000

type JobProgress struct {
	Flushed  int `json:"flushed"`
	Rebuilt  int `json:"rebuilt"`
	Verified int `json:"verified"`
}

// Job is the durable record of one orchestration run. It has a single writer,
// the orchestrator holding its id; observers only ever read it.
type Job struct {
	ID            string `gorm:"primaryKey;column:id;type:VARCHAR(255)"`
	Kind          string `gorm:"not null;type:VARCHAR(100)"`
	Scope         string `gorm:"not null;index;type:VARCHAR(255)"`
	Status        string `gorm:"not null;type:VARCHAR(50)"`
	Phase         string `gorm:"not null;type:VARCHAR(50)"`
	Message       string
	Error         string
	StopRequested bool
	Progress      *JSONField[JobProgress] `gorm:"type:jsonb"`
	Logs          *JSONField[[]string]    `gorm:"type:jsonb"`
	StartedAt     time.Time               `gorm:"not null;index"`
	UpdatedAt     *time.Time
	CompletedAt   *time.Time
}

func (j Job) String() string {
	val, _ := json.Marshal(j)
	return string(val)
}

// IsTerminal reports whether no further writes to the job are expected.
func (j *Job) IsTerminal() bool {
	return j.Status == JobStatusFailed || j.Status == JobStatusCompleted
}
