package models

import "time"

// Scheduler run outcomes recorded in system_settings.last_run_status.
const (
	RunStatusRunning = "running"
	RunStatusSuccess = "success"
	RunStatusEmpty   = "empty"
)

// RunStatusError formats a failed run outcome with its cause attached, so
// the admin panel can show why the last cycle did not complete.
func RunStatusError(detail string) string {
	return "error: " + detail
}

// SchedulerState is the single-row worker state stored in the
// 'system_settings' table. Mutated only by the scheduler and the settings
// endpoint.
type SchedulerState struct {
	WorkerEnabled bool       `db:"worker_enabled" json:"worker_enabled"`
	LastRunAt     *time.Time `db:"last_run" json:"last_run_at,omitempty"`
	LastRunStatus string     `db:"last_run_status" json:"last_run_status"`
	RunWindow     string     `db:"run_window" json:"run_window"` // "HH:MM" time of day
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}
