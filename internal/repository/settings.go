package repository

import (
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"backend/internal/models"
)

type SettingsRepository interface {
	Read() (*models.SchedulerState, error)
	EnsureDefaults() error
	SetWorkerEnabled(enabled bool) error
	SetRunStatus(status string) error
	UpdateLastRun(status string) error
	SetRunWindow(window string) error
}

type settingsRepository struct {
	db       *sqlx.DB
	logger   *zap.Logger
	defaults models.SchedulerState
}

// NewSettingsRepository creates the scheduler-state store. The defaults are
// returned when the singleton row is missing (before the first write).
func NewSettingsRepository(db *sqlx.DB, logger *zap.Logger, defaults models.SchedulerState) SettingsRepository {
	return &settingsRepository{db: db, logger: logger, defaults: defaults}
}

func (r *settingsRepository) Read() (*models.SchedulerState, error) {
	var state models.SchedulerState
	query := `SELECT worker_enabled, last_run, last_run_status, run_window, updated_at
	          FROM system_settings WHERE id = 1`
	err := r.db.Get(&state, query)
	if err != nil {
		if err == sql.ErrNoRows {
			// The migration seeds the row; fall back to defaults anyway
			// so a wiped table does not take the scheduler down.
			r.logger.Warn("system_settings row missing, using defaults")
			state = r.defaults
			return &state, nil
		}
		return nil, err
	}
	return &state, nil
}

// EnsureDefaults creates the singleton row from the configured defaults on
// a fresh database. An existing row is left untouched so API toggles
// survive restarts.
func (r *settingsRepository) EnsureDefaults() error {
	query := `INSERT INTO system_settings (id, worker_enabled, run_window)
	          VALUES (1, $1, $2) ON CONFLICT (id) DO NOTHING`
	_, err := r.db.Exec(query, r.defaults.WorkerEnabled, r.defaults.RunWindow)
	return err
}

func (r *settingsRepository) SetWorkerEnabled(enabled bool) error {
	query := `UPDATE system_settings SET worker_enabled = $1, updated_at = $2 WHERE id = 1`
	_, err := r.db.Exec(query, enabled, time.Now())
	return err
}

// SetRunStatus records an in-flight status without touching last_run, so
// the daily gate only closes once the mission actually completes.
func (r *settingsRepository) SetRunStatus(status string) error {
	query := `UPDATE system_settings SET last_run_status = $1, updated_at = $2 WHERE id = 1`
	_, err := r.db.Exec(query, status, time.Now())
	return err
}

// UpdateLastRun stamps the completed mission: outcome plus the timestamp
// the calendar-day gate checks against.
func (r *settingsRepository) UpdateLastRun(status string) error {
	query := `UPDATE system_settings SET last_run = $1, last_run_status = $2, updated_at = $1 WHERE id = 1`
	_, err := r.db.Exec(query, time.Now(), status)
	return err
}

func (r *settingsRepository) SetRunWindow(window string) error {
	query := `UPDATE system_settings SET run_window = $1, updated_at = $2 WHERE id = 1`
	_, err := r.db.Exec(query, window, time.Now())
	return err
}
