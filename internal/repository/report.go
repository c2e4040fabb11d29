package repository

import (
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"backend/internal/models"
)

type ReportRepository interface {
	Create(report *models.Report) error
	GetByID(id string) (*models.Report, error)
	List() ([]*models.Report, error)
	ListByStatus(status string) ([]*models.Report, error)
	// ListMachinePending returns pending reports whose title carries the
	// machine-originated prefix, oldest first.
	ListMachinePending(prefix string) ([]*models.Report, error)
	UpdateStatus(id, status string) error
	// Delete removes a report together with its debate and messages.
	// Administrative action only; the core never deletes reports.
	Delete(id string) error
}

type reportRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewReportRepository(db *sqlx.DB, logger *zap.Logger) ReportRepository {
	return &reportRepository{db: db, logger: logger}
}

const reportColumns = `id, title, content, location, source_url, status, created_at`

func (r *reportRepository) Create(report *models.Report) error {
	query := `INSERT INTO reports (title, content, location, source_url, status)
	          VALUES ($1, $2, $3, $4, $5) RETURNING ` + reportColumns
	return r.db.QueryRowx(query, report.Title, report.Content, report.Location,
		report.SourceURL, report.Status).StructScan(report)
}

func (r *reportRepository) GetByID(id string) (*models.Report, error) {
	var report models.Report
	query := `SELECT ` + reportColumns + ` FROM reports WHERE id = $1`
	err := r.db.Get(&report, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Report not found
		}
		return nil, err
	}
	return &report, nil
}

func (r *reportRepository) List() ([]*models.Report, error) {
	var reports []*models.Report
	query := `SELECT ` + reportColumns + ` FROM reports ORDER BY created_at DESC`
	if err := r.db.Select(&reports, query); err != nil {
		return nil, err
	}
	return reports, nil
}

func (r *reportRepository) ListByStatus(status string) ([]*models.Report, error) {
	var reports []*models.Report
	query := `SELECT ` + reportColumns + ` FROM reports WHERE status = $1 ORDER BY created_at DESC`
	if err := r.db.Select(&reports, query, status); err != nil {
		return nil, err
	}
	return reports, nil
}

func (r *reportRepository) ListMachinePending(prefix string) ([]*models.Report, error) {
	var reports []*models.Report
	query := `SELECT ` + reportColumns + ` FROM reports
	          WHERE status = $1 AND title LIKE $2 ORDER BY created_at ASC`
	if err := r.db.Select(&reports, query, models.ReportStatusPending, prefix+"%"); err != nil {
		return nil, err
	}
	return reports, nil
}

func (r *reportRepository) UpdateStatus(id, status string) error {
	query := `UPDATE reports SET status = $1 WHERE id = $2`
	result, err := r.db.Exec(query, status, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return fmt.Errorf("report not found: %s", id)
	}
	return nil
}

func (r *reportRepository) Delete(id string) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Messages and the debate row go first; the debates FK to reports is
	// not ON DELETE CASCADE so stale headers never outlive their report.
	if _, err := tx.Exec(`DELETE FROM messages WHERE debate_id IN (SELECT id FROM debates WHERE external_id = $1)`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM debates WHERE external_id = $1`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM reports WHERE id = $1`, id); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	r.logger.Info("Report deleted with cascading debate cleanup", zap.String("report_id", id))
	return nil
}
