package repository

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"backend/internal/models"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func reportRows(reports ...*models.Report) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "title", "content", "location", "source_url", "status", "created_at"})
	for _, r := range reports {
		rows.AddRow(r.ID, r.Title, r.Content, r.Location, r.SourceURL, r.Status, r.CreatedAt)
	}
	return rows
}

func TestReportGetByIDNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewReportRepository(db, zap.NewNop())

	mock.ExpectQuery(`SELECT .+ FROM reports WHERE id = \$1`).
		WithArgs("missing").
		WillReturnRows(reportRows())

	report, err := repo.GetByID("missing")
	require.NoError(t, err, "absence is not an error")
	assert.Nil(t, report)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportGetByID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewReportRepository(db, zap.NewNop())

	want := &models.Report{
		ID: "r1", Title: "Permit loop", Content: "...",
		Status: models.ReportStatusPending, CreatedAt: time.Now(),
	}
	mock.ExpectQuery(`SELECT .+ FROM reports WHERE id = \$1`).
		WithArgs("r1").
		WillReturnRows(reportRows(want))

	got, err := repo.GetByID("r1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.Title, got.Title)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportListMachinePending(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewReportRepository(db, zap.NewNop())

	mock.ExpectQuery(`SELECT .+ FROM reports\s+WHERE status = \$1 AND title LIKE \$2 ORDER BY created_at ASC`).
		WithArgs(models.ReportStatusPending, "[SCOUT]%").
		WillReturnRows(reportRows(
			&models.Report{ID: "r1", Title: "[SCOUT] old", Status: models.ReportStatusPending},
			&models.Report{ID: "r2", Title: "[SCOUT] new", Status: models.ReportStatusPending},
		))

	reports, err := repo.ListMachinePending("[SCOUT]")
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, "r1", reports[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportUpdateStatusNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewReportRepository(db, zap.NewNop())

	mock.ExpectExec(`UPDATE reports SET status = \$1 WHERE id = \$2`).
		WithArgs(models.ReportStatusApproved, "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus("missing", models.ReportStatusApproved)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportDeleteCascades(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewReportRepository(db, zap.NewNop())

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM messages WHERE debate_id IN`).
		WithArgs("r1").
		WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectExec(`DELETE FROM debates WHERE external_id = \$1`).
		WithArgs("r1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM reports WHERE id = \$1`).
		WithArgs("r1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Delete("r1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
