package repository

import (
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"backend/internal/models"
)

type DebateRepository interface {
	GetByID(id string) (*models.Debate, error)
	GetByExternalID(externalID string) (*models.Debate, error)
	// Upsert writes the debate header, inserting or fully overwriting by
	// id. ConfirmationCount is written as passed; callers are responsible
	// for carrying the existing tally through a regeneration.
	Upsert(debate *models.Debate) error
	// UpdateResult writes the generator outcome onto an existing header.
	UpdateResult(id, summary string, severityScore float64, tags []string, status string) error
	UpdateSummary(id, summary string) error
	List() ([]*models.Debate, error)
	DeleteMessages(debateID string) error
	InsertMessage(msg *models.Message) (string, error)
	ListMessages(debateID string) ([]*models.Message, error)
	CountMessages(debateID string) (int, error)
	IncrementConfirmations(id string) (int, error)
	Stats() (*models.Stats, error)
}

type debateRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewDebateRepository(db *sqlx.DB, logger *zap.Logger) DebateRepository {
	return &debateRepository{db: db, logger: logger}
}

const debateColumns = `id, external_id, title, summary, severity_score, status, tags, source_url, confirmation_count, created_at`

func (r *debateRepository) GetByID(id string) (*models.Debate, error) {
	var debate models.Debate
	query := `SELECT ` + debateColumns + ` FROM debates WHERE id = $1`
	err := r.db.Get(&debate, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &debate, nil
}

func (r *debateRepository) GetByExternalID(externalID string) (*models.Debate, error) {
	var debate models.Debate
	query := `SELECT ` + debateColumns + ` FROM debates WHERE external_id = $1`
	err := r.db.Get(&debate, query, externalID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &debate, nil
}

func (r *debateRepository) Upsert(debate *models.Debate) error {
	query := `INSERT INTO debates (id, external_id, title, summary, severity_score, status, tags, source_url, confirmation_count)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	          ON CONFLICT (id) DO UPDATE SET
	              title = EXCLUDED.title,
	              summary = EXCLUDED.summary,
	              severity_score = EXCLUDED.severity_score,
	              status = EXCLUDED.status,
	              tags = EXCLUDED.tags,
	              source_url = EXCLUDED.source_url,
	              confirmation_count = EXCLUDED.confirmation_count`
	_, err := r.db.Exec(query, debate.ID, debate.ExternalID, debate.Title, debate.Summary,
		debate.SeverityScore, debate.Status, debate.Tags, debate.SourceURL, debate.ConfirmationCount)
	return err
}

func (r *debateRepository) UpdateResult(id, summary string, severityScore float64, tags []string, status string) error {
	query := `UPDATE debates SET summary = $1, severity_score = $2, tags = $3, status = $4 WHERE id = $5`
	result, err := r.db.Exec(query, summary, severityScore, pq.StringArray(tags), status, id)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return fmt.Errorf("debate not found: %s", id)
	}
	return nil
}

func (r *debateRepository) UpdateSummary(id, summary string) error {
	query := `UPDATE debates SET summary = $1 WHERE id = $2`
	_, err := r.db.Exec(query, summary, id)
	return err
}

func (r *debateRepository) List() ([]*models.Debate, error) {
	var debates []*models.Debate
	query := `SELECT ` + debateColumns + ` FROM debates ORDER BY created_at DESC`
	if err := r.db.Select(&debates, query); err != nil {
		return nil, err
	}
	return debates, nil
}

func (r *debateRepository) DeleteMessages(debateID string) error {
	_, err := r.db.Exec(`DELETE FROM messages WHERE debate_id = $1`, debateID)
	return err
}

func (r *debateRepository) InsertMessage(msg *models.Message) (string, error) {
	query := `INSERT INTO messages (debate_id, persona_id, persona_name, role, content, category, parent_id)
	          VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id, created_at`
	err := r.db.QueryRowx(query, msg.DebateID, msg.PersonaID, msg.PersonaName,
		msg.Role, msg.Content, msg.Category, msg.ParentID).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return "", err
	}
	return msg.ID, nil
}

func (r *debateRepository) ListMessages(debateID string) ([]*models.Message, error) {
	var messages []*models.Message
	query := `SELECT id, debate_id, persona_id, persona_name, role, content, category, parent_id, created_at
	          FROM messages WHERE debate_id = $1 ORDER BY created_at ASC`
	if err := r.db.Select(&messages, query, debateID); err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *debateRepository) CountMessages(debateID string) (int, error) {
	var count int
	err := r.db.Get(&count, `SELECT COUNT(*) FROM messages WHERE debate_id = $1`, debateID)
	return count, err
}

func (r *debateRepository) IncrementConfirmations(id string) (int, error) {
	var count int
	query := `UPDATE debates SET confirmation_count = confirmation_count + 1 WHERE id = $1 RETURNING confirmation_count`
	err := r.db.QueryRowx(query, id).Scan(&count)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, fmt.Errorf("debate not found: %s", id)
		}
		return 0, err
	}
	return count, nil
}

func (r *debateRepository) Stats() (*models.Stats, error) {
	stats := &models.Stats{}

	if err := r.db.Get(&stats.TotalDebates, `SELECT COUNT(*) FROM debates`); err != nil {
		return nil, err
	}
	if err := r.db.Get(&stats.TotalReports, `SELECT COUNT(*) FROM reports`); err != nil {
		return nil, err
	}
	if err := r.db.Get(&stats.TotalMessages, `SELECT COUNT(*) FROM messages`); err != nil {
		return nil, err
	}

	query := `SELECT COALESCE(SUM(confirmation_count), 0) AS confirmations,
	                 COALESCE(ROUND(AVG(severity_score)::numeric, 1), 0) AS avg_severity
	          FROM debates`
	row := r.db.QueryRowx(query)
	if err := row.Scan(&stats.TotalConfirmations, &stats.AverageSeverity); err != nil {
		r.logger.Error("Failed to aggregate debate stats", zap.Error(err))
		return nil, err
	}

	return stats, nil
}
