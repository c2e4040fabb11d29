package vectorstore

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"backend/internal/models"
)

// Store is the RAG collaborator: it embeds finished debates and retrieves
// context from semantically similar past debates. All methods are
// best-effort from the orchestrator's point of view; errors are returned
// for logging, never fatal to a run.
type Store struct {
	db         *sqlx.DB
	client     *genai.Client
	embedder   *genai.EmbeddingModel
	query      *genai.EmbeddingModel
	dimensions int
	matchCount int
	logger     *zap.Logger
}

// Config for the vector store.
type Config struct {
	APIKey     string
	Model      string // Default: "text-embedding-004"
	Dimensions int
	MatchCount int
}

// New creates the vector store. Returns nil without error when no API key
// is configured; callers treat a nil store as RAG disabled.
func New(db *sqlx.DB, cfg Config, logger *zap.Logger) (*Store, error) {
	if cfg.APIKey == "" {
		logger.Info("Vector store disabled (no API key configured)")
		return nil, nil
	}

	if cfg.Model == "" {
		cfg.Model = "text-embedding-004"
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = 768
	}
	if cfg.MatchCount == 0 {
		cfg.MatchCount = 3
	}

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding client: %w", err)
	}

	embedder := client.EmbeddingModel(cfg.Model)
	embedder.TaskType = genai.TaskTypeRetrievalDocument

	query := client.EmbeddingModel(cfg.Model)
	query.TaskType = genai.TaskTypeRetrievalQuery

	logger.Info("Vector store initialized",
		zap.String("model", cfg.Model),
		zap.Int("dimensions", cfg.Dimensions))

	return &Store{
		db:         db,
		client:     client,
		embedder:   embedder,
		query:      query,
		dimensions: cfg.Dimensions,
		matchCount: cfg.MatchCount,
		logger:     logger,
	}, nil
}

// Close releases the embedding client.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return s.client.Close()
}

// StoreDebate embeds a finished debate header and upserts it into the
// similarity index.
func (s *Store) StoreDebate(ctx context.Context, debate *models.Debate) error {
	if s == nil {
		return nil
	}

	content := fmt.Sprintf("%s\n%s\nTags: %s", debate.Title, debate.Summary, strings.Join(debate.Tags, ", "))
	vec, err := s.embed(ctx, s.embedder, content)
	if err != nil {
		return err
	}

	query := `INSERT INTO debate_embeddings (debate_id, content, embedding)
	          VALUES ($1, $2, $3::vector)
	          ON CONFLICT (debate_id) DO UPDATE SET
	              content = EXCLUDED.content,
	              embedding = EXCLUDED.embedding`
	if _, err := s.db.ExecContext(ctx, query, debate.ID, content, vectorLiteral(vec)); err != nil {
		return fmt.Errorf("failed to store debate embedding: %w", err)
	}

	s.logger.Debug("Debate embedding stored", zap.String("debate_id", debate.ID))
	return nil
}

type matchRow struct {
	DebateID   string  `db:"debate_id"`
	Content    string  `db:"content"`
	Similarity float64 `db:"similarity"`
}

// ContextFor retrieves a text block summarizing past debates semantically
// similar to the topic, or an empty string when nothing relevant exists.
func (s *Store) ContextFor(ctx context.Context, topic string) (string, error) {
	if s == nil {
		return "", nil
	}

	vec, err := s.embed(ctx, s.query, topic)
	if err != nil {
		return "", err
	}

	var rows []matchRow
	query := `SELECT debate_id, content, similarity
	          FROM match_debates($1::vector, $2)`
	if err := s.db.SelectContext(ctx, &rows, query, vectorLiteral(vec), s.matchCount); err != nil {
		return "", fmt.Errorf("failed to match debates: %w", err)
	}

	if len(rows) == 0 {
		return "", nil
	}

	var b strings.Builder
	b.WriteString("ARCHIVE CONTEXT (similar past debates):\n")
	for i, row := range rows {
		fmt.Fprintf(&b, "\n[%d] (similarity %.2f)\n%s\n", i+1, row.Similarity, row.Content)
	}
	return b.String(), nil
}

func (s *Store) embed(ctx context.Context, model *genai.EmbeddingModel, text string) ([]float32, error) {
	resp, err := model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
		return nil, fmt.Errorf("empty embedding response")
	}
	return resp.Embedding.Values, nil
}

// vectorLiteral renders a float32 slice in pgvector's input format.
func vectorLiteral(vec []float32) string {
	parts := make([]string, len(vec))
	for i, v := range vec {
		parts[i] = strconv.FormatFloat(float64(v), 'f', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
