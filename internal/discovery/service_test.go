package discovery

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"backend/internal/llm"
	"backend/internal/models"
)

type fakeSearcher struct {
	findings []llm.Finding
	err      error
	queries  []string
}

func (f *fakeSearcher) Search(ctx context.Context, query string) ([]llm.Finding, error) {
	f.queries = append(f.queries, query)
	return f.findings, f.err
}

type fakeGenerator struct {
	discovery *models.TopicDiscovery
	err       error
}

func (f *fakeGenerator) GenerateDebate(context.Context, string) (*models.DebateResult, error) {
	return nil, errors.New("not used")
}
func (f *fakeGenerator) GenerateDiscovery(context.Context, string) (*models.TopicDiscovery, error) {
	return f.discovery, f.err
}
func (f *fakeGenerator) Close() error                      { return nil }
func (f *fakeGenerator) ModelInfo() map[string]interface{} { return nil }

type fakeReportRepo struct {
	created []*models.Report
	err     error
}

func (f *fakeReportRepo) Create(report *models.Report) error {
	if f.err != nil {
		return f.err
	}
	report.ID = "r1"
	f.created = append(f.created, report)
	return nil
}
func (f *fakeReportRepo) GetByID(string) (*models.Report, error)        { return nil, nil }
func (f *fakeReportRepo) List() ([]*models.Report, error)               { return nil, nil }
func (f *fakeReportRepo) ListByStatus(string) ([]*models.Report, error) { return nil, nil }
func (f *fakeReportRepo) ListMachinePending(string) ([]*models.Report, error) {
	return nil, nil
}
func (f *fakeReportRepo) UpdateStatus(string, string) error { return nil }
func (f *fakeReportRepo) Delete(string) error               { return nil }

func TestRunMissionFilesPrefixedReport(t *testing.T) {
	searcher := &fakeSearcher{findings: []llm.Finding{
		{Title: "Town requires permit for permits", URL: "https://example.org/a", Content: "..."},
	}}
	gen := &fakeGenerator{discovery: &models.TopicDiscovery{
		Title:       "Permit for permits",
		Description: "The town hall requires a permit to apply for permits.",
		SourceURL:   "https://example.org/a",
	}}
	repo := &fakeReportRepo{}

	svc := NewService(searcher, gen, repo, []string{"absurd bureaucracy"}, "[SCOUT]", zap.NewNop())
	result := svc.RunMission(context.Background())

	assert.Equal(t, MissionSuccess, result.Status)
	assert.Equal(t, "r1", result.ReportID)
	require.Len(t, repo.created, 1)

	report := repo.created[0]
	assert.True(t, strings.HasPrefix(report.Title, "[SCOUT] "), "title %q must carry the machine prefix", report.Title)
	assert.Equal(t, models.ReportStatusPending, report.Status)
	require.NotNil(t, report.Location)
	assert.Equal(t, "INTERNET", *report.Location)
}

func TestRunMissionEmptyWhenNothingFound(t *testing.T) {
	svc := NewService(&fakeSearcher{}, &fakeGenerator{}, &fakeReportRepo{},
		[]string{"q"}, "[SCOUT]", zap.NewNop())

	result := svc.RunMission(context.Background())
	assert.Equal(t, MissionEmpty, result.Status)
}

func TestRunMissionErrorOnSearchFailure(t *testing.T) {
	searcher := &fakeSearcher{err: errors.New("upstream 503")}
	svc := NewService(searcher, &fakeGenerator{}, &fakeReportRepo{},
		[]string{"q"}, "[SCOUT]", zap.NewNop())

	result := svc.RunMission(context.Background())
	assert.Equal(t, MissionError, result.Status)
	assert.Contains(t, result.Message, "search failed")
}

func TestRunMissionErrorOnRedactionFailure(t *testing.T) {
	searcher := &fakeSearcher{findings: []llm.Finding{{Title: "t", URL: "u"}}}
	gen := &fakeGenerator{err: errors.New("model unavailable")}
	svc := NewService(searcher, gen, &fakeReportRepo{},
		[]string{"q"}, "[SCOUT]", zap.NewNop())

	result := svc.RunMission(context.Background())
	assert.Equal(t, MissionError, result.Status)
	assert.Contains(t, result.Message, "redaction failed")
}

func TestRunMissionEmptyWithoutQueries(t *testing.T) {
	svc := NewService(&fakeSearcher{}, &fakeGenerator{}, &fakeReportRepo{},
		nil, "[SCOUT]", zap.NewNop())

	result := svc.RunMission(context.Background())
	assert.Equal(t, MissionEmpty, result.Status)
}

func TestResearchRendersBlock(t *testing.T) {
	searcher := &fakeSearcher{findings: []llm.Finding{
		{Title: "Fresh coverage", URL: "https://example.org", Content: "details"},
	}}
	svc := NewService(searcher, &fakeGenerator{}, &fakeReportRepo{},
		[]string{"q"}, "[SCOUT]", zap.NewNop())

	block, err := svc.Research(context.Background(), "permit loop")
	require.NoError(t, err)
	assert.Contains(t, block, "Fresh coverage")
	assert.Equal(t, []string{"permit loop"}, searcher.queries)
}
