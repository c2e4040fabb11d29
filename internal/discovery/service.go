package discovery

import (
	"context"
	"fmt"
	"math/rand"

	"go.uber.org/zap"

	"backend/internal/llm"
	"backend/internal/models"
	"backend/internal/repository"
)

// Mission outcome statuses.
const (
	MissionSuccess = "success"
	MissionEmpty   = "empty"
	MissionError   = "error"
)

// MissionResult summarizes one discovery mission.
type MissionResult struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Findings int    `json:"findings"`
	Title    string `json:"title,omitempty"`
	ReportID string `json:"report_id,omitempty"`
}

// Searcher is the minimal web search dependency of the mission service.
type Searcher interface {
	Search(ctx context.Context, query string) ([]llm.Finding, error)
}

// Service runs discovery missions: search the web, redact the findings into
// a report candidate, file it as a pending machine-originated report.
type Service struct {
	searcher      Searcher
	generator     llm.Generator
	reportRepo    repository.ReportRepository
	queries       []string
	machinePrefix string
	logger        *zap.Logger
}

// NewService creates the mission service. Queries are rotated randomly so
// consecutive missions cover different angles of the beat.
func NewService(
	searcher Searcher,
	generator llm.Generator,
	reportRepo repository.ReportRepository,
	queries []string,
	machinePrefix string,
	logger *zap.Logger,
) *Service {
	return &Service{
		searcher:      searcher,
		generator:     generator,
		reportRepo:    reportRepo,
		queries:       queries,
		machinePrefix: machinePrefix,
		logger:        logger,
	}
}

// RunMission executes one full discovery mission.
func (s *Service) RunMission(ctx context.Context) *MissionResult {
	if len(s.queries) == 0 {
		return &MissionResult{Status: MissionEmpty, Message: "no discovery queries configured"}
	}

	query := s.queries[rand.Intn(len(s.queries))]
	s.logger.Info("Starting discovery mission", zap.String("query", query))

	findings, err := s.searcher.Search(ctx, query)
	if err != nil {
		s.logger.Error("Discovery search failed", zap.Error(err))
		return &MissionResult{Status: MissionError, Message: fmt.Sprintf("search failed: %v", err)}
	}

	if len(findings) == 0 {
		s.logger.Info("Discovery mission found nothing new")
		return &MissionResult{Status: MissionEmpty, Message: "no new signals found", Findings: 0}
	}

	discovery, err := s.generator.GenerateDiscovery(ctx, llm.BuildDiscoveryPrompt(findings))
	if err != nil {
		s.logger.Error("Discovery redaction failed", zap.Error(err))
		return &MissionResult{
			Status:   MissionError,
			Message:  fmt.Sprintf("redaction failed: %v", err),
			Findings: len(findings),
		}
	}

	sourceURL := discovery.SourceURL
	if sourceURL == "" {
		sourceURL = findings[0].URL
	}
	location := "INTERNET"

	report := &models.Report{
		Title:     fmt.Sprintf("%s %s", s.machinePrefix, discovery.Title),
		Content:   discovery.Description,
		Location:  &location,
		SourceURL: &sourceURL,
		Status:    models.ReportStatusPending,
	}
	if err := s.reportRepo.Create(report); err != nil {
		s.logger.Error("Failed to file discovery report", zap.Error(err))
		return &MissionResult{
			Status:   MissionError,
			Message:  fmt.Sprintf("failed to file report: %v", err),
			Findings: len(findings),
		}
	}

	s.logger.Info("Discovery mission filed a report",
		zap.String("report_id", report.ID),
		zap.String("title", discovery.Title),
		zap.Int("findings", len(findings)))

	return &MissionResult{
		Status:   MissionSuccess,
		Message:  fmt.Sprintf("found %d sources, report queued", len(findings)),
		Findings: len(findings),
		Title:    discovery.Title,
		ReportID: report.ID,
	}
}

// Research performs a search for an existing topic and renders it as a
// prompt enrichment block. Used by the orchestrator when a manual run asks
// for fresh discovery context.
func (s *Service) Research(ctx context.Context, topic string) (string, error) {
	findings, err := s.searcher.Search(ctx, topic)
	if err != nil {
		return "", err
	}
	return llm.FormatResearchBlock(findings), nil
}
