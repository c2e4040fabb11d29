package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"backend/internal/llm"
	"backend/internal/models"
	"backend/internal/repository"
)

var (
	// ErrReportNotFound is returned when orchestration is requested for a
	// report id that does not exist.
	ErrReportNotFound = errors.New("report not found")
	// ErrRunInProgress is returned when a run for the same report is
	// already underway.
	ErrRunInProgress = errors.New("debate generation already in progress for this report")
)

// ContextProvider supplies retrieved context from past similar debates.
type ContextProvider interface {
	ContextFor(ctx context.Context, topic string) (string, error)
}

// Researcher supplies fresh web research for a topic.
type Researcher interface {
	Research(ctx context.Context, topic string) (string, error)
}

// Embedder stores a finished debate in the similarity index.
type Embedder interface {
	StoreDebate(ctx context.Context, debate *models.Debate) error
}

// Announcer publishes a finished debate to the outside world.
type Announcer interface {
	AnnounceDebate(debate *models.Debate)
}

// Enrichment is the outcome of one best-effort prompt enrichment step.
type Enrichment struct {
	Text    string
	Skipped bool
	Reason  string
}

// RunHandle describes a launched orchestration run. Done is closed when
// the background part of the run finishes; Err is valid after that.
type RunHandle struct {
	DebateID string
	ReportID string

	done chan struct{}
	err  error
}

// Wait blocks until the run completes and returns its terminal error.
func (h *RunHandle) Wait() error {
	<-h.done
	return h.err
}

// Orchestrator is the report→debate state machine core. All collaborators
// are injected; optional ones may be nil.
type Orchestrator struct {
	reportRepo repository.ReportRepository
	debateRepo repository.DebateRepository
	generator  llm.Generator
	ragStore   ContextProvider
	researcher Researcher
	embedder   Embedder
	announcer  Announcer
	builder    *TreeBuilder
	runTimeout time.Duration
	logger     *zap.Logger

	mu      sync.Mutex
	running map[string]bool // per-external_id advisory lock
}

// Options carries the optional collaborators and tuning knobs.
type Options struct {
	RAGStore   ContextProvider
	Researcher Researcher
	Embedder   Embedder
	Announcer  Announcer
	Pacing     Pacing
	RunTimeout time.Duration
	Personas   []models.Persona
}

// New creates the orchestrator.
func New(
	reportRepo repository.ReportRepository,
	debateRepo repository.DebateRepository,
	generator llm.Generator,
	opts Options,
	logger *zap.Logger,
) *Orchestrator {
	if opts.RunTimeout == 0 {
		opts.RunTimeout = 10 * time.Minute
	}
	return &Orchestrator{
		reportRepo: reportRepo,
		debateRepo: debateRepo,
		generator:  generator,
		ragStore:   opts.RAGStore,
		researcher: opts.Researcher,
		embedder:   opts.Embedder,
		announcer:  opts.Announcer,
		builder:    NewTreeBuilder(debateRepo, opts.Personas, opts.Pacing, logger),
		runTimeout: opts.RunTimeout,
		logger:     logger,
		running:    make(map[string]bool),
	}
}

// CreateOrRefreshDebate starts (or restarts) debate generation for a
// report. The identity resolution and the destructive reset happen
// synchronously; generation continues in the background and is observable
// through the returned handle. Exactly one run per report id may be active.
func (o *Orchestrator) CreateOrRefreshDebate(ctx context.Context, reportID string, useDiscovery bool) (*RunHandle, error) {
	if !o.tryLock(reportID) {
		return nil, ErrRunInProgress
	}

	handle, err := o.prepare(reportID)
	if err != nil {
		o.unlock(reportID)
		return nil, err
	}

	go func() {
		defer o.unlock(reportID)
		defer close(handle.done)

		runCtx, cancel := context.WithTimeout(ctx, o.runTimeout)
		defer cancel()

		handle.err = o.run(runCtx, handle, useDiscovery)
	}()

	return handle, nil
}

// ProcessReport runs one debate generation to completion. Convenience for
// sequential callers; the scheduler processes its queue through this.
func (o *Orchestrator) ProcessReport(ctx context.Context, reportID string) error {
	handle, err := o.CreateOrRefreshDebate(ctx, reportID, false)
	if err != nil {
		return err
	}
	return handle.Wait()
}

// prepare executes steps 1–3 of a run: existence check, idempotent identity
// resolution, destructive reset scoped to the debate id.
func (o *Orchestrator) prepare(reportID string) (*RunHandle, error) {
	report, err := o.reportRepo.GetByID(reportID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch report: %w", err)
	}
	if report == nil {
		return nil, ErrReportNotFound
	}

	existing, err := o.debateRepo.GetByExternalID(reportID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up existing debate: %w", err)
	}

	debateID := uuid.New().String()
	confirmations := 0
	if existing != nil {
		// Reuse the identity and carry the vote tally through the
		// regeneration; only the stale messages are discarded.
		debateID = existing.ID
		confirmations = existing.ConfirmationCount
		if err := o.debateRepo.DeleteMessages(debateID); err != nil {
			return nil, fmt.Errorf("failed to clear stale messages: %w", err)
		}
	}

	skeleton := &models.Debate{
		ID:                debateID,
		ExternalID:        reportID,
		Title:             report.Title,
		Summary:           models.SummaryInitializing,
		SeverityScore:     0,
		Status:            models.DebateStatusLoading,
		Tags:              []string{},
		SourceURL:         report.SourceURL,
		ConfirmationCount: confirmations,
	}
	if err := o.debateRepo.Upsert(skeleton); err != nil {
		return nil, fmt.Errorf("failed to upsert debate skeleton: %w", err)
	}

	o.logger.Info("Debate run prepared",
		zap.String("report_id", reportID),
		zap.String("debate_id", debateID),
		zap.Bool("reused_identity", existing != nil))

	return &RunHandle{
		DebateID: debateID,
		ReportID: reportID,
		done:     make(chan struct{}),
	}, nil
}

// run executes steps 4–8: enrichment, generation, tree materialization,
// finalization. Any failure is recorded into the debate's visible summary.
func (o *Orchestrator) run(ctx context.Context, handle *RunHandle, useDiscovery bool) error {
	report, err := o.reportRepo.GetByID(handle.ReportID)
	if err != nil || report == nil {
		err = fmt.Errorf("report disappeared mid-run: %v", err)
		o.recordFailure(handle.DebateID, err)
		return err
	}

	prompt := o.buildPrompt(ctx, report, useDiscovery)

	result, err := o.generator.GenerateDebate(ctx, prompt)
	if err != nil {
		o.recordFailure(handle.DebateID, err)
		return fmt.Errorf("debate generation failed: %w", err)
	}

	o.warnUnknownTags(handle.DebateID, result.Tags)

	created, err := o.builder.Materialize(ctx, handle.DebateID, result.Replies)
	if err != nil {
		o.recordFailure(handle.DebateID, err)
		return fmt.Errorf("tree materialization aborted: %w", err)
	}
	persisted := 0
	for _, id := range created {
		if id != nil {
			persisted++
		}
	}

	if err := o.debateRepo.UpdateResult(handle.DebateID, result.Summary, result.SeverityScore,
		result.Tags, models.DebateStatusActive); err != nil {
		o.recordFailure(handle.DebateID, err)
		return fmt.Errorf("failed to finalize debate header: %w", err)
	}

	// A report is "approved" only when processing ran to completion; a
	// failed run leaves it pending so the next scheduled mission retries.
	if err := o.reportRepo.UpdateStatus(handle.ReportID, models.ReportStatusApproved); err != nil {
		o.logger.Error("Failed to mark report approved",
			zap.String("report_id", handle.ReportID),
			zap.Error(err))
	}

	o.logger.Info("Debate generated",
		zap.String("debate_id", handle.DebateID),
		zap.Int("replies", len(result.Replies)),
		zap.Int("persisted", persisted),
		zap.Float64("severity_score", result.SeverityScore))

	o.finishBestEffort(ctx, handle.DebateID)
	return nil
}

// buildPrompt assembles the generator prompt with best-effort enrichment:
// a failure in RAG or discovery degrades to the bare report prompt.
func (o *Orchestrator) buildPrompt(ctx context.Context, report *models.Report, useDiscovery bool) string {
	rag := o.ragEnrichment(ctx, report.Title)
	if rag.Skipped {
		o.logger.Warn("RAG enrichment skipped",
			zap.String("report_id", report.ID),
			zap.String("reason", rag.Reason))
	}

	research := Enrichment{Skipped: true, Reason: "discovery not requested"}
	if useDiscovery {
		research = o.researchEnrichment(ctx, report.Title)
		if research.Skipped {
			o.logger.Warn("Discovery enrichment skipped",
				zap.String("report_id", report.ID),
				zap.String("reason", research.Reason))
		}
	}

	return llm.BuildDebatePrompt(report, rag.Text, research.Text)
}

func (o *Orchestrator) ragEnrichment(ctx context.Context, topic string) Enrichment {
	if o.ragStore == nil {
		return Enrichment{Skipped: true, Reason: "rag store not configured"}
	}
	text, err := o.ragStore.ContextFor(ctx, topic)
	if err != nil {
		return Enrichment{Skipped: true, Reason: err.Error()}
	}
	if text == "" {
		return Enrichment{Skipped: true, Reason: "no similar past debates"}
	}
	return Enrichment{Text: text}
}

func (o *Orchestrator) researchEnrichment(ctx context.Context, topic string) Enrichment {
	if o.researcher == nil {
		return Enrichment{Skipped: true, Reason: "researcher not configured"}
	}
	text, err := o.researcher.Research(ctx, topic)
	if err != nil {
		return Enrichment{Skipped: true, Reason: err.Error()}
	}
	return Enrichment{Text: text}
}

// recordFailure writes the error into the debate's summary so the run is
// terminal-but-visible instead of silently lost.
func (o *Orchestrator) recordFailure(debateID string, runErr error) {
	o.logger.Error("Debate run failed",
		zap.String("debate_id", debateID),
		zap.Error(runErr))
	if err := o.debateRepo.UpdateSummary(debateID, models.SummaryErrorPrefix+runErr.Error()); err != nil {
		o.logger.Error("Failed to record run failure on debate",
			zap.String("debate_id", debateID),
			zap.Error(err))
	}
}

func (o *Orchestrator) warnUnknownTags(debateID string, tags []string) {
	for _, tag := range tags {
		if !models.IsKnownTag(tag) {
			// Data-quality warning only; the tag is kept as generated.
			o.logger.Warn("Generator produced a tag outside the vocabulary",
				zap.String("debate_id", debateID),
				zap.String("tag", tag))
		}
	}
}

// finishBestEffort runs the post-success side effects (embedding storage,
// announcement); neither can fail the run.
func (o *Orchestrator) finishBestEffort(ctx context.Context, debateID string) {
	debate, err := o.debateRepo.GetByID(debateID)
	if err != nil || debate == nil {
		o.logger.Warn("Could not reload debate for post-processing",
			zap.String("debate_id", debateID),
			zap.Error(err))
		return
	}

	if o.embedder != nil {
		if err := o.embedder.StoreDebate(ctx, debate); err != nil {
			o.logger.Warn("Failed to store debate embedding",
				zap.String("debate_id", debateID),
				zap.Error(err))
		}
	}

	if o.announcer != nil {
		o.announcer.AnnounceDebate(debate)
	}
}

func (o *Orchestrator) tryLock(reportID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running[reportID] {
		return false
	}
	o.running[reportID] = true
	return true
}

func (o *Orchestrator) unlock(reportID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.running, reportID)
}
