package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"backend/internal/models"
	"backend/internal/orchestrator"
	"backend/internal/repository"
)

type ReportHandler interface {
	Submit(c *gin.Context)
	List(c *gin.Context)
	Delete(c *gin.Context)
	Process(c *gin.Context)
}

// DebateLauncher starts debate generation for a report.
type DebateLauncher interface {
	CreateOrRefreshDebate(ctx context.Context, reportID string, useDiscovery bool) (*orchestrator.RunHandle, error)
}

type reportHandler struct {
	reportRepo   repository.ReportRepository
	orchestrator DebateLauncher
	logger       *zap.Logger
}

func NewReportHandler(reportRepo repository.ReportRepository, orch DebateLauncher, logger *zap.Logger) ReportHandler {
	return &reportHandler{
		reportRepo:   reportRepo,
		orchestrator: orch,
		logger:       logger,
	}
}

type submitReportRequest struct {
	Title     string  `json:"title" binding:"required"`
	Content   string  `json:"content" binding:"required"`
	Location  *string `json:"location"`
	SourceURL *string `json:"source_url"`
}

// Submit handles POST /api/reports. Open to the public; reports land in
// the pending queue with no debate attached.
func (h *reportHandler) Submit(c *gin.Context) {
	var req submitReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Content) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title and content must not be blank"})
		return
	}

	report := &models.Report{
		Title:     strings.TrimSpace(req.Title),
		Content:   strings.TrimSpace(req.Content),
		Location:  req.Location,
		SourceURL: req.SourceURL,
		Status:    models.ReportStatusPending,
	}

	if err := h.reportRepo.Create(report); err != nil {
		h.logger.Error("Failed to create report", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save report"})
		return
	}

	c.JSON(http.StatusCreated, report)
}

// List handles GET /api/reports. Admin only; optional ?status= filter.
func (h *reportHandler) List(c *gin.Context) {
	var (
		reports []*models.Report
		err     error
	)
	if status := c.Query("status"); status != "" {
		reports, err = h.reportRepo.ListByStatus(status)
	} else {
		reports, err = h.reportRepo.List()
	}
	if err != nil {
		h.logger.Error("Failed to list reports", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve reports"})
		return
	}
	if reports == nil {
		reports = []*models.Report{}
	}
	c.JSON(http.StatusOK, reports)
}

// Delete handles DELETE /api/reports/:id. Removes the report together with
// its debate and messages.
func (h *reportHandler) Delete(c *gin.Context) {
	id := c.Param("id")

	report, err := h.reportRepo.GetByID(id)
	if err != nil {
		h.logger.Error("Failed to fetch report", zap.String("report_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve report"})
		return
	}
	if report == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Report not found"})
		return
	}

	if err := h.reportRepo.Delete(id); err != nil {
		h.logger.Error("Failed to delete report", zap.String("report_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete report"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// Process handles POST /api/reports/:id/process. Kicks off debate
// generation in the background and returns immediately; the client polls
// the debate for status transitions.
func (h *reportHandler) Process(c *gin.Context) {
	id := c.Param("id")
	useDiscovery := c.Query("use_discovery") == "true"

	// Generation outlives the HTTP request on purpose.
	handle, err := h.orchestrator.CreateOrRefreshDebate(context.Background(), id, useDiscovery)
	if err != nil {
		switch {
		case errors.Is(err, orchestrator.ErrReportNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Report not found"})
		case errors.Is(err, orchestrator.ErrRunInProgress):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			h.logger.Error("Failed to start debate run", zap.String("report_id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start processing"})
		}
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status":    "initiated",
		"debate_id": handle.DebateID,
	})
}
