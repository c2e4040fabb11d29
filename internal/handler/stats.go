package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"backend/internal/repository"
)

type StatsHandler interface {
	Get(c *gin.Context)
}

type statsHandler struct {
	debateRepo repository.DebateRepository
	logger     *zap.Logger
}

func NewStatsHandler(debateRepo repository.DebateRepository, logger *zap.Logger) StatsHandler {
	return &statsHandler{debateRepo: debateRepo, logger: logger}
}

// Get handles GET /api/stats.
func (h *statsHandler) Get(c *gin.Context) {
	stats, err := h.debateRepo.Stats()
	if err != nil {
		h.logger.Error("Failed to aggregate stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}
