package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"backend/internal/repository"
)

type SettingsHandler interface {
	Get(c *gin.Context)
	SetWorker(c *gin.Context)
}

type settingsHandler struct {
	settingsRepo repository.SettingsRepository
	logger       *zap.Logger
}

func NewSettingsHandler(settingsRepo repository.SettingsRepository, logger *zap.Logger) SettingsHandler {
	return &settingsHandler{settingsRepo: settingsRepo, logger: logger}
}

// Get handles GET /api/settings.
func (h *settingsHandler) Get(c *gin.Context) {
	state, err := h.settingsRepo.Read()
	if err != nil {
		h.logger.Error("Failed to read scheduler state", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve settings"})
		return
	}
	c.JSON(http.StatusOK, state)
}

type setWorkerRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// SetWorker handles PUT /api/settings/worker. Toggles the autonomous
// scheduler without touching its run history.
func (h *settingsHandler) SetWorker(c *gin.Context) {
	var req setWorkerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "enabled field is required"})
		return
	}

	if err := h.settingsRepo.SetWorkerEnabled(*req.Enabled); err != nil {
		h.logger.Error("Failed to toggle worker", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update settings"})
		return
	}

	h.logger.Info("Worker toggled", zap.Bool("enabled", *req.Enabled))
	c.JSON(http.StatusOK, gin.H{"worker_enabled": *req.Enabled})
}
