package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// MissionRunner runs one full discovery-and-processing cycle.
type MissionRunner interface {
	RunMission(ctx context.Context)
}

type ScoutHandler interface {
	TriggerMission(c *gin.Context)
}

type scoutHandler struct {
	runner MissionRunner
	logger *zap.Logger
}

func NewScoutHandler(runner MissionRunner, logger *zap.Logger) ScoutHandler {
	return &scoutHandler{runner: runner, logger: logger}
}

// TriggerMission handles POST /api/scout/mission. The mission runs in the
// background; progress is visible through the scheduler state and the
// report queue.
func (h *scoutHandler) TriggerMission(c *gin.Context) {
	h.logger.Info("Manual mission triggered")
	go h.runner.RunMission(context.Background())
	c.JSON(http.StatusAccepted, gin.H{"status": "mission_started"})
}
