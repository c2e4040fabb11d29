package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"backend/internal/models"
	"backend/internal/repository"
)

type DebateHandler interface {
	List(c *gin.Context)
	Get(c *gin.Context)
	Confirm(c *gin.Context)
}

type debateHandler struct {
	debateRepo repository.DebateRepository
	logger     *zap.Logger
}

func NewDebateHandler(debateRepo repository.DebateRepository, logger *zap.Logger) DebateHandler {
	return &debateHandler{debateRepo: debateRepo, logger: logger}
}

// List handles GET /api/debates.
func (h *debateHandler) List(c *gin.Context) {
	debates, err := h.debateRepo.List()
	if err != nil {
		h.logger.Error("Failed to list debates", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve debates"})
		return
	}
	if debates == nil {
		debates = []*models.Debate{}
	}
	c.JSON(http.StatusOK, debates)
}

// threadNode is a message with its replies nested under it.
type threadNode struct {
	*models.Message
	Replies []*threadNode `json:"replies"`
}

type debateView struct {
	*models.Debate
	Thread []*threadNode `json:"thread"`
}

// Get handles GET /api/debates/:id. The flat message list is returned as a
// tree rooted at the messages with no parent, children ordered by
// insertion time.
func (h *debateHandler) Get(c *gin.Context) {
	id := c.Param("id")

	debate, err := h.debateRepo.GetByID(id)
	if err != nil {
		h.logger.Error("Failed to fetch debate", zap.String("debate_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve debate"})
		return
	}
	if debate == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Debate not found"})
		return
	}

	messages, err := h.debateRepo.ListMessages(id)
	if err != nil {
		h.logger.Error("Failed to fetch debate messages", zap.String("debate_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve messages"})
		return
	}

	c.JSON(http.StatusOK, debateView{
		Debate: debate,
		Thread: buildThread(messages),
	})
}

// Confirm handles POST /api/debates/:id/confirm. Public vote counter.
func (h *debateHandler) Confirm(c *gin.Context) {
	id := c.Param("id")

	debate, err := h.debateRepo.GetByID(id)
	if err != nil {
		h.logger.Error("Failed to fetch debate", zap.String("debate_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve debate"})
		return
	}
	if debate == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Debate not found"})
		return
	}

	count, err := h.debateRepo.IncrementConfirmations(id)
	if err != nil {
		h.logger.Error("Failed to increment confirmations", zap.String("debate_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record confirmation"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"confirmation_count": count})
}

// buildThread nests a flat, insertion-ordered message list into a reply
// tree. Messages whose parent is missing are promoted to roots so nothing
// is silently dropped.
func buildThread(messages []*models.Message) []*threadNode {
	nodes := make(map[string]*threadNode, len(messages))
	for _, msg := range messages {
		nodes[msg.ID] = &threadNode{Message: msg, Replies: []*threadNode{}}
	}

	roots := []*threadNode{}
	for _, msg := range messages {
		node := nodes[msg.ID]
		if msg.ParentID != nil {
			if parent, ok := nodes[*msg.ParentID]; ok {
				parent.Replies = append(parent.Replies, node)
				continue
			}
		}
		roots = append(roots, node)
	}
	return roots
}
