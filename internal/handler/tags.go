package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"backend/internal/models"
)

// GetTags handles GET /api/tags. The vocabulary is fixed at build time.
func GetTags(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tags": models.TagVocabulary})
}
