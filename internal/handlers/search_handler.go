package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"priskombo/internal/logger"
	"priskombo/internal/models"
	"priskombo/internal/search"
)

type SearchHandler struct {
	search *search.Service
}

func NewSearchHandler(svc *search.Service) *SearchHandler {
	return &SearchHandler{search: svc}
}

// Search returns matching products; upstream failures yield an empty list.
func (h *SearchHandler) Search(c *gin.Context) {
	q := c.Query("q")
	results, err := h.search.Search(c.Request.Context(), q)
	if err != nil {
		logger.Warn(c, "search failed", err, zap.String("q", q))
		results = []models.Product{}
	}
	c.JSON(http.StatusOK, results)
}

func (h *SearchHandler) Suggestions(c *gin.Context) {
	q := c.Query("q")
	suggestions, err := h.search.Suggestions(c.Request.Context(), q)
	if err != nil {
		logger.Warn(c, "suggestions failed", err, zap.String("q", q))
		suggestions = models.EmptySuggestions()
	}
	c.JSON(http.StatusOK, suggestions)
}
