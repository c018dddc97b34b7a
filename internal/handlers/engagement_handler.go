package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/woventales/backend/internal/models"
	"github.com/woventales/backend/internal/services"
)

// EngagementHandler handles ratings and engagement summaries
type EngagementHandler struct {
	engagement *services.Engagement
}

// NewEngagementHandler creates a new EngagementHandler
func NewEngagementHandler(engagement *services.Engagement) *EngagementHandler {
	return &EngagementHandler{engagement: engagement}
}

// RegisterEngagementRoutes registers rating and summary routes
func (h *EngagementHandler) RegisterEngagementRoutes(g *echo.Group) {
	g.POST("/stories/:id/rate", h.RateStory)
	g.GET("/stories/:id/engagement", h.GetSummary)
}

// RateStory sets the caller's rating of a story
func (h *EngagementHandler) RateStory(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}

	var req models.RateStoryRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	res, err := h.engagement.Rate(c.Request().Context(), c.Param("id"), userID, req.Value)
	if err != nil {
		return appError(err)
	}
	return success(c, http.StatusOK, res)
}

// GetSummary returns the engagement aggregate of a story
func (h *EngagementHandler) GetSummary(c echo.Context) error {
	summary, err := h.engagement.GetEngagementSummary(c.Request().Context(), c.Param("id"))
	if err != nil {
		return appError(err)
	}
	return success(c, http.StatusOK, summary)
}
