package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/woventales/backend/internal/services"
)

// LikeHandler handles like toggles on stories and scenes
type LikeHandler struct {
	engagement *services.Engagement
	graph      *services.SceneGraph
}

// NewLikeHandler creates a new LikeHandler
func NewLikeHandler(engagement *services.Engagement, graph *services.SceneGraph) *LikeHandler {
	return &LikeHandler{engagement: engagement, graph: graph}
}

// RegisterLikeRoutes registers like-related routes
func (h *LikeHandler) RegisterLikeRoutes(g *echo.Group) {
	g.POST("/stories/:id/like", h.ToggleStoryLike)
	g.POST("/scenes/:id/like", h.ToggleSceneLike)
}

// ToggleStoryLike likes or unlikes a story
func (h *LikeHandler) ToggleStoryLike(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	res, err := h.engagement.ToggleLike(c.Request().Context(), c.Param("id"), userID)
	if err != nil {
		return appError(err)
	}
	return success(c, http.StatusOK, res)
}

// ToggleSceneLike likes or unlikes a scene
func (h *LikeHandler) ToggleSceneLike(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	res, err := h.graph.ToggleLike(c.Request().Context(), c.Param("id"), userID)
	if err != nil {
		return appError(err)
	}
	return success(c, http.StatusOK, res)
}
