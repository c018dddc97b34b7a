package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/woventales/backend/internal/models"
	"github.com/woventales/backend/internal/services"
)

// CommentHandler handles HTTP requests related to comments
type CommentHandler struct {
	engagement *services.Engagement
}

// NewCommentHandler creates a new CommentHandler
func NewCommentHandler(engagement *services.Engagement) *CommentHandler {
	return &CommentHandler{engagement: engagement}
}

// RegisterCommentRoutes registers comment-related routes
func (h *CommentHandler) RegisterCommentRoutes(g *echo.Group) {
	g.POST("/stories/:id/comments", h.CreateComment)
	g.GET("/stories/:id/comments", h.GetComments)
}

// CreateComment creates a new comment on a story
func (h *CommentHandler) CreateComment(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}

	var req models.CreateCommentRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	comment, err := h.engagement.AddComment(c.Request().Context(), c.Param("id"), userID, req.Text, req.SceneID)
	if err != nil {
		return appError(err)
	}
	return success(c, http.StatusCreated, echo.Map{"comment": comment})
}

// GetComments returns the newest comments of a story
func (h *CommentHandler) GetComments(c echo.Context) error {
	comments, err := h.engagement.ListComments(c.Request().Context(), c.Param("id"), queryLimit(c))
	if err != nil {
		return appError(err)
	}
	return success(c, http.StatusOK, echo.Map{"comments": comments})
}
