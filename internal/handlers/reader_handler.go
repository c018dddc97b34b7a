package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/woventales/backend/internal/models"
	"github.com/woventales/backend/internal/services"
)

// ReaderHandler handles reading sessions and reading progress
type ReaderHandler struct {
	reader *services.Reader
}

// NewReaderHandler creates a new ReaderHandler
func NewReaderHandler(reader *services.Reader) *ReaderHandler {
	return &ReaderHandler{reader: reader}
}

// RegisterReaderRoutes registers reading session routes
func (h *ReaderHandler) RegisterReaderRoutes(g *echo.Group) {
	g.POST("/stories/:id/read/start", h.Start)
	g.POST("/stories/:id/read/choose", h.Choose)
	g.POST("/stories/:id/read/replay", h.Replay)
	g.GET("/me/progress", h.GetProgress)
}

// Start opens a reading session at the entry scene
func (h *ReaderHandler) Start(c echo.Context) error {
	step, err := h.reader.Start(c.Request().Context(), getUserIDFromContext(c), c.Param("id"))
	if err != nil {
		return appError(err)
	}
	return success(c, http.StatusOK, step)
}

// Choose follows a choice from the scene the reader is on
func (h *ReaderHandler) Choose(c echo.Context) error {
	var req models.ChooseRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	step, err := h.reader.Choose(c.Request().Context(), getUserIDFromContext(c), c.Param("id"), req.SceneID, req.ChoiceID)
	if err != nil {
		return appError(err)
	}
	return success(c, http.StatusOK, step)
}

// Replay replays a list of choices from the entry scene
func (h *ReaderHandler) Replay(c echo.Context) error {
	var req models.ReplayRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	step, err := h.reader.Replay(c.Request().Context(), getUserIDFromContext(c), c.Param("id"), req.ChoiceIDs)
	if err != nil {
		return appError(err)
	}
	return success(c, http.StatusOK, step)
}

// GetProgress lists the caller's reading progress; ?status= filters it
func (h *ReaderHandler) GetProgress(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	progress, err := h.reader.ListProgress(c.Request().Context(), userID, c.QueryParam("status"), queryLimit(c))
	if err != nil {
		return appError(err)
	}
	return success(c, http.StatusOK, echo.Map{"progress": progress})
}
