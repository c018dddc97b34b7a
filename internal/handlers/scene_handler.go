package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/woventales/backend/internal/apperrors"
	"github.com/woventales/backend/internal/models"
	"github.com/woventales/backend/internal/services"
)

// SceneHandler handles scene authoring requests
type SceneHandler struct {
	graph *services.SceneGraph
}

// NewSceneHandler creates a new SceneHandler
func NewSceneHandler(graph *services.SceneGraph) *SceneHandler {
	return &SceneHandler{graph: graph}
}

// RegisterSceneRoutes registers scene-related routes
func (h *SceneHandler) RegisterSceneRoutes(g *echo.Group) {
	g.POST("/scenes", h.CreateScene)
	g.GET("/scenes", h.GetScenesForStory)
	g.GET("/scenes/:id", h.GetScene)
	g.GET("/scenes/:id/children", h.GetChildren)
	g.POST("/scenes/:id/choices", h.AddChoice)
	g.POST("/scenes/:id/branches", h.CreateBranch)
	g.POST("/scenes/:id/end", h.MarkEnding)
}

// CreateScene creates a scene under an optional parent
func (h *SceneHandler) CreateScene(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}

	var req models.CreateSceneRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	scene, err := h.graph.CreateScene(c.Request().Context(), req.StoryID, req.ParentID, userID, req.Content, req.IsEnding)
	if err != nil {
		return appError(err)
	}
	return success(c, http.StatusCreated, echo.Map{"scene": scene})
}

// GetScenesForStory returns the scenes of the story given by ?story=
func (h *SceneHandler) GetScenesForStory(c echo.Context) error {
	storyID := c.QueryParam("story")
	if storyID == "" {
		return appError(apperrors.Validation("query parameter 'story' is required"))
	}
	scenes, err := h.graph.GetScenesForStory(c.Request().Context(), storyID)
	if err != nil {
		return appError(err)
	}
	return success(c, http.StatusOK, echo.Map{"scenes": scenes})
}

// GetScene returns a single scene
func (h *SceneHandler) GetScene(c echo.Context) error {
	scene, err := h.graph.GetScene(c.Request().Context(), c.Param("id"))
	if err != nil {
		return appError(err)
	}
	return success(c, http.StatusOK, echo.Map{"scene": scene, "likesCount": scene.LikesCount()})
}

// GetChildren returns the child scenes in creation order
func (h *SceneHandler) GetChildren(c echo.Context) error {
	children, err := h.graph.GetChildren(c.Request().Context(), c.Param("id"))
	if err != nil {
		return appError(err)
	}
	return success(c, http.StatusOK, echo.Map{"scenes": children})
}

// AddChoice wires a choice from the scene to an existing target scene
func (h *SceneHandler) AddChoice(c echo.Context) error {
	if _, err := requireUserID(c); err != nil {
		return err
	}

	var req models.AddChoiceRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	choice, err := h.graph.AddChoice(c.Request().Context(), c.Param("id"), req.Text, req.TargetSceneID)
	if err != nil {
		return appError(err)
	}
	return success(c, http.StatusCreated, echo.Map{"choice": choice})
}

// CreateBranch creates a child scene reached from this scene by a new choice
func (h *SceneHandler) CreateBranch(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}

	var req models.CreateBranchRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	scene, choice, err := h.graph.CreateBranch(c.Request().Context(), c.Param("id"), userID, req.ChoiceText, req.Content, req.IsEnding)
	if err != nil {
		return appError(err)
	}
	return success(c, http.StatusCreated, echo.Map{"scene": scene, "choice": choice})
}

// MarkEnding marks the scene as an ending
func (h *SceneHandler) MarkEnding(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	if err := h.graph.MarkEnding(c.Request().Context(), c.Param("id"), userID); err != nil {
		return appError(err)
	}
	return success(c, http.StatusOK, echo.Map{"hasEnded": true})
}
