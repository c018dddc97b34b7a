package handlers

import (
	"iter"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/woventales/backend/internal/apperrors"
	"github.com/woventales/backend/internal/models"
	"github.com/woventales/backend/internal/services"
)

// StoryHandler handles story-related HTTP requests
type StoryHandler struct {
	registry *services.StoryRegistry
	graph    *services.SceneGraph
	reader   *services.Reader
}

// NewStoryHandler creates a new StoryHandler
func NewStoryHandler(registry *services.StoryRegistry, graph *services.SceneGraph, reader *services.Reader) *StoryHandler {
	return &StoryHandler{registry: registry, graph: graph, reader: reader}
}

// RegisterStoryRoutes registers story-related routes
func (h *StoryHandler) RegisterStoryRoutes(g *echo.Group) {
	g.POST("/stories", h.CreateStory)
	g.GET("/stories", h.GetStories)
	g.GET("/stories/finished", h.GetFinishedStories)
	g.GET("/stories/ongoing", h.GetOngoingStories)
	g.GET("/stories/:id", h.GetStory)
	g.GET("/stories/:id/scenes", h.GetStoryScenes)
	g.GET("/stories/:id/graph/validate", h.ValidateGraph)
}

func collectSummaries(seq iter.Seq2[models.StorySummary, error]) ([]models.StorySummary, error) {
	out := []models.StorySummary{}
	for s, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func querySort(c echo.Context) (models.StorySort, error) {
	sort, ok := models.ParseStorySort(c.QueryParam("sort"))
	if !ok {
		return "", apperrors.Validation("unknown sort %q", c.QueryParam("sort"))
	}
	return sort, nil
}

func respondStories(c echo.Context, seq iter.Seq2[models.StorySummary, error]) error {
	stories, err := collectSummaries(seq)
	if err != nil {
		return appError(err)
	}
	return success(c, http.StatusOK, echo.Map{"stories": stories})
}

// CreateStory creates a story together with its first scene
func (h *StoryHandler) CreateStory(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}

	var req models.CreateStoryRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	story, scene, err := h.registry.CreateStoryWithRoot(c.Request().Context(), userID, req)
	if err != nil {
		return appError(err)
	}
	return success(c, http.StatusCreated, echo.Map{"story": story.Summary(), "scene": scene})
}

// GetStories lists stories filtered by status, genre and author
func (h *StoryHandler) GetStories(c echo.Context) error {
	sort, err := querySort(c)
	if err != nil {
		return appError(err)
	}
	filter := models.StoryFilter{
		Status:   c.QueryParam("status"),
		Genre:    c.QueryParam("genre"),
		AuthorID: c.QueryParam("author"),
	}
	return respondStories(c, h.registry.ListStories(c.Request().Context(), filter, sort, queryLimit(c)))
}

// GetFinishedStories lists stories that have at least one ending
func (h *StoryHandler) GetFinishedStories(c echo.Context) error {
	sort, err := querySort(c)
	if err != nil {
		return appError(err)
	}
	seq, err := h.registry.ListFinished(c.Request().Context(), sort, queryLimit(c))
	if err != nil {
		return appError(err)
	}
	return respondStories(c, seq)
}

// GetOngoingStories lists stories that have no ending yet
func (h *StoryHandler) GetOngoingStories(c echo.Context) error {
	sort, err := querySort(c)
	if err != nil {
		return appError(err)
	}
	seq, err := h.registry.ListOngoing(c.Request().Context(), sort, queryLimit(c))
	if err != nil {
		return appError(err)
	}
	return respondStories(c, seq)
}

// GetStory returns a single story
func (h *StoryHandler) GetStory(c echo.Context) error {
	story, err := h.registry.GetStory(c.Request().Context(), c.Param("id"))
	if err != nil {
		return appError(err)
	}
	return success(c, http.StatusOK, echo.Map{"story": story.Summary(), "text": story.Text})
}

// GetStoryScenes returns the reading payload of a story and counts a view
func (h *StoryHandler) GetStoryScenes(c echo.Context) error {
	view, err := h.reader.ReadStory(c.Request().Context(), c.Param("id"))
	if err != nil {
		return appError(err)
	}
	return success(c, http.StatusOK, view)
}

// ValidateGraph reports structural problems of a story's scene graph
func (h *StoryHandler) ValidateGraph(c echo.Context) error {
	report, err := h.graph.ValidateStoryGraph(c.Request().Context(), c.Param("id"))
	if err != nil {
		return appError(err)
	}
	return success(c, http.StatusOK, report)
}
