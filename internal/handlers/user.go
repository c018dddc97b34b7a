package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/woventales/backend/internal/models"
	"github.com/woventales/backend/internal/repositories"
	"github.com/woventales/backend/internal/services"
)

// UserHandler handles HTTP requests related to author identities
type UserHandler struct {
	userRepository repositories.UserRepository
	registry       *services.StoryRegistry
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(userRepo repositories.UserRepository, registry *services.StoryRegistry) *UserHandler {
	return &UserHandler{userRepository: userRepo, registry: registry}
}

// RegisterProfileRoutes registers user profile-related routes
func (h *UserHandler) RegisterProfileRoutes(g *echo.Group) {
	g.GET("/me", h.GetProfile)
	g.PUT("/me", h.UpdateProfile)
	g.GET("/users/:id", h.GetUser)
	g.GET("/users/:id/contributions", h.GetContributions)
}

// GetUser returns another user's display identity
func (h *UserHandler) GetUser(c echo.Context) error {
	user, err := h.userRepository.GetUserByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return appError(err)
	}
	return success(c, http.StatusOK, echo.Map{"user": user.ToCompact()})
}

// GetProfile retrieves the authenticated user's profile
func (h *UserHandler) GetProfile(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	user, err := h.userRepository.GetUserByID(c.Request().Context(), userID)
	if err != nil {
		return appError(err)
	}
	return success(c, http.StatusOK, echo.Map{"user": user})
}

// UpdateProfile creates or updates the authenticated user's display identity
func (h *UserHandler) UpdateProfile(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}

	var req models.UpdateProfileRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	user := &models.User{
		ID:        userID,
		Username:  req.Username,
		Name:      req.Name,
		AvatarURL: req.AvatarURL,
	}
	if err := h.userRepository.UpsertUser(c.Request().Context(), user); err != nil {
		return appError(err)
	}
	return success(c, http.StatusOK, echo.Map{"user": user})
}

// GetContributions lists the stories the user wrote scenes in
func (h *UserHandler) GetContributions(c echo.Context) error {
	sort, err := querySort(c)
	if err != nil {
		return appError(err)
	}
	seq, err := h.registry.Contributions(c.Request().Context(), c.Param("id"), sort, queryLimit(c))
	if err != nil {
		return appError(err)
	}
	return respondStories(c, seq)
}
