package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/woventales/backend/internal/apperrors"
)

func TestAppError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", apperrors.Validation("title is required"), http.StatusBadRequest, "validation_error"},
		{"not found", apperrors.NotFound("story not found"), http.StatusNotFound, "not_found"},
		{"permission", apperrors.Permission("only the author can end a scene"), http.StatusForbidden, "permission_denied"},
		{"invalid state", apperrors.InvalidState("scene has ended"), http.StatusConflict, "invalid_state"},
		{"conflict", apperrors.Conflict("entry already set"), http.StatusConflict, "conflict"},
		{"wrapped", fmt.Errorf("create scene: %w", apperrors.NotFound("parent not found")), http.StatusNotFound, "not_found"},
		{"data integrity", apperrors.DataIntegrity("dangling choice target"), http.StatusInternalServerError, "data_integrity"},
		{"plain", errors.New("connection reset"), http.StatusInternalServerError, "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			he, ok := appError(tt.err).(*echo.HTTPError)
			if assert.True(t, ok) {
				assert.Equal(t, tt.status, he.Code)
				assert.Equal(t, tt.code, codeOf(he))
			}
		})
	}
}

func TestAppError_KeepsHTTPErrors(t *testing.T) {
	in := echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	he, ok := appError(in).(*echo.HTTPError)
	assert.True(t, ok)
	assert.Same(t, in, he)
	assert.Equal(t, "unauthorized", codeOf(he))
}

func TestAppError_HidesInternalDetails(t *testing.T) {
	he := appError(errors.New("dial tcp 10.0.0.1:27017: refused")).(*echo.HTTPError)
	assert.NotContains(t, fmt.Sprint(he.Message), "10.0.0.1")
}
