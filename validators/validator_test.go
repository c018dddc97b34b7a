package validators

import (
	"errors"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/woventales/backend/internal/models"
)

func TestValidate(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.Validate(&models.RateStoryRequest{Value: 3}))

	err := v.Validate(&models.RateStoryRequest{Value: 9})
	var he *echo.HTTPError
	require.True(t, errors.As(err, &he))
	assert.Equal(t, http.StatusBadRequest, he.Code)
	assert.Equal(t, "Value must be at most 5", he.Message)

	err = v.Validate(&models.CreateStoryRequest{Content: "x"})
	require.True(t, errors.As(err, &he))
	assert.Contains(t, he.Message, "Title is required")
}
