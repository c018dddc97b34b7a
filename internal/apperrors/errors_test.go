package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindMatching(t *testing.T) {
	err := NotFound("story %s not found", "abc")
	wrapped := fmt.Errorf("loading story: %w", err)

	assert.True(t, errors.Is(wrapped, ErrNotFound))
	assert.False(t, errors.Is(wrapped, ErrConflict))
	assert.Equal(t, KindNotFound, KindOf(wrapped))
	assert.Equal(t, "story abc not found", MessageOf(wrapped))
}

func TestUnclassifiedIsInternal(t *testing.T) {
	err := errors.New("socket closed")

	assert.Equal(t, KindInternal, KindOf(err))
	assert.Equal(t, "internal server error", MessageOf(err))
}

func TestInternalHidesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Internal("failed to load scene", cause)

	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, "internal server error", MessageOf(err))
}

func TestDataIntegrityIsGeneric(t *testing.T) {
	err := DataIntegrity("choice %s points to missing scene", "c1")

	assert.True(t, errors.Is(err, ErrDataIntegrity))
	assert.Equal(t, "internal server error", MessageOf(err))
}
