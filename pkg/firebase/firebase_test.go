package firebase

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewIdentity_RequiresCredentials(t *testing.T) {
	_, err := NewIdentity(context.Background(), Options{}, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "credentials path not provided")

	missing := filepath.Join(t.TempDir(), "absent.json")
	_, err = NewIdentity(context.Background(), Options{CredentialsPath: missing}, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), missing)
}
