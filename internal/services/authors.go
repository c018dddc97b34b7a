package services

import (
	"context"
	"slices"

	"github.com/woventales/backend/internal/models"
	"github.com/woventales/backend/internal/repositories"
	"go.uber.org/zap"
)

// AuthorDirectory resolves user ids to display identities
type AuthorDirectory interface {
	// ResolveAuthors returns an entry for every id; unknown ids map to models.UnknownAuthor.
	ResolveAuthors(ctx context.Context, ids []string) (map[string]models.UserCompact, error)
}

type userDirectory struct {
	users  repositories.UserRepository
	logger *zap.Logger
}

// NewAuthorDirectory creates an AuthorDirectory backed by the user repository
func NewAuthorDirectory(users repositories.UserRepository, logger *zap.Logger) AuthorDirectory {
	return &userDirectory{users: users, logger: logger.Named("AuthorDirectory")}
}

func (d *userDirectory) ResolveAuthors(ctx context.Context, ids []string) (map[string]models.UserCompact, error) {
	unique := slices.Compact(slices.Sorted(slices.Values(ids)))
	out := make(map[string]models.UserCompact, len(unique))
	for _, id := range unique {
		out[id] = models.UnknownAuthor(id)
	}
	if len(unique) == 0 {
		return out, nil
	}

	users, err := d.users.GetUsersByIDs(ctx, unique)
	if err != nil {
		return nil, err
	}
	for i := range users {
		out[users[i].ID] = users[i].ToCompact()
	}
	if missing := len(unique) - len(users); missing > 0 {
		d.logger.Debug("Some authors are unknown to the directory", zap.Int("missing", missing))
	}
	return out, nil
}
