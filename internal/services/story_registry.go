package services

import (
	"context"
	"iter"
	"strings"

	"github.com/woventales/backend/internal/apperrors"
	"github.com/woventales/backend/internal/metrics"
	"github.com/woventales/backend/internal/models"
	"github.com/woventales/backend/internal/repositories"
	"go.uber.org/zap"
)

// StoryRegistry owns story records and their entry scene pointer
type StoryRegistry struct {
	stories repositories.StoryRepository
	scenes  repositories.SceneRepository
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewStoryRegistry creates a new StoryRegistry
func NewStoryRegistry(
	stories repositories.StoryRepository,
	scenes repositories.SceneRepository,
	m *metrics.Metrics,
	logger *zap.Logger,
) *StoryRegistry {
	return &StoryRegistry{
		stories: stories,
		scenes:  scenes,
		metrics: m,
		logger:  logger.Named("StoryRegistry"),
	}
}

func newStory(authorID, title string, attrs models.StoryAttrs) (*models.Story, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperrors.Validation("title is required")
	}
	status := attrs.Status
	if status == "" {
		status = models.StoryStatusPublished
	}
	if status != models.StoryStatusPublished && status != models.StoryStatusDraft {
		return nil, apperrors.Validation("unknown story status %q", status)
	}
	return &models.Story{
		Title:         title,
		AuthorID:      authorID,
		Genre:         attrs.Genre,
		CoverImageURL: attrs.CoverImageURL,
		Status:        status,
		Text:          attrs.Text,
	}, nil
}

// CreateStory creates a story with no entry scene
func (r *StoryRegistry) CreateStory(ctx context.Context, authorID, title string, attrs models.StoryAttrs) (*models.Story, error) {
	story, err := newStory(authorID, title, attrs)
	if err != nil {
		return nil, err
	}
	if err := r.stories.CreateStory(ctx, story); err != nil {
		return nil, err
	}
	r.metrics.StoryCreated()
	r.logger.Info("Story created", zap.String("storyID", story.ID.Hex()), zap.String("authorID", authorID))
	return story, nil
}

// CreateStoryWithRoot creates a story together with its entry scene.
// Either both records exist and are linked, or neither does.
func (r *StoryRegistry) CreateStoryWithRoot(ctx context.Context, authorID string, req models.CreateStoryRequest) (*models.Story, *models.Scene, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, nil, apperrors.Validation("content is required")
	}
	story, err := newStory(authorID, req.Title, models.StoryAttrs{
		Genre:         req.Genre,
		CoverImageURL: req.CoverImageURL,
		Status:        req.Status,
		Text:          req.Text,
	})
	if err != nil {
		return nil, nil, err
	}
	if err := r.stories.CreateStory(ctx, story); err != nil {
		return nil, nil, err
	}
	storyID := story.ID.Hex()
	logFields := []zap.Field{zap.String("storyID", storyID), zap.String("authorID", authorID)}

	scene := &models.Scene{
		StoryID:  story.ID,
		AuthorID: authorID,
		Content:  content,
		HasEnded: req.IsEnding,
	}
	if err := r.scenes.CreateScene(ctx, scene); err != nil {
		r.rollbackStory(ctx, storyID, logFields)
		return nil, nil, err
	}

	claimed, err := r.stories.SetEntrySceneIfUnset(ctx, storyID, scene.ID.Hex())
	if err == nil && !claimed {
		err = apperrors.Internal("entry scene of a new story was already set", nil)
	}
	if err != nil {
		rctx, cancel := rollbackContext(ctx)
		defer cancel()
		if delErr := r.scenes.DeleteScene(rctx, scene.ID.Hex()); delErr != nil {
			r.logger.Error("Failed to roll back root scene", append(logFields, zap.Error(delErr))...)
		}
		r.rollbackStory(ctx, storyID, logFields)
		return nil, nil, err
	}

	entry := scene.ID
	story.EntrySceneID = &entry
	r.metrics.StoryCreated()
	r.metrics.SceneCreated()
	r.logger.Info("Story created with entry scene", append(logFields, zap.String("sceneID", scene.ID.Hex()))...)
	return story, scene, nil
}

func (r *StoryRegistry) rollbackStory(ctx context.Context, storyID string, logFields []zap.Field) {
	ctx, cancel := rollbackContext(ctx)
	defer cancel()
	if err := r.stories.DeleteStory(ctx, storyID); err != nil {
		r.logger.Error("Failed to roll back story", append(logFields, zap.Error(err))...)
		return
	}
	r.logger.Warn("Rolled back partially created story", logFields...)
}

// GetStory returns a story by id
func (r *StoryRegistry) GetStory(ctx context.Context, id string) (*models.Story, error) {
	return r.stories.GetStoryByID(ctx, id)
}

// ListStories returns a lazy, restartable sequence of story summaries
func (r *StoryRegistry) ListStories(ctx context.Context, filter models.StoryFilter, sort models.StorySort, limit int) iter.Seq2[models.StorySummary, error] {
	return r.stories.ListStories(ctx, filter, sort, limit)
}

// ListFinished lists stories having at least one ending scene
func (r *StoryRegistry) ListFinished(ctx context.Context, sort models.StorySort, limit int) (iter.Seq2[models.StorySummary, error], error) {
	ids, err := r.scenes.StoryIDsWithEndings(ctx)
	if err != nil {
		return nil, err
	}
	return r.stories.ListStories(ctx, models.StoryFilter{IDs: ids}, sort, limit), nil
}

// ListOngoing lists stories without any ending scene
func (r *StoryRegistry) ListOngoing(ctx context.Context, sort models.StorySort, limit int) (iter.Seq2[models.StorySummary, error], error) {
	ids, err := r.scenes.StoryIDsWithEndings(ctx)
	if err != nil {
		return nil, err
	}
	return r.stories.ListStories(ctx, models.StoryFilter{ExcludeIDs: ids}, sort, limit), nil
}

// Contributions lists the stories in which userID wrote at least one scene
func (r *StoryRegistry) Contributions(ctx context.Context, userID string, sort models.StorySort, limit int) (iter.Seq2[models.StorySummary, error], error) {
	ids, err := r.scenes.StoryIDsByAuthor(ctx, userID)
	if err != nil {
		return nil, err
	}
	return r.stories.ListStories(ctx, models.StoryFilter{IDs: ids}, sort, limit), nil
}

// SetEntryScene points the story at its root scene. The pointer is set once:
// repeating the same id is a no-op, a different id is a conflict.
func (r *StoryRegistry) SetEntryScene(ctx context.Context, storyID, sceneID string) error {
	story, err := r.stories.GetStoryByID(ctx, storyID)
	if err != nil {
		return err
	}
	if story.HasEntryScene() {
		return sameEntry(story, sceneID)
	}

	scene, err := r.scenes.GetSceneByID(ctx, sceneID)
	if err != nil {
		return err
	}
	if scene.StoryID != story.ID {
		return apperrors.Conflict("scene %s belongs to another story", sceneID)
	}
	if !scene.IsRoot() {
		return apperrors.InvalidState("scene %s has a parent and cannot be the entry scene", sceneID)
	}

	claimed, err := r.stories.SetEntrySceneIfUnset(ctx, storyID, sceneID)
	if err != nil {
		return err
	}
	if claimed {
		return nil
	}
	if story, err = r.stories.GetStoryByID(ctx, storyID); err != nil {
		return err
	}
	return sameEntry(story, sceneID)
}

func sameEntry(story *models.Story, sceneID string) error {
	if story.EntrySceneID.Hex() == sceneID {
		return nil
	}
	return apperrors.Conflict("story already has entry scene %s", story.EntrySceneID.Hex())
}
