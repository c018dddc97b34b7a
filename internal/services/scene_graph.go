package services

import (
	"context"
	"strings"

	"github.com/woventales/backend/internal/apperrors"
	"github.com/woventales/backend/internal/metrics"
	"github.com/woventales/backend/internal/models"
	"github.com/woventales/backend/internal/repositories"
	"github.com/woventales/backend/internal/traversal"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// SceneGraph owns scenes and the parent/choice links between them
type SceneGraph struct {
	stories repositories.StoryRepository
	scenes  repositories.SceneRepository
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewSceneGraph creates a new SceneGraph
func NewSceneGraph(
	stories repositories.StoryRepository,
	scenes repositories.SceneRepository,
	m *metrics.Metrics,
	logger *zap.Logger,
) *SceneGraph {
	return &SceneGraph{
		stories: stories,
		scenes:  scenes,
		metrics: m,
		logger:  logger.Named("SceneGraph"),
	}
}

// CreateScene adds a scene to a story. An empty parentID creates the root,
// which is only allowed while the story has no entry scene.
func (g *SceneGraph) CreateScene(ctx context.Context, storyID, parentID, authorID, content string, isEnding bool) (*models.Scene, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.Validation("content is required")
	}
	logFields := []zap.Field{zap.String("storyID", storyID), zap.String("parentID", parentID), zap.String("authorID", authorID)}

	story, err := g.stories.GetStoryByID(ctx, storyID)
	if err != nil {
		return nil, err
	}

	scene := &models.Scene{
		StoryID:  story.ID,
		AuthorID: authorID,
		Content:  content,
		HasEnded: isEnding,
	}
	if parentID != "" {
		parent, err := g.scenes.GetSceneByID(ctx, parentID)
		if err != nil {
			return nil, err
		}
		if parent.StoryID != story.ID {
			return nil, apperrors.Conflict("parent scene %s belongs to another story", parentID)
		}
		if parent.HasEnded {
			return nil, apperrors.InvalidState("parent scene %s is an ending and cannot have children", parentID)
		}
		pid := parent.ID
		scene.ParentID = &pid
	} else if story.HasEntryScene() {
		return nil, apperrors.InvalidState("story already has an entry scene; parentId is required")
	}

	if err := g.scenes.CreateScene(ctx, scene); err != nil {
		return nil, err
	}
	if scene.IsRoot() {
		if err := g.claimEntry(ctx, story, scene, logFields); err != nil {
			return nil, err
		}
	}
	g.metrics.SceneCreated()
	g.logger.Info("Scene created", append(logFields, zap.String("sceneID", scene.ID.Hex()))...)
	return scene, nil
}

// claimEntry makes a new parentless scene the entry scene. A root that loses
// the race is attached under the winning entry scene, unless the winner is
// an ending; then the new scene is removed again.
func (g *SceneGraph) claimEntry(ctx context.Context, story *models.Story, scene *models.Scene, logFields []zap.Field) error {
	sceneID := scene.ID.Hex()
	logFields = append(logFields, zap.String("sceneID", sceneID))
	claimed, err := g.stories.SetEntrySceneIfUnset(ctx, story.ID.Hex(), sceneID)
	if err == nil && claimed {
		entry := scene.ID
		story.EntrySceneID = &entry
		return nil
	}
	if err == nil {
		err = g.attachUnderEntry(ctx, story.ID.Hex(), scene, logFields)
	}
	if err != nil {
		g.rollbackScene(ctx, sceneID, logFields)
		return err
	}
	return nil
}

func (g *SceneGraph) attachUnderEntry(ctx context.Context, storyID string, scene *models.Scene, logFields []zap.Field) error {
	current, err := g.stories.GetStoryByID(ctx, storyID)
	if err != nil {
		return err
	}
	if !current.HasEntryScene() {
		return apperrors.Internal("entry scene claim failed without a winner", nil)
	}
	winner, err := g.scenes.GetSceneByID(ctx, current.EntrySceneID.Hex())
	if err != nil {
		return err
	}
	if winner.HasEnded {
		return apperrors.InvalidState("story already has an entry scene and it is an ending")
	}
	if err := g.scenes.SetParent(ctx, scene.ID.Hex(), winner.ID.Hex()); err != nil {
		return err
	}
	pid := winner.ID
	scene.ParentID = &pid
	g.logger.Warn("Lost entry scene race, attached under the current entry scene",
		append(logFields, zap.String("entrySceneID", winner.ID.Hex()))...)
	return nil
}

func (g *SceneGraph) rollbackScene(ctx context.Context, sceneID string, logFields []zap.Field) {
	ctx, cancel := rollbackContext(ctx)
	defer cancel()
	if err := g.scenes.DeleteScene(ctx, sceneID); err != nil {
		g.logger.Error("Failed to roll back scene", append(logFields, zap.Error(err))...)
	}
}

// GetScene returns a scene by id
func (g *SceneGraph) GetScene(ctx context.Context, id string) (*models.Scene, error) {
	return g.scenes.GetSceneByID(ctx, id)
}

// GetChildren returns the children of a scene in creation order
func (g *SceneGraph) GetChildren(ctx context.Context, sceneID string) ([]models.Scene, error) {
	if _, err := g.scenes.GetSceneByID(ctx, sceneID); err != nil {
		return nil, err
	}
	return g.scenes.GetChildren(ctx, sceneID)
}

// GetScenesForStory returns every scene of a story in creation order
func (g *SceneGraph) GetScenesForStory(ctx context.Context, storyID string) ([]models.Scene, error) {
	if _, err := g.stories.GetStoryByID(ctx, storyID); err != nil {
		return nil, err
	}
	return g.scenes.GetScenesByStory(ctx, storyID)
}

// AddChoice appends a choice leading from sceneID to targetSceneID
func (g *SceneGraph) AddChoice(ctx context.Context, sceneID, text, targetSceneID string) (*models.Choice, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.Validation("choice text is required")
	}
	if _, err := repositories.ParseObjectID("target scene", targetSceneID); err != nil {
		return nil, err
	}

	scene, err := g.scenes.GetSceneByID(ctx, sceneID)
	if err != nil {
		return nil, err
	}
	target, err := g.scenes.GetSceneByID(ctx, targetSceneID)
	if err != nil {
		return nil, err
	}
	if target.StoryID != scene.StoryID {
		return nil, apperrors.Conflict("target scene %s belongs to another story", targetSceneID)
	}

	choice := models.Choice{
		ID:            primitive.NewObjectID(),
		Text:          text,
		TargetSceneID: target.ID,
	}
	if err := g.scenes.AppendChoice(ctx, sceneID, choice); err != nil {
		return nil, err
	}
	g.logger.Debug("Choice added", zap.String("sceneID", sceneID), zap.String("targetSceneID", targetSceneID))
	return &choice, nil
}

// MarkEnding turns a scene into an ending. Only the scene's author may do this.
func (g *SceneGraph) MarkEnding(ctx context.Context, sceneID, requesterID string) error {
	scene, err := g.scenes.GetSceneByID(ctx, sceneID)
	if err != nil {
		return err
	}
	if scene.AuthorID != requesterID {
		return apperrors.Permission("only the author of the scene can mark it as an ending")
	}
	if scene.HasEnded {
		return nil
	}
	if _, err := g.scenes.MarkEnded(ctx, sceneID); err != nil {
		return err
	}
	g.logger.Info("Scene marked as ending", zap.String("sceneID", sceneID))
	return nil
}

// ToggleLike flips the user's like on a scene
func (g *SceneGraph) ToggleLike(ctx context.Context, sceneID, userID string) (models.LikeResult, error) {
	res, err := g.scenes.ToggleLike(ctx, sceneID, userID)
	if err != nil {
		return models.LikeResult{}, err
	}
	g.metrics.Engagement("scene_like")
	return res, nil
}

// CreateBranch creates a child scene under parentID reached by a new choice
func (g *SceneGraph) CreateBranch(ctx context.Context, parentID, authorID, choiceText, content string, isEnding bool) (*models.Scene, *models.Choice, error) {
	if strings.TrimSpace(choiceText) == "" {
		return nil, nil, apperrors.Validation("choice text is required")
	}
	parent, err := g.scenes.GetSceneByID(ctx, parentID)
	if err != nil {
		return nil, nil, err
	}

	child, err := g.CreateScene(ctx, parent.StoryID.Hex(), parentID, authorID, content, isEnding)
	if err != nil {
		return nil, nil, err
	}
	choice, err := g.AddChoice(ctx, parentID, choiceText, child.ID.Hex())
	if err != nil {
		g.rollbackScene(ctx, child.ID.Hex(), []zap.Field{zap.String("parentID", parentID), zap.String("sceneID", child.ID.Hex())})
		return nil, nil, err
	}
	return child, choice, nil
}

// LoadStoryScenes materializes the reading payload of a story
func (g *SceneGraph) LoadStoryScenes(ctx context.Context, storyID string) (models.StoryScenes, error) {
	story, err := g.stories.GetStoryByID(ctx, storyID)
	if err != nil {
		return models.StoryScenes{}, err
	}
	scenes, err := g.scenes.GetScenesByStory(ctx, storyID)
	if err != nil {
		return models.StoryScenes{}, err
	}
	return models.NewStoryScenes(story, scenes), nil
}

// ValidateStoryGraph checks the structural invariants of a story's scenes
func (g *SceneGraph) ValidateStoryGraph(ctx context.Context, storyID string) (traversal.Report, error) {
	view, err := g.LoadStoryScenes(ctx, storyID)
	if err != nil {
		return traversal.Report{}, err
	}
	report := traversal.New(view).Validate()
	if !report.Valid {
		g.logger.Warn("Story graph has violations",
			zap.String("storyID", storyID), zap.Int("violations", len(report.Violations)))
	}
	return report, nil
}
