package services

import (
	"context"

	"github.com/woventales/backend/internal/apperrors"
	"github.com/woventales/backend/internal/metrics"
	"github.com/woventales/backend/internal/models"
	"github.com/woventales/backend/internal/repositories"
	"github.com/woventales/backend/internal/traversal"
	"go.uber.org/zap"
)

// Reader serves reading sessions over the traversal engine and records progress.
// Sessions are stateless on the server: the client sends back the scene it is on.
type Reader struct {
	graph      *SceneGraph
	engagement *Engagement
	progress   repositories.ProgressRepository
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// NewReader creates a new Reader
func NewReader(
	graph *SceneGraph,
	engagement *Engagement,
	progress repositories.ProgressRepository,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Reader {
	return &Reader{
		graph:      graph,
		engagement: engagement,
		progress:   progress,
		metrics:    m,
		logger:     logger.Named("Reader"),
	}
}

// ReadStory returns the reading payload and counts a view
func (r *Reader) ReadStory(ctx context.Context, storyID string) (models.StoryScenes, error) {
	view, err := r.graph.LoadStoryScenes(ctx, storyID)
	if err != nil {
		return models.StoryScenes{}, err
	}
	if err := r.engagement.RecordView(ctx, storyID); err != nil {
		r.logger.Warn("Failed to record view", zap.String("storyID", storyID), zap.Error(err))
	}
	return view, nil
}

func (r *Reader) load(ctx context.Context, storyID string) (*traversal.Graph, error) {
	view, err := r.graph.LoadStoryScenes(ctx, storyID)
	if err != nil {
		return nil, err
	}
	return traversal.New(view), nil
}

// Start begins a session at the entry scene
func (r *Reader) Start(ctx context.Context, userID, storyID string) (models.ReadingStep, error) {
	g, err := r.load(ctx, storyID)
	if err != nil {
		return models.ReadingStep{}, err
	}
	state, err := g.Start()
	return r.finish(ctx, "start", userID, storyID, g, state, 0, err)
}

// Choose takes choiceID from sceneID
func (r *Reader) Choose(ctx context.Context, userID, storyID, sceneID, choiceID string) (models.ReadingStep, error) {
	g, err := r.load(ctx, storyID)
	if err != nil {
		return models.ReadingStep{}, err
	}
	state, err := g.At(sceneID)
	if err != nil {
		return models.ReadingStep{}, err
	}
	next, err := g.Choose(state, choiceID)
	return r.finish(ctx, "choose", userID, storyID, g, next, 1, err)
}

// Replay applies choiceIDs from the entry scene
func (r *Reader) Replay(ctx context.Context, userID, storyID string, choiceIDs []string) (models.ReadingStep, error) {
	g, err := r.load(ctx, storyID)
	if err != nil {
		return models.ReadingStep{}, err
	}
	state, err := g.Replay(choiceIDs)
	return r.finish(ctx, "replay", userID, storyID, g, state, len(choiceIDs), err)
}

func (r *Reader) finish(ctx context.Context, op, userID, storyID string, g *traversal.Graph, state traversal.State, steps int, err error) (models.ReadingStep, error) {
	logFields := []zap.Field{zap.String("op", op), zap.String("storyID", storyID), zap.String("sceneID", state.SceneID)}
	if err != nil {
		outcome := string(apperrors.KindOf(err))
		r.metrics.ReadingStep(op, outcome)
		if apperrors.KindOf(err) == apperrors.KindDataIntegrity {
			r.metrics.DataIntegrityError()
			r.logger.Error("Broken scene graph reference", append(logFields, zap.Error(err))...)
		}
		return models.ReadingStep{}, err
	}
	r.metrics.ReadingStep(op, "ok")

	scene, _ := g.Scene(state.SceneID)
	step := models.ReadingStep{
		Scene:    scene,
		Choices:  g.Choices(state),
		Terminal: state.Terminal,
	}
	if step.Choices == nil {
		step.Choices = []models.ChoiceView{}
	}
	// Ending scenes hide their choices from readers.
	if scene.HasEnded {
		step.Scene.Choices = []models.ChoiceView{}
	}

	if userID != "" {
		if err := r.progress.RecordStep(ctx, userID, storyID, state.SceneID, state.Terminal, steps); err != nil {
			r.logger.Error("Failed to record reading progress", append(logFields, zap.Error(err))...)
		}
	}
	return step, nil
}

// ListProgress returns the reader's progress, optionally filtered by status
func (r *Reader) ListProgress(ctx context.Context, userID, status string, limit int) ([]models.StoryProgress, error) {
	if status != "" && status != models.ProgressInProgress && status != models.ProgressCompleted {
		return nil, apperrors.Validation("unknown progress status %q", status)
	}
	return r.progress.ListProgress(ctx, userID, status, limit)
}
