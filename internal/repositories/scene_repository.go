package repositories

import (
	"context"
	"time"

	"github.com/woventales/backend/internal/apperrors"
	"github.com/woventales/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// SceneRepository defines the interface for scene operations
type SceneRepository interface {
	CreateScene(ctx context.Context, scene *models.Scene) error
	GetSceneByID(ctx context.Context, id string) (*models.Scene, error)
	// GetChildren and GetScenesByStory return scenes in creation order.
	GetChildren(ctx context.Context, parentID string) ([]models.Scene, error)
	GetScenesByStory(ctx context.Context, storyID string) ([]models.Scene, error)
	AppendChoice(ctx context.Context, sceneID string, choice models.Choice) error
	// MarkEnded reports whether this call flipped has_ended from false to true.
	MarkEnded(ctx context.Context, sceneID string) (bool, error)
	SetParent(ctx context.Context, sceneID, parentID string) error
	// DeleteScene is only used to roll back a failed composite creation.
	DeleteScene(ctx context.Context, id string) error
	ToggleLike(ctx context.Context, sceneID, userID string) (models.LikeResult, error)
	StoryIDsWithEndings(ctx context.Context) ([]string, error)
	StoryIDsByAuthor(ctx context.Context, authorID string) ([]string, error)
}

// MongoSceneRepository implements SceneRepository for MongoDB
type MongoSceneRepository struct {
	collection *mongo.Collection
	logger     *zap.Logger
}

var _ SceneRepository = (*MongoSceneRepository)(nil)

// NewMongoSceneRepository creates a new MongoSceneRepository
func NewMongoSceneRepository(db *mongo.Database, logger *zap.Logger) *MongoSceneRepository {
	return &MongoSceneRepository{
		collection: db.Collection("scenes"),
		logger:     logger.Named("MongoSceneRepo"),
	}
}

// EnsureIndexes creates the indexes used by graph materialization
func (r *MongoSceneRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "story_id", Value: 1}, {Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}},
		{Keys: bson.D{{Key: "parent_id", Value: 1}, {Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "author_id", Value: 1}}},
		{Keys: bson.D{{Key: "has_ended", Value: 1}}},
	})
	return err
}

var creationOrder = bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}

// CreateScene inserts a new scene
func (r *MongoSceneRepository) CreateScene(ctx context.Context, scene *models.Scene) error {
	now := time.Now()
	scene.ID = primitive.NewObjectID()
	scene.CreatedAt = now
	scene.UpdatedAt = now
	if scene.Choices == nil {
		scene.Choices = []models.Choice{}
	}
	if scene.Likes == nil {
		scene.Likes = []string{}
	}
	if _, err := r.collection.InsertOne(ctx, scene); err != nil {
		r.logger.Error("Failed to insert scene", zap.String("storyID", scene.StoryID.Hex()), zap.Error(err))
		return apperrors.Internal("failed to create scene", err)
	}
	return nil
}

// GetSceneByID retrieves a scene by ID
func (r *MongoSceneRepository) GetSceneByID(ctx context.Context, id string) (*models.Scene, error) {
	objID, err := ParseObjectID("scene", id)
	if err != nil {
		return nil, err
	}
	var scene models.Scene
	if err := r.collection.FindOne(ctx, bson.M{"_id": objID}).Decode(&scene); err != nil {
		return nil, mongoErr("scene", err)
	}
	return &scene, nil
}

func (r *MongoSceneRepository) find(ctx context.Context, filter bson.M) ([]models.Scene, error) {
	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(creationOrder))
	if err != nil {
		return nil, apperrors.Internal("failed to query scenes", err)
	}
	defer cursor.Close(ctx)

	scenes := []models.Scene{}
	if err = cursor.All(ctx, &scenes); err != nil {
		return nil, apperrors.Internal("failed to decode scenes", err)
	}
	return scenes, nil
}

// GetChildren returns the scenes whose parent is parentID
func (r *MongoSceneRepository) GetChildren(ctx context.Context, parentID string) ([]models.Scene, error) {
	objID, err := ParseObjectID("scene", parentID)
	if err != nil {
		return nil, err
	}
	return r.find(ctx, bson.M{"parent_id": objID})
}

// GetScenesByStory returns every scene of a story
func (r *MongoSceneRepository) GetScenesByStory(ctx context.Context, storyID string) ([]models.Scene, error) {
	objID, err := ParseObjectID("story", storyID)
	if err != nil {
		return nil, err
	}
	return r.find(ctx, bson.M{"story_id": objID})
}

// AppendChoice pushes a choice onto the scene's ordered choice list
func (r *MongoSceneRepository) AppendChoice(ctx context.Context, sceneID string, choice models.Choice) error {
	objID, err := ParseObjectID("scene", sceneID)
	if err != nil {
		return err
	}
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": objID},
		bson.M{"$push": bson.M{"choices": choice}, "$set": bson.M{"updated_at": time.Now()}},
	)
	if err != nil {
		return apperrors.Internal("failed to add choice", err)
	}
	if res.MatchedCount == 0 {
		return apperrors.NotFound("scene not found")
	}
	return nil
}

// MarkEnded sets has_ended on a scene that has not ended yet
func (r *MongoSceneRepository) MarkEnded(ctx context.Context, sceneID string) (bool, error) {
	objID, err := ParseObjectID("scene", sceneID)
	if err != nil {
		return false, err
	}
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": objID, "has_ended": false},
		bson.M{"$set": bson.M{"has_ended": true, "updated_at": time.Now()}},
	)
	if err != nil {
		return false, apperrors.Internal("failed to mark scene as ending", err)
	}
	return res.ModifiedCount == 1, nil
}

// SetParent re-attaches a scene under another scene
func (r *MongoSceneRepository) SetParent(ctx context.Context, sceneID, parentID string) error {
	objID, err := ParseObjectID("scene", sceneID)
	if err != nil {
		return err
	}
	parentObjID, err := ParseObjectID("scene", parentID)
	if err != nil {
		return err
	}
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": objID},
		bson.M{"$set": bson.M{"parent_id": parentObjID, "updated_at": time.Now()}},
	)
	if err != nil {
		return apperrors.Internal("failed to re-parent scene", err)
	}
	if res.MatchedCount == 0 {
		return apperrors.NotFound("scene not found")
	}
	return nil
}

// DeleteScene removes a scene document
func (r *MongoSceneRepository) DeleteScene(ctx context.Context, id string) error {
	objID, err := ParseObjectID("scene", id)
	if err != nil {
		return err
	}
	if _, err := r.collection.DeleteOne(ctx, bson.M{"_id": objID}); err != nil {
		return apperrors.Internal("failed to delete scene", err)
	}
	return nil
}

// ToggleLike flips the user's membership in the scene like set
func (r *MongoSceneRepository) ToggleLike(ctx context.Context, sceneID, userID string) (models.LikeResult, error) {
	objID, err := ParseObjectID("scene", sceneID)
	if err != nil {
		return models.LikeResult{}, err
	}
	return toggleMembership(ctx, r.collection, "scene", objID, "likes", userID)
}

// StoryIDsWithEndings returns the stories having at least one ending scene
func (r *MongoSceneRepository) StoryIDsWithEndings(ctx context.Context) ([]string, error) {
	values, err := r.collection.Distinct(ctx, "story_id", bson.M{"has_ended": true})
	if err != nil {
		return nil, apperrors.Internal("failed to list finished stories", err)
	}
	return hexIDs(values), nil
}

// StoryIDsByAuthor returns the stories in which authorID wrote at least one scene
func (r *MongoSceneRepository) StoryIDsByAuthor(ctx context.Context, authorID string) ([]string, error) {
	values, err := r.collection.Distinct(ctx, "story_id", bson.M{"author_id": authorID})
	if err != nil {
		return nil, apperrors.Internal("failed to list contributions", err)
	}
	return hexIDs(values), nil
}
