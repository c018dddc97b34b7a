package repositories

import (
	"context"
	"iter"
	"time"

	"github.com/woventales/backend/internal/apperrors"
	"github.com/woventales/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// StoryRepository defines the interface for story operations
type StoryRepository interface {
	CreateStory(ctx context.Context, story *models.Story) error
	GetStoryByID(ctx context.Context, id string) (*models.Story, error)
	// ListStories returns a lazy sequence; every range over it re-runs the query.
	ListStories(ctx context.Context, filter models.StoryFilter, sort models.StorySort, limit int) iter.Seq2[models.StorySummary, error]
	// SetEntrySceneIfUnset reports whether this call claimed the entry scene slot.
	SetEntrySceneIfUnset(ctx context.Context, storyID, sceneID string) (bool, error)
	// DeleteStory is only used to roll back a failed composite creation.
	DeleteStory(ctx context.Context, id string) error
	ToggleLike(ctx context.Context, storyID, userID string) (models.LikeResult, error)
	// UpsertRating stores the user's rating and returns the story's current ratings.
	UpsertRating(ctx context.Context, storyID, userID string, value int) ([]models.Rating, error)
	IncrementCommentsCount(ctx context.Context, storyID string) error
	IncrementViews(ctx context.Context, storyID string) error
}

// MongoStoryRepository implements StoryRepository for MongoDB
type MongoStoryRepository struct {
	collection *mongo.Collection
	logger     *zap.Logger
}

var _ StoryRepository = (*MongoStoryRepository)(nil)

// NewMongoStoryRepository creates a new MongoStoryRepository
func NewMongoStoryRepository(db *mongo.Database, logger *zap.Logger) *MongoStoryRepository {
	return &MongoStoryRepository{
		collection: db.Collection("stories"),
		logger:     logger.Named("MongoStoryRepo"),
	}
}

// EnsureIndexes creates the indexes used by listings
func (r *MongoStoryRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}},
		{Keys: bson.D{{Key: "author_id", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "genre", Value: 1}}},
	})
	return err
}

// CreateStory inserts a new story without an entry scene
func (r *MongoStoryRepository) CreateStory(ctx context.Context, story *models.Story) error {
	now := time.Now()
	story.ID = primitive.NewObjectID()
	story.EntrySceneID = nil
	story.CreatedAt = now
	story.UpdatedAt = now
	if story.Likes == nil {
		story.Likes = []string{}
	}
	if story.Ratings == nil {
		story.Ratings = []models.Rating{}
	}
	if _, err := r.collection.InsertOne(ctx, story); err != nil {
		r.logger.Error("Failed to insert story", zap.String("authorID", story.AuthorID), zap.Error(err))
		return apperrors.Internal("failed to create story", err)
	}
	return nil
}

// GetStoryByID retrieves a story by ID
func (r *MongoStoryRepository) GetStoryByID(ctx context.Context, id string) (*models.Story, error) {
	objID, err := ParseObjectID("story", id)
	if err != nil {
		return nil, err
	}
	var story models.Story
	if err := r.collection.FindOne(ctx, bson.M{"_id": objID}).Decode(&story); err != nil {
		return nil, mongoErr("story", err)
	}
	return &story, nil
}

// storySummaryDoc is the projection produced by the listing pipeline
type storySummaryDoc struct {
	ID            primitive.ObjectID  `bson:"_id"`
	Title         string              `bson:"title"`
	AuthorID      string              `bson:"author_id"`
	Genre         string              `bson:"genre"`
	CoverImageURL string              `bson:"cover_image_url"`
	Status        string              `bson:"status"`
	EntrySceneID  *primitive.ObjectID `bson:"entry_scene_id"`
	LikesCount    int                 `bson:"likes_count"`
	AvgRating     float64             `bson:"avg_rating"`
	RatingsCount  int                 `bson:"ratings_count"`
	CommentsCount int                 `bson:"comments_count"`
	Views         int                 `bson:"views"`
	CreatedAt     time.Time           `bson:"created_at"`
}

func (d storySummaryDoc) summary() models.StorySummary {
	s := models.StorySummary{
		ID:            d.ID.Hex(),
		Title:         d.Title,
		AuthorID:      d.AuthorID,
		Genre:         d.Genre,
		CoverImageURL: d.CoverImageURL,
		Status:        d.Status,
		LikesCount:    d.LikesCount,
		AvgRating:     d.AvgRating,
		RatingsCount:  d.RatingsCount,
		CommentsCount: d.CommentsCount,
		Views:         d.Views,
		CreatedAt:     d.CreatedAt,
	}
	if d.EntrySceneID != nil {
		s.EntrySceneID = d.EntrySceneID.Hex()
	}
	return s
}

func storyMatch(filter models.StoryFilter) (bson.M, error) {
	match := bson.M{}
	if filter.Status != "" {
		match["status"] = filter.Status
	}
	if filter.Genre != "" {
		match["genre"] = filter.Genre
	}
	if filter.AuthorID != "" {
		match["author_id"] = filter.AuthorID
	}
	idCond := bson.M{}
	if filter.IDs != nil {
		ids, err := objectIDs(filter.IDs)
		if err != nil {
			return nil, err
		}
		idCond["$in"] = ids
	}
	if len(filter.ExcludeIDs) > 0 {
		ids, err := objectIDs(filter.ExcludeIDs)
		if err != nil {
			return nil, err
		}
		idCond["$nin"] = ids
	}
	if len(idCond) > 0 {
		match["_id"] = idCond
	}
	return match, nil
}

func objectIDs(ids []string) ([]primitive.ObjectID, error) {
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		objID, err := ParseObjectID("story", id)
		if err != nil {
			return nil, err
		}
		out = append(out, objID)
	}
	return out, nil
}

// storySortStage returns the sort stage for a key; see models.StorySort for the orderings
func storySortStage(sort models.StorySort) bson.D {
	switch sort {
	case models.SortPopular:
		return bson.D{{Key: "likes_count", Value: -1}, {Key: "views", Value: -1}, {Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}
	case models.SortRating:
		return bson.D{{Key: "avg_rating", Value: -1}, {Key: "ratings_count", Value: -1}, {Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}
	default:
		return bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}
	}
}

// ListStories streams story summaries from an aggregation cursor
func (r *MongoStoryRepository) ListStories(ctx context.Context, filter models.StoryFilter, sort models.StorySort, limit int) iter.Seq2[models.StorySummary, error] {
	return func(yield func(models.StorySummary, error) bool) {
		match, err := storyMatch(filter)
		if err != nil {
			yield(models.StorySummary{}, err)
			return
		}
		pipeline := mongo.Pipeline{
			{{Key: "$match", Value: match}},
			{{Key: "$addFields", Value: bson.M{
				"likes_count":   bson.M{"$size": bson.M{"$ifNull": bson.A{"$likes", bson.A{}}}},
				"ratings_count": bson.M{"$size": bson.M{"$ifNull": bson.A{"$ratings", bson.A{}}}},
				"avg_rating":    bson.M{"$ifNull": bson.A{bson.M{"$avg": "$ratings.value"}, 0}},
			}}},
			{{Key: "$sort", Value: storySortStage(sort)}},
			{{Key: "$limit", Value: int64(models.NormalizeLimit(limit))}},
			{{Key: "$project", Value: bson.M{"likes": 0, "ratings": 0, "text": 0}}},
		}

		cursor, err := r.collection.Aggregate(ctx, pipeline)
		if err != nil {
			r.logger.Error("Failed to list stories", zap.String("sort", string(sort)), zap.Error(err))
			yield(models.StorySummary{}, apperrors.Internal("failed to list stories", err))
			return
		}
		defer cursor.Close(ctx)

		for cursor.Next(ctx) {
			var doc storySummaryDoc
			if err := cursor.Decode(&doc); err != nil {
				yield(models.StorySummary{}, apperrors.Internal("failed to decode story", err))
				return
			}
			if !yield(doc.summary(), nil) {
				return
			}
		}
		if err := cursor.Err(); err != nil {
			yield(models.StorySummary{}, apperrors.Internal("story cursor failed", err))
		}
	}
}

// SetEntrySceneIfUnset sets the entry scene only while the slot is still empty
func (r *MongoStoryRepository) SetEntrySceneIfUnset(ctx context.Context, storyID, sceneID string) (bool, error) {
	storyObjID, err := ParseObjectID("story", storyID)
	if err != nil {
		return false, err
	}
	sceneObjID, err := ParseObjectID("scene", sceneID)
	if err != nil {
		return false, err
	}
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": storyObjID, "entry_scene_id": nil},
		bson.M{"$set": bson.M{"entry_scene_id": sceneObjID, "updated_at": time.Now()}},
	)
	if err != nil {
		return false, apperrors.Internal("failed to set entry scene", err)
	}
	return res.ModifiedCount == 1, nil
}

// DeleteStory removes a story document
func (r *MongoStoryRepository) DeleteStory(ctx context.Context, id string) error {
	objID, err := ParseObjectID("story", id)
	if err != nil {
		return err
	}
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": objID})
	if err != nil {
		return apperrors.Internal("failed to delete story", err)
	}
	if res.DeletedCount == 0 {
		return apperrors.NotFound("story not found")
	}
	return nil
}

// ToggleLike flips the user's membership in the story like set
func (r *MongoStoryRepository) ToggleLike(ctx context.Context, storyID, userID string) (models.LikeResult, error) {
	objID, err := ParseObjectID("story", storyID)
	if err != nil {
		return models.LikeResult{}, err
	}
	return toggleMembership(ctx, r.collection, "story", objID, "likes", userID)
}

// UpsertRating overwrites the user's rating or inserts it when absent.
// A push that matches nothing means another request inserted the rating
// first, so the positional update is retried once.
func (r *MongoStoryRepository) UpsertRating(ctx context.Context, storyID, userID string, value int) ([]models.Rating, error) {
	objID, err := ParseObjectID("story", storyID)
	if err != nil {
		return nil, err
	}
	logFields := []zap.Field{zap.String("storyID", storyID), zap.String("userID", userID), zap.Int("value", value)}

	updateExisting := func() (bool, error) {
		res, err := r.collection.UpdateOne(ctx,
			bson.M{"_id": objID, "ratings.user_id": userID},
			bson.M{"$set": bson.M{"ratings.$.value": value, "updated_at": time.Now()}},
		)
		if err != nil {
			return false, err
		}
		return res.MatchedCount > 0, nil
	}

	updated, err := updateExisting()
	if err != nil {
		r.logger.Error("Failed to update rating", append(logFields, zap.Error(err))...)
		return nil, apperrors.Internal("failed to rate story", err)
	}
	if !updated {
		res, err := r.collection.UpdateOne(ctx,
			bson.M{"_id": objID, "ratings.user_id": bson.M{"$ne": userID}},
			bson.M{
				"$push": bson.M{"ratings": models.Rating{UserID: userID, Value: value}},
				"$set":  bson.M{"updated_at": time.Now()},
			},
		)
		if err != nil {
			r.logger.Error("Failed to insert rating", append(logFields, zap.Error(err))...)
			return nil, apperrors.Internal("failed to rate story", err)
		}
		if res.MatchedCount == 0 {
			r.logger.Debug("Rating inserted concurrently, retrying update", logFields...)
			if updated, err = updateExisting(); err != nil {
				return nil, apperrors.Internal("failed to rate story", err)
			}
			if !updated {
				return nil, apperrors.NotFound("story not found")
			}
		}
	}

	var doc struct {
		Ratings []models.Rating `bson:"ratings"`
	}
	opts := options.FindOne().SetProjection(bson.M{"ratings": 1})
	if err := r.collection.FindOne(ctx, bson.M{"_id": objID}, opts).Decode(&doc); err != nil {
		return nil, mongoErr("story", err)
	}
	return doc.Ratings, nil
}

// IncrementCommentsCount increments the comments count of a story
func (r *MongoStoryRepository) IncrementCommentsCount(ctx context.Context, storyID string) error {
	return r.increment(ctx, storyID, "comments_count")
}

// IncrementViews increments the view count of a story
func (r *MongoStoryRepository) IncrementViews(ctx context.Context, storyID string) error {
	return r.increment(ctx, storyID, "views")
}

func (r *MongoStoryRepository) increment(ctx context.Context, storyID, field string) error {
	objID, err := ParseObjectID("story", storyID)
	if err != nil {
		return err
	}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": objID}, bson.M{"$inc": bson.M{field: 1}})
	if err != nil {
		return apperrors.Internal("failed to update story counter", err)
	}
	if res.MatchedCount == 0 {
		return apperrors.NotFound("story not found")
	}
	return nil
}
