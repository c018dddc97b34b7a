package repositories

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/woventales/backend/internal/apperrors"
	"github.com/woventales/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ParseObjectID converts a hex id into an ObjectID, failing with a validation error
func ParseObjectID(entity, id string) (primitive.ObjectID, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, apperrors.Validation("invalid %s ID format", entity)
	}
	return objID, nil
}

func hexIDs(values []interface{}) []string {
	ids := make([]string, 0, len(values))
	for _, v := range values {
		if oid, ok := v.(primitive.ObjectID); ok {
			ids = append(ids, oid.Hex())
		}
	}
	return ids
}

// mongoErr translates driver errors into application errors
func mongoErr(entity string, err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return apperrors.NotFound("%s not found", entity)
	}
	return apperrors.Internal(fmt.Sprintf("%s store failure", entity), err)
}

// toggleMembership flips userID in the set stored under field in a single
// FindOneAndUpdate. The pipeline update reads and writes the set atomically
// on the server, so concurrent toggles never both add or both remove.
func toggleMembership(ctx context.Context, coll *mongo.Collection, entity string, id primitive.ObjectID, field, userID string) (models.LikeResult, error) {
	current := bson.M{"$ifNull": bson.A{"$" + field, bson.A{}}}
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			field: bson.M{"$cond": bson.A{
				bson.M{"$in": bson.A{userID, current}},
				bson.M{"$setDifference": bson.A{current, bson.A{userID}}},
				bson.M{"$setUnion": bson.A{current, bson.A{userID}}},
			}},
			"updated_at": time.Now(),
		}}},
	}
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.M{field: 1})

	var doc bson.M
	if err := coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&doc); err != nil {
		return models.LikeResult{}, mongoErr(entity, err)
	}

	members := stringSlice(doc[field])
	return models.LikeResult{
		LikesCount: len(members),
		Liked:      slices.Contains(members, userID),
	}, nil
}

func stringSlice(v interface{}) []string {
	arr, ok := v.(bson.A)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
