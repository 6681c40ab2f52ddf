package store

import (
	"context"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/repohub/repohub-backend/internal/models"
)

type MongoRepositoryStore struct {
	col *mongo.Collection
}

func (s *MongoRepositoryStore) Create(ctx context.Context, r *models.Repository) error {
	if r.ID.IsZero() {
		r.ID = primitive.NewObjectID()
	}
	_, err := s.col.InsertOne(ctx, r)
	return mapErr(err)
}

func (s *MongoRepositoryStore) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Repository, error) {
	var r models.Repository
	if err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&r); err != nil {
		return nil, mapErr(err)
	}
	return &r, nil
}

func (s *MongoRepositoryStore) ListOwnedBy(ctx context.Context, userID primitive.ObjectID) ([]models.Repository, error) {
	return findAll[models.Repository](ctx, s.col, bson.M{"owner": userID}, newestFirst())
}

func (s *MongoRepositoryStore) ListParticipating(ctx context.Context, userID primitive.ObjectID) ([]models.Repository, error) {
	filter := bson.M{"participants.user": userID, "owner": bson.M{"$ne": userID}}
	return findAll[models.Repository](ctx, s.col, filter, newestFirst())
}

func (s *MongoRepositoryStore) ListPublic(ctx context.Context, search string) ([]models.Repository, error) {
	visible := bson.M{"$or": bson.A{
		bson.M{"type": models.RepoTypeCreator},
		bson.M{"type": models.RepoTypeSimple, "simple.privacy": models.PrivacyPublic},
	}}
	filter := visible
	if search != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(search), Options: "i"}
		filter = bson.M{"$and": bson.A{
			visible,
			bson.M{"$or": bson.A{bson.M{"name": pattern}, bson.M{"tags": pattern}}},
		}}
	}
	opts := options.Find().SetSort(bson.D{
		{Key: "is_rx_uno", Value: -1},
		{Key: "featured_weight", Value: -1},
		{Key: "created_at", Value: -1},
	})
	return findAll[models.Repository](ctx, s.col, filter, opts)
}

func (s *MongoRepositoryStore) AddParticipant(ctx context.Context, repoID primitive.ObjectID, p models.Participant) (bool, error) {
	res, err := s.col.UpdateOne(ctx,
		bson.M{"_id": repoID, "participants.user": bson.M{"$ne": p.User}},
		bson.M{
			"$push": bson.M{"participants": p},
			"$set":  bson.M{"updated_at": time.Now().UTC()},
		})
	if err != nil {
		return false, mapErr(err)
	}
	if res.MatchedCount == 1 {
		return true, nil
	}
	if _, err := s.GetByID(ctx, repoID); err != nil {
		return false, err
	}
	return false, nil
}

func (s *MongoRepositoryStore) AddFile(ctx context.Context, repoID, fileID primitive.ObjectID) error {
	res, err := s.col.UpdateOne(ctx, bson.M{"_id": repoID}, bson.M{
		"$addToSet": bson.M{"files": fileID},
		"$set":      bson.M{"updated_at": time.Now().UTC()},
	})
	if err != nil {
		return mapErr(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoRepositoryStore) RemoveFile(ctx context.Context, repoID, fileID primitive.ObjectID) error {
	_, err := s.col.UpdateOne(ctx, bson.M{"_id": repoID}, bson.M{
		"$pull": bson.M{"files": fileID},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	})
	return mapErr(err)
}

func (s *MongoRepositoryStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return mapErr(err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
