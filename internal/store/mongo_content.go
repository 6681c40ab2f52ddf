package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/repohub/repohub-backend/internal/models"
)

type MongoNotificationStore struct {
	col *mongo.Collection
}

func (s *MongoNotificationStore) Create(ctx context.Context, n *models.Notification) error {
	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}
	_, err := s.col.InsertOne(ctx, n)
	return mapErr(err)
}

func (s *MongoNotificationStore) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Notification, error) {
	var n models.Notification
	if err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&n); err != nil {
		return nil, mapErr(err)
	}
	return &n, nil
}

func (s *MongoNotificationStore) ListForUser(ctx context.Context, userID primitive.ObjectID) ([]models.Notification, error) {
	return findAll[models.Notification](ctx, s.col, bson.M{"user": userID}, newestFirst())
}

func (s *MongoNotificationStore) MarkSeen(ctx context.Context, id, userID primitive.ObjectID) (*models.Notification, error) {
	var n models.Notification
	err := s.col.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "user": userID},
		bson.M{"$set": bson.M{"seen": true}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&n)
	if err != nil {
		return nil, mapErr(err)
	}
	return &n, nil
}

type MongoFileStore struct {
	col *mongo.Collection
}

func (s *MongoFileStore) Create(ctx context.Context, f *models.File) error {
	if f.ID.IsZero() {
		f.ID = primitive.NewObjectID()
	}
	_, err := s.col.InsertOne(ctx, f)
	return mapErr(err)
}

func (s *MongoFileStore) GetByID(ctx context.Context, id primitive.ObjectID) (*models.File, error) {
	var f models.File
	if err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&f); err != nil {
		return nil, mapErr(err)
	}
	return &f, nil
}

func (s *MongoFileStore) ListByRepo(ctx context.Context, repoID primitive.ObjectID) ([]models.File, error) {
	opts := options.Find().SetSort(bson.D{{Key: "importance", Value: -1}, {Key: "created_at", Value: -1}})
	return findAll[models.File](ctx, s.col, bson.M{"repository": repoID}, opts)
}

func (s *MongoFileStore) ListByUploader(ctx context.Context, userID primitive.ObjectID) ([]models.File, error) {
	return findAll[models.File](ctx, s.col, bson.M{"uploaded_by": userID}, newestFirst())
}

func (s *MongoFileStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return mapErr(err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

type MongoPasswordResetStore struct {
	col *mongo.Collection
}

func (s *MongoPasswordResetStore) ReplaceForUser(ctx context.Context, r *models.PasswordReset) error {
	if _, err := s.col.DeleteMany(ctx, bson.M{"user_id": r.UserID}); err != nil {
		return mapErr(err)
	}
	if r.ID.IsZero() {
		r.ID = primitive.NewObjectID()
	}
	_, err := s.col.InsertOne(ctx, r)
	return mapErr(err)
}

func (s *MongoPasswordResetStore) FindUnusedByHash(ctx context.Context, hash string) (*models.PasswordReset, error) {
	var r models.PasswordReset
	err := s.col.FindOne(ctx, bson.M{"token_hash": hash, "used_at": bson.M{"$exists": false}}).Decode(&r)
	if err != nil {
		return nil, mapErr(err)
	}
	return &r, nil
}

func (s *MongoPasswordResetStore) MarkUsed(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	res, err := s.col.UpdateOne(ctx,
		bson.M{"_id": id, "used_at": bson.M{"$exists": false}},
		bson.M{"$set": bson.M{"used_at": at}})
	if err != nil {
		return mapErr(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
