package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/repohub/repohub-backend/internal/models"
)

type MongoInvitationStore struct {
	col *mongo.Collection
}

func (s *MongoInvitationStore) Create(ctx context.Context, inv *models.Invitation) error {
	if inv.ID.IsZero() {
		inv.ID = primitive.NewObjectID()
	}
	_, err := s.col.InsertOne(ctx, inv)
	return mapErr(err)
}

func (s *MongoInvitationStore) findOne(ctx context.Context, filter bson.M) (*models.Invitation, error) {
	var inv models.Invitation
	if err := s.col.FindOne(ctx, filter).Decode(&inv); err != nil {
		return nil, mapErr(err)
	}
	return &inv, nil
}

func (s *MongoInvitationStore) FindPending(ctx context.Context, repoID, userID primitive.ObjectID) (*models.Invitation, error) {
	return s.findOne(ctx, bson.M{"repo": repoID, "invited_user": userID, "status": models.InvitationPending})
}

func (s *MongoInvitationStore) FindPendingByToken(ctx context.Context, token string, userID primitive.ObjectID) (*models.Invitation, error) {
	return s.findOne(ctx, bson.M{"token": token, "invited_user": userID, "status": models.InvitationPending})
}

func (s *MongoInvitationStore) ListPendingForUser(ctx context.Context, userID primitive.ObjectID) ([]models.Invitation, error) {
	filter := bson.M{"invited_user": userID, "status": models.InvitationPending}
	return findAll[models.Invitation](ctx, s.col, filter, newestFirst())
}

func (s *MongoInvitationStore) Transition(ctx context.Context, id primitive.ObjectID, from, to models.InvitationStatus) error {
	res, err := s.col.UpdateOne(ctx,
		bson.M{"_id": id, "status": from},
		bson.M{"$set": bson.M{"status": to, "updated_at": time.Now().UTC()}})
	if err != nil {
		return mapErr(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

type MongoApplicationStore struct {
	col *mongo.Collection
}

func (s *MongoApplicationStore) Create(ctx context.Context, app *models.Application) error {
	if app.ID.IsZero() {
		app.ID = primitive.NewObjectID()
	}
	_, err := s.col.InsertOne(ctx, app)
	return mapErr(err)
}

func (s *MongoApplicationStore) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Application, error) {
	var app models.Application
	if err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&app); err != nil {
		return nil, mapErr(err)
	}
	return &app, nil
}

func (s *MongoApplicationStore) ListByRepo(ctx context.Context, repoID primitive.ObjectID) ([]models.Application, error) {
	return findAll[models.Application](ctx, s.col, bson.M{"repo": repoID}, newestFirst())
}

func (s *MongoApplicationStore) Decide(ctx context.Context, id primitive.ObjectID, status models.ApplicationStatus, by primitive.ObjectID, at time.Time) error {
	res, err := s.col.UpdateOne(ctx,
		bson.M{"_id": id, "status": models.ApplicationPending},
		bson.M{"$set": bson.M{
			"status":     status,
			"decided_by": by,
			"decided_at": at,
			"updated_at": at,
		}})
	if err != nil {
		return mapErr(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
