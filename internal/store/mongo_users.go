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

type MongoUserStore struct {
	col *mongo.Collection
}

func (s *MongoUserStore) Create(ctx context.Context, u *models.User) error {
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	if u.Repositories == nil {
		u.Repositories = []primitive.ObjectID{}
	}
	_, err := s.col.InsertOne(ctx, u)
	return mapErr(err)
}

func (s *MongoUserStore) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var u models.User
	if err := s.col.FindOne(ctx, filter).Decode(&u); err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

func (s *MongoUserStore) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *MongoUserStore) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"username": username})
}

func (s *MongoUserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"email": email})
}

func (s *MongoUserStore) FindByUsernameOrEmail(ctx context.Context, username, email string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"$or": bson.A{bson.M{"username": username}, bson.M{"email": email}}})
}

func (s *MongoUserStore) FindByEmails(ctx context.Context, emails []string) ([]models.User, error) {
	if len(emails) == 0 {
		return []models.User{}, nil
	}
	return findAll[models.User](ctx, s.col, bson.M{"email": bson.M{"$in": emails}})
}

func (s *MongoUserStore) update(ctx context.Context, id primitive.ObjectID, update bson.M) error {
	res, err := s.col.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return mapErr(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoUserStore) SetVerificationCode(ctx context.Context, id primitive.ObjectID, code string, expires time.Time) error {
	return s.update(ctx, id, bson.M{"$set": bson.M{
		"verification_code":         code,
		"verification_code_expires": expires,
		"updated_at":                time.Now().UTC(),
	}})
}

func (s *MongoUserStore) ClearVerificationCode(ctx context.Context, id primitive.ObjectID) error {
	return s.update(ctx, id, bson.M{
		"$unset": bson.M{"verification_code": "", "verification_code_expires": ""},
		"$set":   bson.M{"updated_at": time.Now().UTC()},
	})
}

func (s *MongoUserStore) UpdatePassword(ctx context.Context, id primitive.ObjectID, hash string) error {
	return s.update(ctx, id, bson.M{"$set": bson.M{"password_hash": hash, "updated_at": time.Now().UTC()}})
}

func (s *MongoUserStore) AddRepository(ctx context.Context, userID, repoID primitive.ObjectID) error {
	res, err := s.col.UpdateOne(ctx,
		bson.M{"_id": userID, "repositories": bson.M{"$ne": repoID}},
		bson.M{
			"$push": bson.M{"repositories": repoID},
			"$inc":  bson.M{"repo_count": 1},
			"$set":  bson.M{"updated_at": time.Now().UTC()},
		})
	if err != nil {
		return mapErr(err)
	}
	if res.MatchedCount == 0 {
		// Either missing or already linked.
		if _, err := s.GetByID(ctx, userID); err != nil {
			return err
		}
	}
	return nil
}

func (s *MongoUserStore) RemoveRepository(ctx context.Context, userID, repoID primitive.ObjectID) error {
	_, err := s.col.UpdateOne(ctx,
		bson.M{"_id": userID, "repositories": repoID},
		bson.M{
			"$pull": bson.M{"repositories": repoID},
			"$inc":  bson.M{"repo_count": -1},
			"$set":  bson.M{"updated_at": time.Now().UTC()},
		})
	return mapErr(err)
}

func (s *MongoUserStore) UpdateProfile(ctx context.Context, id primitive.ObjectID, update models.ProfileUpdate) (*models.User, error) {
	u, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	update.Apply(&u.Profile)
	u.UpdatedAt = time.Now().UTC()

	set := bson.M{
		"nombre":        u.Nombre,
		"apellido":      u.Apellido,
		"bio":           u.Bio,
		"profile_image": u.ProfileImage,
		"hobbies":       u.Hobbies,
		"institucion":   u.Institucion,
		"ciudad":        u.Ciudad,
		"contacto":      u.Contacto,
		"is_public":     u.IsPublic,
		"updated_at":    u.UpdatedAt,
	}
	if err := s.update(ctx, id, bson.M{"$set": set}); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *MongoUserStore) ListPublic(ctx context.Context, q models.UserQuery) ([]models.User, error) {
	filter := bson.M{"is_public": true}
	if q.Search != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(q.Search), Options: "i"}
		filter["$or"] = bson.A{
			bson.M{"username": pattern},
			bson.M{"nombre": pattern},
			bson.M{"apellido": pattern},
		}
	}

	limit := q.Limit
	if limit <= 0 || limit > DefaultUserListLimit {
		limit = DefaultUserListLimit
	}
	opts := options.Find().
		SetSort(userSort(q.Sort)).
		SetLimit(int64(limit)).
		SetProjection(bson.M{"password_hash": 0, "verification_code": 0, "verification_code_expires": 0})

	return findAll[models.User](ctx, s.col, filter, opts)
}

func userSort(sort models.UserSort) bson.D {
	switch sort {
	case models.UserSortRepos:
		return bson.D{{Key: "repo_count", Value: -1}, {Key: "created_at", Value: -1}}
	case models.UserSortAntiguedad:
		return bson.D{{Key: "created_at", Value: 1}}
	default:
		return bson.D{{Key: "created_at", Value: -1}}
	}
}
