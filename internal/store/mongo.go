package store

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names.
const (
	UsersCollection          = "users"
	RepositoriesCollection   = "repositories"
	InvitationsCollection    = "invitations"
	ApplicationsCollection   = "applications"
	NotificationsCollection  = "notifications"
	FilesCollection          = "files"
	PasswordResetsCollection = "password_resets"
)

// NewMongoStores wires every store to collections of db.
func NewMongoStores(db *mongo.Database) Stores {
	return Stores{
		Users:          &MongoUserStore{col: db.Collection(UsersCollection)},
		Repositories:   &MongoRepositoryStore{col: db.Collection(RepositoriesCollection)},
		Invitations:    &MongoInvitationStore{col: db.Collection(InvitationsCollection)},
		Applications:   &MongoApplicationStore{col: db.Collection(ApplicationsCollection)},
		Notifications:  &MongoNotificationStore{col: db.Collection(NotificationsCollection)},
		Files:          &MongoFileStore{col: db.Collection(FilesCollection)},
		PasswordResets: &MongoPasswordResetStore{col: db.Collection(PasswordResetsCollection)},
	}
}

// mapErr translates driver errors into store sentinels.
func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return ErrDuplicate
	}
	return err
}

func findAll[T any](ctx context.Context, col *mongo.Collection, filter any, opts ...*options.FindOptions) ([]T, error) {
	cur, err := col.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []T{}
	for cur.Next(ctx) {
		var v T
		if err := cur.Decode(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func newestFirst() *options.FindOptions {
	return options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
}
