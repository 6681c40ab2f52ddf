package database

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/repohub/repohub-backend/internal/ratelimit"
	"github.com/repohub/repohub-backend/internal/store"
)

// IndexSpec describes the indexes of one collection.
type IndexSpec struct {
	Collection string
	Models     []mongo.IndexModel
}

func keys(fields ...string) bson.D {
	d := bson.D{}
	for _, f := range fields {
		d = append(d, bson.E{Key: f, Value: 1})
	}
	return d
}

// Indexes lists every index the stores rely on. Uniqueness on username,
// email, invitation token and reset hash backs the duplicate checks; the
// TTL indexes expire reset tokens and resend logs.
func Indexes() []IndexSpec {
	return []IndexSpec{
		{store.UsersCollection, []mongo.IndexModel{
			{Keys: keys("username"), Options: options.Index().SetUnique(true)},
			{Keys: keys("email"), Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "is_public", Value: 1}, {Key: "created_at", Value: -1}}},
		}},
		{store.RepositoriesCollection, []mongo.IndexModel{
			{Keys: keys("owner")},
			{Keys: keys("participants.user")},
			{Keys: bson.D{{Key: "is_rx_uno", Value: -1}, {Key: "featured_weight", Value: -1}, {Key: "created_at", Value: -1}}},
		}},
		{store.InvitationsCollection, []mongo.IndexModel{
			{Keys: keys("token"), Options: options.Index().SetUnique(true)},
			{Keys: keys("repo", "invited_user", "status")},
			{Keys: keys("invited_user", "status")},
		}},
		{store.ApplicationsCollection, []mongo.IndexModel{
			{Keys: bson.D{{Key: "repo", Value: 1}, {Key: "created_at", Value: -1}}},
		}},
		{store.NotificationsCollection, []mongo.IndexModel{
			{Keys: bson.D{{Key: "user", Value: 1}, {Key: "created_at", Value: -1}}},
		}},
		{store.FilesCollection, []mongo.IndexModel{
			{Keys: bson.D{{Key: "repository", Value: 1}, {Key: "importance", Value: -1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "uploaded_by", Value: 1}, {Key: "created_at", Value: -1}}},
		}},
		{store.PasswordResetsCollection, []mongo.IndexModel{
			{Keys: keys("token_hash"), Options: options.Index().SetUnique(true)},
			{Keys: keys("user_id")},
			{Keys: keys("expires_at"), Options: options.Index().SetExpireAfterSeconds(0)},
		}},
		{ratelimit.ResendLogsCollection, []mongo.IndexModel{
			{Keys: keys("key", "created_at")},
			{Keys: keys("created_at"), Options: options.Index().SetExpireAfterSeconds(int32(ratelimit.RetentionTTL.Seconds()))},
		}},
	}
}

// EnsureIndexes creates missing indexes. Existing ones are left untouched.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	for _, spec := range Indexes() {
		if _, err := db.Collection(spec.Collection).Indexes().CreateMany(ctx, spec.Models); err != nil {
			return fmt.Errorf("ensure indexes on %s: %w", spec.Collection, err)
		}
	}
	return nil
}
