package ratelimit

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ResendLogsCollection holds one document per recorded attempt.
const ResendLogsCollection = "resend_logs"

type resendLog struct {
	Key       string    `bson:"key"`
	CreatedAt time.Time `bson:"created_at"`
}

// MongoStore is the durable attempt log. A TTL index on created_at expires
// entries after RetentionTTL (see database.EnsureIndexes).
type MongoStore struct {
	col *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{col: db.Collection(ResendLogsCollection)}
}

func (s *MongoStore) Attempts(ctx context.Context, key string, since time.Time) ([]time.Time, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetProjection(bson.M{"created_at": 1})
	cur, err := s.col.Find(ctx, bson.M{"key": key, "created_at": bson.M{"$gte": since.UTC()}}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []time.Time
	for cur.Next(ctx) {
		var entry resendLog
		if err := cur.Decode(&entry); err != nil {
			return nil, err
		}
		out = append(out, entry.CreatedAt)
	}
	return out, cur.Err()
}

func (s *MongoStore) Record(ctx context.Context, key string, at time.Time) error {
	_, err := s.col.InsertOne(ctx, resendLog{Key: key, CreatedAt: at.UTC()})
	return err
}
