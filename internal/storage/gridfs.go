package storage

import (
	"context"
	"io"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// GridFSClient stores bodies in the Mongo database itself. References are
// GridFS file ids in hex.
type GridFSClient struct {
	bucket *gridfs.Bucket
}

func NewGridFSClient(db *mongo.Database, bucketName string) (*GridFSClient, error) {
	bucket, err := gridfs.NewBucket(db, options.GridFSBucket().SetName(bucketName))
	if err != nil {
		return nil, err
	}
	return &GridFSClient{bucket: bucket}, nil
}

func (g *GridFSClient) Scheme() string { return "gridfs" }

// EnsureBucket is a no-op: GridFS creates its collections on first write.
func (g *GridFSClient) EnsureBucket(context.Context) error { return nil }

func (g *GridFSClient) Put(_ context.Context, key string, r io.Reader, _ int64, contentType string) (string, error) {
	opts := options.GridFSUpload().SetMetadata(bson.M{"content_type": contentType})
	id, err := g.bucket.UploadFromStream(key, r, opts)
	if err != nil {
		return "", err
	}
	return id.Hex(), nil
}

func (g *GridFSClient) Get(_ context.Context, ref string) (io.ReadCloser, error) {
	id, err := primitive.ObjectIDFromHex(ref)
	if err != nil {
		return nil, ErrInvalidLocator
	}
	stream, err := g.bucket.OpenDownloadStream(id)
	if err != nil {
		return nil, err
	}
	return stream, nil
}

func (g *GridFSClient) Delete(_ context.Context, ref string) error {
	id, err := primitive.ObjectIDFromHex(ref)
	if err != nil {
		return ErrInvalidLocator
	}
	return g.bucket.Delete(id)
}
