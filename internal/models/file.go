package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// File is the metadata record of an uploaded blob. StorageLocator is the
// scheme-prefixed address understood by the storage package.
type File struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Filename       string             `bson:"filename" json:"filename"`
	OriginalName   string             `bson:"original_name" json:"original_name"`
	ContentType    string             `bson:"content_type" json:"content_type"`
	Size           int64              `bson:"size" json:"size"`
	Title          string             `bson:"title" json:"title"`
	Description    string             `bson:"description,omitempty" json:"description,omitempty"`
	Tags           []string           `bson:"tags" json:"tags"`
	Importance     int                `bson:"importance" json:"importance"`
	Sensitive      bool               `bson:"sensitive" json:"sensitive"`
	Repository     primitive.ObjectID `bson:"repository" json:"repository"`
	UploadedBy     primitive.ObjectID `bson:"uploaded_by" json:"uploaded_by"`
	StorageLocator string             `bson:"storage_locator" json:"-"`
	Checksum       string             `bson:"checksum" json:"checksum"`
	CreatedAt      time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time          `bson:"updated_at" json:"updated_at"`
}

const (
	MinImportance = 0
	MaxImportance = 3
)
