// Package model holds the persisted shape of file records.
package model

import (
	"fmt"
	"time"
)

// FileRecord is the metadata document stored for every uploaded file,
// partitioned by owner. The paired blob object lives under BlobKey; the
// record must never be created unless that blob write already succeeded.
type FileRecord struct {
	ID          string    `bson:"_id" json:"id"`
	OwnerID     string    `bson:"owner_id" json:"owner_id"`
	FileName    string    `bson:"file_name" json:"file_name"`
	SizeBytes   int64     `bson:"size_bytes" json:"size_bytes"`
	MimeType    string    `bson:"mime_type" json:"mime_type"`
	BlobKey     string    `bson:"blob_key" json:"blob_key"`
	BlobURL     string    `bson:"blob_url" json:"blob_url"`
	Description string    `bson:"description" json:"description"`
	Tags        []string  `bson:"tags" json:"tags"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at" json:"updated_at"`
}

// MetadataPatch carries the only mutable fields of a FileRecord.
// Nil means "leave unchanged".
type MetadataPatch struct {
	Description *string
	Tags        *[]string
}

// BlobKey derives the storage key for a file. The record id is unique per
// upload, so concurrent uploads of the same name by one owner never collide.
func BlobKey(ownerID, id, fileName string) string {
	return fmt.Sprintf("%s/%s-%s", ownerID, id, fileName)
}
