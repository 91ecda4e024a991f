// Package dto defines the wire representations of the files API.
package dto

import (
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/jinzhu/copier"

	"github.com/file-vault/file-vault/internal/web/files/model"
)

// File is the public projection of a stored file record.
type File struct {
	ID          string    `json:"id"`
	FileName    string    `json:"fileName"`
	SizeBytes   int64     `json:"sizeBytes"`
	MimeType    string    `json:"mimeType"`
	UploadedAt  time.Time `json:"uploadedAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	BlobURL     string    `json:"blobUrl"`
	Description string    `json:"description,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
}

// NewFile converts a stored record into its public projection.
func NewFile(record *model.FileRecord) (*File, error) {
	f := new(File)
	if err := copier.Copy(f, record); err != nil {
		return nil, errors.Wrap(err, "copy file record")
	}

	f.UploadedAt = record.CreatedAt
	return f, nil
}

// ListResponse wraps a page of files for one owner.
type ListResponse struct {
	Count int     `json:"count"`
	Files []*File `json:"files"`
}

// StatsResponse summarizes an owner's stored files.
type StatsResponse struct {
	TotalFiles     int            `json:"totalFiles"`
	TotalSizeBytes int64          `json:"totalSizeBytes"`
	ByExtension    map[string]int `json:"byExtension"`
}

// UpdateRequest carries a metadata-only update. Omitted fields stay unchanged.
type UpdateRequest struct {
	Description *string   `json:"description"`
	Tags        *[]string `json:"tags"`
}

// ErrorDetail is the safe error body surfaced to clients.
type ErrorDetail struct {
	Message   string    `json:"message"`
	Code      string    `json:"code"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorResponse is the error envelope of every non-2xx response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}
