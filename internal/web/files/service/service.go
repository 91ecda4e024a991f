// Package service implements the dual-write coordinator that keeps the blob
// store and the record store consistent from the caller's point of view.
package service

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/Laisky/errors/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	"github.com/google/uuid"

	"github.com/file-vault/file-vault/internal/web/files/model"
	"github.com/file-vault/file-vault/library/log"
)

const (
	defaultMaxFileSize   = 100 << 20
	defaultStoreTimeout  = 25 * time.Second
	defaultRecordTimeout = 25 * time.Second
)

// BlobStore is the byte side of the pair. Implementations must treat Put as
// atomic per key: either the object is readable afterwards or it is not.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, int64, error)
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

// RecordStore is the metadata side of the pair, partitioned by owner.
// Lookups for an absent record return model.ErrNotFound.
type RecordStore interface {
	Create(ctx context.Context, record *model.FileRecord) error
	ListByOwner(ctx context.Context, ownerID string) ([]*model.FileRecord, error)
	GetByIDOwner(ctx context.Context, id, ownerID string) (*model.FileRecord, error)
	UpdateMetadata(ctx context.Context, id, ownerID string, patch model.MetadataPatch) (*model.FileRecord, error)
	Delete(ctx context.Context, id, ownerID string) error
	SearchByOwner(ctx context.Context, ownerID, query string) ([]*model.FileRecord, error)
}

// Service owns the invariant "record exists ⇒ blob exists". Nothing else may
// write either store.
type Service struct {
	blobs   BlobStore
	records RecordStore
	logger  logSDK.Logger

	maxSizeBytes  int64
	blobTimeout   time.Duration
	recordTimeout time.Duration
}

// Option tunes a Service.
type Option func(*Service)

// WithMaxFileSize caps the accepted payload size in bytes.
func WithMaxFileSize(n int64) Option {
	return func(s *Service) { s.maxSizeBytes = n }
}

// WithStoreTimeouts bounds the blob write and the record write independently.
func WithStoreTimeouts(blob, record time.Duration) Option {
	return func(s *Service) { s.blobTimeout, s.recordTimeout = blob, record }
}

// WithLogger replaces the default logger.
func WithLogger(logger logSDK.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// New creates the coordinator. Either store may be nil; every operation then
// fails fast with ErrNotConfigured instead of attempting a partial write.
func New(blobs BlobStore, records RecordStore, opts ...Option) *Service {
	s := &Service{
		blobs:         blobs,
		records:       records,
		logger:        log.Logger.Named("files"),
		maxSizeBytes:  defaultMaxFileSize,
		blobTimeout:   defaultStoreTimeout,
		recordTimeout: defaultRecordTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Configured reports whether both backing stores are wired.
func (s *Service) Configured() bool {
	return s.blobs != nil && s.records != nil
}

// UploadInput is one logical "store this file" intent.
type UploadInput struct {
	OwnerID     string
	FileName    string
	MimeType    string
	Description string
	Tags        []string
	Content     []byte
}

// Upload persists a new file across both stores. Ordering is load-bearing:
// the blob write strictly precedes the record write, so a failure can only
// ever leave an unreferenced blob, never a record without bytes.
func (s *Service) Upload(ctx context.Context, input UploadInput) (*model.FileRecord, error) {
	if err := s.validateUpload(&input); err != nil {
		return nil, err
	}
	if !s.Configured() {
		return nil, errors.WithStack(ErrNotConfigured)
	}

	id := uuid.New().String()
	key := model.BlobKey(input.OwnerID, id, input.FileName)

	start := time.Now()
	blobCtx, cancelBlob := context.WithTimeout(ctx, s.blobTimeout)
	defer cancelBlob()
	err := s.blobs.Put(blobCtx, key,
		bytes.NewReader(input.Content), int64(len(input.Content)), input.MimeType)
	if err != nil {
		elapsed := time.Since(start)
		s.logger.Error("write blob",
			zap.Error(err),
			zap.String("blob_key", key),
			zap.Duration("elapsed", elapsed))
		return nil, errors.Wrapf(ErrUploadFailed, "blob store write after %s", elapsed)
	}

	now := time.Now().UTC()
	record := &model.FileRecord{
		ID:          id,
		OwnerID:     input.OwnerID,
		FileName:    input.FileName,
		SizeBytes:   int64(len(input.Content)),
		MimeType:    input.MimeType,
		BlobKey:     key,
		BlobURL:     s.blobs.URL(key),
		Description: input.Description,
		Tags:        input.Tags,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if record.Tags == nil {
		record.Tags = []string{}
	}

	start = time.Now()
	recCtx, cancelRec := context.WithTimeout(ctx, s.recordTimeout)
	defer cancelRec()
	if err = s.records.Create(recCtx, record); err != nil {
		elapsed := time.Since(start)
		// No transaction spans the two stores, so the blob written above is
		// now an orphan. It stays until cleaned up out of band; a client
		// retry writes a fresh key.
		s.logger.Error("write file record, blob orphaned",
			zap.Error(err),
			zap.String("blob_key", key),
			zap.Duration("elapsed", elapsed))
		return nil, errors.Wrapf(ErrUploadFailed,
			"record store write after %s, orphan blob %q", elapsed, key)
	}

	s.logger.Info("file uploaded",
		zap.String("id", id),
		zap.String("owner_id", input.OwnerID),
		zap.String("file_name", input.FileName),
		zap.Int64("size_bytes", record.SizeBytes),
		zap.Duration("elapsed", time.Since(start)))
	return record, nil
}

// Get returns one record for the owner, or model.ErrNotFound.
func (s *Service) Get(ctx context.Context, id, ownerID string) (*model.FileRecord, error) {
	if !s.Configured() {
		return nil, errors.WithStack(ErrNotConfigured)
	}
	if err := requireIDOwner(id, ownerID); err != nil {
		return nil, err
	}

	record, err := s.records.GetByIDOwner(ctx, id, ownerID)
	if err != nil {
		return nil, errors.Wrapf(err, "get file %q for owner %q", id, ownerID)
	}

	return record, nil
}

// List returns every record for the owner, newest first.
func (s *Service) List(ctx context.Context, ownerID string) ([]*model.FileRecord, error) {
	if !s.Configured() {
		return nil, errors.WithStack(ErrNotConfigured)
	}
	if strings.TrimSpace(ownerID) == "" {
		return nil, errors.Wrap(ErrValidation, "ownerId is required")
	}

	records, err := s.records.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, errors.Wrapf(err, "list files for owner %q", ownerID)
	}

	return records, nil
}

// Search filters an owner's records by a case-insensitive substring over
// file name, description and tags.
func (s *Service) Search(ctx context.Context, ownerID, query string) ([]*model.FileRecord, error) {
	if !s.Configured() {
		return nil, errors.WithStack(ErrNotConfigured)
	}
	if strings.TrimSpace(ownerID) == "" {
		return nil, errors.Wrap(ErrValidation, "ownerId is required")
	}
	if strings.TrimSpace(query) == "" {
		return nil, errors.Wrap(ErrValidation, "search query is required")
	}

	records, err := s.records.SearchByOwner(ctx, ownerID, query)
	if err != nil {
		return nil, errors.Wrapf(err, "search files for owner %q", ownerID)
	}

	return records, nil
}

// Stats summarizes an owner's stored files by count, size and extension.
func (s *Service) Stats(ctx context.Context, ownerID string) (totalSize int64, byExt map[string]int, count int, err error) {
	records, err := s.List(ctx, ownerID)
	if err != nil {
		return 0, nil, 0, err
	}

	byExt = make(map[string]int)
	for _, record := range records {
		totalSize += record.SizeBytes
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(record.FileName), "."))
		if ext == "" {
			ext = "unknown"
		}
		byExt[ext]++
	}

	return totalSize, byExt, len(records), nil
}

// Download streams the blob bytes behind a record. The caller must close the
// reader.
func (s *Service) Download(ctx context.Context, id, ownerID string) (*model.FileRecord, io.ReadCloser, error) {
	record, err := s.Get(ctx, id, ownerID)
	if err != nil {
		return nil, nil, err
	}

	rc, _, err := s.blobs.Get(ctx, record.BlobKey)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "read blob %q", record.BlobKey)
	}

	return record, rc, nil
}

// UpdateMetadata changes description and/or tags and refreshes updatedAt.
// Everything else on the record is immutable after creation.
func (s *Service) UpdateMetadata(ctx context.Context, id, ownerID string, patch model.MetadataPatch) (*model.FileRecord, error) {
	if !s.Configured() {
		return nil, errors.WithStack(ErrNotConfigured)
	}
	if err := requireIDOwner(id, ownerID); err != nil {
		return nil, err
	}
	if patch.Description == nil && patch.Tags == nil {
		return nil, errors.Wrap(ErrValidation, "nothing to update")
	}

	record, err := s.records.UpdateMetadata(ctx, id, ownerID, patch)
	if err != nil {
		return nil, errors.Wrapf(err, "update file %q for owner %q", id, ownerID)
	}

	return record, nil
}

// Delete removes a file in the inverse order of creation: blob first, then
// record. Unlike Upload, a blob delete failure does not abort; removing the
// discoverable record wins over leaving one that points at a blob the user
// can no longer act on. The asymmetry with Upload is deliberate.
func (s *Service) Delete(ctx context.Context, id, ownerID string) (*model.FileRecord, error) {
	if !s.Configured() {
		return nil, errors.WithStack(ErrNotConfigured)
	}
	if err := requireIDOwner(id, ownerID); err != nil {
		return nil, err
	}

	record, err := s.records.GetByIDOwner(ctx, id, ownerID)
	if err != nil {
		return nil, errors.Wrapf(err, "get file %q for owner %q", id, ownerID)
	}

	start := time.Now()
	if err = s.blobs.Delete(ctx, record.BlobKey); err != nil {
		s.logger.Error("delete blob, object may be orphaned",
			zap.Error(err),
			zap.String("blob_key", record.BlobKey),
			zap.Duration("elapsed", time.Since(start)))
	}

	if err = s.records.Delete(ctx, id, ownerID); err != nil {
		return nil, errors.Wrapf(err, "delete record %q for owner %q", id, ownerID)
	}

	s.logger.Info("file deleted",
		zap.String("id", id),
		zap.String("owner_id", ownerID))
	return record, nil
}

func requireIDOwner(id, ownerID string) error {
	if strings.TrimSpace(id) == "" {
		return errors.Wrap(ErrValidation, "file id is required")
	}
	if strings.TrimSpace(ownerID) == "" {
		return errors.Wrap(ErrValidation, "ownerId is required")
	}

	return nil
}
