package dao

import (
	"context"
	"regexp"
	"time"

	"github.com/Laisky/errors/v2"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	mongoLib "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/file-vault/file-vault/internal/web/files/model"
)

// Records stores file metadata documents in mongo, partitioned by owner.
type Records struct {
	db *model.DB
}

// NewRecords creates a record store over the files database handle.
func NewRecords(db *model.DB) *Records {
	return &Records{db: db}
}

func (r *Records) Create(ctx context.Context, record *model.FileRecord) error {
	if _, err := r.db.GetFilesCol().InsertOne(ctx, record); err != nil {
		return errors.Wrapf(err, "insert record %q", record.ID)
	}

	return nil
}

func (r *Records) ListByOwner(ctx context.Context, ownerID string) ([]*model.FileRecord, error) {
	cur, err := r.db.GetFilesCol().Find(ctx,
		bson.M{"owner_id": ownerID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "find records for owner %q", ownerID)
	}

	records := make([]*model.FileRecord, 0)
	if err = cur.All(ctx, &records); err != nil {
		return nil, errors.Wrap(err, "decode records")
	}

	return records, nil
}

func (r *Records) GetByIDOwner(ctx context.Context, id, ownerID string) (*model.FileRecord, error) {
	record := new(model.FileRecord)
	err := r.db.GetFilesCol().
		FindOne(ctx, bson.M{"_id": id, "owner_id": ownerID}).
		Decode(record)
	if err != nil {
		if errors.Is(err, mongoLib.ErrNoDocuments) {
			return nil, errors.Wrapf(model.ErrNotFound, "record %q", id)
		}
		return nil, errors.Wrapf(err, "find record %q", id)
	}

	return record, nil
}

func (r *Records) UpdateMetadata(ctx context.Context, id, ownerID string, patch model.MetadataPatch) (*model.FileRecord, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	if patch.Description != nil {
		set["description"] = *patch.Description
	}
	if patch.Tags != nil {
		set["tags"] = *patch.Tags
	}

	record := new(model.FileRecord)
	err := r.db.GetFilesCol().
		FindOneAndUpdate(ctx,
			bson.M{"_id": id, "owner_id": ownerID},
			bson.M{"$set": set},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).
		Decode(record)
	if err != nil {
		if errors.Is(err, mongoLib.ErrNoDocuments) {
			return nil, errors.Wrapf(model.ErrNotFound, "record %q", id)
		}
		return nil, errors.Wrapf(err, "update record %q", id)
	}

	return record, nil
}

func (r *Records) Delete(ctx context.Context, id, ownerID string) error {
	result, err := r.db.GetFilesCol().
		DeleteOne(ctx, bson.M{"_id": id, "owner_id": ownerID})
	if err != nil {
		return errors.Wrapf(err, "delete record %q", id)
	}
	if result.DeletedCount == 0 {
		return errors.Wrapf(model.ErrNotFound, "record %q", id)
	}

	return nil
}

func (r *Records) SearchByOwner(ctx context.Context, ownerID, query string) ([]*model.FileRecord, error) {
	pattern := primitive.Regex{Pattern: regexp.QuoteMeta(query), Options: "i"}
	cur, err := r.db.GetFilesCol().Find(ctx,
		bson.M{
			"owner_id": ownerID,
			"$or": bson.A{
				bson.M{"file_name": pattern},
				bson.M{"description": pattern},
				bson.M{"tags": pattern},
			},
		},
		options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}}),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "search records for owner %q", ownerID)
	}

	records := make([]*model.FileRecord, 0)
	if err = cur.All(ctx, &records); err != nil {
		return nil, errors.Wrap(err, "decode records")
	}

	return records, nil
}
