// Package global wires the backing stores and the files service from
// settings. A missing or unreachable store does not abort startup; the
// service stays unconfigured and the API answers 503 until settings are
// fixed.
package global

import (
	"context"

	gconfig "github.com/Laisky/go-config/v2"
	"github.com/Laisky/zap"

	"github.com/file-vault/file-vault/internal/web/files/dao"
	"github.com/file-vault/file-vault/internal/web/files/model"
	"github.com/file-vault/file-vault/internal/web/files/service"
	"github.com/file-vault/file-vault/library/db/minio"
	"github.com/file-vault/file-vault/library/db/mongo"
	"github.com/file-vault/file-vault/library/log"
)

var filesSvc *service.Service

// SetupFiles builds the blob and record stores and the coordinator on top.
// With settings.mock enabled everything runs on in-memory stores.
func SetupFiles(ctx context.Context) {
	opts := []service.Option{
		service.WithMaxFileSize(maxFileSize()),
	}

	if gconfig.Shared.GetBool("settings.mock") {
		log.Logger.Info("files service running on in-memory stores")
		filesSvc = service.New(dao.NewMemoryBlobs(), dao.NewMemoryRecords(), opts...)
		return
	}

	filesSvc = service.New(setupBlobs(ctx), setupRecords(ctx), opts...)
}

// FilesService returns the wired coordinator. Only valid after SetupFiles.
func FilesService() *service.Service {
	return filesSvc
}

func setupBlobs(ctx context.Context) service.BlobStore {
	dial := minio.DialInfo{
		Endpoint:  gconfig.Shared.GetString("settings.storage.endpoint"),
		AccessKey: gconfig.Shared.GetString("settings.storage.access_key"),
		SecretKey: gconfig.Shared.GetString("settings.storage.secret_key"),
		Bucket:    gconfig.Shared.GetString("settings.storage.bucket"),
		UseSSL:    gconfig.Shared.GetBool("settings.storage.ssl"),
	}
	if dial.Endpoint == "" || dial.Bucket == "" {
		log.Logger.Warn("blob store not configured, uploads will answer 503")
		return nil
	}

	cli, err := minio.NewClient(ctx, dial)
	if err != nil {
		log.Logger.Error("dial blob store", zap.Error(err),
			zap.String("endpoint", dial.Endpoint))
		return nil
	}

	return dao.NewBlobs(cli, dial.Bucket)
}

func setupRecords(ctx context.Context) service.RecordStore {
	dial := mongo.DialInfo{
		Addr:   gconfig.Shared.GetString("settings.db.files.addr"),
		DBName: gconfig.Shared.GetString("settings.db.files.db"),
		User:   gconfig.Shared.GetString("settings.db.files.user"),
		Pwd:    gconfig.Shared.GetString("settings.db.files.pwd"),
	}
	if dial.Addr == "" || dial.DBName == "" {
		log.Logger.Warn("record store not configured, uploads will answer 503")
		return nil
	}

	db, err := mongo.NewDB(ctx, dial)
	if err != nil {
		log.Logger.Error("dial record store", zap.Error(err),
			zap.String("addr", dial.Addr))
		return nil
	}

	return dao.NewRecords(model.NewDB(db))
}

func maxFileSize() int64 {
	if n := gconfig.Shared.GetInt64("settings.upload.max_size"); n > 0 {
		return n
	}
	return 100 << 20
}
