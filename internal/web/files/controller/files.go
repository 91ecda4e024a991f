// Package controller exposes the files service over HTTP.
package controller

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Laisky/errors/v2"
	gconfig "github.com/Laisky/go-config/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/file-vault/file-vault/internal/web/files/dto"
	"github.com/file-vault/file-vault/internal/web/files/model"
	"github.com/file-vault/file-vault/internal/web/files/service"
	"github.com/file-vault/file-vault/library/log"
)

// Files routes the file CRUD API onto the dual-write coordinator.
type Files struct {
	svc    *service.Service
	logger logSDK.Logger
}

// NewFiles creates the controller.
func NewFiles(svc *service.Service) *Files {
	return &Files{
		svc:    svc,
		logger: log.Logger.Named("files_api"),
	}
}

// RegisterRoutes mounts the API under /api/files.
func (f *Files) RegisterRoutes(r gin.IRouter) {
	grp := r.Group("/api/files")
	grp.POST("/upload", f.Upload)
	grp.GET("", f.List)
	grp.GET("/search", f.Search)
	grp.GET("/stats", f.Stats)
	grp.GET("/diagnostics", f.Diagnostics)
	grp.GET("/:id", f.Get)
	grp.GET("/:id/download", f.Download)
	grp.PATCH("/:id", f.Update)
	grp.DELETE("/:id", f.Delete)
}

// Upload accepts a multipart form with `file`, `ownerId` and optional
// `description`/`tags`, and answers 201 with the created projection.
func (f *Files) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		f.abortWithError(c, errors.Wrap(service.ErrValidation, "file is required"))
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		f.abortWithError(c, errors.Wrap(err, "open uploaded file"))
		return
	}
	defer src.Close()

	content, err := io.ReadAll(src)
	if err != nil {
		f.abortWithError(c, errors.Wrap(err, "read uploaded file"))
		return
	}

	record, err := f.svc.Upload(c.Request.Context(), service.UploadInput{
		OwnerID:     c.PostForm("ownerId"),
		FileName:    fileHeader.Filename,
		MimeType:    fileHeader.Header.Get("Content-Type"),
		Description: c.PostForm("description"),
		Tags:        parseTags(c.PostForm("tags")),
		Content:     content,
	})
	if err != nil {
		f.abortWithError(c, err)
		return
	}

	resp, err := dto.NewFile(record)
	if err != nil {
		f.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// List answers every file of one owner, newest first.
func (f *Files) List(c *gin.Context) {
	records, err := f.svc.List(c.Request.Context(), c.Query("ownerId"))
	if err != nil {
		f.abortWithError(c, err)
		return
	}

	f.respondList(c, records)
}

// Search filters an owner's files by substring over name, description and tags.
func (f *Files) Search(c *gin.Context) {
	records, err := f.svc.Search(c.Request.Context(), c.Query("ownerId"), c.Query("q"))
	if err != nil {
		f.abortWithError(c, err)
		return
	}

	f.respondList(c, records)
}

// Stats answers an owner's count/size/extension summary.
func (f *Files) Stats(c *gin.Context) {
	totalSize, byExt, count, err := f.svc.Stats(c.Request.Context(), c.Query("ownerId"))
	if err != nil {
		f.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.StatsResponse{
		TotalFiles:     count,
		TotalSizeBytes: totalSize,
		ByExtension:    byExt,
	})
}

// Get answers one file's metadata.
func (f *Files) Get(c *gin.Context) {
	record, err := f.svc.Get(c.Request.Context(), c.Param("id"), c.Query("ownerId"))
	if err != nil {
		f.abortWithError(c, err)
		return
	}

	f.respondFile(c, http.StatusOK, record)
}

// Download streams the stored bytes with a safe attachment header.
func (f *Files) Download(c *gin.Context) {
	record, rc, err := f.svc.Download(c.Request.Context(), c.Param("id"), c.Query("ownerId"))
	if err != nil {
		f.abortWithError(c, err)
		return
	}
	defer rc.Close()

	c.DataFromReader(http.StatusOK, record.SizeBytes, record.MimeType, rc,
		map[string]string{
			"Content-Disposition": `attachment; filename="` + escapeFileName(record.FileName) + `"`,
		})
}

// Update changes description and/or tags of one record.
func (f *Files) Update(c *gin.Context) {
	req := new(dto.UpdateRequest)
	if err := c.ShouldBindJSON(req); err != nil {
		f.abortWithError(c, errors.Wrap(service.ErrValidation, "invalid json payload"))
		return
	}

	record, err := f.svc.UpdateMetadata(c.Request.Context(),
		c.Param("id"), c.Query("ownerId"),
		model.MetadataPatch{Description: req.Description, Tags: req.Tags})
	if err != nil {
		f.abortWithError(c, err)
		return
	}

	f.respondFile(c, http.StatusOK, record)
}

// Delete removes the blob and the record. The response only depends on the
// record removal; a failed blob delete is logged server-side.
func (f *Files) Delete(c *gin.Context) {
	record, err := f.svc.Delete(c.Request.Context(), c.Param("id"), c.Query("ownerId"))
	if err != nil {
		f.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "file deleted",
		"deletedFile": gin.H{
			"id":       record.ID,
			"fileName": record.FileName,
		},
	})
}

// Diagnostics reports which required settings are present. Values are never
// echoed back.
func (f *Files) Diagnostics(c *gin.Context) {
	requiredKeys := []string{
		"settings.db.files.addr",
		"settings.db.files.db",
		"settings.storage.endpoint",
		"settings.storage.access_key",
		"settings.storage.secret_key",
		"settings.storage.bucket",
	}

	settings := make(map[string]bool, len(requiredKeys))
	for _, key := range requiredKeys {
		settings[key] = gconfig.Shared.GetString(key) != ""
	}

	c.JSON(http.StatusOK, gin.H{
		"timestamp":        time.Now().UTC(),
		"mock":             gconfig.Shared.GetBool("settings.mock"),
		"storesConfigured": f.svc.Configured(),
		"settings":         settings,
	})
}

func (f *Files) respondList(c *gin.Context, records []*model.FileRecord) {
	files := make([]*dto.File, 0, len(records))
	for _, record := range records {
		file, err := dto.NewFile(record)
		if err != nil {
			f.abortWithError(c, err)
			return
		}
		files = append(files, file)
	}

	c.JSON(http.StatusOK, dto.ListResponse{Count: len(files), Files: files})
}

func (f *Files) respondFile(c *gin.Context, status int, record *model.FileRecord) {
	file, err := dto.NewFile(record)
	if err != nil {
		f.abortWithError(c, err)
		return
	}

	c.JSON(status, file)
}

// abortWithError classifies an error into the public taxonomy. Store errors
// are logged in full here and reduced to a safe message for the client.
func (f *Files) abortWithError(c *gin.Context, err error) {
	var status int
	var code, message string

	switch {
	case errors.Is(err, service.ErrValidation):
		status, code, message = http.StatusBadRequest, "VALIDATION_FAILED", err.Error()
	case errors.Is(err, service.ErrFileTypeNotAllowed):
		status, code, message = http.StatusBadRequest, "FILE_TYPE_NOT_ALLOWED", err.Error()
	case errors.Is(err, service.ErrFileTooLarge):
		status, code, message = http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", err.Error()
	case errors.Is(err, model.ErrNotFound):
		status, code, message = http.StatusNotFound, "NOT_FOUND", "file not found"
	case errors.Is(err, service.ErrNotConfigured):
		status, code, message = http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE",
			"backing stores not configured, check server settings"
	case errors.Is(err, service.ErrUploadFailed):
		status, code, message = http.StatusBadGateway, "UPLOAD_FAILED",
			"upload failed, please retry"
	default:
		status, code, message = http.StatusInternalServerError, "INTERNAL",
			"internal server error"
	}

	if status >= http.StatusInternalServerError {
		f.logger.Error("files api",
			zap.Error(err),
			zap.String("path", c.FullPath()),
			zap.String("method", c.Request.Method))
	}

	c.AbortWithStatusJSON(status, dto.ErrorResponse{Error: dto.ErrorDetail{
		Message:   message,
		Code:      code,
		Timestamp: time.Now().UTC(),
	}})
}

// parseTags accepts either a JSON string array or a comma separated list.
func parseTags(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	var tags []string
	if err := json.Unmarshal([]byte(raw), &tags); err == nil {
		return tags
	}

	for _, tag := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(tag); trimmed != "" {
			tags = append(tags, trimmed)
		}
	}

	return tags
}

func escapeFileName(fileName string) string {
	fileName = strings.ReplaceAll(fileName, `\`, `\\`)
	return strings.ReplaceAll(fileName, `"`, `\"`)
}
