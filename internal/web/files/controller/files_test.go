package controller

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/file-vault/file-vault/internal/web/files/dao"
	"github.com/file-vault/file-vault/internal/web/files/dto"
	"github.com/file-vault/file-vault/internal/web/files/service"
)

func newRouter(svc *service.Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewFiles(svc).RegisterRoutes(r)
	return r
}

func newMemoryRouter(t *testing.T) (*gin.Engine, *dao.MemoryBlobs) {
	t.Helper()
	blobs := dao.NewMemoryBlobs()
	return newRouter(service.New(blobs, dao.NewMemoryRecords())), blobs
}

// multipartUpload renders a form with an explicit content type on the file
// part, the way real browsers and the SDK send it.
func multipartUpload(t *testing.T, fileName, mimeType string, content []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	buf := new(bytes.Buffer)
	w := multipart.NewWriter(buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="file"; filename="%s"`, fileName))
	header.Set("Content-Type", mimeType)
	part, err := w.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)

	for key, value := range fields {
		require.NoError(t, w.WriteField(key, value))
	}
	require.NoError(t, w.Close())

	return buf, w.FormDataContentType()
}

func doUpload(t *testing.T, r *gin.Engine, fileName, mimeType string, content []byte, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartUpload(t, fileName, mimeType, content, fields)
	req := httptest.NewRequest(http.MethodPost, "/api/files/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, body *bytes.Buffer) dto.ErrorResponse {
	t.Helper()
	var envelope dto.ErrorResponse
	require.NoError(t, json.NewDecoder(body).Decode(&envelope))
	return envelope
}

// TestUploadAndList uploads one file and finds it again through the list
// endpoint.
func TestUploadAndList(t *testing.T) {
	t.Parallel()
	r, _ := newMemoryRouter(t)

	w := doUpload(t, r, "notes.txt", "text/plain", []byte("hello"), map[string]string{
		"ownerId":     "u1",
		"description": "test",
		"tags":        `["work","misc"]`,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var created dto.File
	require.NoError(t, json.NewDecoder(w.Body).Decode(&created))
	require.NotEmpty(t, created.ID)
	require.Equal(t, "notes.txt", created.FileName)
	require.Equal(t, int64(5), created.SizeBytes)
	require.Equal(t, "test", created.Description)
	require.Equal(t, []string{"work", "misc"}, created.Tags)
	require.False(t, created.UploadedAt.IsZero())

	req := httptest.NewRequest(http.MethodGet, "/api/files?ownerId=u1", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var list dto.ListResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&list))
	require.Equal(t, 1, list.Count)
	require.Equal(t, created.ID, list.Files[0].ID)
}

// TestUploadCommaSeparatedTags accepts the lax tags form.
func TestUploadCommaSeparatedTags(t *testing.T) {
	t.Parallel()
	r, _ := newMemoryRouter(t)

	w := doUpload(t, r, "notes.txt", "text/plain", []byte("hello"), map[string]string{
		"ownerId": "u1",
		"tags":    "work, misc ,",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var created dto.File
	require.NoError(t, json.NewDecoder(w.Body).Decode(&created))
	require.Equal(t, []string{"work", "misc"}, created.Tags)
}

// TestUploadValidationErrors maps bad input onto the public error codes.
func TestUploadValidationErrors(t *testing.T) {
	t.Parallel()
	r, blobs := newMemoryRouter(t)

	// missing ownerId
	w := doUpload(t, r, "notes.txt", "text/plain", []byte("hello"), nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	envelope := decodeError(t, w.Body)
	require.Equal(t, "VALIDATION_FAILED", envelope.Error.Code)
	require.False(t, envelope.Error.Timestamp.IsZero())

	// missing file part
	req := httptest.NewRequest(http.MethodPost, "/api/files/upload",
		strings.NewReader("ownerId=u1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// disallowed type
	w = doUpload(t, r, "script.sh", "application/x-sh", []byte("#!/bin/sh"),
		map[string]string{"ownerId": "u1"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "FILE_TYPE_NOT_ALLOWED", decodeError(t, w.Body).Error.Code)

	// nothing was written to the blob store
	require.Empty(t, blobs.Keys())
}

// TestUploadTooLarge answers 413.
func TestUploadTooLarge(t *testing.T) {
	t.Parallel()
	svc := service.New(dao.NewMemoryBlobs(), dao.NewMemoryRecords(),
		service.WithMaxFileSize(4))
	r := newRouter(svc)

	w := doUpload(t, r, "notes.txt", "text/plain", []byte("too big"),
		map[string]string{"ownerId": "u1"})
	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	require.Equal(t, "PAYLOAD_TOO_LARGE", decodeError(t, w.Body).Error.Code)
}

// TestUnconfiguredService answers 503 with the public code on every
// endpoint that needs the stores.
func TestUnconfiguredService(t *testing.T) {
	t.Parallel()
	r := newRouter(service.New(nil, nil))

	w := doUpload(t, r, "notes.txt", "text/plain", []byte("hello"),
		map[string]string{"ownerId": "u1"})
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.Equal(t, "SERVICE_UNAVAILABLE", decodeError(t, w.Body).Error.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/files?ownerId=u1", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

// TestGetNotFound answers 404 with a safe message.
func TestGetNotFound(t *testing.T) {
	t.Parallel()
	r, _ := newMemoryRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/files/nope?ownerId=u1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusNotFound, w.Code)

	envelope := decodeError(t, w.Body)
	require.Equal(t, "NOT_FOUND", envelope.Error.Code)
	require.Equal(t, "file not found", envelope.Error.Message)
}

// TestDownload streams the original bytes with an attachment header.
func TestDownload(t *testing.T) {
	t.Parallel()
	r, _ := newMemoryRouter(t)

	w := doUpload(t, r, "notes.txt", "text/plain", []byte("hello"),
		map[string]string{"ownerId": "u1"})
	require.Equal(t, http.StatusCreated, w.Code)
	var created dto.File
	require.NoError(t, json.NewDecoder(w.Body).Decode(&created))

	req := httptest.NewRequest(http.MethodGet,
		"/api/files/"+created.ID+"/download?ownerId=u1", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "hello", rec.Body.String())
	require.Contains(t, rec.Header().Get("Content-Disposition"), `filename="notes.txt"`)
	require.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
}

// TestUpdateMetadata patches description and tags over HTTP.
func TestUpdateMetadata(t *testing.T) {
	t.Parallel()
	r, _ := newMemoryRouter(t)

	w := doUpload(t, r, "notes.txt", "text/plain", []byte("hello"),
		map[string]string{"ownerId": "u1"})
	var created dto.File
	require.NoError(t, json.NewDecoder(w.Body).Decode(&created))

	body := strings.NewReader(`{"description":"updated","tags":["a"]}`)
	req := httptest.NewRequest(http.MethodPatch,
		"/api/files/"+created.ID+"?ownerId=u1", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var updated dto.File
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&updated))
	require.Equal(t, "updated", updated.Description)
	require.Equal(t, []string{"a"}, updated.Tags)
}

// TestDeleteFlow removes a file and checks it is gone afterwards.
func TestDeleteFlow(t *testing.T) {
	t.Parallel()
	r, _ := newMemoryRouter(t)

	w := doUpload(t, r, "notes.txt", "text/plain", []byte("hello"),
		map[string]string{"ownerId": "u1"})
	var created dto.File
	require.NoError(t, json.NewDecoder(w.Body).Decode(&created))

	req := httptest.NewRequest(http.MethodDelete,
		"/api/files/"+created.ID+"?ownerId=u1", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet,
		"/api/files/"+created.ID+"?ownerId=u1", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

// TestSearchAndStatsEndpoints exercises the read-side routes.
func TestSearchAndStatsEndpoints(t *testing.T) {
	t.Parallel()
	r, _ := newMemoryRouter(t)

	for _, name := range []string{"budget.xlsx", "notes.txt"} {
		mimeType := "text/plain"
		if strings.HasSuffix(name, ".xlsx") {
			mimeType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		}
		w := doUpload(t, r, name, mimeType, []byte("data"),
			map[string]string{"ownerId": "u1"})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	req := httptest.NewRequest(http.MethodGet,
		"/api/files/search?ownerId=u1&q=budget", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var list dto.ListResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	require.Equal(t, 1, list.Count)

	req = httptest.NewRequest(http.MethodGet, "/api/files/stats?ownerId=u1", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats dto.StatsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stats))
	require.Equal(t, 2, stats.TotalFiles)
	require.Equal(t, int64(8), stats.TotalSizeBytes)
	require.Equal(t, map[string]int{"xlsx": 1, "txt": 1}, stats.ByExtension)
}
