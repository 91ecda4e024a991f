// Package client is the Go SDK for the file-vault API. Upload drives the
// retry loop: transient failures are retried with exponential backoff,
// definitive server rejections are not.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/Laisky/errors/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"

	"github.com/file-vault/file-vault/internal/web/files/dto"
	"github.com/file-vault/file-vault/library/log"
)

const (
	defaultMaxAttempts    = 3
	defaultBackoffBase    = time.Second
	defaultAttemptTimeout = 30 * time.Second
	healthProbeTimeout    = 3 * time.Second
)

// Client talks to one file-vault server.
type Client struct {
	baseURL string
	httpCli *http.Client
	logger  logSDK.Logger

	maxAttempts    int
	backoffBase    time.Duration
	attemptTimeout time.Duration
	skipProbe      bool
}

// Option tunes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(cli *http.Client) Option {
	return func(c *Client) { c.httpCli = cli }
}

// WithMaxAttempts sets how often Upload tries before giving up.
func WithMaxAttempts(n int) Option {
	return func(c *Client) { c.maxAttempts = n }
}

// WithBackoffBase sets the first retry delay; each further retry doubles it.
func WithBackoffBase(d time.Duration) Option {
	return func(c *Client) { c.backoffBase = d }
}

// WithAttemptTimeout bounds every single upload attempt.
func WithAttemptTimeout(d time.Duration) Option {
	return func(c *Client) { c.attemptTimeout = d }
}

// WithLogger replaces the default logger.
func WithLogger(logger logSDK.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithoutHealthProbe skips the advisory health check before uploads.
func WithoutHealthProbe() Option {
	return func(c *Client) { c.skipProbe = true }
}

// New creates a client for the given base URL, like "http://localhost:8080".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimSuffix(baseURL, "/"),
		httpCli:        &http.Client{},
		logger:         log.Logger.Named("client"),
		maxAttempts:    defaultMaxAttempts,
		backoffBase:    defaultBackoffBase,
		attemptTimeout: defaultAttemptTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// UploadInput is one file to push to the server.
type UploadInput struct {
	OwnerID     string
	FileName    string
	MimeType    string
	Description string
	Tags        []string
	Content     []byte
}

// Upload validates locally, probes server health, then runs the retry loop.
// A 4xx answer aborts immediately with ErrUploadRejected; transport errors
// and 5xx answers are retried with exponential backoff until the attempt
// budget runs out, which yields ErrUploadFailed.
func (c *Client) Upload(ctx context.Context, input UploadInput) (*dto.File, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	// The probe is advisory. A dead health endpoint is worth logging before
	// burning retry attempts, but the upload proceeds either way.
	if !c.skipProbe {
		if err := c.probeHealth(ctx); err != nil {
			c.logger.Warn("server health probe failed, uploading anyway",
				zap.Error(err))
		}
	}

	body, contentType, err := buildMultipart(input)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			delay := c.backoffBase << (attempt - 2)
			c.logger.Info("retrying upload",
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay))
			select {
			case <-ctx.Done():
				return nil, errors.Wrap(ctx.Err(), "wait for retry")
			case <-time.After(delay):
			}
		}

		file, retryable, err := c.attemptUpload(ctx, body, contentType)
		if err == nil {
			return file, nil
		}
		if !retryable {
			return nil, err
		}

		lastErr = err
		c.logger.Warn("upload attempt failed",
			zap.Int("attempt", attempt),
			zap.Error(err))
	}

	return nil, errors.Wrapf(ErrUploadFailed, "%d attempts: %s",
		c.maxAttempts, lastErr)
}

// attemptUpload runs one POST. retryable reports whether another attempt
// could help.
func (c *Client) attemptUpload(ctx context.Context, body []byte, contentType string) (file *dto.File, retryable bool, err error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost,
		c.baseURL+"/api/files/upload", bytes.NewReader(body))
	if err != nil {
		return nil, false, errors.Wrap(err, "new upload request")
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpCli.Do(req)
	if err != nil {
		return nil, true, errors.Wrap(err, "post upload")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices:
		file = new(dto.File)
		if err = json.NewDecoder(resp.Body).Decode(file); err != nil {
			return nil, false, errors.Wrap(err, "decode upload response")
		}
		return file, false, nil
	case resp.StatusCode >= http.StatusBadRequest && resp.StatusCode < http.StatusInternalServerError:
		return nil, false, errors.Wrapf(ErrUploadRejected, "status %d: %s",
			resp.StatusCode, readErrorMessage(resp.Body))
	default:
		return nil, true, errors.Errorf("status %d: %s",
			resp.StatusCode, readErrorMessage(resp.Body))
	}
}

// List fetches every file of one owner.
func (c *Client) List(ctx context.Context, ownerID string) (*dto.ListResponse, error) {
	out := new(dto.ListResponse)
	if err := c.getJSON(ctx, "/api/files?ownerId="+ownerID, out); err != nil {
		return nil, err
	}

	return out, nil
}

// Get fetches one file's metadata.
func (c *Client) Get(ctx context.Context, id, ownerID string) (*dto.File, error) {
	out := new(dto.File)
	if err := c.getJSON(ctx, "/api/files/"+id+"?ownerId="+ownerID, out); err != nil {
		return nil, err
	}

	return out, nil
}

// Delete removes one file.
func (c *Client) Delete(ctx context.Context, id, ownerID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		c.baseURL+"/api/files/"+id+"?ownerId="+ownerID, nil)
	if err != nil {
		return errors.Wrap(err, "new delete request")
	}

	resp, err := c.httpCli.Do(req)
	if err != nil {
		return errors.Wrap(err, "delete file")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("status %d: %s",
			resp.StatusCode, readErrorMessage(resp.Body))
	}

	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return errors.Wrap(err, "new request")
	}

	resp, err := c.httpCli.Do(req)
	if err != nil {
		return errors.Wrapf(err, "get %q", path)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("status %d: %s",
			resp.StatusCode, readErrorMessage(resp.Body))
	}
	if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode response")
	}

	return nil
}

func (c *Client) probeHealth(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet,
		c.baseURL+"/health", nil)
	if err != nil {
		return errors.Wrap(err, "new health request")
	}

	resp, err := c.httpCli.Do(req)
	if err != nil {
		return errors.Wrap(err, "get health")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("health status %d", resp.StatusCode)
	}

	return nil
}

func validateInput(input UploadInput) error {
	if strings.TrimSpace(input.OwnerID) == "" {
		return errors.Wrap(ErrValidationFailed, "owner id is required")
	}
	if strings.TrimSpace(input.FileName) == "" {
		return errors.Wrap(ErrValidationFailed, "file name is required")
	}
	if len(input.Content) == 0 {
		return errors.Wrap(ErrValidationFailed, "file content is empty")
	}

	return nil
}

// buildMultipart renders the form body once; every attempt replays the same
// bytes.
func buildMultipart(input UploadInput) (body []byte, contentType string, err error) {
	buf := new(bytes.Buffer)
	w := multipart.NewWriter(buf)

	mimeType := input.MimeType
	if mimeType == "" {
		mimeType = http.DetectContentType(input.Content)
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`,
		strings.ReplaceAll(input.FileName, `"`, `\"`)))
	header.Set("Content-Type", mimeType)
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", errors.Wrap(err, "create file part")
	}
	if _, err = part.Write(input.Content); err != nil {
		return nil, "", errors.Wrap(err, "write file part")
	}

	if err = w.WriteField("ownerId", input.OwnerID); err != nil {
		return nil, "", errors.Wrap(err, "write ownerId")
	}
	if input.Description != "" {
		if err = w.WriteField("description", input.Description); err != nil {
			return nil, "", errors.Wrap(err, "write description")
		}
	}
	if len(input.Tags) > 0 {
		tags, err := json.Marshal(input.Tags)
		if err != nil {
			return nil, "", errors.Wrap(err, "marshal tags")
		}
		if err = w.WriteField("tags", string(tags)); err != nil {
			return nil, "", errors.Wrap(err, "write tags")
		}
	}

	if err = w.Close(); err != nil {
		return nil, "", errors.Wrap(err, "close multipart writer")
	}

	return buf.Bytes(), w.FormDataContentType(), nil
}

func readErrorMessage(r io.Reader) string {
	var envelope dto.ErrorResponse
	if err := json.NewDecoder(r).Decode(&envelope); err != nil || envelope.Error.Message == "" {
		return "no error detail"
	}

	return envelope.Error.Message
}
