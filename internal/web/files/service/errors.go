package service

import "github.com/Laisky/errors/v2"

var (
	// ErrNotConfigured means one of the backing stores is missing; no write
	// is ever attempted against a half-configured pair.
	ErrNotConfigured = errors.New("backing stores not configured")
	// ErrUploadFailed means a store write failed or timed out mid-operation.
	ErrUploadFailed = errors.New("upload failed")
	// ErrValidation means the input was rejected before any store call.
	ErrValidation = errors.New("validation failed")
	// ErrFileTooLarge means the payload exceeds the configured size cap.
	ErrFileTooLarge = errors.New("file too large")
	// ErrFileTypeNotAllowed means the payload's MIME type is not accepted.
	ErrFileTypeNotAllowed = errors.New("file type not allowed")
)
