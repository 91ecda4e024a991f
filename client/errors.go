package client

import "github.com/Laisky/errors/v2"

var (
	// ErrValidationFailed means the input was rejected before any network
	// traffic.
	ErrValidationFailed = errors.New("validation failed")
	// ErrUploadRejected means the server refused the upload with a 4xx;
	// retrying the same request cannot succeed.
	ErrUploadRejected = errors.New("upload rejected")
	// ErrUploadFailed means every attempt failed on transport errors or
	// server-side 5xx responses.
	ErrUploadFailed = errors.New("upload failed")
)
