package service

import (
	"mime"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/Laisky/errors/v2"
)

const maxFileNameLength = 255

var allowedMimeTypes = map[string]bool{
	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"application/vnd.ms-excel": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
	"image/jpeg":      true,
	"image/png":       true,
	"image/gif":       true,
	"text/plain":      true,
	"application/zip": true,
}

// SanitizeFileName strips path separators and control characters so the name
// is safe inside a blob key and a Content-Disposition header.
func SanitizeFileName(fileName string) string {
	fileName = strings.ReplaceAll(fileName, "..", "")
	fileName = strings.ReplaceAll(fileName, "/", "")
	fileName = strings.ReplaceAll(fileName, "\\", "")

	var b strings.Builder
	for _, r := range fileName {
		if r >= 32 && r != 127 {
			b.WriteRune(r)
		}
	}

	return strings.TrimSpace(b.String())
}

// ValidateFileName rejects empty, oversized or malformed names.
func ValidateFileName(fileName string) error {
	if fileName == "" {
		return errors.Wrap(ErrValidation, "file name is required")
	}
	if len(fileName) > maxFileNameLength {
		return errors.Wrapf(ErrValidation, "file name longer than %d bytes", maxFileNameLength)
	}
	if !utf8.ValidString(fileName) {
		return errors.Wrap(ErrValidation, "file name is not valid utf-8")
	}

	return nil
}

// ValidateMimeType checks the declared content type against the allow list.
func ValidateMimeType(mimeType string) error {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return errors.Wrapf(ErrValidation, "malformed content type %q", mimeType)
	}
	if !allowedMimeTypes[mediaType] {
		return errors.WithMessagef(ErrFileTypeNotAllowed, "%q", mediaType)
	}

	return nil
}

// validateUpload normalizes the input in place and checks every precondition
// the coordinator requires before it touches a store.
func (s *Service) validateUpload(input *UploadInput) error {
	input.OwnerID = strings.TrimSpace(input.OwnerID)
	if input.OwnerID == "" {
		return errors.Wrap(ErrValidation, "ownerId is required")
	}

	if len(input.Content) == 0 {
		return errors.Wrap(ErrValidation, "file content is empty")
	}
	if int64(len(input.Content)) > s.maxSizeBytes {
		return errors.WithMessagef(ErrFileTooLarge, "maximum is %d bytes, got %d",
			s.maxSizeBytes, len(input.Content))
	}

	input.FileName = SanitizeFileName(input.FileName)
	if err := ValidateFileName(input.FileName); err != nil {
		return err
	}

	if input.MimeType == "" {
		input.MimeType = http.DetectContentType(input.Content)
	}
	if err := ValidateMimeType(input.MimeType); err != nil {
		return err
	}

	return nil
}
