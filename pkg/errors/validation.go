package errors

import (
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// ValidateResultID validates an identifier for a stored result.
// Result IDs are UUIDs generated by the server; anything else is rejected
// before it reaches a cache key.
func ValidateResultID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidInput, "result id cannot be empty")
	}
	if _, err := uuid.Parse(id); err != nil {
		return Wrap(ErrCodeInvalidInput, err, "invalid result id: %q", id)
	}
	return nil
}

// ValidateUploadFilename validates a filename sent with a multipart upload.
// Filenames are only used for logging and format hints, but they must be
// plain basenames.
//
// Validation rules:
//   - Filename cannot be empty
//   - Maximum length of 255 characters
//   - No control characters
//   - No path separators or traversal sequences
func ValidateUploadFilename(filename string) error {
	if filename == "" {
		return New(ErrCodeInvalidInput, "filename cannot be empty")
	}

	const maxLength = 255
	if len(filename) > maxLength {
		return New(ErrCodeInvalidInput, "filename too long (max %d characters)", maxLength)
	}

	for _, r := range filename {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "filename contains invalid control characters")
		}
	}

	if strings.ContainsAny(filename, "/\\") {
		return New(ErrCodeInvalidInput, "filename cannot contain path separators")
	}
	if strings.Contains(filename, "..") {
		return New(ErrCodeInvalidInput, "filename cannot contain path traversal sequences (..)")
	}

	return nil
}

// ValidateRange checks that an integer option lies within [lo, hi].
func ValidateRange(name string, v, lo, hi int) error {
	if v < lo || v > hi {
		return New(ErrCodeInvalidInput, "%s must be between %d and %d, got %d", name, lo, hi, v)
	}
	return nil
}

// ValidateRatio checks that a real option lies within [0, 1].
func ValidateRatio(name string, v float64) error {
	if v < 0 || v > 1 {
		return New(ErrCodeInvalidInput, "%s must be between 0 and 1, got %g", name, v)
	}
	return nil
}
