package school

import (
	"context"
	"errors"

	"github.com/stevemurr/school-directory/dataurl"
)

var (
	// ErrImageRequired is returned by Add when the form has no image.
	ErrImageRequired = errors.New("image is required")
	// ErrNotFound is returned by Update for an unknown id.
	ErrNotFound = errors.New("school not found")
	// ErrCorrupt is returned when the stored collection cannot be decoded.
	ErrCorrupt = errors.New("stored school data is corrupt")
)

// Kind classifies operation failures.
type Kind int

const (
	KindNone Kind = iota
	KindValidation
	KindEncoding
	KindNotFound
	KindCorrupt
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindValidation:
		return "validation"
	case KindEncoding:
		return "encoding"
	case KindNotFound:
		return "not_found"
	case KindCorrupt:
		return "corrupt"
	case KindStorage:
		return "storage"
	}
	return "unknown"
}

// KindOf classifies err. Anything unrecognized is a storage failure.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrImageRequired):
		return KindValidation
	case errors.Is(err, dataurl.ErrRead), errors.Is(err, dataurl.ErrTooLarge):
		return KindEncoding
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrCorrupt):
		return KindCorrupt
	}
	return KindStorage
}

// Message returns the short user-facing text for err, or fallback when err
// carries nothing more specific than a storage failure.
func Message(err error, fallback string) string {
	switch KindOf(err) {
	case KindNone:
		return ""
	case KindValidation:
		return "Image is required"
	case KindEncoding:
		if errors.Is(err, dataurl.ErrTooLarge) {
			return "Image is too large"
		}
		return "Failed to read image"
	case KindNotFound:
		return "School not found"
	case KindCorrupt:
		return "Stored school data is corrupt"
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fallback + ": " + err.Error()
	}
	return fallback
}
