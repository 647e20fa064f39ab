package nartype

import "errors"

// Sentinel errors for archive indexing and access.
var (
	// ErrMalformedArchive is returned when the archive stream violates the
	// format grammar or its depth-first entry order.
	ErrMalformedArchive = errors.New("nar: malformed archive")

	// ErrInconsistentIndex is returned when a regular file lacks the offset
	// or size needed to resolve its content.
	ErrInconsistentIndex = errors.New("nar: inconsistent index")

	// ErrInvalidListing is returned when a listing cannot be decoded.
	ErrInvalidListing = errors.New("nar: invalid listing")

	// ErrNoContent is returned when file content is requested from an index
	// that has no content source.
	ErrNoContent = errors.New("nar: no content source")

	// ErrTooManyEntries is returned when the entry count exceeds the configured limit.
	ErrTooManyEntries = errors.New("nar: too many entries")
)
