package nar

import (
	"github.com/meigma/nar/fsaccess"
	"github.com/meigma/nar/internal/nartype"
)

// Errors re-exported from nartype.
var (
	// ErrMalformedArchive is returned when the archive violates the format grammar.
	ErrMalformedArchive = nartype.ErrMalformedArchive

	// ErrInconsistentIndex is returned when a file lacks the offset or size needed to read it.
	ErrInconsistentIndex = nartype.ErrInconsistentIndex

	// ErrInvalidListing is returned when a listing cannot be decoded.
	ErrInvalidListing = nartype.ErrInvalidListing

	// ErrNoContent is returned when file content is requested from an index without a fetcher.
	ErrNoContent = nartype.ErrNoContent

	// ErrTooManyEntries is returned when the archive contains more entries than allowed.
	ErrTooManyEntries = nartype.ErrTooManyEntries
)

// Errors re-exported from fsaccess.
var (
	// ErrNotFound is returned when a path does not resolve.
	ErrNotFound = fsaccess.ErrNotFound

	// ErrWrongType is returned when an operation is requested on an entry of the wrong kind.
	ErrWrongType = fsaccess.ErrWrongType
)
