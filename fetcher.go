package nar

import (
	"errors"
	"fmt"
	"io"
	"math"
)

// Fetcher resolves a byte range of the original archive.
//
// Fetch must return exactly length bytes starting at offset. Implementations
// used with an Accessor that is queried concurrently must be safe for
// concurrent use; the Accessor does not serialize calls.
type Fetcher interface {
	Fetch(offset, length uint64) ([]byte, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(offset, length uint64) ([]byte, error)

// Fetch calls f(offset, length).
func (f FetcherFunc) Fetch(offset, length uint64) ([]byte, error) {
	return f(offset, length)
}

// bufferFetcher serves ranges from an archive held in memory.
type bufferFetcher []byte

// Interface compliance.
var (
	_ Fetcher = bufferFetcher(nil)
	_ Fetcher = FetcherFunc(nil)
	_ Fetcher = (*readerAtFetcher)(nil)
)

// Fetch returns a copy of the range so callers cannot modify the archive.
func (b bufferFetcher) Fetch(offset, length uint64) ([]byte, error) {
	size := uint64(len(b))
	if offset > size || length > size-offset {
		return nil, fmt.Errorf("%w: range [%d, +%d) outside archive of %d bytes",
			ErrInconsistentIndex, offset, length, size)
	}
	out := make([]byte, length)
	copy(out, b[offset:offset+length])
	return out, nil
}

type readerAtFetcher struct {
	r io.ReaderAt
}

// sizer is implemented by readers that know their length, such as
// *bytes.Reader and *io.SectionReader.
type sizer interface {
	Size() int64
}

// ReaderAtFetcher returns a Fetcher that reads ranges from r. A range that
// extends past the end of r fails with io.ErrUnexpectedEOF.
//
// When r has a Size method, ranges are checked against it before any
// buffer is allocated. Otherwise the buffer grows with the bytes actually
// read, so a bogus length from a listing cannot force a huge allocation.
func ReaderAtFetcher(r io.ReaderAt) Fetcher {
	return &readerAtFetcher{r: r}
}

func (f *readerAtFetcher) Fetch(offset, length uint64) ([]byte, error) {
	if offset > math.MaxInt64 || length > math.MaxInt64-offset {
		return nil, fmt.Errorf("fetch range [%d, +%d): size overflow", offset, length)
	}
	//nolint:gosec // bounds checked above
	off, n := int64(offset), int64(length)

	if s, ok := f.r.(sizer); ok {
		if size := s.Size(); off+n > size {
			return nil, fmt.Errorf("fetch range [%d, +%d): source is %d bytes: %w",
				offset, length, size, io.ErrUnexpectedEOF)
		}
		buf := make([]byte, length)
		got, err := f.r.ReadAt(buf, off)
		if got == len(buf) {
			return buf, nil
		}
		if err == nil || errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("fetch range [%d, +%d): %w", offset, length, err)
	}

	data, err := io.ReadAll(io.NewSectionReader(f.r, off, n))
	if err != nil {
		return nil, fmt.Errorf("fetch range [%d, +%d): %w", offset, length, err)
	}
	if int64(len(data)) != n {
		return nil, fmt.Errorf("fetch range [%d, +%d): got %d bytes: %w",
			offset, length, len(data), io.ErrUnexpectedEOF)
	}
	return data, nil
}
