package archive

import (
	"errors"
	"io"
	"math"
)

// ErrOverflow is returned when a CountingReader's offset would wrap.
var ErrOverflow = errors.New("archive: offset overflow")

// CountingReader tracks how many bytes have been consumed from R. Because
// Parse never reads ahead, N at DeclareContentSize is the archive offset of
// the first content byte.
type CountingReader struct {
	R io.Reader
	N uint64
}

func (c *CountingReader) Read(p []byte) (int, error) {
	n, err := c.R.Read(p)
	if n <= 0 {
		return n, err
	}
	if uint64(n) > math.MaxUint64-c.N { //nolint:gosec // n > 0
		return n, ErrOverflow
	}
	c.N += uint64(n) //nolint:gosec // n > 0
	return n, err
}
