// Package testutil provides fixtures and fakes shared by package tests.
package testutil

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/opencontainers/go-digest"
)

// EOFReaderAt is an io.ReaderAt that reports io.EOF together with the last
// bytes of its data, as io.ReaderAt permits.
type EOFReaderAt []byte

func (r EOFReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(r)) {
		return 0, io.EOF
	}
	n := copy(p, r[off:])
	if off+int64(n) == int64(len(r)) {
		return n, io.EOF
	}
	return n, nil
}

// Range is a fetched byte range.
type Range struct {
	Offset uint64
	Length uint64
}

// CountingFetcher serves ranges from an in-memory archive and records every
// call. It is safe for concurrent use.
type CountingFetcher struct {
	data  []byte
	calls atomic.Int64

	mu     sync.Mutex
	ranges []Range
	err    error
}

// NewCountingFetcher returns a fetcher over data.
func NewCountingFetcher(data []byte) *CountingFetcher {
	return &CountingFetcher{data: data}
}

// Fetch returns a copy of data[offset:offset+length].
func (f *CountingFetcher) Fetch(offset, length uint64) ([]byte, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.ranges = append(f.ranges, Range{Offset: offset, Length: length})
	err := f.err
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if offset > uint64(len(f.data)) || length > uint64(len(f.data))-offset {
		return nil, fmt.Errorf("range [%d, +%d) out of bounds: %w", offset, length, io.ErrUnexpectedEOF)
	}
	out := make([]byte, length)
	copy(out, f.data[offset:offset+length])
	return out, nil
}

// FailWith makes subsequent fetches return err. Pass nil to recover.
func (f *CountingFetcher) FailWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// Calls returns the number of Fetch calls so far.
func (f *CountingFetcher) Calls() int {
	return int(f.calls.Load())
}

// Ranges returns the ranges requested so far, in call order.
func (f *CountingFetcher) Ranges() []Range {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Range(nil), f.ranges...)
}

// MockCache implements a basic concurrency-safe range cache for tests.
type MockCache struct {
	mu   sync.RWMutex
	data map[digest.Digest][]byte
}

// NewMockCache constructs an empty in-memory cache.
func NewMockCache() *MockCache {
	return &MockCache{data: make(map[digest.Digest][]byte)}
}

// Get retrieves data by key.
func (c *MockCache) Get(key digest.Digest) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, ok := c.data[key]
	if !ok {
		return nil, false
	}
	return bytes.Clone(data), true
}

// Put stores data by key.
func (c *MockCache) Put(key digest.Digest, content []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = bytes.Clone(content)
	return nil
}

// Delete removes data by key.
func (c *MockCache) Delete(key digest.Digest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

// Len returns the number of cached entries.
func (c *MockCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}
