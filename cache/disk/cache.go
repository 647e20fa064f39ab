// Package disk provides a disk-backed range cache.
package disk

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opencontainers/go-digest"

	"github.com/meigma/nar/cache"
)

const (
	defaultShardPrefixLen = 2
	defaultDirPerm        = 0o700
)

// Cache implements cache.Cache using the local filesystem.
//
// Each range is one file named by its key, under a directory per digest
// algorithm and optionally sharded by digest prefix. Reads refresh a file's
// modification time, so pruning evicts the least recently used ranges.
// The cache is safe for concurrent use.
type Cache struct {
	dir            string
	shardPrefixLen int
	dirPerm        os.FileMode
	maxBytes       int64 // 0 = unlimited

	bytes atomic.Int64 // total size of committed files
	// pruneMu serializes pruning with the accounting of commits and deletes.
	pruneMu sync.Mutex
}

// Interface compliance.
var _ cache.Cache = (*Cache)(nil)

// Option configures a disk cache.
type Option func(*Cache)

// WithShardPrefixLen sets the number of hex characters used for sharding.
// Use 0 to disable sharding. Defaults to 2.
func WithShardPrefixLen(n int) Option {
	return func(c *Cache) {
		c.shardPrefixLen = n
	}
}

// WithDirPerm sets the directory permissions used for cache directories.
func WithDirPerm(mode os.FileMode) Option {
	return func(c *Cache) {
		c.dirPerm = mode
	}
}

// WithMaxBytes bounds the total size of cached ranges. Use 0 to disable
// the limit.
func WithMaxBytes(n int64) Option {
	return func(c *Cache) {
		c.maxBytes = n
	}
}

// New opens the cache rooted at dir, creating it if needed. Ranges left by
// an earlier process count towards the size limit.
func New(dir string, opts ...Option) (*Cache, error) {
	if dir == "" {
		return nil, errors.New("cache dir is empty")
	}
	c := &Cache{
		dir:            dir,
		shardPrefixLen: defaultShardPrefixLen,
		dirPerm:        defaultDirPerm,
	}
	for _, opt := range opts {
		opt(c)
	}
	switch {
	case c.shardPrefixLen < 0:
		return nil, fmt.Errorf("shard prefix length %d must be >= 0", c.shardPrefixLen)
	case c.maxBytes < 0:
		return nil, fmt.Errorf("max bytes %d must be >= 0", c.maxBytes)
	}

	if err := os.MkdirAll(dir, c.dirPerm); err != nil {
		return nil, err
	}
	size, err := dirSize(dir)
	if err != nil {
		return nil, err
	}
	c.bytes.Store(size)
	return c, nil
}

// Get returns the cached range for key.
func (c *Cache) Get(key digest.Digest) ([]byte, bool) {
	path, err := c.path(key)
	if err != nil {
		return nil, false
	}
	data, err := os.ReadFile(path) //nolint:gosec // path is derived from a validated digest
	if err != nil {
		return nil, false
	}
	now := time.Now()
	_ = os.Chtimes(path, now, now) //nolint:errcheck // recency is advisory
	return data, true
}

// Put stores data under key. A range larger than the size limit is not
// cached and no error is returned. Existing entries are left untouched.
func (c *Cache) Put(key digest.Digest, data []byte) error {
	path, err := c.path(key)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	size := int64(len(data))
	if ok, err := c.reserve(size); err != nil || !ok {
		return err
	}

	// A prune between the rename and the accounting update would count
	// the new file twice.
	c.pruneMu.Lock()
	defer c.pruneMu.Unlock()
	committed, err := c.commit(path, data)
	if err != nil {
		return err
	}
	if committed {
		c.bytes.Add(size)
	}
	return nil
}

// commit writes data to a temporary file next to path and renames it into
// place. It reports false when another writer committed path first.
func (c *Cache) commit(path string, data []byte) (bool, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, c.dirPerm); err != nil {
		return false, err
	}
	tmp, err := os.CreateTemp(dir, tempPrefix+"*")
	if err != nil {
		return false, err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) //nolint:errcheck // gone after a successful rename

	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if err := errors.Join(writeErr, closeErr); err != nil {
		return false, err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		if _, statErr := os.Stat(path); statErr == nil {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Delete removes the cached range for key. Deleting a missing key is not
// an error.
func (c *Cache) Delete(key digest.Digest) error {
	path, err := c.path(key)
	if err != nil {
		return err
	}
	c.pruneMu.Lock()
	defer c.pruneMu.Unlock()
	info, err := os.Lstat(path)
	if err == nil {
		err = os.Remove(path)
	}
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil
	case err != nil:
		return err
	}
	c.bytes.Add(-info.Size())
	return nil
}

// MaxBytes returns the configured cache size limit (0 = unlimited).
func (c *Cache) MaxBytes() int64 {
	return c.maxBytes
}

// SizeBytes returns the current cache size in bytes.
func (c *Cache) SizeBytes() int64 {
	return c.bytes.Load()
}

// Prune evicts the least recently used ranges until the cache holds at
// most targetBytes. It returns the number of bytes freed.
func (c *Cache) Prune(targetBytes int64) (int64, error) {
	c.pruneMu.Lock()
	defer c.pruneMu.Unlock()

	freed, remaining, err := pruneDir(c.dir, max(targetBytes, 0))
	if err != nil {
		return 0, err
	}
	c.bytes.Store(remaining)
	return freed, nil
}

func (c *Cache) path(key digest.Digest) (string, error) {
	if err := key.Validate(); err != nil {
		return "", err
	}
	encoded := key.Encoded()
	parts := []string{c.dir, key.Algorithm().String()}
	if c.shardPrefixLen > 0 {
		parts = append(parts, encoded[:min(c.shardPrefixLen, len(encoded))])
	}
	return filepath.Join(append(parts, encoded)...), nil
}

// reserve makes room for need more bytes, pruning if necessary. It reports
// false when need can never fit.
func (c *Cache) reserve(need int64) (bool, error) {
	switch {
	case c.maxBytes == 0:
		return true, nil
	case need > c.maxBytes:
		return false, nil
	case c.SizeBytes()+need <= c.maxBytes:
		return true, nil
	}
	if _, err := c.Prune(c.maxBytes - need); err != nil {
		return false, err
	}
	return c.SizeBytes()+need <= c.maxBytes, nil
}
