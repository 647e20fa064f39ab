// Package memory provides an in-process LRU range cache.
package memory

import (
	"bytes"
	"errors"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/opencontainers/go-digest"

	"github.com/meigma/nar/cache"
)

// Cache implements cache.Cache with a fixed number of entries, evicting the
// least recently used range. Data is copied in and out, so callers may
// modify what they pass or receive. The cache is safe for concurrent use.
type Cache struct {
	lru *lru.Cache[digest.Digest, []byte]
}

// Interface compliance.
var _ cache.Cache = (*Cache)(nil)

// New returns a cache holding at most size ranges.
func New(size int) (*Cache, error) {
	if size <= 0 {
		return nil, errors.New("memory cache size must be > 0")
	}
	l, err := lru.New[digest.Digest, []byte](size)
	if err != nil {
		return nil, err
	}
	return &Cache{lru: l}, nil
}

// Get returns a copy of the cached data for key.
func (c *Cache) Get(key digest.Digest) ([]byte, bool) {
	data, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	return bytes.Clone(data), true
}

// Put stores a copy of data under key.
func (c *Cache) Put(key digest.Digest, data []byte) error {
	c.lru.Add(key, bytes.Clone(data))
	return nil
}

// Delete removes the cached data for key.
func (c *Cache) Delete(key digest.Digest) error {
	c.lru.Remove(key)
	return nil
}

// Len returns the number of cached ranges.
func (c *Cache) Len() int {
	return c.lru.Len()
}
