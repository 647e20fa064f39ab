package cache

import (
	"strconv"

	"github.com/opencontainers/go-digest"
)

// Cache stores fetched byte ranges.
//
// Implementations should handle their own size limits and eviction policies.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns the cached data for key. The caller owns the returned slice.
	// Returns nil, false if the range is not cached.
	Get(key digest.Digest) ([]byte, bool)

	// Put stores data under key. The caller may modify data after Put
	// returns, so implementations must not retain it.
	Put(key digest.Digest, data []byte) error

	// Delete removes the cached data for key.
	// Implementations should treat missing entries as a no-op.
	Delete(key digest.Digest) error
}

// Key returns the cache key for length bytes at offset of the archive
// identified by sourceID.
func Key(sourceID string, offset, length uint64) digest.Digest {
	buf := make([]byte, 0, len(sourceID)+42)
	buf = append(buf, sourceID...)
	buf = append(buf, '|')
	buf = strconv.AppendUint(buf, offset, 10)
	buf = append(buf, '+')
	buf = strconv.AppendUint(buf, length, 10)
	return digest.FromBytes(buf)
}
