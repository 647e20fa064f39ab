// Package cache provides range caching for archive content fetchers.
//
// [Fetcher] wraps any nar.Fetcher with a [Cache]. Cached ranges are keyed by
// a digest of the source identity and the range, so one cache directory can
// serve many archives. Concurrent fetches of the same range are collapsed
// into one request to the underlying source.
//
// Implementations live in the disk and memory subpackages.
package cache
