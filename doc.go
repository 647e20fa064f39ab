// Package nar provides read-only filesystem access to Nix archives (NARs).
//
// An [Accessor] indexes an archive once and then answers stat, directory,
// file and symlink queries against the in-memory tree. File content is never
// kept in the index; it is resolved by byte range through a [Fetcher], which
// is either the archive buffer itself (see [New]) or a caller-supplied source
// such as an HTTP range reader (see [NewFromReader] and [NewFromListing]).
//
// # Quick Start
//
// Index an archive held in memory:
//
//	acc, err := nar.New(data)
//	if err != nil {
//	    return err
//	}
//	content, err := acc.ReadFile(fsaccess.ParsePath("/bin/hello"))
//
// # Listings
//
// The index can be exported as a compact JSON listing and later re-imported
// without the archive bytes:
//
//	l, err := nar.List(acc, fsaccess.Root(), true)
//	raw, err := nar.MarshalListing(l)
//	...
//	lazy, err := nar.NewFromListing(raw, src)
//
// Listings compressed with zstd are detected and decompressed transparently.
package nar
