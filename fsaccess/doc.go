// Package fsaccess defines the read-only filesystem accessor contract shared
// by archive-backed indexes and real filesystems.
//
// An [Accessor] answers stat, directory listing, file read and symlink read
// queries for root-relative [Path] values. Archive indexes implement it
// directly; [FS] adapts any io/fs filesystem to it so that listing export and
// archive serialization work the same way over a directory on disk.
package fsaccess
