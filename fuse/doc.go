// Package fuse mounts an archive, or any other fsaccess.Accessor, as a
// read-only FUSE filesystem.
//
// Directories, regular files and symlinks map to their kernel counterparts.
// File permissions are 0444, or 0555 for executables; directories are 0555.
// Ownership and timestamps are those of the mounting process and the epoch.
// File content is fetched on first open and held by the node until the
// kernel forgets it; opens request FOPEN_KEEP_CACHE since archive content is
// immutable.
package fuse
