package fsaccess

import (
	"errors"
	"fmt"
	"io/fs"
	"slices"
)

// Sentinel errors for accessor queries. Query methods wrap them in
// *fs.PathError.
var (
	// ErrNotFound is returned when a path does not resolve.
	ErrNotFound = fs.ErrNotExist

	// ErrWrongType is returned when an operation is requested on an entry of
	// the wrong kind.
	ErrWrongType = errors.New("fsaccess: wrong entry type")

	ErrNotDirectory = fmt.Errorf("%w: not a directory", ErrWrongType)
	ErrNotRegular   = fmt.Errorf("%w: not a regular file", ErrWrongType)
	ErrNotSymlink   = fmt.Errorf("%w: not a symlink", ErrWrongType)
)

// Accessor provides read-only filesystem queries.
//
// Implementations must be safe for concurrent use when their underlying
// storage is.
type Accessor interface {
	// MaybeStat returns the metadata for p, or ok=false if p does not resolve.
	// The error is reserved for failures other than absence.
	MaybeStat(p Path) (st Stat, ok bool, err error)

	// Stat returns the metadata for p or an error wrapping ErrNotFound.
	Stat(p Path) (Stat, error)

	// ReadDirectory lists the children of the directory at p.
	ReadDirectory(p Path) (DirEntries, error)

	// ReadFile returns the content of the regular file at p.
	ReadFile(p Path) ([]byte, error)

	// ReadLink returns the target of the symlink at p.
	ReadLink(p Path) (string, error)
}

// DirEntries maps child names to an optional type hint.
//
// A nil hint means the type was not resolved while listing; callers that need
// it must Stat the child.
type DirEntries map[string]*Type

// Names returns the entry names in ascending order.
func (d DirEntries) Names() []string {
	names := make([]string, 0, len(d))
	for name := range d {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// StatOrNotFound implements Stat on top of MaybeStat.
func StatOrNotFound(a Accessor, p Path) (Stat, error) {
	st, ok, err := a.MaybeStat(p)
	if err != nil {
		return Stat{}, err
	}
	if !ok {
		return Stat{}, &fs.PathError{Op: "stat", Path: p.String(), Err: ErrNotFound}
	}
	return st, nil
}
