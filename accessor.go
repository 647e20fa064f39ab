package nar

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"log/slog"

	"github.com/meigma/nar/fsaccess"
	"github.com/meigma/nar/internal/tree"
)

// Accessor answers filesystem queries against an indexed archive.
//
// The index is immutable once constructed, so an Accessor is safe for
// concurrent use as long as its Fetcher is.
type Accessor struct {
	root    *tree.Node
	fetcher Fetcher
	logger  *slog.Logger
}

// Interface compliance.
var _ fsaccess.Accessor = (*Accessor)(nil)

// New indexes the archive in data. File content is served from data, which
// must not be modified while the Accessor is in use.
func New(data []byte, opts ...Option) (*Accessor, error) {
	cfg := newConfig(opts)
	root, err := index(bytes.NewReader(data), cfg)
	if err != nil {
		return nil, err
	}
	return &Accessor{root: root, fetcher: bufferFetcher(data), logger: cfg.logger}, nil
}

// NewFromReader indexes the archive read from r, discarding file content as
// it streams past. Content is later resolved through f by offset; if f is nil
// ReadFile fails with ErrNoContent.
func NewFromReader(r io.Reader, f Fetcher, opts ...Option) (*Accessor, error) {
	cfg := newConfig(opts)
	root, err := index(r, cfg)
	if err != nil {
		return nil, err
	}
	return &Accessor{root: root, fetcher: f, logger: cfg.logger}, nil
}

func (a *Accessor) lookup(p fsaccess.Path) (*tree.Node, bool) {
	return a.root.Lookup(p.Segments())
}

// node resolves p and checks its type. The error is a *fs.PathError.
func (a *Accessor) node(p fsaccess.Path, op string, want fsaccess.Type, wrongType error) (*tree.Node, error) {
	n, ok := a.lookup(p)
	if !ok {
		return nil, &fs.PathError{Op: op, Path: p.String(), Err: fsaccess.ErrNotFound}
	}
	if n.Stat.Type != want {
		return nil, &fs.PathError{Op: op, Path: p.String(), Err: wrongType}
	}
	return n, nil
}

// MaybeStat returns the metadata for p, or ok=false if p does not resolve.
// The error is always nil.
func (a *Accessor) MaybeStat(p fsaccess.Path) (fsaccess.Stat, bool, error) {
	n, ok := a.lookup(p)
	if !ok {
		return fsaccess.Stat{}, false, nil
	}
	return n.Stat, true, nil
}

// Stat returns the metadata for p.
func (a *Accessor) Stat(p fsaccess.Path) (fsaccess.Stat, error) {
	return fsaccess.StatOrNotFound(a, p)
}

// ReadDirectory returns the names of the entries of the directory at p.
// Type hints are left nil; Stat a child to learn its type.
func (a *Accessor) ReadDirectory(p fsaccess.Path) (fsaccess.DirEntries, error) {
	n, err := a.node(p, "readdir", fsaccess.TypeDirectory, fsaccess.ErrNotDirectory)
	if err != nil {
		return nil, err
	}
	entries := make(fsaccess.DirEntries, n.Len())
	for name := range n.Children() {
		entries[name] = nil
	}
	return entries, nil
}

// ReadFile returns the content of the regular file at p.
func (a *Accessor) ReadFile(p fsaccess.Path) ([]byte, error) {
	n, err := a.node(p, "readfile", fsaccess.TypeRegular, fsaccess.ErrNotRegular)
	if err != nil {
		return nil, err
	}
	data, err := a.content(n.Stat)
	if err != nil {
		a.logger.Debug("file content unavailable",
			slog.String("path", p.String()),
			slog.Any("error", err))
		return nil, &fs.PathError{Op: "readfile", Path: p.String(), Err: err}
	}
	return data, nil
}

func (a *Accessor) content(st fsaccess.Stat) ([]byte, error) {
	size, ok := st.Size()
	if !ok {
		return nil, fmt.Errorf("%w: file size not recorded", ErrInconsistentIndex)
	}
	if size == 0 {
		return []byte{}, nil
	}
	offset, ok := st.Offset()
	if !ok {
		return nil, fmt.Errorf("%w: content offset not recorded", ErrInconsistentIndex)
	}
	if a.fetcher == nil {
		return nil, ErrNoContent
	}
	data, err := a.fetcher.Fetch(offset, size)
	if err != nil {
		return nil, err
	}
	if uint64(len(data)) != size {
		return nil, fmt.Errorf("fetched %d bytes, want %d: %w", len(data), size, io.ErrUnexpectedEOF)
	}
	return data, nil
}

// ReadLink returns the target of the symlink at p.
func (a *Accessor) ReadLink(p fsaccess.Path) (string, error) {
	n, err := a.node(p, "readlink", fsaccess.TypeSymlink, fsaccess.ErrNotSymlink)
	if err != nil {
		return "", err
	}
	return n.Target, nil
}

// Len returns the number of entries in the index.
func (a *Accessor) Len() int {
	return a.root.Count()
}
