package tree

import (
	"fmt"
	"strings"

	"github.com/meigma/nar/fsaccess"
	"github.com/meigma/nar/internal/nartype"
)

// Builder assembles a tree from entries delivered in depth-first preorder.
//
// Entry paths are slash-separated with one separator per nesting level: ""
// is the root, "/a" a child of the root, "/a/b" a grandchild. Instead of
// explicit "leave directory" events the builder keeps a stack of open
// ancestors and pops it back to the depth of each incoming path. Every
// ordering assumption is checked; violations return ErrMalformedArchive.
type Builder struct {
	root    *Node
	parents []*Node
	entries int
	max     int // 0 = unlimited
}

// NewBuilder returns a Builder that accepts at most maxEntries entries.
// Use 0 for no limit.
func NewBuilder(maxEntries int) *Builder {
	return &Builder{max: maxEntries}
}

// Add places node at path and makes it the current entry.
func (b *Builder) Add(path string, node *Node) error {
	if b.max > 0 && b.entries >= b.max {
		return fmt.Errorf("%w: limit %d", nartype.ErrTooManyEntries, b.max)
	}

	depth := strings.Count(path, "/")
	if depth > len(b.parents) {
		return fmt.Errorf("%w: missing parent directory of path %q", nartype.ErrMalformedArchive, path)
	}
	b.parents = b.parents[:depth]

	if depth == 0 {
		if b.root != nil {
			return fmt.Errorf("%w: second root entry %q", nartype.ErrMalformedArchive, path)
		}
		b.root = node
	} else {
		parent := b.parents[depth-1]
		if !parent.IsDir() {
			return fmt.Errorf("%w: parent of path %q is a %s, not a directory",
				nartype.ErrMalformedArchive, path, parent.Stat.Type)
		}
		name := path[strings.LastIndexByte(path, '/')+1:]
		if !parent.AddChild(name, node) {
			return fmt.Errorf("%w: duplicate entry %q", nartype.ErrMalformedArchive, path)
		}
	}

	b.parents = append(b.parents, node)
	b.entries++
	return nil
}

// CurrentRegular returns the most recently added entry, which must be a
// regular file.
func (b *Builder) CurrentRegular() (*Node, error) {
	if len(b.parents) == 0 {
		return nil, fmt.Errorf("%w: file attribute before any entry", nartype.ErrMalformedArchive)
	}
	top := b.parents[len(b.parents)-1]
	if top.Stat.Type != fsaccess.TypeRegular {
		return nil, fmt.Errorf("%w: file attribute on a %s", nartype.ErrMalformedArchive, top.Stat.Type)
	}
	return top, nil
}

// Entries returns the number of entries added so far.
func (b *Builder) Entries() int {
	return b.entries
}

// Root returns the finished tree.
func (b *Builder) Root() (*Node, error) {
	if b.root == nil {
		return nil, fmt.Errorf("%w: no root entry", nartype.ErrMalformedArchive)
	}
	return b.root, nil
}
