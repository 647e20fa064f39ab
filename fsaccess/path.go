package fsaccess

import (
	"slices"
	"strings"
)

// Path is a root-relative path made of ordered name segments.
//
// The zero value is the root. Paths are immutable; Join returns a new Path.
type Path struct {
	segs []string
}

// Root returns the root path.
func Root() Path {
	return Path{}
}

// ParsePath converts a slash-separated path into a Path.
//
// It performs the following transformations:
//   - Strips leading and trailing slashes: "/a/b/" → a, b
//   - Collapses consecutive slashes: "a//b" → a, b
//   - Drops "." segments: "a/./b" → a, b
//   - Resolves ".." lexically, never above the root: "a/../b" → b, "/.." → root
func ParsePath(p string) Path {
	parts := strings.Split(p, "/")
	segs := make([]string, 0, len(parts))
	for _, part := range parts {
		switch part {
		case "", ".":
		case "..":
			if len(segs) > 0 {
				segs = segs[:len(segs)-1]
			}
		default:
			segs = append(segs, part)
		}
	}
	if len(segs) == 0 {
		return Path{}
	}
	return Path{segs: segs}
}

// Join returns the path of the child called name.
func (p Path) Join(name string) Path {
	segs := make([]string, len(p.segs), len(p.segs)+1)
	copy(segs, p.segs)
	return Path{segs: append(segs, name)}
}

// Parent returns the parent path. The parent of the root is the root.
func (p Path) Parent() Path {
	if len(p.segs) <= 1 {
		return Path{}
	}
	return Path{segs: p.segs[:len(p.segs)-1]}
}

// Base returns the last segment, or "" for the root.
func (p Path) Base() string {
	if len(p.segs) == 0 {
		return ""
	}
	return p.segs[len(p.segs)-1]
}

// IsRoot reports whether p is the root.
func (p Path) IsRoot() bool {
	return len(p.segs) == 0
}

// Len returns the number of segments.
func (p Path) Len() int {
	return len(p.segs)
}

// Segments returns a copy of the path segments.
func (p Path) Segments() []string {
	return slices.Clone(p.segs)
}

// String returns the absolute slash form, "/" for the root.
func (p Path) String() string {
	return "/" + strings.Join(p.segs, "/")
}

// Rel returns the io/fs form of the path: "." for the root, "a/b" otherwise.
func (p Path) Rel() string {
	if len(p.segs) == 0 {
		return "."
	}
	return strings.Join(p.segs, "/")
}
