package tree

import (
	"iter"

	"github.com/google/btree"

	"github.com/meigma/nar/fsaccess"
)

// btreeDegree is the branching factor for child sets.
const btreeDegree = 8

// Node is one entry of the tree.
//
// Target is set only for symlinks. Children are kept only for directories,
// ordered by name.
type Node struct {
	Stat   fsaccess.Stat
	Target string

	children *btree.BTreeG[child]
}

type child struct {
	name string
	node *Node
}

func lessChild(a, b child) bool {
	return a.name < b.name
}

// NewDirectory returns an empty directory node.
func NewDirectory() *Node {
	return &Node{Stat: fsaccess.Stat{Type: fsaccess.TypeDirectory}}
}

// NewRegular returns a regular file node with no size or offset recorded.
func NewRegular() *Node {
	return &Node{Stat: fsaccess.Stat{Type: fsaccess.TypeRegular}}
}

// NewSymlink returns a symlink node pointing at target.
func NewSymlink(target string) *Node {
	return &Node{Stat: fsaccess.Stat{Type: fsaccess.TypeSymlink}, Target: target}
}

// IsDir reports whether n is a directory.
func (n *Node) IsDir() bool {
	return n.Stat.Type == fsaccess.TypeDirectory
}

// AddChild inserts node under name. It returns false without modifying n if
// a child with that name already exists.
func (n *Node) AddChild(name string, node *Node) bool {
	if n.children == nil {
		n.children = btree.NewG(btreeDegree, lessChild)
	}
	if n.children.Has(child{name: name}) {
		return false
	}
	n.children.ReplaceOrInsert(child{name: name, node: node})
	return true
}

// Child returns the child called name.
func (n *Node) Child(name string) (*Node, bool) {
	if n.children == nil {
		return nil, false
	}
	c, ok := n.children.Get(child{name: name})
	if !ok {
		return nil, false
	}
	return c.node, true
}

// Len returns the number of children.
func (n *Node) Len() int {
	if n.children == nil {
		return 0
	}
	return n.children.Len()
}

// Children iterates over the children in ascending name order.
func (n *Node) Children() iter.Seq2[string, *Node] {
	return func(yield func(string, *Node) bool) {
		if n.children == nil {
			return
		}
		n.children.Ascend(func(c child) bool {
			return yield(c.name, c.node)
		})
	}
}

// Lookup resolves segs one name at a time starting at n. It fails as soon as
// an intermediate node is not a directory.
func (n *Node) Lookup(segs []string) (*Node, bool) {
	current := n
	for _, name := range segs {
		if !current.IsDir() {
			return nil, false
		}
		next, ok := current.Child(name)
		if !ok {
			return nil, false
		}
		current = next
	}
	return current, true
}

// Count returns the number of nodes in the subtree rooted at n, n included.
func (n *Node) Count() int {
	total := 1
	for _, c := range n.Children() {
		total += c.Count()
	}
	return total
}
