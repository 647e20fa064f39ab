package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/nar/fsaccess"
)

func TestNodeChildrenOrdered(t *testing.T) {
	t.Parallel()

	dir := NewDirectory()
	for _, name := range []string{"zeta", "alpha", "mid", "Beta"} {
		require.True(t, dir.AddChild(name, NewRegular()))
	}

	var names []string
	for name := range dir.Children() {
		names = append(names, name)
	}
	assert.Equal(t, []string{"Beta", "alpha", "mid", "zeta"}, names)
	assert.Equal(t, 4, dir.Len())
}

func TestNodeAddChildDuplicate(t *testing.T) {
	t.Parallel()

	dir := NewDirectory()
	first := NewRegular()
	require.True(t, dir.AddChild("a", first))
	assert.False(t, dir.AddChild("a", NewSymlink("x")))

	got, ok := dir.Child("a")
	require.True(t, ok)
	assert.Same(t, first, got)
}

func TestNodeChildrenEarlyStop(t *testing.T) {
	t.Parallel()

	dir := NewDirectory()
	dir.AddChild("a", NewRegular())
	dir.AddChild("b", NewRegular())
	dir.AddChild("c", NewRegular())

	var seen []string
	for name := range dir.Children() {
		seen = append(seen, name)
		if name == "b" {
			break
		}
	}
	assert.Equal(t, []string{"a", "b"}, seen)
}

func TestNodeLookup(t *testing.T) {
	t.Parallel()

	root := NewDirectory()
	a := NewDirectory()
	file := NewRegular()
	link := NewSymlink("file")
	root.AddChild("a", a)
	a.AddChild("file", file)
	a.AddChild("link", link)

	tests := []struct {
		name string
		segs []string
		want *Node
	}{
		{"root", nil, root},
		{"directory", []string{"a"}, a},
		{"file", []string{"a", "file"}, file},
		{"symlink", []string{"a", "link"}, link},
		{"missing", []string{"b"}, nil},
		{"through file", []string{"a", "file", "x"}, nil},
		{"through symlink", []string{"a", "link", "x"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := root.Lookup(tt.segs)
			if tt.want == nil {
				assert.False(t, ok)
				assert.Nil(t, got)
				return
			}
			require.True(t, ok)
			assert.Same(t, tt.want, got)
		})
	}
}

func TestNodeCount(t *testing.T) {
	t.Parallel()

	root := NewDirectory()
	sub := NewDirectory()
	root.AddChild("sub", sub)
	sub.AddChild("f", NewRegular())
	root.AddChild("g", NewSymlink("sub/f"))

	assert.Equal(t, 4, root.Count())
	assert.Equal(t, 1, NewRegular().Count())
	assert.Equal(t, fsaccess.TypeSymlink, NewSymlink("t").Stat.Type)
}
