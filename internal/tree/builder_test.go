package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/nar/fsaccess"
	"github.com/meigma/nar/internal/nartype"
)

func TestBuilderPreorder(t *testing.T) {
	t.Parallel()

	b := NewBuilder(0)
	require.NoError(t, b.Add("", NewDirectory()))
	require.NoError(t, b.Add("/a", NewDirectory()))
	require.NoError(t, b.Add("/a/b", NewDirectory()))
	require.NoError(t, b.Add("/a/b/f", NewRegular()))
	// Uncle after a grandchild: stack pops back to depth 1.
	require.NoError(t, b.Add("/c", NewSymlink("a/b/f")))
	require.NoError(t, b.Add("/d", NewDirectory()))
	require.NoError(t, b.Add("/d/e", NewRegular()))

	root, err := b.Root()
	require.NoError(t, err)
	assert.Equal(t, 7, b.Entries())
	assert.Equal(t, 7, root.Count())

	for _, p := range []string{"a/b/f", "c", "d/e"} {
		_, ok := root.Lookup(fsaccess.ParsePath(p).Segments())
		assert.True(t, ok, p)
	}
	n, ok := root.Lookup([]string{"c"})
	require.True(t, ok)
	assert.Equal(t, "a/b/f", n.Target)
}

func TestBuilderRegularRoot(t *testing.T) {
	t.Parallel()

	b := NewBuilder(0)
	require.NoError(t, b.Add("", NewRegular()))
	top, err := b.CurrentRegular()
	require.NoError(t, err)
	top.Stat.IsExecutable = true

	root, err := b.Root()
	require.NoError(t, err)
	assert.True(t, root.Stat.IsExecutable)
}

func TestBuilderMalformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		steps func(b *Builder) error
	}{
		{"child of regular file", func(b *Builder) error {
			if err := b.Add("", NewDirectory()); err != nil {
				return err
			}
			if err := b.Add("/f", NewRegular()); err != nil {
				return err
			}
			return b.Add("/f/x", NewRegular())
		}},
		{"child of symlink", func(b *Builder) error {
			if err := b.Add("", NewDirectory()); err != nil {
				return err
			}
			if err := b.Add("/l", NewSymlink("t")); err != nil {
				return err
			}
			return b.Add("/l/x", NewRegular())
		}},
		{"skipped level", func(b *Builder) error {
			if err := b.Add("", NewDirectory()); err != nil {
				return err
			}
			return b.Add("/a/b", NewRegular())
		}},
		{"child before root", func(b *Builder) error {
			return b.Add("/a", NewRegular())
		}},
		{"second root", func(b *Builder) error {
			if err := b.Add("", NewDirectory()); err != nil {
				return err
			}
			return b.Add("", NewDirectory())
		}},
		{"duplicate name", func(b *Builder) error {
			if err := b.Add("", NewDirectory()); err != nil {
				return err
			}
			if err := b.Add("/a", NewRegular()); err != nil {
				return err
			}
			return b.Add("/a", NewRegular())
		}},
		{"attribute on directory", func(b *Builder) error {
			if err := b.Add("", NewDirectory()); err != nil {
				return err
			}
			_, err := b.CurrentRegular()
			return err
		}},
		{"attribute before entry", func(b *Builder) error {
			_, err := b.CurrentRegular()
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.steps(NewBuilder(0))
			require.ErrorIs(t, err, nartype.ErrMalformedArchive)
		})
	}
}

func TestBuilderEmpty(t *testing.T) {
	t.Parallel()

	_, err := NewBuilder(0).Root()
	require.ErrorIs(t, err, nartype.ErrMalformedArchive)
}

func TestBuilderMaxEntries(t *testing.T) {
	t.Parallel()

	b := NewBuilder(2)
	require.NoError(t, b.Add("", NewDirectory()))
	require.NoError(t, b.Add("/a", NewRegular()))
	err := b.Add("/b", NewRegular())
	require.ErrorIs(t, err, nartype.ErrTooManyEntries)
}
