package fsaccess

import (
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMapFS() fstest.MapFS {
	return fstest.MapFS{
		"a/b.txt":  {Data: []byte("hi"), Mode: 0o755},
		"a/c":      {Data: []byte("b.txt"), Mode: fs.ModeSymlink | 0o777},
		"a/d/e":    {Data: []byte("nested"), Mode: 0o644},
		"readme":   {Data: []byte("top"), Mode: 0o644},
		"emptydir": {Mode: fs.ModeDir | 0o755},
	}
}

func TestFSStat(t *testing.T) {
	t.Parallel()

	acc := FS(testMapFS())

	st, err := acc.Stat(Root())
	require.NoError(t, err)
	assert.Equal(t, TypeDirectory, st.Type)

	st, err = acc.Stat(ParsePath("/a/b.txt"))
	require.NoError(t, err)
	assert.Equal(t, TypeRegular, st.Type)
	assert.True(t, st.IsExecutable)
	size, ok := st.Size()
	assert.True(t, ok)
	assert.Equal(t, uint64(2), size)
	_, ok = st.Offset()
	assert.False(t, ok)

	st, err = acc.Stat(ParsePath("/readme"))
	require.NoError(t, err)
	assert.False(t, st.IsExecutable)

	st, err = acc.Stat(ParsePath("/a/c"))
	require.NoError(t, err)
	assert.Equal(t, TypeSymlink, st.Type)

	_, err = acc.Stat(ParsePath("/missing"))
	require.ErrorIs(t, err, ErrNotFound)
	var pathErr *fs.PathError
	require.ErrorAs(t, err, &pathErr)
	assert.Equal(t, "/missing", pathErr.Path)
}

func TestFSMaybeStatAgreesWithStat(t *testing.T) {
	t.Parallel()

	acc := FS(testMapFS())
	for _, p := range []string{"/", "/a", "/a/b.txt", "/a/c", "/a/d/e", "/nope", "/a/nope"} {
		st, ok, err := acc.MaybeStat(ParsePath(p))
		require.NoError(t, err)
		got, statErr := acc.Stat(ParsePath(p))
		if ok {
			require.NoError(t, statErr, p)
			assert.Equal(t, got, st, p)
		} else {
			assert.ErrorIs(t, statErr, ErrNotFound, p)
		}
	}
}

func TestFSReadDirectory(t *testing.T) {
	t.Parallel()

	acc := FS(testMapFS())

	entries, err := acc.ReadDirectory(ParsePath("/a"))
	require.NoError(t, err)
	assert.Equal(t, []string{"b.txt", "c", "d"}, entries.Names())
	require.NotNil(t, entries["d"])
	assert.Equal(t, TypeDirectory, *entries["d"])

	entries, err = acc.ReadDirectory(ParsePath("/emptydir"))
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = acc.ReadDirectory(ParsePath("/readme"))
	require.ErrorIs(t, err, ErrWrongType)
	require.ErrorIs(t, err, ErrNotDirectory)

	_, err = acc.ReadDirectory(ParsePath("/missing"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFSReadFileAndLink(t *testing.T) {
	t.Parallel()

	acc := FS(testMapFS())

	data, err := acc.ReadFile(ParsePath("/a/b.txt"))
	require.NoError(t, err)
	assert.Equal(t, []byte("hi"), data)

	_, err = acc.ReadFile(ParsePath("/a"))
	require.ErrorIs(t, err, ErrNotRegular)

	target, err := acc.ReadLink(ParsePath("/a/c"))
	require.NoError(t, err)
	assert.Equal(t, "b.txt", target)

	_, err = acc.ReadLink(ParsePath("/a/b.txt"))
	require.ErrorIs(t, err, ErrNotSymlink)
}

func TestFSOnDisk(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("symlinks require privileges on windows")
	}

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "bin"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bin", "tool"), []byte("#!/bin/sh\n"), 0o755))
	require.NoError(t, os.Symlink("bin/tool", filepath.Join(dir, "link")))

	acc := FS(os.DirFS(dir))

	st, err := acc.Stat(ParsePath("/bin/tool"))
	require.NoError(t, err)
	assert.True(t, st.IsExecutable)

	st, err = acc.Stat(ParsePath("/link"))
	require.NoError(t, err)
	assert.Equal(t, TypeSymlink, st.Type)

	target, err := acc.ReadLink(ParsePath("/link"))
	require.NoError(t, err)
	assert.Equal(t, "bin/tool", target)

	_, ok, err := acc.MaybeStat(ParsePath("/bin/tool/under-a-file"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTypeString(t *testing.T) {
	assert.Equal(t, "regular", TypeRegular.String())
	assert.Equal(t, "directory", TypeDirectory.String())
	assert.Equal(t, "symlink", TypeSymlink.String())
	assert.Equal(t, "unknown", TypeUnknown.String())
}
