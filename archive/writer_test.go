package archive

import (
	"bytes"
	"context"
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/nar/fsaccess"
)

func TestDumpRegularFileBytes(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{"hello": {Data: []byte("hi"), Mode: 0o644}}
	got := dumpFS(t, fsys, "/hello")
	want := enc(Magic, "(", "type", "regular", "contents", []byte("hi"), ")")
	assert.Equal(t, want, got)
}

func TestDumpExecutableAndSymlink(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"bin/tool": {Data: []byte("#!"), Mode: 0o755},
		"link":     {Data: []byte("bin/tool"), Mode: fs.ModeSymlink | 0o777},
	}
	got := dumpFS(t, fsys, "/")
	want := enc(Magic, "(", "type", "directory",
		"entry", "(", "name", "bin", "node",
		"(", "type", "directory",
		"entry", "(", "name", "tool", "node",
		"(", "type", "regular", "executable", "", "contents", []byte("#!"), ")",
		")",
		")",
		")",
		"entry", "(", "name", "link", "node",
		"(", "type", "symlink", "target", "bin/tool", ")",
		")",
		")")
	assert.Equal(t, want, got)
}

func TestDumpParseRoundTrip(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"a/b/c/deep": {Data: bytes.Repeat([]byte("d"), 1000), Mode: 0o644},
		"a/x":        {Data: []byte("1234567"), Mode: 0o644},
		"a/y":        {Data: []byte("12345678"), Mode: 0o755},
		"a/z":        {Data: []byte("b/c/deep"), Mode: fs.ModeSymlink},
	}
	data := dumpFS(t, fsys, "/")
	sink, err := parseRecorded(t, data)
	require.NoError(t, err)

	var offsets []uint64
	for _, ev := range sink.events {
		if ev.kind == "size" {
			offsets = append(offsets, ev.offset)
			assert.Zero(t, ev.offset%8, "content is 8-byte aligned")
		}
	}
	require.Len(t, offsets, 3)
	assert.IsIncreasing(t, offsets)
}

func TestDumpMissingRoot(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := Dump(context.Background(), &buf, fsaccess.FS(fstest.MapFS{}), fsaccess.ParsePath("/nope"))
	require.ErrorIs(t, err, fs.ErrNotExist)
}

func TestDumpCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var buf bytes.Buffer
	err := Dump(ctx, &buf, fsaccess.FS(fstest.MapFS{"a": {Data: []byte("x")}}), fsaccess.Root())
	require.ErrorIs(t, err, context.Canceled)
}
