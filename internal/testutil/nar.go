package testutil

import (
	"bytes"
	"context"
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/meigma/nar/archive"
	"github.com/meigma/nar/fsaccess"
)

// BuildNAR serializes fsys as an archive rooted at its top directory.
func BuildNAR(tb testing.TB, fsys fs.FS) []byte {
	tb.Helper()
	return BuildNARAt(tb, fsys, "/")
}

// BuildNARAt serializes the entry at path within fsys as an archive.
func BuildNARAt(tb testing.TB, fsys fs.FS, path string) []byte {
	tb.Helper()

	var buf bytes.Buffer
	if err := archive.Dump(context.Background(), &buf, fsaccess.FS(fsys), fsaccess.ParsePath(path)); err != nil {
		tb.Fatalf("build archive: %v", err)
	}
	return buf.Bytes()
}

// SampleFS returns a small tree: a directory "a" holding the executable file
// "b.txt" with content "hi" and a symlink "c" pointing at it.
func SampleFS() fstest.MapFS {
	return fstest.MapFS{
		"a/b.txt": {Data: []byte("hi"), Mode: 0o755},
		"a/c":     {Data: []byte("b.txt"), Mode: fs.ModeSymlink | 0o777},
	}
}

// TreeFS returns a tree with nested directories, an empty directory, an
// empty file and content of several sizes.
func TreeFS() fstest.MapFS {
	return fstest.MapFS{
		"README":               {Data: []byte("read me\n"), Mode: 0o644},
		"bin/tool":             {Data: []byte("#!/bin/sh\necho tool\n"), Mode: 0o755},
		"bin/alias":            {Data: []byte("tool"), Mode: fs.ModeSymlink | 0o777},
		"empty":                {Data: nil, Mode: 0o644},
		"lib/deep/nested/data": {Data: bytes.Repeat([]byte("0123456789"), 1000), Mode: 0o644},
		"lib/deep/up":          {Data: []byte("../../README"), Mode: fs.ModeSymlink | 0o777},
		"share/void":           {Mode: fs.ModeDir | 0o755},
	}
}
