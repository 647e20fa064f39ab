package archive

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/nar/fsaccess"
)

// enc encodes archive tokens: strings and byte slices as padded strings,
// uint64 values as raw little-endian integers.
func enc(tokens ...any) []byte {
	var buf bytes.Buffer
	var num [8]byte
	for _, tok := range tokens {
		switch v := tok.(type) {
		case string:
			tok = []byte(v)
		}
		switch v := tok.(type) {
		case []byte:
			binary.LittleEndian.PutUint64(num[:], uint64(len(v)))
			buf.Write(num[:])
			buf.Write(v)
			buf.Write(make([]byte, padLen(uint64(len(v)))))
		case uint64:
			binary.LittleEndian.PutUint64(num[:], v)
			buf.Write(num[:])
		default:
			panic("unsupported token")
		}
	}
	return buf.Bytes()
}

type event struct {
	kind   string
	path   string
	target string
	size   uint64
	offset uint64
}

type recordingSink struct {
	counter  *CountingReader
	events   []event
	contents bytes.Buffer
}

func (s *recordingSink) EnterDirectory(path string) error {
	s.events = append(s.events, event{kind: "dir", path: path})
	return nil
}

func (s *recordingSink) EnterRegularFile(path string) error {
	s.events = append(s.events, event{kind: "file", path: path})
	return nil
}

func (s *recordingSink) MarkExecutable() error {
	s.events = append(s.events, event{kind: "exec"})
	return nil
}

func (s *recordingSink) DeclareContentSize(size uint64) error {
	s.events = append(s.events, event{kind: "size", size: size, offset: s.counter.N})
	return nil
}

func (s *recordingSink) ReceiveContents(data []byte) error {
	s.contents.Write(data)
	return nil
}

func (s *recordingSink) EnterSymlink(path, target string) error {
	s.events = append(s.events, event{kind: "link", path: path, target: target})
	return nil
}

func parseRecorded(t *testing.T, data []byte) (*recordingSink, error) {
	t.Helper()
	cr := &CountingReader{R: bytes.NewReader(data)}
	sink := &recordingSink{counter: cr}
	return sink, Parse(cr, sink)
}

func dumpFS(t *testing.T, fsys fs.FS, root string) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Dump(context.Background(), &buf, fsaccess.FS(fsys), fsaccess.ParsePath(root)))
	return buf.Bytes()
}

func TestParseRegularRootOffset(t *testing.T) {
	t.Parallel()

	data := enc(Magic, "(", "type", "regular", "contents", []byte("hi"), ")")
	sink, err := parseRecorded(t, data)
	require.NoError(t, err)

	require.Len(t, sink.events, 2)
	assert.Equal(t, event{kind: "file", path: ""}, sink.events[0])
	// magic(24) + "("(16) + "type"(16) + "regular"(16) + "contents"(16) + size(8)
	assert.Equal(t, event{kind: "size", size: 2, offset: 96}, sink.events[1])
	assert.Equal(t, "hi", string(data[96:98]))
	assert.Equal(t, "hi", sink.contents.String())
}

func TestParseDoesNotReadPastArchive(t *testing.T) {
	t.Parallel()

	archive := enc(Magic, "(", "type", "symlink", "target", "x", ")")
	data := append(append([]byte{}, archive...), []byte("trailing")...)
	cr := &CountingReader{R: bytes.NewReader(data)}
	require.NoError(t, Parse(cr, &recordingSink{counter: cr}))
	assert.Equal(t, uint64(len(archive)), cr.N)
}

func TestParseTree(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"a/b.txt": {Data: []byte("hi"), Mode: 0o755},
		"a/c":     {Data: []byte("b.txt"), Mode: fs.ModeSymlink | 0o777},
		"z":       {Data: []byte("last"), Mode: 0o644},
	}
	data := dumpFS(t, fsys, "/")

	sink, err := parseRecorded(t, data)
	require.NoError(t, err)

	kinds := make([]string, 0, len(sink.events))
	for _, ev := range sink.events {
		kinds = append(kinds, ev.kind+":"+ev.path)
	}
	assert.Equal(t, []string{
		"dir:", "dir:/a", "file:/a/b.txt", "exec:", "size:", "link:/a/c", "file:/z", "size:",
	}, kinds)

	assert.Equal(t, "b.txt", sink.events[5].target)

	first, second := sink.events[4], sink.events[7]
	assert.Equal(t, "hi", string(data[first.offset:first.offset+first.size]))
	assert.Equal(t, "last", string(data[second.offset:second.offset+second.size]))
	assert.Less(t, first.offset, second.offset)
}

func TestParseEmptyFileAndDirectory(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"empty":    {Data: nil, Mode: 0o644},
		"emptydir": {Mode: fs.ModeDir | 0o755},
	}
	sink, err := parseRecorded(t, dumpFS(t, fsys, "/"))
	require.NoError(t, err)
	require.Len(t, sink.events, 4)
	assert.Equal(t, "size", sink.events[2].kind)
	assert.Equal(t, uint64(0), sink.events[2].size)
	assert.Equal(t, event{kind: "dir", path: "/emptydir"}, sink.events[3])
}

func TestParseLargeContentIsChunked(t *testing.T) {
	t.Parallel()

	content := bytes.Repeat([]byte("0123456789abcdef"), contentChunkSize/8+3)
	data := enc(Magic, "(", "type", "regular", "contents", content, ")")
	sink, err := parseRecorded(t, data)
	require.NoError(t, err)
	assert.Equal(t, content, sink.contents.Bytes())
}

func TestParseMalformed(t *testing.T) {
	t.Parallel()

	file := func(name string) []any {
		return []any{"entry", "(", "name", name, "node", "(", "type", "regular", "contents", []byte("x"), ")", ")"}
	}
	dir := func(entries ...[]any) []byte {
		tokens := []any{Magic, "(", "type", "directory"}
		for _, e := range entries {
			tokens = append(tokens, e...)
		}
		return enc(append(tokens, ")")...)
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"bad magic", enc("nix-archive-2", "(", "type", "directory", ")")},
		{"unknown type", enc(Magic, "(", "type", "fifo", ")")},
		{"missing open paren", enc(Magic, "type", "directory", ")")},
		{"truncated", enc(Magic, "(", "type", "regular", "contents", uint64(10))},
		{"empty input", nil},
		{"bad executable marker", enc(Magic, "(", "type", "regular", "executable", "yes", "contents", []byte("x"), ")")},
		{"missing contents", enc(Magic, "(", "type", "regular", "data", []byte("x"), ")")},
		{"unsorted entries", dir(file("b"), file("a"))},
		{"duplicate entries", dir(file("a"), file("a"))},
		{"empty name", dir(file(""))},
		{"dotdot name", dir(file(".."))},
		{"slash in name", dir(file("a/b"))},
		{"oversized token", enc(Magic, string(bytes.Repeat([]byte("x"), maxTokenLen+1)))},
		{"non-zero padding", append(enc(Magic)[:21], 1, 0, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseRecorded(t, tt.data)
			require.ErrorIs(t, err, ErrMalformed)
		})
	}
}

type failingSink struct {
	recordingSink
	err error
}

func (s *failingSink) EnterSymlink(string, string) error {
	return s.err
}

func TestParseSinkErrorPassesThrough(t *testing.T) {
	t.Parallel()

	sentinel := errors.New("stop")
	data := enc(Magic, "(", "type", "symlink", "target", "t", ")")
	cr := &CountingReader{R: bytes.NewReader(data)}
	err := Parse(cr, &failingSink{recordingSink: recordingSink{counter: cr}, err: sentinel})
	require.ErrorIs(t, err, sentinel)
	assert.NotErrorIs(t, err, ErrMalformed)
}

type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }

func TestParseReadError(t *testing.T) {
	t.Parallel()

	sentinel := errors.New("disk on fire")
	err := Parse(errReader{err: sentinel}, &recordingSink{counter: &CountingReader{}})
	require.ErrorIs(t, err, sentinel)
	assert.NotErrorIs(t, err, ErrMalformed)
}

func TestCountingReaderCountsPartialReads(t *testing.T) {
	t.Parallel()

	cr := &CountingReader{R: io.LimitReader(bytes.NewReader(make([]byte, 100)), 37)}
	n, err := io.Copy(io.Discard, cr)
	require.NoError(t, err)
	assert.Equal(t, int64(37), n)
	assert.Equal(t, uint64(37), cr.N)
}
