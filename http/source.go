// Package http fetches archive byte ranges over HTTP range requests.
package http //nolint:revive // intentional naming for domain clarity

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	nethttp "net/http"
	"strconv"
	"strings"
)

// ErrRangeUnsupported is returned when the server ignores range requests.
var ErrRangeUnsupported = errors.New("http: range requests not supported")

// Source reads an archive served over HTTP.
//
// It satisfies nar.Fetcher and io.ReaderAt. Requests are independent, so a
// Source is safe for concurrent use.
type Source struct {
	ctx     context.Context
	url     string
	client  *nethttp.Client
	headers nethttp.Header

	size        int64
	seen        validators
	conditional bool
	sourceID    string
}

// validators are the cache validators the server reported for the archive.
type validators struct {
	etag         string
	lastModified string
}

func fromHeader(h nethttp.Header) validators {
	return validators{etag: h.Get("ETag"), lastModified: h.Get("Last-Modified")}
}

// or fills the fields of v that are empty from o.
func (v validators) or(o validators) validators {
	if v.etag == "" {
		v.etag = o.etag
	}
	if v.lastModified == "" {
		v.lastModified = o.lastModified
	}
	return v
}

func (v validators) empty() bool {
	return v.etag == "" && v.lastModified == ""
}

// require makes a request conditional on the archive being unchanged.
// Headers set explicitly by the caller win.
func (v validators) require(h nethttp.Header) {
	if v.etag != "" && h.Get("If-Match") == "" {
		h.Set("If-Match", v.etag)
	}
	if v.lastModified != "" && h.Get("If-Unmodified-Since") == "" {
		h.Set("If-Unmodified-Since", v.lastModified)
	}
}

// Option configures a Source.
type Option func(*Source)

// WithClient sets the HTTP client used for requests.
func WithClient(client *nethttp.Client) Option {
	return func(s *Source) {
		s.client = client
	}
}

// WithHeaders sets additional headers on each request.
func WithHeaders(headers nethttp.Header) Option {
	return func(s *Source) {
		if headers == nil {
			return
		}
		s.headers = headers.Clone()
	}
}

// WithHeader sets a single header on each request.
func WithHeader(key, value string) Option {
	return func(s *Source) {
		if s.headers == nil {
			s.headers = make(nethttp.Header)
		}
		s.headers.Set(key, value)
	}
}

// WithSourceID overrides the identifier used to key cached ranges.
func WithSourceID(id string) Option {
	return func(s *Source) {
		s.sourceID = id
	}
}

// WithConditionalHeaders makes range reads conditional on the ETag or
// Last-Modified seen when the Source was opened, so a replaced archive is
// never mixed with the indexed one. Disabled by default because some servers
// reject conditional range requests.
func WithConditionalHeaders() Option {
	return func(s *Source) {
		s.conditional = true
	}
}

// NewSource opens the archive at url. It asks the server for the archive
// size and range support.
//
// ctx bounds the initial requests and every later request made by the Source.
func NewSource(ctx context.Context, url string, opts ...Option) (*Source, error) {
	s := &Source{ctx: ctx, url: url}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		s.client = nethttp.DefaultClient
	}

	if err := s.discover(); err != nil {
		return nil, fmt.Errorf("open %s: %w", url, err)
	}
	if s.sourceID == "" {
		switch {
		case s.seen.etag != "":
			s.sourceID = fmt.Sprintf("url:%s|etag:%s", s.url, s.seen.etag)
		case s.seen.lastModified != "":
			s.sourceID = fmt.Sprintf("url:%s|mod:%s|size:%d", s.url, s.seen.lastModified, s.size)
		default:
			s.sourceID = fmt.Sprintf("url:%s|size:%d", s.url, s.size)
		}
	}
	return s, nil
}

// Size returns the total size of the remote archive.
func (s *Source) Size() int64 {
	return s.size
}

// SourceID returns a stable identifier for the remote archive.
func (s *Source) SourceID() string {
	return s.sourceID
}

// Open streams the whole archive with a single request, for feeding it to
// the indexer. The caller must close the reader.
func (s *Source) Open() (io.ReadCloser, error) {
	resp, err := s.do(nethttp.MethodGet, "", s.conditional)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != nethttp.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("get %s: %s", s.url, resp.Status)
	}
	if resp.ContentLength >= 0 && resp.ContentLength != s.size {
		resp.Body.Close()
		return nil, fmt.Errorf("get %s: archive size changed from %d to %d", s.url, s.size, resp.ContentLength)
	}
	return &streamBody{ReadCloser: resp.Body}, nil
}

// Fetch returns exactly length bytes starting at offset. A range that
// extends past the end of the archive fails with io.ErrUnexpectedEOF
// without contacting the server.
func (s *Source) Fetch(offset, length uint64) ([]byte, error) {
	if length == 0 {
		return []byte{}, nil
	}
	if offset > math.MaxInt64 || length > math.MaxInt64-offset {
		return nil, fmt.Errorf("fetch range [%d, +%d): size overflow", offset, length)
	}
	//nolint:gosec // bounds checked above
	off, end := int64(offset), int64(offset+length)
	if end > s.size {
		return nil, fmt.Errorf("fetch range [%d, +%d): archive is %d bytes: %w", offset, length, s.size, io.ErrUnexpectedEOF)
	}

	body, err := s.rangeBody(off, end-1)
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("fetch range [%d, +%d): %w", offset, length, err)
	}
	defer body.Close()

	buf := make([]byte, length)
	if _, err := io.ReadFull(body, buf); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("fetch range [%d, +%d): %w", offset, length, err)
	}
	return buf, nil
}

// ReadRange returns a reader for the byte range [off, off+length), clipped
// to the archive size. An offset at or past the end yields io.EOF. The
// caller must close the reader.
func (s *Source) ReadRange(off, length int64) (io.ReadCloser, error) {
	switch {
	case length < 0:
		return nil, fmt.Errorf("read range length %d: negative length", length)
	case off < 0:
		return nil, fmt.Errorf("read range %d: negative offset", off)
	case length == 0:
		return io.NopCloser(strings.NewReader("")), nil
	case off >= s.size:
		return io.NopCloser(strings.NewReader("")), io.EOF
	}
	length = min(length, s.size-off)

	body, err := s.rangeBody(off, off+length-1)
	if err != nil {
		return nil, err
	}
	return &drainingBody{Reader: io.LimitReader(body, length), body: body}, nil
}

// ReadAt implements io.ReaderAt. A read that crosses the end of the archive
// returns the available bytes with io.EOF.
func (s *Source) ReadAt(p []byte, off int64) (int, error) {
	switch {
	case len(p) == 0:
		return 0, nil
	case off < 0:
		return 0, fmt.Errorf("read at %d: negative offset", off)
	case off >= s.size:
		return 0, io.EOF
	}
	want := int(min(int64(len(p)), s.size-off))

	body, err := s.rangeBody(off, off+int64(want)-1)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	n, err := io.ReadFull(body, p[:want])
	if err != nil {
		return n, err
	}
	if want < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// rangeBody requests bytes [off, end] and returns the partial-content body.
// A conditional request rejected with 412 is retried unconditionally.
func (s *Source) rangeBody(off, end int64) (io.ReadCloser, error) {
	byteRange := fmt.Sprintf("bytes=%d-%d", off, end)
	conditional := s.conditional && !s.seen.empty()

	resp, err := s.do(nethttp.MethodGet, byteRange, conditional)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == nethttp.StatusPreconditionFailed && conditional {
		resp.Body.Close()
		if resp, err = s.do(nethttp.MethodGet, byteRange, false); err != nil {
			return nil, err
		}
	}

	switch resp.StatusCode {
	case nethttp.StatusPartialContent:
		return &drainingBody{Reader: resp.Body, body: resp.Body}, nil
	case nethttp.StatusRequestedRangeNotSatisfiable:
		resp.Body.Close()
		return nil, io.EOF
	case nethttp.StatusOK:
		resp.Body.Close()
		return nil, ErrRangeUnsupported
	default:
		resp.Body.Close()
		return nil, fmt.Errorf("range request failed: %s", resp.Status)
	}
}

// discover learns the archive size and validators. HEAD is advisory; the
// one-byte range request decides whether ranges are served at all.
func (s *Source) discover() error {
	headSize := int64(-1)
	var head validators
	if resp, err := s.do(nethttp.MethodHead, "", false); err == nil {
		if resp.StatusCode == nethttp.StatusOK {
			headSize = resp.ContentLength
			head = fromHeader(resp.Header)
		}
		resp.Body.Close()
	}

	resp, err := s.do(nethttp.MethodGet, "bytes=0-0", false)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body) //nolint:errcheck // best-effort drain for connection reuse
		_ = resp.Body.Close()
	}()

	switch resp.StatusCode {
	case nethttp.StatusPartialContent:
	case nethttp.StatusOK:
		return ErrRangeUnsupported
	default:
		return fmt.Errorf("initial range request failed: %s", resp.Status)
	}

	crange := resp.Header.Get("Content-Range")
	if crange == "" {
		return errors.New("initial range request missing Content-Range")
	}
	size, err := parseContentRange(crange)
	if err != nil {
		return err
	}
	if headSize > 0 && headSize != size {
		return fmt.Errorf("content size mismatch: head=%d range=%d", headSize, size)
	}

	s.size = size
	s.seen = head.or(fromHeader(resp.Header))
	return nil
}

// do sends a request carrying the configured headers. byteRange may be
// empty for a request without a Range header.
func (s *Source) do(method, byteRange string, conditional bool) (*nethttp.Response, error) {
	req, err := nethttp.NewRequestWithContext(s.ctx, method, s.url, nethttp.NoBody)
	if err != nil {
		return nil, err
	}
	for key, values := range s.headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	// Offsets refer to the archive bytes, never to a transfer encoding.
	if req.Header.Get("Accept-Encoding") == "" {
		req.Header.Set("Accept-Encoding", "identity")
	}
	if byteRange != "" {
		req.Header.Set("Range", byteRange)
	}
	if conditional && method == nethttp.MethodGet {
		s.seen.require(req.Header)
	}
	return s.client.Do(req)
}

// drainingBody drains the response body on close to enable connection reuse.
type drainingBody struct {
	io.Reader
	body io.ReadCloser
}

func (d *drainingBody) Close() error {
	_, _ = io.Copy(io.Discard, d.body) //nolint:errcheck // best-effort drain for connection reuse
	return d.body.Close()
}

// maxStreamDrain bounds how much of an abandoned archive stream is read on
// close in the hope of reusing the connection.
const maxStreamDrain = 64 << 10

// streamBody is the body of a whole-archive request. Closing it early
// drains at most maxStreamDrain bytes, then drops the connection.
type streamBody struct {
	io.ReadCloser
}

func (b *streamBody) Close() error {
	_, _ = io.CopyN(io.Discard, b.ReadCloser, maxStreamDrain) //nolint:errcheck // best-effort drain for connection reuse
	return b.ReadCloser.Close()
}

// parseContentRange extracts the total size from a Content-Range header value
// of the form "bytes start-end/size".
func parseContentRange(value string) (int64, error) {
	value = strings.TrimSpace(value)
	rest, ok := strings.CutPrefix(value, "bytes ")
	if !ok {
		return 0, fmt.Errorf("invalid Content-Range %q", value)
	}
	_, total, ok := strings.Cut(rest, "/")
	if !ok || total == "*" {
		return 0, fmt.Errorf("invalid Content-Range %q", value)
	}
	size, err := strconv.ParseInt(total, 10, 64)
	if err != nil || size < 0 {
		return 0, fmt.Errorf("invalid Content-Range %q", value)
	}
	return size, nil
}
